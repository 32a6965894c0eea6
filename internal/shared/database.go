package shared

import (
	"database/sql"
	"fmt"
	"strings"

	_ "github.com/go-sql-driver/mysql"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
)

// Dialect identifies which of the three supported SQL backends a database
// URL targets. Schema, migrations and conflict detection all branch on it.
type Dialect string

const (
	DialectSQLite   Dialect = "sqlite"
	DialectMySQL    Dialect = "mysql"
	DialectPostgres Dialect = "postgres"
)

// ParseDatabaseURL splits a "{dialect}://{dsn}" URL into the dialect and the
// driver-native DSN. "sqlite::memory:", "sqlite://:memory:" and
// "sqlite://path/to/file.db" are the SQLite forms; "postgres" and
// "postgresql" are accepted as aliases for the same dialect; mysql DSNs are
// rewritten into go-sql-driver/mysql's "user:pw@tcp(host:port)/db" shape.
func ParseDatabaseURL(url string) (Dialect, string, error) {
	if url == "sqlite::memory:" {
		return DialectSQLite, ":memory:", nil
	}

	parts := strings.SplitN(url, "://", 2)
	if len(parts) != 2 {
		return "", "", fmt.Errorf("%w: malformed database url %q, expected {dialect}://{dsn}", ErrInvalidInput, url)
	}

	scheme, dsn := parts[0], parts[1]
	switch Dialect(scheme) {
	case DialectSQLite:
		return DialectSQLite, dsn, nil
	case DialectMySQL:
		return DialectMySQL, mysqlDSN(dsn), nil
	case DialectPostgres, Dialect("postgresql"):
		return DialectPostgres, dsn, nil
	default:
		return "", "", fmt.Errorf("%w: unsupported dialect %q", ErrInvalidInput, scheme)
	}
}

// mysqlDSN rewrites the "user:pw@host:port/db" shape named in spec §6 into
// go-sql-driver/mysql's own DSN shape, which requires the network address
// wrapped in "tcp(...)" (a bare "host:port" after "@" is parsed as the
// driver's "unix" network name, not a TCP address).
func mysqlDSN(dsn string) string {
	at := strings.LastIndex(dsn, "@")
	if at < 0 {
		return dsn
	}
	cred, hostpart := dsn[:at+1], dsn[at+1:]
	if strings.Contains(hostpart, "(") {
		return dsn
	}
	slash := strings.Index(hostpart, "/")
	if slash < 0 {
		return cred + "tcp(" + hostpart + ")"
	}
	host, rest := hostpart[:slash], hostpart[slash:]
	return cred + "tcp(" + host + ")" + rest
}

// driverName maps a Dialect to the database/sql driver name registered by
// its blank import above.
func (d Dialect) driverName() string {
	switch d {
	case DialectSQLite:
		return "sqlite3"
	case DialectMySQL:
		return "mysql"
	case DialectPostgres:
		return "postgres"
	default:
		return string(d)
	}
}

// NewDatabase opens a connection to the dialect and DSN encoded in url (see
// [ParseDatabaseURL]) and verifies it with a Ping.
func NewDatabase(url string) (*sql.DB, Dialect, error) {
	dialect, dsn, err := ParseDatabaseURL(url)
	if err != nil {
		return nil, "", err
	}

	if dialect == DialectSQLite {
		// The driver's _foreign_keys option enables the pragma on every
		// connection the pool opens, not only the one used for the Exec below.
		sep := "?"
		if strings.Contains(dsn, "?") {
			sep = "&"
		}
		dsn += sep + "_foreign_keys=on"
	}

	db, err := sql.Open(dialect.driverName(), dsn)
	if err != nil {
		return nil, "", fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, "", fmt.Errorf("failed to ping database: %w", err)
	}

	if dialect == DialectSQLite {
		if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
			db.Close()
			return nil, "", fmt.Errorf("failed to enable foreign keys: %w", err)
		}
	}

	return db, dialect, nil
}

// ConfigureDatabase sets connection pool settings for the database.
func ConfigureDatabase(db *sql.DB, maxOpenConns, maxIdleConns int) {
	db.SetMaxOpenConns(maxOpenConns)
	db.SetMaxIdleConns(maxIdleConns)
}

// IsConflictError reports whether err is a dialect-specific unique or
// foreign-key constraint violation, matched by substring per §4.3.4 of the
// aggregation engine's duplicate reconciliation protocol.
func IsConflictError(dialect Dialect, err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	switch dialect {
	case DialectSQLite:
		return strings.Contains(msg, "UNIQUE") || strings.Contains(msg, "FOREIGN KEY")
	case DialectMySQL:
		return strings.Contains(msg, "1062") || strings.Contains(msg, "duplicate") || strings.Contains(msg, "1452")
	case DialectPostgres:
		return strings.Contains(msg, "duplicate") || strings.Contains(msg, "violates foreign key")
	default:
		return false
	}
}

// IsForeignKeyError reports whether err is specifically a foreign-key
// violation, used to distinguish the junction-insert reconciliation path
// from a plain unique-conflict on music_aggregator.
func IsForeignKeyError(dialect Dialect, err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	switch dialect {
	case DialectSQLite:
		return strings.Contains(msg, "FOREIGN KEY")
	case DialectMySQL:
		return strings.Contains(msg, "1452")
	case DialectPostgres:
		return strings.Contains(msg, "violates foreign key")
	default:
		return false
	}
}
