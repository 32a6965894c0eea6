package store

import (
	"strconv"
	"strings"

	"github.com/canxin121/musicagg/internal/shared"
)

// rebind rewrites a query written with "?" placeholders and the ANSI
// double-quoted "order" identifier (order is a reserved word in every
// dialect this package supports) into the target dialect's native syntax:
// SQLite and PostgreSQL both accept `"order"` as written; MySQL (with
// ANSI_QUOTES off, the server default) only recognizes backtick-quoted
// identifiers, so `"order"` there is parsed as a string literal and fails
// with a syntax error. PostgreSQL additionally needs "?" rewritten to
// positional "$1", "$2", ….
func rebind(dialect shared.Dialect, query string) string {
	if dialect == shared.DialectMySQL {
		query = strings.ReplaceAll(query, `"order"`, "`order`")
	}

	if dialect != shared.DialectPostgres {
		return query
	}

	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}
