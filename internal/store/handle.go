// Package store implements the persistence layer: schema, migrations, CRUD,
// ordering maintenance, and the cross-dialect unique-conflict reconciliation
// protocol used when persisting a [models.MusicAggregator].
package store

import (
	"database/sql"
	"fmt"
	"sync"

	"github.com/canxin121/musicagg/internal/shared"
)

// handle bundles the open connection with the dialect it was opened under;
// CRUD code needs the dialect to pick placeholder syntax and to classify
// conflict errors.
type handle struct {
	db      *sql.DB
	dialect shared.Dialect
}

var (
	mu      sync.RWMutex
	current *handle
)

// SetDB closes any prior handle, opens url, runs migrations, and installs
// the new connection as the process-wide handle (§4.4.3).
func SetDB(url string) error {
	mu.Lock()
	defer mu.Unlock()

	if current != nil {
		current.db.Close()
		current = nil
	}

	db, dialect, err := shared.NewDatabase(url)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}

	if err := shared.RunMigrations(db, dialect); err != nil {
		db.Close()
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	current = &handle{db: db, dialect: dialect}
	return nil
}

// GetDB returns the process-wide handle, or [shared.ErrDbNotInitialised] if
// [SetDB] has not been called.
func GetDB() (*sql.DB, shared.Dialect, error) {
	mu.RLock()
	defer mu.RUnlock()

	if current == nil {
		return nil, "", shared.ErrDbNotInitialised
	}
	return current.db, current.dialect, nil
}

// ReinitDB drops and recreates every table on the current handle.
func ReinitDB() error {
	mu.Lock()
	defer mu.Unlock()

	if current == nil {
		return shared.ErrDbNotInitialised
	}

	if err := shared.RollbackMigration(current.db, current.dialect); err != nil {
		return fmt.Errorf("failed to roll back schema: %w", err)
	}
	if err := shared.RunMigrations(current.db, current.dialect); err != nil {
		return fmt.Errorf("failed to recreate schema: %w", err)
	}
	return nil
}

// CloseDB closes the process-wide handle, if any. Primarily used by tests to
// release an in-memory SQLite connection between cases.
func CloseDB() error {
	mu.Lock()
	defer mu.Unlock()

	if current == nil {
		return nil
	}
	err := current.db.Close()
	current = nil
	return err
}
