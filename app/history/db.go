// Package history persists one row per producer sync pass so restarts
// do not lose the operational record the API reports from.
package history

import (
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"
)

type DB struct {
	*sql.DB
}

// Open opens (creating if needed) the history database. The connection
// pool is capped at one: the store sees a single writer and sqlite
// rewards not pretending otherwise.
func Open(path string) (*DB, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open history database: %w", err)
	}
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping history database: %w", err)
	}

	return &DB{DB: db}, nil
}
