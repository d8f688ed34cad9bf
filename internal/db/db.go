// Package db owns the SQLite database that records pipeline assets and
// their checkpoints. The schema is managed by embedded golang-migrate
// migrations.
package db

import (
	"database/sql"
	"embed"
	"fmt"
	"io/fs"

	_ "modernc.org/sqlite"
)

//go:embed migrations/*.sql
var migrationsRoot embed.FS

// pragmas are applied to every connection opened through OpenDB.
var pragmas = []string{
	"PRAGMA journal_mode=WAL",
	"PRAGMA busy_timeout=5000",
	"PRAGMA synchronous=NORMAL",
	"PRAGMA temp_store=MEMORY",
	"PRAGMA foreign_keys=ON",
}

type DB struct {
	*sql.DB
}

// OpenDB opens the database at path and applies the connection pragmas.
// The schema is not touched; call MigrateUp for that.
func OpenDB(path string) (*DB, error) {
	sqlDB, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	// WAL tolerates concurrent readers but SQLite still has a single writer.
	sqlDB.SetMaxOpenConns(1)
	for _, p := range pragmas {
		if _, err := sqlDB.Exec(p); err != nil {
			sqlDB.Close()
			return nil, fmt.Errorf("failed to execute %q: %w", p, err)
		}
	}
	return &DB{sqlDB}, nil
}

// NewDB opens the database at path and brings its schema up to date.
func NewDB(path string) (*DB, error) {
	database, err := OpenDB(path)
	if err != nil {
		return nil, err
	}
	if err := database.MigrateUp(MigrationsFS()); err != nil {
		database.Close()
		return nil, err
	}
	return database, nil
}

// MigrationsFS returns the embedded migrations rooted so that the .sql
// files sit at the top level.
func MigrationsFS() fs.FS {
	sub, err := fs.Sub(migrationsRoot, "migrations")
	if err != nil {
		// embed guarantees the directory exists.
		panic(err)
	}
	return sub
}
