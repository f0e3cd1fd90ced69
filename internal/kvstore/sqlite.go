// internal/kvstore/sqlite.go
//
// SQLite-backed Store implementation.
// Responsibilities:
//   - Opening the database file with safe defaults (WAL, busy timeout).
//   - Creating the single kv table if missing (idempotent).
//   - Upsert/read/delete of string values.
//
// A single table is enough here: the client only persists a handful of keys
// (credential, correlation ids, one recovery snapshot).

package kvstore

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "github.com/mattn/go-sqlite3"
	"github.com/rs/zerolog/log"
)

type sqliteStore struct {
	db *sql.DB
}

// OpenSQLite opens (and creates if missing) a SQLite-backed Store at path.
//
// - Ensures the parent directory exists for relative paths (e.g. ./data/uncrypt.db).
// - Configures busy timeout and WAL journaling mode.
func OpenSQLite(path string) (Store, error) {
	dir := filepath.Dir(path)
	if dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("mkdir %s: %w", dir, err)
		}
	}

	db, err := sql.Open("sqlite3", path+"?_busy_timeout=5000&_journal_mode=WAL")
	if err != nil {
		return nil, err
	}
	if _, err := db.Exec(`PRAGMA journal_mode = WAL;`); err != nil {
		return nil, fmt.Errorf("set pragmas: %w", err)
	}
	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS kv (
		key   TEXT PRIMARY KEY,
		value TEXT NOT NULL
	);`); err != nil {
		return nil, fmt.Errorf("create kv table: %w", err)
	}
	log.Debug().Str("path", path).Msg("opened sqlite kv store")
	return &sqliteStore{db: db}, nil
}

func (s *sqliteStore) Get(key string) (string, bool, error) {
	var v string
	err := s.db.QueryRow(`SELECT value FROM kv WHERE key=?`, key).Scan(&v)
	if err == sql.ErrNoRows {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return v, true, nil
}

func (s *sqliteStore) Set(key, value string) error {
	_, err := s.db.Exec(`INSERT INTO kv(key, value) VALUES(?,?)
		ON CONFLICT(key) DO UPDATE SET value=excluded.value`, key, value)
	return err
}

func (s *sqliteStore) Delete(key string) error {
	_, err := s.db.Exec(`DELETE FROM kv WHERE key=?`, key)
	return err
}

func (s *sqliteStore) Clear() error {
	_, err := s.db.Exec(`DELETE FROM kv`)
	return err
}

// Close releases the underlying database handle.
func (s *sqliteStore) Close() error { return s.db.Close() }
