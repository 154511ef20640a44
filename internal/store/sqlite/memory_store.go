// Package sqlite implements store.Store on top of modernc.org/sqlite with
// an FTS5 mirror table and a single-writer, WAL-mode connection pool.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"net/url"
	"os"
	"time"

	_ "modernc.org/sqlite" // SQLite driver

	"github.com/vestige-mem/vestige/internal/store"
)

// Store implements store.Store using SQLite + FTS5.
type Store struct {
	db *sql.DB
	dsnPath string
}

// New opens a SQLite database at dsn, enabling WAL mode and running the
// embedded schema. If the initial open fails due to a stale WAL left
// behind by a crashed process, it retries once after clearing it.
func New(dsn string) (*Store, error) {
	s, err := open(dsn)
	if err == nil {
		return s, nil
	}
	if !isRecoverableWALError(err) {
		return nil, err
	}
	path := dbPathFromDSN(dsn)
	if path == "" || path == ":memory:" || !isWALStale(path) {
		return nil, err
	}
	removeStaleWAL(path)
	s, retryErr := open(dsn)
	if retryErr != nil {
		return nil, fmt.Errorf("sqlite: failed after WAL recovery: %w (original: %v)", retryErr, err)
	}
	log.Printf("sqlite: recovered from stale WAL files for %s", path)
	return s, nil
}

func open(dsn string) (*Store, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("sqlite: open: %w", err)
	}

	// SQLite allows exactly one writer; a single connection serializes
	// every statement, reads included, so callers never see SQLITE_BUSY.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA foreign_keys=ON",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("sqlite: %s: %w", pragma, err)
		}
	}

	if _, err := db.Exec(Schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlite: create schema: %w", err)
	}

	return &Store{db: db, dsnPath: dbPathFromDSN(dsn)}, nil
}

func dbPathFromDSN(dsn string) string {
	if u, err := url.Parse(dsn); err == nil && u.Path != "" {
		return u.Path
	}
	return dsn
}

func isWALStale(path string) bool {
	info, err := os.Stat(path + "-wal")
	if err != nil {
		return false
	}
	return time.Since(info.ModTime()) > 5*time.Second
}

func removeStaleWAL(path string) {
	os.Remove(path + "-wal")
	os.Remove(path + "-shm")
}

func isRecoverableWALError(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return contains(msg, "database disk image is malformed") || contains(msg, "locked")
}

func contains(s, substr string) bool {
	return len(s) >= len(substr) && (func() bool {
		for i := 0; i+len(substr) <= len(s); i++ {
			if s[i:i+len(substr)] == substr {
				return true
			}
		}
		return false
	})()
}

// Close releases the underlying database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

// DB exposes the underlying *sql.DB for operational tooling (backups,
// ad-hoc diagnostics) that needs to issue statements outside the
// store.Store interface, such as VACUUM INTO.
func (s *Store) DB() *sql.DB {
	return s.db
}

// Path returns the filesystem path the store was opened against, or
// ":memory:" / "" for in-memory and non-file DSNs.
func (s *Store) Path() string {
	return s.dsnPath
}

var _ store.Store = (*Store)(nil)
