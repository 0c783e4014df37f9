package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"

	_ "modernc.org/sqlite"
)

// ErrNotFound is returned by mutations that target a row that does not exist.
var ErrNotFound = errors.New("not found")

// ErrClosed is returned by Lazy.Get after Close.
var ErrClosed = errors.New("store closed")

// DB wraps a sql.DB connection to the personaflow SQLite database.
// Every write goes through writeMu so concurrent events for the same user
// cannot interleave a read-modify-write.
type DB struct {
	*sql.DB
	Path    string
	writeMu sync.Mutex
}

// DefaultDBPath returns the default database path: ~/.personaflow/personaflow.db
func DefaultDBPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("get home dir: %w", err)
	}
	return filepath.Join(home, ".personaflow", "personaflow.db"), nil
}

// Open opens (or creates) the SQLite database at the given path,
// configures pragmas, and runs migrations.
func Open(path string) (*DB, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create db dir: %w", err)
	}

	sqlDB, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	db := &DB{DB: sqlDB, Path: path}
	if err := db.configurePragmas(); err != nil {
		sqlDB.Close()
		return nil, err
	}
	if err := db.migrate(); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return db, nil
}

// OpenMemory opens an in-memory SQLite database for testing.
func OpenMemory() (*DB, error) {
	sqlDB, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		return nil, fmt.Errorf("open sqlite memory: %w", err)
	}
	// Each connection to :memory: is its own database.
	sqlDB.SetMaxOpenConns(1)

	db := &DB{DB: sqlDB, Path: ":memory:"}
	if err := db.configurePragmas(); err != nil {
		sqlDB.Close()
		return nil, err
	}
	if err := db.migrate(); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return db, nil
}

func (db *DB) configurePragmas() error {
	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA busy_timeout=5000",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			return fmt.Errorf("pragma %q: %w", p, err)
		}
	}
	return nil
}

// Opener produces a ready database. Open and OpenMemory both fit after
// closing over their arguments.
type Opener func() (*DB, error)

// Lazy defers opening the database until first use. Concurrent first
// callers race on a double-checked lock so exactly one open and migration
// runs; a failed open leaves the slot empty for the next caller. Once
// closed, the handle never opens again.
type Lazy struct {
	open   Opener
	mu     sync.Mutex
	db     atomic.Pointer[DB]
	closed bool
}

// NewLazy returns a Lazy handle for the database file at path.
func NewLazy(path string) *Lazy {
	return NewLazyWith(func() (*DB, error) { return Open(path) })
}

// NewLazyWith returns a Lazy handle backed by a custom opener.
func NewLazyWith(open Opener) *Lazy {
	return &Lazy{open: open}
}

// Get returns the shared connection, opening it on first use.
func (l *Lazy) Get(ctx context.Context) (*DB, error) {
	if db := l.db.Load(); db != nil {
		return db, nil
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if db := l.db.Load(); db != nil {
		return db, nil
	}
	if l.closed {
		return nil, ErrClosed
	}

	db, err := l.open()
	if err != nil {
		return nil, fmt.Errorf("lazy open: %w", err)
	}
	l.db.Store(db)
	return db, nil
}

// Opened reports whether the connection has been established.
func (l *Lazy) Opened() bool {
	return l.db.Load() != nil
}

// Close closes the connection if it was ever opened. Later Gets fail with
// ErrClosed.
func (l *Lazy) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.closed = true
	db := l.db.Swap(nil)
	if db == nil {
		return nil
	}
	return db.Close()
}

// write runs fn while holding the write lock.
func (db *DB) write(fn func() error) error {
	db.writeMu.Lock()
	defer db.writeMu.Unlock()
	return fn()
}

// withTx runs fn in a transaction under the write lock, rolling back on error.
func (db *DB) withTx(fn func(tx *sql.Tx) error) error {
	return db.write(func() error {
		tx, err := db.Begin()
		if err != nil {
			return fmt.Errorf("begin tx: %w", err)
		}
		if err := fn(tx); err != nil {
			tx.Rollback()
			return err
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("commit tx: %w", err)
		}
		return nil
	})
}
