// Package localstore is the client-side persistent object store: one SQLite
// table per collection holding JSON documents keyed by id, plus the internal
// mutation queue and a small key/value table for sync bookkeeping.
package localstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"sync"

	"github.com/rs/zerolog/log"

	_ "github.com/ncruces/go-sqlite3/driver"
	_ "github.com/ncruces/go-sqlite3/embed"
)

var (
	// ErrStoreNotReady is returned by every operation on a store that was
	// never opened or has been closed.
	ErrStoreNotReady = errors.New("localstore: store not ready")
	// ErrDuplicateKey is returned by Insert when the id already exists.
	ErrDuplicateKey = errors.New("localstore: duplicate key")
	// ErrNotFound is returned by Get when no document has the id.
	ErrNotFound = errors.New("localstore: not found")
	// ErrUnknownCollection is returned for names outside the mirrored set.
	ErrUnknownCollection = errors.New("localstore: unknown collection")
	// ErrUnknownIndex is returned by FindByIndex for undeclared fields.
	ErrUnknownIndex = errors.New("localstore: unknown index")
)

// Store is safe for concurrent use. All access goes through a single SQLite
// connection, so transactions are serialized and a read-compute-write done
// inside Update never interleaves with another writer in this process.
type Store struct {
	mu   sync.RWMutex
	db   *sql.DB
	path string
}

// Open creates (if needed) and opens the store at path.
func Open(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("localstore: create directory: %w", err)
		}
	}

	q := url.Values{}
	q.Add("_pragma", "busy_timeout(10000)")
	q.Add("_pragma", "journal_mode(wal)")
	q.Add("_pragma", "synchronous(normal)")
	q.Set("_txlock", "immediate")
	dsn := "file:" + path + "?" + q.Encode()

	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("localstore: open: %w", err)
	}
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("localstore: ping: %w", err)
	}

	if err := migrate(db); err != nil {
		_ = db.Close()
		return nil, err
	}

	log.Debug().Str("path", path).Msg("localstore: opened")
	return &Store{db: db, path: path}, nil
}

// Path returns the database file location.
func (s *Store) Path() string { return s.path }

// Close releases the database. Later calls fail with ErrStoreNotReady.
func (s *Store) Close() error {
	if s == nil {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.db == nil {
		return nil
	}
	err := s.db.Close()
	s.db = nil
	return err
}

func (s *Store) conn() (*sql.DB, error) {
	if s == nil {
		return nil, ErrStoreNotReady
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.db == nil {
		return nil, ErrStoreNotReady
	}
	return s.db, nil
}

// Update runs fn inside one transaction. fn must only use the given Tx; the
// store itself is unavailable to it until the transaction ends. Hooks added
// with Tx.AfterCommit run after a successful commit.
func (s *Store) Update(ctx context.Context, fn func(tx *Tx) error) error {
	return s.run(ctx, nil, fn)
}

// View runs fn inside a deferred read-only transaction. It takes no write
// lock, so it does not wait behind another process's Update. Writes from fn
// fail.
func (s *Store) View(ctx context.Context, fn func(tx *Tx) error) error {
	return s.run(ctx, &sql.TxOptions{ReadOnly: true}, fn)
}

func (s *Store) run(ctx context.Context, opts *sql.TxOptions, fn func(tx *Tx) error) (err error) {
	db, err := s.conn()
	if err != nil {
		return err
	}

	sqlTx, err := db.BeginTx(ctx, opts)
	if err != nil {
		return fmt.Errorf("localstore: begin: %w", err)
	}
	tx := &Tx{ex: sqlTx}

	committed := false
	defer func() {
		if !committed {
			_ = sqlTx.Rollback()
		}
	}()

	if err := fn(tx); err != nil {
		return err
	}
	if err := sqlTx.Commit(); err != nil {
		return fmt.Errorf("localstore: commit: %w", err)
	}
	committed = true

	for _, hook := range tx.afterCommit {
		hook()
	}
	return nil
}
