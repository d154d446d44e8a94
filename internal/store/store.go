package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	_ "modernc.org/sqlite"

	"github.com/mesh-intelligence/porter/pkg/types"
)

// WorkingDBName is the filename of the working database inside DataDir.
const WorkingDBName = "porter.db"

// Store owns the working database connection. The working database holds
// staging, mapping, target, and progress tables; the legacy source
// database is attached read-only as schema "src" when configured.
type Store struct {
	mu        sync.Mutex
	db        *sql.DB
	hasSource bool
	closed    bool
}

// Open creates DataDir if needed, opens (or creates) the working
// database, ensures the schema exists, and attaches the source database
// read-only when cfg.SourceDB is set.
//
// A missing or unreadable source file is a connectivity failure and
// returns ErrSourceUnavailable; the working database is left untouched,
// so the caller may retry safely.
func Open(cfg types.Config) (*Store, error) {
	cfg = cfg.WithDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}

	dbPath := filepath.Join(cfg.DataDir, WorkingDBName)
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open working database: %w", err)
	}

	// ATTACH is per-connection state, so the pool must stay at one
	// connection or src.* queries would intermittently fail.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA busy_timeout = 5000;"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set busy timeout: %w", err)
	}

	for _, ddl := range schemaDDL {
		if _, err := db.Exec(ddl); err != nil {
			db.Close()
			return nil, fmt.Errorf("create schema: %w", err)
		}
	}
	for _, ddl := range indexDDL {
		if _, err := db.Exec(ddl); err != nil {
			db.Close()
			return nil, fmt.Errorf("create indexes: %w", err)
		}
	}

	s := &Store{db: db}

	if cfg.SourceDB != "" {
		if err := s.attachSource(cfg.SourceDB); err != nil {
			db.Close()
			return nil, err
		}
	}

	return s, nil
}

// attachSource attaches the legacy database read-only as schema "src".
func (s *Store) attachSource(path string) error {
	if _, err := os.Stat(path); err != nil {
		return fmt.Errorf("%w: %v", types.ErrSourceUnavailable, err)
	}
	uri := "file:" + filepath.ToSlash(path) + "?mode=ro"
	if _, err := s.db.Exec("ATTACH DATABASE ? AS src", uri); err != nil {
		return fmt.Errorf("%w: attach: %v", types.ErrSourceUnavailable, err)
	}
	s.hasSource = true
	return nil
}

// DB exposes the underlying connection for phase packages.
func (s *Store) DB() *sql.DB {
	return s.db
}

// HasSource reports whether a source database is attached.
func (s *Store) HasSource() bool {
	return s.hasSource
}

// RequireSource returns ErrSourceNotAttached when no source database was
// configured. Phases that read src.* call this before issuing queries.
func (s *Store) RequireSource() error {
	if !s.hasSource {
		return types.ErrSourceNotAttached
	}
	return nil
}

// Close releases the database connection. Close is idempotent.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true
	if s.db != nil {
		if err := s.db.Close(); err != nil {
			return fmt.Errorf("close working database: %w", err)
		}
	}
	return nil
}

// ExecTx runs fn inside a single transaction, committing on nil error
// and rolling back otherwise.
func (s *Store) ExecTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := fn(tx); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}
