// Package sqlite implements the storage interface using SQLite.
//
// The package is split into focused files:
//
//   - store.go: Store struct, Open constructor, transaction lease helper
//   - schema.go: database schema
//   - users.go, projects.go, issues.go, sprints.go, comments.go,
//     notifications.go, settings.go, activity.go: per-entity operations
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"

	// SQLite driver
	_ "modernc.org/sqlite"
)

// txLease bounds how long a write transaction may hold its connection.
// Leases released late show up in the observer rather than as console noise.
const txLease = 10 * time.Second

// Store implements the storage.Storage interface using SQLite.
type Store struct {
	db         *sql.DB
	path       string
	txObserver func(time.Duration)
}

// Option configures a Store.
type Option func(*Store)

// WithTxObserver installs a hook that receives the hold duration of every
// write transaction, on all exit paths. Used for telemetry.
func WithTxObserver(fn func(time.Duration)) Option {
	return func(s *Store) { s.txObserver = fn }
}

// Open opens (creating if necessary) a SQLite database at path and ensures
// the schema exists. Pass ":memory:" for an in-memory database (tests).
func Open(path string, opts ...Option) (*Store, error) {
	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_pragma=foreign_keys(1)", path)
	if path == ":memory:" {
		dsn = "file::memory:?_pragma=foreign_keys(1)"
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// An in-memory database exists per connection; pin the pool to one.
	if path == ":memory:" {
		db.SetMaxOpenConns(1)
	}

	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	s := &Store{db: db, path: path}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Path returns the database file path.
func (s *Store) Path() string {
	return s.path
}

// withTx runs fn inside a write transaction on a leased connection.
// The lease is bounded by txLease and released on every exit path
// (commit, rollback, context expiry); the hold time is reported to the
// observer when one is installed. Busy errors at begin/commit are retried
// with exponential backoff; errors from fn itself are not retried.
func (s *Store) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	start := time.Now()
	if s.txObserver != nil {
		defer func() { s.txObserver(time.Since(start)) }()
	}

	leaseCtx, cancel := context.WithTimeout(ctx, txLease)
	defer cancel()

	attempt := func() error {
		tx, err := s.db.BeginTx(leaseCtx, nil)
		if err != nil {
			return classifyBusy(err)
		}
		if err := fn(tx); err != nil {
			_ = tx.Rollback()
			return backoff.Permanent(err)
		}
		if err := tx.Commit(); err != nil {
			return classifyBusy(err)
		}
		return nil
	}

	bo := backoff.WithContext(
		backoff.NewExponentialBackOff(backoff.WithMaxElapsedTime(2*time.Second)),
		leaseCtx,
	)
	return backoff.Retry(attempt, bo)
}

// classifyBusy keeps lock-contention errors retryable and marks everything
// else permanent so backoff gives up immediately.
func classifyBusy(err error) error {
	if isBusy(err) {
		return err
	}
	return backoff.Permanent(err)
}

func isBusy(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "SQLITE_BUSY") || strings.Contains(msg, "database is locked")
}

// isUniqueViolation reports whether err is a SQLite uniqueness constraint
// failure, used to surface storage.ErrConflict.
func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "UNIQUE constraint failed") || strings.Contains(msg, "SQLITE_CONSTRAINT_UNIQUE")
}
