// Package sqlite owns the embedded database behind the audio store:
// connection lifecycle, schema versioning and record persistence.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
	_ "modernc.org/sqlite"

	"github.com/voxkeep/voxkeep/internal/retry"
)

// ConnState tracks the lifecycle of the database handle.
type ConnState int32

const (
	StateClosed ConnState = iota
	StateOpening
	StateOpen
	StateStale
)

func (s ConnState) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpening:
		return "opening"
	case StateOpen:
		return "open"
	case StateStale:
		return "stale"
	default:
		return "unknown"
	}
}

// Client hands out a usable database handle while hiding open, retry
// and staleness handling from callers. Each process owns its own
// Client; handles are never shared across processes.
type Client struct {
	path   string
	logger *zap.Logger
	policy retry.Policy

	mu    sync.Mutex
	db    *sql.DB
	state ConnState

	// Concurrent callers hitting a closed client share one in-flight
	// open instead of racing to open independent connections.
	opening singleflight.Group
}

// NewClient creates a lifecycle manager for the database at path. The
// database is opened lazily on first use.
func NewClient(path string, logger *zap.Logger) (*Client, error) {
	if path == "" {
		return nil, fmt.Errorf("database path is required")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create database directory: %w", err)
	}
	return &Client{
		path:   path,
		logger: logger,
		policy: retry.DefaultPolicy,
		state:  StateClosed,
	}, nil
}

// Conn returns an open database handle, probing a cached handle for
// staleness first. A failed probe discards the handle and reopens
// transparently; callers only see an error once retries are exhausted.
func (c *Client) Conn(ctx context.Context) (*sql.DB, error) {
	c.mu.Lock()
	db := c.db
	state := c.state
	c.mu.Unlock()

	if state == StateOpen && db != nil {
		if err := c.probe(ctx, db); err == nil {
			return db, nil
		}
		c.logger.Warn("Staleness probe failed, reopening database",
			zap.String("path", c.path))
		c.invalidate(db)
	}

	return c.open(ctx)
}

// Reopen forcibly closes the current handle and opens a fresh one.
func (c *Client) Reopen(ctx context.Context) (*sql.DB, error) {
	c.mu.Lock()
	db := c.db
	c.mu.Unlock()
	if db != nil {
		c.invalidate(db)
	}
	return c.open(ctx)
}

// Invalidate reacts to an external version-change signal from another
// writer: the handle is closed immediately so the next caller reopens
// against the new schema.
func (c *Client) Invalidate() {
	c.mu.Lock()
	db := c.db
	c.mu.Unlock()
	if db != nil {
		c.invalidate(db)
	}
}

// State reports the current lifecycle state.
func (c *Client) State() ConnState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Close releases the database handle.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.db == nil {
		return nil
	}
	err := c.db.Close()
	c.db = nil
	c.state = StateClosed
	return err
}

// probe runs a cheap read-only statement to verify a cached handle is
// still usable before trusting it for real work.
func (c *Client) probe(ctx context.Context, db *sql.DB) error {
	var one int
	return db.QueryRowContext(ctx, "SELECT 1").Scan(&one)
}

func (c *Client) invalidate(db *sql.DB) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.db == db && c.db != nil {
		_ = c.db.Close()
		c.db = nil
		c.state = StateClosed
	}
}

// open establishes a connection, applying the bounded retry policy.
// Concurrent opens are deduplicated: every waiter receives the same
// eventual handle or the same eventual error.
func (c *Client) open(ctx context.Context) (*sql.DB, error) {
	v, err, _ := c.opening.Do("open", func() (interface{}, error) {
		c.mu.Lock()
		if c.state == StateOpen && c.db != nil {
			db := c.db
			c.mu.Unlock()
			return db, nil
		}
		c.state = StateOpening
		c.mu.Unlock()

		var db *sql.DB
		openErr := c.policy.Do(ctx, func(ctx context.Context) error {
			var err error
			db, err = c.openOnce(ctx)
			return err
		})
		c.mu.Lock()
		defer c.mu.Unlock()
		if openErr != nil {
			c.state = StateClosed
			return nil, openErr
		}
		c.db = db
		c.state = StateOpen
		return db, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*sql.DB), nil
}

// openOnce performs a single open attempt: pragmas, schema migration
// and the corruption check.
func (c *Client) openOnce(ctx context.Context) (*sql.DB, error) {
	db, err := sql.Open("sqlite", c.path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	// SQLite allows one writer at a time; a larger pool only invites
	// SQLITE_BUSY.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := applyPragmas(ctx, db); err != nil {
		_ = db.Close()
		return nil, err
	}

	corrupt, err := missingRecordTable(ctx, db)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	if corrupt {
		// The audios table is gone even though the schema version says
		// it was created. The whole file is deleted and recreated
		// rather than partially repaired, trading stored data for a
		// known-good schema.
		c.logger.Error("Record table missing, rebuilding database",
			zap.String("path", c.path))
		_ = db.Close()
		if err := c.removeDatabaseFiles(); err != nil {
			return nil, fmt.Errorf("rebuild database: %w", err)
		}
		db, err = sql.Open("sqlite", c.path)
		if err != nil {
			return nil, fmt.Errorf("reopen sqlite after rebuild: %w", err)
		}
		db.SetMaxOpenConns(1)
		db.SetMaxIdleConns(1)
		if err := applyPragmas(ctx, db); err != nil {
			_ = db.Close()
			return nil, err
		}
	}

	if err := migrate(ctx, db, c.logger); err != nil {
		_ = db.Close()
		return nil, err
	}

	c.logger.Info("Database connection established",
		zap.String("path", c.path))
	return db, nil
}

func (c *Client) removeDatabaseFiles() error {
	for _, suffix := range []string{"", "-wal", "-shm"} {
		if err := os.Remove(c.path + suffix); err != nil && !os.IsNotExist(err) {
			return err
		}
	}
	return nil
}

func applyPragmas(ctx context.Context, db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA foreign_keys = ON",
	}
	for _, pragma := range pragmas {
		if _, err := db.ExecContext(ctx, pragma); err != nil {
			return fmt.Errorf("apply %q: %w", pragma, err)
		}
	}
	return nil
}

// missingRecordTable reports a database whose schema version claims the
// audios table exists while the table itself is absent.
func missingRecordTable(ctx context.Context, db *sql.DB) (bool, error) {
	var version int
	if err := db.QueryRowContext(ctx, "PRAGMA user_version").Scan(&version); err != nil {
		return false, fmt.Errorf("read user_version: %w", err)
	}
	if version == 0 {
		return false, nil
	}
	var count int
	err := db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM sqlite_master WHERE type = 'table' AND name = 'audios'`,
	).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("check record table: %w", err)
	}
	return count == 0, nil
}
