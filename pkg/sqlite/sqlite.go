// Package sqlite opens the analysis history database.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

const (
	// MemoryPath opens a private in-memory database.
	MemoryPath = ":memory:"

	DefaultBusyTimeout = 5 * time.Second
)

type options struct {
	busyTimeout  time.Duration
	maxOpenConns int
}

type Option func(*options)

// WithBusyTimeout sets how long a writer waits on a locked database before
// failing with SQLITE_BUSY. Batch runs save results concurrently.
func WithBusyTimeout(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.busyTimeout = d
		}
	}
}

func WithMaxOpenConns(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.maxOpenConns = n
		}
	}
}

// Open opens (creating if needed) the database at dbPath. Pragmas travel in
// the DSN so every pooled connection gets them, not only the first one.
func Open(dbPath string, opts ...Option) (*sql.DB, error) {
	dbPath = strings.TrimSpace(dbPath)
	if dbPath == "" {
		return nil, fmt.Errorf("db path is required")
	}
	o := options{busyTimeout: DefaultBusyTimeout}
	for _, opt := range opts {
		opt(&o)
	}

	memory := dbPath == MemoryPath
	if memory {
		// each connection would get its own empty database
		o.maxOpenConns = 1
	} else if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("create db dir: %w", err)
	}

	db, err := sql.Open("sqlite3", dsn(dbPath, o.busyTimeout))
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	if o.maxOpenConns > 0 {
		db.SetMaxOpenConns(o.maxOpenConns)
	}

	ctx, cancel := context.WithTimeout(context.Background(), o.busyTimeout)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("open sqlite %s: %w", dbPath, err)
	}
	return db, nil
}

func dsn(dbPath string, busyTimeout time.Duration) string {
	q := url.Values{}
	q.Set("_busy_timeout", strconv.FormatInt(busyTimeout.Milliseconds(), 10))
	q.Set("_foreign_keys", "1")
	// timestamps are written in UTC
	q.Set("_loc", "UTC")
	if dbPath != MemoryPath {
		q.Set("_journal_mode", "WAL")
		q.Set("_synchronous", "NORMAL")
		// take the write lock at BEGIN so concurrent savers queue on the
		// busy timeout instead of failing on lock upgrade
		q.Set("_txlock", "immediate")
	}
	return dbPath + "?" + q.Encode()
}
