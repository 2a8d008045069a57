package sqlite

import (
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"

	_ "github.com/mattn/go-sqlite3"
)

// DB wraps split read/write Bun connections.
//
// The writer pool holds a single connection and opens IMMEDIATE transactions,
// so every write transaction is serialized against all other writers. The
// placement and picking code relies on that for read-check-write sequences.
type DB struct {
	WriteSQL *sql.DB
	ReadSQL  *sql.DB
	W        *bun.DB
	R        *bun.DB
}

// Options tunes connection pools.
type Options struct {
	BusyTimeout  time.Duration
	MaxReadConns int
}

var DefaultOptions = Options{
	BusyTimeout:  5 * time.Second,
	MaxReadConns: 8,
}

// OpenDB opens path with DefaultOptions.
func OpenDB(path string) (*DB, error) {
	return OpenDBWithOptions(path, DefaultOptions)
}

// OpenDBWithOptions initializes sqlite handles for immediate writer tx and pooled reads.
func OpenDBWithOptions(path string, opts Options) (*DB, error) {
	if path == "" {
		return nil, fmt.Errorf("sqlite path is required")
	}
	if opts.BusyTimeout <= 0 {
		opts.BusyTimeout = DefaultOptions.BusyTimeout
	}
	if opts.MaxReadConns <= 0 {
		opts.MaxReadConns = DefaultOptions.MaxReadConns
	}
	busy := opts.BusyTimeout.Milliseconds()

	writeDSN := fmt.Sprintf("file:%s?_foreign_keys=on&_busy_timeout=%d&_txlock=immediate", path, busy)
	readDSN := fmt.Sprintf("file:%s?_foreign_keys=on&_busy_timeout=%d&mode=ro&_query_only=1", path, busy)

	wsql, err := sql.Open("sqlite3", writeDSN)
	if err != nil {
		return nil, fmt.Errorf("open write db: %w", err)
	}
	wsql.SetMaxOpenConns(1)
	wsql.SetConnMaxLifetime(15 * time.Minute)

	// Create the file before the read-only pool tries to open it.
	if err := wsql.Ping(); err != nil {
		wsql.Close()
		return nil, fmt.Errorf("ping write db: %w", err)
	}

	rsql, err := sql.Open("sqlite3", readDSN)
	if err != nil {
		wsql.Close()
		return nil, fmt.Errorf("open read db: %w", err)
	}
	rsql.SetMaxOpenConns(opts.MaxReadConns)
	rsql.SetConnMaxIdleTime(5 * time.Minute)
	rsql.SetConnMaxLifetime(15 * time.Minute)

	if err := rsql.Ping(); err != nil && strings.Contains(err.Error(), "unable to open database file") {
		rsql.Close()
		rsql, err = sql.Open("sqlite3", fmt.Sprintf("file:%s?_foreign_keys=on&_busy_timeout=%d&_query_only=1", path, busy))
		if err != nil {
			wsql.Close()
			return nil, fmt.Errorf("open fallback read db: %w", err)
		}
	}

	if _, err := rsql.Exec("PRAGMA query_only = ON"); err != nil {
		wsql.Close()
		rsql.Close()
		return nil, fmt.Errorf("enable read query_only: %w", err)
	}

	return &DB{
		WriteSQL: wsql,
		ReadSQL:  rsql,
		W:        bun.NewDB(wsql, sqlitedialect.New()),
		R:        bun.NewDB(rsql, sqlitedialect.New()),
	}, nil
}

// Close closes read and write handles.
func (db *DB) Close() error {
	if db == nil {
		return nil
	}
	var first error
	if db.W != nil {
		if err := db.W.Close(); err != nil && first == nil {
			first = err
		}
	}
	if db.R != nil {
		if err := db.R.Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}
