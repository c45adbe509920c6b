// Package sqlite provides a SQLite-backed journal store.
package sqlite

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3" // SQLite driver

	"github.com/felixgeelhaar/toolchanger/domain/event"
)

var (
	ErrConnectionFailed = fmt.Errorf("sqlite: %w", event.ErrConnectionFailed)
	ErrMigrationFailed  = errors.New("sqlite: migration failed")
)

// Config configures a journal database.
type Config struct {
	// DSN is a go-sqlite3 data source, e.g. "file:journal.db?mode=rwc".
	DSN string

	MaxOpenConns int
	AutoMigrate  bool

	// JournalMode is applied with PRAGMA journal_mode. Empty keeps the
	// SQLite default.
	JournalMode string
	BusyTimeout time.Duration
}

// DefaultConfig returns a WAL-mode configuration writing toolchanger.db in
// the working directory.
func DefaultConfig() Config {
	return Config{
		DSN:          "file:toolchanger.db?mode=rwc",
		MaxOpenConns: 4,
		AutoMigrate:  true,
		JournalMode:  "WAL",
		BusyTimeout:  5 * time.Second,
	}
}

// ConfigFromDSN maps a journal DSN to a Config. Plain paths become
// read-write-create file URIs and ":memory:" a shared in-memory database.
func ConfigFromDSN(dsn string) Config {
	cfg := DefaultConfig()
	switch {
	case dsn == "":
	case dsn == ":memory:":
		cfg.DSN = "file::memory:?cache=shared"
		cfg.JournalMode = ""
	case strings.HasPrefix(dsn, "file:"):
		cfg.DSN = dsn
	default:
		cfg.DSN = "file:" + dsn + "?mode=rwc"
	}
	return cfg
}

// Option adjusts a Config.
type Option func(*Config)

// WithBusyTimeout sets how long writers wait on a locked database.
func WithBusyTimeout(d time.Duration) Option {
	return func(c *Config) {
		c.BusyTimeout = d
	}
}

// WithJournalMode sets the SQLite journal mode.
func WithJournalMode(mode string) Option {
	return func(c *Config) {
		c.JournalMode = mode
	}
}

// WithMaxOpenConns caps the connection pool.
func WithMaxOpenConns(n int) Option {
	return func(c *Config) {
		c.MaxOpenConns = n
	}
}

func openDB(cfg Config) (*sql.DB, error) {
	db, err := sql.Open("sqlite3", cfg.DSN)
	if err != nil {
		return nil, errors.Join(ErrConnectionFailed, err)
	}
	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}

	var pragmas []string
	if cfg.JournalMode != "" {
		pragmas = append(pragmas, "PRAGMA journal_mode="+cfg.JournalMode)
	}
	if cfg.BusyTimeout > 0 {
		pragmas = append(pragmas, fmt.Sprintf("PRAGMA busy_timeout=%d", cfg.BusyTimeout.Milliseconds()))
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			_ = db.Close()
			return nil, errors.Join(ErrMigrationFailed, err)
		}
	}

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, errors.Join(ErrConnectionFailed, err)
	}
	return db, nil
}
