// Package badger provides a BadgerDB-backed journal store.
package badger

import (
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/dgraph-io/badger/v4"

	"github.com/felixgeelhaar/toolchanger/domain/event"
)

// MemoryDSN selects an in-memory database.
const MemoryDSN = ":memory:"

// ErrConnectionFailed is returned when the database cannot be opened.
var ErrConnectionFailed = fmt.Errorf("badger: %w", event.ErrConnectionFailed)

// Config configures a journal database.
type Config struct {
	Dir      string
	InMemory bool

	// SyncWrites fsyncs every append.
	SyncWrites bool

	ValueLogFileSize int64

	// GCInterval between value log collections. Zero disables GC.
	GCInterval     time.Duration
	GCDiscardRatio float64

	KeyPrefix string
}

// DefaultConfig returns an on-disk configuration without a directory.
func DefaultConfig() Config {
	return Config{
		ValueLogFileSize: 64 << 20,
		GCInterval:       5 * time.Minute,
		GCDiscardRatio:   0.5,
	}
}

// ConfigFromDSN maps a journal DSN to a Config.
//
// The DSN is ":memory:" or a directory, optionally followed by query
// parameters: sync (bool), gc (duration, "0" disables), prefix (key prefix).
//
//	/var/lib/toolchanger/journal?sync=true&gc=10m
func ConfigFromDSN(dsn string) (Config, error) {
	cfg := DefaultConfig()

	dir, rawQuery, _ := strings.Cut(dsn, "?")
	if dir == MemoryDSN || dir == "" {
		cfg.InMemory = true
	} else {
		cfg.Dir = dir
	}
	if rawQuery == "" {
		return cfg, nil
	}

	q, err := url.ParseQuery(rawQuery)
	if err != nil {
		return cfg, fmt.Errorf("badger: parse dsn: %w", err)
	}
	if v := q.Get("sync"); v != "" {
		if cfg.SyncWrites, err = strconv.ParseBool(v); err != nil {
			return cfg, fmt.Errorf("badger: sync: %w", err)
		}
	}
	if v := q.Get("gc"); v != "" {
		if v == "0" {
			cfg.GCInterval = 0
		} else if cfg.GCInterval, err = time.ParseDuration(v); err != nil {
			return cfg, fmt.Errorf("badger: gc: %w", err)
		}
	}
	cfg.KeyPrefix = q.Get("prefix")
	return cfg, nil
}

// Option adjusts a Config.
type Option func(*Config)

// WithSyncWrites toggles synchronous writes.
func WithSyncWrites(enabled bool) Option {
	return func(c *Config) {
		c.SyncWrites = enabled
	}
}

// WithGC sets the value log GC schedule.
func WithGC(interval time.Duration, discardRatio float64) Option {
	return func(c *Config) {
		c.GCInterval = interval
		c.GCDiscardRatio = discardRatio
	}
}

// WithKeyPrefix namespaces every key.
func WithKeyPrefix(prefix string) Option {
	return func(c *Config) {
		c.KeyPrefix = prefix
	}
}

func openDB(cfg Config) (*badger.DB, error) {
	if !cfg.InMemory && cfg.Dir == "" {
		return nil, errors.Join(ErrConnectionFailed, errors.New("no directory"))
	}

	opts := badger.DefaultOptions(cfg.Dir).
		WithInMemory(cfg.InMemory).
		WithSyncWrites(cfg.SyncWrites).
		WithNumVersionsToKeep(1).
		WithLogger(nil)
	if cfg.ValueLogFileSize > 0 {
		opts = opts.WithValueLogFileSize(cfg.ValueLogFileSize)
	}

	db, err := badger.Open(opts)
	if err != nil {
		return nil, errors.Join(ErrConnectionFailed, err)
	}
	return db, nil
}
