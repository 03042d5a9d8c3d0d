// Package storage provides the key-value backends bill history persists to.
// Supports multiple backends: memory, file, SQLite, PostgreSQL, Redis.
package storage

import (
	"context"
	"errors"
	"fmt"
	"regexp"
)

// Backend is a storage backend type
type Backend string

const (
	BackendMemory   Backend = "memory"
	BackendFile     Backend = "file"
	BackendSQLite   Backend = "sqlite"
	BackendPostgres Backend = "postgres"
	BackendRedis    Backend = "redis"
)

// IsValid checks if the backend is a known backend
func (b Backend) IsValid() bool {
	switch b {
	case BackendMemory, BackendFile, BackendSQLite, BackendPostgres, BackendRedis:
		return true
	default:
		return false
	}
}

// ErrNotFound is returned by Get when the key holds no value
var ErrNotFound = errors.New("key not found")

// KV is the persistent store boundary. Values are opaque strings.
// Implementations must be safe for concurrent use.
type KV interface {
	// Get returns the value stored under key, or ErrNotFound
	Get(ctx context.Context, key string) (string, error)

	// Set stores value under key, replacing any previous value
	Set(ctx context.Context, key, value string) error

	// Remove deletes key. Removing an absent key is not an error.
	Remove(ctx context.Context, key string) error

	// Close releases any resources held by the backend
	Close() error
}

// Updater is implemented by backends that can read-modify-write one key
// atomically, including against other processes using the same backend.
type Updater interface {
	// Update passes the current value (found is false when the key is
	// absent) to fn and stores what fn returns. Nothing is written when fn
	// fails.
	Update(ctx context.Context, key string, fn func(current string, found bool) (string, error)) error
}

// Config selects and configures a backend
type Config struct {
	// Backend is one of memory, file, sqlite, postgres, redis
	Backend Backend `json:"backend" mapstructure:"backend"`

	// Directory holds one file per key for the file backend
	Directory string `json:"directory" mapstructure:"directory"`

	// Path is the SQLite database file
	Path string `json:"path" mapstructure:"path"`

	// DSN is the PostgreSQL connection string
	DSN string `json:"dsn" mapstructure:"dsn"`

	// Table is the SQL table name for the sqlite and postgres backends
	Table string `json:"table" mapstructure:"table"`

	// Redis contains Redis connection settings
	Redis RedisConfig `json:"redis" mapstructure:"redis"`
}

// Validate checks that the selected backend has what it needs
func (c Config) Validate() error {
	if !c.Backend.IsValid() {
		return fmt.Errorf("unknown storage backend %q", c.Backend)
	}
	if c.Table != "" && !tableNamePattern.MatchString(c.Table) {
		return fmt.Errorf("invalid table name %q", c.Table)
	}
	switch c.Backend {
	case BackendFile:
		if c.Directory == "" {
			return fmt.Errorf("file backend requires a directory")
		}
	case BackendSQLite:
		if c.Path == "" {
			return fmt.Errorf("sqlite backend requires a path")
		}
	case BackendPostgres:
		if c.DSN == "" {
			return fmt.Errorf("postgres backend requires a dsn")
		}
	case BackendRedis:
		if c.Redis.Host == "" {
			return fmt.Errorf("redis backend requires a host")
		}
	}
	return nil
}

// Open creates the backend described by cfg
func Open(ctx context.Context, cfg Config) (KV, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	switch cfg.Backend {
	case BackendMemory:
		return NewMemoryKV(), nil
	case BackendFile:
		return NewFileKV(cfg.Directory)
	case BackendSQLite:
		return NewSQLiteKV(ctx, cfg.Path, cfg.Table)
	case BackendPostgres:
		return NewPostgresKV(ctx, cfg.DSN, cfg.Table)
	case BackendRedis:
		return NewRedisKV(ctx, cfg.Redis)
	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.Backend)
	}
}

const defaultTable = "kv_store"

// tableNamePattern is a plain SQL identifier; table names are interpolated into queries
var tableNamePattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

func tableName(table string) string {
	if table == "" {
		return defaultTable
	}
	return table
}
