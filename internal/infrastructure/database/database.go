package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"time"

	_ "github.com/mattn/go-sqlite3" // SQLite driver
)

const (
	dirPermissions  = 0750
	filePermissions = 0600

	pingTimeout     = 5 * time.Second
	connMaxIdleTime = 30 * time.Minute
)

// ErrSchemaOutdated is reported by HealthCheck while migrations are pending.
var ErrSchemaOutdated = errors.New("database: schema has pending migrations")

// DB is the DEWHOME store: one SQLite file holding devices, actions,
// executions and the audit log.
type DB struct {
	*sql.DB
	path string
}

// Config maps the database section of config.yaml.
type Config struct {
	// Path of the SQLite file. Missing parent directories are created.
	Path string

	WALMode bool

	// BusyTimeout in seconds.
	BusyTimeout int
}

// dsn builds the go-sqlite3 connection string for cfg.
func dsn(cfg Config) string {
	q := url.Values{}
	q.Set("_busy_timeout", strconv.Itoa(cfg.BusyTimeout*int(time.Second/time.Millisecond)))
	q.Set("_foreign_keys", "on")
	if cfg.WALMode {
		q.Set("_journal_mode", "WAL")
		q.Set("_synchronous", "NORMAL")
	}
	return "file:" + cfg.Path + "?" + q.Encode()
}

// Open opens (creating if needed) the SQLite file at cfg.Path and pings it.
// Migrations are not applied; call Migrate.
func Open(ctx context.Context, cfg Config) (*DB, error) {
	if err := os.MkdirAll(filepath.Dir(cfg.Path), dirPermissions); err != nil {
		return nil, fmt.Errorf("creating database directory: %w", err)
	}

	sqlDB, err := sql.Open("sqlite3", dsn(cfg))
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	// Pin writes and the scheduler's execution inserts share one connection.
	sqlDB.SetMaxOpenConns(1)
	sqlDB.SetMaxIdleConns(1)
	sqlDB.SetConnMaxIdleTime(connMaxIdleTime)

	pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()
	if err := sqlDB.PingContext(pingCtx); err != nil {
		sqlDB.Close() //nolint:errcheck // already failing
		return nil, fmt.Errorf("verifying database connection: %w", err)
	}

	_ = os.Chmod(cfg.Path, filePermissions) //nolint:errcheck // file appears on first write

	return &DB{DB: sqlDB, path: cfg.Path}, nil
}

// Close is safe to call on a DB whose handle was already released.
func (db *DB) Close() error {
	if db.DB == nil {
		return nil
	}
	if err := db.DB.Close(); err != nil {
		return fmt.Errorf("closing database: %w", err)
	}
	return nil
}

// Path returns the SQLite file path.
func (db *DB) Path() string {
	return db.path
}

// HealthCheck backs the "database" entry of GET /health. It fails when the
// file cannot be queried or when embedded migrations have not been applied.
func (db *DB) HealthCheck(ctx context.Context) error {
	var one int
	if err := db.QueryRowContext(ctx, "SELECT 1").Scan(&one); err != nil {
		return fmt.Errorf("database health check failed: %w", err)
	}

	pending, err := db.pendingMigrations(ctx)
	if err != nil {
		return fmt.Errorf("database health check failed: %w", err)
	}
	if len(pending) > 0 {
		return fmt.Errorf("%w: next is %s", ErrSchemaOutdated, pending[0].Version)
	}
	return nil
}
