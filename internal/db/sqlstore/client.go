package sqlstore

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/jmoiron/sqlx"
	migrate "github.com/rubenv/sql-migrate"
	log "github.com/sirupsen/logrus"
	_ "modernc.org/sqlite"

	"github.com/iamwavecut/prime/internal/db"
	"github.com/iamwavecut/prime/resources"
)

const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

var _ db.Client = (*Client)(nil)

// Client implements db.Client on top of sqlx. Queries are written with "?"
// placeholders and rebound for the active driver.
type Client struct {
	db     *sqlx.DB
	mutex  sync.RWMutex
	logger *log.Entry
}

// Open picks the backend by driver name.
func Open(ctx context.Context, driver, dir, file, dsn string) (*Client, error) {
	switch driver {
	case "", DriverSQLite:
		return NewSQLiteClient(ctx, dir, file)
	case DriverPostgres:
		return NewPostgresClient(ctx, dsn)
	default:
		return nil, fmt.Errorf("unknown database driver %q", driver)
	}
}

func NewSQLiteClient(ctx context.Context, dir, file string) (*Client, error) {
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}
	dbx, err := sqlx.Open("sqlite", filepath.Join(dir, file))
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// A single connection avoids SQLITE_BUSY between concurrent writers.
	dbx.SetMaxOpenConns(1)
	if _, err := dbx.ExecContext(ctx, "PRAGMA journal_mode=WAL"); err != nil {
		_ = dbx.Close()
		return nil, fmt.Errorf("enable wal: %w", err)
	}
	return newClient(ctx, dbx, "sqlite3")
}

func NewPostgresClient(ctx context.Context, dsn string) (*Client, error) {
	if dsn == "" {
		return nil, fmt.Errorf("postgres dsn is empty")
	}
	dbx, err := sqlx.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	dbx.SetMaxOpenConns(16)
	if err := dbx.PingContext(ctx); err != nil {
		_ = dbx.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return newClient(ctx, dbx, "postgres")
}

func newClient(ctx context.Context, dbx *sqlx.DB, dialect string) (*Client, error) {
	logger := log.WithFields(log.Fields{"object": "SQLStore", "dialect": dialect})

	migrationsSource := &migrate.EmbedFileSystemMigrationSource{
		FileSystem: resources.FS,
		Root:       "migrations",
	}
	n, err := migrate.ExecContext(ctx, dbx.DB, dialect, migrationsSource, migrate.Up)
	if err != nil {
		_ = dbx.Close()
		return nil, fmt.Errorf("migrate up: %w", err)
	}
	if n > 0 {
		logger.Infof("applied %d migrations", n)
	}

	return &Client{db: dbx, logger: logger}, nil
}

func (c *Client) Close() error {
	return c.db.Close()
}

func (c *Client) rebind(query string) string {
	return c.db.Rebind(query)
}
