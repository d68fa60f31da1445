package db

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"
)

const defaultDBName = "brokerdesk.db"

const (
	DriverSQLite   = "sqlite"
	DriverPgx      = "pgx"
	DriverPostgres = "postgres"
)

func init() {
	sqlx.BindDriver(DriverSQLite, sqlx.QUESTION)
}

type Config struct {
	Driver    string
	DSN       string
	Workspace string
}

func dbPath(workspace string) string {
	if workspace == "" {
		workspace = "."
	}
	return filepath.Join(workspace, ".brokerdesk", defaultDBName)
}

// EnsureWorkspace creates workspace directory if missing.
func EnsureWorkspace(workspace string) (string, error) {
	path := filepath.Join(workspace, ".brokerdesk")
	if err := os.MkdirAll(path, 0o755); err != nil {
		return "", err
	}
	return path, nil
}

// Open opens the configured database. SQLite runs with foreign keys, WAL and
// immediate write transactions; postgres goes through pgx or lib/pq.
func Open(cfg Config) (*sqlx.DB, error) {
	driver := cfg.Driver
	if driver == "" {
		driver = DriverSQLite
	}
	var dsn string
	switch driver {
	case DriverSQLite:
		dsn = cfg.DSN
		if dsn == "" {
			if _, err := EnsureWorkspace(cfg.Workspace); err != nil {
				return nil, err
			}
			dsn = fmt.Sprintf("file:%s?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)&_pragma=journal_mode(wal)&_txlock=immediate", dbPath(cfg.Workspace))
		}
	case DriverPgx, DriverPostgres:
		if cfg.DSN == "" {
			return nil, fmt.Errorf("dsn is required for driver %s", driver)
		}
		dsn = cfg.DSN
	default:
		return nil, fmt.Errorf("unsupported database driver %q", driver)
	}
	conn, err := sqlx.Open(driver, dsn)
	if err != nil {
		return nil, err
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := conn.PingContext(ctx); err != nil {
		conn.Close()
		return nil, fmt.Errorf("ping %s: %w", driver, err)
	}
	return conn, nil
}

// Path returns the db path for the workspace.
func Path(workspace string) string {
	return dbPath(workspace)
}
