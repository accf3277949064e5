package persist

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/runeshard/server/internal/config"
	"go.uber.org/zap"
	_ "modernc.org/sqlite"
)

// DB is the catalog database handle. For pgx it owns the pool behind the
// database/sql view.
type DB struct {
	SQL     *sql.DB
	Dialect string // goose dialect: "sqlite3" or "postgres"
	pool    *pgxpool.Pool
	log     *zap.Logger
}

func NewDB(ctx context.Context, cfg config.CatalogConfig, log *zap.Logger) (*DB, error) {
	if log == nil {
		log = zap.NewNop()
	}
	switch cfg.Driver {
	case "sqlite":
		return openSQLite(ctx, cfg.DSN, log)
	case "pgx":
		return openPostgres(ctx, cfg.DSN, log)
	default:
		return nil, fmt.Errorf("catalog driver %q not supported", cfg.Driver)
	}
}

func openSQLite(ctx context.Context, path string, log *zap.Logger) (*DB, error) {
	if path == "" {
		return nil, fmt.Errorf("empty sqlite catalog path")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	pragmas := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
		"PRAGMA busy_timeout=5000;",
	}
	for _, p := range pragmas {
		if _, err := db.ExecContext(ctx, p); err != nil {
			db.Close()
			return nil, fmt.Errorf("sqlite %s: %w", p, err)
		}
	}
	return &DB{SQL: db, Dialect: "sqlite3", log: log}, nil
}

func openPostgres(ctx context.Context, dsn string, log *zap.Logger) (*DB, error) {
	poolCfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse dsn: %w", err)
	}
	poolCfg.MaxConns = 4
	poolCfg.MaxConnLifetime = time.Hour

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connect to db: %w", err)
	}

	// Verify connection
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping db: %w", err)
	}

	return &DB{SQL: stdlib.OpenDBFromPool(pool), Dialect: "postgres", pool: pool, log: log}, nil
}

func (db *DB) Close() {
	if err := db.SQL.Close(); err != nil {
		db.log.Warn("close catalog db", zap.Error(err))
	}
	if db.pool != nil {
		db.pool.Close()
	}
}
