// Package database handles PostgreSQL and SQLite connection management and
// migration execution using goose. Connect returns a ready-to-use *sqlx.DB
// pool and Migrate applies the embedded schema for its dialect.
package database

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"io/fs"
	"log/slog"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/jmoiron/sqlx"
	"github.com/pressly/goose/v3"
	_ "modernc.org/sqlite"
)

// Supported values for the DB_DRIVER setting.
const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

//go:embed migrations
var embedMigrations embed.FS

func init() {
	// sqlx does not know the modernc driver name.
	sqlx.BindDriver(DriverSQLite, sqlx.QUESTION)
}

// Connect opens a connection pool for driver using dsn. For SQLite the dsn
// is a file path. It verifies the connection with a ping before returning.
func Connect(driver, dsn string) (*sqlx.DB, error) {
	switch driver {
	case DriverPostgres:
		return connectPostgres(dsn)
	case DriverSQLite:
		return connectSQLite(dsn)
	default:
		return nil, fmt.Errorf("database: unsupported driver %q", driver)
	}
}

func connectPostgres(dsn string) (*sqlx.DB, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("database open: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	// Verify the connection is alive.
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("database ping: %w", err)
	}

	slog.Info("database connected", "driver", DriverPostgres)
	return sqlx.NewDb(db, "pgx"), nil
}

func connectSQLite(path string) (*sqlx.DB, error) {
	db, err := sql.Open(DriverSQLite, SQLiteDSN(path))
	if err != nil {
		return nil, fmt.Errorf("database open: %w", err)
	}

	// SQLite allows a single writer; one connection keeps every transaction
	// serialized and avoids SQLITE_BUSY.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("database ping: %w", err)
	}

	slog.Info("database connected", "driver", DriverSQLite, "path", path)
	return sqlx.NewDb(db, DriverSQLite), nil
}

// SQLiteDSN builds a modernc DSN for path with foreign keys enforced.
func SQLiteDSN(path string) string {
	return "file:" + path +
		"?_pragma=foreign_keys(1)" +
		"&_pragma=busy_timeout(5000)" +
		"&_pragma=journal_mode(WAL)"
}

// Migrate runs all pending goose migrations for the pool's dialect from the
// embedded SQL files.
func Migrate(ctx context.Context, db *sqlx.DB) error {
	provider, err := newProvider(db)
	if err != nil {
		return err
	}

	results, err := provider.Up(ctx)
	if err != nil {
		return fmt.Errorf("goose up: %w", err)
	}

	slog.Info("database migrations applied", "applied", len(results))
	return nil
}

// Version returns the current schema version.
func Version(ctx context.Context, db *sqlx.DB) (int64, error) {
	provider, err := newProvider(db)
	if err != nil {
		return 0, err
	}
	v, err := provider.GetDBVersion(ctx)
	if err != nil {
		return 0, fmt.Errorf("goose version: %w", err)
	}
	return v, nil
}

func newProvider(db *sqlx.DB) (*goose.Provider, error) {
	dialect, dir := goose.DialectPostgres, "migrations/postgres"
	if db.DriverName() == DriverSQLite {
		dialect, dir = goose.DialectSQLite3, "migrations/sqlite"
	}

	fsys, err := fs.Sub(embedMigrations, dir)
	if err != nil {
		return nil, fmt.Errorf("migrations fs: %w", err)
	}

	provider, err := goose.NewProvider(dialect, db.DB, fsys)
	if err != nil {
		return nil, fmt.Errorf("goose provider: %w", err)
	}
	return provider, nil
}
