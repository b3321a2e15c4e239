// Package store persists the snapshot journal, network activity samples, the
// submitted-task list and the messaging outbox.
package store

import (
	"database/sql"
	"fmt"
	"strings"

	_ "github.com/jackc/pgx/v5/stdlib"
	_ "modernc.org/sqlite"

	"nodeconsole/config"
)

// DB wraps the database connection with its dialect.
type DB struct {
	*sql.DB
	dialect Dialect
	driver  string
}

// Open opens the configured database and runs migrations.
func Open(cfg *config.DatabaseConfig) (*DB, error) {
	switch cfg.Driver {
	case "sqlite":
		return openSQLite(cfg.SQLite.Path)
	case "postgres":
		return OpenPostgresDSN(postgresDSN(&cfg.Postgres))
	default:
		return nil, fmt.Errorf("unsupported database driver: %s", cfg.Driver)
	}
}

func openSQLite(path string) (*DB, error) {
	dsn := fmt.Sprintf("file:%s?_journal_mode=WAL&_busy_timeout=5000", path)
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	sqlDB.SetMaxOpenConns(1)
	return finishOpen(&DB{DB: sqlDB, dialect: sqliteDialect{}, driver: "sqlite"})
}

func postgresDSN(cfg *config.PostgresConfig) string {
	return fmt.Sprintf("host=%s port=%d dbname=%s user=%s password=%s sslmode=%s",
		cfg.Host, cfg.Port, cfg.Database, cfg.User, cfg.Password, cfg.SSLMode)
}

// OpenPostgresDSN opens a PostgreSQL database from a DSN or URL.
func OpenPostgresDSN(dsn string) (*DB, error) {
	sqlDB, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	return finishOpen(&DB{DB: sqlDB, dialect: postgresDialect{}, driver: "postgres"})
}

func finishOpen(db *DB) (*DB, error) {
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping %s: %w", db.driver, err)
	}
	if err := db.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate %s: %w", db.driver, err)
	}
	return db, nil
}

func (db *DB) Dialect() Dialect { return db.dialect }
func (db *DB) Driver() string   { return db.driver }

// Q rewrites ? placeholders and datetime literals for PostgreSQL, passes
// through for SQLite.
func (db *DB) Q(query string) string {
	if db.driver == "postgres" {
		query = strings.ReplaceAll(query, sqliteDialect{}.Now(), postgresDialect{}.Now())
		return Rebind(query)
	}
	return query
}

func (db *DB) migrate() error {
	_, err := db.Exec(schema(db.dialect))
	return err
}
