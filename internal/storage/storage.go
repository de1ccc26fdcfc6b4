package storage

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "github.com/lib/pq"
	"github.com/rs/zerolog/log"
	_ "modernc.org/sqlite"
)

// DB wraps the relational store backing alerts and news. Postgres in
// production, SQLite for development and tests; the DSN picks the
// driver the same way the original deployment fell back.
type DB struct {
	SQL    *sql.DB
	Driver string
}

// Open connects, pings and migrates. DSNs starting with postgres:// or
// postgresql:// use lib/pq; anything else (a file path, ":memory:") is
// treated as a SQLite database.
func Open(ctx context.Context, dsn string) (*DB, error) {
	driver := "sqlite"
	if strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://") {
		driver = "postgres"
	}

	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", driver, err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping %s: %w", driver, err)
	}

	if driver == "sqlite" {
		if _, err := db.Exec("PRAGMA journal_mode = WAL;"); err != nil {
			log.Warn().Err(err).Msg("failed to set WAL mode")
		}
		if _, err := db.Exec("PRAGMA synchronous = NORMAL;"); err != nil {
			log.Warn().Err(err).Msg("failed to set synchronous mode")
		}
		// modernc's driver is not safe for concurrent writers on one
		// connection pool slot beyond this.
		db.SetMaxOpenConns(1)
	}

	s := &DB{SQL: db, Driver: driver}
	if err := s.migrate(ctx); err != nil {
		db.Close()
		return nil, err
	}

	log.Info().Str("driver", driver).Msg("database ready")
	return s, nil
}

func (s *DB) Close() error { return s.SQL.Close() }

// migrate creates the alerts and news tables when missing. The two
// dialects differ only in the autoincrement id column.
func (s *DB) migrate(ctx context.Context) error {
	id := "INTEGER PRIMARY KEY AUTOINCREMENT"
	if s.Driver == "postgres" {
		id = "BIGSERIAL PRIMARY KEY"
	}

	stmts := []string{
		fmt.Sprintf(`
			CREATE TABLE IF NOT EXISTS alerts (
				id %s,
				symbol VARCHAR(10) NOT NULL,
				alert_type VARCHAR(50) NOT NULL,
				condition VARCHAR(20) NOT NULL,
				threshold_value DOUBLE PRECISION,
				message TEXT,
				is_active BOOLEAN NOT NULL DEFAULT TRUE,
				created_at TIMESTAMP NOT NULL,
				updated_at TIMESTAMP
			)`, id),
		`CREATE INDEX IF NOT EXISTS idx_alerts_symbol ON alerts (symbol)`,
		fmt.Sprintf(`
			CREATE TABLE IF NOT EXISTS news_items (
				id %s,
				title VARCHAR(500) NOT NULL,
				description TEXT,
				link VARCHAR(500) NOT NULL UNIQUE,
				published_date TIMESTAMP,
				source VARCHAR(100),
				keywords_matched TEXT,
				is_relevant BOOLEAN NOT NULL DEFAULT TRUE,
				created_at TIMESTAMP NOT NULL
			)`, id),
		`CREATE INDEX IF NOT EXISTS idx_news_items_title ON news_items (title)`,
	}
	for _, stmt := range stmts {
		if _, err := s.SQL.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}
	return nil
}
