// Package store implements the relational sink for orders, trades and audit
// events, plus the product-universe query. The driver is selected from the
// DSN: postgres URLs use lib/pq, anything else is treated as a sqlite file.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"strings"

	"tqbridge/internal/core"
	"tqbridge/pkg/retry"

	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
)

// Store implements core.IOrderStore over database/sql.
type Store struct {
	db     *sql.DB
	driver string
	logger core.ILogger
}

// Open connects to the database named by dsn and ensures the bridge-owned
// tables exist. The universe tables belong to the market-data pipeline and
// are only read.
func Open(ctx context.Context, dsn string, logger core.ILogger) (*Store, error) {
	driver := "sqlite3"
	if strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://") {
		driver = "postgres"
	}

	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	err = retry.Do(ctx, retry.DefaultPolicy, func(error) bool { return true }, func() error {
		return db.PingContext(ctx)
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	s := &Store{
		db:     db,
		driver: driver,
		logger: logger.WithField("component", "order_store"),
	}

	if driver == "sqlite3" {
		if _, err := db.ExecContext(ctx, "PRAGMA journal_mode=WAL"); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to enable WAL: %w", err)
		}
	}

	if err := s.ensureSchema(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// rebind converts ? placeholders to the $N form lib/pq expects. Queries in
// this package are written with ? and rebound per driver.
func (s *Store) rebind(query string) string {
	if s.driver != "postgres" {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func (s *Store) ensureSchema(ctx context.Context) error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS orders (
			order_id              TEXT PRIMARY KEY,
			exchange_order_id     TEXT NOT NULL DEFAULT '',
			exchange_id           TEXT NOT NULL DEFAULT '',
			instrument_id         TEXT NOT NULL DEFAULT '',
			direction             TEXT NOT NULL,
			order_offset          TEXT NOT NULL,
			volume_orign          BIGINT NOT NULL,
			volume_left           BIGINT NOT NULL,
			limit_price           DOUBLE PRECISION,
			status                TEXT NOT NULL,
			is_dead               BOOLEAN NOT NULL DEFAULT FALSE,
			is_online             BOOLEAN NOT NULL DEFAULT FALSE,
			is_error              BOOLEAN NOT NULL DEFAULT FALSE,
			last_msg              TEXT NOT NULL DEFAULT '',
			trade_price           DOUBLE PRECISION NOT NULL DEFAULT 0,
			filled_quantity       BIGINT NOT NULL DEFAULT 0,
			portfolio_id          TEXT NOT NULL,
			contract_code         TEXT NOT NULL DEFAULT '',
			exchange_trading_date TEXT NOT NULL DEFAULT '',
			origin_timestamp      BIGINT NOT NULL DEFAULT 0,
			insert_date_time      TIMESTAMP NOT NULL,
			updated_at            TIMESTAMP
		)`,
		`CREATE TABLE IF NOT EXISTS trades (
			trade_id        TEXT PRIMARY KEY,
			order_id        TEXT NOT NULL,
			exchange_id     TEXT NOT NULL DEFAULT '',
			instrument_id   TEXT NOT NULL DEFAULT '',
			direction       TEXT NOT NULL DEFAULT '',
			trade_offset    TEXT NOT NULL DEFAULT '',
			price           DOUBLE PRECISION NOT NULL,
			volume          BIGINT NOT NULL,
			commission      DOUBLE PRECISION NOT NULL DEFAULT 0,
			trade_date_time BIGINT NOT NULL DEFAULT 0,
			seqno           BIGINT NOT NULL DEFAULT 0
		)`,
		`CREATE TABLE IF NOT EXISTS order_events (
			event_id     TEXT PRIMARY KEY,
			order_id     TEXT NOT NULL,
			event_type   TEXT NOT NULL,
			msg          TEXT NOT NULL,
			portfolio_id TEXT NOT NULL,
			created_at   TIMESTAMP NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_trades_order_id ON trades (order_id)`,
		`CREATE INDEX IF NOT EXISTS idx_order_events_order_id ON order_events (order_id)`,
	}

	for _, stmt := range statements {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to ensure schema: %w", err)
		}
	}
	return nil
}

// Close releases the connection pool.
func (s *Store) Close() error {
	return s.db.Close()
}
