package history

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "github.com/lib/pq"

	"github.com/grailmeter/grail-meter/apimodels"
)

// PostgresStore persists search history in PostgreSQL.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore opens a connection, verifies it, and runs the idempotent
// schema migration.
func NewPostgresStore(dsn string) (*PostgresStore, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("postgres: open: %w", err)
	}

	for i := 0; i < 5; i++ {
		if err = db.Ping(); err == nil {
			break
		}
		time.Sleep(2 * time.Second)
	}
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("postgres: ping failed after retries: %w", err)
	}

	s := &PostgresStore{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("postgres: migrate: %w", err)
	}
	return s, nil
}

func (s *PostgresStore) migrate() error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS search_history (
			id              SERIAL PRIMARY KEY,
			product_title   TEXT        NOT NULL,
			category        TEXT        NOT NULL DEFAULT '',
			details         JSONB,
			market_metrics  JSONB,
			created_at      TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);

		CREATE INDEX IF NOT EXISTS idx_search_history_created_at ON search_history(created_at DESC);
	`)
	return err
}

func (s *PostgresStore) Save(ctx context.Context, rec apimodels.SearchRecord) error {
	details, err := json.Marshal(rec.Details)
	if err != nil {
		return fmt.Errorf("postgres: marshal details: %w", err)
	}
	metrics, err := json.Marshal(rec.MarketMetrics)
	if err != nil {
		return fmt.Errorf("postgres: marshal market metrics: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO search_history (product_title, category, details, market_metrics)
		VALUES ($1, $2, $3, $4)
	`, rec.ProductTitle, rec.Category, details, metrics)
	if err != nil {
		return fmt.Errorf("postgres: insert search: %w", err)
	}
	return nil
}

func (s *PostgresStore) Recent(ctx context.Context, limit int) ([]apimodels.SearchRecord, error) {
	if limit <= 0 {
		limit = 20
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, product_title, category, details, market_metrics, created_at
		FROM search_history
		ORDER BY created_at DESC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("postgres: query recent: %w", err)
	}
	defer rows.Close()

	var records []apimodels.SearchRecord
	for rows.Next() {
		var (
			rec       apimodels.SearchRecord
			details   []byte
			metrics   []byte
			createdAt time.Time
		)
		if err := rows.Scan(&rec.ID, &rec.ProductTitle, &rec.Category, &details, &metrics, &createdAt); err != nil {
			return nil, fmt.Errorf("postgres: scan row: %w", err)
		}
		if len(details) > 0 {
			_ = json.Unmarshal(details, &rec.Details)
		}
		if len(metrics) > 0 {
			_ = json.Unmarshal(metrics, &rec.MarketMetrics)
		}
		rec.CreatedAt = createdAt.UTC().Format(time.RFC3339)
		records = append(records, rec)
	}
	return records, rows.Err()
}

func (s *PostgresStore) Close() error {
	return s.db.Close()
}
