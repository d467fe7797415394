package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/mickael-palma-wttj/wttj-metrics-sub001/internal/domain"
)

// Run describes one collection run recorded next to its rows.
type Run struct {
	ID           string
	Org          string
	Mode         string
	Date         string
	PullRequests int
	Releases     int
	Rows         int
	CreatedAt    time.Time
}

// MetricStore persists metric rows keyed by (date, category, metric). A later run
// overwrites the value of an existing key.
type MetricStore struct {
	db  *DB
	now func() time.Time
}

// NewMetricStore returns a MetricStore backed by db.
func NewMetricStore(db *DB) *MetricStore {
	return &MetricStore{db: db, now: time.Now}
}

// Save upserts the rows of a run and records the run itself in one transaction.
func (s *MetricStore) Save(ctx context.Context, run Run, rows []domain.MetricRow) error {
	tx, err := s.db.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // Rollback after commit is a no-op.

	now := s.now().UTC().Format(time.RFC3339Nano)

	const upsertQuery = `
		INSERT INTO metric_rows (date, category, metric, value, text_value, run_id, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (date, category, metric) DO UPDATE SET
			value = excluded.value,
			text_value = excluded.text_value,
			run_id = excluded.run_id,
			updated_at = excluded.updated_at
	`
	stmt, err := tx.PrepareContext(ctx, upsertQuery)
	if err != nil {
		return fmt.Errorf("prepare metric upsert: %w", err)
	}
	defer stmt.Close()

	for _, r := range rows {
		var text any
		if r.Value.IsText() {
			text = r.Value.String()
		}
		if _, err := stmt.ExecContext(ctx, r.Date, r.Category, r.Metric, r.Value.Float(), text, run.ID, now); err != nil {
			return fmt.Errorf("upsert metric %s/%s/%s: %w", r.Date, r.Category, r.Metric, err)
		}
	}

	const runQuery = `
		INSERT INTO runs (id, org, mode, collected_on, pull_requests, releases, row_count, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`
	if _, err := tx.ExecContext(ctx, runQuery,
		run.ID, run.Org, run.Mode, run.Date, run.PullRequests, run.Releases, len(rows), now,
	); err != nil {
		return fmt.Errorf("insert run %s: %w", run.ID, err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit run %s: %w", run.ID, err)
	}
	return nil
}

// ListByCategory returns the rows of a category between two ISO dates (inclusive),
// ordered by date then metric.
func (s *MetricStore) ListByCategory(ctx context.Context, category, from, to string) ([]domain.MetricRow, error) {
	const query = `
		SELECT date, category, metric, value, text_value
		FROM metric_rows
		WHERE category = ? AND date BETWEEN ? AND ?
		ORDER BY date, metric
	`

	rows, err := s.db.conn.QueryContext(ctx, query, category, from, to)
	if err != nil {
		return nil, fmt.Errorf("query metrics for %s: %w", category, err)
	}
	defer rows.Close()

	result := make([]domain.MetricRow, 0)
	for rows.Next() {
		var (
			r    domain.MetricRow
			num  float64
			text sql.NullString
		)
		if err := rows.Scan(&r.Date, &r.Category, &r.Metric, &num, &text); err != nil {
			return nil, fmt.Errorf("scan metric row: %w", err)
		}
		if text.Valid {
			r.Value = domain.Text(text.String)
		} else {
			r.Value = domain.Number(num)
		}
		result = append(result, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate metric rows: %w", err)
	}
	return result, nil
}

// LatestRun returns the most recent run of org, or nil when none was recorded.
func (s *MetricStore) LatestRun(ctx context.Context, org string) (*Run, error) {
	const query = `
		SELECT id, org, mode, collected_on, pull_requests, releases, row_count, created_at
		FROM runs
		WHERE org = ?
		ORDER BY created_at DESC
		LIMIT 1
	`

	var (
		run       Run
		createdAt string
	)
	err := s.db.conn.QueryRowContext(ctx, query, org).Scan(
		&run.ID, &run.Org, &run.Mode, &run.Date, &run.PullRequests, &run.Releases, &run.Rows, &createdAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query latest run for %s: %w", org, err)
	}

	run.CreatedAt, err = time.Parse(time.RFC3339Nano, createdAt)
	if err != nil {
		return nil, fmt.Errorf("parse created_at of run %s: %w", run.ID, err)
	}
	return &run, nil
}
