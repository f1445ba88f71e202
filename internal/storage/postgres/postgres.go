package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/FranksOps/sitescope/internal/storage"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ensure postgresBackend implements storage.Backend
var _ storage.Backend = (*postgresBackend)(nil)

type postgresBackend struct {
	pool *pgxpool.Pool
}

const schema = `
CREATE TABLE IF NOT EXISTS fetch_log (
	id TEXT PRIMARY KEY,
	report_id TEXT NOT NULL,
	provider TEXT NOT NULL,
	target TEXT NOT NULL,
	outcome TEXT NOT NULL,
	error TEXT,
	duration_ms BIGINT NOT NULL,
	created_at TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS fetch_log_report_idx ON fetch_log (report_id);
`

// New creates a new Postgres-backed storage.Backend.
func New(ctx context.Context, dsn string) (storage.Backend, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("postgres: connect: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres: ping: %w", err)
	}

	if _, err := pool.Exec(ctx, schema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres: apply schema: %w", err)
	}

	return &postgresBackend{pool: pool}, nil
}

func (b *postgresBackend) Save(ctx context.Context, record *storage.FetchRecord) error {
	query := `
	INSERT INTO fetch_log (
		id, report_id, provider, target, outcome, error, duration_ms, created_at
	) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`

	_, err := b.pool.Exec(ctx, query,
		record.ID,
		record.ReportID,
		record.Provider,
		record.Target,
		string(record.Outcome),
		record.Error,
		record.Duration.Milliseconds(),
		record.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("postgres: insert: %w", err)
	}

	return nil
}

func (b *postgresBackend) Query(ctx context.Context, filter storage.Filter) ([]*storage.FetchRecord, error) {
	query := `SELECT id, report_id, provider, target, outcome, COALESCE(error, ''), duration_ms, created_at FROM fetch_log WHERE 1=1`
	args := []any{}
	paramCount := 1

	if filter.ReportID != "" {
		query += fmt.Sprintf(` AND report_id = $%d`, paramCount)
		args = append(args, filter.ReportID)
		paramCount++
	}
	if filter.Provider != "" {
		query += fmt.Sprintf(` AND provider = $%d`, paramCount)
		args = append(args, filter.Provider)
		paramCount++
	}
	if filter.Outcome != "" {
		query += fmt.Sprintf(` AND outcome = $%d`, paramCount)
		args = append(args, string(filter.Outcome))
		paramCount++
	}
	if filter.Since != nil {
		query += fmt.Sprintf(` AND created_at >= $%d`, paramCount)
		args = append(args, *filter.Since)
		paramCount++
	}

	query += ` ORDER BY created_at DESC`

	if filter.Limit > 0 {
		query += fmt.Sprintf(` LIMIT $%d`, paramCount)
		args = append(args, filter.Limit)
		paramCount++
	}
	if filter.Offset > 0 {
		query += fmt.Sprintf(` OFFSET $%d`, paramCount)
		args = append(args, filter.Offset)
	}

	rows, err := b.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres: query: %w", err)
	}
	defer rows.Close()

	var records []*storage.FetchRecord
	for rows.Next() {
		var (
			r          storage.FetchRecord
			outcome    string
			durationMs int64
		)

		if err := rows.Scan(&r.ID, &r.ReportID, &r.Provider, &r.Target, &outcome, &r.Error, &durationMs, &r.CreatedAt); err != nil {
			return nil, fmt.Errorf("postgres: scan: %w", err)
		}

		r.Outcome = storage.Outcome(outcome)
		r.Duration = time.Duration(durationMs) * time.Millisecond
		records = append(records, &r)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: rows: %w", err)
	}

	return records, nil
}

func (b *postgresBackend) Close() error {
	b.pool.Close()
	return nil
}
