package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/FranksOps/sitescope/internal/storage"
	_ "modernc.org/sqlite"
)

// ensure sqliteBackend implements storage.Backend
var _ storage.Backend = (*sqliteBackend)(nil)

type sqliteBackend struct {
	db *sql.DB
}

const schema = `
CREATE TABLE IF NOT EXISTS fetch_log (
	id TEXT PRIMARY KEY,
	report_id TEXT NOT NULL,
	provider TEXT NOT NULL,
	target TEXT NOT NULL,
	outcome TEXT NOT NULL,
	error TEXT,
	duration_ms INTEGER NOT NULL,
	created_at DATETIME NOT NULL
);
CREATE INDEX IF NOT EXISTS fetch_log_report_idx ON fetch_log (report_id);
`

// New creates a new SQLite-backed storage.Backend.
func New(dsn string) (storage.Backend, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("sqlite: open: %w", err)
	}

	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("sqlite: apply schema: %w", err)
	}

	return &sqliteBackend{db: db}, nil
}

func (b *sqliteBackend) Save(ctx context.Context, record *storage.FetchRecord) error {
	query := `
	INSERT INTO fetch_log (
		id, report_id, provider, target, outcome, error, duration_ms, created_at
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := b.db.ExecContext(ctx, query,
		record.ID,
		record.ReportID,
		record.Provider,
		record.Target,
		string(record.Outcome),
		record.Error,
		record.Duration.Milliseconds(),
		record.CreatedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("sqlite: insert: %w", err)
	}

	return nil
}

func (b *sqliteBackend) Query(ctx context.Context, filter storage.Filter) ([]*storage.FetchRecord, error) {
	query := `SELECT id, report_id, provider, target, outcome, error, duration_ms, created_at FROM fetch_log WHERE 1=1`
	args := []any{}

	if filter.ReportID != "" {
		query += ` AND report_id = ?`
		args = append(args, filter.ReportID)
	}
	if filter.Provider != "" {
		query += ` AND provider = ?`
		args = append(args, filter.Provider)
	}
	if filter.Outcome != "" {
		query += ` AND outcome = ?`
		args = append(args, string(filter.Outcome))
	}
	if filter.Since != nil {
		query += ` AND created_at >= ?`
		args = append(args, filter.Since.UTC())
	}

	query += ` ORDER BY created_at DESC`

	// SQLite only accepts OFFSET after a LIMIT; -1 means unbounded.
	if filter.Limit > 0 || filter.Offset > 0 {
		limit := filter.Limit
		if limit <= 0 {
			limit = -1
		}
		query += ` LIMIT ?`
		args = append(args, limit)
	}
	if filter.Offset > 0 {
		query += ` OFFSET ?`
		args = append(args, filter.Offset)
	}

	rows, err := b.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("sqlite: query: %w", err)
	}
	defer rows.Close()

	var records []*storage.FetchRecord
	for rows.Next() {
		var (
			r          storage.FetchRecord
			outcome    string
			errText    sql.NullString
			durationMs int64
		)

		err := rows.Scan(&r.ID, &r.ReportID, &r.Provider, &r.Target, &outcome, &errText, &durationMs, &r.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("sqlite: scan: %w", err)
		}

		r.Outcome = storage.Outcome(outcome)
		r.Error = errText.String
		r.Duration = time.Duration(durationMs) * time.Millisecond
		records = append(records, &r)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: rows: %w", err)
	}

	return records, nil
}

func (b *sqliteBackend) Close() error {
	return b.db.Close()
}
