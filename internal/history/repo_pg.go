package history

import (
	"context"
	"database/sql"
	"fmt"
)

// PGRepo implements Repo using Postgres.
type PGRepo struct {
	DB *sql.DB
}

// Save inserts a record.
func (r *PGRepo) Save(ctx context.Context, rec Record) error {
	if err := validate(rec); err != nil {
		return err
	}
	const query = `
INSERT INTO analysis_history (
	id, request_id, text, outcome, sentiment, confidence, worker_status, exit_code,
	duration_ms, extra_messages, created_at
)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`
	_, err := r.DB.ExecContext(ctx, query,
		rec.ID,
		rec.RequestID,
		rec.Text,
		rec.Outcome,
		nullString(rec.Sentiment),
		nullFloat(rec.Confidence),
		rec.WorkerStatus,
		nullInt(rec.ExitCode),
		rec.DurationMs,
		rec.ExtraMessages,
		rec.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert analysis history: %w", err)
	}
	return nil
}

// ListRecent returns up to limit records, newest first.
func (r *PGRepo) ListRecent(ctx context.Context, limit int) ([]Record, error) {
	const query = `
SELECT id, request_id, text, outcome, sentiment, confidence, worker_status, exit_code,
       duration_ms, extra_messages, created_at
FROM analysis_history
ORDER BY created_at DESC
LIMIT $1`
	rows, err := r.DB.QueryContext(ctx, query, ClampLimit(limit))
	if err != nil {
		return nil, fmt.Errorf("list analysis history: %w", err)
	}
	defer rows.Close()

	out := []Record{}
	for rows.Next() {
		var (
			rec        Record
			sentiment  sql.NullString
			confidence sql.NullFloat64
			exitCode   sql.NullInt64
		)
		if err := rows.Scan(
			&rec.ID,
			&rec.RequestID,
			&rec.Text,
			&rec.Outcome,
			&sentiment,
			&confidence,
			&rec.WorkerStatus,
			&exitCode,
			&rec.DurationMs,
			&rec.ExtraMessages,
			&rec.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan analysis history: %w", err)
		}
		rec.Sentiment = sentiment.String
		if confidence.Valid {
			v := confidence.Float64
			rec.Confidence = &v
		}
		if exitCode.Valid {
			v := int(exitCode.Int64)
			rec.ExitCode = &v
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate analysis history: %w", err)
	}
	return out, nil
}

func nullString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func nullFloat(f *float64) any {
	if f == nil {
		return nil
	}
	return *f
}

func nullInt(i *int) any {
	if i == nil {
		return nil
	}
	return int64(*i)
}
