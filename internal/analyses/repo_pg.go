package analyses

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
)

// PGRepo implements Repo using Postgres. History is insert-only; the
// position column preserves insertion order among equal timestamps.
type PGRepo struct {
	DB *sql.DB
}

// Append inserts a finalized record.
func (r *PGRepo) Append(ctx context.Context, record AnalysisRecord) error {
	if !record.Finalized() {
		return ErrNotFinalized
	}
	const query = `
INSERT INTO analyses (id, label, modality, status, stage, result, failure_reason, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`
	resultPayload, err := marshalResult(record.Result)
	if err != nil {
		return err
	}
	_, err = r.DB.ExecContext(ctx, query,
		record.ID,
		record.Label,
		string(record.Modality),
		record.Status,
		record.Stage,
		resultPayload,
		nullString(record.FailureReason),
		record.CreatedAt,
	)
	return err
}

// GetByID returns a history record by ID.
func (r *PGRepo) GetByID(ctx context.Context, recordID string) (AnalysisRecord, error) {
	const query = `
SELECT id, label, modality, status, stage, result, failure_reason, created_at
FROM analyses
WHERE id = $1
LIMIT 1`
	record, err := scanRecord(r.DB.QueryRowContext(ctx, query, recordID))
	if errors.Is(err, sql.ErrNoRows) {
		return AnalysisRecord{}, ErrNotFound
	}
	return record, err
}

// List returns records newest first with limit/offset.
func (r *PGRepo) List(ctx context.Context, limit, offset int) ([]AnalysisRecord, error) {
	if offset < 0 {
		offset = 0
	}
	query := `
SELECT id, label, modality, status, stage, result, failure_reason, created_at
FROM analyses
ORDER BY created_at DESC, position DESC
OFFSET $1`
	args := []any{offset}
	if limit > 0 {
		query += ` LIMIT $2`
		args = append(args, limit)
	}

	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	records := []AnalysisRecord{}
	for rows.Next() {
		record, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, record)
	}
	return records, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecord(row rowScanner) (AnalysisRecord, error) {
	var record AnalysisRecord
	var modality string
	var result sql.NullString
	var failureReason sql.NullString
	err := row.Scan(
		&record.ID,
		&record.Label,
		&modality,
		&record.Status,
		&record.Stage,
		&result,
		&failureReason,
		&record.CreatedAt,
	)
	if err != nil {
		return AnalysisRecord{}, err
	}
	record.Modality = Modality(modality)
	record.FailureReason = failureReason.String
	if result.Valid && result.String != "" {
		parsed := &SentimentResult{}
		if err := json.Unmarshal([]byte(result.String), parsed); err != nil {
			return AnalysisRecord{}, err
		}
		record.Result = parsed
	}
	return record, nil
}

func marshalResult(result *SentimentResult) (any, error) {
	if result == nil {
		return nil, nil
	}
	data, err := json.Marshal(result)
	if err != nil {
		return nil, err
	}
	return string(data), nil
}

func nullString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

var _ Repo = (*PGRepo)(nil)
