package analyses

import (
	"context"
	"sync"
)

// MemoryRepo stores history in memory and is safe for concurrent use. It is
// the fallback when no database is configured.
type MemoryRepo struct {
	mu      sync.RWMutex
	ordered []AnalysisRecord // head = newest
	byID    map[string]AnalysisRecord
}

// NewMemoryRepo constructs a MemoryRepo.
func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{
		byID: make(map[string]AnalysisRecord),
	}
}

// Append inserts a finalized record at the head of history.
func (r *MemoryRepo) Append(ctx context.Context, record AnalysisRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if !record.Finalized() {
		return ErrNotFinalized
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ordered = append([]AnalysisRecord{record}, r.ordered...)
	r.byID[record.ID] = record
	return nil
}

// GetByID returns a history record by its ID.
func (r *MemoryRepo) GetByID(ctx context.Context, recordID string) (AnalysisRecord, error) {
	if err := ctx.Err(); err != nil {
		return AnalysisRecord{}, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	record, ok := r.byID[recordID]
	if !ok {
		return AnalysisRecord{}, ErrNotFound
	}
	return record, nil
}

// List returns records newest first with limit/offset.
func (r *MemoryRepo) List(ctx context.Context, limit, offset int) ([]AnalysisRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if offset < 0 {
		offset = 0
	}
	if limit < 0 {
		limit = 0
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	if offset >= len(r.ordered) {
		return []AnalysisRecord{}, nil
	}
	end := len(r.ordered)
	if limit > 0 && offset+limit < end {
		end = offset + limit
	}
	out := make([]AnalysisRecord, end-offset)
	copy(out, r.ordered[offset:end])
	return out, nil
}

var _ Repo = (*MemoryRepo)(nil)
