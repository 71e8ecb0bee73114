package analyses

import "context"

// Repo is the append-only history of finalized analyses. Records are listed
// newest first; there are no update or delete operations.
type Repo interface {
	// Append inserts a finalized record at the head of history. Appending a
	// processing record is a contract violation and returns ErrNotFinalized.
	Append(ctx context.Context, record AnalysisRecord) error
	// GetByID returns a history record, or ErrNotFound.
	GetByID(ctx context.Context, recordID string) (AnalysisRecord, error)
	// List returns records newest first. A limit of zero means no limit.
	// Insertion order is preserved among equal timestamps.
	List(ctx context.Context, limit, offset int) ([]AnalysisRecord, error)
}
