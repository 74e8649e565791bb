package interfaces

import "context"

// StagedPayload describes where a job's extracted rows were persisted:
// inline JSON for small payloads, a spill file path for large ones.
// Exactly one of Inline / Path is set.
type StagedPayload struct {
	Inline   string `json:"inline,omitempty"`
	Path     string `json:"path,omitempty"`
	RowCount int    `json:"row_count"`
}

// StagedPage is one page of staged rows. Columns are the union of keys
// across the page in first-seen order, stable across repeated reads.
type StagedPage struct {
	Rows          []Row    `json:"rows"`
	Columns       []string `json:"columns"`
	TotalRowCount int      `json:"total_row_count"`
}

// StagingStore persists extracted rows between the extract and commit
// phases of a manual-mode job.
type StagingStore interface {
	Put(ctx context.Context, jobID string, rows []Row) (*StagedPayload, error)
	Get(ctx context.Context, jobID string, page, pageSize int) (*StagedPage, error)
	// Delete removes the spill file if present. Missing files are ignored.
	Delete(jobID string) error
}
