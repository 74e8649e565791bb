// -----------------------------------------------------------------------
// Staging Store - Extracted rows held between extract and commit
// -----------------------------------------------------------------------

package staging

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/ternarybob/arbor"

	"github.com/Fazmin/syncengine/internal/common"
	"github.com/Fazmin/syncengine/internal/interfaces"
	"github.com/Fazmin/syncengine/internal/models"
)

const defaultPageSize = 50

// Store persists staged rows. Payloads under the inline threshold stay on
// the job record as JSON; larger payloads spill to <root>/<jobId>.json.
type Store struct {
	root      string
	threshold int
	jobs      interfaces.JobStorage
	logger    arbor.ILogger
}

// New builds a staging store over the configured root directory
func New(cfg common.StagingConfig, jobs interfaces.JobStorage, logger arbor.ILogger) *Store {
	threshold := cfg.InlineThreshold
	if threshold <= 0 {
		threshold = 1 << 20
	}
	return &Store{
		root:      cfg.Root,
		threshold: threshold,
		jobs:      jobs,
		logger:    logger,
	}
}

// Put serializes rows and decides between inline and spill placement.
// The caller stores the inline payload or path on the job record.
func (s *Store) Put(ctx context.Context, jobID string, rows []interfaces.Row) (*interfaces.StagedPayload, error) {
	data, err := json.MarshalIndent(rows, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to serialize staged rows: %w", err)
	}

	payload := &interfaces.StagedPayload{RowCount: len(rows)}

	if len(data) < s.threshold {
		payload.Inline = string(data)
		return payload, nil
	}

	if err := os.MkdirAll(s.root, 0755); err != nil {
		return nil, fmt.Errorf("failed to create staging directory: %w", err)
	}
	path := s.filePath(jobID)
	if err := os.WriteFile(path, data, 0644); err != nil {
		return nil, fmt.Errorf("failed to write staging file: %w", err)
	}

	s.logger.Debug().
		Str("job_id", jobID).
		Str("path", path).
		Int("bytes", len(data)).
		Msg("Staged rows spilled to file")

	payload.Path = path
	return payload, nil
}

// Get returns one page of a job's staged rows. Columns are the union of
// row keys in the payload's own key order, so repeated reads render
// identically.
func (s *Store) Get(ctx context.Context, jobID string, page, pageSize int) (*interfaces.StagedPage, error) {
	data, err := s.load(ctx, jobID)
	if err != nil {
		return nil, err
	}

	var rows []interfaces.Row
	if err := json.Unmarshal(data, &rows); err != nil {
		return nil, fmt.Errorf("staged payload for job %s is corrupt: %w", jobID, err)
	}

	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = defaultPageSize
	}

	start := (page - 1) * pageSize
	end := start + pageSize
	if start > len(rows) {
		start = len(rows)
	}
	if end > len(rows) {
		end = len(rows)
	}

	return &interfaces.StagedPage{
		Rows:          rows[start:end],
		Columns:       columnOrder(data),
		TotalRowCount: len(rows),
	}, nil
}

// load resolves a job's staged bytes from inline data or the spill file
func (s *Store) load(ctx context.Context, jobID string) ([]byte, error) {
	job, err := s.jobs.Get(ctx, jobID)
	if err != nil {
		return nil, err
	}

	if job.StagedDataInline != "" {
		return []byte(job.StagedDataInline), nil
	}
	if job.StagedDataPath != "" {
		data, err := os.ReadFile(job.StagedDataPath)
		if err != nil {
			return nil, fmt.Errorf("failed to read staging file: %w", err)
		}
		return data, nil
	}
	return nil, fmt.Errorf("job %s has no staged data: %w", jobID, models.ErrNotFound)
}

// Delete removes the spill file if one exists. Missing files are ignored.
func (s *Store) Delete(jobID string) error {
	err := os.Remove(s.filePath(jobID))
	if err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

func (s *Store) filePath(jobID string) string {
	return filepath.Join(s.root, jobID+".json")
}

// columnOrder walks the serialized rows and collects the union of keys in
// first-seen order
func columnOrder(data []byte) []string {
	dec := json.NewDecoder(bytes.NewReader(data))
	if tok, err := dec.Token(); err != nil || tok != json.Delim('[') {
		return nil
	}

	var columns []string
	seen := make(map[string]bool)

	for dec.More() {
		var raw json.RawMessage
		if err := dec.Decode(&raw); err != nil {
			break
		}

		rowDec := json.NewDecoder(bytes.NewReader(raw))
		if tok, err := rowDec.Token(); err != nil || tok != json.Delim('{') {
			continue
		}
		for rowDec.More() {
			keyTok, err := rowDec.Token()
			if err != nil {
				break
			}
			key, ok := keyTok.(string)
			if !ok {
				break
			}
			var value json.RawMessage
			if err := rowDec.Decode(&value); err != nil {
				break
			}
			if !seen[key] {
				seen[key] = true
				columns = append(columns, key)
			}
		}
	}
	return columns
}
