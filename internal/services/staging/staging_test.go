package staging

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Fazmin/syncengine/internal/common"
	"github.com/Fazmin/syncengine/internal/interfaces"
	"github.com/Fazmin/syncengine/internal/models"
)

// fakeJobs is an in-memory JobStorage for staging tests
type fakeJobs struct {
	jobs map[string]*models.ExtractionJob
}

func newFakeJobs() *fakeJobs {
	return &fakeJobs{jobs: make(map[string]*models.ExtractionJob)}
}

func (f *fakeJobs) Create(_ context.Context, job *models.ExtractionJob) error {
	f.jobs[job.ID] = job
	return nil
}

func (f *fakeJobs) Update(_ context.Context, job *models.ExtractionJob) error {
	f.jobs[job.ID] = job
	return nil
}

func (f *fakeJobs) Get(_ context.Context, id string) (*models.ExtractionJob, error) {
	job, ok := f.jobs[id]
	if !ok {
		return nil, fmt.Errorf("job %s: %w", id, models.ErrNotFound)
	}
	return job, nil
}

func (f *fakeJobs) SetStatus(_ context.Context, id string, status models.JobStatus, errorMessage string) error {
	if job, ok := f.jobs[id]; ok {
		job.Status = status
		job.ErrorMessage = errorMessage
	}
	return nil
}

func (f *fakeJobs) ListByStatus(_ context.Context, status models.JobStatus) ([]*models.ExtractionJob, error) {
	var out []*models.ExtractionJob
	for _, job := range f.jobs {
		if job.Status == status {
			out = append(out, job)
		}
	}
	return out, nil
}

func testRows(n int) []interfaces.Row {
	rows := make([]interfaces.Row, n)
	for i := range rows {
		rows[i] = interfaces.Row{
			"name":  fmt.Sprintf("item-%d", i),
			"price": float64(i) + 0.5,
		}
	}
	return rows
}

func newTestStore(t *testing.T, threshold int) (*Store, *fakeJobs) {
	t.Helper()
	jobs := newFakeJobs()
	cfg := common.StagingConfig{Root: t.TempDir(), InlineThreshold: threshold}
	return New(cfg, jobs, common.GetLogger()), jobs
}

func stageJob(t *testing.T, store *Store, jobs *fakeJobs, jobID string, rows []interfaces.Row) *interfaces.StagedPayload {
	t.Helper()
	payload, err := store.Put(context.Background(), jobID, rows)
	require.NoError(t, err)

	job := &models.ExtractionJob{ID: jobID, Status: models.JobStatusStaging}
	job.StagedDataInline = payload.Inline
	job.StagedDataPath = payload.Path
	job.StagedRowCount = payload.RowCount
	require.NoError(t, jobs.Create(context.Background(), job))
	return payload
}

func TestPutInlineUnderThreshold(t *testing.T) {
	store, jobs := newTestStore(t, 1<<20)

	payload := stageJob(t, store, jobs, "job_inline", testRows(3))
	assert.NotEmpty(t, payload.Inline)
	assert.Empty(t, payload.Path)
	assert.Equal(t, 3, payload.RowCount)
}

func TestPutSpillsOverThreshold(t *testing.T) {
	store, jobs := newTestStore(t, 64)

	payload := stageJob(t, store, jobs, "job_spill", testRows(10))
	assert.Empty(t, payload.Inline)
	require.NotEmpty(t, payload.Path)
	assert.Equal(t, filepath.Base(payload.Path), "job_spill.json")

	_, err := os.Stat(payload.Path)
	require.NoError(t, err)
}

func TestGetRoundTripInline(t *testing.T) {
	store, jobs := newTestStore(t, 1<<20)
	rows := testRows(6)
	stageJob(t, store, jobs, "job_rt", rows)

	page, err := store.Get(context.Background(), "job_rt", 1, 10)
	require.NoError(t, err)
	assert.Equal(t, 6, page.TotalRowCount)
	require.Len(t, page.Rows, 6)
	assert.Equal(t, "item-0", page.Rows[0]["name"])
	assert.Equal(t, "item-5", page.Rows[5]["name"])
	assert.ElementsMatch(t, []string{"name", "price"}, page.Columns)
}

func TestGetRoundTripSpilled(t *testing.T) {
	store, jobs := newTestStore(t, 64)
	stageJob(t, store, jobs, "job_rt2", testRows(6))

	page, err := store.Get(context.Background(), "job_rt2", 1, 10)
	require.NoError(t, err)
	assert.Equal(t, 6, page.TotalRowCount)
	assert.Len(t, page.Rows, 6)
}

func TestGetPaging(t *testing.T) {
	store, jobs := newTestStore(t, 1<<20)
	stageJob(t, store, jobs, "job_page", testRows(7))

	ctx := context.Background()

	first, err := store.Get(ctx, "job_page", 1, 3)
	require.NoError(t, err)
	assert.Len(t, first.Rows, 3)
	assert.Equal(t, 7, first.TotalRowCount)
	assert.Equal(t, "item-0", first.Rows[0]["name"])

	last, err := store.Get(ctx, "job_page", 3, 3)
	require.NoError(t, err)
	assert.Len(t, last.Rows, 1)
	assert.Equal(t, "item-6", last.Rows[0]["name"])

	beyond, err := store.Get(ctx, "job_page", 5, 3)
	require.NoError(t, err)
	assert.Empty(t, beyond.Rows)
}

func TestGetColumnOrderStable(t *testing.T) {
	store, jobs := newTestStore(t, 1<<20)
	stageJob(t, store, jobs, "job_cols", testRows(4))

	ctx := context.Background()
	first, err := store.Get(ctx, "job_cols", 1, 10)
	require.NoError(t, err)

	for i := 0; i < 5; i++ {
		again, err := store.Get(ctx, "job_cols", 1, 10)
		require.NoError(t, err)
		assert.Equal(t, first.Columns, again.Columns)
	}
}

func TestGetNoStagedData(t *testing.T) {
	store, jobs := newTestStore(t, 1<<20)
	require.NoError(t, jobs.Create(context.Background(), &models.ExtractionJob{ID: "job_bare"}))

	_, err := store.Get(context.Background(), "job_bare", 1, 10)
	assert.ErrorIs(t, err, models.ErrNotFound)
}

func TestDeleteRemovesSpillFile(t *testing.T) {
	store, jobs := newTestStore(t, 64)
	payload := stageJob(t, store, jobs, "job_del", testRows(10))

	require.NoError(t, store.Delete("job_del"))
	_, err := os.Stat(payload.Path)
	assert.True(t, os.IsNotExist(err))
}

func TestDeleteMissingFileIsNoop(t *testing.T) {
	store, _ := newTestStore(t, 1<<20)
	assert.NoError(t, store.Delete("job_never_staged"))
}
