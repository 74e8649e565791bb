package scheduler

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Fazmin/syncengine/internal/common"
	"github.com/Fazmin/syncengine/internal/models"
	"github.com/Fazmin/syncengine/internal/storage/badger"
)

// stubRunner blocks each run until released
type stubRunner struct {
	mu      sync.Mutex
	starts  int32
	release chan struct{}
	err     error
}

func newStubRunner() *stubRunner {
	return &stubRunner{release: make(chan struct{})}
}

func (r *stubRunner) RunDetached(_ context.Context, assignmentID string, _ models.SyncMode, _ models.TriggeredBy) (string, <-chan struct{}, error) {
	if r.err != nil {
		return "", nil, r.err
	}
	n := atomic.AddInt32(&r.starts, 1)
	done := make(chan struct{})
	release := r.release
	go func() {
		<-release
		close(done)
	}()
	return fmt.Sprintf("job_%s_%d", assignmentID, n), done, nil
}

func (r *stubRunner) startCount() int {
	return int(atomic.LoadInt32(&r.starts))
}

func newTestScheduler(t *testing.T, runner Runner) (*Service, *badger.Repository) {
	t.Helper()
	repo, err := badger.NewRepository(common.GetLogger(), &common.BadgerConfig{Path: t.TempDir()})
	require.NoError(t, err)
	t.Cleanup(func() { repo.Close() })

	svc := New(runner, repo, common.GetLogger())
	t.Cleanup(svc.Stop)
	return svc, repo
}

func autoAssignment(id string, scheduleType models.ScheduleType) *models.Assignment {
	return &models.Assignment{
		ID: id, Name: id, DataSourceID: "ds", WebSourceID: "ws", TargetTable: "t",
		SyncMode: models.SyncModeAuto, ScheduleType: scheduleType,
		Status: models.AssignmentStatusActive, ExtractionMethod: models.ExtractionMethodSelector,
	}
}

func TestScheduleRegistersEntry(t *testing.T) {
	svc, _ := newTestScheduler(t, newStubRunner())

	require.NoError(t, svc.Schedule(autoAssignment("a1", models.ScheduleTypeHourly)))

	status := svc.Status()
	require.Len(t, status.Scheduled, 1)
	assert.Equal(t, "a1", status.Scheduled[0].AssignmentID)
	assert.Equal(t, "0 * * * *", status.Scheduled[0].CronSpec)
}

func TestScheduleRefusesInvalidCron(t *testing.T) {
	svc, _ := newTestScheduler(t, newStubRunner())

	a := autoAssignment("a1", models.ScheduleTypeCron)
	a.CronExpression = "not a cron"
	assert.Error(t, svc.Schedule(a))
	assert.Empty(t, svc.Status().Scheduled)
}

func TestScheduleManualUnschedules(t *testing.T) {
	svc, _ := newTestScheduler(t, newStubRunner())

	require.NoError(t, svc.Schedule(autoAssignment("a1", models.ScheduleTypeDaily)))
	require.Len(t, svc.Status().Scheduled, 1)

	require.NoError(t, svc.Schedule(autoAssignment("a1", models.ScheduleTypeManual)))
	assert.Empty(t, svc.Status().Scheduled)
}

func TestScheduleReplacesExistingEntry(t *testing.T) {
	svc, _ := newTestScheduler(t, newStubRunner())

	require.NoError(t, svc.Schedule(autoAssignment("a1", models.ScheduleTypeHourly)))
	require.NoError(t, svc.Schedule(autoAssignment("a1", models.ScheduleTypeWeekly)))

	status := svc.Status()
	require.Len(t, status.Scheduled, 1)
	assert.Equal(t, "0 0 * * 0", status.Scheduled[0].CronSpec)
}

func TestTriggerNowSingleFlight(t *testing.T) {
	runner := newStubRunner()
	svc, _ := newTestScheduler(t, runner)
	ctx := context.Background()

	jobID, err := svc.TriggerNow(ctx, "a1", models.SyncModeManual)
	require.NoError(t, err)
	assert.NotEmpty(t, jobID)

	_, err = svc.TriggerNow(ctx, "a1", models.SyncModeManual)
	assert.ErrorIs(t, err, models.ErrAlreadyRunning)
	assert.Equal(t, 1, runner.startCount())
	assert.Equal(t, []string{"a1"}, svc.Status().Running)

	// a different assignment is not blocked
	_, err = svc.TriggerNow(ctx, "a2", models.SyncModeManual)
	require.NoError(t, err)

	close(runner.release)
	require.Eventually(t, func() bool {
		return len(svc.Status().Running) == 0
	}, 2*time.Second, 10*time.Millisecond)

	runner.release = make(chan struct{})
	_, err = svc.TriggerNow(ctx, "a1", models.SyncModeManual)
	assert.NoError(t, err)
	close(runner.release)
}

func TestTriggerNowConcurrent(t *testing.T) {
	runner := newStubRunner()
	svc, _ := newTestScheduler(t, runner)

	const callers = 8
	var successes, conflicts int32
	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.TriggerNow(context.Background(), "a1", models.SyncModeManual)
			if err == nil {
				atomic.AddInt32(&successes, 1)
			} else if err == models.ErrAlreadyRunning {
				atomic.AddInt32(&conflicts, 1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), successes)
	assert.Equal(t, int32(callers-1), conflicts)
	close(runner.release)
}

func TestOnTickSkipsWhileRunning(t *testing.T) {
	runner := newStubRunner()
	svc, repo := newTestScheduler(t, runner)
	require.NoError(t, repo.Assignments().Save(context.Background(), autoAssignment("a1", models.ScheduleTypeHourly)))

	svc.onTick("a1")
	svc.onTick("a1")
	assert.Equal(t, 1, runner.startCount())

	close(runner.release)
	require.Eventually(t, func() bool {
		return len(svc.Status().Running) == 0
	}, 2*time.Second, 10*time.Millisecond)

	runner.release = make(chan struct{})
	svc.onTick("a1")
	assert.Equal(t, 2, runner.startCount())
	close(runner.release)
}

func TestOnTickReleasesOnStartFailure(t *testing.T) {
	runner := newStubRunner()
	runner.err = fmt.Errorf("no such assignment")
	svc, repo := newTestScheduler(t, runner)
	require.NoError(t, repo.Assignments().Save(context.Background(), autoAssignment("a1", models.ScheduleTypeHourly)))

	svc.onTick("a1")
	assert.Empty(t, svc.Status().Running)
}

func TestInitializeSchedulesActiveAuto(t *testing.T) {
	runner := newStubRunner()
	svc, repo := newTestScheduler(t, runner)
	ctx := context.Background()

	eligible := autoAssignment("a1", models.ScheduleTypeDaily)
	manual := autoAssignment("a2", models.ScheduleTypeManual)
	paused := autoAssignment("a3", models.ScheduleTypeDaily)
	paused.Status = models.AssignmentStatusPaused
	for _, a := range []*models.Assignment{eligible, manual, paused} {
		require.NoError(t, repo.Assignments().Save(ctx, a))
	}

	require.NoError(t, svc.Initialize(ctx))

	status := svc.Status()
	require.Len(t, status.Scheduled, 1)
	assert.Equal(t, "a1", status.Scheduled[0].AssignmentID)
	require.NotNil(t, status.Scheduled[0].NextRun)
	assert.True(t, status.Scheduled[0].NextRun.After(time.Now().Add(-time.Minute)))
}

func TestInitializeFailsOrphanedJobs(t *testing.T) {
	runner := newStubRunner()
	svc, repo := newTestScheduler(t, runner)
	ctx := context.Background()

	require.NoError(t, repo.Jobs().Create(ctx, &models.ExtractionJob{ID: "j_run", AssignmentID: "a"}))
	require.NoError(t, repo.Jobs().SetStatus(ctx, "j_run", models.JobStatusRunning, ""))
	require.NoError(t, repo.Jobs().Create(ctx, &models.ExtractionJob{ID: "j_pend", AssignmentID: "a"}))
	require.NoError(t, repo.Jobs().Create(ctx, &models.ExtractionJob{ID: "j_stage", AssignmentID: "a"}))
	require.NoError(t, repo.Jobs().SetStatus(ctx, "j_stage", models.JobStatusRunning, ""))
	require.NoError(t, repo.Jobs().SetStatus(ctx, "j_stage", models.JobStatusStaging, ""))

	require.NoError(t, svc.Initialize(ctx))

	for _, id := range []string{"j_run", "j_pend"} {
		job, err := repo.Jobs().Get(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, models.JobStatusFailed, job.Status)
		assert.Contains(t, job.ErrorMessage, "restart")
	}

	// staged jobs survive awaiting commit
	staged, err := repo.Jobs().Get(ctx, "j_stage")
	require.NoError(t, err)
	assert.Equal(t, models.JobStatusStaging, staged.Status)
}
