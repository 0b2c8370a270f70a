package queue

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/TalentPoolPicos/talentpool-backend/internal/database/testutil"
	"github.com/TalentPoolPicos/talentpool-backend/internal/models"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func TestEnqueueAppliesDefaults(t *testing.T) {
	db := testutil.MustOpenTestDB(t)
	q, err := New(db)
	require.NoError(t, err)

	handle, err := q.Enqueue(context.Background(), "notification.create", map[string]any{"hello": "world"}, EnqueueOptions{})
	require.NoError(t, err)
	require.NotEmpty(t, handle.ID)
	require.Equal(t, "notification.create", handle.Kind)

	var job models.Job
	require.NoError(t, db.Where("uuid = ?", handle.ID).First(&job).Error)
	require.Equal(t, models.JobStatusQueued, job.Status)
	require.Equal(t, 1, job.Priority)
	require.Equal(t, 3, job.MaxAttempts)
	require.Equal(t, int64(2000), job.BackoffBaseMS)
	require.Equal(t, 0, job.Attempts)
}

func TestEnqueueRejectsEmptyKind(t *testing.T) {
	db := testutil.MustOpenTestDB(t)
	q, err := New(db)
	require.NoError(t, err)

	_, err = q.Enqueue(context.Background(), "", nil, EnqueueOptions{})
	require.Error(t, err)
}

func TestEnqueueHonoursDelay(t *testing.T) {
	db := testutil.MustOpenTestDB(t)
	clock := newFakeClock()
	q, err := New(db, WithNow(clock.Now))
	require.NoError(t, err)

	q.Register("delayed", func(ctx context.Context, job *models.Job) Result {
		return Result{Success: true}
	})

	_, err = q.Enqueue(context.Background(), "delayed", nil, EnqueueOptions{Delay: 30 * time.Second})
	require.NoError(t, err)

	processed, err := q.ProcessDue(context.Background())
	require.NoError(t, err)
	require.Zero(t, processed)

	clock.Advance(31 * time.Second)

	processed, err = q.ProcessDue(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, processed)
}

func TestProcessDueCompletesSuccessfulJob(t *testing.T) {
	db := testutil.MustOpenTestDB(t)
	q, err := New(db)
	require.NoError(t, err)

	var handled int
	q.Register("work", func(ctx context.Context, job *models.Job) Result {
		handled++
		return Result{Success: true}
	})

	handle, err := q.Enqueue(context.Background(), "work", nil, EnqueueOptions{})
	require.NoError(t, err)

	processed, err := q.ProcessDue(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, processed)
	require.Equal(t, 1, handled)

	var job models.Job
	require.NoError(t, db.Where("uuid = ?", handle.ID).First(&job).Error)
	require.Equal(t, models.JobStatusCompleted, job.Status)
	require.NotNil(t, job.CompletedAt)
	require.Equal(t, 1, job.Attempts)

	// Completed jobs are not picked up again.
	processed, err = q.ProcessDue(context.Background())
	require.NoError(t, err)
	require.Zero(t, processed)
}

func TestRetryableFailureUsesExponentialBackoff(t *testing.T) {
	db := testutil.MustOpenTestDB(t)
	clock := newFakeClock()
	q, err := New(db, WithNow(clock.Now))
	require.NoError(t, err)

	q.Register("flaky", func(ctx context.Context, job *models.Job) Result {
		return Result{Err: errors.New("downstream unavailable")}
	})

	handle, err := q.Enqueue(context.Background(), "flaky", nil, EnqueueOptions{})
	require.NoError(t, err)

	// First attempt fails and reschedules 2s out.
	processed, err := q.ProcessDue(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, processed)

	var job models.Job
	require.NoError(t, db.Where("uuid = ?", handle.ID).First(&job).Error)
	require.Equal(t, models.JobStatusQueued, job.Status)
	require.Equal(t, 1, job.Attempts)
	require.Equal(t, "downstream unavailable", job.LastError)
	require.WithinDuration(t, clock.Now().Add(2*time.Second), job.RunAt, time.Millisecond)

	// Not due yet.
	processed, err = q.ProcessDue(context.Background())
	require.NoError(t, err)
	require.Zero(t, processed)

	// Second attempt fails and reschedules 4s out.
	clock.Advance(2 * time.Second)
	processed, err = q.ProcessDue(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, processed)

	require.NoError(t, db.Where("uuid = ?", handle.ID).First(&job).Error)
	require.Equal(t, models.JobStatusQueued, job.Status)
	require.Equal(t, 2, job.Attempts)
	require.WithinDuration(t, clock.Now().Add(4*time.Second), job.RunAt, time.Millisecond)

	// Third attempt exhausts the budget and buries the job.
	clock.Advance(4 * time.Second)
	processed, err = q.ProcessDue(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, processed)

	require.NoError(t, db.Where("uuid = ?", handle.ID).First(&job).Error)
	require.Equal(t, models.JobStatusDead, job.Status)
	require.Equal(t, 3, job.Attempts)
}

func TestPermanentFailureSkipsRetries(t *testing.T) {
	db := testutil.MustOpenTestDB(t)
	q, err := New(db)
	require.NoError(t, err)

	q.Register("broken", func(ctx context.Context, job *models.Job) Result {
		return Result{Permanent: true, Err: errors.New("malformed payload")}
	})

	handle, err := q.Enqueue(context.Background(), "broken", nil, EnqueueOptions{})
	require.NoError(t, err)

	_, err = q.ProcessDue(context.Background())
	require.NoError(t, err)

	var job models.Job
	require.NoError(t, db.Where("uuid = ?", handle.ID).First(&job).Error)
	require.Equal(t, models.JobStatusDead, job.Status)
	require.Equal(t, 1, job.Attempts)
	require.Equal(t, "malformed payload", job.LastError)
}

func TestAtLeastOnceDeliveryAfterTransientFailure(t *testing.T) {
	db := testutil.MustOpenTestDB(t)
	clock := newFakeClock()
	q, err := New(db, WithNow(clock.Now))
	require.NoError(t, err)

	calls := 0
	q.Register("eventually", func(ctx context.Context, job *models.Job) Result {
		calls++
		if calls == 1 {
			return Result{Err: errors.New("try again")}
		}
		return Result{Success: true}
	})

	handle, err := q.Enqueue(context.Background(), "eventually", nil, EnqueueOptions{})
	require.NoError(t, err)

	_, err = q.ProcessDue(context.Background())
	require.NoError(t, err)

	clock.Advance(2 * time.Second)
	_, err = q.ProcessDue(context.Background())
	require.NoError(t, err)

	require.Equal(t, 2, calls)

	var job models.Job
	require.NoError(t, db.Where("uuid = ?", handle.ID).First(&job).Error)
	require.Equal(t, models.JobStatusCompleted, job.Status)
	require.Equal(t, 2, job.Attempts)
}

func TestHigherPriorityJobsRunFirst(t *testing.T) {
	db := testutil.MustOpenTestDB(t)
	q, err := New(db)
	require.NoError(t, err)

	var order []int
	q.Register("ranked", func(ctx context.Context, job *models.Job) Result {
		order = append(order, job.Priority)
		return Result{Success: true}
	})

	for _, priority := range []int{1, 4, 2} {
		_, err := q.Enqueue(context.Background(), "ranked", nil, EnqueueOptions{Priority: priority})
		require.NoError(t, err)
	}

	processed, err := q.ProcessDue(context.Background())
	require.NoError(t, err)
	require.Equal(t, 3, processed)
	require.Equal(t, []int{4, 2, 1}, order)
}

func TestUnregisteredKindStaysQueued(t *testing.T) {
	db := testutil.MustOpenTestDB(t)
	q, err := New(db)
	require.NoError(t, err)

	q.Register("known", func(ctx context.Context, job *models.Job) Result {
		return Result{Success: true}
	})

	handle, err := q.Enqueue(context.Background(), "unknown", nil, EnqueueOptions{})
	require.NoError(t, err)

	processed, err := q.ProcessDue(context.Background())
	require.NoError(t, err)
	require.Zero(t, processed)

	var job models.Job
	require.NoError(t, db.Where("uuid = ?", handle.ID).First(&job).Error)
	require.Equal(t, models.JobStatusQueued, job.Status)
	require.Equal(t, 0, job.Attempts)
}

func TestCollectGarbageRemovesOnlyAgedTerminalJobs(t *testing.T) {
	db := testutil.MustOpenTestDB(t)
	clock := newFakeClock()
	q, err := New(db, WithNow(clock.Now), WithRetention(time.Hour))
	require.NoError(t, err)

	q.Register("work", func(ctx context.Context, job *models.Job) Result {
		return Result{Success: true}
	})

	done, err := q.Enqueue(context.Background(), "work", nil, EnqueueOptions{})
	require.NoError(t, err)
	pending, err := q.Enqueue(context.Background(), "later", nil, EnqueueOptions{})
	require.NoError(t, err)

	_, err = q.ProcessDue(context.Background())
	require.NoError(t, err)

	// Age the completed row beyond the retention window.
	stale := clock.Now().Add(-2 * time.Hour)
	require.NoError(t, db.Model(&models.Job{}).
		Where("uuid = ?", done.ID).
		UpdateColumn("updated_at", stale).Error)

	removed, err := q.CollectGarbage(context.Background())
	require.NoError(t, err)
	require.Equal(t, int64(1), removed)

	var count int64
	require.NoError(t, db.Model(&models.Job{}).Count(&count).Error)
	require.Equal(t, int64(1), count)

	var job models.Job
	require.NoError(t, db.Where("uuid = ?", pending.ID).First(&job).Error)
	require.Equal(t, models.JobStatusQueued, job.Status)
}

func TestDepthCountsQueuedJobs(t *testing.T) {
	db := testutil.MustOpenTestDB(t)
	q, err := New(db)
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		_, err := q.Enqueue(context.Background(), "work", nil, EnqueueOptions{})
		require.NoError(t, err)
	}

	depth, err := q.Depth(context.Background())
	require.NoError(t, err)
	require.Equal(t, int64(3), depth)
}

func TestBackoffDelayDoubles(t *testing.T) {
	base := 2 * time.Second
	require.Equal(t, 2*time.Second, backoffDelay(base, 1))
	require.Equal(t, 4*time.Second, backoffDelay(base, 2))
	require.Equal(t, 8*time.Second, backoffDelay(base, 3))
	require.Equal(t, 2*time.Second, backoffDelay(base, 0))
}
