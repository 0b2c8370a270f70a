package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/TalentPoolPicos/talentpool-backend/internal/models"
	apperrors "github.com/TalentPoolPicos/talentpool-backend/pkg/errors"
	"github.com/TalentPoolPicos/talentpool-backend/pkg/logger"
	"github.com/TalentPoolPicos/talentpool-backend/pkg/metrics"
)

const (
	defaultPollInterval = time.Second
	defaultConcurrency  = 2
	defaultMaxAttempts  = 3
	defaultBackoffBase  = 2 * time.Second
	defaultRetention    = 24 * time.Hour
	gcInterval          = time.Hour
)

// Handler processes a dequeued job. Implementations must not panic; a handler
// reports failure through the returned Result rather than an error so the
// queue can record the attempt without tearing down the consumer.
type Handler func(ctx context.Context, job *models.Job) Result

// Result describes the outcome of a single processing attempt.
type Result struct {
	Success bool
	// Permanent marks a failure as non-retryable (malformed payloads).
	Permanent bool
	Err       error
	// NotificationID carries the public identifier of whatever the handler
	// produced, for logging.
	NotificationID string
}

// EnqueueOptions control scheduling of a single job.
type EnqueueOptions struct {
	Priority    int
	Delay       time.Duration
	MaxAttempts int
	BackoffBase time.Duration
}

// JobHandle is returned to producers after a successful enqueue. It identifies
// the queued work, not the eventual notification.
type JobHandle struct {
	ID    string    `json:"id"`
	Kind  string    `json:"kind"`
	RunAt time.Time `json:"run_at"`
}

// Queue is a durable job queue backed by the shared relational store. Jobs are
// claimed with a compare-and-set status transition so multiple consumer
// instances never process the same job concurrently.
type Queue struct {
	db  *gorm.DB
	log *zap.Logger
	now func() time.Time

	mu       sync.RWMutex
	handlers map[string]Handler

	pollInterval time.Duration
	concurrency  int
	retention    time.Duration

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// Option customises the Queue.
type Option func(*Queue)

// WithNow overrides the clock used for scheduling and claiming.
func WithNow(now func() time.Time) Option {
	return func(q *Queue) {
		if now != nil {
			q.now = now
		}
	}
}

// WithPollInterval adjusts how often idle consumers look for due jobs.
func WithPollInterval(d time.Duration) Option {
	return func(q *Queue) {
		if d > 0 {
			q.pollInterval = d
		}
	}
}

// WithConcurrency sets the number of consumer goroutines started by Start.
func WithConcurrency(n int) Option {
	return func(q *Queue) {
		if n > 0 {
			q.concurrency = n
		}
	}
}

// WithRetention adjusts how long completed and dead jobs are kept before the
// queue's own garbage collection removes them.
func WithRetention(d time.Duration) Option {
	return func(q *Queue) {
		if d > 0 {
			q.retention = d
		}
	}
}

// New constructs a Queue on top of the shared database handle.
func New(db *gorm.DB, opts ...Option) (*Queue, error) {
	if db == nil {
		return nil, errors.New("queue: db is required")
	}

	q := &Queue{
		db:           db,
		log:          logger.WithModule("queue"),
		now:          time.Now,
		handlers:     make(map[string]Handler),
		pollInterval: defaultPollInterval,
		concurrency:  defaultConcurrency,
		retention:    defaultRetention,
	}

	for _, opt := range opts {
		opt(q)
	}

	return q, nil
}

// Register binds a handler to a job kind. Jobs of unregistered kinds stay
// queued until a handler appears.
func (q *Queue) Register(kind string, handler Handler) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.handlers[kind] = handler
}

// Enqueue durably stores a job for asynchronous processing and returns a
// handle immediately. The work itself has not happened when Enqueue returns.
func (q *Queue) Enqueue(ctx context.Context, kind string, payload any, opts EnqueueOptions) (*JobHandle, error) {
	if kind == "" {
		return nil, errors.New("queue: job kind is required")
	}

	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("queue: marshal payload: %w", err)
	}

	priority := opts.Priority
	if priority <= 0 {
		priority = 1
	}

	maxAttempts := opts.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = defaultMaxAttempts
	}

	backoff := opts.BackoffBase
	if backoff <= 0 {
		backoff = defaultBackoffBase
	}

	job := models.Job{
		Kind:          kind,
		Payload:       data,
		Status:        models.JobStatusQueued,
		Priority:      priority,
		MaxAttempts:   maxAttempts,
		BackoffBaseMS: backoff.Milliseconds(),
		RunAt:         q.now().UTC().Add(opts.Delay),
	}

	if err := q.db.WithContext(ctx).Create(&job).Error; err != nil {
		return nil, apperrors.ErrQueueUnavailable.WithInternal(err)
	}

	metrics.JobsEnqueued.WithLabelValues(kind).Inc()

	return &JobHandle{ID: job.UUID, Kind: job.Kind, RunAt: job.RunAt}, nil
}

// Start launches the consumer goroutines plus the retention sweeper. It
// returns immediately; Stop blocks until all workers drain.
func (q *Queue) Start() {
	ctx, cancel := context.WithCancel(context.Background())
	q.cancel = cancel

	for i := 0; i < q.concurrency; i++ {
		q.wg.Add(1)
		go func() {
			defer q.wg.Done()
			q.consumeLoop(ctx)
		}()
	}

	q.wg.Add(1)
	go func() {
		defer q.wg.Done()
		q.gcLoop(ctx)
	}()
}

// Stop signals all consumers to finish their current job and waits for them.
func (q *Queue) Stop() {
	if q.cancel != nil {
		q.cancel()
	}
	q.wg.Wait()
}

func (q *Queue) consumeLoop(ctx context.Context) {
	ticker := time.NewTicker(q.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := q.ProcessDue(ctx); err != nil {
				q.log.Warn("queue poll failed", zap.Error(err))
			}
		}
	}
}

// ProcessDue claims and processes every currently due job, returning the
// number handled. Exposed for tests and the consumer loop alike.
func (q *Queue) ProcessDue(ctx context.Context) (int, error) {
	processed := 0
	for {
		job, ok, err := q.claimNext(ctx)
		if err != nil {
			return processed, err
		}
		if !ok {
			return processed, nil
		}

		q.process(ctx, job)
		processed++
	}
}

// claimNext finds the next due queued job and atomically flips it to active.
// The compare-and-set on status means a row claimed by a concurrent consumer
// is simply skipped here and the search restarts.
func (q *Queue) claimNext(ctx context.Context) (*models.Job, bool, error) {
	kinds := q.registeredKinds()
	if len(kinds) == 0 {
		return nil, false, nil
	}

	for {
		var job models.Job
		err := q.db.WithContext(ctx).
			Where("status = ? AND run_at <= ? AND kind IN ?", models.JobStatusQueued, q.now().UTC(), kinds).
			Order("priority DESC, run_at ASC, id ASC").
			First(&job).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, false, nil
		}
		if err != nil {
			return nil, false, fmt.Errorf("queue: find due job: %w", err)
		}

		claim := q.db.WithContext(ctx).
			Model(&models.Job{}).
			Where("id = ? AND status = ?", job.ID, models.JobStatusQueued).
			Updates(map[string]any{
				"status":   models.JobStatusActive,
				"attempts": gorm.Expr("attempts + 1"),
			})
		if claim.Error != nil {
			return nil, false, fmt.Errorf("queue: claim job: %w", claim.Error)
		}
		if claim.RowsAffected == 0 {
			// Lost the race to another consumer; look again.
			continue
		}

		job.Status = models.JobStatusActive
		job.Attempts++
		return &job, true, nil
	}
}

func (q *Queue) process(ctx context.Context, job *models.Job) {
	handler := q.handler(job.Kind)
	if handler == nil {
		return
	}

	result := handler(ctx, job)

	switch {
	case result.Success:
		now := q.now().UTC()
		if err := q.db.WithContext(ctx).Model(job).Updates(map[string]any{
			"status":       models.JobStatusCompleted,
			"completed_at": now,
			"last_error":   "",
		}).Error; err != nil {
			q.log.Error("queue: mark completed failed", zap.String("job", job.UUID), zap.Error(err))
			return
		}
		metrics.JobsProcessed.WithLabelValues(job.Kind, "completed").Inc()

	case result.Permanent || job.Attempts >= job.MaxAttempts:
		if err := q.db.WithContext(ctx).Model(job).Updates(map[string]any{
			"status":     models.JobStatusDead,
			"last_error": errorText(result.Err),
		}).Error; err != nil {
			q.log.Error("queue: mark dead failed", zap.String("job", job.UUID), zap.Error(err))
			return
		}
		metrics.JobsProcessed.WithLabelValues(job.Kind, "dead").Inc()
		q.log.Warn("job failed permanently",
			zap.String("job", job.UUID),
			zap.String("kind", job.Kind),
			zap.Int("attempts", job.Attempts),
			zap.Error(result.Err),
		)

	default:
		delay := backoffDelay(job.BackoffBase(), job.Attempts)
		if err := q.db.WithContext(ctx).Model(job).Updates(map[string]any{
			"status":     models.JobStatusQueued,
			"run_at":     q.now().UTC().Add(delay),
			"last_error": errorText(result.Err),
		}).Error; err != nil {
			q.log.Error("queue: reschedule failed", zap.String("job", job.UUID), zap.Error(err))
			return
		}
		metrics.JobsProcessed.WithLabelValues(job.Kind, "retried").Inc()
		q.log.Info("job rescheduled",
			zap.String("job", job.UUID),
			zap.Int("attempt", job.Attempts),
			zap.Duration("delay", delay),
		)
	}
}

func (q *Queue) gcLoop(ctx context.Context) {
	ticker := time.NewTicker(gcInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if removed, err := q.CollectGarbage(ctx); err != nil {
				q.log.Warn("queue gc failed", zap.Error(err))
			} else if removed > 0 {
				q.log.Info("queue gc removed terminal jobs", zap.Int64("count", removed))
			}
		}
	}
}

// CollectGarbage removes completed and dead jobs older than the retention
// window. Terminal job rows are the queue's own concern, not the cleanup
// scheduler's.
func (q *Queue) CollectGarbage(ctx context.Context) (int64, error) {
	cutoff := q.now().UTC().Add(-q.retention)
	result := q.db.WithContext(ctx).
		Where("status IN ? AND updated_at < ?", []string{models.JobStatusCompleted, models.JobStatusDead}, cutoff).
		Delete(&models.Job{})
	if result.Error != nil {
		return 0, fmt.Errorf("queue: collect garbage: %w", result.Error)
	}
	return result.RowsAffected, nil
}

// Depth reports the number of jobs waiting to run.
func (q *Queue) Depth(ctx context.Context) (int64, error) {
	var count int64
	err := q.db.WithContext(ctx).
		Model(&models.Job{}).
		Where("status = ?", models.JobStatusQueued).
		Count(&count).Error
	if err != nil {
		return 0, fmt.Errorf("queue: depth: %w", err)
	}
	return count, nil
}

func (q *Queue) handler(kind string) Handler {
	q.mu.RLock()
	defer q.mu.RUnlock()
	return q.handlers[kind]
}

func (q *Queue) registeredKinds() []string {
	q.mu.RLock()
	defer q.mu.RUnlock()

	kinds := make([]string, 0, len(q.handlers))
	for kind := range q.handlers {
		kinds = append(kinds, kind)
	}
	return kinds
}

// backoffDelay computes base * 2^(attempt-1) for exponential retry spacing.
func backoffDelay(base time.Duration, attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	delay := base
	for i := 1; i < attempt; i++ {
		delay *= 2
	}
	return delay
}

func errorText(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
