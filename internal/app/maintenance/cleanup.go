package maintenance

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/multierr"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/TalentPoolPicos/talentpool-backend/internal/models"
	"github.com/TalentPoolPicos/talentpool-backend/pkg/logger"
	"github.com/TalentPoolPicos/talentpool-backend/pkg/metrics"
)

const (
	defaultRetentionDays = 30
	intensiveWindowDays  = 7

	defaultExpiredSpec   = "0 */6 * * *"
	defaultReadAgedSpec  = "@daily"
	defaultIntensiveSpec = "@weekly"
)

// Cleaner runs the recurring retention sweeps over the notification table:
// expired purge every six hours, read-aged purge daily, and an intensive
// weekly purge with a tighter window. Tasks are independent and idempotent;
// a failed run is logged and never prevents the next one.
type Cleaner struct {
	db   *gorm.DB
	cron *cron.Cron
	now  func() time.Time
	log  *zap.Logger

	retentionDays int

	expiredSchedule   string
	readAgedSchedule  string
	intensiveSchedule string
}

// Option customises the Cleaner.
type Option func(*Cleaner)

// WithCron injects a preconfigured cron instance, primarily for testing.
func WithCron(c *cron.Cron) Option {
	return func(cleaner *Cleaner) {
		if c != nil {
			cleaner.cron = c
		}
	}
}

// WithNow overrides the clock used for purge cut-off comparisons.
func WithNow(now func() time.Time) Option {
	return func(cleaner *Cleaner) {
		if now != nil {
			cleaner.now = now
		}
	}
}

// WithRetentionDays adjusts how long read notifications are retained.
func WithRetentionDays(days int) Option {
	return func(cleaner *Cleaner) {
		if days > 0 {
			cleaner.retentionDays = days
		}
	}
}

// WithSchedules overrides the cron specifications for the three sweeps.
// Empty strings keep the defaults.
func WithSchedules(expired, readAged, intensive string) Option {
	return func(cleaner *Cleaner) {
		if expired != "" {
			cleaner.expiredSchedule = expired
		}
		if readAged != "" {
			cleaner.readAgedSchedule = readAged
		}
		if intensive != "" {
			cleaner.intensiveSchedule = intensive
		}
	}
}

// NewCleaner constructs a Cleaner with sensible defaults.
func NewCleaner(db *gorm.DB, opts ...Option) (*Cleaner, error) {
	if db == nil {
		return nil, errors.New("cleaner: db is required")
	}

	cleaner := &Cleaner{
		db:                db,
		now:               time.Now,
		log:               logger.WithModule("maintenance"),
		retentionDays:     defaultRetentionDays,
		expiredSchedule:   defaultExpiredSpec,
		readAgedSchedule:  defaultReadAgedSpec,
		intensiveSchedule: defaultIntensiveSpec,
	}

	for _, opt := range opts {
		opt(cleaner)
	}

	if cleaner.cron == nil {
		cleaner.cron = cron.New(cron.WithLogger(cron.DiscardLogger))
	}

	return cleaner, nil
}

// Start registers the sweeps with the cron scheduler and launches it.
func (c *Cleaner) Start() error {
	jobs := []struct {
		spec string
		name string
		run  func(context.Context) (int64, error)
	}{
		{c.expiredSchedule, "expired", c.PurgeExpired},
		{c.readAgedSchedule, "read_aged", func(ctx context.Context) (int64, error) {
			return c.PurgeReadOlderThan(ctx, c.retentionDays)
		}},
		{c.intensiveSchedule, "intensive", func(ctx context.Context) (int64, error) {
			return c.PurgeReadOlderThan(ctx, intensiveWindowDays)
		}},
	}

	for _, job := range jobs {
		job := job
		if _, err := c.cron.AddFunc(job.spec, func() {
			removed, err := job.run(context.Background())
			if err != nil {
				c.log.Warn("cleanup task failed", zap.String("task", job.name), zap.Error(err))
				return
			}
			metrics.NotificationsPurged.WithLabelValues(job.name).Add(float64(removed))
			c.log.Info("cleanup task finished", zap.String("task", job.name), zap.Int64("removed", removed))
		}); err != nil {
			return fmt.Errorf("cleaner: register %s task: %w", job.name, err)
		}
	}

	c.cron.Start()
	return nil
}

// Stop halts the underlying scheduler, waiting for any running task.
func (c *Cleaner) Stop() context.Context {
	if c.cron == nil {
		return context.Background()
	}
	return c.cron.Stop()
}

// PurgeExpired removes every notification whose expiry has passed,
// regardless of read state.
func (c *Cleaner) PurgeExpired(ctx context.Context) (int64, error) {
	result := c.db.WithContext(ctx).
		Where("expires_at IS NOT NULL AND expires_at < ?", c.now().UTC()).
		Delete(&models.Notification{})
	if result.Error != nil {
		return 0, fmt.Errorf("cleaner: purge expired: %w", result.Error)
	}
	return result.RowsAffected, nil
}

// PurgeReadOlderThan removes read notifications whose read_at is older than
// the supplied window in days.
func (c *Cleaner) PurgeReadOlderThan(ctx context.Context, days int) (int64, error) {
	if days <= 0 {
		return 0, errors.New("cleaner: days must be positive")
	}

	cutoff := c.now().UTC().AddDate(0, 0, -days)
	result := c.db.WithContext(ctx).
		Where("is_read = ? AND read_at < ?", true, cutoff).
		Delete(&models.Notification{})
	if result.Error != nil {
		return 0, fmt.Errorf("cleaner: purge read-aged: %w", result.Error)
	}
	return result.RowsAffected, nil
}

// ManualCleanupStats reports what an administrative trigger removed, counted
// before deletion.
type ManualCleanupStats struct {
	OldReadNotifications int64 `json:"oldReadNotifications"`
	ExpiredNotifications int64 `json:"expiredNotifications"`
}

// RunManual executes both purges with a caller-supplied age threshold. The
// counts are taken before deleting so the caller sees exactly what was
// removed rather than a post-hoc estimate.
func (c *Cleaner) RunManual(ctx context.Context, olderThanDays int) (ManualCleanupStats, error) {
	if olderThanDays <= 0 {
		olderThanDays = c.retentionDays
	}

	now := c.now().UTC()
	cutoff := now.AddDate(0, 0, -olderThanDays)
	stats := ManualCleanupStats{}

	if err := c.db.WithContext(ctx).
		Model(&models.Notification{}).
		Where("is_read = ? AND read_at < ?", true, cutoff).
		Count(&stats.OldReadNotifications).Error; err != nil {
		return stats, fmt.Errorf("cleaner: count read-aged: %w", err)
	}

	if err := c.db.WithContext(ctx).
		Model(&models.Notification{}).
		Where("expires_at IS NOT NULL AND expires_at < ?", now).
		Count(&stats.ExpiredNotifications).Error; err != nil {
		return stats, fmt.Errorf("cleaner: count expired: %w", err)
	}

	if err := c.db.WithContext(ctx).
		Where("is_read = ? AND read_at < ?", true, cutoff).
		Delete(&models.Notification{}).Error; err != nil {
		return stats, fmt.Errorf("cleaner: delete read-aged: %w", err)
	}

	if err := c.db.WithContext(ctx).
		Where("expires_at IS NOT NULL AND expires_at < ?", now).
		Delete(&models.Notification{}).Error; err != nil {
		return stats, fmt.Errorf("cleaner: delete expired: %w", err)
	}

	return stats, nil
}

// RunOnce executes all sweeps sequentially. Used during graceful shutdown
// and in tests.
func (c *Cleaner) RunOnce(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}

	var errs error

	if _, err := c.PurgeExpired(ctx); err != nil {
		errs = multierr.Append(errs, err)
	}
	if _, err := c.PurgeReadOlderThan(ctx, c.retentionDays); err != nil {
		errs = multierr.Append(errs, err)
	}
	if _, err := c.PurgeReadOlderThan(ctx, intensiveWindowDays); err != nil {
		errs = multierr.Append(errs, err)
	}

	return errs
}
