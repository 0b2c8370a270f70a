package models

import (
	"time"

	"gorm.io/datatypes"
)

// Job lifecycle states. A job re-enters "queued" after a retryable failure and
// terminates in "completed" or "dead"; terminal rows are garbage-collected by
// the queue itself.
const (
	JobStatusQueued    = "queued"
	JobStatusActive    = "active"
	JobStatusCompleted = "completed"
	JobStatusDead      = "dead"
)

// Job is the durable queue envelope for asynchronous work.
type Job struct {
	BaseModel

	Kind    string         `gorm:"type:varchar(64);not null;index" json:"kind"`
	Payload datatypes.JSON `gorm:"not null" json:"payload"`

	Status   string `gorm:"type:varchar(16);not null;default:'queued';index" json:"status"`
	Priority int    `gorm:"not null;default:1;index" json:"priority"`

	Attempts      int   `gorm:"not null;default:0" json:"attempts"`
	MaxAttempts   int   `gorm:"not null;default:3" json:"max_attempts"`
	BackoffBaseMS int64 `gorm:"not null;default:2000" json:"backoff_base_ms"`

	RunAt       time.Time  `gorm:"not null;index" json:"run_at"`
	CompletedAt *time.Time `json:"completed_at"`
	LastError   string     `gorm:"type:text" json:"last_error"`
}

// BackoffBase returns the configured base delay for exponential retries.
func (j *Job) BackoffBase() time.Duration {
	if j.BackoffBaseMS <= 0 {
		return 2 * time.Second
	}
	return time.Duration(j.BackoffBaseMS) * time.Millisecond
}
