package models

import (
	"time"

	"gorm.io/datatypes"
)

// Notification types understood by the platform. The core stores them verbatim;
// title/message templating happens upstream.
const (
	TypeJobPublished           = "job_published"
	TypeJobApplicationReceived = "job_application_received"
	TypeJobApplicationUpdated  = "job_application_updated"
	TypeProfileLiked           = "profile_liked"
	TypeProfileViewed          = "profile_viewed"
	TypeReviewNotesAdded       = "review_notes_added"
	TypeJobExpiring            = "job_expiring"
	TypeWelcomeMessage         = "welcome_message"
	TypeSystemAnnouncement     = "system_announcement"
	TypeCustom                 = "custom"
)

// Notification priorities. Higher sorts first in a user's feed.
const (
	PriorityLow      = 1
	PriorityMedium   = 2
	PriorityHigh     = 3
	PriorityCritical = 4
)

// Notification represents a persisted in-app notification for a user.
type Notification struct {
	BaseModel

	UserID  string `gorm:"type:uuid;not null;index" json:"user_id"`
	Type    string `gorm:"type:varchar(64);not null;index" json:"type"`
	Title   string `gorm:"type:varchar(200);not null" json:"title"`
	Message string `gorm:"type:text;not null" json:"message"`

	Priority int            `gorm:"not null;default:1;index" json:"priority"`
	Metadata datatypes.JSON `json:"metadata"`

	IsRead bool       `gorm:"not null;default:false;index" json:"is_read"`
	ReadAt *time.Time `gorm:"index" json:"read_at"`

	ExpiresAt *time.Time `gorm:"index" json:"expires_at"`

	ActionURL  string         `gorm:"type:text" json:"action_url"`
	ActionType string         `gorm:"type:varchar(64)" json:"action_type"`
	ActionData datatypes.JSON `json:"action_data"`

	RelatedJobID         *string `gorm:"type:uuid" json:"related_job_id"`
	RelatedApplicationID *string `gorm:"type:uuid" json:"related_application_id"`
	RelatedUserID        *string `gorm:"type:uuid" json:"related_user_id"`
}

// Expired reports whether the notification is eligible for the expiry purge.
func (n *Notification) Expired(now time.Time) bool {
	return n.ExpiresAt != nil && n.ExpiresAt.Before(now)
}
