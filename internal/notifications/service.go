package notifications

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/TalentPoolPicos/talentpool-backend/internal/models"
	"github.com/TalentPoolPicos/talentpool-backend/internal/queue"
	apperrors "github.com/TalentPoolPicos/talentpool-backend/pkg/errors"
	"github.com/TalentPoolPicos/talentpool-backend/pkg/logger"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
	maxTitleLength  = 200
)

// NotificationDTO is the user-facing projection of a notification row.
// Internal audit columns beyond created_at never leave the core.
type NotificationDTO struct {
	ID        string         `json:"id"`
	UserID    string         `json:"user_id"`
	Type      string         `json:"type"`
	Title     string         `json:"title"`
	Message   string         `json:"message"`
	Priority  int            `json:"priority"`
	Metadata  map[string]any `json:"metadata,omitempty"`
	IsRead    bool           `json:"is_read"`
	ReadAt    *time.Time     `json:"read_at,omitempty"`
	ExpiresAt *time.Time     `json:"expires_at,omitempty"`

	ActionURL  string         `json:"action_url,omitempty"`
	ActionType string         `json:"action_type,omitempty"`
	ActionData map[string]any `json:"action_data,omitempty"`

	RelatedJobID         string `json:"related_job_id,omitempty"`
	RelatedApplicationID string `json:"related_application_id,omitempty"`
	RelatedUserID        string `json:"related_user_id,omitempty"`

	CreatedAt time.Time `json:"created_at"`
}

// CreateNotificationInput defines attributes accepted when requesting a
// notification. Queue knobs default to {priority 1, no delay, 3 attempts}.
type CreateNotificationInput struct {
	UserID   string
	Type     string
	Title    string
	Message  string
	Priority int
	Metadata map[string]any

	ExpiresAt *time.Time

	ActionURL  string
	ActionType string
	ActionData map[string]any

	RelatedJobID         string
	RelatedApplicationID string
	RelatedUserID        string

	Delay       time.Duration
	MaxAttempts int
}

// BroadcastInput defines attributes for fan-out notifications.
type BroadcastInput struct {
	Type      string
	Title     string
	Message   string
	Priority  int
	Metadata  map[string]any
	ExpiresAt *time.Time
}

// ListInput defines filters for querying user notifications.
type ListInput struct {
	Page       int
	Limit      int
	UnreadOnly bool
	Type       string
}

// ListResult is the paginated read model for a user's feed.
type ListResult struct {
	Items       []NotificationDTO `json:"items"`
	Total       int64             `json:"total"`
	UnreadCount int64             `json:"unread_count"`
	HasMore     bool              `json:"has_more"`
}

// Service is the producer facade for the notification pipeline. Creation is
// asynchronous: CreateNotification only guarantees the job was durably
// queued, never that the row exists yet.
type Service struct {
	db    *gorm.DB
	queue *queue.Queue
	log   *zap.Logger
}

// NewService constructs the notification producer.
func NewService(db *gorm.DB, q *queue.Queue) (*Service, error) {
	if db == nil {
		return nil, errors.New("notification service: db is required")
	}
	if q == nil {
		return nil, errors.New("notification service: queue is required")
	}
	return &Service{db: db, queue: q, log: logger.WithModule("notifications")}, nil
}

// CreateNotification validates the payload and enqueues a creation job,
// returning the job handle immediately. Enqueue failure is a degraded mode:
// the caller may retry or accept the loss.
func (s *Service) CreateNotification(ctx context.Context, input CreateNotificationInput) (*queue.JobHandle, error) {
	payload, err := buildPayload(input)
	if err != nil {
		return nil, err
	}

	handle, err := s.queue.Enqueue(ctx, JobKindCreate, payload, queue.EnqueueOptions{
		Priority:    payload.Priority,
		Delay:       input.Delay,
		MaxAttempts: input.MaxAttempts,
	})
	if err != nil {
		s.log.Error("enqueue notification failed",
			zap.String("user", payload.UserID),
			zap.String("type", payload.Type),
			zap.Error(err),
		)
		return nil, err
	}

	return handle, nil
}

// GetUserNotifications returns a page of the user's feed ordered by priority
// then recency. Unknown users get an empty page, not an error.
func (s *Service) GetUserNotifications(ctx context.Context, userID string, input ListInput) (*ListResult, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return nil, apperrors.NewValidation("user id is required")
	}

	page := input.Page
	if page < 1 {
		page = 1
	}
	limit := input.Limit
	if limit <= 0 {
		limit = defaultPageSize
	}
	if limit > maxPageSize {
		limit = maxPageSize
	}

	scope := s.db.WithContext(ctx).Model(&models.Notification{}).Where("user_id = ?", userID)
	if input.UnreadOnly {
		scope = scope.Where("is_read = ?", false)
	}
	if t := strings.TrimSpace(input.Type); t != "" {
		scope = scope.Where("type = ?", t)
	}

	var total int64
	if err := scope.Count(&total).Error; err != nil {
		return nil, fmt.Errorf("notification service: count notifications: %w", err)
	}

	var rows []models.Notification
	if err := scope.
		Order("priority DESC, created_at DESC").
		Limit(limit).
		Offset((page - 1) * limit).
		Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("notification service: list notifications: %w", err)
	}

	unread, err := s.GetUnreadCount(ctx, userID)
	if err != nil {
		return nil, err
	}

	return &ListResult{
		Items:       mapNotificationRows(rows),
		Total:       total,
		UnreadCount: unread,
		HasMore:     int64(page*limit) < total,
	}, nil
}

// MarkAsRead transitions a notification to read exactly once. The compound
// (id, user) predicate enforces ownership; repeats and foreign ids are
// no-ops reported as false.
func (s *Service) MarkAsRead(ctx context.Context, notificationID, userID string) (bool, error) {
	now := time.Now().UTC()
	result := s.db.WithContext(ctx).
		Model(&models.Notification{}).
		Where("uuid = ? AND user_id = ? AND is_read = ?", notificationID, userID, false).
		Updates(map[string]any{
			"is_read": true,
			"read_at": now,
		})
	if result.Error != nil {
		return false, fmt.Errorf("notification service: mark read: %w", result.Error)
	}

	return result.RowsAffected == 1, nil
}

// MarkMultipleAsRead marks the owned subset of ids as read, returning the
// number of rows that actually transitioned.
func (s *Service) MarkMultipleAsRead(ctx context.Context, notificationIDs []string, userID string) (int64, error) {
	ids := normaliseIDs(notificationIDs)
	if len(ids) == 0 {
		return 0, nil
	}

	now := time.Now().UTC()
	result := s.db.WithContext(ctx).
		Model(&models.Notification{}).
		Where("uuid IN ? AND user_id = ? AND is_read = ?", ids, userID, false).
		Updates(map[string]any{
			"is_read": true,
			"read_at": now,
		})
	if result.Error != nil {
		return 0, fmt.Errorf("notification service: mark multiple read: %w", result.Error)
	}

	return result.RowsAffected, nil
}

// MarkAllAsRead marks every unread notification for the user as read.
func (s *Service) MarkAllAsRead(ctx context.Context, userID string) (int64, error) {
	now := time.Now().UTC()
	result := s.db.WithContext(ctx).
		Model(&models.Notification{}).
		Where("user_id = ? AND is_read = ?", userID, false).
		Updates(map[string]any{
			"is_read": true,
			"read_at": now,
		})
	if result.Error != nil {
		return 0, fmt.Errorf("notification service: mark all read: %w", result.Error)
	}

	return result.RowsAffected, nil
}

// GetUnreadCount returns the user's current unread counter.
func (s *Service) GetUnreadCount(ctx context.Context, userID string) (int64, error) {
	var count int64
	err := s.db.WithContext(ctx).
		Model(&models.Notification{}).
		Where("user_id = ? AND is_read = ?", userID, false).
		Count(&count).Error
	if err != nil {
		return 0, fmt.Errorf("notification service: unread count: %w", err)
	}
	return count, nil
}

// DeleteNotification removes a notification owned by the supplied user.
func (s *Service) DeleteNotification(ctx context.Context, notificationID, userID string) error {
	result := s.db.WithContext(ctx).
		Where("uuid = ? AND user_id = ?", notificationID, userID).
		Delete(&models.Notification{})
	if result.Error != nil {
		return fmt.Errorf("notification service: delete notification: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return apperrors.ErrNotFound
	}
	return nil
}

// BroadcastNotification enqueues one creation job per active user. Every
// recipient gets their own persisted row; the broadcast target only affects
// delivery routing.
func (s *Service) BroadcastNotification(ctx context.Context, input BroadcastInput) (int, error) {
	return s.fanOut(ctx, input, RouteToAll(), "")
}

// SendNotificationToRole enqueues one creation job per active user holding
// the supplied role.
func (s *Service) SendNotificationToRole(ctx context.Context, role string, input BroadcastInput) (int, error) {
	role = strings.TrimSpace(role)
	if role == "" {
		return 0, apperrors.NewValidation("role is required")
	}
	return s.fanOut(ctx, input, RouteToRole(role), role)
}

func (s *Service) fanOut(ctx context.Context, input BroadcastInput, target RoutingTarget, role string) (int, error) {
	scope := s.db.WithContext(ctx).Model(&models.User{}).Where("is_active = ?", true)
	if role != "" {
		scope = scope.Where("role = ?", role)
	}

	var userIDs []string
	if err := scope.Pluck("uuid", &userIDs).Error; err != nil {
		return 0, fmt.Errorf("notification service: resolve recipients: %w", err)
	}

	enqueued := 0
	for _, userID := range userIDs {
		payload, err := buildPayload(CreateNotificationInput{
			UserID:    userID,
			Type:      input.Type,
			Title:     input.Title,
			Message:   input.Message,
			Priority:  input.Priority,
			Metadata:  input.Metadata,
			ExpiresAt: input.ExpiresAt,
		})
		if err != nil {
			return enqueued, err
		}
		payload.Target = target

		if _, err := s.queue.Enqueue(ctx, JobKindCreate, payload, queue.EnqueueOptions{Priority: payload.Priority}); err != nil {
			s.log.Error("fan-out enqueue failed", zap.String("user", userID), zap.Error(err))
			return enqueued, err
		}
		enqueued++
	}

	return enqueued, nil
}

// NotifyWelcome enqueues the standard onboarding notification.
func (s *Service) NotifyWelcome(ctx context.Context, userID string) (*queue.JobHandle, error) {
	return s.CreateNotification(ctx, CreateNotificationInput{
		UserID:  userID,
		Type:    models.TypeWelcomeMessage,
		Title:   "Welcome to TalentPool",
		Message: "Your account is ready. Complete your profile to start matching.",
	})
}

// NotifyJobApplicationReceived tells an enterprise a student applied.
func (s *Service) NotifyJobApplicationReceived(ctx context.Context, enterpriseID, applicantName, jobID, applicationID string) (*queue.JobHandle, error) {
	return s.CreateNotification(ctx, CreateNotificationInput{
		UserID:               enterpriseID,
		Type:                 models.TypeJobApplicationReceived,
		Title:                "New application received",
		Message:              fmt.Sprintf("%s applied to one of your job postings.", applicantName),
		Priority:             models.PriorityMedium,
		RelatedJobID:         jobID,
		RelatedApplicationID: applicationID,
	})
}

// NotifyProfileLiked tells a user somebody liked their profile.
func (s *Service) NotifyProfileLiked(ctx context.Context, userID, likerName, likerID string) (*queue.JobHandle, error) {
	return s.CreateNotification(ctx, CreateNotificationInput{
		UserID:        userID,
		Type:          models.TypeProfileLiked,
		Title:         "Your profile was liked",
		Message:       fmt.Sprintf("%s liked your profile.", likerName),
		RelatedUserID: likerID,
	})
}

// buildPayload validates the input and assembles the queue envelope,
// translating legacy metadata routing hints into the explicit target once,
// at enqueue time.
func buildPayload(input CreateNotificationInput) (*jobPayload, error) {
	userID := strings.TrimSpace(input.UserID)
	if userID == "" {
		return nil, apperrors.NewValidation("user_id is required")
	}
	notificationType := strings.TrimSpace(input.Type)
	if notificationType == "" {
		return nil, apperrors.NewValidation("type is required")
	}
	title := strings.TrimSpace(input.Title)
	if title == "" {
		return nil, apperrors.NewValidation("title is required")
	}
	if len(title) > maxTitleLength {
		return nil, apperrors.NewValidation(fmt.Sprintf("title must be at most %d characters", maxTitleLength))
	}
	message := strings.TrimSpace(input.Message)
	if message == "" {
		return nil, apperrors.NewValidation("message is required")
	}

	priority := input.Priority
	if priority == 0 {
		priority = models.PriorityLow
	}
	if priority < models.PriorityLow || priority > models.PriorityCritical {
		return nil, apperrors.NewValidation("priority must be between 1 and 4")
	}

	target := RouteToUser(userID)
	if input.Metadata != nil {
		if broadcast, ok := input.Metadata["broadcast"].(bool); ok && broadcast {
			target = RouteToAll()
		} else if role, ok := input.Metadata["role"].(string); ok && strings.TrimSpace(role) != "" {
			target = RouteToRole(strings.TrimSpace(role))
		}
	}

	return &jobPayload{
		Target:               target,
		UserID:               userID,
		Type:                 notificationType,
		Title:                title,
		Message:              message,
		Priority:             priority,
		Metadata:             input.Metadata,
		ExpiresAt:            input.ExpiresAt,
		ActionURL:            strings.TrimSpace(input.ActionURL),
		ActionType:           strings.TrimSpace(input.ActionType),
		ActionData:           input.ActionData,
		RelatedJobID:         strings.TrimSpace(input.RelatedJobID),
		RelatedApplicationID: strings.TrimSpace(input.RelatedApplicationID),
		RelatedUserID:        strings.TrimSpace(input.RelatedUserID),
	}, nil
}

func mapNotificationRows(rows []models.Notification) []NotificationDTO {
	items := make([]NotificationDTO, 0, len(rows))
	for _, row := range rows {
		items = append(items, mapNotification(row))
	}
	return items
}

func mapNotification(row models.Notification) NotificationDTO {
	return NotificationDTO{
		ID:                   row.UUID,
		UserID:               row.UserID,
		Type:                 row.Type,
		Title:                row.Title,
		Message:              row.Message,
		Priority:             row.Priority,
		Metadata:             decodeJSON(row.Metadata),
		IsRead:               row.IsRead,
		ReadAt:               row.ReadAt,
		ExpiresAt:            row.ExpiresAt,
		ActionURL:            row.ActionURL,
		ActionType:           row.ActionType,
		ActionData:           decodeJSON(row.ActionData),
		RelatedJobID:         derefString(row.RelatedJobID),
		RelatedApplicationID: derefString(row.RelatedApplicationID),
		RelatedUserID:        derefString(row.RelatedUserID),
		CreatedAt:            row.CreatedAt,
	}
}

func decodeJSON(data datatypes.JSON) map[string]any {
	if len(data) == 0 {
		return nil
	}
	var out map[string]any
	if err := json.Unmarshal(data, &out); err != nil {
		return nil
	}
	return out
}

func derefString(value *string) string {
	if value == nil {
		return ""
	}
	return *value
}

func normaliseIDs(values []string) []string {
	if len(values) == 0 {
		return nil
	}

	seen := make(map[string]struct{}, len(values))
	var out []string
	for _, value := range values {
		value = strings.TrimSpace(value)
		if value == "" {
			continue
		}
		if _, exists := seen[value]; exists {
			continue
		}
		seen[value] = struct{}{}
		out = append(out, value)
	}
	return out
}
