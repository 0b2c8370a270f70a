package notifications

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/TalentPoolPicos/talentpool-backend/internal/models"
	"github.com/TalentPoolPicos/talentpool-backend/internal/queue"
	"github.com/TalentPoolPicos/talentpool-backend/internal/realtime"
	"github.com/TalentPoolPicos/talentpool-backend/pkg/logger"
)

// Worker consumes notification-creation jobs: it persists the row, routes the
// realtime delivery, and refreshes the recipient's unread counter. A nil hub
// degrades to persisted-only delivery.
type Worker struct {
	db  *gorm.DB
	hub *realtime.Hub
	log *zap.Logger
}

// NewWorker constructs the queue consumer for notification jobs.
func NewWorker(db *gorm.DB, hub *realtime.Hub) (*Worker, error) {
	if db == nil {
		return nil, errors.New("notification worker: db is required")
	}
	return &Worker{db: db, hub: hub, log: logger.WithModule("notification-worker")}, nil
}

// RegisterWith binds the worker to the queue's notification job kind.
func (w *Worker) RegisterWith(q *queue.Queue) {
	q.Register(JobKindCreate, w.Process)
}

// Process handles one dequeued job. Failures are reported through the result
// so the queue can retry or bury the job; processing never panics the
// consumer. A realtime push failure never fails the job: the row is already
// persisted and will be seen on the next fetch.
func (w *Worker) Process(ctx context.Context, job *models.Job) queue.Result {
	var payload jobPayload
	if err := json.Unmarshal(job.Payload, &payload); err != nil {
		return queue.Result{Permanent: true, Err: fmt.Errorf("decode payload: %w", err)}
	}

	if err := validatePayload(&payload); err != nil {
		// Malformed jobs are not transient; retrying cannot fix them.
		return queue.Result{Permanent: true, Err: err}
	}

	notification, err := w.persist(ctx, &payload)
	if err != nil {
		return queue.Result{Err: fmt.Errorf("persist notification: %w", err)}
	}

	w.deliver(notification, payload.Target)

	return queue.Result{Success: true, NotificationID: notification.UUID}
}

func (w *Worker) persist(ctx context.Context, payload *jobPayload) (*models.Notification, error) {
	notification := models.Notification{
		UserID:               payload.UserID,
		Type:                 payload.Type,
		Title:                payload.Title,
		Message:              payload.Message,
		Priority:             payload.Priority,
		ExpiresAt:            payload.ExpiresAt,
		ActionURL:            payload.ActionURL,
		ActionType:           payload.ActionType,
		RelatedJobID:         optionalString(payload.RelatedJobID),
		RelatedApplicationID: optionalString(payload.RelatedApplicationID),
		RelatedUserID:        optionalString(payload.RelatedUserID),
	}

	if notification.Priority == 0 {
		notification.Priority = models.PriorityLow
	}

	if payload.Metadata != nil {
		data, err := json.Marshal(payload.Metadata)
		if err != nil {
			return nil, fmt.Errorf("marshal metadata: %w", err)
		}
		notification.Metadata = datatypes.JSON(data)
	}

	if payload.ActionData != nil {
		data, err := json.Marshal(payload.ActionData)
		if err != nil {
			return nil, fmt.Errorf("marshal action data: %w", err)
		}
		notification.ActionData = datatypes.JSON(data)
	}

	if err := w.db.WithContext(ctx).Create(&notification).Error; err != nil {
		return nil, err
	}

	return &notification, nil
}

// deliver routes the freshly persisted notification. The switch over the
// routing union is exhaustive; unknown kinds were rejected during validation.
func (w *Worker) deliver(notification *models.Notification, target RoutingTarget) {
	if w.hub == nil {
		return
	}

	dto := mapNotification(*notification)

	switch target.Kind {
	case RouteBroadcast:
		w.hub.BroadcastAll(realtime.EventBroadcast, dto)

	case RouteRole:
		w.hub.SendToRole(target.Role, realtime.EventNewNotification, dto)

	default: // RouteUser and legacy empty kind
		delivered := w.hub.SendToUser(notification.UserID, realtime.EventNewNotification, dto)
		if !delivered {
			w.log.Debug("recipient offline, persisted only",
				zap.String("user", notification.UserID),
				zap.String("notification", notification.UUID),
			)
			return
		}

		w.pushUnreadCount(notification.UserID)
	}
}

// pushUnreadCount recomputes and pushes the unread counter. Only meaningful
// for single-recipient jobs; cohort and broadcast deliveries skip it.
func (w *Worker) pushUnreadCount(userID string) {
	var count int64
	err := w.db.Model(&models.Notification{}).
		Where("user_id = ? AND is_read = ?", userID, false).
		Count(&count).Error
	if err != nil {
		w.log.Warn("unread count push skipped", zap.String("user", userID), zap.Error(err))
		return
	}

	w.hub.PushUnreadCount(userID, count)
}

func validatePayload(payload *jobPayload) error {
	if strings.TrimSpace(payload.UserID) == "" {
		return errors.New("payload missing user_id")
	}
	if strings.TrimSpace(payload.Type) == "" {
		return errors.New("payload missing type")
	}
	if strings.TrimSpace(payload.Title) == "" {
		return errors.New("payload missing title")
	}
	if strings.TrimSpace(payload.Message) == "" {
		return errors.New("payload missing message")
	}
	return payload.Target.Validate()
}

func optionalString(value string) *string {
	if strings.TrimSpace(value) == "" {
		return nil
	}
	return &value
}
