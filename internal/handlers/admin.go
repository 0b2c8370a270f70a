package handlers

import (
	stderrors "errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/TalentPoolPicos/talentpool-backend/internal/app/maintenance"
	"github.com/TalentPoolPicos/talentpool-backend/internal/notifications"
	"github.com/TalentPoolPicos/talentpool-backend/internal/queue"
	"github.com/TalentPoolPicos/talentpool-backend/pkg/response"
)

// AdminHandler exposes privileged notification operations: fan-out sends,
// manual retention cleanup, and queue diagnostics.
type AdminHandler struct {
	service *notifications.Service
	cleaner *maintenance.Cleaner
	queue   *queue.Queue
}

// NewAdminHandler constructs the admin handler.
func NewAdminHandler(service *notifications.Service, cleaner *maintenance.Cleaner, q *queue.Queue) (*AdminHandler, error) {
	if service == nil {
		return nil, stderrors.New("admin handler: service is required")
	}
	if cleaner == nil {
		return nil, stderrors.New("admin handler: cleaner is required")
	}
	return &AdminHandler{service: service, cleaner: cleaner, queue: q}, nil
}

type fanOutRequest struct {
	Type      string         `json:"type" validate:"required"`
	Title     string         `json:"title" validate:"required,max=200"`
	Message   string         `json:"message" validate:"required"`
	Priority  int            `json:"priority"`
	Metadata  map[string]any `json:"metadata"`
	ExpiresAt *time.Time     `json:"expires_at"`
}

func (r fanOutRequest) toInput() notifications.BroadcastInput {
	return notifications.BroadcastInput{
		Type:      r.Type,
		Title:     r.Title,
		Message:   r.Message,
		Priority:  r.Priority,
		Metadata:  r.Metadata,
		ExpiresAt: r.ExpiresAt,
	}
}

// Broadcast enqueues one notification job per active user.
func (h *AdminHandler) Broadcast(c *gin.Context) {
	var payload fanOutRequest
	if !bindAndValidate(c, &payload) {
		return
	}

	enqueued, err := h.service.BroadcastNotification(requestContext(c), payload.toInput())
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, http.StatusAccepted, gin.H{"enqueued": enqueued})
}

// SendToRole enqueues one notification job per active user holding the role.
func (h *AdminHandler) SendToRole(c *gin.Context) {
	role := c.Param("role")

	var payload fanOutRequest
	if !bindAndValidate(c, &payload) {
		return
	}

	enqueued, err := h.service.SendNotificationToRole(requestContext(c), role, payload.toInput())
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, http.StatusAccepted, gin.H{"enqueued": enqueued})
}

// Cleanup triggers an immediate retention purge and reports what was removed.
func (h *AdminHandler) Cleanup(c *gin.Context) {
	olderThanDays := parseIntQuery(c, "older_than_days", 0)

	stats, err := h.cleaner.RunManual(requestContext(c), olderThanDays)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, http.StatusOK, stats)
}

// QueueDepth reports the number of jobs waiting to run.
func (h *AdminHandler) QueueDepth(c *gin.Context) {
	if h.queue == nil {
		response.Success(c, http.StatusOK, gin.H{"depth": 0})
		return
	}

	depth, err := h.queue.Depth(requestContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"depth": depth})
}
