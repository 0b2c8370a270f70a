package handlers

import (
	stderrors "errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	iauth "github.com/TalentPoolPicos/talentpool-backend/internal/auth"
	"github.com/TalentPoolPicos/talentpool-backend/internal/middleware"
	"github.com/TalentPoolPicos/talentpool-backend/internal/notifications"
	"github.com/TalentPoolPicos/talentpool-backend/internal/realtime"
	"github.com/TalentPoolPicos/talentpool-backend/pkg/errors"
	"github.com/TalentPoolPicos/talentpool-backend/pkg/response"
)

// NotificationHandler exposes HTTP endpoints for the notification pipeline.
type NotificationHandler struct {
	service *notifications.Service
	hub     *realtime.Hub
	jwt     *iauth.JWTService
}

// NewNotificationHandler constructs a notification handler.
func NewNotificationHandler(service *notifications.Service, hub *realtime.Hub, jwt *iauth.JWTService) (*NotificationHandler, error) {
	if service == nil {
		return nil, stderrors.New("notification handler: service is required")
	}
	return &NotificationHandler{
		service: service,
		hub:     hub,
		jwt:     jwt,
	}, nil
}

// Create accepts a notification request and enqueues it. The 202 response
// carries the job handle; the row itself materialises asynchronously.
func (h *NotificationHandler) Create(c *gin.Context) {
	var payload struct {
		UserID     string         `json:"user_id" validate:"required"`
		Type       string         `json:"type" validate:"required"`
		Title      string         `json:"title" validate:"required,max=200"`
		Message    string         `json:"message" validate:"required"`
		Priority   int            `json:"priority"`
		Metadata   map[string]any `json:"metadata"`
		ExpiresAt  *time.Time     `json:"expires_at"`
		ActionURL  string         `json:"action_url"`
		ActionType string         `json:"action_type"`
		ActionData map[string]any `json:"action_data"`

		RelatedJobID         string `json:"related_job_id"`
		RelatedApplicationID string `json:"related_application_id"`
		RelatedUserID        string `json:"related_user_id"`

		DelaySeconds int `json:"delay_seconds"`
	}

	if !bindAndValidate(c, &payload) {
		return
	}

	handle, err := h.service.CreateNotification(requestContext(c), notifications.CreateNotificationInput{
		UserID:               payload.UserID,
		Type:                 payload.Type,
		Title:                payload.Title,
		Message:              payload.Message,
		Priority:             payload.Priority,
		Metadata:             payload.Metadata,
		ExpiresAt:            payload.ExpiresAt,
		ActionURL:            payload.ActionURL,
		ActionType:           payload.ActionType,
		ActionData:           payload.ActionData,
		RelatedJobID:         payload.RelatedJobID,
		RelatedApplicationID: payload.RelatedApplicationID,
		RelatedUserID:        payload.RelatedUserID,
		Delay:                time.Duration(payload.DelaySeconds) * time.Second,
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, http.StatusAccepted, handle)
}

// List returns the current user's notification feed.
func (h *NotificationHandler) List(c *gin.Context) {
	userID := c.GetString(middleware.CtxUserIDKey)
	if userID == "" {
		response.Error(c, errors.ErrUnauthorized)
		return
	}

	page := parseIntQuery(c, "page", 1)
	limit := parseIntQuery(c, "limit", 20)

	result, err := h.service.GetUserNotifications(requestContext(c), userID, notifications.ListInput{
		Page:       page,
		Limit:      limit,
		UnreadOnly: parseBoolQuery(c, "unread_only"),
		Type:       c.Query("type"),
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	response.SuccessWithMeta(c, http.StatusOK, gin.H{
		"items":        result.Items,
		"unread_count": result.UnreadCount,
	}, &response.Meta{
		Page:    page,
		PerPage: limit,
		Total:   result.Total,
		HasMore: result.HasMore,
	})
}

// UnreadCount returns the user's unread counter.
func (h *NotificationHandler) UnreadCount(c *gin.Context) {
	userID := c.GetString(middleware.CtxUserIDKey)
	if userID == "" {
		response.Error(c, errors.ErrUnauthorized)
		return
	}

	count, err := h.service.GetUnreadCount(requestContext(c), userID)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"count": count})
}

// MarkRead marks a single notification as read. Repeats are harmless: the
// response reports whether this call performed the transition.
func (h *NotificationHandler) MarkRead(c *gin.Context) {
	userID := c.GetString(middleware.CtxUserIDKey)
	if userID == "" {
		response.Error(c, errors.ErrUnauthorized)
		return
	}

	id := strings.TrimSpace(c.Param("id"))
	updated, err := h.service.MarkAsRead(requestContext(c), id, userID)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"updated": updated})
}

// MarkMultipleRead marks a batch of notifications as read.
func (h *NotificationHandler) MarkMultipleRead(c *gin.Context) {
	userID := c.GetString(middleware.CtxUserIDKey)
	if userID == "" {
		response.Error(c, errors.ErrUnauthorized)
		return
	}

	var payload struct {
		IDs []string `json:"ids" validate:"required,min=1"`
	}
	if !bindAndValidate(c, &payload) {
		return
	}

	updated, err := h.service.MarkMultipleAsRead(requestContext(c), payload.IDs, userID)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"updated": updated})
}

// MarkAllRead marks every unread notification for the user as read.
func (h *NotificationHandler) MarkAllRead(c *gin.Context) {
	userID := c.GetString(middleware.CtxUserIDKey)
	if userID == "" {
		response.Error(c, errors.ErrUnauthorized)
		return
	}

	updated, err := h.service.MarkAllAsRead(requestContext(c), userID)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"updated": updated})
}

// Delete removes a notification owned by the current user.
func (h *NotificationHandler) Delete(c *gin.Context) {
	userID := c.GetString(middleware.CtxUserIDKey)
	if userID == "" {
		response.Error(c, errors.ErrUnauthorized)
		return
	}

	id := strings.TrimSpace(c.Param("id"))
	if err := h.service.DeleteNotification(requestContext(c), id, userID); err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"deleted": true})
}

// Stream upgrades the connection to a WebSocket for realtime notifications.
// Browsers cannot set headers on websocket handshakes, so the token is also
// accepted as a query parameter.
func (h *NotificationHandler) Stream(c *gin.Context) {
	if h.jwt == nil || h.hub == nil {
		response.Error(c, errors.ErrNotFound)
		return
	}

	token := middleware.BearerToken(c)
	if token == "" {
		response.Error(c, errors.ErrUnauthorized)
		return
	}

	claims, err := h.jwt.ValidateAccessToken(token)
	if err != nil {
		response.Error(c, errors.ErrUnauthorized)
		return
	}

	h.hub.Serve(realtime.Identity{UserID: claims.UserID, Role: claims.Role}, c.Writer, c.Request)
}

// Online reports the currently connected users, for admin diagnostics.
func (h *NotificationHandler) Online(c *gin.Context) {
	if h.hub == nil {
		response.Error(c, errors.ErrNotFound)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"users": h.hub.ListOnline()})
}
