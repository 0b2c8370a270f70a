package api

import (
	"fmt"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"gorm.io/gorm"

	"github.com/TalentPoolPicos/talentpool-backend/internal/app"
	"github.com/TalentPoolPicos/talentpool-backend/internal/app/maintenance"
	iauth "github.com/TalentPoolPicos/talentpool-backend/internal/auth"
	"github.com/TalentPoolPicos/talentpool-backend/internal/handlers"
	"github.com/TalentPoolPicos/talentpool-backend/internal/middleware"
	"github.com/TalentPoolPicos/talentpool-backend/internal/notifications"
	"github.com/TalentPoolPicos/talentpool-backend/internal/queue"
	"github.com/TalentPoolPicos/talentpool-backend/internal/realtime"
)

// Deps bundles the collaborators the HTTP surface needs.
type Deps struct {
	DB      *gorm.DB
	JWT     *iauth.JWTService
	Config  *app.Config
	Hub     *realtime.Hub
	Queue   *queue.Queue
	Service *notifications.Service
	Cleaner *maintenance.Cleaner
}

// NewRouter builds the Gin engine, wires middleware and registers routes.
func NewRouter(deps Deps) (*gin.Engine, error) {
	if deps.DB == nil {
		return nil, fmt.Errorf("database handle must be provided")
	}
	if deps.JWT == nil {
		return nil, fmt.Errorf("jwt service must be provided")
	}
	if deps.Service == nil {
		return nil, fmt.Errorf("notification service must be provided")
	}
	if deps.Config == nil {
		return nil, fmt.Errorf("config must be provided")
	}

	r := gin.New()

	// Global middleware
	r.Use(middleware.Recovery())
	r.Use(middleware.Logger())
	r.Use(middleware.Metrics())

	// Health endpoint (public)
	if deps.Config.Monitoring.Health.Enabled {
		r.GET("/health", handlers.Health())
	}

	notificationHandler, err := handlers.NewNotificationHandler(deps.Service, deps.Hub, deps.JWT)
	if err != nil {
		return nil, err
	}

	// The websocket handshake authenticates inside the handler, so the
	// stream stays outside the bearer-header middleware.
	r.GET("/api/notifications/stream", notificationHandler.Stream)

	requireAuth := middleware.Auth(deps.JWT)

	api := r.Group("/api")
	api.Use(requireAuth)

	registerNotificationRoutes(api, notificationHandler)

	if deps.Cleaner != nil {
		adminHandler, err := handlers.NewAdminHandler(deps.Service, deps.Cleaner, deps.Queue)
		if err != nil {
			return nil, err
		}
		registerAdminRoutes(api, adminHandler, notificationHandler)
	}

	// Metrics endpoint
	if deps.Config.Monitoring.Prometheus.Enabled {
		endpoint := deps.Config.Monitoring.Prometheus.Endpoint
		if endpoint == "" {
			endpoint = "/metrics"
		}
		r.GET(endpoint, gin.WrapH(promhttp.Handler()))
	}

	// NotFound fallback
	r.NoRoute(middleware.NotFoundHandler)

	return r, nil
}
