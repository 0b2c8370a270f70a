package api

import (
	"github.com/gin-gonic/gin"

	"github.com/TalentPoolPicos/talentpool-backend/internal/handlers"
	"github.com/TalentPoolPicos/talentpool-backend/internal/middleware"
	"github.com/TalentPoolPicos/talentpool-backend/internal/models"
)

func registerAdminRoutes(api *gin.RouterGroup, handler *handlers.AdminHandler, notifications *handlers.NotificationHandler) {
	group := api.Group("/admin/notifications")
	group.Use(middleware.RequireRole(models.RoleAdmin))
	{
		group.POST("/broadcast", handler.Broadcast)
		group.POST("/roles/:role", handler.SendToRole)
		group.POST("/cleanup", handler.Cleanup)
		group.GET("/queue-depth", handler.QueueDepth)
		group.GET("/online", notifications.Online)
	}
}
