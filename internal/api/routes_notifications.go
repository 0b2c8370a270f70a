package api

import (
	"github.com/gin-gonic/gin"

	"github.com/TalentPoolPicos/talentpool-backend/internal/handlers"
)

func registerNotificationRoutes(api *gin.RouterGroup, handler *handlers.NotificationHandler) {
	group := api.Group("/notifications")
	{
		group.GET("", handler.List)
		group.GET("/unread-count", handler.UnreadCount)
		group.POST("", handler.Create)
		group.POST("/read-all", handler.MarkAllRead)
		group.POST("/read-multiple", handler.MarkMultipleRead)
		group.POST("/:id/read", handler.MarkRead)
		group.DELETE("/:id", handler.Delete)
	}
}
