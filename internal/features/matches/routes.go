package matches

import (
	"github.com/gin-gonic/gin"
)

func RegisterRoutes(router *gin.RouterGroup, handler *Handler, auth gin.HandlerFunc) {
	m := router.Group("/matches")
	m.Use(auth)
	{
		m.POST("/find", handler.Find)
		m.POST("", handler.Create)
		m.GET("", handler.List)
		m.GET("/:id", handler.Get)
		m.POST("/:id/messages", handler.SendMessage)
		m.GET("/:id/messages", handler.Messages)
		m.POST("/:id/unmatch", handler.Unmatch)
		m.POST("/:id/extend", handler.Extend)
		m.POST("/:id/secret-chat/request", handler.RequestSecretChat)
		m.POST("/:id/secret-chat/accept", handler.AcceptSecretChat)
	}
}
