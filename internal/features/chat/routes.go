package chat

import (
	"github.com/gin-gonic/gin"
)

// RegisterRoutes mounts the live connection endpoint
func RegisterRoutes(router *gin.RouterGroup, handler *Handler, auth gin.HandlerFunc) {
	router.GET("/matches/:id/ws", auth, handler.Connect)
}
