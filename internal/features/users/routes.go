package users

import (
	"github.com/gin-gonic/gin"
)

// RegisterRoutes mounts auth and own-profile routes. auth is the shared JWT middleware.
func RegisterRoutes(router *gin.RouterGroup, handler *Handler, auth gin.HandlerFunc) {
	router.POST("/auth/dev-login", handler.DevLogin)

	me := router.Group("/users/me")
	me.Use(auth)
	{
		me.GET("", handler.GetMe)
		me.PATCH("", handler.UpdateMe)
		me.POST("/photo", handler.UploadPhoto)
		me.DELETE("/photo", handler.DeletePhoto)
	}
}
