package safety

import (
	"github.com/gin-gonic/gin"
)

// RegisterRoutes mounts block and report endpoints. reportLimit throttles
// report creation per user; moderator guards the review endpoint.
func RegisterRoutes(router *gin.RouterGroup, handler *Handler, auth, reportLimit, moderator gin.HandlerFunc) {
	u := router.Group("/users")
	u.Use(auth)
	{
		u.POST("/:id/block", handler.BlockUser)
		u.DELETE("/:id/block", handler.UnblockUser)
		u.GET("/me/blocks", handler.GetBlockedUsers)
	}

	router.POST("/reports", auth, reportLimit, handler.CreateReport)
	router.PATCH("/reports/:id", moderator, handler.ReviewReport)
}
