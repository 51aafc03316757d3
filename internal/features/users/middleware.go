package users

import (
	"context"
	"strings"

	"github.com/gin-gonic/gin"
	idToken "github.com/xyz-asif/blindmatch/internal/pkg/jwt"
	"github.com/xyz-asif/blindmatch/internal/pkg/response"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// UserLoader is the lookup the auth middleware needs
type UserLoader interface {
	GetUserByID(ctx context.Context, id primitive.ObjectID) (*User, error)
}

// BearerToken extracts a token from the Authorization header, falling back to
// the "token" query parameter browsers use for WebSocket upgrades.
func BearerToken(c *gin.Context) string {
	if authHeader := c.GetHeader("Authorization"); authHeader != "" {
		parts := strings.Split(authHeader, " ")
		if len(parts) == 2 && parts[0] == "Bearer" {
			return parts[1]
		}
		return ""
	}
	return c.Query("token")
}

// NewAuthMiddleware creates a Gin middleware for JWT authentication
func NewAuthMiddleware(loader UserLoader, cfg *idToken.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenString := BearerToken(c)
		if tokenString == "" {
			response.Unauthorized(c, "Authorization required", "AUTH_REQUIRED")
			c.Abort()
			return
		}

		claims, err := idToken.ValidateToken(tokenString, cfg)
		if err != nil {
			response.Unauthorized(c, "Invalid or expired token", "INVALID_TOKEN")
			c.Abort()
			return
		}

		userID, err := primitive.ObjectIDFromHex(claims.UserID)
		if err != nil {
			response.Unauthorized(c, "Invalid or expired token", "INVALID_TOKEN")
			c.Abort()
			return
		}

		user, err := loader.GetUserByID(c.Request.Context(), userID)
		if err != nil {
			response.Unauthorized(c, "User not found", "USER_NOT_FOUND")
			c.Abort()
			return
		}

		c.Set("user", user)
		c.Set("userID", user.ID.Hex())
		c.Next()
	}
}

// CurrentUser returns the user stored by NewAuthMiddleware
func CurrentUser(c *gin.Context) (*User, bool) {
	val, exists := c.Get("user")
	if !exists {
		return nil, false
	}
	user, ok := val.(*User)
	return user, ok && user != nil
}

// RequireUser is CurrentUser that writes a 401 when absent
func RequireUser(c *gin.Context) (*User, bool) {
	user, ok := CurrentUser(c)
	if !ok {
		response.Unauthorized(c, "Authentication required", "AUTH_FAILED")
	}
	return user, ok
}
