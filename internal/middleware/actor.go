package middleware

import (
	"github.com/gin-gonic/gin"

	"github.com/scholchat/scholchat-api/internal/models"
	"github.com/scholchat/scholchat-api/internal/service"
)

// Actor copies the authenticated user id into the request context so lifecycle
// operations attribute their audit entries. It must run after JWT.
func Actor() gin.HandlerFunc {
	return func(c *gin.Context) {
		if value, ok := c.Get(ContextUserKey); ok {
			if claims, ok := value.(*models.JWTClaims); ok && claims.UserID != "" {
				c.Request = c.Request.WithContext(service.ContextWithActor(c.Request.Context(), claims.UserID))
			}
		}
		c.Next()
	}
}
