package middleware

import (
	"fmt"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/scholchat/scholchat-api/internal/models"
	appErrors "github.com/scholchat/scholchat-api/pkg/errors"
	"github.com/scholchat/scholchat-api/pkg/response"
)

// RequireRoles only lets callers holding one of the roles through. It must run after JWT.
func RequireRoles(roles ...models.UserRole) gin.HandlerFunc {
	allowed := make(map[models.UserRole]struct{}, len(roles))
	names := make([]string, 0, len(roles))
	for _, role := range roles {
		allowed[role] = struct{}{}
		names = append(names, string(role))
	}
	forbidden := appErrors.Clone(appErrors.ErrForbidden, fmt.Sprintf("requires one of: %s", strings.Join(names, ", ")))

	return func(c *gin.Context) {
		value, exists := c.Get(ContextUserKey)
		claims, ok := value.(*models.JWTClaims)
		if !exists || !ok || claims == nil {
			response.Error(c, appErrors.ErrUnauthorized)
			c.Abort()
			return
		}
		if _, ok := allowed[claims.Role]; !ok {
			response.Error(c, forbidden)
			c.Abort()
			return
		}
		c.Next()
	}
}
