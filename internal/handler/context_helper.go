package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/scholchat/scholchat-api/internal/middleware"
	"github.com/scholchat/scholchat-api/internal/models"
)

// claimsFromContext returns the verified token claims, or nil on unauthenticated routes.
func claimsFromContext(c *gin.Context) *models.JWTClaims {
	value, exists := c.Get(middleware.ContextUserKey)
	if !exists {
		return nil
	}
	claims, _ := value.(*models.JWTClaims)
	return claims
}

func callerIsProfessor(c *gin.Context) (string, bool) {
	claims := claimsFromContext(c)
	if claims == nil || claims.Role != models.RoleProfessor {
		return "", false
	}
	return claims.UserID, true
}
