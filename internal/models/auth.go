package models

import (
	"github.com/golang-jwt/jwt/v5"
)

// JWTClaims represents the JWT payload issued by the Scholchat identity service.
type JWTClaims struct {
	UserID   string   `json:"user_id"`
	Role     UserRole `json:"role"`
	Email    string   `json:"email"`
	FullName string   `json:"full_name"`
	jwt.RegisteredClaims
}

// IsAdministrator reports whether the caller may act on any professor's courses.
func (c *JWTClaims) IsAdministrator() bool {
	return c != nil && (c.Role == RoleSuperAdmin || c.Role == RoleAdmin)
}
