package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/school-system/grade-engine/internal/models"
	"github.com/school-system/grade-engine/internal/services"
)

type TokenVerifier interface {
	VerifyToken(token string) (*services.Claims, error)
}

func AuthMiddleware(verifier TokenVerifier) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Authorization header required"})
			return
		}

		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || parts[0] != "Bearer" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Invalid authorization header format"})
			return
		}

		claims, err := verifier.VerifyToken(parts[1])
		if err != nil || claims.TokenType != services.TokenTypeAccess {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Invalid or expired token"})
			return
		}

		c.Set("user_id", claims.UserID)
		if claims.SchoolID != nil {
			c.Set("school_id", claims.SchoolID.String())
		}
		c.Set("role", claims.Role)
		c.Set("email", claims.Email)
		c.Next()
	}
}

func RequireRole(roles ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		role := c.GetString("role")
		if role == "" {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "Role not found in context"})
			return
		}

		for _, r := range roles {
			if role == r {
				c.Next()
				return
			}
		}

		c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "Insufficient permissions"})
	}
}

func RequireSystemAdmin() gin.HandlerFunc {
	return RequireRole(models.RoleSystemAdmin)
}

func RequireSchoolAdmin() gin.HandlerFunc {
	return RequireRole(models.RoleSystemAdmin, models.RoleSchoolAdmin)
}

func RequireTeacher() gin.HandlerFunc {
	return RequireRole(models.RoleSystemAdmin, models.RoleSchoolAdmin, models.RoleTeacher)
}
