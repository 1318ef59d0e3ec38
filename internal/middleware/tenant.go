package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/school-system/grade-engine/internal/models"
)

// TenantMiddleware pins every non system admin to the school in their token.
// Downstream services read tenant_school_id to scope distributions.
func TenantMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.GetString("role") == models.RoleSystemAdmin {
			c.Next()
			return
		}

		schoolIDStr := c.GetString("school_id")
		if schoolIDStr == "" {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "Access denied: No school assigned"})
			return
		}

		schoolID, err := uuid.Parse(schoolIDStr)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "Invalid school ID"})
			return
		}

		c.Set("tenant_school_id", schoolID)
		c.Next()
	}
}
