package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/school-system/grade-engine/internal/services"
)

type AuditHandler struct {
	auditService *services.AuditService
}

func NewAuditHandler(auditService *services.AuditService) *AuditHandler {
	return &AuditHandler{auditService: auditService}
}

// @Summary Recent activity
// @Tags audit
// @Produce json
// @Param limit query int false "Max entries (default 20, max 100)"
// @Param school_id query string false "School (system admins only)"
// @Success 200 {array} services.Activity
// @Router /api/v1/audit/recent [get]
func (h *AuditHandler) GetRecentActivity(c *gin.Context) {
	limit, err := strconv.Atoi(c.DefaultQuery("limit", "20"))
	if err != nil || limit <= 0 || limit > 100 {
		limit = 20
	}

	actor := actorFromContext(c)
	schoolID := actor.SchoolID
	if !actor.IsSystemAdmin() && schoolID == nil {
		respondError(c, services.ErrForbidden)
		return
	}
	if actor.IsSystemAdmin() && c.Query("school_id") != "" {
		id, err := uuid.Parse(c.Query("school_id"))
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid school_id"})
			return
		}
		schoolID = &id
	}

	activities, err := h.auditService.Recent(c.Request.Context(), schoolID, limit)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, activities)
}
