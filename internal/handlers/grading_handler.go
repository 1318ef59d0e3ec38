package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/school-system/grade-engine/internal/grading"
	"github.com/school-system/grade-engine/internal/services"
)

type GradingHandler struct {
	service *services.GradingService
}

func NewGradingHandler(service *services.GradingService) *GradingHandler {
	return &GradingHandler{service: service}
}

// @Summary Compute one student's grade
// @Tags grading
// @Produce json
// @Param id path string true "Distribution ID"
// @Param studentId path string true "Student ID"
// @Success 200 {object} services.StudentGrade
// @Failure 422 {object} map[string]interface{}
// @Router /api/v1/distributions/{id}/grades/{studentId} [get]
func (h *GradingHandler) ComputeStudent(c *gin.Context) {
	distributionID, ok := paramUUID(c, "id")
	if !ok {
		return
	}
	grade, err := h.service.ComputeStudent(c.Request.Context(), actorFromContext(c), distributionID, c.Param("studentId"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, grade)
}

// @Summary Compute grades for every stored student
// @Tags grading
// @Produce json
// @Param id path string true "Distribution ID"
// @Success 200 {object} grading.BatchReport
// @Success 206 {object} grading.BatchReport
// @Router /api/v1/distributions/{id}/grades [post]
func (h *GradingHandler) ComputeBatch(c *gin.Context) {
	distributionID, ok := paramUUID(c, "id")
	if !ok {
		return
	}
	report, err := h.service.ComputeBatch(c.Request.Context(), actorFromContext(c), distributionID)
	respondBatch(c, report, err)
}

// @Summary Grade caller-supplied scores against a caller-supplied distribution
// @Tags grading
// @Accept json
// @Produce json
// @Param request body services.AdhocRequest true "Distribution and scores"
// @Success 200 {object} grading.BatchReport
// @Failure 422 {object} map[string]interface{}
// @Router /api/v1/grades/compute [post]
func (h *GradingHandler) ComputeAdhoc(c *gin.Context) {
	var req services.AdhocRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	report, err := h.service.ComputeAdhoc(c.Request.Context(), req)
	respondBatch(c, report, err)
}

// respondBatch returns an interrupted batch as 206 with the students that
// finished; Skipped lists the rest.
func respondBatch(c *gin.Context, report *grading.BatchReport, err error) {
	if err != nil {
		if report != nil && (errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)) {
			c.JSON(http.StatusPartialContent, report)
			return
		}
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, report)
}
