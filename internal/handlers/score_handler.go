package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/school-system/grade-engine/internal/services"
)

type ScoreHandler struct {
	service *services.ScoreService
}

func NewScoreHandler(service *services.ScoreService) *ScoreHandler {
	return &ScoreHandler{service: service}
}

// @Summary Record one student's scores
// @Tags scores
// @Accept json
// @Produce json
// @Param id path string true "Distribution ID"
// @Param request body services.ScoreEntry true "Scores"
// @Success 200 {object} models.StudentScoreSet
// @Router /api/v1/distributions/{id}/scores [put]
func (h *ScoreHandler) Upsert(c *gin.Context) {
	distributionID, ok := paramUUID(c, "id")
	if !ok {
		return
	}
	var entry services.ScoreEntry
	if err := c.ShouldBindJSON(&entry); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	row, err := h.service.Upsert(c.Request.Context(), actorFromContext(c), distributionID, entry)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, row)
}

// @Summary Record scores for many students
// @Tags scores
// @Accept json
// @Produce json
// @Param id path string true "Distribution ID"
// @Param request body services.BulkScoreRequest true "Entries"
// @Success 200 {object} map[string]int
// @Router /api/v1/distributions/{id}/scores/bulk [post]
func (h *ScoreHandler) BulkUpsert(c *gin.Context) {
	distributionID, ok := paramUUID(c, "id")
	if !ok {
		return
	}
	var req services.BulkScoreRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	n, err := h.service.BulkUpsert(c.Request.Context(), actorFromContext(c), distributionID, req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"recorded": n})
}

// @Summary List score sets of a distribution
// @Tags scores
// @Produce json
// @Param id path string true "Distribution ID"
// @Success 200 {array} models.StudentScoreSet
// @Router /api/v1/distributions/{id}/scores [get]
func (h *ScoreHandler) List(c *gin.Context) {
	distributionID, ok := paramUUID(c, "id")
	if !ok {
		return
	}
	rows, err := h.service.ListByDistribution(c.Request.Context(), actorFromContext(c), distributionID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, rows)
}

// @Summary Get one student's scores
// @Tags scores
// @Produce json
// @Param id path string true "Distribution ID"
// @Param studentId path string true "Student ID"
// @Success 200 {object} models.StudentScoreSet
// @Router /api/v1/distributions/{id}/scores/{studentId} [get]
func (h *ScoreHandler) Get(c *gin.Context) {
	distributionID, ok := paramUUID(c, "id")
	if !ok {
		return
	}
	row, err := h.service.Get(c.Request.Context(), actorFromContext(c), distributionID, c.Param("studentId"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, row)
}
