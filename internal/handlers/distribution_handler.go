package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/school-system/grade-engine/internal/models"
	"github.com/school-system/grade-engine/internal/services"
)

type DistributionHandler struct {
	service *services.DistributionService
}

func NewDistributionHandler(service *services.DistributionService) *DistributionHandler {
	return &DistributionHandler{service: service}
}

// @Summary Create mark distribution
// @Tags distributions
// @Accept json
// @Produce json
// @Param request body services.CreateDistributionRequest true "Scope and configuration"
// @Success 201 {object} models.MarkDistribution
// @Failure 409 {object} map[string]string
// @Failure 422 {object} map[string]interface{}
// @Router /api/v1/distributions [post]
func (h *DistributionHandler) Create(c *gin.Context) {
	var req services.CreateDistributionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	row, err := h.service.Create(c.Request.Context(), actorFromContext(c), req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, row)
}

// @Summary List mark distributions
// @Tags distributions
// @Produce json
// @Param school_id query string false "School (system admins only)"
// @Param class_id query string false "Class"
// @Param subject_id query string false "Subject"
// @Param academic_year query string false "Academic year"
// @Param semester query string false "Semester"
// @Success 200 {array} models.MarkDistribution
// @Router /api/v1/distributions [get]
func (h *DistributionHandler) List(c *gin.Context) {
	filter := models.DistributionFilter{
		ClassID:      c.Query("class_id"),
		SubjectID:    c.Query("subject_id"),
		AcademicYear: c.Query("academic_year"),
		Semester:     c.Query("semester"),
	}
	if schoolIDStr := c.Query("school_id"); schoolIDStr != "" {
		schoolID, err := uuid.Parse(schoolIDStr)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid school_id"})
			return
		}
		filter.SchoolID = &schoolID
	}

	rows, err := h.service.List(c.Request.Context(), actorFromContext(c), filter)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, rows)
}

// @Summary Get mark distribution
// @Tags distributions
// @Produce json
// @Param id path string true "Distribution ID"
// @Success 200 {object} models.MarkDistribution
// @Router /api/v1/distributions/{id} [get]
func (h *DistributionHandler) Get(c *gin.Context) {
	id, ok := paramUUID(c, "id")
	if !ok {
		return
	}
	row, err := h.service.Get(c.Request.Context(), actorFromContext(c), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, row)
}

// @Summary Replace mark distribution configuration
// @Tags distributions
// @Accept json
// @Produce json
// @Param id path string true "Distribution ID"
// @Param request body services.DistributionConfig true "New configuration"
// @Success 200 {object} models.MarkDistribution
// @Router /api/v1/distributions/{id} [put]
func (h *DistributionHandler) Update(c *gin.Context) {
	id, ok := paramUUID(c, "id")
	if !ok {
		return
	}
	var cfg services.DistributionConfig
	if err := c.ShouldBindJSON(&cfg); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	row, err := h.service.Update(c.Request.Context(), actorFromContext(c), id, cfg)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, row)
}

// @Summary Delete mark distribution
// @Tags distributions
// @Param id path string true "Distribution ID"
// @Success 200
// @Router /api/v1/distributions/{id} [delete]
func (h *DistributionHandler) Delete(c *gin.Context) {
	id, ok := paramUUID(c, "id")
	if !ok {
		return
	}
	if err := h.service.Delete(c.Request.Context(), actorFromContext(c), id); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Distribution deleted"})
}

// @Summary Validate a configuration without storing it
// @Tags distributions
// @Accept json
// @Produce json
// @Param request body services.DistributionConfig true "Candidate configuration"
// @Success 200 {object} services.ValidationVerdict
// @Router /api/v1/distributions/validate [post]
func (h *DistributionHandler) Validate(c *gin.Context) {
	var cfg services.DistributionConfig
	if err := c.ShouldBindJSON(&cfg); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, h.service.ValidateOnly(cfg))
}

// @Summary Resolve the distribution that governs a scope
// @Tags distributions
// @Produce json
// @Param school_id query string false "School (system admins only)"
// @Param class_id query string true "Class"
// @Param subject_id query string false "Subject"
// @Param academic_year query string false "Academic year"
// @Param semester query string false "Semester"
// @Success 200 {object} models.MarkDistribution
// @Router /api/v1/distributions/resolve [get]
func (h *DistributionHandler) Resolve(c *gin.Context) {
	var q services.ResolveQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	row, err := h.service.Resolve(c.Request.Context(), actorFromContext(c), q)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, row)
}
