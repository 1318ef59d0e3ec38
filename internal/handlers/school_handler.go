package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/school-system/grade-engine/internal/services"
)

type SchoolHandler struct {
	schoolService *services.SchoolService
}

func NewSchoolHandler(schoolService *services.SchoolService) *SchoolHandler {
	return &SchoolHandler{schoolService: schoolService}
}

type SeedDistributionsRequest struct {
	AcademicYear string   `json:"academic_year"`
	Classes      []string `json:"classes" binding:"required,min=1"`
}

// @Summary List schools
// @Tags schools
// @Produce json
// @Success 200 {array} models.School
// @Router /api/v1/schools [get]
func (h *SchoolHandler) List(c *gin.Context) {
	schools, err := h.schoolService.List(c.Request.Context(), actorFromContext(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, schools)
}

// @Summary Register a school with its admin and default distributions
// @Tags schools
// @Accept json
// @Produce json
// @Param request body services.CreateSchoolRequest true "School"
// @Success 201 {object} services.SchoolSetup
// @Router /api/v1/schools [post]
func (h *SchoolHandler) Create(c *gin.Context) {
	var req services.CreateSchoolRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	setup, err := h.schoolService.Setup(c.Request.Context(), actorFromContext(c), req)
	if err != nil {
		if setup != nil {
			// The school exists; only seeding failed.
			c.JSON(http.StatusCreated, gin.H{"setup": setup, "warning": err.Error()})
			return
		}
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, setup)
}

// @Summary Get school
// @Tags schools
// @Produce json
// @Param id path string true "School ID"
// @Success 200 {object} models.School
// @Router /api/v1/schools/{id} [get]
func (h *SchoolHandler) Get(c *gin.Context) {
	id, ok := paramUUID(c, "id")
	if !ok {
		return
	}
	school, err := h.schoolService.Get(c.Request.Context(), actorFromContext(c), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, school)
}

// @Summary Seed default distributions for classes
// @Tags schools
// @Accept json
// @Produce json
// @Param id path string true "School ID"
// @Param request body SeedDistributionsRequest true "Classes"
// @Success 200 {array} models.MarkDistribution
// @Router /api/v1/schools/{id}/default-distributions [post]
func (h *SchoolHandler) SeedDistributions(c *gin.Context) {
	id, ok := paramUUID(c, "id")
	if !ok {
		return
	}
	var req SeedDistributionsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	actor := actorFromContext(c)
	if !actor.CanAccess(id) {
		respondError(c, services.ErrForbidden)
		return
	}
	seeded, err := h.schoolService.SeedDefaultDistributions(c.Request.Context(), actor, id, req.AcademicYear, req.Classes)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, seeded)
}
