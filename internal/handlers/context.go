package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/school-system/grade-engine/internal/grading"
	"github.com/school-system/grade-engine/internal/services"
)

// actorFromContext builds the service actor from values set by the auth and
// tenant middleware.
func actorFromContext(c *gin.Context) services.Actor {
	actor := services.Actor{
		Role: c.GetString("role"),
		IP:   c.ClientIP(),
	}
	if v, ok := c.Get("user_id"); ok {
		if id, ok := v.(uuid.UUID); ok {
			actor.UserID = id
		}
	}
	if v, ok := c.Get("tenant_school_id"); ok {
		if id, ok := v.(uuid.UUID); ok {
			actor.SchoolID = &id
		}
	}
	return actor
}

func paramUUID(c *gin.Context, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid " + name})
		return uuid.Nil, false
	}
	return id, true
}

// respondError maps service and engine errors to HTTP responses. Anything
// unrecognised is a 500 and the detail is logged, not returned.
func respondError(c *gin.Context, err error) {
	var cfgErr *grading.ConfigurationError
	var integrity *grading.ScoreIntegrityError

	switch {
	case errors.As(err, &cfgErr):
		body := gin.H{"error": cfgErr.Error(), "reason": cfgErr.Reason}
		if cfgErr.Component != "" {
			body["component"] = cfgErr.Component
		}
		c.JSON(http.StatusUnprocessableEntity, body)
	case errors.As(err, &integrity):
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": integrity.Error(), "integrity": integrity})
	case errors.Is(err, services.ErrDistributionNotFound),
		errors.Is(err, services.ErrNoDistributionForScope),
		errors.Is(err, services.ErrScoreSetNotFound),
		errors.Is(err, services.ErrUserNotFound),
		errors.Is(err, services.ErrSchoolNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, services.ErrForbidden):
		c.JSON(http.StatusForbidden, gin.H{"error": "Insufficient permissions"})
	case errors.Is(err, services.ErrDistributionExists):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case errors.Is(err, services.ErrInvalidInput),
		errors.Is(err, services.ErrSchoolRequired),
		errors.Is(err, services.ErrAcademicYearRequired),
		errors.Is(err, services.ErrInvalidRole):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Request cancelled"})
	default:
		_ = c.Error(err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
	}
}
