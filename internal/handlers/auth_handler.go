package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/school-system/grade-engine/internal/models"
	"github.com/school-system/grade-engine/internal/services"
)

type authenticator interface {
	Login(ctx context.Context, email, password string) (*services.TokenPair, *models.User, error)
	RefreshTokens(ctx context.Context, refreshToken string) (*services.TokenPair, error)
	RevokeToken(ctx context.Context, refreshToken string) error
}

type profileReader interface {
	Get(ctx context.Context, actor services.Actor, id uuid.UUID) (*models.User, error)
}

type AuthHandler struct {
	auth  authenticator
	users profileReader
}

func NewAuthHandler(auth authenticator, users profileReader) *AuthHandler {
	return &AuthHandler{auth: auth, users: users}
}

type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

type RefreshRequest struct {
	RefreshToken string `json:"refresh_token" binding:"required"`
}

// Session describes the account behind a token and what its role may do
// within its school.
type Session struct {
	UserID      uuid.UUID  `json:"id"`
	Email       string     `json:"email"`
	FullName    string     `json:"full_name"`
	Role        string     `json:"role"`
	SchoolID    *uuid.UUID `json:"school_id,omitempty"`
	SchoolName  string     `json:"school_name,omitempty"`
	Permissions []string   `json:"permissions"`
}

type LoginResponse struct {
	Tokens *services.TokenPair `json:"tokens"`
	User   Session             `json:"user"`
}

// Permission names mirror the route groups in cmd/api.
const (
	PermDistributionsRead  = "distributions:read"
	PermScoresWrite        = "scores:write"
	PermGradesCompute      = "grades:compute"
	PermDistributionsWrite = "distributions:write"
	PermUsersManage        = "users:manage"
	PermAuditRead          = "audit:read"
	PermSchoolsSeed        = "schools:seed"
	PermSchoolsCreate      = "schools:create"
)

func permissionsFor(role string) []string {
	perms := []string{}
	switch role {
	case models.RoleSystemAdmin:
		perms = append(perms, PermSchoolsCreate)
		fallthrough
	case models.RoleSchoolAdmin:
		perms = append(perms, PermDistributionsWrite, PermUsersManage, PermAuditRead, PermSchoolsSeed)
		fallthrough
	case models.RoleTeacher:
		perms = append(perms, PermDistributionsRead, PermScoresWrite, PermGradesCompute)
	}
	return perms
}

func newSession(user *models.User) Session {
	s := Session{
		UserID:      user.ID,
		Email:       user.Email,
		FullName:    user.FullName,
		Role:        user.Role,
		SchoolID:    user.SchoolID,
		Permissions: permissionsFor(user.Role),
	}
	if user.School != nil {
		s.SchoolName = user.School.Name
	}
	return s
}

// respondAuthError keeps credential failures indistinguishable from each
// other; storage failures still surface as 500.
func respondAuthError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, services.ErrUserNotActive):
		c.JSON(http.StatusForbidden, gin.H{"error": "Account disabled"})
	case errors.Is(err, services.ErrInvalidCredentials):
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid credentials"})
	case errors.Is(err, services.ErrInvalidToken), errors.Is(err, services.ErrTokenRevoked):
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid refresh token"})
	default:
		respondError(c, err)
	}
}

// @Summary Login
// @Tags auth
// @Accept json
// @Produce json
// @Param request body LoginRequest true "Login credentials"
// @Success 200 {object} LoginResponse
// @Router /api/v1/auth/login [post]
func (h *AuthHandler) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	tokens, user, err := h.auth.Login(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		respondAuthError(c, err)
		return
	}
	c.JSON(http.StatusOK, LoginResponse{Tokens: tokens, User: newSession(user)})
}

// @Summary Refresh tokens
// @Tags auth
// @Accept json
// @Produce json
// @Param request body RefreshRequest true "Refresh token"
// @Success 200 {object} services.TokenPair
// @Router /api/v1/auth/refresh [post]
func (h *AuthHandler) Refresh(c *gin.Context) {
	var req RefreshRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	tokens, err := h.auth.RefreshTokens(c.Request.Context(), req.RefreshToken)
	if err != nil {
		respondAuthError(c, err)
		return
	}
	c.JSON(http.StatusOK, tokens)
}

// @Summary Logout
// @Tags auth
// @Accept json
// @Param request body RefreshRequest true "Refresh token"
// @Success 204
// @Router /api/v1/auth/logout [post]
func (h *AuthHandler) Logout(c *gin.Context) {
	var req RefreshRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := h.auth.RevokeToken(c.Request.Context(), req.RefreshToken); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// @Summary Current session
// @Tags auth
// @Produce json
// @Security BearerAuth
// @Success 200 {object} Session
// @Router /api/v1/auth/me [get]
func (h *AuthHandler) Me(c *gin.Context) {
	actor := actorFromContext(c)
	if actor.UserID == uuid.Nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}

	user, err := h.users.Get(c.Request.Context(), actor, actor.UserID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, newSession(user))
}
