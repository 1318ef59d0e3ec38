package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/school-system/grade-engine/internal/models"
	"github.com/school-system/grade-engine/internal/services"
)

type fakeAuthenticator struct {
	user       *models.User
	loginErr   error
	refreshErr error
	revoked    []string
}

func (f *fakeAuthenticator) Login(ctx context.Context, email, password string) (*services.TokenPair, *models.User, error) {
	if f.loginErr != nil {
		return nil, nil, f.loginErr
	}
	return &services.TokenPair{AccessToken: "access", RefreshToken: "refresh", ExpiresIn: 900}, f.user, nil
}

func (f *fakeAuthenticator) RefreshTokens(ctx context.Context, refreshToken string) (*services.TokenPair, error) {
	if f.refreshErr != nil {
		return nil, f.refreshErr
	}
	return &services.TokenPair{AccessToken: "access-2", RefreshToken: "refresh-2"}, nil
}

func (f *fakeAuthenticator) RevokeToken(ctx context.Context, refreshToken string) error {
	f.revoked = append(f.revoked, refreshToken)
	return nil
}

type fakeProfiles struct {
	school *models.School
}

func (f fakeProfiles) Get(ctx context.Context, actor services.Actor, id uuid.UUID) (*models.User, error) {
	if id != actor.UserID {
		return nil, services.ErrUserNotFound
	}
	u := &models.User{Email: "me@school.test", FullName: "Me", Role: actor.Role, SchoolID: actor.SchoolID, School: f.school}
	u.ID = id
	return u, nil
}

func authRouter(auth *fakeAuthenticator, profiles fakeProfiles) *gin.Engine {
	gin.SetMode(gin.TestMode)
	h := NewAuthHandler(auth, profiles)
	r := gin.New()
	r.POST("/auth/login", h.Login)
	r.POST("/auth/refresh", h.Refresh)
	r.POST("/auth/logout", h.Logout)
	r.GET("/auth/me", testIdentity(), h.Me)
	return r
}

func TestPermissionsFollowRoleHierarchy(t *testing.T) {
	teacher := permissionsFor(models.RoleTeacher)
	admin := permissionsFor(models.RoleSchoolAdmin)
	system := permissionsFor(models.RoleSystemAdmin)

	assert.ElementsMatch(t, []string{PermDistributionsRead, PermScoresWrite, PermGradesCompute}, teacher)
	assert.Subset(t, admin, teacher)
	assert.Contains(t, admin, PermDistributionsWrite)
	assert.NotContains(t, admin, PermSchoolsCreate)
	assert.Subset(t, system, admin)
	assert.Contains(t, system, PermSchoolsCreate)
	assert.Empty(t, permissionsFor("parent"))
}

func TestLoginReturnsSession(t *testing.T) {
	school := uuid.New()
	user := &models.User{Email: "t@school.test", FullName: "Teacher", Role: models.RoleTeacher, SchoolID: &school,
		School: &models.School{Name: "Hill School"}}
	user.ID = uuid.New()

	rec := performRequest(authRouter(&fakeAuthenticator{user: user}, fakeProfiles{}), http.MethodPost, "/auth/login",
		`{"email":"t@school.test","password":"secret"}`, "", uuid.Nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp LoginResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "access", resp.Tokens.AccessToken)
	assert.Equal(t, user.ID, resp.User.UserID)
	assert.Equal(t, &school, resp.User.SchoolID)
	assert.Equal(t, "Hill School", resp.User.SchoolName)
	assert.Contains(t, resp.User.Permissions, PermGradesCompute)
	assert.NotContains(t, rec.Body.String(), "password")
}

func TestAuthErrorMapping(t *testing.T) {
	tests := []struct {
		name   string
		path   string
		auth   *fakeAuthenticator
		status int
	}{
		{"bad credentials", "/auth/login", &fakeAuthenticator{loginErr: services.ErrInvalidCredentials}, http.StatusUnauthorized},
		{"disabled account", "/auth/login", &fakeAuthenticator{loginErr: services.ErrUserNotActive}, http.StatusForbidden},
		{"storage failure", "/auth/login", &fakeAuthenticator{loginErr: errors.New("connection reset")}, http.StatusInternalServerError},
		{"revoked refresh", "/auth/refresh", &fakeAuthenticator{refreshErr: services.ErrTokenRevoked}, http.StatusUnauthorized},
		{"malformed refresh", "/auth/refresh", &fakeAuthenticator{refreshErr: services.ErrInvalidToken}, http.StatusUnauthorized},
	}

	body := map[string]string{
		"/auth/login":   `{"email":"a@school.test","password":"x"}`,
		"/auth/refresh": `{"refresh_token":"tok"}`,
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := performRequest(authRouter(tt.auth, fakeProfiles{}), http.MethodPost, tt.path, body[tt.path], "", uuid.Nil)
			assert.Equal(t, tt.status, rec.Code)
			assert.NotContains(t, rec.Body.String(), "connection reset")
		})
	}
}

func TestLogoutRevokes(t *testing.T) {
	auth := &fakeAuthenticator{}
	r := authRouter(auth, fakeProfiles{})

	rec := performRequest(r, http.MethodPost, "/auth/logout", `{"refresh_token":"tok"}`, "", uuid.Nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, []string{"tok"}, auth.revoked)

	rec = performRequest(r, http.MethodPost, "/auth/logout", `{}`, "", uuid.Nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestMeUsesTenantContext(t *testing.T) {
	school := uuid.New()
	rec := performRequest(authRouter(&fakeAuthenticator{}, fakeProfiles{school: &models.School{Name: "Hill School"}}),
		http.MethodGet, "/auth/me", "", models.RoleSchoolAdmin, school)
	require.Equal(t, http.StatusOK, rec.Code)

	var session Session
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &session))
	assert.Equal(t, models.RoleSchoolAdmin, session.Role)
	assert.Equal(t, &school, session.SchoolID)
	assert.Equal(t, "Hill School", session.SchoolName)
	assert.Contains(t, session.Permissions, PermUsersManage)
}
