package services

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/school-system/grade-engine/internal/config"
	"github.com/school-system/grade-engine/internal/models"
)

func testAuthService() *AuthService {
	cfg := &config.Config{
		JWT: config.JWTConfig{
			Secret:        "test-secret",
			AccessExpiry:  15 * time.Minute,
			RefreshExpiry: time.Hour,
		},
		Argon2: config.Argon2Config{
			Memory:      16 * 1024,
			Iterations:  1,
			Parallelism: 1,
			SaltLength:  16,
			KeyLength:   32,
		},
	}
	return NewAuthService(nil, cfg, nil)
}

func TestAuthServicePasswordHashing(t *testing.T) {
	svc := testAuthService()

	hash, err := svc.HashPassword("correct horse")
	require.NoError(t, err)
	assert.Contains(t, hash, "$argon2id$")

	ok, err := svc.VerifyPassword(hash, "correct horse")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = svc.VerifyPassword(hash, "wrong")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestAuthServiceVerifiesLegacyBcrypt(t *testing.T) {
	svc := testAuthService()
	legacy, err := bcrypt.GenerateFromPassword([]byte("Teacher@123"), bcrypt.MinCost)
	require.NoError(t, err)

	ok, err := svc.VerifyPassword(string(legacy), "Teacher@123")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = svc.VerifyPassword(string(legacy), "nope")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.True(t, isBcryptHash(string(legacy)))
}

func TestAuthServiceAccessTokenRoundTrip(t *testing.T) {
	svc := testAuthService()
	school := uuid.New()
	user := &models.User{BaseModel: models.BaseModel{ID: uuid.New()}, SchoolID: &school, Role: models.RoleTeacher, Email: "t@school.test"}

	token, err := svc.AccessToken(user)
	require.NoError(t, err)

	claims, err := svc.VerifyToken(token)
	require.NoError(t, err)
	assert.Equal(t, user.ID, claims.UserID)
	assert.Equal(t, school, *claims.SchoolID)
	assert.Equal(t, models.RoleTeacher, claims.Role)
	assert.Equal(t, TokenTypeAccess, claims.TokenType)
}

func TestAuthServiceRejectsExpiredAndForeignTokens(t *testing.T) {
	svc := testAuthService()
	user := &models.User{BaseModel: models.BaseModel{ID: uuid.New()}, Role: models.RoleSystemAdmin}

	issued := time.Date(2025, 1, 1, 8, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return issued }
	token, err := svc.AccessToken(user)
	require.NoError(t, err)

	svc.now = func() time.Time { return issued.Add(time.Hour) }
	_, err = svc.VerifyToken(token)
	assert.ErrorIs(t, err, ErrInvalidToken)

	other := testAuthService()
	other.cfg.JWT.Secret = "another-secret"
	foreign, err := other.AccessToken(user)
	require.NoError(t, err)
	_, err = testAuthService().VerifyToken(foreign)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestAuthServiceCreateUserValidatesRole(t *testing.T) {
	svc := testAuthService()

	err := svc.CreateUser(context.Background(), &models.User{Role: "principal"}, "password123")
	assert.ErrorIs(t, err, ErrInvalidRole)

	err = svc.CreateUser(context.Background(), &models.User{Role: models.RoleTeacher}, "password123")
	assert.ErrorIs(t, err, ErrSchoolRequired)
}
