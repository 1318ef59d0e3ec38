package services

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/school-system/grade-engine/internal/grading"
)

func TestDefaultDistributionConfigIsValid(t *testing.T) {
	f := newDistributionFixture()

	verdict := f.svc.ValidateOnly(DefaultDistributionConfig())
	assert.True(t, verdict.Valid)
	assert.Equal(t, grading.ModeUnweighted, verdict.Mode)
	assert.Equal(t, 100, verdict.TotalMarks)
}

func TestSchoolServiceSeedDefaultDistributions(t *testing.T) {
	f := newDistributionFixture()
	svc := NewSchoolService(nil, testAuthService(), f.svc, f.audit, nil, zap.NewNop())
	school := uuid.New()
	actor := systemAdmin()
	ctx := context.Background()

	seeded, err := svc.SeedDefaultDistributions(ctx, actor, school, "2026", []string{"P1", "P2"})
	require.NoError(t, err)
	require.Len(t, seeded, 2)
	for _, row := range seeded {
		assert.Equal(t, school, row.SchoolID)
		assert.Equal(t, "2026", row.AcademicYear)
		assert.Empty(t, row.SubjectID)
		assert.Empty(t, row.Semester)
		assert.Equal(t, 70, row.TheoryMax)
		assert.Equal(t, 30, row.InternalMax)
	}

	again, err := svc.SeedDefaultDistributions(ctx, actor, school, "2026", []string{"P1", "P2", "P3"})
	require.NoError(t, err)
	require.Len(t, again, 1)
	assert.Equal(t, "P3", again[0].ClassID)
	assert.Len(t, f.repo.rows, 3)
}

func TestSchoolServiceSetupRequiresSystemAdmin(t *testing.T) {
	svc := NewSchoolService(nil, testAuthService(), newDistributionFixture().svc, nil, nil, nil)

	_, err := svc.Setup(context.Background(), schoolAdmin(uuid.New()), CreateSchoolRequest{Name: "Hill View"})
	assert.ErrorIs(t, err, ErrForbidden)

	_, err = svc.Setup(context.Background(), systemAdmin(), CreateSchoolRequest{Name: "Hill View"})
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestUserServiceRoleAssignment(t *testing.T) {
	svc := NewUserService(nil, testAuthService(), nil, nil, nil)
	school := uuid.New()
	req := CreateUserRequest{Email: "new@school.test", Password: "password123", FullName: "New User", Role: "teacher"}

	_, err := svc.Create(context.Background(), teacherOf(school), req)
	assert.ErrorIs(t, err, ErrForbidden)

	req.Role = "system_admin"
	_, err = svc.Create(context.Background(), schoolAdmin(school), req)
	assert.ErrorIs(t, err, ErrForbidden)

	req.Role = "principal"
	_, err = svc.Create(context.Background(), systemAdmin(), req)
	assert.ErrorIs(t, err, ErrInvalidInput)

	assert.True(t, canAssignRole(schoolAdmin(school), "teacher"))
	assert.True(t, canAssignRole(systemAdmin(), "system_admin"))
	assert.False(t, canAssignRole(teacherOf(school), "teacher"))
}

func TestUserServiceDeleteSelf(t *testing.T) {
	svc := NewUserService(nil, testAuthService(), nil, nil, nil)
	actor := schoolAdmin(uuid.New())

	err := svc.Delete(context.Background(), actor, actor.UserID)
	assert.ErrorIs(t, err, ErrInvalidInput)
}
