package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/school-system/grade-engine/internal/models"
)

const resourceUser = "user"

type CreateUserRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=8"`
	FullName string `json:"full_name" validate:"required,max=255"`
	Role     string `json:"role" validate:"required,oneof=system_admin school_admin teacher"`
	SchoolID string `json:"school_id" validate:"omitempty,uuid"`
}

type UpdateUserRequest struct {
	FullName string `json:"full_name" validate:"omitempty,max=255"`
	Role     string `json:"role" validate:"omitempty,oneof=system_admin school_admin teacher"`
	IsActive *bool  `json:"is_active"`
}

// UserService manages accounts. School admins manage the admins and teachers
// of their own school; only system admins can touch system admin accounts.
type UserService struct {
	db        *gorm.DB
	auth      *AuthService
	audit     auditRecorder
	validator *validator.Validate
	logger    *zap.Logger
}

func NewUserService(db *gorm.DB, auth *AuthService, audit auditRecorder, validate *validator.Validate, logger *zap.Logger) *UserService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &UserService{db: db, auth: auth, audit: audit, validator: validate, logger: logger}
}

func canAssignRole(actor Actor, role string) bool {
	if actor.IsSystemAdmin() {
		return true
	}
	return actor.Role == models.RoleSchoolAdmin && role != models.RoleSystemAdmin
}

func (s *UserService) Create(ctx context.Context, actor Actor, req CreateUserRequest) (*models.User, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	if !canAssignRole(actor, req.Role) {
		return nil, ErrForbidden
	}

	user := &models.User{
		Email:    req.Email,
		FullName: req.FullName,
		Role:     req.Role,
		IsActive: true,
	}
	if req.Role != models.RoleSystemAdmin {
		schoolID, err := actor.SchoolScope(req.SchoolID)
		if err != nil {
			return nil, err
		}
		user.SchoolID = &schoolID
	}

	if err := s.auth.CreateUser(ctx, user, req.Password); err != nil {
		return nil, fmt.Errorf("create user: %w", err)
	}

	s.logger.Info("user created", zap.String("user_id", user.ID.String()), zap.String("role", user.Role))
	s.record(ctx, actor, "CREATE", user.ID, nil, models.JSONB{"full_name": user.FullName, "role": user.Role})
	return user, nil
}

// List returns the users of one school. System admins must name the school.
func (s *UserService) List(ctx context.Context, actor Actor, schoolID string) ([]models.User, error) {
	scope, err := actor.SchoolScope(schoolID)
	if err != nil {
		return nil, err
	}
	var users []models.User
	if err := s.db.WithContext(ctx).Where("school_id = ?", scope).Order("full_name").Find(&users).Error; err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	return users, nil
}

func (s *UserService) Get(ctx context.Context, actor Actor, id uuid.UUID) (*models.User, error) {
	var user models.User
	if err := s.db.WithContext(ctx).Preload("School").First(&user, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("load user: %w", err)
	}
	if actor.IsSystemAdmin() || actor.UserID == user.ID {
		return &user, nil
	}
	if user.SchoolID == nil || !actor.CanAccess(*user.SchoolID) {
		return nil, ErrUserNotFound
	}
	return &user, nil
}

func (s *UserService) Update(ctx context.Context, actor Actor, id uuid.UUID, req UpdateUserRequest) (*models.User, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	user, err := s.Get(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	if !canAssignRole(actor, user.Role) {
		return nil, ErrForbidden
	}
	before := models.JSONB{"full_name": user.FullName, "role": user.Role, "is_active": user.IsActive}

	updates := map[string]interface{}{}
	if req.FullName != "" {
		updates["full_name"] = req.FullName
	}
	if req.Role != "" && req.Role != user.Role {
		if !canAssignRole(actor, req.Role) {
			return nil, ErrForbidden
		}
		if req.Role == models.RoleSystemAdmin || user.Role == models.RoleSystemAdmin {
			return nil, fmt.Errorf("%w: role change between system and school accounts", ErrInvalidInput)
		}
		updates["role"] = req.Role
	}
	if req.IsActive != nil {
		updates["is_active"] = *req.IsActive
	}
	if len(updates) == 0 {
		return user, nil
	}

	if err := s.db.WithContext(ctx).Model(user).Updates(updates).Error; err != nil {
		return nil, fmt.Errorf("update user: %w", err)
	}
	s.record(ctx, actor, "UPDATE", user.ID, before, models.JSONB(updates))
	return user, nil
}

func (s *UserService) Delete(ctx context.Context, actor Actor, id uuid.UUID) error {
	if actor.UserID == id {
		return fmt.Errorf("%w: cannot delete your own account", ErrInvalidInput)
	}
	user, err := s.Get(ctx, actor, id)
	if err != nil {
		return err
	}
	if !canAssignRole(actor, user.Role) {
		return ErrForbidden
	}
	if err := s.db.WithContext(ctx).Delete(&models.User{}, "id = ?", id).Error; err != nil {
		return fmt.Errorf("delete user: %w", err)
	}
	s.record(ctx, actor, "DELETE", id, models.JSONB{"full_name": user.FullName, "role": user.Role}, nil)
	return nil
}

func (s *UserService) record(ctx context.Context, actor Actor, action string, id uuid.UUID, before, after interface{}) {
	if s.audit == nil {
		return
	}
	if err := s.audit.Record(ctx, actor, action, resourceUser, id, before, after); err != nil {
		s.logger.Warn("audit record failed", zap.String("action", action), zap.Error(err))
	}
}
