package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/school-system/grade-engine/internal/grading"
	"github.com/school-system/grade-engine/internal/models"
)

const resourceSchool = "school"

type distributionCreator interface {
	Create(ctx context.Context, actor Actor, req CreateDistributionRequest) (*models.MarkDistribution, error)
}

// CreateSchoolRequest registers a school together with its first admin.
// Classes listed here get a default whole-year distribution.
type CreateSchoolRequest struct {
	Name          string   `json:"name" validate:"required,max=255"`
	Type          string   `json:"type" validate:"max=20"`
	Address       string   `json:"address"`
	Country       string   `json:"country" validate:"max=100"`
	ContactEmail  string   `json:"contact_email" validate:"omitempty,email"`
	Phone         string   `json:"phone" validate:"max=50"`
	AdminName     string   `json:"admin_name" validate:"required,max=255"`
	AdminEmail    string   `json:"admin_email" validate:"required,email"`
	AdminPassword string   `json:"admin_password" validate:"required,min=8"`
	AcademicYear  string   `json:"academic_year" validate:"max=20"`
	Classes       []string `json:"classes" validate:"dive,required,max=64"`
}

type SchoolSetup struct {
	School        models.School             `json:"school"`
	Admin         *models.User              `json:"admin"`
	Distributions []models.MarkDistribution `json:"distributions"`
}

// DefaultDistributionConfig is seeded for every class of a new school:
// theory out of 70, internal assessment out of 30, letter grades, pass at 40%.
func DefaultDistributionConfig() DistributionConfig {
	return DistributionConfig{
		Maxima: map[grading.Component]int{
			grading.Theory:   70,
			grading.Internal: 30,
		},
		GradeSystem:       grading.GradeSystemLetter,
		PassingPercentage: 40,
		RoundingMethod:    grading.RoundNearest,
	}
}

// SchoolService onboards schools: the tenant row, its first admin and a
// default distribution per class.
type SchoolService struct {
	db            *gorm.DB
	auth          *AuthService
	distributions distributionCreator
	audit         auditRecorder
	validator     *validator.Validate
	logger        *zap.Logger
}

func NewSchoolService(db *gorm.DB, auth *AuthService, distributions distributionCreator, audit auditRecorder, validate *validator.Validate, logger *zap.Logger) *SchoolService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SchoolService{db: db, auth: auth, distributions: distributions, audit: audit, validator: validate, logger: logger}
}

// Setup creates the school and its admin in one transaction, then seeds
// default distributions.
func (s *SchoolService) Setup(ctx context.Context, actor Actor, req CreateSchoolRequest) (*SchoolSetup, error) {
	if !actor.IsSystemAdmin() {
		return nil, ErrForbidden
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}

	setup := &SchoolSetup{
		School: models.School{
			Name:         req.Name,
			Type:         req.Type,
			Address:      req.Address,
			Country:      req.Country,
			ContactEmail: req.ContactEmail,
			Phone:        req.Phone,
			Config:       models.JSONB{"classes": req.Classes},
		},
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&setup.School).Error; err != nil {
			return fmt.Errorf("create school: %w", err)
		}
		hash, err := s.auth.HashPassword(req.AdminPassword)
		if err != nil {
			return fmt.Errorf("hash admin password: %w", err)
		}
		schoolID := setup.School.ID
		setup.Admin = &models.User{
			SchoolID:     &schoolID,
			Email:        req.AdminEmail,
			PasswordHash: hash,
			Role:         models.RoleSchoolAdmin,
			FullName:     req.AdminName,
			IsActive:     true,
		}
		if err := tx.Create(setup.Admin).Error; err != nil {
			return fmt.Errorf("create school admin: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("school created",
		zap.String("school_id", setup.School.ID.String()),
		zap.String("admin_id", setup.Admin.ID.String()))
	s.record(ctx, actor, "CREATE", setup.School.ID, nil, setup.School)

	seeded, err := s.SeedDefaultDistributions(ctx, actor, setup.School.ID, req.AcademicYear, req.Classes)
	setup.Distributions = seeded
	return setup, err
}

// SeedDefaultDistributions creates the default distribution for each class.
// Classes that already have a whole-year, all-subjects distribution are left
// alone, so the call can be repeated when classes are added.
func (s *SchoolService) SeedDefaultDistributions(ctx context.Context, actor Actor, schoolID uuid.UUID, academicYear string, classes []string) ([]models.MarkDistribution, error) {
	seeded := make([]models.MarkDistribution, 0, len(classes))
	for _, classID := range classes {
		row, err := s.distributions.Create(ctx, actor, CreateDistributionRequest{
			SchoolID:           schoolID.String(),
			ClassID:            classID,
			AcademicYear:       academicYear,
			DistributionConfig: DefaultDistributionConfig(),
		})
		if errors.Is(err, ErrDistributionExists) {
			continue
		}
		if err != nil {
			return seeded, fmt.Errorf("seed distribution for class %s: %w", classID, err)
		}
		seeded = append(seeded, *row)
	}
	return seeded, nil
}

func (s *SchoolService) Get(ctx context.Context, actor Actor, id uuid.UUID) (*models.School, error) {
	if !actor.CanAccess(id) {
		return nil, ErrSchoolNotFound
	}
	var school models.School
	if err := s.db.WithContext(ctx).First(&school, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrSchoolNotFound
		}
		return nil, fmt.Errorf("load school: %w", err)
	}
	return &school, nil
}

func (s *SchoolService) List(ctx context.Context, actor Actor) ([]models.School, error) {
	q := s.db.WithContext(ctx).Order("name")
	if !actor.IsSystemAdmin() {
		if actor.SchoolID == nil {
			return nil, ErrForbidden
		}
		q = q.Where("id = ?", *actor.SchoolID)
	}
	var schools []models.School
	if err := q.Find(&schools).Error; err != nil {
		return nil, fmt.Errorf("list schools: %w", err)
	}
	return schools, nil
}

func (s *SchoolService) record(ctx context.Context, actor Actor, action string, id uuid.UUID, before, after interface{}) {
	if s.audit == nil {
		return
	}
	if err := s.audit.Record(ctx, actor, action, resourceSchool, id, before, after); err != nil {
		s.logger.Warn("audit record failed", zap.String("action", action), zap.Error(err))
	}
}
