package services

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/school-system/grade-engine/internal/grading"
	"github.com/school-system/grade-engine/internal/models"
)

const resourceDistribution = "mark_distribution"

type distributionRepository interface {
	Create(ctx context.Context, d *models.MarkDistribution) error
	Update(ctx context.Context, d *models.MarkDistribution) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.MarkDistribution, error)
	List(ctx context.Context, filter models.DistributionFilter) ([]models.MarkDistribution, error)
	Delete(ctx context.Context, id uuid.UUID) error
	FindCandidates(ctx context.Context, scope models.DistributionScope) ([]models.MarkDistribution, error)
	ExistsForScope(ctx context.Context, scope models.DistributionScope, excludeID uuid.UUID) (bool, error)
}

type cacheStore interface {
	Get(ctx context.Context, key string, dest interface{}) error
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	DeleteByPattern(ctx context.Context, pattern string) error
}

type auditRecorder interface {
	Record(ctx context.Context, actor Actor, action, resourceType string, resourceID uuid.UUID, before, after interface{}) error
}

// DistributionConfig is the editable part of a mark distribution.
type DistributionConfig struct {
	Maxima            map[grading.Component]int     `json:"maxima" validate:"required,min=1"`
	Weightages        map[grading.Component]float64 `json:"weightages"`
	TotalMarks        *int                          `json:"total_marks,omitempty"`
	GradeSystem       grading.GradeSystem           `json:"grade_system"`
	PassingPercentage float64                       `json:"passing_percentage"`
	AllowGraceMarks   bool                          `json:"allow_grace_marks"`
	GraceMarksLimit   float64                       `json:"grace_marks_limit"`
	RoundingMethod    grading.RoundingMethod        `json:"rounding_method"`
}

func (c DistributionConfig) toDistribution(scope models.DistributionScope) grading.MarkDistribution {
	return grading.MarkDistribution{
		ClassID:           scope.ClassID,
		SubjectID:         scope.SubjectID,
		AcademicYear:      scope.AcademicYear,
		Semester:          scope.Semester,
		Maxima:            c.Maxima,
		Weightages:        c.Weightages,
		TotalMarks:        c.TotalMarks,
		GradeSystem:       c.GradeSystem,
		PassingPercentage: c.PassingPercentage,
		AllowGraceMarks:   c.AllowGraceMarks,
		GraceMarksLimit:   c.GraceMarksLimit,
		RoundingMethod:    c.RoundingMethod,
	}
}

// CreateDistributionRequest scopes a new distribution. SchoolID is only read
// for system admins; everyone else creates in their own school.
type CreateDistributionRequest struct {
	SchoolID     string `json:"school_id" validate:"omitempty,uuid"`
	ClassID      string `json:"class_id" validate:"required,max=64"`
	SubjectID    string `json:"subject_id" validate:"max=64"`
	AcademicYear string `json:"academic_year" validate:"max=20"`
	Semester     string `json:"semester" validate:"max=20"`
	DistributionConfig
}

// ResolveQuery asks which distribution governs a class/subject/semester.
type ResolveQuery struct {
	SchoolID     string `form:"school_id"`
	ClassID      string `form:"class_id" validate:"required"`
	SubjectID    string `form:"subject_id"`
	AcademicYear string `form:"academic_year"`
	Semester     string `form:"semester"`
}

// ValidationVerdict is the dry-run answer for a candidate configuration.
type ValidationVerdict struct {
	Valid           bool              `json:"valid"`
	Reason          grading.Reason    `json:"reason,omitempty"`
	Component       grading.Component `json:"component,omitempty"`
	Detail          string            `json:"detail,omitempty"`
	Mode            grading.Mode      `json:"mode,omitempty"`
	TotalMarks      int               `json:"total_marks,omitempty"`
	RuleVersionHash string            `json:"rule_version_hash,omitempty"`
}

// DistributionService manages stored mark distributions and resolves which
// one applies to a given scope.
type DistributionService struct {
	repo                distributionRepository
	cache               cacheStore
	audit               auditRecorder
	metrics             *MetricsService
	validator           *validator.Validate
	logger              *zap.Logger
	cacheTTL            time.Duration
	defaultAcademicYear string
}

type DistributionServiceOptions struct {
	CacheTTL            time.Duration
	DefaultAcademicYear string
}

func NewDistributionService(repo distributionRepository, cache cacheStore, audit auditRecorder, metrics *MetricsService, validate *validator.Validate, logger *zap.Logger, opts DistributionServiceOptions) *DistributionService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.CacheTTL <= 0 {
		opts.CacheTTL = 10 * time.Minute
	}
	return &DistributionService{
		repo:                repo,
		cache:               cache,
		audit:               audit,
		metrics:             metrics,
		validator:           validate,
		logger:              logger,
		cacheTTL:            opts.CacheTTL,
		defaultAcademicYear: opts.DefaultAcademicYear,
	}
}

func (s *DistributionService) academicYear(requested string) (string, error) {
	if requested != "" {
		return requested, nil
	}
	if s.defaultAcademicYear != "" {
		return s.defaultAcademicYear, nil
	}
	return "", ErrAcademicYearRequired
}

func (s *DistributionService) validate(d grading.MarkDistribution) (grading.ValidatedDistribution, error) {
	vd, err := grading.Validate(d)
	if err != nil {
		var cfgErr *grading.ConfigurationError
		if errors.As(err, &cfgErr) {
			s.metrics.ObserveRejection(cfgErr.Reason)
		}
		return grading.ValidatedDistribution{}, err
	}
	return vd, nil
}

// Create validates and stores a new distribution. A configuration the engine
// rejects is returned as *grading.ConfigurationError and nothing is written.
func (s *DistributionService) Create(ctx context.Context, actor Actor, req CreateDistributionRequest) (*models.MarkDistribution, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	schoolID, err := actor.SchoolScope(req.SchoolID)
	if err != nil {
		return nil, err
	}
	year, err := s.academicYear(req.AcademicYear)
	if err != nil {
		return nil, err
	}

	scope := models.DistributionScope{
		SchoolID:     schoolID,
		ClassID:      req.ClassID,
		SubjectID:    req.SubjectID,
		AcademicYear: year,
		Semester:     req.Semester,
	}
	vd, err := s.validate(req.DistributionConfig.toDistribution(scope))
	if err != nil {
		return nil, err
	}

	exists, err := s.repo.ExistsForScope(ctx, scope, uuid.Nil)
	if err != nil {
		return nil, fmt.Errorf("check distribution scope: %w", err)
	}
	if exists {
		return nil, ErrDistributionExists
	}

	row := &models.MarkDistribution{
		SchoolID:     scope.SchoolID,
		ClassID:      scope.ClassID,
		SubjectID:    scope.SubjectID,
		AcademicYear: scope.AcademicYear,
		Semester:     scope.Semester,
		Version:      1,
	}
	if actor.UserID != uuid.Nil {
		createdBy := actor.UserID
		row.CreatedBy = &createdBy
	}
	row.ApplyDistribution(vd)

	if err := s.repo.Create(ctx, row); err != nil {
		return nil, fmt.Errorf("create distribution: %w", err)
	}

	s.logger.Info("mark distribution created",
		zap.String("distribution_id", row.ID.String()),
		zap.String("school_id", row.SchoolID.String()),
		zap.String("class_id", row.ClassID),
		zap.String("rule_version_hash", row.RuleVersionHash))
	s.record(ctx, actor, "CREATE", row.ID, nil, row)
	s.invalidate(ctx, row.SchoolID)
	return row, nil
}

// Update replaces the configuration of an existing distribution and bumps its
// version. Results computed earlier keep the old RuleVersionHash.
func (s *DistributionService) Update(ctx context.Context, actor Actor, id uuid.UUID, cfg DistributionConfig) (*models.MarkDistribution, error) {
	if err := s.validator.Struct(cfg); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	row, err := s.Get(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	before := *row

	vd, err := s.validate(cfg.toDistribution(row.Scope()))
	if err != nil {
		return nil, err
	}

	row.ApplyDistribution(vd)
	row.Version++
	if actor.UserID != uuid.Nil {
		updatedBy := actor.UserID
		row.UpdatedBy = &updatedBy
	}
	if err := s.repo.Update(ctx, row); err != nil {
		return nil, fmt.Errorf("update distribution: %w", err)
	}

	s.logger.Info("mark distribution updated",
		zap.String("distribution_id", row.ID.String()),
		zap.Int("version", row.Version),
		zap.String("previous_hash", before.RuleVersionHash),
		zap.String("rule_version_hash", row.RuleVersionHash))
	s.record(ctx, actor, "UPDATE", row.ID, before, row)
	s.invalidate(ctx, row.SchoolID)
	return row, nil
}

func (s *DistributionService) Get(ctx context.Context, actor Actor, id uuid.UUID) (*models.MarkDistribution, error) {
	row, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrDistributionNotFound
		}
		return nil, fmt.Errorf("load distribution: %w", err)
	}
	if !actor.CanAccess(row.SchoolID) {
		// Other schools' distributions are indistinguishable from missing ones.
		return nil, ErrDistributionNotFound
	}
	return row, nil
}

// GetValidated loads a distribution and re-validates it for computation.
func (s *DistributionService) GetValidated(ctx context.Context, actor Actor, id uuid.UUID) (*models.MarkDistribution, grading.ValidatedDistribution, error) {
	row, err := s.Get(ctx, actor, id)
	if err != nil {
		return nil, grading.ValidatedDistribution{}, err
	}
	vd, err := s.validate(row.ToDistribution())
	if err != nil {
		return nil, grading.ValidatedDistribution{}, err
	}
	return row, vd, nil
}

func (s *DistributionService) List(ctx context.Context, actor Actor, filter models.DistributionFilter) ([]models.MarkDistribution, error) {
	if !actor.IsSystemAdmin() {
		if actor.SchoolID == nil {
			return nil, ErrForbidden
		}
		schoolID := *actor.SchoolID
		filter.SchoolID = &schoolID
	}
	rows, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("list distributions: %w", err)
	}
	return rows, nil
}

func (s *DistributionService) Delete(ctx context.Context, actor Actor, id uuid.UUID) error {
	row, err := s.Get(ctx, actor, id)
	if err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrDistributionNotFound
		}
		return fmt.Errorf("delete distribution: %w", err)
	}

	s.logger.Info("mark distribution deleted", zap.String("distribution_id", id.String()))
	s.record(ctx, actor, "DELETE", id, row, nil)
	s.invalidate(ctx, row.SchoolID)
	return nil
}

// ValidateOnly runs the validator without storing anything.
func (s *DistributionService) ValidateOnly(cfg DistributionConfig) ValidationVerdict {
	vd, err := s.validate(cfg.toDistribution(models.DistributionScope{}))
	if err != nil {
		verdict := ValidationVerdict{Valid: false, Detail: err.Error()}
		var cfgErr *grading.ConfigurationError
		if errors.As(err, &cfgErr) {
			verdict.Reason = cfgErr.Reason
			verdict.Component = cfgErr.Component
			verdict.Detail = cfgErr.Detail
		}
		return verdict
	}
	return ValidationVerdict{
		Valid:           true,
		Mode:            vd.Mode(),
		TotalMarks:      vd.TotalMarks(),
		RuleVersionHash: vd.RuleVersionHash(),
	}
}

// Resolve returns the most specific distribution for the query. Subject
// specificity outranks semester specificity:
// (subject, semester) > (subject, whole year) > (all subjects, semester) > (all subjects, whole year).
func (s *DistributionService) Resolve(ctx context.Context, actor Actor, q ResolveQuery) (*models.MarkDistribution, error) {
	if err := s.validator.Struct(q); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	schoolID, err := actor.SchoolScope(q.SchoolID)
	if err != nil {
		return nil, err
	}
	year, err := s.academicYear(q.AcademicYear)
	if err != nil {
		return nil, err
	}
	scope := models.DistributionScope{
		SchoolID:     schoolID,
		ClassID:      q.ClassID,
		SubjectID:    q.SubjectID,
		AcademicYear: year,
		Semester:     q.Semester,
	}

	key := resolveCacheKey(scope)
	var cached models.MarkDistribution
	if err := s.cache.Get(ctx, key, &cached); err == nil {
		s.metrics.ObserveCacheLookup(true)
		return &cached, nil
	}
	s.metrics.ObserveCacheLookup(false)

	candidates, err := s.repo.FindCandidates(ctx, scope)
	if err != nil {
		return nil, fmt.Errorf("resolve distribution: %w", err)
	}
	best := mostSpecific(candidates, scope)
	if best == nil {
		return nil, ErrNoDistributionForScope
	}

	if err := s.cache.Set(ctx, key, best, s.cacheTTL); err != nil {
		s.logger.Warn("distribution cache write failed", zap.String("key", key), zap.Error(err))
	}
	return best, nil
}

func mostSpecific(candidates []models.MarkDistribution, scope models.DistributionScope) *models.MarkDistribution {
	var best *models.MarkDistribution
	bestRank := -1
	for i := range candidates {
		c := &candidates[i]
		rank := 0
		switch {
		case c.SubjectID == "":
		case c.SubjectID == scope.SubjectID:
			rank += 2
		default:
			continue
		}
		switch {
		case c.Semester == "":
		case c.Semester == scope.Semester:
			rank++
		default:
			continue
		}
		if rank > bestRank {
			best, bestRank = c, rank
		}
	}
	return best
}

// resolveCacheKey keeps the school in clear text for invalidation and hashes
// the caller-supplied ids, which may contain the separator.
func resolveCacheKey(scope models.DistributionScope) string {
	h := sha256.New()
	for _, part := range []string{scope.ClassID, scope.AcademicYear, scope.SubjectID, scope.Semester} {
		fmt.Fprintf(h, "%d:%s", len(part), part)
	}
	return fmt.Sprintf("distribution:resolve:%s:%s", scope.SchoolID, hex.EncodeToString(h.Sum(nil)))
}

func (s *DistributionService) invalidate(ctx context.Context, schoolID uuid.UUID) {
	pattern := fmt.Sprintf("distribution:resolve:%s:*", schoolID)
	if err := s.cache.DeleteByPattern(ctx, pattern); err != nil {
		s.logger.Warn("distribution cache invalidation failed", zap.String("pattern", pattern), zap.Error(err))
	}
}

func (s *DistributionService) record(ctx context.Context, actor Actor, action string, id uuid.UUID, before, after interface{}) {
	if s.audit == nil {
		return
	}
	if err := s.audit.Record(ctx, actor, action, resourceDistribution, id, before, after); err != nil {
		s.logger.Warn("audit record failed", zap.String("action", action), zap.Error(err))
	}
}
