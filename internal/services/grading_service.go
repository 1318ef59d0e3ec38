package services

import (
	"context"
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

type scoreReader interface {
	FindByStudent(ctx context.Context, distributionID uuid.UUID, studentID string) (*models.StudentScoreSet, error)
	ListByDistribution(ctx context.Context, distributionID uuid.UUID) ([]models.StudentScoreSet, error)
}

// StudentGrade is one stored student's computed result.
type StudentGrade struct {
	DistributionID uuid.UUID           `json:"distribution_id"`
	StudentID      string              `json:"student_id"`
	Version        int                 `json:"distribution_version"`
	Result         grading.GradeResult `json:"result"`
}

// AdhocRequest carries a configuration and scores owned by the caller.
type AdhocRequest struct {
	Distribution grading.MarkDistribution    `json:"distribution"`
	Scores       map[string]grading.ScoreSet `json:"scores" validate:"required,min=1"`
}

// GradingService runs the grading engine over stored or caller-supplied data.
type GradingService struct {
	distributions distributionGetter
	scores        scoreReader
	metrics       *MetricsService
	validator     *validator.Validate
	logger        *zap.Logger
	concurrency   int
}

func NewGradingService(distributions distributionGetter, scores scoreReader, metrics *MetricsService, validate *validator.Validate, logger *zap.Logger, concurrency int) *GradingService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &GradingService{
		distributions: distributions,
		scores:        scores,
		metrics:       metrics,
		validator:     validate,
		logger:        logger,
		concurrency:   concurrency,
	}
}

// ComputeStudent grades one stored student. A score outside its component's
// range comes back as *grading.ScoreIntegrityError.
func (s *GradingService) ComputeStudent(ctx context.Context, actor Actor, distributionID uuid.UUID, studentID string) (*StudentGrade, error) {
	row, vd, err := s.distributions.GetValidated(ctx, actor, distributionID)
	if err != nil {
		return nil, err
	}
	set, err := s.scores.FindByStudent(ctx, distributionID, studentID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrScoreSetNotFound
		}
		return nil, fmt.Errorf("load scores: %w", err)
	}

	result, err := grading.Compute(vd, set.ToScoreSet())
	if err != nil {
		s.metrics.ObserveResult(nil)
		s.logger.Warn("score integrity violation",
			zap.String("distribution_id", distributionID.String()),
			zap.String("student_id", studentID),
			zap.Error(err))
		return nil, err
	}
	s.metrics.ObserveResult(&result)

	return &StudentGrade{
		DistributionID: row.ID,
		StudentID:      studentID,
		Version:        row.Version,
		Result:         result,
	}, nil
}

// ComputeBatch grades every stored student of a distribution. When ctx is
// cancelled the partial report is returned together with the context error.
func (s *GradingService) ComputeBatch(ctx context.Context, actor Actor, distributionID uuid.UUID) (*grading.BatchReport, error) {
	_, vd, err := s.distributions.GetValidated(ctx, actor, distributionID)
	if err != nil {
		return nil, err
	}
	rows, err := s.scores.ListByDistribution(ctx, distributionID)
	if err != nil {
		return nil, fmt.Errorf("load scores: %w", err)
	}

	scoreSets := make(map[string]grading.ScoreSet, len(rows))
	for i := range rows {
		scoreSets[rows[i].StudentID] = rows[i].ToScoreSet()
	}
	return s.run(ctx, vd, scoreSets)
}

// ComputeAdhoc validates and grades caller-supplied data without touching
// storage.
func (s *GradingService) ComputeAdhoc(ctx context.Context, req AdhocRequest) (*grading.BatchReport, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	vd, err := grading.Validate(req.Distribution)
	if err != nil {
		var cfgErr *grading.ConfigurationError
		if errors.As(err, &cfgErr) {
			s.metrics.ObserveRejection(cfgErr.Reason)
		}
		return nil, err
	}
	return s.run(ctx, vd, req.Scores)
}

func (s *GradingService) run(ctx context.Context, vd grading.ValidatedDistribution, scoreSets map[string]grading.ScoreSet) (*grading.BatchReport, error) {
	start := time.Now()
	report, err := grading.ComputeBatch(ctx, vd, scoreSets, grading.WithConcurrency(s.concurrency))
	if report == nil {
		return nil, err
	}
	elapsed := time.Since(start)
	s.metrics.ObserveBatch(report, elapsed)

	fields := []zap.Field{
		zap.String("distribution_id", vd.ID()),
		zap.String("rule_version_hash", vd.RuleVersionHash()),
		zap.Int("total", report.Total),
		zap.Int("passed", report.Passed),
		zap.Int("failed", report.Failed),
		zap.Int("errored", report.Errored),
		zap.Int("incomplete", report.Incomplete),
		zap.Duration("elapsed", elapsed),
	}
	if err != nil {
		s.logger.Warn("grade batch interrupted", append(fields, zap.Int("skipped", len(report.Skipped)), zap.Error(err))...)
		return report, err
	}
	s.logger.Info("grade batch computed", fields...)
	return report, nil
}
