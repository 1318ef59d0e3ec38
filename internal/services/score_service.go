package services

import (
	"context"
	"errors"
	"fmt"
	"math"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/school-system/grade-engine/internal/grading"
	"github.com/school-system/grade-engine/internal/models"
)

const resourceScoreSet = "student_score_set"

type scoreRepository interface {
	Upsert(ctx context.Context, s *models.StudentScoreSet) error
	BulkUpsert(ctx context.Context, sets []models.StudentScoreSet) error
	FindByStudent(ctx context.Context, distributionID uuid.UUID, studentID string) (*models.StudentScoreSet, error)
	ListByDistribution(ctx context.Context, distributionID uuid.UUID) ([]models.StudentScoreSet, error)
}

type distributionGetter interface {
	Get(ctx context.Context, actor Actor, id uuid.UUID) (*models.MarkDistribution, error)
	GetValidated(ctx context.Context, actor Actor, id uuid.UUID) (*models.MarkDistribution, grading.ValidatedDistribution, error)
}

// ScoreEntry is one student's scores. Omitted components are stored as
// absent, not zero.
type ScoreEntry struct {
	StudentID string                        `json:"student_id" validate:"required,max=64"`
	Scores    map[grading.Component]float64 `json:"scores"`
}

type BulkScoreRequest struct {
	Entries []ScoreEntry `json:"entries" validate:"required,min=1,dive"`
}

// ScoreService records raw scores. Range checks against the distribution
// happen when grades are computed so partial entry is always accepted.
type ScoreService struct {
	repo          scoreRepository
	distributions distributionGetter
	audit         auditRecorder
	validator     *validator.Validate
	logger        *zap.Logger
}

func NewScoreService(repo scoreRepository, distributions distributionGetter, audit auditRecorder, validate *validator.Validate, logger *zap.Logger) *ScoreService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ScoreService{repo: repo, distributions: distributions, audit: audit, validator: validate, logger: logger}
}

func checkEntry(entry ScoreEntry) error {
	for c, v := range entry.Scores {
		if !c.Valid() {
			return fmt.Errorf("%w: unknown component %q for student %s", ErrInvalidInput, c, entry.StudentID)
		}
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("%w: %s score for student %s is not a number", ErrInvalidInput, c, entry.StudentID)
		}
	}
	return nil
}

func (s *ScoreService) newRow(actor Actor, distributionID uuid.UUID, entry ScoreEntry) models.StudentScoreSet {
	row := models.StudentScoreSet{DistributionID: distributionID, StudentID: entry.StudentID}
	row.SetScores(grading.ScoreSet(entry.Scores))
	if actor.UserID != uuid.Nil {
		enteredBy := actor.UserID
		row.EnteredBy = &enteredBy
	}
	return row
}

// Upsert records or replaces one student's scores.
func (s *ScoreService) Upsert(ctx context.Context, actor Actor, distributionID uuid.UUID, entry ScoreEntry) (*models.StudentScoreSet, error) {
	if err := s.validator.Struct(entry); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	if err := checkEntry(entry); err != nil {
		return nil, err
	}
	if _, err := s.distributions.Get(ctx, actor, distributionID); err != nil {
		return nil, err
	}

	row := s.newRow(actor, distributionID, entry)
	if err := s.repo.Upsert(ctx, &row); err != nil {
		return nil, fmt.Errorf("upsert scores: %w", err)
	}
	stored, err := s.repo.FindByStudent(ctx, distributionID, entry.StudentID)
	if err != nil {
		return nil, fmt.Errorf("reload scores: %w", err)
	}

	s.record(ctx, actor, "UPSERT", stored.ID, nil, stored)
	return stored, nil
}

// BulkUpsert records many students at once. The whole request is rejected if
// any entry is malformed or a student appears twice.
func (s *ScoreService) BulkUpsert(ctx context.Context, actor Actor, distributionID uuid.UUID, req BulkScoreRequest) (int, error) {
	if err := s.validator.Struct(req); err != nil {
		return 0, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	seen := make(map[string]struct{}, len(req.Entries))
	for _, entry := range req.Entries {
		if _, dup := seen[entry.StudentID]; dup {
			return 0, fmt.Errorf("%w: student %s appears more than once", ErrInvalidInput, entry.StudentID)
		}
		seen[entry.StudentID] = struct{}{}
		if err := checkEntry(entry); err != nil {
			return 0, err
		}
	}
	if _, err := s.distributions.Get(ctx, actor, distributionID); err != nil {
		return 0, err
	}

	rows := make([]models.StudentScoreSet, 0, len(req.Entries))
	for _, entry := range req.Entries {
		rows = append(rows, s.newRow(actor, distributionID, entry))
	}
	if err := s.repo.BulkUpsert(ctx, rows); err != nil {
		return 0, fmt.Errorf("bulk upsert scores: %w", err)
	}

	s.logger.Info("score sets recorded",
		zap.String("distribution_id", distributionID.String()),
		zap.Int("students", len(rows)))
	s.record(ctx, actor, "BULK_UPSERT", distributionID, nil, map[string]interface{}{"students": len(rows)})
	return len(rows), nil
}

func (s *ScoreService) ListByDistribution(ctx context.Context, actor Actor, distributionID uuid.UUID) ([]models.StudentScoreSet, error) {
	if _, err := s.distributions.Get(ctx, actor, distributionID); err != nil {
		return nil, err
	}
	rows, err := s.repo.ListByDistribution(ctx, distributionID)
	if err != nil {
		return nil, fmt.Errorf("list scores: %w", err)
	}
	return rows, nil
}

func (s *ScoreService) Get(ctx context.Context, actor Actor, distributionID uuid.UUID, studentID string) (*models.StudentScoreSet, error) {
	if _, err := s.distributions.Get(ctx, actor, distributionID); err != nil {
		return nil, err
	}
	row, err := s.repo.FindByStudent(ctx, distributionID, studentID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrScoreSetNotFound
		}
		return nil, fmt.Errorf("load scores: %w", err)
	}
	return row, nil
}

func (s *ScoreService) record(ctx context.Context, actor Actor, action string, id uuid.UUID, before, after interface{}) {
	if s.audit == nil {
		return
	}
	if err := s.audit.Record(ctx, actor, action, resourceScoreSet, id, before, after); err != nil {
		s.logger.Warn("audit record failed", zap.String("action", action), zap.Error(err))
	}
}
