package repository

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/school-system/grade-engine/internal/models"
)

const scoreBatchSize = 200

var scoreColumns = []string{"theory", "practical", "internal", "project", "assignment", "attendance", "entered_by", "updated_at"}

// ScoreRepository persists student score sets keyed by (distribution, student).
type ScoreRepository struct {
	db *gorm.DB
}

func NewScoreRepository(db *gorm.DB) *ScoreRepository {
	return &ScoreRepository{db: db}
}

func upsertClause() clause.OnConflict {
	return clause.OnConflict{
		Columns:   []clause.Column{{Name: "distribution_id"}, {Name: "student_id"}},
		DoUpdates: clause.AssignmentColumns(scoreColumns),
	}
}

// Upsert inserts the score set or replaces every component column of the
// existing row for the same student.
func (r *ScoreRepository) Upsert(ctx context.Context, s *models.StudentScoreSet) error {
	return r.db.WithContext(ctx).Clauses(upsertClause()).Create(s).Error
}

func (r *ScoreRepository) BulkUpsert(ctx context.Context, sets []models.StudentScoreSet) error {
	if len(sets) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Clauses(upsertClause()).CreateInBatches(&sets, scoreBatchSize).Error
}

func (r *ScoreRepository) FindByStudent(ctx context.Context, distributionID uuid.UUID, studentID string) (*models.StudentScoreSet, error) {
	var s models.StudentScoreSet
	err := r.db.WithContext(ctx).
		Where("distribution_id = ? AND student_id = ?", distributionID, studentID).
		First(&s).Error
	if err != nil {
		return nil, err
	}
	return &s, nil
}

func (r *ScoreRepository) ListByDistribution(ctx context.Context, distributionID uuid.UUID) ([]models.StudentScoreSet, error) {
	var out []models.StudentScoreSet
	err := r.db.WithContext(ctx).
		Where("distribution_id = ?", distributionID).
		Order("student_id").
		Find(&out).Error
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (r *ScoreRepository) DeleteByDistribution(ctx context.Context, distributionID uuid.UUID) error {
	return r.db.WithContext(ctx).Where("distribution_id = ?", distributionID).Delete(&models.StudentScoreSet{}).Error
}
