package repository

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/school-system/grade-engine/internal/models"
)

// DistributionRepository persists mark distributions with gorm.
type DistributionRepository struct {
	db *gorm.DB
}

func NewDistributionRepository(db *gorm.DB) *DistributionRepository {
	return &DistributionRepository{db: db}
}

func (r *DistributionRepository) Create(ctx context.Context, d *models.MarkDistribution) error {
	return r.db.WithContext(ctx).Create(d).Error
}

func (r *DistributionRepository) Update(ctx context.Context, d *models.MarkDistribution) error {
	return r.db.WithContext(ctx).Save(d).Error
}

func (r *DistributionRepository) FindByID(ctx context.Context, id uuid.UUID) (*models.MarkDistribution, error) {
	var d models.MarkDistribution
	if err := r.db.WithContext(ctx).First(&d, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &d, nil
}

func (r *DistributionRepository) List(ctx context.Context, filter models.DistributionFilter) ([]models.MarkDistribution, error) {
	q := r.db.WithContext(ctx).Model(&models.MarkDistribution{})
	if filter.SchoolID != nil {
		q = q.Where("school_id = ?", *filter.SchoolID)
	}
	if filter.ClassID != "" {
		q = q.Where("class_id = ?", filter.ClassID)
	}
	if filter.SubjectID != "" {
		q = q.Where("subject_id = ?", filter.SubjectID)
	}
	if filter.AcademicYear != "" {
		q = q.Where("academic_year = ?", filter.AcademicYear)
	}
	if filter.Semester != "" {
		q = q.Where("semester = ?", filter.Semester)
	}

	var out []models.MarkDistribution
	if err := q.Order("academic_year DESC, class_id, subject_id, semester").Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

// Delete soft-deletes the row. Missing ids report gorm.ErrRecordNotFound.
func (r *DistributionRepository) Delete(ctx context.Context, id uuid.UUID) error {
	res := r.db.WithContext(ctx).Delete(&models.MarkDistribution{}, "id = ?", id)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// FindCandidates returns every distribution that could apply to scope: the
// exact subject or all subjects, the exact semester or the whole year.
func (r *DistributionRepository) FindCandidates(ctx context.Context, scope models.DistributionScope) ([]models.MarkDistribution, error) {
	var out []models.MarkDistribution
	err := r.db.WithContext(ctx).
		Where("school_id = ? AND class_id = ? AND academic_year = ?", scope.SchoolID, scope.ClassID, scope.AcademicYear).
		Where("subject_id IN ?", []string{scope.SubjectID, ""}).
		Where("semester IN ?", []string{scope.Semester, ""}).
		Find(&out).Error
	if err != nil {
		return nil, err
	}
	return out, nil
}

// ExistsForScope reports whether another live distribution already owns the
// exact scope. excludeID is skipped so an update does not collide with itself.
func (r *DistributionRepository) ExistsForScope(ctx context.Context, scope models.DistributionScope, excludeID uuid.UUID) (bool, error) {
	var count int64
	q := r.db.WithContext(ctx).Model(&models.MarkDistribution{}).
		Where("school_id = ? AND class_id = ? AND subject_id = ? AND academic_year = ? AND semester = ?",
			scope.SchoolID, scope.ClassID, scope.SubjectID, scope.AcademicYear, scope.Semester)
	if excludeID != uuid.Nil {
		q = q.Where("id <> ?", excludeID)
	}
	if err := q.Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}
