package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/school-system/grade-engine/internal/models"
)

// MaintenanceRepository removes rows the API no longer serves: soft-deleted
// distributions with their score sets, and dead refresh tokens.
type MaintenanceRepository struct {
	db *gorm.DB
}

func NewMaintenanceRepository(db *gorm.DB) *MaintenanceRepository {
	return &MaintenanceRepository{db: db}
}

// DeletedDistributions returns distributions soft-deleted before cutoff.
func (r *MaintenanceRepository) DeletedDistributions(ctx context.Context, cutoff time.Time) ([]uuid.UUID, error) {
	var ids []uuid.UUID
	err := r.db.WithContext(ctx).Unscoped().
		Model(&models.MarkDistribution{}).
		Where("deleted_at IS NOT NULL AND deleted_at < ?", cutoff).
		Pluck("id", &ids).Error
	return ids, err
}

// PurgeDistribution hard-deletes a distribution and its score sets together.
func (r *MaintenanceRepository) PurgeDistribution(ctx context.Context, id uuid.UUID) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := NewScoreRepository(tx).DeleteByDistribution(ctx, id); err != nil {
			return err
		}
		return tx.Unscoped().Delete(&models.MarkDistribution{}, "id = ?", id).Error
	})
}

// PruneRefreshTokens deletes revoked tokens and tokens expired before now.
func (r *MaintenanceRepository) PruneRefreshTokens(ctx context.Context, now time.Time) (int64, error) {
	res := r.db.WithContext(ctx).
		Where("revoked = ? OR expires_at < ?", true, now).
		Delete(&models.RefreshToken{})
	return res.RowsAffected, res.Error
}
