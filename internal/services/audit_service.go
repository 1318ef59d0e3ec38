package services

import (
	"context"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/school-system/grade-engine/internal/models"
)

type AuditService struct {
	db     *gorm.DB
	logger *zap.Logger
}

func NewAuditService(db *gorm.DB, logger *zap.Logger) *AuditService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AuditService{db: db, logger: logger}
}

// Record writes one audit entry. before and after are snapshotted as JSON.
func (s *AuditService) Record(ctx context.Context, actor Actor, action, resourceType string, resourceID uuid.UUID, before, after interface{}) error {
	entry := &models.AuditLog{
		ActorUserID:  actor.UserID,
		SchoolID:     actor.SchoolID,
		Action:       action,
		ResourceType: resourceType,
		ResourceID:   resourceID,
		Before:       models.ToJSONB(before),
		After:        models.ToJSONB(after),
		IP:           actor.IP,
	}
	if err := s.db.WithContext(ctx).Create(entry).Error; err != nil {
		s.logger.Error("audit write failed",
			zap.String("action", action),
			zap.String("resource_type", resourceType),
			zap.String("resource_id", resourceID.String()),
			zap.Error(err))
		return err
	}
	return nil
}

// Activity is an audit entry joined with the acting user's display names.
type Activity struct {
	models.AuditLog
	UserName   string `json:"user_name"`
	SchoolName string `json:"school_name,omitempty"`
}

// Recent lists the newest audit entries. A non-nil schoolID restricts the
// list to that school's activity.
func (s *AuditService) Recent(ctx context.Context, schoolID *uuid.UUID, limit int) ([]Activity, error) {
	q := s.db.WithContext(ctx).Table("audit_logs").
		Select("audit_logs.*, users.full_name as user_name, schools.name as school_name").
		Joins("LEFT JOIN users ON audit_logs.actor_user_id = users.id").
		Joins("LEFT JOIN schools ON users.school_id = schools.id")
	if schoolID != nil {
		q = q.Where("audit_logs.school_id = ?", *schoolID)
	}

	var activities []Activity
	if err := q.Order("audit_logs.timestamp DESC").Limit(limit).Scan(&activities).Error; err != nil {
		return nil, err
	}
	return activities, nil
}
