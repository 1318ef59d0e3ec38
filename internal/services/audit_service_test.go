package services

import (
	"context"
	"errors"
	"testing"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func newAuditMock(t *testing.T) (*gorm.DB, sqlmock.Sqlmock) {
	t.Helper()
	sqlDB, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { sqlDB.Close() })

	db, err := gorm.Open(postgres.New(postgres.Config{Conn: sqlDB}), &gorm.Config{
		SkipDefaultTransaction: true,
		Logger:                 logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	return db, mock
}

func TestAuditRecentScopesToSchool(t *testing.T) {
	db, mock := newAuditMock(t)
	schoolID := uuid.New()
	entryID := uuid.New()

	mock.ExpectQuery(`SELECT audit_logs\.\*, users\.full_name as user_name, schools\.name as school_name FROM "audit_logs" LEFT JOIN users .* WHERE audit_logs\.school_id = \$1 ORDER BY audit_logs\.timestamp DESC LIMIT`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "action", "resource_type", "user_name", "school_name"}).
			AddRow(entryID.String(), "CREATE", "mark_distribution", "Ada Admin", "Hill School"))

	activities, err := NewAuditService(db, nil).Recent(context.Background(), &schoolID, 20)
	require.NoError(t, err)
	require.Len(t, activities, 1)
	assert.Equal(t, entryID, activities[0].ID)
	assert.Equal(t, "CREATE", activities[0].Action)
	assert.Equal(t, "Ada Admin", activities[0].UserName)
	assert.Equal(t, "Hill School", activities[0].SchoolName)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAuditRecordLogsWriteFailure(t *testing.T) {
	db, mock := newAuditMock(t)
	core, logs := observer.New(zap.ErrorLevel)

	mock.ExpectExec(`INSERT INTO "audit_logs"`).WillReturnError(errors.New("disk full"))

	err := NewAuditService(db, zap.New(core)).Record(context.Background(), schoolAdmin(uuid.New()), "DELETE", "mark_distribution", uuid.New(), nil, nil)
	require.Error(t, err)

	entries := logs.FilterMessage("audit write failed").All()
	require.Len(t, entries, 1)
	assert.Equal(t, "DELETE", entries[0].ContextMap()["action"])
}
