package database

import (
	"fmt"

	"go.uber.org/zap"
	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/school-system/grade-engine/internal/config"
	"github.com/school-system/grade-engine/internal/models"
)

func Connect(cfg *config.Config, log *zap.Logger) (*gorm.DB, error) {
	logLevel := logger.Silent
	if cfg.Server.Env == config.EnvDevelopment {
		logLevel = logger.Info
	}

	dialector, err := Dialector(cfg.Database)
	if err != nil {
		return nil, err
	}

	log.Info("connecting to database",
		zap.String("driver", cfg.Database.Driver),
		zap.String("dsn", maskPassword(cfg.Database.DSN)))

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: logger.Default.LogMode(logLevel),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	log.Info("database connection successful")
	return db, nil
}

// Dialector picks the gorm driver for DB_DRIVER.
func Dialector(cfg config.DatabaseConfig) (gorm.Dialector, error) {
	switch cfg.Driver {
	case config.DriverPostgres:
		return postgres.Open(cfg.DSN), nil
	case config.DriverMySQL:
		return mysql.Open(cfg.DSN), nil
	default:
		return nil, fmt.Errorf("unsupported database driver %q", cfg.Driver)
	}
}

func maskPassword(dsn string) string {
	if len(dsn) > 20 {
		return dsn[:20] + "...***..."
	}
	return "***"
}

func Migrate(db *gorm.DB, log *zap.Logger) error {
	log.Info("running migrations")

	return db.AutoMigrate(
		&models.School{},
		&models.User{},
		&models.RefreshToken{},
		&models.AuditLog{},
		&models.MarkDistribution{},
		&models.StudentScoreSet{},
	)
}
