package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/school-system/grade-engine/internal/config"
	"github.com/school-system/grade-engine/internal/database"
	"github.com/school-system/grade-engine/internal/logger"
	"github.com/school-system/grade-engine/internal/repository"
)

// Retention for soft-deleted distributions before they and their score sets
// are removed for good.
const retention = 30 * 24 * time.Hour

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal("Failed to load config:", err)
	}

	zl, err := logger.New(cfg)
	if err != nil {
		log.Fatal("Failed to build logger:", err)
	}
	defer zl.Sync() //nolint:errcheck

	db, err := database.Connect(cfg, zl)
	if err != nil {
		zl.Fatal("database connection failed", zap.Error(err))
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	repo := repository.NewMaintenanceRepository(db)
	now := time.Now()

	tokens, err := repo.PruneRefreshTokens(ctx, now)
	if err != nil {
		zl.Fatal("refresh token pruning failed", zap.Error(err))
	}
	zl.Info("refresh tokens pruned", zap.Int64("deleted", tokens))

	ids, err := repo.DeletedDistributions(ctx, now.Add(-retention))
	if err != nil {
		zl.Fatal("listing deleted distributions failed", zap.Error(err))
	}
	purged := 0
	for _, id := range ids {
		if err := repo.PurgeDistribution(ctx, id); err != nil {
			zl.Error("distribution purge failed", zap.String("distribution_id", id.String()), zap.Error(err))
			continue
		}
		purged++
	}
	zl.Info("cleanup completed", zap.Int("distributions_purged", purged), zap.Int("distributions_pending", len(ids)-purged))
}
