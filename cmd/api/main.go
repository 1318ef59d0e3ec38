package main

import (
	"context"
	"fmt"
	"log"
	"os"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/school-system/grade-engine/internal/config"
	"github.com/school-system/grade-engine/internal/database"
	"github.com/school-system/grade-engine/internal/handlers"
	"github.com/school-system/grade-engine/internal/logger"
	"github.com/school-system/grade-engine/internal/middleware"
	"github.com/school-system/grade-engine/internal/models"
	"github.com/school-system/grade-engine/internal/repository"
	"github.com/school-system/grade-engine/internal/services"
)

// @title Grade Engine API
// @version 1.0
// @description Mark distribution validation and grade computation for schools
// @host localhost:8080
// @BasePath /
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
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

	if len(os.Args) > 1 {
		handleCommand(os.Args[1:], cfg, db, zl)
		return
	}

	rdb, err := database.ConnectRedis(cfg.Redis)
	if err != nil {
		zl.Warn("redis unavailable, distribution cache disabled", zap.Error(err))
		rdb = nil
	}
	cache := repository.NewCacheRepository(rdb, zl)
	defer cache.Close() //nolint:errcheck

	var metrics *services.MetricsService
	if cfg.Monitoring.PrometheusEnabled {
		metrics = services.NewMetricsService()
	}
	validate := validator.New()

	// Services
	authService := services.NewAuthService(db, cfg, zl)
	auditService := services.NewAuditService(db, zl)
	distributionService := services.NewDistributionService(
		repository.NewDistributionRepository(db), cache, auditService, metrics, validate, zl,
		services.DistributionServiceOptions{
			CacheTTL:            cfg.Engine.CacheTTL,
			DefaultAcademicYear: cfg.Engine.DefaultAcademicYear,
		})
	scoreRepo := repository.NewScoreRepository(db)
	scoreService := services.NewScoreService(scoreRepo, distributionService, auditService, validate, zl)
	gradingService := services.NewGradingService(distributionService, scoreRepo, metrics, validate, zl, cfg.Engine.BatchConcurrency)
	userService := services.NewUserService(db, authService, auditService, validate, zl)
	schoolService := services.NewSchoolService(db, authService, distributionService, auditService, validate, zl)

	// Handlers
	authHandler := handlers.NewAuthHandler(authService, userService)
	userHandler := handlers.NewUserHandler(userService)
	schoolHandler := handlers.NewSchoolHandler(schoolService)
	auditHandler := handlers.NewAuditHandler(auditService)
	distributionHandler := handlers.NewDistributionHandler(distributionService)
	scoreHandler := handlers.NewScoreHandler(scoreService)
	gradingHandler := handlers.NewGradingHandler(gradingService)

	if cfg.Server.Env == config.EnvDevelopment {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.Logger(zl))
	if metrics != nil {
		r.Use(middleware.Metrics(metrics))
	}
	r.Use(cors(cfg.CORS.Origins))

	r.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok", "service": "grade-engine"})
	})
	if metrics != nil {
		r.GET("/metrics", gin.WrapH(metrics.Handler()))
	}
	r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	v1 := r.Group("/api/v1")
	{
		auth := v1.Group("/auth")
		{
			auth.POST("/login", authHandler.Login)
			auth.POST("/refresh", authHandler.Refresh)
			auth.POST("/logout", authHandler.Logout)
		}

		protected := v1.Group("")
		protected.Use(middleware.AuthMiddleware(authService))
		protected.Use(middleware.TenantMiddleware())
		{
			sysAdmin := protected.Group("")
			sysAdmin.Use(middleware.RequireSystemAdmin())
			{
				sysAdmin.POST("/schools", schoolHandler.Create)
			}

			schoolAdmin := protected.Group("")
			schoolAdmin.Use(middleware.RequireSchoolAdmin())
			{
				schoolAdmin.GET("/users", userHandler.List)
				schoolAdmin.POST("/users", userHandler.Create)
				schoolAdmin.PUT("/users/:id", userHandler.Update)
				schoolAdmin.DELETE("/users/:id", userHandler.Delete)
				schoolAdmin.POST("/schools/:id/default-distributions", schoolHandler.SeedDistributions)
				schoolAdmin.GET("/audit/recent", auditHandler.GetRecentActivity)

				schoolAdmin.POST("/distributions", distributionHandler.Create)
				schoolAdmin.PUT("/distributions/:id", distributionHandler.Update)
				schoolAdmin.DELETE("/distributions/:id", distributionHandler.Delete)
			}

			protected.GET("/auth/me", authHandler.Me)
			protected.GET("/users/:id", userHandler.Get)
			protected.GET("/schools", schoolHandler.List)
			protected.GET("/schools/:id", schoolHandler.Get)

			staff := protected.Group("")
			staff.Use(middleware.RequireTeacher())
			{
				staff.GET("/distributions", distributionHandler.List)
				staff.POST("/distributions/validate", distributionHandler.Validate)
				staff.GET("/distributions/resolve", distributionHandler.Resolve)
				staff.GET("/distributions/:id", distributionHandler.Get)

				staff.GET("/distributions/:id/scores", scoreHandler.List)
				staff.PUT("/distributions/:id/scores", scoreHandler.Upsert)
				staff.POST("/distributions/:id/scores/bulk", scoreHandler.BulkUpsert)
				staff.GET("/distributions/:id/scores/:studentId", scoreHandler.Get)

				staff.POST("/distributions/:id/grades", gradingHandler.ComputeBatch)
				staff.GET("/distributions/:id/grades/:studentId", gradingHandler.ComputeStudent)
				staff.POST("/grades/compute", gradingHandler.ComputeAdhoc)
			}
		}
	}

	addr := fmt.Sprintf(":%s", cfg.Server.Port)
	zl.Info("server starting", zap.String("addr", addr), zap.String("env", cfg.Server.Env))
	if err := r.Run(addr); err != nil {
		zl.Fatal("server stopped", zap.Error(err))
	}
}

func cors(origins []string) gin.HandlerFunc {
	allowed := make(map[string]struct{}, len(origins))
	for _, o := range origins {
		allowed[o] = struct{}{}
	}
	return func(c *gin.Context) {
		origin := c.Request.Header.Get("Origin")
		if _, ok := allowed[origin]; ok {
			c.Writer.Header().Set("Access-Control-Allow-Origin", origin)
		}
		c.Writer.Header().Set("Access-Control-Allow-Credentials", "true")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-Trace-ID")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}
		c.Next()
	}
}

func handleCommand(args []string, cfg *config.Config, db *gorm.DB, zl *zap.Logger) {
	switch args[0] {
	case "migrate":
		if err := database.Migrate(db, zl); err != nil {
			zl.Fatal("migration failed", zap.Error(err))
		}
		zl.Info("migration completed")

	case "seed-admin":
		email := "sysadmin@school.local"
		if len(args) > 1 {
			email = args[1]
		}
		seedAdmin(cfg, db, zl, email)

	default:
		zl.Fatal("unknown command", zap.String("command", args[0]))
	}
}

// seedAdmin creates the first system admin. The password comes from
// SEED_ADMIN_SECRET so it never has a compiled-in default.
func seedAdmin(cfg *config.Config, db *gorm.DB, zl *zap.Logger, email string) {
	if cfg.Server.SeedAdminSecret == "" {
		zl.Fatal("SEED_ADMIN_SECRET is required for seed-admin")
	}

	var count int64
	if err := db.Model(&models.User{}).Where("role = ?", models.RoleSystemAdmin).Count(&count).Error; err != nil {
		zl.Fatal("checking existing admins failed", zap.Error(err))
	}
	if count > 0 {
		zl.Info("system admin already exists")
		return
	}

	authService := services.NewAuthService(db, cfg, zl)
	admin := &models.User{
		Email:    email,
		FullName: "System Administrator",
		Role:     models.RoleSystemAdmin,
		IsActive: true,
	}
	if err := authService.CreateUser(context.Background(), admin, cfg.Server.SeedAdminSecret); err != nil {
		zl.Fatal("creating system admin failed", zap.Error(err))
	}
	zl.Info("system admin created", zap.String("email", email), zap.String("user_id", admin.ID.String()))
}
