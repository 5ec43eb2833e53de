package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	_ "github.com/noah-isme/univ-erp-api/api/swagger"
	"github.com/noah-isme/univ-erp-api/internal/handler"
	"github.com/noah-isme/univ-erp-api/internal/middleware"
	"github.com/noah-isme/univ-erp-api/internal/repository"
	"github.com/noah-isme/univ-erp-api/internal/service"
	"github.com/noah-isme/univ-erp-api/migrations"
	"github.com/noah-isme/univ-erp-api/pkg/cache"
	"github.com/noah-isme/univ-erp-api/pkg/config"
	"github.com/noah-isme/univ-erp-api/pkg/database"
	"github.com/noah-isme/univ-erp-api/pkg/logger"
	corsmiddleware "github.com/noah-isme/univ-erp-api/pkg/middleware/cors"
	"github.com/noah-isme/univ-erp-api/pkg/middleware/requestid"
	"github.com/noah-isme/univ-erp-api/pkg/password"
)

const (
	shutdownTimeout = 15 * time.Second
	repairDrainTime = 10 * time.Second
)

// @title University ERP API
// @version 1.0.0
// @description Academic records engine: provisioning, registration, grading and settings.
// @BasePath /api/v1
// @schemes http
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logr, err := logger.New(cfg)
	if err != nil {
		log.Fatalf("failed to initialise logger: %v", err)
	}
	defer func() {
		_ = logr.Sync()
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logr); err != nil {
		logr.Fatal("server stopped with error", zap.Error(err))
	}
}

func run(ctx context.Context, cfg *config.Config, logr *zap.Logger) error {
	authDB, err := database.NewPostgres(ctx, cfg.AuthDatabase)
	if err != nil {
		return fmt.Errorf("connect credential store: %w", err)
	}
	defer authDB.Close()

	erpDB, err := database.NewPostgres(ctx, cfg.ErpDatabase)
	if err != nil {
		return fmt.Errorf("connect academic store: %w", err)
	}
	defer erpDB.Close()

	if cfg.AutoMigrate {
		if err := migrate(ctx, logr, authDB, migrations.AuthDir); err != nil {
			return err
		}
		if err := migrate(ctx, logr, erpDB, migrations.ErpDir); err != nil {
			return err
		}
	}

	metrics := service.NewMetricsService()
	validate := validator.New()
	hasher := password.NewHasher(0)

	var cacheRepo service.CacheRepository
	redisClient, err := cache.NewRedis(ctx, cfg.Redis)
	if err != nil {
		logr.Warn("redis unavailable, settings cache disabled", zap.Error(err))
	}
	if redisClient != nil {
		repo := repository.NewCacheRepository(redisClient, "univ-erp")
		defer func() {
			_ = repo.Close()
		}()
		cacheRepo = repo
	}
	cacheSvc := service.NewCacheService(cacheRepo, metrics, cfg.Settings.CacheTTL, logr, cfg.Settings.CacheEnabled)

	credentialRepo := repository.NewCredentialRepository(authDB)
	settingsRepo := repository.NewSettingsRepository(erpDB)
	courseRepo := repository.NewCourseRepository(erpDB)
	sectionRepo := repository.NewSectionRepository(erpDB)
	enrollmentRepo := repository.NewEnrollmentRepository(erpDB)
	gradeRepo := repository.NewGradeRepository(erpDB)
	profileRepo := repository.NewProfileRepository(erpDB)

	settingsSvc := service.NewSettingsService(settingsRepo, cacheSvc, cfg.Settings.CacheTTL, cfg.Location(), logr)
	gate := service.NewAccessGate(settingsSvc, sectionRepo)

	// Not tied to ctx: repairs are drained after the server has stopped.
	dropRepair := service.NewDropRepairWorker(enrollmentRepo, cfg.DropRepair, metrics, logr)
	dropRepair.Start(context.Background())
	defer dropRepair.Stop()

	authSvc := service.NewAuthService(credentialRepo, profileRepo, hasher, validate, logr, service.AuthConfig{
		AccessTokenSecret: cfg.JWT.Secret,
		AccessTokenExpiry: cfg.JWT.Expiration,
		Issuer:            "univ-erp-api",
		MinPasswordLength: cfg.Academic.MinPasswordLength,
	})
	provisioningSvc := service.NewProvisioningService(credentialRepo, profileRepo, gate, hasher, validate, metrics, logr)
	catalogSvc := service.NewCatalogAdminService(courseRepo, sectionRepo, profileRepo, gate, cfg.Academic, validate, logr)
	enrollmentSvc := service.NewEnrollmentService(enrollmentRepo, sectionRepo, gradeRepo, gate, dropRepair, metrics, logr)
	gradingSvc := service.NewGradingService(enrollmentRepo, gradeRepo, sectionRepo, gate, validate, metrics, logr)
	recordsSvc := service.NewRecordsService(sectionRepo, enrollmentRepo, gradeRepo, profileRepo, settingsSvc, logr)

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(requestid.Middleware())
	r.Use(logger.GinMiddleware(logr, "/health", "/ready", "/metrics"))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metrics, "/metrics"))

	handlers := handler.Handlers{
		Auth:       handler.NewAuthHandler(authSvc),
		Admin:      handler.NewAdminHandler(provisioningSvc, catalogSvc),
		Settings:   handler.NewSettingsHandler(settingsSvc),
		Student:    handler.NewStudentHandler(enrollmentSvc, recordsSvc),
		Instructor: handler.NewInstructorHandler(gradingSvc, recordsSvc),
		Metrics: handler.NewMetricsHandler(metrics, map[string]handler.Pinger{
			"auth_db": authDB,
			"erp_db":  erpDB,
		}),
	}
	handlers.Register(r, cfg.APIPrefix, authSvc, logr)

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logr.Info("starting server", zap.String("addr", srv.Addr), zap.String("env", cfg.Env))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logr.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}

	drainCtx, cancelDrain := context.WithTimeout(context.Background(), repairDrainTime)
	defer cancelDrain()
	if err := dropRepair.Drain(drainCtx); err != nil {
		logr.Warn("drop repairs still pending at exit", zap.Error(err))
	}
	dropRepair.Stop()
	return nil
}

func migrate(ctx context.Context, logr *zap.Logger, db *sqlx.DB, dir string) error {
	version, err := database.Migrate(ctx, db, migrations.FS, dir, logr)
	if err != nil {
		return err
	}
	logr.Info("migrations applied", zap.String("store", dir), zap.Int64("version", version))
	return nil
}
