package app

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/scholchat/scholchat-api/internal/repository"
	"github.com/scholchat/scholchat-api/internal/service"
	"github.com/scholchat/scholchat-api/pkg/cache"
	"github.com/scholchat/scholchat-api/pkg/config"
	"github.com/scholchat/scholchat-api/pkg/database"
	"github.com/scholchat/scholchat-api/pkg/jobs"
	"github.com/scholchat/scholchat-api/pkg/validation"
)

// App holds the wired lifecycle components shared by the API server and the CLI.
type App struct {
	Config           *config.Config
	Logger           *zap.Logger
	DB               *sqlx.DB
	Cache            *repository.CacheRepository
	Metrics          *service.MetricsService
	Tokens           *service.TokenService
	Exports          *service.ExportService
	ScheduledCourses *service.ScheduledCourseService
	Validator        *validation.Validator

	audit *service.AuditDispatcher
}

// New connects to Postgres (and Redis when enabled) and wires repositories and services.
// Close must be called to drain the audit queue and release connections.
func New(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*App, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	db, err := database.NewPostgres(ctx, cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	if cfg.Database.AutoMigrate {
		if err := database.RunMigrations(db.DB, logger); err != nil {
			_ = db.Close()
			return nil, err
		}
	}

	a := &App{
		Config:    cfg,
		Logger:    logger,
		DB:        db,
		Metrics:   service.NewMetricsService(),
		Validator: validation.New(),
	}

	var cacheRepo service.CacheRepository
	if cfg.Redis.Enabled {
		client, err := cache.NewRedis(ctx, cfg.Redis)
		if err != nil {
			logger.Warn("redis unavailable, lookups will not be cached", zap.Error(err))
		} else {
			a.Cache = repository.NewCacheRepository(client, logger)
			cacheRepo = a.Cache
		}
	}
	cacheSvc := service.NewCacheService(cacheRepo, a.Metrics, cfg.Lookups.CacheTTL, logger, cfg.Lookups.CacheEnabled && cacheRepo != nil)

	courses := repository.NewCourseRepository(db)
	classes := repository.NewClassRepository(db)
	access := repository.NewClassAccessRepository(db)
	directory := service.NewDirectoryService(courses, classes, cacheSvc, logger)

	var audit *service.AuditDispatcher
	if cfg.Audit.Enabled {
		audit = service.NewAuditDispatcher(repository.NewAuditRepository(db), a.Metrics, jobs.QueueConfig{
			Workers:    cfg.Audit.Workers,
			MaxRetries: cfg.Audit.MaxRetries,
			RetryDelay: cfg.Audit.RetryDelay,
		}, logger)
		audit.Start(ctx)
		a.audit = audit
	}

	a.ScheduledCourses = service.NewScheduledCourseService(
		repository.NewScheduledCourseRepository(db),
		courses,
		classes,
		access,
		directory,
		auditRecorderOrNil(audit),
		a.Metrics,
		a.Validator,
		logger,
	)
	a.Exports = service.NewExportService(service.ExportConfig{
		Title:    cfg.Exports.PDFTitle,
		Timezone: cfg.Exports.Timezone,
	}, logger)

	audience := ""
	if len(cfg.JWT.Audience) > 0 {
		audience = cfg.JWT.Audience[0]
	}
	a.Tokens = service.NewTokenService(service.TokenConfig{
		Secret:   cfg.JWT.Secret,
		Issuer:   cfg.JWT.Issuer,
		Audience: audience,
	})

	return a, nil
}

// auditRecorderOrNil avoids handing the service a typed nil when auditing is disabled.
func auditRecorderOrNil(d *service.AuditDispatcher) service.AuditRecorder {
	if d == nil {
		return nil
	}
	return d
}

// Close drains pending audit entries before closing Redis and Postgres.
func (a *App) Close() {
	if a.audit != nil {
		a.audit.Stop()
	}
	if a.Cache != nil {
		if err := a.Cache.Close(); err != nil {
			a.Logger.Warn("close redis", zap.Error(err))
		}
	}
	if err := a.DB.Close(); err != nil {
		a.Logger.Warn("close postgres", zap.Error(err))
	}
}
