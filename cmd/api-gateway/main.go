package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	_ "github.com/scholchat/scholchat-api/api/swagger"
	"github.com/scholchat/scholchat-api/internal/app"
	"github.com/scholchat/scholchat-api/internal/handler"
	"github.com/scholchat/scholchat-api/internal/middleware"
	"github.com/scholchat/scholchat-api/pkg/config"
	"github.com/scholchat/scholchat-api/pkg/logger"
	corsmiddleware "github.com/scholchat/scholchat-api/pkg/middleware/cors"
	reqidmiddleware "github.com/scholchat/scholchat-api/pkg/middleware/requestid"
)

const shutdownTimeout = 15 * time.Second

// @title Scholchat Scheduled Courses API
// @version 1.0.0
// @description Lifecycle management of scheduled course occurrences.
// @BasePath /api/v1
// @schemes http https
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
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logr.Sync() //nolint:errcheck

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	application, err := app.New(ctx, cfg, logr)
	if err != nil {
		logr.Fatal("failed to initialise application", zap.Error(err))
	}
	defer application.Close()

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(application.Metrics))

	checks := map[string]handler.Pinger{"postgres": application.DB}
	if application.Cache != nil {
		checks["redis"] = application.Cache
	}

	courses := handler.NewScheduledCourseHandler(application.ScheduledCourses, nil, application.Validator)
	if cfg.Exports.Enabled {
		courses = handler.NewScheduledCourseHandler(application.ScheduledCourses, application.Exports, application.Validator)
	}

	handler.RegisterRoutes(r, handler.Routes{
		APIPrefix:        cfg.APIPrefix,
		Tokens:           application.Tokens,
		ScheduledCourses: courses,
		Metrics:          handler.NewMetricsHandler(application.Metrics, checks),
		ExportsEnabled:   cfg.Exports.Enabled,
	})

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logr.Sugar().Infow("server starting", "addr", srv.Addr, "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logr.Error("server failed", zap.Error(err))
			stop()
		}
	}()

	<-ctx.Done()
	logr.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Error("graceful shutdown failed", zap.Error(err))
	}
}
