package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"cloud-deploy-dashboard/internal/auth"
	"cloud-deploy-dashboard/internal/config"
	"cloud-deploy-dashboard/internal/handler"
	"cloud-deploy-dashboard/internal/metrics"
	"cloud-deploy-dashboard/internal/pkg/logger"
	"cloud-deploy-dashboard/internal/router"
	"cloud-deploy-dashboard/internal/service"
	"cloud-deploy-dashboard/internal/trace"
)

const shutdownTimeout = 5 * time.Second

func main() {
	envErr := config.LoadEnv()
	cfg := config.LoadConfig()

	appLogger, err := logger.NewLogger(cfg.Logging)
	if err != nil {
		appLogger = logger.Fallback()
		appLogger.Warn("invalid logging config, using defaults", zap.Error(err))
	}
	defer func() { _ = appLogger.Sync() }()
	zap.ReplaceGlobals(appLogger.Logger)

	if envErr != nil {
		appLogger.Warn("failed to load .env file, using environment only", zap.Error(envErr))
	}

	if err := run(cfg, appLogger); err != nil {
		appLogger.Error("server stopped with error", zap.Error(err))
		_ = appLogger.Sync()
		os.Exit(1)
	}
}

func run(cfg *config.Config, appLogger *logger.Logger) error {
	tracing, err := trace.Setup(context.Background(), "cloud-deploy-server")
	if err != nil {
		return fmt.Errorf("init tracing: %w", err)
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := tracing.Shutdown(ctx); err != nil {
			appLogger.Warn("failed to flush traces", zap.Error(err))
		}
	}()

	a, err := auth.New(cfg.Auth)
	if err != nil {
		return fmt.Errorf("init auth: %w", err)
	}

	m := metrics.New()
	deployService := service.NewDeployService(cfg.Simulation.StepDuration, appLogger,
		service.WithMetrics(m),
		service.WithRetention(cfg.Simulation.Retention),
	)

	authHandler := handler.NewAuthHandler(a, appLogger)
	deployHandler := handler.NewDeployHandler(deployService, m, appLogger, cfg.Server.AllowOrigins)

	if cfg.Server.Debug {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}
	r := router.New(appLogger, cfg.Server.AllowOrigins, a, m, authHandler, deployHandler)

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		appLogger.Info("server starting", zap.String("address", addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(quit)

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("listen on %s: %w", addr, err)
		}
		return nil
	case sig := <-quit:
		appLogger.Info("shutting down server", zap.String("signal", sig.String()))
	}

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := deployService.Shutdown(ctx); err != nil {
		appLogger.Warn("deployments did not stop in time", zap.Error(err))
	}
	if err := srv.Shutdown(ctx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}

	appLogger.Info("server exited")
	return nil
}
