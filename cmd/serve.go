package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"

	"github.com/smartpresence/attendance-service/internal/config"
	"github.com/smartpresence/attendance-service/internal/events"
	"github.com/smartpresence/attendance-service/internal/handlers"
	"github.com/smartpresence/attendance-service/internal/scheduler"
	"github.com/smartpresence/attendance-service/internal/utils"
)

const shutdownTimeout = 30 * time.Second

// nolint: gochecknoglobals
var serveCmd = &cobra.Command{
	Use:     "serve",
	Short:   "Starts the HTTP API and the absence marking job",
	Example: "smartpresence serve",
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, err := config.LoadConfig()
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		return serve(ctx, cfg)
	},
}

func serve(ctx context.Context, cfg *config.Config) error {
	slogLogger := newLogger(cfg)
	logger := utils.NewSlogLogger(slogLogger)

	app, err := bootstrap(ctx, cfg, slogLogger)
	if err != nil {
		return err
	}

	// Without kafka, events go to an in-process channel that is only logged
	if app.channel != nil {
		if err := events.LogSubscriber(ctx, app.channel, slogLogger, app.publisher.AllTopics()...); err != nil {
			slogLogger.Warn("Event log subscriber not started", "error", err)
		}
	}

	absences, err := scheduler.New(app.services.Absence(), cfg.AbsenceJobInterval, cfg.Location(), slogLogger)
	if err != nil {
		app.close(context.Background())
		return fmt.Errorf("failed to create scheduler: %w", err)
	}
	absences.Start()

	if cfg.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	handlers.SetupMiddleware(router, logger, app.metrics)
	handlers.NewHandlerManager(app.services, logger, app.metrics).SetupRoutes(router)

	server := &http.Server{
		Addr:              fmt.Sprintf(":%s", cfg.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		logger.Info("Starting server", "port", cfg.Port, "environment", cfg.Environment, "timezone", cfg.Timezone)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	var runErr error
	select {
	case <-ctx.Done():
		logger.Info("Shutting down server...")
	case runErr = <-serverErr:
		logger.Error("Server failed", "error", runErr)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server forced to shutdown", "error", err)
	}
	if err := absences.Stop(); err != nil {
		logger.Error("Failed to stop scheduler", "error", err)
	}
	app.close(shutdownCtx)

	logger.Info("Server exited")
	return runErr
}
