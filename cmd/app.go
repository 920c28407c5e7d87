package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"github.com/smartpresence/attendance-service/internal/cache"
	"github.com/smartpresence/attendance-service/internal/config"
	"github.com/smartpresence/attendance-service/internal/events"
	"github.com/smartpresence/attendance-service/internal/metrics"
	"github.com/smartpresence/attendance-service/internal/repositories"
	"github.com/smartpresence/attendance-service/internal/repositories/casdoor"
	"github.com/smartpresence/attendance-service/internal/repositories/postgres"
	"github.com/smartpresence/attendance-service/internal/services"
	"github.com/smartpresence/attendance-service/internal/validator"
	"github.com/smartpresence/attendance-service/pkg"
)

// application holds the wired dependencies shared by the commands
type application struct {
	cfg       *config.Config
	logger    *slog.Logger
	db        *gorm.DB
	redis     *redis.Client
	repos     repositories.RepositoryManager
	services  services.ServiceManager
	metrics   *metrics.Metrics
	publisher *events.WatermillPublisher
	channel   *gochannel.GoChannel
}

func bootstrap(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*application, error) {
	app := &application{cfg: cfg, logger: logger}

	db, err := pkg.InitDatabase(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}
	app.db = db

	// Redis is optional; without it caching is off and the unique index guards check-ins
	if cfg.RedisURL != "" {
		app.redis, err = pkg.NewRedisClient(cfg)
		if err != nil {
			logger.Warn("Redis unavailable, continuing without cache", "error", err)
			app.redis = nil
		}
	}

	app.repos = postgres.NewRepositoryManager(postgres.RepositoryConfig{
		DB:          db,
		RedisClient: app.redis,
	})
	if err := app.repos.Initialize(); err != nil {
		app.close(ctx)
		return nil, fmt.Errorf("failed to initialize repositories: %w", err)
	}

	app.publisher, app.channel, err = events.NewPublisher(cfg.Kafka, logger)
	if err != nil {
		app.close(ctx)
		return nil, fmt.Errorf("failed to initialize event publisher: %w", err)
	}

	var sso repositories.SSOProvider
	if cfg.Casdoor.Enabled() {
		sso = casdoor.NewSSOCasdoor(cfg.Casdoor)
		logger.Info("Casdoor single sign-on enabled", "endpoint", cfg.Casdoor.Endpoint)
	}

	app.metrics = metrics.New()
	app.services = services.NewServiceManager(services.Dependencies{
		Repo:        app.repos.GetRepository(),
		Logger:      logger,
		Validator:   validator.New(),
		Cache:       cache.NewCacheManager(app.redis),
		Guard:       cache.NewCheckInGuard(app.redis, cfg.CheckIn.GuardTTL),
		Descriptors: cache.NewDescriptorCache(cfg.Face.CacheTTL),
		Publisher:   app.publisher,
		Metrics:     app.metrics,
		SSO:         sso,
	}, services.NewServiceManagerConfig(cfg))

	if err := app.services.Initialize(ctx); err != nil {
		app.close(ctx)
		return nil, fmt.Errorf("failed to initialize services: %w", err)
	}

	return app, nil
}

// close releases everything bootstrap opened. The service manager closes the publisher.
func (a *application) close(ctx context.Context) {
	var errs []error

	if a.services != nil {
		errs = append(errs, a.services.Shutdown(ctx))
	} else if a.publisher != nil {
		errs = append(errs, a.publisher.Close())
	}

	if a.repos != nil && a.repos.GetRepository() != nil {
		// Closes the database pool and the redis client
		errs = append(errs, a.repos.Shutdown(ctx))
	} else {
		if a.db != nil {
			if sqlDB, err := a.db.DB(); err == nil {
				errs = append(errs, sqlDB.Close())
			}
		}
		if a.redis != nil {
			errs = append(errs, a.redis.Close())
		}
	}

	if err := errors.Join(errs...); err != nil {
		a.logger.Error("Shutdown finished with errors", "error", err)
	}
}
