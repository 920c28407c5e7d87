package services

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/smartpresence/attendance-service/internal/cache"
	"github.com/smartpresence/attendance-service/internal/config"
	"github.com/smartpresence/attendance-service/internal/events"
	"github.com/smartpresence/attendance-service/internal/metrics"
	"github.com/smartpresence/attendance-service/internal/repositories"
	"github.com/smartpresence/attendance-service/internal/validator"
)

// ServiceManagerConfig holds configuration for the service manager
type ServiceManagerConfig struct {
	JWT      config.JWTConfig
	Geo      config.GeoConfig
	Face     config.FaceConfig
	CheckIn  config.CheckInConfig
	Timezone *time.Location

	// SSO login is only wired when enabled
	SSOEnabled bool
}

// NewServiceManagerConfig derives the service settings from the application config
func NewServiceManagerConfig(cfg *config.Config) ServiceManagerConfig {
	return ServiceManagerConfig{
		JWT:        cfg.JWT,
		Geo:        cfg.Geo,
		Face:       cfg.Face,
		CheckIn:    cfg.CheckIn,
		Timezone:   cfg.Location(),
		SSOEnabled: cfg.Casdoor.Enabled(),
	}
}

// Dependencies are the shared collaborators handed to every service
type Dependencies struct {
	Repo        repositories.Repository
	Logger      *slog.Logger
	Validator   *validator.Validator
	Cache       *cache.CacheManager
	Guard       *cache.CheckInGuard
	Descriptors *cache.DescriptorCache
	Publisher   events.EventPublisher
	Metrics     *metrics.Metrics
	SSO         repositories.SSOProvider
	Clock       Clock
}

// serviceManager implements ServiceManager interface
type serviceManager struct {
	deps   Dependencies
	logger *slog.Logger
	config ServiceManagerConfig

	// Service instances
	authService       AuthService
	userService       UserService
	locationService   LocationService
	subjectService    SubjectService
	faceService       FaceService
	gpsService        GPSService
	checkInService    CheckInService
	attendanceService AttendanceService
	absenceService    AbsenceService
	dashboardService  DashboardService

	// Lifecycle management
	initialized bool
	shutdown    bool
	mu          sync.RWMutex
}

// NewServiceManager creates a new service manager with all dependencies
func NewServiceManager(deps Dependencies, config ServiceManagerConfig) ServiceManager {
	if deps.Cache == nil {
		deps.Cache = cache.NewCacheManager(nil)
	}
	if deps.Guard == nil {
		deps.Guard = cache.NewCheckInGuard(nil, config.CheckIn.GuardTTL)
	}
	if deps.Clock == nil {
		deps.Clock = time.Now
	}
	if config.Timezone == nil {
		config.Timezone = time.UTC
	}
	return &serviceManager{
		deps:   deps,
		logger: deps.Logger,
		config: config,
	}
}

// Initialize sets up all services and their dependencies
func (sm *serviceManager) Initialize(ctx context.Context) error {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	if sm.initialized {
		return nil
	}

	sm.logger.Info("Initializing service manager")

	if err := sm.initializeServices(ctx); err != nil {
		return fmt.Errorf("failed to initialize services: %w", err)
	}

	if sm.deps.Descriptors != nil {
		sm.deps.Descriptors.Start()
	}

	sm.initialized = true
	sm.logger.Info("Service manager initialized successfully")

	return nil
}

func (sm *serviceManager) initializeServices(ctx context.Context) error {
	d := sm.deps
	if d.Repo == nil {
		return fmt.Errorf("repository is required")
	}
	if d.Validator == nil {
		return fmt.Errorf("validator is required")
	}

	sso := d.SSO
	if !sm.config.SSOEnabled {
		sso = nil
	}

	sm.authService = NewAuthService(d.Repo, sso, sm.logger, d.Validator, sm.config.JWT, d.Clock)
	sm.logger.Info("Auth service initialized", "sso", sso != nil)

	sm.userService = NewUserService(d.Repo, sm.logger, d.Validator)
	sm.locationService = NewLocationService(d.Repo, sm.logger, d.Validator)
	sm.subjectService = NewSubjectService(d.Repo, sm.logger, d.Validator, sm.config.CheckIn, sm.config.Timezone, d.Clock)
	sm.logger.Info("Directory services initialized")

	sm.faceService = NewFaceService(d.Repo, sm.logger, d.Validator, sm.config.Face, d.Descriptors, d.Publisher)
	sm.gpsService = NewGPSService(d.Repo, sm.logger, d.Validator, sm.config.Geo)
	sm.logger.Info("Face and GPS services initialized",
		"face_threshold", sm.config.Face.MatchThreshold,
		"gps_max_accuracy", sm.config.Geo.MaxAccuracyMeters)

	sm.checkInService = NewCheckInService(d.Repo, sm.logger, d.Validator, CheckInDeps{
		GPS:       sm.gpsService,
		Face:      sm.faceService,
		Guard:     d.Guard,
		Cache:     d.Cache,
		Publisher: d.Publisher,
		Metrics:   d.Metrics,
		Location:  sm.config.Timezone,
		Clock:     d.Clock,
	})
	sm.logger.Info("Check-in service initialized")

	sm.attendanceService = NewAttendanceService(d.Repo, sm.logger, d.Validator, d.Cache, d.Publisher, sm.config.Timezone, d.Clock)
	sm.absenceService = NewAbsenceService(d.Repo, sm.logger, d.Cache, d.Publisher, d.Metrics, sm.config.Timezone)
	sm.dashboardService = NewDashboardService(d.Repo, d.Cache, sm.logger, sm.config.Timezone, d.Clock)
	sm.logger.Info("Attendance services initialized")

	return nil
}

func (sm *serviceManager) ready(name string) {
	if !sm.initialized {
		panic("service manager not initialized")
	}
	if sm.shutdown {
		panic(fmt.Sprintf("%s service requested after shutdown", name))
	}
}

// Service getters
func (sm *serviceManager) Auth() AuthService {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	sm.ready("auth")
	return sm.authService
}

func (sm *serviceManager) User() UserService {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	sm.ready("user")
	return sm.userService
}

func (sm *serviceManager) Location() LocationService {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	sm.ready("location")
	return sm.locationService
}

func (sm *serviceManager) Subject() SubjectService {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	sm.ready("subject")
	return sm.subjectService
}

func (sm *serviceManager) Face() FaceService {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	sm.ready("face")
	return sm.faceService
}

func (sm *serviceManager) GPS() GPSService {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	sm.ready("gps")
	return sm.gpsService
}

func (sm *serviceManager) CheckIn() CheckInService {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	sm.ready("check-in")
	return sm.checkInService
}

func (sm *serviceManager) Attendance() AttendanceService {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	sm.ready("attendance")
	return sm.attendanceService
}

func (sm *serviceManager) Absence() AbsenceService {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	sm.ready("absence")
	return sm.absenceService
}

func (sm *serviceManager) Dashboard() DashboardService {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	sm.ready("dashboard")
	return sm.dashboardService
}

// Health and lifecycle
func (sm *serviceManager) HealthCheck(ctx context.Context) error {
	sm.mu.RLock()
	defer sm.mu.RUnlock()

	if !sm.initialized {
		return fmt.Errorf("service manager not initialized")
	}

	if sm.shutdown {
		return fmt.Errorf("service manager is shut down")
	}

	// Check repository health
	if err := sm.deps.Repo.Ping(ctx); err != nil {
		return fmt.Errorf("repository health check failed: %w", err)
	}

	// Redis is optional; a failing cache only degrades performance
	if sm.deps.Cache.Enabled() {
		if err := sm.deps.Cache.HealthCheck(ctx); err != nil {
			sm.logger.WarnContext(ctx, "Cache unhealthy", "error", err)
		}
	}

	return nil
}

func (sm *serviceManager) Shutdown(ctx context.Context) error {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	if sm.shutdown {
		return nil
	}

	sm.logger.Info("Shutting down service manager")

	if sm.deps.Descriptors != nil {
		sm.deps.Descriptors.Stop()
	}

	if sm.deps.Publisher != nil {
		if err := sm.deps.Publisher.Close(); err != nil {
			sm.logger.Error("Failed to close event publisher", "error", err)
		}
	}

	sm.shutdown = true
	sm.logger.Info("Service manager shut down completed")

	return nil
}

// IsInitialized returns whether the service manager has been initialized
func (sm *serviceManager) IsInitialized() bool {
	sm.mu.RLock()
	defer sm.mu.RUnlock()

	return sm.initialized
}
