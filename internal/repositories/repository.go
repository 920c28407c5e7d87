package repositories

import "context"

// Repository aggregates every repository of the attendance service
type Repository interface {
	// People and places
	User() UserRepository
	Location() LocationRepository

	// Schedule and enrollment
	Subject() SubjectRepository

	// Biometrics
	Face() FaceRepository

	// Attendance domain
	Attendance() AttendanceRepository

	// Dashboard domain
	Dashboard() DashboardRepository

	// Transaction support; the Repository passed to fn is bound to the transaction
	WithTransaction(ctx context.Context, fn func(Repository) error) error

	// Health check
	Ping(ctx context.Context) error

	// Close connections
	Close() error
}

// RepositoryManager interface for managing repository lifecycle
type RepositoryManager interface {
	// Initialize repositories with database connections
	Initialize() error

	// Get repository instance
	GetRepository() Repository

	// Health check for all repositories
	HealthCheck(ctx context.Context) error

	// Graceful shutdown
	Shutdown(ctx context.Context) error
}

// SSOProvider verifies tokens issued by the external identity provider
type SSOProvider interface {
	VerifyToken(ctx context.Context, token string) (*SSOIdentity, error)
}
