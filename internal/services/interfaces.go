package services

import (
	"context"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/smartpresence/attendance-service/internal/models"
)

// ===== SHARED TYPES =====

// Actor is the authenticated caller of a service operation
type Actor struct {
	ID   string          `json:"id"`
	Role models.UserRole `json:"role"`
}

func (a Actor) IsAdmin() bool   { return a.Role == models.RoleAdmin }
func (a Actor) IsTeacher() bool { return a.Role == models.RoleTeacher }
func (a Actor) IsStudent() bool { return a.Role == models.RoleStudent }

// TokenClaims are the claims carried by access tokens; Subject holds the user ID
type TokenClaims struct {
	Username string          `json:"username"`
	Email    string          `json:"email"`
	Role     models.UserRole `json:"role"`
	jwt.RegisteredClaims
}

// Clock returns the current time; services take one so tests can pin "now"
type Clock func() time.Time

// ===== SERVICE INTERFACES =====

type AuthService interface {
	Login(ctx context.Context, req *models.LoginRequest) (*models.LoginResponse, error)
	LoginWithSSO(ctx context.Context, req *models.SSOLoginRequest) (*models.LoginResponse, error)
	ChangePassword(ctx context.Context, userID string, req *models.ChangePasswordRequest) error
	ParseToken(token string) (*TokenClaims, error)
	IssueToken(user *models.User) (string, time.Time, error)
	Me(ctx context.Context, userID string) (*models.User, error)
}

type UserService interface {
	Create(ctx context.Context, req *models.UserCreateRequest) (*models.User, error)
	GetByID(ctx context.Context, id string) (*models.User, error)
	Update(ctx context.Context, id string, req *models.UserUpdateRequest) (*models.User, error)
	Deactivate(ctx context.Context, actor Actor, id string) error
	ResetPassword(ctx context.Context, id string, req *models.ResetPasswordRequest) error
	List(ctx context.Context, params *models.ListUsersParams) (*models.PaginatedResponse, error)
}

type LocationService interface {
	Create(ctx context.Context, req *models.LocationCreateRequest) (*models.Location, error)
	GetByID(ctx context.Context, id uint) (*models.Location, error)
	Update(ctx context.Context, id uint, req *models.LocationUpdateRequest) (*models.Location, error)
	Delete(ctx context.Context, id uint) error
	List(ctx context.Context) ([]*models.Location, error)
}

type SubjectService interface {
	Create(ctx context.Context, req *models.SubjectCreateRequest) (*models.Subject, error)
	GetByID(ctx context.Context, id uint) (*models.Subject, error)
	Update(ctx context.Context, id uint, req *models.SubjectUpdateRequest) (*models.Subject, error)
	Delete(ctx context.Context, id uint) error
	List(ctx context.Context, params *models.ListSubjectsParams) (*models.PaginatedResponse, error)

	// Enrollment
	Enroll(ctx context.Context, id uint, req *models.EnrollRequest) (int, error)
	Unenroll(ctx context.Context, id uint, studentID string) error
	ListStudents(ctx context.Context, id uint) ([]*models.User, error)
	ListForStudent(ctx context.Context, studentID string) ([]*models.Subject, error)
	TodaySessions(ctx context.Context, studentID string) ([]*models.TodaySession, error)
}

type FaceService interface {
	Register(ctx context.Context, actor Actor, req *models.FaceRegisterRequest) (*models.FaceRegisterResponse, error)
	Recognize(ctx context.Context, userID string, descriptor []float64) (*models.FaceMatchResult, error)
	Identify(ctx context.Context, descriptor []float64) (*models.FaceMatchResult, error)
	Delete(ctx context.Context, userID string) (int64, error)
}

type GPSService interface {
	ValidateLocation(ctx context.Context, req *models.ValidateLocationRequest) (*models.LocationValidation, error)
	Evaluate(location *models.Location, samples []models.GPSSample) (*models.LocationValidation, error)
}

type CheckInService interface {
	CheckIn(ctx context.Context, studentID string, req *models.CheckInRequest) (*models.CheckInResponse, error)
	Status(ctx context.Context, studentID string, subjectID uint) (*models.CheckInStatus, error)
}

type AttendanceService interface {
	List(ctx context.Context, actor Actor, params *models.ListAttendanceParams) (*models.PaginatedResponse, error)
	GetByID(ctx context.Context, actor Actor, id uint) (*models.AttendanceRecord, error)
	Create(ctx context.Context, actor Actor, req *models.AttendanceCreateRequest) (*models.AttendanceRecord, error)
	Update(ctx context.Context, actor Actor, id uint, req *models.AttendanceUpdateRequest) (*models.AttendanceRecord, error)
	Delete(ctx context.Context, actor Actor, id uint) error

	// Student self-service
	History(ctx context.Context, studentID string, params *models.ListAttendanceParams) (*models.PaginatedResponse, error)
	Summary(ctx context.Context, studentID string, from, to string) (*models.StudentAttendanceSummary, error)

	// Export writes the filtered records as an XLSX workbook
	Export(ctx context.Context, actor Actor, params *models.ListAttendanceParams) ([]byte, error)
}

// AbsenceService finalises sessions that have ended
type AbsenceService interface {
	MarkAbsences(ctx context.Context, now time.Time) (int, error)
}

type DashboardService interface {
	GetStats(ctx context.Context, days int) (*models.DashboardStats, error)
	GetSubjectStats(ctx context.Context, days, limit int) ([]models.SubjectAttendanceStats, error)
	GetRecentCheckIns(ctx context.Context, limit int) ([]models.RecentCheckIn, error)
}

// ServiceManager interface for managing all services
type ServiceManager interface {
	// Core service getters
	Auth() AuthService
	User() UserService
	Location() LocationService
	Subject() SubjectService
	Face() FaceService
	GPS() GPSService
	CheckIn() CheckInService
	Attendance() AttendanceService
	Absence() AbsenceService
	Dashboard() DashboardService

	// Health and lifecycle
	Initialize(ctx context.Context) error
	IsInitialized() bool
	HealthCheck(ctx context.Context) error
	Shutdown(ctx context.Context) error
}
