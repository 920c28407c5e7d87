package repositories

import (
	"context"
	"time"

	"github.com/smartpresence/attendance-service/internal/models"
)

// ===== SHARED FILTER STRUCTS =====

type UserFilters struct {
	Role      *models.UserRole `json:"role"`
	Query     string           `json:"query"` // matches username, name, email or student code
	IsActive  *bool            `json:"is_active"`
	Limit     int              `json:"limit"`
	Offset    int              `json:"offset"`
	SortBy    string           `json:"sort_by"`
	SortOrder string           `json:"sort_order"`
}

type SubjectFilters struct {
	Query     string  `json:"query"`
	TeacherID *string `json:"teacher_id"`
	DayOfWeek *int    `json:"day_of_week"`
	IsActive  *bool   `json:"is_active"`
	Limit     int     `json:"limit"`
	Offset    int     `json:"offset"`
	SortBy    string  `json:"sort_by"`
	SortOrder string  `json:"sort_order"`
}

type AttendanceFilters struct {
	StudentID *string                  `json:"student_id"`
	SubjectID *uint                    `json:"subject_id"`
	TeacherID *string                  `json:"teacher_id"` // restricts to subjects taught by this user
	Status    *models.AttendanceStatus `json:"status"`
	DateFrom  string                   `json:"date_from"` // inclusive, YYYY-MM-DD
	DateTo    string                   `json:"date_to"`   // inclusive, YYYY-MM-DD
	Limit     int                      `json:"limit"`
	Offset    int                      `json:"offset"`
	SortBy    string                   `json:"sort_by"`    // "session_date", "check_in_at", "status", "created_at"
	SortOrder string                   `json:"sort_order"` // "asc", "desc"
}

// SSOIdentity is the subset of an identity-provider user the service keeps
type SSOIdentity struct {
	ExternalID string          `json:"external_id"`
	Username   string          `json:"username"`
	Email      string          `json:"email"`
	FullName   string          `json:"full_name"`
	Role       models.UserRole `json:"role"`
}

// ===== REPOSITORY INTERFACES =====

type UserRepository interface {
	Create(ctx context.Context, user *models.User) error
	GetByID(ctx context.Context, id string) (*models.User, error)
	LockByID(ctx context.Context, id string) (*models.User, error) // SELECT ... FOR UPDATE; call inside a transaction
	GetByLogin(ctx context.Context, login string) (*models.User, error) // username or email
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	GetByExternalID(ctx context.Context, externalID string) (*models.User, error)
	GetByIDs(ctx context.Context, ids []string) ([]*models.User, error)
	Update(ctx context.Context, user *models.User) error
	UpdateFields(ctx context.Context, id string, fields map[string]interface{}) error
	List(ctx context.Context, filters UserFilters) ([]*models.User, int64, error)

	ExistsByUsername(ctx context.Context, username string) (bool, error)
	ExistsByEmail(ctx context.Context, email string) (bool, error)
	CountByRole(ctx context.Context, role models.UserRole) (int64, error)
	CountFaceEnrolled(ctx context.Context, role models.UserRole) (int64, error)
}

type LocationRepository interface {
	Create(ctx context.Context, location *models.Location) error
	GetByID(ctx context.Context, id uint) (*models.Location, error)
	Update(ctx context.Context, location *models.Location) error
	Delete(ctx context.Context, id uint) error
	List(ctx context.Context) ([]*models.Location, error)
	Count(ctx context.Context) (int64, error)
	CountSubjects(ctx context.Context, locationID uint) (int64, error)
}

type SubjectRepository interface {
	Create(ctx context.Context, subject *models.Subject) error
	GetByID(ctx context.Context, id uint) (*models.Subject, error) // preloads Location and Teacher
	GetByCode(ctx context.Context, code string) (*models.Subject, error)
	Update(ctx context.Context, subject *models.Subject) error
	Delete(ctx context.Context, id uint) error
	List(ctx context.Context, filters SubjectFilters) ([]*models.Subject, int64, error)
	ListByDay(ctx context.Context, dayOfWeek int) ([]*models.Subject, error) // active only
	Count(ctx context.Context) (int64, error)

	// Enrollment
	Enroll(ctx context.Context, subjectID uint, studentIDs []string) (int, error)
	Unenroll(ctx context.Context, subjectID uint, studentID string) error
	IsEnrolled(ctx context.Context, subjectID uint, studentID string) (bool, error)
	ListStudents(ctx context.Context, subjectID uint) ([]*models.User, error)
	ListStudentIDs(ctx context.Context, subjectID uint, enrolledBefore time.Time) ([]string, error) // active students only
	ListByStudent(ctx context.Context, studentID string) ([]*models.Subject, error)
	CountStudents(ctx context.Context, subjectID uint) (int64, error)
}

type FaceRepository interface {
	Create(ctx context.Context, descriptor *models.FaceDescriptor) error
	ListByUser(ctx context.Context, userID string) ([]*models.FaceDescriptor, error)
	ListAll(ctx context.Context) ([]*models.FaceDescriptor, error)
	CountByUser(ctx context.Context, userID string) (int64, error)
	DeleteByUser(ctx context.Context, userID string) (int64, error)
}

type AttendanceRepository interface {
	Create(ctx context.Context, record *models.AttendanceRecord) error
	CreateBatch(ctx context.Context, records []*models.AttendanceRecord) error
	GetByID(ctx context.Context, id uint) (*models.AttendanceRecord, error) // preloads Student and Subject
	GetBySession(ctx context.Context, studentID string, subjectID uint, sessionDate string) (*models.AttendanceRecord, error)
	Update(ctx context.Context, record *models.AttendanceRecord) error
	Delete(ctx context.Context, id uint) error
	List(ctx context.Context, filters AttendanceFilters) ([]*models.AttendanceRecord, int64, error)
	ListStudentIDsWithRecord(ctx context.Context, subjectID uint, sessionDate string) ([]string, error)
}
