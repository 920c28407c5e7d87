package models

import (
	"time"
)

// ===== AUTH =====

type LoginRequest struct {
	Username string `json:"username" validate:"required,min=3,max=255"` // username or email
	Password string `json:"password" validate:"required,min=1,max=128"`
}

type SSOLoginRequest struct {
	Token string `json:"token" validate:"required"`
}

type LoginResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
	User      *User     `json:"user"`
}

type ChangePasswordRequest struct {
	CurrentPassword string `json:"current_password" validate:"required"`
	NewPassword     string `json:"new_password" validate:"required,min=8,max=128"`
}

// ===== USERS =====

type UserCreateRequest struct {
	Username    string   `json:"username" validate:"required,min=3,max=60,alphanum"`
	FullName    string   `json:"full_name" validate:"required,min=1,max=100"`
	Email       string   `json:"email" validate:"required,email,max=255"`
	Role        UserRole `json:"role" validate:"required,user_role"`
	StudentCode *string  `json:"student_code" validate:"omitempty,max=30"`
	Password    string   `json:"password" validate:"required,min=8,max=128"`
}

type UserUpdateRequest struct {
	FullName    *string   `json:"full_name" validate:"omitempty,min=1,max=100"`
	Email       *string   `json:"email" validate:"omitempty,email,max=255"`
	Role        *UserRole `json:"role" validate:"omitempty,user_role"`
	StudentCode *string   `json:"student_code" validate:"omitempty,max=30"`
	IsActive    *bool     `json:"is_active"`
}

type ResetPasswordRequest struct {
	NewPassword string `json:"new_password" validate:"required,min=8,max=128"`
}

type ListUsersParams struct {
	Page     int      `json:"page" validate:"min=0"`
	Size     int      `json:"size" validate:"min=1,max=100"`
	Role     UserRole `json:"role" validate:"omitempty,user_role"`
	Search   string   `json:"search"`
	IsActive *bool    `json:"is_active"`
	SortBy   string   `json:"sort_by"`
	SortDir  string   `json:"sort_dir" validate:"omitempty,oneof=asc desc"`
}

// ===== LOCATIONS =====

type LocationCreateRequest struct {
	Name         string  `json:"name" validate:"required,min=1,max=100"`
	Building     *string `json:"building" validate:"omitempty,max=100"`
	Latitude     float64 `json:"latitude" validate:"latitude"`
	Longitude    float64 `json:"longitude" validate:"longitude"`
	RadiusMeters float64 `json:"radius_meters" validate:"required,min=5,max=1000"`
}

type LocationUpdateRequest struct {
	Name         *string  `json:"name" validate:"omitempty,min=1,max=100"`
	Building     *string  `json:"building" validate:"omitempty,max=100"`
	Latitude     *float64 `json:"latitude" validate:"omitempty,latitude"`
	Longitude    *float64 `json:"longitude" validate:"omitempty,longitude"`
	RadiusMeters *float64 `json:"radius_meters" validate:"omitempty,min=5,max=1000"`
}

// ===== SUBJECTS =====

type SubjectCreateRequest struct {
	Code               string  `json:"code" validate:"required,min=1,max=30"`
	Name               string  `json:"name" validate:"required,min=1,max=200"`
	TeacherID          *string `json:"teacher_id" validate:"omitempty,uuid"`
	LocationID         uint    `json:"location_id" validate:"required"`
	DayOfWeek          int     `json:"day_of_week" validate:"weekday"`
	StartTime          string  `json:"start_time" validate:"required,clock_time"`
	EndTime            string  `json:"end_time" validate:"required,clock_time"`
	CheckInOpenMinutes *int    `json:"checkin_open_minutes" validate:"omitempty,min=0,max=120"`
	LateAfterMinutes   *int    `json:"late_after_minutes" validate:"omitempty,min=0,max=240"`
}

type SubjectUpdateRequest struct {
	Name               *string `json:"name" validate:"omitempty,min=1,max=200"`
	TeacherID          *string `json:"teacher_id" validate:"omitempty,uuid"`
	LocationID         *uint   `json:"location_id"`
	DayOfWeek          *int    `json:"day_of_week" validate:"omitempty,weekday"`
	StartTime          *string `json:"start_time" validate:"omitempty,clock_time"`
	EndTime            *string `json:"end_time" validate:"omitempty,clock_time"`
	CheckInOpenMinutes *int    `json:"checkin_open_minutes" validate:"omitempty,min=0,max=120"`
	LateAfterMinutes   *int    `json:"late_after_minutes" validate:"omitempty,min=0,max=240"`
	IsActive           *bool   `json:"is_active"`
}

type EnrollRequest struct {
	StudentIDs []string `json:"student_ids" validate:"required,min=1,max=500,dive,uuid"`
}

type ListSubjectsParams struct {
	Page      int     `json:"page" validate:"min=0"`
	Size      int     `json:"size" validate:"min=1,max=100"`
	Search    string  `json:"search"`
	TeacherID *string `json:"teacher_id"`
	DayOfWeek *int    `json:"day_of_week" validate:"omitempty,weekday"`
	IsActive  *bool   `json:"is_active"`
	SortBy    string  `json:"sort_by"`
	SortDir   string  `json:"sort_dir" validate:"omitempty,oneof=asc desc"`
}

// TodaySession is a student's view of a subject scheduled today
type TodaySession struct {
	Session
	CheckInOpen bool              `json:"check_in_open"`
	CheckedIn   bool              `json:"checked_in"`
	Status      *AttendanceStatus `json:"status,omitempty"`
}

// ===== GPS =====

type GPSSample struct {
	Latitude  float64    `json:"latitude" validate:"latitude"`
	Longitude float64    `json:"longitude" validate:"longitude"`
	Accuracy  float64    `json:"accuracy" validate:"min=0"`
	Timestamp *time.Time `json:"timestamp"`
}

type ValidateLocationRequest struct {
	SubjectID  *uint       `json:"subject_id" validate:"required_without=LocationID"`
	LocationID *uint       `json:"location_id" validate:"required_without=SubjectID"`
	Samples    []GPSSample `json:"samples" validate:"required,min=1,dive"`
}

type LocationValidation struct {
	LocationID      uint    `json:"location_id"`
	LocationName    string  `json:"location_name"`
	Latitude        float64 `json:"latitude"`
	Longitude       float64 `json:"longitude"`
	Accuracy        float64 `json:"accuracy"`
	Spread          float64 `json:"spread"`
	SamplesReceived int     `json:"samples_received"`
	SamplesAccepted int     `json:"samples_accepted"`
	DistanceMeters  float64 `json:"distance_meters"`
	RadiusMeters    float64 `json:"radius_meters"`
	WithinGeofence  bool    `json:"within_geofence"`
}

// ===== FACE =====

type FaceRegisterRequest struct {
	UserID     *string   `json:"user_id" validate:"omitempty,uuid"` // admin only
	Descriptor []float64 `json:"descriptor" validate:"required,face_descriptor"`
	Label      *string   `json:"label" validate:"omitempty,max=100"`
}

type FaceRecognizeRequest struct {
	Descriptor []float64 `json:"descriptor" validate:"required,face_descriptor"`
}

type FaceMatchResult struct {
	UserID     string  `json:"user_id,omitempty"`
	Matched    bool    `json:"matched"`
	Distance   float64 `json:"distance"`
	Confidence float64 `json:"confidence"`
	Threshold  float64 `json:"threshold"`
}

type FaceRegisterResponse struct {
	DescriptorID    uint `json:"descriptor_id"`
	DescriptorCount int  `json:"descriptor_count"`
}

// ===== CHECK-IN =====

type CheckInRequest struct {
	SubjectID  uint        `json:"subject_id" validate:"required"`
	Samples    []GPSSample `json:"samples" validate:"required,min=1,dive"`
	Descriptor []float64   `json:"descriptor" validate:"required,face_descriptor"`
}

type CheckInResponse struct {
	Record   *AttendanceRecord   `json:"record"`
	Location *LocationValidation `json:"location"`
	Face     *FaceMatchResult    `json:"face"`
}

type CheckInStatus struct {
	SubjectID   uint              `json:"subject_id"`
	SessionDate string            `json:"session_date"`
	Scheduled   bool              `json:"scheduled"`
	WindowOpen  bool              `json:"window_open"`
	OpensAt     *time.Time        `json:"opens_at,omitempty"`
	ClosesAt    *time.Time        `json:"closes_at,omitempty"`
	LateAfter   *time.Time        `json:"late_after,omitempty"`
	CheckedIn   bool              `json:"checked_in"`
	Record      *AttendanceRecord `json:"record,omitempty"`
}

// ===== ATTENDANCE =====

type AttendanceCreateRequest struct {
	StudentID   string           `json:"student_id" validate:"required,uuid"`
	SubjectID   uint             `json:"subject_id" validate:"required"`
	SessionDate string           `json:"session_date" validate:"required,datetime=2006-01-02"`
	Status      AttendanceStatus `json:"status" validate:"required,attendance_status"`
	Note        *string          `json:"note" validate:"omitempty,max=1000"`
}

type AttendanceUpdateRequest struct {
	Status *AttendanceStatus `json:"status" validate:"omitempty,attendance_status"`
	Note   *string           `json:"note" validate:"omitempty,max=1000"`
}

type ListAttendanceParams struct {
	Page      int              `json:"page" validate:"min=0"`
	Size      int              `json:"size" validate:"min=1,max=100"`
	StudentID *string          `json:"student_id"`
	SubjectID *uint            `json:"subject_id"`
	Status    AttendanceStatus `json:"status" validate:"omitempty,attendance_status"`
	DateFrom  string           `json:"date_from" validate:"omitempty,datetime=2006-01-02"`
	DateTo    string           `json:"date_to" validate:"omitempty,datetime=2006-01-02"`
	SortBy    string           `json:"sort_by"`
	SortDir   string           `json:"sort_dir" validate:"omitempty,oneof=asc desc"`
}

type PaginatedResponse struct {
	Content          interface{} `json:"content"`
	TotalElements    int64       `json:"total_elements"`
	TotalPages       int         `json:"total_pages"`
	Size             int         `json:"size"`
	Page             int         `json:"page"`
	First            bool        `json:"first"`
	Last             bool        `json:"last"`
	NumberOfElements int         `json:"number_of_elements"`
	Empty            bool        `json:"empty"`
}

// NewPaginatedResponse builds the page envelope; page is zero based
func NewPaginatedResponse(content interface{}, count int, total int64, page, size int) *PaginatedResponse {
	totalPages := 0
	if size > 0 {
		totalPages = int((total + int64(size) - 1) / int64(size))
	}
	return &PaginatedResponse{
		Content:          content,
		TotalElements:    total,
		TotalPages:       totalPages,
		Size:             size,
		Page:             page,
		First:            page == 0,
		Last:             page >= totalPages-1,
		NumberOfElements: count,
		Empty:            count == 0,
	}
}

// ===== STATISTICS & DASHBOARD =====

type StatusCounts struct {
	Present int64 `json:"present"`
	Late    int64 `json:"late"`
	Absent  int64 `json:"absent"`
	Excused int64 `json:"excused"`
}

func (c StatusCounts) Total() int64 {
	return c.Present + c.Late + c.Absent + c.Excused
}

// Rate is the attended share (present + late) in percent
func (c StatusCounts) Rate() float64 {
	total := c.Total()
	if total == 0 {
		return 0
	}
	return float64(c.Present+c.Late) / float64(total) * 100
}

type StudentAttendanceSummary struct {
	StudentID string       `json:"student_id"`
	Counts    StatusCounts `json:"counts"`
	Rate      float64      `json:"rate"`
}

type DashboardStats struct {
	TotalStudents   int64        `json:"total_students"`
	TotalTeachers   int64        `json:"total_teachers"`
	TotalSubjects   int64        `json:"total_subjects"`
	TotalLocations  int64        `json:"total_locations"`
	SessionsToday   int          `json:"sessions_today"`
	RecordsToday    int64        `json:"records_today"`
	Today           StatusCounts `json:"today"`
	Period          StatusCounts `json:"period"`
	PeriodDays      int          `json:"period_days"`
	AttendanceRate  float64      `json:"attendance_rate"`
	DailyBreakdown  []DailyStats `json:"daily_breakdown"`
	FaceEnrolledPct float64      `json:"face_enrolled_pct"`
}

type DailyStats struct {
	Date   string       `json:"date"`
	Counts StatusCounts `json:"counts"`
	Rate   float64      `json:"rate"`
}

type SubjectAttendanceStats struct {
	SubjectID   uint         `json:"subject_id"`
	SubjectCode string       `json:"subject_code"`
	SubjectName string       `json:"subject_name"`
	Enrolled    int64        `json:"enrolled"`
	Counts      StatusCounts `json:"counts"`
	Rate        float64      `json:"rate"`
}

type RecentCheckIn struct {
	RecordID    uint             `json:"record_id"`
	StudentID   string           `json:"student_id"`
	StudentName string           `json:"student_name"`
	SubjectID   uint             `json:"subject_id"`
	SubjectCode string           `json:"subject_code"`
	Status      AttendanceStatus `json:"status"`
	CheckInAt   time.Time        `json:"check_in_at"`
}

// ===== ERROR RESPONSES =====

type ErrorResponse struct {
	Message string      `json:"message"`
	Code    string      `json:"code,omitempty"`
	Details interface{} `json:"details,omitempty"`
}

type SuccessResponse struct {
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}
