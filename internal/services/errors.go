package services

import (
	"errors"
	"fmt"

	"github.com/smartpresence/attendance-service/internal/models"
	"github.com/smartpresence/attendance-service/internal/validator"
)

type ValidationErrors = validator.ValidationErrors

// Common errors
var (
	ErrInvalidCredentials = errors.New("invalid username or password")
	ErrInvalidToken       = errors.New("invalid or expired token")
	ErrUserInactive       = errors.New("user account is inactive")
	ErrSSODisabled        = errors.New("single sign-on is not configured")
	ErrWrongPassword      = errors.New("current password is incorrect")
)

// User errors
var (
	ErrUserNotFound         = errors.New("user not found")
	ErrUsernameTaken        = errors.New("username already exists")
	ErrEmailTaken           = errors.New("email already exists")
	ErrStudentCodeTaken     = errors.New("student code already exists")
	ErrCannotDeactivateSelf = errors.New("cannot deactivate your own account")
)

// Location and subject errors
var (
	ErrLocationNotFound  = errors.New("location not found")
	ErrLocationNameTaken = errors.New("location name already exists")
	ErrLocationInUse     = errors.New("location is used by subjects")
	ErrSubjectNotFound   = errors.New("subject not found")
	ErrSubjectCodeTaken  = errors.New("subject code already exists")
	ErrInvalidTeacher    = errors.New("teacher_id does not reference a teacher")
	ErrInvalidStudents   = errors.New("some student_ids do not reference students")
)

// Face errors
var (
	ErrTooManyDescriptors = errors.New("face descriptor limit reached")
	ErrFaceNotEnrolled    = errors.New("no face descriptors registered")
	ErrFaceMismatch       = errors.New("face does not match")
)

// Attendance and check-in errors
var (
	ErrAttendanceNotFound = errors.New("attendance record not found")
	ErrAttendanceExists   = errors.New("attendance already recorded for this session")
	ErrAlreadyCheckedIn   = errors.New("already checked in for this session")
	ErrSubjectInactive    = errors.New("subject is not active")
	ErrNotScheduledToday  = errors.New("subject has no session today")
	ErrOutsideTimeWindow  = errors.New("check-in window is closed")
	ErrNotEnrolled        = errors.New("student is not enrolled in this subject")
	ErrOutsideGeofence    = errors.New("location is outside the classroom geofence")
	ErrTooManySamples     = errors.New("too many GPS samples")
)

// Check-in rejection codes returned to clients
const (
	CodeUserInactive      = "USER_INACTIVE"
	CodeOutsideTimeWindow = "OUTSIDE_TIME_WINDOW"
	CodeNotScheduledToday = "NOT_SCHEDULED_TODAY"
	CodeSubjectInactive   = "SUBJECT_INACTIVE"
	CodeNotEnrolled       = "NOT_ENROLLED"
	CodeAlreadyCheckedIn  = "ALREADY_CHECKED_IN"
	CodeOutsideGeofence   = "OUTSIDE_GEOFENCE"
	CodeFaceNotEnrolled   = "FACE_NOT_ENROLLED"
	CodeFaceMismatch      = "FACE_MISMATCH"
)

var rejectionCodes = []struct {
	err  error
	code string
}{
	{ErrUserInactive, CodeUserInactive},
	{ErrOutsideTimeWindow, CodeOutsideTimeWindow},
	{ErrNotScheduledToday, CodeNotScheduledToday},
	{ErrSubjectInactive, CodeSubjectInactive},
	{ErrNotEnrolled, CodeNotEnrolled},
	{ErrAlreadyCheckedIn, CodeAlreadyCheckedIn},
	{ErrOutsideGeofence, CodeOutsideGeofence},
	{ErrFaceNotEnrolled, CodeFaceNotEnrolled},
	{ErrFaceMismatch, CodeFaceMismatch},
}

// RejectionCode returns the client code for a check-in rejection, or "" for other errors
func RejectionCode(err error) string {
	for _, rc := range rejectionCodes {
		if errors.Is(err, rc.err) {
			return rc.code
		}
	}
	return ""
}

// CheckInError is a rejected check-in together with the evidence gathered before the failing step
type CheckInError struct {
	Err      error
	Location *models.LocationValidation
	Face     *models.FaceMatchResult
}

func (e *CheckInError) Error() string {
	return e.Err.Error()
}

func (e *CheckInError) Unwrap() error {
	return e.Err
}

func (e *CheckInError) Code() string {
	return RejectionCode(e.Err)
}

// PermissionError represents a permission denied error
type PermissionError struct {
	UserID     string `json:"user_id"`
	ResourceID uint   `json:"resource_id"`
	Resource   string `json:"resource"`
	Action     string `json:"action"`
	Reason     string `json:"reason"`
}

func (e *PermissionError) Error() string {
	return fmt.Sprintf("permission denied: user %s cannot %s %s %d: %s", e.UserID, e.Action, e.Resource, e.ResourceID, e.Reason)
}

func NewPermissionError(userID string, resourceID uint, resource, action, reason string) *PermissionError {
	return &PermissionError{
		UserID:     userID,
		ResourceID: resourceID,
		Resource:   resource,
		Action:     action,
		Reason:     reason,
	}
}

// BusinessRuleError represents a business rule violation
type BusinessRuleError struct {
	Rule    string                 `json:"rule"`
	Message string                 `json:"message"`
	Context map[string]interface{} `json:"context,omitempty"`
}

func (e *BusinessRuleError) Error() string {
	return fmt.Sprintf("business rule %s violated: %s", e.Rule, e.Message)
}

func NewBusinessRuleError(rule, message string, context map[string]interface{}) *BusinessRuleError {
	return &BusinessRuleError{
		Rule:    rule,
		Message: message,
		Context: context,
	}
}

// IsNotFound reports whether err is one of the service's not-found errors
func IsNotFound(err error) bool {
	return errors.Is(err, ErrUserNotFound) ||
		errors.Is(err, ErrLocationNotFound) ||
		errors.Is(err, ErrSubjectNotFound) ||
		errors.Is(err, ErrAttendanceNotFound)
}
