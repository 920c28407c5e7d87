package models

import (
	"fmt"
	"time"

	"gorm.io/gorm"
)

// Subject is a recurring weekly class session held in one location
type Subject struct {
	ID         uint    `json:"id" gorm:"primaryKey"`
	Code       string  `json:"code" gorm:"uniqueIndex;not null;size:30"`
	Name       string  `json:"name" gorm:"not null;size:200"`
	TeacherID  *string `json:"teacher_id" gorm:"size:36;index"`
	LocationID uint    `json:"location_id" gorm:"not null;index"`

	// Schedule
	DayOfWeek          int    `json:"day_of_week" gorm:"not null"`       // 0 = Sunday
	StartTime          string `json:"start_time" gorm:"not null;size:5"` // HH:MM
	EndTime            string `json:"end_time" gorm:"not null;size:5"`
	CheckInOpenMinutes int    `json:"checkin_open_minutes" gorm:"not null;default:15"`
	LateAfterMinutes   int    `json:"late_after_minutes" gorm:"not null;default:15"`

	IsActive bool `json:"is_active" gorm:"default:true;index"`

	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `json:"-" gorm:"index"`

	// Relations
	Location Location `json:"location" gorm:"foreignKey:LocationID"`
	Teacher  *User    `json:"teacher,omitempty" gorm:"foreignKey:TeacherID"`

	// Computed fields (not stored)
	StudentCount int `json:"student_count" gorm:"-"`
}

func (Subject) TableName() string {
	return "subjects"
}

// Enrollment links a student to a subject
type Enrollment struct {
	ID        uint      `json:"id" gorm:"primaryKey"`
	SubjectID uint      `json:"subject_id" gorm:"not null;uniqueIndex:idx_enrollment_subject_student"`
	StudentID string    `json:"student_id" gorm:"not null;size:36;uniqueIndex:idx_enrollment_subject_student;index"`
	CreatedAt time.Time `json:"created_at"`

	Subject Subject `json:"-" gorm:"foreignKey:SubjectID"`
	Student User    `json:"student" gorm:"foreignKey:StudentID"`
}

func (Enrollment) TableName() string {
	return "enrollments"
}

// Session is a single occurrence of a subject on a given date
type Session struct {
	Subject   *Subject  `json:"subject"`
	Date      string    `json:"date"` // YYYY-MM-DD
	StartsAt  time.Time `json:"starts_at"`
	EndsAt    time.Time `json:"ends_at"`
	OpensAt   time.Time `json:"opens_at"`
	LateAfter time.Time `json:"late_after"`
}

const DateLayout = "2006-01-02"
const ClockLayout = "15:04"

// SessionOn builds the session of s on the calendar day of day, interpreted in day's location.
// It returns false when the subject is not scheduled on that weekday.
func (s *Subject) SessionOn(day time.Time) (*Session, bool, error) {
	if int(day.Weekday()) != s.DayOfWeek {
		return nil, false, nil
	}

	start, err := clockOn(day, s.StartTime)
	if err != nil {
		return nil, false, fmt.Errorf("invalid start time %q: %w", s.StartTime, err)
	}
	end, err := clockOn(day, s.EndTime)
	if err != nil {
		return nil, false, fmt.Errorf("invalid end time %q: %w", s.EndTime, err)
	}

	return &Session{
		Subject:   s,
		Date:      day.Format(DateLayout),
		StartsAt:  start,
		EndsAt:    end,
		OpensAt:   start.Add(-time.Duration(s.CheckInOpenMinutes) * time.Minute),
		LateAfter: start.Add(time.Duration(s.LateAfterMinutes) * time.Minute),
	}, true, nil
}

// IsOpen reports whether check-in is accepted at t
func (s *Session) IsOpen(t time.Time) bool {
	return !t.Before(s.OpensAt) && !t.After(s.EndsAt)
}

// StatusAt returns the attendance status for a check-in at t
func (s *Session) StatusAt(t time.Time) AttendanceStatus {
	if t.After(s.LateAfter) {
		return StatusLate
	}
	return StatusPresent
}

func clockOn(day time.Time, clock string) (time.Time, error) {
	t, err := time.Parse(ClockLayout, clock)
	if err != nil {
		return time.Time{}, err
	}
	y, m, d := day.Date()
	return time.Date(y, m, d, t.Hour(), t.Minute(), 0, 0, day.Location()), nil
}
