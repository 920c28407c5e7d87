package models

import (
	"time"
)

type AttendanceStatus string

const (
	StatusPresent AttendanceStatus = "present"
	StatusLate    AttendanceStatus = "late"
	StatusAbsent  AttendanceStatus = "absent"
	StatusExcused AttendanceStatus = "excused"
)

func (s AttendanceStatus) Valid() bool {
	switch s {
	case StatusPresent, StatusLate, StatusAbsent, StatusExcused:
		return true
	}
	return false
}

// Attended reports whether the status counts as attendance in rate calculations
func (s AttendanceStatus) Attended() bool {
	return s == StatusPresent || s == StatusLate
}

type CheckInMethod string

const (
	MethodUnified CheckInMethod = "unified"
	MethodManual  CheckInMethod = "manual"
	MethodAuto    CheckInMethod = "auto"
)

type AttendanceRecord struct {
	ID          uint             `json:"id" gorm:"primaryKey"`
	StudentID   string           `json:"student_id" gorm:"not null;size:36;uniqueIndex:idx_attendance_student_subject_date;index"`
	SubjectID   uint             `json:"subject_id" gorm:"not null;uniqueIndex:idx_attendance_student_subject_date;index"`
	SessionDate string           `json:"session_date" gorm:"not null;size:10;uniqueIndex:idx_attendance_student_subject_date;index"`
	Status      AttendanceStatus `json:"status" gorm:"not null;size:20;index"`
	Method      CheckInMethod    `json:"method" gorm:"not null;size:20;default:unified"`

	// Evidence
	CheckInAt      *time.Time `json:"check_in_at"`
	Latitude       *float64   `json:"latitude"`
	Longitude      *float64   `json:"longitude"`
	AccuracyMeters *float64   `json:"accuracy_meters"`
	DistanceMeters *float64   `json:"distance_meters"`
	FaceDistance   *float64   `json:"face_distance"`

	Note     *string `json:"note" gorm:"type:text"`
	EditedBy *string `json:"edited_by" gorm:"size:36"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	// Relations
	Student User    `json:"student" gorm:"foreignKey:StudentID"`
	Subject Subject `json:"subject" gorm:"foreignKey:SubjectID"`
}

func (AttendanceRecord) TableName() string {
	return "attendance_records"
}
