package models

import (
	"time"

	"gorm.io/gorm"
)

type UserRole string

const (
	RoleStudent UserRole = "student"
	RoleTeacher UserRole = "teacher"
	RoleAdmin   UserRole = "admin"
)

func (r UserRole) Valid() bool {
	switch r {
	case RoleStudent, RoleTeacher, RoleAdmin:
		return true
	}
	return false
}

type User struct {
	ID          string   `json:"id" gorm:"primaryKey;size:36"`
	Username    string   `json:"username" gorm:"uniqueIndex;not null;size:60"`
	FullName    string   `json:"full_name" gorm:"not null;size:100"`
	Email       string   `json:"email" gorm:"uniqueIndex;not null;size:255"`
	Role        UserRole `json:"role" gorm:"not null;size:20;index"`
	StudentCode *string  `json:"student_code" gorm:"uniqueIndex;size:30"`

	// Credentials
	PasswordHash       string  `json:"-" gorm:"not null"`
	MustChangePassword bool    `json:"must_change_password" gorm:"default:false"`
	ExternalID         *string `json:"-" gorm:"uniqueIndex;size:255"` // SSO subject

	// Status
	IsActive     bool       `json:"is_active" gorm:"default:true;index"`
	FaceEnrolled bool       `json:"face_enrolled" gorm:"default:false"`
	LastLoginAt  *time.Time `json:"last_login_at"`

	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `json:"-" gorm:"index"`
}

func (User) TableName() string {
	return "users"
}

// UserSummary is the compact user shape embedded in other responses
type UserSummary struct {
	ID          string   `json:"id"`
	FullName    string   `json:"full_name"`
	Role        UserRole `json:"role"`
	StudentCode *string  `json:"student_code,omitempty"`
}

func (u *User) Summary() UserSummary {
	return UserSummary{
		ID:          u.ID,
		FullName:    u.FullName,
		Role:        u.Role,
		StudentCode: u.StudentCode,
	}
}
