package models

import (
	"time"

	"gorm.io/gorm"
)

// Location is a room with a circular geofence around its registered coordinates
type Location struct {
	ID           uint    `json:"id" gorm:"primaryKey"`
	Name         string  `json:"name" gorm:"not null;size:100;uniqueIndex"`
	Building     *string `json:"building" gorm:"size:100"`
	Latitude     float64 `json:"latitude" gorm:"not null"`
	Longitude    float64 `json:"longitude" gorm:"not null"`
	RadiusMeters float64 `json:"radius_meters" gorm:"not null;default:50"`

	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `json:"-" gorm:"index"`
}

func (Location) TableName() string {
	return "locations"
}
