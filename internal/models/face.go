package models

import (
	"encoding/json"
	"fmt"
	"time"

	"gorm.io/datatypes"
)

// DescriptorLength is the embedding size produced by the browser face model
const DescriptorLength = 128

// FaceDescriptor is one enrolled face embedding of a user
type FaceDescriptor struct {
	ID        uint           `json:"id" gorm:"primaryKey"`
	UserID    string         `json:"user_id" gorm:"not null;size:36;index"`
	Vector    datatypes.JSON `json:"-" gorm:"type:jsonb;not null"`
	Label     *string        `json:"label" gorm:"size:100"`
	CreatedAt time.Time      `json:"created_at"`
}

func (FaceDescriptor) TableName() string {
	return "face_descriptors"
}

// Values decodes the stored vector
func (f *FaceDescriptor) Values() ([]float64, error) {
	var v []float64
	if err := json.Unmarshal(f.Vector, &v); err != nil {
		return nil, fmt.Errorf("decode descriptor %d: %w", f.ID, err)
	}
	return v, nil
}

// NewFaceDescriptor encodes values into a storable descriptor
func NewFaceDescriptor(userID string, values []float64, label *string) (*FaceDescriptor, error) {
	raw, err := json.Marshal(values)
	if err != nil {
		return nil, fmt.Errorf("encode descriptor: %w", err)
	}
	return &FaceDescriptor{
		UserID: userID,
		Vector: datatypes.JSON(raw),
		Label:  label,
	}, nil
}
