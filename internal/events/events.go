package events

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/smartpresence/attendance-service/internal/models"
)

const (
	eventSource  = "attendance-service"
	eventVersion = "1.0"
)

type EventType string

const (
	EventCheckedIn         EventType = "attendance.checked_in"
	EventCheckInRejected   EventType = "attendance.check_in_rejected"
	EventAttendanceCreated EventType = "attendance.created"
	EventAttendanceUpdated EventType = "attendance.updated"
	EventAttendanceDeleted EventType = "attendance.deleted"
	EventAbsentMarked      EventType = "attendance.absent_marked"
	EventFaceRegistered    EventType = "face.registered"
	EventFaceDeleted       EventType = "face.deleted"
)

// Event is the envelope published for every domain change
type Event struct {
	ID        string      `json:"id"`
	Type      EventType   `json:"type"`
	Source    string      `json:"source"`
	Version   string      `json:"version"`
	Timestamp time.Time   `json:"timestamp"`
	Data      interface{} `json:"data"`
}

func NewEvent(eventType EventType, data interface{}) *Event {
	return &Event{
		ID:        uuid.NewString(),
		Type:      eventType,
		Source:    eventSource,
		Version:   eventVersion,
		Timestamp: time.Now().UTC(),
		Data:      data,
	}
}

type CheckedInData struct {
	RecordID       uint                    `json:"record_id"`
	StudentID      string                  `json:"student_id"`
	SubjectID      uint                    `json:"subject_id"`
	SessionDate    string                  `json:"session_date"`
	Status         models.AttendanceStatus `json:"status"`
	DistanceMeters float64                 `json:"distance_meters"`
	FaceDistance   float64                 `json:"face_distance"`
}

type CheckInRejectedData struct {
	StudentID string `json:"student_id"`
	SubjectID uint   `json:"subject_id"`
	Reason    string `json:"reason"`
}

type AttendanceChangedData struct {
	RecordID    uint                    `json:"record_id"`
	StudentID   string                  `json:"student_id"`
	SubjectID   uint                    `json:"subject_id"`
	SessionDate string                  `json:"session_date"`
	OldStatus   models.AttendanceStatus `json:"old_status,omitempty"`
	NewStatus   models.AttendanceStatus `json:"new_status,omitempty"`
	ChangedBy   string                  `json:"changed_by"`
}

type AbsentMarkedData struct {
	SubjectID   uint     `json:"subject_id"`
	SessionDate string   `json:"session_date"`
	StudentIDs  []string `json:"student_ids"`
}

type FaceChangedData struct {
	UserID          string `json:"user_id"`
	DescriptorCount int    `json:"descriptor_count"`
}

// EventPublisher publishes domain events to the message bus
type EventPublisher interface {
	Publish(ctx context.Context, event *Event) error
	Close() error
}
