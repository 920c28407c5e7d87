package events

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/smartpresence/attendance-service/internal/config"
	"github.com/smartpresence/attendance-service/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestNewEvent(t *testing.T) {
	e := NewEvent(EventCheckedIn, CheckedInData{RecordID: 1})

	assert.NotEmpty(t, e.ID)
	assert.Equal(t, EventCheckedIn, e.Type)
	assert.Equal(t, "attendance-service", e.Source)
	assert.Equal(t, "1.0", e.Version)
	assert.False(t, e.Timestamp.IsZero())
	assert.NotEqual(t, e.ID, NewEvent(EventCheckedIn, nil).ID)
}

func TestWatermillPublisher_GoChannel(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	pub, ch, err := NewPublisher(config.KafkaConfig{TopicPrefix: "test."}, testLogger())
	require.NoError(t, err)
	require.NotNil(t, ch)
	defer pub.Close()

	messages, err := ch.Subscribe(ctx, "test.attendance.checked_in")
	require.NoError(t, err)

	sent := NewEvent(EventCheckedIn, CheckedInData{
		RecordID:    42,
		StudentID:   "s-1",
		SubjectID:   3,
		SessionDate: "2025-03-10",
		Status:      models.StatusLate,
	})
	require.NoError(t, pub.Publish(ctx, sent))

	select {
	case msg := <-messages:
		msg.Ack()
		assert.Equal(t, sent.ID, msg.UUID)
		assert.Equal(t, "attendance.checked_in", msg.Metadata.Get("event_type"))

		got, err := DecodeEvent(msg)
		require.NoError(t, err)
		assert.Equal(t, sent.ID, got.ID)
		data, ok := got.Data.(map[string]interface{})
		require.True(t, ok)
		assert.Equal(t, "late", data["status"])
		assert.Equal(t, float64(42), data["record_id"])
	case <-ctx.Done():
		t.Fatal("event not delivered")
	}
}

func TestWatermillPublisher_Topics(t *testing.T) {
	pub, _, err := NewPublisher(config.KafkaConfig{TopicPrefix: "sp."}, testLogger())
	require.NoError(t, err)
	defer pub.Close()

	assert.Equal(t, "sp.face.registered", pub.Topic(EventFaceRegistered))
	assert.Len(t, pub.AllTopics(), 8)
}

func TestMockEventPublisher(t *testing.T) {
	m := NewMockEventPublisher(testLogger())
	ctx := context.Background()

	require.NoError(t, m.Publish(ctx, NewEvent(EventCheckedIn, nil)))
	require.NoError(t, m.Publish(ctx, NewEvent(EventAbsentMarked, nil)))
	assert.Len(t, m.GetPublishedEvents(), 2)
	assert.Len(t, m.EventsOfType(EventAbsentMarked), 1)

	m.ClearEvents()
	assert.Empty(t, m.GetPublishedEvents())

	m.FailWith(assert.AnError)
	assert.ErrorIs(t, m.Publish(ctx, NewEvent(EventCheckedIn, nil)), assert.AnError)
}
