package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill-kafka/v2/pkg/kafka"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/smartpresence/attendance-service/internal/config"
)

// WatermillPublisher publishes events as JSON messages, one topic per event type
type WatermillPublisher struct {
	publisher   message.Publisher
	topicPrefix string
	logger      *slog.Logger
}

// NewPublisher returns a Kafka publisher when brokers are configured and an
// in-process channel otherwise. The channel is returned so callers can subscribe.
func NewPublisher(cfg config.KafkaConfig, logger *slog.Logger) (*WatermillPublisher, *gochannel.GoChannel, error) {
	wmLogger := watermill.NewSlogLogger(logger)

	if len(cfg.Brokers) > 0 {
		pub, err := kafka.NewPublisher(kafka.PublisherConfig{
			Brokers:   cfg.Brokers,
			Marshaler: kafka.DefaultMarshaler{},
		}, wmLogger)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to create kafka publisher: %w", err)
		}
		logger.Info("Event publisher using kafka", "brokers", cfg.Brokers)
		return NewWatermillPublisher(pub, cfg.TopicPrefix, logger), nil, nil
	}

	ch := gochannel.NewGoChannel(gochannel.Config{OutputChannelBuffer: 64}, wmLogger)
	logger.Info("Event publisher using in-process channel")
	return NewWatermillPublisher(ch, cfg.TopicPrefix, logger), ch, nil
}

func NewWatermillPublisher(pub message.Publisher, topicPrefix string, logger *slog.Logger) *WatermillPublisher {
	return &WatermillPublisher{
		publisher:   pub,
		topicPrefix: topicPrefix,
		logger:      logger,
	}
}

func (p *WatermillPublisher) Topic(eventType EventType) string {
	return p.topicPrefix + string(eventType)
}

func (p *WatermillPublisher) Publish(ctx context.Context, event *Event) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event %s: %w", event.Type, err)
	}

	msg := message.NewMessage(event.ID, payload)
	msg.Metadata.Set("event_type", string(event.Type))
	msg.Metadata.Set("source", event.Source)
	msg.SetContext(ctx)

	topic := p.Topic(event.Type)
	if err := p.publisher.Publish(topic, msg); err != nil {
		return fmt.Errorf("failed to publish event to %s: %w", topic, err)
	}

	p.logger.DebugContext(ctx, "Event published", "event_id", event.ID, "topic", topic)
	return nil
}

func (p *WatermillPublisher) Close() error {
	return p.publisher.Close()
}

// DecodeEvent parses a message produced by WatermillPublisher
func DecodeEvent(msg *message.Message) (*Event, error) {
	var event Event
	if err := json.Unmarshal(msg.Payload, &event); err != nil {
		return nil, fmt.Errorf("failed to decode event %s: %w", msg.UUID, err)
	}
	return &event, nil
}

// LogSubscriber writes every event on the given topics to the log until ctx is done
func LogSubscriber(ctx context.Context, sub message.Subscriber, logger *slog.Logger, topics ...string) error {
	for _, topic := range topics {
		messages, err := sub.Subscribe(ctx, topic)
		if err != nil {
			return fmt.Errorf("failed to subscribe to %s: %w", topic, err)
		}

		go func(topic string, messages <-chan *message.Message) {
			for msg := range messages {
				event, err := DecodeEvent(msg)
				if err != nil {
					logger.Warn("Dropping malformed event", "topic", topic, "error", err)
					msg.Ack()
					continue
				}
				logger.Info("Domain event",
					"event_id", event.ID,
					"event_type", event.Type,
					"timestamp", event.Timestamp)
				msg.Ack()
			}
		}(topic, messages)
	}
	return nil
}

// AllTopics lists the topics of every event type for the given publisher
func (p *WatermillPublisher) AllTopics() []string {
	types := []EventType{
		EventCheckedIn, EventCheckInRejected, EventAttendanceCreated, EventAttendanceUpdated,
		EventAttendanceDeleted, EventAbsentMarked, EventFaceRegistered, EventFaceDeleted,
	}
	topics := make([]string, len(types))
	for i, t := range types {
		topics[i] = p.Topic(t)
	}
	return topics
}
