package services

import (
	"context"
	"log/slog"
	"time"

	"github.com/smartpresence/attendance-service/internal/events"
	"github.com/smartpresence/attendance-service/internal/models"
	"github.com/smartpresence/attendance-service/internal/repositories"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

// pageBounds returns limit and offset for a zero-based page
func pageBounds(page, size int) (limit, offset int) {
	if size <= 0 {
		size = defaultPageSize
	}
	if size > maxPageSize {
		size = maxPageSize
	}
	if page < 0 {
		page = 0
	}
	return size, page * size
}

// notFound replaces a repository not-found error with the domain sentinel
func notFound(err error, sentinel error) error {
	if repositories.IsNotFoundError(err) {
		return sentinel
	}
	return err
}

// publishEvent sends an event and logs failures; events never fail the operation
func publishEvent(ctx context.Context, publisher events.EventPublisher, logger *slog.Logger, eventType events.EventType, data interface{}) {
	if publisher == nil {
		return
	}
	if err := publisher.Publish(ctx, events.NewEvent(eventType, data)); err != nil {
		logger.WarnContext(ctx, "Failed to publish event", "event_type", eventType, "error", err)
	}
}

// dayRange returns the inclusive YYYY-MM-DD bounds of the last days days ending at now
func dayRange(now time.Time, days int) (string, string) {
	if days <= 0 {
		days = 1
	}
	from := now.AddDate(0, 0, -(days - 1))
	return from.Format(models.DateLayout), now.Format(models.DateLayout)
}
