package repositories

import (
	"context"

	"github.com/smartpresence/attendance-service/internal/models"
)

// DashboardRepository interface for dashboard analytics operations.
// Date bounds are inclusive YYYY-MM-DD strings.
type DashboardRepository interface {
	// Status totals, optionally restricted to one subject or one student
	CountByStatus(ctx context.Context, from, to string, subjectID *uint, studentID *string) (models.StatusCounts, error)

	// Trends
	DailyCounts(ctx context.Context, from, to string) ([]models.DailyStats, error)

	// Per-subject rates, lowest attendance first
	SubjectStats(ctx context.Context, from, to string, limit int) ([]models.SubjectAttendanceStats, error)

	// Recent activities
	RecentCheckIns(ctx context.Context, limit int) ([]models.RecentCheckIn, error)
}
