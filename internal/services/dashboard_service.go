package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/smartpresence/attendance-service/internal/cache"
	"github.com/smartpresence/attendance-service/internal/models"
	"github.com/smartpresence/attendance-service/internal/repositories"
)

const (
	defaultPeriodDays = 30
	maxPeriodDays     = 365
)

// ===== SERVICE IMPLEMENTATION =====

type dashboardService struct {
	repo   repositories.Repository
	cache  *cache.CacheManager
	logger *slog.Logger
	loc    *time.Location
	now    Clock
}

func NewDashboardService(repo repositories.Repository, cacheManager *cache.CacheManager, logger *slog.Logger, loc *time.Location, clock Clock) DashboardService {
	if cacheManager == nil {
		cacheManager = cache.NewCacheManager(nil)
	}
	if loc == nil {
		loc = time.UTC
	}
	if clock == nil {
		clock = time.Now
	}
	return &dashboardService{
		repo:   repo,
		cache:  cacheManager,
		logger: logger,
		loc:    loc,
		now:    clock,
	}
}

func (s *dashboardService) GetStats(ctx context.Context, days int) (*models.DashboardStats, error) {
	days = clampDays(days)
	s.logger.InfoContext(ctx, "Getting dashboard stats", "period_days", days)

	now := s.now().In(s.loc)
	key := fmt.Sprintf("dashboard:%s:%d", now.Format(models.DateLayout), days)

	var stats models.DashboardStats
	err := s.cache.Stats.CacheOrExecute(ctx, key, &stats, cache.StatsCacheConfig.TTL, func() (interface{}, error) {
		return s.computeStats(ctx, now, days)
	})
	if err != nil {
		return nil, err
	}
	return &stats, nil
}

func (s *dashboardService) computeStats(ctx context.Context, now time.Time, days int) (*models.DashboardStats, error) {
	totalStudents, err := s.repo.User().CountByRole(ctx, models.RoleStudent)
	if err != nil {
		return nil, fmt.Errorf("failed to count students: %w", err)
	}

	totalTeachers, err := s.repo.User().CountByRole(ctx, models.RoleTeacher)
	if err != nil {
		return nil, fmt.Errorf("failed to count teachers: %w", err)
	}

	totalSubjects, err := s.repo.Subject().Count(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to count subjects: %w", err)
	}

	totalLocations, err := s.repo.Location().Count(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to count locations: %w", err)
	}

	todaySubjects, err := s.repo.Subject().ListByDay(ctx, int(now.Weekday()))
	if err != nil {
		return nil, fmt.Errorf("failed to list today's subjects: %w", err)
	}

	today := now.Format(models.DateLayout)
	todayCounts, err := s.repo.Dashboard().CountByStatus(ctx, today, today, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to count today's attendance: %w", err)
	}

	from, to := dayRange(now, days)
	periodCounts, err := s.repo.Dashboard().CountByStatus(ctx, from, to, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to count period attendance: %w", err)
	}

	daily, err := s.repo.Dashboard().DailyCounts(ctx, from, to)
	if err != nil {
		s.logger.WarnContext(ctx, "Failed to get daily breakdown", "error", err)
		daily = []models.DailyStats{}
	}
	for i := range daily {
		daily[i].Rate = roundFloat(daily[i].Counts.Rate(), 1)
	}

	enrolledFaces, err := s.repo.User().CountFaceEnrolled(ctx, models.RoleStudent)
	if err != nil {
		s.logger.WarnContext(ctx, "Failed to count face enrollment", "error", err)
		enrolledFaces = 0
	}
	facePct := 0.0
	if totalStudents > 0 {
		facePct = float64(enrolledFaces) / float64(totalStudents) * 100
	}

	return &models.DashboardStats{
		TotalStudents:   totalStudents,
		TotalTeachers:   totalTeachers,
		TotalSubjects:   totalSubjects,
		TotalLocations:  totalLocations,
		SessionsToday:   len(todaySubjects),
		RecordsToday:    todayCounts.Total(),
		Today:           todayCounts,
		Period:          periodCounts,
		PeriodDays:      days,
		AttendanceRate:  roundFloat(periodCounts.Rate(), 1),
		DailyBreakdown:  daily,
		FaceEnrolledPct: roundFloat(facePct, 1),
	}, nil
}

func (s *dashboardService) GetSubjectStats(ctx context.Context, days, limit int) ([]models.SubjectAttendanceStats, error) {
	days = clampDays(days)
	if limit <= 0 || limit > 100 {
		limit = 10
	}
	s.logger.InfoContext(ctx, "Getting subject stats", "period_days", days, "limit", limit)

	from, to := dayRange(s.now().In(s.loc), days)
	stats, err := s.repo.Dashboard().SubjectStats(ctx, from, to, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to get subject stats: %w", err)
	}
	for i := range stats {
		stats[i].Rate = roundFloat(stats[i].Counts.Rate(), 1)
	}
	return stats, nil
}

func (s *dashboardService) GetRecentCheckIns(ctx context.Context, limit int) ([]models.RecentCheckIn, error) {
	// Validate limit
	if limit <= 0 || limit > 50 {
		limit = 10
	}

	recent, err := s.repo.Dashboard().RecentCheckIns(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to get recent check-ins: %w", err)
	}
	return recent, nil
}

func clampDays(days int) int {
	if days <= 0 {
		return defaultPeriodDays
	}
	if days > maxPeriodDays {
		return maxPeriodDays
	}
	return days
}

// Helper functions

func roundFloat(val float64, precision int) float64 {
	ratio := 1.0
	for i := 0; i < precision; i++ {
		ratio *= 10
	}
	return float64(int(val*ratio+0.5)) / ratio
}
