package postgres

import (
	"context"
	"fmt"
	"sort"

	"github.com/smartpresence/attendance-service/internal/models"
	"github.com/smartpresence/attendance-service/internal/repositories"
	"gorm.io/gorm"
)

type DashboardPostgreSQL struct {
	db      *gorm.DB
	helpers *SharedHelpers
}

func NewDashboardRepository(db *gorm.DB) repositories.DashboardRepository {
	return &DashboardPostgreSQL{db: db, helpers: NewSharedHelpers()}
}

func (d *DashboardPostgreSQL) CountByStatus(ctx context.Context, from, to string, subjectID *uint, studentID *string) (models.StatusCounts, error) {
	var counts models.StatusCounts
	var rows []statusRow

	query := d.db.WithContext(ctx).Model(&models.AttendanceRecord{}).
		Select("status, COUNT(*) AS count")
	query = d.helpers.ApplyDateRange(query, "session_date", from, to)
	if subjectID != nil {
		query = query.Where("subject_id = ?", *subjectID)
	}
	if studentID != nil {
		query = query.Where("student_id = ?", *studentID)
	}

	if err := query.Group("status").Scan(&rows).Error; err != nil {
		return counts, fmt.Errorf("failed to count attendance by status: %w", err)
	}

	for _, row := range rows {
		addStatus(&counts, row.Status, row.Count)
	}
	return counts, nil
}

func (d *DashboardPostgreSQL) DailyCounts(ctx context.Context, from, to string) ([]models.DailyStats, error) {
	var rows []struct {
		SessionDate string
		Status      models.AttendanceStatus
		Count       int64
	}

	query := d.db.WithContext(ctx).Model(&models.AttendanceRecord{}).
		Select("session_date, status, COUNT(*) AS count")
	query = d.helpers.ApplyDateRange(query, "session_date", from, to)
	if err := query.Group("session_date, status").Order("session_date ASC").Scan(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to get daily attendance: %w", err)
	}

	var days []models.DailyStats
	index := make(map[string]int)
	for _, row := range rows {
		i, ok := index[row.SessionDate]
		if !ok {
			days = append(days, models.DailyStats{Date: row.SessionDate})
			i = len(days) - 1
			index[row.SessionDate] = i
		}
		addStatus(&days[i].Counts, row.Status, row.Count)
	}
	for i := range days {
		days[i].Rate = days[i].Counts.Rate()
	}
	return days, nil
}

func (d *DashboardPostgreSQL) SubjectStats(ctx context.Context, from, to string, limit int) ([]models.SubjectAttendanceStats, error) {
	var rows []struct {
		SubjectID   uint
		SubjectCode string
		SubjectName string
		Enrolled    int64
		Present     int64
		Late        int64
		Absent      int64
		Excused     int64
	}

	err := d.db.WithContext(ctx).Raw(`
		SELECT s.id AS subject_id, s.code AS subject_code, s.name AS subject_name,
			(SELECT COUNT(*) FROM enrollments e WHERE e.subject_id = s.id) AS enrolled,
			COUNT(*) FILTER (WHERE a.status = 'present') AS present,
			COUNT(*) FILTER (WHERE a.status = 'late') AS late,
			COUNT(*) FILTER (WHERE a.status = 'absent') AS absent,
			COUNT(*) FILTER (WHERE a.status = 'excused') AS excused
		FROM subjects s
		LEFT JOIN attendance_records a
			ON a.subject_id = s.id AND a.session_date BETWEEN ? AND ?
		WHERE s.deleted_at IS NULL AND s.is_active = TRUE
		GROUP BY s.id, s.code, s.name`, from, to).Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to get subject attendance: %w", err)
	}

	stats := make([]models.SubjectAttendanceStats, 0, len(rows))
	for _, row := range rows {
		counts := models.StatusCounts{Present: row.Present, Late: row.Late, Absent: row.Absent, Excused: row.Excused}
		stats = append(stats, models.SubjectAttendanceStats{
			SubjectID:   row.SubjectID,
			SubjectCode: row.SubjectCode,
			SubjectName: row.SubjectName,
			Enrolled:    row.Enrolled,
			Counts:      counts,
			Rate:        counts.Rate(),
		})
	}

	sort.SliceStable(stats, func(i, j int) bool {
		if stats[i].Rate != stats[j].Rate {
			return stats[i].Rate < stats[j].Rate
		}
		return stats[i].SubjectCode < stats[j].SubjectCode
	})
	if limit > 0 && len(stats) > limit {
		stats = stats[:limit]
	}
	return stats, nil
}

func (d *DashboardPostgreSQL) RecentCheckIns(ctx context.Context, limit int) ([]models.RecentCheckIn, error) {
	var recent []models.RecentCheckIn
	err := d.db.WithContext(ctx).
		Table("attendance_records AS a").
		Select(`a.id AS record_id, a.student_id, u.full_name AS student_name,
			a.subject_id, s.code AS subject_code, a.status, a.check_in_at`).
		Joins("JOIN users u ON u.id = a.student_id").
		Joins("JOIN subjects s ON s.id = a.subject_id").
		Where("a.check_in_at IS NOT NULL").
		Order("a.check_in_at DESC").
		Limit(limit).
		Scan(&recent).Error
	if err != nil {
		return nil, fmt.Errorf("failed to get recent check-ins: %w", err)
	}
	return recent, nil
}
