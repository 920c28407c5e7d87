package postgres

import (
	"context"
	"fmt"

	"github.com/smartpresence/attendance-service/internal/models"
	"github.com/smartpresence/attendance-service/internal/repositories"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var attendanceSortColumns = map[string]string{
	"session_date": "attendance_records.session_date",
	"check_in_at":  "attendance_records.check_in_at",
	"status":       "attendance_records.status",
	"created_at":   "attendance_records.created_at",
}

type AttendancePostgreSQL struct {
	db      *gorm.DB
	helpers *SharedHelpers
}

func NewAttendancePostgreSQL(db *gorm.DB) repositories.AttendanceRepository {
	return &AttendancePostgreSQL{db: db, helpers: NewSharedHelpers()}
}

func (a *AttendancePostgreSQL) Create(ctx context.Context, record *models.AttendanceRecord) error {
	return repositories.TranslateError(a.db.WithContext(ctx).Omit(clause.Associations).Create(record).Error)
}

// CreateBatch inserts records, skipping those whose session already has a record
func (a *AttendancePostgreSQL) CreateBatch(ctx context.Context, records []*models.AttendanceRecord) error {
	if len(records) == 0 {
		return nil
	}
	return a.db.WithContext(ctx).
		Omit(clause.Associations).
		Clauses(clause.OnConflict{DoNothing: true}).
		CreateInBatches(records, 200).Error
}

func (a *AttendancePostgreSQL) GetByID(ctx context.Context, id uint) (*models.AttendanceRecord, error) {
	var record models.AttendanceRecord
	if err := a.db.WithContext(ctx).
		Preload("Student").
		Preload("Subject").
		First(&record, id).Error; err != nil {
		return nil, repositories.TranslateError(err)
	}
	return &record, nil
}

func (a *AttendancePostgreSQL) GetBySession(ctx context.Context, studentID string, subjectID uint, sessionDate string) (*models.AttendanceRecord, error) {
	var record models.AttendanceRecord
	if err := a.db.WithContext(ctx).
		Where("student_id = ? AND subject_id = ? AND session_date = ?", studentID, subjectID, sessionDate).
		First(&record).Error; err != nil {
		return nil, repositories.TranslateError(err)
	}
	return &record, nil
}

func (a *AttendancePostgreSQL) Update(ctx context.Context, record *models.AttendanceRecord) error {
	return repositories.TranslateError(a.db.WithContext(ctx).Omit(clause.Associations).Save(record).Error)
}

func (a *AttendancePostgreSQL) Delete(ctx context.Context, id uint) error {
	result := a.db.WithContext(ctx).Delete(&models.AttendanceRecord{}, id)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return repositories.ErrNotFound
	}
	return nil
}

func (a *AttendancePostgreSQL) List(ctx context.Context, filters repositories.AttendanceFilters) ([]*models.AttendanceRecord, int64, error) {
	var records []*models.AttendanceRecord
	var total int64

	// apply filter first
	query := a.db.WithContext(ctx).Model(&models.AttendanceRecord{})
	query = a.applyFilters(query, filters)

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count attendance: %w", err)
	}

	// then apply pagination and sorting
	query = a.helpers.ApplyPaginationAndSort(query, attendanceSortColumns, "session_date", filters.SortBy, filters.SortOrder, filters.Limit, filters.Offset)

	if err := query.Preload("Student").Preload("Subject").Find(&records).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to list attendance: %w", err)
	}

	return records, total, nil
}

func (a *AttendancePostgreSQL) ListStudentIDsWithRecord(ctx context.Context, subjectID uint, sessionDate string) ([]string, error) {
	var ids []string
	err := a.db.WithContext(ctx).Model(&models.AttendanceRecord{}).
		Where("subject_id = ? AND session_date = ?", subjectID, sessionDate).
		Pluck("student_id", &ids).Error
	return ids, err
}

func (a *AttendancePostgreSQL) applyFilters(query *gorm.DB, filters repositories.AttendanceFilters) *gorm.DB {
	if filters.StudentID != nil {
		query = query.Where("attendance_records.student_id = ?", *filters.StudentID)
	}
	if filters.SubjectID != nil {
		query = query.Where("attendance_records.subject_id = ?", *filters.SubjectID)
	}
	if filters.TeacherID != nil {
		query = query.Where("attendance_records.subject_id IN (?)",
			a.db.Model(&models.Subject{}).Select("id").Where("teacher_id = ?", *filters.TeacherID))
	}
	if filters.Status != nil {
		query = query.Where("attendance_records.status = ?", *filters.Status)
	}
	return a.helpers.ApplyDateRange(query, "attendance_records.session_date", filters.DateFrom, filters.DateTo)
}
