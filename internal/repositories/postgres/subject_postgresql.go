package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/smartpresence/attendance-service/internal/cache"
	"github.com/smartpresence/attendance-service/internal/models"
	"github.com/smartpresence/attendance-service/internal/repositories"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var subjectSortColumns = map[string]string{
	"code":        "code",
	"name":        "name",
	"day_of_week": "day_of_week",
	"start_time":  "start_time",
	"created_at":  "created_at",
}

type SubjectPostgreSQL struct {
	db           *gorm.DB
	helpers      *SharedHelpers
	cacheManager *cache.CacheManager
}

func NewSubjectPostgreSQL(db *gorm.DB, cacheManager *cache.CacheManager) repositories.SubjectRepository {
	return &SubjectPostgreSQL{
		db:           db,
		helpers:      NewSharedHelpers(),
		cacheManager: cacheManager,
	}
}

func (s *SubjectPostgreSQL) Create(ctx context.Context, subject *models.Subject) error {
	if err := s.db.WithContext(ctx).Omit(clause.Associations).Create(subject).Error; err != nil {
		return repositories.TranslateError(err)
	}
	cache.SafeInvalidatePattern(ctx, s.cacheManager.Subject, "list:*")
	return nil
}

func (s *SubjectPostgreSQL) GetByID(ctx context.Context, id uint) (*models.Subject, error) {
	var subject models.Subject
	err := s.cacheManager.Subject.CacheOrExecute(ctx, fmt.Sprintf("id:%d", id), &subject, cache.SubjectCacheConfig.TTL, func() (interface{}, error) {
		var dbSubject models.Subject
		if err := s.db.WithContext(ctx).
			Preload("Location").
			Preload("Teacher").
			First(&dbSubject, id).Error; err != nil {
			return nil, repositories.TranslateError(err)
		}
		return &dbSubject, nil
	})
	if err != nil {
		return nil, err
	}
	return &subject, nil
}

func (s *SubjectPostgreSQL) GetByCode(ctx context.Context, code string) (*models.Subject, error) {
	var subject models.Subject
	if err := s.db.WithContext(ctx).Where("code = ?", code).First(&subject).Error; err != nil {
		return nil, repositories.TranslateError(err)
	}
	return &subject, nil
}

func (s *SubjectPostgreSQL) Update(ctx context.Context, subject *models.Subject) error {
	if err := s.db.WithContext(ctx).Omit(clause.Associations).Save(subject).Error; err != nil {
		return repositories.TranslateError(err)
	}
	cache.InvalidateSubjectCache(ctx, s.cacheManager, subject.ID)
	return nil
}

func (s *SubjectPostgreSQL) Delete(ctx context.Context, id uint) error {
	result := s.db.WithContext(ctx).Delete(&models.Subject{}, id)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return repositories.ErrNotFound
	}
	cache.InvalidateSubjectCache(ctx, s.cacheManager, id)
	return nil
}

func (s *SubjectPostgreSQL) List(ctx context.Context, filters repositories.SubjectFilters) ([]*models.Subject, int64, error) {
	var subjects []*models.Subject
	var total int64

	query := s.db.WithContext(ctx).Model(&models.Subject{})
	if filters.TeacherID != nil {
		query = query.Where("teacher_id = ?", *filters.TeacherID)
	}
	if filters.DayOfWeek != nil {
		query = query.Where("day_of_week = ?", *filters.DayOfWeek)
	}
	if filters.IsActive != nil {
		query = query.Where("is_active = ?", *filters.IsActive)
	}
	if filters.Query != "" {
		pattern := s.helpers.LikePattern(filters.Query)
		query = query.Where("code ILIKE ? OR name ILIKE ?", pattern, pattern)
	}

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count subjects: %w", err)
	}

	query = s.helpers.ApplyPaginationAndSort(query, subjectSortColumns, "code", filters.SortBy, filters.SortOrder, filters.Limit, filters.Offset)
	if err := query.Preload("Location").Preload("Teacher").Find(&subjects).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to list subjects: %w", err)
	}

	if err := s.fillStudentCounts(ctx, subjects); err != nil {
		return nil, 0, err
	}

	return subjects, total, nil
}

func (s *SubjectPostgreSQL) ListByDay(ctx context.Context, dayOfWeek int) ([]*models.Subject, error) {
	var subjects []*models.Subject
	if err := s.db.WithContext(ctx).
		Where("day_of_week = ? AND is_active = ?", dayOfWeek, true).
		Preload("Location").
		Order("start_time ASC").
		Find(&subjects).Error; err != nil {
		return nil, fmt.Errorf("failed to list subjects for day %d: %w", dayOfWeek, err)
	}
	return subjects, nil
}

func (s *SubjectPostgreSQL) Count(ctx context.Context) (int64, error) {
	var count int64
	err := s.db.WithContext(ctx).Model(&models.Subject{}).Where("is_active = ?", true).Count(&count).Error
	return count, err
}

// ===== ENROLLMENT =====

func (s *SubjectPostgreSQL) Enroll(ctx context.Context, subjectID uint, studentIDs []string) (int, error) {
	if len(studentIDs) == 0 {
		return 0, nil
	}

	enrollments := make([]models.Enrollment, len(studentIDs))
	for i, id := range studentIDs {
		enrollments[i] = models.Enrollment{SubjectID: subjectID, StudentID: id}
	}

	result := s.db.WithContext(ctx).
		Omit(clause.Associations).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&enrollments)
	if result.Error != nil {
		return 0, repositories.TranslateError(result.Error)
	}

	cache.InvalidateEnrollmentCache(ctx, s.cacheManager, subjectID, studentIDs...)
	return int(result.RowsAffected), nil
}

func (s *SubjectPostgreSQL) Unenroll(ctx context.Context, subjectID uint, studentID string) error {
	result := s.db.WithContext(ctx).
		Where("subject_id = ? AND student_id = ?", subjectID, studentID).
		Delete(&models.Enrollment{})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return repositories.ErrNotFound
	}
	cache.InvalidateEnrollmentCache(ctx, s.cacheManager, subjectID, studentID)
	return nil
}

func (s *SubjectPostgreSQL) IsEnrolled(ctx context.Context, subjectID uint, studentID string) (bool, error) {
	var count int64
	err := s.db.WithContext(ctx).Model(&models.Enrollment{}).
		Where("subject_id = ? AND student_id = ?", subjectID, studentID).
		Count(&count).Error
	return count > 0, err
}

func (s *SubjectPostgreSQL) ListStudents(ctx context.Context, subjectID uint) ([]*models.User, error) {
	var students []*models.User
	err := s.cacheManager.Subject.CacheOrExecute(ctx, fmt.Sprintf("students:%d", subjectID), &students, cache.SubjectCacheConfig.TTL, func() (interface{}, error) {
		var dbStudents []*models.User
		if err := s.db.WithContext(ctx).
			Joins("JOIN enrollments ON enrollments.student_id = users.id").
			Where("enrollments.subject_id = ?", subjectID).
			Order("users.full_name ASC").
			Find(&dbStudents).Error; err != nil {
			return nil, fmt.Errorf("failed to list students: %w", err)
		}
		return dbStudents, nil
	})
	return students, err
}

func (s *SubjectPostgreSQL) ListStudentIDs(ctx context.Context, subjectID uint, enrolledBefore time.Time) ([]string, error) {
	var ids []string
	err := s.db.WithContext(ctx).Model(&models.Enrollment{}).
		Joins("JOIN users ON users.id = enrollments.student_id AND users.deleted_at IS NULL AND users.is_active = ?", true).
		Where("enrollments.subject_id = ? AND enrollments.created_at < ?", subjectID, enrolledBefore).
		Pluck("enrollments.student_id", &ids).Error
	return ids, err
}

func (s *SubjectPostgreSQL) ListByStudent(ctx context.Context, studentID string) ([]*models.Subject, error) {
	var subjects []*models.Subject
	err := s.cacheManager.Subject.CacheOrExecute(ctx, fmt.Sprintf("student:%s:subjects", studentID), &subjects, cache.SubjectCacheConfig.TTL, func() (interface{}, error) {
		var dbSubjects []*models.Subject
		if err := s.db.WithContext(ctx).
			Joins("JOIN enrollments ON enrollments.subject_id = subjects.id").
			Where("enrollments.student_id = ?", studentID).
			Preload("Location").
			Order("subjects.day_of_week ASC, subjects.start_time ASC").
			Find(&dbSubjects).Error; err != nil {
			return nil, fmt.Errorf("failed to list subjects for student: %w", err)
		}
		return dbSubjects, nil
	})
	return subjects, err
}

func (s *SubjectPostgreSQL) CountStudents(ctx context.Context, subjectID uint) (int64, error) {
	var count int64
	err := s.db.WithContext(ctx).Model(&models.Enrollment{}).Where("subject_id = ?", subjectID).Count(&count).Error
	return count, err
}

// fillStudentCounts sets StudentCount with one grouped query
func (s *SubjectPostgreSQL) fillStudentCounts(ctx context.Context, subjects []*models.Subject) error {
	if len(subjects) == 0 {
		return nil
	}

	ids := make([]uint, len(subjects))
	for i, subject := range subjects {
		ids[i] = subject.ID
	}

	var rows []struct {
		SubjectID uint
		Count     int
	}
	if err := s.db.WithContext(ctx).Model(&models.Enrollment{}).
		Select("subject_id, COUNT(*) AS count").
		Where("subject_id IN ?", ids).
		Group("subject_id").
		Scan(&rows).Error; err != nil {
		return fmt.Errorf("failed to count enrollments: %w", err)
	}

	counts := make(map[uint]int, len(rows))
	for _, row := range rows {
		counts[row.SubjectID] = row.Count
	}
	for _, subject := range subjects {
		subject.StudentCount = counts[subject.ID]
	}
	return nil
}
