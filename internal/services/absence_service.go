package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/smartpresence/attendance-service/internal/cache"
	"github.com/smartpresence/attendance-service/internal/events"
	"github.com/smartpresence/attendance-service/internal/metrics"
	"github.com/smartpresence/attendance-service/internal/models"
	"github.com/smartpresence/attendance-service/internal/repositories"
)

type absenceService struct {
	repo      repositories.Repository
	logger    *slog.Logger
	cache     *cache.CacheManager
	publisher events.EventPublisher
	metrics   *metrics.Metrics
	loc       *time.Location
}

func NewAbsenceService(repo repositories.Repository, logger *slog.Logger, cacheManager *cache.CacheManager, publisher events.EventPublisher, m *metrics.Metrics, loc *time.Location) AbsenceService {
	if loc == nil {
		loc = time.UTC
	}
	if cacheManager == nil {
		cacheManager = cache.NewCacheManager(nil)
	}
	return &absenceService{
		repo:      repo,
		logger:    logger,
		cache:     cacheManager,
		publisher: publisher,
		metrics:   m,
		loc:       loc,
	}
}

// absenceLookbackDays is how many calendar days before today are re-checked,
// so sessions that ended while the service was down still get closed
const absenceLookbackDays = 2

// MarkAbsences creates absent records for enrolled students without a record
// in every session that ended before now, today or in the previous
// absenceLookbackDays days. It is idempotent.
func (s *absenceService) MarkAbsences(ctx context.Context, now time.Time) (int, error) {
	now = now.In(s.loc)

	total := 0
	for back := absenceLookbackDays; back >= 0; back-- {
		day := now.AddDate(0, 0, -back)
		marked, err := s.markDay(ctx, day, now)
		total += marked
		if err != nil {
			return total, err
		}
	}

	if total > 0 {
		s.metrics.AddAbsences(total)
		cache.InvalidateStats(ctx, s.cache)
	}
	return total, nil
}

func (s *absenceService) markDay(ctx context.Context, day, now time.Time) (int, error) {
	subjects, err := s.repo.Subject().ListByDay(ctx, int(day.Weekday()))
	if err != nil {
		return 0, fmt.Errorf("failed to list subjects for %s: %w", day.Format(models.DateLayout), err)
	}

	total := 0
	for _, subject := range subjects {
		session, ok, err := subject.SessionOn(day)
		if err != nil {
			s.logger.WarnContext(ctx, "Skipping subject with invalid schedule", "subject_id", subject.ID, "error", err)
			continue
		}
		// Sessions held before the subject existed never took place
		if !ok || !now.After(session.EndsAt) || session.EndsAt.Before(subject.CreatedAt) {
			continue
		}

		marked, err := s.markSession(ctx, subject, session)
		if err != nil {
			return total, err
		}
		total += len(marked)

		if len(marked) > 0 {
			publishEvent(ctx, s.publisher, s.logger, events.EventAbsentMarked, events.AbsentMarkedData{
				SubjectID:   subject.ID,
				SessionDate: session.Date,
				StudentIDs:  marked,
			})
			s.logger.InfoContext(ctx, "Marked absences", "subject_id", subject.ID, "session_date", session.Date, "count", len(marked))
		}
	}
	return total, nil
}

func (s *absenceService) markSession(ctx context.Context, subject *models.Subject, session *models.Session) ([]string, error) {
	// Students who joined after the session ended were never expected there
	enrolled, err := s.repo.Subject().ListStudentIDs(ctx, subject.ID, session.EndsAt)
	if err != nil {
		return nil, fmt.Errorf("failed to list students of subject %d: %w", subject.ID, err)
	}
	if len(enrolled) == 0 {
		return nil, nil
	}

	recorded, err := s.repo.Attendance().ListStudentIDsWithRecord(ctx, subject.ID, session.Date)
	if err != nil {
		return nil, fmt.Errorf("failed to list records of subject %d: %w", subject.ID, err)
	}
	has := make(map[string]bool, len(recorded))
	for _, id := range recorded {
		has[id] = true
	}

	var missing []string
	var records []*models.AttendanceRecord
	for _, studentID := range enrolled {
		if has[studentID] {
			continue
		}
		missing = append(missing, studentID)
		records = append(records, &models.AttendanceRecord{
			StudentID:   studentID,
			SubjectID:   subject.ID,
			SessionDate: session.Date,
			Status:      models.StatusAbsent,
			Method:      models.MethodAuto,
		})
	}

	if err := s.repo.Attendance().CreateBatch(ctx, records); err != nil {
		return nil, fmt.Errorf("failed to save absences for subject %d: %w", subject.ID, err)
	}
	return missing, nil
}
