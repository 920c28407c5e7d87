package services

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/smartpresence/attendance-service/internal/config"
	"github.com/smartpresence/attendance-service/internal/models"
	"github.com/smartpresence/attendance-service/internal/repositories"
	"github.com/smartpresence/attendance-service/internal/validator"
)

type subjectService struct {
	repo      repositories.Repository
	logger    *slog.Logger
	validator *validator.Validator
	checkIn   config.CheckInConfig
	loc       *time.Location
	now       Clock
}

func NewSubjectService(repo repositories.Repository, logger *slog.Logger, validator *validator.Validator, checkIn config.CheckInConfig, loc *time.Location, clock Clock) SubjectService {
	if loc == nil {
		loc = time.UTC
	}
	if clock == nil {
		clock = time.Now
	}
	return &subjectService{
		repo:      repo,
		logger:    logger,
		validator: validator,
		checkIn:   checkIn,
		loc:       loc,
		now:       clock,
	}
}

func (s *subjectService) Create(ctx context.Context, req *models.SubjectCreateRequest) (*models.Subject, error) {
	s.logger.InfoContext(ctx, "Creating subject", "code", req.Code)

	if errs := s.validator.GetBusinessValidator().ValidateSubjectCreate(req); len(errs) > 0 {
		return nil, errs
	}

	code := strings.ToUpper(strings.TrimSpace(req.Code))
	if _, err := s.repo.Subject().GetByCode(ctx, code); err == nil {
		return nil, ErrSubjectCodeTaken
	} else if !repositories.IsNotFoundError(err) {
		return nil, fmt.Errorf("failed to check subject code: %w", err)
	}

	if err := s.checkReferences(ctx, req.TeacherID, req.LocationID); err != nil {
		return nil, err
	}

	subject := &models.Subject{
		Code:               code,
		Name:               req.Name,
		TeacherID:          req.TeacherID,
		LocationID:         req.LocationID,
		DayOfWeek:          req.DayOfWeek,
		StartTime:          req.StartTime,
		EndTime:            req.EndTime,
		CheckInOpenMinutes: s.checkIn.DefaultOpenMinutes,
		LateAfterMinutes:   s.checkIn.DefaultLateMinutes,
		IsActive:           true,
	}
	if req.CheckInOpenMinutes != nil {
		subject.CheckInOpenMinutes = *req.CheckInOpenMinutes
	}
	if req.LateAfterMinutes != nil {
		subject.LateAfterMinutes = *req.LateAfterMinutes
	}

	if err := s.repo.Subject().Create(ctx, subject); err != nil {
		if repositories.IsDuplicateError(err) {
			return nil, ErrSubjectCodeTaken
		}
		return nil, fmt.Errorf("failed to create subject: %w", err)
	}

	s.logger.InfoContext(ctx, "Subject created", "subject_id", subject.ID, "code", subject.Code)
	return s.GetByID(ctx, subject.ID)
}

// checkReferences requires the teacher to hold the teacher role and the location to exist
func (s *subjectService) checkReferences(ctx context.Context, teacherID *string, locationID uint) error {
	if teacherID != nil {
		teacher, err := s.repo.User().GetByID(ctx, *teacherID)
		if err != nil {
			if repositories.IsNotFoundError(err) {
				return ErrInvalidTeacher
			}
			return fmt.Errorf("failed to load teacher: %w", err)
		}
		if teacher.Role != models.RoleTeacher {
			return ErrInvalidTeacher
		}
	}

	if _, err := s.repo.Location().GetByID(ctx, locationID); err != nil {
		return notFound(err, ErrLocationNotFound)
	}
	return nil
}

func (s *subjectService) GetByID(ctx context.Context, id uint) (*models.Subject, error) {
	subject, err := s.repo.Subject().GetByID(ctx, id)
	if err != nil {
		return nil, notFound(err, ErrSubjectNotFound)
	}
	return subject, nil
}

func (s *subjectService) Update(ctx context.Context, id uint, req *models.SubjectUpdateRequest) (*models.Subject, error) {
	subject, err := s.repo.Subject().GetByID(ctx, id)
	if err != nil {
		return nil, notFound(err, ErrSubjectNotFound)
	}

	if errs := s.validator.GetBusinessValidator().ValidateSubjectUpdate(req, subject); len(errs) > 0 {
		return nil, errs
	}

	locationID := subject.LocationID
	if req.LocationID != nil {
		locationID = *req.LocationID
	}
	if req.TeacherID != nil || req.LocationID != nil {
		if err := s.checkReferences(ctx, req.TeacherID, locationID); err != nil {
			return nil, err
		}
	}

	if req.Name != nil {
		subject.Name = *req.Name
	}
	if req.TeacherID != nil {
		subject.TeacherID = req.TeacherID
		subject.Teacher = nil
	}
	if req.LocationID != nil && *req.LocationID != subject.LocationID {
		subject.LocationID = *req.LocationID
		subject.Location = models.Location{}
	}
	if req.DayOfWeek != nil {
		subject.DayOfWeek = *req.DayOfWeek
	}
	if req.StartTime != nil {
		subject.StartTime = *req.StartTime
	}
	if req.EndTime != nil {
		subject.EndTime = *req.EndTime
	}
	if req.CheckInOpenMinutes != nil {
		subject.CheckInOpenMinutes = *req.CheckInOpenMinutes
	}
	if req.LateAfterMinutes != nil {
		subject.LateAfterMinutes = *req.LateAfterMinutes
	}
	if req.IsActive != nil {
		subject.IsActive = *req.IsActive
	}

	if err := s.repo.Subject().Update(ctx, subject); err != nil {
		return nil, fmt.Errorf("failed to update subject: %w", err)
	}

	s.logger.InfoContext(ctx, "Subject updated", "subject_id", id)
	return s.GetByID(ctx, id)
}

func (s *subjectService) Delete(ctx context.Context, id uint) error {
	if err := s.repo.Subject().Delete(ctx, id); err != nil {
		return notFound(err, ErrSubjectNotFound)
	}
	s.logger.InfoContext(ctx, "Subject deleted", "subject_id", id)
	return nil
}

func (s *subjectService) List(ctx context.Context, params *models.ListSubjectsParams) (*models.PaginatedResponse, error) {
	if err := s.validator.Validate(params); err != nil {
		return nil, err
	}

	limit, offset := pageBounds(params.Page, params.Size)
	subjects, total, err := s.repo.Subject().List(ctx, repositories.SubjectFilters{
		Query:     strings.TrimSpace(params.Search),
		TeacherID: params.TeacherID,
		DayOfWeek: params.DayOfWeek,
		IsActive:  params.IsActive,
		Limit:     limit,
		Offset:    offset,
		SortBy:    params.SortBy,
		SortOrder: params.SortDir,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list subjects: %w", err)
	}

	return models.NewPaginatedResponse(subjects, len(subjects), total, params.Page, limit), nil
}

// Enroll adds students to the subject and returns how many were newly enrolled
func (s *subjectService) Enroll(ctx context.Context, id uint, req *models.EnrollRequest) (int, error) {
	if err := s.validator.Validate(req); err != nil {
		return 0, err
	}
	if _, err := s.repo.Subject().GetByID(ctx, id); err != nil {
		return 0, notFound(err, ErrSubjectNotFound)
	}

	ids := uniqueStrings(req.StudentIDs)
	users, err := s.repo.User().GetByIDs(ctx, ids)
	if err != nil {
		return 0, fmt.Errorf("failed to load students: %w", err)
	}

	found := make(map[string]bool, len(users))
	for _, u := range users {
		if u.Role == models.RoleStudent {
			found[u.ID] = true
		}
	}
	var invalid []string
	for _, sid := range ids {
		if !found[sid] {
			invalid = append(invalid, sid)
		}
	}
	if len(invalid) > 0 {
		return 0, NewBusinessRuleError("enroll_students_only", ErrInvalidStudents.Error(), map[string]interface{}{
			"invalid_ids": invalid,
		})
	}

	added, err := s.repo.Subject().Enroll(ctx, id, ids)
	if err != nil {
		return 0, fmt.Errorf("failed to enroll students: %w", err)
	}

	s.logger.InfoContext(ctx, "Students enrolled", "subject_id", id, "requested", len(ids), "added", added)
	return added, nil
}

func (s *subjectService) Unenroll(ctx context.Context, id uint, studentID string) error {
	if err := s.repo.Subject().Unenroll(ctx, id, studentID); err != nil {
		if repositories.IsNotFoundError(err) {
			return ErrNotEnrolled
		}
		return fmt.Errorf("failed to unenroll student: %w", err)
	}
	s.logger.InfoContext(ctx, "Student unenrolled", "subject_id", id, "student_id", studentID)
	return nil
}

func (s *subjectService) ListStudents(ctx context.Context, id uint) ([]*models.User, error) {
	if _, err := s.repo.Subject().GetByID(ctx, id); err != nil {
		return nil, notFound(err, ErrSubjectNotFound)
	}
	students, err := s.repo.Subject().ListStudents(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to list students: %w", err)
	}
	return students, nil
}

func (s *subjectService) ListForStudent(ctx context.Context, studentID string) ([]*models.Subject, error) {
	subjects, err := s.repo.Subject().ListByStudent(ctx, studentID)
	if err != nil {
		return nil, fmt.Errorf("failed to list subjects: %w", err)
	}
	return subjects, nil
}

// TodaySessions lists the student's sessions scheduled today, ordered by start time
func (s *subjectService) TodaySessions(ctx context.Context, studentID string) ([]*models.TodaySession, error) {
	now := s.now().In(s.loc)

	subjects, err := s.repo.Subject().ListByStudent(ctx, studentID)
	if err != nil {
		return nil, fmt.Errorf("failed to list subjects: %w", err)
	}

	sessions := make([]*models.TodaySession, 0)
	for _, subject := range subjects {
		if !subject.IsActive {
			continue
		}
		session, ok, err := subject.SessionOn(now)
		if err != nil {
			s.logger.WarnContext(ctx, "Skipping subject with invalid schedule", "subject_id", subject.ID, "error", err)
			continue
		}
		if !ok {
			continue
		}

		today := &models.TodaySession{
			Session:     *session,
			CheckInOpen: session.IsOpen(now),
		}
		record, err := s.repo.Attendance().GetBySession(ctx, studentID, subject.ID, session.Date)
		switch {
		case err == nil:
			today.CheckedIn = record.Status.Attended()
			status := record.Status
			today.Status = &status
		case !repositories.IsNotFoundError(err):
			return nil, fmt.Errorf("failed to load attendance: %w", err)
		}
		sessions = append(sessions, today)
	}

	sort.Slice(sessions, func(i, j int) bool {
		return sessions[i].StartsAt.Before(sessions[j].StartsAt)
	})
	return sessions, nil
}

func uniqueStrings(values []string) []string {
	seen := make(map[string]bool, len(values))
	out := make([]string, 0, len(values))
	for _, v := range values {
		if !seen[v] {
			seen[v] = true
			out = append(out, v)
		}
	}
	return out
}
