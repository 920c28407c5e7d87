package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/smartpresence/attendance-service/internal/cache"
	"github.com/smartpresence/attendance-service/internal/events"
	"github.com/smartpresence/attendance-service/internal/models"
	"github.com/smartpresence/attendance-service/internal/repositories"
	"github.com/smartpresence/attendance-service/internal/validator"
)

// exportLimit caps the rows written to one workbook
const exportLimit = 10000

type attendanceService struct {
	repo      repositories.Repository
	logger    *slog.Logger
	validator *validator.Validator
	cache     *cache.CacheManager
	publisher events.EventPublisher
	loc       *time.Location
	now       Clock
}

func NewAttendanceService(repo repositories.Repository, logger *slog.Logger, validator *validator.Validator, cacheManager *cache.CacheManager, publisher events.EventPublisher, loc *time.Location, clock Clock) AttendanceService {
	if loc == nil {
		loc = time.UTC
	}
	if clock == nil {
		clock = time.Now
	}
	if cacheManager == nil {
		cacheManager = cache.NewCacheManager(nil)
	}
	return &attendanceService{
		repo:      repo,
		logger:    logger,
		validator: validator,
		cache:     cacheManager,
		publisher: publisher,
		loc:       loc,
		now:       clock,
	}
}

func (s *attendanceService) List(ctx context.Context, actor Actor, params *models.ListAttendanceParams) (*models.PaginatedResponse, error) {
	filters, err := s.scopedFilters(actor, params)
	if err != nil {
		return nil, err
	}
	return s.list(ctx, filters, params.Page)
}

func (s *attendanceService) list(ctx context.Context, filters repositories.AttendanceFilters, page int) (*models.PaginatedResponse, error) {
	records, total, err := s.repo.Attendance().List(ctx, filters)
	if err != nil {
		return nil, fmt.Errorf("failed to list attendance: %w", err)
	}
	return models.NewPaginatedResponse(records, len(records), total, page, filters.Limit), nil
}

// scopedFilters builds filters for actor; teachers only see the subjects they teach
func (s *attendanceService) scopedFilters(actor Actor, params *models.ListAttendanceParams) (repositories.AttendanceFilters, error) {
	filters, err := s.buildFilters(params)
	if err != nil {
		return filters, err
	}

	switch {
	case actor.IsAdmin():
	case actor.IsTeacher():
		teacherID := actor.ID
		filters.TeacherID = &teacherID
	default:
		return repositories.AttendanceFilters{}, NewPermissionError(actor.ID, 0, "attendance", "list", "only teachers and admins may review attendance")
	}
	return filters, nil
}

func (s *attendanceService) buildFilters(params *models.ListAttendanceParams) (repositories.AttendanceFilters, error) {
	if err := s.validator.Validate(params); err != nil {
		return repositories.AttendanceFilters{}, err
	}
	if errs := s.validator.GetBusinessValidator().ValidateDateRange(params.DateFrom, params.DateTo); len(errs) > 0 {
		return repositories.AttendanceFilters{}, errs
	}

	limit, offset := pageBounds(params.Page, params.Size)
	filters := repositories.AttendanceFilters{
		StudentID: params.StudentID,
		SubjectID: params.SubjectID,
		DateFrom:  params.DateFrom,
		DateTo:    params.DateTo,
		Limit:     limit,
		Offset:    offset,
		SortBy:    params.SortBy,
		SortOrder: params.SortDir,
	}
	if params.Status != "" {
		status := params.Status
		filters.Status = &status
	}
	return filters, nil
}

func (s *attendanceService) GetByID(ctx context.Context, actor Actor, id uint) (*models.AttendanceRecord, error) {
	record, err := s.repo.Attendance().GetByID(ctx, id)
	if err != nil {
		return nil, notFound(err, ErrAttendanceNotFound)
	}
	if err := s.checkSubjectAccess(ctx, actor, record.SubjectID, "read"); err != nil {
		return nil, err
	}
	return record, nil
}

// checkSubjectAccess lets admins through and teachers only for subjects they teach
func (s *attendanceService) checkSubjectAccess(ctx context.Context, actor Actor, subjectID uint, action string) error {
	if actor.IsAdmin() {
		return nil
	}
	if !actor.IsTeacher() {
		return NewPermissionError(actor.ID, subjectID, "attendance", action, "insufficient role permissions")
	}

	subject, err := s.repo.Subject().GetByID(ctx, subjectID)
	if err != nil {
		return notFound(err, ErrSubjectNotFound)
	}
	if subject.TeacherID == nil || *subject.TeacherID != actor.ID {
		return NewPermissionError(actor.ID, subjectID, "attendance", action, "not the subject's teacher")
	}
	return nil
}

// sessionStart is the scheduled start of the subject's session on date, or nil
// when the subject does not meet that day. Hand-entered attendance is stamped
// with it rather than the time of entry.
func (s *attendanceService) sessionStart(ctx context.Context, subjectID uint, date string) (*time.Time, error) {
	subject, err := s.repo.Subject().GetByID(ctx, subjectID)
	if err != nil {
		return nil, notFound(err, ErrSubjectNotFound)
	}
	day, err := time.ParseInLocation(models.DateLayout, date, s.loc)
	if err != nil {
		return nil, fmt.Errorf("invalid session date %q: %w", date, err)
	}
	session, ok, err := subject.SessionOn(day)
	if err != nil || !ok {
		return nil, err
	}
	start := session.StartsAt
	return &start, nil
}

// Create records attendance by hand, for example an excused absence
func (s *attendanceService) Create(ctx context.Context, actor Actor, req *models.AttendanceCreateRequest) (*models.AttendanceRecord, error) {
	s.logger.InfoContext(ctx, "Creating manual attendance", "actor_id", actor.ID, "student_id", req.StudentID, "subject_id", req.SubjectID)

	today := s.today()
	if errs := s.validator.GetBusinessValidator().ValidateManualAttendance(req, today); len(errs) > 0 {
		return nil, errs
	}
	if err := s.checkSubjectAccess(ctx, actor, req.SubjectID, "create"); err != nil {
		return nil, err
	}

	enrolled, err := s.repo.Subject().IsEnrolled(ctx, req.SubjectID, req.StudentID)
	if err != nil {
		return nil, fmt.Errorf("failed to check enrollment: %w", err)
	}
	if !enrolled {
		return nil, ErrNotEnrolled
	}

	editor := actor.ID
	record := &models.AttendanceRecord{
		StudentID:   req.StudentID,
		SubjectID:   req.SubjectID,
		SessionDate: req.SessionDate,
		Status:      req.Status,
		Method:      models.MethodManual,
		Note:        req.Note,
		EditedBy:    &editor,
	}
	if req.Status.Attended() {
		if record.CheckInAt, err = s.sessionStart(ctx, req.SubjectID, req.SessionDate); err != nil {
			return nil, err
		}
	}

	if err := s.repo.Attendance().Create(ctx, record); err != nil {
		if repositories.IsDuplicateError(err) {
			return nil, ErrAttendanceExists
		}
		return nil, fmt.Errorf("failed to create attendance: %w", err)
	}

	cache.InvalidateStats(ctx, s.cache)
	publishEvent(ctx, s.publisher, s.logger, events.EventAttendanceCreated, events.AttendanceChangedData{
		RecordID:    record.ID,
		StudentID:   record.StudentID,
		SubjectID:   record.SubjectID,
		SessionDate: record.SessionDate,
		NewStatus:   record.Status,
		ChangedBy:   actor.ID,
	})

	s.logger.InfoContext(ctx, "Manual attendance created", "record_id", record.ID)
	return record, nil
}

func (s *attendanceService) Update(ctx context.Context, actor Actor, id uint, req *models.AttendanceUpdateRequest) (*models.AttendanceRecord, error) {
	if err := s.validator.Validate(req); err != nil {
		return nil, err
	}

	record, err := s.repo.Attendance().GetByID(ctx, id)
	if err != nil {
		return nil, notFound(err, ErrAttendanceNotFound)
	}
	if err := s.checkSubjectAccess(ctx, actor, record.SubjectID, "update"); err != nil {
		return nil, err
	}

	oldStatus := record.Status
	if req.Status != nil {
		record.Status = *req.Status
		if record.Status.Attended() && record.CheckInAt == nil {
			if record.CheckInAt, err = s.sessionStart(ctx, record.SubjectID, record.SessionDate); err != nil {
				return nil, err
			}
		}
	}
	if req.Note != nil {
		record.Note = req.Note
	}
	editor := actor.ID
	record.EditedBy = &editor

	if err := s.repo.Attendance().Update(ctx, record); err != nil {
		return nil, fmt.Errorf("failed to update attendance: %w", err)
	}

	cache.InvalidateStats(ctx, s.cache)
	publishEvent(ctx, s.publisher, s.logger, events.EventAttendanceUpdated, events.AttendanceChangedData{
		RecordID:    record.ID,
		StudentID:   record.StudentID,
		SubjectID:   record.SubjectID,
		SessionDate: record.SessionDate,
		OldStatus:   oldStatus,
		NewStatus:   record.Status,
		ChangedBy:   actor.ID,
	})

	s.logger.InfoContext(ctx, "Attendance updated", "record_id", id, "old_status", oldStatus, "new_status", record.Status, "by", actor.ID)
	return record, nil
}

func (s *attendanceService) Delete(ctx context.Context, actor Actor, id uint) error {
	if !actor.IsAdmin() {
		return NewPermissionError(actor.ID, id, "attendance", "delete", "only admins may delete attendance")
	}

	record, err := s.repo.Attendance().GetByID(ctx, id)
	if err != nil {
		return notFound(err, ErrAttendanceNotFound)
	}
	if err := s.repo.Attendance().Delete(ctx, id); err != nil {
		return notFound(err, ErrAttendanceNotFound)
	}

	cache.InvalidateStats(ctx, s.cache)
	publishEvent(ctx, s.publisher, s.logger, events.EventAttendanceDeleted, events.AttendanceChangedData{
		RecordID:    record.ID,
		StudentID:   record.StudentID,
		SubjectID:   record.SubjectID,
		SessionDate: record.SessionDate,
		OldStatus:   record.Status,
		ChangedBy:   actor.ID,
	})

	s.logger.InfoContext(ctx, "Attendance deleted", "record_id", id, "by", actor.ID)
	return nil
}

// History lists the student's own records, newest first by default
func (s *attendanceService) History(ctx context.Context, studentID string, params *models.ListAttendanceParams) (*models.PaginatedResponse, error) {
	filters, err := s.buildFilters(params)
	if err != nil {
		return nil, err
	}
	filters.StudentID = &studentID
	if filters.SortBy == "" {
		filters.SortBy = "session_date"
		filters.SortOrder = "desc"
	}
	return s.list(ctx, filters, params.Page)
}

func (s *attendanceService) Summary(ctx context.Context, studentID string, from, to string) (*models.StudentAttendanceSummary, error) {
	if errs := s.validator.GetBusinessValidator().ValidateDateRange(from, to); len(errs) > 0 {
		return nil, errs
	}

	counts, err := s.repo.Dashboard().CountByStatus(ctx, from, to, nil, &studentID)
	if err != nil {
		return nil, fmt.Errorf("failed to count attendance: %w", err)
	}

	return &models.StudentAttendanceSummary{
		StudentID: studentID,
		Counts:    counts,
		Rate:      counts.Rate(),
	}, nil
}

func (s *attendanceService) today() time.Time {
	y, m, d := s.now().In(s.loc).Date()
	return time.Date(y, m, d, 0, 0, 0, 0, s.loc)
}
