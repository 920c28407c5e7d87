package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/smartpresence/attendance-service/internal/cache"
	"github.com/smartpresence/attendance-service/internal/events"
	"github.com/smartpresence/attendance-service/internal/metrics"
	"github.com/smartpresence/attendance-service/internal/models"
	"github.com/smartpresence/attendance-service/internal/repositories"
	"github.com/smartpresence/attendance-service/internal/validator"
)

type checkInService struct {
	repo      repositories.Repository
	logger    *slog.Logger
	validator *validator.Validator
	gps       GPSService
	face      FaceService
	guard     *cache.CheckInGuard
	stats     *cache.CacheManager
	publisher events.EventPublisher
	metrics   *metrics.Metrics
	loc       *time.Location
	now       Clock
}

type CheckInDeps struct {
	GPS       GPSService
	Face      FaceService
	Guard     *cache.CheckInGuard
	Cache     *cache.CacheManager
	Publisher events.EventPublisher
	Metrics   *metrics.Metrics
	Location  *time.Location
	Clock     Clock
}

func NewCheckInService(repo repositories.Repository, logger *slog.Logger, validator *validator.Validator, deps CheckInDeps) CheckInService {
	if deps.Location == nil {
		deps.Location = time.UTC
	}
	if deps.Clock == nil {
		deps.Clock = time.Now
	}
	if deps.Guard == nil {
		deps.Guard = cache.NewCheckInGuard(nil, 0)
	}
	return &checkInService{
		repo:      repo,
		logger:    logger,
		validator: validator,
		gps:       deps.GPS,
		face:      deps.Face,
		guard:     deps.Guard,
		stats:     deps.Cache,
		publisher: deps.Publisher,
		metrics:   deps.Metrics,
		loc:       deps.Location,
		now:       deps.Clock,
	}
}

// CheckIn runs the unified pipeline: time window, duplicate guard, GPS, face, persist.
// It stops at the first failing step.
func (s *checkInService) CheckIn(ctx context.Context, studentID string, req *models.CheckInRequest) (resp *models.CheckInResponse, err error) {
	now := s.now().In(s.loc)
	logger := s.logger.With("student_id", studentID, "subject_id", req.SubjectID)

	defer func() {
		s.observe(ctx, logger, studentID, req.SubjectID, resp, err)
	}()

	if err := s.validator.Validate(req); err != nil {
		return nil, err
	}

	// 1. Time window and enrollment
	subject, session, err := s.openSession(ctx, studentID, req.SubjectID, now)
	if err != nil {
		return nil, err
	}

	// 2. Duplicate guard
	if _, err := s.repo.Attendance().GetBySession(ctx, studentID, subject.ID, session.Date); err == nil {
		return nil, &CheckInError{Err: ErrAlreadyCheckedIn}
	} else if !repositories.IsNotFoundError(err) {
		return nil, fmt.Errorf("failed to check existing attendance: %w", err)
	}

	acquired, err := s.guard.Acquire(ctx, subject.ID, studentID, session.Date)
	if err != nil {
		// The unique index still rejects duplicates
		logger.WarnContext(ctx, "Check-in guard unavailable", "error", err)
		acquired = true
	}
	if !acquired {
		return nil, &CheckInError{Err: ErrAlreadyCheckedIn}
	}
	keepGuard := false
	defer func() {
		if !keepGuard {
			releaseCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 2*time.Second)
			defer cancel()
			if err := s.guard.Release(releaseCtx, subject.ID, studentID, session.Date); err != nil {
				logger.WarnContext(ctx, "Failed to release check-in guard", "error", err)
			}
		}
	}()

	// 3. GPS
	location, err := s.gps.Evaluate(&subject.Location, req.Samples)
	if err != nil {
		return nil, err
	}
	s.metrics.ObserveGPSDistance(location.DistanceMeters)
	if !location.WithinGeofence {
		return nil, &CheckInError{
			Err:      fmt.Errorf("%w: %.0fm from %s (radius %.0fm)", ErrOutsideGeofence, location.DistanceMeters, location.LocationName, location.RadiusMeters),
			Location: location,
		}
	}

	// 4. Face
	match, err := s.face.Recognize(ctx, studentID, req.Descriptor)
	if err != nil {
		if errors.Is(err, ErrFaceNotEnrolled) {
			return nil, &CheckInError{Err: ErrFaceNotEnrolled, Location: location}
		}
		return nil, err
	}
	s.metrics.ObserveFaceDistance(match.Distance)
	if !match.Matched {
		return nil, &CheckInError{Err: ErrFaceMismatch, Location: location, Face: match}
	}

	// 5. Persist
	record := &models.AttendanceRecord{
		StudentID:      studentID,
		SubjectID:      subject.ID,
		SessionDate:    session.Date,
		Status:         session.StatusAt(now),
		Method:         models.MethodUnified,
		CheckInAt:      &now,
		Latitude:       &location.Latitude,
		Longitude:      &location.Longitude,
		AccuracyMeters: &location.Accuracy,
		DistanceMeters: &location.DistanceMeters,
		FaceDistance:   &match.Distance,
	}
	if err := s.repo.Attendance().Create(ctx, record); err != nil {
		if repositories.IsDuplicateError(err) {
			keepGuard = true
			return nil, &CheckInError{Err: ErrAlreadyCheckedIn, Location: location, Face: match}
		}
		return nil, fmt.Errorf("failed to save attendance: %w", err)
	}
	keepGuard = true

	// 6. Notify
	if s.stats != nil {
		cache.InvalidateStats(ctx, s.stats)
	}
	publishEvent(ctx, s.publisher, s.logger, events.EventCheckedIn, events.CheckedInData{
		RecordID:       record.ID,
		StudentID:      studentID,
		SubjectID:      subject.ID,
		SessionDate:    session.Date,
		Status:         record.Status,
		DistanceMeters: location.DistanceMeters,
		FaceDistance:   match.Distance,
	})

	logger.InfoContext(ctx, "Check-in accepted", "record_id", record.ID, "status", record.Status,
		"distance_m", location.DistanceMeters, "face_distance", match.Distance)

	return &models.CheckInResponse{Record: record, Location: location, Face: match}, nil
}

// openSession returns the subject and today's session when check-in is currently open for the student
func (s *checkInService) openSession(ctx context.Context, studentID string, subjectID uint, now time.Time) (*models.Subject, *models.Session, error) {
	// Tokens outlive deactivation
	student, err := s.repo.User().GetByID(ctx, studentID)
	if err != nil {
		return nil, nil, notFound(err, ErrUserNotFound)
	}
	if !student.IsActive {
		return nil, nil, &CheckInError{Err: ErrUserInactive}
	}

	subject, err := s.repo.Subject().GetByID(ctx, subjectID)
	if err != nil {
		return nil, nil, notFound(err, ErrSubjectNotFound)
	}
	if !subject.IsActive {
		return nil, nil, &CheckInError{Err: ErrSubjectInactive}
	}

	session, scheduled, err := subject.SessionOn(now)
	if err != nil {
		return nil, nil, fmt.Errorf("subject %d has an invalid schedule: %w", subject.ID, err)
	}
	if !scheduled {
		return nil, nil, &CheckInError{Err: ErrNotScheduledToday}
	}
	if !session.IsOpen(now) {
		return nil, nil, &CheckInError{Err: fmt.Errorf("%w: opens %s, closes %s", ErrOutsideTimeWindow,
			session.OpensAt.Format(models.ClockLayout), session.EndsAt.Format(models.ClockLayout))}
	}

	enrolled, err := s.repo.Subject().IsEnrolled(ctx, subject.ID, studentID)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to check enrollment: %w", err)
	}
	if !enrolled {
		return nil, nil, &CheckInError{Err: ErrNotEnrolled}
	}

	return subject, session, nil
}

// observe records the outcome metric and publishes rejections
func (s *checkInService) observe(ctx context.Context, logger *slog.Logger, studentID string, subjectID uint, resp *models.CheckInResponse, err error) {
	if err == nil {
		s.metrics.ObserveCheckIn(metrics.OutcomeAccepted, string(resp.Record.Status))
		return
	}

	outcome := checkInOutcome(err)
	s.metrics.ObserveCheckIn(outcome, "")

	var rejection *CheckInError
	if errors.As(err, &rejection) {
		logger.InfoContext(ctx, "Check-in rejected", "reason", rejection.Code(), "error", err)
		publishEvent(ctx, s.publisher, s.logger, events.EventCheckInRejected, events.CheckInRejectedData{
			StudentID: studentID,
			SubjectID: subjectID,
			Reason:    rejection.Code(),
		})
		return
	}
	if outcome == metrics.OutcomeError {
		logger.ErrorContext(ctx, "Check-in failed", "error", err)
	}
}

func checkInOutcome(err error) string {
	var verrs ValidationErrors
	switch {
	case errors.As(err, &verrs), errors.Is(err, ErrTooManySamples):
		return metrics.OutcomeInvalid
	case errors.Is(err, ErrUserInactive):
		return metrics.OutcomeInactive
	case errors.Is(err, ErrOutsideTimeWindow), errors.Is(err, ErrNotScheduledToday), errors.Is(err, ErrSubjectInactive):
		return metrics.OutcomeOutsideWindow
	case errors.Is(err, ErrNotEnrolled):
		return metrics.OutcomeNotEnrolled
	case errors.Is(err, ErrAlreadyCheckedIn):
		return metrics.OutcomeDuplicate
	case errors.Is(err, ErrOutsideGeofence):
		return metrics.OutcomeOutsideGeofence
	case errors.Is(err, ErrFaceNotEnrolled):
		return metrics.OutcomeFaceNotEnrolled
	case errors.Is(err, ErrFaceMismatch):
		return metrics.OutcomeFaceMismatch
	default:
		return metrics.OutcomeError
	}
}

// Status reports today's check-in window for the subject and whether the student already has a record
func (s *checkInService) Status(ctx context.Context, studentID string, subjectID uint) (*models.CheckInStatus, error) {
	now := s.now().In(s.loc)

	subject, err := s.repo.Subject().GetByID(ctx, subjectID)
	if err != nil {
		return nil, notFound(err, ErrSubjectNotFound)
	}

	status := &models.CheckInStatus{
		SubjectID:   subject.ID,
		SessionDate: now.Format(models.DateLayout),
	}

	session, scheduled, err := subject.SessionOn(now)
	if err != nil {
		return nil, fmt.Errorf("subject %d has an invalid schedule: %w", subject.ID, err)
	}
	if scheduled && subject.IsActive {
		status.Scheduled = true
		status.WindowOpen = session.IsOpen(now)
		status.OpensAt = &session.OpensAt
		status.ClosesAt = &session.EndsAt
		status.LateAfter = &session.LateAfter
	}

	record, err := s.repo.Attendance().GetBySession(ctx, studentID, subject.ID, status.SessionDate)
	switch {
	case err == nil:
		status.CheckedIn = record.Status.Attended()
		status.Record = record
	case !repositories.IsNotFoundError(err):
		return nil, fmt.Errorf("failed to load attendance: %w", err)
	}

	return status, nil
}
