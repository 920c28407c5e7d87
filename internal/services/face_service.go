package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/smartpresence/attendance-service/internal/cache"
	"github.com/smartpresence/attendance-service/internal/config"
	"github.com/smartpresence/attendance-service/internal/events"
	"github.com/smartpresence/attendance-service/internal/face"
	"github.com/smartpresence/attendance-service/internal/models"
	"github.com/smartpresence/attendance-service/internal/repositories"
	"github.com/smartpresence/attendance-service/internal/validator"
)

type faceService struct {
	repo           repositories.Repository
	logger         *slog.Logger
	validator      *validator.Validator
	matcher        *face.Matcher
	descriptors    *cache.DescriptorCache
	publisher      events.EventPublisher
	maxDescriptors int
}

// NewFaceService creates the face service; descriptors may be nil to always read from the repository
func NewFaceService(repo repositories.Repository, logger *slog.Logger, validator *validator.Validator, cfg config.FaceConfig, descriptors *cache.DescriptorCache, publisher events.EventPublisher) FaceService {
	maxDescriptors := cfg.MaxDescriptorsPerUser
	if maxDescriptors <= 0 {
		maxDescriptors = 5
	}
	return &faceService{
		repo:           repo,
		logger:         logger,
		validator:      validator,
		matcher:        face.NewMatcher(cfg.MatchThreshold),
		descriptors:    descriptors,
		publisher:      publisher,
		maxDescriptors: maxDescriptors,
	}
}

// Register stores a descriptor for the actor, or for req.UserID when the actor is an admin
func (s *faceService) Register(ctx context.Context, actor Actor, req *models.FaceRegisterRequest) (*models.FaceRegisterResponse, error) {
	if err := s.validator.Validate(req); err != nil {
		return nil, err
	}

	userID := actor.ID
	if req.UserID != nil && *req.UserID != actor.ID {
		if !actor.IsAdmin() {
			return nil, NewPermissionError(actor.ID, 0, "face", "register", "only admins may enroll other users")
		}
		userID = *req.UserID
	}

	descriptor, err := models.NewFaceDescriptor(userID, req.Descriptor, req.Label)
	if err != nil {
		return nil, err
	}

	var count int64
	err = s.repo.WithTransaction(ctx, func(tx repositories.Repository) error {
		// The row lock serialises concurrent registrations for one user so
		// the count below stays accurate until commit
		user, err := tx.User().LockByID(ctx, userID)
		if err != nil {
			return notFound(err, ErrUserNotFound)
		}

		existing, err := tx.Face().CountByUser(ctx, userID)
		if err != nil {
			return fmt.Errorf("failed to count descriptors: %w", err)
		}
		if int(existing) >= s.maxDescriptors {
			return ErrTooManyDescriptors
		}

		if err := tx.Face().Create(ctx, descriptor); err != nil {
			return fmt.Errorf("failed to store descriptor: %w", err)
		}
		if !user.FaceEnrolled {
			if err := tx.User().UpdateFields(ctx, userID, map[string]interface{}{"face_enrolled": true}); err != nil {
				return fmt.Errorf("failed to mark user enrolled: %w", err)
			}
		}
		count = existing + 1
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.invalidate(userID)
	publishEvent(ctx, s.publisher, s.logger, events.EventFaceRegistered, events.FaceChangedData{
		UserID:          userID,
		DescriptorCount: int(count),
	})

	s.logger.InfoContext(ctx, "Face descriptor registered", "user_id", userID, "descriptor_id", descriptor.ID, "count", count)
	return &models.FaceRegisterResponse{DescriptorID: descriptor.ID, DescriptorCount: int(count)}, nil
}

// Recognize compares descriptor with the user's own enrolled descriptors
func (s *faceService) Recognize(ctx context.Context, userID string, descriptor []float64) (*models.FaceMatchResult, error) {
	if err := s.validator.Var(descriptor, "required,face_descriptor"); err != nil {
		return nil, err
	}

	candidates, err := s.userCandidates(ctx, userID)
	if err != nil {
		return nil, err
	}
	if len(candidates) == 0 {
		return nil, ErrFaceNotEnrolled
	}

	match, err := s.matcher.BestMatch(descriptor, candidates)
	if err != nil {
		if errors.Is(err, face.ErrNoCandidates) {
			return nil, ErrFaceNotEnrolled
		}
		return nil, fmt.Errorf("face match failed: %w", err)
	}

	return s.result(match), nil
}

// Identify searches every enrolled user for the closest descriptor
func (s *faceService) Identify(ctx context.Context, descriptor []float64) (*models.FaceMatchResult, error) {
	if err := s.validator.Var(descriptor, "required,face_descriptor"); err != nil {
		return nil, err
	}

	candidates, err := s.allCandidates(ctx)
	if err != nil {
		return nil, err
	}

	match, err := s.matcher.BestMatch(descriptor, candidates)
	if err != nil {
		if errors.Is(err, face.ErrNoCandidates) {
			return &models.FaceMatchResult{Threshold: s.matcher.Threshold()}, nil
		}
		return nil, fmt.Errorf("face match failed: %w", err)
	}

	result := s.result(match)
	if !result.Matched {
		result.UserID = ""
	}
	return result, nil
}

// Delete removes every descriptor of the user and clears the enrolled flag
func (s *faceService) Delete(ctx context.Context, userID string) (int64, error) {
	if _, err := s.repo.User().GetByID(ctx, userID); err != nil {
		return 0, notFound(err, ErrUserNotFound)
	}

	var removed int64
	err := s.repo.WithTransaction(ctx, func(tx repositories.Repository) error {
		n, err := tx.Face().DeleteByUser(ctx, userID)
		if err != nil {
			return fmt.Errorf("failed to delete descriptors: %w", err)
		}
		removed = n
		return tx.User().UpdateFields(ctx, userID, map[string]interface{}{"face_enrolled": false})
	})
	if err != nil {
		return 0, err
	}

	s.invalidate(userID)
	publishEvent(ctx, s.publisher, s.logger, events.EventFaceDeleted, events.FaceChangedData{UserID: userID})

	s.logger.InfoContext(ctx, "Face descriptors deleted", "user_id", userID, "removed", removed)
	return removed, nil
}

func (s *faceService) result(match face.Match) *models.FaceMatchResult {
	return &models.FaceMatchResult{
		UserID:     match.UserID,
		Matched:    match.Matched,
		Distance:   match.Distance,
		Confidence: match.Confidence,
		Threshold:  s.matcher.Threshold(),
	}
}

func (s *faceService) userCandidates(ctx context.Context, userID string) ([]face.Candidate, error) {
	if s.descriptors != nil {
		if candidates, ok := s.descriptors.Get(userID); ok {
			return candidates, nil
		}
	}

	stored, err := s.repo.Face().ListByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to load descriptors: %w", err)
	}
	candidates := s.toCandidates(ctx, stored)

	if s.descriptors != nil {
		s.descriptors.Set(userID, candidates)
	}
	return candidates, nil
}

func (s *faceService) allCandidates(ctx context.Context) ([]face.Candidate, error) {
	if s.descriptors != nil {
		if candidates, ok := s.descriptors.GetAll(); ok {
			return candidates, nil
		}
	}

	stored, err := s.repo.Face().ListAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load descriptors: %w", err)
	}
	candidates := s.toCandidates(ctx, stored)

	if s.descriptors != nil {
		s.descriptors.SetAll(candidates)
	}
	return candidates, nil
}

// toCandidates decodes stored vectors, skipping rows that no longer decode
func (s *faceService) toCandidates(ctx context.Context, stored []*models.FaceDescriptor) []face.Candidate {
	candidates := make([]face.Candidate, 0, len(stored))
	for _, d := range stored {
		values, err := d.Values()
		if err != nil {
			s.logger.WarnContext(ctx, "Skipping unreadable face descriptor", "descriptor_id", d.ID, "error", err)
			continue
		}
		candidates = append(candidates, face.Candidate{UserID: d.UserID, DescriptorID: d.ID, Values: values})
	}
	return candidates
}

func (s *faceService) invalidate(userID string) {
	if s.descriptors != nil {
		s.descriptors.Invalidate(userID)
	}
}
