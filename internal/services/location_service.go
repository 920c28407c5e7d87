package services

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/smartpresence/attendance-service/internal/models"
	"github.com/smartpresence/attendance-service/internal/repositories"
	"github.com/smartpresence/attendance-service/internal/validator"
)

type locationService struct {
	repo      repositories.Repository
	logger    *slog.Logger
	validator *validator.Validator
}

func NewLocationService(repo repositories.Repository, logger *slog.Logger, validator *validator.Validator) LocationService {
	return &locationService{
		repo:      repo,
		logger:    logger,
		validator: validator,
	}
}

func (s *locationService) Create(ctx context.Context, req *models.LocationCreateRequest) (*models.Location, error) {
	if err := s.validator.Validate(req); err != nil {
		return nil, err
	}

	location := &models.Location{
		Name:         req.Name,
		Building:     req.Building,
		Latitude:     req.Latitude,
		Longitude:    req.Longitude,
		RadiusMeters: req.RadiusMeters,
	}
	if err := s.repo.Location().Create(ctx, location); err != nil {
		if repositories.IsDuplicateError(err) {
			return nil, ErrLocationNameTaken
		}
		return nil, fmt.Errorf("failed to create location: %w", err)
	}

	s.logger.InfoContext(ctx, "Location created", "location_id", location.ID, "name", location.Name)
	return location, nil
}

func (s *locationService) GetByID(ctx context.Context, id uint) (*models.Location, error) {
	location, err := s.repo.Location().GetByID(ctx, id)
	if err != nil {
		return nil, notFound(err, ErrLocationNotFound)
	}
	return location, nil
}

func (s *locationService) Update(ctx context.Context, id uint, req *models.LocationUpdateRequest) (*models.Location, error) {
	if err := s.validator.Validate(req); err != nil {
		return nil, err
	}

	location, err := s.repo.Location().GetByID(ctx, id)
	if err != nil {
		return nil, notFound(err, ErrLocationNotFound)
	}

	if req.Name != nil {
		location.Name = *req.Name
	}
	if req.Building != nil {
		location.Building = req.Building
	}
	if req.Latitude != nil {
		location.Latitude = *req.Latitude
	}
	if req.Longitude != nil {
		location.Longitude = *req.Longitude
	}
	if req.RadiusMeters != nil {
		location.RadiusMeters = *req.RadiusMeters
	}

	if err := s.repo.Location().Update(ctx, location); err != nil {
		if repositories.IsDuplicateError(err) {
			return nil, ErrLocationNameTaken
		}
		return nil, fmt.Errorf("failed to update location: %w", err)
	}

	s.logger.InfoContext(ctx, "Location updated", "location_id", id)
	return location, nil
}

// Delete refuses while any subject is held in the location
func (s *locationService) Delete(ctx context.Context, id uint) error {
	if _, err := s.repo.Location().GetByID(ctx, id); err != nil {
		return notFound(err, ErrLocationNotFound)
	}

	inUse, err := s.repo.Location().CountSubjects(ctx, id)
	if err != nil {
		return fmt.Errorf("failed to count subjects: %w", err)
	}
	if inUse > 0 {
		return ErrLocationInUse
	}

	if err := s.repo.Location().Delete(ctx, id); err != nil {
		return notFound(err, ErrLocationNotFound)
	}

	s.logger.InfoContext(ctx, "Location deleted", "location_id", id)
	return nil
}

func (s *locationService) List(ctx context.Context) ([]*models.Location, error) {
	locations, err := s.repo.Location().List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list locations: %w", err)
	}
	return locations, nil
}
