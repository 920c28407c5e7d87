package services

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/smartpresence/attendance-service/internal/config"
	"github.com/smartpresence/attendance-service/internal/geo"
	"github.com/smartpresence/attendance-service/internal/models"
	"github.com/smartpresence/attendance-service/internal/repositories"
	"github.com/smartpresence/attendance-service/internal/validator"
)

type gpsService struct {
	repo       repositories.Repository
	logger     *slog.Logger
	validator  *validator.Validator
	filter     geo.FilterOptions
	maxSamples int
}

func NewGPSService(repo repositories.Repository, logger *slog.Logger, validator *validator.Validator, cfg config.GeoConfig) GPSService {
	return &gpsService{
		repo:      repo,
		logger:    logger,
		validator: validator,
		filter: geo.FilterOptions{
			MaxAccuracy:     cfg.MaxAccuracyMeters,
			OutlierDistance: cfg.OutlierDistanceMeters,
		},
		maxSamples: cfg.MaxSamples,
	}
}

// ValidateLocation resolves the room from the subject or location ID and checks the samples against it
func (s *gpsService) ValidateLocation(ctx context.Context, req *models.ValidateLocationRequest) (*models.LocationValidation, error) {
	if err := s.validator.Validate(req); err != nil {
		return nil, err
	}

	var location *models.Location
	if req.SubjectID != nil {
		subject, err := s.repo.Subject().GetByID(ctx, *req.SubjectID)
		if err != nil {
			return nil, notFound(err, ErrSubjectNotFound)
		}
		location = &subject.Location
	} else {
		loc, err := s.repo.Location().GetByID(ctx, *req.LocationID)
		if err != nil {
			return nil, notFound(err, ErrLocationNotFound)
		}
		location = loc
	}

	return s.Evaluate(location, req.Samples)
}

// Evaluate filters and averages samples and measures the fix against the location's geofence
func (s *gpsService) Evaluate(location *models.Location, samples []models.GPSSample) (*models.LocationValidation, error) {
	if s.maxSamples > 0 && len(samples) > s.maxSamples {
		return nil, fmt.Errorf("%w: got %d, limit %d", ErrTooManySamples, len(samples), s.maxSamples)
	}

	points := make([]geo.Sample, len(samples))
	for i, sample := range samples {
		points[i] = geo.Sample{
			Point:    geo.Point{Latitude: sample.Latitude, Longitude: sample.Longitude},
			Accuracy: sample.Accuracy,
		}
	}

	fix, kept, err := geo.Resolve(points, s.filter)
	if err != nil {
		return nil, err
	}

	fence := geo.Geofence{
		Center: geo.Point{Latitude: location.Latitude, Longitude: location.Longitude},
		Radius: location.RadiusMeters,
	}
	inside, distance := fence.Contains(fix.Point)

	return &models.LocationValidation{
		LocationID:      location.ID,
		LocationName:    location.Name,
		Latitude:        fix.Latitude,
		Longitude:       fix.Longitude,
		Accuracy:        fix.Accuracy,
		Spread:          fix.Spread,
		SamplesReceived: len(samples),
		SamplesAccepted: len(kept),
		DistanceMeters:  distance,
		RadiusMeters:    location.RadiusMeters,
		WithinGeofence:  inside,
	}, nil
}
