package postgres

import (
	"context"
	"fmt"

	"github.com/smartpresence/attendance-service/internal/cache"
	"github.com/smartpresence/attendance-service/internal/models"
	"github.com/smartpresence/attendance-service/internal/repositories"
	"gorm.io/gorm"
)

type LocationPostgreSQL struct {
	db           *gorm.DB
	cacheManager *cache.CacheManager
}

func NewLocationPostgreSQL(db *gorm.DB, cacheManager *cache.CacheManager) repositories.LocationRepository {
	return &LocationPostgreSQL{db: db, cacheManager: cacheManager}
}

func (l *LocationPostgreSQL) Create(ctx context.Context, location *models.Location) error {
	if err := l.db.WithContext(ctx).Create(location).Error; err != nil {
		return repositories.TranslateError(err)
	}
	cache.SafeInvalidatePattern(ctx, l.cacheManager.Location, "list:*")
	return nil
}

func (l *LocationPostgreSQL) GetByID(ctx context.Context, id uint) (*models.Location, error) {
	var location models.Location
	err := l.cacheManager.Location.CacheOrExecute(ctx, fmt.Sprintf("id:%d", id), &location, cache.LocationCacheConfig.TTL, func() (interface{}, error) {
		var dbLocation models.Location
		if err := l.db.WithContext(ctx).First(&dbLocation, id).Error; err != nil {
			return nil, repositories.TranslateError(err)
		}
		return &dbLocation, nil
	})
	if err != nil {
		return nil, err
	}
	return &location, nil
}

func (l *LocationPostgreSQL) Update(ctx context.Context, location *models.Location) error {
	if err := l.db.WithContext(ctx).Save(location).Error; err != nil {
		return repositories.TranslateError(err)
	}
	cache.InvalidateLocationCache(ctx, l.cacheManager, location.ID)
	return nil
}

func (l *LocationPostgreSQL) Delete(ctx context.Context, id uint) error {
	result := l.db.WithContext(ctx).Delete(&models.Location{}, id)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return repositories.ErrNotFound
	}
	cache.InvalidateLocationCache(ctx, l.cacheManager, id)
	return nil
}

func (l *LocationPostgreSQL) List(ctx context.Context) ([]*models.Location, error) {
	var locations []*models.Location
	err := l.cacheManager.Location.CacheOrExecute(ctx, "list:all", &locations, cache.LocationCacheConfig.TTL, func() (interface{}, error) {
		var dbLocations []*models.Location
		if err := l.db.WithContext(ctx).Order("name ASC").Find(&dbLocations).Error; err != nil {
			return nil, fmt.Errorf("failed to list locations: %w", err)
		}
		return dbLocations, nil
	})
	return locations, err
}

func (l *LocationPostgreSQL) Count(ctx context.Context) (int64, error) {
	var count int64
	err := l.db.WithContext(ctx).Model(&models.Location{}).Count(&count).Error
	return count, err
}

func (l *LocationPostgreSQL) CountSubjects(ctx context.Context, locationID uint) (int64, error) {
	var count int64
	err := l.db.WithContext(ctx).Model(&models.Subject{}).Where("location_id = ?", locationID).Count(&count).Error
	return count, err
}
