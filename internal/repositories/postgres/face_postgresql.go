package postgres

import (
	"context"
	"fmt"

	"github.com/smartpresence/attendance-service/internal/models"
	"github.com/smartpresence/attendance-service/internal/repositories"
	"gorm.io/gorm"
)

type FacePostgreSQL struct {
	db *gorm.DB
}

func NewFacePostgreSQL(db *gorm.DB) repositories.FaceRepository {
	return &FacePostgreSQL{db: db}
}

func (f *FacePostgreSQL) Create(ctx context.Context, descriptor *models.FaceDescriptor) error {
	return repositories.TranslateError(f.db.WithContext(ctx).Create(descriptor).Error)
}

func (f *FacePostgreSQL) ListByUser(ctx context.Context, userID string) ([]*models.FaceDescriptor, error) {
	var descriptors []*models.FaceDescriptor
	if err := f.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at ASC").
		Find(&descriptors).Error; err != nil {
		return nil, fmt.Errorf("failed to list descriptors: %w", err)
	}
	return descriptors, nil
}

// ListAll returns descriptors of active users only
func (f *FacePostgreSQL) ListAll(ctx context.Context) ([]*models.FaceDescriptor, error) {
	var descriptors []*models.FaceDescriptor
	if err := f.db.WithContext(ctx).
		Joins("JOIN users ON users.id = face_descriptors.user_id AND users.deleted_at IS NULL AND users.is_active = ?", true).
		Find(&descriptors).Error; err != nil {
		return nil, fmt.Errorf("failed to list descriptors: %w", err)
	}
	return descriptors, nil
}

func (f *FacePostgreSQL) CountByUser(ctx context.Context, userID string) (int64, error) {
	var count int64
	err := f.db.WithContext(ctx).Model(&models.FaceDescriptor{}).Where("user_id = ?", userID).Count(&count).Error
	return count, err
}

func (f *FacePostgreSQL) DeleteByUser(ctx context.Context, userID string) (int64, error) {
	result := f.db.WithContext(ctx).Where("user_id = ?", userID).Delete(&models.FaceDescriptor{})
	return result.RowsAffected, result.Error
}
