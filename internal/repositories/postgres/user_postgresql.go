package postgres

import (
	"context"
	"fmt"

	"github.com/smartpresence/attendance-service/internal/models"
	"github.com/smartpresence/attendance-service/internal/repositories"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var userSortColumns = map[string]string{
	"created_at": "created_at",
	"full_name":  "full_name",
	"username":   "username",
	"role":       "role",
}

type UserPostgreSQL struct {
	db      *gorm.DB
	helpers *SharedHelpers
}

func NewUserPostgreSQL(db *gorm.DB) repositories.UserRepository {
	return &UserPostgreSQL{db: db, helpers: NewSharedHelpers()}
}

func (u *UserPostgreSQL) Create(ctx context.Context, user *models.User) error {
	return repositories.TranslateError(u.db.WithContext(ctx).Create(user).Error)
}

func (u *UserPostgreSQL) GetByID(ctx context.Context, id string) (*models.User, error) {
	var user models.User
	if err := u.db.WithContext(ctx).Where("id = ?", id).First(&user).Error; err != nil {
		return nil, repositories.TranslateError(err)
	}
	return &user, nil
}

func (u *UserPostgreSQL) LockByID(ctx context.Context, id string) (*models.User, error) {
	var user models.User
	if err := u.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ?", id).
		First(&user).Error; err != nil {
		return nil, repositories.TranslateError(err)
	}
	return &user, nil
}

func (u *UserPostgreSQL) GetByLogin(ctx context.Context, login string) (*models.User, error) {
	var user models.User
	if err := u.db.WithContext(ctx).
		Where("LOWER(username) = LOWER(?) OR LOWER(email) = LOWER(?)", login, login).
		First(&user).Error; err != nil {
		return nil, repositories.TranslateError(err)
	}
	return &user, nil
}

func (u *UserPostgreSQL) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	var user models.User
	if err := u.db.WithContext(ctx).Where("LOWER(email) = LOWER(?)", email).First(&user).Error; err != nil {
		return nil, repositories.TranslateError(err)
	}
	return &user, nil
}

func (u *UserPostgreSQL) GetByExternalID(ctx context.Context, externalID string) (*models.User, error) {
	var user models.User
	if err := u.db.WithContext(ctx).Where("external_id = ?", externalID).First(&user).Error; err != nil {
		return nil, repositories.TranslateError(err)
	}
	return &user, nil
}

func (u *UserPostgreSQL) GetByIDs(ctx context.Context, ids []string) ([]*models.User, error) {
	var users []*models.User
	if len(ids) == 0 {
		return users, nil
	}
	if err := u.db.WithContext(ctx).Where("id IN ?", ids).Find(&users).Error; err != nil {
		return nil, fmt.Errorf("failed to get users: %w", err)
	}
	return users, nil
}

func (u *UserPostgreSQL) Update(ctx context.Context, user *models.User) error {
	return repositories.TranslateError(u.db.WithContext(ctx).Save(user).Error)
}

func (u *UserPostgreSQL) UpdateFields(ctx context.Context, id string, fields map[string]interface{}) error {
	result := u.db.WithContext(ctx).Model(&models.User{}).Where("id = ?", id).Updates(fields)
	if result.Error != nil {
		return repositories.TranslateError(result.Error)
	}
	if result.RowsAffected == 0 {
		return repositories.ErrNotFound
	}
	return nil
}

func (u *UserPostgreSQL) List(ctx context.Context, filters repositories.UserFilters) ([]*models.User, int64, error) {
	var users []*models.User
	var total int64

	query := u.db.WithContext(ctx).Model(&models.User{})
	if filters.Role != nil {
		query = query.Where("role = ?", *filters.Role)
	}
	if filters.IsActive != nil {
		query = query.Where("is_active = ?", *filters.IsActive)
	}
	if filters.Query != "" {
		pattern := u.helpers.LikePattern(filters.Query)
		query = query.Where("username ILIKE ? OR full_name ILIKE ? OR email ILIKE ? OR student_code ILIKE ?",
			pattern, pattern, pattern, pattern)
	}

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count users: %w", err)
	}

	query = u.helpers.ApplyPaginationAndSort(query, userSortColumns, "created_at", filters.SortBy, filters.SortOrder, filters.Limit, filters.Offset)
	if err := query.Find(&users).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to list users: %w", err)
	}

	return users, total, nil
}

func (u *UserPostgreSQL) ExistsByUsername(ctx context.Context, username string) (bool, error) {
	var count int64
	err := u.db.WithContext(ctx).Model(&models.User{}).Where("LOWER(username) = LOWER(?)", username).Count(&count).Error
	return count > 0, err
}

func (u *UserPostgreSQL) ExistsByEmail(ctx context.Context, email string) (bool, error) {
	var count int64
	err := u.db.WithContext(ctx).Model(&models.User{}).Where("LOWER(email) = LOWER(?)", email).Count(&count).Error
	return count > 0, err
}

func (u *UserPostgreSQL) CountByRole(ctx context.Context, role models.UserRole) (int64, error) {
	var count int64
	err := u.db.WithContext(ctx).Model(&models.User{}).
		Where("role = ? AND is_active = ?", role, true).
		Count(&count).Error
	return count, err
}

func (u *UserPostgreSQL) CountFaceEnrolled(ctx context.Context, role models.UserRole) (int64, error) {
	var count int64
	err := u.db.WithContext(ctx).Model(&models.User{}).
		Where("role = ? AND is_active = ? AND face_enrolled = ?", role, true, true).
		Count(&count).Error
	return count, err
}
