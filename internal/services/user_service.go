package services

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"
	"github.com/smartpresence/attendance-service/internal/models"
	"github.com/smartpresence/attendance-service/internal/repositories"
	"github.com/smartpresence/attendance-service/internal/validator"
)

type userService struct {
	repo      repositories.Repository
	logger    *slog.Logger
	validator *validator.Validator
}

func NewUserService(repo repositories.Repository, logger *slog.Logger, validator *validator.Validator) UserService {
	return &userService{
		repo:      repo,
		logger:    logger,
		validator: validator,
	}
}

func (s *userService) Create(ctx context.Context, req *models.UserCreateRequest) (*models.User, error) {
	s.logger.InfoContext(ctx, "Creating user", "username", req.Username, "role", req.Role)

	if err := s.validator.Validate(req); err != nil {
		return nil, err
	}

	username := strings.ToLower(req.Username)
	email := strings.ToLower(req.Email)
	if err := s.checkUnique(ctx, username, email); err != nil {
		return nil, err
	}

	hash, err := HashPassword(req.Password)
	if err != nil {
		return nil, err
	}

	user := &models.User{
		ID:                 uuid.NewString(),
		Username:           username,
		FullName:           req.FullName,
		Email:              email,
		Role:               req.Role,
		StudentCode:        req.StudentCode,
		PasswordHash:       hash,
		MustChangePassword: true,
		IsActive:           true,
	}
	if err := s.repo.User().Create(ctx, user); err != nil {
		if repositories.IsDuplicateError(err) {
			return nil, ErrStudentCodeTaken
		}
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	s.logger.InfoContext(ctx, "User created", "user_id", user.ID)
	return user, nil
}

func (s *userService) checkUnique(ctx context.Context, username, email string) error {
	exists, err := s.repo.User().ExistsByUsername(ctx, username)
	if err != nil {
		return fmt.Errorf("failed to check username: %w", err)
	}
	if exists {
		return ErrUsernameTaken
	}

	exists, err = s.repo.User().ExistsByEmail(ctx, email)
	if err != nil {
		return fmt.Errorf("failed to check email: %w", err)
	}
	if exists {
		return ErrEmailTaken
	}
	return nil
}

func (s *userService) GetByID(ctx context.Context, id string) (*models.User, error) {
	user, err := s.repo.User().GetByID(ctx, id)
	if err != nil {
		return nil, notFound(err, ErrUserNotFound)
	}
	return user, nil
}

func (s *userService) Update(ctx context.Context, id string, req *models.UserUpdateRequest) (*models.User, error) {
	if err := s.validator.Validate(req); err != nil {
		return nil, err
	}

	user, err := s.repo.User().GetByID(ctx, id)
	if err != nil {
		return nil, notFound(err, ErrUserNotFound)
	}

	if req.FullName != nil {
		user.FullName = *req.FullName
	}
	if req.Email != nil {
		email := strings.ToLower(*req.Email)
		if email != user.Email {
			exists, err := s.repo.User().ExistsByEmail(ctx, email)
			if err != nil {
				return nil, fmt.Errorf("failed to check email: %w", err)
			}
			if exists {
				return nil, ErrEmailTaken
			}
			user.Email = email
		}
	}
	if req.Role != nil {
		user.Role = *req.Role
	}
	if req.StudentCode != nil {
		user.StudentCode = req.StudentCode
	}
	if req.IsActive != nil {
		user.IsActive = *req.IsActive
	}

	if err := s.repo.User().Update(ctx, user); err != nil {
		if repositories.IsDuplicateError(err) {
			return nil, ErrStudentCodeTaken
		}
		return nil, fmt.Errorf("failed to update user: %w", err)
	}

	s.logger.InfoContext(ctx, "User updated", "user_id", id)
	return user, nil
}

// Deactivate disables login; attendance history is kept
func (s *userService) Deactivate(ctx context.Context, actor Actor, id string) error {
	if actor.ID == id {
		return ErrCannotDeactivateSelf
	}
	if _, err := s.repo.User().GetByID(ctx, id); err != nil {
		return notFound(err, ErrUserNotFound)
	}

	if err := s.repo.User().UpdateFields(ctx, id, map[string]interface{}{"is_active": false}); err != nil {
		return fmt.Errorf("failed to deactivate user: %w", err)
	}

	s.logger.InfoContext(ctx, "User deactivated", "user_id", id, "by", actor.ID)
	return nil
}

func (s *userService) ResetPassword(ctx context.Context, id string, req *models.ResetPasswordRequest) error {
	if err := s.validator.Validate(req); err != nil {
		return err
	}
	if _, err := s.repo.User().GetByID(ctx, id); err != nil {
		return notFound(err, ErrUserNotFound)
	}

	hash, err := HashPassword(req.NewPassword)
	if err != nil {
		return err
	}
	err = s.repo.User().UpdateFields(ctx, id, map[string]interface{}{
		"password_hash":        hash,
		"must_change_password": true,
	})
	if err != nil {
		return fmt.Errorf("failed to reset password: %w", err)
	}

	s.logger.InfoContext(ctx, "Password reset", "user_id", id)
	return nil
}

func (s *userService) List(ctx context.Context, params *models.ListUsersParams) (*models.PaginatedResponse, error) {
	if err := s.validator.Validate(params); err != nil {
		return nil, err
	}

	limit, offset := pageBounds(params.Page, params.Size)
	filters := repositories.UserFilters{
		Query:     strings.TrimSpace(params.Search),
		IsActive:  params.IsActive,
		Limit:     limit,
		Offset:    offset,
		SortBy:    params.SortBy,
		SortOrder: params.SortDir,
	}
	if params.Role != "" {
		role := params.Role
		filters.Role = &role
	}

	users, total, err := s.repo.User().List(ctx, filters)
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}

	return models.NewPaginatedResponse(users, len(users), total, params.Page, limit), nil
}
