package services

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/smartpresence/attendance-service/internal/config"
	"github.com/smartpresence/attendance-service/internal/models"
	"github.com/smartpresence/attendance-service/internal/repositories"
	"github.com/smartpresence/attendance-service/internal/validator"
	"golang.org/x/crypto/bcrypt"
)

// passwordCost is lowered by tests
var passwordCost = bcrypt.DefaultCost

// HashPassword returns the bcrypt hash of password
func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), passwordCost)
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}
	return string(hash), nil
}

func checkPassword(hash, password string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}

type authService struct {
	repo      repositories.Repository
	sso       repositories.SSOProvider
	logger    *slog.Logger
	validator *validator.Validator
	jwt       config.JWTConfig
	now       Clock
}

// NewAuthService creates an auth service; sso may be nil when single sign-on is not configured
func NewAuthService(repo repositories.Repository, sso repositories.SSOProvider, logger *slog.Logger, validator *validator.Validator, jwtCfg config.JWTConfig, clock Clock) AuthService {
	if clock == nil {
		clock = time.Now
	}
	return &authService{
		repo:      repo,
		sso:       sso,
		logger:    logger,
		validator: validator,
		jwt:       jwtCfg,
		now:       clock,
	}
}

func (s *authService) Login(ctx context.Context, req *models.LoginRequest) (*models.LoginResponse, error) {
	if err := s.validator.Validate(req); err != nil {
		return nil, err
	}

	user, err := s.repo.User().GetByLogin(ctx, strings.TrimSpace(req.Username))
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("failed to load user: %w", err)
	}

	if !checkPassword(user.PasswordHash, req.Password) {
		s.logger.WarnContext(ctx, "Login failed", "user_id", user.ID, "reason", "wrong password")
		return nil, ErrInvalidCredentials
	}
	if !user.IsActive {
		return nil, ErrUserInactive
	}

	return s.completeLogin(ctx, user)
}

func (s *authService) LoginWithSSO(ctx context.Context, req *models.SSOLoginRequest) (*models.LoginResponse, error) {
	if s.sso == nil {
		return nil, ErrSSODisabled
	}
	if err := s.validator.Validate(req); err != nil {
		return nil, err
	}

	identity, err := s.sso.VerifyToken(ctx, req.Token)
	if err != nil {
		s.logger.WarnContext(ctx, "SSO token rejected", "error", err)
		return nil, ErrInvalidToken
	}

	user, err := s.linkSSOUser(ctx, identity)
	if err != nil {
		return nil, err
	}
	if !user.IsActive {
		return nil, ErrUserInactive
	}

	return s.completeLogin(ctx, user)
}

// linkSSOUser finds the local user for identity, linking by email or provisioning a new account
func (s *authService) linkSSOUser(ctx context.Context, identity *repositories.SSOIdentity) (*models.User, error) {
	user, err := s.repo.User().GetByExternalID(ctx, identity.ExternalID)
	if err == nil {
		return user, nil
	}
	if !repositories.IsNotFoundError(err) {
		return nil, fmt.Errorf("failed to look up sso user: %w", err)
	}

	user, err = s.repo.User().GetByEmail(ctx, identity.Email)
	switch {
	case err == nil:
		externalID := identity.ExternalID
		if err := s.repo.User().UpdateFields(ctx, user.ID, map[string]interface{}{"external_id": externalID}); err != nil {
			return nil, fmt.Errorf("failed to link sso user: %w", err)
		}
		user.ExternalID = &externalID
		s.logger.InfoContext(ctx, "Linked SSO identity", "user_id", user.ID)
		return user, nil
	case !repositories.IsNotFoundError(err):
		return nil, fmt.Errorf("failed to look up user by email: %w", err)
	}

	username, err := s.availableUsername(ctx, identity.Username)
	if err != nil {
		return nil, err
	}
	// SSO accounts never log in with a local password
	hash, err := HashPassword(uuid.NewString())
	if err != nil {
		return nil, err
	}

	externalID := identity.ExternalID
	role := identity.Role
	if !role.Valid() {
		role = models.RoleStudent
	}
	user = &models.User{
		ID:           uuid.NewString(),
		Username:     username,
		FullName:     identity.FullName,
		Email:        identity.Email,
		Role:         role,
		PasswordHash: hash,
		ExternalID:   &externalID,
		IsActive:     true,
	}
	if user.FullName == "" {
		user.FullName = username
	}
	if err := s.repo.User().Create(ctx, user); err != nil {
		return nil, fmt.Errorf("failed to provision sso user: %w", err)
	}

	s.logger.InfoContext(ctx, "Provisioned SSO user", "user_id", user.ID, "role", user.Role)
	return user, nil
}

func (s *authService) availableUsername(ctx context.Context, base string) (string, error) {
	base = strings.ToLower(strings.TrimSpace(base))
	if base == "" {
		base = "user"
	}
	candidate := base
	for i := 0; i < 5; i++ {
		exists, err := s.repo.User().ExistsByUsername(ctx, candidate)
		if err != nil {
			return "", fmt.Errorf("failed to check username: %w", err)
		}
		if !exists {
			return candidate, nil
		}
		candidate = base + uuid.NewString()[:6]
	}
	return "", ErrUsernameTaken
}

func (s *authService) completeLogin(ctx context.Context, user *models.User) (*models.LoginResponse, error) {
	token, expiresAt, err := s.IssueToken(user)
	if err != nil {
		return nil, err
	}

	now := s.now()
	if err := s.repo.User().UpdateFields(ctx, user.ID, map[string]interface{}{"last_login_at": now}); err != nil {
		s.logger.WarnContext(ctx, "Failed to record last login", "user_id", user.ID, "error", err)
	}
	user.LastLoginAt = &now

	s.logger.InfoContext(ctx, "User logged in", "user_id", user.ID, "role", user.Role)
	return &models.LoginResponse{Token: token, ExpiresAt: expiresAt, User: user}, nil
}

func (s *authService) IssueToken(user *models.User) (string, time.Time, error) {
	now := s.now()
	expiresAt := now.Add(s.jwt.TTL)

	claims := TokenClaims{
		Username: user.Username,
		Email:    user.Email,
		Role:     user.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    s.jwt.Issuer,
			Subject:   user.ID,
			ID:        uuid.NewString(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(s.jwt.Secret))
	if err != nil {
		return "", time.Time{}, fmt.Errorf("failed to sign token: %w", err)
	}
	return token, expiresAt, nil
}

func (s *authService) ParseToken(token string) (*TokenClaims, error) {
	claims := &TokenClaims{}
	parsed, err := jwt.ParseWithClaims(strings.TrimPrefix(token, "Bearer "), claims,
		func(t *jwt.Token) (interface{}, error) {
			return []byte(s.jwt.Secret), nil
		},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(s.jwt.Issuer),
		jwt.WithTimeFunc(s.now),
		jwt.WithExpirationRequired(),
	)
	if err != nil || !parsed.Valid {
		return nil, ErrInvalidToken
	}
	if claims.Subject == "" || !claims.Role.Valid() {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

func (s *authService) ChangePassword(ctx context.Context, userID string, req *models.ChangePasswordRequest) error {
	if errs := s.validator.GetBusinessValidator().ValidatePasswordChange(req); len(errs) > 0 {
		return errs
	}

	user, err := s.repo.User().GetByID(ctx, userID)
	if err != nil {
		return notFound(err, ErrUserNotFound)
	}
	if !checkPassword(user.PasswordHash, req.CurrentPassword) {
		return ErrWrongPassword
	}

	hash, err := HashPassword(req.NewPassword)
	if err != nil {
		return err
	}
	err = s.repo.User().UpdateFields(ctx, userID, map[string]interface{}{
		"password_hash":        hash,
		"must_change_password": false,
	})
	if err != nil {
		return fmt.Errorf("failed to update password: %w", err)
	}

	s.logger.InfoContext(ctx, "Password changed", "user_id", userID)
	return nil
}

func (s *authService) Me(ctx context.Context, userID string) (*models.User, error) {
	user, err := s.repo.User().GetByID(ctx, userID)
	if err != nil {
		return nil, notFound(err, ErrUserNotFound)
	}
	if !user.IsActive {
		return nil, ErrUserInactive
	}
	return user, nil
}
