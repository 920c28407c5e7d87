package casdoor

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/casdoor/casdoor-go-sdk/casdoorsdk"

	"github.com/smartpresence/attendance-service/internal/config"
	"github.com/smartpresence/attendance-service/internal/models"
	"github.com/smartpresence/attendance-service/internal/repositories"
)

var ErrInvalidToken = errors.New("invalid SSO token")

// SSOCasdoor verifies Casdoor-issued JWTs and maps their user onto a local identity
type SSOCasdoor struct {
	parse func(token string) (*casdoorsdk.Claims, error)
}

func NewSSOCasdoor(cfg config.CasdoorConfig) repositories.SSOProvider {
	client := casdoorsdk.NewClient(
		cfg.Endpoint,
		cfg.ClientID,
		cfg.ClientSecret,
		cfg.Cert,
		cfg.Organization,
		cfg.Application,
	)

	return &SSOCasdoor{parse: client.ParseJwtToken}
}

func (s *SSOCasdoor) VerifyToken(ctx context.Context, token string) (*repositories.SSOIdentity, error) {
	token = strings.TrimSpace(strings.TrimPrefix(token, "Bearer "))
	if token == "" {
		return nil, ErrInvalidToken
	}

	claims, err := s.parse(token)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	identity := identityFromUser(&claims.User)
	if identity.ExternalID == "" || identity.Email == "" {
		return nil, fmt.Errorf("%w: token has no user id or email", ErrInvalidToken)
	}

	return identity, nil
}

// identityFromUser converts Casdoor user to internal identity
func identityFromUser(u *casdoorsdk.User) *repositories.SSOIdentity {
	fullName := u.DisplayName
	if fullName == "" {
		fullName = u.Name
	}

	return &repositories.SSOIdentity{
		ExternalID: u.Id,
		Username:   u.Name,
		Email:      strings.ToLower(u.Email),
		FullName:   fullName,
		Role:       roleFromUser(u),
	}
}

// roleFromUser picks the strongest mapped role; admin wins, student is the default
func roleFromUser(u *casdoorsdk.User) models.UserRole {
	var roles []models.UserRole
	for _, r := range u.Roles {
		if r == nil {
			continue
		}
		roles = append(roles, mapRole(r.Name))
	}
	if u.Type != "" {
		roles = append(roles, mapRole(u.Type))
	}

	if u.IsAdmin || slices.Contains(roles, models.RoleAdmin) {
		return models.RoleAdmin
	}
	if slices.Contains(roles, models.RoleTeacher) {
		return models.RoleTeacher
	}
	return models.RoleStudent
}

func mapRole(name string) models.UserRole {
	switch strings.ToLower(name) {
	case "teacher", "instructor", "lecturer":
		return models.RoleTeacher
	case "admin", "administrator":
		return models.RoleAdmin
	default:
		return models.RoleStudent
	}
}
