package casdoor

import (
	"context"
	"errors"
	"testing"

	"github.com/casdoor/casdoor-go-sdk/casdoorsdk"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/smartpresence/attendance-service/internal/models"
)

func TestRoleFromUser(t *testing.T) {
	tests := []struct {
		name string
		user casdoorsdk.User
		want models.UserRole
	}{
		{"no roles", casdoorsdk.User{}, models.RoleStudent},
		{"teacher role", casdoorsdk.User{Roles: []*casdoorsdk.Role{{Name: "Lecturer"}}}, models.RoleTeacher},
		{"admin flag", casdoorsdk.User{IsAdmin: true}, models.RoleAdmin},
		{"admin beats teacher", casdoorsdk.User{Roles: []*casdoorsdk.Role{{Name: "teacher"}, {Name: "administrator"}}}, models.RoleAdmin},
		{"type field", casdoorsdk.User{Type: "instructor"}, models.RoleTeacher},
		{"unknown role", casdoorsdk.User{Roles: []*casdoorsdk.Role{{Name: "guest"}, nil}}, models.RoleStudent},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, roleFromUser(&tt.user))
		})
	}
}

func TestVerifyToken(t *testing.T) {
	ctx := context.Background()

	s := &SSOCasdoor{parse: func(token string) (*casdoorsdk.Claims, error) {
		if token != "good" {
			return nil, errors.New("signature mismatch")
		}
		return &casdoorsdk.Claims{User: casdoorsdk.User{
			Id:    "ext-1",
			Name:  "alice",
			Email: "Alice@Campus.EDU",
		}}, nil
	}}

	identity, err := s.VerifyToken(ctx, "Bearer good")
	require.NoError(t, err)
	assert.Equal(t, "ext-1", identity.ExternalID)
	assert.Equal(t, "alice@campus.edu", identity.Email)
	assert.Equal(t, "alice", identity.FullName)
	assert.Equal(t, models.RoleStudent, identity.Role)

	_, err = s.VerifyToken(ctx, "bad")
	assert.ErrorIs(t, err, ErrInvalidToken)

	_, err = s.VerifyToken(ctx, "  ")
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestVerifyToken_MissingEmail(t *testing.T) {
	s := &SSOCasdoor{parse: func(string) (*casdoorsdk.Claims, error) {
		return &casdoorsdk.Claims{User: casdoorsdk.User{Id: "ext-2"}}, nil
	}}

	_, err := s.VerifyToken(context.Background(), "t")
	assert.ErrorIs(t, err, ErrInvalidToken)
}
