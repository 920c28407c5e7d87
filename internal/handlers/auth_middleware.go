package handlers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/smartpresence/attendance-service/internal/models"
	"github.com/smartpresence/attendance-service/internal/services"
)

// Context keys set by AuthMiddleware
const (
	ctxUserID    = "user_id"
	ctxUserRole  = "user_role"
	ctxUserEmail = "user_email"
	ctxUsername  = "username"
)

// TokenVerifier verifies access tokens and loads the current state of their user
type TokenVerifier interface {
	ParseToken(token string) (*services.TokenClaims, error)
	Me(ctx context.Context, userID string) (*models.User, error)
}

// JWTAuthMiddleware authenticates requests with the service's own access tokens
type JWTAuthMiddleware struct {
	tokens TokenVerifier
}

func NewJWTAuthMiddleware(tokens TokenVerifier) *JWTAuthMiddleware {
	return &JWTAuthMiddleware{tokens: tokens}
}

// AuthMiddleware rejects requests without a valid bearer token
func (m *JWTAuthMiddleware) AuthMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			abortUnauthorized(c, "authorization header missing")
			return
		}

		tokenParts := strings.Fields(authHeader)
		if len(tokenParts) != 2 || !strings.EqualFold(tokenParts[0], "bearer") {
			abortUnauthorized(c, "invalid authorization header format")
			return
		}

		claims, err := m.tokens.ParseToken(tokenParts[1])
		if err != nil {
			abortUnauthorized(c, "invalid or expired token")
			return
		}

		// Role and active flag come from the database so deactivation and
		// role changes apply before the token expires
		user, err := m.tokens.Me(c.Request.Context(), claims.Subject)
		switch {
		case errors.Is(err, services.ErrUserInactive):
			c.AbortWithStatusJSON(http.StatusForbidden, ErrorResponse{
				Message: "user account is inactive",
				Code:    "USER_INACTIVE",
			})
			return
		case errors.Is(err, services.ErrUserNotFound):
			abortUnauthorized(c, "invalid or expired token")
			return
		case err != nil:
			c.AbortWithStatusJSON(http.StatusInternalServerError, ErrorResponse{
				Message: "Internal server error",
				Code:    CodeInternal,
			})
			return
		}

		c.Set(ctxUserID, user.ID)
		c.Set(ctxUserRole, user.Role)
		c.Set(ctxUserEmail, user.Email)
		c.Set(ctxUsername, user.Username)

		c.Next()
	}
}

// RequireRoleMiddleware lets admins and the listed roles through
func (m *JWTAuthMiddleware) RequireRoleMiddleware(requiredRoles ...models.UserRole) gin.HandlerFunc {
	return func(c *gin.Context) {
		role, err := GetUserRoleFromContext(c)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusForbidden, ErrorResponse{
				Message: "user role not found in context",
				Code:    CodeForbidden,
			})
			return
		}

		for _, requiredRole := range requiredRoles {
			if role == requiredRole || role == models.RoleAdmin {
				c.Next()
				return
			}
		}

		c.AbortWithStatusJSON(http.StatusForbidden, ErrorResponse{
			Message: fmt.Sprintf("insufficient permissions, required role: %v", requiredRoles),
			Code:    CodeForbidden,
		})
	}
}

func abortUnauthorized(c *gin.Context, message string) {
	c.AbortWithStatusJSON(http.StatusUnauthorized, ErrorResponse{
		Message: message,
		Code:    CodeUnauthorized,
	})
}

// GetUserIDFromContext extracts user ID from Gin context
func GetUserIDFromContext(c *gin.Context) (string, error) {
	userID, exists := c.Get(ctxUserID)
	if !exists {
		return "", fmt.Errorf("user ID not found in context")
	}

	id, ok := userID.(string)
	if !ok || id == "" {
		return "", fmt.Errorf("invalid user ID type in context")
	}

	return id, nil
}

// GetUserRoleFromContext extracts user role from Gin context
func GetUserRoleFromContext(c *gin.Context) (models.UserRole, error) {
	userRole, exists := c.Get(ctxUserRole)
	if !exists {
		return "", fmt.Errorf("user role not found in context")
	}

	role, ok := userRole.(models.UserRole)
	if !ok {
		return "", fmt.Errorf("invalid user role type in context")
	}

	return role, nil
}
