package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/smartpresence/attendance-service/internal/models"
	"github.com/smartpresence/attendance-service/internal/services"
	"github.com/smartpresence/attendance-service/internal/utils"
)

type UserHandler struct {
	BaseHandler
	service services.UserService
}

func NewUserHandler(service services.UserService, logger utils.Logger) *UserHandler {
	return &UserHandler{
		BaseHandler: NewBaseHandler(logger),
		service:     service,
	}
}

// ListUsers lists users with optional filtering
// @Summary List users
// @Tags users
// @Produce json
// @Param page query int false "Zero-based page (default: 0)"
// @Param size query int false "Page size (default: 20, max: 100)"
// @Param q query string false "Search by username or name"
// @Param role query string false "student, teacher or admin"
// @Param is_active query bool false "Filter by active flag"
// @Success 200 {object} models.PaginatedResponse
// @Router /users [get]
func (h *UserHandler) ListUsers(c *gin.Context) {
	h.LogRequest(c, "Listing users")

	params := &models.ListUsersParams{
		Page:     h.parseIntQuery(c, "page", 0),
		Size:     h.parseIntQuery(c, "size", 20),
		Role:     models.UserRole(c.Query("role")),
		Search:   c.Query("q"),
		IsActive: h.parseBoolQueryPtr(c, "is_active"),
		SortBy:   c.Query("sort_by"),
		SortDir:  c.Query("sort_dir"),
	}

	users, err := h.service.List(c.Request.Context(), params)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, users)
}

// GetUser retrieves a user by ID
// @Summary Get user
// @Tags users
// @Produce json
// @Param id path string true "User ID"
// @Success 200 {object} models.User
// @Failure 404 {object} ErrorResponse
// @Router /users/{id} [get]
func (h *UserHandler) GetUser(c *gin.Context) {
	id := h.parseStringIDParam(c, "id")
	if id == "" {
		return
	}

	user, err := h.service.GetByID(c.Request.Context(), id)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, user)
}

// CreateUser creates an account with an initial password the user must change
// @Summary Create user
// @Tags users
// @Accept json
// @Produce json
// @Param user body models.UserCreateRequest true "User data"
// @Success 201 {object} models.User
// @Failure 400 {object} ErrorResponse
// @Failure 409 {object} ErrorResponse
// @Router /users [post]
func (h *UserHandler) CreateUser(c *gin.Context) {
	var req models.UserCreateRequest
	if !h.bindJSON(c, &req) {
		return
	}

	user, err := h.service.Create(c.Request.Context(), &req)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusCreated, user)
}

// UpdateUser applies a partial update
// @Summary Update user
// @Tags users
// @Accept json
// @Produce json
// @Param id path string true "User ID"
// @Param user body models.UserUpdateRequest true "Fields to change"
// @Success 200 {object} models.User
// @Router /users/{id} [put]
func (h *UserHandler) UpdateUser(c *gin.Context) {
	id := h.parseStringIDParam(c, "id")
	if id == "" {
		return
	}

	var req models.UserUpdateRequest
	if !h.bindJSON(c, &req) {
		return
	}

	h.LogRequest(c, "Updating user", "user_id", id)

	user, err := h.service.Update(c.Request.Context(), id, &req)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, user)
}

// DeactivateUser disables the account; its attendance history is kept
// @Summary Deactivate user
// @Tags users
// @Param id path string true "User ID"
// @Success 200 {object} SuccessResponse
// @Router /users/{id} [delete]
func (h *UserHandler) DeactivateUser(c *gin.Context) {
	actor, ok := h.actor(c)
	if !ok {
		return
	}
	id := h.parseStringIDParam(c, "id")
	if id == "" {
		return
	}

	if err := h.service.Deactivate(c.Request.Context(), actor, id); err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, SuccessResponse{Message: "User deactivated"})
}

// ResetPassword sets a new password and forces a change on next login
// @Summary Reset password
// @Tags users
// @Accept json
// @Param id path string true "User ID"
// @Param request body models.ResetPasswordRequest true "New password"
// @Success 200 {object} SuccessResponse
// @Router /users/{id}/reset-password [post]
func (h *UserHandler) ResetPassword(c *gin.Context) {
	id := h.parseStringIDParam(c, "id")
	if id == "" {
		return
	}

	var req models.ResetPasswordRequest
	if !h.bindJSON(c, &req) {
		return
	}

	if err := h.service.ResetPassword(c.Request.Context(), id, &req); err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, SuccessResponse{Message: "Password reset"})
}
