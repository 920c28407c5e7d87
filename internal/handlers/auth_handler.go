package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/smartpresence/attendance-service/internal/models"
	"github.com/smartpresence/attendance-service/internal/services"
	"github.com/smartpresence/attendance-service/internal/utils"
)

type AuthHandler struct {
	BaseHandler
	service services.AuthService
}

func NewAuthHandler(service services.AuthService, logger utils.Logger) *AuthHandler {
	return &AuthHandler{
		BaseHandler: NewBaseHandler(logger),
		service:     service,
	}
}

// Login exchanges a username or email and password for an access token
// @Summary Log in
// @Tags auth
// @Accept json
// @Produce json
// @Param credentials body models.LoginRequest true "Credentials"
// @Success 200 {object} models.LoginResponse
// @Failure 401 {object} ErrorResponse
// @Failure 403 {object} ErrorResponse "Account inactive"
// @Router /auth/login [post]
func (h *AuthHandler) Login(c *gin.Context) {
	var req models.LoginRequest
	if !h.bindJSON(c, &req) {
		return
	}

	h.LogRequest(c, "Login attempt", "username", req.Username)

	resp, err := h.service.Login(c.Request.Context(), &req)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

// LoginWithSSO exchanges a Casdoor access token for a local access token
// @Summary Log in with single sign-on
// @Tags auth
// @Accept json
// @Produce json
// @Param token body models.SSOLoginRequest true "Casdoor token"
// @Success 200 {object} models.LoginResponse
// @Failure 401 {object} ErrorResponse
// @Failure 501 {object} ErrorResponse "SSO not configured"
// @Router /auth/sso [post]
func (h *AuthHandler) LoginWithSSO(c *gin.Context) {
	var req models.SSOLoginRequest
	if !h.bindJSON(c, &req) {
		return
	}

	resp, err := h.service.LoginWithSSO(c.Request.Context(), &req)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

// Me returns the authenticated user
// @Summary Current user
// @Tags auth
// @Produce json
// @Success 200 {object} models.User
// @Failure 401 {object} ErrorResponse
// @Router /auth/me [get]
func (h *AuthHandler) Me(c *gin.Context) {
	actor, ok := h.actor(c)
	if !ok {
		return
	}

	user, err := h.service.Me(c.Request.Context(), actor.ID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, user)
}

// ChangePassword replaces the caller's password
// @Summary Change password
// @Tags auth
// @Accept json
// @Produce json
// @Param request body models.ChangePasswordRequest true "Passwords"
// @Success 200 {object} SuccessResponse
// @Failure 400 {object} ErrorResponse
// @Router /auth/change-password [post]
func (h *AuthHandler) ChangePassword(c *gin.Context) {
	actor, ok := h.actor(c)
	if !ok {
		return
	}

	var req models.ChangePasswordRequest
	if !h.bindJSON(c, &req) {
		return
	}

	h.LogRequest(c, "Changing password", "user_id", actor.ID)

	if err := h.service.ChangePassword(c.Request.Context(), actor.ID, &req); err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, SuccessResponse{Message: "Password changed successfully"})
}
