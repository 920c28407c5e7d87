package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/smartpresence/attendance-service/internal/models"
	"github.com/smartpresence/attendance-service/internal/services"
	"github.com/smartpresence/attendance-service/internal/utils"
)

type ErrorResponse = models.ErrorResponse
type SuccessResponse = models.SuccessResponse

// Error codes for failures that are not check-in rejections
const (
	CodeValidationFailed = "VALIDATION_FAILED"
	CodeUnauthorized     = "UNAUTHORIZED"
	CodeForbidden        = "FORBIDDEN"
	CodeNotFound         = "NOT_FOUND"
	CodeConflict         = "CONFLICT"
	CodeInternal         = "INTERNAL_ERROR"
)

// BaseHandler carries the logger and the error mapping shared by every handler
type BaseHandler struct {
	logger utils.Logger
}

func NewBaseHandler(logger utils.Logger) BaseHandler {
	return BaseHandler{logger: logger}
}

func (h *BaseHandler) LogRequest(c *gin.Context, msg string, args ...any) {
	utils.GetLogger(c, h.logger).Info(msg, args...)
}

func (h *BaseHandler) LogError(c *gin.Context, err error, msg string, args ...any) {
	utils.GetLogger(c, h.logger).Error(msg, append(args, "error", err)...)
}

func (h *BaseHandler) RespondWithError(c *gin.Context, status int, message string, err error) {
	resp := ErrorResponse{Message: message}
	if err != nil {
		resp.Details = err.Error()
	}
	c.JSON(status, resp)
}

type errorMapping struct {
	err    error
	status int
	code   string
}

var serviceErrors = []errorMapping{
	{services.ErrInvalidCredentials, http.StatusUnauthorized, CodeUnauthorized},
	{services.ErrInvalidToken, http.StatusUnauthorized, CodeUnauthorized},
	{services.ErrUserInactive, http.StatusForbidden, "USER_INACTIVE"},
	{services.ErrSSODisabled, http.StatusNotImplemented, "SSO_DISABLED"},
	{services.ErrWrongPassword, http.StatusBadRequest, "WRONG_PASSWORD"},

	{services.ErrUsernameTaken, http.StatusConflict, CodeConflict},
	{services.ErrEmailTaken, http.StatusConflict, CodeConflict},
	{services.ErrStudentCodeTaken, http.StatusConflict, CodeConflict},
	{services.ErrLocationNameTaken, http.StatusConflict, CodeConflict},
	{services.ErrLocationInUse, http.StatusConflict, "LOCATION_IN_USE"},
	{services.ErrSubjectCodeTaken, http.StatusConflict, CodeConflict},
	{services.ErrAttendanceExists, http.StatusConflict, CodeConflict},
	{services.ErrTooManyDescriptors, http.StatusConflict, "DESCRIPTOR_LIMIT"},

	{services.ErrCannotDeactivateSelf, http.StatusUnprocessableEntity, "CANNOT_DEACTIVATE_SELF"},
	{services.ErrInvalidTeacher, http.StatusUnprocessableEntity, "INVALID_TEACHER"},
	{services.ErrNotEnrolled, http.StatusUnprocessableEntity, services.CodeNotEnrolled},
	{services.ErrFaceNotEnrolled, http.StatusUnprocessableEntity, services.CodeFaceNotEnrolled},
	{services.ErrTooManySamples, http.StatusBadRequest, "TOO_MANY_SAMPLES"},
}

// handleServiceError maps a service error to a status code and an ErrorResponse
func (h *BaseHandler) handleServiceError(c *gin.Context, err error) {
	var (
		verrs   services.ValidationErrors
		checkIn *services.CheckInError
		perm    *services.PermissionError
		ruleErr *services.BusinessRuleError
	)

	switch {
	case errors.As(err, &verrs):
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Message: "Validation failed",
			Code:    CodeValidationFailed,
			Details: verrs,
		})
		return
	case errors.As(err, &checkIn):
		status := http.StatusUnprocessableEntity
		switch {
		case errors.Is(checkIn.Err, services.ErrAlreadyCheckedIn):
			status = http.StatusConflict
		case errors.Is(checkIn.Err, services.ErrUserInactive):
			status = http.StatusForbidden
		}
		c.JSON(status, ErrorResponse{
			Message: checkIn.Error(),
			Code:    checkIn.Code(),
			Details: gin.H{"location": checkIn.Location, "face": checkIn.Face},
		})
		return
	case errors.As(err, &perm):
		c.JSON(http.StatusForbidden, ErrorResponse{
			Message: "Forbidden",
			Code:    CodeForbidden,
			Details: perm.Reason,
		})
		return
	case errors.As(err, &ruleErr):
		c.JSON(http.StatusUnprocessableEntity, ErrorResponse{
			Message: ruleErr.Message,
			Code:    strings.ToUpper(ruleErr.Rule),
			Details: ruleErr.Context,
		})
		return
	case services.IsNotFound(err):
		c.JSON(http.StatusNotFound, ErrorResponse{
			Message: err.Error(),
			Code:    CodeNotFound,
		})
		return
	}

	for _, m := range serviceErrors {
		if errors.Is(err, m.err) {
			c.JSON(m.status, ErrorResponse{Message: err.Error(), Code: m.code})
			return
		}
	}

	h.LogError(c, err, "Unexpected service error")
	c.JSON(http.StatusInternalServerError, ErrorResponse{
		Message: "Internal server error",
		Code:    CodeInternal,
	})
}

func (h *BaseHandler) parseIDParam(c *gin.Context, param string) uint {
	idStr := c.Param(param)
	id, err := strconv.ParseUint(idStr, 10, 32)
	if err != nil || id == 0 {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Message: "Invalid " + param,
			Code:    CodeValidationFailed,
			Details: "must be a positive integer",
		})
		return 0
	}
	return uint(id)
}

func (h *BaseHandler) parseStringIDParam(c *gin.Context, param string) string {
	idStr := strings.TrimSpace(c.Param(param))
	if idStr == "" {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Message: "Invalid " + param,
			Code:    CodeValidationFailed,
			Details: "ID cannot be empty",
		})
		return ""
	}
	return idStr
}

func (h *BaseHandler) parseIntQuery(c *gin.Context, param string, defaultValue int) int {
	valueStr := c.Query(param)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

func (h *BaseHandler) parseUintQueryPtr(c *gin.Context, param string) *uint {
	valueStr := c.Query(param)
	if valueStr == "" {
		return nil
	}
	value, err := strconv.ParseUint(valueStr, 10, 32)
	if err != nil {
		return nil
	}
	v := uint(value)
	return &v
}

func (h *BaseHandler) parseIntQueryPtr(c *gin.Context, param string) *int {
	valueStr := c.Query(param)
	if valueStr == "" {
		return nil
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return nil
	}
	return &value
}

func (h *BaseHandler) parseBoolQueryPtr(c *gin.Context, param string) *bool {
	valueStr := c.Query(param)
	if valueStr == "" {
		return nil
	}
	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		return nil
	}
	return &value
}

func (h *BaseHandler) parseStringQueryPtr(c *gin.Context, param string) *string {
	value := strings.TrimSpace(c.Query(param))
	if value == "" {
		return nil
	}
	return &value
}

// bindJSON decodes the body and writes a 400 on failure
func (h *BaseHandler) bindJSON(c *gin.Context, dest interface{}) bool {
	if err := c.ShouldBindJSON(dest); err != nil {
		h.RespondWithError(c, http.StatusBadRequest, "Invalid request payload", err)
		return false
	}
	return true
}

// actor returns the authenticated caller set by the auth middleware
func (h *BaseHandler) actor(c *gin.Context) (services.Actor, bool) {
	userID, err := GetUserIDFromContext(c)
	if err != nil {
		c.JSON(http.StatusUnauthorized, ErrorResponse{
			Message: "User not authenticated",
			Code:    CodeUnauthorized,
		})
		return services.Actor{}, false
	}
	role, _ := GetUserRoleFromContext(c)
	return services.Actor{ID: userID, Role: role}, true
}

// attendanceParams reads the shared list filters of the attendance endpoints
func (h *BaseHandler) attendanceParams(c *gin.Context) *models.ListAttendanceParams {
	return &models.ListAttendanceParams{
		Page:      h.parseIntQuery(c, "page", 0),
		Size:      h.parseIntQuery(c, "size", 20),
		StudentID: h.parseStringQueryPtr(c, "student_id"),
		SubjectID: h.parseUintQueryPtr(c, "subject_id"),
		Status:    models.AttendanceStatus(c.Query("status")),
		DateFrom:  c.Query("date_from"),
		DateTo:    c.Query("date_to"),
		SortBy:    c.Query("sort_by"),
		SortDir:   c.Query("sort_dir"),
	}
}
