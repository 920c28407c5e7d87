package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/smartpresence/attendance-service/internal/services"
	"github.com/smartpresence/attendance-service/internal/utils"
)

type DashboardHandler struct {
	BaseHandler
	service services.DashboardService
}

func NewDashboardHandler(service services.DashboardService, logger utils.Logger) *DashboardHandler {
	return &DashboardHandler{
		BaseHandler: NewBaseHandler(logger),
		service:     service,
	}
}

// ===== DASHBOARD ENDPOINTS =====

// GetDashboardStats returns overall attendance statistics
// @Summary Get dashboard statistics
// @Description Totals, today's status counts and the daily breakdown over the period
// @Tags dashboard
// @Produce json
// @Param days query int false "Period in days (default: 7)"
// @Success 200 {object} models.DashboardStats
// @Failure 401 {object} ErrorResponse "Unauthorized"
// @Failure 500 {object} ErrorResponse "Internal server error"
// @Router /dashboard/stats [get]
func (h *DashboardHandler) GetDashboardStats(c *gin.Context) {
	h.LogRequest(c, "Getting dashboard stats")

	days := h.parseIntQuery(c, "days", 7)

	stats, err := h.service.GetStats(c.Request.Context(), days)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, stats)
}

// GetSubjectStats returns per-subject attendance rates
// @Summary Get subject statistics
// @Tags dashboard
// @Produce json
// @Param days query int false "Period in days (default: 30)"
// @Param limit query int false "Number of subjects (default: 10)"
// @Success 200 {array} models.SubjectAttendanceStats
// @Router /dashboard/subjects [get]
func (h *DashboardHandler) GetSubjectStats(c *gin.Context) {
	h.LogRequest(c, "Getting subject stats")

	days := h.parseIntQuery(c, "days", 30)
	limit := h.parseIntQuery(c, "limit", 10)
	if limit > 50 {
		limit = 50
	}

	stats, err := h.service.GetSubjectStats(c.Request.Context(), days, limit)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, stats)
}

// GetRecentCheckIns returns the latest check-ins
// @Summary Get recent check-ins
// @Tags dashboard
// @Produce json
// @Param limit query int false "Number of check-ins (default: 10, max: 50)"
// @Success 200 {array} models.RecentCheckIn
// @Router /dashboard/recent [get]
func (h *DashboardHandler) GetRecentCheckIns(c *gin.Context) {
	limit := h.parseIntQuery(c, "limit", 10)
	if limit < 1 {
		limit = 10
	}
	if limit > 50 {
		limit = 50
	}

	checkIns, err := h.service.GetRecentCheckIns(c.Request.Context(), limit)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, checkIns)
}
