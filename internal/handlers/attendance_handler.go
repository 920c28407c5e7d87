package handlers

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/smartpresence/attendance-service/internal/models"
	"github.com/smartpresence/attendance-service/internal/services"
	"github.com/smartpresence/attendance-service/internal/utils"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

type AttendanceHandler struct {
	BaseHandler
	checkIn    services.CheckInService
	attendance services.AttendanceService
	now        func() time.Time
}

func NewAttendanceHandler(checkIn services.CheckInService, attendance services.AttendanceService, logger utils.Logger) *AttendanceHandler {
	return &AttendanceHandler{
		BaseHandler: NewBaseHandler(logger),
		checkIn:     checkIn,
		attendance:  attendance,
		now:         time.Now,
	}
}

// ===== STUDENT ENDPOINTS =====

// CheckIn records the caller's attendance after the GPS and face checks pass
// @Summary Check in
// @Description Validates the time window, enrollment, geofence and face match, then records present or late
// @Tags attendance
// @Accept json
// @Produce json
// @Param request body models.CheckInRequest true "Samples and face descriptor"
// @Success 201 {object} models.CheckInResponse
// @Failure 400 {object} ErrorResponse
// @Failure 409 {object} ErrorResponse "Already checked in"
// @Failure 422 {object} ErrorResponse "Rejected, see code"
// @Router /attendance/check-in [post]
func (h *AttendanceHandler) CheckIn(c *gin.Context) {
	actor, ok := h.actor(c)
	if !ok {
		return
	}

	var req models.CheckInRequest
	if !h.bindJSON(c, &req) {
		return
	}

	h.LogRequest(c, "Check-in attempt", "student_id", actor.ID, "subject_id", req.SubjectID)

	resp, err := h.checkIn.CheckIn(c.Request.Context(), actor.ID, &req)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusCreated, resp)
}

// Status reports today's check-in window and whether the caller already checked in
// @Summary Check-in status
// @Tags attendance
// @Produce json
// @Param subject_id path uint true "Subject ID"
// @Success 200 {object} models.CheckInStatus
// @Router /attendance/status/{subject_id} [get]
func (h *AttendanceHandler) Status(c *gin.Context) {
	actor, ok := h.actor(c)
	if !ok {
		return
	}
	subjectID := h.parseIDParam(c, "subject_id")
	if subjectID == 0 {
		return
	}

	status, err := h.checkIn.Status(c.Request.Context(), actor.ID, subjectID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, status)
}

// MyAttendance returns the caller's history page and, with summary=true, the
// status totals for the same date range
func (h *AttendanceHandler) MyAttendance(c *gin.Context) {
	actor, ok := h.actor(c)
	if !ok {
		return
	}
	params := h.attendanceParams(c)

	if c.Query("summary") == "true" {
		summary, err := h.attendance.Summary(c.Request.Context(), actor.ID, params.DateFrom, params.DateTo)
		if err != nil {
			h.handleServiceError(c, err)
			return
		}
		c.JSON(http.StatusOK, summary)
		return
	}

	history, err := h.attendance.History(c.Request.Context(), actor.ID, params)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, history)
}

// ===== STAFF ENDPOINTS =====

// ListAttendance lists records visible to the caller
// @Summary List attendance
// @Description Teachers see records of their own subjects, admins see all
// @Tags attendance
// @Produce json
// @Param page query int false "Zero-based page"
// @Param size query int false "Page size (default: 20, max: 100)"
// @Param student_id query string false "Student ID"
// @Param subject_id query int false "Subject ID"
// @Param status query string false "present, late, absent or excused"
// @Param date_from query string false "YYYY-MM-DD"
// @Param date_to query string false "YYYY-MM-DD"
// @Success 200 {object} models.PaginatedResponse
// @Router /attendance [get]
func (h *AttendanceHandler) ListAttendance(c *gin.Context) {
	actor, ok := h.actor(c)
	if !ok {
		return
	}

	records, err := h.attendance.List(c.Request.Context(), actor, h.attendanceParams(c))
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, records)
}

// ExportAttendance streams the filtered records as an XLSX workbook
// @Summary Export attendance
// @Tags attendance
// @Produce application/vnd.openxmlformats-officedocument.spreadsheetml.sheet
// @Success 200 {file} file
// @Router /attendance/export [get]
func (h *AttendanceHandler) ExportAttendance(c *gin.Context) {
	actor, ok := h.actor(c)
	if !ok {
		return
	}

	h.LogRequest(c, "Exporting attendance", "user_id", actor.ID)

	data, err := h.attendance.Export(c.Request.Context(), actor, h.attendanceParams(c))
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	filename := fmt.Sprintf("attendance-%s.xlsx", h.now().Format("20060102-150405"))
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	c.Data(http.StatusOK, xlsxContentType, data)
}

func (h *AttendanceHandler) GetAttendance(c *gin.Context) {
	actor, ok := h.actor(c)
	if !ok {
		return
	}
	id := h.parseIDParam(c, "id")
	if id == 0 {
		return
	}

	record, err := h.attendance.GetByID(c.Request.Context(), actor, id)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, record)
}

// CreateAttendance records attendance by hand, e.g. an excused absence
// @Summary Create attendance record
// @Tags attendance
// @Accept json
// @Produce json
// @Param record body models.AttendanceCreateRequest true "Record"
// @Success 201 {object} models.AttendanceRecord
// @Failure 409 {object} ErrorResponse "Record already exists for the session"
// @Router /attendance [post]
func (h *AttendanceHandler) CreateAttendance(c *gin.Context) {
	actor, ok := h.actor(c)
	if !ok {
		return
	}

	var req models.AttendanceCreateRequest
	if !h.bindJSON(c, &req) {
		return
	}

	record, err := h.attendance.Create(c.Request.Context(), actor, &req)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusCreated, record)
}

func (h *AttendanceHandler) UpdateAttendance(c *gin.Context) {
	actor, ok := h.actor(c)
	if !ok {
		return
	}
	id := h.parseIDParam(c, "id")
	if id == 0 {
		return
	}

	var req models.AttendanceUpdateRequest
	if !h.bindJSON(c, &req) {
		return
	}

	h.LogRequest(c, "Updating attendance", "record_id", id)

	record, err := h.attendance.Update(c.Request.Context(), actor, id, &req)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, record)
}

func (h *AttendanceHandler) DeleteAttendance(c *gin.Context) {
	actor, ok := h.actor(c)
	if !ok {
		return
	}
	id := h.parseIDParam(c, "id")
	if id == 0 {
		return
	}

	if err := h.attendance.Delete(c.Request.Context(), actor, id); err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, SuccessResponse{Message: "Attendance record deleted"})
}
