package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/smartpresence/attendance-service/internal/models"
	"github.com/smartpresence/attendance-service/internal/services"
	"github.com/smartpresence/attendance-service/internal/utils"
)

type SubjectHandler struct {
	BaseHandler
	service services.SubjectService
}

func NewSubjectHandler(service services.SubjectService, logger utils.Logger) *SubjectHandler {
	return &SubjectHandler{
		BaseHandler: NewBaseHandler(logger),
		service:     service,
	}
}

// ListSubjects lists subjects with optional filtering
// @Summary List subjects
// @Tags subjects
// @Produce json
// @Param page query int false "Zero-based page"
// @Param size query int false "Page size (default: 20, max: 100)"
// @Param q query string false "Search by code or name"
// @Param teacher_id query string false "Teacher ID"
// @Param day_of_week query int false "0=Sunday .. 6=Saturday"
// @Param is_active query bool false "Active flag"
// @Success 200 {object} models.PaginatedResponse
// @Router /subjects [get]
func (h *SubjectHandler) ListSubjects(c *gin.Context) {
	params := &models.ListSubjectsParams{
		Page:      h.parseIntQuery(c, "page", 0),
		Size:      h.parseIntQuery(c, "size", 20),
		Search:    c.Query("q"),
		TeacherID: h.parseStringQueryPtr(c, "teacher_id"),
		DayOfWeek: h.parseIntQueryPtr(c, "day_of_week"),
		IsActive:  h.parseBoolQueryPtr(c, "is_active"),
		SortBy:    c.Query("sort_by"),
		SortDir:   c.Query("sort_dir"),
	}

	subjects, err := h.service.List(c.Request.Context(), params)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, subjects)
}

func (h *SubjectHandler) GetSubject(c *gin.Context) {
	id := h.parseIDParam(c, "id")
	if id == 0 {
		return
	}

	subject, err := h.service.GetByID(c.Request.Context(), id)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, subject)
}

// CreateSubject creates a weekly subject
// @Summary Create subject
// @Tags subjects
// @Accept json
// @Produce json
// @Param subject body models.SubjectCreateRequest true "Subject data"
// @Success 201 {object} models.Subject
// @Failure 400 {object} ErrorResponse
// @Failure 409 {object} ErrorResponse "Code already used"
// @Router /subjects [post]
func (h *SubjectHandler) CreateSubject(c *gin.Context) {
	var req models.SubjectCreateRequest
	if !h.bindJSON(c, &req) {
		return
	}

	h.LogRequest(c, "Creating subject", "code", req.Code)

	subject, err := h.service.Create(c.Request.Context(), &req)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusCreated, subject)
}

func (h *SubjectHandler) UpdateSubject(c *gin.Context) {
	id := h.parseIDParam(c, "id")
	if id == 0 {
		return
	}

	var req models.SubjectUpdateRequest
	if !h.bindJSON(c, &req) {
		return
	}

	subject, err := h.service.Update(c.Request.Context(), id, &req)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, subject)
}

func (h *SubjectHandler) DeleteSubject(c *gin.Context) {
	id := h.parseIDParam(c, "id")
	if id == 0 {
		return
	}

	if err := h.service.Delete(c.Request.Context(), id); err != nil {
		h.handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, SuccessResponse{Message: "Subject deleted"})
}

// ListStudents returns the students enrolled in a subject
func (h *SubjectHandler) ListStudents(c *gin.Context) {
	id := h.parseIDParam(c, "id")
	if id == 0 {
		return
	}

	students, err := h.service.ListStudents(c.Request.Context(), id)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, students)
}

// EnrollStudents enrolls students; already enrolled ones are skipped
// @Summary Enroll students
// @Tags subjects
// @Accept json
// @Produce json
// @Param id path uint true "Subject ID"
// @Param request body models.EnrollRequest true "Student IDs"
// @Success 200 {object} SuccessResponse
// @Failure 422 {object} ErrorResponse "Some IDs are not students"
// @Router /subjects/{id}/students [post]
func (h *SubjectHandler) EnrollStudents(c *gin.Context) {
	id := h.parseIDParam(c, "id")
	if id == 0 {
		return
	}

	var req models.EnrollRequest
	if !h.bindJSON(c, &req) {
		return
	}

	added, err := h.service.Enroll(c.Request.Context(), id, &req)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, SuccessResponse{
		Message: "Students enrolled",
		Data:    gin.H{"added": added},
	})
}

func (h *SubjectHandler) UnenrollStudent(c *gin.Context) {
	id := h.parseIDParam(c, "id")
	if id == 0 {
		return
	}
	studentID := h.parseStringIDParam(c, "student_id")
	if studentID == "" {
		return
	}

	if err := h.service.Unenroll(c.Request.Context(), id, studentID); err != nil {
		h.handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, SuccessResponse{Message: "Student unenrolled"})
}

// MySubjects returns the caller's sessions scheduled today, or every enrolled
// subject when all=true
func (h *SubjectHandler) MySubjects(c *gin.Context) {
	actor, ok := h.actor(c)
	if !ok {
		return
	}

	if c.Query("all") == "true" {
		subjects, err := h.service.ListForStudent(c.Request.Context(), actor.ID)
		if err != nil {
			h.handleServiceError(c, err)
			return
		}
		c.JSON(http.StatusOK, subjects)
		return
	}

	sessions, err := h.service.TodaySessions(c.Request.Context(), actor.ID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, sessions)
}
