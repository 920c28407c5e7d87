package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/smartpresence/attendance-service/internal/models"
	"github.com/smartpresence/attendance-service/internal/services"
	"github.com/smartpresence/attendance-service/internal/utils"
)

type FaceHandler struct {
	BaseHandler
	service services.FaceService
}

func NewFaceHandler(service services.FaceService, logger utils.Logger) *FaceHandler {
	return &FaceHandler{
		BaseHandler: NewBaseHandler(logger),
		service:     service,
	}
}

// Register stores a face descriptor for the caller, or for user_id when the caller is an admin
// @Summary Register face descriptor
// @Tags face
// @Accept json
// @Produce json
// @Param request body models.FaceRegisterRequest true "128-dimension descriptor"
// @Success 201 {object} models.FaceRegisterResponse
// @Failure 400 {object} ErrorResponse
// @Failure 403 {object} ErrorResponse
// @Failure 409 {object} ErrorResponse "Descriptor limit reached"
// @Router /face/register [post]
func (h *FaceHandler) Register(c *gin.Context) {
	actor, ok := h.actor(c)
	if !ok {
		return
	}

	var req models.FaceRegisterRequest
	if !h.bindJSON(c, &req) {
		return
	}

	h.LogRequest(c, "Registering face descriptor", "user_id", actor.ID)

	resp, err := h.service.Register(c.Request.Context(), actor, &req)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusCreated, resp)
}

// Recognize compares a descriptor against the caller's enrolled faces
// @Summary Verify own face
// @Tags face
// @Accept json
// @Produce json
// @Param request body models.FaceRecognizeRequest true "Probe descriptor"
// @Success 200 {object} models.FaceMatchResult
// @Failure 422 {object} ErrorResponse "No face enrolled"
// @Router /face/recognize [post]
func (h *FaceHandler) Recognize(c *gin.Context) {
	actor, ok := h.actor(c)
	if !ok {
		return
	}

	var req models.FaceRecognizeRequest
	if !h.bindJSON(c, &req) {
		return
	}

	result, err := h.service.Recognize(c.Request.Context(), actor.ID, req.Descriptor)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

// Identify searches every enrolled face for the nearest match
func (h *FaceHandler) Identify(c *gin.Context) {
	var req models.FaceRecognizeRequest
	if !h.bindJSON(c, &req) {
		return
	}

	result, err := h.service.Identify(c.Request.Context(), req.Descriptor)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

func (h *FaceHandler) Delete(c *gin.Context) {
	userID := h.parseStringIDParam(c, "user_id")
	if userID == "" {
		return
	}

	h.LogRequest(c, "Deleting face descriptors", "user_id", userID)

	removed, err := h.service.Delete(c.Request.Context(), userID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, SuccessResponse{
		Message: "Face descriptors deleted",
		Data:    gin.H{"removed": removed},
	})
}
