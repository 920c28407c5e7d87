package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/smartpresence/attendance-service/internal/models"
	"github.com/smartpresence/attendance-service/internal/services"
	"github.com/smartpresence/attendance-service/internal/utils"
)

type GPSHandler struct {
	BaseHandler
	service services.GPSService
}

func NewGPSHandler(service services.GPSService, logger utils.Logger) *GPSHandler {
	return &GPSHandler{
		BaseHandler: NewBaseHandler(logger),
		service:     service,
	}
}

// ValidateLocation reports whether the samples fall inside the geofence of a
// subject's room or of a location. Nothing is recorded.
// @Summary Validate location
// @Tags gps
// @Accept json
// @Produce json
// @Param request body models.ValidateLocationRequest true "GPS samples"
// @Success 200 {object} models.LocationValidation
// @Failure 400 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Router /gps/validate-location [post]
func (h *GPSHandler) ValidateLocation(c *gin.Context) {
	var req models.ValidateLocationRequest
	if !h.bindJSON(c, &req) {
		return
	}

	result, err := h.service.ValidateLocation(c.Request.Context(), &req)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}
