package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/sebmichel83/mydlink-hub/pkg/api/types"
	"github.com/sebmichel83/mydlink-hub/pkg/device"
	"github.com/sebmichel83/mydlink-hub/pkg/device/schema"
)

// ControlHandler handles device state control endpoints
type ControlHandler struct {
	controller device.Controller
	validator  *schema.Validator
}

// NewControlHandler creates a new control handler
func NewControlHandler(controller device.Controller, validator *schema.Validator) *ControlHandler {
	return &ControlHandler{controller: controller, validator: validator}
}

// GetState handles GET /devices/:id/state
// @Summary      Get device state
// @Description  Returns the current switch state, power reading, and availability
// @Tags         devices
// @Produce      json
// @Param        id   path      string  true  "mydlink device id"
// @Success      200  {object}  types.StateResponse
// @Failure      404  {object}  types.ErrorResponse  "Device not found"
// @Failure      500  {object}  types.ErrorResponse  "Device error"
// @Router       /devices/{id}/state [get]
func (h *ControlHandler) GetState(c *gin.Context) {
	id := c.Param("id")
	ctx := c.Request.Context()

	d, err := h.controller.GetDevice(ctx, id)
	if err != nil {
		writeControllerError(c, err)
		return
	}

	state, err := h.controller.GetDeviceState(ctx, d.ID)
	if err != nil {
		writeControllerError(c, err)
		return
	}

	c.JSON(http.StatusOK, types.StateResponse{
		Device:    d.ID,
		State:     state,
		Timestamp: time.Now(),
	})
}

// SetState handles POST /devices/:id/state
// @Summary      Set device state
// @Description  Switches the plug using a JSON object validated against the device's schema
// @Tags         devices
// @Accept       json
// @Produce      json
// @Param        id       path      string  true  "mydlink device id"
// @Param        request  body      object  true  "State to set, e.g. {\"state\": \"ON\"}"
// @Success      200      {object}  types.StateResponse
// @Failure      400      {object}  types.ErrorResponse  "Invalid request"
// @Failure      404      {object}  types.ErrorResponse  "Device not found"
// @Failure      503      {object}  types.ErrorResponse  "Relay session not established"
// @Failure      504      {object}  types.ErrorResponse  "Relay timed out"
// @Router       /devices/{id}/state [post]
func (h *ControlHandler) SetState(c *gin.Context) {
	id := c.Param("id")
	ctx := c.Request.Context()

	var req map[string]any
	if err := json.NewDecoder(c.Request.Body).Decode(&req); err != nil {
		c.JSON(http.StatusBadRequest, types.ErrorResponse{
			Error:   "invalid_request",
			Message: "Invalid request body",
		})
		return
	}

	d, err := h.controller.GetDevice(ctx, id)
	if err != nil {
		writeControllerError(c, err)
		return
	}

	// Validate against device schema
	if err := h.validator.Validate(d.StateSchema, req); err != nil {
		c.JSON(http.StatusBadRequest, types.ErrorResponse{
			Error:   "validation_error",
			Message: err.Error(),
		})
		return
	}

	state, err := h.controller.SetDeviceState(ctx, d.ID, req)
	if err != nil {
		// Relay timeouts surface from the signal agent session.
		if errors.Is(err, device.ErrTimeout) {
			c.JSON(http.StatusGatewayTimeout, types.ErrorResponse{
				Error:   "timeout",
				Message: "Relay did not confirm the command in time",
			})
			return
		}
		writeControllerError(c, err)
		return
	}

	c.JSON(http.StatusOK, types.StateResponse{
		Device:    d.ID,
		State:     state,
		Timestamp: time.Now(),
	})
}
