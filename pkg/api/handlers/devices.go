package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/sebmichel83/mydlink-hub/pkg/api/types"
	"github.com/sebmichel83/mydlink-hub/pkg/device"
)

// DevicesHandler handles device CRUD endpoints
type DevicesHandler struct {
	controller device.Controller
}

// NewDevicesHandler creates a new devices handler
func NewDevicesHandler(controller device.Controller) *DevicesHandler {
	return &DevicesHandler{controller: controller}
}

func toDeviceWithState(d *device.Device) types.DeviceWithState {
	return types.DeviceWithState{
		ID:          d.ID,
		Name:        d.Name,
		MAC:         d.MAC,
		Type:        d.Type,
		Protocol:    d.Protocol,
		Model:       d.Model,
		Vendor:      d.Manufacturer,
		StateSchema: d.StateSchema,
	}
}

// writeControllerError maps controller errors to HTTP responses.
func writeControllerError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, device.ErrNotFound):
		c.JSON(http.StatusNotFound, types.ErrorResponse{
			Error:   "not_found",
			Message: "Device not found",
		})
	case errors.Is(err, device.ErrTimeout):
		c.JSON(http.StatusGatewayTimeout, types.ErrorResponse{
			Error:   "timeout",
			Message: "Request timed out waiting for the relay",
		})
	case errors.Is(err, device.ErrNotConnected):
		c.JSON(http.StatusServiceUnavailable, types.ErrorResponse{
			Error:   "not_connected",
			Message: "Device relay session is not established",
		})
	case errors.Is(err, device.ErrValidation):
		c.JSON(http.StatusBadRequest, types.ErrorResponse{
			Error:   "validation_error",
			Message: err.Error(),
		})
	case errors.Is(err, device.ErrConfiguration):
		c.JSON(http.StatusServiceUnavailable, types.ErrorResponse{
			Error:   "configuration_error",
			Message: err.Error(),
		})
	case errors.Is(err, device.ErrUnsupported):
		c.JSON(http.StatusNotImplemented, types.ErrorResponse{
			Error:   "unsupported",
			Message: err.Error(),
		})
	default:
		c.JSON(http.StatusInternalServerError, types.ErrorResponse{
			Error:   "controller_error",
			Message: err.Error(),
		})
	}
}

// ListDevices handles GET /devices
// @Summary      List all devices
// @Description  Returns all smart plugs registered to the mydlink account
// @Tags         devices
// @Produce      json
// @Success      200  {object}  types.ListDevicesResponse
// @Failure      500  {object}  types.ErrorResponse  "Controller error"
// @Router       /devices [get]
func (h *DevicesHandler) ListDevices(c *gin.Context) {
	ctx := c.Request.Context()

	devices, err := h.controller.ListDevices(ctx)
	if err != nil {
		writeControllerError(c, err)
		return
	}

	result := make([]types.DeviceWithState, 0, len(devices))
	for i := range devices {
		dws := toDeviceWithState(&devices[i])

		// State is best effort; a degraded session still lists the device.
		if state, err := h.controller.GetDeviceState(ctx, devices[i].ID); err == nil {
			dws.State = state
		}

		result = append(result, dws)
	}

	c.JSON(http.StatusOK, types.ListDevicesResponse{
		Devices: result,
		Count:   len(result),
	})
}

// GetDevice handles GET /devices/:id
// @Summary      Get device details
// @Description  Returns details for a specific device by its mydlink id
// @Tags         devices
// @Produce      json
// @Param        id   path      string  true  "mydlink device id"
// @Success      200  {object}  types.DeviceResponse
// @Failure      404  {object}  types.ErrorResponse  "Device not found"
// @Failure      500  {object}  types.ErrorResponse  "Controller error"
// @Router       /devices/{id} [get]
func (h *DevicesHandler) GetDevice(c *gin.Context) {
	id := c.Param("id")
	ctx := c.Request.Context()

	d, err := h.controller.GetDevice(ctx, id)
	if err != nil {
		writeControllerError(c, err)
		return
	}

	result := toDeviceWithState(d)
	if state, err := h.controller.GetDeviceState(ctx, d.ID); err == nil {
		result.State = state
	}

	c.JSON(http.StatusOK, types.DeviceResponse{
		Device: result,
	})
}

// RenameDevice handles PATCH /devices/:id
// @Summary      Rename a device
// @Description  Assigns a local name to a device; the cloud record is untouched
// @Tags         devices
// @Accept       json
// @Produce      json
// @Param        id       path      string                     true  "mydlink device id"
// @Param        request  body      types.RenameDeviceRequest  true  "New name"
// @Success      200      {object}  types.DeviceResponse
// @Failure      400      {object}  types.ErrorResponse  "Invalid request"
// @Failure      404      {object}  types.ErrorResponse  "Device not found"
// @Failure      501      {object}  types.ErrorResponse  "No name store configured"
// @Router       /devices/{id} [patch]
func (h *DevicesHandler) RenameDevice(c *gin.Context) {
	id := c.Param("id")
	ctx := c.Request.Context()

	var req types.RenameDeviceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, types.ErrorResponse{
			Error:   "invalid_request",
			Message: "name is required",
		})
		return
	}

	d, err := h.controller.GetDevice(ctx, id)
	if err != nil {
		writeControllerError(c, err)
		return
	}

	if err := h.controller.RenameDevice(ctx, id, req.Name); err != nil {
		writeControllerError(c, err)
		return
	}

	result := toDeviceWithState(d)
	result.Name = req.Name

	c.JSON(http.StatusOK, types.DeviceResponse{
		Device: result,
	})
}

// RemoveDevice handles DELETE /devices/:id
// @Summary      Remove a device
// @Description  Forgets the device locally; it stays registered to the cloud account
// @Tags         devices
// @Produce      json
// @Param        id     path   string  true   "mydlink device id"
// @Param        force  query  bool    false  "Remove even if the device is unknown"
// @Success      204    "Device removed successfully"
// @Failure      404    {object}  types.ErrorResponse  "Device not found"
// @Failure      500    {object}  types.ErrorResponse  "Controller error"
// @Router       /devices/{id} [delete]
func (h *DevicesHandler) RemoveDevice(c *gin.Context) {
	id := c.Param("id")
	ctx := c.Request.Context()

	force := c.Query("force") == "true"

	if !force {
		if _, err := h.controller.GetDevice(ctx, id); err != nil {
			writeControllerError(c, err)
			return
		}
	}

	if err := h.controller.RemoveDevice(ctx, id, force); err != nil {
		writeControllerError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}
