package handlers

import (
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/sebmichel83/mydlink-hub/pkg/api/types"
	"github.com/sebmichel83/mydlink-hub/pkg/device"
)

// DiscoveryHandler handles device discovery endpoints. For mydlink,
// pairing happens in the vendor app; "starting discovery" rescans the
// cloud account for devices that appeared since the last scan.
type DiscoveryHandler struct {
	controller device.Controller
	subscriber device.EventSubscriber
}

// NewDiscoveryHandler creates a new discovery handler
func NewDiscoveryHandler(controller device.Controller, subscriber device.EventSubscriber) *DiscoveryHandler {
	return &DiscoveryHandler{
		controller: controller,
		subscriber: subscriber,
	}
}

// StartDiscovery handles POST /discovery/start
// @Summary      Rescan the account
// @Description  Scans the mydlink account for newly registered devices
// @Tags         discovery
// @Accept       json
// @Produce      json
// @Param        request  body      types.StartDiscoveryRequest  false  "Scan window (informational, default 120 seconds)"
// @Success      200      {object}  types.StartDiscoveryResponse
// @Failure      400      {object}  types.ErrorResponse  "Invalid duration"
// @Failure      503      {object}  types.ErrorResponse  "Account not connected"
// @Router       /discovery/start [post]
func (h *DiscoveryHandler) StartDiscovery(c *gin.Context) {
	ctx := c.Request.Context()

	var req types.StartDiscoveryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		req.DurationSeconds = 120
	}

	if req.DurationSeconds <= 0 {
		req.DurationSeconds = 120
	}

	if req.DurationSeconds > 600 {
		c.JSON(http.StatusBadRequest, types.ErrorResponse{
			Error:   "invalid_duration",
			Message: "Duration cannot exceed 600 seconds",
		})
		return
	}

	if err := h.controller.PermitJoin(ctx, true, req.DurationSeconds); err != nil {
		writeControllerError(c, err)
		return
	}

	expiresAt := time.Now().Add(time.Duration(req.DurationSeconds) * time.Second)

	c.JSON(http.StatusOK, types.StartDiscoveryResponse{
		Status:          "scan_started",
		ExpiresAt:       expiresAt,
		DurationSeconds: req.DurationSeconds,
	})
}

// StopDiscovery handles POST /discovery/stop
// @Summary      Stop discovery
// @Description  Ends the scan window; no-op for mydlink accounts
// @Tags         discovery
// @Produce      json
// @Success      200  {object}  types.StopDiscoveryResponse
// @Failure      500  {object}  types.ErrorResponse  "Controller error"
// @Router       /discovery/stop [post]
func (h *DiscoveryHandler) StopDiscovery(c *gin.Context) {
	ctx := c.Request.Context()

	if err := h.controller.PermitJoin(ctx, false, 0); err != nil {
		writeControllerError(c, err)
		return
	}

	c.JSON(http.StatusOK, types.StopDiscoveryResponse{
		Status: "scan_stopped",
	})
}

// Events handles GET /discovery/events (SSE stream)
// @Summary      Subscribe to device events
// @Description  Server-Sent Events stream of join/leave, state, and availability changes
// @Tags         discovery
// @Produce      text/event-stream
// @Success      200  {string}  string  "SSE event stream"
// @Router       /discovery/events [get]
func (h *DiscoveryHandler) Events(c *gin.Context) {
	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")

	eventChan := h.subscriber.Subscribe()
	defer h.subscriber.Unsubscribe(eventChan)

	sendSSEEvent(c.Writer, "connected", map[string]any{
		"timestamp": time.Now(),
		"message":   "Connected to device event stream",
	})
	c.Writer.Flush()

	clientGone := c.Request.Context().Done()

	// Heartbeat ticker
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-clientGone:
			return

		case event, ok := <-eventChan:
			if !ok {
				return
			}
			sendSSEEvent(c.Writer, event.Type, map[string]any{
				"type":      event.Type,
				"device":    event.Device,
				"timestamp": event.Timestamp,
			})
			c.Writer.Flush()

		case <-ticker.C:
			sendSSEEvent(c.Writer, "heartbeat", map[string]any{
				"timestamp": time.Now(),
			})
			c.Writer.Flush()
		}
	}
}

// sendSSEEvent writes an SSE event to the response
func sendSSEEvent(w io.Writer, eventType string, data any) {
	jsonData, _ := json.Marshal(data)
	io.WriteString(w, "event: "+eventType+"\n")
	io.WriteString(w, "data: "+string(jsonData)+"\n\n")
}
