package mcp

import "github.com/mark3labs/mcp-go/mcp"

// registerTools registers all MCP tools with the server
func (s *Server) registerTools() {
	// Health check
	s.mcpServer.AddTool(
		mcp.NewTool("get_health",
			mcp.WithDescription("Check the health of the hub and its mydlink cloud session"),
		),
		s.handleGetHealth,
	)

	// List devices
	s.mcpServer.AddTool(
		mcp.NewTool("list_devices",
			mcp.WithDescription("List all smart plugs on the mydlink account with their current state"),
		),
		s.handleListDevices,
	)

	// Get device
	s.mcpServer.AddTool(
		mcp.NewTool("get_device",
			mcp.WithDescription("Get detailed information about a specific plug by its mydlink id"),
			mcp.WithString("id",
				mcp.Required(),
				mcp.Description("mydlink device id"),
			),
		),
		s.handleGetDevice,
	)

	// Rename device
	s.mcpServer.AddTool(
		mcp.NewTool("rename_device",
			mcp.WithDescription("Assign a local name to a plug; the mydlink cloud record is not changed"),
			mcp.WithString("id",
				mcp.Required(),
				mcp.Description("mydlink device id"),
			),
			mcp.WithString("new_name",
				mcp.Required(),
				mcp.Description("New local name for the device"),
			),
		),
		s.handleRenameDevice,
	)

	// Remove device
	s.mcpServer.AddTool(
		mcp.NewTool("remove_device",
			mcp.WithDescription("Forget a plug locally; it stays registered to the mydlink account"),
			mcp.WithString("id",
				mcp.Required(),
				mcp.Description("mydlink device id"),
			),
			mcp.WithBoolean("force",
				mcp.Description("Remove even if the device is unknown (default false)"),
			),
		),
		s.handleRemoveDevice,
	)

	// Get device state
	s.mcpServer.AddTool(
		mcp.NewTool("get_device_state",
			mcp.WithDescription("Get the current switch state, power draw in watts, and availability of a plug"),
			mcp.WithString("id",
				mcp.Required(),
				mcp.Description("mydlink device id"),
			),
		),
		s.handleGetDeviceState,
	)

	// Set device state
	s.mcpServer.AddTool(
		mcp.NewTool("set_device_state",
			mcp.WithDescription("Set plug state. Pass {\"state\": \"ON\"} or {\"state\": \"OFF\"}, validated against the device's schema."),
			mcp.WithString("id",
				mcp.Required(),
				mcp.Description("mydlink device id"),
			),
			mcp.WithObject("state",
				mcp.Required(),
				mcp.Description("State properties to set (e.g. {\"state\": \"ON\"})"),
			),
		),
		s.handleSetDeviceState,
	)

	// Start discovery
	s.mcpServer.AddTool(
		mcp.NewTool("start_discovery",
			mcp.WithDescription("Rescan the mydlink account for newly registered plugs. Pairing itself happens in the mydlink app."),
			mcp.WithNumber("duration_seconds",
				mcp.Description("Scan window in seconds (informational, default 120)"),
			),
		),
		s.handleStartDiscovery,
	)

	// Stop discovery
	s.mcpServer.AddTool(
		mcp.NewTool("stop_discovery",
			mcp.WithDescription("End the scan window"),
		),
		s.handleStopDiscovery,
	)

	// Turn on (convenience)
	s.mcpServer.AddTool(
		mcp.NewTool("turn_on",
			mcp.WithDescription("Turn a plug on"),
			mcp.WithString("id",
				mcp.Required(),
				mcp.Description("mydlink device id"),
			),
		),
		s.handleTurnOn,
	)

	// Turn off (convenience)
	s.mcpServer.AddTool(
		mcp.NewTool("turn_off",
			mcp.WithDescription("Turn a plug off"),
			mcp.WithString("id",
				mcp.Required(),
				mcp.Description("mydlink device id"),
			),
		),
		s.handleTurnOff,
	)

	// Power reading (convenience)
	s.mcpServer.AddTool(
		mcp.NewTool("get_power",
			mcp.WithDescription("Get the current power draw of a plug in watts"),
			mcp.WithString("id",
				mcp.Required(),
				mcp.Description("mydlink device id"),
			),
		),
		s.handleGetPower,
	)
}
