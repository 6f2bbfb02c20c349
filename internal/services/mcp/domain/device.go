package domain

import (
	"context"
	"fmt"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// GetStatisticsInput selects a statistics reporting window.
type GetStatisticsInput struct {
	Type string `json:"type,omitempty" jsonschema:"one of general, daily, weekly, monthly, pomodoro, tasks (default general)"`
}

// UpdateSettingsInput carries executor settings to persist.
type UpdateSettingsInput struct {
	Settings map[string]any `json:"settings" jsonschema:"setting keys and values to store on the device"`
}

// CheckDeviceStatusInput has no parameters.
type CheckDeviceStatusInput struct{}

// GetStatisticsTool defines the MCP tool schema for statistics queries.
func GetStatisticsTool() *mcp.Tool {
	return &mcp.Tool{
		Name:        "get_statistics",
		Description: "Reads productivity statistics from the device",
	}
}

// UpdateSettingsTool defines the MCP tool schema for settings updates.
func UpdateSettingsTool() *mcp.Tool {
	return &mcp.Tool{
		Name:        "update_settings",
		Description: "Persists executor settings on the device",
	}
}

// CheckDeviceStatusTool defines the MCP tool schema for the status probe.
func CheckDeviceStatusTool() *mcp.Tool {
	return &mcp.Tool{
		Name:        "check_device_status",
		Description: "Checks that the device command server is reachable and reports its features",
	}
}

// GetStatisticsHandler forwards a validated statistics query.
func GetStatisticsHandler(client Caller) mcp.ToolHandlerFor[GetStatisticsInput, CommandResult] {
	return func(ctx context.Context, _ *mcp.CallToolRequest, input GetStatisticsInput) (*mcp.CallToolResult, CommandResult, error) {
		statsType := strings.TrimSpace(input.Type)
		if statsType == "" {
			statsType = "general"
		}
		switch statsType {
		case "general", "daily", "weekly", "monthly", "pomodoro", "tasks":
		default:
			return nil, CommandResult{}, fmt.Errorf("type must be one of general, daily, weekly, monthly, pomodoro, tasks; got %q", input.Type)
		}
		return forward(ctx, client, "get_statistics", map[string]any{"type": statsType})
	}
}

// UpdateSettingsHandler forwards validated settings to the device.
func UpdateSettingsHandler(client Caller) mcp.ToolHandlerFor[UpdateSettingsInput, CommandResult] {
	return func(ctx context.Context, _ *mcp.CallToolRequest, input UpdateSettingsInput) (*mcp.CallToolResult, CommandResult, error) {
		if len(input.Settings) == 0 {
			return nil, CommandResult{}, fmt.Errorf("settings must not be empty")
		}
		return forward(ctx, client, "update_settings", input.Settings)
	}
}

// CheckDeviceStatusHandler forwards a status probe.
func CheckDeviceStatusHandler(client Caller) mcp.ToolHandlerFor[CheckDeviceStatusInput, CommandResult] {
	return func(ctx context.Context, _ *mcp.CallToolRequest, _ CheckDeviceStatusInput) (*mcp.CallToolResult, CommandResult, error) {
		return forward(ctx, client, "check_status", nil)
	}
}
