package domain

import (
	"context"
	"fmt"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

const (
	defaultPomodoroMinutes = 25
	minPomodoroMinutes     = 5
	maxPomodoroMinutes     = 60
)

// StartPomodoroInput describes a request to start a focus session.
type StartPomodoroInput struct {
	TaskName string `json:"task_name" jsonschema:"name of the task to focus on"`
	Duration int    `json:"duration,omitempty" jsonschema:"session length in minutes (5-60, default 25)"`
	TaskID   string `json:"task_id,omitempty" jsonschema:"optional identifier of an existing task"`
}

// ControlPomodoroInput drives the running session state machine.
type ControlPomodoroInput struct {
	Action string `json:"action" jsonschema:"one of pause, resume, stop, status"`
	Reason string `json:"reason,omitempty" jsonschema:"optional operator note"`
}

// ManageBreakInput starts or skips a break.
type ManageBreakInput struct {
	Action string `json:"action" jsonschema:"one of start, skip"`
}

// StartPomodoroTool defines the MCP tool schema for starting a session.
func StartPomodoroTool() *mcp.Tool {
	return &mcp.Tool{
		Name:        "start_pomodoro",
		Description: "Starts a pomodoro focus session on the device",
	}
}

// ControlPomodoroTool defines the MCP tool schema for session control.
func ControlPomodoroTool() *mcp.Tool {
	return &mcp.Tool{
		Name:        "control_pomodoro",
		Description: "Pauses, resumes, stops, or inspects the running pomodoro session",
	}
}

// ManageBreakTool defines the MCP tool schema for break management.
func ManageBreakTool() *mcp.Tool {
	return &mcp.Tool{
		Name:        "manage_break",
		Description: "Starts or skips a break between focus sessions",
	}
}

// StartPomodoroHandler forwards a validated session start to the device.
func StartPomodoroHandler(client Caller) mcp.ToolHandlerFor[StartPomodoroInput, CommandResult] {
	return func(ctx context.Context, _ *mcp.CallToolRequest, input StartPomodoroInput) (*mcp.CallToolResult, CommandResult, error) {
		taskName := strings.TrimSpace(input.TaskName)
		if taskName == "" {
			return nil, CommandResult{}, fmt.Errorf("task_name is required")
		}
		duration := input.Duration
		if duration == 0 {
			duration = defaultPomodoroMinutes
		}
		if duration < minPomodoroMinutes || duration > maxPomodoroMinutes {
			return nil, CommandResult{}, fmt.Errorf("duration must be between %d and %d minutes", minPomodoroMinutes, maxPomodoroMinutes)
		}

		args := map[string]any{"task_name": taskName, "duration": duration}
		if taskID := strings.TrimSpace(input.TaskID); taskID != "" {
			args["task_id"] = taskID
		}
		return forward(ctx, client, "start_pomodoro", args)
	}
}

// ControlPomodoroHandler forwards a validated session control action.
func ControlPomodoroHandler(client Caller) mcp.ToolHandlerFor[ControlPomodoroInput, CommandResult] {
	return func(ctx context.Context, _ *mcp.CallToolRequest, input ControlPomodoroInput) (*mcp.CallToolResult, CommandResult, error) {
		action := strings.TrimSpace(input.Action)
		switch action {
		case "pause", "resume", "stop", "status":
		default:
			return nil, CommandResult{}, fmt.Errorf("action must be one of pause, resume, stop, status; got %q", input.Action)
		}

		args := map[string]any{"action": action}
		if reason := strings.TrimSpace(input.Reason); reason != "" {
			args["reason"] = reason
		}
		return forward(ctx, client, "control_pomodoro", args)
	}
}

// ManageBreakHandler forwards a validated break action.
func ManageBreakHandler(client Caller) mcp.ToolHandlerFor[ManageBreakInput, CommandResult] {
	return func(ctx context.Context, _ *mcp.CallToolRequest, input ManageBreakInput) (*mcp.CallToolResult, CommandResult, error) {
		action := strings.TrimSpace(input.Action)
		if action != "start" && action != "skip" {
			return nil, CommandResult{}, fmt.Errorf("action must be one of start, skip; got %q", input.Action)
		}
		return forward(ctx, client, "manage_break", map[string]any{"action": action})
	}
}
