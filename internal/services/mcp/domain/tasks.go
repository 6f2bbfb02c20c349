package domain

import (
	"context"
	"fmt"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// ManageTasksInput describes a task management request.
type ManageTasksInput struct {
	Action   string         `json:"action" jsonschema:"one of create, update, delete, complete, list"`
	TaskID   string         `json:"task_id,omitempty" jsonschema:"task identifier (required for update, delete, complete)"`
	TaskData map[string]any `json:"task_data,omitempty" jsonschema:"task fields: name, description, importance (1-4), urgency (1-4)"`
}

// ManageTasksTool defines the MCP tool schema for task management.
func ManageTasksTool() *mcp.Tool {
	return &mcp.Tool{
		Name:        "manage_tasks",
		Description: "Creates, updates, deletes, completes, or lists prioritized tasks on the device",
	}
}

// ManageTasksHandler forwards a validated task action to the device.
func ManageTasksHandler(client Caller) mcp.ToolHandlerFor[ManageTasksInput, CommandResult] {
	return func(ctx context.Context, _ *mcp.CallToolRequest, input ManageTasksInput) (*mcp.CallToolResult, CommandResult, error) {
		action := strings.TrimSpace(input.Action)
		switch action {
		case "create", "update", "delete", "complete", "list":
		default:
			return nil, CommandResult{}, fmt.Errorf("action must be one of create, update, delete, complete, list; got %q", input.Action)
		}

		taskID := strings.TrimSpace(input.TaskID)
		switch action {
		case "create":
			if len(input.TaskData) == 0 {
				return nil, CommandResult{}, fmt.Errorf("task_data is required for create")
			}
		case "update":
			if taskID == "" {
				return nil, CommandResult{}, fmt.Errorf("task_id is required for update")
			}
			if len(input.TaskData) == 0 {
				return nil, CommandResult{}, fmt.Errorf("task_data is required for update")
			}
		case "delete", "complete":
			if taskID == "" {
				return nil, CommandResult{}, fmt.Errorf("task_id is required for %s", action)
			}
		}
		if err := validatePriorities(input.TaskData); err != nil {
			return nil, CommandResult{}, err
		}

		args := map[string]any{"action": action}
		if taskID != "" {
			args["task_id"] = taskID
		}
		if len(input.TaskData) > 0 {
			args["task_data"] = input.TaskData
		}
		return forward(ctx, client, "manage_tasks", args)
	}
}

func validatePriorities(taskData map[string]any) error {
	for _, field := range []string{"importance", "urgency"} {
		value, ok := taskData[field]
		if !ok {
			continue
		}
		number, ok := value.(float64)
		if !ok {
			if whole, isInt := value.(int); isInt {
				number = float64(whole)
			} else {
				return fmt.Errorf("%s must be a number between 1 and 4", field)
			}
		}
		if number < 1 || number > 4 || number != float64(int(number)) {
			return fmt.Errorf("%s must be a whole number between 1 and 4", field)
		}
	}
	return nil
}
