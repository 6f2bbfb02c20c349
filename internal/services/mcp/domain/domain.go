// Package domain defines the MCP tool surface that fronts the device
// command bridge. Each tool validates its input locally, forwards one
// command over the bridge client, and reports the device's reply.
package domain

import (
	"context"
	"errors"
	"fmt"

	"github.com/fourquadrant/focusbridge/internal/bridge"
	"github.com/fourquadrant/focusbridge/internal/envelope"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// Caller executes one device command over the bridge.
type Caller interface {
	Call(ctx context.Context, command string, args map[string]any) (envelope.CommandResponse, error)
}

// CommandResult carries the device's reply for a forwarded command.
type CommandResult struct {
	Success bool           `json:"success" jsonschema:"whether the device accepted the command"`
	Message string         `json:"message" jsonschema:"human-readable device reply"`
	Data    map[string]any `json:"data,omitempty" jsonschema:"command-specific payload"`
}

// forward sends one command to the device and maps the outcome. Transport
// faults become tool errors; a device-side refusal is a normal result
// with Success=false.
func forward(ctx context.Context, client Caller, command string, args map[string]any) (*mcp.CallToolResult, CommandResult, error) {
	if client == nil {
		return nil, CommandResult{}, errors.New("bridge client is not configured")
	}
	response, err := client.Call(ctx, command, args)
	if err != nil {
		switch {
		case errors.Is(err, bridge.ErrTimeout):
			return nil, CommandResult{}, fmt.Errorf("device did not answer in time; check that the companion app is in the foreground: %v", err)
		case errors.Is(err, bridge.ErrConnection):
			return nil, CommandResult{}, fmt.Errorf("cannot reach the device; check the host, port, and network: %v", err)
		case errors.Is(err, bridge.ErrProtocol):
			return nil, CommandResult{}, fmt.Errorf("device returned an unexpected reply: %v", err)
		}
		return nil, CommandResult{}, fmt.Errorf("%s failed: %w", command, err)
	}

	result := CommandResult{
		Success: response.Success,
		Message: response.Message,
		Data:    response.Data,
	}
	if !response.Success && result.Message == "" {
		result.Message = response.Error
	}
	return nil, result, nil
}
