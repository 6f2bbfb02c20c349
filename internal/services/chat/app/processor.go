package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/fourquadrant/focusbridge/internal/envelope"
)

const commandPrefix = "/command"

const usageText = "Send \"/command <name> {json args}\" to drive the device, " +
	"for example: /command start_pomodoro {\"task_name\": \"Study\"}"

// Caller executes one device command over the bridge.
type Caller interface {
	Call(ctx context.Context, command string, args map[string]any) (envelope.CommandResponse, error)
}

// CommandProcessor maps /command chat lines onto device bridge calls and
// answers everything else with usage text.
type CommandProcessor struct {
	client Caller
}

// NewCommandProcessor builds a processor over the given bridge client.
func NewCommandProcessor(client Caller) (*CommandProcessor, error) {
	if client == nil {
		return nil, errors.New("bridge client is required")
	}
	return &CommandProcessor{client: client}, nil
}

// Process answers one chat message.
func (p *CommandProcessor) Process(ctx context.Context, message string) (string, error) {
	trimmed := strings.TrimSpace(message)
	if !strings.HasPrefix(trimmed, commandPrefix) {
		return usageText, nil
	}

	rest := strings.TrimSpace(strings.TrimPrefix(trimmed, commandPrefix))
	if rest == "" {
		return usageText, nil
	}

	name := rest
	var args map[string]any
	if idx := strings.IndexAny(rest, " \t"); idx > 0 {
		name = rest[:idx]
		argsText := strings.TrimSpace(rest[idx:])
		if argsText != "" {
			if err := json.Unmarshal([]byte(argsText), &args); err != nil {
				return "", fmt.Errorf("command arguments must be a JSON object: %v", err)
			}
		}
	}

	response, err := p.client.Call(ctx, name, args)
	if err != nil {
		return "", fmt.Errorf("device call failed: %v", err)
	}
	if !response.Success {
		reason := response.Message
		if reason == "" {
			reason = response.Error
		}
		return fmt.Sprintf("command failed: %s", reason), nil
	}

	reply := response.Message
	if len(response.Data) > 0 {
		if data, err := json.Marshal(response.Data); err == nil {
			reply = fmt.Sprintf("%s %s", reply, data)
		}
	}
	return reply, nil
}
