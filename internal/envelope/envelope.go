// Package envelope defines the JSON wire contract shared by the bridge
// client and the device command endpoint.
//
// A request carries a command name and an argument bag; a response carries
// a success flag, a human-readable message, an epoch-second timestamp, and
// optional command-specific data. Decoding is deliberately defensive: a
// response without a success field decodes as a failure rather than an
// error, so a misbehaving peer cannot be mistaken for a healthy one.
package envelope

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrEncode reports a request that cannot be serialized.
	ErrEncode = errors.New("encode command request")
	// ErrMalformedRequest reports bytes that do not decode to a command request.
	ErrMalformedRequest = errors.New("malformed command request")
	// ErrMalformedResponse reports bytes that do not decode to a command response.
	ErrMalformedResponse = errors.New("malformed command response")
)

// CommandRequest is one command invocation addressed to the device executor.
type CommandRequest struct {
	Command string         `json:"command"`
	Args    map[string]any `json:"args,omitempty"`
}

// CommandResponse is the executor's reply to a single command.
type CommandResponse struct {
	Success   bool           `json:"success"`
	Message   string         `json:"message"`
	Timestamp int64          `json:"timestamp"`
	Data      map[string]any `json:"data,omitempty"`
	Error     string         `json:"error,omitempty"`
}

// EncodeRequest serializes a command and its argument bag.
func EncodeRequest(command string, args map[string]any) ([]byte, error) {
	if strings.TrimSpace(command) == "" {
		return nil, fmt.Errorf("%w: command is required", ErrEncode)
	}
	payload, err := json.Marshal(CommandRequest{Command: command, Args: args})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrEncode, err)
	}
	return payload, nil
}

// DecodeRequest parses a command request from wire bytes.
func DecodeRequest(data []byte) (CommandRequest, error) {
	var request CommandRequest
	if err := json.Unmarshal(data, &request); err != nil {
		return CommandRequest{}, fmt.Errorf("%w: %v", ErrMalformedRequest, err)
	}
	if strings.TrimSpace(request.Command) == "" {
		return CommandRequest{}, fmt.Errorf("%w: command field is required", ErrMalformedRequest)
	}
	return request, nil
}

// EncodeResponse serializes a command response.
func EncodeResponse(response CommandResponse) ([]byte, error) {
	payload, err := json.Marshal(response)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrEncode, err)
	}
	return payload, nil
}

// DecodeResponse parses a command response from wire bytes.
//
// A body missing the success field decodes to Success=false with a
// synthetic Error instead of failing, so the caller always sees a
// well-formed failure for a half-formed reply.
func DecodeResponse(data []byte) (CommandResponse, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return CommandResponse{}, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}

	var response CommandResponse
	if err := json.Unmarshal(data, &response); err != nil {
		return CommandResponse{}, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}

	if _, ok := fields["success"]; !ok {
		response.Success = false
		if response.Error == "" {
			response.Error = "response missing success field"
		}
	}
	return response, nil
}
