package app

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/fourquadrant/focusbridge/internal/envelope"
)

type fakeCaller struct {
	command  string
	args     map[string]any
	response envelope.CommandResponse
	err      error
}

func (f *fakeCaller) Call(_ context.Context, command string, args map[string]any) (envelope.CommandResponse, error) {
	f.command = command
	f.args = args
	return f.response, f.err
}

func TestProcessNonCommandReturnsUsage(t *testing.T) {
	caller := &fakeCaller{}
	processor, err := NewCommandProcessor(caller)
	if err != nil {
		t.Fatalf("new processor: %v", err)
	}

	for _, message := range []string{"hello there", "/command", "  /command  "} {
		reply, err := processor.Process(context.Background(), message)
		if err != nil {
			t.Fatalf("process %q: %v", message, err)
		}
		if reply != usageText {
			t.Fatalf("reply for %q = %q, want usage text", message, reply)
		}
	}
	if caller.command != "" {
		t.Fatalf("bridge called with %q for non-command input", caller.command)
	}
}

func TestProcessParsesCommandAndArgs(t *testing.T) {
	caller := &fakeCaller{response: envelope.CommandResponse{
		Success: true,
		Message: "Started pomodoro for Study (25 minutes)",
	}}
	processor, err := NewCommandProcessor(caller)
	if err != nil {
		t.Fatalf("new processor: %v", err)
	}

	reply, err := processor.Process(context.Background(), `/command start_pomodoro {"task_name": "Study"}`)
	if err != nil {
		t.Fatalf("process: %v", err)
	}
	if caller.command != "start_pomodoro" {
		t.Fatalf("command = %q", caller.command)
	}
	if caller.args["task_name"] != "Study" {
		t.Fatalf("args = %v", caller.args)
	}
	if reply != "Started pomodoro for Study (25 minutes)" {
		t.Fatalf("reply = %q", reply)
	}
}

func TestProcessAppendsResponseData(t *testing.T) {
	caller := &fakeCaller{response: envelope.CommandResponse{
		Success: true,
		Message: "Status",
		Data:    map[string]any{"state": "running"},
	}}
	processor, _ := NewCommandProcessor(caller)

	reply, err := processor.Process(context.Background(), "/command check_status")
	if err != nil {
		t.Fatalf("process: %v", err)
	}
	if !strings.Contains(reply, "Status") || !strings.Contains(reply, `"state":"running"`) {
		t.Fatalf("reply = %q", reply)
	}
}

func TestProcessRejectsMalformedArgs(t *testing.T) {
	caller := &fakeCaller{}
	processor, _ := NewCommandProcessor(caller)

	_, err := processor.Process(context.Background(), "/command ping {not json")
	if err == nil || !strings.Contains(err.Error(), "JSON object") {
		t.Fatalf("err = %v, expected JSON parse complaint", err)
	}
	if caller.command != "" {
		t.Fatal("bridge should not be called with malformed args")
	}
}

func TestProcessReportsSemanticFailureAsReply(t *testing.T) {
	caller := &fakeCaller{response: envelope.CommandResponse{
		Success: false,
		Message: "A pomodoro session is already running",
		Error:   "A pomodoro session is already running",
	}}
	processor, _ := NewCommandProcessor(caller)

	reply, err := processor.Process(context.Background(), "/command start_pomodoro {\"task_name\": \"x\"}")
	if err != nil {
		t.Fatalf("process: %v", err)
	}
	if !strings.Contains(reply, "command failed") || !strings.Contains(reply, "already running") {
		t.Fatalf("reply = %q", reply)
	}
}

func TestProcessReturnsBridgeErrors(t *testing.T) {
	caller := &fakeCaller{err: errors.New("connect: connection refused")}
	processor, _ := NewCommandProcessor(caller)

	_, err := processor.Process(context.Background(), "/command ping")
	if err == nil || !strings.Contains(err.Error(), "device call failed") {
		t.Fatalf("err = %v", err)
	}
}

func TestNewCommandProcessorRequiresClient(t *testing.T) {
	if _, err := NewCommandProcessor(nil); err == nil {
		t.Fatal("expected error for nil client")
	}
}
