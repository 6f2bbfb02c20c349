package router

import (
	"errors"
	"strings"
	"testing"
	"time"
)

func TestRegisterRejectsDuplicates(t *testing.T) {
	r := New()
	handler := func(map[string]any) (Result, error) { return Result{Message: "ok"}, nil }
	if err := r.Register("ping", handler); err != nil {
		t.Fatalf("register: %v", err)
	}
	err := r.Register("ping", handler)
	if !errors.Is(err, ErrDuplicateCommand) {
		t.Fatalf("expected ErrDuplicateCommand, got %v", err)
	}
}

func TestDispatchUnknownCommandNeverErrors(t *testing.T) {
	r := New()
	response := r.Dispatch("does_not_exist", nil)
	if response.Success {
		t.Fatal("expected failure for unknown command")
	}
	if !strings.Contains(response.Message, "unknown command: does_not_exist") {
		t.Fatalf("message = %q, expected unknown command note", response.Message)
	}
	if response.Timestamp == 0 {
		t.Fatal("expected a stamped timestamp")
	}
}

func TestDispatchSuccess(t *testing.T) {
	r := New()
	if err := r.Register("ping", func(map[string]any) (Result, error) {
		return Result{Message: "pong"}, nil
	}); err != nil {
		t.Fatalf("register: %v", err)
	}
	response := r.Dispatch("ping", nil)
	if !response.Success {
		t.Fatalf("expected success, got %q", response.Message)
	}
	if response.Message != "pong" {
		t.Fatalf("message = %q, want pong", response.Message)
	}
}

func TestDispatchHandlerError(t *testing.T) {
	r := New()
	if err := r.Register("boom", func(map[string]any) (Result, error) {
		return Result{}, errors.New("no session is running")
	}); err != nil {
		t.Fatalf("register: %v", err)
	}
	response := r.Dispatch("boom", nil)
	if response.Success {
		t.Fatal("expected failure")
	}
	if response.Message != "no session is running" {
		t.Fatalf("message = %q, want handler error text", response.Message)
	}
}

func TestDispatchRecoversPanic(t *testing.T) {
	r := New()
	if err := r.Register("panic", func(map[string]any) (Result, error) {
		panic("boom")
	}); err != nil {
		t.Fatalf("register: %v", err)
	}
	response := r.Dispatch("panic", nil)
	if response.Success {
		t.Fatal("expected failure after panic")
	}
	if !strings.Contains(response.Message, "internal error") {
		t.Fatalf("message = %q, expected generic internal error", response.Message)
	}
}

func TestDispatchValidatesSchema(t *testing.T) {
	r := New()
	schema := Schema{
		Required: []string{"task_name"},
		Fields:   map[string]Kind{"task_name": String, "duration": Number},
	}
	if err := r.RegisterWithSchema("start_pomodoro", schema, func(map[string]any) (Result, error) {
		return Result{Message: "started"}, nil
	}); err != nil {
		t.Fatalf("register: %v", err)
	}

	response := r.Dispatch("start_pomodoro", map[string]any{})
	if response.Success {
		t.Fatal("expected failure for missing required field")
	}
	if !strings.Contains(response.Message, "task_name") {
		t.Fatalf("message = %q, expected missing field note", response.Message)
	}

	response = r.Dispatch("start_pomodoro", map[string]any{"task_name": "Study", "duration": "soon"})
	if response.Success {
		t.Fatal("expected failure for wrong field type")
	}
	if !strings.Contains(response.Message, "duration") {
		t.Fatalf("message = %q, expected type violation note", response.Message)
	}

	response = r.Dispatch("start_pomodoro", map[string]any{"task_name": "Study", "duration": float64(25)})
	if !response.Success {
		t.Fatalf("expected success, got %q", response.Message)
	}
}

func TestDispatchTimestampsNeverDecrease(t *testing.T) {
	r := New()
	times := []time.Time{
		time.Unix(100, 0),
		time.Unix(99, 0),
		time.Unix(101, 0),
	}
	idx := 0
	r.now = func() time.Time {
		ts := times[idx]
		if idx < len(times)-1 {
			idx++
		}
		return ts
	}
	if err := r.Register("ping", func(map[string]any) (Result, error) {
		return Result{Message: "pong"}, nil
	}); err != nil {
		t.Fatalf("register: %v", err)
	}

	var previous int64
	for range times {
		response := r.Dispatch("ping", nil)
		if response.Timestamp < previous {
			t.Fatalf("timestamp went backwards: %d after %d", response.Timestamp, previous)
		}
		previous = response.Timestamp
	}
}
