package app

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/fourquadrant/focusbridge/internal/envelope"
	"github.com/fourquadrant/focusbridge/internal/services/device/router"
)

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	r := router.New()
	if err := r.RegisterWithSchema("start_pomodoro", router.Schema{
		Required: []string{"task_name"},
		Fields:   map[string]router.Kind{"task_name": router.String, "duration": router.Number},
	}, func(args map[string]any) (router.Result, error) {
		name, _ := args["task_name"].(string)
		duration := 25
		if value, ok := args["duration"].(float64); ok {
			duration = int(value)
		}
		return router.Result{
			Message: "Started pomodoro for " + name + " (25 minutes)",
			Data:    map[string]any{"duration": duration},
		}, nil
	}); err != nil {
		t.Fatalf("register: %v", err)
	}

	server, err := NewServer(Config{HTTPAddr: ":8080"}, r, map[string]bool{"pomodoro_control": true})
	if err != nil {
		t.Fatalf("new server: %v", err)
	}
	ts := httptest.NewServer(server.Handler())
	t.Cleanup(ts.Close)
	return ts
}

func decodeEnvelope(t *testing.T, body io.Reader) envelope.CommandResponse {
	t.Helper()
	payload, err := io.ReadAll(body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	response, err := envelope.DecodeResponse(payload)
	if err != nil {
		t.Fatalf("decode envelope %s: %v", payload, err)
	}
	return response
}

func TestExecuteCommand(t *testing.T) {
	ts := newTestServer(t)

	body := `{"command":"start_pomodoro","args":{"task_name":"Study","duration":25}}`
	resp, err := http.Post(ts.URL+"/api/command/execute", "application/json", strings.NewReader(body))
	if err != nil {
		t.Fatalf("post: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	if got := resp.Header.Get("Content-Type"); got != "application/json; charset=UTF-8" {
		t.Fatalf("content-type = %q", got)
	}
	if got := resp.Header.Get("Access-Control-Allow-Origin"); got != "*" {
		t.Fatalf("allow-origin = %q, want *", got)
	}

	response := decodeEnvelope(t, resp.Body)
	if !response.Success {
		t.Fatalf("expected success, got %q", response.Message)
	}
	if !strings.Contains(response.Message, "Study") || !strings.Contains(response.Message, "25") {
		t.Fatalf("message = %q, expected task name and duration", response.Message)
	}
	if response.Data["duration"] != float64(25) {
		t.Fatalf("duration = %v, want 25", response.Data["duration"])
	}
	if response.Timestamp == 0 {
		t.Fatal("expected stamped timestamp")
	}
}

func TestExecuteUnknownCommandIsHTTP200(t *testing.T) {
	ts := newTestServer(t)

	body := `{"command":"fly_to_moon"}`
	resp, err := http.Post(ts.URL+"/api/command/execute", "application/json", strings.NewReader(body))
	if err != nil {
		t.Fatalf("post: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200 for semantic failure", resp.StatusCode)
	}
	response := decodeEnvelope(t, resp.Body)
	if response.Success {
		t.Fatal("expected success=false")
	}
	if !strings.Contains(response.Message, "unknown command") {
		t.Fatalf("message = %q, expected unknown command note", response.Message)
	}
}

func TestExecuteMalformedBodyIsHTTP400(t *testing.T) {
	ts := newTestServer(t)

	resp, err := http.Post(ts.URL+"/api/command/execute", "application/json", strings.NewReader("{not json"))
	if err != nil {
		t.Fatalf("post: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400 for malformed body", resp.StatusCode)
	}
	response := decodeEnvelope(t, resp.Body)
	if response.Success {
		t.Fatal("expected success=false")
	}
}

func TestUnknownRouteIsHTTP404WithEnvelope(t *testing.T) {
	ts := newTestServer(t)

	resp, err := http.Get(ts.URL + "/api/nope")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", resp.StatusCode)
	}
	response := decodeEnvelope(t, resp.Body)
	if response.Success {
		t.Fatal("expected success=false")
	}
	if !strings.Contains(response.Message, "unknown route") {
		t.Fatalf("message = %q, expected unknown route note", response.Message)
	}
	if strings.Contains(response.Message, "/api/nope") {
		t.Fatalf("message = %q, request path must not be echoed", response.Message)
	}
}

func TestOptionsPreflightOnAnyPath(t *testing.T) {
	ts := newTestServer(t)

	for _, path := range []string{"/api/command/execute", "/api/nope", "/ping"} {
		req, err := http.NewRequest(http.MethodOptions, ts.URL+path, nil)
		if err != nil {
			t.Fatalf("new request: %v", err)
		}
		resp, err := http.DefaultClient.Do(req)
		if err != nil {
			t.Fatalf("options %s: %v", path, err)
		}
		body, _ := io.ReadAll(resp.Body)
		resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			t.Fatalf("options %s status = %d, want 200", path, resp.StatusCode)
		}
		if len(bytes.TrimSpace(body)) != 0 {
			t.Fatalf("options %s body = %q, want empty", path, body)
		}
		if got := resp.Header.Get("Access-Control-Allow-Methods"); got != "GET, POST, OPTIONS" {
			t.Fatalf("allow-methods = %q", got)
		}
		if got := resp.Header.Get("Access-Control-Allow-Headers"); got != "Content-Type, Authorization" {
			t.Fatalf("allow-headers = %q", got)
		}
		if got := resp.Header.Get("Access-Control-Max-Age"); got != "86400" {
			t.Fatalf("max-age = %q", got)
		}
	}
}

func TestPing(t *testing.T) {
	ts := newTestServer(t)

	resp, err := http.Get(ts.URL + "/ping")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	defer resp.Body.Close()

	response := decodeEnvelope(t, resp.Body)
	if !response.Success || response.Message != "pong" {
		t.Fatalf("response = %+v, want pong", response)
	}
}

func TestStatusReportsServerInfo(t *testing.T) {
	ts := newTestServer(t)

	resp, err := http.Get(ts.URL + "/api/status")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	defer resp.Body.Close()

	response := decodeEnvelope(t, resp.Body)
	if !response.Success {
		t.Fatalf("expected success, got %q", response.Message)
	}
	serverInfo, ok := response.Data["server_info"].(map[string]any)
	if !ok {
		t.Fatalf("server_info missing from %v", response.Data)
	}
	if serverInfo["version"] != Version {
		t.Fatalf("version = %v, want %s", serverInfo["version"], Version)
	}
	if serverInfo["port"] != float64(8080) {
		t.Fatalf("port = %v, want 8080", serverInfo["port"])
	}
	features, ok := response.Data["features"].(map[string]any)
	if !ok || features["pomodoro_control"] != true {
		t.Fatalf("features = %v, expected pomodoro_control", response.Data["features"])
	}
	commands, ok := response.Data["commands"].([]any)
	if !ok || len(commands) == 0 {
		t.Fatalf("commands = %v, expected registered command list", response.Data["commands"])
	}
}

func TestIndependentResponsesPerDispatch(t *testing.T) {
	ts := newTestServer(t)

	var responses []envelope.CommandResponse
	for range 3 {
		resp, err := http.Post(ts.URL+"/api/command/execute", "application/json",
			strings.NewReader(`{"command":"start_pomodoro","args":{"task_name":"Study"}}`))
		if err != nil {
			t.Fatalf("post: %v", err)
		}
		responses = append(responses, decodeEnvelope(t, resp.Body))
		resp.Body.Close()
	}

	var previous int64
	for _, response := range responses {
		if response.Timestamp < previous {
			t.Fatalf("timestamp went backwards: %d after %d", response.Timestamp, previous)
		}
		previous = response.Timestamp
	}

	var raw map[string]json.RawMessage
	payload, _ := envelope.EncodeResponse(responses[0])
	if err := json.Unmarshal(payload, &raw); err != nil {
		t.Fatalf("re-decode envelope: %v", err)
	}
	if _, ok := raw["success"]; !ok {
		t.Fatal("expected success field on the wire")
	}
}
