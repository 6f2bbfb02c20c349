package bridge

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"testing"
	"time"

	"github.com/fourquadrant/focusbridge/internal/envelope"
)

func clientForServer(t *testing.T, ts *httptest.Server, timeout time.Duration) *Client {
	t.Helper()
	parsed, err := url.Parse(ts.URL)
	if err != nil {
		t.Fatalf("parse test server url: %v", err)
	}
	port, err := strconv.Atoi(parsed.Port())
	if err != nil {
		t.Fatalf("parse test server port: %v", err)
	}
	client, err := NewClient(Config{Host: parsed.Hostname(), Port: port, Timeout: timeout})
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	return client
}

func TestNewClientValidatesConfig(t *testing.T) {
	if _, err := NewClient(Config{Host: "", Port: 8080}); err == nil {
		t.Fatal("expected error for missing host")
	}
	if _, err := NewClient(Config{Host: "device", Port: 0}); err == nil {
		t.Fatal("expected error for port 0")
	}
	if _, err := NewClient(Config{Host: "device", Port: 70000}); err == nil {
		t.Fatal("expected error for out-of-range port")
	}
	if _, err := NewClient(Config{Host: "device", Port: 8080}); err != nil {
		t.Fatalf("valid config rejected: %v", err)
	}
}

func TestCallRoundTrip(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/command/execute" {
			t.Errorf("path = %q, want /api/command/execute", r.URL.Path)
		}
		request, err := envelope.DecodeRequest(readAll(t, r))
		if err != nil {
			t.Errorf("decode request: %v", err)
		}
		if request.Command != "start_pomodoro" {
			t.Errorf("command = %q", request.Command)
		}
		payload, _ := envelope.EncodeResponse(envelope.CommandResponse{
			Success:   true,
			Message:   "Started pomodoro for Study (25 minutes)",
			Timestamp: 42,
			Data:      map[string]any{"duration": 25},
		})
		_, _ = w.Write(payload)
	}))
	defer ts.Close()

	client := clientForServer(t, ts, time.Second)
	response, err := client.Call(context.Background(), "start_pomodoro", map[string]any{"task_name": "Study"})
	if err != nil {
		t.Fatalf("call: %v", err)
	}
	if !response.Success {
		t.Fatalf("expected success, got %q", response.Message)
	}
	if response.Data["duration"] != float64(25) {
		t.Fatalf("duration = %v, want 25", response.Data["duration"])
	}
}

func TestCallSemanticFailureIsNotAnError(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		payload, _ := envelope.EncodeResponse(envelope.CommandResponse{
			Success:   false,
			Message:   "unknown command: fly_to_moon",
			Timestamp: 42,
		})
		_, _ = w.Write(payload)
	}))
	defer ts.Close()

	client := clientForServer(t, ts, time.Second)
	response, err := client.Call(context.Background(), "fly_to_moon", nil)
	if err != nil {
		t.Fatalf("call: %v", err)
	}
	if response.Success {
		t.Fatal("expected success=false")
	}
}

func TestCallTimeout(t *testing.T) {
	release := make(chan struct{})
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-release
	}))
	defer ts.Close()
	defer close(release)

	client := clientForServer(t, ts, time.Second)
	started := time.Now()
	_, err := client.Call(context.Background(), "ping", nil)
	elapsed := time.Since(started)

	if !errors.Is(err, ErrTimeout) {
		t.Fatalf("expected ErrTimeout, got %v", err)
	}
	if elapsed < 900*time.Millisecond || elapsed > 3*time.Second {
		t.Fatalf("elapsed = %v, expected roughly the 1s timeout", elapsed)
	}
}

func TestCallConnectionRefused(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	client := clientForServer(t, ts, time.Second)
	ts.Close()

	_, err := client.Call(context.Background(), "ping", nil)
	if !errors.Is(err, ErrConnection) {
		t.Fatalf("expected ErrConnection, got %v", err)
	}
}

func TestCallProtocolErrors(t *testing.T) {
	t.Run("undecodable body", func(t *testing.T) {
		ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte("<html>not json</html>"))
		}))
		defer ts.Close()

		client := clientForServer(t, ts, time.Second)
		_, err := client.Call(context.Background(), "ping", nil)
		if !errors.Is(err, ErrProtocol) {
			t.Fatalf("expected ErrProtocol, got %v", err)
		}
	})

	t.Run("server error status", func(t *testing.T) {
		ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusInternalServerError)
			payload, _ := envelope.EncodeResponse(envelope.CommandResponse{Success: false, Message: "boom", Timestamp: 1})
			_, _ = w.Write(payload)
		}))
		defer ts.Close()

		client := clientForServer(t, ts, time.Second)
		_, err := client.Call(context.Background(), "ping", nil)
		if !errors.Is(err, ErrProtocol) {
			t.Fatalf("expected ErrProtocol, got %v", err)
		}
	})
}

func TestPing(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		payload, _ := envelope.EncodeResponse(envelope.CommandResponse{Success: true, Message: "pong", Timestamp: 1})
		_, _ = w.Write(payload)
	}))
	defer ts.Close()

	client := clientForServer(t, ts, time.Second)
	if !client.Ping(context.Background()) {
		t.Fatal("expected ping to succeed")
	}

	down := clientForServer(t, ts, time.Second)
	ts.Close()
	if down.Ping(context.Background()) {
		t.Fatal("expected ping to fail against closed server")
	}
}

func readAll(t *testing.T, r *http.Request) []byte {
	t.Helper()
	defer r.Body.Close()
	body, err := io.ReadAll(r.Body)
	if err != nil {
		t.Fatalf("read request body: %v", err)
	}
	return body
}
