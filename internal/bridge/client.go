// Package bridge provides the HTTP client half of the device command
// protocol.
//
// A client owns one immutable target (host, port, timeout) and performs a
// single request-response exchange per call over a fresh connection.
// Failures collapse into three sentinel classes so callers can distinguish
// a slow device from an absent one from a confused one.
package bridge

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/fourquadrant/focusbridge/internal/envelope"
	"github.com/fourquadrant/focusbridge/internal/platform/timeouts"
)

var (
	// ErrTimeout reports a call that exceeded its deadline.
	ErrTimeout = errors.New("bridge call timed out")
	// ErrConnection reports an unreachable or refusing device.
	ErrConnection = errors.New("bridge connection failed")
	// ErrProtocol reports a reply that is not a command envelope.
	ErrProtocol = errors.New("bridge protocol error")
)

const maxResponseBodyBytes = 1 << 20

// Config defines the immutable target of a bridge client.
type Config struct {
	Host    string
	Port    int
	Timeout time.Duration
}

// Client calls the device relay endpoint.
type Client struct {
	executeURL string
	timeout    time.Duration
	httpClient *http.Client
}

// NewClient validates the config and builds a client. The client never
// retries and never reuses connections.
func NewClient(config Config) (*Client, error) {
	host := strings.TrimSpace(config.Host)
	if host == "" {
		return nil, errors.New("host is required")
	}
	if config.Port < 1 || config.Port > 65535 {
		return nil, fmt.Errorf("port must be between 1 and 65535, got %d", config.Port)
	}
	timeout := config.Timeout
	if timeout <= 0 {
		timeout = timeouts.BridgeCall
	}

	return &Client{
		executeURL: fmt.Sprintf("http://%s:%d/api/command/execute", host, config.Port),
		timeout:    timeout,
		httpClient: &http.Client{
			Transport: &http.Transport{DisableKeepAlives: true},
		},
	}, nil
}

// Call sends one command to the device and decodes its response envelope.
// A response with Success=false is not an error; only transport and
// protocol faults are.
func (c *Client) Call(ctx context.Context, command string, args map[string]any) (envelope.CommandResponse, error) {
	if c == nil {
		return envelope.CommandResponse{}, errors.New("bridge client is nil")
	}
	if ctx == nil {
		ctx = context.Background()
	}

	payload, err := envelope.EncodeRequest(command, args)
	if err != nil {
		return envelope.CommandResponse{}, err
	}

	callCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	request, err := http.NewRequestWithContext(callCtx, http.MethodPost, c.executeURL, bytes.NewReader(payload))
	if err != nil {
		return envelope.CommandResponse{}, fmt.Errorf("%w: %v", ErrConnection, err)
	}
	request.Header.Set("Content-Type", "application/json")

	response, err := c.httpClient.Do(request)
	if err != nil {
		return envelope.CommandResponse{}, classifyTransportError(err)
	}
	defer response.Body.Close()

	body, err := io.ReadAll(io.LimitReader(response.Body, maxResponseBodyBytes))
	if err != nil {
		return envelope.CommandResponse{}, classifyTransportError(err)
	}

	decoded, err := envelope.DecodeResponse(body)
	if err != nil {
		return envelope.CommandResponse{}, fmt.Errorf("%w: %v", ErrProtocol, err)
	}
	// The relay answers semantic failures with 200; a 4xx or 5xx means the
	// exchange itself broke even when the body still decodes.
	if response.StatusCode >= 400 {
		return decoded, fmt.Errorf("%w: device returned status %d", ErrProtocol, response.StatusCode)
	}
	return decoded, nil
}

// Ping probes device connectivity with a ping command.
func (c *Client) Ping(ctx context.Context) bool {
	response, err := c.Call(ctx, "ping", nil)
	return err == nil && response.Success
}

func classifyTransportError(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %v", ErrTimeout, err)
	}
	var netErr interface{ Timeout() bool }
	if errors.As(err, &netErr) && netErr.Timeout() {
		return fmt.Errorf("%w: %v", ErrTimeout, err)
	}
	return fmt.Errorf("%w: %v", ErrConnection, err)
}
