// Package service hosts the MCP server that bridges assistant tool calls
// to the device command relay.
package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/fourquadrant/focusbridge/internal/bridge"
	"github.com/fourquadrant/focusbridge/internal/services/mcp/domain"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

const (
	// serverName identifies this MCP server to clients.
	serverName = "FourQuadrant Bridge"
	// serverVersion identifies the MCP server version.
	serverVersion = "1.0.0"

	// probeWindow bounds how long startup waits for the device before
	// continuing with degraded functionality.
	probeWindow       = 10 * time.Second
	probeInitialDelay = 200 * time.Millisecond
	probeMaxDelay     = time.Second
)

// TransportKind identifies the MCP transport implementation.
type TransportKind string

const (
	// TransportStdio uses standard input/output for MCP.
	TransportStdio TransportKind = "stdio"
	// TransportHTTP serves MCP over HTTP JSON-RPC.
	TransportHTTP TransportKind = "http"
)

// Config configures the MCP bridge server.
type Config struct {
	DeviceHost    string
	DevicePort    int
	BridgeTimeout time.Duration
	Transport     TransportKind
	HTTPAddr      string
}

// Server hosts the MCP server and its bridge client.
type Server struct {
	mcpServer *mcp.Server
	client    *bridge.Client
}

// New creates a configured MCP server wired to the device at the given
// host and port.
func New(cfg Config) (*Server, error) {
	client, err := bridge.NewClient(bridge.Config{
		Host:    cfg.DeviceHost,
		Port:    cfg.DevicePort,
		Timeout: cfg.BridgeTimeout,
	})
	if err != nil {
		return nil, fmt.Errorf("configure bridge client: %w", err)
	}

	mcpServer := mcp.NewServer(&mcp.Implementation{Name: serverName, Version: serverVersion}, nil)
	registerTools(mcpServer, client)

	return &Server{mcpServer: mcpServer, client: client}, nil
}

// Run creates and serves the MCP server until the context ends.
func Run(ctx context.Context, cfg Config) error {
	if cfg.Transport == "" {
		cfg.Transport = TransportStdio
	}

	server, err := New(cfg)
	if err != nil {
		return err
	}
	server.probeDevice(ctx)

	switch cfg.Transport {
	case TransportStdio:
		return server.Serve(ctx)
	case TransportHTTP:
		httpAddr := cfg.HTTPAddr
		if httpAddr == "" {
			// Localhost-only by default; the MCP surface has no auth.
			httpAddr = "localhost:8081"
		}
		transport := NewHTTPTransportWithServer(httpAddr, server.mcpServer)
		return transport.Start(ctx)
	default:
		return fmt.Errorf("transport %q is not supported", cfg.Transport)
	}
}

// Serve starts the MCP server on stdio and blocks until it stops or the
// context ends.
func (s *Server) Serve(ctx context.Context) error {
	if s == nil || s.mcpServer == nil {
		return errors.New("mcp server is not configured")
	}
	return s.mcpServer.Run(ctx, &mcp.StdioTransport{})
}

// probeDevice checks device connectivity with capped exponential backoff.
// An unreachable device is a warning, not a startup failure: tools answer
// with transport errors until the device comes online.
func (s *Server) probeDevice(ctx context.Context) {
	deadline := time.Now().Add(probeWindow)
	delay := probeInitialDelay

	for {
		if s.client.Ping(ctx) {
			log.Printf("device relay reachable")
			return
		}
		if ctx.Err() != nil || time.Now().After(deadline) {
			log.Printf("device relay unreachable after %s, continuing with degraded functionality", probeWindow)
			return
		}

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}
		delay *= 2
		if delay > probeMaxDelay {
			delay = probeMaxDelay
		}
	}
}

// registerTools binds every bridge tool to the MCP server.
func registerTools(mcpServer *mcp.Server, client domain.Caller) {
	mcp.AddTool(mcpServer, domain.StartPomodoroTool(), domain.StartPomodoroHandler(client))
	mcp.AddTool(mcpServer, domain.ControlPomodoroTool(), domain.ControlPomodoroHandler(client))
	mcp.AddTool(mcpServer, domain.ManageBreakTool(), domain.ManageBreakHandler(client))
	mcp.AddTool(mcpServer, domain.ManageTasksTool(), domain.ManageTasksHandler(client))
	mcp.AddTool(mcpServer, domain.GetStatisticsTool(), domain.GetStatisticsHandler(client))
	mcp.AddTool(mcpServer, domain.UpdateSettingsTool(), domain.UpdateSettingsHandler(client))
	mcp.AddTool(mcpServer, domain.CheckDeviceStatusTool(), domain.CheckDeviceStatusHandler(client))
}
