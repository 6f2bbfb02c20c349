// Package mcp parses MCP command flags and selects stdio or HTTP transport.
package mcp

import (
	"context"
	"flag"
	"time"

	entrypoint "github.com/fourquadrant/focusbridge/internal/platform/cmd"
	"github.com/fourquadrant/focusbridge/internal/services/mcp/service"
)

// Config holds MCP command configuration.
type Config struct {
	DeviceHost     string `env:"FOCUSBRIDGE_DEVICE_HOST"            envDefault:"192.168.1.100"`
	DevicePort     int    `env:"FOCUSBRIDGE_DEVICE_PORT"            envDefault:"8080"`
	TimeoutSeconds int    `env:"FOCUSBRIDGE_BRIDGE_TIMEOUT_SECONDS" envDefault:"10"`
	Transport      string `env:"FOCUSBRIDGE_MCP_TRANSPORT"          envDefault:"stdio"`
	HTTPAddr       string `env:"FOCUSBRIDGE_MCP_HTTP_ADDR"          envDefault:"localhost:8081"`
}

// ParseConfig parses environment and flags into a Config.
func ParseConfig(fs *flag.FlagSet, args []string) (Config, error) {
	var cfg Config
	if err := entrypoint.ParseConfig(&cfg); err != nil {
		return Config{}, err
	}
	fs.StringVar(&cfg.DeviceHost, "device-host", cfg.DeviceHost, "Device relay host")
	fs.IntVar(&cfg.DevicePort, "device-port", cfg.DevicePort, "Device relay port")
	fs.IntVar(&cfg.TimeoutSeconds, "timeout", cfg.TimeoutSeconds, "Bridge call timeout in seconds")
	fs.StringVar(&cfg.Transport, "transport", cfg.Transport, "Transport type: stdio or http")
	fs.StringVar(&cfg.HTTPAddr, "http-addr", cfg.HTTPAddr, "HTTP server address (for HTTP transport)")
	if err := entrypoint.ParseArgs(fs, args); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Run starts the MCP bridge service.
func Run(ctx context.Context, cfg Config) error {
	return entrypoint.RunWithTelemetry(ctx, entrypoint.ServiceMCP, func(context.Context) error {
		return service.Run(ctx, service.Config{
			DeviceHost:    cfg.DeviceHost,
			DevicePort:    cfg.DevicePort,
			BridgeTimeout: time.Duration(cfg.TimeoutSeconds) * time.Second,
			Transport:     service.TransportKind(cfg.Transport),
			HTTPAddr:      cfg.HTTPAddr,
		})
	})
}
