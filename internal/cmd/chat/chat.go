// Package chat parses chat command flags and starts the WebSocket relay.
package chat

import (
	"context"
	"flag"
	"fmt"
	"time"

	"github.com/fourquadrant/focusbridge/internal/bridge"
	entrypoint "github.com/fourquadrant/focusbridge/internal/platform/cmd"
	"github.com/fourquadrant/focusbridge/internal/services/chat/app"
)

// Config holds chat command configuration.
type Config struct {
	HTTPAddr          string `env:"FOCUSBRIDGE_CHAT_HTTP_ADDR"          envDefault:":8000"`
	MaxConnections    int    `env:"FOCUSBRIDGE_CHAT_MAX_CONNS"          envDefault:"64"`
	HeartbeatInterval int    `env:"FOCUSBRIDGE_CHAT_HEARTBEAT_SECONDS"  envDefault:"30"`
	HeartbeatTimeout  int    `env:"FOCUSBRIDGE_CHAT_IDLE_SECONDS"       envDefault:"90"`
	DeviceHost        string `env:"FOCUSBRIDGE_DEVICE_HOST"             envDefault:"192.168.1.100"`
	DevicePort        int    `env:"FOCUSBRIDGE_DEVICE_PORT"             envDefault:"8080"`
	TimeoutSeconds    int    `env:"FOCUSBRIDGE_BRIDGE_TIMEOUT_SECONDS"  envDefault:"10"`
}

// ParseConfig parses environment and flags into a Config.
func ParseConfig(fs *flag.FlagSet, args []string) (Config, error) {
	var cfg Config
	if err := entrypoint.ParseConfig(&cfg); err != nil {
		return Config{}, err
	}
	fs.StringVar(&cfg.HTTPAddr, "http-addr", cfg.HTTPAddr, "The chat relay listen address")
	fs.IntVar(&cfg.MaxConnections, "max-conns", cfg.MaxConnections, "Maximum concurrent WebSocket connections")
	fs.StringVar(&cfg.DeviceHost, "device-host", cfg.DeviceHost, "Device relay host")
	fs.IntVar(&cfg.DevicePort, "device-port", cfg.DevicePort, "Device relay port")
	fs.IntVar(&cfg.TimeoutSeconds, "timeout", cfg.TimeoutSeconds, "Bridge call timeout in seconds")
	if err := entrypoint.ParseArgs(fs, args); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Run starts the chat relay service.
func Run(ctx context.Context, cfg Config) error {
	return entrypoint.RunWithTelemetry(ctx, entrypoint.ServiceChat, func(context.Context) error {
		client, err := bridge.NewClient(bridge.Config{
			Host:    cfg.DeviceHost,
			Port:    cfg.DevicePort,
			Timeout: time.Duration(cfg.TimeoutSeconds) * time.Second,
		})
		if err != nil {
			return fmt.Errorf("configure bridge client: %w", err)
		}
		processor, err := app.NewCommandProcessor(client)
		if err != nil {
			return fmt.Errorf("init chat processor: %w", err)
		}
		return app.Run(ctx, app.Config{
			HTTPAddr:          cfg.HTTPAddr,
			MaxConnections:    cfg.MaxConnections,
			HeartbeatInterval: time.Duration(cfg.HeartbeatInterval) * time.Second,
			HeartbeatTimeout:  time.Duration(cfg.HeartbeatTimeout) * time.Second,
			Processor:         processor,
		})
	})
}
