// Package device parses device command flags and starts the command relay.
package device

import (
	"context"
	"flag"
	"fmt"

	entrypoint "github.com/fourquadrant/focusbridge/internal/platform/cmd"
	"github.com/fourquadrant/focusbridge/internal/services/device/agenda"
	"github.com/fourquadrant/focusbridge/internal/services/device/app"
	"github.com/fourquadrant/focusbridge/internal/services/device/router"
	"github.com/fourquadrant/focusbridge/internal/services/device/storage/sqlite"
)

// Config holds device command configuration.
type Config struct {
	HTTPAddr string `env:"FOCUSBRIDGE_DEVICE_HTTP_ADDR" envDefault:":8080"`
	DBPath   string `env:"FOCUSBRIDGE_DEVICE_DB_PATH"   envDefault:"focusbridge.db"`
	MaxConns int    `env:"FOCUSBRIDGE_DEVICE_MAX_CONNS" envDefault:"64"`
}

// ParseConfig parses environment and flags into a Config.
func ParseConfig(fs *flag.FlagSet, args []string) (Config, error) {
	var cfg Config
	if err := entrypoint.ParseConfig(&cfg); err != nil {
		return Config{}, err
	}
	fs.StringVar(&cfg.HTTPAddr, "http-addr", cfg.HTTPAddr, "The device relay listen address")
	fs.StringVar(&cfg.DBPath, "db", cfg.DBPath, "Path to the sqlite database file")
	fs.IntVar(&cfg.MaxConns, "max-conns", cfg.MaxConns, "Maximum concurrent HTTP connections")
	if err := entrypoint.ParseArgs(fs, args); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Run starts the device command relay service.
func Run(ctx context.Context, cfg Config) error {
	return entrypoint.RunWithTelemetry(ctx, entrypoint.ServiceDevice, func(context.Context) error {
		store, err := sqlite.Open(cfg.DBPath)
		if err != nil {
			return fmt.Errorf("open device store: %w", err)
		}
		defer store.Close()

		executor := agenda.New(store)
		commandRouter := router.New()
		if err := executor.Register(commandRouter); err != nil {
			return fmt.Errorf("register commands: %w", err)
		}

		server, err := app.NewServer(app.Config{
			HTTPAddr: cfg.HTTPAddr,
			MaxConns: cfg.MaxConns,
		}, commandRouter, executor.Features())
		if err != nil {
			return fmt.Errorf("init device server: %w", err)
		}
		return server.ListenAndServe(ctx)
	})
}
