// Package main starts the device command relay and handles termination.
//
// The process is an HTTP adapter around the on-device command executor so
// assistant-facing services can drive pomodoro and task state remotely.
package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	devicecmd "github.com/fourquadrant/focusbridge/internal/cmd/device"
	"github.com/fourquadrant/focusbridge/internal/platform/config"
)

func main() {
	cfg, err := devicecmd.ParseConfig(flag.CommandLine, os.Args[1:])
	if err != nil {
		config.Exitf("parse flags: %v", err)
	}
	log.SetPrefix("[DEVICE] ")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := devicecmd.Run(ctx, cfg); err != nil {
		log.Fatalf("failed to serve: %v", err)
	}
}
