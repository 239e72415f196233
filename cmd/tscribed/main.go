// Command tscribed runs the transcription daemon: it serves the HTTP API
// and processes queued jobs until it receives SIGINT or SIGTERM.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"tscribe/internal/config"
	"tscribe/internal/daemon"
	"tscribe/internal/logging"
	"tscribe/internal/shutdown"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "tscribed: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	configPath := flag.String("config", "", "path to config file")
	flag.Parse()

	cfg, resolvedPath, found, err := config.Load(*configPath)
	if err != nil {
		return err
	}
	if err := cfg.EnsureDirectories(); err != nil {
		return err
	}

	logger, err := logging.New(logging.Options{
		Level:    cfg.Logging.Level,
		Format:   cfg.Logging.Format,
		FilePath: filepath.Join(cfg.Paths.LogDir, "tscribed.log"),
	})
	if err != nil {
		return err
	}
	if found {
		logger.Info("configuration loaded", logging.String("path", resolvedPath))
	} else {
		logger.Info("no config file found, using defaults", logging.String("path", resolvedPath))
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// The stop signal flips the cooperative flag first so an in-flight
	// transcription winds down at the next segment boundary.
	sig := &shutdown.Signal{}
	go func() {
		<-ctx.Done()
		sig.Request()
	}()

	d, err := daemon.New(logger, cfg, sig)
	if err != nil {
		return err
	}
	if err := d.Start(ctx); err != nil {
		return err
	}

	<-ctx.Done()
	logger.Info("shutdown signal received")

	stopCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	return d.Stop(stopCtx)
}
