// Copyright (c) Elliot Nunn
// Licensed under the MIT license

// tarmount serves the members of tar archives over HTTP without unpacking them.
//
// Usage:
//
//	tarmount --config tarmount.yaml
//	tarmount [--listen addr] archive.tar [more.tar ...]
//
// With archives on the command line, their members are served at the root
// and no config file is read.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/pflag"

	"github.com/elliotnunn/tarmount/internal/config"
)

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "tarmount: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	var configPath, listen, logLevel string

	flagSet := pflag.NewFlagSet("tarmount", pflag.ContinueOnError)
	flagSet.StringVar(&configPath, "config", "", "config file (default: $"+config.EnvVar+")")
	flagSet.StringVar(&listen, "listen", "", "address to serve on, overriding the config")
	flagSet.StringVar(&logLevel, "log-level", "", "debug, info, warn or error, overriding the config")
	if err := flagSet.Parse(args); err != nil {
		if err == pflag.ErrHelp {
			return nil
		}
		return err
	}

	cfg, err := loadConfig(configPath, flagSet.Args())
	if err != nil {
		return err
	}
	if listen != "" {
		cfg.Listen = listen
	}
	if logLevel != "" {
		cfg.Log.Level = logLevel
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration:\n%w", err)
	}

	logger, err := newLogger(cfg, os.Stderr)
	if err != nil {
		return err
	}
	slog.SetDefault(logger)

	handler, closeStores, err := buildMux(cfg, logger)
	if err != nil {
		return err
	}
	defer closeStores()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	return serve(ctx, cfg.Listen, handler, logger)
}

// loadConfig reads the config file, unless archives are named on the
// command line, in which case they are served at the root.
func loadConfig(path string, archives []string) (*config.Config, error) {
	if len(archives) > 0 {
		if path != "" {
			return nil, errors.New("--config cannot be combined with archive arguments")
		}
		cfg := config.Default()
		cfg.Routes = []config.Route{{Prefix: "/", Archives: archives}}
		return cfg, nil
	}
	if path != "" {
		return config.LoadFile(path)
	}
	return config.Load()
}

func newLogger(cfg *config.Config, w io.Writer) (*slog.Logger, error) {
	level, err := cfg.SlogLevel()
	if err != nil {
		return nil, err
	}
	opts := &slog.HandlerOptions{Level: level}
	if cfg.Log.Format == "json" {
		return slog.New(slog.NewJSONHandler(w, opts)), nil
	}
	return slog.New(slog.NewTextHandler(w, opts)), nil
}

func serve(ctx context.Context, addr string, handler http.Handler, logger *slog.Logger) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}

	srv := &http.Server{
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		ErrorLog:          slog.NewLogLogger(logger.Handler(), slog.LevelWarn),
	}

	errc := make(chan error, 1)
	go func() { errc <- srv.Serve(ln) }()
	logger.Info("serverListening", "addr", ln.Addr().String())

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}

	logger.Info("serverShutdown")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errc; err != http.ErrServerClosed {
		return err
	}
	return nil
}
