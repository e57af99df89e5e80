package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/iudanet/tubewave/internal/app"
	"github.com/iudanet/tubewave/internal/config"
	"github.com/iudanet/tubewave/internal/server"
)

var (
	// Version information set via ldflags during build
	Version   = "dev"
	BuildDate = "unknown"
	GitCommit = "unknown"
)

func main() {
	showVersion := flag.Bool("version", false, "Show version information")
	configPath := flag.String("config", "", "Path to YAML config file")
	addr := flag.String("addr", "", "Listen address, overrides http.addr")
	flag.Parse()

	if *showVersion {
		printVersion()
		os.Exit(0)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, *configPath, *addr); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// run serves until ctx is done. When the config file changes the server is
// shut down and started again with the new configuration.
func run(ctx context.Context, configPath, addr string) error {
	var gens app.Generations
	for {
		cfg, err := config.Load(configPath)
		if err != nil {
			return err
		}
		if addr != "" {
			cfg.HTTP.Addr = addr
		}

		reload, err := serve(ctx, cfg, configPath, &gens)
		if err != nil {
			return err
		}
		if !reload {
			return nil
		}
	}
}

// serve runs one server generation; it reports whether the config changed
func serve(ctx context.Context, cfg *config.Config, configPath string, gens *app.Generations) (bool, error) {
	level, _ := config.ParseLevel(cfg.LogLevel)
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	runCtx := ctx
	if configPath != "" {
		watchCtx, cancel, err := config.UntilModified(ctx, configPath)
		if err != nil {
			return false, err
		}
		defer cancel()
		runCtx = watchCtx
	}

	tracker, closeFn, err := gens.Open(ctx, cfg, logger)
	if err != nil {
		return false, err
	}
	defer func() {
		if err := closeFn(context.WithoutCancel(ctx)); err != nil {
			logger.Error("Failed to close storage", "error", err)
		}
	}()

	logger.Info("waved starting", "version", Version, "driver", cfg.Storage.Driver, "addr", cfg.HTTP.Addr)
	srv := server.New(cfg.HTTP, tracker, logger, Version)
	if err := srv.Run(runCtx); err != nil {
		return false, err
	}

	if ctx.Err() != nil {
		logger.Info("waved stopped")
		return false, nil
	}
	cause := context.Cause(runCtx)
	if errors.Is(cause, context.Canceled) {
		return false, nil
	}
	logger.Info("Config changed, restarting", "cause", cause)
	return true, nil
}

func printVersion() {
	fmt.Printf("tubewave waved\n")
	fmt.Printf("Version:    %s\n", Version)
	fmt.Printf("Build Date: %s\n", BuildDate)
	fmt.Printf("Git Commit: %s\n", GitCommit)
}
