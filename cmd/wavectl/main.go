package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/iudanet/tubewave/internal/app"
	"github.com/iudanet/tubewave/internal/cli"
	"github.com/iudanet/tubewave/internal/client"
	"github.com/iudanet/tubewave/internal/cli/iocli"
	"github.com/iudanet/tubewave/internal/config"
)

var (
	// Version information set via ldflags during build
	Version   = "dev"
	BuildDate = "unknown"
	GitCommit = "unknown"
)

func main() {
	showVersion := flag.Bool("version", false, "Show version information")
	driver := flag.String("driver", config.DriverBolt, "Storage driver: memory, bolt, sqlite, postgres")
	dsn := flag.String("db", "waves.db", "Database file or connection string")
	configPath := flag.String("config", "", "Take storage settings from a waved config file")
	serverURL := flag.String("server", "", "waved URL; when set commands go over HTTP instead of a local store")
	verbose := flag.Bool("v", false, "Log tracker activity to stderr")
	flag.Usage = func() { cli.PrintUsage(os.Stderr) }
	flag.Parse()

	if *showVersion {
		printVersion()
		os.Exit(0)
	}

	args := flag.Args()
	if len(args) == 0 {
		cli.PrintUsage(os.Stderr)
		os.Exit(1)
	}

	ctx := context.Background()

	if *serverURL != "" {
		runErr := cli.New(iocli.NewStdio(), client.NewClient(*serverURL)).Run(ctx, args)
		exit(runErr)
		return
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	if *configPath == "" {
		cfg.Storage = config.StorageConfig{Driver: *driver, DSN: *dsn}
	}

	var logOut io.Writer = io.Discard
	if *verbose {
		logOut = os.Stderr
	}
	logger := slog.New(slog.NewTextHandler(logOut, &slog.HandlerOptions{Level: slog.LevelDebug}))

	tracker, closeFn, err := app.Open(ctx, cfg, logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to open database: %v\n", err)
		os.Exit(1)
	}

	runErr := cli.New(iocli.NewStdio(), tracker).Run(ctx, args)
	if err := closeFn(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to close database: %v\n", err)
	}

	exit(runErr)
}

func exit(err error) {
	if err == nil {
		return
	}
	fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	if errors.Is(err, cli.ErrUsage) {
		cli.PrintUsage(os.Stderr)
		os.Exit(2)
	}
	os.Exit(1)
}

func printVersion() {
	fmt.Printf("tubewave wavectl\n")
	fmt.Printf("Version:    %s\n", Version)
	fmt.Printf("Build Date: %s\n", BuildDate)
	fmt.Printf("Git Commit: %s\n", GitCommit)
}
