package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/veriface/platform/internal/config"
	"github.com/veriface/platform/internal/face"
)

// Version is the application version.
const Version = "0.1.0"

// cfg is loaded once before any subcommand runs.
var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:     "veriface",
	Short:   "Real-time face verification pipeline",
	Version: Version,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.Load()
		if err != nil {
			return err
		}

		level := slog.LevelInfo
		if cfg.IsDevelopment() {
			level = slog.LevelDebug
		}
		logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
		slog.SetDefault(logger)
		return nil
	},
}

func execute() {
	// A context that ends on Ctrl+C (SIGINT) or SIGTERM.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rootCmd.SetVersionTemplate(`{{printf "%s\n" .Version}}`)

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func rulesFromConfig(cfg *config.Config) face.Rules {
	return face.Rules{
		MaxRollDegrees: cfg.MaxRollDegrees,
		MaxYawDegrees:  cfg.MaxYawDegrees,
		MinBrightness:  cfg.MinBrightness,
		MaxBrightness:  cfg.MaxBrightness,
		MinSharpness:   cfg.MinSharpness,
	}
}
