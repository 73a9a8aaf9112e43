package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/pudottapommin/shelf/config"
	"github.com/pudottapommin/shelf/internal/app"
	"github.com/spf13/cobra"
)

var (
	verbose bool

	cfg    = new(config.Config)
	logger *slog.Logger
)

var rootCmd = &cobra.Command{
	Use:   "shelf",
	Short: "Self-destructing notes behind memorable two-word ids",
	Long: `Shelf stores short text notes that disappear after a number of days
or after they have been read a given number of times, whichever comes first.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if err := cfg.Load(); err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}

		level := slog.LevelWarn
		if !cfg.IsProd || verbose {
			level = slog.LevelDebug
		}
		logger = slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
		slog.SetDefault(logger)
		return nil
	},
}

func Execute() {
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		slog.Error("command failed", "error", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")
}

func newApp(ctx context.Context) (*app.App, error) {
	store, err := app.OpenStore(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	a, err := app.New(ctx, store, cfg, logger)
	if err != nil {
		store.Close()
		return nil, err
	}
	return a, nil
}
