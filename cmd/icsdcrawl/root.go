package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/icsd-tools/icsdcrawl/config"
	"github.com/icsd-tools/icsdcrawl/models"
	"github.com/icsd-tools/icsdcrawl/tags"
)

// NewRootCmd creates the root command.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "icsdcrawl",
		Short: "Browser-driven retrieval tool for the ICSD web interface",
		Long: `icsdcrawl retrieves crystal structure entries from the ICSD web
interface by driving its Basic Search form with a real browser.

Each retrieved entry is written to a directory named by its collection
code, holding meta_data.json and the exported CIF file.

Configuration is read from ICSD_* environment variables (ICSD_HEADLESS,
ICSD_OUTPUT_DIR, ICSD_BATCH_SIZE, ...).`,
		Version:       models.CrawlerVersion,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().BoolP("verbose", "v", false, "Enable debug logging")

	cmd.AddCommand(NewScrapeCmd())
	cmd.AddCommand(NewEnumerateCmd())
	cmd.AddCommand(NewCrawlCmd())
	cmd.AddCommand(NewLsCmd())

	return cmd
}

// Execute runs the root command.
func Execute() {
	if err := NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// setup loads configuration, configures logging, applies locator
// overrides, and returns a context canceled on SIGINT/SIGTERM.
func setup(cmd *cobra.Command) (*config.Config, context.Context, context.CancelFunc, error) {
	cfg := config.Load()
	if verbose, _ := cmd.Flags().GetBool("verbose"); verbose {
		cfg.Log.Level = "debug"
	}
	initLogger(cfg.Log)

	if cfg.Queryer.TagOverrides != "" {
		if err := tags.LoadOverrides(cfg.Queryer.TagOverrides); err != nil {
			return nil, nil, nil, fmt.Errorf("load tag overrides: %w", err)
		}
		slog.Info("locator overrides applied", "file", cfg.Queryer.TagOverrides)
	}

	ctx, cancel := context.WithCancel(context.Background())
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		slog.Info("shutdown signal received", "signal", sig.String())
		cancel()
	}()

	return cfg, ctx, cancel, nil
}

// initLogger configures slog based on the log config.
func initLogger(cfg config.Log) {
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}

	var handler slog.Handler
	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}

	slog.SetDefault(slog.New(handler))
}
