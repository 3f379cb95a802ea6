// Command gmdemo runs the wagered battle service: the HTTP API, the scheduled
// sweeps, schema migrations and ranking maintenance.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/Engineer-Box/gmdemo/internal/app"
	"github.com/Engineer-Box/gmdemo/internal/config"
)

var (
	configPath string
	cfg        *config.Config
	logger     *slog.Logger
)

var rootCmd = &cobra.Command{
	Use:   "gmdemo",
	Short: "Wagered battle lifecycle and settlement service",
	Long: `gmdemo runs two-team wagered battles: challenge creation, roster escrow,
score voting, dispute handoff and settlement of fees, ratings and payouts.`,
	SilenceUsage:      true,
	PersistentPreRunE: loadConfig,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "config.toml", "path to configuration file")
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}
}

// loadConfig loads and validates the configuration and sets up the logger
// before any subcommand runs.
func loadConfig(cmd *cobra.Command, _ []string) error {
	var err error
	cfg, err = config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config %s: %w", configPath, err)
	}
	if mode, _ := cmd.Flags().GetString("mode"); mode != "" {
		cfg.Mode = mode
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	logger = newLogger(os.Stdout, cfg.Log)
	slog.SetDefault(logger)
	logger.Debug("config loaded", slog.Any("config", config.RedactedConfig(cfg)))
	return nil
}

// newLogger builds the process logger from the log section.
func newLogger(w io.Writer, lc config.LogConfig) *slog.Logger {
	var level slog.Level
	switch strings.ToLower(lc.Level) {
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
	if strings.EqualFold(lc.Format, "text") {
		return slog.New(slog.NewTextHandler(w, opts))
	}
	return slog.New(slog.NewJSONHandler(w, opts))
}

// withApp runs fn against a wired application and closes it afterwards.
func withApp(ctx context.Context, fn func(context.Context, *app.App) error) error {
	application := app.New(cfg, logger)
	defer application.Close()
	return fn(ctx, application)
}

// ignoreCanceled treats a signal-driven shutdown as success.
func ignoreCanceled(err error) error {
	if errors.Is(err, context.Canceled) {
		logger.Info("shut down gracefully")
		return nil
	}
	return err
}
