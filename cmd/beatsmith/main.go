package main

import (
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/spf13/cobra"

	"github.com/cbegin/beatsmith-go/internal/config"
	"github.com/cbegin/beatsmith-go/internal/logger"
)

// releaseVersion is set via ldflags during build
var releaseVersion = "dev"

const sentryFlushTimeout = 2 * time.Second

var (
	cfg *config.Config

	// shared flags
	layerFilter string
	outputPath  string
)

func main() {
	defer sentry.Flush(sentryFlushTimeout)
	if err := rootCmd.Execute(); err != nil {
		sentry.CaptureException(err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "beatsmith",
	Short: "Generate, play and export four-bar producer-style loops",
	Long: `beatsmith asks a language model for a four-bar melodic loop in the
style of a producer, plays it through a small synth rack and exports it
as WAV or MIDI.

Pipeline: preset → composition JSON → synth graph → speakers / .wav / .mid`,
	Version:           releaseVersion,
	SilenceUsage:      true,
	PersistentPreRunE: setup,
}

func init() {
	rootCmd.AddCommand(generateCmd, renderCmd, midiCmd, playCmd, serveCmd)
}

// setup loads configuration and wires logging and Sentry.
func setup(cmd *cobra.Command, _ []string) error {
	var err error
	cfg, err = config.Load()
	if err != nil {
		return err
	}

	var level slog.Level
	if err := level.UnmarshalText([]byte(cfg.LogLevel)); err != nil {
		return fmt.Errorf("invalid LOG_LEVEL %q: %w", cfg.LogLevel, err)
	}
	logger.Setup(cmd.ErrOrStderr(), level, cfg.IsProduction())

	if cfg.SentryDSN == "" {
		logger.Debug("sentry not configured", nil)
		return nil
	}
	if err := sentry.Init(sentry.ClientOptions{
		Dsn:              cfg.SentryDSN,
		Environment:      cfg.Environment,
		Release:          "beatsmith@" + releaseVersion,
		EnableTracing:    true,
		TracesSampleRate: 1.0,
		Debug:            !cfg.IsProduction(),
	}); err != nil {
		logger.Warn("failed to initialize sentry", logger.Fields{"error": err.Error()})
		return nil
	}
	logger.Info("sentry initialized", logger.Fields{"environment": cfg.Environment, "release": releaseVersion})
	return nil
}
