package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"jokeboard/internal/tui"
	"jokeboard/pkg/logger"
)

// initLogging points the logger at app.log_file when set. Without a file the
// terminal commands discard logs so they do not garble the screen, and the
// bot logs to stdout.
func initLogging(toStdout bool) (func(), error) {
	if cfg.App.LogFile != "" {
		f, err := os.OpenFile(cfg.App.LogFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return func() {}, fmt.Errorf("failed to open log file: %w", err)
		}
		logger.Init(cfg.App.LogLevel, logger.Format(cfg.App.LogFormat), f)
		return func() { _ = f.Close() }, nil
	}

	var w io.Writer = io.Discard
	if toStdout {
		w = os.Stdout
	}
	logger.Init(cfg.App.LogLevel, logger.Format(cfg.App.LogFormat), w)
	return func() {}, nil
}

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
}

func runView(cmd *cobra.Command, _ []string) error {
	closeLog, err := initLogging(false)
	if err != nil {
		return err
	}
	defer closeLog()

	ctx, cancel := signalContext()
	defer cancel()

	ctrl, closeStore, err := session(ctx)
	defer closeStore()
	if err != nil {
		return err
	}

	logger.Info("Starting viewer",
		logger.String("app", cfg.App.Name),
		logger.String("backend", cfg.Storage.Backend),
		logger.Int("count", ctrl.Count()),
	)
	return tui.Run(ctx, ctrl)
}
