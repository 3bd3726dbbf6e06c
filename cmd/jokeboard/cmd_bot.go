package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"jokeboard/internal/bot"
	"jokeboard/internal/config"
	"jokeboard/internal/source"
	"jokeboard/internal/storage"
	"jokeboard/pkg/logger"
)

const (
	shutdownTimeout   = 10 * time.Second
	healthPingTimeout = 2 * time.Second
)

func runBot(cmd *cobra.Command, _ []string) error {
	if err := cfg.ValidateBot(); err != nil {
		return err
	}

	closeLog, err := initLogging(true)
	if err != nil {
		return err
	}
	defer closeLog()

	logger.Info("Starting jokeboard bot",
		logger.String("app", cfg.App.Name),
		logger.String("environment", cfg.App.Environment),
		logger.String("backend", cfg.Storage.Backend),
	)

	ctx, cancel := signalContext()
	defer cancel()

	store, closeStore, err := openStore(ctx, cfg)
	defer closeStore()
	if err != nil {
		return err
	}

	telegramBot, err := bot.New(cfg.Bot, source.FromConfig(cfg.Source), store, controllerOptions(cfg)...)
	if err != nil {
		return fmt.Errorf("failed to create bot: %w", err)
	}

	tbot, err := telegramBot.Start(ctx)
	if err != nil {
		return fmt.Errorf("failed to start bot: %w", err)
	}
	logger.Info("Telegram bot started")

	healthServer := newHealthServer(cfg.Health, store)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("Health server starting", logger.Int("port", cfg.Health.Port))
		if err := healthServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("health server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("Shutting down...")

		tbot.Stop()

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer shutdownCancel()
		if err := healthServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("Error shutting down health server", logger.Err(err))
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		return err
	}
	logger.Info("Bot stopped gracefully")
	return nil
}

// pinger is implemented by the backends that hold a connection.
type pinger interface {
	Ping(ctx context.Context) error
}

// newHealthServer answers 200 OK, or 503 when the store's connection is
// down.
func newHealthServer(cfg config.HealthConfig, store storage.Store) *http.Server {
	mux := http.NewServeMux()
	mux.HandleFunc(cfg.Endpoint, func(w http.ResponseWriter, r *http.Request) {
		if p, ok := store.(pinger); ok {
			ctx, cancel := context.WithTimeout(r.Context(), healthPingTimeout)
			defer cancel()
			if err := p.Ping(ctx); err != nil {
				logger.Warn("Health check failed", logger.Err(err))
				http.Error(w, "storage unavailable", http.StatusServiceUnavailable)
				return
			}
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})

	return &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
}
