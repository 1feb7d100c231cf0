package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/randytsao24/trafficintel/internal/api"
	"github.com/randytsao24/trafficintel/internal/config"
	"github.com/randytsao24/trafficintel/internal/feed"
	"github.com/randytsao24/trafficintel/internal/store"
)

const shutdownTimeout = 10 * time.Second

var servePort string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API (default)",
	Args:  cobra.NoArgs,
	RunE:  runServe,
}

func init() {
	// serve is also the root action, so both carry --port
	for _, c := range []*cobra.Command{rootCmd, serveCmd} {
		c.Flags().StringVar(&servePort, "port", "", "listen port (overrides PORT)")
	}
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	if servePort != "" {
		cfg.Port = servePort
	}

	ctx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	gw := openStore(cfg)
	defer func() {
		if err := gw.Close(); err != nil {
			slog.Error("closing database", "error", err)
		}
	}()

	// the ingester must stop before the store closes
	waitFeed := startFeed(ctx, cfg, gw)
	defer func() {
		cancel()
		waitFeed()
	}()

	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      api.NewRouter(cfg, gw),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: max(cfg.HTTPTimeout, 10*time.Second) + 5*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("server starting",
			"port", cfg.Port,
			"env", cfg.Env,
			"url", "http://localhost:"+cfg.Port,
		)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server failed: %w", err)
		}
	case <-ctx.Done():
	}

	slog.Info("server shutting down")
	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancelShutdown()
	return server.Shutdown(shutdownCtx)
}

// startFeed runs the background ingester when a feed URL is configured.
// The returned function blocks until the ingester has stopped.
func startFeed(ctx context.Context, cfg *config.Config, gw store.Gateway) (wait func()) {
	var wg sync.WaitGroup
	if cfg.Feed.URL != "" {
		ingester := feed.NewIngester(cfg.Feed.URL, cfg.Feed.Agency, cfg.HTTPTimeout, cfg.Feed.CacheTTL, gw)
		wg.Go(func() {
			ingester.Run(ctx, cfg.Feed.Interval)
		})
		slog.Info("feed ingester started", "url", cfg.Feed.URL, "interval", cfg.Feed.Interval)
	}
	return wg.Wait
}

// openStore connects the configured database. A failure is logged and the
// server keeps running without one.
func openStore(cfg *config.Config) store.Gateway {
	gw, err := store.Open(cfg.Database.URL, cfg.Database.Name)
	if err != nil {
		slog.Error("database unavailable, continuing without it", "error", err)
		return store.Disconnected{}
	}
	if store.Connected(gw) {
		slog.Info("database connected", "name", gw.Name())
	} else {
		slog.Warn("database not configured; set DATABASE_URL to enable storage")
	}
	return gw
}
