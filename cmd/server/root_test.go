package main

import (
	"bytes"
	"context"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/randytsao24/trafficintel/internal/config"
	"github.com/randytsao24/trafficintel/internal/store"
)

func TestCommandsRegistered(t *testing.T) {
	names := map[string]bool{}
	for _, cmd := range rootCmd.Commands() {
		names[cmd.Name()] = true
	}
	assert.True(t, names["serve"])
	assert.True(t, names["ingest"])
}

func TestHelp(t *testing.T) {
	for _, args := range [][]string{{"--help"}, {"serve", "--help"}, {"ingest", "--help"}} {
		var buf bytes.Buffer
		rootCmd.SetOut(&buf)
		rootCmd.SetErr(&buf)
		rootCmd.SetArgs(args)

		require.NoError(t, rootCmd.Execute(), "args %v", args)
		assert.Contains(t, buf.String(), "--config")
	}
	rootCmd.SetArgs(nil)
}

func TestPortFlagOnRootAndServe(t *testing.T) {
	assert.NotNil(t, rootCmd.Flags().Lookup("port"))
	assert.NotNil(t, serveCmd.Flags().Lookup("port"))
	assert.NotNil(t, ingestCmd.Flags().Lookup("url"))
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, parseLevel("debug"))
	assert.Equal(t, slog.LevelWarn, parseLevel("WARN"))
	assert.Equal(t, slog.LevelError, parseLevel("error"))
	assert.Equal(t, slog.LevelInfo, parseLevel(""))
}

func TestOpenStoreFallsBack(t *testing.T) {
	cfg := config.Default()
	assert.False(t, store.Connected(openStore(cfg)))

	cfg.Database = config.DatabaseConfig{URL: "memory://", Name: "traffic"}
	gw := openStore(cfg)
	assert.True(t, store.Connected(gw))
	assert.Equal(t, "traffic", gw.Name())

	// an empty sqlite path cannot be opened
	cfg.Database.URL = "sqlite://"
	assert.False(t, store.Connected(openStore(cfg)))
}

func TestStartFeedWaitsForIngester(t *testing.T) {
	cfg := config.Default()
	startFeed(context.Background(), cfg, store.NewMemoryStore("traffic"))()

	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	cfg.Feed.URL = srv.URL
	cfg.Feed.Interval = 10 * time.Millisecond
	ctx, cancel := context.WithCancel(context.Background())
	wait := startFeed(ctx, cfg, store.NewMemoryStore("traffic"))

	require.Eventually(t, func() bool { return hits.Load() > 0 }, time.Second, 5*time.Millisecond)
	cancel()

	done := make(chan struct{})
	go func() {
		wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("ingester did not stop after cancel")
	}
}
