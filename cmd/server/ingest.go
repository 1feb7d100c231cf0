package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/randytsao24/trafficintel/internal/feed"
	"github.com/randytsao24/trafficintel/internal/store"
)

var ingestURL string

var ingestCmd = &cobra.Command{
	Use:   "ingest",
	Short: "Import one GTFS-realtime snapshot into the transit collection",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return fmt.Errorf("loading config: %w", err)
		}
		if ingestURL != "" {
			cfg.Feed.URL = ingestURL
		}
		if cfg.Feed.URL == "" {
			return errors.New("no feed URL: set FEED_URL or pass --url")
		}

		gw, err := store.Open(cfg.Database.URL, cfg.Database.Name)
		if err != nil {
			return fmt.Errorf("opening database: %w", err)
		}
		defer gw.Close()

		ingester := feed.NewIngester(cfg.Feed.URL, cfg.Feed.Agency, cfg.HTTPTimeout, cfg.Feed.CacheTTL, gw)
		res, err := ingester.RunOnce(cmd.Context())
		if err != nil {
			return err
		}

		cmd.Printf("routes: %d, stored: %d, skipped: %d\n", res.Routes, res.Stored, res.Skipped)
		return nil
	},
}

func init() {
	ingestCmd.Flags().StringVar(&ingestURL, "url", "", "feed URL (overrides FEED_URL)")
	rootCmd.AddCommand(ingestCmd)
}
