// Package feed imports transit line status from a GTFS-realtime trip updates
// feed into the document store.
package feed

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sort"
	"strconv"
	"time"

	"github.com/MobilityData/gtfs-realtime-bindings/golang/gtfs"
	"google.golang.org/protobuf/proto"

	"github.com/randytsao24/trafficintel/internal/cache"
	"github.com/randytsao24/trafficintel/internal/models"
	"github.com/randytsao24/trafficintel/internal/store"
)

// Line statuses derived from trip updates
const (
	StatusOnTime    = "On Time"
	StatusDelayed   = "Delayed"
	StatusSuspended = "Suspended"
)

// Result summarises one ingestion run
type Result struct {
	Routes  int
	Stored  int
	Skipped int
}

// Ingester polls a GTFS-realtime feed and stores one Transit record per
// route whose status changed since it was last stored.
type Ingester struct {
	url     string
	agency  string
	client  *http.Client
	gateway store.Gateway
	seen    *cache.Cache[string]
}

// NewIngester creates an ingester. Identical records are stored at most once
// per dedupTTL.
func NewIngester(url, agency string, timeout, dedupTTL time.Duration, gateway store.Gateway) *Ingester {
	return &Ingester{
		url:     url,
		agency:  agency,
		client:  &http.Client{Timeout: timeout},
		gateway: gateway,
		seen:    cache.New[string](dedupTTL),
	}
}

// RunOnce fetches the feed and stores the derived line statuses
func (i *Ingester) RunOnce(ctx context.Context) (Result, error) {
	msg, err := i.fetch(ctx)
	if err != nil {
		return Result{}, err
	}
	i.seen.Sweep()

	lines := Summarize(msg, i.agency)
	res := Result{Routes: len(lines)}

	for _, line := range lines {
		if err := models.Validate(line); err != nil {
			slog.Warn("skipping invalid line status", "line", line.Line, "error", err)
			res.Skipped++
			continue
		}

		key := line.Status + "|" + strconv.Itoa(line.DelayMinutes)
		if prev, ok := i.seen.Get(line.Line); ok && prev == key {
			res.Skipped++
			continue
		}

		if _, err := i.gateway.CreateDocument(ctx, line.Collection(), line.Document()); err != nil {
			return res, fmt.Errorf("storing status for line %s: %w", line.Line, err)
		}
		i.seen.Set(line.Line, key)
		res.Stored++
	}

	return res, nil
}

// DefaultInterval is used by Run when given a non-positive interval
const DefaultInterval = time.Minute

// Run calls RunOnce every interval until ctx is cancelled. Failures are
// logged and the next tick retries.
func (i *Ingester) Run(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		slog.Warn("invalid feed interval, using default", "interval", interval, "default", DefaultInterval)
		interval = DefaultInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		i.runLogged(ctx)

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func (i *Ingester) runLogged(ctx context.Context) {
	res, err := i.RunOnce(ctx)
	if err != nil {
		slog.Error("feed ingestion failed", "url", i.url, "error", err)
		return
	}
	slog.Info("feed ingested",
		"routes", res.Routes,
		"stored", res.Stored,
		"skipped", res.Skipped,
	)
}

func (i *Ingester) fetch(ctx context.Context) (*gtfs.FeedMessage, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, i.url, nil)
	if err != nil {
		return nil, fmt.Errorf("building feed request: %w", err)
	}

	resp, err := i.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetching feed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("feed returned status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading response: %w", err)
	}

	msg := &gtfs.FeedMessage{}
	if err := proto.Unmarshal(body, msg); err != nil {
		return nil, fmt.Errorf("parsing protobuf: %w", err)
	}
	return msg, nil
}

type routeStats struct {
	trips    int
	canceled int
	maxDelay int32
}

// Summarize derives one Transit record per route from the feed's trip
// updates. A route is Suspended when all its trips are canceled, Delayed
// when any trip runs late, and On Time otherwise. Results are sorted by line.
func Summarize(msg *gtfs.FeedMessage, agency string) []models.Transit {
	stats := make(map[string]*routeStats)

	for _, entity := range msg.GetEntity() {
		tripUpdate := entity.GetTripUpdate()
		if tripUpdate == nil {
			continue
		}

		routeID := tripUpdate.GetTrip().GetRouteId()
		if routeID == "" {
			continue
		}

		st, ok := stats[routeID]
		if !ok {
			st = &routeStats{}
			stats[routeID] = st
		}
		st.trips++

		if tripUpdate.GetTrip().GetScheduleRelationship() == gtfs.TripDescriptor_CANCELED {
			st.canceled++
			continue
		}
		if d := tripDelay(tripUpdate); d > st.maxDelay {
			st.maxDelay = d
		}
	}

	lines := make([]models.Transit, 0, len(stats))
	for routeID, st := range stats {
		line := models.Transit{Line: routeID}
		if agency != "" {
			line.Agency = &agency
		}

		switch {
		case st.canceled == st.trips:
			line.Status = StatusSuspended
		case st.maxDelay > 0:
			line.Status = StatusDelayed
			line.DelayMinutes = int((st.maxDelay + 59) / 60)
		default:
			line.Status = StatusOnTime
		}
		lines = append(lines, line)
	}

	sort.Slice(lines, func(a, b int) bool {
		return lines[a].Line < lines[b].Line
	})
	return lines
}

// tripDelay returns the largest delay in seconds reported for a trip, either
// on the trip itself or on any of its stop time updates
func tripDelay(tripUpdate *gtfs.TripUpdate) int32 {
	delay := tripUpdate.GetDelay()
	for _, stu := range tripUpdate.GetStopTimeUpdate() {
		if d := stu.GetArrival().GetDelay(); d > delay {
			delay = d
		}
		if d := stu.GetDeparture().GetDelay(); d > delay {
			delay = d
		}
	}
	return delay
}
