package feed

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/MobilityData/gtfs-realtime-bindings/golang/gtfs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/protobuf/proto"

	"github.com/randytsao24/trafficintel/internal/models"
	"github.com/randytsao24/trafficintel/internal/store"
)

type trip struct {
	route    string
	delay    int32
	canceled bool
}

func feedMessage(trips ...trip) *gtfs.FeedMessage {
	msg := &gtfs.FeedMessage{
		Header: &gtfs.FeedHeader{
			GtfsRealtimeVersion: proto.String("2.0"),
			Timestamp:           proto.Uint64(uint64(time.Now().Unix())),
		},
	}

	for n, tr := range trips {
		desc := &gtfs.TripDescriptor{
			TripId:  proto.String("trip-" + strconv.Itoa(n)),
			RouteId: proto.String(tr.route),
		}
		if tr.canceled {
			desc.ScheduleRelationship = gtfs.TripDescriptor_CANCELED.Enum()
		}
		msg.Entity = append(msg.Entity, &gtfs.FeedEntity{
			Id: proto.String("e" + strconv.Itoa(n)),
			TripUpdate: &gtfs.TripUpdate{
				Trip: desc,
				StopTimeUpdate: []*gtfs.TripUpdate_StopTimeUpdate{{
					StopId:  proto.String("101N"),
					Arrival: &gtfs.TripUpdate_StopTimeEvent{Delay: proto.Int32(tr.delay)},
				}},
			},
		})
	}
	return msg
}

func feedServer(t *testing.T, msg *gtfs.FeedMessage) *httptest.Server {
	t.Helper()
	data, err := proto.Marshal(msg)
	require.NoError(t, err)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/x-protobuf")
		_, _ = w.Write(data)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestSummarize(t *testing.T) {
	lines := Summarize(feedMessage(
		trip{route: "A", delay: 0},
		trip{route: "A", delay: 130},
		trip{route: "L", delay: -60},
		trip{route: "G", canceled: true},
		trip{route: "G", canceled: true},
		trip{route: "7", canceled: true},
		trip{route: "7", delay: 30},
		trip{route: "", delay: 600},
	), "MTA")

	require.Len(t, lines, 4)

	byLine := make(map[string]models.Transit, len(lines))
	for _, l := range lines {
		byLine[l.Line] = l
		require.NotNil(t, l.Agency)
		assert.Equal(t, "MTA", *l.Agency)
	}

	assert.Equal(t, []string{"7", "A", "G", "L"}, []string{lines[0].Line, lines[1].Line, lines[2].Line, lines[3].Line})

	assert.Equal(t, StatusDelayed, byLine["A"].Status)
	assert.Equal(t, 3, byLine["A"].DelayMinutes)
	assert.Equal(t, StatusOnTime, byLine["L"].Status)
	assert.Equal(t, 0, byLine["L"].DelayMinutes)
	assert.Equal(t, StatusSuspended, byLine["G"].Status)
	assert.Equal(t, StatusDelayed, byLine["7"].Status, "partially canceled route reports the running trips")
	assert.Equal(t, 1, byLine["7"].DelayMinutes)
}

func TestSummarizeNoAgency(t *testing.T) {
	lines := Summarize(feedMessage(trip{route: "Q"}), "")
	require.Len(t, lines, 1)
	assert.Nil(t, lines[0].Agency)
}

func TestRunOnceStoresAndDeduplicates(t *testing.T) {
	ctx := context.Background()
	srv := feedServer(t, feedMessage(
		trip{route: "A", delay: 300},
		trip{route: "C"},
	))
	gw := store.NewMemoryStore("traffic")
	ing := NewIngester(srv.URL, "MTA", 5*time.Second, time.Hour, gw)

	res, err := ing.RunOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, Result{Routes: 2, Stored: 2}, res)

	docs, err := gw.GetDocuments(ctx, models.TransitCollection, store.Filter{"line": "A"}, 10)
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, StatusDelayed, docs[0]["status"])
	assert.Equal(t, 5, docs[0]["delay_minutes"])
	assert.Equal(t, "MTA", docs[0]["agency"])

	res, err = ing.RunOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, Result{Routes: 2, Skipped: 2}, res)

	all, err := gw.GetDocuments(ctx, models.TransitCollection, nil, 10)
	require.NoError(t, err)
	assert.Len(t, all, 2)
}

func TestRunOnceFailures(t *testing.T) {
	ctx := context.Background()

	t.Run("bad status", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusBadGateway)
		}))
		defer srv.Close()

		_, err := NewIngester(srv.URL, "", time.Second, time.Hour, store.NewMemoryStore("t")).RunOnce(ctx)
		assert.ErrorContains(t, err, "feed returned status 502")
	})

	t.Run("garbage body", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte("not a protobuf message"))
		}))
		defer srv.Close()

		_, err := NewIngester(srv.URL, "", time.Second, time.Hour, store.NewMemoryStore("t")).RunOnce(ctx)
		assert.ErrorContains(t, err, "parsing protobuf")
	})

	t.Run("store unavailable", func(t *testing.T) {
		srv := feedServer(t, feedMessage(trip{route: "A"}))

		ing := NewIngester(srv.URL, "", time.Second, time.Hour, store.Disconnected{})
		_, err := ing.RunOnce(ctx)
		assert.ErrorIs(t, err, store.ErrNotConnected)
	})
}

func TestRunStopsOnCancel(t *testing.T) {
	srv := feedServer(t, feedMessage(trip{route: "A"}))
	gw := store.NewMemoryStore("traffic")
	ing := NewIngester(srv.URL, "", time.Second, time.Hour, gw)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		ing.Run(ctx, 10*time.Millisecond)
		close(done)
	}()

	require.Eventually(t, func() bool {
		docs, _ := gw.GetDocuments(context.Background(), models.TransitCollection, nil, 10)
		return len(docs) == 1
	}, time.Second, 5*time.Millisecond)

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

func TestRunNonPositiveInterval(t *testing.T) {
	srv := feedServer(t, feedMessage(trip{route: "A"}))
	gw := store.NewMemoryStore("traffic")
	ing := NewIngester(srv.URL, "", time.Second, time.Hour, gw)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		ing.Run(ctx, 0)
		close(done)
	}()

	require.Eventually(t, func() bool {
		docs, _ := gw.GetDocuments(context.Background(), models.TransitCollection, nil, 10)
		return len(docs) == 1
	}, time.Second, 5*time.Millisecond)

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not return after cancel")
	}
}
