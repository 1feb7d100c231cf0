package handlers

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"
)

const (
	maxDiagCollections = 10
	maxDiagErrorLen    = 50
	diagProbeTimeout   = 5 * time.Second
)

// Diagnostics is the body of GET /test
type Diagnostics struct {
	Backend          string   `json:"backend"`
	Database         string   `json:"database"`
	DatabaseURL      string   `json:"database_url"`
	DatabaseName     string   `json:"database_name"`
	ConnectionStatus string   `json:"connection_status"`
	Collections      []string `json:"collections"`
}

// DiagnosticsHandler reports database reachability. It always answers 200;
// failures only change the reported text.
type DiagnosticsHandler struct {
	db        DatabaseProbe
	connected bool
	urlSet    bool
	nameSet   bool
}

// NewDiagnosticsHandler creates the handler. connected tells whether db is a
// real database; urlSet and nameSet whether the database settings were
// configured.
func NewDiagnosticsHandler(db DatabaseProbe, connected, urlSet, nameSet bool) *DiagnosticsHandler {
	return &DiagnosticsHandler{
		db:        db,
		connected: connected,
		urlSet:    urlSet,
		nameSet:   nameSet,
	}
}

func (h *DiagnosticsHandler) Test(w http.ResponseWriter, r *http.Request) {
	diag := Diagnostics{
		Backend:          "✅ Running",
		Database:         "❌ Not Available",
		ConnectionStatus: "Not Connected",
		Collections:      []string{},
	}

	h.probe(r.Context(), &diag)

	diag.DatabaseURL = setText(h.urlSet)
	diag.DatabaseName = setText(h.nameSet)
	writeJSON(w, http.StatusOK, diag)
}

func (h *DiagnosticsHandler) probe(ctx context.Context, diag *Diagnostics) {
	defer func() {
		if err := recover(); err != nil {
			slog.Error("diagnostics probe panicked", "error", err)
			diag.Database = "❌ Error: " + truncate(fmt.Sprint(err), maxDiagErrorLen)
		}
	}()

	if !h.connected || h.db == nil {
		diag.Database = "⚠️  Available but not initialized"
		return
	}

	diag.Database = "✅ Available"
	diag.ConnectionStatus = "Connected"

	ctx, cancel := context.WithTimeout(ctx, diagProbeTimeout)
	defer cancel()

	names, err := h.db.ListCollections(ctx)
	if err != nil {
		diag.Database = "⚠️  Connected but Error: " + truncate(err.Error(), maxDiagErrorLen)
		return
	}
	if len(names) > maxDiagCollections {
		names = names[:maxDiagCollections]
	}
	diag.Collections = append(diag.Collections, names...)
	diag.Database = "✅ Connected & Working"
}

func setText(set bool) string {
	if set {
		return "✅ Set"
	}
	return "❌ Not Set"
}
