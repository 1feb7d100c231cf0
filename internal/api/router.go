package api

import (
	"net/http"

	"github.com/randytsao24/trafficintel/internal/api/handlers"
	"github.com/randytsao24/trafficintel/internal/config"
	"github.com/randytsao24/trafficintel/internal/models"
	"github.com/randytsao24/trafficintel/internal/store"
)

// NewRouter creates and configures the HTTP router with all routes and middleware
func NewRouter(cfg *config.Config, gw store.Gateway) http.Handler {
	mux := http.NewServeMux()

	connected := store.Connected(gw)

	// Initialize handlers
	rootHandler := handlers.NewRootHandler()
	healthHandler := handlers.NewHealthHandler(connected)
	diagHandler := handlers.NewDiagnosticsHandler(gw, connected, cfg.Database.URL != "", cfg.Database.Name != "")
	transitHandler := handlers.NewResourceHandler[models.Transit](gw, false)
	accidentHandler := handlers.NewResourceHandler[models.Accident](gw, true)
	roadworkHandler := handlers.NewResourceHandler[models.Roadwork](gw, true)

	// Core routes
	mux.HandleFunc("GET /{$}", rootHandler.Index)
	mux.HandleFunc("GET /health", healthHandler.Health)

	// Traffic data routes
	mux.HandleFunc("GET /api/transit", transitHandler.List)
	mux.HandleFunc("POST /api/transit", transitHandler.Create)
	mux.HandleFunc("GET /api/accidents", accidentHandler.List)
	mux.HandleFunc("POST /api/accidents", accidentHandler.Create)
	mux.HandleFunc("GET /api/roadworks", roadworkHandler.List)
	mux.HandleFunc("POST /api/roadworks", roadworkHandler.Create)

	mux.HandleFunc("/", rootHandler.NotFound)

	// Diagnostics bound their own probe and must always answer 200, so they
	// sit outside the request timeout.
	top := http.NewServeMux()
	top.HandleFunc("GET /test", diagHandler.Test)
	top.Handle("/", Chain(mux,
		BodyLimit(DefaultBodyLimit),
		Timeout(cfg.HTTPTimeout),
	))

	// Apply middleware stack
	return Chain(top,
		Recovery,
		Logging,
		CORS,
	)
}
