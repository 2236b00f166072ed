package httpx

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/rishabhdvn/Secure-Collab/internal/app"
	"github.com/rishabhdvn/Secure-Collab/internal/store"
	"github.com/rishabhdvn/Secure-Collab/internal/ws"
	"github.com/rishabhdvn/Secure-Collab/pkg/metrics"
	"github.com/rishabhdvn/Secure-Collab/pkg/ratelimit"
)

// NewRouter wires up all HTTP routes, middleware, and handlers. db may be
// nil; the run-history route is only registered when the store is up.
func NewRouter(cfg app.Config, logger *slog.Logger, hub *ws.Hub, broker Submitter, db *store.Postgres) http.Handler {
	mw := NewMiddleware(cfg)
	api := &CompileAPI{
		Broker: broker,
		Runs:   ratelimit.New(cfg.RunRate, time.Duration(cfg.RunRateWindow)*time.Second),
	}

	mux := http.NewServeMux()

	// Health / readiness / metrics
	mux.Handle("/healthz", http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(200) }))
	mux.Handle("/readyz", http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(200) }))
	mux.Handle("/metrics", metrics.Handler())

	// WebSocket endpoint
	mux.Handle("/ws", http.HandlerFunc(hub.ServeWS))

	// Code submission
	mux.Handle("POST /compile", http.HandlerFunc(api.Compile))

	// Execution history (only when postgres is configured)
	if db != nil {
		runsAPI := &RunsAPI{DB: db}
		mux.Handle("GET /api/runs", http.HandlerFunc(runsAPI.List))
	}

	return mw.Wrap(mux)
}
