package inspect

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/pulse-go/pulse/pkg/pulse"
)

// HandlerConfig controls the inspector endpoints.
type HandlerConfig struct {
	// Logger receives connection and stream errors. Defaults to
	// slog.Default() with a component attribute.
	Logger *slog.Logger

	// Gatherer backs the /metrics endpoint. Defaults to
	// prometheus.DefaultGatherer.
	Gatherer prometheus.Gatherer

	// CheckOrigin is passed to the WebSocket upgrader. Defaults to
	// same-origin only (the upgrader's built-in check).
	CheckOrigin func(*http.Request) bool

	// WriteTimeout bounds each WebSocket write. Defaults to 5s.
	WriteTimeout time.Duration

	// EventBuffer is the per-client event channel capacity. A client that
	// falls this far behind starts losing events. Defaults to 256.
	EventBuffer int
}

// HandlerOption customizes HandlerConfig.
type HandlerOption func(*HandlerConfig)

// WithLogger sets the logger for connection and stream errors.
func WithLogger(logger *slog.Logger) HandlerOption {
	return func(c *HandlerConfig) { c.Logger = logger }
}

// WithGatherer sets the Prometheus gatherer backing /metrics.
func WithGatherer(g prometheus.Gatherer) HandlerOption {
	return func(c *HandlerConfig) { c.Gatherer = g }
}

// WithCheckOrigin sets the WebSocket origin check.
func WithCheckOrigin(fn func(*http.Request) bool) HandlerOption {
	return func(c *HandlerConfig) { c.CheckOrigin = fn }
}

// WithWriteTimeout bounds each WebSocket write.
func WithWriteTimeout(d time.Duration) HandlerOption {
	return func(c *HandlerConfig) { c.WriteTimeout = d }
}

// WithEventBuffer sets the per-client event channel capacity.
func WithEventBuffer(n int) HandlerOption {
	return func(c *HandlerConfig) { c.EventBuffer = n }
}

func defaultHandlerConfig() HandlerConfig {
	return HandlerConfig{
		Logger:       slog.Default().With("component", "inspect"),
		Gatherer:     prometheus.DefaultGatherer,
		WriteTimeout: 5 * time.Second,
		EventBuffer:  256,
	}
}

// Handler returns the inspector's HTTP handler.
func Handler(opts ...HandlerOption) http.Handler {
	config := defaultHandlerConfig()
	for _, opt := range opts {
		opt(&config)
	}

	hub := newHub(config)

	r := chi.NewRouter()
	r.Get("/stats", handleStats)
	r.Method(http.MethodGet, "/metrics",
		promhttp.HandlerFor(config.Gatherer, promhttp.HandlerOpts{}))
	r.Get("/events", hub.handleEvents)
	return r
}

func handleStats(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(pulse.Snapshot()); err != nil {
		slog.Default().Error("stats encode error", "error", err)
	}
}
