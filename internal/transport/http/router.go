package http

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

// RouterConfig tunes cross-cutting HTTP behaviour.
type RouterConfig struct {
	RateLimit    RateLimitConfig
	ExposeErrors bool
}

// NewRouter configures API routes, metrics and the JSON 404 fallback.
func NewRouter(handler *Handler, cfg RouterConfig, logger zerolog.Logger) *mux.Router {
	r := mux.NewRouter()
	r.Use(RequestID, AccessLog(logger), Recoverer(logger, cfg.ExposeErrors))

	// One limiter instance so both expensive routes share a client's budget.
	limited := RateLimit(cfg.RateLimit)
	r.Handle("/api/process", limited(http.HandlerFunc(handler.Process))).Methods(http.MethodPost)
	r.Handle("/api/info/{videoId}", limited(http.HandlerFunc(handler.Info))).Methods(http.MethodGet)

	r.HandleFunc("/api/validate", handler.Validate).Methods(http.MethodPost)
	// sample must be registered before the {id} pattern.
	r.HandleFunc("/api/videos/sample", handler.Sample).Methods(http.MethodGet, http.MethodHead)
	r.HandleFunc("/api/videos/{id}", handler.Video).Methods(http.MethodGet, http.MethodHead)
	r.HandleFunc("/api/status/{id}", handler.Status).Methods(http.MethodGet)
	r.HandleFunc("/health", handler.Health).Methods(http.MethodGet)
	r.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)

	r.NotFoundHandler = http.HandlerFunc(handler.NotFound)
	return r
}
