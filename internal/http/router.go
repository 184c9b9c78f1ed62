package http

import (
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/kjstillabower/weather-panel/internal/observability"
)

// RouterOptions carries the middleware dependencies for NewRouter.
type RouterOptions struct {
	Logger      *zap.Logger
	RateLimiter *rate.Limiter // nil disables rate limiting
	InFlight    *InFlightTracker
	SessionTTL  time.Duration
}

// NewRouter mounts every route. Operational endpoints sit outside the
// session and rate limit middleware so probes never create sessions or get throttled.
func NewRouter(h *Handler, opts RouterOptions) *mux.Router {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	router := mux.NewRouter()
	router.Use(CorrelationIDMiddleware(logger))
	router.Use(MetricsMiddleware(opts.InFlight))

	router.HandleFunc("/health", h.GetHealth).Methods(http.MethodGet)
	router.Handle("/metrics", observability.MetricsHandler()).Methods(http.MethodGet)

	p := router.NewRoute().Subrouter()
	p.Use(SessionMiddleware(opts.SessionTTL))
	p.Use(RateLimitMiddleware(opts.RateLimiter, h.tracker))

	p.HandleFunc("/", h.Index).Methods(http.MethodGet)
	p.HandleFunc("/city", h.PostCity).Methods(http.MethodPost)
	p.HandleFunc("/search", h.PostSearch).Methods(http.MethodPost)
	p.HandleFunc("/charts/{metric:[a-z]+}.svg", h.GetChart).Methods(http.MethodGet)
	p.HandleFunc("/api/cities", h.GetCities).Methods(http.MethodGet)
	p.HandleFunc("/api/panel", h.GetPanel).Methods(http.MethodGet)
	p.HandleFunc("/api/panel/city", h.PutCity).Methods(http.MethodPut)
	p.HandleFunc("/api/panel/search", h.PostSearchAPI).Methods(http.MethodPost)

	return router
}
