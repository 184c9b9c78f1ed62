package http

import (
	"bytes"
	"embed"
	"encoding/json"
	"errors"
	"html/template"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/kjstillabower/weather-panel/internal/chart"
	"github.com/kjstillabower/weather-panel/internal/lifecycle"
	"github.com/kjstillabower/weather-panel/internal/models"
	"github.com/kjstillabower/weather-panel/internal/observability"
	"github.com/kjstillabower/weather-panel/internal/panel"
	"github.com/kjstillabower/weather-panel/internal/traffic"
	"github.com/kjstillabower/weather-panel/internal/validation"
)

// CityPlaceholder is the unselected dropdown option.
const CityPlaceholder = "選擇城市"

//go:embed templates/panel.html
var templateFS embed.FS

var panelTemplate = template.Must(template.ParseFS(templateFS, "templates/panel.html"))

var validate = validator.New()

// chartHeadings are the captions rendered above each chart image.
var chartHeadings = map[chart.Metric]string{
	chart.MetricTemperature: "温度 (°C)",
	chart.MetricHumidity:    "湿度 (%)",
	chart.MetricWindSpeed:   "風速 (m/s)",
}

// HealthConfig holds thresholds for the health handler.
type HealthConfig struct {
	DegradedWindow   time.Duration
	DegradedErrorPct int
	// CachePing, when set, is called to check session backend reachability. Used when backend is memcached.
	CachePing func() error
}

// Handler holds dependencies for HTTP handlers.
type Handler struct {
	panel         *panel.Service
	tracker       *traffic.Tracker
	state         *lifecycle.State
	healthConfig  *HealthConfig
	cityMaxLength int
	logger        *zap.Logger

	healthStatusMu   sync.Mutex
	healthStatusPrev string
}

// NewHandler returns a new Handler. tracker and state may be nil in tests.
func NewHandler(
	svc *panel.Service,
	tracker *traffic.Tracker,
	state *lifecycle.State,
	healthConfig *HealthConfig,
	cityMaxLength int,
	logger *zap.Logger,
) *Handler {
	if tracker == nil {
		tracker = traffic.NewTracker()
	}
	if state == nil {
		state = lifecycle.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{
		panel:         svc,
		tracker:       tracker,
		state:         state,
		healthConfig:  healthConfig,
		cityMaxLength: cityMaxLength,
		logger:        logger,
	}
}

type chartItem struct {
	Metric  chart.Metric
	Label   string
	Heading string
}

type pageData struct {
	Placeholder string
	Cities      []string
	View        panel.View
	Charts      []chartItem
}

// Index handles GET /.
func (h *Handler) Index(w http.ResponseWriter, r *http.Request) {
	sid, ok := h.sessionID(w, r)
	if !ok {
		return
	}
	view, err := h.panel.View(r.Context(), sid)
	if err != nil {
		h.writeStoreError(w, r, err)
		return
	}

	data := pageData{
		Placeholder: CityPlaceholder,
		Cities:      h.panel.Resolver().DisplayNames(),
		View:        view,
	}
	for _, ds := range view.Charts.All() {
		data.Charts = append(data.Charts, chartItem{Metric: ds.Metric, Label: ds.Label, Heading: chartHeadings[ds.Metric]})
	}

	var buf bytes.Buffer
	if err := panelTemplate.Execute(&buf, data); err != nil {
		observability.LoggerFromContext(r.Context(), h.logger).Error("render panel", zap.Error(err))
		writeError(w, r, http.StatusInternalServerError, "RENDER_FAILED", "Unable to render panel")
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	_, _ = w.Write(buf.Bytes())
}

// PostCity handles POST /city from the dropdown form. It never fetches.
func (h *Handler) PostCity(w http.ResponseWriter, r *http.Request) {
	sid, ok := h.sessionID(w, r)
	if !ok {
		return
	}
	if err := r.ParseForm(); err != nil {
		writeError(w, r, http.StatusBadRequest, "INVALID_FORM", "Unable to parse form")
		return
	}
	if !h.setCity(w, r, sid, r.PostFormValue("city")) {
		return
	}
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

// PostSearch handles POST /search from the search button.
func (h *Handler) PostSearch(w http.ResponseWriter, r *http.Request) {
	sid, ok := h.sessionID(w, r)
	if !ok {
		return
	}
	if !h.search(w, r, sid) {
		return
	}
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

// GetChart handles GET /charts/{metric}.svg.
func (h *Handler) GetChart(w http.ResponseWriter, r *http.Request) {
	sid, ok := h.sessionID(w, r)
	if !ok {
		return
	}
	metric, err := chart.ParseMetric(mux.Vars(r)["metric"])
	if err != nil {
		writeError(w, r, http.StatusNotFound, "UNKNOWN_METRIC", err.Error())
		return
	}
	view, err := h.panel.View(r.Context(), sid)
	if err != nil {
		h.writeStoreError(w, r, err)
		return
	}
	ds := view.Charts.Get(metric)
	if ds == nil {
		writeError(w, r, http.StatusNotFound, "NO_READING", "No weather reading to chart")
		return
	}

	var buf bytes.Buffer
	if err := chart.RenderSVG(&buf, ds); err != nil {
		observability.LoggerFromContext(r.Context(), h.logger).Error("render chart", zap.String("metric", string(metric)), zap.Error(err))
		writeError(w, r, http.StatusInternalServerError, "RENDER_FAILED", "Unable to render chart")
		return
	}
	w.Header().Set("Content-Type", "image/svg+xml")
	w.Header().Set("Cache-Control", "no-store")
	_, _ = w.Write(buf.Bytes())
}

// GetCities handles GET /api/cities.
func (h *Handler) GetCities(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"placeholder": CityPlaceholder,
		"cities":      h.panel.Resolver().Cities(),
	})
}

// GetPanel handles GET /api/panel.
func (h *Handler) GetPanel(w http.ResponseWriter, r *http.Request) {
	sid, ok := h.sessionID(w, r)
	if !ok {
		return
	}
	h.writeView(w, r, sid)
}

type cityRequest struct {
	City *string `json:"city" validate:"required"`
}

// PutCity handles PUT /api/panel/city. An empty string clears the selection.
func (h *Handler) PutCity(w http.ResponseWriter, r *http.Request) {
	sid, ok := h.sessionID(w, r)
	if !ok {
		return
	}
	var req cityRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, r, http.StatusBadRequest, "INVALID_JSON", "Request body must be JSON")
		return
	}
	if err := validate.Struct(req); err != nil {
		writeError(w, r, http.StatusBadRequest, "INVALID_REQUEST", "city is required")
		return
	}
	if !h.setCity(w, r, sid, *req.City) {
		return
	}
	h.writeView(w, r, sid)
}

// PostSearchAPI handles POST /api/panel/search and returns the resulting view.
func (h *Handler) PostSearchAPI(w http.ResponseWriter, r *http.Request) {
	sid, ok := h.sessionID(w, r)
	if !ok {
		return
	}
	if !h.search(w, r, sid) {
		return
	}
	h.writeView(w, r, sid)
}

// setCity validates and stores the selection. Reports false after writing an error response.
func (h *Handler) setCity(w http.ResponseWriter, r *http.Request, sid, input string) bool {
	city := strings.TrimSpace(input)
	if city != "" {
		var err error
		city, err = validation.ValidateCity(city, h.cityMaxLength, h.panel.Resolver())
		if err != nil {
			writeError(w, r, http.StatusBadRequest, "INVALID_CITY", err.Error())
			return false
		}
	}
	if err := h.panel.SetCity(r.Context(), sid, city); err != nil {
		if errors.Is(err, validation.ErrCityUnknown) {
			writeError(w, r, http.StatusBadRequest, "INVALID_CITY", validation.ErrCityUnknown.Error())
			return false
		}
		h.writeStoreError(w, r, err)
		return false
	}
	return true
}

// search runs one search and feeds the result into the health tracker.
func (h *Handler) search(w http.ResponseWriter, r *http.Request, sid string) bool {
	outcome, searched, err := h.panel.Search(r.Context(), sid)
	if err != nil {
		h.writeStoreError(w, r, err)
		return false
	}
	if searched {
		h.tracker.RecordSearch(outcome.Kind == models.OutcomeSuccess)
	}
	return true
}

func (h *Handler) writeView(w http.ResponseWriter, r *http.Request, sid string) {
	view, err := h.panel.View(r.Context(), sid)
	if err != nil {
		h.writeStoreError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (h *Handler) sessionID(w http.ResponseWriter, r *http.Request) (string, bool) {
	sid := SessionIDFromContext(r.Context())
	if sid == "" {
		writeError(w, r, http.StatusBadRequest, "MISSING_SESSION", "No panel session")
		return "", false
	}
	return sid, true
}

// writeStoreError writes a 503 for session backend failures and logs the cause.
func (h *Handler) writeStoreError(w http.ResponseWriter, r *http.Request, err error) {
	observability.LoggerFromContext(r.Context(), h.logger).Error("session store error", zap.Error(err))
	writeError(w, r, http.StatusServiceUnavailable, "SESSION_STORE_UNAVAILABLE", "Panel state is unavailable")
}

// healthResult holds the computed health status and metadata for logging.
type healthResult struct {
	status     string
	statusCode int
	reason     string
}

// GetHealth handles GET /health.
func (h *Handler) GetHealth(w http.ResponseWriter, r *http.Request) {
	result, checks := h.computeHealthStatus()

	h.healthStatusMu.Lock()
	prev := h.healthStatusPrev
	if prev != "" && prev != result.status {
		h.logger.Info("health status transition",
			zap.String("previous_status", prev),
			zap.String("current_status", result.status),
			zap.String("reason", result.reason))
	}
	h.healthStatusPrev = result.status
	h.healthStatusMu.Unlock()

	writeJSON(w, result.statusCode, map[string]interface{}{
		"status":    result.status,
		"service":   "weather-panel",
		"version":   "dev",
		"checks":    checks,
		"uptime":    h.state.Uptime().Truncate(time.Second).String(),
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

// computeHealthStatus evaluates conditions in priority order:
// shutting-down > session backend unreachable > degraded > healthy.
func (h *Handler) computeHealthStatus() (healthResult, map[string]string) {
	checks := map[string]string{"weatherApi": "healthy"}
	if h.state.IsShuttingDown() {
		return healthResult{"shutting-down", http.StatusServiceUnavailable, "signal"}, checks
	}
	if h.healthConfig == nil {
		return healthResult{"healthy", http.StatusOK, ""}, checks
	}

	result := healthResult{"healthy", http.StatusOK, ""}
	if h.healthConfig.CachePing != nil {
		if err := h.healthConfig.CachePing(); err != nil {
			checks["cache"] = "unhealthy"
			result = healthResult{"degraded", http.StatusServiceUnavailable, "cache_unreachable"}
		} else {
			checks["cache"] = "healthy"
		}
	}

	// Failed searches past the threshold mean the weather API is the problem.
	if h.healthConfig.DegradedWindow > 0 && h.healthConfig.DegradedErrorPct > 0 {
		failures, total := h.tracker.ErrorRate(h.healthConfig.DegradedWindow)
		if total > 0 && failures*100 >= h.healthConfig.DegradedErrorPct*total {
			checks["weatherApi"] = "unhealthy"
			if result.status == "healthy" {
				result = healthResult{"degraded", http.StatusServiceUnavailable, "error_rate_breach"}
			}
		}
	}
	return result, checks
}

// writeJSON writes a JSON response with the specified HTTP status code.
func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError writes an error response in the standard error format with code, message,
// and requestId (correlation ID) if available in request context.
func writeError(w http.ResponseWriter, r *http.Request, status int, code, message string) {
	writeJSON(w, status, map[string]interface{}{
		"error": map[string]string{
			"code":      code,
			"message":   message,
			"requestId": observability.CorrelationIDFromContext(r.Context()),
		},
	})
}
