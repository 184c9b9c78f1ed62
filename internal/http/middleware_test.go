package http

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
	"golang.org/x/time/rate"

	"github.com/kjstillabower/weather-panel/internal/observability"
	"github.com/kjstillabower/weather-panel/internal/traffic"
)

func TestCorrelationIDMiddleware_Generated(t *testing.T) {
	var ctxID string
	h := CorrelationIDMiddleware(zap.NewNop())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctxID = observability.CorrelationIDFromContext(r.Context())
	}))

	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))

	header := w.Header().Get("X-Correlation-ID")
	if header == "" {
		t.Fatal("X-Correlation-ID header missing")
	}
	if ctxID != header {
		t.Errorf("context correlation ID = %q, want %q", ctxID, header)
	}
}

// TestCorrelationIDMiddleware_Propagated verifies a client-provided ID is kept
// and attached to the request-scoped logger.
func TestCorrelationIDMiddleware_Propagated(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	h := CorrelationIDMiddleware(zap.New(core))(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		observability.LoggerFromContext(r.Context(), nil).Info("inside")
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Correlation-ID", "client-provided-id")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)

	if got := w.Header().Get("X-Correlation-ID"); got != "client-provided-id" {
		t.Errorf("X-Correlation-ID = %q, want client-provided-id", got)
	}
	entries := logs.FilterMessage("inside").All()
	if len(entries) != 1 {
		t.Fatalf("log entries = %d, want 1", len(entries))
	}
	if got := entries[0].ContextMap()["correlation_id"]; got != "client-provided-id" {
		t.Errorf("logged correlation_id = %v, want client-provided-id", got)
	}
}

func TestSessionMiddleware(t *testing.T) {
	var seen string
	h := SessionMiddleware(30 * time.Minute)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = SessionIDFromContext(r.Context())
	}))

	serve := func(cookie *http.Cookie) *http.Cookie {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		if cookie != nil {
			req.AddCookie(cookie)
		}
		w := httptest.NewRecorder()
		h.ServeHTTP(w, req)
		for _, c := range w.Result().Cookies() {
			if c.Name == SessionCookieName {
				return c
			}
		}
		t.Fatal("no session cookie set")
		return nil
	}

	t.Run("issues new", func(t *testing.T) {
		c := serve(nil)
		if c.Value == "" || c.Value != seen {
			t.Errorf("cookie = %q, context = %q; want equal and non-empty", c.Value, seen)
		}
		if !c.HttpOnly || c.MaxAge != 1800 {
			t.Errorf("cookie HttpOnly=%v MaxAge=%d, want true/1800", c.HttpOnly, c.MaxAge)
		}
	})

	t.Run("reuses valid", func(t *testing.T) {
		first := serve(nil)
		second := serve(&http.Cookie{Name: SessionCookieName, Value: first.Value})
		if second.Value != first.Value || seen != first.Value {
			t.Errorf("session = %q, want reused %q", second.Value, first.Value)
		}
	})

	t.Run("replaces malformed", func(t *testing.T) {
		c := serve(&http.Cookie{Name: SessionCookieName, Value: "not-a-uuid"})
		if c.Value == "not-a-uuid" || seen == "not-a-uuid" {
			t.Error("malformed session ID should be replaced")
		}
	})
}

// TestRateLimitMiddleware_Denies verifies the 429 error shape and that denials
// reach the traffic tracker.
func TestRateLimitMiddleware_Denies(t *testing.T) {
	tracker := traffic.NewTracker()
	limiter := rate.NewLimiter(rate.Limit(0), 1)
	h := RateLimitMiddleware(limiter, tracker)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
	if w.Code != http.StatusNoContent {
		t.Fatalf("first request status = %d, want 204", w.Code)
	}

	w = httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
	if w.Code != http.StatusTooManyRequests {
		t.Fatalf("second request status = %d, want 429", w.Code)
	}
	var body struct {
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Error.Code != "RATE_LIMITED" {
		t.Errorf("code = %q, want RATE_LIMITED", body.Error.Code)
	}
	if n := tracker.DenialCount(time.Minute); n != 1 {
		t.Errorf("DenialCount() = %d, want 1", n)
	}
}

func TestRateLimitMiddleware_NilLimiterPassesThrough(t *testing.T) {
	h := RateLimitMiddleware(nil, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))
	for i := 0; i < 5; i++ {
		w := httptest.NewRecorder()
		h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
		if w.Code != http.StatusNoContent {
			t.Fatalf("request %d status = %d, want 204", i, w.Code)
		}
	}
}

// TestRouter_RateLimitSkipsHealth verifies probes are never throttled while
// panel routes are.
func TestRouter_RateLimitSkipsHealth(t *testing.T) {
	env := newTestEnv(t, nil, rate.NewLimiter(rate.Limit(0), 1))

	if w := env.do(t, http.MethodGet, "/api/panel", "", ""); w.Code != http.StatusOK {
		t.Fatalf("first panel request status = %d, want 200", w.Code)
	}
	if w := env.do(t, http.MethodGet, "/api/panel", "", ""); w.Code != http.StatusTooManyRequests {
		t.Errorf("second panel request status = %d, want 429", w.Code)
	}
	for i := 0; i < 3; i++ {
		if w := env.do(t, http.MethodGet, "/health", "", ""); w.Code != http.StatusOK {
			t.Errorf("/health status = %d, want 200", w.Code)
		}
	}
}

func TestGetRoute_UsesTemplate(t *testing.T) {
	var route string
	router := mux.NewRouter()
	router.HandleFunc("/charts/{metric:[a-z]+}.svg", func(w http.ResponseWriter, r *http.Request) {
		route = getRoute(r)
	})
	router.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/charts/wind.svg", nil))

	if route != "/charts/{metric:[a-z]+}.svg" {
		t.Errorf("getRoute() = %q, want path template", route)
	}
	if got := getRoute(httptest.NewRequest(http.MethodGet, "/charts/humidity.svg", nil)); got != "/charts/{metric}.svg" {
		t.Errorf("getRoute() without route = %q, want /charts/{metric}.svg", got)
	}
}

func TestStatusCodeString(t *testing.T) {
	for code, want := range map[int]string{200: "2xx", 303: "3xx", 404: "4xx", 503: "5xx"} {
		if got := statusCodeString(code); got != want {
			t.Errorf("statusCodeString(%d) = %q, want %q", code, got, want)
		}
	}
}
