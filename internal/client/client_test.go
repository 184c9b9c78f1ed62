package client

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/kjstillabower/weather-panel/internal/observability"
)

const taiwanPayload = `{"name":"Taiwan","weather":[{"main":"Clear","description":"clear sky"}],"main":{"temp":28.5,"humidity":60},"wind":{"speed":3.2}}`

func TestNewOpenWeatherClient_InvalidAPIKey(t *testing.T) {
	tests := []struct {
		name    string
		apiKey  string
		wantErr error
	}{
		{"empty API key", "", ErrInvalidAPIKey},
		{"too short API key", "short", ErrInvalidAPIKey},
		{"valid API key", "valid-api-key-12345", nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client, err := NewOpenWeatherClient(tt.apiKey, "https://api.test.com", "zh_tw", 2*time.Second)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Errorf("NewOpenWeatherClient() error = %v, want %v", err, tt.wantErr)
				}
				if client != nil {
					t.Errorf("NewOpenWeatherClient() expected nil client on error")
				}
				return
			}
			if err != nil {
				t.Fatalf("NewOpenWeatherClient() unexpected error: %v", err)
			}
			if client == nil {
				t.Fatalf("NewOpenWeatherClient() expected client, got nil")
			}
		})
	}
}

// TestOpenWeatherClient_GetCurrentWeather_Success verifies the query string
// and that every rendered field is mapped from the payload.
func TestOpenWeatherClient_GetCurrentWeather_Success(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			t.Errorf("expected GET, got %s", r.Method)
		}
		q := r.URL.Query()
		if q.Get("q") != "New York" {
			t.Errorf("q = %q, want %q", q.Get("q"), "New York")
		}
		if q.Get("appid") != "test-api-key-12345" {
			t.Errorf("appid = %q, want test key", q.Get("appid"))
		}
		if q.Get("units") != "metric" {
			t.Errorf("units = %q, want metric", q.Get("units"))
		}
		if q.Get("lang") != "zh_tw" {
			t.Errorf("lang = %q, want zh_tw", q.Get("lang"))
		}
		if got := r.Header.Get("X-Correlation-ID"); got != "corr-1" {
			t.Errorf("X-Correlation-ID = %q, want corr-1", got)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(taiwanPayload))
	}))
	defer server.Close()

	client, err := NewOpenWeatherClient("test-api-key-12345", server.URL, "zh_tw", 2*time.Second)
	if err != nil {
		t.Fatalf("NewOpenWeatherClient() error = %v", err)
	}

	ctx := observability.ContextWithCorrelationID(context.Background(), "corr-1")
	got, err := client.GetCurrentWeather(ctx, "New York")
	if err != nil {
		t.Fatalf("GetCurrentWeather() error = %v", err)
	}

	if got.LocationName != "Taiwan" {
		t.Errorf("LocationName = %q, want Taiwan", got.LocationName)
	}
	if got.Description != "clear sky" {
		t.Errorf("Description = %q, want clear sky", got.Description)
	}
	if got.TemperatureC != 28.5 {
		t.Errorf("TemperatureC = %v, want 28.5", got.TemperatureC)
	}
	if got.HumidityPct != 60 {
		t.Errorf("HumidityPct = %v, want 60", got.HumidityPct)
	}
	if got.WindSpeedMps != 3.2 {
		t.Errorf("WindSpeedMps = %v, want 3.2", got.WindSpeedMps)
	}
}

func TestOpenWeatherClient_GetCurrentWeather_OmitsEmptyLang(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Has("lang") {
			t.Errorf("lang should be omitted, got %q", r.URL.RawQuery)
		}
		_, _ = w.Write([]byte(taiwanPayload))
	}))
	defer server.Close()

	client, _ := NewOpenWeatherClient("test-api-key-12345", server.URL, "", time.Second)
	if _, err := client.GetCurrentWeather(context.Background(), "Taiwan"); err != nil {
		t.Fatalf("GetCurrentWeather() error = %v", err)
	}
}

func TestOpenWeatherClient_GetCurrentWeather_ErrorHandling(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		wantErr error
	}{
		{"401 unauthorized", http.StatusUnauthorized, "", ErrInvalidAPIKey},
		{"404 not found", http.StatusNotFound, `{"cod":"404","message":"city not found"}`, ErrLocationNotFound},
		{"429 rate limited", http.StatusTooManyRequests, "", ErrRateLimited},
		{"500 server error", http.StatusInternalServerError, "", ErrUpstreamFailure},
		{"418 other client error", http.StatusTeapot, "", ErrUpstreamFailure},
		{"invalid json", http.StatusOK, `{"name":`, ErrMalformedResponse},
		{"missing name", http.StatusOK, `{"weather":[{"description":"x"}],"main":{"temp":1,"humidity":2},"wind":{"speed":3}}`, ErrMalformedResponse},
		{"empty weather", http.StatusOK, `{"name":"X","weather":[],"main":{"temp":1,"humidity":2},"wind":{"speed":3}}`, ErrMalformedResponse},
		{"weather entry without description", http.StatusOK, `{"name":"X","weather":[{}],"main":{"temp":1,"humidity":2},"wind":{"speed":3}}`, ErrMalformedResponse},
		{"null description", http.StatusOK, `{"name":"X","weather":[{"description":null}],"main":{"temp":1,"humidity":2},"wind":{"speed":3}}`, ErrMalformedResponse},
		{"missing temp", http.StatusOK, `{"name":"X","weather":[{"description":"x"}],"main":{"humidity":2},"wind":{"speed":3}}`, ErrMalformedResponse},
		{"missing wind", http.StatusOK, `{"name":"X","weather":[{"description":"x"}],"main":{"temp":1,"humidity":2}}`, ErrMalformedResponse},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var calls atomic.Int32
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				calls.Add(1)
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer server.Close()

			client, err := NewOpenWeatherClient("test-api-key-12345", server.URL, "zh_tw", 2*time.Second)
			if err != nil {
				t.Fatalf("NewOpenWeatherClient() error = %v", err)
			}

			_, err = client.GetCurrentWeather(context.Background(), "Taiwan")
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("GetCurrentWeather() error = %v, want %v", err, tt.wantErr)
			}
			if n := calls.Load(); n != 1 {
				t.Errorf("upstream calls = %d, want exactly 1 (no retry)", n)
			}
		})
	}
}

func TestOpenWeatherClient_GetCurrentWeather_TransportError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := server.URL
	server.Close()

	client, _ := NewOpenWeatherClient("test-api-key-12345", url, "zh_tw", time.Second)
	_, err := client.GetCurrentWeather(context.Background(), "Taiwan")
	if err == nil {
		t.Fatal("GetCurrentWeather() expected error for closed server")
	}
	if got := CategorizeError(err); got != ErrorCategoryNetwork {
		t.Errorf("CategorizeError() = %v, want network", got)
	}
}

func TestOpenWeatherClient_GetCurrentWeather_ContextCanceled(t *testing.T) {
	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-release
	}))
	defer server.Close()
	defer close(release)

	client, _ := NewOpenWeatherClient("test-api-key-12345", server.URL, "zh_tw", 0)
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := client.GetCurrentWeather(ctx, "Taiwan")
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("GetCurrentWeather() error = %v, want context.DeadlineExceeded", err)
	}
}

func TestStatusLabel(t *testing.T) {
	tests := []struct {
		code int
		want string
	}{
		{200, "success"},
		{429, "rate_limited"},
		{404, "client_error"},
		{503, "server_error"},
		{302, "error"},
	}
	for _, tt := range tests {
		if got := statusLabel(tt.code); got != tt.want {
			t.Errorf("statusLabel(%d) = %q, want %q", tt.code, got, tt.want)
		}
	}
}
