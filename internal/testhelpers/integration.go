//go:build integration
// +build integration

package testhelpers

import (
	"os"
	"testing"
	"time"

	"go.uber.org/zap/zaptest"

	"github.com/kjstillabower/weather-panel/internal/cities"
	"github.com/kjstillabower/weather-panel/internal/client"
	"github.com/kjstillabower/weather-panel/internal/panel"
	"github.com/kjstillabower/weather-panel/internal/session"
)

// IntegrationTestConfig holds configuration for integration tests.
type IntegrationTestConfig struct {
	APIKey         string
	APIURL         string
	SessionBackend string // "in_memory" or "memcached"
	MemcachedAddr  string
}

// GetIntegrationConfig loads integration test configuration from environment.
// Skips test if WEATHER_API_KEY is not set.
func GetIntegrationConfig(t *testing.T) IntegrationTestConfig {
	t.Helper()
	apiKey := os.Getenv("WEATHER_API_KEY")
	if apiKey == "" {
		t.Skip("WEATHER_API_KEY not set, skipping integration test")
	}

	apiURL := os.Getenv("WEATHER_API_URL")
	if apiURL == "" {
		apiURL = "https://api.openweathermap.org/data/2.5/weather"
	}
	memcachedAddr := os.Getenv("MEMCACHED_ADDRS")
	if memcachedAddr == "" {
		memcachedAddr = "localhost:11211"
	}

	return IntegrationTestConfig{
		APIKey:         apiKey,
		APIURL:         apiURL,
		SessionBackend: os.Getenv("INTEGRATION_SESSION_BACKEND"),
		MemcachedAddr:  memcachedAddr,
	}
}

// SetupIntegrationPanel builds a panel service against the live weather API
// with the default city list. Falls back to the in-memory store when memcached
// is requested but unreachable. The returned cleanup closes the store.
func SetupIntegrationPanel(t *testing.T, cfg IntegrationTestConfig) (*panel.Service, func()) {
	t.Helper()
	weatherClient := SetupIntegrationClient(t, cfg)

	var store session.Store = session.NewInMemoryStore(5 * time.Minute)
	cleanup := func() {}
	if cfg.SessionBackend == "memcached" {
		mc := session.NewMemcachedStore(cfg.MemcachedAddr, 5*time.Minute, 500*time.Millisecond, 2)
		if err := mc.Ping(); err == nil {
			store = mc
			cleanup = func() { _ = mc.Close() }
			t.Logf("Using memcached session store at %s", cfg.MemcachedAddr)
		} else {
			t.Logf("memcached not available (%v), using in-memory store", err)
		}
	}

	return panel.NewService(cities.Default(), weatherClient, store, zaptest.NewLogger(t)), cleanup
}

// SetupIntegrationClient creates a weather client for integration tests.
func SetupIntegrationClient(t *testing.T, cfg IntegrationTestConfig) client.WeatherClient {
	t.Helper()
	c, err := client.NewOpenWeatherClient(cfg.APIKey, cfg.APIURL, "zh_tw", 5*time.Second)
	if err != nil {
		t.Fatalf("NewOpenWeatherClient() error = %v", err)
	}
	return c
}
