package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/kjstillabower/weather-panel/internal/cities"
	"github.com/kjstillabower/weather-panel/internal/client"
	"github.com/kjstillabower/weather-panel/internal/config"
	httphandler "github.com/kjstillabower/weather-panel/internal/http"
	"github.com/kjstillabower/weather-panel/internal/lifecycle"
	"github.com/kjstillabower/weather-panel/internal/observability"
	"github.com/kjstillabower/weather-panel/internal/panel"
	"github.com/kjstillabower/weather-panel/internal/session"
	"github.com/kjstillabower/weather-panel/internal/traffic"
)

func main() {
	logger, err := observability.NewLogger()
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("config", zap.Error(err))
	}

	weatherClient, err := client.NewOpenWeatherClient(cfg.WeatherAPIKey, cfg.WeatherAPIURL, cfg.WeatherAPILang, cfg.WeatherAPITimeout)
	if err != nil {
		logger.Fatal("weather client", zap.Error(err))
	}

	resolver := cities.Default()
	observability.SetTrackedCities(resolver.DisplayNames())

	var store session.Store
	var memcacheStore *session.MemcachedStore
	var sweeper *session.Sweeper
	switch cfg.SessionBackend {
	case "memcached":
		memcacheStore = session.NewMemcachedStore(cfg.MemcachedAddrs, cfg.SessionTTL, cfg.MemcachedTimeout, cfg.MemcachedMaxIdleConns)
		store = memcacheStore
		logger.Info("session backend: memcached", zap.String("addrs", cfg.MemcachedAddrs))
	default:
		mem := session.NewInMemoryStore(cfg.SessionTTL)
		store = mem
		sweeper = session.NewSweeper(mem, cfg.SessionSweepInterval, logger)
		if err := sweeper.Start(); err != nil {
			logger.Fatal("session sweeper", zap.Error(err))
		}
		logger.Info("session backend: in_memory", zap.Duration("ttl", cfg.SessionTTL))
	}

	svc := panel.NewService(resolver, weatherClient, store, logger)

	healthConfig := &httphandler.HealthConfig{
		DegradedWindow:   cfg.DegradedWindow,
		DegradedErrorPct: cfg.DegradedErrorPct,
	}
	if memcacheStore != nil {
		healthConfig.CachePing = memcacheStore.Ping
	}

	var limiter *rate.Limiter
	if cfg.RateLimitRPS > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.RateLimitRPS), cfg.RateLimitBurst)
	}

	state := lifecycle.New()
	inFlight := &httphandler.InFlightTracker{}
	handler := httphandler.NewHandler(svc, traffic.NewTracker(), state, healthConfig, cfg.CityMaxLength, logger)
	router := httphandler.NewRouter(handler, httphandler.RouterOptions{
		Logger:      logger,
		RateLimiter: limiter,
		InFlight:    inFlight,
		SessionTTL:  cfg.SessionTTL,
	})

	srv := &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: writeTimeout(cfg.WeatherAPITimeout),
	}

	go func() {
		logger.Info("server starting", zap.String("addr", ":"+cfg.ServerPort))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server", zap.Error(err))
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	<-ctx.Done()
	stop()

	logger.Info("graceful shutdown triggered")
	state.SetShuttingDown(true)
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown", zap.Error(err))
	}

	logger.Info("waiting for in-flight requests", zap.Int64("count", inFlight.Count()))
	waitCtx, waitCancel := context.WithTimeout(context.Background(), cfg.ShutdownInFlightTimeout)
	defer waitCancel()
	if err := inFlight.WaitForZero(waitCtx, cfg.ShutdownInFlightCheckInterval); err != nil {
		logger.Warn("in-flight requests not completed", zap.Error(err), zap.Int64("remaining", inFlight.Count()))
	}

	if sweeper != nil {
		sweeper.Stop()
	}
	if memcacheStore != nil {
		if err := memcacheStore.Close(); err != nil {
			logger.Error("memcached close", zap.Error(err))
		}
	}

	if err := observability.FlushTelemetry(context.Background(), logger); err != nil {
		logger.Error("telemetry flush", zap.Error(err))
	}
	logger.Info("shutdown complete")
}

// writeTimeout leaves room for one outbound call plus rendering. With no
// outbound timeout there is no bound to derive, so the write deadline is off too.
func writeTimeout(apiTimeout time.Duration) time.Duration {
	if apiTimeout <= 0 {
		return 0
	}
	return apiTimeout + 10*time.Second
}
