package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/kjstillabower/weather-panel/internal/models"
	"github.com/kjstillabower/weather-panel/internal/observability"
)

// WeatherClient fetches current conditions for an API location identifier.
type WeatherClient interface {
	GetCurrentWeather(ctx context.Context, apiID string) (models.WeatherReading, error)
}

var (
	ErrInvalidAPIKey     = errors.New("invalid API key")
	ErrLocationNotFound  = errors.New("location not found")
	ErrUpstreamFailure   = errors.New("upstream failure")
	ErrRateLimited       = errors.New("rate limited")
	ErrMalformedResponse = errors.New("malformed response")
)

const maxResponseBytes = 1 << 20

// OpenWeatherClient calls the OpenWeatherMap current-weather endpoint. Each
// GetCurrentWeather is exactly one HTTP request; there is no retry.
type OpenWeatherClient struct {
	apiKey string
	apiURL string
	lang   string
	client *http.Client
}

// NewOpenWeatherClient returns a client for apiURL (the full /data/2.5/weather URL).
// timeout is the http.Client timeout; zero leaves the client default (none).
func NewOpenWeatherClient(apiKey, apiURL, lang string, timeout time.Duration) (*OpenWeatherClient, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("%w: API key is required", ErrInvalidAPIKey)
	}
	if len(apiKey) < 10 {
		return nil, fmt.Errorf("%w: API key appears invalid (too short)", ErrInvalidAPIKey)
	}
	if _, err := url.Parse(apiURL); err != nil {
		return nil, fmt.Errorf("invalid API URL: %w", err)
	}

	return &OpenWeatherClient{
		apiKey: apiKey,
		apiURL: apiURL,
		lang:   lang,
		client: &http.Client{
			Timeout: timeout,
		},
	}, nil
}

// Fields are pointers so a missing key is distinguishable from a zero value.
type openWeatherResponse struct {
	Name    *string `json:"name"`
	Weather []struct {
		Main        string  `json:"main"`
		Description *string `json:"description"`
	} `json:"weather"`
	Main *struct {
		Temp     *float64 `json:"temp"`
		Humidity *float64 `json:"humidity"`
	} `json:"main"`
	Wind *struct {
		Speed *float64 `json:"speed"`
	} `json:"wind"`
}

// GetCurrentWeather issues one GET for apiID and maps the payload into a reading.
func (c *OpenWeatherClient) GetCurrentWeather(ctx context.Context, apiID string) (models.WeatherReading, error) {
	start := time.Now()

	req, err := c.buildRequest(ctx, apiID)
	if err != nil {
		observability.WeatherAPICallsTotal.WithLabelValues("error").Inc()
		return models.WeatherReading{}, fmt.Errorf("build request: %w", err)
	}

	if corrID := observability.CorrelationIDFromContext(ctx); corrID != "" {
		req.Header.Set("X-Correlation-ID", corrID)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		duration := time.Since(start).Seconds()
		observability.WeatherAPICallsTotal.WithLabelValues("error").Inc()
		observability.WeatherAPIDuration.WithLabelValues("error").Observe(duration)

		if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
			return models.WeatherReading{}, fmt.Errorf("request timeout: %w", err)
		}
		return models.WeatherReading{}, fmt.Errorf("http request failed: %w", err)
	}
	defer resp.Body.Close()

	duration := time.Since(start).Seconds()
	status := statusLabel(resp.StatusCode)
	observability.WeatherAPICallsTotal.WithLabelValues(status).Inc()
	observability.WeatherAPIDuration.WithLabelValues(status).Observe(duration)

	if err := handleErrorResponse(resp); err != nil {
		return models.WeatherReading{}, err
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return models.WeatherReading{}, fmt.Errorf("read response body: %w", err)
	}

	var apiResp openWeatherResponse
	if err := json.Unmarshal(body, &apiResp); err != nil {
		return models.WeatherReading{}, fmt.Errorf("%w: parse response: %v", ErrMalformedResponse, err)
	}

	return mapResponse(apiResp)
}

func (c *OpenWeatherClient) buildRequest(ctx context.Context, apiID string) (*http.Request, error) {
	baseURL, err := url.Parse(c.apiURL)
	if err != nil {
		return nil, fmt.Errorf("invalid API URL: %w", err)
	}

	params := url.Values{}
	params.Set("q", apiID)
	params.Set("appid", c.apiKey)
	params.Set("units", "metric")
	if c.lang != "" {
		params.Set("lang", c.lang)
	}
	baseURL.RawQuery = params.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, baseURL.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("Accept", "application/json")
	return req, nil
}

func handleErrorResponse(resp *http.Response) error {
	switch resp.StatusCode {
	case http.StatusUnauthorized:
		return fmt.Errorf("%w: HTTP %d", ErrInvalidAPIKey, resp.StatusCode)
	case http.StatusNotFound:
		return fmt.Errorf("%w", ErrLocationNotFound)
	case http.StatusTooManyRequests:
		return fmt.Errorf("%w", ErrRateLimited)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("%w: HTTP %d", ErrUpstreamFailure, resp.StatusCode)
	}

	return nil
}

// mapResponse requires every field the panel renders. A payload missing any
// of them is malformed, not a partial success.
func mapResponse(apiResp openWeatherResponse) (models.WeatherReading, error) {
	switch {
	case apiResp.Name == nil:
		return models.WeatherReading{}, fmt.Errorf("%w: missing name", ErrMalformedResponse)
	case len(apiResp.Weather) == 0 || apiResp.Weather[0].Description == nil:
		return models.WeatherReading{}, fmt.Errorf("%w: missing weather[0].description", ErrMalformedResponse)
	case apiResp.Main == nil || apiResp.Main.Temp == nil || apiResp.Main.Humidity == nil:
		return models.WeatherReading{}, fmt.Errorf("%w: missing main.temp or main.humidity", ErrMalformedResponse)
	case apiResp.Wind == nil || apiResp.Wind.Speed == nil:
		return models.WeatherReading{}, fmt.Errorf("%w: missing wind.speed", ErrMalformedResponse)
	}

	return models.WeatherReading{
		LocationName: *apiResp.Name,
		Description:  *apiResp.Weather[0].Description,
		TemperatureC: *apiResp.Main.Temp,
		HumidityPct:  *apiResp.Main.Humidity,
		WindSpeedMps: *apiResp.Wind.Speed,
	}, nil
}

func statusLabel(statusCode int) string {
	if statusCode >= 200 && statusCode < 300 {
		return "success"
	}
	if statusCode == http.StatusTooManyRequests {
		return "rate_limited"
	}
	if statusCode >= 400 && statusCode < 500 {
		return "client_error"
	}
	if statusCode >= 500 {
		return "server_error"
	}
	return "error"
}
