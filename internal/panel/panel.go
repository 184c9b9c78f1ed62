package panel

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/kjstillabower/weather-panel/internal/chart"
	"github.com/kjstillabower/weather-panel/internal/cities"
	"github.com/kjstillabower/weather-panel/internal/client"
	"github.com/kjstillabower/weather-panel/internal/models"
	"github.com/kjstillabower/weather-panel/internal/observability"
	"github.com/kjstillabower/weather-panel/internal/session"
	"github.com/kjstillabower/weather-panel/internal/validation"
)

// Service owns the panel state transitions for every session. It holds no
// per-session state itself; that lives in the session store.
type Service struct {
	resolver *cities.Resolver
	fetcher  client.WeatherClient
	store    session.Store
	logger   *zap.Logger
}

// NewService wires the resolver, outbound client and session store.
func NewService(resolver *cities.Resolver, fetcher client.WeatherClient, store session.Store, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		resolver: resolver,
		fetcher:  fetcher,
		store:    store,
		logger:   logger,
	}
}

// Resolver exposes the city mapping for rendering the dropdown.
func (s *Service) Resolver() *cities.Resolver {
	return s.resolver
}

// View is everything the UI shell renders for one session.
type View struct {
	SelectedCity string         `json:"selectedCity"`
	Outcome      models.Outcome `json:"outcome"`
	DisplayName  string         `json:"displayName,omitempty"`
	Charts       chart.Datasets `json:"charts"`
}

// HasReading reports whether the summary and charts should be rendered.
func (v View) HasReading() bool {
	return v.Outcome.Kind == models.OutcomeSuccess && v.Outcome.Reading != nil
}

// SetCity updates the selection only; it never fetches. An empty city clears
// the selection. Names outside the enumerated set are rejected with
// validation.ErrCityUnknown.
func (s *Service) SetCity(ctx context.Context, sessionID, city string) error {
	if city != "" && !s.resolver.Contains(city) {
		return fmt.Errorf("set city %q: %w", city, validation.ErrCityUnknown)
	}
	if err := s.store.SetSelection(ctx, sessionID, city); err != nil {
		return fmt.Errorf("store selection: %w", err)
	}
	return nil
}

// Search runs one search for the session's selected city and returns the
// outcome it stored. With no city selected it does nothing and returns
// searched=false. Fetch failures are absorbed into the outcome; the returned
// error only reports session store failures.
//
// Overlapping searches are neither cancelled nor ordered: every completion
// overwrites the outcome, so the response that arrives last wins even if its
// request was issued first. A search runs to completion even when the caller's
// context is cancelled, so a browser navigating away mid-flight still gets its
// result stored.
func (s *Service) Search(ctx context.Context, sessionID string) (outcome models.Outcome, searched bool, err error) {
	// Keeps the correlation ID and request logger, drops cancellation.
	ctx = context.WithoutCancel(ctx)
	logger := observability.LoggerFromContext(ctx, s.logger)

	city, err := s.store.Selection(ctx, sessionID)
	if err != nil {
		return models.Outcome{}, false, fmt.Errorf("load selection: %w", err)
	}
	if city == "" {
		observability.RecordSearch("", "skipped")
		logger.Debug("search skipped, no city selected")
		return models.Outcome{}, false, nil
	}

	if err := s.clearError(ctx, sessionID); err != nil {
		return models.Outcome{}, false, err
	}

	start := time.Now()
	outcome = s.fetch(ctx, city, logger)
	if err := s.store.SetOutcome(ctx, sessionID, outcome); err != nil {
		return outcome, true, fmt.Errorf("store outcome: %w", err)
	}

	label := "success"
	if outcome.Kind == models.OutcomeError {
		label = "error"
	}
	observability.RecordSearch(city, label)
	logger.Debug("search completed",
		zap.String("city", city),
		zap.String("outcome", label),
		zap.Duration("duration", time.Since(start)))
	return outcome, true, nil
}

// clearError drops a previous failure at the start of a search. A previous
// success stays visible until the new result lands. The read and write are not
// atomic: a search landing in between can be reset to idle, and this search's
// own completion then overwrites it, which last-arrival-wins already allows.
func (s *Service) clearError(ctx context.Context, sessionID string) error {
	prev, err := s.store.Outcome(ctx, sessionID)
	if err != nil {
		return fmt.Errorf("load outcome: %w", err)
	}
	if prev.Kind != models.OutcomeError {
		return nil
	}
	if err := s.store.SetOutcome(ctx, sessionID, models.IdleOutcome()); err != nil {
		return fmt.Errorf("clear error: %w", err)
	}
	return nil
}

func (s *Service) fetch(ctx context.Context, city string, logger *zap.Logger) models.Outcome {
	apiID, ok := s.resolver.ToAPIID(city)
	if !ok {
		err := fmt.Errorf("resolve %q: %w", city, client.ErrUnknownCity)
		return s.failure(err, city, logger)
	}
	reading, err := s.fetcher.GetCurrentWeather(ctx, apiID)
	if err != nil {
		return s.failure(fmt.Errorf("fetch %s: %w", apiID, err), city, logger)
	}
	return models.SuccessOutcome(reading)
}

func (s *Service) failure(err error, city string, logger *zap.Logger) models.Outcome {
	category := client.CategorizeError(err)
	observability.WeatherAPIErrorsTotal.WithLabelValues(string(category)).Inc()
	logger.Warn("weather lookup failed",
		zap.String("city", city),
		zap.String("category", string(category)),
		zap.Error(err))
	return models.FailureOutcome(models.FailureMessage)
}

// View loads the session state and derives the rendered view. The charts are
// projected fresh from the current reading on every call.
func (s *Service) View(ctx context.Context, sessionID string) (View, error) {
	city, err := s.store.Selection(ctx, sessionID)
	if err != nil {
		return View{}, fmt.Errorf("load selection: %w", err)
	}
	outcome, err := s.store.Outcome(ctx, sessionID)
	if err != nil {
		return View{}, fmt.Errorf("load outcome: %w", err)
	}

	v := View{
		SelectedCity: city,
		Outcome:      outcome,
		Charts:       chart.Project(outcome.Reading),
	}
	if outcome.Reading != nil {
		v.DisplayName = s.resolver.ToDisplayName(outcome.Reading.LocationName)
	}
	return v, nil
}
