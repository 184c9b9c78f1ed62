package session

import (
	"time"

	"github.com/go-co-op/gocron"
	"go.uber.org/zap"

	"github.com/kjstillabower/weather-panel/internal/observability"
)

// Sweepable is implemented by stores that need explicit expiry.
type Sweepable interface {
	Sweep() int
}

// Sweeper periodically removes expired sessions from an in-memory store.
type Sweeper struct {
	scheduler *gocron.Scheduler
	store     Sweepable
	interval  time.Duration
	logger    *zap.Logger
}

// NewSweeper creates a Sweeper. interval <= 0 falls back to one minute.
func NewSweeper(store Sweepable, interval time.Duration, logger *zap.Logger) *Sweeper {
	if interval <= 0 {
		interval = time.Minute
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Sweeper{
		scheduler: gocron.NewScheduler(time.UTC),
		store:     store,
		interval:  interval,
		logger:    logger,
	}
}

// RunOnce sweeps once and returns the number of removed sessions.
func (s *Sweeper) RunOnce() int {
	removed := s.store.Sweep()
	if removed > 0 {
		observability.SessionsExpiredTotal.Add(float64(removed))
		s.logger.Debug("expired sessions removed", zap.Int("count", removed))
	}
	return removed
}

// Start schedules the sweep job and starts the scheduler asynchronously.
func (s *Sweeper) Start() error {
	if _, err := s.scheduler.Every(s.interval).Do(func() { s.RunOnce() }); err != nil {
		return err
	}
	s.scheduler.StartAsync()
	s.logger.Info("session sweeper started", zap.Duration("interval", s.interval))
	return nil
}

// Stop stops the scheduler and cancels future sweeps.
func (s *Sweeper) Stop() {
	s.scheduler.Stop()
}
