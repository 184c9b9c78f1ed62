// Package session keeps panel state per browser, keyed by the session cookie.
// State outlives a page reload: the selection and last outcome stay until the
// session has been idle for the configured TTL. A browser without the cookie
// starts from an empty selection and the idle outcome.
package session

import (
	"context"
	"sync"
	"time"

	"github.com/kjstillabower/weather-panel/internal/models"
	"github.com/kjstillabower/weather-panel/internal/observability"
)

// Store holds per-session panel state. Selection and outcome are separate
// values so a search completing after a dropdown change does not undo it.
// Reads of an unknown session return the empty selection and the idle outcome.
type Store interface {
	Selection(ctx context.Context, id string) (string, error)
	SetSelection(ctx context.Context, id, city string) error
	Outcome(ctx context.Context, id string) (models.Outcome, error)
	SetOutcome(ctx context.Context, id string, outcome models.Outcome) error
}

// InMemoryStore implements Store with a mutex-guarded map. Entries idle for
// longer than ttl are removed by Sweep.
type InMemoryStore struct {
	mu   sync.Mutex
	ttl  time.Duration
	now  func() time.Time
	data map[string]*entry
}

type entry struct {
	city     string
	outcome  models.Outcome
	lastSeen time.Time
}

// NewInMemoryStore creates an in-memory store. ttl <= 0 disables expiry.
func NewInMemoryStore(ttl time.Duration) *InMemoryStore {
	return &InMemoryStore{
		ttl:  ttl,
		now:  time.Now,
		data: make(map[string]*entry),
	}
}

// Selection implements Store.
func (s *InMemoryStore) Selection(ctx context.Context, id string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.lookupLocked(id)
	if !ok {
		return "", nil
	}
	return e.city, nil
}

// SetSelection implements Store.
func (s *InMemoryStore) SetSelection(ctx context.Context, id, city string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.upsertLocked(id).city = city
	return nil
}

// Outcome implements Store.
func (s *InMemoryStore) Outcome(ctx context.Context, id string) (models.Outcome, error) {
	if err := ctx.Err(); err != nil {
		return models.Outcome{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.lookupLocked(id)
	if !ok {
		return models.IdleOutcome(), nil
	}
	return e.outcome.Normalize(), nil
}

// SetOutcome implements Store. The write is unconditional.
func (s *InMemoryStore) SetOutcome(ctx context.Context, id string, outcome models.Outcome) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.upsertLocked(id).outcome = outcome
	return nil
}

// Len returns the number of live sessions.
func (s *InMemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.data)
}

// Sweep removes sessions idle for longer than the TTL and returns how many were removed.
func (s *InMemoryStore) Sweep() int {
	if s.ttl <= 0 {
		return 0
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	cutoff := s.now().Add(-s.ttl)
	removed := 0
	for id, e := range s.data {
		if e.lastSeen.Before(cutoff) {
			delete(s.data, id)
			removed++
		}
	}
	observability.ActiveSessions.Set(float64(len(s.data)))
	return removed
}

func (s *InMemoryStore) lookupLocked(id string) (*entry, bool) {
	e, ok := s.data[id]
	if !ok {
		return nil, false
	}
	now := s.now()
	if s.ttl > 0 && now.Sub(e.lastSeen) > s.ttl {
		delete(s.data, id)
		observability.ActiveSessions.Set(float64(len(s.data)))
		return nil, false
	}
	e.lastSeen = now
	return e, true
}

func (s *InMemoryStore) upsertLocked(id string) *entry {
	e, ok := s.lookupLocked(id)
	if !ok {
		e = &entry{outcome: models.IdleOutcome(), lastSeen: s.now()}
		s.data[id] = e
		observability.ActiveSessions.Set(float64(len(s.data)))
	}
	return e
}
