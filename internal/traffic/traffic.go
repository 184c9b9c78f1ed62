package traffic

import (
	"sync"
	"time"
)

const retention = 10 * time.Minute

// Tracker keeps sliding windows of search outcomes and rate-limit denials.
// The health handler reads it to decide whether the upstream looks degraded.
type Tracker struct {
	mu        sync.Mutex
	now       func() time.Time
	successes []time.Time
	failures  []time.Time
	denials   []time.Time
}

// NewTracker returns an empty tracker.
func NewTracker() *Tracker {
	return &Tracker{now: time.Now}
}

// RecordSearch records a completed search. ok is false when the outcome was the failure message.
func (t *Tracker) RecordSearch(ok bool) {
	if ok {
		t.record(&t.successes)
	} else {
		t.record(&t.failures)
	}
}

// RecordDenied records a rate-limit denial (429).
func (t *Tracker) RecordDenied() {
	t.record(&t.denials)
}

// ErrorRate returns (failures, total searches) within the window. Denials are excluded.
func (t *Tracker) ErrorRate(window time.Duration) (failures, total int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	cutoff := t.now().Add(-window)
	f := countSince(t.failures, cutoff)
	s := countSince(t.successes, cutoff)
	return f, f + s
}

// DenialCount returns the number of denials within the window.
func (t *Tracker) DenialCount(window time.Duration) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return countSince(t.denials, t.now().Add(-window))
}

// Reset clears all recorded events.
func (t *Tracker) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.successes, t.failures, t.denials = nil, nil, nil
}

func (t *Tracker) record(slice *[]time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()
	now := t.now()
	*slice = append(*slice, now)
	t.pruneLocked(now)
}

func countSince(times []time.Time, cutoff time.Time) int {
	n := 0
	for _, ts := range times {
		if !ts.Before(cutoff) {
			n++
		}
	}
	return n
}

// pruneLocked drops events older than the retention period. Timestamps are
// appended in order, so the stale ones form a prefix.
func (t *Tracker) pruneLocked(now time.Time) {
	cutoff := now.Add(-retention)
	for _, slice := range []*[]time.Time{&t.successes, &t.failures, &t.denials} {
		times := *slice
		i := 0
		for ; i < len(times) && times[i].Before(cutoff); i++ {
		}
		if i > 0 {
			*slice = append(times[:0], times[i:]...)
		}
	}
}
