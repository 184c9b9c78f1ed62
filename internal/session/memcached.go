package session

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/bradfitz/gomemcache/memcache"

	"github.com/kjstillabower/weather-panel/internal/models"
)

const keyPrefix = "panel:"

// MemcachedStore implements Store using memcached. Selection and outcome live
// under separate keys; each Set refreshes that key's expiry.
type MemcachedStore struct {
	client *memcache.Client
	ttl    time.Duration
}

// NewMemcachedStore creates a MemcachedStore. addrs is a comma-separated list
// (e.g. "localhost:11211" or "host1:11211,host2:11211"). timeout and maxIdleConns
// configure the client; both use package defaults if zero.
func NewMemcachedStore(addrs string, ttl, timeout time.Duration, maxIdleConns int) *MemcachedStore {
	servers := parseAddrs(addrs)
	if len(servers) == 0 {
		servers = []string{"localhost:11211"}
	}
	client := memcache.New(servers...)
	if timeout > 0 {
		client.Timeout = timeout
	}
	if maxIdleConns > 0 {
		client.MaxIdleConns = maxIdleConns
	}
	return &MemcachedStore{client: client, ttl: ttl}
}

func parseAddrs(s string) []string {
	var out []string
	for _, a := range strings.Split(s, ",") {
		a = strings.TrimSpace(a)
		if a != "" {
			out = append(out, a)
		}
	}
	return out
}

func selectionKey(id string) string { return keyPrefix + id + ":city" }
func outcomeKey(id string) string   { return keyPrefix + id + ":outcome" }

// Selection implements Store.
func (s *MemcachedStore) Selection(ctx context.Context, id string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	item, err := s.client.Get(selectionKey(id))
	if err != nil {
		if errors.Is(err, memcache.ErrCacheMiss) {
			return "", nil
		}
		return "", err
	}
	return string(item.Value), nil
}

// SetSelection implements Store.
func (s *MemcachedStore) SetSelection(ctx context.Context, id, city string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.client.Set(&memcache.Item{
		Key:        selectionKey(id),
		Value:      []byte(city),
		Expiration: expirationSeconds(s.ttl),
	})
}

// Outcome implements Store.
func (s *MemcachedStore) Outcome(ctx context.Context, id string) (models.Outcome, error) {
	if err := ctx.Err(); err != nil {
		return models.Outcome{}, err
	}
	item, err := s.client.Get(outcomeKey(id))
	if err != nil {
		if errors.Is(err, memcache.ErrCacheMiss) {
			return models.IdleOutcome(), nil
		}
		return models.Outcome{}, err
	}
	var o models.Outcome
	if err := json.Unmarshal(item.Value, &o); err != nil {
		return models.Outcome{}, err
	}
	return o.Normalize(), nil
}

// SetOutcome implements Store. memcached Set is last-writer-wins, matching the
// in-memory store.
func (s *MemcachedStore) SetOutcome(ctx context.Context, id string, outcome models.Outcome) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	raw, err := json.Marshal(outcome)
	if err != nil {
		return err
	}
	return s.client.Set(&memcache.Item{
		Key:        outcomeKey(id),
		Value:      raw,
		Expiration: expirationSeconds(s.ttl),
	})
}

// Ping checks if memcached is reachable. Used for health checks.
func (s *MemcachedStore) Ping() error {
	return s.client.Ping()
}

// Close closes the memcached client connections. Call during shutdown.
func (s *MemcachedStore) Close() error {
	return s.client.Close()
}

func expirationSeconds(ttl time.Duration) int32 {
	exp := int32(ttl.Seconds())
	const maxRelativeExp = 30 * 24 * 60 * 60 // 30 days
	if exp <= 0 || exp > maxRelativeExp {
		exp = 1800
	}
	return exp
}
