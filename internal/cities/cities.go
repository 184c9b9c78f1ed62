package cities

import (
	"errors"
	"fmt"
	"strings"

	"github.com/kjstillabower/weather-panel/internal/models"
)

// ErrInvalidMapping is returned by New when the city list is unusable.
var ErrInvalidMapping = errors.New("invalid city mapping")

var defaultCities = []models.City{
	{DisplayName: "台灣", APIID: "Taiwan"},
	{DisplayName: "倫敦", APIID: "London"},
	{DisplayName: "紐約", APIID: "New York"},
	{DisplayName: "東京", APIID: "Tokyo"},
	{DisplayName: "巴黎", APIID: "Paris"},
	{DisplayName: "悉尼", APIID: "Sydney"},
	{DisplayName: "柏林", APIID: "Berlin"},
	{DisplayName: "洛杉磯", APIID: "Los Angeles"},
	{DisplayName: "北京", APIID: "Beijing"},
	{DisplayName: "莫斯科", APIID: "Moscow"},
	{DisplayName: "德里", APIID: "Delhi"},
}

// Resolver maps dropdown display names to weather API identifiers and back.
// It is immutable after construction and safe for concurrent use.
type Resolver struct {
	entries []models.City
	forward map[string]string
}

// New builds a Resolver over entries, preserving their order for the dropdown.
func New(entries []models.City) (*Resolver, error) {
	if len(entries) == 0 {
		return nil, fmt.Errorf("%w: no cities", ErrInvalidMapping)
	}
	r := &Resolver{
		entries: make([]models.City, 0, len(entries)),
		forward: make(map[string]string, len(entries)),
	}
	for _, e := range entries {
		name := strings.TrimSpace(e.DisplayName)
		id := strings.TrimSpace(e.APIID)
		if name == "" || id == "" {
			return nil, fmt.Errorf("%w: empty display name or api id in %+v", ErrInvalidMapping, e)
		}
		if _, dup := r.forward[name]; dup {
			return nil, fmt.Errorf("%w: duplicate display name %q", ErrInvalidMapping, name)
		}
		r.forward[name] = id
		r.entries = append(r.entries, models.City{DisplayName: name, APIID: id})
	}
	return r, nil
}

// Default returns the resolver over the built-in city list.
func Default() *Resolver {
	r, err := New(defaultCities)
	if err != nil {
		panic(err)
	}
	return r
}

// ToAPIID returns the API identifier for displayName. ok is false for names outside the set.
func (r *Resolver) ToAPIID(displayName string) (apiID string, ok bool) {
	apiID, ok = r.forward[displayName]
	return apiID, ok
}

// ToDisplayName returns the display name of the first entry whose API id equals
// apiID, or apiID itself when none matches.
func (r *Resolver) ToDisplayName(apiID string) string {
	for _, e := range r.entries {
		if e.APIID == apiID {
			return e.DisplayName
		}
	}
	return apiID
}

// Contains reports whether displayName is one of the enumerated cities.
func (r *Resolver) Contains(displayName string) bool {
	_, ok := r.forward[displayName]
	return ok
}

// DisplayNames returns the dropdown entries in mapping order.
func (r *Resolver) DisplayNames() []string {
	out := make([]string, len(r.entries))
	for i, e := range r.entries {
		out[i] = e.DisplayName
	}
	return out
}

// Cities returns a copy of the mapping.
func (r *Resolver) Cities() []models.City {
	out := make([]models.City, len(r.entries))
	copy(out, r.entries)
	return out
}
