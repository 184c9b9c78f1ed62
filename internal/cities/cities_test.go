package cities

import (
	"errors"
	"testing"

	"github.com/kjstillabower/weather-panel/internal/models"
)

// TestDefault_RoundTrip verifies every enumerated display name resolves to a
// non-empty API id and that the reverse lookup returns the same name.
func TestDefault_RoundTrip(t *testing.T) {
	r := Default()
	names := r.DisplayNames()
	if len(names) != 11 {
		t.Fatalf("DisplayNames() len = %d, want 11", len(names))
	}
	for _, name := range names {
		id, ok := r.ToAPIID(name)
		if !ok || id == "" {
			t.Errorf("ToAPIID(%q) = %q, %v; want non-empty id", name, id, ok)
			continue
		}
		if got := r.ToDisplayName(id); got != name {
			t.Errorf("ToDisplayName(ToAPIID(%q)) = %q, want %q", name, got, name)
		}
	}
}

func TestResolver_Lookups(t *testing.T) {
	r := Default()

	tests := []struct {
		name    string
		display string
		wantID  string
		wantOK  bool
	}{
		{"taiwan", "台灣", "Taiwan", true},
		{"multi-word id", "洛杉磯", "Los Angeles", true},
		{"unknown", "大阪", "", false},
		{"empty", "", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			id, ok := r.ToAPIID(tt.display)
			if id != tt.wantID || ok != tt.wantOK {
				t.Errorf("ToAPIID(%q) = %q, %v; want %q, %v", tt.display, id, ok, tt.wantID, tt.wantOK)
			}
			if r.Contains(tt.display) != tt.wantOK {
				t.Errorf("Contains(%q) = %v, want %v", tt.display, !tt.wantOK, tt.wantOK)
			}
		})
	}
}

func TestResolver_ToDisplayName_FallsBackToInput(t *testing.T) {
	r := Default()
	if got := r.ToDisplayName("Osaka"); got != "Osaka" {
		t.Errorf("ToDisplayName(Osaka) = %q, want input unchanged", got)
	}
}

func TestResolver_ToDisplayName_FirstMatchWins(t *testing.T) {
	r, err := New([]models.City{
		{DisplayName: "台北", APIID: "Taipei"},
		{DisplayName: "臺北", APIID: "Taipei"},
	})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if got := r.ToDisplayName("Taipei"); got != "台北" {
		t.Errorf("ToDisplayName(Taipei) = %q, want first entry 台北", got)
	}
}

func TestNew_RejectsBadMappings(t *testing.T) {
	tests := []struct {
		name    string
		entries []models.City
	}{
		{"empty list", nil},
		{"empty display name", []models.City{{DisplayName: " ", APIID: "X"}}},
		{"empty api id", []models.City{{DisplayName: "X", APIID: ""}}},
		{"duplicate display name", []models.City{{DisplayName: "A", APIID: "X"}, {DisplayName: "A", APIID: "Y"}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, err := New(tt.entries)
			if !errors.Is(err, ErrInvalidMapping) {
				t.Errorf("New() error = %v, want ErrInvalidMapping", err)
			}
			if r != nil {
				t.Error("New() returned resolver on error")
			}
		})
	}
}

func TestDisplayNames_ReturnsCopy(t *testing.T) {
	r := Default()
	names := r.DisplayNames()
	names[0] = "mutated"
	if r.DisplayNames()[0] != "台灣" {
		t.Error("DisplayNames() exposes internal slice")
	}
}
