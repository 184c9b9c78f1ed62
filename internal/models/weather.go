package models

// FailureMessage is the only error text the panel ever shows. Unknown city,
// transport failure, non-2xx and malformed payloads all collapse into it.
const FailureMessage = "city not found, please reselect"

// City pairs the dropdown display name with the identifier the weather API expects.
type City struct {
	DisplayName string `json:"displayName"`
	APIID       string `json:"apiId"`
}

// WeatherReading is the projection of one successful current-weather response.
type WeatherReading struct {
	LocationName string  `json:"locationName"`
	Description  string  `json:"description"`
	TemperatureC float64 `json:"temperatureC"`
	HumidityPct  float64 `json:"humidityPct"`
	WindSpeedMps float64 `json:"windSpeedMps"`
}

// OutcomeKind discriminates the Outcome union.
type OutcomeKind string

const (
	OutcomeIdle    OutcomeKind = "idle"
	OutcomeSuccess OutcomeKind = "success"
	OutcomeError   OutcomeKind = "error"
)

// Outcome is the result of the last search. Reading is set only for
// OutcomeSuccess and Error only for OutcomeError; build values with the
// constructors below so the two are never populated together.
type Outcome struct {
	Kind    OutcomeKind     `json:"kind"`
	Reading *WeatherReading `json:"reading,omitempty"`
	Error   string          `json:"error,omitempty"`
}

// IdleOutcome is the outcome before any search completed.
func IdleOutcome() Outcome {
	return Outcome{Kind: OutcomeIdle}
}

// SuccessOutcome wraps a reading. The reading is copied.
func SuccessOutcome(r WeatherReading) Outcome {
	return Outcome{Kind: OutcomeSuccess, Reading: &r}
}

// FailureOutcome carries a user-facing message and no reading.
func FailureOutcome(msg string) Outcome {
	return Outcome{Kind: OutcomeError, Error: msg}
}

// IsZero reports whether o was never set. Stores treat it as idle.
func (o Outcome) IsZero() bool {
	return o.Kind == ""
}

// Normalize maps the zero value to IdleOutcome.
func (o Outcome) Normalize() Outcome {
	if o.IsZero() {
		return IdleOutcome()
	}
	return o
}
