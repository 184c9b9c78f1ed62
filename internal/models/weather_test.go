package models

import "testing"

func TestOutcomeConstructors_MutuallyExclusive(t *testing.T) {
	success := SuccessOutcome(WeatherReading{LocationName: "Taiwan", TemperatureC: 28.5})
	if success.Kind != OutcomeSuccess || success.Reading == nil || success.Error != "" {
		t.Errorf("SuccessOutcome() = %+v, want reading only", success)
	}

	failure := FailureOutcome(FailureMessage)
	if failure.Kind != OutcomeError || failure.Reading != nil || failure.Error != FailureMessage {
		t.Errorf("FailureOutcome() = %+v, want error only", failure)
	}

	idle := IdleOutcome()
	if idle.Kind != OutcomeIdle || idle.Reading != nil || idle.Error != "" {
		t.Errorf("IdleOutcome() = %+v, want empty idle", idle)
	}
}

func TestSuccessOutcome_CopiesReading(t *testing.T) {
	r := WeatherReading{LocationName: "Tokyo", TemperatureC: 20}
	o := SuccessOutcome(r)
	r.TemperatureC = 99
	if o.Reading.TemperatureC != 20 {
		t.Errorf("Reading.TemperatureC = %v, want 20 (outcome must not alias caller value)", o.Reading.TemperatureC)
	}
}

func TestOutcome_Normalize(t *testing.T) {
	var zero Outcome
	if !zero.IsZero() {
		t.Fatal("zero Outcome IsZero() = false")
	}
	if got := zero.Normalize(); got.Kind != OutcomeIdle {
		t.Errorf("Normalize() kind = %q, want %q", got.Kind, OutcomeIdle)
	}
	f := FailureOutcome("x")
	if got := f.Normalize(); got.Kind != OutcomeError {
		t.Errorf("Normalize() changed non-zero outcome: %+v", got)
	}
}
