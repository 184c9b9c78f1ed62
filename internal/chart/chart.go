package chart

import (
	"errors"
	"fmt"
	"io"

	gochart "github.com/wcharczuk/go-chart"
	"github.com/wcharczuk/go-chart/drawing"

	"github.com/kjstillabower/weather-panel/internal/models"
)

// Metric names one of the three charts. Values double as URL path segments.
type Metric string

const (
	MetricTemperature Metric = "temperature"
	MetricHumidity    Metric = "humidity"
	MetricWindSpeed   Metric = "wind"
)

// ErrUnknownMetric is returned by ParseMetric for names outside the three charts.
var ErrUnknownMetric = errors.New("unknown chart metric")

// ErrNoData is returned by RenderSVG when given a nil dataset.
var ErrNoData = errors.New("no chart data")

// Dataset is a single-category, single-series bar dataset.
type Dataset struct {
	Metric   Metric  `json:"metric"`
	Label    string  `json:"label"`
	Category string  `json:"category"`
	Value    float64 `json:"value"`
	Color    string  `json:"color"`
}

// Datasets holds the three charts. All fields are nil when there is no reading.
type Datasets struct {
	Temperature *Dataset `json:"temperature,omitempty"`
	Humidity    *Dataset `json:"humidity,omitempty"`
	WindSpeed   *Dataset `json:"windSpeed,omitempty"`
}

// Project derives the three datasets from reading. It is a pure function and
// is called on every render; nothing is cached.
func Project(reading *models.WeatherReading) Datasets {
	if reading == nil {
		return Datasets{}
	}
	return Datasets{
		Temperature: &Dataset{
			Metric:   MetricTemperature,
			Label:    "Temperature (°C)",
			Category: "Temperature",
			Value:    reading.TemperatureC,
			Color:    "ff5733",
		},
		Humidity: &Dataset{
			Metric:   MetricHumidity,
			Label:    "Humidity (%)",
			Category: "Humidity",
			Value:    reading.HumidityPct,
			Color:    "4caf50",
		},
		WindSpeed: &Dataset{
			Metric:   MetricWindSpeed,
			Label:    "Wind Speed (m/s)",
			Category: "Wind Speed",
			Value:    reading.WindSpeedMps,
			Color:    "00bcd4",
		},
	}
}

// Empty reports whether there is nothing to chart.
func (d Datasets) Empty() bool {
	return d.Temperature == nil && d.Humidity == nil && d.WindSpeed == nil
}

// All returns the non-nil datasets in display order.
func (d Datasets) All() []*Dataset {
	var out []*Dataset
	for _, ds := range []*Dataset{d.Temperature, d.Humidity, d.WindSpeed} {
		if ds != nil {
			out = append(out, ds)
		}
	}
	return out
}

// Get returns the dataset for m, or nil.
func (d Datasets) Get(m Metric) *Dataset {
	switch m {
	case MetricTemperature:
		return d.Temperature
	case MetricHumidity:
		return d.Humidity
	case MetricWindSpeed:
		return d.WindSpeed
	}
	return nil
}

// ParseMetric validates a metric name from a URL.
func ParseMetric(s string) (Metric, error) {
	switch m := Metric(s); m {
	case MetricTemperature, MetricHumidity, MetricWindSpeed:
		return m, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownMetric, s)
}

// RenderSVG writes ds as a single-bar SVG chart.
func RenderSVG(w io.Writer, ds *Dataset) error {
	if ds == nil {
		return ErrNoData
	}
	lo, hi := valueRange(ds.Value)
	color := drawing.ColorFromHex(ds.Color)

	bc := gochart.BarChart{
		Title:      ds.Label,
		TitleStyle: gochart.Style{Show: true},
		Width:      320,
		Height:     260,
		BarWidth:   80,
		Background: gochart.Style{
			Padding: gochart.Box{Top: 40},
		},
		XAxis: gochart.Style{Show: true},
		YAxis: gochart.YAxis{
			Style: gochart.Style{Show: true},
			Range: &gochart.ContinuousRange{Min: lo, Max: hi},
		},
		Bars: []gochart.Value{
			{
				Label: ds.Category,
				Value: ds.Value,
				Style: gochart.Style{
					FillColor:   color.WithAlpha(153),
					StrokeColor: color,
					StrokeWidth: 1,
				},
			},
		},
	}
	if err := bc.Render(gochart.SVG, w); err != nil {
		return fmt.Errorf("render %s chart: %w", ds.Metric, err)
	}
	return nil
}

// valueRange returns a y range that always includes zero and is never empty,
// with a little headroom past the bar.
func valueRange(v float64) (lo, hi float64) {
	lo, hi = 0, 0
	if v < 0 {
		lo = v
	} else {
		hi = v
	}
	if hi == lo {
		return 0, 1
	}
	pad := (hi - lo) * 0.1
	if hi > 0 {
		hi += pad
	}
	if lo < 0 {
		lo -= pad
	}
	return lo, hi
}
