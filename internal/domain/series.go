package domain

import (
	"fmt"
	"math"
	"sort"
	"time"
)

// Regime tags a data point as observed history or modeled forecast. It is an
// explicit field rather than a positional convention so that an unsorted or
// interleaved input cannot silently misclassify points.
type Regime string

const (
	RegimeHistorical Regime = "historical"
	RegimeForecast   Regime = "forecast"
)

// Metric names used across series, aggregates, and chart descriptors.
const (
	MetricHeadAbsolute = "head_absolute"
	MetricHeadDelta    = "head_delta"
	MetricStepIn       = "step_in"
	MetricStepOut      = "step_out"
	MetricStepRate     = "step_rate"
)

// TimePoint is a single timestamped measurement.
type TimePoint struct {
	Timestamp time.Time `json:"timestamp"`
	Value     float64   `json:"value"`
	Regime    Regime    `json:"regime"`
}

// NoBoundary is the Boundary value of a series without forecast points.
const NoBoundary = -1

// Series is a reconciled, strictly timestamp-ascending sequence of points
// for one (entity, metric) pair. Boundary is the index of the first forecast
// point, or NoBoundary when the forecast input was empty. A Series is never
// re-sorted or mutated after Reconcile returns it.
type Series struct {
	Points   []TimePoint `json:"points"`
	Boundary int         `json:"boundary"`
}

// Empty reports whether the series has no points. An empty series is a
// legitimate, reportable state for a zone or well, not an error.
func (s Series) Empty() bool { return len(s.Points) == 0 }

// Values returns the point values in series order.
func (s Series) Values() []float64 {
	if len(s.Points) == 0 {
		return nil
	}
	out := make([]float64, len(s.Points))
	for i, p := range s.Points {
		out[i] = p.Value
	}
	return out
}

// BoundaryTime returns the timestamp of the first forecast point.
func (s Series) BoundaryTime() (time.Time, bool) {
	if s.Boundary == NoBoundary || s.Boundary >= len(s.Points) {
		return time.Time{}, false
	}
	return s.Points[s.Boundary].Timestamp, true
}

// Reconcile merges a historical series and a forecast series into one
// ordered series with an explicit regime boundary.
//
// Both inputs are validated and independently sorted before the merge. On a
// timestamp collision across regimes the forecast point wins and the
// historical point is dropped. Within one input, the later-listed point wins
// on a duplicate timestamp. Empty inputs are fine: both empty yields an
// empty series, and a forecast-only input yields Boundary 0.
func Reconcile(historical, forecast []TimePoint) (Series, error) {
	hist, err := prepare(historical, RegimeHistorical)
	if err != nil {
		return Series{}, fmt.Errorf("historical: %w", err)
	}
	fcst, err := prepare(forecast, RegimeForecast)
	if err != nil {
		return Series{}, fmt.Errorf("forecast: %w", err)
	}

	merged := make([]TimePoint, 0, len(hist)+len(fcst))
	i, j := 0, 0
	for i < len(hist) && j < len(fcst) {
		switch {
		case hist[i].Timestamp.Before(fcst[j].Timestamp):
			merged = append(merged, hist[i])
			i++
		case fcst[j].Timestamp.Before(hist[i].Timestamp):
			merged = append(merged, fcst[j])
			j++
		default:
			// Same timestamp in both regimes: the forecast supersedes.
			merged = append(merged, fcst[j])
			i++
			j++
		}
	}
	merged = append(merged, hist[i:]...)
	merged = append(merged, fcst[j:]...)

	boundary := NoBoundary
	for k, p := range merged {
		if p.Regime == RegimeForecast {
			boundary = k
			break
		}
	}
	return Series{Points: merged, Boundary: boundary}, nil
}

// prepare validates, regime-stamps, sorts, and deduplicates one input.
func prepare(points []TimePoint, regime Regime) ([]TimePoint, error) {
	if len(points) == 0 {
		return nil, nil
	}

	out := make([]TimePoint, 0, len(points))
	for i, p := range points {
		if math.IsNaN(p.Value) || math.IsInf(p.Value, 0) {
			return nil, fmt.Errorf("%w: non-finite value at index %d", ErrMalformedSeries, i)
		}
		if p.Timestamp.IsZero() {
			return nil, fmt.Errorf("%w: missing timestamp at index %d", ErrMalformedSeries, i)
		}
		p.Regime = regime
		out = append(out, p)
	}

	// Stable sort keeps input order for equal timestamps, so keeping the
	// last point of each run implements later-listed-wins.
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Timestamp.Before(out[j].Timestamp)
	})

	dedup := out[:0]
	for k, p := range out {
		if k+1 < len(out) && out[k+1].Timestamp.Equal(p.Timestamp) {
			continue
		}
		dedup = append(dedup, p)
	}
	return dedup, nil
}
