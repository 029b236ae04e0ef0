package domain

import (
	"fmt"
	"math"
	"time"
)

// RawMeasurement is one row of the API's {date, value} data arrays.
type RawMeasurement struct {
	Date  string  `json:"date"`
	Value float64 `json:"value"`
}

// RawBalanceRecord is one row of the balance endpoints, carrying the three
// balance components for a single time step.
type RawBalanceRecord struct {
	Date     string  `json:"date"`
	StepIn   float64 `json:"value_step_in"`
	StepOut  float64 `json:"value_step_out"`
	StepRate float64 `json:"value_step_rate"`
}

// dateLayouts are the timestamp formats the API has been observed to emit.
var dateLayouts = []string{time.RFC3339, "2006-01-02", "2006-01-02 15:04:05"}

// ParsePoints converts raw rows into regime-tagged time points. A row with an
// unparsable date or a non-finite value fails the whole series.
func ParsePoints(records []RawMeasurement, regime Regime) ([]TimePoint, error) {
	if len(records) == 0 {
		return nil, nil
	}
	points := make([]TimePoint, 0, len(records))
	for i, rec := range records {
		ts, err := parseDate(rec.Date)
		if err != nil {
			return nil, fmt.Errorf("%w: row %d: %v", ErrMalformedSeries, i, err)
		}
		if math.IsNaN(rec.Value) || math.IsInf(rec.Value, 0) {
			return nil, fmt.Errorf("%w: row %d: non-finite value", ErrMalformedSeries, i)
		}
		points = append(points, TimePoint{Timestamp: ts, Value: rec.Value, Regime: regime})
	}
	return points, nil
}

// ParseBalancePoints splits raw balance rows into one point slice per
// component metric (step_in, step_out, step_rate).
func ParseBalancePoints(records []RawBalanceRecord, regime Regime) (map[string][]TimePoint, error) {
	out := map[string][]TimePoint{
		MetricStepIn:   nil,
		MetricStepOut:  nil,
		MetricStepRate: nil,
	}
	for i, rec := range records {
		ts, err := parseDate(rec.Date)
		if err != nil {
			return nil, fmt.Errorf("%w: row %d: %v", ErrMalformedSeries, i, err)
		}
		components := []struct {
			metric string
			value  float64
		}{
			{MetricStepIn, rec.StepIn},
			{MetricStepOut, rec.StepOut},
			{MetricStepRate, rec.StepRate},
		}
		for _, c := range components {
			if math.IsNaN(c.value) || math.IsInf(c.value, 0) {
				return nil, fmt.Errorf("%w: row %d: non-finite %s", ErrMalformedSeries, i, c.metric)
			}
			out[c.metric] = append(out[c.metric], TimePoint{Timestamp: ts, Value: c.value, Regime: regime})
		}
	}
	return out, nil
}

func parseDate(s string) (time.Time, error) {
	for _, layout := range dateLayouts {
		if ts, err := time.Parse(layout, s); err == nil {
			return ts, nil
		}
	}
	return time.Time{}, fmt.Errorf("unparsable date %q", s)
}
