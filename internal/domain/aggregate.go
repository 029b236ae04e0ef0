package domain

import (
	"time"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// MetricStats summarizes one metric's points across both regimes.
type MetricStats struct {
	Mean  float64 `json:"mean"`
	Min   float64 `json:"min"`
	Max   float64 `json:"max"`
	Count int     `json:"count"`
}

// ZoneAggregate holds derived per-zone summary statistics. It is recomputed
// on every pass and never mutated after creation. NetBalance is nil, not
// zero, when either balance component is missing, so callers can tell "no
// data" apart from "zero net flow".
type ZoneAggregate struct {
	ZoneID      string                 `json:"zone_id"`
	Stats       map[string]MetricStats `json:"stats"`
	NetBalance  *float64               `json:"net_balance,omitempty"`
	GeneratedAt time.Time              `json:"generated_at"`
}

// Aggregate computes mean/min/max per metric over all points of each series,
// historical and forecast combined: the comparative views intentionally show
// the full evolution. An empty series contributes no stats entry.
func Aggregate(zoneID string, seriesByMetric map[string]Series) ZoneAggregate {
	stats := make(map[string]MetricStats, len(seriesByMetric))
	for metric, s := range seriesByMetric {
		if s.Empty() {
			continue
		}
		values := s.Values()
		stats[metric] = MetricStats{
			Mean:  stat.Mean(values, nil),
			Min:   floats.Min(values),
			Max:   floats.Max(values),
			Count: len(values),
		}
	}

	var net *float64
	in, okIn := stats[MetricStepIn]
	out, okOut := stats[MetricStepOut]
	if okIn && okOut {
		v := in.Mean - out.Mean
		net = &v
	}

	return ZoneAggregate{
		ZoneID:      zoneID,
		Stats:       stats,
		NetBalance:  net,
		GeneratedAt: clock.Now(),
	}
}
