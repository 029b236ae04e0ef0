package domain

import (
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/stat"
)

// Class is a percentile band assigned from a well's rank within the full
// population of current levels.
type Class int

const (
	ClassUnset Class = iota
	ClassLow
	ClassMedLow
	ClassMedHigh
	ClassHigh
)

// String returns the platform's band label.
func (c Class) String() string {
	switch c {
	case ClassLow:
		return "<P33"
	case ClassMedLow:
		return "P33-P66"
	case ClassMedHigh:
		return "P66-P90"
	case ClassHigh:
		return ">P90"
	default:
		return "unclassified"
	}
}

// WellLevel is one member of a classification population.
type WellLevel struct {
	ID    string
	Value float64
}

// minDistinctLevels is the smallest population that yields non-degenerate
// percentile cut points.
const minDistinctLevels = 4

// Thresholds computes the 33rd, 66th, and 90th percentile cut points over a
// population using linear interpolation of the empirical CDF. It fails with
// ErrInsufficientData when the population has fewer than four distinct
// values.
func Thresholds(values []float64) (p33, p66, p90 float64, err error) {
	distinct := make(map[float64]struct{}, len(values))
	for _, v := range values {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return 0, 0, 0, fmt.Errorf("%w: non-finite level in population", ErrMalformedSeries)
		}
		distinct[v] = struct{}{}
	}
	if len(distinct) < minDistinctLevels {
		return 0, 0, 0, fmt.Errorf("%w: %d distinct values, need at least %d",
			ErrInsufficientData, len(distinct), minDistinctLevels)
	}

	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)

	p33 = stat.Quantile(0.33, stat.LinInterp, sorted, nil)
	p66 = stat.Quantile(0.66, stat.LinInterp, sorted, nil)
	p90 = stat.Quantile(0.90, stat.LinInterp, sorted, nil)
	return p33, p66, p90, nil
}

// Classify assigns every well a percentile band. The cut points are computed
// over exactly the population supplied in this call, with no global
// threshold state, so classification must run once, after the full
// population has been collected.
func Classify(population []WellLevel) (map[string]Class, error) {
	values := make([]float64, len(population))
	for i, w := range population {
		values[i] = w.Value
	}

	p33, p66, p90, err := Thresholds(values)
	if err != nil {
		return nil, err
	}

	classes := make(map[string]Class, len(population))
	for _, w := range population {
		classes[w.ID] = classOf(w.Value, p33, p66, p90)
	}
	return classes, nil
}

// classOf places a value into a band. A value exactly on a cut point belongs
// to the lower band: bands are inclusive on their upper edge.
func classOf(v, p33, p66, p90 float64) Class {
	switch {
	case v <= p33:
		return ClassLow
	case v <= p66:
		return ClassMedLow
	case v <= p90:
		return ClassMedHigh
	default:
		return ClassHigh
	}
}
