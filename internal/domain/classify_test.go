package domain

import (
	"fmt"
	"math"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestThresholds(t *testing.T) {
	t.Run("uniform population", func(t *testing.T) {
		values := make([]float64, 100)
		for i := range values {
			values[i] = float64(i + 1)
		}

		p33, p66, p90, err := Thresholds(values)

		require.NoError(t, err)
		assert.InDelta(t, 33, p33, 1)
		assert.InDelta(t, 66, p66, 1)
		assert.InDelta(t, 90, p90, 1)
		assert.Less(t, p33, p66)
		assert.Less(t, p66, p90)
	})

	t.Run("input order does not matter", func(t *testing.T) {
		asc := []float64{1, 2, 3, 4, 5, 6, 7, 8, 9, 10}
		desc := []float64{10, 9, 8, 7, 6, 5, 4, 3, 2, 1}

		a33, a66, a90, err := Thresholds(asc)
		require.NoError(t, err)
		d33, d66, d90, err := Thresholds(desc)
		require.NoError(t, err)

		assert.Equal(t, a33, d33)
		assert.Equal(t, a66, d66)
		assert.Equal(t, a90, d90)
	})

	t.Run("fewer than four distinct values", func(t *testing.T) {
		_, _, _, err := Thresholds([]float64{5, 5, 7, 7, 9, 9})

		require.ErrorIs(t, err, ErrInsufficientData)
	})

	t.Run("non-finite level", func(t *testing.T) {
		_, _, _, err := Thresholds([]float64{1, 2, 3, math.NaN()})

		require.ErrorIs(t, err, ErrMalformedSeries)
	})
}

func TestClassify(t *testing.T) {
	t.Run("assigns every well a band", func(t *testing.T) {
		population := make([]WellLevel, 100)
		for i := range population {
			population[i] = WellLevel{ID: fmt.Sprintf("w%03d", i), Value: float64(i + 1)}
		}

		classes, err := Classify(population)

		require.NoError(t, err)
		require.Len(t, classes, 100)
		assert.Equal(t, ClassLow, classes["w000"])
		assert.Equal(t, ClassMedLow, classes["w049"])
		assert.Equal(t, ClassMedHigh, classes["w079"])
		assert.Equal(t, ClassHigh, classes["w099"])

		counts := map[Class]int{}
		for _, c := range classes {
			counts[c]++
		}
		// Band sizes follow the cut points within interpolation rounding.
		assert.InDelta(t, 33, counts[ClassLow], 1)
		assert.InDelta(t, 33, counts[ClassMedLow], 1)
		assert.InDelta(t, 24, counts[ClassMedHigh], 1)
		assert.InDelta(t, 10, counts[ClassHigh], 1)
	})

	t.Run("deterministic for identical population", func(t *testing.T) {
		population := []WellLevel{
			{ID: "a", Value: 3}, {ID: "b", Value: 1}, {ID: "c", Value: 4},
			{ID: "d", Value: 9}, {ID: "e", Value: 7}, {ID: "f", Value: 2},
		}

		first, err := Classify(population)
		require.NoError(t, err)
		second, err := Classify(population)
		require.NoError(t, err)

		assert.Empty(t, cmp.Diff(first, second))
	})

	t.Run("insufficient distinct levels", func(t *testing.T) {
		population := []WellLevel{
			{ID: "a", Value: 1}, {ID: "b", Value: 1},
			{ID: "c", Value: 2}, {ID: "d", Value: 3},
		}

		_, err := Classify(population)

		require.ErrorIs(t, err, ErrInsufficientData)
	})
}

func TestClassOf(t *testing.T) {
	tests := []struct {
		name     string
		value    float64
		expected Class
	}{
		{"below p33", 10, ClassLow},
		{"exactly p33 goes to lower band", 33, ClassLow},
		{"between p33 and p66", 50, ClassMedLow},
		{"exactly p66 goes to lower band", 66, ClassMedLow},
		{"between p66 and p90", 75, ClassMedHigh},
		{"exactly p90 goes to lower band", 90, ClassMedHigh},
		{"above p90", 95, ClassHigh},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, classOf(tt.value, 33, 66, 90))
		})
	}
}

func TestClassString(t *testing.T) {
	assert.Equal(t, "<P33", ClassLow.String())
	assert.Equal(t, "P33-P66", ClassMedLow.String())
	assert.Equal(t, "P66-P90", ClassMedHigh.String())
	assert.Equal(t, ">P90", ClassHigh.String())
	assert.Equal(t, "unclassified", ClassUnset.String())
}
