package domain

import (
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seriesOf(values ...float64) Series {
	points := make([]TimePoint, len(values))
	for i, v := range values {
		points[i] = TimePoint{
			Timestamp: time.Date(2023, time.Month(i+1), 1, 0, 0, 0, 0, time.UTC),
			Value:     v,
			Regime:    RegimeHistorical,
		}
	}
	return Series{Points: points, Boundary: NoBoundary}
}

func TestAggregate(t *testing.T) {
	frozen := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	SetClock(clockwork.NewFakeClockAt(frozen))
	defer SetClock(nil)

	t.Run("stats per metric and net balance", func(t *testing.T) {
		agg := Aggregate("Zona 1", map[string]Series{
			MetricStepIn:   seriesOf(8, 10, 12),
			MetricStepOut:  seriesOf(3, 4, 5),
			MetricStepRate: seriesOf(5, 6, 7),
		})

		assert.Equal(t, "Zona 1", agg.ZoneID)
		assert.Equal(t, frozen, agg.GeneratedAt)

		in := agg.Stats[MetricStepIn]
		assert.Equal(t, 10.0, in.Mean)
		assert.Equal(t, 8.0, in.Min)
		assert.Equal(t, 12.0, in.Max)
		assert.Equal(t, 3, in.Count)

		require.NotNil(t, agg.NetBalance)
		assert.Equal(t, 6.0, *agg.NetBalance)
	})

	t.Run("missing outflow leaves net balance nil", func(t *testing.T) {
		agg := Aggregate("Zona 2", map[string]Series{
			MetricStepIn: seriesOf(8, 10, 12),
		})

		assert.Nil(t, agg.NetBalance)
	})

	t.Run("empty series contributes no stats entry", func(t *testing.T) {
		agg := Aggregate("Zona 3", map[string]Series{
			MetricStepIn:  {},
			MetricStepOut: seriesOf(1, 2),
		})

		_, ok := agg.Stats[MetricStepIn]
		assert.False(t, ok)
		assert.Nil(t, agg.NetBalance)
	})
}
