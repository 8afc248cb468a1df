package analytics

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func trendPoint(date string, total int) TrendPoint {
	d, err := time.Parse("2006-01-02", date)
	if err != nil {
		panic(err)
	}
	return TrendPoint{Date: d.UTC(), Total: total}
}

func TestTrendForecaster_LinearSeries(t *testing.T) {
	// Totals 10, 20, 30, 40: a perfect line with slope 10 and no residual.
	series := []TrendPoint{
		trendPoint("2024-01-01", 10),
		trendPoint("2024-01-02", 20),
		trendPoint("2024-01-03", 30),
		trendPoint("2024-01-04", 40),
	}

	points, err := NewTrendForecaster().Forecast(series, Daily, 3)
	require.NoError(t, err)
	require.Len(t, points, 3)

	assert.Equal(t, time.Date(2024, 1, 5, 0, 0, 0, 0, time.UTC), points[0].Date)
	assert.InDelta(t, 50, points[0].Estimate, 1e-9)
	assert.InDelta(t, 60, points[1].Estimate, 1e-9)
	assert.InDelta(t, 70, points[2].Estimate, 1e-9)

	// Zero residuals collapse the interval onto the estimate.
	assert.InDelta(t, points[0].Estimate, points[0].Lower, 1e-9)
	assert.InDelta(t, points[0].Estimate, points[0].Upper, 1e-9)
}

func TestTrendForecaster_MonthlyStep(t *testing.T) {
	series := []TrendPoint{
		trendPoint("2024-01-01", 5),
		trendPoint("2024-02-01", 7),
	}

	points, err := NewTrendForecaster().Forecast(series, Monthly, 2)
	require.NoError(t, err)
	require.Len(t, points, 2)
	assert.Equal(t, time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC), points[0].Date)
	assert.Equal(t, time.Date(2024, 4, 1, 0, 0, 0, 0, time.UTC), points[1].Date)
}

func TestTrendForecaster_BoundsNeverNegative(t *testing.T) {
	// Sharply declining series: the extrapolated line goes below zero.
	series := []TrendPoint{
		trendPoint("2024-01-01", 30),
		trendPoint("2024-01-02", 20),
		trendPoint("2024-01-03", 10),
	}

	points, err := NewTrendForecaster().Forecast(series, Daily, 5)
	require.NoError(t, err)
	for _, p := range points {
		assert.GreaterOrEqual(t, p.Estimate, 0.0)
		assert.GreaterOrEqual(t, p.Lower, 0.0)
		assert.GreaterOrEqual(t, p.Upper, p.Lower)
	}
}

func TestTrendForecaster_Errors(t *testing.T) {
	t.Run("too few buckets", func(t *testing.T) {
		_, err := NewTrendForecaster().Forecast([]TrendPoint{trendPoint("2024-01-01", 5)}, Daily, 3)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "at least 2")
	})

	t.Run("non-positive horizon", func(t *testing.T) {
		series := []TrendPoint{trendPoint("2024-01-01", 5), trendPoint("2024-01-02", 6)}
		_, err := NewTrendForecaster().Forecast(series, Daily, 0)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "horizon must be positive")
	})
}
