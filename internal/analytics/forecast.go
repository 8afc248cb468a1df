package analytics

import (
	"fmt"
	"time"

	"gonum.org/v1/gonum/stat"
)

// ForecastPoint is one forecast step: a point estimate with an interval.
type ForecastPoint struct {
	Date     time.Time `json:"date"`
	Estimate float64   `json:"point_estimate"`
	Lower    float64   `json:"lower_bound"`
	Upper    float64   `json:"upper_bound"`
}

// Forecaster is the external forecasting collaborator: it consumes a
// regularly-spaced trend series and returns point/interval forecasts. The
// model internals are not part of this contract.
type Forecaster interface {
	Forecast(series []TrendPoint, bucket Bucket, horizon int) ([]ForecastPoint, error)
}

// TrendForecaster is the default collaborator: an ordinary least squares
// trend over bucket totals with a flat +-1.96 sigma residual interval.
// Deliberately simple; swap in a real model behind the Forecaster interface
// for anything beyond dashboard trend lines.
type TrendForecaster struct{}

// NewTrendForecaster returns the default OLS trend forecaster.
func NewTrendForecaster() *TrendForecaster {
	return &TrendForecaster{}
}

// Forecast fits count totals against bucket index and extrapolates horizon
// steps past the last observed bucket. At least two observed buckets are
// required. Lower bounds are clamped at zero; a negative count forecast is
// meaningless.
func (f *TrendForecaster) Forecast(series []TrendPoint, bucket Bucket, horizon int) ([]ForecastPoint, error) {
	if len(series) < 2 {
		return nil, fmt.Errorf("forecast requires at least 2 observed buckets, got %d", len(series))
	}
	if horizon <= 0 {
		return nil, fmt.Errorf("horizon must be positive, got %d", horizon)
	}

	xs := make([]float64, len(series))
	ys := make([]float64, len(series))
	for i, tp := range series {
		xs[i] = float64(i)
		ys[i] = float64(tp.Total)
	}
	alpha, beta := stat.LinearRegression(xs, ys, nil, false)

	residuals := make([]float64, len(series))
	for i := range series {
		residuals[i] = ys[i] - (alpha + beta*xs[i])
	}
	sigma := stat.StdDev(residuals, nil)
	margin := 1.96 * sigma

	last := series[len(series)-1].Date
	points := make([]ForecastPoint, horizon)
	for h := 1; h <= horizon; h++ {
		estimate := alpha + beta*float64(len(series)-1+h)
		if estimate < 0 {
			estimate = 0
		}
		lower := estimate - margin
		if lower < 0 {
			lower = 0
		}
		points[h-1] = ForecastPoint{
			Date:     advance(last, bucket, h),
			Estimate: estimate,
			Lower:    lower,
			Upper:    estimate + margin,
		}
	}
	return points, nil
}

func advance(t time.Time, bucket Bucket, steps int) time.Time {
	if bucket == Monthly {
		return t.AddDate(0, steps, 0)
	}
	return t.AddDate(0, 0, steps)
}
