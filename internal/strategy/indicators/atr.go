package indicators

import (
	"context"
	"fmt"
	"math"

	"positionEngine/internal/domain"
)

// ATRConfig holds configuration for the Average True Range indicator
type ATRConfig struct {
	IndicatorConfig
}

// ATR implements the Average True Range indicator
type ATR struct {
	BaseIndicator
}

// NewATR creates a new Average True Range indicator instance
func NewATR(config ATRConfig) *ATR {
	return &ATR{BaseIndicator: BaseIndicator{Config: config.IndicatorConfig}}
}

// Name returns the name of the indicator
func (a *ATR) Name() string {
	return "ATR"
}

// RequiredDataPoints needs one bar more than the period for a previous close.
func (a *ATR) RequiredDataPoints() int {
	return a.Config.Period + 1
}

// Calculate computes the Average True Range value for the given klines
func (a *ATR) Calculate(ctx context.Context, klines []*domain.Kline) (float64, error) {
	period := a.Config.Period
	if period <= 0 {
		return 0, fmt.Errorf("invalid ATR period %d", period)
	}
	if len(klines) < period+1 {
		return 0, fmt.Errorf("not enough data points for ATR calculation: need %d, got %d", period+1, len(klines))
	}
	series := ATRSeries(klines, period)
	return series[len(series)-1], nil
}

// TrueRange returns the true range of every bar. The first bar has no
// previous close and uses its high-low range.
func TrueRange(klines []*domain.Kline) []float64 {
	out := make([]float64, len(klines))
	for i, k := range klines {
		if i == 0 {
			out[i] = k.High - k.Low
			continue
		}
		prevClose := klines[i-1].Close
		out[i] = math.Max(k.High-k.Low, math.Max(math.Abs(k.High-prevClose), math.Abs(k.Low-prevClose)))
	}
	return out
}

// ATRSeries computes Wilder's ATR. The first value, at index period-1, is the
// simple mean of the first period true ranges.
func ATRSeries(klines []*domain.Kline, period int) []float64 {
	out := make([]float64, len(klines))
	if period <= 0 || len(klines) < period {
		return out
	}
	tr := TrueRange(klines)
	atr := 0.0
	for i := 0; i < period; i++ {
		atr += tr[i]
	}
	atr /= float64(period)
	out[period-1] = atr
	for i := period; i < len(klines); i++ {
		atr = (atr*float64(period-1) + tr[i]) / float64(period)
		out[i] = atr
	}
	return out
}

// ATRPercentSeries is ATR divided by close, a scale-free volatility measure.
func ATRPercentSeries(klines []*domain.Kline, period int) []float64 {
	atr := ATRSeries(klines, period)
	out := make([]float64, len(klines))
	for i, k := range klines {
		if atr[i] > 0 && k.Close > 0 {
			out[i] = atr[i] / k.Close
		}
	}
	return out
}
