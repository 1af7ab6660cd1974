package indicators

import (
	"context"
	"fmt"

	"positionEngine/internal/domain"
)

// MovingAverageType defines the type of moving average
type MovingAverageType string

const (
	// SimpleMovingAverage represents a simple moving average
	SimpleMovingAverage MovingAverageType = "SMA"
	// ExponentialMovingAverage represents an exponential moving average
	ExponentialMovingAverage MovingAverageType = "EMA"
)

// MovingAverageConfig holds configuration for moving average indicators
type MovingAverageConfig struct {
	IndicatorConfig
	Type MovingAverageType
}

// MovingAverage implements both SMA and EMA indicators
type MovingAverage struct {
	BaseIndicator
	config MovingAverageConfig
}

// NewMovingAverage creates a new moving average indicator instance
func NewMovingAverage(config MovingAverageConfig) *MovingAverage {
	return &MovingAverage{
		BaseIndicator: BaseIndicator{Config: config.IndicatorConfig},
		config:        config,
	}
}

// Name returns the name of the indicator
func (m *MovingAverage) Name() string {
	return string(m.config.Type)
}

// Calculate computes the moving average of closes based on the configured type
func (m *MovingAverage) Calculate(ctx context.Context, klines []*domain.Kline) (float64, error) {
	period := m.Config.Period
	if period <= 0 {
		return 0, fmt.Errorf("invalid %s period %d", m.config.Type, period)
	}
	var series []float64
	switch m.config.Type {
	case SimpleMovingAverage:
		series = SMASeries(Closes(klines), period)
	case ExponentialMovingAverage:
		series = EMASeries(Closes(klines), period)
	default:
		return 0, fmt.Errorf("unsupported moving average type: %s", m.config.Type)
	}
	if len(klines) < period {
		return 0, fmt.Errorf("not enough data (%d) to calculate %s for period %d", len(klines), m.config.Type, period)
	}
	return series[len(series)-1], nil
}

// SMASeries computes a rolling simple moving average.
func SMASeries(values []float64, period int) []float64 {
	out := make([]float64, len(values))
	if period <= 0 || len(values) < period {
		return out
	}
	sum := 0.0
	for i, v := range values {
		sum += v
		if i >= period {
			sum -= values[i-period]
		}
		if i >= period-1 {
			out[i] = sum / float64(period)
		}
	}
	return out
}

// EMASeries computes an exponential moving average seeded with the SMA of the
// first period values.
func EMASeries(values []float64, period int) []float64 {
	out := make([]float64, len(values))
	if period <= 0 || len(values) < period {
		return out
	}
	multiplier := 2.0 / float64(period+1)
	ema := 0.0
	for i := 0; i < period; i++ {
		ema += values[i]
	}
	ema /= float64(period)
	out[period-1] = ema
	for i := period; i < len(values); i++ {
		ema = (values[i]-ema)*multiplier + ema
		out[i] = ema
	}
	return out
}
