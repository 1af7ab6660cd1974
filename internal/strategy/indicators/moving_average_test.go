package indicators

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"positionEngine/internal/domain"
)

func closeKlines(closes ...float64) []*domain.Kline {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	out := make([]*domain.Kline, len(closes))
	for i, c := range closes {
		out[i] = &domain.Kline{OpenTime: start.Add(time.Duration(i) * time.Hour), Close: c}
	}
	return out
}

func TestMovingAverage_Calculate(t *testing.T) {
	klines := closeKlines(100, 102, 101, 103, 104)

	tests := []struct {
		name        string
		maType      MovingAverageType
		period      int
		klines      []*domain.Kline
		expected    float64
		expectError bool
	}{
		{"SMA over the last period closes", SimpleMovingAverage, 3, klines, 102.666667, false}, // (101+103+104)/3
		{"EMA seeded with the first SMA", ExponentialMovingAverage, 3, klines, 103, false},      // 101 -> 102 -> 103
		{"SMA on exactly period bars", SimpleMovingAverage, 3, klines[:3], 101, false},
		{"EMA on exactly period bars is the seed", ExponentialMovingAverage, 3, klines[:3], 101, false},
		{"one bar short of the warm-up", SimpleMovingAverage, 3, klines[:2], 0, true},
		{"insufficient data", SimpleMovingAverage, 6, klines, 0, true},
		{"zero period", ExponentialMovingAverage, 0, klines, 0, true},
		{"invalid type", "INVALID", 3, klines, 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ma := NewMovingAverage(MovingAverageConfig{IndicatorConfig: IndicatorConfig{Period: tt.period}, Type: tt.maType})
			value, err := ma.Calculate(context.Background(), tt.klines)
			if tt.expectError {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.InDelta(t, tt.expected, value, 1e-4)
		})
	}
}

func TestMovingAverage_CalculateMatchesSeries(t *testing.T) {
	klines := closeKlines(100, 102, 101, 103, 104)
	closes := Closes(klines)

	assert.InDeltaSlice(t, []float64{0, 0, 101, 102, 102.666667}, SMASeries(closes, 3), 1e-4)
	assert.InDeltaSlice(t, []float64{0, 0, 101, 102, 103}, EMASeries(closes, 3), 1e-9)

	// every prefix long enough to warm up reads the series at its last bar
	for n := 3; n <= len(klines); n++ {
		sma, err := NewMovingAverage(MovingAverageConfig{IndicatorConfig: IndicatorConfig{Period: 3}, Type: SimpleMovingAverage}).
			Calculate(context.Background(), klines[:n])
		require.NoError(t, err)
		assert.InDelta(t, SMASeries(closes, 3)[n-1], sma, 1e-9)

		ema, err := NewMovingAverage(MovingAverageConfig{IndicatorConfig: IndicatorConfig{Period: 3}, Type: ExponentialMovingAverage}).
			Calculate(context.Background(), klines[:n])
		require.NoError(t, err)
		assert.InDelta(t, EMASeries(closes, 3)[n-1], ema, 1e-9)
	}
}

func TestMovingAverage_Name(t *testing.T) {
	assert.Equal(t, "SMA", NewMovingAverage(MovingAverageConfig{Type: SimpleMovingAverage}).Name())
	assert.Equal(t, "EMA", NewMovingAverage(MovingAverageConfig{Type: ExponentialMovingAverage}).Name())
}
