package indicators

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func rsiConfig(period int) RSIConfig {
	return RSIConfig{IndicatorConfig: IndicatorConfig{Period: period}, Overbought: 70, Oversold: 30}
}

func TestRSI_Calculate(t *testing.T) {
	// changes: +2 -1 +2 -1 +2
	mixed := closeKlines(100, 102, 101, 103, 102, 104)

	tests := []struct {
		name        string
		period      int
		closes      []float64
		expected    float64
		expectError bool
	}{
		{"wilder smoothing", 3, []float64{100, 102, 101, 103, 102, 104}, 77.272727, false},
		{"first value after period changes", 3, []float64{100, 102, 101, 103}, 80, false},
		{"period bars are one change short", 3, []float64{100, 102, 101}, 0, true},
		{"insufficient data", 7, []float64{100, 102, 101, 103, 102, 104}, 0, true},
		{"zero period", 0, []float64{100, 102}, 0, true},
		{"all gains", 3, []float64{100, 102, 104, 106}, 100, false},
		{"all losses", 3, []float64{106, 104, 102, 100}, 0, false},
		{"no change is neutral", 3, []float64{100, 100, 100, 100}, 50, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			value, err := NewRSI(rsiConfig(tt.period)).Calculate(context.Background(), closeKlines(tt.closes...))
			if tt.expectError {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.InDelta(t, tt.expected, value, 1e-4)
		})
	}

	t.Run("series warm-up is zero", func(t *testing.T) {
		series := RSISeries(Closes(mixed), 3)
		assert.InDeltaSlice(t, []float64{0, 0, 0, 80, 61.538462, 77.272727}, series, 1e-4)
	})
}

func TestRSI_IsOverboughtOversold(t *testing.T) {
	rsi := NewRSI(rsiConfig(14))

	tests := []struct {
		name         string
		value        float64
		isOverbought bool
		isOversold   bool
	}{
		{"overbought", 75, true, false},
		{"oversold", 25, false, true},
		{"neutral", 50, false, false},
		{"exact overbought threshold", 70, true, false},
		{"exact oversold threshold", 30, false, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.isOverbought, rsi.IsOverbought(tt.value))
			assert.Equal(t, tt.isOversold, rsi.IsOversold(tt.value))
		})
	}
}

func TestRSI_Name(t *testing.T) {
	assert.Equal(t, "RSI", NewRSI(RSIConfig{}).Name())
}
