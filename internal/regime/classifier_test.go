package regime

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"

	"positionEngine/internal/domain"
)

func ramp(n int, start, step float64) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = start + float64(i)*step
	}
	return out
}

func TestClassify(t *testing.T) {
	history := ramp(20, 10, 1) // 10..29

	tests := []struct {
		name        string
		in          Inputs
		want        domain.Regime
		wantSqueeze bool
	}{
		{
			name: "volatility at the top of its window is HIGH_VOL even when trending",
			in:   Inputs{ADX: 40, Volatility: 29, VolHistory: history, Price: 100},
			want: domain.RegimeHighVol,
		},
		{
			name: "volatility at the bottom of its window is LOW_VOL",
			in:   Inputs{ADX: 40, Volatility: 11, VolHistory: history, Price: 100},
			want: domain.RegimeLowVol,
		},
		{
			name: "strong trend without a reference is TREND",
			in:   Inputs{ADX: 30, Volatility: 20, VolHistory: history, Price: 100},
			want: domain.RegimeTrend,
		},
		{
			name: "strong trend far from the long average is TREND",
			in:   Inputs{ADX: 30, Volatility: 20, VolHistory: history, Price: 105, LongMA: 100},
			want: domain.RegimeTrend,
		},
		{
			name: "strong trend hugging the long average is RANGE",
			in:   Inputs{ADX: 30, Volatility: 20, VolHistory: history, Price: 101, LongMA: 100},
			want: domain.RegimeRange,
		},
		{
			name: "weak trend with a narrow band flags a squeeze but stays RANGE",
			in: Inputs{ADX: 15, Volatility: 20, VolHistory: history, Price: 100,
				Bands: &Bands{Upper: 101, Lower: 99, Middle: 100, BandwidthHistory: []float64{0.05, 0.05, 0.05}}},
			want:        domain.RegimeRange,
			wantSqueeze: true,
		},
		{
			name: "weak trend with a normal band is RANGE without squeeze",
			in: Inputs{ADX: 15, Volatility: 20, VolHistory: history, Price: 100,
				Bands: &Bands{Upper: 105, Lower: 95, Middle: 100, BandwidthHistory: []float64{0.1, 0.1}}},
			want: domain.RegimeRange,
		},
		{
			name: "ADX between thresholds defaults to RANGE",
			in:   Inputs{ADX: 22, Volatility: 20, VolHistory: history, Price: 100},
			want: domain.RegimeRange,
		},
		{
			name: "short volatility history skips the percentile step",
			in:   Inputs{ADX: 30, Volatility: 100, VolHistory: ramp(10, 1, 1), Price: 100},
			want: domain.RegimeTrend,
		},
		{
			name: "NaN input fails safe to RANGE",
			in:   Inputs{ADX: math.NaN(), Volatility: 20, VolHistory: history, Price: 100},
			want: domain.RegimeRange,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Classify(tt.in)
			assert.Equal(t, tt.want, got.Regime)
			assert.Equal(t, tt.wantSqueeze, got.Squeeze)
		})
	}
}

func TestPercentileRank(t *testing.T) {
	assert.Equal(t, 50.0, PercentileRank([]float64{1, 2, 3, 4}, 2))
	assert.Equal(t, 100.0, PercentileRank([]float64{1, 2, 3, 4}, 9))
	assert.Equal(t, 0.0, PercentileRank([]float64{1, 2, 3, 4}, 0.5))
	assert.Equal(t, 0.0, PercentileRank(nil, 1))
}

func TestClassifyAt(t *testing.T) {
	n := 30
	s := Series{
		ADX:        ramp(n, 30, 0),
		Volatility: ramp(n, 10, 0.5),
		Close:      ramp(n, 100, 0),
	}

	t.Run("out of range index is RANGE", func(t *testing.T) {
		assert.Equal(t, domain.RegimeRange, ClassifyAt(s, n).Regime)
		assert.Equal(t, domain.RegimeRange, ClassifyAt(s, -1).Regime)
	})

	t.Run("warm-up bar is RANGE", func(t *testing.T) {
		warm := s
		warm.ADX = append([]float64{0}, s.ADX[1:]...)
		assert.Equal(t, domain.RegimeRange, ClassifyAt(warm, 0).Regime)
	})

	t.Run("rising volatility ranks high", func(t *testing.T) {
		res := ClassifyAt(s, n-1)
		assert.Equal(t, domain.RegimeHighVol, res.Regime)
		assert.Equal(t, 100.0, res.VolPercentile)
	})

	t.Run("missing long reference still classifies trend", func(t *testing.T) {
		flat := s
		flat.Volatility = ramp(n, 10, 0)
		flat.Volatility[n-1] = 10
		// constant volatility ranks at 100 -> high vol; use a short window instead
		flat.VolLookback = 5
		assert.Equal(t, domain.RegimeTrend, ClassifyAt(flat, n-1).Regime)
	})
}
