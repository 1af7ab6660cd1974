package regime

import "positionEngine/internal/domain"

// Series are aligned indicator series for a bar stream. Zero values mark
// warm-up bars where the indicator is unavailable.
type Series struct {
	ADX        []float64
	Volatility []float64
	Close      []float64
	LongMA     []float64 // optional
	BandUpper  []float64 // optional, with BandLower and BandMiddle
	BandLower  []float64
	BandMiddle []float64

	VolLookback       int // trailing window for the percentile rank, default 100
	BandwidthLookback int // trailing window for the squeeze average, default 20
}

// ClassifyAt classifies bar i of the series. An index outside the series or a
// missing required series yields RANGE.
func ClassifyAt(s Series, i int) Result {
	fallback := Result{Regime: domain.RegimeRange, VolPercentile: -1}
	if i < 0 || i >= len(s.ADX) || i >= len(s.Volatility) || i >= len(s.Close) {
		return fallback
	}
	if s.ADX[i] <= 0 || s.Volatility[i] <= 0 {
		return fallback
	}

	volLookback := s.VolLookback
	if volLookback <= 0 {
		volLookback = 100
	}
	in := Inputs{
		ADX:        s.ADX[i],
		Volatility: s.Volatility[i],
		VolHistory: trailing(s.Volatility, i, volLookback),
		Price:      s.Close[i],
	}
	if i < len(s.LongMA) {
		in.LongMA = s.LongMA[i]
	}
	if i < len(s.BandUpper) && i < len(s.BandLower) && i < len(s.BandMiddle) && s.BandMiddle[i] > 0 {
		bwLookback := s.BandwidthLookback
		if bwLookback <= 0 {
			bwLookback = 20
		}
		history := make([]float64, 0, bwLookback)
		for j := i - bwLookback; j < i; j++ {
			if j < 0 {
				continue
			}
			if bw := Bandwidth(s.BandUpper[j], s.BandLower[j], s.BandMiddle[j]); bw > 0 {
				history = append(history, bw)
			}
		}
		in.Bands = &Bands{
			Upper:            s.BandUpper[i],
			Lower:            s.BandLower[i],
			Middle:           s.BandMiddle[i],
			BandwidthHistory: history,
		}
	}
	return Classify(in)
}

// trailing returns the positive values of series in the window ending at i
// (inclusive), at most n of them.
func trailing(series []float64, i, n int) []float64 {
	start := i - n + 1
	if start < 0 {
		start = 0
	}
	out := make([]float64, 0, i-start+1)
	for j := start; j <= i; j++ {
		if series[j] > 0 {
			out = append(out, series[j])
		}
	}
	return out
}
