// Package regime labels the current bar as trending, ranging, high- or
// low-volatility from trend-strength and volatility readings.
package regime

import (
	"math"

	"positionEngine/internal/domain"
)

const (
	highVolPercentile = 80.0
	lowVolPercentile  = 20.0
	trendADX          = 25.0
	rangeADX          = 20.0
	trendDeviation    = 0.02 // price must sit >2% away from the long-horizon reference
	squeezeRatio      = 0.7
	minVolHistory     = 11
)

// Bands is the channel context used for squeeze detection.
type Bands struct {
	Upper  float64
	Lower  float64
	Middle float64
	// BandwidthHistory holds trailing (upper-lower)/middle readings.
	BandwidthHistory []float64
}

// Inputs are the readings for one bar.
type Inputs struct {
	ADX        float64
	Volatility float64   // current volatility (ATR or similar)
	VolHistory []float64 // trailing window of the same volatility series
	Price      float64
	LongMA     float64 // long-horizon trend reference; <= 0 means unavailable
	Bands      *Bands  // nil means unavailable
}

// Result is the classification plus side-channel readings.
type Result struct {
	Regime        domain.Regime
	Squeeze       bool
	VolPercentile float64 // -1 when the history was too short to rank
}

// Classify labels the bar. Rules are evaluated in priority order and the first
// match wins; missing or non-finite inputs yield RANGE.
func Classify(in Inputs) Result {
	res := Result{Regime: domain.RegimeRange, VolPercentile: -1}
	if !finite(in.ADX) || !finite(in.Volatility) || !finite(in.Price) {
		return res
	}

	if len(in.VolHistory) >= minVolHistory && in.Volatility > 0 {
		pct := PercentileRank(in.VolHistory, in.Volatility)
		res.VolPercentile = pct
		if pct >= highVolPercentile {
			res.Regime = domain.RegimeHighVol
			return res
		}
		if pct <= lowVolPercentile {
			res.Regime = domain.RegimeLowVol
			return res
		}
	}

	if in.ADX >= trendADX {
		if in.LongMA <= 0 || !finite(in.LongMA) {
			res.Regime = domain.RegimeTrend
			return res
		}
		if math.Abs(in.Price-in.LongMA)/in.LongMA > trendDeviation {
			res.Regime = domain.RegimeTrend
			return res
		}
		return res
	}

	if in.ADX < rangeADX && in.Bands != nil {
		res.Squeeze = isSqueeze(in.Bands)
	}
	return res
}

// PercentileRank returns the share of history values <= v, as 0-100.
func PercentileRank(history []float64, v float64) float64 {
	if len(history) == 0 {
		return 0
	}
	n := 0
	for _, h := range history {
		if h <= v {
			n++
		}
	}
	return 100 * float64(n) / float64(len(history))
}

// Bandwidth returns (upper-lower)/middle, or 0 when middle is not positive.
func Bandwidth(upper, lower, middle float64) float64 {
	if middle <= 0 {
		return 0
	}
	return (upper - lower) / middle
}

func isSqueeze(b *Bands) bool {
	bw := Bandwidth(b.Upper, b.Lower, b.Middle)
	if bw <= 0 || len(b.BandwidthHistory) == 0 {
		return false
	}
	sum, n := 0.0, 0
	for _, h := range b.BandwidthHistory {
		if h > 0 && finite(h) {
			sum += h
			n++
		}
	}
	if n == 0 {
		return false
	}
	return bw < squeezeRatio*(sum/float64(n))
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
