package indicators

import (
	"math"

	"positionEngine/internal/domain"
)

// BandSeries is an envelope around a middle line.
type BandSeries struct {
	Upper  []float64
	Middle []float64
	Lower  []float64
}

func newBandSeries(n int) BandSeries {
	return BandSeries{Upper: make([]float64, n), Middle: make([]float64, n), Lower: make([]float64, n)}
}

// BollingerSeries computes SMA(period) ± k population standard deviations.
func BollingerSeries(closes []float64, period int, k float64) BandSeries {
	out := newBandSeries(len(closes))
	sma := SMASeries(closes, period)
	for i := period - 1; i >= 0 && i < len(closes); i++ {
		mean := sma[i]
		variance := 0.0
		for j := i - period + 1; j <= i; j++ {
			d := closes[j] - mean
			variance += d * d
		}
		sd := math.Sqrt(variance / float64(period))
		out.Middle[i] = mean
		out.Upper[i] = mean + k*sd
		out.Lower[i] = mean - k*sd
	}
	return out
}

// KeltnerSeries computes EMA(close, period) ± mult·ATR(period).
func KeltnerSeries(klines []*domain.Kline, period int, mult float64) BandSeries {
	out := newBandSeries(len(klines))
	ema := EMASeries(Closes(klines), period)
	atr := ATRSeries(klines, period)
	for i := range klines {
		if ema[i] == 0 || atr[i] == 0 {
			continue
		}
		out.Middle[i] = ema[i]
		out.Upper[i] = ema[i] + mult*atr[i]
		out.Lower[i] = ema[i] - mult*atr[i]
	}
	return out
}
