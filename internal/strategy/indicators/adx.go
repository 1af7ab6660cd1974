package indicators

import (
	"math"

	"positionEngine/internal/domain"
)

// DMI holds the directional movement lines and the ADX derived from them.
type DMI struct {
	PlusDI  []float64
	MinusDI []float64
	ADX     []float64
}

// DMISeries computes Wilder's directional movement system. DI lines start at
// index period, ADX at index 2*period-1.
func DMISeries(klines []*domain.Kline, period int) DMI {
	n := len(klines)
	out := DMI{PlusDI: make([]float64, n), MinusDI: make([]float64, n), ADX: make([]float64, n)}
	if period <= 0 || n <= period {
		return out
	}
	tr := TrueRange(klines)
	plusDM := make([]float64, n)
	minusDM := make([]float64, n)
	for i := 1; i < n; i++ {
		up := klines[i].High - klines[i-1].High
		down := klines[i-1].Low - klines[i].Low
		if up > down && up > 0 {
			plusDM[i] = up
		}
		if down > up && down > 0 {
			minusDM[i] = down
		}
	}

	var sTR, sPlus, sMinus float64
	for i := 1; i <= period; i++ {
		sTR += tr[i]
		sPlus += plusDM[i]
		sMinus += minusDM[i]
	}

	dx := make([]float64, n)
	p := float64(period)
	for i := period; i < n; i++ {
		if i > period {
			sTR = sTR - sTR/p + tr[i]
			sPlus = sPlus - sPlus/p + plusDM[i]
			sMinus = sMinus - sMinus/p + minusDM[i]
		}
		if sTR <= 0 {
			continue
		}
		out.PlusDI[i] = 100 * sPlus / sTR
		out.MinusDI[i] = 100 * sMinus / sTR
		if sum := out.PlusDI[i] + out.MinusDI[i]; sum > 0 {
			dx[i] = 100 * math.Abs(out.PlusDI[i]-out.MinusDI[i]) / sum
		}
	}

	first := 2*period - 1
	if n <= first {
		return out
	}
	adx := 0.0
	for i := period; i <= first; i++ {
		adx += dx[i]
	}
	adx /= p
	out.ADX[first] = adx
	for i := first + 1; i < n; i++ {
		adx = (adx*(p-1) + dx[i]) / p
		out.ADX[i] = adx
	}
	return out
}

// ADXSeries is a shortcut for DMISeries(...).ADX.
func ADXSeries(klines []*domain.Kline, period int) []float64 {
	return DMISeries(klines, period).ADX
}
