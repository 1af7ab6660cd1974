package indicators

import "positionEngine/internal/domain"

// Supertrend is the trailing line and its direction per bar.
type Supertrend struct {
	Line    []float64
	TrendUp []bool
}

// SupertrendSeries computes the Supertrend line from ATR(period) bands around
// the bar midpoint. In an uptrend the line is the lower band, in a downtrend
// the upper band. The first value is at index period-1.
func SupertrendSeries(klines []*domain.Kline, period int, mult float64) Supertrend {
	n := len(klines)
	out := Supertrend{Line: make([]float64, n), TrendUp: make([]bool, n)}
	if period <= 0 || n < period {
		return out
	}
	atr := ATRSeries(klines, period)

	var finalUpper, finalLower float64
	up := true
	for i := period - 1; i < n; i++ {
		k := klines[i]
		mid := (k.High + k.Low) / 2
		basicUpper := mid + mult*atr[i]
		basicLower := mid - mult*atr[i]

		if i == period-1 {
			finalUpper, finalLower = basicUpper, basicLower
			up = k.Close >= mid
		} else {
			prevClose := klines[i-1].Close
			if basicUpper < finalUpper || prevClose > finalUpper {
				finalUpper = basicUpper
			}
			if basicLower > finalLower || prevClose < finalLower {
				finalLower = basicLower
			}
			switch {
			case up && k.Close < finalLower:
				up = false
			case !up && k.Close > finalUpper:
				up = true
			}
		}

		out.TrendUp[i] = up
		if up {
			out.Line[i] = finalLower
		} else {
			out.Line[i] = finalUpper
		}
	}
	return out
}
