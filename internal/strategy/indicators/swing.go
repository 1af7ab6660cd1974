package indicators

import "positionEngine/internal/domain"

// SwingLow returns the lowest low of the lookback bars ending at index i, or
// 0 when fewer than lookback bars are available.
func SwingLow(klines []*domain.Kline, i, lookback int) float64 {
	if lookback <= 0 || i < lookback-1 || i >= len(klines) {
		return 0
	}
	low := klines[i].Low
	for j := i - lookback + 1; j < i; j++ {
		if klines[j].Low < low {
			low = klines[j].Low
		}
	}
	return low
}

// SwingHigh returns the highest high of the lookback bars ending at index i,
// or 0 when fewer than lookback bars are available.
func SwingHigh(klines []*domain.Kline, i, lookback int) float64 {
	if lookback <= 0 || i < lookback-1 || i >= len(klines) {
		return 0
	}
	high := klines[i].High
	for j := i - lookback + 1; j < i; j++ {
		if klines[j].High > high {
			high = klines[j].High
		}
	}
	return high
}
