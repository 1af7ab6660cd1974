package domain

import "time"

// Kline represents a single candlestick (price bar).
type Kline struct {
	OpenTime  time.Time // Start time of the interval
	CloseTime time.Time // End time of the interval
	Symbol    string    // Trading symbol
	Interval  string    // Kline interval (e.g., "1m", "1h")
	Open      float64
	High      float64
	Low       float64
	Close     float64
	Volume    float64
	IsFinal   bool // Whether this kline is the final one for the interval
}

// Timestamp is the bar time used for fills and snapshots: the close time when
// known, otherwise the open time.
func (k *Kline) Timestamp() time.Time {
	if !k.CloseTime.IsZero() {
		return k.CloseTime
	}
	return k.OpenTime
}
