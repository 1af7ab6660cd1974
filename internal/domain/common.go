package domain

// Side is the direction of a position or exit plan.
type Side string

const (
	Long  Side = "LONG"
	Short Side = "SHORT"
)

// Opposite returns the other side.
func (s Side) Opposite() Side {
	if s == Long {
		return Short
	}
	return Long
}

// Sign returns +1 for Long and -1 for Short. Profit for a move from a to b is Sign()*(b-a).
func (s Side) Sign() float64 {
	if s == Short {
		return -1
	}
	return 1
}

// EntryOrderSide returns the order side that opens a position on this side.
func (s Side) EntryOrderSide() OrderSide {
	if s == Short {
		return Sell
	}
	return Buy
}

// ExitOrderSide returns the order side that reduces a position on this side.
func (s Side) ExitOrderSide() OrderSide {
	return s.EntryOrderSide().Opposite()
}

// OrderSide represents the side of an order (BUY or SELL).
type OrderSide string

const (
	Buy  OrderSide = "BUY"
	Sell OrderSide = "SELL"
)

// Opposite returns the other order side.
func (s OrderSide) Opposite() OrderSide {
	if s == Buy {
		return Sell
	}
	return Buy
}

// PositionSide maps the order side onto the position side it opens.
func (s OrderSide) PositionSide() Side {
	if s == Sell {
		return Short
	}
	return Long
}

// Regime is the coarse market classification used to shape exit plans.
type Regime string

const (
	RegimeTrend   Regime = "TREND"
	RegimeRange   Regime = "RANGE"
	RegimeHighVol Regime = "HIGH_VOL"
	RegimeLowVol  Regime = "LOW_VOL"
)

// CloseReason indicates why a position (or part of it) was closed.
type CloseReason string

const (
	CloseReasonStopLoss   CloseReason = "STOP"
	CloseReasonTakeProfit CloseReason = "TP_FULL"
	CloseReasonTarget     CloseReason = "TARGET"
	CloseReasonTimeStop   CloseReason = "TIME_STOP"
	CloseReasonEndOfData  CloseReason = "END_OF_DATA"
	CloseReasonReversal   CloseReason = "REVERSAL"
	CloseReasonManual     CloseReason = "MANUAL"
	CloseReasonUnknown    CloseReason = "Unknown"
)

// PriceMap holds the latest known price per symbol.
type PriceMap map[string]float64

// Price returns the price for symbol and whether a usable one is known.
func (m PriceMap) Price(symbol string) (float64, bool) {
	p, ok := m[symbol]
	if !ok || p <= 0 {
		return 0, false
	}
	return p, true
}
