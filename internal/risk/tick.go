package risk

import (
	"github.com/shopspring/decimal"
)

// Rounding is the direction RoundToTick snaps in.
type Rounding int

const (
	RoundDown Rounding = iota
	RoundUp
)

// tickSnap absorbs float noise: a price within this fraction of a tick from a
// tick boundary is treated as sitting on it.
var tickSnap = decimal.New(1, -9)

// RoundToTick snaps price onto the tick grid in the given direction. A
// non-positive tick leaves the price unchanged. Rounding is done in decimal
// arithmetic so repeated rounding of an on-grid price is a no-op.
func RoundToTick(price, tick float64, dir Rounding) float64 {
	if tick <= 0 {
		return price
	}
	p := decimal.NewFromFloat(price)
	t := decimal.NewFromFloat(tick)
	q := p.Div(t)

	nearest := q.Round(0)
	var steps decimal.Decimal
	switch {
	case q.Sub(nearest).Abs().LessThan(tickSnap):
		steps = nearest
	case dir == RoundUp:
		steps = q.Ceil()
	default:
		steps = q.Floor()
	}
	return steps.Mul(t).InexactFloat64()
}

// awayFromEntry rounds a stop so it is never tighter than computed: down for
// long stops, up for short stops.
func awayFromEntry(isLong bool) Rounding {
	if isLong {
		return RoundDown
	}
	return RoundUp
}

// towardProfit rounds a target onto the profit side: up for longs, down for shorts.
func towardProfit(isLong bool) Rounding {
	if isLong {
		return RoundUp
	}
	return RoundDown
}
