package domain

import "time"

// Position is the single open position the ledger holds for a symbol.
// It exists only while Quantity > 0.
type Position struct {
	Symbol            string
	Side              Side
	Quantity          float64 // always > 0
	AverageEntryPrice float64 // quantity-weighted
	RealizedPnl       float64 // realized on partial closes, net of fees paid while open
	UnrealizedPnl     float64 // as of the last mark-to-market
	MarkPrice         float64 // last price used for mark-to-market
	EntryFees         float64 // opening fees not yet attributed to a closing trade
	OpenedAt          time.Time
}

// MarketValue is the signed marked notional: positive for longs, negative for shorts.
func (p *Position) MarketValue() float64 {
	mark := p.MarkPrice
	if mark <= 0 {
		mark = p.AverageEntryPrice
	}
	return p.Side.Sign() * p.Quantity * mark
}

// PnlAt returns the unrealized P&L of the position at price.
func (p *Position) PnlAt(price float64) float64 {
	return p.Side.Sign() * (price - p.AverageEntryPrice) * p.Quantity
}
