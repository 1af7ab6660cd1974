package domain

import "time"

// PortfolioState is a point-in-time view of the ledger.
type PortfolioState struct {
	Time          time.Time
	Cash          float64
	Equity        float64
	RealizedPnl   float64
	UnrealizedPnl float64
	TotalPnl      float64
	Fees          float64
	HighWaterMark float64
	MaxDrawdown   float64 // fraction of the high-water mark
	Positions     []Position
}

// EquitySnapshot is the per-bar equity record.
type EquitySnapshot struct {
	ID            int64 // assigned by the journal
	RunID         string
	Time          time.Time
	Cash          float64
	Equity        float64
	RealizedPnl   float64
	UnrealizedPnl float64
	Drawdown      float64 // fraction below the high-water mark
}
