package domain

import "time"

// Trade is one closing event on a position: a partial close, a full close or
// the closing leg of a reversal.
type Trade struct {
	ID          int64  // assigned by the journal
	RunID       string // simulation run that produced it
	Symbol      string
	Side        Side // side of the position that was reduced
	EntryPrice  float64
	ExitPrice   float64
	Quantity    float64 // quantity closed
	PNL         float64 // (exit-entry)*qty signed by side, minus Fee
	Fee         float64 // closing fee plus the closed share of the entry fees
	RMultiple   float64 // PNL per unit of initial risk, 0 when no plan was attached
	EntryTime   time.Time
	ExitTime    time.Time
	CloseReason CloseReason
}

// IsWin reports whether the trade made money.
func (t *Trade) IsWin() bool {
	return t.PNL > 0
}
