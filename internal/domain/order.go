package domain

import "time"

// OrderType is the matching behaviour of an order.
type OrderType string

const (
	OrderTypeMarket     OrderType = "MARKET"
	OrderTypeLimit      OrderType = "LIMIT"
	OrderTypeStopMarket OrderType = "STOP_MARKET"
)

// OrderRequest is an order intent handed to the matching engine.
//
// With OCO set, TakeProfit and StopLoss describe a one-cancels-other exit pair
// and Price/StopPrice are ignored. Without OCO, TakeProfit/StopLoss (both
// required when either is set) attach an OCO exit pair once the order fills.
type OrderRequest struct {
	Symbol        string
	Side          OrderSide
	Type          OrderType
	Quantity      float64
	Price         float64 // limit price
	StopPrice     float64 // trigger price for STOP_MARKET
	TakeProfit    float64
	StopLoss      float64
	OCO           bool
	ClientOrderID string
	Tag           string // free-form label carried onto the fill (e.g. exit reason)
}

// HasBracket reports whether the request carries attached exit prices.
func (r OrderRequest) HasBracket() bool {
	return r.TakeProfit > 0 || r.StopLoss > 0
}

// PendingOrder is an order resting in the matching engine's book.
type PendingOrder struct {
	ID            string
	ClientOrderID string
	Symbol        string
	Side          OrderSide
	Type          OrderType
	Quantity      float64
	Price         float64
	StopPrice     float64
	OCOGroupID    string // sibling leg shares the same id
	Tag           string
	Attached      *OrderRequest // exit pair to submit once this order fills
	CreatedAt     time.Time
}

// Fill is the per-fill record produced for reporting.
type Fill struct {
	ID            int64 // assigned by the journal
	RunID         string
	OrderID       string
	ClientOrderID string
	OCOGroupID    string
	Symbol        string
	Side          OrderSide
	Type          OrderType
	Quantity      float64
	Price         float64
	Fee           float64
	Slippage      float64 // absolute price distance between reference and fill price
	Maker         bool
	Tag           string
	Timestamp     time.Time
}

// Notional returns price times quantity.
func (f *Fill) Notional() float64 {
	return f.Price * f.Quantity
}

// Rejection reports an order request that was neither filled nor queued.
type Rejection struct {
	Request OrderRequest
	Reason  error
}
