package portfolio

import (
	"fmt"
	"math"
	"time"

	"positionEngine/internal/domain"
	"positionEngine/internal/ports"
)

// dustRatio is the share of the quantity in play below which a leftover
// counts as zero.
const dustRatio = 1e-9

func isDust(qty, scale float64) bool {
	return qty <= dustRatio*math.Max(scale, 1)
}

// Ledger tracks cash and at most one open position per symbol.
//
// Cash moves by the traded notional plus or minus the fee. Fees are realized
// as they are paid, so RealizedPnl is always net of every fee and
// equity = cash + Σ signed market value = initial cash + realized + unrealized.
// A Ledger belongs to one simulation and is not safe for concurrent use.
type Ledger struct {
	initialCash float64
	cash        float64
	realized    float64
	fees        float64

	positions map[string]*domain.Position
	symbols   []string // first-seen order, for deterministic iteration

	highWaterMark float64
	maxDrawdown   float64

	now    time.Time
	closed []domain.Trade
}

// NewLedger creates a ledger holding initialCash and no positions.
func NewLedger(initialCash float64) *Ledger {
	return &Ledger{
		initialCash:   initialCash,
		cash:          initialCash,
		positions:     make(map[string]*domain.Position),
		highWaterMark: initialCash,
	}
}

// SetTime sets the bar time stamped onto positions and trades.
func (l *Ledger) SetTime(t time.Time) {
	l.now = t
}

// RecordFill applies one fill. Fills on the position's side (or on a flat
// symbol) increase it at a quantity-weighted average price; opposite fills
// close it partially, fully, or close it and open the remainder on the other
// side at the fill price. The fee of a reversing fill is split between the
// closing and opening parts pro rata by quantity.
func (l *Ledger) RecordFill(symbol string, side domain.OrderSide, qty, price, fee float64) error {
	if err := validateFill(symbol, side, qty, price, fee); err != nil {
		return err
	}

	notional := qty * price
	if side == domain.Buy {
		l.cash -= notional + fee
	} else {
		l.cash += notional - fee
	}
	l.fees += fee

	fillSide := side.PositionSide()
	pos, ok := l.positions[symbol]
	if !ok || pos.Side == fillSide {
		l.open(symbol, fillSide, qty, price, fee)
		return nil
	}

	held := pos.Quantity
	closeQty := math.Min(qty, pos.Quantity)
	closeFee := fee * closeQty / qty
	entryShare := pos.EntryFees * closeQty / pos.Quantity
	gross := pos.Side.Sign() * (price - pos.AverageEntryPrice) * closeQty

	l.realized += gross - closeFee
	pos.RealizedPnl += gross - closeFee
	pos.EntryFees -= entryShare
	pos.Quantity -= closeQty
	pos.UnrealizedPnl = pos.PnlAt(pos.MarkPrice)

	l.closed = append(l.closed, domain.Trade{
		Symbol:     symbol,
		Side:       pos.Side,
		EntryPrice: pos.AverageEntryPrice,
		ExitPrice:  price,
		Quantity:   closeQty,
		PNL:        gross - closeFee - entryShare,
		Fee:        closeFee + entryShare,
		EntryTime:  pos.OpenedAt,
		ExitTime:   l.now,
	})

	if isDust(pos.Quantity, held) {
		delete(l.positions, symbol)
	}
	if remainder := qty - closeQty; !isDust(remainder, qty) {
		l.open(symbol, fillSide, remainder, price, fee-closeFee)
	}
	return nil
}

func (l *Ledger) open(symbol string, side domain.Side, qty, price, fee float64) {
	l.realized -= fee
	pos, ok := l.positions[symbol]
	if !ok {
		pos = &domain.Position{Symbol: symbol, Side: side, OpenedAt: l.now}
		l.positions[symbol] = pos
		l.remember(symbol)
	}
	total := pos.Quantity + qty
	pos.AverageEntryPrice = (pos.AverageEntryPrice*pos.Quantity + price*qty) / total
	pos.Quantity = total
	pos.EntryFees += fee
	pos.RealizedPnl -= fee
	if pos.MarkPrice <= 0 {
		pos.MarkPrice = price
	}
	pos.UnrealizedPnl = pos.PnlAt(pos.MarkPrice)
}

func (l *Ledger) remember(symbol string) {
	for _, s := range l.symbols {
		if s == symbol {
			return
		}
	}
	l.symbols = append(l.symbols, symbol)
}

func validateFill(symbol string, side domain.OrderSide, qty, price, fee float64) error {
	switch {
	case symbol == "":
		return fmt.Errorf("record fill: %w: missing symbol", ports.ErrInvalidFill)
	case side != domain.Buy && side != domain.Sell:
		return fmt.Errorf("record fill: %w: side %q", ports.ErrInvalidFill, side)
	case !(qty > 0) || math.IsInf(qty, 0):
		return fmt.Errorf("record fill: %w: quantity %v", ports.ErrInvalidFill, qty)
	case !(price > 0) || math.IsInf(price, 0):
		return fmt.Errorf("record fill: %w: price %v", ports.ErrInvalidFill, price)
	case !(fee >= 0) || math.IsInf(fee, 0):
		return fmt.Errorf("record fill: %w: fee %v", ports.ErrInvalidFill, fee)
	}
	return nil
}

// MarkToMarket revalues open positions at the given prices, updates the
// high-water mark and returns the resulting equity snapshot. Symbols without
// a price keep their previous mark.
func (l *Ledger) MarkToMarket(prices domain.PriceMap) domain.EquitySnapshot {
	for _, symbol := range l.symbols {
		pos, ok := l.positions[symbol]
		if !ok {
			continue
		}
		if p, ok := prices.Price(symbol); ok {
			pos.MarkPrice = p
			pos.UnrealizedPnl = pos.PnlAt(p)
		}
	}

	equity := l.equity()
	if equity > l.highWaterMark {
		l.highWaterMark = equity
	}
	drawdown := 0.0
	if l.highWaterMark > 0 {
		drawdown = (l.highWaterMark - equity) / l.highWaterMark
	}
	if drawdown > l.maxDrawdown {
		l.maxDrawdown = drawdown
	}

	return domain.EquitySnapshot{
		Time:          l.now,
		Cash:          l.cash,
		Equity:        equity,
		RealizedPnl:   l.realized,
		UnrealizedPnl: l.unrealized(),
		Drawdown:      drawdown,
	}
}

func (l *Ledger) equity() float64 {
	equity := l.cash
	for _, symbol := range l.symbols {
		if pos, ok := l.positions[symbol]; ok {
			equity += pos.MarketValue()
		}
	}
	return equity
}

func (l *Ledger) unrealized() float64 {
	total := 0.0
	for _, symbol := range l.symbols {
		if pos, ok := l.positions[symbol]; ok {
			total += pos.UnrealizedPnl
		}
	}
	return total
}

// Snapshot returns the current state as of the last mark.
func (l *Ledger) Snapshot() domain.PortfolioState {
	unrealized := l.unrealized()
	state := domain.PortfolioState{
		Time:          l.now,
		Cash:          l.cash,
		Equity:        l.equity(),
		RealizedPnl:   l.realized,
		UnrealizedPnl: unrealized,
		TotalPnl:      l.realized + unrealized,
		Fees:          l.fees,
		HighWaterMark: l.highWaterMark,
		MaxDrawdown:   l.maxDrawdown,
	}
	for _, symbol := range l.symbols {
		if pos, ok := l.positions[symbol]; ok {
			state.Positions = append(state.Positions, *pos)
		}
	}
	return state
}

// Position returns a copy of the open position for symbol.
func (l *Ledger) Position(symbol string) (domain.Position, bool) {
	pos, ok := l.positions[symbol]
	if !ok {
		return domain.Position{}, false
	}
	return *pos, true
}

// InitialCash returns the starting balance.
func (l *Ledger) InitialCash() float64 {
	return l.initialCash
}

// DrainTrades returns the trades closed since the previous call.
func (l *Ledger) DrainTrades() []domain.Trade {
	out := l.closed
	l.closed = nil
	return out
}
