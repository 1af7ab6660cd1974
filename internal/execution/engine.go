package execution

import (
	"context"
	"fmt"
	"math"
	"strconv"
	"time"

	"github.com/google/uuid"

	"positionEngine/internal/domain"
	"positionEngine/internal/ports"
)

// Ledger receives every fill the engine produces.
type Ledger interface {
	RecordFill(symbol string, side domain.OrderSide, qty, price, fee float64) error
}

// Config holds the cost model and the run identity used for order ids.
type Config struct {
	TakerFee float64 // fraction of notional
	MakerFee float64 // fraction of notional
	Slippage float64 // fraction of price applied against the taker
	RunID    string
}

// SubmitResult splits a batch of requests by outcome. Duplicate client order
// ids appear in none of the lists.
type SubmitResult struct {
	Filled   []*domain.Fill
	Pending  []domain.PendingOrder
	Rejected []domain.Rejection
}

// Engine simulates order matching against a per-symbol price map.
//
// The pending book is kept in submission order and order ids are derived from
// the run id and a sequence number, so a replay produces identical ids and
// fills. An Engine belongs to one simulation and is not safe for concurrent use.
type Engine struct {
	config    Config
	ledger    Ledger
	logger    ports.Logger
	namespace uuid.UUID
	seq       uint64
	now       time.Time

	book     []*domain.PendingOrder
	executed map[string]struct{}
}

// NewEngine creates a matching engine that books fills into ledger.
func NewEngine(config Config, ledger Ledger, logger ports.Logger) *Engine {
	return &Engine{
		config:    config,
		ledger:    ledger,
		logger:    logger,
		namespace: uuid.NewSHA1(uuid.NameSpaceOID, []byte("positionEngine/run/"+config.RunID)),
		executed:  make(map[string]struct{}),
	}
}

// SetTime sets the bar time stamped onto fills and new pending orders.
func (e *Engine) SetTime(t time.Time) {
	e.now = t
}

func (e *Engine) nextID() string {
	e.seq++
	return uuid.NewSHA1(e.namespace, []byte(strconv.FormatUint(e.seq, 10))).String()
}

// SubmitOrders validates and matches each request in order. MARKET orders
// fill at once when the symbol has a price; LIMIT and STOP_MARKET orders fill
// at once when already crossed and rest in the book otherwise. Invalid
// requests are rejected without touching the book or the ledger.
func (e *Engine) SubmitOrders(ctx context.Context, requests []domain.OrderRequest, prices domain.PriceMap) SubmitResult {
	var result SubmitResult
	for _, req := range requests {
		if err := validate(req); err != nil {
			e.reject(ctx, req, err, &result)
			continue
		}
		if e.isDuplicate(req.ClientOrderID) {
			e.logger.Debug(ctx, "Duplicate client order id skipped", map[string]interface{}{
				"clientOrderId": req.ClientOrderID,
			})
			continue
		}

		if req.OCO {
			e.submitOCO(ctx, req, prices, &result)
			continue
		}

		order := e.newPending(req)
		if req.HasBracket() {
			exit := bracketExit(req)
			order.Attached = &exit
		}
		fill, ok, err := e.tryFill(ctx, order, prices)
		if err != nil {
			e.reject(ctx, req, err, &result)
			continue
		}
		if ok {
			result.Filled = append(result.Filled, fill)
			e.afterFill(ctx, order, prices, &result)
			continue
		}
		e.book = append(e.book, order)
		result.Pending = append(result.Pending, *order)
	}
	return result
}

// submitOCO matches the take-profit leg first; when it fills the stop leg is
// never created. Otherwise the stop leg gets its own chance to trigger, and
// whatever did not fill rests in the book under a shared group id.
func (e *Engine) submitOCO(ctx context.Context, req domain.OrderRequest, prices domain.PriceMap, result *SubmitResult) {
	group := e.nextID()
	tp := e.newPending(domain.OrderRequest{
		Symbol: req.Symbol, Side: req.Side, Type: domain.OrderTypeLimit, Quantity: req.Quantity,
		Price: req.TakeProfit, ClientOrderID: req.ClientOrderID, Tag: req.Tag,
	})
	tp.OCOGroupID = group
	fill, ok, err := e.tryFill(ctx, tp, prices)
	if err != nil {
		e.reject(ctx, req, err, result)
		return
	}
	if ok {
		result.Filled = append(result.Filled, fill)
		return
	}

	sl := e.newPending(domain.OrderRequest{
		Symbol: req.Symbol, Side: req.Side, Type: domain.OrderTypeStopMarket, Quantity: req.Quantity,
		StopPrice: req.StopLoss, ClientOrderID: req.ClientOrderID, Tag: req.Tag,
	})
	sl.OCOGroupID = group
	fill, ok, err = e.tryFill(ctx, sl, prices)
	if err != nil {
		e.reject(ctx, req, err, result)
		return
	}
	if ok {
		result.Filled = append(result.Filled, fill)
		return
	}

	e.book = append(e.book, tp, sl)
	result.Pending = append(result.Pending, *tp, *sl)
}

// ProcessPendingOrders fills every resting order whose trigger is met at the
// given prices, in book order. A filled OCO leg removes its sibling, and so
// does a leg the ledger refuses; a filled bracket entry submits its exit
// pair. Symbols without a price are skipped.
func (e *Engine) ProcessPendingOrders(ctx context.Context, prices domain.PriceMap) []*domain.Fill {
	var fills []*domain.Fill
	var followUps []*domain.PendingOrder
	cancelled := make(map[string]bool)

	remaining := e.book[:0:0]
	for _, order := range e.book {
		if order.OCOGroupID != "" && cancelled[order.OCOGroupID] {
			continue
		}
		fill, ok, err := e.tryFill(ctx, order, prices)
		if err != nil {
			e.logger.Error(ctx, err, "Dropping pending order", map[string]interface{}{"orderId": order.ID, "symbol": order.Symbol})
			// a lone leg would no longer be one-cancels-other
			if order.OCOGroupID != "" {
				cancelled[order.OCOGroupID] = true
			}
			continue
		}
		if !ok {
			remaining = append(remaining, order)
			continue
		}
		fills = append(fills, fill)
		if order.OCOGroupID != "" {
			cancelled[order.OCOGroupID] = true
		}
		if order.Attached != nil {
			followUps = append(followUps, order)
		}
	}

	// siblings that came before the filled leg in book order
	e.book = remaining[:0]
	for _, order := range remaining {
		if order.OCOGroupID != "" && cancelled[order.OCOGroupID] {
			e.logger.Debug(ctx, "OCO sibling cancelled", map[string]interface{}{"orderId": order.ID, "group": order.OCOGroupID})
			continue
		}
		e.book = append(e.book, order)
	}

	for _, order := range followUps {
		var result SubmitResult
		e.afterFill(ctx, order, prices, &result)
		fills = append(fills, result.Filled...)
	}
	return fills
}

func (e *Engine) reject(ctx context.Context, req domain.OrderRequest, err error, result *SubmitResult) {
	e.logger.Warn(ctx, "Order rejected", map[string]interface{}{
		"symbol": req.Symbol, "side": req.Side, "type": req.Type, "clientOrderId": req.ClientOrderID, "reason": err.Error(),
	})
	result.Rejected = append(result.Rejected, domain.Rejection{Request: req, Reason: err})
}

// afterFill submits the exit pair attached to a filled bracket entry.
func (e *Engine) afterFill(ctx context.Context, order *domain.PendingOrder, prices domain.PriceMap, result *SubmitResult) {
	if order.Attached == nil {
		return
	}
	sub := e.SubmitOrders(ctx, []domain.OrderRequest{*order.Attached}, prices)
	result.Filled = append(result.Filled, sub.Filled...)
	result.Pending = append(result.Pending, sub.Pending...)
	result.Rejected = append(result.Rejected, sub.Rejected...)
}

// tryFill matches one order and, when it fills, books it into the ledger.
// It reports false with a nil error when the order is not triggered yet.
func (e *Engine) tryFill(ctx context.Context, order *domain.PendingOrder, prices domain.PriceMap) (*domain.Fill, bool, error) {
	current, ok := prices.Price(order.Symbol)
	if !ok {
		return nil, false, nil
	}

	var price, feeRate, slippage float64
	maker := false
	switch order.Type {
	case domain.OrderTypeMarket:
		price, slippage = e.slipped(order.Side, current)
		feeRate = e.config.TakerFee
	case domain.OrderTypeLimit:
		if !limitCrossed(order.Side, order.Price, current) {
			return nil, false, nil
		}
		price, feeRate, maker = order.Price, e.config.MakerFee, true
	case domain.OrderTypeStopMarket:
		if !stopTriggered(order.Side, order.StopPrice, current) {
			return nil, false, nil
		}
		price, slippage = e.slipped(order.Side, current)
		feeRate = e.config.TakerFee
	default:
		return nil, false, fmt.Errorf("%w: %q", ports.ErrUnknownOrderType, order.Type)
	}

	fee := order.Quantity * price * feeRate
	if err := e.ledger.RecordFill(order.Symbol, order.Side, order.Quantity, price, fee); err != nil {
		return nil, false, fmt.Errorf("order %s: %w", order.ID, err)
	}
	if order.ClientOrderID != "" {
		e.executed[order.ClientOrderID] = struct{}{}
	}

	fill := &domain.Fill{
		RunID:         e.config.RunID,
		OrderID:       order.ID,
		ClientOrderID: order.ClientOrderID,
		OCOGroupID:    order.OCOGroupID,
		Symbol:        order.Symbol,
		Side:          order.Side,
		Type:          order.Type,
		Quantity:      order.Quantity,
		Price:         price,
		Fee:           fee,
		Slippage:      slippage,
		Maker:         maker,
		Tag:           order.Tag,
		Timestamp:     e.now,
	}
	e.logger.Debug(ctx, "Order filled", map[string]interface{}{
		"orderId": order.ID, "symbol": order.Symbol, "side": order.Side, "type": order.Type,
		"qty": order.Quantity, "price": price, "fee": fee, "maker": maker,
	})
	return fill, true, nil
}

// slipped moves the price against the taker: up for buys, down for sells.
func (e *Engine) slipped(side domain.OrderSide, current float64) (price, slippage float64) {
	if side == domain.Buy {
		price = current * (1 + e.config.Slippage)
	} else {
		price = current * (1 - e.config.Slippage)
	}
	return price, math.Abs(price - current)
}

func limitCrossed(side domain.OrderSide, limit, current float64) bool {
	if side == domain.Buy {
		return current <= limit
	}
	return current >= limit
}

// stopTriggered: a buy stop fires at or above its trigger, a sell stop at or below.
func stopTriggered(side domain.OrderSide, stop, current float64) bool {
	if side == domain.Buy {
		return current >= stop
	}
	return current <= stop
}

func (e *Engine) newPending(req domain.OrderRequest) *domain.PendingOrder {
	return &domain.PendingOrder{
		ID:            e.nextID(),
		ClientOrderID: req.ClientOrderID,
		Symbol:        req.Symbol,
		Side:          req.Side,
		Type:          req.Type,
		Quantity:      req.Quantity,
		Price:         req.Price,
		StopPrice:     req.StopPrice,
		Tag:           req.Tag,
		CreatedAt:     e.now,
	}
}

// bracketExit is the OCO pair that protects a filled bracket entry.
func bracketExit(entry domain.OrderRequest) domain.OrderRequest {
	exit := domain.OrderRequest{
		Symbol:     entry.Symbol,
		Side:       entry.Side.Opposite(),
		Quantity:   entry.Quantity,
		TakeProfit: entry.TakeProfit,
		StopLoss:   entry.StopLoss,
		OCO:        true,
		Tag:        entry.Tag,
	}
	if entry.ClientOrderID != "" {
		exit.ClientOrderID = entry.ClientOrderID + "-exit"
	}
	return exit
}

func (e *Engine) isDuplicate(clientID string) bool {
	if clientID == "" {
		return false
	}
	if _, ok := e.executed[clientID]; ok {
		return true
	}
	for _, order := range e.book {
		if order.ClientOrderID == clientID {
			return true
		}
	}
	return false
}

func validate(req domain.OrderRequest) error {
	if req.Symbol == "" {
		return ports.ErrMissingSymbol
	}
	if req.Side != domain.Buy && req.Side != domain.Sell {
		return fmt.Errorf("%w: %q", ports.ErrUnknownOrderSide, req.Side)
	}
	if !(req.Quantity > 0) || math.IsInf(req.Quantity, 0) {
		return fmt.Errorf("%w: %v", ports.ErrInvalidQuantity, req.Quantity)
	}
	if req.OCO {
		if req.TakeProfit <= 0 || req.StopLoss <= 0 {
			return fmt.Errorf("%w: oco needs take profit and stop loss", ports.ErrMissingBracket)
		}
		return nil
	}
	if req.HasBracket() && (req.TakeProfit <= 0 || req.StopLoss <= 0) {
		return fmt.Errorf("%w: bracket needs take profit and stop loss", ports.ErrMissingBracket)
	}
	switch req.Type {
	case domain.OrderTypeMarket:
	case domain.OrderTypeLimit:
		if req.Price <= 0 {
			return ports.ErrMissingLimitPrice
		}
	case domain.OrderTypeStopMarket:
		if req.StopPrice <= 0 {
			return ports.ErrMissingStopPrice
		}
	default:
		return fmt.Errorf("%w: %q", ports.ErrUnknownOrderType, req.Type)
	}
	return nil
}

// Pending returns a copy of the book in submission order.
func (e *Engine) Pending() []domain.PendingOrder {
	out := make([]domain.PendingOrder, len(e.book))
	for i, order := range e.book {
		out[i] = *order
	}
	return out
}

// CancelSymbol removes every resting order for symbol and returns how many
// were removed.
func (e *Engine) CancelSymbol(symbol string) int {
	kept := e.book[:0]
	removed := 0
	for _, order := range e.book {
		if order.Symbol == symbol {
			removed++
			continue
		}
		kept = append(kept, order)
	}
	for i := len(kept); i < len(e.book); i++ {
		e.book[i] = nil
	}
	e.book = kept
	return removed
}
