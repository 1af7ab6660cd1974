package backtesting

import (
	"context"
	"fmt"
	"math"

	"positionEngine/internal/domain"
	"positionEngine/internal/execution"
	"positionEngine/internal/metrics"
	"positionEngine/internal/portfolio"
	"positionEngine/internal/ports"
	"positionEngine/internal/regime"
	"positionEngine/internal/risk"
	"positionEngine/internal/strategy/analytics"
	"positionEngine/internal/strategy/indicators"
)

// BacktestConfig holds configuration for one simulation run.
type BacktestConfig struct {
	RunID        string
	Symbol       string
	InitialFunds float64
	TakerFee     float64
	MakerFee     float64
	Slippage     float64

	Risk       risk.Params
	Sizing     risk.RiskConfig
	Indicators IndicatorConfig

	// DisableRegime builds every plan with the unadjusted policy.
	DisableRegime bool
}

// Options carries the optional collaborators of a run.
type Options struct {
	Logger  ports.Logger
	Journal ports.Journal     // nil keeps records in memory only
	Metrics *metrics.Recorder // nil disables metrics
}

// BacktestResult holds the results of a backtest
type BacktestResult struct {
	RunID      string
	Trades     []*domain.Trade
	Fills      []*domain.Fill
	Equity     []domain.EquitySnapshot
	Final      domain.PortfolioState
	Entries    map[domain.Regime]int // entries per regime label
	Rejections int
	PlanErrors int
	Metrics    *analytics.PerformanceMetrics
}

// Backtest replays klines in order. Each bar it (1) trails and checks the
// live exit plan, routing any exit through the matching engine, (2) matches
// resting orders, (3) when flat and out of cooldown asks the strategy for an
// entry and builds a new plan, (4) marks to market. A position still open on
// the last bar is closed at its close. The run owns its engine, ledger and
// plan, so concurrent runs share nothing.
func Backtest(ctx context.Context, strategy ports.Strategy, klines []*domain.Kline, config BacktestConfig, opts Options) (*BacktestResult, error) {
	if len(klines) < strategy.RequiredDataPoints() {
		return nil, fmt.Errorf("not enough data points for strategy: need %d, got %d", strategy.RequiredDataPoints(), len(klines))
	}
	if config.Symbol == "" {
		return nil, fmt.Errorf("%w: backtest symbol is required", ports.ErrConfigurationError)
	}
	if config.InitialFunds <= 0 {
		return nil, fmt.Errorf("%w: initial funds must be positive", ports.ErrConfigurationError)
	}
	if opts.Logger == nil {
		return nil, fmt.Errorf("%w: logger is required for backtest", ports.ErrConfigurationError)
	}

	r := newRun(strategy, klines, config, opts)
	for i := range klines {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("backtest %s at bar %d: %w: %v", config.RunID, i, ports.ErrContextCanceled, err)
		}
		if err := r.step(ctx, i); err != nil {
			return nil, err
		}
	}
	return r.finish(), nil
}

type run struct {
	strategy ports.Strategy
	klines   []*domain.Kline
	config   BacktestConfig
	opts     Options
	series   marketSeries

	ledger *portfolio.Ledger
	engine *execution.Engine
	sizer  *risk.RiskManager

	plan       *domain.ExitPlan
	initialQty float64
	cooldown   int
	entrySeq   int

	result *BacktestResult
}

func newRun(strategy ports.Strategy, klines []*domain.Kline, config BacktestConfig, opts Options) *run {
	config.Risk = config.Risk.WithDefaults()
	config.Indicators = config.Indicators.withDefaults()
	ledger := portfolio.NewLedger(config.InitialFunds)
	return &run{
		strategy: strategy,
		klines:   klines,
		config:   config,
		opts:     opts,
		series:   computeSeries(klines, config.Indicators),
		ledger:   ledger,
		engine: execution.NewEngine(execution.Config{
			TakerFee: config.TakerFee,
			MakerFee: config.MakerFee,
			Slippage: config.Slippage,
			RunID:    config.RunID,
		}, ledger, opts.Logger),
		sizer: risk.NewRiskManager(config.Sizing),
		result: &BacktestResult{
			RunID:   config.RunID,
			Entries: make(map[domain.Regime]int),
		},
	}
}

func (r *run) step(ctx context.Context, i int) error {
	k := r.klines[i]
	ts := k.Timestamp()
	r.engine.SetTime(ts)
	r.ledger.SetTime(ts)
	prices := domain.PriceMap{r.config.Symbol: k.Close}
	last := i == len(r.klines)-1

	exited := false
	if r.plan != nil {
		if err := r.manageExit(ctx, i); err != nil {
			return err
		}
		exited = r.plan == nil
	}

	if err := r.recordFills(ctx, r.engine.ProcessPendingOrders(ctx, prices), nil); err != nil {
		return err
	}

	if r.flat() && !last {
		// the exit bar itself does not count toward the cooldown
		if r.cooldown > 0 {
			if !exited {
				r.cooldown--
			}
		} else if err := r.tryEnter(ctx, i); err != nil {
			return err
		}
	}

	if last && !r.flat() {
		ev := domain.ExitEvent{Reason: domain.CloseReasonEndOfData, TargetIndex: -1, Price: k.Close, CloseFraction: 1}
		if err := r.exit(ctx, ev, domain.OrderTypeMarket); err != nil {
			return err
		}
	}

	snap := r.ledger.MarkToMarket(prices)
	snap.RunID = r.config.RunID
	r.sizer.OnEquity(ctx, ts, snap.Equity)
	r.opts.Metrics.ObserveEquity(snap)
	if r.opts.Journal != nil {
		id, err := r.opts.Journal.SaveEquity(ctx, &snap)
		if err != nil {
			return fmt.Errorf("journal equity at %s: %w", ts, err)
		}
		snap.ID = id
	}
	r.result.Equity = append(r.result.Equity, snap)
	return nil
}

func (r *run) flat() bool {
	_, open := r.ledger.Position(r.config.Symbol)
	return !open
}

// manageExit advances the live plan by one bar and executes what it fires.
func (r *run) manageExit(ctx context.Context, i int) error {
	k := r.klines[i]
	bar := risk.BarContext{
		Close:         k.Close,
		High:          k.High,
		Low:           k.Low,
		KeltnerMiddle: r.series.keltner.Middle[i],
		KeltnerUpper:  r.series.keltner.Upper[i],
		KeltnerLower:  r.series.keltner.Lower[i],
	}
	// the Supertrend line only supports a position on its own side
	if r.series.supertrend.TrendUp[i] == (r.plan.Side == domain.Long) {
		bar.SupertrendLine = r.series.supertrend.Line[i]
	}
	risk.UpdateTrailingStop(r.plan, bar, r.series.atr[i])

	ev, ok := risk.CheckExits(r.plan, k.Close, k.High, k.Low)
	if !ok {
		return nil
	}
	orderType := domain.OrderTypeMarket
	if ev.Reason == domain.CloseReasonTarget || ev.Reason == domain.CloseReasonTakeProfit {
		orderType = domain.OrderTypeLimit
	}
	return r.exit(ctx, ev, orderType)
}

// exit closes the event's share of the position at the event price. Targets
// and the primary target rest as limits at their level (maker), stops and
// time stops go out as market orders (taker).
func (r *run) exit(ctx context.Context, ev domain.ExitEvent, orderType domain.OrderType) error {
	pos, ok := r.ledger.Position(r.config.Symbol)
	if !ok {
		r.plan = nil
		return nil
	}
	qty := pos.Quantity
	// the rung that completes the ladder takes whatever is left
	if !ev.IsFull() && r.plan.HitFractionSum() < 1-1e-9 {
		qty = math.Min(pos.Quantity, ev.CloseFraction*r.initialQty)
	}
	if qty <= 0 {
		return nil
	}

	req := domain.OrderRequest{
		Symbol:        r.config.Symbol,
		Side:          pos.Side.ExitOrderSide(),
		Type:          orderType,
		Quantity:      qty,
		ClientOrderID: fmt.Sprintf("%s-%d-%s", r.config.RunID, r.entrySeq, ev.Label()),
		Tag:           ev.Label(),
	}
	if orderType == domain.OrderTypeLimit {
		req.Price = ev.Price
	}

	r.opts.Metrics.ObserveExit(ev)
	r.opts.Logger.Debug(ctx, "Exit triggered", map[string]interface{}{
		"reason": ev.Label(), "price": ev.Price, "qty": qty, "stop": r.plan.Stop, "bars": r.plan.BarsInTrade,
	})

	res := r.engine.SubmitOrders(ctx, []domain.OrderRequest{req}, domain.PriceMap{r.config.Symbol: ev.Price})
	r.noteRejections(ctx, res.Rejected)
	plan := r.plan
	if err := r.recordFills(ctx, res.Filled, &ev); err != nil {
		return err
	}

	if r.flat() {
		r.engine.CancelSymbol(r.config.Symbol)
		if plan != nil {
			r.cooldown = plan.CooldownBars
		}
		r.plan = nil
	}
	return nil
}

// tryEnter asks the strategy for a signal and, if one comes, sizes it from
// a plan at the signal price, fills it and rebuilds the plan at the fill price.
func (r *run) tryEnter(ctx context.Context, i int) error {
	if i+1 < r.strategy.RequiredDataPoints() {
		return nil
	}
	k := r.klines[i]
	atr := r.series.atr[i]
	if atr <= 0 {
		return nil
	}
	if err := r.sizer.CheckRiskLimits(ctx); err != nil {
		r.opts.Logger.Debug(ctx, "Entry blocked by risk limits", map[string]interface{}{"reason": err.Error()})
		return nil
	}

	side, ok := r.strategy.EntrySignal(ctx, r.klines[:i+1], k.Close)
	if !ok {
		return nil
	}

	var label domain.Regime
	var squeeze bool
	if !r.config.DisableRegime {
		cls := regime.ClassifyAt(r.series.regime, i)
		label, squeeze = cls.Regime, cls.Squeeze
	}
	sc := &risk.StructureContext{
		SwingLow:     indicators.SwingLow(r.klines, i, r.config.Indicators.SwingLookback),
		SwingHigh:    indicators.SwingHigh(r.klines, i, r.config.Indicators.SwingLookback),
		KeltnerUpper: r.series.keltner.Upper[i],
		KeltnerLower: r.series.keltner.Lower[i],
		Squeeze:      squeeze,
	}

	draft, err := risk.BuildExitPlan(side, k.Close, atr, r.config.Risk, sc, label)
	if err != nil {
		r.result.PlanErrors++
		r.opts.Logger.Error(ctx, err, "Exit plan rejected, skipping entry", map[string]interface{}{"bar": i, "price": k.Close})
		return nil
	}

	equity := r.ledger.Snapshot().Equity
	qty := r.sizer.PositionSize(ctx, equity, draft.RiskUnitR, k.Close)
	if qty <= 0 {
		return nil
	}

	r.entrySeq++
	req := domain.OrderRequest{
		Symbol:        r.config.Symbol,
		Side:          side.EntryOrderSide(),
		Type:          domain.OrderTypeMarket,
		Quantity:      qty,
		ClientOrderID: fmt.Sprintf("%s-%d-ENTRY", r.config.RunID, r.entrySeq),
		Tag:           "ENTRY",
	}
	res := r.engine.SubmitOrders(ctx, []domain.OrderRequest{req}, domain.PriceMap{r.config.Symbol: k.Close})
	r.noteRejections(ctx, res.Rejected)
	if err := r.recordFills(ctx, res.Filled, nil); err != nil {
		return err
	}
	if len(res.Filled) == 0 {
		return nil
	}

	fillPrice := res.Filled[0].Price
	plan, err := risk.BuildExitPlan(side, fillPrice, atr, r.config.Risk, sc, label)
	if err != nil {
		plan = draft
	}
	r.plan = plan
	r.initialQty = qty
	r.sizer.RecordEntry(ctx)
	r.result.Entries[label]++

	r.opts.Logger.Info(ctx, "Position opened", map[string]interface{}{
		"side": side, "price": fillPrice, "qty": qty, "stop": plan.Stop,
		"target": plan.PrimaryTarget, "regime": label, "riskUnit": plan.RiskUnitR,
	})
	return nil
}

// recordFills journals fills and the trades they closed. ev labels the
// trades; nil means they closed outside an exit event.
func (r *run) recordFills(ctx context.Context, fills []*domain.Fill, ev *domain.ExitEvent) error {
	for _, f := range fills {
		r.opts.Metrics.ObserveFill(f)
		if r.opts.Journal != nil {
			id, err := r.opts.Journal.SaveFill(ctx, f)
			if err != nil {
				return fmt.Errorf("journal fill %s: %w", f.OrderID, err)
			}
			f.ID = id
		}
		r.result.Fills = append(r.result.Fills, f)
	}

	for _, t := range r.ledger.DrainTrades() {
		trade := t
		trade.RunID = r.config.RunID
		trade.CloseReason = domain.CloseReasonManual
		if ev != nil {
			trade.CloseReason = ev.Reason
		}
		trade.RMultiple = risk.RMultiple(&trade, r.plan)
		r.opts.Metrics.ObserveTrade(&trade)
		if r.opts.Journal != nil {
			id, err := r.opts.Journal.SaveTrade(ctx, &trade)
			if err != nil {
				return fmt.Errorf("journal trade: %w", err)
			}
			trade.ID = id
		}
		r.result.Trades = append(r.result.Trades, &trade)
		r.opts.Logger.Info(ctx, "Position reduced", map[string]interface{}{
			"reason": trade.CloseReason, "exit": trade.ExitPrice, "qty": trade.Quantity, "pnl": trade.PNL, "r": trade.RMultiple,
		})
	}
	return nil
}

func (r *run) noteRejections(ctx context.Context, rejected []domain.Rejection) {
	if len(rejected) == 0 {
		return
	}
	r.result.Rejections += len(rejected)
	r.opts.Metrics.ObserveRejections(len(rejected))
}

func (r *run) finish() *BacktestResult {
	r.result.Final = r.ledger.Snapshot()
	r.result.Metrics = analytics.AnalyzePerformance(r.result.Trades, r.result.Equity, r.config.InitialFunds)
	return r.result
}
