package backtesting

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"positionEngine/internal/adapters/logger"
	"positionEngine/internal/domain"
	"positionEngine/internal/metrics"
	"positionEngine/internal/ports"
	"positionEngine/internal/risk"
)

// MockStrategy signals on the bars whose history length is listed.
type MockStrategy struct {
	required int
	signals  map[int]domain.Side
}

func (m *MockStrategy) RequiredDataPoints() int {
	return m.required
}

func (m *MockStrategy) Name() string {
	return "mock_strategy"
}

func (m *MockStrategy) EntrySignal(ctx context.Context, klines []*domain.Kline, currentPrice float64) (domain.Side, bool) {
	side, ok := m.signals[len(klines)]
	return side, ok
}

type mockJournal struct {
	fills  []*domain.Fill
	equity []*domain.EquitySnapshot
	trades []*domain.Trade
	err    error
}

func (m *mockJournal) SaveFill(ctx context.Context, fill *domain.Fill) (int64, error) {
	if m.err != nil {
		return 0, m.err
	}
	m.fills = append(m.fills, fill)
	return int64(len(m.fills)), nil
}

func (m *mockJournal) SaveEquity(ctx context.Context, snap *domain.EquitySnapshot) (int64, error) {
	if m.err != nil {
		return 0, m.err
	}
	m.equity = append(m.equity, snap)
	return int64(len(m.equity)), nil
}

func (m *mockJournal) SaveTrade(ctx context.Context, trade *domain.Trade) (int64, error) {
	if m.err != nil {
		return 0, m.err
	}
	m.trades = append(m.trades, trade)
	return int64(len(m.trades)), nil
}

var baseTime = time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)

func bar(i int, open, high, low, close float64) *domain.Kline {
	return &domain.Kline{
		OpenTime:  baseTime.Add(time.Duration(i) * time.Hour),
		CloseTime: baseTime.Add(time.Duration(i+1)*time.Hour - time.Millisecond),
		Symbol:    "BTCUSDT",
		Interval:  "1h",
		Open:      open,
		High:      high,
		Low:       low,
		Close:     close,
	}
}

// flatKlines returns n bars closing at 100 with a true range of 2, so ATR(14) is 2.
func flatKlines(n int) []*domain.Kline {
	out := make([]*domain.Kline, n)
	for i := range out {
		out[i] = bar(i, 100, 101, 99, 100)
	}
	return out
}

func appendBars(klines []*domain.Kline, ohlc ...[4]float64) []*domain.Kline {
	for _, b := range ohlc {
		klines = append(klines, bar(len(klines), b[0], b[1], b[2], b[3]))
	}
	return klines
}

// testConfig gives a 2-ATR fixed stop (96 on a 100 entry), targets at 1R and
// 2R closing half each, no breakeven and no fees.
func testConfig() BacktestConfig {
	return BacktestConfig{
		RunID:        "test",
		Symbol:       "BTCUSDT",
		InitialFunds: 10000,
		Risk: risk.Params{
			ExitStyle:        risk.ExitStyleFixed,
			StopATRMultiple:  2,
			TargetRMultiples: []float64{1, 2},
			TargetFractions:  []float64{0.5, 0.5},
			BreakevenR:       -1,
		},
		Sizing:        risk.RiskConfig{RiskPerTrade: 0.01},
		DisableRegime: true,
	}
}

func longAt(lengths ...int) *MockStrategy {
	s := &MockStrategy{required: 20, signals: make(map[int]domain.Side)}
	for _, n := range lengths {
		s.signals[n] = domain.Long
	}
	return s
}

func assertEquityIdentity(t *testing.T, result *BacktestResult, initial float64) {
	t.Helper()
	for _, snap := range result.Equity {
		assert.InDelta(t, initial+snap.RealizedPnl+snap.UnrealizedPnl, snap.Equity, 1e-6, "equity at %s", snap.Time)
	}
}

func TestBacktest_LadderTargets(t *testing.T) {
	klines := appendBars(flatKlines(20),
		[4]float64{100, 105, 101, 104},
		[4]float64{104, 109, 103, 108},
		[4]float64{108, 109, 107, 108},
	)
	rec, err := metrics.NewRecorder(prometheus.NewRegistry(), "test")
	require.NoError(t, err)

	result, err := Backtest(context.Background(), longAt(20), klines, testConfig(), Options{Logger: logger.Nop{}, Metrics: rec})
	require.NoError(t, err)

	require.Len(t, result.Trades, 2)
	assert.Len(t, result.Fills, 3)
	assert.Equal(t, 1, result.Entries[""])

	first, second := result.Trades[0], result.Trades[1]
	assert.Equal(t, domain.CloseReasonTarget, first.CloseReason)
	assert.InDelta(t, 104, first.ExitPrice, 1e-9)
	assert.InDelta(t, 12.5, first.Quantity, 1e-9)
	assert.InDelta(t, 50, first.PNL, 1e-9)
	assert.InDelta(t, 1, first.RMultiple, 1e-9)

	assert.Equal(t, domain.CloseReasonTarget, second.CloseReason)
	assert.InDelta(t, 108, second.ExitPrice, 1e-9)
	assert.InDelta(t, 100, second.PNL, 1e-9)
	assert.InDelta(t, 2, second.RMultiple, 1e-9)

	assert.True(t, result.Fills[1].Maker, "targets rest as limits")
	assert.Equal(t, "test", first.RunID)

	assert.InDelta(t, 10150, result.Final.Cash, 1e-9)
	assert.InDelta(t, 10150, result.Final.Equity, 1e-9)
	assert.Empty(t, result.Final.Positions)
	assert.Len(t, result.Equity, len(klines))
	assertEquityIdentity(t, result, 10000)

	require.NotNil(t, result.Metrics)
	assert.Equal(t, 2, result.Metrics.TotalTrades)
	assert.Equal(t, 1.0, result.Metrics.WinRate)
}

func TestBacktest_LadderClosesLargePosition(t *testing.T) {
	klines := appendBars(flatKlines(20),
		[4]float64{100, 105, 101, 104},
		[4]float64{104, 109, 103, 108},
		[4]float64{108, 113, 107, 112},
		[4]float64{112, 113, 111, 112},
		[4]float64{112, 113, 111, 112},
	)
	config := testConfig()
	config.InitialFunds = 395061728.4 // sizes to roughly 987654.321 units
	config.Risk.TargetRMultiples = []float64{1, 2, 3}
	config.Risk.TargetFractions = []float64{0.35, 0.35, 0.30}

	result, err := Backtest(context.Background(), longAt(20), klines, config, Options{Logger: logger.Nop{}})
	require.NoError(t, err)

	require.Len(t, result.Trades, 3, "the last rung closes the remainder")
	total := 0.0
	for _, trade := range result.Trades {
		assert.Equal(t, domain.CloseReasonTarget, trade.CloseReason)
		total += trade.Quantity
	}
	assert.InDelta(t, result.Fills[0].Quantity, total, 1e-6)
	assert.Empty(t, result.Final.Positions)
	final := result.Equity[len(result.Equity)-1]
	assert.InDelta(t, config.InitialFunds+final.RealizedPnl, final.Equity, 1e-3)
}

func TestBacktest_KeltnerMultipleMovesTrailingStop(t *testing.T) {
	klines := appendBars(flatKlines(20),
		[4]float64{100, 103, 100, 102},
		[4]float64{102, 105, 102, 104},
		[4]float64{104, 106, 103, 105},
		[4]float64{105, 105, 90, 92},
		[4]float64{92, 93, 91, 92},
	)
	stopFor := func(mult float64) float64 {
		config := testConfig()
		config.Risk.ExitStyle = risk.ExitStyleKeltner
		config.Risk.TrailATRMultiple = 0.1
		config.Risk.KeltnerMultiple = mult
		config.Risk.TargetRMultiples = []float64{10}
		config.Risk.TargetFractions = []float64{1}

		result, err := Backtest(context.Background(), longAt(20), klines, config, Options{Logger: logger.Nop{}})
		require.NoError(t, err)
		require.Len(t, result.Trades, 1)
		require.Equal(t, domain.CloseReasonStopLoss, result.Trades[0].CloseReason)
		return result.Trades[0].ExitPrice
	}

	narrow, wide := stopFor(1), stopFor(3)
	assert.InDelta(t, 96, wide, 1e-9, "a wide channel never lifts the initial stop")
	assert.Greater(t, narrow, 98.0, "a narrow channel trails the stop above entry minus 2")
}

func TestBacktest_StopAndCooldown(t *testing.T) {
	klines := appendBars(flatKlines(20),
		[4]float64{100, 100, 95, 97},
		[4]float64{97, 101, 97, 100},
		[4]float64{100, 101, 99, 100},
		[4]float64{100, 101, 99, 100},
		[4]float64{100, 101, 99, 100},
		[4]float64{100, 101, 99, 100},
	)
	config := testConfig()
	config.Risk.CooldownBars = 2

	result, err := Backtest(context.Background(), longAt(20, 21, 22, 23, 24), klines, config, Options{Logger: logger.Nop{}})
	require.NoError(t, err)

	require.Len(t, result.Trades, 2)
	stop := result.Trades[0]
	assert.Equal(t, domain.CloseReasonStopLoss, stop.CloseReason)
	assert.InDelta(t, 96, stop.ExitPrice, 1e-9)
	assert.InDelta(t, -100, stop.PNL, 1e-9)
	assert.InDelta(t, -1, stop.RMultiple, 1e-9)

	// stopped out on bar 20, bars 21 and 22 cool down, the signal on bar 23 is taken
	assert.Equal(t, 2, result.Entries[""])
	assert.Equal(t, klines[23].Timestamp(), result.Trades[1].EntryTime)
	assert.Equal(t, domain.CloseReasonEndOfData, result.Trades[1].CloseReason)
	assertEquityIdentity(t, result, 10000)
}

func TestBacktest_ShortClosedAtEndOfData(t *testing.T) {
	klines := appendBars(flatKlines(20),
		[4]float64{100, 101, 99, 100},
		[4]float64{100, 101, 99, 100},
	)
	config := testConfig()
	config.TakerFee = 0.001
	strategy := &MockStrategy{required: 20, signals: map[int]domain.Side{20: domain.Short}}

	result, err := Backtest(context.Background(), strategy, klines, config, Options{Logger: logger.Nop{}})
	require.NoError(t, err)

	require.Len(t, result.Trades, 1)
	trade := result.Trades[0]
	assert.Equal(t, domain.Short, trade.Side)
	assert.Equal(t, domain.CloseReasonEndOfData, trade.CloseReason)
	assert.InDelta(t, 25, trade.Quantity, 1e-9)
	assert.InDelta(t, -5, trade.PNL, 1e-9)
	assert.InDelta(t, 5, result.Final.Fees, 1e-9)
	assert.InDelta(t, 9995, result.Final.Equity, 1e-9)
	assertEquityIdentity(t, result, 10000)
}

func TestBacktest_RegimeLabelsEntries(t *testing.T) {
	klines := appendBars(flatKlines(20), [4]float64{100, 101, 99, 100})
	config := testConfig()
	config.DisableRegime = false

	result, err := Backtest(context.Background(), longAt(20), klines, config, Options{Logger: logger.Nop{}})
	require.NoError(t, err)

	// ADX is not warmed up yet, which classifies as RANGE
	assert.Equal(t, 1, result.Entries[domain.RegimeRange])
	require.Len(t, result.Trades, 1)
	assert.Equal(t, domain.CloseReasonEndOfData, result.Trades[0].CloseReason)
}

func TestBacktest_Deterministic(t *testing.T) {
	klines := appendBars(flatKlines(20),
		[4]float64{100, 105, 101, 104},
		[4]float64{104, 104, 95, 96},
		[4]float64{96, 101, 95, 100},
		[4]float64{100, 101, 99, 100},
	)
	config := testConfig()
	config.TakerFee = 0.0004
	config.MakerFee = 0.0002
	config.Slippage = 0.0005
	strategy := longAt(20, 23)

	a, err := Backtest(context.Background(), strategy, klines, config, Options{Logger: logger.Nop{}})
	require.NoError(t, err)
	b, err := Backtest(context.Background(), strategy, klines, config, Options{Logger: logger.Nop{}})
	require.NoError(t, err)

	assert.Equal(t, a.Fills, b.Fills)
	assert.Equal(t, a.Trades, b.Trades)
	assert.Equal(t, a.Equity, b.Equity)
	assertEquityIdentity(t, a, 10000)
}

func TestBacktest_Journal(t *testing.T) {
	klines := appendBars(flatKlines(20),
		[4]float64{100, 105, 101, 104},
		[4]float64{104, 109, 103, 108},
	)

	t.Run("records everything", func(t *testing.T) {
		journal := &mockJournal{}
		result, err := Backtest(context.Background(), longAt(20), klines, testConfig(), Options{Logger: logger.Nop{}, Journal: journal})
		require.NoError(t, err)

		assert.Len(t, journal.fills, len(result.Fills))
		assert.Len(t, journal.trades, 2)
		assert.Len(t, journal.equity, len(klines))
		assert.Equal(t, int64(2), result.Trades[1].ID)
		assert.Equal(t, "test", journal.equity[0].RunID)
	})

	t.Run("journal failure aborts", func(t *testing.T) {
		journal := &mockJournal{err: ports.ErrQueryFailed}
		_, err := Backtest(context.Background(), longAt(20), klines, testConfig(), Options{Logger: logger.Nop{}, Journal: journal})
		assert.ErrorIs(t, err, ports.ErrQueryFailed)
	})
}

func TestBacktest_ContextCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := Backtest(ctx, longAt(20), flatKlines(25), testConfig(), Options{Logger: logger.Nop{}})
	assert.True(t, errors.Is(err, ports.ErrContextCanceled))
}

func TestBacktest_InvalidConfig(t *testing.T) {
	klines := flatKlines(25)

	tests := []struct {
		name   string
		mutate func(*BacktestConfig, *Options)
		klines []*domain.Kline
	}{
		{name: "not enough data", klines: flatKlines(5), mutate: func(*BacktestConfig, *Options) {}},
		{name: "missing symbol", klines: klines, mutate: func(c *BacktestConfig, _ *Options) { c.Symbol = "" }},
		{name: "no funds", klines: klines, mutate: func(c *BacktestConfig, _ *Options) { c.InitialFunds = 0 }},
		{name: "no logger", klines: klines, mutate: func(_ *BacktestConfig, o *Options) { o.Logger = nil }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			config := testConfig()
			opts := Options{Logger: logger.Nop{}}
			tt.mutate(&config, &opts)

			result, err := Backtest(context.Background(), longAt(20), tt.klines, config, opts)
			assert.Error(t, err)
			assert.Nil(t, result)
		})
	}
}
