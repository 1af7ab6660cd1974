package strategies

import (
	"context"
	"fmt"

	"positionEngine/internal/domain"
	"positionEngine/internal/ports"
	"positionEngine/internal/strategy/indicators"
)

// MACrossoverConfig holds configuration for the MA crossover entry strategy
type MACrossoverConfig struct {
	FastMAPeriod  int     // Fast EMA period (e.g., 8)
	SlowMAPeriod  int     // Slow EMA period (e.g., 21)
	RSIPeriod     int     // e.g., 14
	RSIOverbought float64 // longs are skipped at or above it
	RSIOversold   float64 // shorts are skipped at or below it

	// Trend strength filter, off when MinADX is 0
	ADXPeriod int
	MinADX    float64

	AllowShort bool
}

// MACrossover enters on the bar where the fast EMA crosses the slow EMA.
// Exits belong to the exit plan.
type MACrossover struct {
	config MACrossoverConfig
	logger ports.Logger
	rsi    *indicators.RSI
}

// NewMACrossover creates a new MA crossover strategy instance
func NewMACrossover(config MACrossoverConfig, logger ports.Logger) (*MACrossover, error) {
	if logger == nil {
		return nil, fmt.Errorf("logger is required for strategy")
	}
	if config.FastMAPeriod <= 0 || config.SlowMAPeriod <= 0 || config.RSIPeriod <= 0 {
		return nil, fmt.Errorf("strategy periods must be positive")
	}
	if config.FastMAPeriod >= config.SlowMAPeriod {
		return nil, fmt.Errorf("fast MA period must be less than slow MA period")
	}
	if config.RSIOverbought <= config.RSIOversold {
		return nil, fmt.Errorf("RSI overbought must be above oversold")
	}
	if config.MinADX > 0 && config.ADXPeriod <= 0 {
		config.ADXPeriod = 14
	}
	return &MACrossover{
		config: config,
		logger: logger,
		rsi: indicators.NewRSI(indicators.RSIConfig{
			IndicatorConfig: indicators.IndicatorConfig{Period: config.RSIPeriod},
			Overbought:      config.RSIOverbought,
			Oversold:        config.RSIOversold,
		}),
	}, nil
}

// Name returns the strategy name
func (m *MACrossover) Name() string {
	return "ma_crossover"
}

// RequiredDataPoints returns the minimum number of klines needed: one bar
// before the crossover bar on top of the slowest warm-up.
func (m *MACrossover) RequiredDataPoints() int {
	required := m.config.SlowMAPeriod + 1
	if m.config.RSIPeriod+1 > required {
		required = m.config.RSIPeriod + 1
	}
	if m.config.MinADX > 0 && 2*m.config.ADXPeriod > required {
		required = 2 * m.config.ADXPeriod
	}
	return required
}

// EntrySignal reports a crossover on the latest bar.
func (m *MACrossover) EntrySignal(ctx context.Context, klines []*domain.Kline, currentPrice float64) (domain.Side, bool) {
	if len(klines) < m.RequiredDataPoints() {
		return "", false
	}
	closes := indicators.Closes(klines)
	fast := indicators.EMASeries(closes, m.config.FastMAPeriod)
	slow := indicators.EMASeries(closes, m.config.SlowMAPeriod)
	rsiSeries := indicators.RSISeries(closes, m.config.RSIPeriod)
	n := len(closes)
	rsi := rsiSeries[n-1]

	crossedUp := fast[n-2] <= slow[n-2] && fast[n-1] > slow[n-1]
	crossedDown := fast[n-2] >= slow[n-2] && fast[n-1] < slow[n-1]
	if !crossedUp && !crossedDown {
		return "", false
	}

	fields := map[string]interface{}{"price": currentPrice, "fast": fast[n-1], "slow": slow[n-1], "rsi": rsi}
	if m.config.MinADX > 0 {
		adx := indicators.ADXSeries(klines, m.config.ADXPeriod)[n-1]
		fields["adx"] = adx
		if adx < m.config.MinADX {
			m.logger.Debug(ctx, "Crossover skipped on weak trend", fields)
			return "", false
		}
	}

	if crossedUp && !m.rsi.IsOverbought(rsi) {
		m.logger.Debug(ctx, "Bullish crossover", fields)
		return domain.Long, true
	}
	if crossedDown && m.config.AllowShort && !m.rsi.IsOversold(rsi) {
		m.logger.Debug(ctx, "Bearish crossover", fields)
		return domain.Short, true
	}
	return "", false
}

var _ ports.Strategy = (*MACrossover)(nil)
