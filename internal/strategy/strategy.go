package strategy

import (
	"context"
	"fmt"

	"positionEngine/internal/domain"
	"positionEngine/internal/ports"
	"positionEngine/internal/strategy/indicators"
)

// Config holds parameters for the trend entry strategy.
type Config struct {
	ShortTermMAPeriod int     // e.g., 20
	LongTermMAPeriod  int     // e.g., 50
	EMAPeriod         int     // e.g., 20
	RSIPeriod         int     // e.g., 14
	RSIOverbought     float64 // e.g., 70.0, longs are skipped above it
	RSIOversold       float64 // e.g., 30.0, shorts are skipped below it
	AllowShort        bool
}

// Strategy enters with the trend: price above both SMAs and the EMA with the
// short SMA above the long one, and RSI not overbought. Shorts mirror it.
// Exits belong to the exit plan.
type Strategy struct {
	cfg     Config
	logger  ports.Logger
	shortMA *indicators.MovingAverage
	longMA  *indicators.MovingAverage
	ema     *indicators.MovingAverage
	rsi     *indicators.RSI
}

// New creates a new Strategy instance.
func New(cfg Config, logger ports.Logger) (*Strategy, error) {
	if logger == nil {
		return nil, fmt.Errorf("logger is required for strategy")
	}
	if cfg.ShortTermMAPeriod <= 0 || cfg.LongTermMAPeriod <= 0 || cfg.EMAPeriod <= 0 || cfg.RSIPeriod <= 0 {
		return nil, fmt.Errorf("strategy periods must be positive")
	}
	if cfg.ShortTermMAPeriod >= cfg.LongTermMAPeriod {
		return nil, fmt.Errorf("short term MA period must be less than long term MA period")
	}
	return &Strategy{
		cfg:    cfg,
		logger: logger,
		shortMA: indicators.NewMovingAverage(indicators.MovingAverageConfig{
			IndicatorConfig: indicators.IndicatorConfig{Period: cfg.ShortTermMAPeriod}, Type: indicators.SimpleMovingAverage,
		}),
		longMA: indicators.NewMovingAverage(indicators.MovingAverageConfig{
			IndicatorConfig: indicators.IndicatorConfig{Period: cfg.LongTermMAPeriod}, Type: indicators.SimpleMovingAverage,
		}),
		ema: indicators.NewMovingAverage(indicators.MovingAverageConfig{
			IndicatorConfig: indicators.IndicatorConfig{Period: cfg.EMAPeriod}, Type: indicators.ExponentialMovingAverage,
		}),
		rsi: indicators.NewRSI(indicators.RSIConfig{
			IndicatorConfig: indicators.IndicatorConfig{Period: cfg.RSIPeriod},
			Overbought:      cfg.RSIOverbought,
			Oversold:        cfg.RSIOversold,
		}),
	}, nil
}

// Name returns the strategy name used in run labels.
func (s *Strategy) Name() string {
	return "ma_rsi_trend"
}

// RequiredDataPoints returns the minimum number of klines needed for the strategy calculations.
// It's the max of all indicator periods + 1 (for RSI lookback).
func (s *Strategy) RequiredDataPoints() int {
	maxPeriod := s.cfg.LongTermMAPeriod
	if s.cfg.EMAPeriod > maxPeriod {
		maxPeriod = s.cfg.EMAPeriod
	}
	if s.cfg.RSIPeriod > maxPeriod {
		maxPeriod = s.cfg.RSIPeriod
	}
	return maxPeriod + 1
}

type snapshot struct {
	shortMA, longMA, ema, rsi float64
}

func (s *Strategy) evaluate(ctx context.Context, klines []*domain.Kline) (snapshot, error) {
	var snap snapshot
	var err error
	if snap.shortMA, err = s.shortMA.Calculate(ctx, klines); err != nil {
		return snap, fmt.Errorf("short term MA: %w", err)
	}
	if snap.longMA, err = s.longMA.Calculate(ctx, klines); err != nil {
		return snap, fmt.Errorf("long term MA: %w", err)
	}
	if snap.ema, err = s.ema.Calculate(ctx, klines); err != nil {
		return snap, fmt.Errorf("EMA: %w", err)
	}
	if snap.rsi, err = s.rsi.Calculate(ctx, klines); err != nil {
		return snap, fmt.Errorf("RSI: %w", err)
	}
	return snap, nil
}

// EntrySignal returns the side to open, if any.
func (s *Strategy) EntrySignal(ctx context.Context, klines []*domain.Kline, currentPrice float64) (domain.Side, bool) {
	requiredPoints := s.RequiredDataPoints()
	if len(klines) < requiredPoints {
		s.logger.Debug(ctx, "Not enough kline data for strategy evaluation",
			map[string]interface{}{"available": len(klines), "required": requiredPoints})
		return "", false
	}

	snap, err := s.evaluate(ctx, klines)
	if err != nil {
		s.logger.Error(ctx, err, "Failed to calculate indicators")
		return "", false
	}

	fields := map[string]interface{}{
		"currentPrice": currentPrice,
		"shortMA":      snap.shortMA,
		"longMA":       snap.longMA,
		"ema":          snap.ema,
		"rsi":          snap.rsi,
	}

	isTrendingUp := currentPrice > snap.shortMA && currentPrice > snap.longMA && snap.shortMA > snap.longMA
	if isTrendingUp && !s.rsi.IsOverbought(snap.rsi) && currentPrice > snap.ema {
		s.logger.Debug(ctx, "Long entry conditions met", fields)
		return domain.Long, true
	}

	isTrendingDown := currentPrice < snap.shortMA && currentPrice < snap.longMA && snap.shortMA < snap.longMA
	if s.cfg.AllowShort && isTrendingDown && !s.rsi.IsOversold(snap.rsi) && currentPrice < snap.ema {
		s.logger.Debug(ctx, "Short entry conditions met", fields)
		return domain.Short, true
	}

	return "", false
}
