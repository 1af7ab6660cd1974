package app

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/google/uuid"

	"positionEngine/config"
	"positionEngine/internal/domain"
	"positionEngine/internal/metrics"
	"positionEngine/internal/ports"
	"positionEngine/internal/risk"
	"positionEngine/internal/strategy/backtesting"
	"positionEngine/internal/utils"
)

// ReplayService replays historical bars through the position engine and
// reports the outcome.
type ReplayService struct {
	cfg      *config.Config
	params   risk.Params
	logger   ports.Logger
	strategy ports.Strategy
	journal  ports.Journal     // optional
	metrics  *metrics.Recorder // optional
}

// NewReplayService creates a new application service instance.
func NewReplayService(
	cfg *config.Config,
	params risk.Params,
	logger ports.Logger,
	strat ports.Strategy,
	journal ports.Journal,
	recorder *metrics.Recorder,
) (*ReplayService, error) {
	if cfg == nil || logger == nil || strat == nil {
		return nil, fmt.Errorf("%w: missing required dependencies for ReplayService", ports.ErrConfigurationError)
	}
	if cfg.Symbol == "" {
		return nil, fmt.Errorf("%w: symbol must be set", ports.ErrConfigurationError)
	}
	return &ReplayService{
		cfg:      cfg,
		params:   params,
		logger:   logger,
		strategy: strat,
		journal:  journal,
		metrics:  recorder,
	}, nil
}

// NewRunID returns a fresh run identifier. Everything inside a run is derived
// from it, so replaying with the same id reproduces the same order ids.
func NewRunID() string {
	return uuid.NewString()
}

// BacktestConfig assembles the simulation settings for runID.
func (s *ReplayService) BacktestConfig(runID string) backtesting.BacktestConfig {
	return backtesting.BacktestConfig{
		RunID:        runID,
		Symbol:       s.cfg.Symbol,
		InitialFunds: s.cfg.InitialFunds,
		TakerFee:     s.cfg.TakerFee,
		MakerFee:     s.cfg.MakerFee,
		Slippage:     s.cfg.Slippage,
		Risk:         s.params,
		Sizing:       s.cfg.RiskConfig(),
	}
}

// RunFromCSV loads the configured klines file and replays it.
func (s *ReplayService) RunFromCSV(ctx context.Context, runID string) (*backtesting.BacktestResult, error) {
	if s.cfg.KlinesCSV == "" {
		return nil, fmt.Errorf("%w: KLINES_CSV must be set", ports.ErrConfigurationError)
	}
	klines, err := utils.ReadKlinesFromCSV(s.cfg.KlinesCSV)
	if err != nil {
		s.logger.Error(ctx, err, "Failed to load klines", map[string]interface{}{"path": s.cfg.KlinesCSV})
		return nil, fmt.Errorf("load klines: %w", err)
	}
	s.logger.Info(ctx, "Loaded klines", map[string]interface{}{"path": s.cfg.KlinesCSV, "count": len(klines)})
	return s.Run(ctx, runID, klines)
}

// Run replays klines as one simulation run. SIGINT/SIGTERM cancel the run.
func (s *ReplayService) Run(ctx context.Context, runID string, klines []*domain.Kline) (*backtesting.BacktestResult, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)
	go func() {
		select {
		case sig := <-sigCh:
			s.logger.Info(ctx, "Received shutdown signal", map[string]interface{}{"signal": sig.String()})
			cancel()
		case <-ctx.Done():
		}
	}()

	s.logger.Info(ctx, "Starting replay", map[string]interface{}{
		"runID": runID, "symbol": s.cfg.Symbol, "bars": len(klines), "strategy": s.strategy.Name(),
		"exitStyle": s.params.ExitStyle,
	})

	result, err := backtesting.Backtest(ctx, s.strategy, klines, s.BacktestConfig(runID), backtesting.Options{
		Logger:  s.logger,
		Journal: s.journal,
		Metrics: s.metrics,
	})
	if err != nil {
		s.logger.Error(ctx, err, "Replay failed", map[string]interface{}{"runID": runID})
		return nil, err
	}
	s.logSummary(ctx, result)
	return result, nil
}

func (s *ReplayService) logSummary(ctx context.Context, result *backtesting.BacktestResult) {
	m := result.Metrics
	fields := map[string]interface{}{
		"runID":       result.RunID,
		"trades":      m.TotalTrades,
		"winRate":     m.WinRate,
		"totalProfit": m.TotalProfit,
		"totalFees":   m.TotalFees,
		"averageR":    m.AverageR,
		"maxDrawdown": m.MaxDrawdown,
		"equity":      result.Final.Equity,
		"rejections":  result.Rejections,
		"planErrors":  result.PlanErrors,
	}
	for _, r := range []domain.Regime{domain.RegimeTrend, domain.RegimeRange, domain.RegimeHighVol, domain.RegimeLowVol} {
		if n := result.Entries[r]; n > 0 {
			fields["entries"+string(r)] = n
		}
	}
	s.logger.Info(ctx, "Replay finished", fields)
}
