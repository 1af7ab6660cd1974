package optimization

import (
	"context"
	"fmt"
	"math"
	"runtime"
	"sort"

	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/sync/errgroup"

	"positionEngine/internal/domain"
	"positionEngine/internal/metrics"
	"positionEngine/internal/ports"
	"positionEngine/internal/strategy/analytics"
	"positionEngine/internal/strategy/backtesting"
)

// Parameter names a ParameterRange can sweep.
const (
	ParamStopATRMultiple  = "stop_atr_mult"
	ParamTrailATRMultiple = "trail_atr_mult"
	ParamTargetRR         = "target_rr"
	ParamBreakevenR       = "breakeven_r"
	ParamTimeStopBars     = "time_stop_bars"
	ParamCooldownBars     = "cooldown_bars"
	ParamKeltnerMultiple  = "keltner_mult"
	ParamRiskPerTrade     = "risk_per_trade"
)

// ParameterRange defines a range for a parameter to optimize
type ParameterRange struct {
	Name  string
	Min   float64
	Max   float64
	Step  float64
	IsInt bool
}

// OptimizationResult holds the results of one parameter combination
type OptimizationResult struct {
	RunID      string
	Parameters map[string]float64
	Config     backtesting.BacktestConfig
	Metrics    *analytics.PerformanceMetrics
	Score      float64
}

// OptimizerConfig holds configuration for the optimizer
type OptimizerConfig struct {
	ParameterRanges []ParameterRange
	Base            backtesting.BacktestConfig // every combination starts from a copy
	ScoreFunction   func(*analytics.PerformanceMetrics) float64
	MaxWorkers      int                   // default runtime.NumCPU()
	Registerer      prometheus.Registerer // optional, one recorder per run
	Logger          ports.Logger
}

// Optimizer runs a grid search over risk parameters
type Optimizer struct {
	config OptimizerConfig
}

// NewOptimizer creates a new optimizer instance
func NewOptimizer(config OptimizerConfig) (*Optimizer, error) {
	if config.Logger == nil {
		return nil, fmt.Errorf("%w: optimizer needs a logger", ports.ErrConfigurationError)
	}
	for _, r := range config.ParameterRanges {
		if r.Step <= 0 || r.Max < r.Min {
			return nil, fmt.Errorf("%w: bad range for %s", ports.ErrConfigurationError, r.Name)
		}
		if err := applyParam(&backtesting.BacktestConfig{}, r.Name, r.Min); err != nil {
			return nil, err
		}
	}
	if config.ScoreFunction == nil {
		config.ScoreFunction = DefaultScoreFunction
	}
	if config.MaxWorkers <= 0 {
		config.MaxWorkers = runtime.NumCPU()
	}
	return &Optimizer{config: config}, nil
}

// Optimize backtests every parameter combination. Each combination is an
// independent run with its own engine, ledger and plan; runs execute in
// parallel up to MaxWorkers. A failing run is logged and left out. Results
// are sorted by score, best first, ties kept in grid order.
func (o *Optimizer) Optimize(ctx context.Context, strategy ports.Strategy, klines []*domain.Kline) ([]OptimizationResult, error) {
	combinations := o.generateParameterCombinations()
	slots := make([]*OptimizationResult, len(combinations))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(o.config.MaxWorkers)
	for idx, params := range combinations {
		idx, params := idx, params
		g.Go(func() error {
			res, err := o.runOne(gctx, idx, params, strategy, klines)
			if err != nil {
				if gctx.Err() != nil {
					return gctx.Err()
				}
				o.config.Logger.Warn(gctx, "Optimization run failed", map[string]interface{}{"index": idx, "error": err.Error()})
				return nil
			}
			slots[idx] = res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("optimize: %w: %v", ports.ErrContextCanceled, err)
	}

	results := make([]OptimizationResult, 0, len(slots))
	for _, r := range slots {
		if r != nil {
			results = append(results, *r)
		}
	}
	sortResultsByScore(results)
	return results, nil
}

func (o *Optimizer) runOne(ctx context.Context, idx int, params map[string]float64, strategy ports.Strategy, klines []*domain.Kline) (*OptimizationResult, error) {
	cfg := o.config.Base
	cfg.Risk.TargetRMultiples = append([]float64(nil), cfg.Risk.TargetRMultiples...)
	cfg.Risk.TargetFractions = append([]float64(nil), cfg.Risk.TargetFractions...)
	cfg.RunID = fmt.Sprintf("%s-opt-%03d", o.config.Base.RunID, idx)
	for _, r := range o.config.ParameterRanges {
		if err := applyParam(&cfg, r.Name, params[r.Name]); err != nil {
			return nil, err
		}
	}

	opts := backtesting.Options{Logger: o.config.Logger}
	if o.config.Registerer != nil {
		rec, err := metrics.NewRecorder(o.config.Registerer, cfg.RunID)
		if err != nil {
			return nil, err
		}
		opts.Metrics = rec
	}

	result, err := backtesting.Backtest(ctx, strategy, klines, cfg, opts)
	if err != nil {
		return nil, err
	}
	return &OptimizationResult{
		RunID:      cfg.RunID,
		Parameters: params,
		Config:     cfg,
		Metrics:    result.Metrics,
		Score:      o.config.ScoreFunction(result.Metrics),
	}, nil
}

// applyParam writes one swept value into the run configuration.
func applyParam(cfg *backtesting.BacktestConfig, name string, value float64) error {
	switch name {
	case ParamStopATRMultiple:
		cfg.Risk.StopATRMultiple = value
	case ParamTrailATRMultiple:
		cfg.Risk.TrailATRMultiple = value
	case ParamTargetRR:
		cfg.Risk.TargetRR = value
	case ParamBreakevenR:
		cfg.Risk.BreakevenR = value
	case ParamTimeStopBars:
		cfg.Risk.TimeStopBars = int(math.Round(value))
	case ParamCooldownBars:
		cfg.Risk.CooldownBars = int(math.Round(value))
	case ParamKeltnerMultiple:
		cfg.Risk.KeltnerMultiple = value
	case ParamRiskPerTrade:
		cfg.Sizing.RiskPerTrade = value
	default:
		return fmt.Errorf("%w: unknown optimization parameter %q", ports.ErrConfigurationError, name)
	}
	return nil
}

// generateParameterCombinations generates all possible parameter combinations
func (o *Optimizer) generateParameterCombinations() []map[string]float64 {
	var combinations []map[string]float64
	var currentCombination map[string]float64

	var generate func(int)
	generate = func(paramIndex int) {
		if paramIndex == len(o.config.ParameterRanges) {
			combination := make(map[string]float64, len(currentCombination))
			for k, v := range currentCombination {
				combination[k] = v
			}
			combinations = append(combinations, combination)
			return
		}

		param := o.config.ParameterRanges[paramIndex]
		// step by index so float drift cannot add or drop a grid point
		steps := int(math.Floor((param.Max-param.Min)/param.Step + 1e-9))
		for s := 0; s <= steps; s++ {
			value := param.Min + float64(s)*param.Step
			if param.IsInt {
				value = math.Round(value)
			}
			currentCombination[param.Name] = value
			generate(paramIndex + 1)
		}
	}

	currentCombination = make(map[string]float64)
	generate(0)
	return combinations
}

// sortResultsByScore sorts optimization results by score in descending order
func sortResultsByScore(results []OptimizationResult) {
	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Score > results[j].Score
	})
}

// DefaultScoreFunction combines several metrics into a single score
func DefaultScoreFunction(metrics *analytics.PerformanceMetrics) float64 {
	score := 0.0
	score += metrics.WinRate * 0.3
	score += metrics.ProfitFactor * 0.2
	score += (1 - metrics.MaxDrawdown) * 0.2
	score += metrics.ReturnOnInvestment * 0.2
	score += metrics.RiskRewardRatio * 0.1
	return score
}
