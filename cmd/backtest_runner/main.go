package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"positionEngine/config"
	"positionEngine/internal/adapters/logger"
	"positionEngine/internal/adapters/sqlite"
	"positionEngine/internal/app"
	"positionEngine/internal/domain"
	"positionEngine/internal/metrics"
	"positionEngine/internal/ports"
	"positionEngine/internal/risk"
	"positionEngine/internal/strategy"
	"positionEngine/internal/strategy/optimization"
	"positionEngine/internal/strategy/strategies"
	"positionEngine/internal/utils"
)

func main() {
	csvPath := flag.String("csv", "", "klines CSV (overrides KLINES_CSV)")
	profile := flag.String("profile", "", "YAML risk profile (overrides RISK_PROFILE)")
	runID := flag.String("run-id", "", "run id, random when empty")
	optimize := flag.Bool("optimize", false, "grid search stop and target multiples instead of a single run")
	workers := flag.Int("workers", 0, "parallel optimizer runs, 0 = one per CPU")
	metricsAddr := flag.String("metrics-addr", "", "serve Prometheus metrics on this address (overrides METRICS_ADDR)")
	tradesOut := flag.String("trades-out", "", "write closed trades to this CSV")
	flag.Parse()

	// 1. Load Configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("FATAL: Failed to load configuration: %v", err)
	}
	if *csvPath != "" {
		cfg.KlinesCSV = *csvPath
	}
	if *profile != "" {
		cfg.RiskProfilePath = *profile
	}
	if *metricsAddr != "" {
		cfg.MetricsAddr = *metricsAddr
	}

	// 2. Initialize Logger
	appLogger, flush, err := logger.New(cfg.LogFormat, cfg.LogLevel)
	if err != nil {
		log.Fatalf("FATAL: Failed to initialize logger: %v", err)
	}
	defer flush()
	ctx := context.Background()

	params, err := config.LoadRiskParams(cfg.RiskProfilePath)
	if err != nil {
		appLogger.Error(ctx, err, "Failed to load risk profile")
		log.Fatalf("Failed to load risk profile: %v", err)
	}

	// 3. Strategy
	strat, err := newStrategy(cfg, appLogger)
	if err != nil {
		appLogger.Error(ctx, err, "Failed to create strategy")
		log.Fatalf("Failed to create strategy: %v", err)
	}

	// 4. Metrics
	registry := prometheus.NewRegistry()
	if cfg.MetricsAddr != "" {
		srv := &http.Server{Addr: cfg.MetricsAddr, Handler: promhttp.HandlerFor(registry, promhttp.HandlerOpts{}), ReadHeaderTimeout: 5 * time.Second}
		go func() {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				appLogger.Error(ctx, err, "Metrics server stopped")
			}
		}()
		defer srv.Shutdown(context.Background())
		appLogger.Info(ctx, "Serving metrics", map[string]interface{}{"addr": cfg.MetricsAddr})
	}

	id := *runID
	if id == "" {
		id = app.NewRunID()
	}

	if *optimize {
		runOptimization(ctx, cfg, params, appLogger, strat, registry, id, *workers)
		return
	}

	// 5. Journal
	var journal ports.Journal
	if cfg.DBPath != "" {
		repo, err := sqlite.NewRepository(sqlite.Config{DBPath: cfg.DBPath, Logger: appLogger})
		if err != nil {
			log.Fatalf("Failed to open journal: %v", err)
		}
		defer repo.Close()
		journal = repo
	}

	var recorder *metrics.Recorder
	if cfg.MetricsAddr != "" {
		if recorder, err = metrics.NewRecorder(registry, id); err != nil {
			log.Fatalf("Failed to register metrics: %v", err)
		}
	}

	svc, err := app.NewReplayService(cfg, params, appLogger, strat, journal, recorder)
	if err != nil {
		log.Fatalf("Failed to create replay service: %v", err)
	}
	result, err := svc.RunFromCSV(ctx, id)
	if err != nil {
		log.Fatalf("Replay failed: %v", err)
	}

	m := result.Metrics
	fmt.Printf("run %s: %d trades, win rate %.1f%%, PnL %.2f, fees %.2f, avg R %.2f, max DD %.2f%%, final equity %.2f\n",
		result.RunID, m.TotalTrades, m.WinRate*100, m.TotalProfit, m.TotalFees, m.AverageR, m.MaxDrawdown*100, result.Final.Equity)
	for _, reason := range []domain.CloseReason{domain.CloseReasonTarget, domain.CloseReasonTakeProfit, domain.CloseReasonStopLoss,
		domain.CloseReasonTimeStop, domain.CloseReasonEndOfData} {
		if n := m.ExitReasons[reason]; n > 0 {
			fmt.Printf("  %-12s %d\n", reason, n)
		}
	}

	if *tradesOut != "" {
		if err := utils.WriteTradesToCSV(result.Trades, *tradesOut); err != nil {
			appLogger.Error(ctx, err, "Error writing trades CSV")
		} else {
			appLogger.Info(ctx, "Trades saved to", map[string]interface{}{"filename": *tradesOut})
		}
	}
}

func runOptimization(ctx context.Context, cfg *config.Config, params risk.Params, appLogger ports.Logger, strat ports.Strategy, registry prometheus.Registerer, id string, workers int) {
	klines, err := utils.ReadKlinesFromCSV(cfg.KlinesCSV)
	if err != nil {
		log.Fatalf("Failed to load klines: %v", err)
	}
	// the base config is the single-run config under a grid run id
	svc, err := app.NewReplayService(cfg, params, appLogger, strat, nil, nil)
	if err != nil {
		log.Fatalf("Failed to create replay service: %v", err)
	}
	optimizerConfig := optimization.OptimizerConfig{
		ParameterRanges: []optimization.ParameterRange{
			{Name: optimization.ParamStopATRMultiple, Min: 1.5, Max: 3.0, Step: 0.5},
			{Name: optimization.ParamTargetRR, Min: 1.5, Max: 3.0, Step: 0.5},
			{Name: optimization.ParamTrailATRMultiple, Min: 2.0, Max: 4.0, Step: 1.0},
		},
		Base:       svc.BacktestConfig(id),
		MaxWorkers: workers,
		Logger:     appLogger,
	}
	if cfg.MetricsAddr != "" {
		optimizerConfig.Registerer = registry
	}
	optimizer, err := optimization.NewOptimizer(optimizerConfig)
	if err != nil {
		log.Fatalf("Failed to create optimizer: %v", err)
	}

	results, err := optimizer.Optimize(ctx, strat, klines)
	if err != nil {
		log.Fatalf("Optimization failed: %v", err)
	}
	appLogger.Info(ctx, "Optimization finished", map[string]interface{}{"runs": len(results)})

	for i, r := range results {
		if i == 10 {
			break
		}
		fmt.Printf("%2d. %s score=%.3f stop=%.1f target=%.1f trail=%.1f trades=%d pnl=%.2f dd=%.2f%%\n",
			i+1, r.RunID, r.Score,
			r.Parameters[optimization.ParamStopATRMultiple], r.Parameters[optimization.ParamTargetRR],
			r.Parameters[optimization.ParamTrailATRMultiple],
			r.Metrics.TotalTrades, r.Metrics.TotalProfit, r.Metrics.MaxDrawdown*100)
	}
}

func newStrategy(cfg *config.Config, appLogger ports.Logger) (ports.Strategy, error) {
	if cfg.StrategyName == "ma_crossover" {
		return strategies.NewMACrossover(strategies.MACrossoverConfig{
			FastMAPeriod:  cfg.StrategyShortMAPeriod,
			SlowMAPeriod:  cfg.StrategyLongMAPeriod,
			RSIPeriod:     cfg.StrategyRSIPeriod,
			RSIOverbought: cfg.StrategyRSIOverbought,
			RSIOversold:   cfg.StrategyRSIOversold,
			MinADX:        cfg.StrategyMinADX,
			AllowShort:    cfg.StrategyAllowShort,
		}, appLogger)
	}
	return strategy.New(strategy.Config{
		ShortTermMAPeriod: cfg.StrategyShortMAPeriod,
		LongTermMAPeriod:  cfg.StrategyLongMAPeriod,
		EMAPeriod:         cfg.StrategyEMAPeriod,
		RSIPeriod:         cfg.StrategyRSIPeriod,
		RSIOverbought:     cfg.StrategyRSIOverbought,
		RSIOversold:       cfg.StrategyRSIOversold,
		AllowShort:        cfg.StrategyAllowShort,
	}, appLogger)
}
