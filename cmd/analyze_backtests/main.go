package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"text/tabwriter"

	"positionEngine/config"
	"positionEngine/internal/adapters/logger"
	"positionEngine/internal/adapters/sqlite"
	"positionEngine/internal/domain"
	"positionEngine/internal/ports"
	"positionEngine/internal/strategy/analytics"
)

func main() {
	runID := flag.String("run", "", "analyze only this run")
	limit := flag.Int("limit", 20, "most recent runs to list when -run is empty")
	flag.Parse()

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("FATAL: Failed to load configuration: %v", err)
	}
	appLogger, flush, err := logger.New(cfg.LogFormat, cfg.LogLevel)
	if err != nil {
		log.Fatalf("FATAL: Failed to initialize logger: %v", err)
	}
	defer flush()
	ctx := context.Background()

	repo, err := sqlite.NewRepository(sqlite.Config{DBPath: cfg.DBPath, Logger: appLogger})
	if err != nil {
		log.Fatalf("Error opening journal: %v", err)
	}
	defer repo.Close()

	runs := []string{*runID}
	if *runID == "" {
		if runs, err = repo.ListRuns(ctx); err != nil {
			log.Fatalf("Error listing runs: %v", err)
		}
		if len(runs) > *limit {
			runs = runs[:*limit]
		}
	}
	if len(runs) == 0 {
		log.Println("No runs found. Run the backtest runner with DB_PATH set first.")
		return
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 3, ' ', tabwriter.AlignRight|tabwriter.Debug)
	fmt.Fprintln(w, "Run\tTrades\tWinRate\tAvgR\tPF\tTotalPnL\tFees\tMaxDD\tSharpe\t")

	var last *analytics.PerformanceMetrics
	for _, id := range runs {
		m, err := analyzeRun(ctx, repo, id)
		if err != nil {
			log.Printf("Error analyzing run %s: %v", id, err)
			continue
		}
		last = m
		fmt.Fprintf(w, "%s\t%d\t%.2f\t%.2f\t%.2f\t%.2f\t%.2f\t%.2f\t%.2f\t\n",
			id, m.TotalTrades, m.WinRate*100, m.AverageR, m.ProfitFactor, m.TotalProfit, m.TotalFees,
			m.MaxDrawdown*100, m.SharpeRatio)
	}
	w.Flush()

	// details only make sense for a single run
	if *runID != "" && last != nil {
		fmt.Println("\n## Exit reasons")
		for reason, n := range last.ExitReasons {
			fmt.Printf("%-12s %d\n", reason, n)
		}
		fmt.Println("\n## Monthly returns")
		for _, mr := range last.GetMonthlyReturns() {
			fmt.Printf("%s %10.2f\n", mr.Month.Format("2006-01"), mr.Return)
		}
	}
}

// analyzeRun rebuilds performance metrics from a journaled run. The initial
// balance is recovered from the first snapshot: equity minus realized and
// unrealized PnL.
func analyzeRun(ctx context.Context, reader ports.RunReader, runID string) (*analytics.PerformanceMetrics, error) {
	trades, err := reader.TradesByRun(ctx, runID)
	if err != nil {
		return nil, err
	}
	snaps, err := reader.EquityByRun(ctx, runID)
	if err != nil {
		return nil, err
	}
	if len(snaps) == 0 {
		return nil, fmt.Errorf("run %s has no equity curve: %w", runID, ports.ErrNotFound)
	}
	curve := make([]domain.EquitySnapshot, len(snaps))
	for i, s := range snaps {
		curve[i] = *s
	}
	first := snaps[0]
	initial := first.Equity - first.RealizedPnl - first.UnrealizedPnl
	return analytics.AnalyzePerformance(trades, curve, initial), nil
}
