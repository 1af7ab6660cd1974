package analytics

import (
	"math"
	"sort"
	"time"

	"positionEngine/internal/domain"
)

// PerformanceMetrics holds comprehensive performance metrics for a run
type PerformanceMetrics struct {
	// Basic Metrics
	TotalTrades        int
	WinningTrades      int
	LosingTrades       int
	WinRate            float64
	TotalProfit        float64
	TotalFees          float64
	MaxDrawdown        float64
	ProfitFactor       float64
	AverageWin         float64
	AverageLoss        float64
	AverageR           float64
	SharpeRatio        float64
	FinalBalance       float64
	ReturnOnInvestment float64

	// Advanced Metrics
	MaxConsecutiveWins   int
	MaxConsecutiveLosses int
	AverageTradeDuration time.Duration
	RecoveryFactor       float64
	Expectancy           float64
	RiskRewardRatio      float64
	ExitReasons          map[domain.CloseReason]int
	MonthlyReturns       map[string]float64
	Drawdowns            []Drawdown
	EquityCurve          []EquityPoint
}

// Drawdown represents a drawdown period
type Drawdown struct {
	StartTime  time.Time
	EndTime    time.Time
	StartValue float64
	EndValue   float64
	Depth      float64
	Duration   time.Duration
}

// EquityPoint represents a point on the equity curve
type EquityPoint struct {
	Time     time.Time
	Value    float64
	Drawdown float64
}

// AnalyzePerformance calculates performance metrics from closed trades and,
// when given, the per-bar equity curve. Drawdown, final balance and the
// Sharpe ratio come from the equity curve if there is one and from the
// cumulative trade P&L otherwise. The trades slice is not modified.
func AnalyzePerformance(trades []*domain.Trade, equity []domain.EquitySnapshot, initialBalance float64) *PerformanceMetrics {
	metrics := &PerformanceMetrics{
		FinalBalance:   initialBalance,
		ExitReasons:    make(map[domain.CloseReason]int),
		MonthlyReturns: make(map[string]float64),
		Drawdowns:      make([]Drawdown, 0),
		EquityCurve:    make([]EquityPoint, 0),
	}

	sorted := make([]*domain.Trade, len(trades))
	copy(sorted, trades)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].ExitTime.Before(sorted[j].ExitTime)
	})

	var grossWin, grossLoss, totalR float64
	var consecutiveWins, consecutiveLosses int
	var totalDuration time.Duration
	curve := make([]EquityPoint, 0, len(sorted))
	balance := initialBalance

	for _, trade := range sorted {
		metrics.TotalTrades++
		metrics.TotalFees += trade.Fee
		metrics.ExitReasons[trade.CloseReason]++
		totalR += trade.RMultiple
		totalDuration += trade.ExitTime.Sub(trade.EntryTime)

		if trade.IsWin() {
			metrics.WinningTrades++
			grossWin += trade.PNL
			consecutiveWins++
			consecutiveLosses = 0
		} else {
			metrics.LosingTrades++
			grossLoss += trade.PNL
			consecutiveLosses++
			consecutiveWins = 0
		}
		if consecutiveWins > metrics.MaxConsecutiveWins {
			metrics.MaxConsecutiveWins = consecutiveWins
		}
		if consecutiveLosses > metrics.MaxConsecutiveLosses {
			metrics.MaxConsecutiveLosses = consecutiveLosses
		}

		balance += trade.PNL
		metrics.TotalProfit += trade.PNL
		metrics.MonthlyReturns[trade.ExitTime.Format("2006-01")] += trade.PNL
		curve = append(curve, EquityPoint{Time: trade.ExitTime, Value: balance})
	}
	metrics.FinalBalance = balance

	if len(equity) > 0 {
		curve = curve[:0]
		for _, s := range equity {
			curve = append(curve, EquityPoint{Time: s.Time, Value: s.Equity})
		}
		metrics.FinalBalance = equity[len(equity)-1].Equity
		metrics.SharpeRatio = calculateSharpeRatio(returns(curve))
	}
	metrics.EquityCurve, metrics.Drawdowns, metrics.MaxDrawdown = trackDrawdowns(curve, initialBalance)
	metrics.ReturnOnInvestment = (metrics.FinalBalance - initialBalance) / initialBalance

	if metrics.TotalTrades == 0 {
		return metrics
	}

	n := float64(metrics.TotalTrades)
	metrics.WinRate = float64(metrics.WinningTrades) / n
	metrics.AverageR = totalR / n
	metrics.AverageTradeDuration = totalDuration / time.Duration(metrics.TotalTrades)
	if metrics.WinningTrades > 0 {
		metrics.AverageWin = grossWin / float64(metrics.WinningTrades)
	}
	if metrics.LosingTrades > 0 {
		metrics.AverageLoss = grossLoss / float64(metrics.LosingTrades)
	}
	if grossLoss != 0 {
		metrics.ProfitFactor = grossWin / -grossLoss
	}
	if metrics.AverageLoss != 0 {
		metrics.RiskRewardRatio = metrics.AverageWin / -metrics.AverageLoss
	}
	metrics.Expectancy = metrics.TotalProfit / n
	if metrics.MaxDrawdown > 0 {
		metrics.RecoveryFactor = metrics.TotalProfit / (initialBalance * metrics.MaxDrawdown)
	}
	return metrics
}

// trackDrawdowns annotates the curve with drawdown from the running peak
// (starting at start) and collects the drawdown periods.
func trackDrawdowns(curve []EquityPoint, start float64) ([]EquityPoint, []Drawdown, float64) {
	peak := start
	var maxDD float64
	var current *Drawdown
	periods := make([]Drawdown, 0)

	for i := range curve {
		p := &curve[i]
		if p.Value >= peak {
			peak = p.Value
			if current != nil {
				current.EndTime = p.Time
				current.EndValue = p.Value
				current.Duration = current.EndTime.Sub(current.StartTime)
				periods = append(periods, *current)
				current = nil
			}
			continue
		}
		dd := (peak - p.Value) / peak
		p.Drawdown = dd
		if current == nil {
			current = &Drawdown{StartTime: p.Time, StartValue: peak, Depth: dd}
		} else {
			current.Depth = math.Max(current.Depth, dd)
		}
		if dd > maxDD {
			maxDD = dd
		}
	}

	if current != nil {
		last := curve[len(curve)-1]
		current.EndTime = last.Time
		current.EndValue = last.Value
		current.Duration = current.EndTime.Sub(current.StartTime)
		periods = append(periods, *current)
	}
	return curve, periods, maxDD
}

func returns(curve []EquityPoint) []float64 {
	out := make([]float64, 0, len(curve))
	for i := 1; i < len(curve); i++ {
		if curve[i-1].Value > 0 {
			out = append(out, curve[i].Value/curve[i-1].Value-1)
		}
	}
	return out
}

// calculateSharpeRatio returns mean over sample standard deviation of the
// per-bar returns, risk-free rate 0, not annualised.
func calculateSharpeRatio(returns []float64) float64 {
	if len(returns) < 2 {
		return 0
	}
	var sum float64
	for _, r := range returns {
		sum += r
	}
	mean := sum / float64(len(returns))

	var variance float64
	for _, r := range returns {
		variance += (r - mean) * (r - mean)
	}
	variance /= float64(len(returns) - 1)
	if variance == 0 {
		return 0
	}
	return mean / math.Sqrt(variance)
}

// GetMonthlyReturns returns the monthly returns as a sorted slice
func (m *PerformanceMetrics) GetMonthlyReturns() []MonthlyReturn {
	returns := make([]MonthlyReturn, 0, len(m.MonthlyReturns))
	for month, profit := range m.MonthlyReturns {
		date, _ := time.Parse("2006-01", month)
		returns = append(returns, MonthlyReturn{
			Month:  date,
			Return: profit,
		})
	}
	sort.Slice(returns, func(i, j int) bool {
		return returns[i].Month.Before(returns[j].Month)
	})
	return returns
}

// MonthlyReturn represents a monthly return value
type MonthlyReturn struct {
	Month  time.Time
	Return float64
}
