package risk

import (
	"context"
	"fmt"
	"math"
	"time"

	"positionEngine/internal/domain"
)

// RiskConfig holds configuration for sizing and account-level limits.
type RiskConfig struct {
	RiskPerTrade    float64 // fraction of equity lost if the initial stop is hit
	MaxPositionSize float64 // absolute quantity cap, 0 = none
	MaxLeverage     float64 // notional / equity cap, 0 = none
	MaxDrawdown     float64 // fraction below peak equity that halts new entries, 0 = none
	MaxDailyLoss    float64 // fraction of day-start equity, 0 = none
	MaxDailyTrades  int     // entries per day, 0 = none
}

// RiskManager sizes new positions and vetoes entries once limits are hit.
// Each simulation owns its own manager.
type RiskManager struct {
	config RiskConfig
	stats  RiskStats
}

// RiskStats holds risk management statistics
type RiskStats struct {
	Day             time.Time // UTC day the daily counters refer to
	DayStartEquity  float64
	DailyPnL        float64
	DailyTrades     int
	PeakEquity      float64
	CurrentDrawdown float64
}

// NewRiskManager creates a new risk manager instance
func NewRiskManager(config RiskConfig) *RiskManager {
	if config.RiskPerTrade <= 0 {
		config.RiskPerTrade = 0.01
	}
	return &RiskManager{config: config}
}

// PositionSize returns the quantity that loses RiskPerTrade of equity if the
// stop one risk unit away is hit, capped by size and leverage limits.
func (r *RiskManager) PositionSize(ctx context.Context, equity, riskUnit, price float64) float64 {
	if equity <= 0 || riskUnit <= 0 || price <= 0 {
		return 0
	}
	qty := equity * r.config.RiskPerTrade / riskUnit
	if r.config.MaxPositionSize > 0 {
		qty = math.Min(qty, r.config.MaxPositionSize)
	}
	if r.config.MaxLeverage > 0 {
		qty = math.Min(qty, equity*r.config.MaxLeverage/price)
	}
	return qty
}

// OnEquity feeds the bar's equity: it rolls the daily counters over at UTC
// day boundaries and tracks drawdown from the peak.
func (r *RiskManager) OnEquity(ctx context.Context, t time.Time, equity float64) {
	day := t.UTC().Truncate(24 * time.Hour)
	if !day.Equal(r.stats.Day) {
		r.ResetDailyStats(ctx, day, equity)
	}
	if equity > r.stats.PeakEquity {
		r.stats.PeakEquity = equity
	}
	if r.stats.PeakEquity > 0 {
		r.stats.CurrentDrawdown = (r.stats.PeakEquity - equity) / r.stats.PeakEquity
	}
	r.stats.DailyPnL = equity - r.stats.DayStartEquity
}

// RecordEntry counts a new position against the daily trade limit.
func (r *RiskManager) RecordEntry(ctx context.Context) {
	r.stats.DailyTrades++
}

// ResetDailyStats starts a new trading day.
func (r *RiskManager) ResetDailyStats(ctx context.Context, day time.Time, equity float64) {
	r.stats.Day = day
	r.stats.DayStartEquity = equity
	r.stats.DailyPnL = 0
	r.stats.DailyTrades = 0
}

// CheckRiskLimits returns an error describing the first limit that blocks new entries.
func (r *RiskManager) CheckRiskLimits(ctx context.Context) error {
	if r.config.MaxDrawdown > 0 && r.stats.CurrentDrawdown > r.config.MaxDrawdown {
		return fmt.Errorf("current drawdown %f exceeds maximum allowed %f", r.stats.CurrentDrawdown, r.config.MaxDrawdown)
	}
	if r.config.MaxDailyLoss > 0 && r.stats.DayStartEquity > 0 &&
		r.stats.DailyPnL < -r.config.MaxDailyLoss*r.stats.DayStartEquity {
		return fmt.Errorf("daily loss %f exceeds maximum allowed %f", r.stats.DailyPnL, -r.config.MaxDailyLoss*r.stats.DayStartEquity)
	}
	if r.config.MaxDailyTrades > 0 && r.stats.DailyTrades >= r.config.MaxDailyTrades {
		return fmt.Errorf("daily trades %d reached maximum allowed %d", r.stats.DailyTrades, r.config.MaxDailyTrades)
	}
	return nil
}

// RMultiple expresses a trade's P&L in units of the plan's initial risk.
func RMultiple(trade *domain.Trade, plan *domain.ExitPlan) float64 {
	if plan == nil || plan.RiskUnitR <= 0 || trade.Quantity <= 0 {
		return 0
	}
	return trade.PNL / (plan.RiskUnitR * trade.Quantity)
}

// GetStats returns the current risk management statistics
func (r *RiskManager) GetStats() RiskStats {
	return r.stats
}
