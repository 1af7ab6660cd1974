package risk

import (
	"math"

	"positionEngine/internal/domain"
)

// BarContext is what the trailing evaluator sees of the current bar. Zero
// structural fields mean the reference is unavailable for this bar.
type BarContext struct {
	Close          float64
	High           float64
	Low            float64
	SupertrendLine float64
	KeltnerMiddle  float64
	KeltnerUpper   float64
	KeltnerLower   float64
}

// UpdateTrailingStop advances a live plan by one bar: it counts the bar,
// tracks price extremes, applies the one-time breakeven move and then the
// trailing mode. The stop only ever moves in the risk-reducing direction; a
// mode whose reference is missing leaves it unchanged.
func UpdateTrailingStop(plan *domain.ExitPlan, bar BarContext, atr float64) {
	if plan == nil {
		return
	}
	plan.BarsInTrade++
	if bar.High > plan.HighestSinceEntry {
		plan.HighestSinceEntry = bar.High
	}
	if bar.Low > 0 && bar.Low < plan.LowestSinceEntry {
		plan.LowestSinceEntry = bar.Low
	}
	isLong := plan.Side == domain.Long

	if plan.Trailing.HasBreakeven() && !plan.BreakevenDone && bar.Close > 0 {
		if plan.ProfitR(bar.Close) >= plan.Trailing.BreakevenAtR {
			tighten(plan, RoundToTick(plan.Entry, plan.TickSize, towardProfit(isLong)))
			plan.BreakevenDone = true
		}
	}

	if candidate, ok := trailingCandidate(plan, bar, atr); ok {
		tighten(plan, RoundToTick(candidate, plan.TickSize, awayFromEntry(isLong)))
	}
}

func trailingCandidate(plan *domain.ExitPlan, bar BarContext, atr float64) (float64, bool) {
	sign := plan.Side.Sign()
	usableATR := atr > 0 && !math.IsNaN(atr) && !math.IsInf(atr, 0)

	switch plan.Trailing.Mode {
	case domain.TrailingATR, domain.TrailingChandelier:
		if !usableATR {
			return 0, false
		}
		extreme := plan.HighestSinceEntry
		if plan.Side == domain.Short {
			extreme = plan.LowestSinceEntry
		}
		return extreme - sign*plan.Trailing.ATRMultiple*atr, true
	case domain.TrailingSupertrend:
		if bar.SupertrendLine <= 0 {
			return 0, false
		}
		return bar.SupertrendLine - sign*plan.Trailing.Offset, true
	case domain.TrailingKeltner:
		if !usableATR {
			return 0, false
		}
		// the plan's multiple sets the band width around the middle line;
		// precomputed bands are used when either is missing
		var band float64
		switch {
		case bar.KeltnerMiddle > 0 && plan.Trailing.KeltnerMultiple > 0:
			band = bar.KeltnerMiddle - sign*plan.Trailing.KeltnerMultiple*atr
		case plan.Side == domain.Short:
			band = bar.KeltnerUpper
		default:
			band = bar.KeltnerLower
		}
		if band <= 0 {
			return 0, false
		}
		return band - sign*plan.Trailing.ATRMultiple*0.5*atr, true
	}
	return 0, false
}

// tighten moves the stop to candidate only when that reduces risk.
func tighten(plan *domain.ExitPlan, candidate float64) {
	if candidate <= 0 {
		return
	}
	if plan.Side == domain.Long {
		if candidate > plan.Stop {
			plan.Stop = candidate
		}
		return
	}
	if candidate < plan.Stop {
		plan.Stop = candidate
	}
}
