package risk

import (
	"fmt"
	"math"
	"sort"

	"positionEngine/internal/domain"
	"positionEngine/internal/ports"
)

// StructureContext carries optional market-structure references for a build.
// Zero fields are treated as unavailable.
type StructureContext struct {
	SwingLow       float64
	SwingHigh      float64
	TickSize       float64 // overrides Params.TickSize when > 0
	KeltnerUpper   float64
	KeltnerLower   float64
	SupertrendLine float64
	Squeeze        bool // side-channel from the regime classifier
}

// regimeAdjustment is how a regime reshapes the base policy.
type regimeAdjustment struct {
	stopScale     float64
	rMultiples    []float64 // nil keeps the policy ladder
	fractions     []float64
	timeStopScale float64
}

func adjustmentFor(r domain.Regime) regimeAdjustment {
	switch r {
	case domain.RegimeTrend:
		return regimeAdjustment{1.10, []float64{1, 2.5, 4}, []float64{0.25, 0.35, 0.40}, 1.0}
	case domain.RegimeRange:
		return regimeAdjustment{0.90, []float64{0.8, 1.6, 2.5}, []float64{0.40, 0.40, 0.20}, 1.0}
	case domain.RegimeHighVol:
		return regimeAdjustment{1.20, []float64{0.8, 1.6, 2.2}, []float64{0.40, 0.40, 0.20}, 0.75}
	case domain.RegimeLowVol:
		return regimeAdjustment{0.95, nil, nil, 1.25}
	}
	return regimeAdjustment{1.0, nil, nil, 1.0}
}

// BuildExitPlan derives the stop, primary target, partial-exit ladder and
// trailing policy for a new position.
//
// A non-positive atr is replaced by 1% of entry. Invalid params fall back to
// their documented defaults. The only failures are an unusable side or entry
// and a zero risk unit (ports.ErrZeroRiskUnit), all of which point at a
// configuration problem upstream.
func BuildExitPlan(side domain.Side, entry, atr float64, params Params, sc *StructureContext, reg domain.Regime) (*domain.ExitPlan, error) {
	if side != domain.Long && side != domain.Short {
		return nil, fmt.Errorf("build exit plan: %w: %q", ports.ErrInvalidSide, side)
	}
	if entry <= 0 || math.IsNaN(entry) || math.IsInf(entry, 0) {
		return nil, fmt.Errorf("build exit plan: %w: %v", ports.ErrInvalidEntry, entry)
	}
	p := params.WithDefaults()
	if atr <= 0 || math.IsNaN(atr) || math.IsInf(atr, 0) {
		atr = entry * 0.01
	}
	tick := p.TickSize
	if sc != nil && sc.TickSize > 0 {
		tick = sc.TickSize
	}
	isLong := side == domain.Long
	adj := adjustmentFor(reg)

	stopMultiple := p.StopATRMultiple * adj.stopScale
	stop := entry - side.Sign()*stopMultiple*atr
	if p.ExitStyle.referencesStructure() && sc != nil {
		buffer := math.Max(tick, atr*0.2)
		if isLong && sc.SwingLow > 0 {
			stop = math.Min(sc.SwingLow, stop) - buffer
		}
		if !isLong && sc.SwingHigh > 0 {
			stop = math.Max(sc.SwingHigh, stop) + buffer
		}
	}
	stop = RoundToTick(stop, tick, awayFromEntry(isLong))

	riskUnit := math.Abs(entry - stop)
	if riskUnit <= 0 || side.Sign()*(entry-stop) <= 0 {
		return nil, fmt.Errorf("build exit plan (entry=%v stop=%v): %w", entry, stop, ports.ErrZeroRiskUnit)
	}

	rs, fractions := p.TargetRMultiples, p.TargetFractions
	if adj.rMultiples != nil {
		rs, fractions = adj.rMultiples, adj.fractions
	}
	if p.ExitStyle == ExitStyleLegacyPartial {
		rs, fractions = []float64{1}, []float64{0.5}
	}
	targets := make([]domain.ExitTarget, len(rs))
	for i := range rs {
		targets[i] = domain.ExitTarget{
			RMultiple:     rs[i],
			CloseFraction: fractions[i],
			Price:         RoundToTick(entry+side.Sign()*rs[i]*riskUnit, tick, towardProfit(isLong)),
		}
	}
	sort.SliceStable(targets, func(i, j int) bool { return targets[i].RMultiple < targets[j].RMultiple })

	breakeven := p.BreakevenR
	if breakeven < 0 {
		breakeven = 0
	}

	timeStop := 0
	if p.TimeStopBars > 0 {
		timeStop = int(float64(p.TimeStopBars) * adj.timeStopScale)
		if p.ExitStyle == ExitStyleBreakout && sc != nil && sc.Squeeze {
			timeStop /= 2
		}
		if timeStop < 1 {
			timeStop = 1
		}
	}

	return &domain.ExitPlan{
		Side:          side,
		Entry:         entry,
		Stop:          stop,
		InitialStop:   stop,
		PrimaryTarget: RoundToTick(entry+side.Sign()*p.TargetRR*riskUnit, tick, towardProfit(isLong)),
		RiskUnitR:     riskUnit,
		Targets:       targets,
		Trailing: domain.TrailingPolicy{
			Mode:            p.ExitStyle.trailingMode(),
			ATRMultiple:     p.TrailATRMultiple,
			BreakevenAtR:    breakeven,
			KeltnerMultiple: p.KeltnerMultiple,
			Offset:          p.TrailOffset,
		},
		TimeStopBars:      timeStop,
		CooldownBars:      p.CooldownBars,
		TickSize:          tick,
		Regime:            reg,
		TargetsHit:        make(map[int]bool, len(targets)),
		HighestSinceEntry: entry,
		LowestSinceEntry:  entry,
	}, nil
}
