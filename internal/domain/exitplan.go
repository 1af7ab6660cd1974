package domain

import "fmt"

// TrailingMode selects how the stop follows price once a plan is live.
type TrailingMode string

const (
	TrailingNone       TrailingMode = "NONE"
	TrailingATR        TrailingMode = "ATR"
	TrailingChandelier TrailingMode = "CHANDELIER"
	TrailingSupertrend TrailingMode = "SUPERTREND"
	TrailingKeltner    TrailingMode = "KELTNER"
)

// TrailingPolicy carries the trailing parameters of a plan. They are taken from
// the risk parameters unchanged by regime.
type TrailingPolicy struct {
	Mode            TrailingMode
	ATRMultiple     float64
	BreakevenAtR    float64 // 0 disables the breakeven move
	KeltnerMultiple float64
	Offset          float64 // fixed distance from the Supertrend line
}

// HasBreakeven reports whether the policy asks for a breakeven move.
func (t TrailingPolicy) HasBreakeven() bool {
	return t.BreakevenAtR > 0
}

// ExitTarget is one rung of the partial-exit ladder.
type ExitTarget struct {
	RMultiple     float64
	CloseFraction float64 // fraction of the initial quantity, in (0,1]
	Price         float64
}

// ExitPlan is the live exit policy of one position. It is owned by a single
// simulation and mutated only by the trailing evaluator and the exit checker.
type ExitPlan struct {
	Side          Side
	Entry         float64
	Stop          float64
	InitialStop   float64
	PrimaryTarget float64
	RiskUnitR     float64 // |Entry-InitialStop|, fixed at creation
	Targets       []ExitTarget
	Trailing      TrailingPolicy
	TimeStopBars  int // 0 means no time stop
	CooldownBars  int
	TickSize      float64
	Regime        Regime

	BarsInTrade   int
	BreakevenDone bool
	TargetsHit    map[int]bool

	HighestSinceEntry float64
	LowestSinceEntry  float64
}

// HasTimeStop reports whether a time stop is configured.
func (p *ExitPlan) HasTimeStop() bool {
	return p.TimeStopBars > 0
}

// ProfitR returns the open profit at price expressed in R.
func (p *ExitPlan) ProfitR(price float64) float64 {
	if p.RiskUnitR <= 0 {
		return 0
	}
	return p.Side.Sign() * (price - p.Entry) / p.RiskUnitR
}

// TargetFractionSum returns the total fraction the ladder will close.
func (p *ExitPlan) TargetFractionSum() float64 {
	sum := 0.0
	for _, t := range p.Targets {
		sum += t.CloseFraction
	}
	return sum
}

// HitFractionSum returns the fraction of the initial quantity the fired
// targets have closed.
func (p *ExitPlan) HitFractionSum() float64 {
	sum := 0.0
	for i, t := range p.Targets {
		if p.TargetsHit[i] {
			sum += t.CloseFraction
		}
	}
	return sum
}

// AllTargetsHit reports whether every ladder target has fired.
func (p *ExitPlan) AllTargetsHit() bool {
	return len(p.Targets) > 0 && len(p.TargetsHit) == len(p.Targets)
}

// ExitEvent is what the exit checker reports for a bar.
type ExitEvent struct {
	Reason        CloseReason
	TargetIndex   int // 0-based ladder index, -1 for full exits
	Price         float64
	CloseFraction float64 // 1 for full exits
}

// IsFull reports whether the event closes the whole position.
func (e ExitEvent) IsFull() bool {
	return e.Reason != CloseReasonTarget
}

// Label renders the event reason, numbering targets from 1 (TARGET_1, TARGET_2, ...).
func (e ExitEvent) Label() string {
	if e.Reason == CloseReasonTarget {
		return fmt.Sprintf("%s_%d", e.Reason, e.TargetIndex+1)
	}
	return string(e.Reason)
}
