package risk

import "positionEngine/internal/domain"

// ExitStyle tags how a plan places its stop and which trailing mode it uses.
type ExitStyle string

const (
	ExitStyleFixed         ExitStyle = "fixed"          // ATR stop, no trailing
	ExitStyleATRTrail      ExitStyle = "atr_trail"      // ATR stop, ATR trailing
	ExitStyleChandelier    ExitStyle = "chandelier"     // swing-aware stop, chandelier trailing
	ExitStyleSupertrend    ExitStyle = "supertrend"     // ATR stop, follows the Supertrend line
	ExitStyleKeltner       ExitStyle = "keltner"        // ATR stop, follows the Keltner channel
	ExitStyleStructure     ExitStyle = "structure"      // swing-aware stop, no trailing
	ExitStyleBreakout      ExitStyle = "breakout"       // swing-aware stop, ATR trailing, squeeze shortens the time stop
	ExitStyleLegacyPartial ExitStyle = "legacy_partial" // single 50% partial at 1R, ATR trailing
)

// Documented fallbacks for missing or invalid parameters.
const (
	DefaultStopATRMultiple  = 2.2
	DefaultTrailATRMultiple = 3.0
	DefaultTargetRR         = 2.0
	DefaultBreakevenR       = 1.0
	DefaultTimeStopBars     = 96
	DefaultKeltnerMultiple  = 2.0
	DefaultExitStyle        = ExitStyleATRTrail
)

var (
	defaultTargetRMultiples = []float64{1, 2, 3}
	defaultTargetFractions  = []float64{0.35, 0.35, 0.30}
)

// Params is the declarative risk policy an exit plan is built from.
//
// Zero values mean "use the documented default". BreakevenR and TimeStopBars
// accept a negative value to switch the feature off.
type Params struct {
	ExitStyle        ExitStyle `yaml:"exit_style"`
	StopATRMultiple  float64   `yaml:"stop_atr_mult"`
	TrailATRMultiple float64   `yaml:"trail_atr_mult"`
	TargetRR         float64   `yaml:"target_rr"`
	TargetRMultiples []float64 `yaml:"target_r_multiples"`
	TargetFractions  []float64 `yaml:"target_fractions"`
	BreakevenR       float64   `yaml:"breakeven_r"`
	TimeStopBars     int       `yaml:"time_stop_bars"`
	CooldownBars     int       `yaml:"cooldown_bars"`
	KeltnerMultiple  float64   `yaml:"keltner_mult"`
	TrailOffset      float64   `yaml:"trail_offset"`
	TickSize         float64   `yaml:"tick_size"`
}

// DefaultParams returns the policy with every field at its documented default.
func DefaultParams() Params {
	return Params{}.WithDefaults()
}

// WithDefaults returns a copy with missing or invalid fields replaced by the
// documented defaults. It never fails.
func (p Params) WithDefaults() Params {
	out := p
	switch out.ExitStyle {
	case ExitStyleFixed, ExitStyleATRTrail, ExitStyleChandelier, ExitStyleSupertrend,
		ExitStyleKeltner, ExitStyleStructure, ExitStyleBreakout, ExitStyleLegacyPartial:
	default:
		out.ExitStyle = DefaultExitStyle
	}
	if out.StopATRMultiple <= 0 {
		out.StopATRMultiple = DefaultStopATRMultiple
	}
	if out.TrailATRMultiple <= 0 {
		out.TrailATRMultiple = DefaultTrailATRMultiple
	}
	if out.TargetRR <= 0 {
		out.TargetRR = DefaultTargetRR
	}
	if out.BreakevenR == 0 {
		out.BreakevenR = DefaultBreakevenR
	}
	if out.TimeStopBars == 0 {
		out.TimeStopBars = DefaultTimeStopBars
	}
	if out.CooldownBars < 0 {
		out.CooldownBars = 0
	}
	if out.KeltnerMultiple <= 0 {
		out.KeltnerMultiple = DefaultKeltnerMultiple
	}
	if out.TrailOffset < 0 {
		out.TrailOffset = 0
	}
	if out.TickSize < 0 {
		out.TickSize = 0
	}
	out.TargetRMultiples, out.TargetFractions = sanitizeLadder(out.TargetRMultiples, out.TargetFractions)
	return out
}

// sanitizeLadder validates a target ladder. A malformed ladder is replaced by
// the default one; fractions summing above 1 are scaled down to sum to 1.
func sanitizeLadder(rs, fractions []float64) ([]float64, []float64) {
	if len(rs) == 0 || len(rs) != len(fractions) {
		return cloneFloats(defaultTargetRMultiples), cloneFloats(defaultTargetFractions)
	}
	sum := 0.0
	for i := range rs {
		if rs[i] <= 0 || fractions[i] <= 0 || fractions[i] > 1 {
			return cloneFloats(defaultTargetRMultiples), cloneFloats(defaultTargetFractions)
		}
		sum += fractions[i]
	}
	outR, outF := cloneFloats(rs), cloneFloats(fractions)
	if sum > 1 {
		for i := range outF {
			outF[i] /= sum
		}
	}
	return outR, outF
}

func cloneFloats(in []float64) []float64 {
	out := make([]float64, len(in))
	copy(out, in)
	return out
}

// referencesStructure reports whether the style anchors its stop on swing structure.
func (s ExitStyle) referencesStructure() bool {
	switch s {
	case ExitStyleStructure, ExitStyleBreakout, ExitStyleChandelier:
		return true
	}
	return false
}

// trailingMode maps the style onto its trailing mode.
func (s ExitStyle) trailingMode() domain.TrailingMode {
	switch s {
	case ExitStyleATRTrail, ExitStyleBreakout, ExitStyleLegacyPartial:
		return domain.TrailingATR
	case ExitStyleChandelier:
		return domain.TrailingChandelier
	case ExitStyleSupertrend:
		return domain.TrailingSupertrend
	case ExitStyleKeltner:
		return domain.TrailingKeltner
	}
	return domain.TrailingNone
}
