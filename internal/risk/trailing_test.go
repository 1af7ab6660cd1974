package risk

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"

	"positionEngine/internal/domain"
)

func livePlan(side domain.Side, entry, stop float64, trailing domain.TrailingPolicy) *domain.ExitPlan {
	return &domain.ExitPlan{
		Side:              side,
		Entry:             entry,
		Stop:              stop,
		InitialStop:       stop,
		RiskUnitR:         abs(entry - stop),
		Trailing:          trailing,
		TargetsHit:        map[int]bool{},
		HighestSinceEntry: entry,
		LowestSinceEntry:  entry,
	}
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}

func TestUpdateTrailingStop_Breakeven(t *testing.T) {
	plan := livePlan(domain.Long, 100, 95, domain.TrailingPolicy{Mode: domain.TrailingNone, BreakevenAtR: 1})

	UpdateTrailingStop(plan, BarContext{Close: 104, High: 104.5, Low: 103}, 1)
	assert.Equal(t, 95.0, plan.Stop)
	assert.False(t, plan.BreakevenDone)

	UpdateTrailingStop(plan, BarContext{Close: 105, High: 105.5, Low: 104}, 1)
	assert.Equal(t, 100.0, plan.Stop)
	assert.True(t, plan.BreakevenDone)

	UpdateTrailingStop(plan, BarContext{Close: 90, High: 101, Low: 89}, 1)
	assert.Equal(t, 100.0, plan.Stop, "stop never loosens after a reversal")
	assert.Equal(t, 3, plan.BarsInTrade)
	assert.Equal(t, 105.5, plan.HighestSinceEntry)
	assert.Equal(t, 89.0, plan.LowestSinceEntry)
}

func TestUpdateTrailingStop_BreakevenShort(t *testing.T) {
	plan := livePlan(domain.Short, 100, 104, domain.TrailingPolicy{Mode: domain.TrailingNone, BreakevenAtR: 0.5})

	UpdateTrailingStop(plan, BarContext{Close: 98, High: 99, Low: 97.5}, 1)
	assert.Equal(t, 100.0, plan.Stop)
	assert.True(t, plan.BreakevenDone)
}

func TestUpdateTrailingStop_Modes(t *testing.T) {
	t.Run("atr trails from the highest high", func(t *testing.T) {
		plan := livePlan(domain.Long, 100, 95, domain.TrailingPolicy{Mode: domain.TrailingATR, ATRMultiple: 2})

		UpdateTrailingStop(plan, BarContext{Close: 109, High: 110, Low: 105}, 1)
		assert.Equal(t, 108.0, plan.Stop)

		UpdateTrailingStop(plan, BarContext{Close: 104, High: 105, Low: 103}, 1)
		assert.Equal(t, 108.0, plan.Stop)

		UpdateTrailingStop(plan, BarContext{Close: 104, High: 105, Low: 103}, 5)
		assert.Equal(t, 108.0, plan.Stop, "wider atr must not loosen the stop")
	})

	t.Run("chandelier short trails from the lowest low", func(t *testing.T) {
		plan := livePlan(domain.Short, 100, 105, domain.TrailingPolicy{Mode: domain.TrailingChandelier, ATRMultiple: 2})

		UpdateTrailingStop(plan, BarContext{Close: 91, High: 93, Low: 90}, 1)
		assert.Equal(t, 92.0, plan.Stop)
	})

	t.Run("supertrend follows the line with an offset", func(t *testing.T) {
		plan := livePlan(domain.Long, 100, 95, domain.TrailingPolicy{Mode: domain.TrailingSupertrend, Offset: 0.5})

		UpdateTrailingStop(plan, BarContext{Close: 104, High: 104, Low: 102}, 1)
		assert.Equal(t, 95.0, plan.Stop, "no line, no change")

		UpdateTrailingStop(plan, BarContext{Close: 104, High: 104, Low: 102, SupertrendLine: 103}, 1)
		assert.Equal(t, 102.5, plan.Stop)
	})

	t.Run("keltner uses the opposite band", func(t *testing.T) {
		plan := livePlan(domain.Long, 100, 95, domain.TrailingPolicy{Mode: domain.TrailingKeltner, ATRMultiple: 2})

		UpdateTrailingStop(plan, BarContext{Close: 104, High: 104, Low: 102, KeltnerLower: 101, KeltnerUpper: 107}, 1)
		assert.Equal(t, 100.0, plan.Stop)

		short := livePlan(domain.Short, 100, 105, domain.TrailingPolicy{Mode: domain.TrailingKeltner, ATRMultiple: 2})
		UpdateTrailingStop(short, BarContext{Close: 96, High: 97, Low: 95, KeltnerLower: 93, KeltnerUpper: 99}, 1)
		assert.Equal(t, 100.0, short.Stop)
	})

	t.Run("keltner multiple sets the band width", func(t *testing.T) {
		bar := BarContext{Close: 105, High: 105, Low: 103, KeltnerMiddle: 104, KeltnerLower: 90, KeltnerUpper: 118}

		narrow := livePlan(domain.Long, 100, 95, domain.TrailingPolicy{Mode: domain.TrailingKeltner, ATRMultiple: 2, KeltnerMultiple: 1})
		UpdateTrailingStop(narrow, bar, 1)
		assert.Equal(t, 102.0, narrow.Stop)

		wide := livePlan(domain.Long, 100, 95, domain.TrailingPolicy{Mode: domain.TrailingKeltner, ATRMultiple: 2, KeltnerMultiple: 2})
		UpdateTrailingStop(wide, bar, 1)
		assert.Equal(t, 101.0, wide.Stop)

		short := livePlan(domain.Short, 100, 105, domain.TrailingPolicy{Mode: domain.TrailingKeltner, ATRMultiple: 2, KeltnerMultiple: 1})
		UpdateTrailingStop(short, BarContext{Close: 95, High: 97, Low: 95, KeltnerMiddle: 96}, 1)
		assert.Equal(t, 98.0, short.Stop)
	})

	t.Run("missing atr is a no-op", func(t *testing.T) {
		plan := livePlan(domain.Long, 100, 95, domain.TrailingPolicy{Mode: domain.TrailingATR, ATRMultiple: 2})
		UpdateTrailingStop(plan, BarContext{Close: 120, High: 120, Low: 110}, 0)
		assert.Equal(t, 95.0, plan.Stop)
		assert.Equal(t, 1, plan.BarsInTrade)
	})

	t.Run("nil plan", func(t *testing.T) {
		assert.NotPanics(t, func() { UpdateTrailingStop(nil, BarContext{Close: 1}, 1) })
	})
}

func TestUpdateTrailingStop_Monotonic(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	modes := []domain.TrailingMode{domain.TrailingATR, domain.TrailingChandelier, domain.TrailingSupertrend, domain.TrailingKeltner}

	for _, mode := range modes {
		for _, side := range []domain.Side{domain.Long, domain.Short} {
			stop := 95.0
			if side == domain.Short {
				stop = 105
			}
			plan := livePlan(side, 100, stop, domain.TrailingPolicy{Mode: mode, ATRMultiple: 2, BreakevenAtR: 1, Offset: 0.2})
			plan.TickSize = 0.01

			price := 100.0
			prev := plan.Stop
			for i := 0; i < 500; i++ {
				price += rng.NormFloat64()
				if price < 1 {
					price = 1
				}
				bar := BarContext{
					Close:          price,
					High:           price + rng.Float64(),
					Low:            price - rng.Float64(),
					SupertrendLine: price - side.Sign()*rng.Float64()*3,
					KeltnerUpper:   price + 2,
					KeltnerLower:   price - 2,
				}
				UpdateTrailingStop(plan, bar, 0.5+rng.Float64())
				if side == domain.Long {
					assert.GreaterOrEqual(t, plan.Stop, prev, "%s %s bar %d", mode, side, i)
				} else {
					assert.LessOrEqual(t, plan.Stop, prev, "%s %s bar %d", mode, side, i)
				}
				prev = plan.Stop
			}
		}
	}
}
