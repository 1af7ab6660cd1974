package risk

import "positionEngine/internal/domain"

// CheckExits evaluates the bar against the plan and returns at most one exit.
//
// Priority: time stop, then the first unhit ladder target, then the stop, then
// the primary target. A firing target is marked hit on the plan; only one
// target fires per bar even if price gapped through several.
func CheckExits(plan *domain.ExitPlan, price, high, low float64) (domain.ExitEvent, bool) {
	if plan == nil || price <= 0 {
		return domain.ExitEvent{}, false
	}
	if high <= 0 {
		high = price
	}
	if low <= 0 {
		low = price
	}
	isLong := plan.Side == domain.Long

	if plan.HasTimeStop() && plan.BarsInTrade >= plan.TimeStopBars {
		return fullExit(domain.CloseReasonTimeStop, price), true
	}

	for i, t := range plan.Targets {
		if plan.TargetsHit[i] {
			continue
		}
		reached := (isLong && high >= t.Price) || (!isLong && low <= t.Price)
		if !reached {
			continue
		}
		if plan.TargetsHit == nil {
			plan.TargetsHit = make(map[int]bool, len(plan.Targets))
		}
		plan.TargetsHit[i] = true
		return domain.ExitEvent{
			Reason:        domain.CloseReasonTarget,
			TargetIndex:   i,
			Price:         t.Price,
			CloseFraction: t.CloseFraction,
		}, true
	}

	if (isLong && low <= plan.Stop) || (!isLong && high >= plan.Stop) {
		return fullExit(domain.CloseReasonStopLoss, plan.Stop), true
	}

	if (isLong && high >= plan.PrimaryTarget) || (!isLong && low <= plan.PrimaryTarget) {
		return fullExit(domain.CloseReasonTakeProfit, plan.PrimaryTarget), true
	}
	return domain.ExitEvent{}, false
}

func fullExit(reason domain.CloseReason, price float64) domain.ExitEvent {
	return domain.ExitEvent{Reason: reason, TargetIndex: -1, Price: price, CloseFraction: 1}
}
