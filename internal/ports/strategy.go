package ports

import (
	"context"

	"positionEngine/internal/domain"
)

// Strategy decides whether to open a position. Exits are owned by the exit
// plan, so a strategy only ever answers the entry question.
type Strategy interface {
	// RequiredDataPoints returns the minimum number of klines needed for the strategy calculations.
	RequiredDataPoints() int

	// EntrySignal returns the side to open and true when an entry is wanted.
	EntrySignal(ctx context.Context, klines []*domain.Kline, currentPrice float64) (domain.Side, bool)

	// Name returns the name of the strategy.
	Name() string
}
