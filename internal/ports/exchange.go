package ports

import (
	"context"
	"time"

	"positionEngine/internal/domain"
)

// KlineSource supplies historical price bars. The simulation core never calls
// it; glue code uses it to build the bar stream.
type KlineSource interface {
	// GetKlines retrieves the most recent klines for the symbol, up to limit.
	GetKlines(ctx context.Context, symbol string, interval string, limit int) ([]*domain.Kline, error)

	// GetKlinesRange retrieves all klines between start and end, oldest first.
	GetKlinesRange(ctx context.Context, symbol, interval string, start, end time.Time) ([]*domain.Kline, error)
}
