package ports

import (
	"context"

	"positionEngine/internal/domain"
)

// Journal receives the records a simulation produces. The core defines only
// the record shapes; implementations choose the storage.
type Journal interface {
	// SaveFill stores one fill and returns its assigned ID.
	SaveFill(ctx context.Context, fill *domain.Fill) (int64, error)
	// SaveEquity stores one per-bar equity snapshot.
	SaveEquity(ctx context.Context, snap *domain.EquitySnapshot) (int64, error)
	// SaveTrade stores one closing trade.
	SaveTrade(ctx context.Context, trade *domain.Trade) (int64, error)
}

// RunReader reads back what a Journal stored for a run.
type RunReader interface {
	// FillsByRun returns the fills of a run in fill order.
	FillsByRun(ctx context.Context, runID string) ([]*domain.Fill, error)
	// TradesByRun returns the closing trades of a run in exit order.
	TradesByRun(ctx context.Context, runID string) ([]*domain.Trade, error)
	// EquityByRun returns the equity curve of a run in time order.
	EquityByRun(ctx context.Context, runID string) ([]*domain.EquitySnapshot, error)
	// ListRuns returns the known run ids, newest first.
	ListRuns(ctx context.Context) ([]string, error)
}
