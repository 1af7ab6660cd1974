package sqlite

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"positionEngine/internal/domain"
	"positionEngine/internal/ports"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mockLogger implements ports.Logger for testing
type mockLogger struct{}

func (m *mockLogger) Debug(ctx context.Context, msg string, fields ...map[string]interface{}) {}
func (m *mockLogger) Info(ctx context.Context, msg string, fields ...map[string]interface{})  {}
func (m *mockLogger) Warn(ctx context.Context, msg string, fields ...map[string]interface{})  {}
func (m *mockLogger) Error(ctx context.Context, err error, msg string, fields ...map[string]interface{}) {
}

// setupTestDB creates a temporary database for testing
func setupTestDB(t *testing.T) *Repository {
	t.Helper()

	repo, err := NewRepository(Config{
		DBPath: filepath.Join(t.TempDir(), "test.db"),
		Logger: &mockLogger{},
	})
	require.NoError(t, err)
	t.Cleanup(func() { repo.Close() })
	return repo
}

var at = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

func TestNewRepository_RequiresLogger(t *testing.T) {
	_, err := NewRepository(Config{DBPath: filepath.Join(t.TempDir(), "x.db")})
	assert.ErrorIs(t, err, ports.ErrConfigurationError)
}

func TestRepository_Fills(t *testing.T) {
	repo := setupTestDB(t)
	ctx := context.Background()

	fills := []*domain.Fill{
		{RunID: "run-a", OrderID: "o1", ClientOrderID: "c1", Symbol: "BTCUSDT", Side: domain.Buy, Type: domain.OrderTypeMarket,
			Quantity: 0.5, Price: 50025, Fee: 10.005, Slippage: 25, Tag: "ENTRY", Timestamp: at},
		{RunID: "run-a", OrderID: "o2", ClientOrderID: "c2", OCOGroupID: "g1", Symbol: "BTCUSDT", Side: domain.Sell,
			Type: domain.OrderTypeLimit, Quantity: 0.5, Price: 51100, Fee: 5.11, Maker: true, Tag: "TP", Timestamp: at.Add(time.Hour)},
		{RunID: "run-b", OrderID: "o3", ClientOrderID: "c3", Symbol: "ETHUSDT", Side: domain.Buy, Type: domain.OrderTypeMarket,
			Quantity: 1, Price: 3000, Timestamp: at},
	}
	for i, f := range fills {
		id, err := repo.SaveFill(ctx, f)
		require.NoError(t, err)
		assert.Equal(t, int64(i+1), id)
		assert.Equal(t, id, f.ID)
	}

	got, err := repo.FillsByRun(ctx, "run-a")
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "o1", got[0].OrderID)
	assert.Equal(t, domain.Buy, got[0].Side)
	assert.Equal(t, domain.OrderTypeMarket, got[0].Type)
	assert.InDelta(t, 25.0, got[0].Slippage, 1e-9)
	assert.False(t, got[0].Maker)
	assert.True(t, got[1].Maker)
	assert.Equal(t, "g1", got[1].OCOGroupID)
	assert.True(t, at.Add(time.Hour).Equal(got[1].Timestamp))

	none, err := repo.FillsByRun(ctx, "missing")
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestRepository_Trades(t *testing.T) {
	repo := setupTestDB(t)
	ctx := context.Background()

	trade := &domain.Trade{
		RunID: "run-a", Symbol: "BTCUSDT", Side: domain.Long, EntryPrice: 50000, ExitPrice: 50550,
		Quantity: 0.35, PNL: 180.5, Fee: 12, RMultiple: 0.98, EntryTime: at, ExitTime: at.Add(2 * time.Hour),
		CloseReason: domain.CloseReasonTarget,
	}
	_, err := repo.SaveTrade(ctx, trade)
	require.NoError(t, err)
	_, err = repo.SaveTrade(ctx, &domain.Trade{RunID: "run-a", Symbol: "BTCUSDT", Side: domain.Long,
		EntryPrice: 50000, ExitPrice: 49450, Quantity: 0.65, PNL: -360, EntryTime: at, ExitTime: at.Add(3 * time.Hour)})
	require.NoError(t, err)

	got, err := repo.TradesByRun(ctx, "run-a")
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, trade.ID, got[0].ID)
	assert.Equal(t, domain.Long, got[0].Side)
	assert.Equal(t, domain.CloseReasonTarget, got[0].CloseReason)
	assert.InDelta(t, 0.98, got[0].RMultiple, 1e-12)
	assert.True(t, trade.ExitTime.Equal(got[0].ExitTime))
	assert.Equal(t, domain.CloseReasonUnknown, got[1].CloseReason, "missing reason reads back as unknown")
}

func TestRepository_EquityAndRuns(t *testing.T) {
	repo := setupTestDB(t)
	ctx := context.Background()

	for _, run := range []string{"run-a", "run-b", "run-a"} {
		_, err := repo.SaveEquity(ctx, &domain.EquitySnapshot{RunID: run, Time: at, Cash: 10000, Equity: 10000})
		require.NoError(t, err)
	}
	_, err := repo.SaveEquity(ctx, &domain.EquitySnapshot{
		RunID: "run-b", Time: at.Add(time.Hour), Cash: 9000, Equity: 9900, RealizedPnl: -50, UnrealizedPnl: -50, Drawdown: 0.01,
	})
	require.NoError(t, err)

	curve, err := repo.EquityByRun(ctx, "run-b")
	require.NoError(t, err)
	require.Len(t, curve, 2)
	assert.InDelta(t, 9900, curve[1].Equity, 1e-9)
	assert.InDelta(t, 0.01, curve[1].Drawdown, 1e-12)
	assert.True(t, at.Add(time.Hour).Equal(curve[1].Time))

	runs, err := repo.ListRuns(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"run-b", "run-a"}, runs)
}

func TestRepository_ClosedDatabase(t *testing.T) {
	repo := setupTestDB(t)
	require.NoError(t, repo.Close())

	_, err := repo.SaveFill(context.Background(), &domain.Fill{RunID: "x", Timestamp: at})
	assert.ErrorIs(t, err, ports.ErrQueryFailed)
	_, err = repo.TradesByRun(context.Background(), "x")
	assert.ErrorIs(t, err, ports.ErrQueryFailed)
}
