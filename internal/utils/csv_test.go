package utils

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"positionEngine/internal/domain"
)

func TestKlinesCSV_RoundTrip(t *testing.T) {
	start := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	klines := []*domain.Kline{
		{OpenTime: start, CloseTime: start.Add(time.Hour - time.Millisecond), Symbol: "BTCUSDT", Interval: "1h",
			Open: 50000, High: 50500.5, Low: 49800.25, Close: 50100, Volume: 123.456},
		{OpenTime: start.Add(time.Hour), CloseTime: start.Add(2*time.Hour - time.Millisecond), Symbol: "BTCUSDT", Interval: "1h",
			Open: 50100, High: 50200, Low: 50000, Close: 50050, Volume: 99},
	}
	filename := filepath.Join(t.TempDir(), "nested", "btc.csv")

	require.NoError(t, WriteKlinesToCSV(klines, filename))
	got, err := ReadKlinesFromCSV(filename)
	require.NoError(t, err)
	require.Len(t, got, 2)

	assert.True(t, klines[0].CloseTime.Equal(got[0].CloseTime))
	assert.Equal(t, 50500.5, got[0].High)
	assert.Equal(t, 123.456, got[0].Volume)
	assert.Equal(t, "1h", got[1].Interval)
	assert.True(t, got[1].IsFinal)
}

func TestReadKlinesFromCSV_Errors(t *testing.T) {
	header := "open_time,close_time,symbol,interval,open,high,low,close,volume\n"
	row := func(open string) string {
		return open + ",2024-03-01T00:59:59Z,BTCUSDT,1h,1,2,0.5,1.5,10\n"
	}

	tests := []struct {
		name    string
		content string
	}{
		{"empty file", ""},
		{"bad time", header + row("yesterday")},
		{"bad price", header + "2024-03-01T00:00:00Z,2024-03-01T00:59:59Z,BTCUSDT,1h,x,2,0.5,1.5,10\n"},
		{"short row", header + "2024-03-01T00:00:00Z,BTCUSDT\n"},
		{"out of order", header + row("2024-03-01T01:00:00Z") + row("2024-03-01T00:00:00Z")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			filename := filepath.Join(t.TempDir(), "k.csv")
			require.NoError(t, os.WriteFile(filename, []byte(tt.content), 0o644))
			_, err := ReadKlinesFromCSV(filename)
			assert.Error(t, err)
		})
	}

	_, err := ReadKlinesFromCSV(filepath.Join(t.TempDir(), "missing.csv"))
	assert.Error(t, err)
}

func TestWriteTradesToCSV(t *testing.T) {
	at := time.Date(2024, 3, 1, 5, 0, 0, 0, time.UTC)
	trades := []*domain.Trade{{RunID: "r1", Symbol: "BTCUSDT", Side: domain.Long, EntryTime: at, ExitTime: at.Add(time.Hour),
		EntryPrice: 100, ExitPrice: 104, Quantity: 12.5, PNL: 50, RMultiple: 1, CloseReason: domain.CloseReasonTarget}}
	filename := filepath.Join(t.TempDir(), "out", "trades.csv")

	require.NoError(t, WriteTradesToCSV(trades, filename))
	data, err := os.ReadFile(filename)
	require.NoError(t, err)
	assert.Contains(t, string(data), "r1,BTCUSDT,LONG,2024-03-01T05:00:00Z,2024-03-01T06:00:00Z,100,104,12.5,50,0,1,TARGET")
}
