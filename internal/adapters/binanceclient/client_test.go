package binanceclient

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync/atomic"
	"testing"
	"time"

	"github.com/adshao/go-binance/v2/futures"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"positionEngine/internal/adapters/logger"
	"positionEngine/internal/ports"
)

var t0 = time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)

func klineRow(i int) string {
	open := t0.Add(time.Duration(i) * time.Hour).UnixMilli()
	close := open + time.Hour.Milliseconds() - 1
	price := 50000 + float64(i)
	return fmt.Sprintf(`[%d,"%.2f","%.2f","%.2f","%.2f","12.5",%d,"0",10,"0","0","0"]`,
		open, price, price+50, price-50, price+10, close)
}

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	c, err := New(Config{BaseURL: srv.URL, Logger: logger.Nop{}})
	require.NoError(t, err)
	return c
}

func TestNew_RequiresLogger(t *testing.T) {
	_, err := New(Config{})
	assert.ErrorIs(t, err, ports.ErrConfigurationError)
}

func TestGetKlines(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/fapi/v1/klines", r.URL.Path)
		assert.Equal(t, "BTCUSDT", r.URL.Query().Get("symbol"))
		assert.Equal(t, "1h", r.URL.Query().Get("interval"))
		fmt.Fprintf(w, "[%s,%s]", klineRow(0), klineRow(1))
	})

	klines, err := c.GetKlines(context.Background(), "BTCUSDT", "1h", 2)
	require.NoError(t, err)
	require.Len(t, klines, 2)

	k := klines[1]
	assert.Equal(t, "BTCUSDT", k.Symbol)
	assert.Equal(t, "1h", k.Interval)
	assert.Equal(t, t0.Add(time.Hour), k.OpenTime)
	assert.InDelta(t, 50001, k.Open, 1e-9)
	assert.InDelta(t, 50051, k.High, 1e-9)
	assert.InDelta(t, 49951, k.Low, 1e-9)
	assert.InDelta(t, 50011, k.Close, 1e-9)
	assert.InDelta(t, 12.5, k.Volume, 1e-9)
	assert.True(t, k.IsFinal)
}

func TestGetKlinesRange_Pages(t *testing.T) {
	var calls int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		startMs, err := strconv.ParseInt(r.URL.Query().Get("startTime"), 10, 64)
		assert.NoError(t, err)
		first := int(time.UnixMilli(startMs).Sub(t0) / time.Hour)
		n := maxKlinesPerRequest
		if first >= maxKlinesPerRequest {
			n = 3
		}
		w.Write([]byte("["))
		for i := 0; i < n; i++ {
			if i > 0 {
				w.Write([]byte(","))
			}
			w.Write([]byte(klineRow(first + i)))
		}
		w.Write([]byte("]"))
	})

	klines, err := c.GetKlinesRange(context.Background(), "BTCUSDT", "1h", t0, t0.Add(2000*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
	require.Len(t, klines, maxKlinesPerRequest+3)
	for i := 1; i < len(klines); i++ {
		assert.True(t, klines[i].OpenTime.After(klines[i-1].OpenTime), "bars strictly ordered at %d", i)
	}
}

func TestGetKlinesRange_InvalidWindow(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		t.Error("no request expected")
	})
	_, err := c.GetKlinesRange(context.Background(), "BTCUSDT", "1h", t0, t0)
	assert.ErrorIs(t, err, ports.ErrInvalidRequest)
}

func TestGetKlines_APIErrors(t *testing.T) {
	tests := []struct {
		code int
		want error
	}{
		{-1003, ports.ErrRateLimited},
		{-1121, ports.ErrInvalidRequest},
		{-2015, ports.ErrAuthenticationFailed},
		{-1001, ports.ErrExchangeUnavailable},
		{-9999, ports.ErrUnknown},
	}
	for _, tt := range tests {
		t.Run(strconv.Itoa(tt.code), func(t *testing.T) {
			c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusBadRequest)
				fmt.Fprintf(w, `{"code":%d,"msg":"boom"}`, tt.code)
			})
			_, err := c.GetKlines(context.Background(), "BTCUSDT", "1h", 10)
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestTranslateBinanceKline(t *testing.T) {
	_, err := translateBinanceKline(nil, "BTCUSDT", "1h")
	assert.Error(t, err)

	_, err = translateBinanceKline(&futures.Kline{Open: "x"}, "BTCUSDT", "1h")
	assert.Error(t, err)
}
