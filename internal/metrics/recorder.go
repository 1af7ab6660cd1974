// Package metrics exposes per-run simulation metrics to Prometheus.
//
// Collectors are registered on a caller-supplied registerer with a constant
// "run" label, so parallel runs can share one registry without sharing state:
//   - engine_fills_total{side,liquidity}   fills by order side and maker/taker
//   - engine_fees_total                    fees paid
//   - engine_order_rejections_total        rejected order requests
//   - engine_exits_total{reason}           exit events by reason label
//   - engine_trades_total{result}          closed trades by win|loss
//   - engine_equity                        last marked equity
//   - engine_drawdown_ratio                last drawdown below the high-water mark
package metrics

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"

	"positionEngine/internal/domain"
)

// Recorder owns the collectors of one simulation run. A nil *Recorder is
// valid and records nothing.
type Recorder struct {
	fills      *prometheus.CounterVec
	fees       prometheus.Counter
	rejections prometheus.Counter
	exits      *prometheus.CounterVec
	trades     *prometheus.CounterVec
	equity     prometheus.Gauge
	drawdown   prometheus.Gauge
}

// NewRecorder creates and registers the collectors for runID.
func NewRecorder(reg prometheus.Registerer, runID string) (*Recorder, error) {
	labels := prometheus.Labels{"run": runID}
	r := &Recorder{
		fills: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "engine_fills_total", Help: "Fills by order side and liquidity (maker|taker).", ConstLabels: labels,
		}, []string{"side", "liquidity"}),
		fees: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "engine_fees_total", Help: "Fees paid in quote currency.", ConstLabels: labels,
		}),
		rejections: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "engine_order_rejections_total", Help: "Order requests rejected by validation.", ConstLabels: labels,
		}),
		exits: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "engine_exits_total", Help: "Exit events by reason.", ConstLabels: labels,
		}, []string{"reason"}),
		trades: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "engine_trades_total", Help: "Closed trades by result (win|loss).", ConstLabels: labels,
		}, []string{"result"}),
		equity: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "engine_equity", Help: "Equity at the last mark-to-market.", ConstLabels: labels,
		}),
		drawdown: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "engine_drawdown_ratio", Help: "Drawdown below the equity high-water mark.", ConstLabels: labels,
		}),
	}
	for _, c := range []prometheus.Collector{r.fills, r.fees, r.rejections, r.exits, r.trades, r.equity, r.drawdown} {
		if err := reg.Register(c); err != nil {
			return nil, fmt.Errorf("register metrics for run %s: %w", runID, err)
		}
	}
	return r, nil
}

func (r *Recorder) ObserveFill(f *domain.Fill) {
	if r == nil || f == nil {
		return
	}
	liquidity := "taker"
	if f.Maker {
		liquidity = "maker"
	}
	r.fills.WithLabelValues(string(f.Side), liquidity).Inc()
	r.fees.Add(f.Fee)
}

func (r *Recorder) ObserveRejections(n int) {
	if r == nil || n <= 0 {
		return
	}
	r.rejections.Add(float64(n))
}

func (r *Recorder) ObserveExit(ev domain.ExitEvent) {
	if r == nil {
		return
	}
	r.exits.WithLabelValues(ev.Label()).Inc()
}

func (r *Recorder) ObserveTrade(t *domain.Trade) {
	if r == nil || t == nil {
		return
	}
	result := "loss"
	if t.IsWin() {
		result = "win"
	}
	r.trades.WithLabelValues(result).Inc()
}

func (r *Recorder) ObserveEquity(s domain.EquitySnapshot) {
	if r == nil {
		return
	}
	r.equity.Set(s.Equity)
	r.drawdown.Set(s.Drawdown)
}
