// Package metrics registers the prometheus collectors shared by the trading loop.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	MentionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "buzzbot_mentions_total", Help: "Mention samples collected"},
		[]string{"asset", "source"},
	)
	SignalsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "buzzbot_signals_total", Help: "Buzz signals emitted"},
		[]string{"asset"},
	)
	OrdersTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "buzzbot_orders_total", Help: "Orders filled"},
		[]string{"asset", "side"},
	)
	TradesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "buzzbot_trades_total", Help: "Trades recorded by exit reason"},
		[]string{"asset", "reason"},
	)
	ErrorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "buzzbot_errors_total", Help: "Recoverable errors by cycle phase"},
		[]string{"phase"},
	)
	OpenPositions = prometheus.NewGauge(
		prometheus.GaugeOpts{Name: "buzzbot_open_positions", Help: "Currently open positions"},
	)
	DailyPnLUSD = prometheus.NewGauge(
		prometheus.GaugeOpts{Name: "buzzbot_daily_pnl_usd", Help: "Realized P&L for the current trading day"},
	)
	CycleSeconds = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "buzzbot_cycle_seconds",
			Help:    "Duration of a full trading cycle",
			Buckets: []float64{0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
		},
	)
)

func init() {
	prometheus.MustRegister(MentionsTotal, SignalsTotal, OrdersTotal, TradesTotal, ErrorsTotal, OpenPositions, DailyPnLUSD, CycleSeconds)
}

// Handler exposes the default registry in the prometheus text format.
func Handler() http.Handler {
	return promhttp.Handler()
}
