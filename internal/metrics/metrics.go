// Package metrics registers the Prometheus instruments transport updates
// from engine listener callbacks. The engine package itself never
// imports this package, keeping the matching core free of the metrics
// dependency.
package metrics

import "github.com/prometheus/client_golang/prometheus"

// Metrics bundles the counters and gauges transport drives.
type Metrics struct {
	OrdersTotal   prometheus.Counter
	TradesTotal   prometheus.Counter
	RejectedTotal prometheus.Counter
	CancelsTotal  prometheus.Counter

	BestBid     prometheus.Gauge
	BestAsk     prometheus.Gauge
	DepthLevels prometheus.Gauge
}

// New builds and registers every instrument against reg.
func New(reg prometheus.Registerer, symbol string) *Metrics {
	labels := prometheus.Labels{"symbol": symbol}
	m := &Metrics{
		OrdersTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "matchbook_orders_total", Help: "Orders accepted or rejected.", ConstLabels: labels,
		}),
		TradesTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "matchbook_trades_total", Help: "Trades executed.", ConstLabels: labels,
		}),
		RejectedTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "matchbook_rejected_total", Help: "Orders rejected at validation or FOK infeasibility.", ConstLabels: labels,
		}),
		CancelsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "matchbook_cancels_total", Help: "Orders cancelled.", ConstLabels: labels,
		}),
		BestBid: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "matchbook_best_bid", Help: "Current best bid price.", ConstLabels: labels,
		}),
		BestAsk: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "matchbook_best_ask", Help: "Current best ask price.", ConstLabels: labels,
		}),
		DepthLevels: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "matchbook_depth_levels", Help: "Populated depth levels, summed across sides.", ConstLabels: labels,
		}),
	}
	reg.MustRegister(m.OrdersTotal, m.TradesTotal, m.RejectedTotal, m.CancelsTotal, m.BestBid, m.BestAsk, m.DepthLevels)
	return m
}
