package lob

import "github.com/prometheus/client_golang/prometheus"

// Metrics wires the matching engine's observable counters/gauges into a
// prometheus registry. It is optional: a nil *Metrics on Config leaves
// the engine unobserved.
type Metrics struct {
	tradesTotal    prometheus.Counter
	volumeTotal    prometheus.Counter
	ticksTotal     prometheus.Counter
	bidLevels      prometheus.Gauge
	askLevels      prometheus.Gauge
	rejectedTotal  *prometheus.CounterVec
}

// NewMetrics registers the engine's metrics on reg and returns the
// handle Config.Metrics expects.
func NewMetrics(reg prometheus.Registerer, namespace string) *Metrics {
	m := &Metrics{
		tradesTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "trades_total",
			Help: "Total number of executed transactions.",
		}),
		volumeTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "traded_volume_total",
			Help: "Total traded quantity across all transactions.",
		}),
		ticksTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "ticks_total",
			Help: "Total number of emitted market-data ticks.",
		}),
		bidLevels: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Name: "bid_levels",
			Help: "Current number of resting bid price levels.",
		}),
		askLevels: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Name: "ask_levels",
			Help: "Current number of resting ask price levels.",
		}),
		rejectedTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "rejected_quotes_total",
			Help: "Total quotes rejected, by error code.",
		}, []string{"code"}),
	}
	reg.MustRegister(m.tradesTotal, m.volumeTotal, m.ticksTotal, m.bidLevels, m.askLevels, m.rejectedTotal)
	return m
}

func (m *Metrics) observeTrade(tx Transaction) {
	if m == nil {
		return
	}
	m.tradesTotal.Inc()
	m.volumeTotal.Add(float64(tx.Qty))
}

func (m *Metrics) observeTick(Tick) {
	if m == nil {
		return
	}
	m.ticksTotal.Inc()
}

func (m *Metrics) observeLevelCounts(bidLevels, askLevels int) {
	if m == nil {
		return
	}
	m.bidLevels.Set(float64(bidLevels))
	m.askLevels.Set(float64(askLevels))
}

func (m *Metrics) observeRejected(code string) {
	if m == nil {
		return
	}
	m.rejectedTotal.WithLabelValues(code).Inc()
}
