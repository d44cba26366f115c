// Package metrics exposes the bot's Prometheus collectors.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/alanyoungcy/pairsniper/internal/domain"
)

// Metrics holds the collectors on a private registry.
type Metrics struct {
	reg *prometheus.Registry

	TxTotal     *prometheus.CounterVec // labels: label, status
	TxDuration  *prometheus.HistogramVec
	Decisions   *prometheus.CounterVec // labels: decision
	Transitions *prometheus.CounterVec // labels: from, to
	LoopErrors  prometheus.Counter
	PairsSeen   prometheus.Counter
}

// New registers all collectors. livePositions, if non-nil, backs the
// live-position gauge.
func New(livePositions func() int) *Metrics {
	m := &Metrics{
		reg: prometheus.NewRegistry(),
		TxTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "sniper_transactions_total",
			Help: "Transactions submitted, by purpose and outcome",
		}, []string{"label", "status"}),
		TxDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "sniper_transaction_confirm_seconds",
			Help:    "Time from broadcast to receipt or timeout",
			Buckets: []float64{1, 3, 5, 10, 20, 30, 60, 120, 300, 600},
		}, []string{"label"}),
		Decisions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "sniper_decisions_total",
			Help: "Policy decisions, by outcome",
		}, []string{"decision"}),
		Transitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "sniper_position_transitions_total",
			Help: "Position state transitions",
		}, []string{"from", "to"}),
		LoopErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "sniper_loop_errors_total",
			Help: "Control loop iterations that ended in an error",
		}),
		PairsSeen: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "sniper_pairs_seen_total",
			Help: "PairCreated events read from the factory",
		}),
	}
	m.reg.MustRegister(
		m.TxTotal, m.TxDuration, m.Decisions, m.Transitions, m.LoopErrors, m.PairsSeen,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	if livePositions != nil {
		m.reg.MustRegister(prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Name: "sniper_live_positions",
			Help: "Positions currently in the live set",
		}, func() float64 { return float64(livePositions()) }))
	}
	return m
}

// Registry returns the registry the collectors live on.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.reg
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.reg, promhttp.HandlerOpts{})
}

func (m *Metrics) ObserveTx(label string, status domain.TxStatus, elapsed time.Duration) {
	m.TxTotal.WithLabelValues(label, string(status)).Inc()
	m.TxDuration.WithLabelValues(label).Observe(elapsed.Seconds())
}

func (m *Metrics) ObserveDecision(d domain.Decision) {
	m.Decisions.WithLabelValues(string(d)).Inc()
}

func (m *Metrics) ObserveTransition(from, to domain.PositionState) {
	m.Transitions.WithLabelValues(string(from), string(to)).Inc()
}

func (m *Metrics) ObserveLoopError() {
	m.LoopErrors.Inc()
}

func (m *Metrics) ObservePairs(n int) {
	m.PairsSeen.Add(float64(n))
}
