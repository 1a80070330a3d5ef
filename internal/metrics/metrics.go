package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "transferengine"

// Engine holds the engine's collectors. A nil *Engine is valid and records
// nothing.
type Engine struct {
	feeEstimates        *prometheus.CounterVec
	submissions         *prometheus.CounterVec
	signatures          *prometheus.CounterVec
	headEvents          *prometheus.CounterVec
	activeSubscriptions prometheus.Gauge
}

func New(reg prometheus.Registerer) *Engine {
	f := promauto.With(reg)
	return &Engine{
		feeEstimates: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "fee_estimates_total",
			Help:      "Fee estimates by pricing mode and result.",
		}, []string{"mode", "result"}),
		submissions: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "submissions_total",
			Help:      "Transaction submissions by entry point and result.",
		}, []string{"entry", "result"}),
		signatures: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "signatures_total",
			Help:      "Signing attempts by result.",
		}, []string{"result"}),
		headEvents: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "fee_stream_heads_total",
			Help:      "Block headers processed by fee subscriptions.",
		}, []string{"result"}),
		activeSubscriptions: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "fee_subscriptions_active",
			Help:      "Fee subscriptions currently attached to a head stream.",
		}),
	}
}

func result(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}

func (m *Engine) FeeEstimate(mode string, err error) {
	if m == nil {
		return
	}
	m.feeEstimates.WithLabelValues(mode, result(err)).Inc()
}

func (m *Engine) Submission(entry string, err error) {
	if m == nil {
		return
	}
	m.submissions.WithLabelValues(entry, result(err)).Inc()
}

func (m *Engine) Signature(err error) {
	if m == nil {
		return
	}
	m.signatures.WithLabelValues(result(err)).Inc()
}

func (m *Engine) HeadEvent(err error) {
	if m == nil {
		return
	}
	m.headEvents.WithLabelValues(result(err)).Inc()
}

func (m *Engine) SubscriptionOpened() {
	if m == nil {
		return
	}
	m.activeSubscriptions.Inc()
}

func (m *Engine) SubscriptionClosed() {
	if m == nil {
		return
	}
	m.activeSubscriptions.Dec()
}
