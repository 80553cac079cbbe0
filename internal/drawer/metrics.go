package drawer

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Mutation kinds, used as the "kind" label.
const (
	kindProtection = "protection"
	kindGift       = "gift"
	kindAdd        = "add"
	kindChange     = "change"
	kindSwap       = "swap"
	kindClear      = "clear"
)

// Metrics are the drawer's Prometheus collectors.
type Metrics struct {
	Rebuilds           prometheus.Counter
	SuppressedRebuilds prometheus.Counter
	RebuildDuration    prometheus.Histogram
	Decisions          *prometheus.CounterVec // by reason
	Mutations          *prometheus.CounterVec // by kind and result
	OverrideExpired    prometheus.Counter
}

// NewMetrics creates the collectors and registers them with reg.
// A nil reg leaves them unregistered (tests, CLI).
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		Rebuilds: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "cart_drawer",
			Name:      "rebuilds_total",
			Help:      "Cart rebuild cycles started.",
		}),
		SuppressedRebuilds: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "cart_drawer",
			Name:      "rebuilds_suppressed_total",
			Help:      "Rebuilds skipped because one was already running in the same call chain.",
		}),
		RebuildDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: "cart_drawer",
			Name:      "rebuild_duration_seconds",
			Help:      "Duration of a cart rebuild cycle.",
			Buckets:   prometheus.DefBuckets,
		}),
		Decisions: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "cart_drawer",
			Name:      "protection_decisions_total",
			Help:      "Shipping protection decisions by rule.",
		}, []string{"reason"}),
		Mutations: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "cart_drawer",
			Name:      "mutations_total",
			Help:      "Cart mutations issued by the drawer.",
		}, []string{"kind", "result"}),
		OverrideExpired: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "cart_drawer",
			Name:      "protection_override_expired_total",
			Help:      "Expired protection opt-outs deleted on read.",
		}),
	}
}

func (m *Metrics) mutation(kind string, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.Mutations.WithLabelValues(kind, result).Inc()
}
