package observability

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	registerOnce sync.Once

	gatewayOps = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "fusiond",
			Subsystem: "gateway",
			Name:      "operations_total",
			Help:      "Total deployment gateway operations.",
		},
		[]string{"op", "outcome"},
	)
	gatewayDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "fusiond",
			Subsystem: "gateway",
			Name:      "operation_duration_seconds",
			Help:      "Deployment gateway operation duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"op", "outcome"},
	)
	builds = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "fusiond",
			Subsystem: "builder",
			Name:      "builds_total",
			Help:      "Total fusion group builds.",
		},
		[]string{"outcome"},
	)
	buildDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "fusiond",
			Subsystem: "builder",
			Name:      "build_duration_seconds",
			Help:      "Fusion group build duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"outcome"},
	)
	reconcileOps = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "fusiond",
			Subsystem: "reconciler",
			Name:      "operations_total",
			Help:      "Total reconciler topology operations.",
		},
		[]string{"op", "outcome"},
	)
	dispatchInvocations = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "fusiond",
			Subsystem: "dispatch",
			Name:      "invocations_total",
			Help:      "Total dispatch runtime invocations.",
		},
		[]string{"group", "outcome"},
	)
)

func RegisterMetrics() {
	registerOnce.Do(func() {
		prometheus.MustRegister(
			gatewayOps, gatewayDuration,
			builds, buildDuration,
			reconcileOps, dispatchInvocations,
		)
	})
}

func RecordGatewayOp(op string, success bool, duration time.Duration) {
	RegisterMetrics()
	outcome := outcomeLabel(success)
	gatewayOps.WithLabelValues(op, outcome).Inc()
	gatewayDuration.WithLabelValues(op, outcome).Observe(duration.Seconds())
}

func RecordBuild(success bool, duration time.Duration) {
	RegisterMetrics()
	outcome := outcomeLabel(success)
	builds.WithLabelValues(outcome).Inc()
	buildDuration.WithLabelValues(outcome).Observe(duration.Seconds())
}

func RecordReconcileOp(op string, success bool) {
	RegisterMetrics()
	reconcileOps.WithLabelValues(op, outcomeLabel(success)).Inc()
}

func RecordDispatch(group, outcome string) {
	RegisterMetrics()
	dispatchInvocations.WithLabelValues(group, outcome).Inc()
}

func outcomeLabel(success bool) string {
	if success {
		return "success"
	}
	return "failure"
}
