// Package metrics holds the Prometheus collectors exported on /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// ReconcileTicks counts reconciliation passes by trigger (tick, mode).
var ReconcileTicks = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "powerd",
	Name:      "reconcile_passes_total",
	Help:      "Reconciliation passes run, by trigger.",
}, []string{"trigger"})

// PlanApplies counts plan activations by plan and result (ok, error).
var PlanApplies = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "powerd",
	Name:      "plan_applies_total",
	Help:      "Power plan activations, by plan and result.",
}, []string{"plan", "result"})

// ProbeFailures counts probes that fell back to a default or last known value.
var ProbeFailures = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "powerd",
	Name:      "probe_failures_total",
	Help:      "Failed OS probes, by probe (plan, power_source).",
}, []string{"probe"})

// ActivePlan is 1 for the plan powerd believes is active, 0 otherwise.
var ActivePlan = promauto.NewGaugeVec(prometheus.GaugeOpts{
	Namespace: "powerd",
	Name:      "active_plan",
	Help:      "Currently active power plan (1 = active).",
}, []string{"plan"})

// PolicyMode is 1 for the selected mode, 0 otherwise.
var PolicyMode = promauto.NewGaugeVec(prometheus.GaugeOpts{
	Namespace: "powerd",
	Name:      "policy_mode",
	Help:      "Selected policy mode (1 = selected).",
}, []string{"mode"})

// ACConnected is 1 when external power is connected.
var ACConnected = promauto.NewGauge(prometheus.GaugeOpts{
	Namespace: "powerd",
	Name:      "ac_connected",
	Help:      "Whether AC power is connected (1) or the host runs on battery (0).",
})

// ApplyLatency tracks how long plan activation commands take.
var ApplyLatency = promauto.NewHistogram(prometheus.HistogramOpts{
	Namespace: "powerd",
	Name:      "plan_apply_duration_seconds",
	Help:      "Duration of power plan activation.",
	Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
})
