// Package utils hosts the small cross-cutting helpers shared by the fig packages.
//
// Invariants are conditions the code itself must guarantee; a violated invariant means a bug in fig, not a
// bad input. Think of what you'd `panic()` on, except a production server shouldn't die for it: raising an
// invariant logs an error and bumps a monitoring counter instead, and the caller still has to handle the
// broken case (early return, skip the computation). Under test builds a raised invariant panics so bugs
// can't hide behind a counter. Do not raise invariants for conditions driven by external input.

package utils

import (
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	promclient "github.com/prometheus/client_model/go"
)

var invariantsMetric = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "invariants_total",
	Help: "The total number of invariant violations",
}, []string{
	"module", // The module in which this invariant occurred.
	"type",   // The type of the invariant that occurred.
})

// RaiseInvariant records an invariant violation for the given module: it increments the violation counter,
// logs msg (with args as slog attributes), and panics when running under test mode.
func RaiseInvariant(module, invariantType, msg string, args ...any) {
	invariantsMetric.WithLabelValues(module, invariantType).Inc()
	slog.With("invariant", invariantType, "module", module).Error(msg, args...)
	if IsTestMode {
		panic("invariant violated: " + invariantType)
	}
}

// GetMetricValue returns the current value of the invariant counter for the given module and type.
// Tests use it to assert that a probe did (or did not) trip an invariant.
func GetMetricValue(module, invariantType string) int {
	var metric = &promclient.Metric{}
	if err := invariantsMetric.WithLabelValues(module, invariantType).Write(metric); err != nil {
		slog.Error(err.Error())
		return 0
	}
	return int(metric.Counter.GetValue())
}
