// Package metrics exposes Prometheus collectors for account and series operations.
// Recording functions are no-ops until Init is called, so domain code and tests
// can call them unconditionally.
package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	metricPrefix = "finbpo_"

	ResultSuccess = "success"
	ResultError   = "error"
)

var (
	registerOnce sync.Once

	seriesMaterialized     *prometheus.CounterVec
	occurrencesGenerated   *prometheus.CounterVec
	seriesCompensations    *prometheus.CounterVec
	seriesOperations       *prometheus.CounterVec
	seriesOperationLatency *prometheus.HistogramVec
	seriesMembersSkipped   *prometheus.CounterVec
	accountTransitions     *prometheus.CounterVec
	exportTotal            *prometheus.CounterVec
)

// Init registers collectors with the default registry.
func Init() {
	registerOnce.Do(func() {
		seriesMaterialized = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "series_materialized_total",
				Help: "Total series materializations by occurrence and result",
			},
			[]string{"occurrence", "result"},
		)
		occurrencesGenerated = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "series_occurrences_generated_total",
				Help: "Total sibling accounts generated by occurrence",
			},
			[]string{"occurrence"},
		)
		seriesCompensations = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "series_compensations_total",
				Help: "Compensating cleanups after failed materialization by result",
			},
			[]string{"result"},
		)
		seriesOperations = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "series_operations_total",
				Help: "Total series update/delete operations by operation, scope and result",
			},
			[]string{"operation", "scope", "result"},
		)
		seriesOperationLatency = prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    metricPrefix + "series_operation_latency_seconds",
				Help:    "Series operation latency in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation"},
		)
		seriesMembersSkipped = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "series_members_skipped_total",
				Help: "Series members left untouched by operation and reason",
			},
			[]string{"operation", "reason"},
		)
		accountTransitions = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "account_transitions_total",
				Help: "Account lifecycle operations by kind, operation and result",
			},
			[]string{"kind", "operation", "result"},
		)
		exportTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "series_export_total",
				Help: "Series schedule exports by format and result",
			},
			[]string{"format", "result"},
		)

		prometheus.MustRegister(
			seriesMaterialized,
			occurrencesGenerated,
			seriesCompensations,
			seriesOperations,
			seriesOperationLatency,
			seriesMembersSkipped,
			accountTransitions,
			exportTotal,
		)
	})
}

// Result maps an error to a result label.
func Result(err error) string {
	if err != nil {
		return ResultError
	}
	return ResultSuccess
}

// ObserveMaterialize records one materialization and the siblings it generated.
func ObserveMaterialize(occurrence, result string, generated int) {
	if seriesMaterialized != nil {
		seriesMaterialized.WithLabelValues(occurrence, result).Inc()
	}
	if generated > 0 && occurrencesGenerated != nil {
		occurrencesGenerated.WithLabelValues(occurrence).Add(float64(generated))
	}
}

// IncCompensation counts a compensating cleanup run.
func IncCompensation(result string) {
	if seriesCompensations != nil {
		seriesCompensations.WithLabelValues(result).Inc()
	}
}

// ObserveSeriesOperation records an update or delete across a series.
func ObserveSeriesOperation(operation, scope, result string, duration time.Duration) {
	if seriesOperations != nil {
		seriesOperations.WithLabelValues(operation, scope, result).Inc()
	}
	if seriesOperationLatency != nil {
		seriesOperationLatency.WithLabelValues(operation).Observe(duration.Seconds())
	}
}

// AddSkipped counts series members skipped by an operation.
func AddSkipped(operation, reason string, count int) {
	if count <= 0 {
		return
	}
	if seriesMembersSkipped != nil {
		seriesMembersSkipped.WithLabelValues(operation, reason).Add(float64(count))
	}
}

// IncTransition counts a single-account lifecycle operation.
func IncTransition(kind, operation, result string) {
	if kind == "" {
		kind = "unknown"
	}
	if accountTransitions != nil {
		accountTransitions.WithLabelValues(kind, operation, result).Inc()
	}
}

// IncExport counts a schedule export.
func IncExport(format, result string) {
	if exportTotal != nil {
		exportTotal.WithLabelValues(format, result).Inc()
	}
}
