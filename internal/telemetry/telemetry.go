// Package telemetry registers the Prometheus collectors shared by the
// pipeline and classifies upstream HTTP failures for labeling.
package telemetry

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Retryable HTTP statuses: rate limited plus upstream 5xx hiccups.
var retryableStatus = map[int]struct{}{
	429: {},
	500: {},
	502: {},
	503: {},
	504: {},
}

// IsRetryableStatus reports whether a status code is worth retrying.
func IsRetryableStatus(code int) bool {
	_, ok := retryableStatus[code]
	return ok
}

// ClassifyHTTPCode labels a non-2xx status for the error-code counter.
func ClassifyHTTPCode(code int) (status, category string) {
	if IsRetryableStatus(code) {
		return strconv.Itoa(code), "retryable"
	}
	return strconv.Itoa(code), "unexpected"
}

// Metrics bundles every collector the pipeline emits. One instance is
// created in main and passed down; tests construct their own against a
// private registry.
type Metrics struct {
	HTTPErrorCodes   *prometheus.CounterVec
	LimiterRate      *prometheus.GaugeVec
	RowsInserted     *prometheus.CounterVec
	BatchInsertSecs  prometheus.Histogram
	StageRunsTotal   *prometheus.CounterVec
	StageDurationSec *prometheus.HistogramVec
}

// New registers the pipeline collectors on reg.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		HTTPErrorCodes: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "riot_api_http_error_codes_total",
			Help: "Non-2xx HTTP codes returned by the upstream API",
		}, []string{"http_error_code", "category"}),

		LimiterRate: factory.NewGaugeVec(prometheus.GaugeOpts{
			Name: "rate_limiter_location_rate",
			Help: "Observed rate limiter throughput (permits/sec) per location",
		}, []string{"location"}),

		RowsInserted: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "store_rows_inserted_total",
			Help: "Rows inserted into the analytic store per table",
		}, []string{"table"}),

		BatchInsertSecs: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "store_batch_insert_duration_seconds",
			Help:    "Duration of batched inserts into the analytic store",
			Buckets: prometheus.DefBuckets,
		}),

		StageRunsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "pipeline_stage_runs_total",
			Help: "Stage runs by outcome",
		}, []string{"stage", "outcome"}),

		StageDurationSec: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "pipeline_stage_duration_seconds",
			Help:    "Wall-clock duration of stage runs",
			Buckets: prometheus.ExponentialBuckets(1, 4, 10),
		}, []string{"stage"}),
	}
}

// ObserveHTTPError bumps the per-code counter for a non-2xx response.
func (m *Metrics) ObserveHTTPError(code int) {
	status, category := ClassifyHTTPCode(code)
	m.HTTPErrorCodes.WithLabelValues(status, category).Inc()
}

// ExportLimiterRate records the observed permit rate for a location.
func (m *Metrics) ExportLimiterRate(location string, rate float64) {
	m.LimiterRate.WithLabelValues(location).Set(rate)
}
