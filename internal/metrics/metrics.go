// Package metrics provides Prometheus metrics for metastore
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for metastore
type Metrics struct {
	// gRPC request metrics
	GrpcRequestsTotal    *prometheus.CounterVec
	GrpcRequestDuration  *prometheus.HistogramVec
	GrpcRequestsInFlight prometheus.Gauge

	// Metadata dataset metrics
	MetadataOperationsTotal   *prometheus.CounterVec
	MetadataOperationDuration *prometheus.HistogramVec
	SearchResultsTotal        prometheus.Counter
	MalformedKeysTotal        *prometheus.CounterVec

	// Store metrics
	DbSizeBytes prometheus.Gauge
	DbRowsTotal prometheus.Gauge

	ServerUptimeSeconds prometheus.GaugeFunc
	ServerStartTime     time.Time
}

// NewMetrics creates all metrics and registers them with reg.
// A nil reg uses the default Prometheus registry.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)

	m := &Metrics{
		ServerStartTime: time.Now(),
	}

	m.GrpcRequestsTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Name: "metastore_grpc_requests_total",
			Help: "Total number of gRPC requests",
		},
		[]string{"method", "status"},
	)

	m.GrpcRequestDuration = factory.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "metastore_grpc_request_duration_seconds",
			Help:    "Duration of gRPC requests in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method"},
	)

	m.GrpcRequestsInFlight = factory.NewGauge(
		prometheus.GaugeOpts{
			Name: "metastore_grpc_requests_in_flight",
			Help: "Number of gRPC requests currently being processed",
		},
	)

	m.MetadataOperationsTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Name: "metastore_metadata_operations_total",
			Help: "Total number of metadata dataset operations",
		},
		[]string{"operation", "status"},
	)

	m.MetadataOperationDuration = factory.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "metastore_metadata_operation_duration_seconds",
			Help:    "Duration of metadata dataset operations in seconds",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		},
		[]string{"operation"},
	)

	m.SearchResultsTotal = factory.NewCounter(
		prometheus.CounterOpts{
			Name: "metastore_search_results_total",
			Help: "Total number of entities returned by searches",
		},
	)

	m.MalformedKeysTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Name: "metastore_malformed_keys_total",
			Help: "Row keys that failed to decode",
		},
		[]string{"operation"},
	)

	m.DbSizeBytes = factory.NewGauge(
		prometheus.GaugeOpts{
			Name: "metastore_db_size_bytes",
			Help: "Current database size in bytes",
		},
	)

	m.DbRowsTotal = factory.NewGauge(
		prometheus.GaugeOpts{
			Name: "metastore_db_rows_total",
			Help: "Total number of value and index rows",
		},
	)

	m.ServerUptimeSeconds = factory.NewGaugeFunc(
		prometheus.GaugeOpts{
			Name: "metastore_server_uptime_seconds",
			Help: "Server uptime in seconds",
		},
		func() float64 { return time.Since(m.ServerStartTime).Seconds() },
	)

	return m
}

// RecordGrpcRequest records a gRPC request with its status
func (m *Metrics) RecordGrpcRequest(method string, status string, duration time.Duration) {
	m.GrpcRequestsTotal.WithLabelValues(method, status).Inc()
	m.GrpcRequestDuration.WithLabelValues(method).Observe(duration.Seconds())
}

// RecordMetadataOperation records a dataset operation
func (m *Metrics) RecordMetadataOperation(operation string, status string, duration time.Duration) {
	m.MetadataOperationsTotal.WithLabelValues(operation, status).Inc()
	m.MetadataOperationDuration.WithLabelValues(operation).Observe(duration.Seconds())
}

// RecordMalformedKey counts a row key that failed to decode
func (m *Metrics) RecordMalformedKey(operation string) {
	m.MalformedKeysTotal.WithLabelValues(operation).Inc()
}

// UpdateDbStats updates database statistics
func (m *Metrics) UpdateDbStats(sizeBytes int64, rows int) {
	m.DbSizeBytes.Set(float64(sizeBytes))
	m.DbRowsTotal.Set(float64(rows))
}
