// Package prompush implements a Prometheus Pushgateway backend for the
// internal/metrics package. Batch jobs cannot be scraped, so the backend
// accumulates into a private registry and pushes the whole job group on
// Flush; Push replaces the previous state for the job, which is what a
// cumulative registry wants.
package prompush

import (
	"fmt"
	"strings"

	"github.com/jimmy-nguyen-data-science/predicting-flight-delays/internal/metrics"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/push"
)

// Backend implements metrics.Backend against a Pushgateway.
type Backend struct {
	pusher *push.Pusher

	nodeTotal   *prometheus.CounterVec
	rowsTotal   *prometheus.CounterVec
	castErrors  *prometheus.CounterVec
	modelFits   *prometheus.CounterVec
	cacheHits   *prometheus.CounterVec
	nodeDur     *prometheus.HistogramVec
	sourceBytes *prometheus.HistogramVec
	sinkBytes   *prometheus.HistogramVec
}

// NewBackend constructs a Pushgateway backend for the given job name and
// gateway base URL (e.g. "http://localhost:9091"). Nothing is pushed
// until Flush or Close.
func NewBackend(jobName, gatewayURL string) (*Backend, error) {
	if strings.TrimSpace(gatewayURL) == "" {
		return nil, fmt.Errorf("prompush: empty pushgateway URL")
	}
	if jobName == "" {
		jobName = "wrangle"
	}

	b := &Backend{
		nodeTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: metrics.NodeTotal,
			Help: "Operator node executions by operator and status.",
		}, []string{"operator", "status"}),
		rowsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: metrics.RowsTotal,
			Help: "Dataset rows crossing a source or sink boundary.",
		}, []string{"kind"}),
		castErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: metrics.CastErrorsTotal,
			Help: "Cells that failed a type cast, by target type.",
		}, []string{"type"}),
		modelFits: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: metrics.ModelFitTotal,
			Help: "Fresh model fits by operator.",
		}, []string{"operator"}),
		cacheHits: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: metrics.ModelCacheHitsTotal,
			Help: "Fitted models restored from trained parameters by operator.",
		}, []string{"operator"}),
		nodeDur: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    metrics.NodeDurationSeconds,
			Help:    "Per-node wall time in seconds.",
			Buckets: prometheus.DefBuckets,
		}, []string{"operator", "status"}),
		sourceBytes: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    metrics.SourceBytes,
			Help:    "Bytes read per source load.",
			Buckets: prometheus.ExponentialBuckets(1024, 4, 10),
		}, []string{"format"}),
		sinkBytes: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    metrics.SinkBytes,
			Help:    "Bytes written per sink store.",
			Buckets: prometheus.ExponentialBuckets(1024, 4, 10),
		}, []string{"format"}),
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(b.nodeTotal, b.rowsTotal, b.castErrors, b.modelFits, b.cacheHits, b.nodeDur, b.sourceBytes, b.sinkBytes)
	b.pusher = push.New(gatewayURL, jobName).Gatherer(reg)

	return b, nil
}

// IncCounter implements metrics.Backend. Unknown metric names are
// ignored.
func (b *Backend) IncCounter(name string, delta float64, labels metrics.Labels) {
	if delta <= 0 {
		return
	}
	switch name {
	case metrics.NodeTotal:
		b.nodeTotal.WithLabelValues(labels["operator"], labels["status"]).Add(delta)
	case metrics.RowsTotal:
		kind := labels["kind"]
		if kind == "" {
			return
		}
		b.rowsTotal.WithLabelValues(kind).Add(delta)
	case metrics.CastErrorsTotal:
		typ := labels["type"]
		if typ == "" {
			typ = "unknown"
		}
		b.castErrors.WithLabelValues(typ).Add(delta)
	case metrics.ModelFitTotal:
		b.modelFits.WithLabelValues(operator(labels)).Add(delta)
	case metrics.ModelCacheHitsTotal:
		b.cacheHits.WithLabelValues(operator(labels)).Add(delta)
	}
}

func operator(labels metrics.Labels) string {
	if op := labels["operator"]; op != "" {
		return op
	}
	return "unknown"
}

// ObserveHistogram implements metrics.Backend. Unknown metric names are
// ignored.
func (b *Backend) ObserveHistogram(name string, value float64, labels metrics.Labels) {
	if value < 0 {
		return
	}
	switch name {
	case metrics.NodeDurationSeconds:
		b.nodeDur.WithLabelValues(labels["operator"], labels["status"]).Observe(value)
	case metrics.SourceBytes:
		b.sourceBytes.WithLabelValues(format(labels)).Observe(value)
	case metrics.SinkBytes:
		b.sinkBytes.WithLabelValues(format(labels)).Observe(value)
	}
}

func format(labels metrics.Labels) string {
	if f := labels["format"]; f != "" {
		return f
	}
	return "unknown"
}

// Flush pushes the current registry state to the gateway, replacing the
// previous push for this job.
func (b *Backend) Flush() error {
	return b.pusher.Push()
}

// Close performs a final push. The backend holds no other resources.
func (b *Backend) Close() error {
	return b.Flush()
}

var _ metrics.Backend = (*Backend)(nil)
