// Package datadog implements a Datadog backend for the internal/metrics
// package.
//
// Submitting only once at process exit makes Datadog dashboards awkward
// for long jobs (a single spike rather than a time series), so this
// backend buffers emissions in memory, flushes them on a ticker (default
// once per minute), and flushes one final time on Close.
//
// Concurrency model:
//   - pipeline goroutines may call IncCounter/ObserveHistogram at any time
//   - Flush snapshots and resets the buffers under a mutex, then submits
//     out of lock
//   - the flush loop calls Flush periodically; Close stops the loop
//
// If the process dies with SIGKILL or OOM the final flush never runs; no
// backend can fix that.
package datadog

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/jimmy-nguyen-data-science/predicting-flight-delays/internal/metrics"

	dd "github.com/DataDog/datadog-api-client-go/v2/api/datadog"
	"github.com/DataDog/datadog-api-client-go/v2/api/datadogV2"
)

// Options controls Datadog backend configuration.
type Options struct {
	// JobName becomes tag "job:<name>" on every metric. If empty,
	// defaults to "wrangle".
	JobName string

	// Tags are extra Datadog tags (e.g. []string{"env:prod", "service:wrangle"}).
	Tags []string

	// FlushEvery controls how often buffered metrics are submitted.
	// If <= 0, defaults to 60 seconds.
	FlushEvery time.Duration

	// Unexported test seams. Production code never sets them; unit tests
	// use them to avoid real network submission and nondeterministic
	// clocks and tickers.
	now       func() time.Time
	newTicker func(d time.Duration) *time.Ticker
	submitter metricsSubmitter
}

// metricsSubmitter is the minimal slice of the Datadog SDK needed to
// submit metrics. The SDK exposes a concrete *datadogV2.MetricsApi, which
// cannot be stubbed without real HTTP; Backend depends on this interface
// instead so tests can substitute a fake.
type metricsSubmitter interface {
	SubmitMetrics(ctx context.Context, body datadogV2.MetricPayload, params ...datadogV2.SubmitMetricsOptionalParameters) (datadogV2.IntakePayloadAccepted, *http.Response, error)
}

// Backend implements metrics.Backend for Datadog.
type Backend struct {
	api metricsSubmitter
	ctx context.Context

	flushEvery time.Duration
	stopCh     chan struct{}
	doneCh     chan struct{}

	baseTags []string

	// now and newTicker are injected for deterministic tests. Production
	// uses time.Now and time.NewTicker.
	now       func() time.Time
	newTicker func(d time.Duration) *time.Ticker

	mu sync.Mutex

	// Counters: operator node executions, row flow, failed casts, model
	// fit activity.
	nodeCounts    map[string]float64 // operator+status -> count
	rowCounts     map[string]float64 // kind -> count
	castErrCounts map[string]float64 // target type -> count
	fitCounts     map[string]float64 // operator -> fresh fits
	cacheHits     map[string]float64 // operator -> cache hits

	// Histogram samples: node wall time plus source/sink volume.
	nodeDur     map[string][]float64 // operator+status -> seconds
	sourceBytes map[string][]float64 // format -> bytes per load
	sinkBytes   map[string][]float64 // format -> bytes per store
}

func resolveEnvTag() string {
	if v := strings.TrimSpace(os.Getenv("ENV")); v != "" {
		return "env:" + v
	}
	if v := strings.TrimSpace(os.Getenv("DD_ENV")); v != "" {
		return "env:" + v
	}
	return "env:unknown"
}

func (b *Backend) loop() {
	defer close(b.doneCh)

	t := b.newTicker(b.flushEvery)
	defer t.Stop()

	for {
		select {
		case <-t.C:
			_ = b.Flush()
		case <-b.stopCh:
			return
		}
	}
}

// Close stops the background flush loop and performs one final Flush.
//
// Errors:
//   - Returns any error from the final Flush submission.
//   - Calling Close twice panics (stopCh is closed twice). The backend is
//     process-lifetime; close it once.
func (b *Backend) Close() error {
	close(b.stopCh)
	<-b.doneCh
	return b.Flush()
}

// NewBackend constructs a Datadog backend using the official client.
//
// Edge cases:
//   - If opts.FlushEvery <= 0, defaults to 60s.
//   - If opts.JobName is empty, defaults to "wrangle".
//   - Environment tag selection uses ENV then DD_ENV, otherwise env:unknown.
//
// Errors:
//   - Client construction is not expected to fail under normal
//     conditions; network errors surface from Flush.
func NewBackend(parent context.Context, opts Options) (*Backend, error) {
	job := opts.JobName
	if job == "" {
		job = "wrangle"
	}

	flushEvery := opts.FlushEvery
	if flushEvery <= 0 {
		flushEvery = 60 * time.Second
	}

	envTag := resolveEnvTag()
	baseTags := make([]string, 0, 2+len(opts.Tags))
	baseTags = append(baseTags, envTag, "job:"+job)
	baseTags = append(baseTags, opts.Tags...)

	nowFn := opts.now
	if nowFn == nil {
		nowFn = time.Now
	}
	newTicker := opts.newTicker
	if newTicker == nil {
		newTicker = time.NewTicker
	}

	ctx := dd.NewDefaultContext(parent)

	submitter := opts.submitter
	if submitter == nil {
		cfg := dd.NewConfiguration()
		client := dd.NewAPIClient(cfg)
		submitter = datadogV2.NewMetricsApi(client)
	}

	b := &Backend{
		api:        submitter,
		ctx:        ctx,
		flushEvery: flushEvery,
		stopCh:     make(chan struct{}),
		doneCh:     make(chan struct{}),

		baseTags: baseTags,

		now:       nowFn,
		newTicker: newTicker,

		nodeCounts:    make(map[string]float64),
		rowCounts:     make(map[string]float64),
		castErrCounts: make(map[string]float64),
		fitCounts:     make(map[string]float64),
		cacheHits:     make(map[string]float64),
		nodeDur:       make(map[string][]float64),
		sourceBytes:   make(map[string][]float64),
		sinkBytes:     make(map[string][]float64),
	}

	go b.loop()
	return b, nil
}

// IncCounter implements metrics.Backend. Unknown metric names are
// ignored.
func (b *Backend) IncCounter(name string, delta float64, labels metrics.Labels) {
	if delta <= 0 {
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	switch name {
	case metrics.NodeTotal:
		k := opStatusKey(labels["operator"], labels["status"])
		b.nodeCounts[k] += delta

	case metrics.RowsTotal:
		kind := labels["kind"]
		if kind == "" {
			return
		}
		b.rowCounts[kind] += delta

	case metrics.CastErrorsTotal:
		typ := labels["type"]
		if typ == "" {
			typ = "unknown"
		}
		b.castErrCounts[typ] += delta

	case metrics.ModelFitTotal:
		b.fitCounts[operatorLabel(labels)] += delta

	case metrics.ModelCacheHitsTotal:
		b.cacheHits[operatorLabel(labels)] += delta
	}
}

func operatorLabel(labels metrics.Labels) string {
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

	b.mu.Lock()
	defer b.mu.Unlock()

	switch name {
	case metrics.NodeDurationSeconds:
		k := opStatusKey(labels["operator"], labels["status"])
		b.nodeDur[k] = append(b.nodeDur[k], value)

	case metrics.SourceBytes:
		format := labels["format"]
		if format == "" {
			format = "unknown"
		}
		b.sourceBytes[format] = append(b.sourceBytes[format], value)

	case metrics.SinkBytes:
		format := labels["format"]
		if format == "" {
			format = "unknown"
		}
		b.sinkBytes[format] = append(b.sinkBytes[format], value)
	}
}

// snapshot is the buffered state a single Flush submits. Flush must reset
// the buffers under the lock but submit out of lock; snapshot separates
// collect-and-reset from payload building.
type snapshot struct {
	nodeCounts    map[string]float64
	rowCounts     map[string]float64
	castErrCounts map[string]float64
	fitCounts     map[string]float64
	cacheHits     map[string]float64

	nodeDur     map[string][]float64
	sourceBytes map[string][]float64
	sinkBytes   map[string][]float64
}

// snapshotAndReset grabs the buffered metrics and resets the buffers.
// Must be called with no lock held; it takes the lock internally and
// returns detached maps.
func (b *Backend) snapshotAndReset() snapshot {
	b.mu.Lock()
	defer b.mu.Unlock()

	s := snapshot{
		nodeCounts:    b.nodeCounts,
		rowCounts:     b.rowCounts,
		castErrCounts: b.castErrCounts,
		fitCounts:     b.fitCounts,
		cacheHits:     b.cacheHits,

		nodeDur:     b.nodeDur,
		sourceBytes: b.sourceBytes,
		sinkBytes:   b.sinkBytes,
	}

	b.nodeCounts = make(map[string]float64)
	b.rowCounts = make(map[string]float64)
	b.castErrCounts = make(map[string]float64)
	b.fitCounts = make(map[string]float64)
	b.cacheHits = make(map[string]float64)
	b.nodeDur = make(map[string][]float64)
	b.sourceBytes = make(map[string][]float64)
	b.sinkBytes = make(map[string][]float64)

	return s
}

// isEmpty returns true if the snapshot contains no data to submit.
func (s snapshot) isEmpty() bool {
	return len(s.nodeCounts) == 0 &&
		len(s.rowCounts) == 0 &&
		len(s.castErrCounts) == 0 &&
		len(s.fitCounts) == 0 &&
		len(s.cacheHits) == 0 &&
		len(s.nodeDur) == 0 &&
		len(s.sourceBytes) == 0 &&
		len(s.sinkBytes) == 0
}

// Flush submits buffered metrics to Datadog and resets local buffers.
//
// Errors:
//   - Returns any error from Datadog submission.
//   - Returns nil if there is nothing to submit.
//
// Edge cases:
//   - Safe to call concurrently with IncCounter/ObserveHistogram.
//   - Buffers reset even when submission fails, so a broken intake never
//     blocks future writes. Delivery is best effort.
func (b *Backend) Flush() error {
	snap := b.snapshotAndReset()
	if snap.isEmpty() {
		return nil
	}

	nowUnix := b.now().Unix()

	series := b.buildSeries(snap, nowUnix)
	payload := datadogV2.MetricPayload{Series: series}

	_, _, err := b.api.SubmitMetrics(b.ctx, payload, *datadogV2.NewSubmitMetricsOptionalParameters())
	return err
}

// buildSeries constructs Datadog series for a snapshot at a fixed
// timestamp. It is pure (no locks, network, or clocks) and centralizes
// the naming and tagging contract.
func (b *Backend) buildSeries(s snapshot, nowUnix int64) []datadogV2.MetricSeries {
	addCount := func(metric string, value float64, tags []string) datadogV2.MetricSeries {
		return datadogV2.MetricSeries{
			Metric: metric,
			Type:   datadogV2.METRICINTAKETYPE_COUNT.Ptr(),
			Points: []datadogV2.MetricPoint{
				{Timestamp: dd.PtrInt64(nowUnix), Value: dd.PtrFloat64(value)},
			},
			Tags: tags,
		}
	}

	series := make([]datadogV2.MetricSeries, 0, len(s.nodeCounts)+len(s.rowCounts)+64)

	for k, v := range s.nodeCounts {
		if v == 0 {
			continue
		}
		op, status := splitOpStatusKey(k)
		tags := withTags(b.baseTags, "operator:"+op, "status:"+status)
		series = append(series, addCount("wrangle.node.total", v, tags))
	}

	for kind, v := range s.rowCounts {
		if v == 0 {
			continue
		}
		tags := withTags(b.baseTags, "kind:"+kind)
		series = append(series, addCount("wrangle.rows.total", v, tags))
	}

	for typ, v := range s.castErrCounts {
		if v == 0 {
			continue
		}
		tags := withTags(b.baseTags, "type:"+typ)
		series = append(series, addCount("wrangle.cast_errors.total", v, tags))
	}

	for op, v := range s.fitCounts {
		if v == 0 {
			continue
		}
		tags := withTags(b.baseTags, "operator:"+op)
		series = append(series, addCount("wrangle.model_fit.total", v, tags))
	}
	for op, v := range s.cacheHits {
		if v == 0 {
			continue
		}
		tags := withTags(b.baseTags, "operator:"+op)
		series = append(series, addCount("wrangle.model_cache_hits.total", v, tags))
	}

	for k, samples := range s.nodeDur {
		op, status := splitOpStatusKey(k)
		tags := withTags(b.baseTags, "operator:"+op, "status:"+status)
		addPercentiles(&series, "wrangle.node.duration_seconds", tags, samples, nowUnix)
	}

	for format, samples := range s.sourceBytes {
		tags := withTags(b.baseTags, "format:"+format)
		addPercentiles(&series, "wrangle.source.bytes", tags, samples, nowUnix)
	}
	for format, samples := range s.sinkBytes {
		tags := withTags(b.baseTags, "format:"+format)
		addPercentiles(&series, "wrangle.sink.bytes", tags, samples, nowUnix)
	}

	return series
}

// addPercentiles appends a fixed set of percentile gauges for a sample
// set.
//
// Edge cases:
//   - If samples is empty, it does nothing.
//   - It sorts a copy of samples, never the input.
func addPercentiles(series *[]datadogV2.MetricSeries, metricPrefix string, tags []string, samples []float64, nowUnix int64) {
	if len(samples) == 0 {
		return
	}
	cp := append([]float64(nil), samples...)
	sort.Float64s(cp)

	*series = append(*series, gaugeSeries(metricPrefix+".p50", percentileNearestRank(cp, 0.50), tags, nowUnix))
	*series = append(*series, gaugeSeries(metricPrefix+".p90", percentileNearestRank(cp, 0.90), tags, nowUnix))
	*series = append(*series, gaugeSeries(metricPrefix+".p95", percentileNearestRank(cp, 0.95), tags, nowUnix))
	*series = append(*series, gaugeSeries(metricPrefix+".p99", percentileNearestRank(cp, 0.99), tags, nowUnix))
	*series = append(*series, gaugeSeries(metricPrefix+".max", cp[len(cp)-1], tags, nowUnix))
	*series = append(*series, gaugeSeries(metricPrefix+".samples", float64(len(cp)), tags, nowUnix))
}

func gaugeSeries(metric string, value float64, tags []string, nowUnix int64) datadogV2.MetricSeries {
	return datadogV2.MetricSeries{
		Metric: metric,
		Type:   datadogV2.METRICINTAKETYPE_GAUGE.Ptr(),
		Points: []datadogV2.MetricPoint{
			{Timestamp: dd.PtrInt64(nowUnix), Value: dd.PtrFloat64(value)},
		},
		Tags: tags,
	}
}

func opStatusKey(op, status string) string {
	return op + "\x00" + status
}

func splitOpStatusKey(k string) (op, status string) {
	parts := strings.SplitN(k, "\x00", 2)
	if len(parts) == 2 {
		return parts[0], parts[1]
	}
	return k, "unknown"
}

func withTags(base []string, extras ...string) []string {
	out := make([]string, 0, len(base)+len(extras))
	out = append(out, base...)
	out = append(out, extras...)
	return out
}

func percentileNearestRank(s []float64, p float64) float64 {
	n := len(s)
	if n == 0 {
		return 0
	}
	if p <= 0 {
		return s[0]
	}
	if p >= 1 {
		return s[n-1]
	}
	idx := int(p*float64(n-1) + 0.5)
	if idx < 0 {
		idx = 0
	}
	if idx >= n {
		idx = n - 1
	}
	return s[idx]
}

var _ metrics.Backend = (*Backend)(nil)

// ParseTagsCSV parses comma-separated tags like "env:prod,service:wrangle".
func ParseTagsCSV(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

func wrapInitErr(err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("datadog metrics init: %w", err)
}
