// Package metrics provides the Prometheus collectors of the scoring pipeline.
package metrics

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "anomalystream"

// ShutdownTimeout bounds the graceful shutdown of the metrics endpoint.
const ShutdownTimeout = 5 * time.Second

// PipelineMetrics contains all Prometheus metrics of one detection run.
// A nil *PipelineMetrics records nothing.
type PipelineMetrics struct {
	RecordsPushed prometheus.Counter
	RecordsScored prometheus.Counter
	StreamErrors  *prometheus.CounterVec
	SinkErrors    *prometheus.CounterVec
	AnomalyScore  prometheus.Histogram
	StepDuration  prometheus.Histogram
	QueueDepth    prometheus.Gauge
	registry      *prometheus.Registry
}

// NewPipelineMetrics creates the collectors and registers them with registry.
func NewPipelineMetrics(registry *prometheus.Registry) (*PipelineMetrics, error) {
	m := &PipelineMetrics{registry: registry}
	m.initMetrics()
	if err := registry.Register(m); err != nil {
		return nil, fmt.Errorf("failed to register pipeline metrics: %w", err)
	}
	return m, nil
}

func (m *PipelineMetrics) initMetrics() {
	m.RecordsPushed = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "records_pushed_total",
		Help:      "Records accepted by the ingestion endpoint.",
	})
	m.RecordsScored = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "records_scored_total",
		Help:      "Records that produced an anomaly score.",
	})
	m.StreamErrors = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "stream_errors_total",
		Help:      "Records that terminated the stream, by pipeline stage.",
	}, []string{"stage"})
	m.SinkErrors = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "sink_errors_total",
		Help:      "Failed writes to secondary result sinks, by sink.",
	}, []string{"sink"})
	m.AnomalyScore = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "anomaly_score",
		Help:      "Distribution of raw anomaly scores.",
		Buckets:   prometheus.LinearBuckets(0.1, 0.1, 10),
	})
	m.StepDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "step_duration_seconds",
		Help:      "Time to parse, encode and score one record.",
		Buckets:   prometheus.ExponentialBuckets(0.00005, 2, 14),
	})
	m.QueueDepth = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "queue_depth",
		Help:      "Records waiting in the ingestion queue.",
	})
}

func (m *PipelineMetrics) RecordPushed() {
	if m == nil {
		return
	}
	m.RecordsPushed.Inc()
}

func (m *PipelineMetrics) RecordScored(score float64, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.RecordsScored.Inc()
	m.AnomalyScore.Observe(score)
	m.StepDuration.Observe(elapsed.Seconds())
}

func (m *PipelineMetrics) StreamError(stage string) {
	if m == nil {
		return
	}
	m.StreamErrors.WithLabelValues(stage).Inc()
}

func (m *PipelineMetrics) SinkError(sink string) {
	if m == nil {
		return
	}
	m.SinkErrors.WithLabelValues(sink).Inc()
}

func (m *PipelineMetrics) SetQueueDepth(depth int) {
	if m == nil {
		return
	}
	m.QueueDepth.Set(float64(depth))
}

// Describe implements the prometheus.Collector interface.
func (m *PipelineMetrics) Describe(ch chan<- *prometheus.Desc) {
	m.RecordsPushed.Describe(ch)
	m.RecordsScored.Describe(ch)
	m.StreamErrors.Describe(ch)
	m.SinkErrors.Describe(ch)
	m.AnomalyScore.Describe(ch)
	m.StepDuration.Describe(ch)
	m.QueueDepth.Describe(ch)
}

// Collect implements the prometheus.Collector interface.
func (m *PipelineMetrics) Collect(ch chan<- prometheus.Metric) {
	m.RecordsPushed.Collect(ch)
	m.RecordsScored.Collect(ch)
	m.StreamErrors.Collect(ch)
	m.SinkErrors.Collect(ch)
	m.AnomalyScore.Collect(ch)
	m.StepDuration.Collect(ch)
	m.QueueDepth.Collect(ch)
}
