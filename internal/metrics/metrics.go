// Package metrics exposes Prometheus collectors for the dataset write
// pipeline. A nil *Write is valid and records nothing.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	namespace      = "h5stream"
	writeSubsystem = "write"

	kindLabelKey = "kind"
)

// Write holds the write pipeline collectors.
type Write struct {
	chunks         prometheus.Counter
	bytes          prometheus.Counter
	datasets       prometheus.Counter
	failures       *prometheus.CounterVec
	commitDuration prometheus.Histogram
}

// NewWrite creates the collectors and registers them with reg.
func NewWrite(reg prometheus.Registerer) (*Write, error) {
	m := &Write{
		chunks: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: writeSubsystem,
			Name:      "chunks_total",
			Help:      "Number of chunks written to containers",
		}),
		bytes: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: writeSubsystem,
			Name:      "bytes_total",
			Help:      "Chunk bytes written after filtering",
		}),
		datasets: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: writeSubsystem,
			Name:      "datasets_total",
			Help:      "Number of datasets committed successfully",
		}),
		failures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "commit_failures_total",
			Help:      "Number of dataset commits that failed, by error kind",
		}, []string{kindLabelKey}),
		commitDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "commit_duration_seconds",
			Help:      "Time spent committing one dataset",
			Buckets:   prometheus.ExponentialBuckets(0.001, 4, 10),
		}),
	}
	for _, c := range []prometheus.Collector{m.chunks, m.bytes, m.datasets, m.failures, m.commitDuration} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// AddChunk records one chunk of n stored bytes.
func (m *Write) AddChunk(n uint64) {
	if m == nil {
		return
	}
	m.chunks.Inc()
	m.bytes.Add(float64(n))
}

// ObserveCommit records a finished commit. kind is empty on success and
// names the failure otherwise.
func (m *Write) ObserveCommit(d time.Duration, kind string) {
	if m == nil {
		return
	}
	m.commitDuration.Observe(d.Seconds())
	if kind == "" {
		m.datasets.Inc()
		return
	}
	m.failures.With(prometheus.Labels{kindLabelKey: kind}).Inc()
}
