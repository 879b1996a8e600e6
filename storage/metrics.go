package storage

import (
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Query labels used by RepositoryMetrics.
const (
	QueryTime     = "time"
	QueryLocation = "location"
)

// RepositoryMetrics holds the collectors a Repository updates.
type RepositoryMetrics struct {
	RecordsAdded   prometheus.Counter
	AddFailures    prometheus.Counter
	SkippedOffsets prometheus.Counter
	FallbackScans  *prometheus.CounterVec
	QueryDuration  *prometheus.HistogramVec
}

// NewRepositoryMetrics creates the collectors and registers them on registerer.
// A nil registerer leaves them unregistered.
func NewRepositoryMetrics(registerer prometheus.Registerer) *RepositoryMetrics {
	m := &RepositoryMetrics{}

	m.RecordsAdded = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "records_added_total",
		Help: "Total number of records stored.",
	})

	m.AddFailures = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "add_failures_total",
		Help: "Total number of failed record additions.",
	})

	m.SkippedOffsets = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "skipped_offsets_total",
		Help: "Total number of offsets skipped because the frame could not be read or decoded.",
	})

	m.FallbackScans = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "fallback_scans_total",
		Help: "Total number of queries answered by a full log scan instead of an index.",
	}, []string{"query"})

	m.QueryDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "query_duration_seconds",
		Help:    "Duration of repository queries.",
		Buckets: prometheus.DefBuckets,
	}, []string{"query"})

	if registerer == nil {
		return m
	}

	reg := prometheus.WrapRegistererWithPrefix("spacedb_repository_", registerer)
	m.RecordsAdded = register(reg, m.RecordsAdded)
	m.AddFailures = register(reg, m.AddFailures)
	m.SkippedOffsets = register(reg, m.SkippedOffsets)
	m.FallbackScans = register(reg, m.FallbackScans)
	m.QueryDuration = register(reg, m.QueryDuration)
	return m
}

// register returns the collector already registered under the same
// descriptor, so repositories sharing a registerer share counters.
func register[C prometheus.Collector](reg prometheus.Registerer, c C) C {
	if err := reg.Register(c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(C); ok {
				return existing
			}
		}
	}
	return c
}

// ObserveQuery records the duration of a query that began at start.
func (m *RepositoryMetrics) ObserveQuery(query string, start time.Time) {
	m.QueryDuration.WithLabelValues(query).Observe(time.Since(start).Seconds())
}
