package storage

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRepositoryMetrics_Unregistered(t *testing.T) {
	m := NewRepositoryMetrics(nil)
	m.RecordsAdded.Inc()
	m.ObserveQuery(QueryTime, time.Now())

	assert.Equal(t, 1.0, testutil.ToFloat64(m.RecordsAdded))
}

func TestNewRepositoryMetrics_SharedRegisterer(t *testing.T) {
	reg := prometheus.NewRegistry()
	a := NewRepositoryMetrics(reg)
	b := NewRepositoryMetrics(reg)

	a.SkippedOffsets.Inc()
	b.SkippedOffsets.Inc()
	assert.Equal(t, 2.0, testutil.ToFloat64(a.SkippedOffsets))

	a.FallbackScans.WithLabelValues(QueryLocation).Inc()
	a.ObserveQuery(QueryLocation, time.Now())

	families, err := reg.Gather()
	require.NoError(t, err)
	var names []string
	for _, f := range families {
		names = append(names, f.GetName())
	}
	assert.Contains(t, names, "spacedb_repository_skipped_offsets_total")
	assert.Contains(t, names, "spacedb_repository_fallback_scans_total")
	assert.Contains(t, names, "spacedb_repository_query_duration_seconds")
}
