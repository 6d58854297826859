package metrics

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewTimer(t *testing.T) {
	timer := NewTimer()
	require.NotNil(t, timer)
	assert.False(t, timer.start.IsZero())
	assert.Less(t, time.Since(timer.start), time.Second)
}

func TestTimerDuration(t *testing.T) {
	timer := NewTimer()
	time.Sleep(20 * time.Millisecond)

	first := timer.Duration()
	assert.GreaterOrEqual(t, first, 20*time.Millisecond)

	time.Sleep(10 * time.Millisecond)
	assert.Greater(t, timer.Duration(), first)
}

func TestTimerObserveDurationVec(t *testing.T) {
	vec := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "test_fetch_seconds",
			Help:    "Test histogram",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"source"},
	)

	NewTimer().ObserveDurationVec(vec, "ceph_osd_tree")

	assert.Equal(t, 1, testutil.CollectAndCount(vec))
}

func TestObserveFetchCountsErrors(t *testing.T) {
	before := testutil.ToFloat64(SourceFetchErrors.WithLabelValues(SourceCephHosts))

	ObserveFetch(SourceCephHosts, NewTimer(), nil)
	ObserveFetch(SourceCephHosts, NewTimer(), errors.New("ssh: exit status 255"))

	after := testutil.ToFloat64(SourceFetchErrors.WithLabelValues(SourceCephHosts))
	assert.Equal(t, before+1, after)
}
