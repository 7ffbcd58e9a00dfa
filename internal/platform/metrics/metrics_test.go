package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestObserveRequest(t *testing.T) {
	m := New(prometheus.NewRegistry())

	m.ObserveRequest("get_watch", OutcomeSuccess, 20*time.Millisecond)
	m.ObserveRequest("get_watch", OutcomeFailed, 10*time.Millisecond)
	m.ObserveRequest("get_watch", OutcomeRateLimited, 0)
	m.ObserveRequest("list_watches", OutcomeSuccess, 30*time.Millisecond)

	assert.InDelta(t, 3, testutil.ToFloat64(m.RequestsTotal.WithLabelValues("get_watch")), 1e-9)
	assert.InDelta(t, 1, testutil.ToFloat64(m.RequestsSuccess.WithLabelValues("get_watch")), 1e-9)
	assert.InDelta(t, 1, testutil.ToFloat64(m.RequestsFailed.WithLabelValues("get_watch")), 1e-9)
	assert.InDelta(t, 1, testutil.ToFloat64(m.RequestsRateLimited.WithLabelValues("get_watch")), 1e-9)
	assert.Equal(t, 2, testutil.CollectAndCount(m.RequestDuration))
}

func TestSnapshot(t *testing.T) {
	m := New(prometheus.NewRegistry())

	t.Run("empty registry", func(t *testing.T) {
		snap, err := m.Snapshot()
		require.NoError(t, err)
		assert.Zero(t, snap.Requests.Total)
		assert.Zero(t, snap.Requests.SuccessRate)
		assert.Empty(t, snap.ByTool)
	})

	m.ObserveRequest("get_watch", OutcomeSuccess, 20*time.Millisecond)
	m.ObserveRequest("get_watch", OutcomeFailed, 10*time.Millisecond)
	m.ObserveRequest("get_watch", OutcomeRateLimited, 0)
	m.ObserveRequest("list_watches", OutcomeSuccess, 30*time.Millisecond)

	t.Run("aggregates per tool", func(t *testing.T) {
		snap, err := m.Snapshot()
		require.NoError(t, err)

		assert.Equal(t, RequestCounts{
			Total:       4,
			Success:     2,
			Failed:      1,
			RateLimited: 1,
			SuccessRate: 50,
		}, snap.Requests)
		assert.Equal(t, []string{"get_watch", "list_watches"}, snap.Tools())

		gw := snap.ByTool["get_watch"]
		assert.Equal(t, uint64(2), gw.Count)
		assert.Equal(t, uint64(1), gw.Errors)
		assert.InDelta(t, 30, gw.DurationMS, 0.01)

		assert.InDelta(t, 60, snap.Performance.TotalDurationMS, 0.01)
		assert.InDelta(t, 30, snap.Performance.AvgDurationMS, 0.01)
		assert.GreaterOrEqual(t, snap.UptimeSeconds, 0.0)
	})
}
