package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewWithRegistry(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewWithRegistry(reg)

	require.NotNil(t, m)
	require.NotNil(t, m.HTTPRequestsTotal)
	require.NotNil(t, m.SeatLocksTotal)
	require.NotNil(t, m.DistributedLockDuration)
	require.NotNil(t, m.ExpiredSeatsReclaimed)
	require.NotNil(t, m.BookingsTotal)
}

func TestMetrics_Counters(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewWithRegistry(reg)

	t.Run("座席ロックの試行回数を記録できる", func(t *testing.T) {
		m.SeatLocksTotal.WithLabelValues("success").Inc()
		m.SeatLocksTotal.WithLabelValues("success").Inc()
		m.SeatLocksTotal.WithLabelValues("unavailable").Inc()

		assert.Equal(t, float64(2), testutil.ToFloat64(m.SeatLocksTotal.WithLabelValues("success")))
		assert.Equal(t, float64(1), testutil.ToFloat64(m.SeatLocksTotal.WithLabelValues("unavailable")))
	})

	t.Run("回収座席数を記録できる", func(t *testing.T) {
		m.ExpiredSeatsReclaimed.Add(3)
		assert.Equal(t, float64(3), testutil.ToFloat64(m.ExpiredSeatsReclaimed))
	})

	t.Run("予約操作を記録できる", func(t *testing.T) {
		m.BookingsTotal.WithLabelValues("create", "success").Inc()
		assert.Equal(t, float64(1), testutil.ToFloat64(m.BookingsTotal.WithLabelValues("create", "success")))
	})
}

func TestMetrics_DuplicateRegistrationPanics(t *testing.T) {
	reg := prometheus.NewRegistry()
	NewWithRegistry(reg)

	assert.Panics(t, func() {
		NewWithRegistry(reg)
	})
}
