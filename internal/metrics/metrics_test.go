package metrics

import (
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestMetrics_Counters(t *testing.T) {
	m := New(prometheus.NewRegistry())

	m.Mutation("spend", OutcomeOK)
	m.Mutation("spend", OutcomeOK)
	m.Mutation("reclaim", OutcomeRejected)
	assert.Equal(t, 2.0, testutil.ToFloat64(m.mutations.WithLabelValues("spend", OutcomeOK)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.mutations.WithLabelValues("reclaim", OutcomeRejected)))

	m.Broadcast("roomUpdate", nil)
	m.Broadcast("roomUpdate", errors.New("redis down"))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.broadcasts.WithLabelValues("roomUpdate")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.broadcastErrors))

	m.QueueStarted()
	m.QueueStarted()
	m.QueueStopped()
	assert.Equal(t, 1.0, testutil.ToFloat64(m.serializerRooms))
}

func TestMetrics_NilSafe(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.Mutation("join", OutcomeOK)
		m.Broadcast("roomUpdate", nil)
		m.QueueStarted()
		m.QueueStopped()
	})
}
