package metrics

import (
	"testing"
	"time"

	"github.com/aqez/undaunted/internal/undaunted/packets"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPrometheusRecorder(testing *testing.T) {
	// GIVEN
	registry := prometheus.NewRegistry()
	underTest := NewPrometheus(registry, "node-a").(*prom)

	// WHEN
	underTest.Sent(packets.KindTalk)
	underTest.Sent(packets.KindTalk)
	underTest.Sent(packets.KindAck)
	underTest.Retransmitted()
	underTest.Acked(10 * time.Millisecond)
	underTest.UnmatchedAck()
	underTest.Received()
	underTest.Dropped()
	underTest.Failed(DecodeFailure)

	// THEN
	assert.Equal(testing, 2.0, testutil.ToFloat64(underTest.sent.WithLabelValues("talk")))
	assert.Equal(testing, 1.0, testutil.ToFloat64(underTest.sent.WithLabelValues("ack")))
	assert.Equal(testing, 1.0, testutil.ToFloat64(underTest.retransmitted))
	assert.Equal(testing, 1.0, testutil.ToFloat64(underTest.acked))
	assert.Equal(testing, 1.0, testutil.ToFloat64(underTest.unmatched))
	assert.Equal(testing, 1.0, testutil.ToFloat64(underTest.received))
	assert.Equal(testing, 1.0, testutil.ToFloat64(underTest.dropped))
	assert.Equal(testing, 1.0, testutil.ToFloat64(underTest.failures.WithLabelValues("decode")))

	families, err := registry.Gather()
	require.NoError(testing, err)
	for _, family := range families {
		for _, metric := range family.GetMetric() {
			labels := map[string]string{}
			for _, label := range metric.GetLabel() {
				labels[label.GetName()] = label.GetValue()
			}
			assert.Equal(testing, "node-a", labels["node"])
		}
	}
}

func TestTwoRecordersOnSeparateRegistries(testing *testing.T) {
	// GIVEN / WHEN
	first := NewPrometheus(prometheus.NewRegistry(), "a")
	second := NewPrometheus(prometheus.NewRegistry(), "b")

	// THEN
	assert.NotNil(testing, first)
	assert.NotNil(testing, second)
}

func TestDummyRecorder(testing *testing.T) {
	// GIVEN
	underTest := NewDummy()

	// WHEN / THEN
	assert.NotPanics(testing, func() {
		underTest.Sent(packets.KindAck)
		underTest.Acked(time.Second)
		underTest.Failed(SendFailure)
	})
}
