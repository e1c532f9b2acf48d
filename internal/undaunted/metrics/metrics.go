package metrics

import (
	"time"

	"github.com/aqez/undaunted/internal/undaunted/packets"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Failure classifies the non-fatal errors the delivery engine absorbs.
type Failure string

const (
	SendFailure    Failure = "send"
	ReceiveFailure Failure = "receive"
	EncodeFailure  Failure = "encode"
	DecodeFailure  Failure = "decode"
)

// Recorder records delivery engine events.
type Recorder interface {
	// Sent records a transmitted packet, retransmissions included
	Sent(kind packets.Kind)

	// Retransmitted records a packet moved back to the outbound queue after a timeout
	Retransmitted()

	// Acked records an ack that matched an unacked packet; rtt is 0 when unknown
	Acked(rtt time.Duration)

	// UnmatchedAck records a duplicate or stale ack
	UnmatchedAck()

	// Received records a talk delivered to the inbound queue
	Received()

	// Dropped records a talk discarded because the inbound queue was full
	Dropped()

	// Failed records a non-fatal error
	Failed(f Failure)
}

type dummy struct{}

// NewDummy constructs a recorder that records nothing.
func NewDummy() Recorder {
	return &dummy{}
}

func (m *dummy) Sent(packets.Kind) {}
func (m *dummy) Retransmitted() {}
func (m *dummy) Acked(time.Duration) {}
func (m *dummy) UnmatchedAck() {}
func (m *dummy) Received() {}
func (m *dummy) Dropped() {}
func (m *dummy) Failed(Failure) {}

type prom struct {
	sent          *prometheus.CounterVec
	retransmitted prometheus.Counter
	acked         prometheus.Counter
	unmatched     prometheus.Counter
	received      prometheus.Counter
	dropped       prometheus.Counter
	failures      *prometheus.CounterVec
	rtt           prometheus.Summary
}

// NewPrometheus constructs a recorder that registers its collectors with reg,
// labelled with the node id.
func NewPrometheus(reg prometheus.Registerer, nodeID string) Recorder {
	factory := promauto.With(prometheus.WrapRegistererWith(prometheus.Labels{"node": nodeID}, reg))
	return &prom{
		sent: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "undaunted_packets_sent_total",
			Help: "The total number of transmitted packets by kind",
		}, []string{"kind"}),
		retransmitted: factory.NewCounter(prometheus.CounterOpts{
			Name: "undaunted_retransmissions_total",
			Help: "The total number of packets requeued after the retransmission timeout",
		}),
		acked: factory.NewCounter(prometheus.CounterOpts{
			Name: "undaunted_acks_matched_total",
			Help: "The total number of acks that matched an unacked packet",
		}),
		unmatched: factory.NewCounter(prometheus.CounterOpts{
			Name: "undaunted_acks_unmatched_total",
			Help: "The total number of duplicate or stale acks",
		}),
		received: factory.NewCounter(prometheus.CounterOpts{
			Name: "undaunted_talks_received_total",
			Help: "The total number of talks delivered to the inbound queue",
		}),
		dropped: factory.NewCounter(prometheus.CounterOpts{
			Name: "undaunted_talks_dropped_total",
			Help: "The total number of talks dropped because the inbound queue was full",
		}),
		failures: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "undaunted_failures_total",
			Help: "The total number of absorbed errors by operation",
		}, []string{"op"}),
		rtt: factory.NewSummary(prometheus.SummaryOpts{
			Name:       "undaunted_rtt_seconds",
			Help:       "Round trip times of packets acked without retransmission",
			Objectives: map[float64]float64{0.5: 0.05, 0.9: 0.01, 0.99: 0.001},
		}),
	}
}

func (m *prom) Sent(kind packets.Kind) {
	m.sent.WithLabelValues(kind.String()).Inc()
}

func (m *prom) Retransmitted() {
	m.retransmitted.Inc()
}

func (m *prom) Acked(rtt time.Duration) {
	m.acked.Inc()
	if rtt > 0 {
		m.rtt.Observe(rtt.Seconds())
	}
}

func (m *prom) UnmatchedAck() {
	m.unmatched.Inc()
}

func (m *prom) Received() {
	m.received.Inc()
}

func (m *prom) Dropped() {
	m.dropped.Inc()
}

func (m *prom) Failed(f Failure) {
	m.failures.WithLabelValues(string(f)).Inc()
}
