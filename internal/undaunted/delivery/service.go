package delivery

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/netip"
	"sync"
	"sync/atomic"
	"time"

	"github.com/aqez/undaunted/internal/undaunted/delivery/rtt"
	"github.com/aqez/undaunted/internal/undaunted/encoder"
	"github.com/aqez/undaunted/internal/undaunted/metrics"
	"github.com/aqez/undaunted/internal/undaunted/packets"
	"github.com/aqez/undaunted/internal/undaunted/socket"
	"github.com/benbjohnson/clock"
	"golang.org/x/sync/errgroup"
)

var (
	// ErrQueueFull is returned by QueueForSend when MaxPending packets are
	// waiting for transmission or acknowledgment
	ErrQueueFull = errors.New("too many pending packets")

	// ErrNilPayload is returned by QueueForSend for a nil payload
	ErrNilPayload = errors.New("payload is nil")

	// ErrUnsupportedPayload is returned by QueueForSend for a payload that is
	// neither a packets.Talk nor a packets.Ack value
	ErrUnsupportedPayload = errors.New("unsupported payload")

	// ErrAlreadyStarted is returned when Start is called a second time
	ErrAlreadyStarted = errors.New("service already started")

	// ErrNotStarted is returned by Stop and Wait before Start
	ErrNotStarted = errors.New("service not started")
)

type Options struct {
	// RetransmitTimeout is the age after which an unacknowledged packet is sent again
	RetransmitTimeout time.Duration

	// SendInterval is the period of the send loop
	SendInterval time.Duration

	// ReceiveYield is the pause after each iteration of the receive loop; 0 disables it
	ReceiveYield time.Duration

	// ReceiveBufferSize is the largest datagram the receive loop accepts
	ReceiveBufferSize int

	// MaxPending bounds queued plus unacknowledged outbound packets; 0 means unbounded
	MaxPending int

	// MaxInbound bounds the received packets waiting for GetPackets; 0 means unbounded
	MaxInbound int

	// RTT configures the round trip time estimator
	RTT rtt.Options

	// Clock is the time source of both loops; nil means the wall clock
	Clock clock.Clock
}

func NewDefaultOptions() Options {
	return Options{
		RetransmitTimeout: time.Second,
		SendInterval:      5 * time.Millisecond,
		ReceiveYield:      time.Millisecond,
		ReceiveBufferSize: socket.MaxDatagramSize,
		MaxPending:        1000000,
		MaxInbound:        1000000,
		RTT:               rtt.NewDefaultOptions(),
	}
}

// AddressedPacket is a packet together with its destination (outbound) or
// origin (inbound).
type AddressedPacket struct {
	Packet  packets.Packet
	Address netip.AddrPort
}

func (p AddressedPacket) String() string {
	return fmt.Sprintf("%s %s", p.Address, p.Packet)
}

// SentRecord tracks a transmitted packet until it is acknowledged or requeued.
type SentRecord struct {
	AddressedPacket

	// SentAt is the time of the latest transmission
	SentAt time.Time

	// Attempts is the number of transmissions so far
	Attempts int
}

// Stats is a point-in-time view of a Service.
type Stats struct {
	Outbound      int
	Inbound       int
	Unacked       int
	Destinations  int
	Sent          uint64
	Retransmitted uint64
	Received      uint64
	AcksMatched   uint64
	AcksUnmatched uint64
	Dropped       uint64
	RTT           rtt.Snapshot
}

// Service delivers payloads to peers at least once, acknowledging what it
// receives and retransmitting what is not acknowledged in time.
type Service interface {
	// QueueForSend assigns the next id for to and queues the payload for transmission
	QueueForSend(payload packets.Payload, to netip.AddrPort) error

	// GetPackets returns and removes every received packet
	GetPackets() []AddressedPacket

	// Start runs the receive and send loops until ctx is done or Stop is called,
	// closing the socket when it is an io.Closer
	Start(ctx context.Context) error

	// Stop ends both loops and waits for them
	Stop() error

	// Wait blocks until both loops have ended
	Wait() error

	Stats() Stats
}

type counters struct {
	sent          atomic.Uint64
	retransmitted atomic.Uint64
	received      atomic.Uint64
	acksMatched   atomic.Uint64
	acksUnmatched atomic.Uint64
	dropped       atomic.Uint64
}

type service struct {
	options   Options
	socket    socket.Socket
	encoder   encoder.EncoderDecoder
	recorder  metrics.Recorder
	clock     clock.Clock
	estimator *rtt.Estimator
	counters  counters

	outbound  *packetQueue
	inbound   *packetQueue
	unacked   *unackedRegistry
	sequences *sequenceCounters

	// admission makes the MaxPending check and the enqueue of QueueForSend atomic
	admission sync.Mutex

	lifecycle sync.Mutex
	cancel    context.CancelFunc
	group     *errgroup.Group
	closeOnce sync.Once
}

// NewService creates a stopped service on top of sock. Zero durations and
// sizes in options fall back to their defaults; a nil recorder records nothing.
func NewService(options Options, sock socket.Socket, encoderDecoder encoder.EncoderDecoder, recorder metrics.Recorder) Service {
	defaults := NewDefaultOptions()
	if options.RetransmitTimeout <= 0 {
		options.RetransmitTimeout = defaults.RetransmitTimeout
	}
	if options.SendInterval <= 0 {
		options.SendInterval = defaults.SendInterval
	}
	if options.ReceiveBufferSize <= 0 {
		options.ReceiveBufferSize = defaults.ReceiveBufferSize
	}
	if options.RTT.HistorySize <= 0 {
		options.RTT = defaults.RTT
	}
	if options.Clock == nil {
		options.Clock = clock.New()
	}
	if recorder == nil {
		recorder = metrics.NewDummy()
	}

	return &service{
		options:   options,
		socket:    sock,
		encoder:   encoderDecoder,
		recorder:  recorder,
		clock:     options.Clock,
		estimator: rtt.NewEstimator(options.RTT),
		outbound:  newPacketQueue(),
		inbound:   newPacketQueue(),
		unacked:   newUnackedRegistry(),
		sequences: newSequenceCounters(),
	}
}

func (s *service) QueueForSend(payload packets.Payload, to netip.AddrPort) error {
	if payload == nil {
		return ErrNilPayload
	}

	s.admission.Lock()
	defer s.admission.Unlock()

	if s.options.MaxPending > 0 && s.outbound.len()+s.unacked.len() >= s.options.MaxPending {
		return ErrQueueFull
	}

	var id uint32
	switch payload := payload.(type) {
	case packets.Ack:
		id = payload.AckedID
	case packets.Talk:
		id = s.sequences.next(to)
	default:
		return fmt.Errorf("%w: %T", ErrUnsupportedPayload, payload)
	}
	s.outbound.add(queued{
		AddressedPacket: AddressedPacket{Packet: packets.NewPacket(id, payload), Address: to},
	})
	return nil
}

func (s *service) GetPackets() []AddressedPacket {
	items := s.inbound.drain()
	result := make([]AddressedPacket, len(items))
	for i, item := range items {
		result[i] = item.AddressedPacket
	}
	return result
}

func (s *service) Start(ctx context.Context) error {
	s.lifecycle.Lock()
	defer s.lifecycle.Unlock()

	if s.group != nil {
		return ErrAlreadyStarted
	}

	ctx, s.cancel = context.WithCancel(ctx)
	group, groupCtx := errgroup.WithContext(ctx)
	group.Go(func() error { return s.receiveLoop(groupCtx) })
	group.Go(func() error { return s.sendLoop(groupCtx) })
	group.Go(func() error {
		// a pending RecvFrom only returns once the socket is closed
		<-groupCtx.Done()
		return s.closeSocket()
	})
	s.group = group
	return nil
}

func (s *service) Stop() error {
	s.lifecycle.Lock()
	group := s.group
	s.lifecycle.Unlock()

	if group == nil {
		return ErrNotStarted
	}
	s.cancel()
	return group.Wait()
}

func (s *service) closeSocket() error {
	var err error
	s.closeOnce.Do(func() {
		if closer, ok := s.socket.(io.Closer); ok {
			if closeErr := closer.Close(); closeErr != nil && !errors.Is(closeErr, net.ErrClosed) {
				err = fmt.Errorf("closing socket: %w", closeErr)
			}
		}
	})
	return err
}

func (s *service) Wait() error {
	s.lifecycle.Lock()
	group := s.group
	s.lifecycle.Unlock()

	if group == nil {
		return ErrNotStarted
	}
	return group.Wait()
}

func (s *service) Stats() Stats {
	return Stats{
		Outbound:      s.outbound.len(),
		Inbound:       s.inbound.len(),
		Unacked:       s.unacked.len(),
		Destinations:  s.sequences.destinations(),
		Sent:          s.counters.sent.Load(),
		Retransmitted: s.counters.retransmitted.Load(),
		Received:      s.counters.received.Load(),
		AcksMatched:   s.counters.acksMatched.Load(),
		AcksUnmatched: s.counters.acksUnmatched.Load(),
		Dropped:       s.counters.dropped.Load(),
		RTT:           s.estimator.Snapshot(),
	}
}

func logPrefix(p AddressedPacket) string {
	return fmt.Sprintf("[%s #%d]", p.Address, p.Packet.ID)
}
