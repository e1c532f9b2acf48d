package delivery

import (
	"context"
	"errors"
	"log"
	"net"
	"net/netip"
	"time"

	"github.com/aqez/undaunted/internal/undaunted/metrics"
	"github.com/aqez/undaunted/internal/undaunted/packets"
)

func (s *service) receiveLoop(ctx context.Context) error {
	buf := make([]byte, s.options.ReceiveBufferSize)
	for {
		if ctx.Err() != nil {
			return nil
		}

		n, from, err := s.socket.RecvFrom(buf)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			if errors.Is(err, net.ErrClosed) {
				// closed from outside, the send loop has nothing left to write to
				log.Printf("Socket closed, receive loop stopping\n")
				s.cancel()
				return nil
			}
			log.Printf("Error receiving datagram: %s\n", err)
			s.recorder.Failed(metrics.ReceiveFailure)
		} else {
			s.handleDatagram(buf[:n], from)
		}

		if !s.yield(ctx) {
			return nil
		}
	}
}

// yield pauses the receive loop and reports whether it should continue.
func (s *service) yield(ctx context.Context) bool {
	if s.options.ReceiveYield <= 0 {
		return true
	}
	timer := s.clock.Timer(s.options.ReceiveYield)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}

func (s *service) handleDatagram(data []byte, from netip.AddrPort) {
	packet, err := s.encoder.Decode(data)
	if err != nil {
		log.Printf("Error decoding datagram from %s: %s\n", from, err)
		s.recorder.Failed(metrics.DecodeFailure)
		return
	}

	received := AddressedPacket{Packet: packet, Address: from}
	if ack, ok := packet.Payload.(packets.Ack); ok {
		s.handleAck(ack, from)
		return
	}
	s.handleTalk(received)
}

func (s *service) handleAck(ack packets.Ack, from netip.AddrPort) {
	record, ok := s.unacked.remove(from, ack.AckedID)
	if !ok {
		// duplicate ack, or the packet was already requeued
		s.counters.acksUnmatched.Add(1)
		s.recorder.UnmatchedAck()
		return
	}

	s.counters.acksMatched.Add(1)
	var sample time.Duration
	if record.Attempts == 1 {
		sample = s.clock.Now().Sub(record.SentAt)
		s.estimator.Update(sample)
	}
	s.recorder.Acked(sample)
}

func (s *service) handleTalk(received AddressedPacket) {
	if s.options.MaxInbound > 0 && s.inbound.len() >= s.options.MaxInbound {
		// not acked, the sender retransmits later
		log.Printf("%s Inbound queue full, dropping packet\n", logPrefix(received))
		s.counters.dropped.Add(1)
		s.recorder.Dropped()
		return
	}

	s.inbound.add(queued{AddressedPacket: received})
	id := received.Packet.ID
	s.outbound.add(queued{
		AddressedPacket: AddressedPacket{Packet: packets.NewPacket(id, packets.Ack{AckedID: id}), Address: received.Address},
	})
	s.counters.received.Add(1)
	s.recorder.Received()
}
