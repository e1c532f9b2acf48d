package delivery

import (
	"context"
	"log"
	"time"

	"github.com/aqez/undaunted/internal/undaunted/metrics"
)

// rttHistoryInterval is the period over which the minimum RTT is collected
// into the estimator's history.
const rttHistoryInterval = time.Second

func (s *service) sendLoop(ctx context.Context) error {
	ticker := s.clock.Ticker(s.options.SendInterval)
	defer ticker.Stop()

	lastHistory := s.clock.Now()
	for {
		s.cycle()

		if now := s.clock.Now(); now.Sub(lastHistory) >= rttHistoryInterval {
			s.estimator.UpdateHistory()
			lastHistory = now
		}

		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

// cycle is one iteration of the send loop: requeue what timed out, then
// transmit everything queued.
func (s *service) cycle() {
	s.requeueExpired()
	s.flush()
}

func (s *service) requeueExpired() {
	records := s.unacked.expired(s.clock.Now(), s.options.RetransmitTimeout)
	if len(records) == 0 {
		return
	}

	items := make([]queued, len(records))
	for i, record := range records {
		log.Printf("%s Not acked after %d attempt(s), requeueing\n", logPrefix(record.AddressedPacket), record.Attempts)
		items[i] = queued{AddressedPacket: record.AddressedPacket, attempts: record.Attempts}
		s.counters.retransmitted.Add(1)
		s.recorder.Retransmitted()
	}
	s.outbound.addAll(items)
}

func (s *service) flush() {
	for _, item := range s.outbound.drain() {
		data, err := s.encoder.Encode(item.Packet)
		if err != nil {
			log.Printf("%s Error encoding packet, dropping it: %s\n", logPrefix(item.AddressedPacket), err)
			s.recorder.Failed(metrics.EncodeFailure)
			continue
		}

		// tracked before the transmission so that a fast ack always finds its record
		if !item.Packet.IsAck() {
			s.unacked.add(SentRecord{
				AddressedPacket: item.AddressedPacket,
				SentAt:          s.clock.Now(),
				Attempts:        item.attempts + 1,
			})
		}

		if _, err := s.socket.SendTo(data, item.Address); err != nil {
			log.Printf("%s Error sending packet: %s\n", logPrefix(item.AddressedPacket), err)
			s.recorder.Failed(metrics.SendFailure)
			continue
		}
		s.counters.sent.Add(1)
		s.recorder.Sent(item.Packet.Payload.Kind())
	}
}
