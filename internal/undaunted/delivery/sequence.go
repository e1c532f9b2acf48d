package delivery

import (
	"net/netip"
	"sync"
)

// sequenceCounters hands out per-destination packet ids, starting at 0.
type sequenceCounters struct {
	mutex    sync.Mutex
	counters map[netip.AddrPort]uint32
}

func newSequenceCounters() *sequenceCounters {
	return &sequenceCounters{
		counters: make(map[netip.AddrPort]uint32),
	}
}

// next returns the id for the next packet to addr and advances its counter.
func (s *sequenceCounters) next(addr netip.AddrPort) uint32 {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	id := s.counters[addr]
	s.counters[addr] = id + 1
	return id
}

func (s *sequenceCounters) destinations() int {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	return len(s.counters)
}
