package socket

import (
	"net"
	"net/netip"
	"sync"
)

const spiderInboxSize = 1024

type datagram struct {
	from netip.AddrPort
	data []byte
}

// Spider is an in-memory datagram network. Every socket created by Socket is
// reachable by its address; datagrams to unknown addresses or to full inboxes
// are dropped silently, and every lossEvery-th datagram is dropped as well.
type Spider struct {
	mutex     sync.Mutex
	sockets   map[netip.AddrPort]*SpiderSocket
	lossEvery int
	sent      int
	dropped   int
}

// NewSpider creates a network that drops every lossEvery-th datagram, or none
// when lossEvery is 0.
func NewSpider(lossEvery int) *Spider {
	return &Spider{
		sockets:   make(map[netip.AddrPort]*SpiderSocket),
		lossEvery: lossEvery,
	}
}

// Socket attaches a new socket with the given address to the network.
func (s *Spider) Socket(addr netip.AddrPort) *SpiderSocket {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	socket := &SpiderSocket{
		spider: s,
		addr:   addr,
		inbox:  make(chan datagram, spiderInboxSize),
		closed: make(chan struct{}),
	}
	s.sockets[addr] = socket
	return socket
}

// Dropped returns the number of datagrams lost so far.
func (s *Spider) Dropped() int {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	return s.dropped
}

func (s *Spider) deliver(from, to netip.AddrPort, data []byte) {
	s.mutex.Lock()
	s.sent++
	target, ok := s.sockets[to]
	if !ok || (s.lossEvery != 0 && s.sent%s.lossEvery == 0) {
		s.dropped++
		s.mutex.Unlock()
		return
	}
	s.mutex.Unlock()

	select {
	case target.inbox <- datagram{from: from, data: data}:
	default:
		s.mutex.Lock()
		s.dropped++
		s.mutex.Unlock()
	}
}

func (s *Spider) detach(addr netip.AddrPort) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	delete(s.sockets, addr)
}

// SpiderSocket is a Socket attached to a Spider.
type SpiderSocket struct {
	spider    *Spider
	addr      netip.AddrPort
	inbox     chan datagram
	closed    chan struct{}
	closeOnce sync.Once
}

// SendTo hands a copy of buf to the network.
func (s *SpiderSocket) SendTo(buf []byte, addr netip.AddrPort) (int, error) {
	select {
	case <-s.closed:
		return 0, net.ErrClosed
	default:
	}
	data := make([]byte, len(buf))
	copy(data, buf)
	s.spider.deliver(s.addr, addr, data)
	return len(buf), nil
}

// RecvFrom blocks until a datagram arrives or the socket is closed. Bytes that
// do not fit into buf are discarded, as with a real datagram socket.
func (s *SpiderSocket) RecvFrom(buf []byte) (int, netip.AddrPort, error) {
	select {
	case d := <-s.inbox:
		return copy(buf, d.data), d.from, nil
	case <-s.closed:
		return 0, netip.AddrPort{}, net.ErrClosed
	}
}

// LocalAddr returns the address of the socket on the network.
func (s *SpiderSocket) LocalAddr() netip.AddrPort {
	return s.addr
}

// Close detaches the socket and unblocks RecvFrom.
func (s *SpiderSocket) Close() error {
	s.closeOnce.Do(func() {
		s.spider.detach(s.addr)
		close(s.closed)
	})
	return nil
}
