package socket

import (
	"fmt"
	"net"
	"net/netip"
)

// MaxDatagramSize is the largest payload of a single UDP datagram.
const MaxDatagramSize = 65507

// Socket is the datagram capability the delivery engine depends on.
// Implementations must allow one receiving and one sending goroutine to use the
// socket concurrently.
type Socket interface {
	// SendTo sends buf as one datagram to addr and returns the number of bytes sent
	SendTo(buf []byte, addr netip.AddrPort) (int, error)

	// RecvFrom blocks until a datagram arrives, copies it into buf and returns its
	// length and origin. A datagram is never partially consumed across calls.
	RecvFrom(buf []byte) (int, netip.AddrPort, error)
}

// UDPSocket is a Socket backed by a bound UDP connection.
type UDPSocket struct {
	conn *net.UDPConn
}

// Listen binds a UDP socket to addr, e.g. "0.0.0.0:1337" or "127.0.0.1:0".
func Listen(addr string) (*UDPSocket, error) {
	laddr, err := net.ResolveUDPAddr("udp", addr)
	if err != nil {
		return nil, fmt.Errorf("resolve %s: %w", addr, err)
	}
	conn, err := net.ListenUDP("udp", laddr)
	if err != nil {
		return nil, fmt.Errorf("listen %s: %w", addr, err)
	}
	return &UDPSocket{conn: conn}, nil
}

// SendTo sends buf to addr.
func (s *UDPSocket) SendTo(buf []byte, addr netip.AddrPort) (int, error) {
	return s.conn.WriteToUDPAddrPort(buf, addr)
}

// RecvFrom reads one datagram into buf.
func (s *UDPSocket) RecvFrom(buf []byte) (int, netip.AddrPort, error) {
	n, addr, err := s.conn.ReadFromUDPAddrPort(buf)
	if err != nil {
		return 0, netip.AddrPort{}, err
	}
	// dual stack sockets report IPv4 peers as ::ffff:a.b.c.d
	return n, netip.AddrPortFrom(addr.Addr().Unmap(), addr.Port()), nil
}

// LocalAddr returns the bound address.
func (s *UDPSocket) LocalAddr() netip.AddrPort {
	addr := s.conn.LocalAddr().(*net.UDPAddr).AddrPort()
	return netip.AddrPortFrom(addr.Addr().Unmap(), addr.Port())
}

// Close closes the socket, a pending RecvFrom returns net.ErrClosed.
func (s *UDPSocket) Close() error {
	return s.conn.Close()
}
