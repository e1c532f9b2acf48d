package socket

import (
	"net/netip"

	"github.com/stretchr/testify/mock"
)

// MockSocket is a Socket double whose return values are stubbed by tests.
type MockSocket struct {
	mock.Mock
}

func (m *MockSocket) SendTo(buf []byte, addr netip.AddrPort) (int, error) {
	args := m.Called(buf, addr)
	return args.Int(0), args.Error(1)
}

// RecvFrom copies the stubbed datagram ([]byte at index 0) into buf.
func (m *MockSocket) RecvFrom(buf []byte) (int, netip.AddrPort, error) {
	args := m.Called(buf)
	var n int
	if data, ok := args.Get(0).([]byte); ok {
		n = copy(buf, data)
	}
	return n, args.Get(1).(netip.AddrPort), args.Error(2)
}
