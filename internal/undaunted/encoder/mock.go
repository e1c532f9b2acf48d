package encoder

import (
	"github.com/aqez/undaunted/internal/undaunted/packets"
	"github.com/stretchr/testify/mock"
)

type MockEncoderDecoder struct {
	mock.Mock
}

func (m *MockEncoderDecoder) Encode(packet packets.Packet) ([]byte, error) {
	args := m.Called(packet)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]byte), args.Error(1)
}

func (m *MockEncoderDecoder) Decode(data []byte) (packets.Packet, error) {
	args := m.Called(data)
	return args.Get(0).(packets.Packet), args.Error(1)
}
