package encoder

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/aqez/undaunted/internal/undaunted/packets"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vmihailenco/msgpack"
)

func TestEncodeDecodeRoundTrip(testing *testing.T) {
	// GIVEN
	underTest := NewEncoderDecoder()
	cases := []packets.Packet{
		packets.NewPacket(0, packets.Talk{Phrase: "hi"}),
		packets.NewPacket(42, packets.Talk{Phrase: ""}),
		packets.NewPacket(7, packets.Talk{Phrase: "grüße, 世界"}),
		packets.NewPacket(^uint32(0), packets.Talk{Phrase: strings.Repeat("x", packets.MaxPhraseLength)}),
		packets.NewPacket(3, packets.Ack{AckedID: 3}),
		packets.NewPacket(0, packets.Ack{AckedID: ^uint32(0)}),
	}

	for _, packet := range cases {
		// WHEN
		data, err := underTest.Encode(packet)
		require.NoError(testing, err)
		decoded, err := underTest.Decode(data)

		// THEN
		require.NoError(testing, err)
		assert.Equal(testing, packet, decoded)
	}
}

func TestEncodeIsDeterministic(testing *testing.T) {
	// GIVEN
	underTest := NewEncoderDecoder()
	packet := packets.NewPacket(9, packets.Talk{Phrase: "same bytes every time"})

	// WHEN
	first, err1 := underTest.Encode(packet)
	second, err2 := underTest.Encode(packet)

	// THEN
	require.NoError(testing, err1)
	require.NoError(testing, err2)
	assert.True(testing, bytes.Equal(first, second))
}

func TestEncodeDistinguishesKinds(testing *testing.T) {
	// GIVEN
	underTest := NewEncoderDecoder()

	// WHEN
	talk, _ := underTest.Encode(packets.NewPacket(1, packets.Talk{Phrase: "1"}))
	ack, _ := underTest.Encode(packets.NewPacket(1, packets.Ack{AckedID: 1}))

	// THEN
	assert.NotEqual(testing, talk, ack)
	decodedTalk, _ := underTest.Decode(talk)
	decodedAck, _ := underTest.Decode(ack)
	assert.False(testing, decodedTalk.IsAck())
	assert.True(testing, decodedAck.IsAck())
}

func TestEncodeNilPayload(testing *testing.T) {
	// GIVEN
	underTest := NewEncoderDecoder()

	// WHEN
	_, err := underTest.Encode(packets.Packet{ID: 5})

	// THEN
	var encodingError *EncodingError
	require.True(testing, errors.As(err, &encodingError))
	assert.Equal(testing, uint32(5), encodingError.ID)
	assert.ErrorIs(testing, err, ErrNilPayload)
}

func TestEncodePhraseTooLong(testing *testing.T) {
	// GIVEN
	underTest := NewEncoderDecoder()
	phrase := strings.Repeat("x", packets.MaxPhraseLength+1)

	// WHEN
	_, err := underTest.Encode(packets.NewPacket(1, packets.Talk{Phrase: phrase}))

	// THEN
	assert.ErrorIs(testing, err, ErrPhraseTooLong)
}

func TestDecodeTruncated(testing *testing.T) {
	// GIVEN
	underTest := NewEncoderDecoder()
	data, err := underTest.Encode(packets.NewPacket(1, packets.Talk{Phrase: "hello"}))
	require.NoError(testing, err)

	for i := 0; i < len(data); i++ {
		// WHEN
		_, err := underTest.Decode(data[:i])

		// THEN
		var decodingError *DecodingError
		assert.True(testing, errors.As(err, &decodingError), "prefix of %d bytes", i)
	}
}

func TestDecodeUnknownKind(testing *testing.T) {
	// GIVEN
	var buf bytes.Buffer
	enc := msgpack.NewEncoder(&buf)
	_ = enc.EncodeArrayLen(3)
	_ = enc.EncodeUint32(1)
	_ = enc.EncodeUint8(9)
	_ = enc.EncodeUint32(1)
	underTest := NewEncoderDecoder()

	// WHEN
	_, err := underTest.Decode(buf.Bytes())

	// THEN
	assert.ErrorIs(testing, err, ErrUnknownKind)
}

func TestDecodeTrailingBytes(testing *testing.T) {
	// GIVEN
	underTest := NewEncoderDecoder()
	data, _ := underTest.Encode(packets.NewPacket(1, packets.Ack{AckedID: 1}))
	data = append(data, 0x00)

	// WHEN
	_, err := underTest.Decode(data)

	// THEN
	assert.ErrorIs(testing, err, ErrTrailingBytes)
}

func TestDecodeGarbage(testing *testing.T) {
	// GIVEN
	underTest := NewEncoderDecoder()

	// WHEN
	_, err := underTest.Decode([]byte("hello"))

	// THEN
	var decodingError *DecodingError
	assert.True(testing, errors.As(err, &decodingError))
}

func TestDecodeRejectsOutOfRangeFields(testing *testing.T) {
	cases := []struct {
		name   string
		id     func(enc *msgpack.Encoder) error
		kind   func(enc *msgpack.Encoder) error
		field  func(enc *msgpack.Encoder) error
		target error
	}{
		{
			name:   "kind wider than uint8",
			id:     func(enc *msgpack.Encoder) error { return enc.EncodeUint32(1) },
			kind:   func(enc *msgpack.Encoder) error { return enc.EncodeUint16(257) },
			field:  func(enc *msgpack.Encoder) error { return enc.EncodeString("x") },
			target: ErrOutOfRange,
		},
		{
			name:   "id wider than uint32",
			id:     func(enc *msgpack.Encoder) error { return enc.EncodeUint64(1<<32 + 5) },
			kind:   func(enc *msgpack.Encoder) error { return enc.EncodeUint8(uint8(packets.KindAck)) },
			field:  func(enc *msgpack.Encoder) error { return enc.EncodeUint32(7) },
			target: ErrOutOfRange,
		},
		{
			name:   "negative id",
			id:     func(enc *msgpack.Encoder) error { return enc.EncodeInt64(-1) },
			kind:   func(enc *msgpack.Encoder) error { return enc.EncodeUint8(uint8(packets.KindAck)) },
			field:  func(enc *msgpack.Encoder) error { return enc.EncodeUint32(7) },
			target: ErrOutOfRange,
		},
		{
			name:   "nil acked id",
			id:     func(enc *msgpack.Encoder) error { return enc.EncodeUint32(1) },
			kind:   func(enc *msgpack.Encoder) error { return enc.EncodeUint8(uint8(packets.KindAck)) },
			field:  func(enc *msgpack.Encoder) error { return enc.EncodeNil() },
			target: ErrNilField,
		},
		{
			name:   "nil phrase",
			id:     func(enc *msgpack.Encoder) error { return enc.EncodeUint32(1) },
			kind:   func(enc *msgpack.Encoder) error { return enc.EncodeUint8(uint8(packets.KindTalk)) },
			field:  func(enc *msgpack.Encoder) error { return enc.EncodeNil() },
			target: ErrNilField,
		},
	}
	underTest := NewEncoderDecoder()

	for _, c := range cases {
		// GIVEN
		var buf bytes.Buffer
		enc := msgpack.NewEncoder(&buf)
		require.NoError(testing, enc.EncodeArrayLen(3), c.name)
		require.NoError(testing, c.id(enc), c.name)
		require.NoError(testing, c.kind(enc), c.name)
		require.NoError(testing, c.field(enc), c.name)

		// WHEN
		_, err := underTest.Decode(buf.Bytes())

		// THEN
		var decodingError *DecodingError
		assert.True(testing, errors.As(err, &decodingError), c.name)
		assert.ErrorIs(testing, err, c.target, c.name)
	}
}

func TestDecodeAcceptsCompactIntegers(testing *testing.T) {
	// GIVEN
	var buf bytes.Buffer
	enc := msgpack.NewEncoder(&buf)
	require.NoError(testing, enc.EncodeArrayLen(3))
	require.NoError(testing, enc.EncodeUint(300))
	require.NoError(testing, enc.EncodeUint(uint64(packets.KindAck)))
	require.NoError(testing, enc.EncodeUint(uint64(^uint32(0))))
	underTest := NewEncoderDecoder()

	// WHEN
	decoded, err := underTest.Decode(buf.Bytes())

	// THEN
	require.NoError(testing, err)
	assert.Equal(testing, packets.NewPacket(300, packets.Ack{AckedID: ^uint32(0)}), decoded)
}
