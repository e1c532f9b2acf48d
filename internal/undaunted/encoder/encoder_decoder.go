package encoder

import (
	"bytes"
	"errors"
	"fmt"
	"math"

	"github.com/aqez/undaunted/internal/undaunted/packets"
	"github.com/vmihailenco/msgpack"
	"github.com/vmihailenco/msgpack/codes"
)

// packetFields is the number of elements of an encoded packet: id, kind and
// the single field of the payload.
const packetFields = 3

var (
	// ErrNilPayload is returned when a packet without payload is encoded
	ErrNilPayload = errors.New("packet has no payload")

	// ErrPhraseTooLong is returned when a talk phrase exceeds packets.MaxPhraseLength
	ErrPhraseTooLong = errors.New("phrase exceeds maximum length")

	// ErrUnknownKind is returned for a payload kind that is neither talk nor ack
	ErrUnknownKind = errors.New("unknown payload kind")

	// ErrTrailingBytes is returned when a datagram holds more than one packet
	ErrTrailingBytes = errors.New("trailing bytes after packet")

	// ErrOutOfRange is returned when an integer field does not fit its wire type
	ErrOutOfRange = errors.New("field out of range")

	// ErrNilField is returned when a field is encoded as nil
	ErrNilField = errors.New("field is nil")
)

// EncodingError is returned when a packet cannot be represented on the wire.
type EncodingError struct {
	ID  uint32
	Err error
}

func (e *EncodingError) Error() string {
	return fmt.Sprintf("encoding packet %d: %v", e.ID, e.Err)
}

func (e *EncodingError) Unwrap() error { return e.Err }

// DecodingError is returned when a datagram is truncated, malformed or carries
// an unknown payload kind.
type DecodingError struct {
	Len int
	Err error
}

func (e *DecodingError) Error() string {
	return fmt.Sprintf("decoding %d byte datagram: %v", e.Len, e.Err)
}

func (e *DecodingError) Unwrap() error { return e.Err }

// EncoderDecoder is the interface for encoding and decoding packets (using msgpack)
type EncoderDecoder interface {
	// Encode encodes a packet
	Encode(packets.Packet) ([]byte, error)

	// Decode decodes a packet
	Decode([]byte) (packets.Packet, error)
}

type encoderDecoder struct {
}

// NewEncoderDecoder creates a new encoder/decoder
func NewEncoderDecoder() EncoderDecoder {
	return &encoderDecoder{}
}

// Encode writes the packet as the msgpack array [id, kind, field], where field
// is a string for talks and an uint32 for acks.
func (e *encoderDecoder) Encode(packet packets.Packet) ([]byte, error) {
	if packet.Payload == nil {
		return nil, &EncodingError{ID: packet.ID, Err: ErrNilPayload}
	}

	var buf bytes.Buffer
	enc := msgpack.NewEncoder(&buf)
	if err := enc.EncodeArrayLen(packetFields); err != nil {
		return nil, &EncodingError{ID: packet.ID, Err: err}
	}
	if err := enc.EncodeUint32(packet.ID); err != nil {
		return nil, &EncodingError{ID: packet.ID, Err: err}
	}
	if err := enc.EncodeUint8(uint8(packet.Payload.Kind())); err != nil {
		return nil, &EncodingError{ID: packet.ID, Err: err}
	}

	var err error
	switch payload := packet.Payload.(type) {
	case packets.Talk:
		if len(payload.Phrase) > packets.MaxPhraseLength {
			return nil, &EncodingError{ID: packet.ID, Err: ErrPhraseTooLong}
		}
		err = enc.EncodeString(payload.Phrase)
	case packets.Ack:
		err = enc.EncodeUint32(payload.AckedID)
	default:
		err = ErrUnknownKind
	}
	if err != nil {
		return nil, &EncodingError{ID: packet.ID, Err: err}
	}
	return buf.Bytes(), nil
}

// Decode decodes exactly one packet from a datagram.
func (e *encoderDecoder) Decode(data []byte) (packets.Packet, error) {
	reader := bytes.NewReader(data)
	dec := msgpack.NewDecoder(reader)

	fail := func(err error) (packets.Packet, error) {
		return packets.Packet{}, &DecodingError{Len: len(data), Err: err}
	}

	n, err := dec.DecodeArrayLen()
	if err != nil {
		return fail(err)
	}
	if n != packetFields {
		return fail(fmt.Errorf("expected %d fields, got %d", packetFields, n))
	}
	id, err := decodeUint(dec, "id", math.MaxUint32)
	if err != nil {
		return fail(err)
	}
	kind, err := decodeUint(dec, "kind", math.MaxUint8)
	if err != nil {
		return fail(err)
	}
	if err := rejectNil(dec, "payload"); err != nil {
		return fail(err)
	}

	var payload packets.Payload
	switch packets.Kind(kind) {
	case packets.KindTalk:
		phrase, err := dec.DecodeString()
		if err != nil {
			return fail(err)
		}
		if len(phrase) > packets.MaxPhraseLength {
			return fail(ErrPhraseTooLong)
		}
		payload = packets.Talk{Phrase: phrase}
	case packets.KindAck:
		acked, err := decodeUint(dec, "acked id", math.MaxUint32)
		if err != nil {
			return fail(err)
		}
		payload = packets.Ack{AckedID: uint32(acked)}
	default:
		return fail(fmt.Errorf("%w: %d", ErrUnknownKind, kind))
	}

	if reader.Len() > 0 {
		return fail(ErrTrailingBytes)
	}
	return packets.NewPacket(uint32(id), payload), nil
}

// decodeUint reads an integer of any msgpack width and fails unless it lies
// within [0, limit]. msgpack narrows wider integers without an error.
func decodeUint(dec *msgpack.Decoder, field string, limit int64) (int64, error) {
	if err := rejectNil(dec, field); err != nil {
		return 0, err
	}
	value, err := dec.DecodeInt64()
	if err != nil {
		return 0, fmt.Errorf("%s: %w", field, err)
	}
	if value < 0 || value > limit {
		return 0, fmt.Errorf("%w: %s %d", ErrOutOfRange, field, value)
	}
	return value, nil
}

func rejectNil(dec *msgpack.Decoder, field string) error {
	code, err := dec.PeekCode()
	if err != nil {
		return fmt.Errorf("%s: %w", field, err)
	}
	if code == codes.Nil {
		return fmt.Errorf("%w: %s", ErrNilField, field)
	}
	return nil
}
