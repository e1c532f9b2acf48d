package packets

import "fmt"

// MaxPhraseLength is the longest phrase a Talk payload may carry so that an
// encoded packet still fits into a single UDP datagram.
const MaxPhraseLength = 65_000

// Kind is the wire discriminator of a payload.
type Kind uint8

const (
	// KindTalk marks a user message
	KindTalk Kind = 1

	// KindAck marks the acknowledgment of a previously received packet
	KindAck Kind = 2
)

func (k Kind) String() string {
	switch k {
	case KindTalk:
		return "talk"
	case KindAck:
		return "ack"
	}
	return fmt.Sprintf("kind(%d)", uint8(k))
}

// Payload is the closed set of things a packet can carry: Talk or Ack.
type Payload interface {
	// Kind returns the wire discriminator of the payload
	Kind() Kind

	isPayload()
}

// Talk is a user-facing message.
type Talk struct {
	// Phrase is the text of the message
	Phrase string
}

func (Talk) Kind() Kind { return KindTalk }

func (Talk) isPayload() {}

// Ack acknowledges the receipt of the packet with id AckedID.
type Ack struct {
	// AckedID is the id of the acknowledged packet
	AckedID uint32
}

func (Ack) Kind() Kind { return KindAck }

func (Ack) isPayload() {}

// Packet is the unit exchanged between peers. The id is scoped to the sending
// peer and a single destination.
type Packet struct {
	// ID is the sequence id of the packet
	ID uint32

	// Payload is either a Talk or an Ack
	Payload Payload
}

// NewPacket creates a new packet.
func NewPacket(id uint32, payload Payload) Packet {
	return Packet{ID: id, Payload: payload}
}

// IsAck reports whether the packet acknowledges another packet.
func (p Packet) IsAck() bool {
	_, ok := p.Payload.(Ack)
	return ok
}

func (p Packet) String() string {
	switch payload := p.Payload.(type) {
	case Talk:
		return fmt.Sprintf("#%d talk %q", p.ID, payload.Phrase)
	case Ack:
		return fmt.Sprintf("#%d ack %d", p.ID, payload.AckedID)
	}
	return fmt.Sprintf("#%d <nil>", p.ID)
}
