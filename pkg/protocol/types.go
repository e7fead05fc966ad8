package protocol

import (
	"time"

	"github.com/google/uuid"
)

// Protocol constants
const (
	// Protocol version
	ProtocolVersion uint8 = 1

	// Fixed header: version(1) + type(1) + ttl(1) + timestamp(8) + flags(1) + payloadLen(2)
	HeaderSize = 14

	SenderIDSize    = 8
	RecipientIDSize = 8
	SignatureSize   = 64

	// Combined public key: x25519(32) + ed25519 signing(32) + ed25519 identity(32)
	CombinedKeySize = 96
)

// Packet types
const (
	TypeAnnounce              uint8 = 1
	TypeKeyExchange           uint8 = 2
	TypeLeave                 uint8 = 3
	TypeMessage               uint8 = 4
	TypeFragmentStart         uint8 = 5
	TypeFragmentContinue      uint8 = 6
	TypeFragmentEnd           uint8 = 7
	TypeChannelAnnounce       uint8 = 8
	TypeChannelRetention      uint8 = 9
	TypeDeliveryAck           uint8 = 10
	TypeDeliveryStatusRequest uint8 = 11
	TypeReadReceipt           uint8 = 12
)

// Packet header flags
const (
	FlagHasRecipient uint8 = 0x01
	FlagHasSignature uint8 = 0x02
	FlagIsCompressed uint8 = 0x04

	// Remaining bits are reserved and must be zero on the wire
	reservedFlagMask uint8 = 0xF8
)

// Initial TTL values
const (
	TTLControl uint8 = 3 // announce, key exchange, leave, acks
	TTLData    uint8 = 7 // messages and fragments
)

// Payload limits
const (
	MaxPayloadSize      = 0xFFFF     // payload length is a u16 on the wire
	MaxDecompressedSize = 256 * 1024 // cap on inflated payloads
)

// PeerID is the 8-byte wire form of a peer identifier.
type PeerID [SenderIDSize]byte

// BroadcastRecipient is the legacy all-0xFF recipient sentinel. It is
// accepted on decode and treated as broadcast, but never emitted.
var BroadcastRecipient = PeerID{0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF}

// MakePeerID converts a peer id string to its wire form: left-justified,
// zero-padded, truncated to 8 bytes.
func MakePeerID(id string) PeerID {
	var p PeerID
	copy(p[:], id)
	return p
}

// String returns the printable peer id with zero padding stripped.
func (p PeerID) String() string {
	n := len(p)
	for n > 0 && p[n-1] == 0 {
		n--
	}
	return string(p[:n])
}

// IsBroadcast reports whether the id is the broadcast sentinel.
func (p PeerID) IsBroadcast() bool {
	return p == BroadcastRecipient
}

// NewMessageID generates a unique message record id.
func NewMessageID() string {
	return uuid.NewString()
}

// NowUnixMilli returns the current time in Unix milliseconds.
func NowUnixMilli() uint64 {
	return uint64(time.Now().UnixMilli())
}
