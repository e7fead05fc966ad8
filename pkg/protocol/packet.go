package protocol

import (
	"encoding/binary"
	"errors"
)

var (
	ErrTruncated          = errors.New("packet truncated")
	ErrBadVersion         = errors.New("unsupported protocol version")
	ErrBadLength          = errors.New("packet length mismatch")
	ErrReservedFlag       = errors.New("reserved flag bit set")
	ErrDecompressFailed   = errors.New("payload decompression failed")
	ErrPayloadTooLarge    = errors.New("payload exceeds wire limit")
	ErrBadSignatureLength = errors.New("signature must be 64 bytes")
	ErrBadRecipientLength = errors.New("recipient must be 8 bytes")
)

// Packet is the wire unit exchanged between nodes.
//
// Payload holds the logical payload bytes; WirePayload holds the bytes as
// they appear on the wire (compressed form when the compression flag is
// set, otherwise identical to Payload). Signatures and dedup ids are
// always computed over WirePayload.
type Packet struct {
	Type        uint8
	TTL         uint8
	Timestamp   uint64 // unix millis, stamped by the sender
	SenderID    PeerID
	Recipient   *PeerID // nil = broadcast
	Payload     []byte
	WirePayload []byte
	Compressed  bool
	Signature   []byte // empty or 64 bytes
}

// NewPacket builds a packet and fixes its wire payload, attempting
// compression once. The wire payload is final after this so a signature
// computed over it stays valid through Encode.
func NewPacket(pktType uint8, ttl uint8, timestamp uint64, sender PeerID, recipient *PeerID, payload []byte) *Packet {
	wire, compressed := MaybeCompress(payload)
	return &Packet{
		Type:        pktType,
		TTL:         ttl,
		Timestamp:   timestamp,
		SenderID:    sender,
		Recipient:   recipient,
		Payload:     payload,
		WirePayload: wire,
		Compressed:  compressed,
	}
}

// IsBroadcast reports whether the packet addresses all neighbors.
func (p *Packet) IsBroadcast() bool {
	return p.Recipient == nil || p.Recipient.IsBroadcast()
}

// Encode serializes the packet.
func (p *Packet) Encode() ([]byte, error) {
	wire := p.WirePayload
	if wire == nil {
		wire = p.Payload
	}
	if len(wire) > MaxPayloadSize {
		return nil, ErrPayloadTooLarge
	}
	if len(p.Signature) != 0 && len(p.Signature) != SignatureSize {
		return nil, ErrBadSignatureLength
	}

	var flags uint8
	size := HeaderSize + SenderIDSize + len(wire)
	if p.Recipient != nil {
		flags |= FlagHasRecipient
		size += RecipientIDSize
	}
	if len(p.Signature) == SignatureSize {
		flags |= FlagHasSignature
		size += SignatureSize
	}
	if p.Compressed {
		flags |= FlagIsCompressed
	}

	buf := make([]byte, size)
	offset := 0

	buf[offset] = ProtocolVersion
	offset++

	buf[offset] = p.Type
	offset++

	buf[offset] = p.TTL
	offset++

	binary.BigEndian.PutUint64(buf[offset:], p.Timestamp)
	offset += 8

	buf[offset] = flags
	offset++

	binary.BigEndian.PutUint16(buf[offset:], uint16(len(wire)))
	offset += 2

	copy(buf[offset:], p.SenderID[:])
	offset += SenderIDSize

	if p.Recipient != nil {
		copy(buf[offset:], p.Recipient[:])
		offset += RecipientIDSize
	}

	copy(buf[offset:], wire)
	offset += len(wire)

	if len(p.Signature) == SignatureSize {
		copy(buf[offset:], p.Signature)
	}

	return buf, nil
}

// Decode parses a packet from the wire. The required length is computed
// from the flags before any slicing so hostile inputs cannot cause an
// out-of-bounds read.
func Decode(data []byte) (*Packet, error) {
	if len(data) < HeaderSize+SenderIDSize {
		return nil, ErrTruncated
	}
	if data[0] != ProtocolVersion {
		return nil, ErrBadVersion
	}

	flags := data[11]
	if flags&reservedFlagMask != 0 {
		return nil, ErrReservedFlag
	}

	payloadLen := int(binary.BigEndian.Uint16(data[12:14]))

	need := HeaderSize + SenderIDSize + payloadLen
	if flags&FlagHasRecipient != 0 {
		need += RecipientIDSize
	}
	if flags&FlagHasSignature != 0 {
		need += SignatureSize
	}
	if len(data) < need {
		return nil, ErrTruncated
	}
	if len(data) > need {
		return nil, ErrBadLength
	}

	p := &Packet{
		Type:      data[1],
		TTL:       data[2],
		Timestamp: binary.BigEndian.Uint64(data[3:11]),
	}

	offset := HeaderSize
	copy(p.SenderID[:], data[offset:offset+SenderIDSize])
	offset += SenderIDSize

	if flags&FlagHasRecipient != 0 {
		var recipient PeerID
		copy(recipient[:], data[offset:offset+RecipientIDSize])
		offset += RecipientIDSize
		// The all-0xFF sentinel is legacy broadcast; normalize to absent.
		if !recipient.IsBroadcast() {
			p.Recipient = &recipient
		}
	}

	p.WirePayload = make([]byte, payloadLen)
	copy(p.WirePayload, data[offset:offset+payloadLen])
	offset += payloadLen

	if flags&FlagIsCompressed != 0 {
		p.Compressed = true
		payload, err := Decompress(p.WirePayload)
		if err != nil {
			return nil, err
		}
		p.Payload = payload
	} else {
		p.Payload = p.WirePayload
	}

	if flags&FlagHasSignature != 0 {
		p.Signature = make([]byte, SignatureSize)
		copy(p.Signature, data[offset:offset+SignatureSize])
	}

	return p, nil
}
