// Package protocol implements the bitmesh wire protocol.
//
// The protocol package defines the packet codec, the inner message
// record, payload compression and the length-hiding padding scheme used
// by the BLE mesh chat network.
//
// # Packet Format
//
// Every packet starts with a 14-byte fixed header, big-endian:
//   - Version (1 byte): protocol version, currently 1
//   - Type (1 byte): packet type
//   - TTL (1 byte): remaining relay hops; 0 means do not relay
//   - Timestamp (8 bytes): sender's unix milliseconds
//   - Flags (1 byte): has-recipient, has-signature, is-compressed
//   - PayloadLength (2 bytes): payload size on the wire
//
// The header is followed by the 8-byte sender id, an optional 8-byte
// recipient id, the payload, and an optional 64-byte Ed25519 signature.
// An absent recipient means broadcast; the legacy all-0xFF recipient is
// accepted on decode but never emitted.
//
// # Packet Types
//
// Peer lifecycle (1..3): Announce, KeyExchange, Leave.
// Chat traffic (4..7): Message plus FragmentStart/Continue/End for
// packets over the transport MTU.
// Channels and delivery (8..12): ChannelAnnounce, ChannelRetention,
// DeliveryAck, DeliveryStatusRequest, ReadReceipt.
//
// # Message Record
//
// The payload of a Message packet is a bit-packed record: a flag byte, a
// timestamp, then length-prefixed fields (id, sender nickname, content,
// and the optional original sender, recipient nickname, sender peer id,
// mentions and channel). Content is the UTF-8 text, or ciphertext when
// the record's is-encrypted flag is set. A private message instead pads
// and encrypts the whole serialized record, and the resulting AES-256-GCM
// box is the packet payload.
//
// # Compression and Padding
//
// Payloads of 100 bytes or more with at least 4.0 bits/byte of entropy
// are deflate-compressed when that saves at least 20%; the wire form is
// then a 2-byte original length followed by the stream. Private records
// are padded to the next block of {256, 512, 1024, 2048} before
// encryption so ciphertext length reveals little.
package protocol
