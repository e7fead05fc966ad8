package protocol

import (
	"crypto/rand"
	"encoding/binary"
	"errors"
)

var ErrBadFragment = errors.New("malformed fragment payload")

// Fragment payload: fragmentID(8) + index(2) + total(2) + originalType(1) + chunk
const FragmentHeaderSize = 13

// FragmentID ties the pieces of one oversized packet together.
type FragmentID [8]byte

// NewFragmentID generates a random fragment id.
func NewFragmentID() FragmentID {
	var id FragmentID
	rand.Read(id[:])
	return id
}

// Fragment is one piece of a packet that exceeded the transport MTU. The
// chunks concatenate back into the complete encoded original packet, which
// re-enters the decode path under OriginalType.
type Fragment struct {
	ID           FragmentID
	Index        uint16
	Total        uint16
	OriginalType uint8
	Chunk        []byte
}

// Encode serializes the fragment payload.
func (f *Fragment) Encode() []byte {
	buf := make([]byte, FragmentHeaderSize+len(f.Chunk))
	offset := 0

	copy(buf[offset:], f.ID[:])
	offset += 8

	binary.BigEndian.PutUint16(buf[offset:], f.Index)
	offset += 2

	binary.BigEndian.PutUint16(buf[offset:], f.Total)
	offset += 2

	buf[offset] = f.OriginalType
	offset++

	copy(buf[offset:], f.Chunk)
	return buf
}

// DecodeFragment parses a fragment payload.
func DecodeFragment(data []byte) (*Fragment, error) {
	if len(data) < FragmentHeaderSize {
		return nil, ErrBadFragment
	}

	f := &Fragment{}
	copy(f.ID[:], data[0:8])
	f.Index = binary.BigEndian.Uint16(data[8:10])
	f.Total = binary.BigEndian.Uint16(data[10:12])
	f.OriginalType = data[12]
	f.Chunk = make([]byte, len(data)-FragmentHeaderSize)
	copy(f.Chunk, data[FragmentHeaderSize:])

	if f.Total == 0 || f.Index >= f.Total {
		return nil, ErrBadFragment
	}
	return f, nil
}

// SplitIntoFragments slices an encoded packet into fragment payloads of at
// most chunkSize bytes each. The first carries FRAGMENT_START, the last
// FRAGMENT_END, anything between FRAGMENT_CONT; the caller wraps them in
// packets of those types.
func SplitIntoFragments(encoded []byte, originalType uint8, chunkSize int) []*Fragment {
	if chunkSize <= 0 {
		return nil
	}
	id := NewFragmentID()
	total := (len(encoded) + chunkSize - 1) / chunkSize

	frags := make([]*Fragment, 0, total)
	for i := 0; i < total; i++ {
		start := i * chunkSize
		end := start + chunkSize
		if end > len(encoded) {
			end = len(encoded)
		}
		frags = append(frags, &Fragment{
			ID:           id,
			Index:        uint16(i),
			Total:        uint16(total),
			OriginalType: originalType,
			Chunk:        encoded[start:end],
		})
	}
	return frags
}

// FragmentPacketType returns the packet type for fragment i of total.
func FragmentPacketType(i, total int) uint8 {
	switch {
	case i == 0:
		return TypeFragmentStart
	case i == total-1:
		return TypeFragmentEnd
	default:
		return TypeFragmentContinue
	}
}
