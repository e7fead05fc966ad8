package mesh

import (
	"time"

	"github.com/bitmesh/bitmesh-node/pkg/protocol"
)

type fragmentKey struct {
	sender protocol.PeerID
	id     protocol.FragmentID
}

type fragmentState struct {
	chunks   map[uint16][]byte
	total    uint16
	origType uint8
	bytes    int
	created  time.Time
}

// reassembler collects fragment payloads until a message completes.
// Buffers are capped per sender; a peer that streams fragments without
// ever finishing cannot grow memory past the cap.
type reassembler struct {
	buffers      map[fragmentKey]*fragmentState
	perPeerBytes map[protocol.PeerID]int
	maxPerPeer   int
}

func newReassembler(maxPerPeer int) *reassembler {
	return &reassembler{
		buffers:      make(map[fragmentKey]*fragmentState),
		perPeerBytes: make(map[protocol.PeerID]int),
		maxPerPeer:   maxPerPeer,
	}
}

// add stores one fragment. When the set completes it returns the
// reassembled original packet bytes and its type; otherwise ok is false.
func (r *reassembler) add(sender protocol.PeerID, frag *protocol.Fragment, now time.Time) (data []byte, origType uint8, ok bool) {
	key := fragmentKey{sender: sender, id: frag.ID}

	state, exists := r.buffers[key]
	if !exists {
		state = &fragmentState{
			chunks:   make(map[uint16][]byte),
			total:    frag.Total,
			origType: frag.OriginalType,
			created:  now,
		}
		r.buffers[key] = state
	}

	if frag.Total != state.total || frag.Index >= state.total {
		return nil, 0, false
	}
	if _, dup := state.chunks[frag.Index]; dup {
		return nil, 0, false
	}
	if r.perPeerBytes[sender]+len(frag.Chunk) > r.maxPerPeer {
		return nil, 0, false
	}

	state.chunks[frag.Index] = frag.Chunk
	state.bytes += len(frag.Chunk)
	r.perPeerBytes[sender] += len(frag.Chunk)

	if len(state.chunks) != int(state.total) {
		return nil, 0, false
	}

	assembled := make([]byte, 0, state.bytes)
	for i := uint16(0); i < state.total; i++ {
		assembled = append(assembled, state.chunks[i]...)
	}
	r.drop(key, state)
	return assembled, state.origType, true
}

// expire discards incomplete reassemblies older than the timeout.
func (r *reassembler) expire(now time.Time, timeout time.Duration) {
	for key, state := range r.buffers {
		if now.Sub(state.created) > timeout {
			r.drop(key, state)
		}
	}
}

func (r *reassembler) drop(key fragmentKey, state *fragmentState) {
	r.perPeerBytes[key.sender] -= state.bytes
	if r.perPeerBytes[key.sender] <= 0 {
		delete(r.perPeerBytes, key.sender)
	}
	delete(r.buffers, key)
}

func (r *reassembler) pending() int {
	return len(r.buffers)
}

func (r *reassembler) clear() {
	r.buffers = make(map[fragmentKey]*fragmentState)
	r.perPeerBytes = make(map[protocol.PeerID]int)
}
