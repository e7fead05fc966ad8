package mesh

import (
	"bytes"
	"testing"
	"time"

	"github.com/bitmesh/bitmesh-node/pkg/protocol"
)

func TestReassemblerCompletes(t *testing.T) {
	r := newReassembler(4 * 64 * 1024)
	sender := protocol.MakePeerID("AAAAAAAA")
	now := time.Unix(1000, 0)

	original := bytes.Repeat([]byte{0x5A}, 1500)
	frags := protocol.SplitIntoFragments(original, protocol.TypeMessage, 500)

	for i, frag := range frags {
		data, origType, ok := r.add(sender, frag, now)
		if i < len(frags)-1 {
			if ok {
				t.Fatalf("fragment %d completed early", i)
			}
			continue
		}
		if !ok {
			t.Fatalf("final fragment did not complete the set")
		}
		if origType != protocol.TypeMessage {
			t.Errorf("original type = %d, want %d", origType, protocol.TypeMessage)
		}
		if !bytes.Equal(data, original) {
			t.Errorf("reassembled bytes differ from the original")
		}
	}

	if r.pending() != 0 {
		t.Errorf("pending() = %d after completion, want 0", r.pending())
	}
}

func TestReassemblerOutOfOrder(t *testing.T) {
	r := newReassembler(4 * 64 * 1024)
	sender := protocol.MakePeerID("AAAAAAAA")
	now := time.Unix(1000, 0)

	original := bytes.Repeat([]byte{0x77}, 900)
	frags := protocol.SplitIntoFragments(original, protocol.TypeMessage, 300)

	// END, START, CONT
	order := []int{2, 0, 1}
	var final []byte
	for _, i := range order {
		if data, _, ok := r.add(sender, frags[i], now); ok {
			final = data
		}
	}
	if !bytes.Equal(final, original) {
		t.Errorf("out-of-order reassembly failed")
	}
}

func TestReassemblerDuplicateChunks(t *testing.T) {
	r := newReassembler(4 * 64 * 1024)
	sender := protocol.MakePeerID("AAAAAAAA")
	now := time.Unix(1000, 0)

	frags := protocol.SplitIntoFragments(bytes.Repeat([]byte{1}, 600), protocol.TypeMessage, 300)

	if _, _, ok := r.add(sender, frags[0], now); ok {
		t.Fatal("incomplete set reported complete")
	}
	// A relayed duplicate of the same chunk must not complete the set.
	if _, _, ok := r.add(sender, frags[0], now); ok {
		t.Fatal("duplicate chunk completed the set")
	}
	if _, _, ok := r.add(sender, frags[1], now); !ok {
		t.Fatal("set did not complete with both chunks present")
	}
}

func TestReassemblerDroppedMiddleExpires(t *testing.T) {
	r := newReassembler(4 * 64 * 1024)
	sender := protocol.MakePeerID("AAAAAAAA")
	now := time.Unix(1000, 0)

	frags := protocol.SplitIntoFragments(bytes.Repeat([]byte{2}, 1500), protocol.TypeMessage, 500)

	// START and END arrive, CONT is lost.
	r.add(sender, frags[0], now)
	if _, _, ok := r.add(sender, frags[2], now); ok {
		t.Fatal("incomplete set reported complete")
	}

	// Before the timeout the buffer holds; after it, it clears.
	r.expire(now.Add(30*time.Second), time.Minute)
	if r.pending() != 1 {
		t.Errorf("pending() = %d before timeout, want 1", r.pending())
	}
	r.expire(now.Add(61*time.Second), time.Minute)
	if r.pending() != 0 {
		t.Errorf("pending() = %d after timeout, want 0", r.pending())
	}
	if len(r.perPeerBytes) != 0 {
		t.Errorf("per-peer accounting leaked after expiry")
	}
}

func TestReassemblerPerPeerCap(t *testing.T) {
	r := newReassembler(1000)
	sender := protocol.MakePeerID("AAAAAAAA")
	now := time.Unix(1000, 0)

	// Two incomplete sets that together exceed the cap: the second set's
	// overflow chunks are refused.
	first := protocol.SplitIntoFragments(bytes.Repeat([]byte{3}, 1200), protocol.TypeMessage, 600)
	r.add(sender, first[0], now) // 600 bytes buffered

	second := protocol.SplitIntoFragments(bytes.Repeat([]byte{4}, 1200), protocol.TypeMessage, 600)
	r.add(sender, second[0], now) // refused: 600+600 > 1000
	if _, _, ok := r.add(sender, second[1], now); ok {
		t.Fatal("capped set completed despite refused chunk")
	}

	// A different sender has its own budget.
	other := protocol.MakePeerID("BBBBBBBB")
	small := protocol.SplitIntoFragments(bytes.Repeat([]byte{5}, 800), protocol.TypeMessage, 400)
	r.add(other, small[0], now)
	if _, _, ok := r.add(other, small[1], now); !ok {
		t.Errorf("cap on one sender starved another")
	}
}
