package mesh

import (
	"testing"
	"time"
)

func TestPeerTableSightingAndAnnounce(t *testing.T) {
	pt := newPeerTable()
	base := time.Unix(1000, 0)

	pt.sighting("BBBBBBBB", -60, base)
	if pt.isOnline("BBBBBBBB") {
		t.Errorf("sighting alone marked the peer online")
	}

	p, cameOnline := pt.announce("BBBBBBBB", "Bob", base.Add(time.Second))
	if !cameOnline {
		t.Errorf("first announce did not report the peer coming online")
	}
	if p.nickname != "Bob" {
		t.Errorf("nickname = %q, want Bob", p.nickname)
	}
	if p.rssi != -60 {
		t.Errorf("rssi = %d, want -60", p.rssi)
	}

	// Repeat announces refresh but do not re-trigger the online edge.
	if _, cameOnline := pt.announce("BBBBBBBB", "Bob", base.Add(2*time.Second)); cameOnline {
		t.Errorf("repeat announce reported coming online again")
	}
}

func TestPeerTableLeaveAndReannounce(t *testing.T) {
	pt := newPeerTable()
	base := time.Unix(1000, 0)

	pt.announce("CCCCCCCC", "Carol", base)
	pt.leave("CCCCCCCC", base.Add(time.Second))
	if pt.isOnline("CCCCCCCC") {
		t.Errorf("peer still online after leave")
	}

	if _, cameOnline := pt.announce("CCCCCCCC", "Carol", base.Add(10*time.Second)); !cameOnline {
		t.Errorf("re-announce after leave did not report the online edge")
	}
}

func TestPeerTableEviction(t *testing.T) {
	pt := newPeerTable()
	base := time.Unix(1000, 0)

	pt.announce("BBBBBBBB", "Bob", base)
	pt.announce("CCCCCCCC", "Carol", base.Add(4*time.Minute))

	evicted := pt.evictStale(base.Add(5*time.Minute+time.Second), 5*time.Minute)
	if len(evicted) != 1 || evicted[0] != "BBBBBBBB" {
		t.Fatalf("evictStale() = %v, want [BBBBBBBB]", evicted)
	}
	if pt.get("BBBBBBBB") != nil {
		t.Errorf("evicted peer still present")
	}
	if pt.get("CCCCCCCC") == nil {
		t.Errorf("fresh peer was evicted")
	}
}

func TestPeerTableFavorites(t *testing.T) {
	pt := newPeerTable()
	now := time.Unix(1000, 0)

	if pt.isFavorite("CCCCCCCC") {
		t.Errorf("unknown peer reported as favorite")
	}
	pt.setFavorite("CCCCCCCC", true, now)
	if !pt.isFavorite("CCCCCCCC") {
		t.Errorf("favorite flag did not stick")
	}
	pt.setFavorite("CCCCCCCC", false, now)
	if pt.isFavorite("CCCCCCCC") {
		t.Errorf("favorite flag did not clear")
	}
}
