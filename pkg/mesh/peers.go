package mesh

import (
	"sort"
	"time"
)

// Peer is the exported snapshot of a peer table entry.
type Peer struct {
	ID          string
	Nickname    string
	RSSI        int
	LastSeen    time.Time
	Online      bool
	Favorite    bool
	HandshakeOK bool
	Channels    []string
}

type peerState struct {
	nickname string
	rssi     int
	lastSeen time.Time
	online   bool
	favorite bool
	channels map[string]struct{}
}

// peerTable tracks every peer we have sighted. It is owned by the
// coordinator loop; no locking.
type peerTable struct {
	peers map[string]*peerState
}

func newPeerTable() *peerTable {
	return &peerTable{peers: make(map[string]*peerState)}
}

// sighting inserts or refreshes a peer on any evidence of life: an
// advertisement, an announce, or any inbound packet.
func (t *peerTable) sighting(id string, rssi int, now time.Time) *peerState {
	p, ok := t.peers[id]
	if !ok {
		p = &peerState{channels: make(map[string]struct{})}
		t.peers[id] = p
	}
	if rssi != 0 {
		p.rssi = rssi
	}
	p.lastSeen = now
	return p
}

// announce refreshes a peer from an ANNOUNCE packet. The second return is
// true when the peer came online with this announce (new, or previously
// offline), which is when store-and-forward queues drain.
func (t *peerTable) announce(id, nickname string, now time.Time) (*peerState, bool) {
	p := t.sighting(id, 0, now)
	cameOnline := !p.online
	p.online = true
	if nickname != "" {
		p.nickname = nickname
	}
	return p, cameOnline
}

func (t *peerTable) leave(id string, now time.Time) *peerState {
	p, ok := t.peers[id]
	if !ok {
		return nil
	}
	p.online = false
	p.lastSeen = now
	return p
}

func (t *peerTable) get(id string) *peerState {
	return t.peers[id]
}

func (t *peerTable) setFavorite(id string, favorite bool, now time.Time) {
	t.sighting(id, 0, now).favorite = favorite
}

func (t *peerTable) isFavorite(id string) bool {
	if p, ok := t.peers[id]; ok {
		return p.favorite
	}
	return false
}

func (t *peerTable) isOnline(id string) bool {
	if p, ok := t.peers[id]; ok {
		return p.online
	}
	return false
}

func (t *peerTable) nickname(id string) string {
	if p, ok := t.peers[id]; ok {
		return p.nickname
	}
	return ""
}

// evictStale removes peers unseen for longer than maxAge and returns
// their ids so the coordinator can drop session keys with them.
func (t *peerTable) evictStale(now time.Time, maxAge time.Duration) []string {
	var evicted []string
	for id, p := range t.peers {
		if now.Sub(p.lastSeen) > maxAge {
			delete(t.peers, id)
			evicted = append(evicted, id)
		}
	}
	return evicted
}

func (t *peerTable) snapshot(id string, p *peerState, handshakeOK bool) Peer {
	channels := make([]string, 0, len(p.channels))
	for ch := range p.channels {
		channels = append(channels, ch)
	}
	sort.Strings(channels)

	return Peer{
		ID:          id,
		Nickname:    p.nickname,
		RSSI:        p.rssi,
		LastSeen:    p.lastSeen,
		Online:      p.online,
		Favorite:    p.favorite,
		HandshakeOK: handshakeOK,
		Channels:    channels,
	}
}

func (t *peerTable) clear() {
	t.peers = make(map[string]*peerState)
}
