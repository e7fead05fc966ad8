package transport

import (
	"errors"
	"log"
	"sync"
)

var (
	ErrLinkDown    = errors.New("no link to peer")
	ErrNotStarted  = errors.New("transport not started")
	ErrDuplicateID = errors.New("peer id already attached")
)

const linkQueueDepth = 256

// LoopbackMesh is an in-process radio: every attached link is a node's
// Driver, and adjacency between links stands in for BLE range. Tests and
// the demo daemon wire topologies with Connect/Disconnect.
type LoopbackMesh struct {
	mu    sync.Mutex
	links map[string]*LoopbackLink
	adj   map[string]map[string]bool
}

// NewLoopbackMesh creates an empty mesh.
func NewLoopbackMesh() *LoopbackMesh {
	return &LoopbackMesh{
		links: make(map[string]*LoopbackLink),
		adj:   make(map[string]map[string]bool),
	}
}

// Attach creates a driver for peerID on this mesh.
func (m *LoopbackMesh) Attach(peerID string) *LoopbackLink {
	m.mu.Lock()
	defer m.mu.Unlock()

	link := &LoopbackLink{mesh: m, id: peerID}
	m.links[peerID] = link
	m.adj[peerID] = make(map[string]bool)
	return link
}

// Connect puts two peers in range of each other. Both running sides
// observe a sighting, mirroring two radios discovering one another.
func (m *LoopbackMesh) Connect(a, b string) {
	m.mu.Lock()
	la, lb := m.links[a], m.links[b]
	if la == nil || lb == nil {
		m.mu.Unlock()
		return
	}
	m.adj[a][b] = true
	m.adj[b][a] = true
	m.mu.Unlock()

	la.peerSeen(b)
	lb.peerSeen(a)
}

// Disconnect takes two peers out of range.
func (m *LoopbackMesh) Disconnect(a, b string) {
	m.mu.Lock()
	la, lb := m.links[a], m.links[b]
	delete(m.adj[a], b)
	delete(m.adj[b], a)
	m.mu.Unlock()

	if la != nil {
		la.peerLost(b)
	}
	if lb != nil {
		lb.peerLost(a)
	}
}

// neighbors returns the running links adjacent to id.
func (m *LoopbackMesh) neighbors(id string) []*LoopbackLink {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []*LoopbackLink
	for peer := range m.adj[id] {
		if link := m.links[peer]; link != nil {
			out = append(out, link)
		}
	}
	return out
}

type inboundFrame struct {
	from string
	data []byte
}

// LoopbackLink is one node's view of the mesh. Inbound frames queue on a
// channel drained by a single pump goroutine so per-link ordering matches
// a serial GATT characteristic.
type LoopbackLink struct {
	mesh *LoopbackMesh
	id   string

	mu      sync.Mutex
	handler Handler
	inbox   chan inboundFrame
	done    chan struct{}
}

// Start implements Driver.
func (l *LoopbackLink) Start(h Handler) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.handler != nil {
		return ErrDuplicateID
	}
	l.handler = h
	l.inbox = make(chan inboundFrame, linkQueueDepth)
	l.done = make(chan struct{})
	go l.pump(l.inbox, l.done)

	// Surface neighbors that were already in range at start.
	for _, neighbor := range l.mesh.neighbors(l.id) {
		neighbor.peerSeen(l.id)
		h.HandlePeerSeen(neighbor.id, 0, nil)
	}
	return nil
}

// Stop implements Driver.
func (l *LoopbackLink) Stop() {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.handler == nil {
		return
	}
	close(l.done)
	l.handler = nil
	l.inbox = nil
	l.done = nil
}

// Send implements Driver.
func (l *LoopbackLink) Send(peerID string, data []byte) error {
	l.mu.Lock()
	started := l.handler != nil
	l.mu.Unlock()
	if !started {
		return ErrNotStarted
	}

	for _, neighbor := range l.mesh.neighbors(l.id) {
		if neighbor.id == peerID {
			neighbor.deliver(l.id, data)
			return nil
		}
	}
	return ErrLinkDown
}

// Broadcast implements Driver.
func (l *LoopbackLink) Broadcast(data []byte, exceptPeer string) error {
	l.mu.Lock()
	started := l.handler != nil
	l.mu.Unlock()
	if !started {
		return ErrNotStarted
	}

	for _, neighbor := range l.mesh.neighbors(l.id) {
		if neighbor.id == exceptPeer {
			continue
		}
		neighbor.deliver(l.id, data)
	}
	return nil
}

// MTU implements Driver.
func (l *LoopbackLink) MTU() int {
	return DefaultMTU
}

func (l *LoopbackLink) deliver(from string, data []byte) {
	l.mu.Lock()
	inbox := l.inbox
	l.mu.Unlock()
	if inbox == nil {
		return
	}

	frame := inboundFrame{from: from, data: append([]byte(nil), data...)}
	select {
	case inbox <- frame:
	default:
		log.Printf("loopback: inbox full, dropping frame from %s", from)
	}
}

func (l *LoopbackLink) peerSeen(peerID string) {
	l.mu.Lock()
	h := l.handler
	l.mu.Unlock()
	if h != nil {
		h.HandlePeerSeen(peerID, 0, nil)
	}
}

func (l *LoopbackLink) peerLost(peerID string) {
	l.mu.Lock()
	h := l.handler
	l.mu.Unlock()
	if h != nil {
		h.HandlePeerLost(peerID)
	}
}

func (l *LoopbackLink) pump(inbox chan inboundFrame, done chan struct{}) {
	for {
		select {
		case <-done:
			return
		case frame := <-inbox:
			l.mu.Lock()
			h := l.handler
			l.mu.Unlock()
			if h != nil {
				h.HandleBytes(frame.from, frame.data)
			}
		}
	}
}
