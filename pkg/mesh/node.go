// Package mesh implements the protocol engine of a BLE mesh chat node:
// packet routing with TTL flood and deduplication, the peer lifecycle,
// session cryptography and store-and-forward, behind a small facade.
package mesh

import (
	"fmt"
	"log"
	"sync"
	"unicode/utf8"

	"github.com/benbjohnson/clock"

	"github.com/bitmesh/bitmesh-node/pkg/crypto"
	"github.com/bitmesh/bitmesh-node/pkg/protocol"
	"github.com/bitmesh/bitmesh-node/pkg/transport"
)

// Status is the facade lifecycle state.
type Status int

const (
	StatusStopped Status = iota
	StatusInitializing
	StatusRunning
	StatusError
)

func (s Status) String() string {
	switch s {
	case StatusStopped:
		return "stopped"
	case StatusInitializing:
		return "initializing"
	case StatusRunning:
		return "running"
	case StatusError:
		return "error"
	default:
		return "unknown"
	}
}

// Node is a mesh chat node. Construct one per identity with New; tests
// run several independent instances against a shared loopback mesh.
type Node struct {
	cfg    *Config
	clk    clock.Clock
	driver transport.Driver

	mu           sync.Mutex
	initialized  bool
	status       Status
	coord        *coordinator
	peerID       string
	nickname     string
	pendingQueue MessageQueue

	messages       chan IncomingMessage
	peerEvents     chan PeerEvent
	deliveryEvents chan DeliveryEvent
	channelEvents  chan ChannelEvent
	statusChanges  chan Status
	logs           chan string
}

// New creates a node bound to a transport driver. A nil config uses the
// protocol defaults.
func New(driver transport.Driver, cfg *Config) *Node {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	return &Node{
		cfg:    cfg,
		clk:    clock.New(),
		driver: driver,
		status: StatusStopped,
	}
}

// WithClock swaps the wall clock for a mock; tests drive timers with it.
// Must be called before Start.
func (n *Node) WithClock(clk clock.Clock) *Node {
	n.clk = clk
	return n
}

// Init allocates the event streams. It must be called once before Start.
func (n *Node) Init() error {
	n.mu.Lock()
	defer n.mu.Unlock()

	if n.initialized {
		return nil
	}
	if n.driver == nil {
		return fmt.Errorf("%w: nil transport driver", ErrNotInitialized)
	}

	n.messages = make(chan IncomingMessage, n.cfg.EventBuffer)
	n.peerEvents = make(chan PeerEvent, n.cfg.EventBuffer)
	n.deliveryEvents = make(chan DeliveryEvent, n.cfg.EventBuffer)
	n.channelEvents = make(chan ChannelEvent, n.cfg.EventBuffer)
	n.statusChanges = make(chan Status, 8)
	n.logs = make(chan string, n.cfg.EventBuffer)
	n.initialized = true
	return nil
}

// Start generates fresh session keys, brings the transport up and runs
// the coordinator loop.
func (n *Node) Start(peerID, nickname string) error {
	n.mu.Lock()
	defer n.mu.Unlock()

	if !n.initialized {
		return ErrNotInitialized
	}
	if n.status == StatusRunning || n.status == StatusInitializing {
		return ErrAlreadyRunning
	}
	if !validPeerID(peerID) {
		return ErrInvalidPeer
	}
	if nickname == "" {
		nickname = peerID
	}

	n.setStatus(StatusInitializing)

	identity, err := crypto.NewIdentity()
	if err != nil {
		n.setStatus(StatusError)
		return fmt.Errorf("generating session keys: %w", err)
	}

	coord, err := newCoordinator(n, n.cfg, n.clk, n.driver, identity,
		protocol.MakePeerID(peerID), nickname)
	if err != nil {
		n.setStatus(StatusError)
		return err
	}
	if n.pendingQueue != nil {
		coord.queue = n.pendingQueue
	}

	if err := n.driver.Start(coord); err != nil {
		n.setStatus(StatusError)
		return fmt.Errorf("%w: %v", ErrPermissionDenied, err)
	}

	n.coord = coord
	n.peerID = peerID
	n.nickname = nickname
	go coord.run()

	n.setStatus(StatusRunning)
	log.Printf("mesh: node %s (%s) running", peerID, nickname)
	return nil
}

// Stop announces departure, tears the transport down and wipes all
// session state. Safe to call from any state.
func (n *Node) Stop() {
	n.mu.Lock()
	defer n.mu.Unlock()

	if n.coord != nil {
		close(n.coord.stop)
		<-n.coord.stopped
		n.coord = nil
	}
	if n.status == StatusRunning || n.status == StatusError || n.status == StatusInitializing {
		n.driver.Stop()
		n.setStatus(StatusStopped)
		log.Printf("mesh: node %s stopped", n.peerID)
	}
}

// SendBroadcast sends a public message to every reachable peer.
func (n *Node) SendBroadcast(content string) error {
	return n.send(&sendRequest{kind: sendBroadcast, content: content})
}

// SendPrivate sends an end-to-end encrypted message to one peer. When no
// session key exists yet the send fails with ErrNoSessionKey and a
// handshake is initiated; retry after the peer completes it.
func (n *Node) SendPrivate(peerID, content string) error {
	if !validPeerID(peerID) {
		return ErrInvalidPeer
	}
	return n.send(&sendRequest{kind: sendPrivate, peerID: peerID, content: content})
}

// SendChannel sends a public message scoped to a named channel. Channel
// names are case-sensitive.
func (n *Node) SendChannel(channel, content string) error {
	if channel == "" {
		return fmt.Errorf("%w: empty channel name", ErrInvalidPeer)
	}
	return n.send(&sendRequest{kind: sendChannel, channel: channel, content: content})
}

// JoinChannel subscribes to a channel and announces membership.
func (n *Node) JoinChannel(channel string) error {
	return n.control(&controlRequest{op: opJoinChannel, channel: channel})
}

// LeaveChannel unsubscribes from a channel.
func (n *Node) LeaveChannel(channel string) error {
	return n.control(&controlRequest{op: opLeaveChannel, channel: channel})
}

// SetFavorite marks a peer as a favorite. Messages parked for that peer
// after the call go to the long-retention store-and-forward class;
// messages already parked keep the class they were stored in.
func (n *Node) SetFavorite(peerID string, favorite bool) error {
	if !validPeerID(peerID) {
		return ErrInvalidPeer
	}
	return n.control(&controlRequest{op: opSetFavorite, peerID: peerID, flag: favorite})
}

// MarkRead emits a read receipt for a private message.
func (n *Node) MarkRead(peerID, messageID string) error {
	if !validPeerID(peerID) {
		return ErrInvalidPeer
	}
	return n.control(&controlRequest{op: opMarkRead, peerID: peerID, messageID: messageID})
}

// AttachMessageQueue plugs a persistent store-and-forward backing in.
func (n *Node) AttachMessageQueue(queue MessageQueue) error {
	n.mu.Lock()
	n.pendingQueue = queue
	running := n.status == StatusRunning
	n.mu.Unlock()

	if !running {
		return nil
	}
	return n.control(&controlRequest{op: opAttachQueue, queue: queue})
}

// Peers returns a snapshot of the peer table.
func (n *Node) Peers() []Peer {
	coord := n.coordinator()
	if coord == nil {
		return nil
	}
	req := &queryRequest{reply: make(chan []Peer, 1)}
	coord.enqueue(event{kind: evQuery, query: req})
	select {
	case peers := <-req.reply:
		return peers
	case <-coord.stopped:
		return nil
	}
}

// PeerID returns the node's own peer id, empty before the first Start.
// After Stop it still returns the id of the last session.
func (n *Node) PeerID() string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.peerID
}

// Nickname returns the announced nickname.
func (n *Node) Nickname() string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.nickname
}

// Status returns the current lifecycle state.
func (n *Node) Status() Status {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.status
}

// Messages is the stream of delivered chat messages.
func (n *Node) Messages() <-chan IncomingMessage { return n.messages }

// PeerEvents is the stream of peer discovery and lifecycle changes.
func (n *Node) PeerEvents() <-chan PeerEvent { return n.peerEvents }

// DeliveryEvents is the stream of acks and read receipts.
func (n *Node) DeliveryEvents() <-chan DeliveryEvent { return n.deliveryEvents }

// ChannelEvents is the stream of channel membership announcements.
func (n *Node) ChannelEvents() <-chan ChannelEvent { return n.channelEvents }

// StatusChanges is the stream of lifecycle transitions.
func (n *Node) StatusChanges() <-chan Status { return n.statusChanges }

// Logs is the stream of protocol log lines, mirroring what goes to the
// standard logger. Silent drops (bad decodes, duplicates, failed
// signatures, failed decryptions) are reported here and on the standard
// logger, never as errors to callers.
func (n *Node) Logs() <-chan string { return n.logs }

// ===== INTERNAL =====

func (n *Node) send(req *sendRequest) error {
	coord := n.coordinator()
	if coord == nil {
		return ErrNotRunning
	}
	req.reply = make(chan error, 1)
	coord.enqueue(event{kind: evSend, send: req})
	select {
	case err := <-req.reply:
		return err
	case <-coord.stopped:
		return ErrNotRunning
	}
}

func (n *Node) control(req *controlRequest) error {
	coord := n.coordinator()
	if coord == nil {
		return ErrNotRunning
	}
	req.reply = make(chan error, 1)
	coord.enqueue(event{kind: evControl, control: req})
	select {
	case err := <-req.reply:
		return err
	case <-coord.stopped:
		return ErrNotRunning
	}
}

func (n *Node) coordinator() *coordinator {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.status != StatusRunning {
		return nil
	}
	return n.coord
}

func (n *Node) setStatus(s Status) {
	n.status = s
	select {
	case n.statusChanges <- s:
	default:
	}
}

// Event emission never blocks the coordinator loop; a subscriber that
// stops draining loses events rather than stalling the mesh.

func (n *Node) emitMessage(m IncomingMessage) {
	select {
	case n.messages <- m:
	default:
		log.Printf("mesh: message stream full, dropping %s", m.ID)
	}
}

func (n *Node) emitPeerEvent(e PeerEvent) {
	select {
	case n.peerEvents <- e:
	default:
	}
}

func (n *Node) emitDeliveryEvent(e DeliveryEvent) {
	select {
	case n.deliveryEvents <- e:
	default:
	}
}

func (n *Node) emitChannelEvent(e ChannelEvent) {
	select {
	case n.channelEvents <- e:
	default:
	}
}

// logf writes to the standard logger and mirrors the line onto the Logs
// stream.
func (n *Node) logf(format string, args ...any) {
	log.Printf(format, args...)
	select {
	case n.logs <- fmt.Sprintf(format, args...):
	default:
	}
}

func validPeerID(id string) bool {
	return len(id) == protocol.SenderIDSize && utf8.ValidString(id)
}
