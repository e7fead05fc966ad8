package mesh

import (
	"time"

	"github.com/benbjohnson/clock"

	"github.com/bitmesh/bitmesh-node/pkg/crypto"
	"github.com/bitmesh/bitmesh-node/pkg/protocol"
	"github.com/bitmesh/bitmesh-node/pkg/transport"
)

// Per-fragment overhead: packet header + sender + recipient + fragment
// header, rounded up so every fragment fits one GATT write.
const fragmentOverhead = protocol.HeaderSize + protocol.SenderIDSize +
	protocol.RecipientIDSize + protocol.FragmentHeaderSize

// coordinator owns every piece of mutable mesh state and mutates it from
// a single loop goroutine. Transport callbacks, facade calls and timers
// all funnel into the events channel.
type coordinator struct {
	cfg    *Config
	clk    clock.Clock
	driver transport.Driver
	node   *Node

	selfID   protocol.PeerID
	nickname string

	identity *crypto.Identity
	sessions *crypto.SessionStore

	peers *peerTable
	dedup *dedupSet
	sf    *storeForward
	frags *reassembler
	queue MessageQueue

	channels map[string]struct{}

	// one-shot guard for key-exchange replies, keyed by
	// (sender, first 16 bytes of the exchanged key)
	exchangeSeen map[string]struct{}

	events  chan event
	stop    chan struct{}
	stopped chan struct{}

	lastMillis uint64
}

func newCoordinator(node *Node, cfg *Config, clk clock.Clock, driver transport.Driver,
	identity *crypto.Identity, selfID protocol.PeerID, nickname string) (*coordinator, error) {

	dedup, err := newDedupSet(cfg.DedupCapacity)
	if err != nil {
		return nil, err
	}

	return &coordinator{
		cfg:          cfg,
		clk:          clk,
		driver:       driver,
		node:         node,
		selfID:       selfID,
		nickname:     nickname,
		identity:     identity,
		sessions:     crypto.NewSessionStore(identity),
		peers:        newPeerTable(),
		dedup:        dedup,
		sf:           newStoreForward(),
		frags:        newReassembler(cfg.FragmentMaxPerPeer),
		channels:     make(map[string]struct{}),
		exchangeSeen: make(map[string]struct{}),
		events:       make(chan event, 512),
		stop:         make(chan struct{}),
		stopped:      make(chan struct{}),
	}, nil
}

// ===== TRANSPORT HANDLER =====
// Drivers call these from their own goroutines; each call becomes an
// event on the loop.

func (c *coordinator) HandlePeerSeen(peerID string, rssi int, digest []byte) {
	c.enqueue(event{kind: evPeerSeen, peerID: peerID, rssi: rssi, digest: digest})
}

func (c *coordinator) HandlePeerLost(peerID string) {
	c.enqueue(event{kind: evPeerLost, peerID: peerID})
}

func (c *coordinator) HandleBytes(peerID string, data []byte) {
	c.enqueue(event{kind: evIncomingBytes, peerID: peerID, data: data})
}

func (c *coordinator) enqueue(ev event) {
	select {
	case c.events <- ev:
	case <-c.stop:
	}
}

// ===== EVENT LOOP =====

func (c *coordinator) run() {
	defer close(c.stopped)

	announce := c.clk.Ticker(c.cfg.AnnounceInterval)
	defer announce.Stop()
	gc := c.clk.Ticker(c.cfg.GCInterval)
	defer gc.Stop()

	// Announce immediately so neighbors learn the nickname without
	// waiting a full interval.
	c.sendAnnounce()

	for {
		select {
		case <-c.stop:
			c.shutdown()
			return
		case ev := <-c.events:
			c.handleEvent(ev)
		case <-announce.C:
			c.sendAnnounce()
		case <-gc.C:
			c.runGC()
		}
	}
}

func (c *coordinator) handleEvent(ev event) {
	switch ev.kind {
	case evIncomingBytes:
		c.handleIncoming(ev.peerID, ev.data)
	case evPeerSeen:
		c.handlePeerSeen(ev.peerID, ev.rssi)
	case evPeerLost:
		c.handlePeerLost(ev.peerID)
	case evSend:
		ev.send.reply <- c.handleSend(ev.send)
	case evControl:
		ev.control.reply <- c.handleControl(ev.control)
	case evQuery:
		ev.query.reply <- c.snapshotPeers()
	}
}

func (c *coordinator) shutdown() {
	// Best-effort goodbye so neighbors mark us offline promptly.
	leave := protocol.NewPacket(protocol.TypeLeave, protocol.TTLControl,
		c.nowMillis(), c.selfID, nil, []byte(c.nickname))
	if data, err := leave.Encode(); err == nil {
		c.driver.Broadcast(data, "")
	}

	c.sessions.Clear()
	c.identity.Wipe()
	c.peers.clear()
	c.dedup.clear()
	c.sf.clear()
	c.frags.clear()
}

// ===== PEER LIFECYCLE =====

func (c *coordinator) handlePeerSeen(peerID string, rssi int) {
	now := c.clk.Now()
	_, existed := c.peers.peers[peerID]
	c.peers.sighting(peerID, rssi, now)

	if !existed {
		c.node.emitPeerEvent(PeerEvent{Kind: PeerDiscovered, Peer: c.snapshotPeer(peerID)})
	}

	// No session yet: open the handshake. One shot; the next send
	// attempt re-initiates if this exchange is lost.
	if !c.sessions.HasKey(peerID) {
		c.sendKeyExchange(peerID)
	}
}

func (c *coordinator) handlePeerLost(peerID string) {
	if p := c.peers.leave(peerID, c.clk.Now()); p != nil {
		c.node.emitPeerEvent(PeerEvent{Kind: PeerDisconnected, Peer: c.snapshotPeer(peerID)})
	}
}

// ===== INBOUND PIPELINE =====

func (c *coordinator) handleIncoming(linkPeer string, data []byte) {
	pkt, err := protocol.Decode(data)
	if err != nil {
		c.node.logf("mesh: dropping undecodable packet from link %s: %v", linkPeer, err)
		return
	}

	// Our own packets echo back from neighbors that relay them.
	if pkt.SenderID == c.selfID {
		return
	}

	// Admit: the dedup check is the first side-effecting step, so the
	// second copy of a flood is dropped before any processing.
	id := dedupID(pkt)
	if c.dedup.seen(id) {
		c.node.logf("mesh: dropping duplicate packet from %s via link %s", pkt.SenderID, linkPeer)
		return
	}
	c.dedup.add(id, c.clk.Now())

	c.peers.sighting(pkt.SenderID.String(), 0, c.clk.Now())
	c.dispatch(linkPeer, pkt)

	if pkt.TTL > 0 && !c.addressedToSelf(pkt) {
		c.relay(linkPeer, pkt)
	}
}

func (c *coordinator) addressedToSelf(pkt *protocol.Packet) bool {
	return pkt.Recipient != nil && *pkt.Recipient == c.selfID
}

func (c *coordinator) relay(linkPeer string, pkt *protocol.Packet) {
	relayed := *pkt
	relayed.TTL--

	data, err := relayed.Encode()
	if err != nil {
		c.node.logf("mesh: re-encode for relay failed: %v", err)
		return
	}
	if err := c.driver.Broadcast(data, linkPeer); err != nil {
		c.node.logf("mesh: relay broadcast failed: %v", err)
	}
}

func (c *coordinator) dispatch(linkPeer string, pkt *protocol.Packet) {
	switch pkt.Type {
	case protocol.TypeKeyExchange:
		c.handleKeyExchange(pkt)
	case protocol.TypeAnnounce:
		c.handleAnnounce(pkt)
	case protocol.TypeLeave:
		c.handleLeave(pkt)
	case protocol.TypeMessage:
		c.handleMessage(pkt)
	case protocol.TypeFragmentStart, protocol.TypeFragmentContinue, protocol.TypeFragmentEnd:
		c.handleFragment(linkPeer, pkt)
	case protocol.TypeChannelAnnounce:
		c.handleChannelAnnounce(pkt)
	case protocol.TypeChannelRetention:
		c.handleChannelRetention(pkt)
	case protocol.TypeDeliveryAck:
		c.handleDeliveryEvent(pkt, MessageDelivered)
	case protocol.TypeDeliveryStatusRequest:
		c.handleDeliveryEvent(pkt, DeliveryStatusRequested)
	case protocol.TypeReadReceipt:
		c.handleDeliveryEvent(pkt, MessageRead)
	default:
		// Unknown types still relay while TTL lasts, for forward compat.
	}
}

func (c *coordinator) handleKeyExchange(pkt *protocol.Packet) {
	if pkt.Recipient != nil && *pkt.Recipient != c.selfID {
		return
	}
	if len(pkt.Payload) != protocol.CombinedKeySize {
		c.node.logf("mesh: dropping key exchange with %d-byte key", len(pkt.Payload))
		return
	}

	sender := pkt.SenderID.String()
	if err := c.sessions.AddPeerKey(sender, pkt.Payload); err != nil {
		c.node.logf("mesh: key exchange with %s failed: %v", sender, err)
		return
	}

	exchangeID := sender + "|" + string(pkt.Payload[:16])
	if _, done := c.exchangeSeen[exchangeID]; !done {
		c.exchangeSeen[exchangeID] = struct{}{}
		c.sendKeyExchange(sender)
	}

	c.node.emitPeerEvent(PeerEvent{Kind: PeerUpdated, Peer: c.snapshotPeer(sender)})
}

func (c *coordinator) handleAnnounce(pkt *protocol.Packet) {
	sender := pkt.SenderID.String()
	_, cameOnline := c.peers.announce(sender, string(pkt.Payload), c.clk.Now())

	kind := PeerUpdated
	if cameOnline {
		kind = PeerDiscovered
	}
	c.node.emitPeerEvent(PeerEvent{Kind: kind, Peer: c.snapshotPeer(sender)})

	if cameOnline {
		c.releaseStored(sender)
	}
}

// releaseStored drains the store-and-forward queues for a peer that just
// came back, in FIFO order.
func (c *coordinator) releaseStored(peerID string) {
	var packets [][]byte
	for _, msg := range c.sf.drain(peerID) {
		packets = append(packets, msg.Packet)
	}
	if c.queue != nil {
		persisted, err := c.queue.Drain(peerID)
		if err != nil {
			c.node.logf("mesh: persistent queue drain for %s failed: %v", peerID, err)
		}
		packets = append(packets, persisted...)
	}
	if len(packets) == 0 {
		return
	}

	c.node.logf("📬 mesh: releasing %d stored messages to %s", len(packets), peerID)
	for _, data := range packets {
		if err := c.driver.Send(peerID, data); err != nil {
			// Not a direct neighbor; flood it instead.
			c.driver.Broadcast(data, "")
		}
	}
}

func (c *coordinator) handleLeave(pkt *protocol.Packet) {
	sender := pkt.SenderID.String()
	if p := c.peers.leave(sender, c.clk.Now()); p != nil {
		c.node.emitPeerEvent(PeerEvent{Kind: PeerDisconnected, Peer: c.snapshotPeer(sender)})
	}
}

func (c *coordinator) handleMessage(pkt *protocol.Packet) {
	sender := pkt.SenderID.String()

	switch {
	case pkt.IsBroadcast():
		// Verify when we can; a signed packet from a peer we never
		// handshook with is accepted as unsigned.
		if len(pkt.Signature) > 0 && c.sessions.HasKey(sender) &&
			!c.sessions.Verify(pkt.WirePayload, pkt.Signature, sender) {
			c.node.logf("mesh: dropping broadcast with bad signature from %s", sender)
			return
		}
		record, err := protocol.DecodeRecord(pkt.Payload)
		if err != nil {
			c.node.logf("mesh: dropping broadcast with bad record from %s: %v", sender, err)
			return
		}
		if record.Channel != "" && !c.joined(record.Channel) {
			return
		}
		c.deliver(sender, record, false)

	case c.addressedToSelf(pkt):
		if len(pkt.Signature) == 0 {
			c.node.logf("mesh: dropping unsigned private message from %s", sender)
			return
		}
		if !c.sessions.Verify(pkt.WirePayload, pkt.Signature, sender) {
			c.node.logf("mesh: dropping private message with bad signature from %s", sender)
			return
		}
		plaintext, err := c.sessions.Decrypt(pkt.Payload, sender)
		if err != nil {
			c.node.logf("mesh: dropping undecryptable private message from %s", sender)
			return
		}
		record, err := protocol.DecodeRecord(protocol.Unpad(plaintext))
		if err != nil {
			c.node.logf("mesh: dropping private message with bad record from %s: %v", sender, err)
			return
		}
		c.deliver(sender, record, true)
		c.sendDeliveryAck(sender, record.ID)

	default:
		// Private traffic between third parties: we have no key, we
		// only relay.
	}
}

func (c *coordinator) deliver(senderID string, record *protocol.MessageRecord, private bool) {
	c.node.emitMessage(IncomingMessage{
		ID:             record.ID,
		SenderID:       senderID,
		SenderNickname: record.SenderNickname,
		Content:        string(record.Content),
		Channel:        record.Channel,
		Mentions:       record.Mentions,
		Private:        private,
		RelayedFor:     record.OriginalSender,
		Timestamp:      time.UnixMilli(int64(record.Timestamp)),
	})
}

func (c *coordinator) handleFragment(linkPeer string, pkt *protocol.Packet) {
	frag, err := protocol.DecodeFragment(pkt.Payload)
	if err != nil {
		c.node.logf("mesh: dropping bad fragment from %s: %v", pkt.SenderID, err)
		return
	}

	assembled, _, complete := c.frags.add(pkt.SenderID, frag, c.clk.Now())
	if !complete {
		return
	}

	// The concatenation is a complete encoded packet. Re-dispatch it as
	// fresh inbound, dedup included, but do not relay the oversized whole:
	// the individual fragments already flooded onward.
	inner, err := protocol.Decode(assembled)
	if err != nil {
		c.node.logf("mesh: reassembled packet from %s does not decode: %v", pkt.SenderID, err)
		return
	}
	if inner.SenderID == c.selfID {
		return
	}
	id := dedupID(inner)
	if c.dedup.seen(id) {
		return
	}
	c.dedup.add(id, c.clk.Now())
	c.dispatch(linkPeer, inner)
}

func (c *coordinator) handleChannelAnnounce(pkt *protocol.Packet) {
	channel := string(pkt.Payload)
	if channel == "" {
		return
	}
	sender := pkt.SenderID.String()
	c.peers.sighting(sender, 0, c.clk.Now()).channels[channel] = struct{}{}

	c.node.emitChannelEvent(ChannelEvent{
		Kind:    ChannelJoined,
		PeerID:  sender,
		Channel: channel,
	})
}

func (c *coordinator) handleChannelRetention(pkt *protocol.Packet) {
	if len(pkt.Payload) < 2 {
		return
	}
	c.node.emitChannelEvent(ChannelEvent{
		Kind:        ChannelRetentionChanged,
		PeerID:      pkt.SenderID.String(),
		Channel:     string(pkt.Payload[:len(pkt.Payload)-1]),
		RetentionOn: pkt.Payload[len(pkt.Payload)-1] != 0,
	})
}

func (c *coordinator) handleDeliveryEvent(pkt *protocol.Packet, kind DeliveryEventKind) {
	if !c.addressedToSelf(pkt) {
		return
	}
	c.node.emitDeliveryEvent(DeliveryEvent{
		Kind:      kind,
		MessageID: string(pkt.Payload),
		PeerID:    pkt.SenderID.String(),
		Timestamp: time.UnixMilli(int64(pkt.Timestamp)),
	})
}

// ===== OUTBOUND PIPELINE =====

func (c *coordinator) handleSend(req *sendRequest) error {
	switch req.kind {
	case sendPrivate:
		return c.sendPrivateMessage(req.peerID, req.content)
	default:
		return c.sendPublicMessage(req.channel, req.content)
	}
}

func (c *coordinator) sendPublicMessage(channel, content string) error {
	record := &protocol.MessageRecord{
		Timestamp:      c.nowMillis(),
		ID:             protocol.NewMessageID(),
		SenderNickname: c.nickname,
		Content:        []byte(content),
		SenderPeerID:   c.selfID.String(),
		Channel:        channel,
	}
	recordBytes, err := record.Encode()
	if err != nil {
		return ErrMessageTooLarge
	}

	pkt := protocol.NewPacket(protocol.TypeMessage, protocol.TTLData,
		record.Timestamp, c.selfID, nil, recordBytes)
	pkt.Signature = c.identity.Sign(pkt.WirePayload)

	return c.emit(pkt, "")
}

func (c *coordinator) sendPrivateMessage(peerID, content string) error {
	if !c.sessions.HasKey(peerID) {
		// Initiate the handshake; the caller retries once it completes.
		c.sendKeyExchange(peerID)
		return ErrNoSessionKey
	}

	record := &protocol.MessageRecord{
		IsPrivate:         true,
		Timestamp:         c.nowMillis(),
		ID:                protocol.NewMessageID(),
		SenderNickname:    c.nickname,
		Content:           []byte(content),
		SenderPeerID:      c.selfID.String(),
		RecipientNickname: c.peers.nickname(peerID),
	}
	recordBytes, err := record.Encode()
	if err != nil {
		return ErrMessageTooLarge
	}

	padded := protocol.Pad(recordBytes, protocol.OptimalBlockSize(len(recordBytes)))
	box, err := c.sessions.Encrypt(padded, peerID)
	if err != nil {
		return ErrEncryptionFailed
	}

	recipient := protocol.MakePeerID(peerID)
	pkt := protocol.NewPacket(protocol.TypeMessage, protocol.TTLData,
		record.Timestamp, c.selfID, &recipient, box)
	pkt.Signature = c.identity.Sign(pkt.WirePayload)

	// An absent recipient cannot decrypt-and-ack; park the delivery and
	// release it on their next announce.
	if !c.peers.isOnline(peerID) {
		return c.store(pkt, record, peerID)
	}
	return c.emit(pkt, "")
}

func (c *coordinator) store(pkt *protocol.Packet, record *protocol.MessageRecord, peerID string) error {
	data, err := pkt.Encode()
	if err != nil {
		return ErrMessageTooLarge
	}

	favorite := c.peers.isFavorite(peerID)
	c.sf.enqueue(&StoredMessage{
		MessageID:   record.ID,
		RecipientID: peerID,
		SenderID:    c.selfID.String(),
		Channel:     record.Channel,
		Packet:      data,
		Timestamp:   record.Timestamp,
		IsPrivate:   record.IsPrivate,
		IsSigned:    len(pkt.Signature) > 0,
		StoredAt:    c.clk.Now(),
	}, favorite)

	if c.queue != nil {
		if err := c.queue.Enqueue(peerID, record.ID, data, favorite); err != nil {
			c.node.logf("mesh: persistent enqueue for %s failed: %v", peerID, err)
		}
	}

	c.node.logf("📬 mesh: stored message %s for offline peer %s", record.ID, peerID)
	return nil
}

func (c *coordinator) sendAnnounce() {
	pkt := protocol.NewPacket(protocol.TypeAnnounce, protocol.TTLControl,
		c.nowMillis(), c.selfID, nil, []byte(c.nickname))
	if err := c.emit(pkt, ""); err != nil {
		c.node.logf("mesh: announce failed: %v", err)
	}
}

func (c *coordinator) sendKeyExchange(peerID string) {
	recipient := protocol.MakePeerID(peerID)
	pkt := protocol.NewPacket(protocol.TypeKeyExchange, protocol.TTLControl,
		c.nowMillis(), c.selfID, &recipient, c.identity.CombinedPublicKey())
	if err := c.emit(pkt, ""); err != nil {
		c.node.logf("mesh: key exchange to %s failed: %v", peerID, err)
	}
}

func (c *coordinator) sendDeliveryAck(peerID, messageID string) {
	recipient := protocol.MakePeerID(peerID)
	pkt := protocol.NewPacket(protocol.TypeDeliveryAck, protocol.TTLControl,
		c.nowMillis(), c.selfID, &recipient, []byte(messageID))
	if err := c.emit(pkt, ""); err != nil {
		c.node.logf("mesh: delivery ack to %s failed: %v", peerID, err)
	}
}

func (c *coordinator) sendReadReceipt(peerID, messageID string) error {
	recipient := protocol.MakePeerID(peerID)
	pkt := protocol.NewPacket(protocol.TypeReadReceipt, protocol.TTLControl,
		c.nowMillis(), c.selfID, &recipient, []byte(messageID))
	return c.emit(pkt, "")
}

// emit encodes and transmits a packet, recording it in the dedup set
// first: our own floods echo back from neighbors and must not re-process.
// Packets over the transport MTU leave as fragment trains.
func (c *coordinator) emit(pkt *protocol.Packet, exceptPeer string) error {
	data, err := pkt.Encode()
	if err != nil {
		if err == protocol.ErrPayloadTooLarge {
			return ErrMessageTooLarge
		}
		return err
	}

	c.dedup.add(dedupID(pkt), c.clk.Now())

	if len(data) > c.driver.MTU() {
		return c.emitFragmented(pkt, data)
	}
	return c.transmit(pkt, data, exceptPeer)
}

func (c *coordinator) emitFragmented(pkt *protocol.Packet, data []byte) error {
	chunkSize := c.driver.MTU() - fragmentOverhead
	if chunkSize <= 0 {
		return ErrMessageTooLarge
	}

	frags := protocol.SplitIntoFragments(data, pkt.Type, chunkSize)
	if len(frags) > 0xFFFF {
		return ErrMessageTooLarge
	}

	for i, frag := range frags {
		fragPkt := protocol.NewPacket(protocol.FragmentPacketType(i, len(frags)),
			protocol.TTLData, c.nowMillis(), c.selfID, pkt.Recipient, frag.Encode())

		fragData, err := fragPkt.Encode()
		if err != nil {
			return err
		}
		c.dedup.add(dedupID(fragPkt), c.clk.Now())
		if err := c.transmit(fragPkt, fragData, ""); err != nil {
			return err
		}
	}
	return nil
}

func (c *coordinator) transmit(pkt *protocol.Packet, data []byte, exceptPeer string) error {
	if pkt.Recipient != nil {
		if err := c.driver.Send(pkt.Recipient.String(), data); err == nil {
			return nil
		}
		// Recipient is not a direct neighbor; flood toward them.
	}
	if err := c.driver.Broadcast(data, exceptPeer); err != nil {
		return ErrNetworkError
	}
	return nil
}

// ===== CONTROL & QUERIES =====

func (c *coordinator) handleControl(req *controlRequest) error {
	switch req.op {
	case opJoinChannel:
		c.channels[req.channel] = struct{}{}
		pkt := protocol.NewPacket(protocol.TypeChannelAnnounce, protocol.TTLControl,
			c.nowMillis(), c.selfID, nil, []byte(req.channel))
		return c.emit(pkt, "")
	case opLeaveChannel:
		delete(c.channels, req.channel)
		return nil
	case opSetFavorite:
		c.peers.setFavorite(req.peerID, req.flag, c.clk.Now())
		return nil
	case opMarkRead:
		return c.sendReadReceipt(req.peerID, req.messageID)
	case opAttachQueue:
		c.queue = req.queue
		return nil
	}
	return nil
}

func (c *coordinator) joined(channel string) bool {
	_, ok := c.channels[channel]
	return ok
}

func (c *coordinator) snapshotPeer(id string) Peer {
	p := c.peers.get(id)
	if p == nil {
		return Peer{ID: id}
	}
	return c.peers.snapshot(id, p, c.sessions.HasKey(id))
}

func (c *coordinator) snapshotPeers() []Peer {
	out := make([]Peer, 0, len(c.peers.peers))
	for id, p := range c.peers.peers {
		out = append(out, c.peers.snapshot(id, p, c.sessions.HasKey(id)))
	}
	return out
}

// ===== HOUSEKEEPING =====

func (c *coordinator) runGC() {
	now := c.clk.Now()

	for _, id := range c.peers.evictStale(now, c.cfg.PeerEvictAfter) {
		c.sessions.Remove(id)
		c.node.emitPeerEvent(PeerEvent{Kind: PeerDisconnected, Peer: Peer{ID: id}})
	}

	c.dedup.gc(now.Add(-c.cfg.DedupRetention))
	c.sf.cleanup(now, c.cfg.RegularRetention, c.cfg.FavoritesRetention)
	c.frags.expire(now, c.cfg.FragmentTimeout)

	if c.queue != nil {
		if _, err := c.queue.DeleteExpired(); err != nil {
			c.node.logf("mesh: persistent queue cleanup failed: %v", err)
		}
	}
}

// nowMillis stamps outbound packets. Strictly monotonic: two packets from
// this node never share a timestamp, so distinct sends with identical
// payloads (a key exchange offered to two peers, back-to-back announces)
// never collide in a neighbor's dedup set, whose tuple does not include
// the recipient.
func (c *coordinator) nowMillis() uint64 {
	ms := uint64(c.clk.Now().UnixMilli())
	if ms <= c.lastMillis {
		ms = c.lastMillis + 1
	}
	c.lastMillis = ms
	return ms
}
