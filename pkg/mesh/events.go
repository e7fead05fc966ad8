package mesh

import "time"

// IncomingMessage is a delivered chat message.
type IncomingMessage struct {
	ID             string
	SenderID       string
	SenderNickname string
	Content        string
	Channel        string // empty for plain broadcasts
	Mentions       []string
	Private        bool
	RelayedFor     string // original sender when delivered via store-and-forward
	Timestamp      time.Time
}

// PeerEventKind classifies peer lifecycle events.
type PeerEventKind int

const (
	PeerDiscovered PeerEventKind = iota
	PeerUpdated
	PeerDisconnected
)

// PeerEvent reports a peer table change.
type PeerEvent struct {
	Kind PeerEventKind
	Peer Peer
}

// DeliveryEventKind classifies delivery notifications.
type DeliveryEventKind int

const (
	MessageDelivered DeliveryEventKind = iota
	MessageRead
	DeliveryStatusRequested
)

// DeliveryEvent reports an ack, read receipt or status request for a
// message we sent.
type DeliveryEvent struct {
	Kind      DeliveryEventKind
	MessageID string
	PeerID    string
	Timestamp time.Time
}

// ChannelEventKind classifies channel control packets.
type ChannelEventKind int

const (
	ChannelJoined ChannelEventKind = iota
	ChannelRetentionChanged
)

// ChannelEvent reports channel membership and retention announcements.
type ChannelEvent struct {
	Kind        ChannelEventKind
	PeerID      string
	Channel     string
	RetentionOn bool
}

// ===== COORDINATOR EVENTS =====

type eventKind int

const (
	evIncomingBytes eventKind = iota
	evPeerSeen
	evPeerLost
	evSend
	evControl
	evQuery
)

type sendKind int

const (
	sendBroadcast sendKind = iota
	sendPrivate
	sendChannel
)

type sendRequest struct {
	kind    sendKind
	peerID  string
	channel string
	content string
	reply   chan error
}

type controlOp int

const (
	opJoinChannel controlOp = iota
	opLeaveChannel
	opSetFavorite
	opMarkRead
	opAttachQueue
)

type controlRequest struct {
	op        controlOp
	peerID    string
	channel   string
	flag      bool
	messageID string
	queue     MessageQueue
	reply     chan error
}

type queryRequest struct {
	reply chan []Peer
}

// event is the single unit the coordinator loop consumes; every state
// mutation in the mesh core happens while handling one of these.
type event struct {
	kind    eventKind
	peerID  string
	rssi    int
	digest  []byte
	data    []byte
	send    *sendRequest
	control *controlRequest
	query   *queryRequest
}
