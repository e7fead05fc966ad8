package mesh

import (
	"sort"
	"time"
)

// MessageQueue is the optional persistent backing for the
// store-and-forward buffer. pkg/storage provides a sqlite implementation;
// attaching one is opt-in via the facade.
type MessageQueue interface {
	Enqueue(recipientID, messageID string, packet []byte, favorite bool) error
	Drain(recipientID string) ([][]byte, error)
	DeleteExpired() (int64, error)
}

// StoredMessage is one parked delivery: the full encoded packet plus the
// metadata needed for retention and FIFO ordering.
type StoredMessage struct {
	MessageID   string
	RecipientID string
	SenderID    string
	Channel     string
	Packet      []byte // encoded wire packet, emitted verbatim on drain
	Timestamp   uint64 // sender's unix millis
	IsPrivate   bool
	IsSigned    bool
	StoredAt    time.Time
}

// storeForward holds per-recipient queues in two retention classes:
// regular (12 h) and favorites (168 h). It is a neutral queue: callers
// decide what gets parked; the coordinator drains on ANNOUNCE.
type storeForward struct {
	regular   map[string][]*StoredMessage
	favorites map[string][]*StoredMessage
}

func newStoreForward() *storeForward {
	return &storeForward{
		regular:   make(map[string][]*StoredMessage),
		favorites: make(map[string][]*StoredMessage),
	}
}

func (s *storeForward) enqueue(msg *StoredMessage, favorite bool) {
	if favorite {
		s.favorites[msg.RecipientID] = append(s.favorites[msg.RecipientID], msg)
	} else {
		s.regular[msg.RecipientID] = append(s.regular[msg.RecipientID], msg)
	}
}

// drain removes and returns everything parked for a recipient in
// insertion order across both classes.
func (s *storeForward) drain(recipientID string) []*StoredMessage {
	out := append([]*StoredMessage(nil), s.regular[recipientID]...)
	out = append(out, s.favorites[recipientID]...)
	delete(s.regular, recipientID)
	delete(s.favorites, recipientID)

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].StoredAt.Before(out[j].StoredAt)
	})
	return out
}

// cleanup enforces the retention windows.
func (s *storeForward) cleanup(now time.Time, regularRetention, favoritesRetention time.Duration) {
	expireClass(s.regular, now, regularRetention)
	expireClass(s.favorites, now, favoritesRetention)
}

func expireClass(class map[string][]*StoredMessage, now time.Time, retention time.Duration) {
	for id, queue := range class {
		kept := queue[:0]
		for _, msg := range queue {
			if now.Sub(msg.StoredAt) <= retention {
				kept = append(kept, msg)
			}
		}
		if len(kept) == 0 {
			delete(class, id)
		} else {
			class[id] = kept
		}
	}
}

func (s *storeForward) pending(recipientID string) int {
	return len(s.regular[recipientID]) + len(s.favorites[recipientID])
}

func (s *storeForward) clear() {
	s.regular = make(map[string][]*StoredMessage)
	s.favorites = make(map[string][]*StoredMessage)
}
