package mesh

import (
	"encoding/binary"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/spaolacci/murmur3"

	"github.com/bitmesh/bitmesh-node/pkg/protocol"
)

// dedupSet is the bounded seen-packet set. Entries carry their insertion
// time so the GC pass can drop stale ids; the LRU bound caps memory when
// the mesh is busier than the retention window.
type dedupSet struct {
	cache *lru.Cache[uint64, time.Time]
}

func newDedupSet(capacity int) (*dedupSet, error) {
	cache, err := lru.New[uint64, time.Time](capacity)
	if err != nil {
		return nil, err
	}
	return &dedupSet{cache: cache}, nil
}

// dedupID hashes (sender, wire payload, timestamp) to 64 bits. The TTL is
// deliberately excluded so a relayed copy of the same packet still
// deduplicates.
func dedupID(p *protocol.Packet) uint64 {
	h := murmur3.New64()
	h.Write(p.SenderID[:])
	h.Write(p.WirePayload)

	var ts [8]byte
	binary.BigEndian.PutUint64(ts[:], p.Timestamp)
	h.Write(ts[:])

	return h.Sum64()
}

func (d *dedupSet) seen(id uint64) bool {
	return d.cache.Contains(id)
}

func (d *dedupSet) add(id uint64, now time.Time) {
	d.cache.Add(id, now)
}

// gc removes entries older than the retention cutoff.
func (d *dedupSet) gc(cutoff time.Time) {
	for _, key := range d.cache.Keys() {
		if inserted, ok := d.cache.Peek(key); ok && inserted.Before(cutoff) {
			d.cache.Remove(key)
		}
	}
}

func (d *dedupSet) len() int {
	return d.cache.Len()
}

func (d *dedupSet) clear() {
	d.cache.Purge()
}
