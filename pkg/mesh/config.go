package mesh

import "time"

// Config holds the protocol timers and caps.
type Config struct {
	AnnounceInterval time.Duration // periodic self-identification
	GCInterval       time.Duration // dedup/peer/queue housekeeping

	PeerEvictAfter time.Duration // drop peers unseen this long

	DedupCapacity  int           // bounded seen-set, LRU beyond this
	DedupRetention time.Duration // entries older than this are collected

	FragmentTimeout    time.Duration // incomplete reassembly expiry
	FragmentMaxPerPeer int           // reassembly buffer cap per peer

	RegularRetention   time.Duration // store-and-forward, default class
	FavoritesRetention time.Duration // store-and-forward, favorites class

	EventBuffer int // capacity of the facade event channels
}

// DefaultConfig returns the protocol defaults.
func DefaultConfig() *Config {
	return &Config{
		AnnounceInterval:   30 * time.Second,
		GCInterval:         60 * time.Second,
		PeerEvictAfter:     5 * time.Minute,
		DedupCapacity:      10000,
		DedupRetention:     10 * time.Minute,
		FragmentTimeout:    60 * time.Second,
		FragmentMaxPerPeer: 4 * 64 * 1024,
		RegularRetention:   12 * time.Hour,
		FavoritesRetention: 168 * time.Hour,
		EventBuffer:        64,
	}
}
