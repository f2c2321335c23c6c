package dht

import "sync"

// PeerIndex maps an info-hash to the endpoints of peers that have
// announced themselves for it via announce_peer. Insertion order is
// preserved and duplicates are allowed, matching the protocol's
// tolerance for repeated announcements; this core applies no eviction
// policy of its own (see the package's handling of peer list growth in
// the design notes for an external policy's responsibility).
type PeerIndex struct {
	mu    sync.RWMutex
	peers map[IDHash][]Endpoint
}

// NewPeerIndex creates an empty peer index.
func NewPeerIndex() *PeerIndex {
	return &PeerIndex{peers: make(map[IDHash][]Endpoint)}
}

// Get returns the endpoints announced for infoHash, or nil if none have
// been recorded.
func (p *PeerIndex) Get(infoHash IDHash) []Endpoint {
	p.mu.RLock()
	defer p.mu.RUnlock()

	endpoints := p.peers[infoHash]
	if len(endpoints) == 0 {
		return nil
	}
	out := make([]Endpoint, len(endpoints))
	copy(out, endpoints)
	return out
}

// Announce appends endpoint to the list of peers for infoHash, creating
// the entry if this is the first announcement for that hash.
func (p *PeerIndex) Announce(infoHash IDHash, endpoint Endpoint) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.peers[infoHash] = append(p.peers[infoHash], endpoint)
}

// Count returns the number of distinct info-hashes currently tracked.
func (p *PeerIndex) Count() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.peers)
}
