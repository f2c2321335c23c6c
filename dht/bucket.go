package dht

import (
	"errors"
	"sort"
	"sync"
	"time"
)

// BucketSize is K, the maximum number of node records a single bucket
// may hold.
const BucketSize = 8

// ErrBucketFull is returned by Bucket.Insert when the bucket already
// holds BucketSize nodes.
var ErrBucketFull = errors.New("dht: bucket full")

// ErrOutOfRange is returned by Bucket.Insert when the node's ID falls
// outside the bucket's upper boundary.
var ErrOutOfRange = errors.New("dht: node id out of bucket range")

// Bucket holds up to BucketSize node records covering a contiguous
// range of the ID space that ends at UpperBoundary. The lower bound of
// that range is implicit: it's one more than the previous bucket's
// UpperBoundary within the owning RoutingTable, or zero for the first
// bucket.
type Bucket struct {
	UpperBoundary IDHash
	LastChanged   time.Time

	mu    sync.RWMutex
	nodes []NodeRecord
}

// NewBucket creates an empty bucket covering up to upperBoundary.
func NewBucket(upperBoundary IDHash) *Bucket {
	return &Bucket{
		UpperBoundary: upperBoundary,
		LastChanged:   time.Now(),
	}
}

// Insert adds a node to the bucket. It returns ErrOutOfRange if the
// node's ID is greater than the bucket's upper boundary, or
// ErrBucketFull if the bucket already holds BucketSize nodes; the
// caller (RoutingTable) is responsible for split or eviction policy on
// either error.
func (b *Bucket) Insert(node NodeRecord) error {
	if b.UpperBoundary.Compare(node.ID) < 0 {
		return ErrOutOfRange
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if len(b.nodes) >= BucketSize {
		return ErrBucketFull
	}

	b.nodes = append(b.nodes, node)
	b.LastChanged = time.Now()
	return nil
}

// Touch updates the LastSeen timestamp of the node matching id and
// resets its failure count. It is a no-op if id is not present.
func (b *Bucket) Touch(id IDHash) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for i := range b.nodes {
		if b.nodes[i].ID == id {
			b.nodes[i].Touch()
			b.LastChanged = time.Now()
			return
		}
	}
}

// Contains reports whether id already has a node record in this
// bucket.
func (b *Bucket) Contains(id IDHash) bool {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for _, n := range b.nodes {
		if n.ID == id {
			return true
		}
	}
	return false
}

// Covers reports whether id falls within this bucket's range, i.e.
// id <= UpperBoundary. Combined with the RoutingTable's ordering
// invariant this is sufficient to locate the unique owning bucket.
func (b *Bucket) Covers(id IDHash) bool {
	return id.LessOrEqual(b.UpperBoundary)
}

// Len returns the number of nodes currently stored in the bucket.
func (b *Bucket) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.nodes)
}

// Full reports whether the bucket holds BucketSize nodes.
func (b *Bucket) Full() bool {
	return b.Len() >= BucketSize
}

// Nodes returns a copy of every node record currently in the bucket.
func (b *Bucket) Nodes() []NodeRecord {
	b.mu.RLock()
	defer b.mu.RUnlock()

	out := make([]NodeRecord, len(b.nodes))
	copy(out, b.nodes)
	return out
}

// Questionables returns the nodes that haven't been heard from in over
// 15 minutes, oldest LastSeen first. Callers use this to pick eviction
// candidates when a bucket is full.
func (b *Bucket) Questionables() []NodeRecord {
	b.mu.RLock()
	defer b.mu.RUnlock()

	var out []NodeRecord
	for _, n := range b.nodes {
		if n.Questionable() {
			out = append(out, n)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].LastSeen.Before(out[j].LastSeen)
	})
	return out
}

// Remove deletes the node matching id from the bucket, if present.
// Returns true if a node was removed.
func (b *Bucket) Remove(id IDHash) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	for i, n := range b.nodes {
		if n.ID == id {
			b.nodes = append(b.nodes[:i], b.nodes[i+1:]...)
			b.LastChanged = time.Now()
			return true
		}
	}
	return false
}

// splitAt partitions the bucket's nodes at pivot: nodes with
// id <= pivot move into a new bucket returned to the caller, while
// nodes above pivot stay in b. b's UpperBoundary is unchanged; the
// returned bucket's UpperBoundary is pivot. This is the low-level
// half of RoutingTable.split.
func (b *Bucket) splitAt(pivot IDHash) *Bucket {
	b.mu.Lock()
	defer b.mu.Unlock()

	lower := NewBucket(pivot)
	var remaining []NodeRecord
	for _, n := range b.nodes {
		if n.ID.LessOrEqual(pivot) {
			lower.nodes = append(lower.nodes, n)
		} else {
			remaining = append(remaining, n)
		}
	}
	b.nodes = remaining
	b.LastChanged = time.Now()
	lower.LastChanged = time.Now()
	return lower
}
