// This file implements the RoutingTable: an ordered, gapless partition
// of the 160-bit ID space into Buckets, with on-demand splitting around
// the local node's own ID and a widening nearest-neighbor search.
package dht

import (
	"sort"
	"sync"
)

// maxSplitDepth bounds the recursive splitting TryInsert may perform
// to insert a single node: one split per ID bit, at most.
const maxSplitDepth = IDLength * 8

// RoutingTable is an ordered list of Buckets covering [0, 2^160) without
// gaps or overlap. It starts as a single bucket and splits around the
// owning node's own ID as that bucket fills, following Kademlia's
// standard routing table construction.
type RoutingTable struct {
	selfID IDHash

	mu      sync.RWMutex
	buckets []*Bucket // ascending by UpperBoundary; last is always MaxIDHash()
}

// NewRoutingTable creates a routing table for selfID, starting as a
// single bucket spanning the entire ID space.
func NewRoutingTable(selfID IDHash) *RoutingTable {
	return &RoutingTable{
		selfID:  selfID,
		buckets: []*Bucket{NewBucket(MaxIDHash())},
	}
}

// findBucketIndex returns the index of the unique bucket covering id.
// Callers must hold at least a read lock.
func (rt *RoutingTable) findBucketIndex(id IDHash) int {
	for i, b := range rt.buckets {
		if b.Covers(id) {
			return i
		}
	}
	// Unreachable: the last bucket always covers MaxIDHash() and every
	// id is <= MaxIDHash().
	return len(rt.buckets) - 1
}

// FindBucket returns the bucket that owns id.
func (rt *RoutingTable) FindBucket(id IDHash) *Bucket {
	rt.mu.RLock()
	defer rt.mu.RUnlock()
	return rt.buckets[rt.findBucketIndex(id)]
}

// Touch records fresh traffic from id, updating its entry's LastSeen if
// it has one. No-op if id isn't currently in the table.
func (rt *RoutingTable) Touch(id IDHash) {
	rt.mu.RLock()
	bucket := rt.buckets[rt.findBucketIndex(id)]
	rt.mu.RUnlock()
	bucket.Touch(id)
}

// TryInsert attempts to add node to the table. If its target bucket is
// full and that bucket is the one actually owning the local node's own
// ID (not merely a bucket whose upper boundary happens to be >=
// selfID — Bucket.Covers alone doesn't account for a bucket's implicit
// lower bound, only findBucketIndex's ordered search does), the bucket
// is split at selfID and insertion is retried. A bucket whose upper
// boundary already equals selfID can't be split again that way —
// splitAt(selfID) on a bucket already bounded at selfID would move
// every one of its nodes into a fresh bucket with the exact same upper
// boundary, leaving a duplicate-boundary bucket behind and making no
// progress — so that case drops the newcomer instead of recursing.
// Otherwise the node is also dropped. Returns true iff the node was
// inserted.
func (rt *RoutingTable) TryInsert(node NodeRecord) bool {
	rt.mu.Lock()
	defer rt.mu.Unlock()

	for depth := 0; depth < maxSplitDepth; depth++ {
		idx := rt.findBucketIndex(node.ID)
		bucket := rt.buckets[idx]

		err := bucket.Insert(node)
		switch err {
		case nil:
			return true
		case ErrOutOfRange:
			// Shouldn't happen: findBucketIndex already located the
			// covering bucket.
			return false
		case ErrBucketFull:
			if idx != rt.findBucketIndex(rt.selfID) {
				return false
			}
			if bucket.UpperBoundary == rt.selfID {
				return false
			}
			rt.splitLocked(idx, rt.selfID)
			// retry against the freshly split buckets
		default:
			return false
		}
	}
	return false
}

// split subdivides the bucket covering pivot into two buckets spanning
// the same overall range: a new bucket ending at pivot, and the
// original bucket (unchanged upper boundary) holding what's left above
// pivot. The new bucket is inserted immediately before the original in
// the ordered list, preserving the table's ascending-boundary
// invariant.
func (rt *RoutingTable) split(pivot IDHash) {
	rt.mu.Lock()
	defer rt.mu.Unlock()
	idx := rt.findBucketIndex(pivot)
	rt.splitLocked(idx, pivot)
}

// splitLocked is split's implementation; callers must hold rt.mu.
// Splitting at a bucket's own upper boundary would produce a second
// bucket with an identical boundary and move nothing into the
// original, so that degenerate case is a no-op; TryInsert already
// avoids calling this with such a pivot, but split, the lock-taking
// entry point, has no such guarantee from its caller.
func (rt *RoutingTable) splitLocked(idx int, pivot IDHash) {
	original := rt.buckets[idx]
	if original.UpperBoundary == pivot {
		return
	}

	lower := original.splitAt(pivot)

	rt.buckets = append(rt.buckets, nil)
	copy(rt.buckets[idx+1:], rt.buckets[idx:])
	rt.buckets[idx] = lower
}

// nodeDistance pairs a node record with its precomputed distance to a
// search target, so sorting doesn't recompute XOR repeatedly.
type nodeDistance struct {
	node NodeRecord
	dist IDHash
}

// FindClosest returns up to n nodes with the smallest XOR distance to
// target, sorted ascending by that distance (ties broken by lower ID).
// It locates the bucket containing target, then widens outward by
// alternating index offsets until it has accumulated at least n
// candidates and widening further can no longer improve the result, or
// every bucket has been visited.
func (rt *RoutingTable) FindClosest(target IDHash, n int) []NodeRecord {
	rt.mu.RLock()
	defer rt.mu.RUnlock()

	if n <= 0 || len(rt.buckets) == 0 {
		return nil
	}

	center := rt.findBucketIndex(target)
	visited := make(map[int]bool, len(rt.buckets))
	var candidates []nodeDistance

	collect := func(idx int) {
		if idx < 0 || idx >= len(rt.buckets) || visited[idx] {
			return
		}
		visited[idx] = true
		for _, node := range rt.buckets[idx].Nodes() {
			candidates = append(candidates, nodeDistance{node: node, dist: node.Distance(target)})
		}
	}

	maxDistance := func() IDHash {
		max := candidates[0].dist
		for _, c := range candidates[1:] {
			if max.Less(c.dist) {
				max = c.dist
			}
		}
		return max
	}

	collect(center)
	for offset := 1; len(visited) < len(rt.buckets); offset++ {
		before := len(candidates)
		var beforeMax IDHash
		haveBefore := len(candidates) >= n
		if haveBefore {
			beforeMax = maxDistance()
		}

		collect(center + offset)
		collect(center - offset)

		if len(candidates) < n {
			continue
		}
		if !haveBefore {
			continue
		}
		if len(candidates) == before {
			break
		}
		if !maxDistance().Less(beforeMax) {
			break
		}
	}

	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].dist != candidates[j].dist {
			return candidates[i].dist.Less(candidates[j].dist)
		}
		return candidates[i].node.ID.Less(candidates[j].node.ID)
	})

	if len(candidates) > n {
		candidates = candidates[:n]
	}

	out := make([]NodeRecord, len(candidates))
	for i, c := range candidates {
		out[i] = c.node
	}
	return out
}

// BucketCount returns the number of buckets currently in the table,
// mostly useful for tests and diagnostics.
func (rt *RoutingTable) BucketCount() int {
	rt.mu.RLock()
	defer rt.mu.RUnlock()
	return len(rt.buckets)
}

// Buckets returns a snapshot slice of the table's buckets in ascending
// order, for tests and diagnostics.
func (rt *RoutingTable) Buckets() []*Bucket {
	rt.mu.RLock()
	defer rt.mu.RUnlock()
	out := make([]*Bucket, len(rt.buckets))
	copy(out, rt.buckets)
	return out
}
