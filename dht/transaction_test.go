package dht

import (
	"net"
	"testing"
	"time"
)

func TestTransactionStoreTrackAndConsume(t *testing.T) {
	s := NewTransactionStore()
	e, _ := NewEndpoint(net.ParseIP("10.0.0.1"), 6881)
	s.Track("aa", OutstandingQuery{Kind: QueryPing, Target: e, Sent: time.Now()})

	q, ok := s.Consume("aa")
	if !ok {
		t.Fatal("Consume should find the tracked transaction")
	}
	if q.Kind != QueryPing || q.Target != e {
		t.Fatalf("Consume returned %+v", q)
	}
}

func TestTransactionStoreConsumeIsSingleUse(t *testing.T) {
	s := NewTransactionStore()
	e, _ := NewEndpoint(net.ParseIP("10.0.0.1"), 6881)
	s.Track("bb", OutstandingQuery{Kind: QueryFindNode, Target: e, Sent: time.Now()})

	if _, ok := s.Consume("bb"); !ok {
		t.Fatal("first Consume should succeed")
	}
	if _, ok := s.Consume("bb"); ok {
		t.Fatal("second Consume of the same id should find nothing")
	}
}

func TestTransactionStoreConsumeUnknown(t *testing.T) {
	s := NewTransactionStore()
	if _, ok := s.Consume("zz"); ok {
		t.Fatal("Consume of an untracked id should report not found")
	}
}
