package dht

import (
	"net"
	"testing"
)

func benchEndpoint(i int) Endpoint {
	e, _ := NewEndpoint(net.IPv4(10, byte(i>>16), byte(i>>8), byte(i)), uint16(1024+i%1000))
	return e
}

func benchID(i int) IDHash {
	var id IDHash
	id[0] = byte(i >> 24)
	id[1] = byte(i >> 16)
	id[2] = byte(i >> 8)
	id[3] = byte(i)
	return id
}

func BenchmarkRoutingTableTryInsert(b *testing.B) {
	selfID := benchID(0)
	rt := NewRoutingTable(selfID)
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		rt.TryInsert(NewNodeRecord(benchID(i), benchEndpoint(i)))
	}
}

func BenchmarkRoutingTableFindClosest(b *testing.B) {
	selfID := benchID(0)
	rt := NewRoutingTable(selfID)
	for i := 1; i <= 5000; i++ {
		rt.TryInsert(NewNodeRecord(benchID(i), benchEndpoint(i)))
	}

	targets := make([]IDHash, 100)
	for i := range targets {
		targets[i] = benchID(i * 997)
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		rt.FindClosest(targets[i%len(targets)], BucketSize)
	}
}

func BenchmarkHandlerDispatchPing(b *testing.B) {
	selfID := benchID(0)
	h := NewHandler(selfID, NewRoutingTable(selfID), NewPeerIndex(), NewTokenAuthority(), NewTransactionStore())
	source := benchEndpoint(1)
	senderID := benchID(2)

	msg := &Message{
		T:         "aa",
		Kind:      KindQuery,
		QueryName: string(QueryPing),
		Query:     Query{Kind: QueryPing, ID: senderID.String()},
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		h.Dispatch(msg, source)
	}
}

func BenchmarkHandlerDispatchFindNode(b *testing.B) {
	selfID := benchID(0)
	h := NewHandler(selfID, NewRoutingTable(selfID), NewPeerIndex(), NewTokenAuthority(), NewTransactionStore())
	for i := 1; i <= 2000; i++ {
		h.Table.TryInsert(NewNodeRecord(benchID(i), benchEndpoint(i)))
	}
	source := benchEndpoint(1)
	senderID := benchID(2)
	target := benchID(500)

	msg := &Message{
		T:         "bb",
		Kind:      KindQuery,
		QueryName: string(QueryFindNode),
		Query:     Query{Kind: QueryFindNode, ID: senderID.String(), Target: target.String()},
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		h.Dispatch(msg, source)
	}
}

func BenchmarkMessageCodecRoundTrip(b *testing.B) {
	msg := &Message{
		T:         "cc",
		Kind:      KindQuery,
		Client:    ClientIdentifier,
		QueryName: string(QueryFindNode),
		Query: Query{
			Kind:   QueryFindNode,
			ID:     benchID(1).String(),
			Target: benchID(2).String(),
		},
	}

	wire, err := EmitMessage(msg)
	if err != nil {
		b.Fatal(err)
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := ParseMessage(wire); err != nil {
			b.Fatal(err)
		}
	}
}
