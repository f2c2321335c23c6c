package dht

import (
	"net"
	"testing"
)

func TestPeerIndexGetEmpty(t *testing.T) {
	p := NewPeerIndex()
	if got := p.Get(idWithByte0(0x22)); got != nil {
		t.Fatalf("Get on empty index = %v, want nil", got)
	}
}

func TestPeerIndexAnnounceAppends(t *testing.T) {
	p := NewPeerIndex()
	infoHash := idWithByte0(0x22)
	e1, _ := NewEndpoint(net.ParseIP("10.0.0.1"), 1000)
	e2, _ := NewEndpoint(net.ParseIP("10.0.0.2"), 2000)

	p.Announce(infoHash, e1)
	p.Announce(infoHash, e2)

	got := p.Get(infoHash)
	if len(got) != 2 {
		t.Fatalf("len(Get()) = %d, want 2", len(got))
	}
	if got[0] != e1 || got[1] != e2 {
		t.Fatalf("insertion order not preserved: %+v", got)
	}
}

func TestPeerIndexAllowsDuplicates(t *testing.T) {
	p := NewPeerIndex()
	infoHash := idWithByte0(0x22)
	e, _ := NewEndpoint(net.ParseIP("10.0.0.1"), 1000)

	p.Announce(infoHash, e)
	p.Announce(infoHash, e)

	if got := p.Get(infoHash); len(got) != 2 {
		t.Fatalf("len(Get()) = %d, want 2 (duplicates tolerated)", len(got))
	}
}

func TestPeerIndexGetReturnsCopy(t *testing.T) {
	p := NewPeerIndex()
	infoHash := idWithByte0(0x22)
	e, _ := NewEndpoint(net.ParseIP("10.0.0.1"), 1000)
	p.Announce(infoHash, e)

	got := p.Get(infoHash)
	got[0].Port = 9999

	if p.Get(infoHash)[0].Port == 9999 {
		t.Fatal("mutating Get's result must not affect the index")
	}
}

func TestPeerIndexCount(t *testing.T) {
	p := NewPeerIndex()
	e, _ := NewEndpoint(net.ParseIP("10.0.0.1"), 1000)
	p.Announce(idWithByte0(0x11), e)
	p.Announce(idWithByte0(0x22), e)
	p.Announce(idWithByte0(0x22), e)

	if p.Count() != 2 {
		t.Fatalf("Count() = %d, want 2", p.Count())
	}
}
