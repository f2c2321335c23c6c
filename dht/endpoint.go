package dht

import (
	"encoding/binary"
	"errors"
	"fmt"
	"net"
	"time"
)

// compactEndpointLen is the size in bytes of an Endpoint's compact wire
// form: 4 address octets followed by a big-endian port.
const compactEndpointLen = 6

// compactNodeLen is the size in bytes of a compact node record: a
// 20-byte IDHash followed by a 6-byte compact endpoint.
const compactNodeLen = IDLength + compactEndpointLen

// ErrInvalidEndpoint is returned when a compact endpoint buffer has the
// wrong length.
var ErrInvalidEndpoint = errors.New("dht: invalid compact endpoint")

// ErrInvalidNode is returned when a compact node buffer has the wrong
// length.
var ErrInvalidNode = errors.New("dht: invalid compact node")

// Endpoint is an IPv4 address and UDP port pair, the unit of contact
// information exchanged by the DHT.
type Endpoint struct {
	IP   [4]byte
	Port uint16
}

// NewEndpoint builds an Endpoint from a 4-byte IPv4 address and a port.
func NewEndpoint(ip net.IP, port uint16) (Endpoint, error) {
	var e Endpoint
	v4 := ip.To4()
	if v4 == nil {
		return e, fmt.Errorf("dht: %v is not an IPv4 address", ip)
	}
	copy(e.IP[:], v4)
	e.Port = port
	return e, nil
}

// String renders the endpoint as "a.b.c.d:port".
func (e Endpoint) String() string {
	return fmt.Sprintf("%d.%d.%d.%d:%d", e.IP[0], e.IP[1], e.IP[2], e.IP[3], e.Port)
}

// UDPAddr returns the endpoint as a *net.UDPAddr, for use by a socket
// layer external to this package.
func (e Endpoint) UDPAddr() *net.UDPAddr {
	return &net.UDPAddr{IP: net.IP(e.IP[:]), Port: int(e.Port)}
}

// Compact encodes the endpoint into its 6-byte wire form: 4 address
// octets followed by the port, big-endian.
func (e Endpoint) Compact() [compactEndpointLen]byte {
	var out [compactEndpointLen]byte
	copy(out[0:4], e.IP[:])
	binary.BigEndian.PutUint16(out[4:6], e.Port)
	return out
}

// DecodeEndpoint parses a 6-byte compact endpoint. The reverse of
// Compact.
func DecodeEndpoint(b []byte) (Endpoint, error) {
	var e Endpoint
	if len(b) != compactEndpointLen {
		return e, ErrInvalidEndpoint
	}
	copy(e.IP[:], b[0:4])
	e.Port = binary.BigEndian.Uint16(b[4:6])
	return e, nil
}

// NodeRecord is a known DHT peer: its identifier, contact endpoint, and
// the bookkeeping a RoutingTable needs to decide whether it is still
// worth keeping around.
type NodeRecord struct {
	ID            IDHash
	Endpoint      Endpoint
	LastSeen      time.Time
	FailedQueries uint8
}

// NewNodeRecord creates a node record observed for the first time now.
func NewNodeRecord(id IDHash, endpoint Endpoint) NodeRecord {
	return NodeRecord{ID: id, Endpoint: endpoint, LastSeen: time.Now()}
}

// Questionable reports whether the record hasn't been heard from in
// over 15 minutes, the threshold this protocol uses to mark a contact
// as a candidate for eviction.
func (n NodeRecord) Questionable() bool {
	return time.Since(n.LastSeen) > 15*time.Minute
}

// Touch records fresh traffic from this node, resetting its staleness
// clock and any accumulated failure count.
func (n *NodeRecord) Touch() {
	n.LastSeen = time.Now()
	n.FailedQueries = 0
}

// Distance returns the XOR distance from this record's ID to other.
func (n NodeRecord) Distance(other IDHash) IDHash {
	return n.ID.XOR(other)
}

// Compact encodes the node record into the 26-byte compact-node-info
// form: a 20-byte ID followed by a 6-byte compact endpoint.
func (n NodeRecord) Compact() [compactNodeLen]byte {
	var out [compactNodeLen]byte
	copy(out[0:IDLength], n.ID[:])
	endpoint := n.Endpoint.Compact()
	copy(out[IDLength:], endpoint[:])
	return out
}

// DecodeNode parses a single 26-byte compact node record.
func DecodeNode(b []byte) (NodeRecord, error) {
	var n NodeRecord
	if len(b) != compactNodeLen {
		return n, ErrInvalidNode
	}
	copy(n.ID[:], b[0:IDLength])
	endpoint, err := DecodeEndpoint(b[IDLength:])
	if err != nil {
		return n, ErrInvalidNode
	}
	n.Endpoint = endpoint
	n.LastSeen = time.Now()
	return n, nil
}

// EncodeCompactNodes concatenates the compact form of every node into
// a single byte string, the wire representation used for the `nodes`
// field of find_node and get_peers replies.
func EncodeCompactNodes(nodes []NodeRecord) []byte {
	out := make([]byte, 0, len(nodes)*compactNodeLen)
	for _, n := range nodes {
		compact := n.Compact()
		out = append(out, compact[:]...)
	}
	return out
}

// DecodeCompactNodes splits a `nodes` byte string into individual node
// records. An input whose length is not a multiple of compactNodeLen is
// rejected.
func DecodeCompactNodes(b []byte) ([]NodeRecord, error) {
	if len(b)%compactNodeLen != 0 {
		return nil, ErrInvalidNode
	}
	count := len(b) / compactNodeLen
	nodes := make([]NodeRecord, 0, count)
	for i := 0; i < count; i++ {
		chunk := b[i*compactNodeLen : (i+1)*compactNodeLen]
		node, err := DecodeNode(chunk)
		if err != nil {
			return nil, err
		}
		nodes = append(nodes, node)
	}
	return nodes, nil
}
