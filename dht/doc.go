// Package dht implements the request-handling core of a Mainline
// BitTorrent DHT (Kademlia-style) node: the 160-bit identifier algebra,
// the k-bucket routing table, the peer-announcement index, the token
// authority that authorizes announce_peer calls, and the bencode
// query/response state machine that ties them together.
//
// # Architecture
//
// A node's identity and every peer/target it reasons about is a 160-bit
// ID (IDHash). Proximity between two IDs is their XOR distance, which
// gives Kademlia its unidirectional routing topology.
//
// Key components:
//
//   - IDHash: 160-bit identifier with XOR distance and total order
//   - Endpoint: IPv4 address + UDP port, with a 6-byte compact wire form
//   - Bucket: bounded (K=8) list of node records covering an ID range
//   - RoutingTable: ordered, gapless partition of the ID space into buckets
//   - PeerIndex: info_hash -> announced peer endpoints
//   - TokenAuthority: two-generation signer binding announce_peer to an IP
//   - MessageCodec: bencode wire schema (ping/find_node/get_peers/announce_peer)
//   - Handler: dispatches a parsed message against the above
//
// # Routing Table
//
// The routing table starts as a single bucket spanning the whole ID
// space and splits on demand, Kademlia-style:
//
//	table := dht.NewRoutingTable(selfID)
//	table.TryInsert(node)
//	closest := table.FindClosest(targetID, 8)
//
// FindClosest widens outward from the bucket containing the target
// until it has gathered enough candidates, then sorts by XOR distance.
//
// # Tokens
//
// get_peers replies carry a token that a subsequent announce_peer from
// the same IP must present. Tokens survive exactly one secret rotation:
//
//	auth := dht.NewTokenAuthority()
//	token := auth.Sign(endpoint)
//	auth.Verify(token, endpoint) // true
//	auth.Rotate()
//	auth.Verify(token, endpoint) // still true
//	auth.Rotate()
//	auth.Verify(token, endpoint) // false
//
// # Handler
//
// The Handler is stateless per message; all state lives in the
// RoutingTable, PeerIndex, TokenAuthority and TransactionStore it is
// constructed with.
//
//	h := dht.NewHandler(selfID, table, peers, auth, transactions)
//	reply := h.Dispatch(msg, sourceEndpoint)
//
// Dispatch never blocks and never returns an error to its caller: parse
// failures are dropped by the codec before reaching the handler, and
// semantic failures are turned into Error replies per the wire schema.
//
// # Thread Safety
//
// RoutingTable, PeerIndex and TokenAuthority each guard their state with
// a sync.RWMutex so a host may call Handler.Dispatch from multiple
// goroutines; the single-threaded model described by the protocol is
// the default but not required.
package dht
