// This file implements the Handler: the entry point that turns one
// parsed inbound Message, paired with the endpoint it arrived from,
// into mutations against a RoutingTable/PeerIndex/TokenAuthority and an
// outbound Message. The Handler itself is stateless between calls —
// every piece of state it touches is injected.
package dht

import (
	"github.com/sirupsen/logrus"
)

// ClientIdentifier is the value this core sends in the optional `v`
// field of every outbound message.
const ClientIdentifier = "MW01"

// Handler dispatches parsed Messages against a node's routing state.
type Handler struct {
	SelfID       IDHash
	Table        *RoutingTable
	Peers        *PeerIndex
	Tokens       *TokenAuthority
	Transactions TransactionStore

	log *logrus.Entry
}

// NewHandler builds a Handler over the given collaborators. All four
// are required; a zero-value field will panic the first time it's
// used, same as any other nil pointer.
func NewHandler(selfID IDHash, table *RoutingTable, peers *PeerIndex, tokens *TokenAuthority, transactions TransactionStore) *Handler {
	return &Handler{
		SelfID:       selfID,
		Table:        table,
		Peers:        peers,
		Tokens:       tokens,
		Transactions: transactions,
		log:          logrus.WithField("component", "dht.handler"),
	}
}

// Dispatch processes one inbound message from source and returns the
// reply to send, or nil if the message produces no outbound traffic
// (responses and errors never do).
func (h *Handler) Dispatch(msg *Message, source Endpoint) *Message {
	switch msg.Kind {
	case KindQuery:
		return h.dispatchQuery(msg, source)
	case KindResponse:
		h.dispatchResponse(msg)
		return nil
	case KindError:
		h.log.WithFields(logrus.Fields{
			"t":    msg.T,
			"code": msg.Error.Code,
		}).Warn("received dht error message")
		return nil
	default:
		return nil
	}
}

func (h *Handler) dispatchQuery(msg *Message, source Endpoint) *Message {
	q := msg.Query
	name := msg.QueryName
	if name == "" {
		// No `q` on the wire: the codec inferred the RPC from the
		// argument keys alone.
		name = string(q.Kind)
	}
	switch name {
	case string(QueryPing):
		return h.handlePing(msg.T, q)
	case string(QueryFindNode):
		return h.handleFindNode(msg.T, q)
	case string(QueryGetPeers):
		return h.handleGetPeers(msg.T, q, source)
	case string(QueryAnnouncePeer):
		return h.handleAnnouncePeer(msg.T, q, source)
	default:
		h.log.WithFields(logrus.Fields{
			"t":      msg.T,
			"method": msg.QueryName,
		}).Warn("unknown query method")
		return h.errorReply(msg.T, ErrCodeMethodUnknown, "Method Unknown")
	}
}

func (h *Handler) handlePing(t string, q Query) *Message {
	senderID, err := IDFromHex(q.ID)
	if err != nil {
		return h.errorReply(t, ErrCodeProtocol, "Protocol Error")
	}
	h.Table.Touch(senderID)
	return h.emptyReply(t)
}

func (h *Handler) handleFindNode(t string, q Query) *Message {
	senderID, err := IDFromHex(q.ID)
	if err != nil {
		return h.errorReply(t, ErrCodeProtocol, "Protocol Error")
	}
	target, err := IDFromHex(q.Target)
	if err != nil {
		return h.errorReply(t, ErrCodeProtocol, "Protocol Error")
	}
	h.Table.Touch(senderID)

	closest := h.Table.FindClosest(target, BucketSize)
	if len(closest) > 0 && closest[0].ID == target {
		closest = closest[:1]
	}
	return h.nodesReply(t, closest)
}

func (h *Handler) handleGetPeers(t string, q Query, source Endpoint) *Message {
	senderID, err := IDFromHex(q.ID)
	if err != nil {
		return h.errorReply(t, ErrCodeProtocol, "Protocol Error")
	}
	infoHash, err := IDFromHex(q.InfoHash)
	if err != nil {
		return h.errorReply(t, ErrCodeProtocol, "Protocol Error")
	}
	h.Table.Touch(senderID)

	token := h.Tokens.Sign(source)
	if peers := h.Peers.Get(infoHash); len(peers) > 0 {
		return h.peersReply(t, token, peers)
	}
	closest := h.Table.FindClosest(infoHash, BucketSize)
	return h.peerNodesReply(t, token, closest)
}

func (h *Handler) handleAnnouncePeer(t string, q Query, source Endpoint) *Message {
	senderID, err := IDFromHex(q.ID)
	if err != nil {
		return h.errorReply(t, ErrCodeProtocol, "Protocol Error")
	}
	infoHash, err := IDFromHex(q.InfoHash)
	if err != nil {
		return h.errorReply(t, ErrCodeProtocol, "Protocol Error")
	}
	h.Table.Touch(senderID)

	if !h.Tokens.Verify(q.Token, source) {
		return h.errorReply(t, ErrCodeProtocol, "Protocol Error")
	}

	var port uint16
	switch {
	case q.HasImpliedPort && q.ImpliedPort:
		port = source.Port
	case q.HasPort && q.Port != 0:
		port = q.Port
	default:
		return h.errorReply(t, ErrCodeProtocol, "Protocol Error")
	}

	h.Peers.Announce(infoHash, Endpoint{IP: source.IP, Port: port})
	return h.emptyReply(t)
}

// dispatchResponse updates routing state from an inbound response. Per
// the handler's contract, FoundPeers/FoundPeerNodes results are the
// lookup coordinator's concern (out of scope here) beyond touching the
// sender; only a FoundNodes reply to an outstanding find_node feeds
// nodes back into the routing table, and only when a transaction is
// actually on record for it.
func (h *Handler) dispatchResponse(msg *Message) {
	r := msg.Response
	senderID, err := IDFromHex(r.ID)
	if err != nil {
		return
	}
	h.Table.Touch(senderID)

	if !r.HasNodes || r.HasToken {
		return
	}

	outstanding, ok := h.Transactions.Consume(msg.T)
	if !ok || outstanding.Kind != QueryFindNode {
		return
	}

	nodes, err := DecodeCompactNodes([]byte(r.Nodes))
	if err != nil {
		return
	}
	for _, n := range nodes {
		h.Table.TryInsert(n)
	}
}

func (h *Handler) emptyReply(t string) *Message {
	return &Message{
		T:      t,
		Kind:   KindResponse,
		Client: ClientIdentifier,
		Response: Response{
			ID: h.SelfID.String(),
		},
	}
}

func (h *Handler) nodesReply(t string, nodes []NodeRecord) *Message {
	return &Message{
		T:      t,
		Kind:   KindResponse,
		Client: ClientIdentifier,
		Response: Response{
			ID:       h.SelfID.String(),
			HasNodes: true,
			Nodes:    string(EncodeCompactNodes(nodes)),
		},
	}
}

func (h *Handler) peersReply(t, token string, peers []Endpoint) *Message {
	values := make([]string, len(peers))
	for i, p := range peers {
		compact := p.Compact()
		values[i] = string(compact[:])
	}
	return &Message{
		T:      t,
		Kind:   KindResponse,
		Client: ClientIdentifier,
		Response: Response{
			ID:        h.SelfID.String(),
			HasToken:  true,
			Token:     token,
			HasValues: true,
			Values:    values,
		},
	}
}

func (h *Handler) peerNodesReply(t, token string, nodes []NodeRecord) *Message {
	return &Message{
		T:      t,
		Kind:   KindResponse,
		Client: ClientIdentifier,
		Response: Response{
			ID:       h.SelfID.String(),
			HasToken: true,
			Token:    token,
			HasNodes: true,
			Nodes:    string(EncodeCompactNodes(nodes)),
		},
	}
}

func (h *Handler) errorReply(t string, code int64, message string) *Message {
	return &Message{
		T:      t,
		Kind:   KindError,
		Client: ClientIdentifier,
		Error: ErrorInfo{
			Code:    code,
			Message: message,
		},
	}
}
