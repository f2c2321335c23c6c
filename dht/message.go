// This file implements the MessageCodec: the bencode wire schema for
// the four Mainline DHT RPCs (ping, find_node, get_peers,
// announce_peer), built on top of github.com/jackpal/bencode-go.
//
// The codec's job stops at structure: it rejects a datagram whose
// dictionary is missing a key its inferred variant requires, but it
// does not validate the *content* of present fields (hex-decodability
// of an id, range of a port). That's the Handler's job, and it reports
// those failures as protocol errors rather than dropping the packet.
package dht

import (
	"bytes"
	"errors"

	"github.com/jackpal/bencode-go"
)

// ErrParse indicates the datagram was not valid bencode, or its
// dictionary did not match any known message schema. Per the wire
// schema's error handling design, a ParseError means the message is
// unintelligible and gets no reply at all.
var ErrParse = errors.New("dht: parse error")

// MessageKind identifies which of the three wire shapes (query,
// response, error) a Message carries — the `y` field.
type MessageKind byte

const (
	KindQuery MessageKind = iota
	KindResponse
	KindError
)

// QueryKind names one of the four RPCs this protocol implements.
type QueryKind string

const (
	QueryPing         QueryKind = "ping"
	QueryFindNode     QueryKind = "find_node"
	QueryGetPeers     QueryKind = "get_peers"
	QueryAnnouncePeer QueryKind = "announce_peer"
)

// Error codes echoed in the `e` field, per the wire schema.
const (
	ErrCodeGeneric       = 201
	ErrCodeServer        = 202
	ErrCodeProtocol      = 203
	ErrCodeMethodUnknown = 204
)

// ErrorInfo is the [code, message] pair carried by an error message.
type ErrorInfo struct {
	Code    int64
	Message string
}

// Query is the `a` argument dictionary of a query message. Fields
// irrelevant to Kind are left zero. ID, Target and InfoHash are the raw
// 40-character hex strings as they appeared on the wire; IDFromHex
// still has to validate them.
type Query struct {
	Kind     QueryKind
	ID       string
	Target   string // find_node
	InfoHash string // get_peers, announce_peer

	HasImpliedPort bool // announce_peer: whether the key was present at all
	ImpliedPort    bool
	HasPort        bool // announce_peer: whether the key was present at all
	Port           uint16
	Token          string // announce_peer
}

// Response is the `r` return dictionary of a response message. Which of
// Values/Nodes is populated (HasValues/HasNodes) depends on which query
// it answers.
type Response struct {
	ID string

	HasToken bool
	Token    string

	HasValues bool
	Values    []string // raw 6-byte compact endpoints

	HasNodes bool
	Nodes    string // raw compact-node-info byte string
}

// Message is the fully decoded form of one DHT datagram. Exactly one of
// Query, Response, Error is meaningful, selected by Kind — the tagged
// union the wire schema's `y` field encodes.
type Message struct {
	T      string // transaction id, echoed between request and reply
	Kind   MessageKind
	Client string // optional `v` field

	QueryName string // the raw `q` field, retained for UnknownMethod detection
	Query     Query
	Response  Response
	Error     ErrorInfo
}

// wireMessage is the struct-tagged shape bencode.Marshal/Unmarshal
// operate on directly; argument and return dictionaries are decoded
// generically since their key set varies by query/response kind.
type wireMessage struct {
	T string                 `bencode:"t"`
	Y string                 `bencode:"y"`
	V string                 `bencode:"v,omitempty"`
	Q string                 `bencode:"q,omitempty"`
	A map[string]interface{} `bencode:"a,omitempty"`
	R map[string]interface{} `bencode:"r,omitempty"`
	E []interface{}          `bencode:"e,omitempty"`
}

// ParseMessage decodes one DHT datagram. It returns ErrParse for
// anything that isn't valid bencode or doesn't match one of the three
// message shapes; callers must treat that as "drop silently, no reply"
// per the protocol's error handling design.
func ParseMessage(data []byte) (*Message, error) {
	var wm wireMessage
	if err := bencode.Unmarshal(bytes.NewReader(data), &wm); err != nil {
		return nil, ErrParse
	}
	if wm.T == "" {
		return nil, ErrParse
	}

	msg := &Message{T: wm.T, Client: wm.V}

	switch wm.Y {
	case "q":
		if wm.A == nil {
			return nil, ErrParse
		}
		q, err := parseQueryArgs(wm.A, wm.Q)
		if err != nil {
			return nil, err
		}
		msg.Kind = KindQuery
		msg.QueryName = wm.Q
		msg.Query = q
	case "r":
		if wm.R == nil {
			return nil, ErrParse
		}
		r, err := parseResponseArgs(wm.R)
		if err != nil {
			return nil, err
		}
		msg.Kind = KindResponse
		msg.Response = r
	case "e":
		e, err := parseErrorArgs(wm.E)
		if err != nil {
			return nil, err
		}
		msg.Kind = KindError
		msg.Error = e
	default:
		return nil, ErrParse
	}

	return msg, nil
}

// EmitMessage encodes msg back into its bencode wire form.
func EmitMessage(msg *Message) ([]byte, error) {
	wm := wireMessage{T: msg.T, V: msg.Client}

	switch msg.Kind {
	case KindQuery:
		wm.Y = "q"
		wm.Q = string(msg.Query.Kind)
		wm.A = buildQueryArgs(msg.Query)
	case KindResponse:
		wm.Y = "r"
		wm.R = buildResponseArgs(msg.Response)
	case KindError:
		wm.Y = "e"
		wm.E = []interface{}{msg.Error.Code, msg.Error.Message}
	default:
		return nil, errors.New("dht: unknown message kind")
	}

	var buf bytes.Buffer
	if err := bencode.Marshal(&buf, wm); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func isKnownQueryKind(k QueryKind) bool {
	switch k {
	case QueryPing, QueryFindNode, QueryGetPeers, QueryAnnouncePeer:
		return true
	default:
		return false
	}
}

func parseQueryArgs(a map[string]interface{}, qHint string) (Query, error) {
	id, ok := a["id"].(string)
	if !ok {
		return Query{}, ErrParse
	}

	_, hasTarget := a["target"]
	_, hasInfoHash := a["info_hash"]
	_, hasToken := a["token"]
	_, hasPort := a["port"]

	var kind QueryKind
	switch {
	case hasTarget:
		kind = QueryFindNode
	case hasInfoHash && (hasToken || hasPort):
		kind = QueryAnnouncePeer
	case hasInfoHash:
		kind = QueryGetPeers
	default:
		kind = QueryPing
	}

	// q only has to agree with the inferred shape when it names one of
	// the known RPCs; an unrecognized method name (UnknownMethod, a
	// Handler-level concern) still parses using whatever shape its
	// arguments present.
	if hint := QueryKind(qHint); qHint != "" && isKnownQueryKind(hint) && hint != kind {
		return Query{}, ErrParse
	}

	q := Query{Kind: kind, ID: id}

	switch kind {
	case QueryFindNode:
		target, ok := a["target"].(string)
		if !ok {
			return Query{}, ErrParse
		}
		q.Target = target

	case QueryGetPeers:
		infoHash, ok := a["info_hash"].(string)
		if !ok {
			return Query{}, ErrParse
		}
		q.InfoHash = infoHash

	case QueryAnnouncePeer:
		infoHash, ok := a["info_hash"].(string)
		if !ok {
			return Query{}, ErrParse
		}
		q.InfoHash = infoHash

		token, ok := a["token"].(string)
		if !ok {
			return Query{}, ErrParse
		}
		q.Token = token

		if v, present := a["implied_port"]; present {
			n, err := toInt64(v)
			if err != nil {
				return Query{}, ErrParse
			}
			q.HasImpliedPort = true
			q.ImpliedPort = n != 0
		}
		if v, present := a["port"]; present {
			n, err := toInt64(v)
			if err != nil {
				return Query{}, ErrParse
			}
			q.HasPort = true
			q.Port = uint16(n)
		}

	case QueryPing:
		// no further fields
	}

	return q, nil
}

func parseResponseArgs(r map[string]interface{}) (Response, error) {
	id, ok := r["id"].(string)
	if !ok {
		return Response{}, ErrParse
	}
	resp := Response{ID: id}

	if tokenVal, present := r["token"]; present {
		token, ok := tokenVal.(string)
		if !ok {
			return Response{}, ErrParse
		}
		resp.HasToken = true
		resp.Token = token
	}

	if valuesVal, present := r["values"]; present {
		rawList, ok := valuesVal.([]interface{})
		if !ok {
			return Response{}, ErrParse
		}
		values := make([]string, 0, len(rawList))
		for _, v := range rawList {
			s, ok := v.(string)
			if !ok {
				return Response{}, ErrParse
			}
			values = append(values, s)
		}
		resp.HasValues = true
		resp.Values = values
	}

	if nodesVal, present := r["nodes"]; present {
		nodes, ok := nodesVal.(string)
		if !ok {
			return Response{}, ErrParse
		}
		resp.HasNodes = true
		resp.Nodes = nodes
	}

	return resp, nil
}

func parseErrorArgs(e []interface{}) (ErrorInfo, error) {
	if len(e) != 2 {
		return ErrorInfo{}, ErrParse
	}
	code, err := toInt64(e[0])
	if err != nil {
		return ErrorInfo{}, ErrParse
	}
	message, ok := e[1].(string)
	if !ok {
		return ErrorInfo{}, ErrParse
	}
	return ErrorInfo{Code: code, Message: message}, nil
}

func buildQueryArgs(q Query) map[string]interface{} {
	m := map[string]interface{}{"id": q.ID}

	switch q.Kind {
	case QueryFindNode:
		m["target"] = q.Target
	case QueryGetPeers:
		m["info_hash"] = q.InfoHash
	case QueryAnnouncePeer:
		m["info_hash"] = q.InfoHash
		m["token"] = q.Token
		m["port"] = int64(q.Port)
		if q.HasImpliedPort {
			if q.ImpliedPort {
				m["implied_port"] = int64(1)
			} else {
				m["implied_port"] = int64(0)
			}
		}
	}

	return m
}

func buildResponseArgs(r Response) map[string]interface{} {
	m := map[string]interface{}{"id": r.ID}
	if r.HasToken {
		m["token"] = r.Token
	}
	if r.HasValues {
		m["values"] = r.Values
	}
	if r.HasNodes {
		m["nodes"] = r.Nodes
	}
	return m
}

// toInt64 coerces a decoded bencode integer, which may surface as any
// of Go's signed or unsigned integer kinds depending on the decoder, to
// int64.
func toInt64(v interface{}) (int64, error) {
	switch n := v.(type) {
	case int64:
		return n, nil
	case int:
		return int64(n), nil
	case uint64:
		return int64(n), nil
	default:
		return 0, ErrParse
	}
}
