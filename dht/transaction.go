package dht

import (
	"sync"
	"time"
)

// OutstandingQuery records a query this node sent out and is waiting on
// a reply for, keyed by its transaction id. It lets a Handler validate
// an inbound response against the query that provoked it before acting
// on the response's contents — an unsolicited or mismatched reply is
// dropped rather than trusted.
type OutstandingQuery struct {
	Kind   QueryKind
	Target Endpoint
	Sent   time.Time
}

// TransactionStore tracks outstanding queries by transaction id. A
// Handler consults it to decide whether an inbound response corresponds
// to a query this node actually sent; nothing about retry, timeout
// scheduling, or id generation lives here, since that belongs to the
// outbound query scheduler this package does not implement.
type TransactionStore interface {
	// Track records that transaction t was sent to query the given
	// endpoint.
	Track(t string, q OutstandingQuery)
	// Consume looks up and removes the outstanding query for t,
	// reporting whether one was found. A response transaction id is
	// single-use: a second response with the same id finds nothing.
	Consume(t string) (OutstandingQuery, bool)
}

// memoryTransactionStore is an in-memory TransactionStore, the only
// implementation this core needs; a node embedding this package is free
// to supply its own (e.g. one backed by persistent storage) since
// TransactionStore is an interface.
type memoryTransactionStore struct {
	mu      sync.Mutex
	pending map[string]OutstandingQuery
}

// NewTransactionStore creates an empty in-memory TransactionStore.
func NewTransactionStore() TransactionStore {
	return &memoryTransactionStore{pending: make(map[string]OutstandingQuery)}
}

func (s *memoryTransactionStore) Track(t string, q OutstandingQuery) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pending[t] = q
}

func (s *memoryTransactionStore) Consume(t string) (OutstandingQuery, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	q, ok := s.pending[t]
	if ok {
		delete(s.pending, t)
	}
	return q, ok
}
