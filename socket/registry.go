package socket

import (
	"fmt"
	"sync"

	"taskboard-api/domain"
)

// Subscriber is the registry's view of a live connection. *Client implements
// it; tests substitute lightweight fakes.
type Subscriber interface {
	ConnID() string
	Identity() domain.Identity
	// Enqueue offers a frame without blocking. It reports false when the
	// connection is gone or its buffer is full.
	Enqueue(frame []byte) bool
}

type connState struct {
	sub    Subscriber
	topics map[string]struct{}
	seq    uint64
}

// Registry tracks live connections, their identities, and topic
// subscriptions. State is purely in-memory and lost on restart; clients
// re-subscribe on reconnect.
type Registry struct {
	mu    sync.RWMutex
	conns map[string]*connState
	seq   uint64
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{conns: make(map[string]*connState)}
}

// Admit registers a new connection. Registering an id twice is a
// programming error.
func (r *Registry) Admit(sub Subscriber) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	id := sub.ConnID()
	if _, ok := r.conns[id]; ok {
		return fmt.Errorf("connection %s already admitted", id)
	}
	r.seq++
	r.conns[id] = &connState{
		sub:    sub,
		topics: make(map[string]struct{}),
		seq:    r.seq,
	}
	return nil
}

// Join subscribes the connection to a topic. Joining an already-joined
// topic is a no-op, as is joining from an unknown connection.
func (r *Registry) Join(connID, topic string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if st, ok := r.conns[connID]; ok {
		st.topics[topic] = struct{}{}
	}
}

// Leave unsubscribes the connection from a topic. Leaving a non-joined
// topic is a no-op.
func (r *Registry) Leave(connID, topic string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if st, ok := r.conns[connID]; ok {
		delete(st.topics, topic)
	}
}

// Release removes all registry state for a disconnecting connection.
func (r *Registry) Release(connID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.conns, connID)
}

// Subscribers returns the connections currently subscribed to the topic,
// excluding excludeConnID when non-empty.
func (r *Registry) Subscribers(topic, excludeConnID string) []Subscriber {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var subs []Subscriber
	for id, st := range r.conns {
		if id == excludeConnID {
			continue
		}
		if _, ok := st.topics[topic]; ok {
			subs = append(subs, st.sub)
		}
	}
	return subs
}

// All returns every live connection, excluding excludeConnID when non-empty.
func (r *Registry) All(excludeConnID string) []Subscriber {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var subs []Subscriber
	for id, st := range r.conns {
		if id == excludeConnID {
			continue
		}
		subs = append(subs, st.sub)
	}
	return subs
}

// FindByIdentity returns a connection authenticated as the given identity,
// or nil when the user is offline. When an identity holds several
// simultaneous connections the most recently admitted one wins.
func (r *Registry) FindByIdentity(identityID string) Subscriber {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var best *connState
	for _, st := range r.conns {
		if st.sub.Identity().ID != identityID {
			continue
		}
		if best == nil || st.seq > best.seq {
			best = st
		}
	}
	if best == nil {
		return nil
	}
	return best.sub
}

// Topics returns a copy of the connection's current subscriptions.
func (r *Registry) Topics(connID string) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	st, ok := r.conns[connID]
	if !ok {
		return nil
	}
	topics := make([]string, 0, len(st.topics))
	for t := range st.topics {
		topics = append(topics, t)
	}
	return topics
}
