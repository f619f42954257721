// Package runtime hosts the live coordination state: the connection
// registry, presence propagation, the message pipeline, typing indicators
// and read receipts. It contains no transport or storage code.
package runtime

import (
	"sort"
	"sync"

	"pairchat/contract"
	"pairchat/domain"
	"pairchat/domain/event"
)

// Handle binds a connected user to their single active delivery sink.
// Handles are owned exclusively by the Registry after Register; the
// transport layer only refers to them by connection id.
type Handle struct {
	UserID       string
	DisplayName  string
	ConnectionID string
	Sink         contract.EventSink

	rooms map[domain.RoomID]struct{}
}

// Registry is the authoritative in-memory presence map, userID -> Handle.
// At most one handle per user exists at any instant: a new connection for an
// already-present user replaces the prior entry atomically.
//
// All operations are safe under unbounded concurrent callers and never
// suspend; slow work (persistence, client writes) stays outside the lock.
type Registry struct {
	mu      sync.RWMutex
	entries map[string]*Handle
	changed chan struct{}
}

func NewRegistry() *Registry {
	return &Registry{
		entries: make(map[string]*Handle),
		changed: make(chan struct{}, 1),
	}
}

// Changed signals that registry membership mutated. Signals coalesce: a
// consumer that missed several mutations still observes a state at or after
// the triggering one via Snapshot.
func (r *Registry) Changed() <-chan struct{} {
	return r.changed
}

// Register inserts or replaces the entry for the identity's user. A
// superseded handle is gone for presence purposes immediately; tearing down
// its transport connection is the transport layer's concern.
func (r *Registry) Register(identity domain.Identity, connectionID string, sink contract.EventSink) *Handle {
	h := &Handle{
		UserID:       identity.UserID,
		DisplayName:  identity.DisplayName,
		ConnectionID: connectionID,
		Sink:         sink,
		rooms:        make(map[domain.RoomID]struct{}),
	}

	r.mu.Lock()
	r.entries[identity.UserID] = h
	r.mu.Unlock()

	r.notify()
	return h
}

// Unregister removes the user's entry only if the stored handle still bears
// the given connection id. A stale disconnect racing a newer connect for the
// same user is therefore a silent no-op and never evicts the newer entry.
func (r *Registry) Unregister(userID, connectionID string) bool {
	r.mu.Lock()
	h, ok := r.entries[userID]
	if !ok || h.ConnectionID != connectionID {
		r.mu.Unlock()
		return false
	}
	delete(r.entries, userID)
	r.mu.Unlock()

	r.notify()
	return true
}

func (r *Registry) Lookup(userID string) (*Handle, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	h, ok := r.entries[userID]
	return h, ok
}

// SinkFor resolves the user's active delivery sink, if any.
func (r *Registry) SinkFor(userID string) (contract.EventSink, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	h, ok := r.entries[userID]
	if !ok {
		return nil, false
	}
	return h.Sink, true
}

// Snapshot returns the current presence set. Output order is sorted by
// username so one snapshot is stable; no user ever appears twice because
// entries are keyed by user id.
func (r *Registry) Snapshot() []event.OnlineUser {
	r.mu.RLock()
	out := make([]event.OnlineUser, 0, len(r.entries))
	for _, h := range r.entries {
		out = append(out, event.OnlineUser{ID: h.UserID, Username: h.DisplayName})
	}
	r.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].Username < out[j].Username })
	return out
}

// Sinks returns every active delivery sink, for full broadcasts.
func (r *Registry) Sinks() []contract.EventSink {
	r.mu.RLock()
	defer r.mu.RUnlock()
	sinks := make([]contract.EventSink, 0, len(r.entries))
	for _, h := range r.entries {
		sinks = append(sinks, h.Sink)
	}
	return sinks
}

// JoinRoom records room membership on the caller's handle. Joining twice is
// a no-op, as is joining while disconnected.
func (r *Registry) JoinRoom(userID string, room domain.RoomID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if h, ok := r.entries[userID]; ok {
		h.rooms[room] = struct{}{}
	}
}

// LeaveRoom removes room membership. Leaving when absent is a no-op.
func (r *Registry) LeaveRoom(userID string, room domain.RoomID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if h, ok := r.entries[userID]; ok {
		delete(h.rooms, room)
	}
}

// SinksForRoom resolves the delivery sinks of every connection currently
// joined to the room.
func (r *Registry) SinksForRoom(room domain.RoomID) []contract.EventSink {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var sinks []contract.EventSink
	for _, h := range r.entries {
		if _, joined := h.rooms[room]; joined {
			sinks = append(sinks, h.Sink)
		}
	}
	return sinks
}

func (r *Registry) notify() {
	select {
	case r.changed <- struct{}{}:
	default:
		// A signal is already pending; the consumer will snapshot a state
		// at least as fresh as this mutation.
	}
}
