package runtime

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"pairchat/domain/event"
	"pairchat/observability"
)

type pairKey struct {
	subjectID string
	peerID    string
}

type typingEntry struct {
	subjectName string
	timer       *time.Timer
	generation  uint64
}

// TypingTracker keeps the ephemeral per-(subject, peer) composing state.
// Each refresh replaces the expiry timer rather than stacking a new one, so
// rapid signal bursts never leak timers. After a quiet period with no
// refresh the state flips to false exactly once and the peer is notified.
type TypingTracker struct {
	mu       sync.Mutex
	log      *slog.Logger
	registry *Registry
	metrics  *observability.Metrics
	quiet    time.Duration
	entries  map[pairKey]*typingEntry
}

func NewTypingTracker(log *slog.Logger, registry *Registry, metrics *observability.Metrics, quiet time.Duration) *TypingTracker {
	return &TypingTracker{
		log:      log,
		registry: registry,
		metrics:  metrics,
		quiet:    quiet,
		entries:  make(map[pairKey]*typingEntry),
	}
}

// SetTyping applies a typing signal from the subject towards the peer.
// Signals for the same pair serialize under the tracker lock; the latest
// signal always wins over an in-flight expiry.
func (t *TypingTracker) SetTyping(ctx context.Context, subjectID, subjectName, peerID string, isTyping bool) {
	t.metrics.IncrTypingSignals()
	key := pairKey{subjectID: subjectID, peerID: peerID}

	t.mu.Lock()
	if !isTyping {
		if entry, ok := t.entries[key]; ok {
			entry.timer.Stop()
			delete(t.entries, key)
		}
		t.mu.Unlock()
		t.notifyPeer(ctx, subjectID, subjectName, peerID, false)
		return
	}

	entry, ok := t.entries[key]
	if ok {
		// Refresh: replace the pending timer, never stack a second one.
		entry.timer.Stop()
		entry.generation++
	} else {
		entry = &typingEntry{subjectName: subjectName}
		t.entries[key] = entry
	}
	generation := entry.generation
	entry.timer = time.AfterFunc(t.quiet, func() {
		t.expire(key, generation)
	})
	t.mu.Unlock()

	t.notifyPeer(ctx, subjectID, subjectName, peerID, true)
}

// expire fires after an uncontested quiet period. The generation check
// discards a stale timer that lost the race against a fresh signal, so the
// final observable state is never "true" after expiry.
func (t *TypingTracker) expire(key pairKey, generation uint64) {
	t.mu.Lock()
	entry, ok := t.entries[key]
	if !ok || entry.generation != generation {
		t.mu.Unlock()
		return
	}
	name := entry.subjectName
	delete(t.entries, key)
	t.mu.Unlock()

	t.log.Debug("Typing indicator expired", "subject", key.subjectID, "peer", key.peerID)
	t.notifyPeer(context.Background(), key.subjectID, name, key.peerID, false)
}

// ClearSubject drops every pair the user owns as typing subject. Peers with
// a pending "true" observation receive the closing "false". Called on
// disconnect; safe to invoke twice.
func (t *TypingTracker) ClearSubject(ctx context.Context, subjectID string) {
	t.mu.Lock()
	var cleared []pairKey
	var names []string
	for key, entry := range t.entries {
		if key.subjectID != subjectID {
			continue
		}
		entry.timer.Stop()
		cleared = append(cleared, key)
		names = append(names, entry.subjectName)
		delete(t.entries, key)
	}
	t.mu.Unlock()

	for i, key := range cleared {
		t.notifyPeer(ctx, key.subjectID, names[i], key.peerID, false)
	}
}

// notifyPeer is room-scoped delivery: only the peer of the pair, never a
// broadcast.
func (t *TypingTracker) notifyPeer(ctx context.Context, subjectID, subjectName, peerID string, isTyping bool) {
	sink, ok := t.registry.SinkFor(peerID)
	if !ok {
		return
	}
	evt := event.Event{Name: event.UserTyping, Payload: event.TypingSignal{
		UserID:   subjectID,
		Username: subjectName,
		IsTyping: isTyping,
	}}
	if err := sink.Consume(ctx, evt); err != nil {
		t.metrics.IncrDeliveriesDropped()
		t.log.Debug("Typing delivery failed", "peer", peerID, "error", err)
	}
}
