package runtime

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"pairchat/domain"
	"pairchat/domain/event"
	"pairchat/mocks"
	"pairchat/observability"

	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

func typingSetup(t *testing.T, quiet time.Duration) (*TypingTracker, *Registry, *mocks.MockEventSink) {
	ctrl := gomock.NewController(t)
	t.Cleanup(ctrl.Finish)

	registry := NewRegistry()
	peerSink := mocks.NewMockEventSink(ctrl)
	registry.Register(domain.Identity{UserID: "peer", DisplayName: "bob"}, "c-peer", peerSink)

	tracker := NewTypingTracker(slog.Default(), registry, observability.NewMetrics(), quiet)
	return tracker, registry, peerSink
}

func isTypingSignal(want bool) gomock.Matcher {
	return gomock.Cond(func(e event.Event) bool {
		signal, ok := e.Payload.(event.TypingSignal)
		return ok && e.Name == event.UserTyping && signal.IsTyping == want
	})
}

func TestTypingTracker_ExpiresExactlyOnceAfterQuietPeriod(t *testing.T) {
	tracker, _, peerSink := typingSetup(t, 50*time.Millisecond)

	done := make(chan struct{})
	gomock.InOrder(
		peerSink.EXPECT().Consume(gomock.Any(), isTypingSignal(true)).Return(nil).Times(1),
		peerSink.EXPECT().Consume(gomock.Any(), isTypingSignal(false)).
			DoAndReturn(func(ctx context.Context, e event.Event) error {
				close(done)
				return nil
			}).Times(1),
	)

	tracker.SetTyping(context.Background(), "subject", "alice", "peer", true)

	select {
	case <-done:
		// Then the peer observed exactly one closing "false"
	case <-time.After(500 * time.Millisecond):
		require.New(t).Fail("typing state should have expired")
	}
}

func TestTypingTracker_RefreshPostponesExpiry(t *testing.T) {
	req := require.New(t)
	tracker, _, peerSink := typingSetup(t, 80*time.Millisecond)

	expiries := 0
	peerSink.EXPECT().Consume(gomock.Any(), isTypingSignal(true)).Return(nil).Times(3)
	peerSink.EXPECT().Consume(gomock.Any(), isTypingSignal(false)).
		DoAndReturn(func(ctx context.Context, e event.Event) error {
			expiries++
			return nil
		}).AnyTimes()

	// Given a burst of refreshes faster than the quiet period
	for range 3 {
		tracker.SetTyping(context.Background(), "subject", "alice", "peer", true)
		time.Sleep(30 * time.Millisecond)
	}

	// Then no expiry fired while refreshes kept arriving
	req.Zero(expiries)

	// And the single trailing expiry fires once the subject goes quiet
	time.Sleep(200 * time.Millisecond)
	req.Equal(1, expiries)
}

func TestTypingTracker_ExplicitFalseCancelsTimer(t *testing.T) {
	req := require.New(t)
	tracker, _, peerSink := typingSetup(t, 50*time.Millisecond)

	falses := 0
	peerSink.EXPECT().Consume(gomock.Any(), isTypingSignal(true)).Return(nil).Times(1)
	peerSink.EXPECT().Consume(gomock.Any(), isTypingSignal(false)).
		DoAndReturn(func(ctx context.Context, e event.Event) error {
			falses++
			return nil
		}).AnyTimes()

	tracker.SetTyping(context.Background(), "subject", "alice", "peer", true)
	tracker.SetTyping(context.Background(), "subject", "alice", "peer", false)

	// The canceled timer must not deliver a second "false" later
	time.Sleep(150 * time.Millisecond)
	req.Equal(1, falses)
}

func TestTypingTracker_ClearSubjectNotifiesPendingPeers(t *testing.T) {
	tracker, _, peerSink := typingSetup(t, time.Minute)

	peerSink.EXPECT().Consume(gomock.Any(), isTypingSignal(true)).Return(nil).Times(1)
	peerSink.EXPECT().Consume(gomock.Any(), isTypingSignal(false)).Return(nil).Times(1)

	tracker.SetTyping(context.Background(), "subject", "alice", "peer", true)

	// When the subject disconnects mid-composition
	tracker.ClearSubject(context.Background(), "subject")

	// Clearing twice is safe and emits nothing further
	tracker.ClearSubject(context.Background(), "subject")
}

func TestTypingTracker_SignalToOfflinePeerIsDropped(t *testing.T) {
	tracker, registry, _ := typingSetup(t, 50*time.Millisecond)
	registry.Unregister("peer", "c-peer")

	// No sink, no delivery, no panic
	tracker.SetTyping(context.Background(), "subject", "alice", "peer", true)
	time.Sleep(100 * time.Millisecond)
}
