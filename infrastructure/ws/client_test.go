package ws

import (
	"context"
	"encoding/json"
	"log/slog"
	"testing"

	"pairchat/domain"
	"pairchat/domain/event"
	"pairchat/observability"

	"github.com/stretchr/testify/require"
)

func clientOf(t *testing.T, sendBuffer int) *client {
	t.Helper()
	identity := domain.Identity{UserID: "u1", DisplayName: "alice"}
	return newClient("conn-1", identity, nil, slog.Default(), observability.NewMetrics(), sendBuffer)
}

func TestClient_ConsumeEnqueuesEnvelope(t *testing.T) {
	req := require.New(t)
	cl := clientOf(t, 4)

	evt := event.Event{Name: event.UserTyping, Payload: event.TypingSignal{
		UserID:   "u2",
		Username: "bob",
		IsTyping: true,
	}}
	req.NoError(cl.Consume(context.Background(), evt))

	frame := <-cl.send
	var out envelope
	req.NoError(json.Unmarshal(frame, &out))
	req.Equal(event.UserTyping, out.Event)

	var signal event.TypingSignal
	req.NoError(json.Unmarshal(out.Data, &signal))
	req.Equal("bob", signal.Username)
	req.True(signal.IsTyping)
}

func TestClient_ConsumeNeverBlocksWhenBufferFull(t *testing.T) {
	req := require.New(t)
	cl := clientOf(t, 1)
	evt := event.Event{Name: event.Error, Payload: event.Failure{Message: "x"}}

	req.NoError(cl.Consume(context.Background(), evt))

	// The second delivery is dropped, not queued behind a slow socket
	err := cl.Consume(context.Background(), evt)
	req.ErrorIs(err, errSendBufferFull)
}

func TestClient_ConsumeAfterCloseFails(t *testing.T) {
	req := require.New(t)
	cl := clientOf(t, 4)

	cl.close()
	cl.close() // closing twice is safe

	err := cl.Consume(context.Background(), event.Event{Name: event.Error})
	req.Error(err)
}
