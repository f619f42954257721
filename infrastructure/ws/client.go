// Package ws is the persistent-connection transport: one websocket per
// authenticated user, a JSON event envelope both ways, and a buffered
// write pump so slow clients never stall the coordinator.
package ws

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"

	"github.com/gofiber/contrib/websocket"

	"pairchat/domain"
	"pairchat/domain/event"
	"pairchat/observability"
)

// envelope is the wire frame: {"event": ..., "data": ...}.
type envelope struct {
	Event event.Name      `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

type outEnvelope struct {
	Event event.Name `json:"event"`
	Data  any        `json:"data"`
}

var errSendBufferFull = fmt.Errorf("send buffer full")

// client binds one websocket to its owner. It implements the EventSink
// contract: Consume enqueues without blocking and reports a full buffer as
// a delivery failure instead of stalling the caller.
type client struct {
	connectionID string
	identity     domain.Identity
	conn         *websocket.Conn
	log          *slog.Logger
	metrics      *observability.Metrics

	mu     sync.Mutex
	send   chan []byte
	closed bool
}

func newClient(connectionID string, identity domain.Identity, conn *websocket.Conn,
	log *slog.Logger, metrics *observability.Metrics, sendBuffer int) *client {
	return &client{
		connectionID: connectionID,
		identity:     identity,
		conn:         conn,
		log:          log,
		metrics:      metrics,
		send:         make(chan []byte, sendBuffer),
	}
}

func (c *client) Consume(_ context.Context, e event.Event) error {
	data, err := json.Marshal(outEnvelope{Event: e.Name, Data: e.Payload})
	if err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return fmt.Errorf("connection %s closed", c.connectionID)
	}
	select {
	case c.send <- data:
		return nil
	default:
		c.metrics.IncrDeliveriesDropped()
		return errSendBufferFull
	}
}

// writePump drains the send channel onto the socket until close.
func (c *client) writePump() {
	for data := range c.send {
		if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
			c.log.Debug("Write failed", "connection", c.connectionID, "error", err)
			return
		}
	}
}

// close makes further Consume calls fail and lets the write pump drain out.
// Safe to invoke twice.
func (c *client) close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	close(c.send)
}

// fail reports an operation failure back to this connection only.
func (c *client) fail(ctx context.Context, message string) {
	c.metrics.IncrErrorCount()
	evt := event.Event{Name: event.Error, Payload: event.Failure{Message: message}}
	if err := c.Consume(ctx, evt); err != nil {
		c.log.Debug("Error event delivery failed", "connection", c.connectionID, "error", err)
	}
}
