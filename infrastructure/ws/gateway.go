package ws

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"pairchat/contract"
	"pairchat/domain"
	"pairchat/domain/event"
	"pairchat/errors"
	"pairchat/observability"
	"pairchat/runtime"
)

const identityLocal = "identity"

var errLogout = fmt.Errorf("client requested logout")

// Gateway admits authenticated websocket connections and routes their
// events to the coordinator. The credential is verified before the upgrade
// completes: a bad token never produces a partial session.
type Gateway struct {
	log        *slog.Logger
	verifier   contract.AuthVerifier
	registry   *runtime.Registry
	pipeline   *runtime.Pipeline
	typing     *runtime.TypingTracker
	receipts   *runtime.ReadReceipts
	metrics    *observability.Metrics
	sendBuffer int
}

func NewGateway(log *slog.Logger, verifier contract.AuthVerifier, registry *runtime.Registry,
	pipeline *runtime.Pipeline, typing *runtime.TypingTracker, receipts *runtime.ReadReceipts,
	metrics *observability.Metrics, sendBuffer int) *Gateway {
	return &Gateway{
		log:        log,
		verifier:   verifier,
		registry:   registry,
		pipeline:   pipeline,
		typing:     typing,
		receipts:   receipts,
		metrics:    metrics,
		sendBuffer: sendBuffer,
	}
}

// Upgrade verifies the handshake credential, then lets the websocket
// upgrade proceed with the identity attached.
func (g *Gateway) Upgrade(c *fiber.Ctx) error {
	if !websocket.IsWebSocketUpgrade(c) {
		return fiber.ErrUpgradeRequired
	}

	identity, err := g.verifier.Verify(c.Context(), handshakeCredential(c))
	if err != nil {
		g.log.Warn("Connection refused", "error", err)
		return fiber.NewError(fiber.StatusUnauthorized, "authentication failed")
	}

	c.Locals(identityLocal, identity)
	return c.Next()
}

// Handler returns the websocket endpoint.
func (g *Gateway) Handler() fiber.Handler {
	return websocket.New(g.serve)
}

func handshakeCredential(c *fiber.Ctx) string {
	if token := c.Query("token"); token != "" {
		return token
	}
	return strings.TrimPrefix(c.Get(fiber.HeaderAuthorization), "Bearer ")
}

// handlerFunc is one entry of the dispatch table bound at admission time.
// Each handler receives everything it needs explicitly; none closes over
// ambient mutable state.
type handlerFunc func(ctx context.Context, data json.RawMessage) error

func (g *Gateway) serve(conn *websocket.Conn) {
	identity := conn.Locals(identityLocal).(domain.Identity)

	cl := newClient(uuid.NewString(), identity, conn, g.log, g.metrics, g.sendBuffer)
	go cl.writePump()

	g.registry.Register(identity, cl.connectionID, cl)
	g.metrics.IncrConnections()
	g.log.Info("User connected", "user", identity.UserID, "username", identity.DisplayName)

	defer g.disconnect(identity, cl)

	handlers := g.bindHandlers(identity, cl)
	g.readLoop(cl, handlers)
}

// bindHandlers builds the finite set of event handlers for one admitted
// connection.
func (g *Gateway) bindHandlers(identity domain.Identity, cl *client) map[event.Name]handlerFunc {
	return map[event.Name]handlerFunc{
		event.JoinChat: func(ctx context.Context, data json.RawMessage) error {
			return g.handleJoin(identity, data)
		},
		event.LeaveChat: func(ctx context.Context, data json.RawMessage) error {
			return g.handleLeave(identity, data)
		},
		event.SendMessage: func(ctx context.Context, data json.RawMessage) error {
			return g.handleSend(ctx, identity, data)
		},
		event.Typing: func(ctx context.Context, data json.RawMessage) error {
			return g.handleTyping(ctx, identity, data)
		},
		event.MarkMessagesRead: func(ctx context.Context, data json.RawMessage) error {
			return g.handleMarkRead(ctx, identity, data)
		},
		event.UserLogout: func(ctx context.Context, data json.RawMessage) error {
			return errLogout
		},
	}
}

func (g *Gateway) readLoop(cl *client, handlers map[event.Name]handlerFunc) {
	ctx := context.Background()
	for {
		_, data, err := cl.conn.ReadMessage()
		if err != nil {
			g.log.Debug("Read loop ended", "user", cl.identity.UserID, "error", err)
			return
		}

		var env envelope
		if err := json.Unmarshal(data, &env); err != nil {
			cl.fail(ctx, "malformed event")
			continue
		}

		handler, known := handlers[env.Event]
		if !known {
			cl.fail(ctx, fmt.Sprintf("unknown event %q", env.Event))
			continue
		}

		if err := handler(ctx, env.Data); err != nil {
			if stderrors.Is(err, errLogout) {
				g.log.Info("User logged out", "user", cl.identity.UserID)
				return
			}
			cl.fail(ctx, userFacing(err))
			g.log.Debug("Event failed", "user", cl.identity.UserID, "event", env.Event, "error", err)
		}
	}
}

// disconnect tears the session down. The registry removal is conditioned on
// the connection id, so a stale disconnect racing a fresh reconnect for the
// same user never evicts the newer entry. Safe to reach twice.
func (g *Gateway) disconnect(identity domain.Identity, cl *client) {
	ctx := context.Background()
	removed := g.registry.Unregister(identity.UserID, cl.connectionID)
	g.typing.ClearSubject(ctx, identity.UserID)
	cl.close()
	_ = cl.conn.Close()

	if removed {
		g.metrics.IncrDisconnections()
		g.log.Info("User disconnected", "user", identity.UserID)
	}
}

type peerPayload struct {
	PeerID string `json:"peerId"`
}

type sendPayload struct {
	ReceiverID string             `json:"receiverId"`
	Message    string             `json:"message"`
	Type       domain.MessageType `json:"messageType,omitempty"`
}

type typingPayload struct {
	PeerID   string `json:"peerId"`
	IsTyping bool   `json:"isTyping"`
}

type markReadPayload struct {
	SenderID string `json:"senderId"`
}

func (g *Gateway) handleJoin(identity domain.Identity, data json.RawMessage) error {
	var p peerPayload
	if err := json.Unmarshal(data, &p); err != nil {
		return fmt.Errorf("decoding join_chat: %w", err)
	}
	room, err := g.pipeline.JoinRoom(identity.UserID, p.PeerID)
	if err != nil {
		return err
	}
	g.log.Debug("Joined room", "user", identity.UserID, "room", room)
	return nil
}

func (g *Gateway) handleLeave(identity domain.Identity, data json.RawMessage) error {
	var p peerPayload
	if err := json.Unmarshal(data, &p); err != nil {
		return fmt.Errorf("decoding leave_chat: %w", err)
	}
	room, err := g.pipeline.LeaveRoom(identity.UserID, p.PeerID)
	if err != nil {
		return err
	}
	g.log.Debug("Left room", "user", identity.UserID, "room", room)
	return nil
}

func (g *Gateway) handleSend(ctx context.Context, identity domain.Identity, data json.RawMessage) error {
	var p sendPayload
	if err := json.Unmarshal(data, &p); err != nil {
		return fmt.Errorf("decoding send_message: %w", err)
	}
	_, err := g.pipeline.Send(ctx, identity, p.ReceiverID, p.Message, p.Type)
	return err
}

func (g *Gateway) handleTyping(ctx context.Context, identity domain.Identity, data json.RawMessage) error {
	var p typingPayload
	if err := json.Unmarshal(data, &p); err != nil {
		return fmt.Errorf("decoding typing: %w", err)
	}
	g.typing.SetTyping(ctx, identity.UserID, identity.DisplayName, p.PeerID, p.IsTyping)
	return nil
}

func (g *Gateway) handleMarkRead(ctx context.Context, identity domain.Identity, data json.RawMessage) error {
	var p markReadPayload
	if err := json.Unmarshal(data, &p); err != nil {
		return fmt.Errorf("decoding mark_messages_read: %w", err)
	}
	return g.receipts.MarkRead(ctx, identity, p.SenderID)
}

// userFacing maps an operation failure to the structured error event text.
// Internal detail stays in the logs.
func userFacing(err error) string {
	switch {
	case stderrors.Is(err, errors.ErrEmptyMessage),
		stderrors.Is(err, errors.ErrMessageTooLong),
		stderrors.Is(err, errors.ErrSelfRoom):
		return "Invalid message data"
	case stderrors.Is(err, errors.ErrReceiverNotFound):
		return "Receiver not found"
	default:
		return "Failed to process request"
	}
}
