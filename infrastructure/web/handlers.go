// Package web is the REST surface: account registration and login, the
// user directory, paginated history, the fallback send, unread counts and
// message search. The live event protocol lives in the ws package.
package web

import (
	stderrors "errors"
	"log/slog"

	"github.com/gofiber/fiber/v2"

	"pairchat/auth"
	"pairchat/domain"
	"pairchat/errors"
	"pairchat/runtime"
	"pairchat/services"
)

type Handlers struct {
	log      *slog.Logger
	auths    services.IAuthService
	chats    services.IChatService
	pipeline *runtime.Pipeline
}

func NewHandlers(log *slog.Logger, auths services.IAuthService, chats services.IChatService, pipeline *runtime.Pipeline) *Handlers {
	return &Handlers{log: log, auths: auths, chats: chats, pipeline: pipeline}
}

// Register mounts every route. Chat routes all require authentication.
func (h *Handlers) Register(app *fiber.App) {
	api := app.Group("/api")

	authGroup := api.Group("/auth")
	authGroup.Post("/register", h.registerUser)
	authGroup.Post("/login", h.login)

	chat := api.Group("/chat", RequireAuth(h.auths))
	chat.Get("/users", h.listUsers)
	chat.Get("/history/:peerId", h.history)
	chat.Post("/send", h.send)
	chat.Get("/unread-count", h.unreadCount)
	chat.Get("/search", h.search)
}

func (h *Handlers) registerUser(c *fiber.Ctx) error {
	var req auth.RegisterRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "invalid request body")
	}

	token, err := h.auths.Register(c.Context(), req.Username, req.Email, req.Password)
	if err != nil {
		switch {
		case stderrors.Is(err, errors.ErrUserAlreadyExists):
			return failure(c, fiber.StatusConflict, "email already registered")
		case stderrors.Is(err, errors.ErrInvalidPassword):
			return badRequest(c, "password does not meet requirements")
		default:
			return h.internal(c, err)
		}
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"success": true,
		"data":    fiber.Map{"token": token},
	})
}

func (h *Handlers) login(c *fiber.Ctx) error {
	var req auth.LoginRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "invalid request body")
	}
	if err := auth.ValidateLogin(req); err != nil {
		return badRequest(c, "email and password are required")
	}

	token, err := h.auths.Login(c.Context(), req.Email, req.Password)
	if err != nil {
		if stderrors.Is(err, errors.ErrInvalidCredentials) {
			return failure(c, fiber.StatusUnauthorized, "invalid credentials")
		}
		return h.internal(c, err)
	}

	return c.JSON(fiber.Map{
		"success": true,
		"data":    fiber.Map{"token": token},
	})
}

func (h *Handlers) listUsers(c *fiber.Ctx) error {
	identity := callerIdentity(c)
	users, err := h.chats.ListUsers(c.Context(), identity.UserID)
	if err != nil {
		return h.internal(c, err)
	}
	return c.JSON(fiber.Map{
		"success": true,
		"data":    fiber.Map{"users": users},
	})
}

func (h *Handlers) history(c *fiber.Ctx) error {
	identity := callerIdentity(c)
	peerID := c.Params("peerId")

	var cursor *string
	if raw := c.Query("cursor"); raw != "" {
		cursor = &raw
	}

	messages, next, err := h.chats.History(c.Context(), identity, peerID, cursor)
	if err != nil {
		switch {
		case stderrors.Is(err, errors.ErrUserNotFound):
			return failure(c, fiber.StatusNotFound, "user not found")
		case stderrors.Is(err, errors.ErrSelfRoom):
			return badRequest(c, "cannot fetch history with yourself")
		default:
			return h.internal(c, err)
		}
	}

	return c.JSON(fiber.Map{
		"success": true,
		"data": fiber.Map{
			"messages": messages,
			"cursor":   next,
		},
	})
}

type sendRequest struct {
	ReceiverID string             `json:"receiverId"`
	Message    string             `json:"message"`
	Type       domain.MessageType `json:"messageType,omitempty"`
}

// send is the REST fallback for clients without a live connection; it runs
// the exact same pipeline as the send_message event.
func (h *Handlers) send(c *fiber.Ctx) error {
	identity := callerIdentity(c)

	var req sendRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "invalid request body")
	}

	message, err := h.pipeline.Send(c.Context(), identity, req.ReceiverID, req.Message, req.Type)
	if err != nil {
		switch {
		case stderrors.Is(err, errors.ErrEmptyMessage),
			stderrors.Is(err, errors.ErrMessageTooLong),
			stderrors.Is(err, errors.ErrSelfRoom):
			return badRequest(c, "receiver ID and message are required")
		case stderrors.Is(err, errors.ErrReceiverNotFound):
			return failure(c, fiber.StatusNotFound, "receiver not found")
		default:
			return h.internal(c, err)
		}
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"success": true,
		"data":    fiber.Map{"message": message},
	})
}

func (h *Handlers) unreadCount(c *fiber.Ctx) error {
	identity := callerIdentity(c)
	count, err := h.chats.UnreadCount(c.Context(), identity.UserID)
	if err != nil {
		return h.internal(c, err)
	}
	return c.JSON(fiber.Map{
		"success": true,
		"data":    fiber.Map{"unreadCount": count},
	})
}

func (h *Handlers) search(c *fiber.Ctx) error {
	identity := callerIdentity(c)
	query := c.Query("q")
	if query == "" {
		return badRequest(c, "query parameter q is required")
	}

	hits, err := h.chats.Search(c.Context(), identity.UserID, query, c.QueryInt("limit"))
	if err != nil {
		return h.internal(c, err)
	}
	return c.JSON(fiber.Map{
		"success": true,
		"data":    fiber.Map{"results": hits},
	})
}

func badRequest(c *fiber.Ctx, message string) error {
	return failure(c, fiber.StatusBadRequest, message)
}

func failure(c *fiber.Ctx, status int, message string) error {
	return c.Status(status).JSON(fiber.Map{
		"success": false,
		"message": message,
	})
}

func (h *Handlers) internal(c *fiber.Ctx, err error) error {
	h.log.Error("Request failed", "path", c.Path(), "error", err)
	return failure(c, fiber.StatusInternalServerError, "internal server error")
}
