package gateway

import (
	"errors"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/hodanmillion/TapIn2025-sub000/modules/auth"
	"github.com/hodanmillion/TapIn2025-sub000/modules/directory"
	"github.com/hodanmillion/TapIn2025-sub000/modules/hexgrid"
	"github.com/hodanmillion/TapIn2025-sub000/modules/history"
)

// Handlers contains the REST handlers that sit next to the WebSocket
// endpoint. They read and mutate stored state but never broadcast; live
// fan-out belongs to the sessions.
type Handlers struct {
	gateway *Gateway
}

// NewHandlers creates a new handlers instance.
func NewHandlers(gateway *Gateway) *Handlers {
	return &Handlers{gateway: gateway}
}

// IssueToken handles dev-mode token issuance (POST /api/v1/auth/token).
func (h *Handlers) IssueToken(c *fiber.Ctx) error {
	var req struct {
		UserID   string `json:"user_id"`
		Username string `json:"username"`
	}
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}
	if req.UserID == "" || req.Username == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "user_id and username are required",
		})
	}

	token, err := h.gateway.tokens.Issue(req.UserID, req.Username)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to issue token",
		})
	}
	return c.JSON(fiber.Map{"token": token})
}

// GetRoom handles room status requests (GET /api/v1/rooms/:id).
func (h *Handlers) GetRoom(c *fiber.Ctx) error {
	roomID := c.Params("id")
	status, err := h.gateway.directory.Describe(c.Context(), roomID)
	if err != nil {
		if errors.Is(err, directory.ErrRoomNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
				"error": "Room not found",
			})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to describe room",
		})
	}
	return c.JSON(status)
}

// GetRoomHistory handles room history requests (GET /api/v1/rooms/:id/history).
func (h *Handlers) GetRoomHistory(c *fiber.Ctx) error {
	roomID := c.Params("id")

	limit := c.QueryInt("limit", history.DefaultHistoryLimit)
	if limit > 100 {
		limit = 100
	}

	messages, err := h.gateway.store.ListRecent(c.Context(), roomID, limit)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to list messages",
		})
	}
	return c.JSON(fiber.Map{
		"room_id":  roomID,
		"messages": messages,
		"total":    len(messages),
	})
}

// GetCellNeighbors handles hex neighborhood requests
// (GET /api/v1/cells/:id/neighbors).
func (h *Handlers) GetCellNeighbors(c *fiber.Ctx) error {
	cellID := c.Params("id")
	neighbors, err := hexgrid.Neighbors(cellID)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid cell id",
		})
	}
	return c.JSON(fiber.Map{
		"cell_id":   cellID,
		"neighbors": neighbors,
	})
}

// EditMessage handles message edits (PATCH /api/v1/messages/:id).
func (h *Handlers) EditMessage(c *fiber.Ctx) error {
	identity, err := h.bearerIdentity(c)
	if err != nil {
		return unauthorized(c)
	}

	var req struct {
		Content string `json:"content"`
	}
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}
	content := strings.TrimSpace(req.Content)
	if content == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "content is required",
		})
	}
	if len(content) > maxMessageLength {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": msgMessageTooLong,
		})
	}

	msg, err := h.gateway.store.Edit(c.Context(), c.Params("id"), identity.UserID, content)
	if err != nil {
		return messageError(c, err)
	}
	return c.JSON(msg)
}

// DeleteMessage handles message deletion (DELETE /api/v1/messages/:id).
func (h *Handlers) DeleteMessage(c *fiber.Ctx) error {
	identity, err := h.bearerIdentity(c)
	if err != nil {
		return unauthorized(c)
	}

	if err := h.gateway.store.MarkDeleted(c.Context(), c.Params("id"), identity.UserID); err != nil {
		return messageError(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// AddReaction handles reaction additions (POST /api/v1/messages/:id/reactions).
func (h *Handlers) AddReaction(c *fiber.Ctx) error {
	identity, err := h.bearerIdentity(c)
	if err != nil {
		return unauthorized(c)
	}

	var req struct {
		Emoji string `json:"emoji"`
	}
	if err := c.BodyParser(&req); err != nil || req.Emoji == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "emoji is required",
		})
	}

	if err := h.gateway.store.AddReaction(c.Context(), c.Params("id"), identity.UserID, req.Emoji); err != nil {
		return messageError(c, err)
	}
	return c.SendStatus(fiber.StatusCreated)
}

// RemoveReaction handles reaction removal
// (DELETE /api/v1/messages/:id/reactions/:emoji).
func (h *Handlers) RemoveReaction(c *fiber.Ctx) error {
	identity, err := h.bearerIdentity(c)
	if err != nil {
		return unauthorized(c)
	}

	if err := h.gateway.store.RemoveReaction(c.Context(), c.Params("id"), identity.UserID, c.Params("emoji")); err != nil {
		return messageError(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// bearerIdentity validates the Authorization header of a REST request.
func (h *Handlers) bearerIdentity(c *fiber.Ctx) (auth.Identity, error) {
	header := c.Get(fiber.HeaderAuthorization)
	token, found := strings.CutPrefix(header, "Bearer ")
	if !found || token == "" {
		return auth.Identity{}, auth.ErrInvalidToken
	}
	return h.gateway.auth.Validate(token)
}

func unauthorized(c *fiber.Ctx) error {
	return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
		"error": "Invalid or missing token",
	})
}

// messageError maps store errors onto REST status codes.
func messageError(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, history.ErrMessageNotFound):
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "Message not found",
		})
	case errors.Is(err, history.ErrNotMessageOwner):
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
			"error": "Not the message owner",
		})
	default:
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Message operation failed",
		})
	}
}
