package handlers

import (
	"context"

	"github.com/chatcrm/crm-backend/internal/chatwork"
	"github.com/chatcrm/crm-backend/internal/importer"
	"github.com/chatcrm/crm-backend/internal/ingest"
	"github.com/chatcrm/crm-backend/internal/models"
	"github.com/gofiber/fiber/v2"
)

// RoomService is the room half of the ingest pipeline
type RoomService interface {
	DiscoverRooms(ctx context.Context) ([]*models.ChatRoom, error)
	LinkRoom(ctx context.Context, roomID, companyID string) error
	SyncRoom(ctx context.Context, roomID string, force bool) (*ingest.SyncResult, error)
}

// RemoteRooms lists the rooms visible on Chatwork
type RemoteRooms interface {
	ListRooms(ctx context.Context) ([]chatwork.Room, error)
}

// MessageImporter imports raw message batches
type MessageImporter interface {
	Import(ctx context.Context, roomID string, raw []importer.RawMessage) (*importer.Result, error)
}

// RoomHandlers handles room and message endpoints
type RoomHandlers struct {
	rooms    RoomService
	remote   RemoteRooms
	importer MessageImporter
}

// NewRoomHandlers creates new room handlers
func NewRoomHandlers(rooms RoomService, remote RemoteRooms, imp MessageImporter) *RoomHandlers {
	return &RoomHandlers{
		rooms:    rooms,
		remote:   remote,
		importer: imp,
	}
}

// ListRemoteRooms handles GET /api/v1/chatwork/rooms
func (h *RoomHandlers) ListRemoteRooms(c *fiber.Ctx) error {
	rooms, err := h.remote.ListRooms(c.Context())
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(fiber.Map{
		"rooms": rooms,
	})
}

// DiscoverRooms handles POST /api/v1/rooms/discover
func (h *RoomHandlers) DiscoverRooms(c *fiber.Ctx) error {
	rooms, err := h.rooms.DiscoverRooms(c.Context())
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(fiber.Map{
		"rooms": rooms,
	})
}

// LinkCompany handles PUT /api/v1/rooms/:id/company
func (h *RoomHandlers) LinkCompany(c *fiber.Ctx) error {
	var req struct {
		CompanyID *string `json:"company_id"`
	}
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "Invalid request body")
	}

	companyID := ""
	if req.CompanyID != nil {
		companyID = *req.CompanyID
	}
	if err := h.rooms.LinkRoom(c.Context(), c.Params("id"), companyID); err != nil {
		return writeError(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// ImportMessages handles POST /api/v1/rooms/:id/import
func (h *RoomHandlers) ImportMessages(c *fiber.Ctx) error {
	var req struct {
		Messages []importer.RawMessage `json:"messages"`
	}
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "Invalid request body")
	}

	result, err := h.importer.Import(c.Context(), c.Params("id"), req.Messages)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(result)
}

// SyncRoom handles POST /api/v1/rooms/:id/sync
func (h *RoomHandlers) SyncRoom(c *fiber.Ctx) error {
	force := c.QueryBool("force", false)

	result, err := h.rooms.SyncRoom(c.Context(), c.Params("id"), force)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(result)
}
