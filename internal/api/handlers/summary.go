package handlers

import (
	"context"

	"github.com/chatcrm/crm-backend/internal/ingest"
	"github.com/chatcrm/crm-backend/internal/models"
	"github.com/chatcrm/crm-backend/internal/summary"
	"github.com/gofiber/fiber/v2"
)

// CompanySummaries generates and reads company summaries
type CompanySummaries interface {
	GenerateForCompany(ctx context.Context, companyID string, opts summary.Options) (*ingest.CompanySummary, error)
	Latest(ctx context.Context, companyID string) (*models.Summary, error)
	History(ctx context.Context, companyID string, limit int) ([]*models.Summary, error)
}

// SummaryHandler handles company summary endpoints
type SummaryHandler struct {
	summaries CompanySummaries
}

// NewSummaryHandler creates a new summary handler
func NewSummaryHandler(summaries CompanySummaries) *SummaryHandler {
	return &SummaryHandler{
		summaries: summaries,
	}
}

// GenerateSummary handles POST /api/v1/companies/:id/summaries
func (h *SummaryHandler) GenerateSummary(c *fiber.Ctx) error {
	var opts summary.Options
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&opts); err != nil {
			return badRequest(c, "Invalid request body")
		}
	}
	if opts.MaxMessages < 0 {
		return badRequest(c, "max_messages must not be negative")
	}

	result, err := h.summaries.GenerateForCompany(c.Context(), c.Params("id"), opts)
	if err != nil {
		return writeError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(result)
}

// LatestSummary handles GET /api/v1/companies/:id/summaries/latest
func (h *SummaryHandler) LatestSummary(c *fiber.Ctx) error {
	s, err := h.summaries.Latest(c.Context(), c.Params("id"))
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(s)
}

// ListSummaries handles GET /api/v1/companies/:id/summaries
func (h *SummaryHandler) ListSummaries(c *fiber.Ctx) error {
	limit := c.QueryInt("limit", 0)
	if limit < 0 {
		return badRequest(c, "limit must not be negative")
	}

	list, err := h.summaries.History(c.Context(), c.Params("id"), limit)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(fiber.Map{
		"summaries": list,
	})
}
