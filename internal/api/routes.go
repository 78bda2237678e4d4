package api

import (
	"time"

	"github.com/chatcrm/crm-backend/internal/api/handlers"
	"github.com/chatcrm/crm-backend/internal/api/middleware"
	"github.com/chatcrm/crm-backend/internal/auth"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Dependencies are the services the routes dispatch to
type Dependencies struct {
	Rooms     handlers.RoomService
	Remote    handlers.RemoteRooms
	Importer  handlers.MessageImporter
	Summaries handlers.CompanySummaries
	Tokens    middleware.TokenValidator
	Gatherer  prometheus.Gatherer

	// RateLimit is the number of API requests a caller may make per minute
	RateLimit int
}

// SetupRoutes configures all API routes
func SetupRoutes(app *fiber.App, deps Dependencies) {
	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status":  "healthy",
			"service": "crm-backend",
		})
	})
	if deps.Gatherer != nil {
		app.Get("/metrics", adaptor.HTTPHandler(promhttp.HandlerFor(deps.Gatherer, promhttp.HandlerOpts{})))
	}

	rateLimit := deps.RateLimit
	if rateLimit <= 0 {
		rateLimit = 120
	}

	api := app.Group("/api/v1", middleware.RequireToken(deps.Tokens, ""), middleware.APIRateLimit(rateLimit, time.Minute))
	read := middleware.RequireToken(deps.Tokens, auth.ScopeRead)
	write := middleware.RequireToken(deps.Tokens, auth.ScopeWrite)

	rooms := handlers.NewRoomHandlers(deps.Rooms, deps.Remote, deps.Importer)
	api.Get("/chatwork/rooms", read, middleware.RemoteRateLimit(), rooms.ListRemoteRooms)
	api.Post("/rooms/discover", write, middleware.RemoteRateLimit(), rooms.DiscoverRooms)
	api.Put("/rooms/:id/company", write, rooms.LinkCompany)
	api.Post("/rooms/:id/import", write, rooms.ImportMessages)
	api.Post("/rooms/:id/sync", write, middleware.RemoteRateLimit(), rooms.SyncRoom)

	summaries := handlers.NewSummaryHandler(deps.Summaries)
	api.Post("/companies/:id/summaries", write, summaries.GenerateSummary)
	api.Get("/companies/:id/summaries/latest", read, summaries.LatestSummary)
	api.Get("/companies/:id/summaries", read, summaries.ListSummaries)
}
