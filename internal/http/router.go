package http

import (
	"time"

	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/proquint-registry/backend/internal/http/handlers"
	"github.com/proquint-registry/backend/internal/middleware"
	"go.uber.org/zap"
)

type RouterConfig struct {
	RateLimiter        middleware.Counter
	RateLimitPerMinute int
}

func SetupRouter(
	app *fiber.App,
	rc RouterConfig,
	log *zap.Logger,
	metaHandler *handlers.MetaHandler,
	nameHandler *handlers.NameHandler,
	commitmentHandler *handlers.CommitmentHandler,
	wsHub *handlers.WSHub,
) {
	// Global middleware
	app.Use(recover.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowHeaders: "Origin, Content-Type, Accept, X-Request-ID",
	}))
	app.Use(middleware.RequestIDMiddleware())
	app.Use(middleware.LoggerMiddleware(log))

	// Health check
	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})

	api := app.Group("/api/v1")

	// Meta
	api.Get("/meta/constants", metaHandler.GetConstants)

	if rc.RateLimiter != nil {
		api.Use(middleware.RateLimitMiddleware(rc.RateLimiter, rc.RateLimitPerMinute, time.Minute))
	}

	api.Get("/stats", nameHandler.GetStats)

	// Names
	api.Get("/names/:name", nameHandler.GetName)
	api.Get("/names/:name/quote", nameHandler.GetQuote)
	api.Get("/names/:name/refund", nameHandler.GetRefund)
	api.Get("/names/:name/events", nameHandler.GetNameEvents)

	// Unsigned transactions
	api.Post("/names/:name/tx/renew", nameHandler.Renew)
	api.Post("/names/:name/tx/accept", nameHandler.AcceptInbox)
	api.Post("/names/:name/tx/reject", nameHandler.RejectInbox)
	api.Post("/names/:name/tx/clean", nameHandler.CleanInbox)
	api.Post("/names/:name/tx/shelve", nameHandler.Shelve)
	api.Post("/names/:name/tx/transfer", nameHandler.Transfer)

	// Accounts
	api.Get("/inbox/:address/prediction", nameHandler.GetInboxPrediction)
	api.Get("/accounts/:address/events", nameHandler.GetAccountEvents)
	api.Get("/accounts/:address/commitments", commitmentHandler.ListByCaller)

	// Commit-reveal
	api.Post("/commitments", commitmentHandler.Prepare)
	api.Get("/commitments/:hash", commitmentHandler.GetStatus)
	api.Post("/commitments/:hash/reveal", commitmentHandler.Reveal)

	// WebSocket
	if wsHub != nil {
		app.Use("/ws", handlers.WSUpgradeMiddleware())
		app.Get("/ws", websocket.New(wsHub.HandleWS))
	}
}
