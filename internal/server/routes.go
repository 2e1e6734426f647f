package server

import (
	"mlscraper/internal/core/acquire"
	"mlscraper/internal/health"
	"mlscraper/internal/platform/redis"

	"github.com/gofiber/fiber/v2"
)

type Dependencies struct {
	Acquire     *acquire.Handler
	Redis       *redis.Service
	Recognition health.RecognitionProbe
}

func RegisterRoutes(app *fiber.App, d Dependencies) *health.HealthHandler {
	// Health endpoints
	healthHandler := health.NewHealthHandler(d.Redis, d.Recognition)
	app.Get("/v1/health", health.HealthLimiter(), healthHandler.HandleHealth)

	api := app.Group("/v1")

	api.Get("/search", d.Acquire.HandleSearch)
	api.Post("/scrape", d.Acquire.HandleScrape)
	api.Get("/categories", d.Acquire.HandleCategories)

	api.Post("/acquire", d.Acquire.HandleCreateJob)
	api.Get("/jobs/:jobId", d.Acquire.HandleGetJob)

	return healthHandler
}
