package api

import (
	"github.com/gofiber/fiber/v3"
)

// SetupRoutes registers the API routes on app
func SetupRoutes(app *fiber.App, h *Handler) {
	app.Get("/", h.Root)
	app.Get("/health", h.Health)
	app.Get("/stats", h.Stats)

	// Retrieval
	app.Post("/search", h.Search)
	app.Post("/context", h.Context)
	app.Post("/enhance_prompt", h.EnhancePrompt)
	app.Get("/chunks/:id/related", h.RelatedChunks)

	// Index maintenance
	index := app.Group("/index")
	index.Post("/file", h.IndexFile)
	index.Post("/directory", h.IndexDirectory)
	app.Delete("/files", h.DeleteFile)
}
