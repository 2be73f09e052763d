// Package api serves the luarag operations as a JSON HTTP API.
package api

import (
	"context"
	"log/slog"

	"github.com/gofiber/fiber/v3"

	"github.com/dshills/luarag/internal/app"
)

// Server is the HTTP surface over an App
type Server struct {
	web    *fiber.App
	app    *app.App
	logger *slog.Logger
}

// NewServer builds the fiber app and registers every route
func NewServer(a *app.App) *Server {
	s := &Server{
		web: fiber.New(fiber.Config{
			AppName: "luarag API",
		}),
		app:    a,
		logger: a.Logger.With("component", "api"),
	}
	SetupRoutes(s.web, &Handler{app: a, logger: s.logger})
	return s
}

// App returns the underlying fiber app
func (s *Server) App() *fiber.App {
	return s.web
}

// Listen serves on addr until ctx is cancelled
func (s *Server) Listen(ctx context.Context, addr string) error {
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("http api listening", "addr", addr)
		errCh <- s.web.Listen(addr, fiber.ListenConfig{DisableStartupMessage: true})
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		s.logger.Info("http api shutting down")
		return s.web.Shutdown()
	}
}
