// Package api exposes the habit engine over HTTP.
package api

import (
	"context"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"

	"github.com/julianstephens/microhabits/internal/constants"
	"github.com/julianstephens/microhabits/internal/engine"
	"github.com/julianstephens/microhabits/internal/logger"
	"github.com/julianstephens/microhabits/internal/session"
)

type Server struct {
	app      *fiber.App
	handlers *Handlers
	sessions *session.Manager
}

func NewServer(e *engine.Engine, sessions *session.Manager) *Server {
	s := &Server{
		app: fiber.New(fiber.Config{
			AppName:               constants.AppName,
			DisableStartupMessage: true,
			ErrorHandler:          customErrorHandler,
		}),
		handlers: NewHandlers(e, sessions),
		sessions: sessions,
	}

	s.app.Use(recover.New())
	s.app.Use(RequestLogger())
	s.setupRoutes()

	return s
}

// App returns the underlying Fiber app, mainly for tests.
func (s *Server) App() *fiber.App {
	return s.app
}

func (s *Server) setupRoutes() {
	s.app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status":  "healthy",
			"version": constants.Version,
		})
	})

	v1 := s.app.Group("/api/v1", OwnerMiddleware())
	active := SessionMiddleware(s.sessions)

	habits := v1.Group("/habits", active)
	habits.Get("/", s.handlers.ListHabits)
	habits.Post("/", s.handlers.CreateHabit)
	habits.Patch("/:id", s.handlers.RenameHabit)
	habits.Post("/:id/toggle", s.handlers.ToggleHabit)
	habits.Delete("/:id", s.handlers.DeleteHabit)

	v1.Get("/profile", active, s.handlers.GetProfile)
	v1.Put("/profile/subscription", active, s.handlers.SetSubscription)

	// Signing out must not start the loop it is about to stop
	v1.Delete("/session", s.handlers.EndSession)
}

// Listen blocks serving on addr until Shutdown is called.
func (s *Server) Listen(addr string) error {
	logger.Info("HTTP server listening", "addr", addr)
	return s.app.Listen(addr)
}

// Shutdown stops accepting connections and waits for in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	logger.Info("Shutting down HTTP server")
	return s.app.ShutdownWithContext(ctx)
}

// customErrorHandler handles errors returned to Fiber by handlers and middleware.
func customErrorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	message := "Internal Server Error"

	if e, ok := err.(*fiber.Error); ok {
		code = e.Code
		message = e.Message
	}

	return c.Status(code).JSON(ErrorResponse{
		Error:   "server_error",
		Message: message,
	})
}
