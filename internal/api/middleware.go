package api

import (
	"errors"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/julianstephens/microhabits/internal/constants"
	"github.com/julianstephens/microhabits/internal/logger"
	"github.com/julianstephens/microhabits/internal/session"
)

// OwnerContextKey is the Fiber locals key holding the request's owner id.
const OwnerContextKey = "owner"

// OwnerMiddleware reads the owner id set by the fronting proxy.
func OwnerMiddleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		owner := strings.TrimSpace(c.Get(constants.UserIDHeader))
		if owner == "" {
			return c.Status(fiber.StatusUnauthorized).JSON(ErrorResponse{
				Error:   "unauthorized",
				Message: constants.UserIDHeader + " header is required",
			})
		}

		c.Locals(OwnerContextKey, owner)
		return c.Next()
	}
}

// SessionMiddleware makes sure the owner's reconciliation loop is running, and
// marks the owner as active, before the handler sees the request.
func SessionMiddleware(sessions *session.Manager) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if sessions == nil {
			return c.Next()
		}
		if _, err := sessions.Activate(c.UserContext(), ownerFrom(c)); err != nil {
			if errors.Is(err, session.ErrClosed) {
				return c.Status(fiber.StatusServiceUnavailable).JSON(ErrorResponse{
					Error:   "shutting_down",
					Message: "Server is shutting down",
				})
			}
			return err
		}
		return c.Next()
	}
}

func ownerFrom(c *fiber.Ctx) string {
	owner, _ := c.Locals(OwnerContextKey).(string)
	return owner
}

// RequestLogger logs each request through the application logger.
func RequestLogger() fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()
		err := c.Next()
		logger.Debug("HTTP request",
			"method", c.Method(),
			"path", c.Path(),
			"status", c.Response().StatusCode(),
			"latency", time.Since(start),
		)
		return err
	}
}
