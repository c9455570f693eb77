package api

import (
	"errors"
	"fmt"

	"github.com/gofiber/fiber/v2"

	"github.com/julianstephens/microhabits/internal/constants"
	"github.com/julianstephens/microhabits/internal/engine"
	apperrors "github.com/julianstephens/microhabits/internal/errors"
	"github.com/julianstephens/microhabits/internal/logger"
	"github.com/julianstephens/microhabits/internal/session"
)

// Handlers contains HTTP handlers for the habit API.
type Handlers struct {
	engine   *engine.Engine
	sessions *session.Manager
}

func NewHandlers(e *engine.Engine, sessions *session.Manager) *Handlers {
	return &Handlers{
		engine:   e,
		sessions: sessions,
	}
}

// ListHabits returns the owner's habits.
func (h *Handlers) ListHabits(c *fiber.Ctx) error {
	owner := ownerFrom(c)
	habits, err := h.engine.ListHabits(c.UserContext(), owner)
	if err != nil {
		return h.handleError(c, err)
	}
	canCreate, err := h.engine.CanCreateHabit(c.UserContext(), owner)
	if err != nil {
		return h.handleError(c, err)
	}

	resp := HabitListResponse{
		Habits:    make([]HabitResponse, 0, len(habits)),
		Count:     len(habits),
		CanCreate: canCreate,
	}
	for _, habit := range habits {
		resp.Habits = append(resp.Habits, toHabitResponse(habit))
	}
	return c.JSON(resp)
}

// CreateHabit adds a habit, refusing with 402 at the free-tier limit.
func (h *Handlers) CreateHabit(c *fiber.Ctx) error {
	var req CreateHabitRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{
			Error:   "bad_request",
			Message: "Invalid request body",
		})
	}

	habit, err := h.engine.AddHabit(c.UserContext(), ownerFrom(c), req.Name, req.Emoji)
	if err != nil {
		return h.handleError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(toHabitResponse(habit))
}

// RenameHabit changes a habit's name and, when given, its emoji. Completion
// state and streak are untouched.
func (h *Handlers) RenameHabit(c *fiber.Ctx) error {
	var req RenameHabitRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{
			Error:   "bad_request",
			Message: "Invalid request body",
		})
	}

	owner := ownerFrom(c)
	id := c.Params("id")
	emoji := ""
	if req.Emoji != nil {
		emoji = *req.Emoji
	} else {
		current, err := h.engine.GetHabit(c.UserContext(), owner, id)
		if err != nil {
			return h.handleError(c, err)
		}
		emoji = current.Emoji
	}

	habit, err := h.engine.RenameHabit(c.UserContext(), owner, id, req.Name, emoji)
	if err != nil {
		return h.handleError(c, err)
	}
	return c.JSON(toHabitResponse(habit))
}

// ToggleHabit marks or un-marks a habit for today.
func (h *Handlers) ToggleHabit(c *fiber.Ctx) error {
	habit, err := h.engine.ToggleHabit(c.UserContext(), ownerFrom(c), c.Params("id"))
	if err != nil {
		return h.handleError(c, err)
	}
	return c.JSON(toHabitResponse(habit))
}

// DeleteHabit removes a habit.
func (h *Handlers) DeleteHabit(c *fiber.Ctx) error {
	if err := h.engine.DeleteHabit(c.UserContext(), ownerFrom(c), c.Params("id")); err != nil {
		return h.handleError(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// GetProfile returns the owner's profile.
func (h *Handlers) GetProfile(c *fiber.Ctx) error {
	profile, err := h.engine.Profile(c.UserContext(), ownerFrom(c))
	if err != nil {
		return h.handleError(c, err)
	}
	return c.JSON(toProfileResponse(profile))
}

// SetSubscription records the owner's subscription state.
func (h *Handlers) SetSubscription(c *fiber.Ctx) error {
	var req SubscriptionRequest
	if err := c.BodyParser(&req); err != nil || req.IsPro == nil {
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{
			Error:   "bad_request",
			Message: "is_pro is required",
		})
	}

	profile, err := h.engine.SetSubscription(c.UserContext(), ownerFrom(c), *req.IsPro)
	if err != nil {
		return h.handleError(c, err)
	}
	return c.JSON(toProfileResponse(profile))
}

// EndSession stops the owner's reconciliation loop, e.g. on sign-out.
func (h *Handlers) EndSession(c *fiber.Ctx) error {
	if h.sessions != nil {
		h.sessions.End(ownerFrom(c))
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// handleError maps engine errors to HTTP responses.
func (h *Handlers) handleError(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, apperrors.ErrInvalidHabit):
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{
			Error:   "invalid_habit",
			Message: err.Error(),
		})
	case errors.Is(err, apperrors.ErrCapExceeded):
		return c.Status(fiber.StatusPaymentRequired).JSON(ErrorResponse{
			Error:   "cap_exceeded",
			Message: fmt.Sprintf("Free plan is limited to %d habits. Upgrade to add more.", constants.FreeTierHabitLimit),
		})
	case errors.Is(err, apperrors.ErrNotFound):
		return c.Status(fiber.StatusNotFound).JSON(ErrorResponse{
			Error:   "not_found",
			Message: "Habit not found",
		})
	case errors.Is(err, apperrors.ErrConflict):
		return c.Status(fiber.StatusConflict).JSON(ErrorResponse{
			Error:   "conflict",
			Message: "Habit was modified concurrently, please retry",
		})
	case apperrors.IsPersistence(err):
		logger.Error("Persistence failure", "path", c.Path(), "owner", ownerFrom(c), "error", err)
		return c.Status(fiber.StatusInternalServerError).JSON(ErrorResponse{
			Error:   "persistence_failure",
			Message: "Could not reach storage, nothing was changed",
		})
	default:
		logger.Error("Unhandled error", "path", c.Path(), "error", err)
		return c.Status(fiber.StatusInternalServerError).JSON(ErrorResponse{
			Error:   "server_error",
			Message: "Internal Server Error",
		})
	}
}
