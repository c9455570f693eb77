package api

import (
	"time"

	"github.com/julianstephens/microhabits/internal/models"
)

// CreateHabitRequest is the body of POST /api/v1/habits.
type CreateHabitRequest struct {
	Name  string `json:"name"`
	Emoji string `json:"emoji"`
}

// RenameHabitRequest is the body of PATCH /api/v1/habits/:id. A nil emoji keeps
// the current one and an empty string clears it.
type RenameHabitRequest struct {
	Name  string  `json:"name"`
	Emoji *string `json:"emoji"`
}

// SubscriptionRequest is the body of PUT /api/v1/profile/subscription.
type SubscriptionRequest struct {
	IsPro *bool `json:"is_pro"`
}

// HabitResponse represents a habit as seen by its owner.
type HabitResponse struct {
	ID              string     `json:"id"`
	Name            string     `json:"name"`
	Emoji           string     `json:"emoji,omitempty"`
	Completed       bool       `json:"completed"`
	Streak          int        `json:"streak"`
	LastCompletedAt *time.Time `json:"last_completed_at,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
}

// HabitListResponse represents the owner's habits in creation order.
type HabitListResponse struct {
	Habits    []HabitResponse `json:"habits"`
	Count     int             `json:"count"`
	CanCreate bool            `json:"can_create"`
}

// ProfileResponse represents the owner's account flags.
type ProfileResponse struct {
	ID       string `json:"id"`
	FullName string `json:"full_name,omitempty"`
	IsPro    bool   `json:"is_pro"`
}

// ErrorResponse represents an error response.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

func toHabitResponse(h models.Habit) HabitResponse {
	return HabitResponse{
		ID:              h.ID,
		Name:            h.Name,
		Emoji:           h.Emoji,
		Completed:       h.Completed,
		Streak:          h.Streak,
		LastCompletedAt: h.LastCompletedAt,
		CreatedAt:       h.CreatedAt,
	}
}

func toProfileResponse(p models.Profile) ProfileResponse {
	return ProfileResponse{
		ID:       p.ID,
		FullName: p.FullName,
		IsPro:    p.IsPro,
	}
}
