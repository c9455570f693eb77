package models

import (
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/julianstephens/microhabits/internal/constants"
)

// Habit represents a daily practice tracked for a single owner
type Habit struct {
	ID              string     `json:"id"`
	Owner           string     `json:"owner"`
	Name            string     `json:"name"`
	Emoji           string     `json:"emoji,omitempty"`
	Completed       bool       `json:"completed"`
	Streak          int        `json:"streak"`
	LastCompletedAt *time.Time `json:"last_completed_at,omitempty"`
	// RevokedAt is the instant of the most recent completion that was un-marked
	RevokedAt *time.Time `json:"revoked_at,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
}

// HabitState is the part of a habit that toggling and reconciliation change
type HabitState struct {
	Completed       bool
	Streak          int
	LastCompletedAt *time.Time
	RevokedAt       *time.Time
}

// State returns the mutable completion state of the habit
func (h Habit) State() HabitState {
	return HabitState{
		Completed:       h.Completed,
		Streak:          h.Streak,
		LastCompletedAt: h.LastCompletedAt,
		RevokedAt:       h.RevokedAt,
	}
}

// WithState returns a copy of h carrying s
func (h Habit) WithState(s HabitState) Habit {
	h.Completed = s.Completed
	h.Streak = s.Streak
	h.LastCompletedAt = copyTime(s.LastCompletedAt)
	h.RevokedAt = copyTime(s.RevokedAt)
	return h
}

// Equal reports whether two states hold the same values. Instants are compared with time.Equal.
func (s HabitState) Equal(o HabitState) bool {
	return s.Completed == o.Completed &&
		s.Streak == o.Streak &&
		equalTime(s.LastCompletedAt, o.LastCompletedAt) &&
		equalTime(s.RevokedAt, o.RevokedAt)
}

// HabitPatch describes a partial update. Nil fields are left unchanged.
type HabitPatch struct {
	Name  *string
	Emoji *string
	// State replaces every completion field, including clearing nil timestamps
	State *HabitState
	// Expected makes the update conditional on the stored state still matching
	Expected *HabitState
}

// StatePatch builds a compare-and-swap patch that moves a habit from prev to next
func StatePatch(prev, next HabitState) HabitPatch {
	return HabitPatch{
		State:    &next,
		Expected: &prev,
	}
}

// Apply returns a copy of h with the patch fields applied. Expected is not checked.
func (p HabitPatch) Apply(h Habit) Habit {
	if p.Name != nil {
		h.Name = *p.Name
	}
	if p.Emoji != nil {
		h.Emoji = *p.Emoji
	}
	if p.State != nil {
		h = h.WithState(*p.State)
	}
	return h
}

// NormalizeHabitInput trims the name and emoji and validates them for creation
func NormalizeHabitInput(name, emoji string) (string, string, error) {
	name = strings.TrimSpace(name)
	emoji = strings.TrimSpace(emoji)

	if name == "" {
		return "", "", fmt.Errorf("habit name cannot be empty")
	}
	if utf8.RuneCountInString(name) > constants.MaxHabitNameLength {
		return "", "", fmt.Errorf("habit name cannot exceed %d characters", constants.MaxHabitNameLength)
	}
	if utf8.RuneCountInString(emoji) > constants.MaxEmojiLength {
		return "", "", fmt.Errorf("emoji cannot exceed %d characters", constants.MaxEmojiLength)
	}

	return name, emoji, nil
}

func equalTime(a, b *time.Time) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return a.Equal(*b)
}

func copyTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	c := *t
	return &c
}
