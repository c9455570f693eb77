package storage

import (
	"context"
	"time"

	"github.com/julianstephens/microhabits/internal/models"
)

// Provider is the persistence contract the habit engine depends on.
// Every habit mutation is scoped by both id and owner.
type Provider interface {
	// Lifecycle
	Init() error
	Load() error
	Close() error

	// Habits
	ListHabits(ctx context.Context, owner string) ([]models.Habit, error)
	GetHabit(ctx context.Context, id, owner string) (models.Habit, error)
	CountHabits(ctx context.Context, owner string) (int, error)
	InsertHabit(ctx context.Context, habit models.Habit) (models.Habit, error)
	// UpdateHabit applies patch in a single write filtered by id and owner.
	// It returns ErrNotFound when no such habit exists for owner and ErrConflict
	// when patch.Expected no longer matches the stored state.
	UpdateHabit(ctx context.Context, id, owner string, patch models.HabitPatch) (models.Habit, error)
	DeleteHabit(ctx context.Context, id, owner string) error
	// ResetStaleCompletions sets completed=false on every habit of owner that is
	// completed with last_completed_at before the given instant, returning the affected ids.
	ResetStaleCompletions(ctx context.Context, owner string, before time.Time) ([]string, error)

	// Profiles
	GetProfile(ctx context.Context, owner string) (models.Profile, error)
	SaveProfile(ctx context.Context, profile models.Profile) error

	// Utils
	GetConfigPath() string
}
