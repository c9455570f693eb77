// Package engine composes the streak rules, the persistence provider and the
// reconciliation loop into the operations a presentation layer calls.
//
// The engine keeps no copy of habit state. Every operation reads from and
// writes to the provider, so a failed write leaves nothing to roll back.
package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"

	"github.com/julianstephens/microhabits/internal/clock"
	"github.com/julianstephens/microhabits/internal/constants"
	apperrors "github.com/julianstephens/microhabits/internal/errors"
	"github.com/julianstephens/microhabits/internal/logger"
	"github.com/julianstephens/microhabits/internal/models"
	"github.com/julianstephens/microhabits/internal/reconciler"
	"github.com/julianstephens/microhabits/internal/storage"
	"github.com/julianstephens/microhabits/internal/streak"
	"github.com/julianstephens/microhabits/internal/utils"
)

// Notifier receives a message when a reconciliation pass resets habits.
type Notifier interface {
	Notify(text string) error
}

type Engine struct {
	store     storage.Provider
	clock     clock.Clock
	loc       *time.Location
	interval  time.Duration
	freeLimit int
	retries   int
	notifier  Notifier
	newID     func() string
	log       *log.Logger

	// addMu serializes the count-then-insert of AddHabit within this process
	addMu sync.Mutex
}

type Option func(*Engine)

// WithLocation sets the zone whose midnight separates days. Defaults to time.Local.
func WithLocation(loc *time.Location) Option {
	return func(e *Engine) {
		if loc != nil {
			e.loc = loc
		}
	}
}

// WithInterval sets the reconciliation loop period.
func WithInterval(d time.Duration) Option {
	return func(e *Engine) {
		e.interval = d
	}
}

// WithFreeLimit overrides the number of habits an unsubscribed owner may keep.
func WithFreeLimit(n int) Option {
	return func(e *Engine) {
		e.freeLimit = n
	}
}

// WithNotifier announces non-empty reconciliation passes.
func WithNotifier(n Notifier) Option {
	return func(e *Engine) {
		e.notifier = n
	}
}

// WithIDGenerator replaces the habit id source.
func WithIDGenerator(fn func() string) Option {
	return func(e *Engine) {
		e.newID = fn
	}
}

func New(store storage.Provider, clk clock.Clock, opts ...Option) *Engine {
	e := &Engine{
		store:     store,
		clock:     clk,
		loc:       time.Local,
		interval:  constants.DefaultReconcileInterval,
		freeLimit: constants.FreeTierHabitLimit,
		retries:   constants.ToggleConflictRetries,
		newID:     uuid.NewString,
		log:       logger.ForComponent("engine"),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Location returns the zone used for day boundaries.
func (e *Engine) Location() *time.Location {
	return e.loc
}

// Now returns the engine clock's current instant.
func (e *Engine) Now() time.Time {
	return e.clock.Now()
}

// ListHabits returns the owner's habits in creation order.
func (e *Engine) ListHabits(ctx context.Context, owner string) ([]models.Habit, error) {
	return e.store.ListHabits(ctx, owner)
}

// GetHabit returns one of owner's habits, or ErrNotFound.
func (e *Engine) GetHabit(ctx context.Context, owner, id string) (models.Habit, error) {
	return e.store.GetHabit(ctx, id, owner)
}

// ToggleHabit marks or un-marks a habit at the engine clock's current instant.
func (e *Engine) ToggleHabit(ctx context.Context, owner, id string) (models.Habit, error) {
	return e.ToggleHabitAt(ctx, owner, id, e.clock.Now())
}

// ToggleHabitAt evaluates the toggle at now and writes it with a compare-and-swap.
// A lost race re-reads the habit and evaluates again; persistence failures are
// returned as-is without retrying.
func (e *Engine) ToggleHabitAt(ctx context.Context, owner, id string, now time.Time) (models.Habit, error) {
	for attempt := 0; attempt <= e.retries; attempt++ {
		h, err := e.store.GetHabit(ctx, id, owner)
		if err != nil {
			return models.Habit{}, err
		}

		prev := h.State()
		next := streak.EvaluateToggle(prev, now, e.loc)

		updated, err := e.store.UpdateHabit(ctx, id, owner, models.StatePatch(prev, next))
		if err == nil {
			e.log.Debug("Toggled habit", "owner", owner, "id", id, "completed", updated.Completed, "streak", updated.Streak)
			return updated, nil
		}
		if !errors.Is(err, apperrors.ErrConflict) {
			return models.Habit{}, err
		}
		e.log.Debug("Toggle lost a race, retrying", "owner", owner, "id", id, "attempt", attempt+1)
	}

	return models.Habit{}, fmt.Errorf("habit %s: %w", id, apperrors.ErrConflict)
}

// AddHabit creates a habit unless an unsubscribed owner is already at the free-tier limit.
// A refused or invalid request writes nothing.
func (e *Engine) AddHabit(ctx context.Context, owner, name, emoji string) (models.Habit, error) {
	name, emoji, err := models.NormalizeHabitInput(name, emoji)
	if err != nil {
		return models.Habit{}, fmt.Errorf("%w: %v", apperrors.ErrInvalidHabit, err)
	}

	e.addMu.Lock()
	defer e.addMu.Unlock()

	allowed, err := e.CanCreateHabit(ctx, owner)
	if err != nil {
		return models.Habit{}, err
	}
	if !allowed {
		return models.Habit{}, apperrors.ErrCapExceeded
	}

	habit := models.Habit{
		ID:        e.newID(),
		Owner:     owner,
		Name:      name,
		Emoji:     emoji,
		CreatedAt: e.clock.Now(),
	}

	created, err := e.store.InsertHabit(ctx, habit)
	if err != nil {
		return models.Habit{}, err
	}
	e.log.Debug("Added habit", "owner", owner, "id", created.ID)
	return created, nil
}

// CanCreateHabit reports whether owner may add another habit right now.
func (e *Engine) CanCreateHabit(ctx context.Context, owner string) (bool, error) {
	count, err := e.store.CountHabits(ctx, owner)
	if err != nil {
		return false, err
	}
	profile, err := e.store.GetProfile(ctx, owner)
	if err != nil {
		return false, err
	}
	return streak.CanCreateHabitWithLimit(count, profile.IsPro, e.freeLimit), nil
}

// RenameHabit changes a habit's name and emoji without touching its completion state.
func (e *Engine) RenameHabit(ctx context.Context, owner, id, name, emoji string) (models.Habit, error) {
	name, emoji, err := models.NormalizeHabitInput(name, emoji)
	if err != nil {
		return models.Habit{}, fmt.Errorf("%w: %v", apperrors.ErrInvalidHabit, err)
	}
	return e.store.UpdateHabit(ctx, id, owner, models.HabitPatch{Name: &name, Emoji: &emoji})
}

func (e *Engine) DeleteHabit(ctx context.Context, owner, id string) error {
	if err := e.store.DeleteHabit(ctx, id, owner); err != nil {
		return err
	}
	e.log.Debug("Deleted habit", "owner", owner, "id", id)
	return nil
}

// Reconcile clears stale completion flags at the engine clock's current instant.
func (e *Engine) Reconcile(ctx context.Context, owner string) ([]string, error) {
	return e.ReconcileAt(ctx, owner, e.clock.Now())
}

// ReconcileAt clears the completed flag of every habit of owner last completed
// before local midnight of now. Streaks and timestamps are left alone.
func (e *Engine) ReconcileAt(ctx context.Context, owner string, now time.Time) ([]string, error) {
	midnight := utils.StartOfDay(now, e.loc)
	ids, err := e.store.ResetStaleCompletions(ctx, owner, midnight)
	if err != nil {
		return nil, err
	}

	if len(ids) > 0 && e.notifier != nil {
		msg := fmt.Sprintf("New day: %d habit(s) ready to check off", len(ids))
		if err := e.notifier.Notify(msg); err != nil {
			e.log.Warn("Failed to send reset notification", "owner", owner, "error", err)
		}
	}

	return ids, nil
}

// StartReconciliationLoop reconciles owner once, then periodically until the
// returned handle is stopped or ctx is cancelled.
func (e *Engine) StartReconciliationLoop(ctx context.Context, owner string, opts ...reconciler.Option) *reconciler.Handle {
	opts = append([]reconciler.Option{reconciler.WithLogger(logger.ForOwner("reconciler", owner))}, opts...)
	return reconciler.Start(ctx, e.clock, e.interval, func(ctx context.Context) ([]string, error) {
		return e.Reconcile(ctx, owner)
	}, opts...)
}

// StopReconciliationLoop stops h and waits for it to exit. A nil handle is ignored.
func (e *Engine) StopReconciliationLoop(h *reconciler.Handle) {
	h.Stop()
}

func (e *Engine) Profile(ctx context.Context, owner string) (models.Profile, error) {
	return e.store.GetProfile(ctx, owner)
}

// SetSubscription records whether owner has a paid subscription.
func (e *Engine) SetSubscription(ctx context.Context, owner string, isPro bool) (models.Profile, error) {
	profile, err := e.store.GetProfile(ctx, owner)
	if err != nil {
		return models.Profile{}, err
	}
	profile.ID = owner
	profile.IsPro = isPro

	if err := e.store.SaveProfile(ctx, profile); err != nil {
		return models.Profile{}, err
	}
	return e.store.GetProfile(ctx, owner)
}
