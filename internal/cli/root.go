package cli

import (
	"context"
	"fmt"
	"os/user"
	"strings"
	"time"

	"github.com/julianstephens/microhabits/internal/clock"
	"github.com/julianstephens/microhabits/internal/engine"
	"github.com/julianstephens/microhabits/internal/models"
	"github.com/julianstephens/microhabits/internal/storage"
)

type Context struct {
	Store    storage.Provider
	Engine   *engine.Engine
	Clock    clock.Clock
	Owner    string
	Location *time.Location
	Interval time.Duration
}

// NewContext builds the engine shared by every command from the resolved flags.
func NewContext(store storage.Provider, owner string, loc *time.Location, interval time.Duration) *Context {
	c := &Context{
		Store:    store,
		Clock:    clock.New(loc),
		Owner:    owner,
		Location: loc,
		Interval: interval,
	}
	c.Engine = c.NewEngine()
	return c
}

// NewEngine returns an engine over the context's store with extra options applied
// after the flag-derived ones.
func (c *Context) NewEngine(extra ...engine.Option) *engine.Engine {
	opts := []engine.Option{engine.WithLocation(c.Location)}
	if c.Interval > 0 {
		opts = append(opts, engine.WithInterval(c.Interval))
	}
	return engine.New(c.Store, c.Clock, append(opts, extra...)...)
}

// Reconcile clears the owner's completions left over from earlier days. One-shot
// commands call it before reading habits since no reconciliation loop runs for them.
func (c *Context) Reconcile(ctx context.Context) error {
	if _, err := c.Engine.Reconcile(ctx, c.Owner); err != nil {
		return fmt.Errorf("failed to reconcile habits: %w", err)
	}
	return nil
}

// ResolveOwner returns explicit when set, otherwise the current OS username.
func ResolveOwner(explicit string) (string, error) {
	if owner := strings.TrimSpace(explicit); owner != "" {
		return owner, nil
	}
	u, err := user.Current()
	if err != nil {
		return "", fmt.Errorf("failed to determine current user, pass --user: %w", err)
	}
	return u.Username, nil
}

// FormatHabit renders a habit as a single checklist line.
func FormatHabit(h models.Habit) string {
	box := "[ ]"
	if h.Completed {
		box = "[x]"
	}
	name := h.Name
	if h.Emoji != "" {
		name = h.Emoji + " " + name
	}
	return fmt.Sprintf("%s %s (streak %d)", box, name, h.Streak)
}
