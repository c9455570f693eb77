package habits

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/julianstephens/microhabits/internal/cli"
	"github.com/julianstephens/microhabits/internal/constants"
	apperrors "github.com/julianstephens/microhabits/internal/errors"
	"github.com/julianstephens/microhabits/internal/models"
)

type HabitCmd struct {
	Add    HabitAddCmd    `cmd:"" help:"Add a new habit."`
	List   HabitListCmd   `cmd:"" help:"List habits."`
	Toggle HabitToggleCmd `cmd:"" help:"Mark or unmark a habit for today."`
	Rename HabitRenameCmd `cmd:"" help:"Rename a habit."`
	Delete HabitDeleteCmd `cmd:"" help:"Delete a habit."`
}

type HabitAddCmd struct {
	Name  string `arg:"" help:"Habit name."`
	Emoji string `short:"e" help:"Optional emoji shown next to the name."`
}

func (c *HabitAddCmd) Run(ctx *cli.Context) error {
	habit, err := ctx.Engine.AddHabit(context.Background(), ctx.Owner, c.Name, c.Emoji)
	if err != nil {
		if errors.Is(err, apperrors.ErrCapExceeded) {
			return fmt.Errorf("%w: the free plan keeps up to %d habits, run 'profile subscribe' to add more", err, constants.FreeTierHabitLimit)
		}
		return err
	}

	fmt.Printf("Added habit: %s (ID: %s)\n", habit.Name, habit.ID)
	return nil
}

type HabitListCmd struct {
	IDs bool `help:"Show habit IDs."`
}

func (c *HabitListCmd) Run(ctx *cli.Context) error {
	bg := context.Background()
	if err := ctx.Reconcile(bg); err != nil {
		return err
	}

	habits, err := ctx.Engine.ListHabits(bg, ctx.Owner)
	if err != nil {
		return err
	}

	if len(habits) == 0 {
		fmt.Println("No habits found.")
		return nil
	}

	for _, habit := range habits {
		line := cli.FormatHabit(habit)
		if c.IDs {
			line = fmt.Sprintf("%s  %s", habit.ID, line)
		}
		fmt.Println(line)
	}
	return nil
}

type HabitToggleCmd struct {
	Habit string `arg:"" help:"Habit ID, unique ID prefix or name."`
}

func (c *HabitToggleCmd) Run(ctx *cli.Context) error {
	bg := context.Background()
	habit, err := Resolve(bg, ctx, c.Habit)
	if err != nil {
		return err
	}

	updated, err := ctx.Engine.ToggleHabit(bg, ctx.Owner, habit.ID)
	if err != nil {
		return err
	}

	verb := "Unmarked"
	if updated.Completed {
		verb = "Marked"
	}
	fmt.Printf("%s %q, streak %d\n", verb, updated.Name, updated.Streak)
	return nil
}

type HabitRenameCmd struct {
	Habit string `arg:"" help:"Habit ID, unique ID prefix or name."`
	Name  string `arg:"" help:"New habit name."`
	Emoji string `short:"e" help:"Replace the emoji."`
}

func (c *HabitRenameCmd) Run(ctx *cli.Context) error {
	bg := context.Background()
	habit, err := Resolve(bg, ctx, c.Habit)
	if err != nil {
		return err
	}

	emoji := habit.Emoji
	if c.Emoji != "" {
		emoji = c.Emoji
	}
	updated, err := ctx.Engine.RenameHabit(bg, ctx.Owner, habit.ID, c.Name, emoji)
	if err != nil {
		return err
	}

	fmt.Printf("Renamed habit to %q\n", updated.Name)
	return nil
}

type HabitDeleteCmd struct {
	Habit string `arg:"" help:"Habit ID, unique ID prefix or name."`
}

func (c *HabitDeleteCmd) Run(ctx *cli.Context) error {
	bg := context.Background()
	habit, err := Resolve(bg, ctx, c.Habit)
	if err != nil {
		return err
	}

	if err := ctx.Engine.DeleteHabit(bg, ctx.Owner, habit.ID); err != nil {
		return err
	}

	fmt.Printf("Deleted habit: %s\n", habit.Name)
	return nil
}

// Resolve finds one of the owner's habits by exact ID, unique ID prefix, or
// case-insensitive name, in that order.
func Resolve(ctx context.Context, c *cli.Context, ref string) (models.Habit, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return models.Habit{}, fmt.Errorf("habit reference cannot be empty")
	}
	if err := c.Reconcile(ctx); err != nil {
		return models.Habit{}, err
	}

	habits, err := c.Engine.ListHabits(ctx, c.Owner)
	if err != nil {
		return models.Habit{}, err
	}

	var prefixed []models.Habit
	for _, h := range habits {
		if h.ID == ref {
			return h, nil
		}
		if strings.HasPrefix(h.ID, ref) {
			prefixed = append(prefixed, h)
		}
	}
	if len(prefixed) == 1 {
		return prefixed[0], nil
	}
	if len(prefixed) > 1 {
		return models.Habit{}, fmt.Errorf("habit reference %q is ambiguous, %d habits match", ref, len(prefixed))
	}

	for _, h := range habits {
		if strings.EqualFold(h.Name, ref) {
			return h, nil
		}
	}
	return models.Habit{}, fmt.Errorf("habit %q: %w", ref, apperrors.ErrNotFound)
}
