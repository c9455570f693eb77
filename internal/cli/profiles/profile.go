package profiles

import (
	"context"
	"fmt"

	"github.com/julianstephens/microhabits/internal/cli"
)

type ProfileCmd struct {
	Show        ProfileShowCmd        `cmd:"" help:"Show the current profile." default:"1"`
	Subscribe   ProfileSubscribeCmd   `cmd:"" help:"Enable the paid plan (no habit limit)."`
	Unsubscribe ProfileUnsubscribeCmd `cmd:"" help:"Return to the free plan."`
}

type ProfileShowCmd struct{}

func (c *ProfileShowCmd) Run(ctx *cli.Context) error {
	bg := context.Background()
	profile, err := ctx.Engine.Profile(bg, ctx.Owner)
	if err != nil {
		return err
	}
	count, err := ctx.Store.CountHabits(bg, ctx.Owner)
	if err != nil {
		return err
	}
	canCreate, err := ctx.Engine.CanCreateHabit(bg, ctx.Owner)
	if err != nil {
		return err
	}

	plan := "free"
	if profile.IsPro {
		plan = "pro"
	}

	fmt.Printf("User:   %s\n", profile.ID)
	if profile.FullName != "" {
		fmt.Printf("Name:   %s\n", profile.FullName)
	}
	fmt.Printf("Plan:   %s\n", plan)
	fmt.Printf("Habits: %d\n", count)
	if !canCreate {
		fmt.Println("Habit limit reached, run 'profile subscribe' to add more.")
	}
	return nil
}

type ProfileSubscribeCmd struct{}

func (c *ProfileSubscribeCmd) Run(ctx *cli.Context) error {
	if _, err := ctx.Engine.SetSubscription(context.Background(), ctx.Owner, true); err != nil {
		return err
	}
	fmt.Println("✓ Subscribed, habit limit removed")
	return nil
}

type ProfileUnsubscribeCmd struct{}

func (c *ProfileUnsubscribeCmd) Run(ctx *cli.Context) error {
	if _, err := ctx.Engine.SetSubscription(context.Background(), ctx.Owner, false); err != nil {
		return err
	}
	fmt.Println("✓ Unsubscribed, existing habits are kept")
	return nil
}
