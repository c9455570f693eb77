package system

import (
	"context"
	"fmt"

	"github.com/julianstephens/microhabits/internal/cli"
)

type ReconcileCmd struct{}

func (c *ReconcileCmd) Run(ctx *cli.Context) error {
	ids, err := ctx.Engine.Reconcile(context.Background(), ctx.Owner)
	if err != nil {
		return err
	}

	if len(ids) == 0 {
		fmt.Println("Nothing to reset.")
		return nil
	}
	fmt.Printf("Reset %d habit(s) for the new day.\n", len(ids))
	return nil
}
