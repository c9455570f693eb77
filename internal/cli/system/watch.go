package system

import (
	"context"
	"fmt"

	gfshutdown "github.com/gelmium/graceful-shutdown"

	"github.com/julianstephens/microhabits/internal/cli"
	"github.com/julianstephens/microhabits/internal/constants"
	"github.com/julianstephens/microhabits/internal/engine"
	"github.com/julianstephens/microhabits/internal/logger"
	"github.com/julianstephens/microhabits/internal/notifier"
	"github.com/julianstephens/microhabits/internal/reconciler"
)

type WatchCmd struct {
	Notify bool `help:"Send a tray notification when habits are reset."`
}

func (c *WatchCmd) Run(ctx *cli.Context) error {
	e := ctx.Engine
	if c.Notify {
		e = ctx.NewEngine(engine.WithNotifier(notifier.New()))
	}

	h := e.StartReconciliationLoop(context.Background(), ctx.Owner, reconciler.OnResult(printResult))
	fmt.Printf("Watching habits for %s every %s, press Ctrl+C to stop.\n", ctx.Owner, h.Interval())

	exitCode := <-gfshutdown.GracefulShutdown(context.Background(), constants.ShutdownTimeout, map[string]gfshutdown.Operation{
		"reconciler": func(context.Context) error {
			e.StopReconciliationLoop(h)
			return nil
		},
		"store": func(context.Context) error {
			<-h.Done()
			return ctx.Store.Close()
		},
	})
	if exitCode != 0 {
		return fmt.Errorf("shutdown completed with exit code %d", exitCode)
	}
	logger.Info("Watch stopped", "owner", ctx.Owner, "runs", h.Runs())
	return nil
}

func printResult(r reconciler.Result) {
	switch {
	case r.Err != nil:
		fmt.Printf("%s  reconciliation failed: %v\n", r.At.Format(constants.TimeDisplayFormat), r.Err)
	case len(r.Reset) > 0:
		fmt.Printf("%s  reset %d habit(s)\n", r.At.Format(constants.TimeDisplayFormat), len(r.Reset))
	}
}
