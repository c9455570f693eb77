package system

import (
	"context"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/julianstephens/microhabits/internal/cli"
	"github.com/julianstephens/microhabits/internal/reconciler"
	"github.com/julianstephens/microhabits/internal/tui"
)

type TuiCmd struct{}

func (c *TuiCmd) Run(ctx *cli.Context) error {
	results := make(chan reconciler.Result, 1)
	h := ctx.Engine.StartReconciliationLoop(context.Background(), ctx.Owner,
		reconciler.OnResult(func(r reconciler.Result) {
			// A pending result already triggers a full reload.
			select {
			case results <- r:
			default:
			}
		}),
	)
	defer ctx.Engine.StopReconciliationLoop(h)

	p := tea.NewProgram(tui.NewModel(ctx.Engine, ctx.Owner, results), tea.WithAltScreen())
	_, err := p.Run()
	return err
}
