package system

import (
	"context"
	"fmt"
	"time"

	gfshutdown "github.com/gelmium/graceful-shutdown"

	"github.com/julianstephens/microhabits/internal/api"
	"github.com/julianstephens/microhabits/internal/cli"
	"github.com/julianstephens/microhabits/internal/constants"
	"github.com/julianstephens/microhabits/internal/logger"
	"github.com/julianstephens/microhabits/internal/session"
)

type ServeCmd struct {
	Addr        string        `help:"Address to listen on." default:"${listen_addr}" env:"MICROHABITS_ADDR"`
	IdleTimeout time.Duration `help:"Stop a user's reconciliation loop after this long without requests (0 disables)." default:"${session_idle_timeout}"`
}

func (c *ServeCmd) Run(ctx *cli.Context) error {
	sessions := session.NewManager(ctx.Engine, session.WithIdleTimeout(c.IdleTimeout))
	server := api.NewServer(ctx.Engine, sessions)

	listenErr := make(chan error, 1)
	go func() {
		listenErr <- server.Listen(c.Addr)
	}()

	shutdown := gfshutdown.GracefulShutdown(context.Background(), constants.ShutdownTimeout, map[string]gfshutdown.Operation{
		// Requests first, then the loops they started, then the store they share.
		"server": func(opCtx context.Context) error {
			if err := server.Shutdown(opCtx); err != nil {
				logger.Warn("HTTP server shutdown failed", "error", err)
			}
			if err := sessions.StopAll(opCtx); err != nil {
				return err
			}
			return ctx.Store.Close()
		},
	})

	var exitCode int
	select {
	case err := <-listenErr:
		if err != nil {
			_ = sessions.StopAll(context.Background())
			return fmt.Errorf("server stopped: %w", err)
		}
		// Listen returns nil once Shutdown has been called.
		exitCode = <-shutdown
	case exitCode = <-shutdown:
	}

	if exitCode != 0 {
		return fmt.Errorf("shutdown completed with exit code %d", exitCode)
	}
	return nil
}
