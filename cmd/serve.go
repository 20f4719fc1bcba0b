package cmd

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/discourse/discourse-releases/internal/server"
)

const shutdownTimeout = 10 * time.Second

// ServeCmd returns the serve command.
func ServeCmd() *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Serve the changelog API over HTTP",
		Flags: append(snapshotFlags(),
			&cli.StringFlag{
				Name:  "addr",
				Usage: "Listen address (default from config)",
			},
		),
		Action: serveAction,
	}
}

func serveAction(c *cli.Context) error {
	return executeWithContext(c, func(ctx *CommandContext, c *cli.Context) error {
		engine, err := ctx.LoadEngine(c)
		if err != nil {
			return err
		}
		addr := c.String("addr")
		if addr == "" {
			addr = ctx.Config.Server.Addr
		}

		srv := &http.Server{
			Addr:              addr,
			Handler:           server.New(engine, ctx.Logger),
			ReadHeaderTimeout: 10 * time.Second,
		}

		runCtx, stop := signal.NotifyContext(contextOrBackground(c), os.Interrupt, syscall.SIGTERM)
		defer stop()

		errCh := make(chan error, 1)
		go func() {
			ctx.Logger.Info("listening", "addr", addr, "commits", engine.TotalCommits())
			errCh <- srv.ListenAndServe()
		}()

		select {
		case err := <-errCh:
			return err
		case <-runCtx.Done():
		}

		ctx.Logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		if err := <-errCh; !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
}
