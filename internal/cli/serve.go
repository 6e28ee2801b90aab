package cli

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/urfave/cli/v3"

	"timer-powerup/internal/app"
)

func cmdServe(g *globals) *cli.Command {
	var addr string

	return &cli.Command{
		Name:    "serve",
		Aliases: []string{"s"},
		Usage:   "Start HTTP server",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "addr",
				Usage:       "HTTP server address (overrides http.addr)",
				Destination: &addr,
			},
		},
		Action: func(ctx context.Context, c *cli.Command) error {
			cfg, err := g.loadConfig()
			if err != nil {
				return err
			}
			if addr != "" {
				cfg.HTTP.Addr = addr
			}
			g.log.Info("starting timer-powerup", slog.Any("config", cfg))

			application, err := app.New(ctx, g.log, cfg)
			if err != nil {
				return goerr.Wrap(err, "failed to initialize app")
			}
			defer func() {
				if err := application.Close(); err != nil {
					g.log.Error("failed to close app", slog.String("error", err.Error()))
				}
			}()
			if err := application.Start(ctx); err != nil {
				return err
			}

			srv := application.HTTPServer(cfg.HTTP.Addr)
			errCh := make(chan error, 1)
			go func() {
				g.log.Info("http server listening", slog.String("addr", cfg.HTTP.Addr))
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					errCh <- err
				}
				close(errCh)
			}()

			select {
			case err, ok := <-errCh:
				if ok {
					return goerr.Wrap(err, "http server failed")
				}
				return nil
			case <-ctx.Done():
				g.log.Info("shutting down")
			}

			shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
			defer cancel()
			if err := srv.Shutdown(shutdownCtx); err != nil {
				return goerr.Wrap(err, "graceful shutdown failed")
			}
			return nil
		},
	}
}
