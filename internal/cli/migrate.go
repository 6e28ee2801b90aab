package cli

import (
	"context"
	"log/slog"

	"github.com/m-mizutani/goerr/v2"
	"github.com/urfave/cli/v3"

	msql "timer-powerup/internal/adapter/mysql"
	"timer-powerup/internal/migrate"
)

func cmdMigrate(g *globals) *cli.Command {
	return &cli.Command{
		Name:    "migrate",
		Aliases: []string{"m"},
		Usage:   "Create the MySQL board user mapping table",
		Action: func(ctx context.Context, c *cli.Command) error {
			cfg, err := g.loadConfig()
			if err != nil {
				return err
			}
			if cfg.MySQL.DSN == "" {
				return goerr.New("MYSQL_DSN is required for migrate")
			}
			n, err := migrate.Run(ctx, cfg.MySQL.DSN, g.log)
			if err != nil {
				return goerr.Wrap(err, "failed to apply migrations")
			}
			g.log.Info("migrations applied", slog.Int("count", n))
			return nil
		},
	}
}

func cmdImportMappings(g *globals) *cli.Command {
	return &cli.Command{
		Name:  "import-mappings",
		Usage: "Copy the configured user mappings into MySQL",
		Action: func(ctx context.Context, c *cli.Command) error {
			cfg, err := g.loadConfig()
			if err != nil {
				return err
			}
			if cfg.MySQL.DSN == "" {
				return goerr.New("MYSQL_DSN is required for import-mappings")
			}
			store, err := msql.NewMappingStore(ctx, cfg.MySQL.DSN, g.log)
			if err != nil {
				return err
			}
			defer store.Close()

			n, err := store.Import(ctx, cfg.UserMappings.ByUsername, cfg.UserMappings.ByUserID)
			if err != nil {
				return goerr.Wrap(err, "failed to import mappings")
			}
			g.log.Info("mappings imported", slog.Int("count", n))
			return nil
		},
	}
}
