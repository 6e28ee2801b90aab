// Package cli implements the timer-powerup command line.
package cli

import (
	"context"
	"io"
	"log/slog"
	"os"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/masq"
	"github.com/urfave/cli/v3"

	"timer-powerup/internal/config"
)

// globals holds the root flags shared by every command.
type globals struct {
	configPath string
	verbose    bool
	logFormat  string
	log        *slog.Logger
}

func (g *globals) loadConfig() (config.Config, error) {
	cfg, err := config.Load(g.configPath)
	if err != nil {
		return cfg, goerr.Wrap(err, "failed to load config")
	}
	return cfg, nil
}

// Run executes the command line with args.
func Run(ctx context.Context, args []string, version string) error {
	g := &globals{log: slog.Default()}

	app := &cli.Command{
		Name:    "timer-powerup",
		Usage:   "Backend for the board timer power-up",
		Version: version,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "config",
				Aliases:     []string{"c"},
				Usage:       "Path to YAML config file (environment variables take precedence)",
				Sources:     cli.EnvVars("TIMER_POWERUP_CONFIG"),
				Destination: &g.configPath,
			},
			&cli.BoolFlag{
				Name:        "verbose",
				Aliases:     []string{"v"},
				Usage:       "Enable verbose logging",
				Destination: &g.verbose,
			},
			&cli.StringFlag{
				Name:        "log-format",
				Usage:       "Log format: text or json",
				Value:       "text",
				Sources:     cli.EnvVars("LOG_FORMAT"),
				Destination: &g.logFormat,
			},
		},
		Before: func(ctx context.Context, c *cli.Command) (context.Context, error) {
			logger, err := newLogger(os.Stdout, g.verbose, g.logFormat)
			if err != nil {
				return ctx, err
			}
			g.log = logger
			slog.SetDefault(logger)
			return ctx, nil
		},
		Commands: []*cli.Command{
			cmdServe(g),
			cmdCheck(g),
			cmdResolve(g),
			cmdMigrate(g),
			cmdImportMappings(g),
		},
	}

	if err := app.Run(ctx, args); err != nil {
		g.log.Error("failed to run app", slog.Any("error", err))
		return err
	}
	return nil
}

// newLogger builds the process logger. Struct fields tagged masq:"secret"
// are redacted wherever they are logged.
func newLogger(w io.Writer, verbose bool, format string) (*slog.Logger, error) {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	opts := &slog.HandlerOptions{
		Level:       level,
		ReplaceAttr: masq.New(masq.WithTag("secret")),
	}
	switch format {
	case "", "text":
		return slog.New(slog.NewTextHandler(w, opts)), nil
	case "json":
		return slog.New(slog.NewJSONHandler(w, opts)), nil
	default:
		return nil, goerr.New("unsupported log format", goerr.V("format", format))
	}
}
