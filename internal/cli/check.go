package cli

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/m-mizutani/goerr/v2"
	"github.com/urfave/cli/v3"

	"timer-powerup/internal/app"
	"timer-powerup/internal/domain"
)

// userFlags are shared by commands that act on behalf of a board user.
type userFlags struct {
	id, username, email string
}

func (u *userFlags) flags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{Name: "user-id", Usage: "Board user id", Destination: &u.id},
		&cli.StringFlag{Name: "username", Usage: "Board username", Destination: &u.username},
		&cli.StringFlag{Name: "email", Usage: "Board user email", Destination: &u.email},
	}
}

func (u *userFlags) user() *domain.BoardUser {
	if u.id == "" && u.username == "" && u.email == "" {
		return nil
	}
	return &domain.BoardUser{ID: u.id, Username: u.username, Email: u.email}
}

func cmdCheck(g *globals) *cli.Command {
	var (
		cardName    string
		label       string
		attachments []string
		uf          userFlags
	)

	flags := []cli.Flag{
		&cli.StringFlag{
			Name:        "card",
			Usage:       "Card name",
			Required:    true,
			Destination: &cardName,
		},
		&cli.StringFlag{
			Name:        "label",
			Usage:       "Client label (first label of the card)",
			Destination: &label,
		},
		&cli.StringSliceFlag{
			Name:        "attachment",
			Usage:       "Attachment URL; may be repeated",
			Destination: &attachments,
		},
	}
	flags = append(flags, uf.flags()...)

	return &cli.Command{
		Name:  "check",
		Usage: "Check whether a timer is running for a card",
		Flags: flags,
		Action: func(ctx context.Context, c *cli.Command) error {
			cfg, err := g.loadConfig()
			if err != nil {
				return err
			}
			a := app.NewWithDeps(g.log, cfg, app.Deps{})

			card := domain.Card{Name: cardName}
			if label != "" {
				card.Labels = []domain.Label{{Name: label}}
			}
			for _, u := range attachments {
				card.Attachments = append(card.Attachments, domain.Attachment{URL: u})
			}

			status := a.Check().Check(ctx, card, card.ClientLabel(), uf.user())
			g.log.Debug("check finished", slog.String("card", cardName), slog.String("status", status.String()))
			fmt.Fprintln(c.Root().Writer, status.String())
			return nil
		},
	}
}

func cmdResolve(g *globals) *cli.Command {
	var uf userFlags

	return &cli.Command{
		Name:  "resolve",
		Usage: "Resolve a board user to a tracking account id",
		Flags: uf.flags(),
		Action: func(ctx context.Context, c *cli.Command) error {
			user := uf.user()
			if user == nil {
				return goerr.New("one of --user-id, --username or --email is required")
			}
			cfg, err := g.loadConfig()
			if err != nil {
				return err
			}
			a, err := app.New(ctx, g.log, cfg)
			if err != nil {
				return goerr.Wrap(err, "failed to initialize app")
			}
			defer a.Close()

			res := a.Resolver().ResolveDetailed(ctx, *user)
			if !res.Found {
				return goerr.New("board user not mapped", goerr.V("username", user.Username), goerr.V("user_id", user.ID))
			}
			fmt.Fprintf(c.Root().Writer, "%s\t%s\n", res.ID, res.Strategy)
			return nil
		},
	}
}
