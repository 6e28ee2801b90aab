package directory

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"timer-powerup/internal/domain"
	"timer-powerup/internal/ports"
)

// Directory bundles the caches backed by one tracking client.
type Directory struct {
	Accounts *Cache[domain.TrackingAccount]
	Projects *Cache[domain.TrackingProject]
	Tasks    *Cache[domain.TrackingTask]

	log *slog.Logger
}

// New builds the account, project and task caches over client.
func New(client ports.TrackingClient, timeout time.Duration, log *slog.Logger) *Directory {
	return &Directory{
		Accounts: NewCache("accounts", client.ListUsers, client.Configured, timeout, log),
		Projects: NewCache("projects", client.ListProjects, client.Configured, timeout, log),
		Tasks:    NewCache("tasks", client.ListTasks, client.Configured, timeout, log),
		log:      log,
	}
}

// Warm populates all caches concurrently. Failures are logged; the caches
// stay empty and are fetched again on demand.
func (d *Directory) Warm(ctx context.Context) {
	var g errgroup.Group
	g.Go(func() error { _, err := d.Accounts.Get(ctx); return err })
	g.Go(func() error { _, err := d.Projects.Get(ctx); return err })
	g.Go(func() error { _, err := d.Tasks.Get(ctx); return err })
	if err := g.Wait(); err != nil {
		d.log.Warn("directory warm-up incomplete, will retry on demand", slog.String("error", err.Error()))
		return
	}
	d.log.Info("directory warm",
		slog.Int("accounts", d.Accounts.Len()),
		slog.Int("projects", d.Projects.Len()),
		slog.Int("tasks", d.Tasks.Len()),
	)
}

// InvalidateAll drops every cached list.
func (d *Directory) InvalidateAll() {
	d.Accounts.Invalidate()
	d.Projects.Invalidate()
	d.Tasks.Invalidate()
}
