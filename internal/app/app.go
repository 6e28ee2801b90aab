package app

import (
	"context"
	"log/slog"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/robfig/cron/v3"

	"timer-powerup/internal/adapter/harvest"
	msql "timer-powerup/internal/adapter/mysql"
	"timer-powerup/internal/adapter/webhook"
	"timer-powerup/internal/cardident"
	"timer-powerup/internal/config"
	"timer-powerup/internal/directory"
	"timer-powerup/internal/ports"
	"timer-powerup/internal/resolver"
	"timer-powerup/internal/usecase"
)

// App wires adapters and use cases.
type App struct {
	log *slog.Logger
	cfg config.Config

	tracking  ports.TrackingClient
	directory *directory.Directory
	resolver  *resolver.Resolver
	check     *usecase.TimerCheck
	actions   *usecase.TimerActions
	popup     *usecase.Popup

	store *msql.MappingStore
	cron  *cron.Cron
}

// Deps overrides the outbound adapters; nil fields are built from config.
type Deps struct {
	Tracking ports.TrackingClient
	Gateway  ports.Gateway
	// Mappings is an extra mapping source consulted after the static one.
	Mappings ports.UserMappings
}

// New builds the application from configuration. The MySQL mapping store is
// opened only when a DSN is configured.
func New(ctx context.Context, log *slog.Logger, cfg config.Config) (*App, error) {
	deps := Deps{}
	var store *msql.MappingStore
	if cfg.MySQL.DSN != "" {
		s, err := msql.NewMappingStore(ctx, cfg.MySQL.DSN, log)
		if err != nil {
			return nil, goerr.Wrap(err, "failed to open mapping store")
		}
		store = s
		deps.Mappings = s
	}
	a := NewWithDeps(log, cfg, deps)
	a.store = store
	return a, nil
}

// NewWithDeps builds the application around the given adapters.
func NewWithDeps(log *slog.Logger, cfg config.Config, deps Deps) *App {
	if deps.Tracking == nil {
		deps.Tracking = harvest.NewClient(harvest.Options{
			BaseURL:     cfg.Harvest.BaseURL,
			AccessToken: cfg.Harvest.AccessToken,
			AccountID:   cfg.Harvest.AccountID,
			UserAgent:   cfg.Harvest.UserAgent,
		}, log)
	}
	if deps.Gateway == nil {
		deps.Gateway = webhook.NewClient(webhook.Options{
			URLFor:        cfg.ActionURL,
			APIKey:        cfg.Gateway.APIKey,
			Timeout:       cfg.API.Timeout,
			RetryAttempts: cfg.API.RetryAttempts,
			RetryDelay:    cfg.API.RetryDelay,
		}, log)
	}

	dir := directory.New(deps.Tracking, cfg.Harvest.DirectoryTimeout, log)

	strategies := []resolver.Strategy{
		resolver.EmailStrategy{Accounts: dir.Accounts, Log: log},
		resolver.MappingStrategy{
			Label: "static",
			Mappings: resolver.StaticMappings{
				ByUsernameMap: cfg.UserMappings.ByUsername,
				ByUserIDMap:   cfg.UserMappings.ByUserID,
			},
			Log: log,
		},
	}
	if deps.Mappings != nil {
		strategies = append(strategies, resolver.MappingStrategy{Label: "mysql", Mappings: deps.Mappings, Log: log})
	}
	res := resolver.New(log, strategies...)
	cards := cardident.New(cfg.Matching.CardLinkPattern)

	return &App{
		log:       log,
		cfg:       cfg,
		tracking:  deps.Tracking,
		directory: dir,
		resolver:  res,
		check: &usecase.TimerCheck{
			Log:                   log,
			Tracking:              deps.Tracking,
			Users:                 res,
			Cards:                 cards,
			Timeout:               cfg.Harvest.CheckTimeout,
			SuppressUnparsedChild: cfg.Matching.SuppressUnparsedChild,
		},
		actions: &usecase.TimerActions{
			Log:                log,
			Gateway:            deps.Gateway,
			Users:              res,
			Projects:           dir.Projects,
			Cards:              cards,
			TrackingConfigured: deps.Tracking.Configured,
		},
		popup: &usecase.Popup{
			Log:              log,
			Projects:         dir.Projects,
			Tasks:            dir.Tasks,
			Cards:            cards,
			Categories:       cfg.Categories,
			CategoryDefaults: cfg.CategoryDefaults,
		},
	}
}

// Check exposes the timer check use case.
func (a *App) Check() *usecase.TimerCheck { return a.check }

// Resolver exposes the board user resolver.
func (a *App) Resolver() *resolver.Resolver { return a.resolver }

// Start warms the directory in the background and schedules periodic
// refreshes when a cron expression is configured.
func (a *App) Start(ctx context.Context) error {
	if !a.tracking.Configured() {
		a.log.Warn("harvest credentials not configured; timer badges disabled")
	} else {
		go a.directory.Warm(context.WithoutCancel(ctx))
	}

	if a.cfg.Directory.RefreshCron == "" {
		return nil
	}
	a.cron = cron.New()
	_, err := a.cron.AddFunc(a.cfg.Directory.RefreshCron, func() {
		a.RefreshDirectory(context.Background())
	})
	if err != nil {
		return goerr.Wrap(err, "invalid directory refresh schedule", goerr.V("cron", a.cfg.Directory.RefreshCron))
	}
	a.cron.Start()
	a.log.Info("directory refresh scheduled", slog.String("cron", a.cfg.Directory.RefreshCron))
	return nil
}

// RefreshDirectory drops the cached lists and fetches them again.
func (a *App) RefreshDirectory(ctx context.Context) {
	start := time.Now()
	a.directory.InvalidateAll()
	a.directory.Warm(ctx)
	a.log.Info("directory refreshed", slog.Duration("dur", time.Since(start)))
}

// Close stops scheduled jobs and releases the mapping store.
func (a *App) Close() error {
	if a.cron != nil {
		<-a.cron.Stop().Done()
	}
	if a.store != nil {
		return a.store.Close()
	}
	return nil
}
