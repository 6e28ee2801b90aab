package ports

import (
	"context"

	"timer-powerup/internal/domain"
)

// TrackingClient defines the read-only calls made against the time-tracking API.
type TrackingClient interface {
	// Configured reports whether both the access token and the account id are set.
	Configured() bool
	// ListRunningTimers returns running entries, scoped to userID when it is non-empty.
	ListRunningTimers(ctx context.Context, userID string) ([]domain.ActiveTimerRecord, error)
	ListUsers(ctx context.Context) ([]domain.TrackingAccount, error)
	ListProjects(ctx context.Context) ([]domain.TrackingProject, error)
	ListTasks(ctx context.Context) ([]domain.TrackingTask, error)
}

// UserMappings is a static board-user to tracking-account mapping source.
// The bool result reports whether a mapping exists.
type UserMappings interface {
	ByUsername(ctx context.Context, username string) (string, bool, error)
	ByUserID(ctx context.Context, userID string) (string, bool, error)
}

// AccountSource yields the cached tracking accounts.
type AccountSource interface {
	Get(ctx context.Context) ([]domain.TrackingAccount, error)
}

// ProjectSource yields the cached tracking projects.
type ProjectSource interface {
	Get(ctx context.Context) ([]domain.TrackingProject, error)
}

// TaskSource yields the cached tracking tasks.
type TaskSource interface {
	Get(ctx context.Context) ([]domain.TrackingTask, error)
}

// UserResolver maps a board user to a tracking account id.
type UserResolver interface {
	Resolve(ctx context.Context, user domain.BoardUser) (string, bool)
}

// Gateway posts envelopes to the workflow-automation webhook gateway.
type Gateway interface {
	Send(ctx context.Context, action domain.WebhookAction, env domain.Envelope) domain.DeliveryResult
}
