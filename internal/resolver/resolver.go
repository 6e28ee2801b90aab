// Package resolver maps board users to time-tracking account ids.
package resolver

import (
	"context"
	"log/slog"
	"strings"

	"timer-powerup/internal/domain"
	"timer-powerup/internal/ports"
)

// Resolution is the outcome of one strategy.
type Resolution struct {
	ID       string
	Found    bool
	Strategy string
}

func notFound(strategy string) Resolution {
	return Resolution{Strategy: strategy}
}

// Strategy is one way of resolving a board user.
type Strategy interface {
	Name() string
	Resolve(ctx context.Context, user domain.BoardUser) Resolution
}

// Resolver evaluates strategies in order; the first match wins.
type Resolver struct {
	strategies []Strategy
	log        *slog.Logger
}

// New creates a resolver over an ordered list of strategies.
func New(log *slog.Logger, strategies ...Strategy) *Resolver {
	return &Resolver{strategies: strategies, log: log}
}

// Resolve returns the tracking account id of user. Resolution failure is an
// expected outcome and is reported through the bool.
func (r *Resolver) Resolve(ctx context.Context, user domain.BoardUser) (string, bool) {
	res := r.ResolveDetailed(ctx, user)
	return res.ID, res.Found
}

// ResolveDetailed is Resolve that also names the strategy that matched.
func (r *Resolver) ResolveDetailed(ctx context.Context, user domain.BoardUser) Resolution {
	for _, s := range r.strategies {
		res := s.Resolve(ctx, user)
		if res.Found {
			r.log.Debug("board user resolved",
				slog.String("username", user.Username),
				slog.String("strategy", res.Strategy),
				slog.String("tracking_user_id", res.ID),
			)
			return res
		}
	}
	r.log.Warn("board user not mapped to a tracking account",
		slog.String("username", user.Username),
		slog.String("user_id", user.ID),
		slog.Bool("has_email", user.Email != ""),
	)
	return Resolution{}
}

// EmailStrategy matches the board user's email against the account directory.
type EmailStrategy struct {
	Accounts ports.AccountSource
	Log      *slog.Logger
}

func (s EmailStrategy) Name() string { return "email" }

func (s EmailStrategy) Resolve(ctx context.Context, user domain.BoardUser) Resolution {
	if user.Email == "" {
		return notFound(s.Name())
	}
	accounts, err := s.Accounts.Get(ctx)
	if err != nil {
		s.Log.Warn("account directory unavailable for email match", slog.String("error", err.Error()))
		return notFound(s.Name())
	}
	for _, a := range accounts {
		if a.Email != "" && strings.EqualFold(a.Email, user.Email) {
			return Resolution{ID: a.ID, Found: true, Strategy: s.Name()}
		}
	}
	return notFound(s.Name())
}

// MappingStrategy consults a static mapping, by username first and then by
// board user id.
type MappingStrategy struct {
	Label    string
	Mappings ports.UserMappings
	Log      *slog.Logger
}

func (s MappingStrategy) Name() string {
	if s.Label == "" {
		return "mapping"
	}
	return s.Label
}

func (s MappingStrategy) Resolve(ctx context.Context, user domain.BoardUser) Resolution {
	if user.Username != "" {
		id, ok, err := s.Mappings.ByUsername(ctx, user.Username)
		if err != nil {
			s.Log.Warn("username mapping lookup failed", slog.String("source", s.Name()), slog.String("error", err.Error()))
		} else if ok {
			return Resolution{ID: id, Found: true, Strategy: s.Name() + ":username"}
		}
	}
	if user.ID != "" {
		id, ok, err := s.Mappings.ByUserID(ctx, user.ID)
		if err != nil {
			s.Log.Warn("user id mapping lookup failed", slog.String("source", s.Name()), slog.String("error", err.Error()))
		} else if ok {
			return Resolution{ID: id, Found: true, Strategy: s.Name() + ":user_id"}
		}
	}
	return notFound(s.Name())
}

// StaticMappings is an in-memory ports.UserMappings built from configuration.
type StaticMappings struct {
	ByUsernameMap map[string]string
	ByUserIDMap   map[string]string
}

func (m StaticMappings) ByUsername(_ context.Context, username string) (string, bool, error) {
	id, ok := m.ByUsernameMap[username]
	return id, ok && id != "", nil
}

func (m StaticMappings) ByUserID(_ context.Context, userID string) (string, bool, error) {
	id, ok := m.ByUserIDMap[userID]
	return id, ok && id != "", nil
}
