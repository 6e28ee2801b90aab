package usecase

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"timer-powerup/internal/cardident"
	"timer-powerup/internal/domain"
	"timer-powerup/internal/ports"
)

const defaultCheckTimeout = 5 * time.Second

// TimerCheck decides whether a running timer belongs to a card. It never
// returns errors: every failure is logged and reported as TimerNone.
type TimerCheck struct {
	Log      *slog.Logger
	Tracking ports.TrackingClient
	Users    ports.UserResolver
	Cards    cardident.Normalizer
	// Timeout bounds each running-timer query.
	Timeout time.Duration
	// SuppressUnparsedChild hides the badge on cards that link to a parent
	// whose name could not be derived, instead of matching them by their own name.
	SuppressUnparsedChild bool
}

// Check reports the timer status of card for clientLabel. user is nil when
// the acting user cannot be identified, e.g. during a badge refresh.
func (uc *TimerCheck) Check(ctx context.Context, card domain.Card, clientLabel string, user *domain.BoardUser) domain.TimerStatus {
	if uc.Tracking == nil || !uc.Tracking.Configured() {
		uc.Log.Warn("tracking credentials not configured, skipping timer check")
		return domain.TimerNone
	}
	if clientLabel == "" {
		uc.Log.Debug("no client label on card, skipping timer check", slog.String("card", card.Name))
		return domain.TimerNone
	}

	ident := uc.Cards.Normalize(card)
	if ident.IsChild {
		uc.Log.Debug("child card, status shows on parent", slog.String("card", card.Name))
		return domain.TimerNone
	}
	if ident.Parent != nil && uc.SuppressUnparsedChild {
		uc.Log.Debug("parent link not parseable, badge suppressed",
			slog.String("card", card.Name),
			slog.String("parent_url", ident.Parent.AttachmentURL),
		)
		return domain.TimerNone
	}

	userID := uc.resolve(ctx, user)

	timeout := uc.Timeout
	if timeout <= 0 {
		timeout = defaultCheckTimeout
	}
	qctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	timers, err := uc.Tracking.ListRunningTimers(qctx, userID)
	if err != nil {
		uc.Log.Error("timer check failed", slog.String("card", card.Name), slog.String("error", err.Error()))
		return domain.TimerNone
	}
	uc.Log.Debug("running timers fetched",
		slog.Int("count", len(timers)),
		slog.Bool("user_scoped", userID != ""),
	)

	for _, t := range timers {
		if !MatchesCard(t, clientLabel, ident.EffectiveName) {
			continue
		}
		uc.Log.Info("running timer matches card",
			slog.String("project", t.ProjectName()),
			slog.String("client", t.ClientName()),
			slog.Bool("user_scoped", userID != ""),
		)
		if userID != "" {
			return domain.TimerRunningForUser
		}
		return domain.TimerRunningTeamwide
	}
	return domain.TimerNone
}

// Badge returns the running badge for card, or nil when no timer matches.
func (uc *TimerCheck) Badge(ctx context.Context, card domain.Card, user *domain.BoardUser) *domain.Badge {
	if !uc.Check(ctx, card, card.ClientLabel(), user).Running() {
		return nil
	}
	b := domain.RunningBadge
	return &b
}

// CurrentTimer returns the first running timer of user on any card, or nil
// when the user has none or cannot be resolved.
func (uc *TimerCheck) CurrentTimer(ctx context.Context, user domain.BoardUser) *domain.ActiveTimerRecord {
	if uc.Tracking == nil || !uc.Tracking.Configured() {
		return nil
	}
	userID := uc.resolve(ctx, &user)
	if userID == "" {
		return nil
	}

	timeout := uc.Timeout
	if timeout <= 0 {
		timeout = defaultCheckTimeout
	}
	qctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	timers, err := uc.Tracking.ListRunningTimers(qctx, userID)
	if err != nil {
		uc.Log.Error("current timer lookup failed", slog.String("error", err.Error()))
		return nil
	}
	if len(timers) == 0 {
		return nil
	}
	return &timers[0]
}

// resolve returns "" when there is no user or it cannot be resolved; the
// query then covers every user.
func (uc *TimerCheck) resolve(ctx context.Context, user *domain.BoardUser) string {
	if user == nil || uc.Users == nil {
		return ""
	}
	id, ok := uc.Users.Resolve(ctx, *user)
	if !ok {
		return ""
	}
	return id
}

// MatchesCard reports whether a running timer belongs to the card: both the
// client and the project name must match, ignoring case.
func MatchesCard(t domain.ActiveTimerRecord, clientLabel, projectName string) bool {
	if t.Client == nil || t.Project == nil {
		return false
	}
	return strings.EqualFold(t.Client.Name, clientLabel) &&
		strings.EqualFold(t.Project.Name, projectName)
}
