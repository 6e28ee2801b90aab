package usecase

import (
	"context"
	"encoding/json"
	"log/slog"
	"slices"
	"strings"
	"time"

	"github.com/m-mizutani/goerr/v2"

	"timer-powerup/internal/cardident"
	"timer-powerup/internal/domain"
	"timer-powerup/internal/ports"
)

// timestampLayout matches JavaScript's Date.toISOString in UTC.
const timestampLayout = "2006-01-02T15:04:05.000Z07:00"

// User-facing outcome messages.
const (
	MsgTimerStarted      = "Timer started successfully!"
	MsgTimerStopped      = "Timer stopped successfully!"
	MsgChildCardsCreated = "Child cards created successfully!"

	MsgStartFailed   = "Failed to start timer. Please try again."
	MsgStopFailed    = "Unable to stop timer. Please check that your timer is running and your Harvest project is properly configured."
	MsgConvertFailed = "Failed to create cards. Please try again."
)

// ActionContext is the card, user, board and list snapshot sent with every action.
type ActionContext struct {
	Card  domain.Card      `json:"card"`
	User  domain.BoardUser `json:"user"`
	Board domain.Board     `json:"board"`
	List  domain.List      `json:"list"`
}

type StartTimerRequest struct {
	ActionContext
	Category  string `json:"category"`
	ProjectID string `json:"projectId,omitempty"`
}

type StopTimerRequest struct {
	ActionContext
}

type ConvertChecklistsRequest struct {
	ActionContext
	ChecklistIDs []string `json:"checklistIds"`
}

// ActionResult describes an accepted gateway call.
type ActionResult struct {
	Message   string `json:"message"`
	RequestID string `json:"requestId"`
	Attempts  int    `json:"attempts"`
}

// TimerActions sends start, stop and checklist-conversion requests to the
// automation gateway.
type TimerActions struct {
	Log      *slog.Logger
	Gateway  ports.Gateway
	Users    ports.UserResolver
	Projects ports.ProjectSource
	Cards    cardident.Normalizer
	// TrackingConfigured reports whether the tracking credentials are set;
	// when they are, starting a timer requires a resolvable user.
	TrackingConfigured func() bool
	Now                func() time.Time
}

// StartTimer validates the request and posts a start-timer envelope.
func (uc *TimerActions) StartTimer(ctx context.Context, req StartTimerRequest) (ActionResult, error) {
	category := strings.TrimSpace(req.Category)
	if category == "" {
		return ActionResult{}, goerr.Wrap(ErrCategoryRequired, "cannot start timer", goerr.V("card", req.Card.ID))
	}

	env := uc.envelope(req.ActionContext)
	env.Category = category

	trackingUserID, found := uc.resolve(ctx, req.User)
	if uc.TrackingConfigured != nil && uc.TrackingConfigured() && !found {
		return ActionResult{}, goerr.Wrap(ErrUserNotMapped, "cannot start timer",
			goerr.V("username", req.User.Username),
			goerr.V("user_id", req.User.ID),
		)
	}
	env.User.TrackingUserID = trackingUserID

	if id := strings.TrimSpace(req.ProjectID); id != "" {
		project, err := uc.lookupProject(ctx, id)
		if err != nil {
			return ActionResult{}, err
		}
		env.Project = &project
	}

	uc.Log.Info("starting timer",
		slog.String("card", req.Card.Name),
		slog.String("category", category),
		slog.String("client", req.Card.ClientLabel()),
		slog.String("effective_name", uc.Cards.Normalize(req.Card).EffectiveName),
	)
	return uc.send(ctx, domain.ActionStartTimer, env, MsgTimerStarted)
}

// StopTimer posts a stop-timer envelope. The tracking user id is attached
// when known but not required.
func (uc *TimerActions) StopTimer(ctx context.Context, req StopTimerRequest) (ActionResult, error) {
	env := uc.envelope(req.ActionContext)
	if id, ok := uc.resolve(ctx, req.User); ok {
		env.User.TrackingUserID = id
	}
	uc.Log.Info("stopping timer", slog.String("card", req.Card.Name))
	return uc.send(ctx, domain.ActionStopTimer, env, MsgTimerStopped)
}

// ConvertChecklists posts the selected checklists of the card for conversion
// into child cards. Checklists keep their order on the card.
func (uc *TimerActions) ConvertChecklists(ctx context.Context, req ConvertChecklistsRequest) (ActionResult, error) {
	if len(req.ChecklistIDs) == 0 {
		return ActionResult{}, goerr.Wrap(ErrNoChecklistsSelected, "cannot convert checklists", goerr.V("card", req.Card.ID))
	}

	var selected []domain.EnvelopeChecklist
	for _, cl := range req.Card.Checklists {
		if !slices.Contains(req.ChecklistIDs, cl.ID) {
			continue
		}
		items := cl.CheckItems
		if items == nil {
			items = []domain.CheckItem{}
		}
		selected = append(selected, domain.EnvelopeChecklist{ID: cl.ID, Name: cl.Name, CheckItems: items})
	}
	if len(selected) == 0 {
		return ActionResult{}, goerr.Wrap(ErrUnknownChecklist, "cannot convert checklists",
			goerr.V("card", req.Card.ID),
			goerr.V("checklist_ids", req.ChecklistIDs),
		)
	}

	env := uc.envelope(req.ActionContext)
	env.Checklists = selected
	uc.Log.Info("converting checklists",
		slog.String("card", req.Card.Name),
		slog.Int("checklists", len(selected)),
	)
	return uc.send(ctx, domain.ActionCreateChildCards, env, MsgChildCardsCreated)
}

func (uc *TimerActions) send(ctx context.Context, action domain.WebhookAction, env domain.Envelope, okMsg string) (ActionResult, error) {
	res := uc.Gateway.Send(ctx, action, env)
	if !res.Delivered() {
		return ActionResult{}, goerr.Wrap(ErrDeliveryFailed, "gateway did not accept action",
			goerr.V("action", action),
			goerr.V("attempts", res.Attempts),
			goerr.V("request_id", res.RequestID),
			goerr.V("cause", errString(res.Err)),
		)
	}
	return ActionResult{Message: okMsg, RequestID: res.RequestID, Attempts: res.Attempts}, nil
}

func (uc *TimerActions) lookupProject(ctx context.Context, id string) (domain.TrackingProject, error) {
	if uc.Projects == nil {
		return domain.TrackingProject{ID: id}, nil
	}
	projects, err := uc.Projects.Get(ctx)
	if err != nil || len(projects) == 0 {
		// Directory unavailable; the gateway resolves the id itself.
		uc.Log.Warn("project directory unavailable, sending project id only", slog.String("project_id", id))
		return domain.TrackingProject{ID: id}, nil
	}
	for _, p := range projects {
		if p.ID == id {
			return p, nil
		}
	}
	return domain.TrackingProject{}, goerr.Wrap(ErrUnknownProject, "cannot start timer", goerr.V("project_id", id))
}

func (uc *TimerActions) resolve(ctx context.Context, user domain.BoardUser) (string, bool) {
	if uc.Users == nil {
		return "", false
	}
	return uc.Users.Resolve(ctx, user)
}

func (uc *TimerActions) envelope(ac ActionContext) domain.Envelope {
	now := time.Now
	if uc.Now != nil {
		now = uc.Now
	}
	return domain.Envelope{
		Card: envelopeCard(ac.Card),
		User: domain.EnvelopeUser{
			ID:        ac.User.ID,
			FullName:  ac.User.FullName,
			Username:  ac.User.Username,
			AvatarURL: ac.User.AvatarURL,
			Initials:  ac.User.Initials,
		},
		Timestamp: now().UTC().Format(timestampLayout),
		BoardName: ac.Board.Name,
		ListName:  ac.List.Name,
	}
}

// envelopeCard drops checklists, which travel separately, and replaces nil
// collections with empty ones so the gateway always sees arrays.
func envelopeCard(c domain.Card) domain.Card {
	c.Checklists = nil
	if c.Labels == nil {
		c.Labels = []domain.Label{}
	}
	if c.Members == nil {
		c.Members = []domain.BoardUser{}
	}
	if c.Attachments == nil {
		c.Attachments = []domain.Attachment{}
	}
	if c.CustomFieldItems == nil {
		c.CustomFieldItems = []json.RawMessage{}
	}
	return c
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}

// FailureMessage is the message shown when action could not be delivered.
func FailureMessage(action domain.WebhookAction) string {
	switch action {
	case domain.ActionStartTimer:
		return MsgStartFailed
	case domain.ActionStopTimer:
		return MsgStopFailed
	case domain.ActionCreateChildCards:
		return MsgConvertFailed
	}
	return "Request failed. Please try again."
}
