package usecase

import (
	"context"
	"log/slog"
	"slices"
	"strings"

	"timer-powerup/internal/cardident"
	"timer-powerup/internal/domain"
	"timer-powerup/internal/ports"
)

// CategoryOptions feeds the category picker of the start-timer popup.
type CategoryOptions struct {
	Categories []string `json:"categories"`
	Default    string   `json:"default,omitempty"`
}

// ProjectOptions feeds the project picker of the start-timer popup.
type ProjectOptions struct {
	Projects          []domain.TrackingProject `json:"projects"`
	SelectedProjectID string                   `json:"selectedProjectId,omitempty"`
}

// Popup serves the data shown in the start-timer popup. Directory failures
// degrade to empty lists.
type Popup struct {
	Log              *slog.Logger
	Projects         ports.ProjectSource
	Tasks            ports.TaskSource
	Cards            cardident.Normalizer
	Categories       []string
	CategoryDefaults map[string]string
}

// CategoryOptions returns the categories and the user's default, looked up
// by board user id first and then by username.
func (p *Popup) CategoryOptions(user domain.BoardUser) CategoryOptions {
	opts := CategoryOptions{Categories: slices.Clone(p.Categories)}
	if opts.Categories == nil {
		opts.Categories = []string{}
	}
	for _, key := range []string{user.ID, user.Username} {
		if key == "" {
			continue
		}
		def, ok := p.CategoryDefaults[key]
		if ok && slices.Contains(opts.Categories, def) {
			opts.Default = def
			return opts
		}
	}
	return opts
}

// ProjectOptions lists the active projects of the card's client and
// preselects the project named like the card.
func (p *Popup) ProjectOptions(ctx context.Context, clientLabel string, card domain.Card) ProjectOptions {
	opts := ProjectOptions{Projects: []domain.TrackingProject{}}
	if p.Projects == nil {
		return opts
	}
	projects, err := p.Projects.Get(ctx)
	if err != nil {
		p.Log.Warn("project directory unavailable", slog.String("error", err.Error()))
		return opts
	}

	name := p.Cards.Normalize(card).EffectiveName
	for _, proj := range projects {
		if clientLabel != "" && !strings.EqualFold(proj.Client.Name, clientLabel) {
			continue
		}
		opts.Projects = append(opts.Projects, proj)
		if opts.SelectedProjectID == "" && name != "" && strings.EqualFold(proj.Name, name) {
			opts.SelectedProjectID = proj.ID
		}
	}
	return opts
}

// TaskOptions returns the active tasks.
func (p *Popup) TaskOptions(ctx context.Context) []domain.TrackingTask {
	if p.Tasks == nil {
		return []domain.TrackingTask{}
	}
	tasks, err := p.Tasks.Get(ctx)
	if err != nil {
		p.Log.Warn("task directory unavailable", slog.String("error", err.Error()))
		return []domain.TrackingTask{}
	}
	return tasks
}
