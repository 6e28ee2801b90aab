package harvest

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/m-mizutani/goerr/v2"

	"timer-powerup/internal/domain"
)

// pageSize is large enough that every list fits in one page.
const pageSize = "2000"

// Client implements ports.TrackingClient using the Harvest API v2.
type Client struct {
	baseURL     string
	accessToken string
	accountID   string
	userAgent   string
	http        *http.Client
	log         *slog.Logger
}

// Options configures a Client.
type Options struct {
	BaseURL     string // default: https://api.harvestapp.com/v2
	AccessToken string
	AccountID   string
	UserAgent   string
	HTTPClient  *http.Client
}

func NewClient(opts Options, log *slog.Logger) *Client {
	if opts.BaseURL == "" {
		opts.BaseURL = "https://api.harvestapp.com/v2"
	}
	if opts.HTTPClient == nil {
		// Per-call deadlines come from the caller's context.
		opts.HTTPClient = &http.Client{Timeout: 30 * time.Second}
	}
	return &Client{
		baseURL:     strings.TrimRight(opts.BaseURL, "/"),
		accessToken: opts.AccessToken,
		accountID:   opts.AccountID,
		userAgent:   opts.UserAgent,
		http:        opts.HTTPClient,
		log:         log,
	}
}

func (c *Client) Configured() bool {
	return c.accessToken != "" && c.accountID != ""
}

// ListRunningTimers fetches running entries.
// Harvest v2: GET /time_entries?is_running=true[&user_id=...]
func (c *Client) ListRunningTimers(ctx context.Context, userID string) ([]domain.ActiveTimerRecord, error) {
	q := url.Values{}
	q.Set("is_running", "true")
	if userID != "" {
		q.Set("user_id", userID)
	}
	var resp struct {
		TimeEntries []rawTimeEntry `json:"time_entries"`
	}
	if err := c.get(ctx, "/time_entries", q, &resp); err != nil {
		return nil, err
	}

	out := make([]domain.ActiveTimerRecord, 0, len(resp.TimeEntries))
	for _, e := range resp.TimeEntries {
		out = append(out, domain.ActiveTimerRecord{
			Project: e.Project.toDomain(),
			Client:  e.Client.toDomain(),
			Task:    e.Task.toDomain(),
			User:    e.User.toDomain(),
			Notes:   e.Notes,
		})
	}
	return out, nil
}

// ListUsers fetches active users.
func (c *Client) ListUsers(ctx context.Context) ([]domain.TrackingAccount, error) {
	var resp struct {
		Users []rawUser `json:"users"`
	}
	if err := c.get(ctx, "/users", activeQuery(), &resp); err != nil {
		return nil, err
	}
	out := make([]domain.TrackingAccount, 0, len(resp.Users))
	for _, u := range resp.Users {
		out = append(out, domain.TrackingAccount{
			ID:        string(u.ID),
			FirstName: u.FirstName,
			LastName:  u.LastName,
			Email:     u.Email,
		})
	}
	return out, nil
}

// ListProjects fetches active projects with their clients.
func (c *Client) ListProjects(ctx context.Context) ([]domain.TrackingProject, error) {
	var resp struct {
		Projects []rawProject `json:"projects"`
	}
	if err := c.get(ctx, "/projects", activeQuery(), &resp); err != nil {
		return nil, err
	}
	out := make([]domain.TrackingProject, 0, len(resp.Projects))
	for _, p := range resp.Projects {
		proj := domain.TrackingProject{
			ID:   string(p.ID),
			Name: p.Name,
		}
		if p.Code != nil {
			proj.Code = *p.Code
		}
		if ref := p.Client.toDomain(); ref != nil {
			proj.Client = *ref
		}
		out = append(out, proj)
	}
	return out, nil
}

// ListTasks fetches active tasks.
func (c *Client) ListTasks(ctx context.Context) ([]domain.TrackingTask, error) {
	var resp struct {
		Tasks []rawRef `json:"tasks"`
	}
	if err := c.get(ctx, "/tasks", activeQuery(), &resp); err != nil {
		return nil, err
	}
	out := make([]domain.TrackingTask, 0, len(resp.Tasks))
	for _, t := range resp.Tasks {
		out = append(out, domain.TrackingTask{ID: string(t.ID), Name: t.Name})
	}
	return out, nil
}

func activeQuery() url.Values {
	q := url.Values{}
	q.Set("is_active", "true")
	q.Set("per_page", pageSize)
	return q
}

func (c *Client) get(ctx context.Context, path string, q url.Values, dst any) error {
	if !c.Configured() {
		return goerr.New("harvest: missing access token or account id")
	}
	u, err := url.Parse(c.baseURL + path)
	if err != nil {
		return goerr.Wrap(err, "harvest: invalid base url", goerr.V("base_url", c.baseURL))
	}
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+c.accessToken)
	req.Header.Set("Harvest-Account-Id", c.accountID)
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return goerr.Wrap(err, "harvest: request failed", goerr.V("path", path))
	}
	defer resp.Body.Close()
	c.log.Debug("harvest request",
		slog.String("path", path),
		slog.Int("status", resp.StatusCode),
		slog.Duration("dur", time.Since(start)),
	)
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return goerr.New("harvest: unexpected status",
			goerr.V("path", path),
			goerr.V("status", resp.StatusCode),
			goerr.V("body", string(body)),
		)
	}
	if err := json.NewDecoder(resp.Body).Decode(dst); err != nil {
		return goerr.Wrap(err, "harvest: invalid response body", goerr.V("path", path))
	}
	return nil
}

// flexID accepts both numeric and string ids.
type flexID string

func (id *flexID) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if bytes.Equal(b, []byte("null")) {
		*id = ""
		return nil
	}
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*id = flexID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return err
	}
	*id = flexID(n.String())
	return nil
}

// rawRef mirrors the {id, name} objects embedded in Harvest responses.
type rawRef struct {
	ID   flexID `json:"id"`
	Name string `json:"name"`
}

func (r *rawRef) toDomain() *domain.NamedRef {
	if r == nil {
		return nil
	}
	return &domain.NamedRef{ID: string(r.ID), Name: r.Name}
}

type rawTimeEntry struct {
	Project *rawRef `json:"project"`
	Client  *rawRef `json:"client"`
	Task    *rawRef `json:"task"`
	User    *rawRef `json:"user"`
	Notes   string  `json:"notes"`
}

type rawUser struct {
	ID        flexID `json:"id"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Email     string `json:"email"`
}

type rawProject struct {
	ID     flexID  `json:"id"`
	Name   string  `json:"name"`
	Code   *string `json:"code"`
	Client *rawRef `json:"client"`
}
