package app_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/m-mizutani/gt"

	"timer-powerup/internal/app"
	"timer-powerup/internal/config"
	"timer-powerup/internal/domain"
	"timer-powerup/internal/usecase"
)

var discard = slog.New(slog.NewTextHandler(io.Discard, nil))

type fakeTracking struct {
	timers []domain.ActiveTimerRecord
}

func (f *fakeTracking) Configured() bool { return true }

func (f *fakeTracking) ListRunningTimers(ctx context.Context, userID string) ([]domain.ActiveTimerRecord, error) {
	return f.timers, nil
}

func (f *fakeTracking) ListUsers(ctx context.Context) ([]domain.TrackingAccount, error) {
	return []domain.TrackingAccount{{ID: "42", Email: "a@x.com"}}, nil
}

func (f *fakeTracking) ListProjects(ctx context.Context) ([]domain.TrackingProject, error) {
	return []domain.TrackingProject{
		{ID: "10", Name: "Website Redesign", Client: domain.NamedRef{ID: "5", Name: "Acme"}},
		{ID: "11", Name: "Launch", Client: domain.NamedRef{ID: "6", Name: "Globex"}},
	}, nil
}

func (f *fakeTracking) ListTasks(ctx context.Context) ([]domain.TrackingTask, error) {
	return []domain.TrackingTask{{ID: "7", Name: "Design"}}, nil
}

type fakeGateway struct {
	fail bool
	sent []domain.WebhookAction
}

func (g *fakeGateway) Send(ctx context.Context, action domain.WebhookAction, env domain.Envelope) domain.DeliveryResult {
	g.sent = append(g.sent, action)
	if g.fail {
		return domain.DeliveryResult{Attempts: 3, Err: errors.New("503")}
	}
	return domain.DeliveryResult{Outcome: domain.DeliveryDelivered, Attempts: 1, RequestID: "r1"}
}

func newHandler(t *testing.T, gw *fakeGateway) http.Handler {
	t.Helper()
	var cfg config.Config
	cfg.Categories = []string{"Design", "PR"}
	cfg.Matching.CardLinkPattern = "trello.com/c/"
	cfg.UserMappings.ByUsername = map[string]string{"alice": "42"}

	tracking := &fakeTracking{timers: []domain.ActiveTimerRecord{{
		Client:  &domain.NamedRef{Name: "Acme"},
		Project: &domain.NamedRef{Name: "Website Redesign"},
	}}}
	return app.NewWithDeps(discard, cfg, app.Deps{Tracking: tracking, Gateway: gw}).Handler()
}

func do(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	gt.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out)).Required()
	return out
}

const runningCard = `{"card":{"id":"c1","name":"Website Redesign","labels":[{"name":"acme"}]},"user":{"id":"U1","username":"alice"}}`

func TestHealthz(t *testing.T) {
	rec := do(t, newHandler(t, &fakeGateway{}), http.MethodGet, "/healthz", "")
	gt.Value(t, rec.Code).Equal(http.StatusOK)
	gt.Value(t, rec.Body.String()).Equal("ok")
}

func TestCardBadges(t *testing.T) {
	h := newHandler(t, &fakeGateway{})

	rec := do(t, h, http.MethodPost, "/api/card-badges", runningCard)
	gt.Value(t, rec.Code).Equal(http.StatusOK)
	badges := decodeBody(t, rec)["badges"].([]any)
	gt.Array(t, badges).Length(1).Required()
	gt.Value(t, badges[0].(map[string]any)["text"]).Equal("⏱️ Timer Running")

	rec = do(t, h, http.MethodPost, "/api/card-badges", `{"card":{"name":"Other","labels":[{"name":"Acme"}]}}`)
	gt.Array(t, decodeBody(t, rec)["badges"].([]any)).Length(0)
}

func TestTimerStatusAndButtons(t *testing.T) {
	h := newHandler(t, &fakeGateway{})

	rec := do(t, h, http.MethodPost, "/api/timer-status", runningCard)
	gt.Value(t, decodeBody(t, rec)["status"]).Equal("RUNNING_FOR_USER")

	rec = do(t, h, http.MethodPost, "/api/card-buttons", runningCard)
	buttons := decodeBody(t, rec)["buttons"].([]any)
	gt.Array(t, buttons).Length(3).Required()
	gt.Value(t, buttons[0].(map[string]any)["enabled"]).Equal(false)
}

func TestStartTimer_StatusMapping(t *testing.T) {
	const ctx = `"card":{"id":"c1","name":"Website Redesign"},"board":{"name":"B"},"list":{"name":"L"}`

	t.Run("ok", func(t *testing.T) {
		gw := &fakeGateway{}
		rec := do(t, newHandler(t, gw), http.MethodPost, "/api/timers/start", `{`+ctx+`,"user":{"username":"alice"},"category":"Design"}`)
		gt.Value(t, rec.Code).Equal(http.StatusOK)
		gt.Value(t, decodeBody(t, rec)["message"]).Equal(usecase.MsgTimerStarted)
		gt.Value(t, gw.sent).Equal([]domain.WebhookAction{domain.ActionStartTimer})
	})

	t.Run("missing category", func(t *testing.T) {
		rec := do(t, newHandler(t, &fakeGateway{}), http.MethodPost, "/api/timers/start", `{`+ctx+`,"user":{"username":"alice"}}`)
		gt.Value(t, rec.Code).Equal(http.StatusBadRequest)
	})

	t.Run("unmapped user", func(t *testing.T) {
		rec := do(t, newHandler(t, &fakeGateway{}), http.MethodPost, "/api/timers/start", `{`+ctx+`,"user":{"username":"mallory"},"category":"PR"}`)
		gt.Value(t, rec.Code).Equal(http.StatusUnprocessableEntity)
		gt.Value(t, decodeBody(t, rec)["error"]).Equal(usecase.UserNotMappedMessage)
	})

	t.Run("delivery failure", func(t *testing.T) {
		rec := do(t, newHandler(t, &fakeGateway{fail: true}), http.MethodPost, "/api/timers/start", `{`+ctx+`,"user":{"username":"alice"},"category":"PR"}`)
		gt.Value(t, rec.Code).Equal(http.StatusBadGateway)
		gt.Value(t, decodeBody(t, rec)["error"]).Equal(usecase.MsgStartFailed)
	})

	t.Run("malformed body", func(t *testing.T) {
		rec := do(t, newHandler(t, &fakeGateway{}), http.MethodPost, "/api/timers/start", `{`)
		gt.Value(t, rec.Code).Equal(http.StatusBadRequest)
	})
}

func TestStopAndConvert(t *testing.T) {
	gw := &fakeGateway{}
	h := newHandler(t, gw)

	rec := do(t, h, http.MethodPost, "/api/timers/stop", `{"card":{"id":"c1","name":"X"},"user":{"username":"bob"}}`)
	gt.Value(t, rec.Code).Equal(http.StatusOK)

	rec = do(t, h, http.MethodPost, "/api/checklists/convert",
		`{"card":{"id":"c1","name":"X","checklists":[{"id":"cl1","name":"Todo","checkItems":[]}]},"checklistIds":["cl1"]}`)
	gt.Value(t, rec.Code).Equal(http.StatusOK)

	rec = do(t, h, http.MethodPost, "/api/checklists/convert", `{"card":{"id":"c1","name":"X"},"checklistIds":[]}`)
	gt.Value(t, rec.Code).Equal(http.StatusBadRequest)

	gt.Value(t, gw.sent).Equal([]domain.WebhookAction{domain.ActionStopTimer, domain.ActionCreateChildCards})
}

func TestPopupEndpoints(t *testing.T) {
	h := newHandler(t, &fakeGateway{})

	rec := do(t, h, http.MethodGet, "/api/categories?username=alice", "")
	gt.Value(t, decodeBody(t, rec)["categories"]).Equal([]any{"Design", "PR"})

	rec = do(t, h, http.MethodPost, "/api/projects", `{"card":{"name":"website redesign","labels":[{"name":"Acme"}]}}`)
	body := decodeBody(t, rec)
	gt.Array(t, body["projects"].([]any)).Length(1)
	gt.Value(t, body["selectedProjectId"]).Equal("10")

	rec = do(t, h, http.MethodGet, "/api/tasks", "")
	gt.Array(t, decodeBody(t, rec)["tasks"].([]any)).Length(1)

	rec = do(t, h, http.MethodGet, "/api/timers/current?username=alice", "")
	timer := decodeBody(t, rec)["timer"].(map[string]any)
	gt.Value(t, timer["project"].(map[string]any)["name"]).Equal("Website Redesign")

	rec = do(t, h, http.MethodPost, "/api/directory/refresh", "")
	body = decodeBody(t, rec)
	gt.Value(t, body["status"]).Equal("ok")
	gt.Value(t, body["projects"]).Equal(float64(2))
}
