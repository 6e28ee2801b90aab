package usecase_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"

	"timer-powerup/internal/domain"
)

var discard = slog.New(slog.NewTextHandler(io.Discard, nil))

type fakeTracking struct {
	configured bool
	timers     []domain.ActiveTimerRecord
	err        error

	mu      sync.Mutex
	calls   int
	userIDs []string
}

func (f *fakeTracking) Configured() bool { return f.configured }

func (f *fakeTracking) ListRunningTimers(ctx context.Context, userID string) ([]domain.ActiveTimerRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.userIDs = append(f.userIDs, userID)
	return f.timers, f.err
}

func (f *fakeTracking) ListUsers(ctx context.Context) ([]domain.TrackingAccount, error) {
	return nil, nil
}

func (f *fakeTracking) ListProjects(ctx context.Context) ([]domain.TrackingProject, error) {
	return nil, nil
}

func (f *fakeTracking) ListTasks(ctx context.Context) ([]domain.TrackingTask, error) {
	return nil, nil
}

// fakeResolver resolves by username.
type fakeResolver map[string]string

func (r fakeResolver) Resolve(ctx context.Context, user domain.BoardUser) (string, bool) {
	id, ok := r[user.Username]
	return id, ok
}

type sentEnvelope struct {
	action domain.WebhookAction
	env    domain.Envelope
}

type fakeGateway struct {
	fail bool
	sent []sentEnvelope
}

func (g *fakeGateway) Send(ctx context.Context, action domain.WebhookAction, env domain.Envelope) domain.DeliveryResult {
	g.sent = append(g.sent, sentEnvelope{action: action, env: env})
	if g.fail {
		return domain.DeliveryResult{Attempts: 3, RequestID: "req-1", Err: errors.New("503")}
	}
	return domain.DeliveryResult{Outcome: domain.DeliveryDelivered, Attempts: 1, StatusCode: 200, RequestID: "req-1"}
}

type fakeProjects struct {
	list []domain.TrackingProject
	err  error
}

func (p fakeProjects) Get(ctx context.Context) ([]domain.TrackingProject, error) {
	return p.list, p.err
}

type fakeTasks struct {
	list []domain.TrackingTask
	err  error
}

func (p fakeTasks) Get(ctx context.Context) ([]domain.TrackingTask, error) {
	return p.list, p.err
}

func ref(name string) *domain.NamedRef { return &domain.NamedRef{Name: name} }

func runningTimer(client, project string) domain.ActiveTimerRecord {
	return domain.ActiveTimerRecord{Client: ref(client), Project: ref(project), Task: ref("Design")}
}
