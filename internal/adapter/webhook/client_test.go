package webhook_test

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/m-mizutani/gt"

	"timer-powerup/internal/adapter/webhook"
	"timer-powerup/internal/domain"
)

var discard = slog.New(slog.NewTextHandler(io.Discard, nil))

func newClient(url string, retries int) *webhook.Client {
	return webhook.NewClient(webhook.Options{
		URLFor:        func(action string) string { return url + "/staging/" + action },
		APIKey:        "key-1",
		Timeout:       time.Second,
		RetryAttempts: retries,
		RetryDelay:    time.Millisecond,
	}, discard)
}

func TestSend_Delivered(t *testing.T) {
	var (
		mu     sync.Mutex
		path   string
		header http.Header
		body   domain.Envelope
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		defer mu.Unlock()
		path = r.URL.Path
		header = r.Header.Clone()
		_ = json.NewDecoder(r.Body).Decode(&body)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	env := domain.Envelope{Card: domain.Card{ID: "c1", Name: "Website Redesign"}, Category: "Design", Timestamp: "2025-10-27T15:18:15.097Z"}
	res := newClient(srv.URL, 2).Send(context.Background(), domain.ActionStartTimer, env)

	gt.Bool(t, res.Delivered()).True()
	gt.Value(t, res.Attempts).Equal(1)
	gt.Value(t, res.StatusCode).Equal(200)
	gt.NoError(t, res.Err)

	mu.Lock()
	defer mu.Unlock()
	gt.Value(t, path).Equal("/staging/start-timer")
	gt.Value(t, header.Get("X-API-Key")).Equal("key-1")
	gt.Value(t, header.Get("Content-Type")).Equal("application/json")
	gt.Value(t, header.Get("X-Request-Id")).Equal(res.RequestID)
	gt.Value(t, body.Category).Equal("Design")
	gt.Value(t, body.Card.Name).Equal("Website Redesign")
}

func TestSend_RetriesThenSucceeds(t *testing.T) {
	var calls atomic.Int32
	var mu sync.Mutex
	ids := map[string]bool{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		ids[r.Header.Get("X-Request-Id")] = true
		mu.Unlock()
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusAccepted)
	}))
	defer srv.Close()

	res := newClient(srv.URL, 2).Send(context.Background(), domain.ActionStopTimer, domain.Envelope{})
	gt.Bool(t, res.Delivered()).True()
	gt.Value(t, res.Attempts).Equal(3)
	gt.Value(t, res.StatusCode).Equal(http.StatusAccepted)

	// Every attempt of one call carries the same request id.
	mu.Lock()
	defer mu.Unlock()
	gt.Number(t, len(ids)).Equal(1)
}

func TestSend_Exhausted(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte("workflow error"))
	}))
	defer srv.Close()

	res := newClient(srv.URL, 2).Send(context.Background(), domain.ActionCreateChildCards, domain.Envelope{})
	gt.Bool(t, res.Delivered()).False()
	gt.Value(t, res.Outcome).Equal(domain.DeliveryExhausted)
	gt.Value(t, res.Attempts).Equal(3)
	gt.Number(t, calls.Load()).Equal(3)
	gt.Value(t, res.StatusCode).Equal(http.StatusInternalServerError)
	gt.Value(t, res.Err).NotNil()
}

func TestSend_NoRetries(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	res := newClient(srv.URL, 0).Send(context.Background(), domain.ActionStartTimer, domain.Envelope{})
	gt.Bool(t, res.Delivered()).False()
	gt.Number(t, calls.Load()).Equal(1)
}

func TestSend_TimeoutIsRetried(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			select {
			case <-r.Context().Done():
			case <-time.After(time.Second):
			}
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	c := webhook.NewClient(webhook.Options{
		URLFor:        func(string) string { return srv.URL },
		Timeout:       50 * time.Millisecond,
		RetryAttempts: 1,
		RetryDelay:    time.Millisecond,
	}, discard)
	res := c.Send(context.Background(), domain.ActionStartTimer, domain.Envelope{})
	gt.Bool(t, res.Delivered()).True()
	gt.Value(t, res.Attempts).Equal(2)
}

func TestSend_NotConfigured(t *testing.T) {
	c := webhook.NewClient(webhook.Options{URLFor: func(string) string { return "" }}, discard)
	res := c.Send(context.Background(), domain.ActionStartTimer, domain.Envelope{})
	gt.Bool(t, res.Delivered()).False()
	gt.Value(t, res.Attempts).Equal(0)
	gt.Error(t, res.Err).Is(webhook.ErrNotConfigured)
}
