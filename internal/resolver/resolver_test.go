package resolver_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/m-mizutani/gt"

	"timer-powerup/internal/domain"
	"timer-powerup/internal/resolver"
)

var discard = slog.New(slog.NewTextHandler(io.Discard, nil))

type accounts struct {
	list  []domain.TrackingAccount
	err   error
	calls int
}

func (a *accounts) Get(ctx context.Context) ([]domain.TrackingAccount, error) {
	a.calls++
	return a.list, a.err
}

type failingMappings struct{}

func (failingMappings) ByUsername(context.Context, string) (string, bool, error) {
	return "", false, errors.New("db down")
}

func (failingMappings) ByUserID(context.Context, string) (string, bool, error) {
	return "", false, errors.New("db down")
}

func newResolver(acc *accounts, byUsername, byUserID map[string]string) *resolver.Resolver {
	return resolver.New(discard,
		resolver.EmailStrategy{Accounts: acc, Log: discard},
		resolver.MappingStrategy{
			Label:    "static",
			Mappings: resolver.StaticMappings{ByUsernameMap: byUsername, ByUserIDMap: byUserID},
			Log:      discard,
		},
	)
}

func TestResolve_EmailMatchIsCaseInsensitive(t *testing.T) {
	acc := &accounts{list: []domain.TrackingAccount{{ID: "77", Email: "A@X.com"}}}
	r := newResolver(acc, nil, nil)

	id, ok := r.Resolve(context.Background(), domain.BoardUser{ID: "U1", Email: "a@x.com"})
	gt.Bool(t, ok).True()
	gt.Value(t, id).Equal("77")
}

func TestResolve_EmailTakesPrecedenceOverMapping(t *testing.T) {
	acc := &accounts{list: []domain.TrackingAccount{{ID: "77", Email: "a@x.com"}}}
	r := newResolver(acc, map[string]string{"alice": "99"}, nil)

	res := r.ResolveDetailed(context.Background(), domain.BoardUser{Username: "alice", Email: "a@x.com"})
	gt.Bool(t, res.Found).True()
	gt.Value(t, res.ID).Equal("77")
	gt.Value(t, res.Strategy).Equal("email")
}

func TestResolve_UsernameBeforeUserID(t *testing.T) {
	acc := &accounts{}
	r := newResolver(acc, map[string]string{"alice": "1"}, map[string]string{"U1": "2"})

	res := r.ResolveDetailed(context.Background(), domain.BoardUser{ID: "U1", Username: "alice"})
	gt.Value(t, res.ID).Equal("1")
	gt.Value(t, res.Strategy).Equal("static:username")

	res = r.ResolveDetailed(context.Background(), domain.BoardUser{ID: "U1", Username: "bob"})
	gt.Value(t, res.ID).Equal("2")
	gt.Value(t, res.Strategy).Equal("static:user_id")
}

func TestResolve_NoEmailSkipsDirectory(t *testing.T) {
	acc := &accounts{list: []domain.TrackingAccount{{ID: "77", Email: "a@x.com"}}}
	r := newResolver(acc, nil, nil)

	_, ok := r.Resolve(context.Background(), domain.BoardUser{ID: "U1", Username: "alice"})
	gt.Bool(t, ok).False()
	gt.Number(t, acc.calls).Equal(0)
}

func TestResolve_EmptyDirectoryFallsThroughToMapping(t *testing.T) {
	acc := &accounts{list: []domain.TrackingAccount{}}
	r := newResolver(acc, map[string]string{"alice": "5"}, nil)

	id, ok := r.Resolve(context.Background(), domain.BoardUser{Username: "alice", Email: "a@x.com"})
	gt.Bool(t, ok).True()
	gt.Value(t, id).Equal("5")
}

func TestResolve_DirectoryErrorFallsThroughToMapping(t *testing.T) {
	acc := &accounts{err: errors.New("timeout")}
	r := newResolver(acc, nil, map[string]string{"U1": "8"})

	id, ok := r.Resolve(context.Background(), domain.BoardUser{ID: "U1", Email: "a@x.com"})
	gt.Bool(t, ok).True()
	gt.Value(t, id).Equal("8")
}

func TestResolve_NotFound(t *testing.T) {
	acc := &accounts{list: []domain.TrackingAccount{{ID: "77", Email: "b@x.com"}}}
	r := newResolver(acc, map[string]string{"alice": ""}, nil)

	id, ok := r.Resolve(context.Background(), domain.BoardUser{ID: "U1", Username: "alice", Email: "a@x.com"})
	gt.Bool(t, ok).False()
	gt.Value(t, id).Equal("")
}

func TestResolve_MappingErrorsAreNotFatal(t *testing.T) {
	r := resolver.New(discard,
		resolver.MappingStrategy{Label: "mysql", Mappings: failingMappings{}, Log: discard},
		resolver.MappingStrategy{
			Label:    "static",
			Mappings: resolver.StaticMappings{ByUserIDMap: map[string]string{"U1": "3"}},
			Log:      discard,
		},
	)
	res := r.ResolveDetailed(context.Background(), domain.BoardUser{ID: "U1", Username: "alice"})
	gt.Bool(t, res.Found).True()
	gt.Value(t, res.Strategy).Equal("static:user_id")
}
