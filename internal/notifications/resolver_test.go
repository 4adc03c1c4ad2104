package notifications

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/allopieces/push-dispatch/internal/logger"
)

// fakeTokenStore implements TokenStore over in-memory fixtures.
type fakeTokenStore struct {
	userTokens   map[string][]string
	deviceTokens map[string][]string
	recipient    map[string]string

	userErr      error
	deviceErr    error
	recipientErr error

	userCalls      int
	deviceCalls    int
	recipientCalls int
}

func (f *fakeTokenStore) TokensForUsers(ctx context.Context, userIDs []string) ([]string, error) {
	f.userCalls++
	if f.userErr != nil {
		return nil, f.userErr
	}
	var tokens []string
	for _, id := range userIDs {
		tokens = append(tokens, f.userTokens[id]...)
	}
	return tokens, nil
}

func (f *fakeTokenStore) TokensForDevices(ctx context.Context, deviceIDs []string) ([]string, error) {
	f.deviceCalls++
	if f.deviceErr != nil {
		return nil, f.deviceErr
	}
	var tokens []string
	for _, id := range deviceIDs {
		tokens = append(tokens, f.deviceTokens[id]...)
	}
	return tokens, nil
}

func (f *fakeTokenStore) TokenForRecipient(ctx context.Context, recipientID string) (string, bool, error) {
	f.recipientCalls++
	if f.recipientErr != nil {
		return "", false, f.recipientErr
	}
	token, ok := f.recipient[recipientID]
	return token, ok, nil
}

func newTestResolver(store TokenStore) *Resolver {
	log := logger.New(logger.Config{})
	return NewResolver(store, time.Second, log)
}

func TestResolveUnionsAllIdentifierKinds(t *testing.T) {
	store := &fakeTokenStore{
		userTokens: map[string][]string{
			"user-1": {"tok-u1a", "tok-u1b"},
			"user-2": {"tok-u2"},
			"user-3": nil, // registered user without tokens
		},
		deviceTokens: map[string][]string{
			"device-1": {"tok-d1"},
		},
	}

	resolver := newTestResolver(store)

	targets := resolver.Resolve(context.Background(),
		[]string{"tok-raw"},
		[]string{"user-1", "user-2", "user-3"},
		[]string{"device-1", "device-unknown"},
	)

	want := []string{"tok-raw", "tok-u1a", "tok-u1b", "tok-u2", "tok-d1"}
	if len(targets) != len(want) {
		t.Fatalf("expected %d targets, got %d: %v", len(want), len(targets), targets)
	}
	for i, token := range want {
		if targets[i] != token {
			t.Errorf("target[%d]: expected %q, got %q", i, token, targets[i])
		}
	}
}

func TestResolveDeduplicatesAcrossSources(t *testing.T) {
	// The same physical device shows up under its user, its device ID, and
	// as a raw token; it must be targeted once.
	store := &fakeTokenStore{
		userTokens: map[string][]string{
			"user-1": {"tok-shared", "tok-extra"},
		},
		deviceTokens: map[string][]string{
			"device-1": {"tok-shared"},
		},
	}

	resolver := newTestResolver(store)

	targets := resolver.Resolve(context.Background(),
		[]string{"tok-shared"},
		[]string{"user-1"},
		[]string{"device-1"},
	)

	if len(targets) != 2 {
		t.Fatalf("expected 2 deduplicated targets, got %d: %v", len(targets), targets)
	}
	if targets[0] != "tok-shared" || targets[1] != "tok-extra" {
		t.Errorf("unexpected targets: %v", targets)
	}
}

func TestResolveSkipsEmptyBatches(t *testing.T) {
	store := &fakeTokenStore{}
	resolver := newTestResolver(store)

	targets := resolver.Resolve(context.Background(), []string{"tok-raw"}, nil, nil)

	if len(targets) != 1 || targets[0] != "tok-raw" {
		t.Fatalf("expected raw token passthrough, got %v", targets)
	}
	if store.userCalls != 0 || store.deviceCalls != 0 {
		t.Errorf("expected no store calls for empty batches, got user=%d device=%d",
			store.userCalls, store.deviceCalls)
	}
}

func TestResolveDegradesOnStoreFailure(t *testing.T) {
	// A failing user lookup contributes nothing; device resolution and raw
	// tokens still go through.
	store := &fakeTokenStore{
		userErr: errors.New("connection refused"),
		deviceTokens: map[string][]string{
			"device-1": {"tok-d1"},
		},
	}

	resolver := newTestResolver(store)

	targets := resolver.Resolve(context.Background(),
		[]string{"tok-raw"},
		[]string{"user-1"},
		[]string{"device-1"},
	)

	want := []string{"tok-raw", "tok-d1"}
	if len(targets) != len(want) {
		t.Fatalf("expected %d targets, got %d: %v", len(want), len(targets), targets)
	}
	for i, token := range want {
		if targets[i] != token {
			t.Errorf("target[%d]: expected %q, got %q", i, token, targets[i])
		}
	}
}

func TestResolveAllStoresFailing(t *testing.T) {
	store := &fakeTokenStore{
		userErr:   errors.New("store down"),
		deviceErr: errors.New("store down"),
	}

	resolver := newTestResolver(store)

	targets := resolver.Resolve(context.Background(), nil, []string{"user-1"}, []string{"device-1"})
	if len(targets) != 0 {
		t.Fatalf("expected no targets when every lookup fails, got %v", targets)
	}
}

func TestResolveRecipient(t *testing.T) {
	t.Run("registered recipient", func(t *testing.T) {
		store := &fakeTokenStore{recipient: map[string]string{"user-1": "tok-1"}}
		resolver := newTestResolver(store)

		token, ok := resolver.ResolveRecipient(context.Background(), "user-1")
		if !ok || token != "tok-1" {
			t.Errorf("expected (tok-1, true), got (%q, %v)", token, ok)
		}
	})

	t.Run("recipient without token", func(t *testing.T) {
		store := &fakeTokenStore{recipient: map[string]string{}}
		resolver := newTestResolver(store)

		token, ok := resolver.ResolveRecipient(context.Background(), "user-1")
		if ok || token != "" {
			t.Errorf("expected not found, got (%q, %v)", token, ok)
		}
	})

	t.Run("store failure degrades to not found", func(t *testing.T) {
		store := &fakeTokenStore{recipientErr: errors.New("store down")}
		resolver := newTestResolver(store)

		_, ok := resolver.ResolveRecipient(context.Background(), "user-1")
		if ok {
			t.Error("expected not found on store failure")
		}
	})
}
