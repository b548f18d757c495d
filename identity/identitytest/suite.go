// Package identitytest holds the behavioural suite every identity.Store
// backend must pass.
package identitytest

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/MrEthical07/goSocialAuth/identity"
)

// RunStoreSuite runs the suite against stores returned by newStore. Each
// subtest gets a fresh store.
func RunStoreSuite(t *testing.T, newStore func(t *testing.T) identity.Store) {
	t.Helper()
	t.Run("CreateIsUnique", func(t *testing.T) { testCreateIsUnique(t, newStore(t)) })
	t.Run("ConcurrentCreate", func(t *testing.T) { testConcurrentCreate(t, newStore(t)) })
	t.Run("Logins", func(t *testing.T) { testLogins(t, newStore(t)) })
	t.Run("ReplaceClaims", func(t *testing.T) { testReplaceClaims(t, newStore(t)) })
	t.Run("UnknownUser", func(t *testing.T) { testUnknownUser(t, newStore(t)) })
}

func testCreateIsUnique(t *testing.T, s identity.Store) {
	ctx := context.Background()
	u, err := s.Create(ctx, "Ann@Example.com")
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if u.ID == "" || u.Username != "Ann@Example.com" || u.CreatedAt.IsZero() {
		t.Fatalf("unexpected user %#v", u)
	}
	if _, err := s.Create(ctx, "ann@example.com "); !errors.Is(err, identity.ErrAlreadyExists) {
		t.Fatalf("expected ErrAlreadyExists, got %v", err)
	}
	got, err := s.FindByUsername(ctx, "ANN@example.com")
	if err != nil || got.ID != u.ID {
		t.Fatalf("FindByUsername returned %#v, %v", got, err)
	}
}

func testConcurrentCreate(t *testing.T, s identity.Store) {
	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		created int
		other   []error
	)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := s.Create(context.Background(), "race@example.com")
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				created++
			case !errors.Is(err, identity.ErrAlreadyExists):
				other = append(other, err)
			}
		}()
	}
	wg.Wait()
	if created != 1 || len(other) != 0 {
		t.Fatalf("expected exactly one create, got %d (errors %v)", created, other)
	}
}

func testLogins(t *testing.T, s identity.Store) {
	ctx := context.Background()
	a := mustCreate(t, s, "a@example.com")
	b := mustCreate(t, s, "b@example.com")
	login := identity.Login{Provider: "facebook", ProviderKey: "42"}

	if _, err := s.FindByLogin(ctx, login); !errors.Is(err, identity.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if err := s.AddLogin(ctx, a.ID, login); err != nil {
		t.Fatalf("AddLogin failed: %v", err)
	}
	if err := s.AddLogin(ctx, a.ID, login); err != nil {
		t.Fatalf("relinking same user must be a no-op: %v", err)
	}
	if err := s.AddLogin(ctx, b.ID, login); !errors.Is(err, identity.ErrLoginTaken) {
		t.Fatalf("expected ErrLoginTaken, got %v", err)
	}
	got, err := s.FindByLogin(ctx, login)
	if err != nil || got.ID != a.ID {
		t.Fatalf("FindByLogin returned %#v, %v", got, err)
	}
	other := identity.Login{Provider: "vkontakte", ProviderKey: "42"}
	if err := s.AddLogin(ctx, b.ID, other); err != nil {
		t.Fatalf("same key at another provider must link: %v", err)
	}
}

func testReplaceClaims(t *testing.T, s identity.Store) {
	ctx := context.Background()
	u := mustCreate(t, s, "c@example.com")
	types := identity.ClaimTypesFor("vkontakte")

	if claims, err := s.Claims(ctx, u.ID); err != nil || len(claims) != 0 {
		t.Fatalf("new user must have no claims, got %v, %v", claims, err)
	}
	if err := s.ReplaceClaims(ctx, u.ID, identity.ProfileClaims(types, identity.Profile{Name: "Old", Avatar: "a1", AccessToken: "t1"})); err != nil {
		t.Fatalf("ReplaceClaims failed: %v", err)
	}
	if err := s.ReplaceClaims(ctx, u.ID, identity.ProfileClaims(types, identity.Profile{Name: "New", Avatar: "a2"})); err != nil {
		t.Fatalf("ReplaceClaims failed: %v", err)
	}

	claims, err := s.Claims(ctx, u.ID)
	if err != nil {
		t.Fatalf("Claims failed: %v", err)
	}
	if len(claims) != 3 {
		t.Fatalf("expected 3 claims, got %#v", claims)
	}
	if v, _ := identity.FindClaim(claims, types.Name); v != "New" {
		t.Fatalf("expected replaced name, got %q", v)
	}
	if v, _ := identity.FindClaim(claims, types.AccessToken); v != "t1" {
		t.Fatalf("access token must survive a profile refresh without one, got %q", v)
	}
}

func testUnknownUser(t *testing.T, s identity.Store) {
	ctx := context.Background()
	const missing = "00000000-0000-0000-0000-000000000000"
	if _, err := s.FindByUsername(ctx, "nobody@example.com"); !errors.Is(err, identity.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if _, err := s.Claims(ctx, missing); !errors.Is(err, identity.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if err := s.ReplaceClaims(ctx, missing, nil); !errors.Is(err, identity.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if err := s.AddLogin(ctx, missing, identity.Login{Provider: "facebook", ProviderKey: "1"}); !errors.Is(err, identity.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func mustCreate(t *testing.T, s identity.Store, username string) identity.User {
	t.Helper()
	u, err := s.Create(context.Background(), username)
	if err != nil {
		t.Fatalf("Create(%s) failed: %v", username, err)
	}
	return u
}
