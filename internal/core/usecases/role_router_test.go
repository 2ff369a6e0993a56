package usecases_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/halalway/halalway/internal/core/domain"
	"github.com/halalway/halalway/internal/core/usecases"
)

func TestRoleRouter_RoleFor(t *testing.T) {
	store := newMockStore()
	store.put(domain.CollectionUsers, "admin", domain.Document{"role": "Admin"})
	store.put(domain.CollectionUsers, "biz", domain.Document{"role": "Entrepreneur"})
	store.put(domain.CollectionUsers, "odd", domain.Document{"role": "Superhero"})
	store.put(domain.CollectionUsers, "norole", domain.Document{"email": "a@b.c"})

	router := usecases.NewRoleRouter(store, nil)
	cases := map[string]domain.Role{
		"":        domain.RoleGuest,
		"admin":   domain.RoleAdmin,
		"biz":     domain.RoleEntrepreneur,
		"odd":     domain.RoleGeneralUser,
		"norole":  domain.RoleGeneralUser,
		"missing": domain.RoleGeneralUser,
	}
	for uid, want := range cases {
		got, err := router.RoleFor(context.Background(), uid)
		if err != nil {
			t.Fatalf("uid %q: unexpected error: %v", uid, err)
		}
		if got != want {
			t.Errorf("uid %q: expected %s, got %s", uid, want, got)
		}
	}
}

func TestRoleRouter_RoleFor_UsesCache(t *testing.T) {
	store := newMockStore()
	store.put(domain.CollectionUsers, "u1", domain.Document{"role": "Admin"})
	cache := newMockCache()
	router := usecases.NewRoleRouter(store, cache)

	for i := 0; i < 3; i++ {
		role, err := router.RoleFor(context.Background(), "u1")
		if err != nil || role != domain.RoleAdmin {
			t.Fatalf("expected Admin, got %s (%v)", role, err)
		}
	}
	if store.getCalls != 1 {
		t.Errorf("expected 1 store read, got %d", store.getCalls)
	}

	router.InvalidateRole(context.Background(), "u1")
	_, _ = router.RoleFor(context.Background(), "u1")
	if store.getCalls != 2 {
		t.Errorf("expected a fresh read after invalidation, got %d reads", store.getCalls)
	}
}

func TestRoleRouter_Resolve_StoreFailureFallsBack(t *testing.T) {
	store := newMockStore()
	store.getFn = func(ctx context.Context, collection, id string) (domain.Document, error) {
		return nil, errors.New("offline")
	}

	tree, err := usecases.NewRoleRouter(store, nil).Resolve(context.Background(), &domain.AuthUser{UID: "u1"})
	if err == nil {
		t.Error("expected the store error to be reported")
	}
	if tree.Role != domain.RoleGeneralUser {
		t.Errorf("expected General User fallback, got %s", tree.Role)
	}
}

func TestRouteTreeFor(t *testing.T) {
	for _, role := range []domain.Role{domain.RoleGuest, domain.RoleGeneralUser, domain.RoleEntrepreneur, domain.RoleAdmin} {
		tree := usecases.RouteTreeFor(role)
		if tree.Role != role {
			t.Errorf("expected tree for %s, got %s", role, tree.Role)
		}
		found := false
		for _, s := range tree.Screens {
			if s.Name == tree.Initial {
				found = true
			}
		}
		if !found {
			t.Errorf("%s: initial screen %q not in tree", role, tree.Initial)
		}
	}
	if usecases.RouteTreeFor("Nope").Role != domain.RoleGeneralUser {
		t.Error("unknown role should map to General User tree")
	}
}

func TestRouteTreeFor_ReturnsIndependentCopies(t *testing.T) {
	tree := usecases.RouteTreeFor(domain.RoleAdmin)
	want := tree.Screens[0]
	tree.Screens[0] = domain.Screen{Name: "Hijacked"}
	tree.Screens = append(tree.Screens, domain.Screen{Name: "Extra"})

	again := usecases.RouteTreeFor(domain.RoleAdmin)
	if again.Screens[0] != want {
		t.Errorf("shared tree was modified: got %+v", again.Screens[0])
	}
	for _, s := range again.Screens {
		if s.Name == "Extra" {
			t.Error("appended screen leaked into the shared tree")
		}
	}
}

func TestRoleRouter_Watch(t *testing.T) {
	store := newMockStore()
	store.put(domain.CollectionUsers, "biz", domain.Document{"role": "Entrepreneur"})
	session := newMockSession(nil)
	router := usecases.NewRoleRouter(store, nil)

	var (
		mu    sync.Mutex
		roles []domain.Role
	)
	unsubscribe := router.Watch(context.Background(), session, func(tree domain.RouteTree) {
		mu.Lock()
		roles = append(roles, tree.Role)
		mu.Unlock()
	})

	session.set(&domain.AuthUser{UID: "biz"})
	_ = session.SignOut(context.Background())
	unsubscribe()
	session.set(&domain.AuthUser{UID: "biz"})

	mu.Lock()
	defer mu.Unlock()
	want := []domain.Role{domain.RoleGuest, domain.RoleEntrepreneur, domain.RoleGuest}
	if len(roles) != len(want) {
		t.Fatalf("expected %v, got %v", want, roles)
	}
	for i := range want {
		if roles[i] != want[i] {
			t.Errorf("push %d: expected %s, got %s", i, want[i], roles[i])
		}
	}
}

func TestRoleRouter_Watch_StopsOnContextCancel(t *testing.T) {
	session := newMockSession(nil)
	ctx, cancel := context.WithCancel(context.Background())

	var mu sync.Mutex
	pushes := 0
	usecases.NewRoleRouter(newMockStore(), nil).Watch(ctx, session, func(domain.RouteTree) {
		mu.Lock()
		pushes++
		mu.Unlock()
	})
	cancel()
	session.set(&domain.AuthUser{UID: "x"})

	mu.Lock()
	defer mu.Unlock()
	if pushes != 1 {
		t.Errorf("expected only the initial push, got %d", pushes)
	}
}
