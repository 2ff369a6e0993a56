package http

import (
	"context"
	"sort"
	"testing"
	"time"

	"github.com/halalway/halalway/internal/adapters/auth"
	"github.com/halalway/halalway/internal/core/domain"
)

type stopCounter map[string]int

func (c stopCounter) stopper(key string) func() {
	return func() { c[key]++ }
}

func signIn(t *testing.T, v *auth.Verifier, s *auth.Session, uid string) {
	t.Helper()
	token, err := v.Issue(domain.AuthUser{UID: uid}, time.Hour)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := s.SignIn(token); err != nil {
		t.Fatal(err)
	}
}

func TestFeedSet_EndsUserFeedsWhenUserChanges(t *testing.T) {
	v := auth.NewVerifier("ws-secret", "halalway")
	session := auth.NewSession(v)
	feeds := newFeedSet()
	var ended []string
	defer session.Subscribe(func(user *domain.AuthUser) {
		ended = append(ended, feeds.userChanged(user)...)
	})()

	stops := stopCounter{}
	signIn(t, v, session, "u1")
	if !feeds.add("notifications", "u1", stops.stopper("notifications"), session.CurrentUser) {
		t.Fatal("expected notifications feed to open for the signed-in user")
	}
	feeds.add("reviews:s1", "", stops.stopper("reviews:s1"), session.CurrentUser)

	// Refreshing the token keeps the feed.
	signIn(t, v, session, "u1")
	if stops["notifications"] != 0 || len(ended) != 0 {
		t.Fatalf("re-auth as the same user stopped %v", ended)
	}

	signIn(t, v, session, "u2")
	if stops["notifications"] != 1 {
		t.Errorf("expected u1 notifications to stop once, got %d", stops["notifications"])
	}
	if len(ended) != 1 || ended[0] != "notifications" {
		t.Errorf("expected only notifications to end, got %v", ended)
	}
	if stops["reviews:s1"] != 0 {
		t.Error("reviews feed is not tied to the user")
	}
	if feeds.stop("notifications") {
		t.Error("notifications feed still registered")
	}

	feeds.add("notifications", "u2", stops.stopper("notifications"), session.CurrentUser)
	_ = session.SignOut(context.Background())
	if stops["notifications"] != 2 {
		t.Errorf("sign-out should stop u2 notifications, got %d stops", stops["notifications"])
	}
}

func TestFeedSet_RefusesFeedOfFormerUser(t *testing.T) {
	v := auth.NewVerifier("ws-secret", "halalway")
	session := auth.NewSession(v)
	feeds := newFeedSet()
	stops := stopCounter{}

	signIn(t, v, session, "u2")
	if feeds.add("notifications", "u1", stops.stopper("notifications"), session.CurrentUser) {
		t.Fatal("feed opened for u1 must not survive a switch to u2")
	}
	if stops["notifications"] != 1 {
		t.Errorf("refused feed should be stopped, got %d", stops["notifications"])
	}
}

func TestFeedSet_StopAll(t *testing.T) {
	feeds := newFeedSet()
	stops := stopCounter{}
	none := func() *domain.AuthUser { return nil }
	for _, key := range []string{"reviews:s1", "reviews:s2"} {
		feeds.add(key, "", stops.stopper(key), none)
	}

	if !feeds.stop("reviews:s1") || feeds.stop("reviews:s1") {
		t.Error("stop should report the feed once")
	}
	feeds.stopAll()

	keys := make([]string, 0, len(stops))
	for k, n := range stops {
		if n != 1 {
			t.Errorf("%s stopped %d times", k, n)
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)
	if len(keys) != 2 || keys[0] != "reviews:s1" || keys[1] != "reviews:s2" {
		t.Errorf("unexpected stops %v", keys)
	}
}
