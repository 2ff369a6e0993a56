package usecases

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/halalway/halalway/internal/core/domain"
	"github.com/halalway/halalway/internal/core/ports"
	"github.com/halalway/halalway/internal/pkg/metrics"
)

const roleCacheTTL = 300

var routeTrees = map[domain.Role]domain.RouteTree{
	domain.RoleGuest: {
		Role:    domain.RoleGuest,
		Initial: "Welcome",
		Screens: []domain.Screen{
			{Name: "Welcome", Title: "Welcome"},
			{Name: "Login", Title: "Sign in"},
			{Name: "Register", Title: "Create account"},
			{Name: "ForgotPassword", Title: "Reset password"},
		},
	},
	domain.RoleGeneralUser: {
		Role:    domain.RoleGeneralUser,
		Initial: "Home",
		Screens: []domain.Screen{
			{Name: "Home", Title: "Home", Tab: true},
			{Name: "Explore", Title: "Explore", Tab: true},
			{Name: "Promotions", Title: "Promotions", Tab: true},
			{Name: "Blogs", Title: "Blogs", Tab: true},
			{Name: "Profile", Title: "Profile", Tab: true},
			{Name: "ServiceDetail", Title: "Service"},
			{Name: "BlogDetail", Title: "Blog"},
			{Name: "WriteReview", Title: "Write a review"},
			{Name: "Notifications", Title: "Notifications"},
		},
	},
	domain.RoleEntrepreneur: {
		Role:    domain.RoleEntrepreneur,
		Initial: "Dashboard",
		Screens: []domain.Screen{
			{Name: "Dashboard", Title: "Dashboard", Tab: true},
			{Name: "MyServices", Title: "My services", Tab: true},
			{Name: "Campaigns", Title: "Campaigns", Tab: true},
			{Name: "Profile", Title: "Profile", Tab: true},
			{Name: "AddService", Title: "Add service"},
			{Name: "EditService", Title: "Edit service"},
			{Name: "AddPromotion", Title: "Add promotion"},
			{Name: "SubscribeCampaign", Title: "Subscribe"},
			{Name: "UploadSlip", Title: "Upload payment slip"},
			{Name: "CampaignReport", Title: "Campaign report"},
			{Name: "Notifications", Title: "Notifications"},
		},
	},
	domain.RoleAdmin: {
		Role:    domain.RoleAdmin,
		Initial: "AdminDashboard",
		Screens: []domain.Screen{
			{Name: "AdminDashboard", Title: "Dashboard", Tab: true},
			{Name: "ManageUsers", Title: "Users", Tab: true},
			{Name: "ManageServices", Title: "Services", Tab: true},
			{Name: "ManageSubscriptions", Title: "Subscriptions", Tab: true},
			{Name: "ManageCampaigns", Title: "Campaigns"},
			{Name: "ManageBlogs", Title: "Blogs"},
			{Name: "RemoveEntrepreneur", Title: "Remove entrepreneur"},
		},
	},
}

// RouteTreeFor returns a copy of the static screen graph for role.
// Unknown roles get the General User tree.
func RouteTreeFor(role domain.Role) domain.RouteTree {
	t, ok := routeTrees[role]
	if !ok {
		t = routeTrees[domain.RoleGeneralUser]
	}
	t.Screens = append([]domain.Screen(nil), t.Screens...)
	return t
}

// RoleRouter maps the authenticated user to the route tree the client mounts.
type RoleRouter struct {
	store ports.DocumentStore
	cache ports.CacheService
}

// NewRoleRouter creates a new RoleRouter. cache may be nil.
func NewRoleRouter(store ports.DocumentStore, cache ports.CacheService) *RoleRouter {
	return &RoleRouter{store: store, cache: cache}
}

func roleCacheKey(uid string) string { return "users:role:" + uid }

// RoleFor reads the role stored on users/{uid}. No uid means Guest; a missing
// user document or an unrecognized value means General User.
func (r *RoleRouter) RoleFor(ctx context.Context, uid string) (domain.Role, error) {
	if uid == "" {
		return domain.RoleGuest, nil
	}

	key := roleCacheKey(uid)
	if r.cache != nil {
		if data, err := r.cache.Get(ctx, key); err == nil && len(data) > 0 {
			metrics.CacheHits.WithLabelValues("role").Inc()
			return domain.ParseRole(string(data)), nil
		}
		metrics.CacheMisses.WithLabelValues("role").Inc()
	}

	doc, err := r.store.Get(ctx, domain.CollectionUsers, uid)
	if err != nil {
		if isNotFound(err) {
			return domain.RoleGeneralUser, nil
		}
		return domain.RoleGeneralUser, fmt.Errorf("read role for %s: %w", uid, err)
	}
	role := domain.ParseRole(doc.String("role"))

	if r.cache != nil {
		_ = r.cache.Set(ctx, key, []byte(role), roleCacheTTL)
	}
	return role, nil
}

// InvalidateRole drops the cached role of uid after it changes.
func (r *RoleRouter) InvalidateRole(ctx context.Context, uid string) {
	if r.cache != nil && uid != "" {
		_ = r.cache.Delete(ctx, roleCacheKey(uid))
	}
}

// Resolve returns the route tree for user; nil is the signed-out Guest.
// On a store failure the General User tree is returned with the error.
func (r *RoleRouter) Resolve(ctx context.Context, user *domain.AuthUser) (domain.RouteTree, error) {
	if user == nil {
		return RouteTreeFor(domain.RoleGuest), nil
	}
	role, err := r.RoleFor(ctx, user.UID)
	return RouteTreeFor(role), err
}

// Watch is the single auth listener of a client: it pushes the current tree
// immediately and again after every sign-in or sign-out, until the returned
// function is called or ctx ends.
func (r *RoleRouter) Watch(ctx context.Context, session ports.AuthSession, onChange func(domain.RouteTree)) (unsubscribe func()) {
	var mu sync.Mutex
	push := func(user *domain.AuthUser) {
		mu.Lock()
		defer mu.Unlock()
		if ctx.Err() != nil {
			return
		}
		tree, err := r.Resolve(ctx, user)
		if err != nil {
			slog.WarnContext(ctx, "role lookup failed, using default routes", "error", err)
		}
		onChange(tree)
	}

	stop := session.Subscribe(push)
	push(session.CurrentUser())

	var once sync.Once
	remove := func() { once.Do(stop) }
	stopAfter := context.AfterFunc(ctx, remove)
	return func() {
		stopAfter()
		remove()
	}
}
