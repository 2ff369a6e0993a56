package http

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/gofiber/websocket/v2"

	"github.com/halalway/halalway/internal/adapters/auth"
	"github.com/halalway/halalway/internal/core/domain"
	"github.com/halalway/halalway/internal/pkg/metrics"
)

// wsMessage is sent from client to control its live feeds.
type wsMessage struct {
	Action    string `json:"action"`              // "auth" | "signout" | "watch" | "unwatch"
	Token     string `json:"token,omitempty"`     // bearer token for "auth"
	Channel   string `json:"channel,omitempty"`   // "reviews" | "notifications"
	ServiceID string `json:"serviceId,omitempty"` // required for "reviews"
}

// wsEvent is pushed to the client.
type wsEvent struct {
	Type string `json:"type"`
	Data any    `json:"data"`
}

// WebSocketHandler returns a handler that upgrades to WebSocket and keeps one
// client's live state: its route tree, the reviews of the services it views
// and its notifications.
//
// The route tree is pushed on connect and after every {"action":"auth"} or
// {"action":"signout"}. Feeds are opened with
// {"action":"watch","channel":"reviews","serviceId":"..."} and
// {"action":"watch","channel":"notifications"}; the notifications feed ends
// when the session signs out or signs in as someone else.
func WebSocketHandler(deps *Dependencies) func(*websocket.Conn) {
	return func(c *websocket.Conn) {
		defer c.Close()

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		remoteAddr := c.RemoteAddr().String()
		logger := slog.Default().With("remote_addr", remoteAddr)
		logger.Info("ws client connected")
		metrics.ActiveWebSockets.Inc()
		defer metrics.ActiveWebSockets.Dec()

		var mu sync.Mutex
		writeJSON := func(v interface{}) error {
			data, err := json.Marshal(v)
			if err != nil {
				return err
			}
			mu.Lock()
			defer mu.Unlock()
			return c.WriteMessage(websocket.TextMessage, data)
		}
		send := func(typ string, data any) {
			if err := writeJSON(wsEvent{Type: typ, Data: data}); err != nil {
				logger.Debug("ws write failed", "error", err)
			}
		}

		session := auth.NewSession(deps.Verifier)

		feeds := newFeedSet()

		stopNav := deps.Roles.Watch(ctx, session, func(tree domain.RouteTree) {
			send("navigation", tree)
		})
		defer stopNav()

		stopUserFeeds := session.Subscribe(func(user *domain.AuthUser) {
			for _, key := range feeds.userChanged(user) {
				send("status", map[string]string{"unwatched": key})
			}
		})
		defer stopUserFeeds()

		// Keep-alive ping
		done := make(chan struct{})
		go func() {
			ticker := time.NewTicker(30 * time.Second)
			defer ticker.Stop()
			for {
				select {
				case <-ticker.C:
					mu.Lock()
					err := c.WriteMessage(websocket.PingMessage, nil)
					mu.Unlock()
					if err != nil {
						return
					}
				case <-done:
					return
				}
			}
		}()

		for {
			_, msg, err := c.ReadMessage()
			if err != nil {
				break
			}

			var m wsMessage
			if err := json.Unmarshal(msg, &m); err != nil {
				send("error", "invalid JSON")
				continue
			}

			switch m.Action {
			case "auth":
				if deps.Verifier == nil {
					send("error", "authentication is not configured")
					continue
				}
				if _, err := session.SignIn(m.Token); err != nil {
					send("error", "invalid token")
				}

			case "signout":
				_ = session.SignOut(ctx)

			case "watch":
				spec, errMsg := feedFor(deps, session, m, send)
				if errMsg != "" {
					send("error", errMsg)
					continue
				}
				feeds.stop(spec.key)
				stop, err := spec.start(ctx)
				if err != nil {
					logger.Warn("ws watch failed", "channel", spec.key, "error", err)
					send("error", "watch failed")
					continue
				}
				if !feeds.add(spec.key, spec.uid, stop, session.CurrentUser) {
					send("error", "session changed while opening "+spec.key)
					continue
				}
				send("status", map[string]string{"watching": spec.key})

			case "unwatch":
				key := m.Channel
				if m.Channel == "reviews" {
					key = "reviews:" + m.ServiceID
				}
				if !feeds.stop(key) {
					send("error", "not watching "+key)
					continue
				}
				send("status", map[string]string{"unwatched": key})

			default:
				send("error", "unknown action: "+m.Action)
			}
		}

		close(done)
		feeds.stopAll()
		logger.Info("ws client disconnected")
	}
}

// feedSpec describes a feed a client asked for. uid is set for feeds that
// belong to the signed-in user.
type feedSpec struct {
	key   string
	uid   string
	start func(ctx context.Context) (func(), error)
}

// feedFor maps a watch request to its feed, or an error message.
func feedFor(deps *Dependencies, session *auth.Session, m wsMessage, send func(string, any)) (feedSpec, string) {
	switch m.Channel {
	case "reviews":
		if m.ServiceID == "" {
			return feedSpec{}, "serviceId is required"
		}
		return feedSpec{
			key: "reviews:" + m.ServiceID,
			start: func(ctx context.Context) (func(), error) {
				return deps.Feeds.WatchReviews(ctx, m.ServiceID, func(reviews []domain.Review) {
					send("reviews", map[string]any{"serviceId": m.ServiceID, "reviews": reviews})
				})
			},
		}, ""
	case "notifications":
		user := session.CurrentUser()
		if user == nil {
			return feedSpec{}, "sign in to watch notifications"
		}
		return feedSpec{
			key: "notifications",
			uid: user.UID,
			start: func(ctx context.Context) (func(), error) {
				return deps.Feeds.WatchNotifications(ctx, user.UID, func(items []domain.Notification) {
					send("notifications", items)
				})
			},
		}, ""
	default:
		return feedSpec{}, "unknown channel: " + m.Channel
	}
}

type openFeed struct {
	uid  string
	stop func()
}

// feedSet holds the open feeds of one connection. The read loop and the
// session listener both use it.
type feedSet struct {
	mu    sync.Mutex
	feeds map[string]openFeed
}

func newFeedSet() *feedSet {
	return &feedSet{feeds: make(map[string]openFeed)}
}

// add registers an open feed. A feed owned by uid is refused, and stopped,
// when the current user is no longer uid. current is read under the set's
// lock so a concurrent sign-in either sees the feed or blocks its add.
func (f *feedSet) add(key, uid string, stop func(), current func() *domain.AuthUser) bool {
	f.mu.Lock()
	if user := current(); uid != "" && (user == nil || user.UID != uid) {
		f.mu.Unlock()
		stop()
		return false
	}
	f.feeds[key] = openFeed{uid: uid, stop: stop}
	f.mu.Unlock()
	return true
}

// stop ends the feed under key and reports whether one was open.
func (f *feedSet) stop(key string) bool {
	f.mu.Lock()
	feed, ok := f.feeds[key]
	delete(f.feeds, key)
	f.mu.Unlock()
	if ok {
		feed.stop()
	}
	return ok
}

// userChanged ends every feed owned by someone other than user and returns
// their keys. Re-authenticating as the same user keeps them.
func (f *feedSet) userChanged(user *domain.AuthUser) []string {
	f.mu.Lock()
	var ended []openFeed
	var keys []string
	for key, feed := range f.feeds {
		if feed.uid == "" || (user != nil && user.UID == feed.uid) {
			continue
		}
		ended = append(ended, feed)
		keys = append(keys, key)
		delete(f.feeds, key)
	}
	f.mu.Unlock()
	for _, feed := range ended {
		feed.stop()
	}
	return keys
}

func (f *feedSet) stopAll() {
	f.mu.Lock()
	feeds := f.feeds
	f.feeds = make(map[string]openFeed)
	f.mu.Unlock()
	for _, feed := range feeds {
		feed.stop()
	}
}
