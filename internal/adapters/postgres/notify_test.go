package postgres

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeListener replays payloads and then fails once its feed is closed.
type fakeListener struct {
	feed   chan string
	closed chan struct{}
	once   sync.Once
}

func newFakeListener() *fakeListener {
	return &fakeListener{feed: make(chan string, 4), closed: make(chan struct{})}
}

func (l *fakeListener) wait(ctx context.Context) (string, error) {
	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case p, ok := <-l.feed:
		if !ok {
			return "", errors.New("conn closed")
		}
		return p, nil
	}
}

func (l *fakeListener) close() { l.once.Do(func() { close(l.closed) }) }

func received(t *testing.T, ch chan struct{}) {
	t.Helper()
	select {
	case <-ch:
	case <-time.After(2 * time.Second):
		t.Fatal("expected a change signal")
	}
}

func TestNotifyHub_ReconnectsAndResyncsWatchers(t *testing.T) {
	first, second := newFakeListener(), newFakeListener()
	var mu sync.Mutex
	attempts := 0
	hub := newNotifyHub(func(context.Context) (listener, error) {
		mu.Lock()
		defer mu.Unlock()
		attempts++
		switch attempts {
		case 1:
			return first, nil
		case 2:
			return nil, errors.New("connection refused")
		default:
			return second, nil
		}
	})
	hub.retryMin, hub.retryMax = time.Millisecond, 2*time.Millisecond

	services := hub.subscribe("services")
	users := hub.subscribe("users")
	require.NoError(t, hub.start())

	first.feed <- "services"
	received(t, services)

	// The session dies; every watcher reloads once the listener is back,
	// whatever collection it follows.
	close(first.feed)
	received(t, services)
	received(t, users)
	select {
	case <-first.closed:
	default:
		t.Error("dead session was not released")
	}

	second.feed <- "users"
	received(t, users)

	hub.close()
	select {
	case <-second.closed:
	default:
		t.Error("listener still open after close")
	}
	mu.Lock()
	assert.Equal(t, 3, attempts)
	mu.Unlock()
}

func TestNotifyHub_StartFailure(t *testing.T) {
	boom := errors.New("acquire listen conn: pool closed")
	hub := newNotifyHub(func(context.Context) (listener, error) { return nil, boom })

	assert.ErrorIs(t, hub.start(), boom)
	assert.ErrorIs(t, hub.start(), boom)
	hub.close()
}

func TestNotifyHub_CoalescesSignals(t *testing.T) {
	hub := newNotifyHub(nil)
	ch := hub.subscribe("services")
	hub.broadcast("services")
	hub.broadcast("services")
	hub.broadcast("users")

	assert.Len(t, ch, 1)
	hub.unsubscribe("services", ch)
	<-ch
	hub.broadcast("services")
	assert.Len(t, ch, 0)
}
