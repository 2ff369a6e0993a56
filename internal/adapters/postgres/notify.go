package postgres

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/halalway/halalway/internal/core/ports"
)

const notifyChannel = "documents"

const (
	listenRetryMin = 500 * time.Millisecond
	listenRetryMax = 30 * time.Second
)

// listener is one session that has issued LISTEN.
type listener interface {
	wait(ctx context.Context) (string, error)
	close()
}

type pgListener struct {
	conn *pgxpool.Conn
}

// listen acquires a dedicated pool connection and subscribes it to the
// documents channel.
func (db *DB) listen(ctx context.Context) (listener, error) {
	conn, err := db.Pool.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("acquire listen conn: %w", err)
	}
	if _, err := conn.Exec(ctx, "LISTEN "+notifyChannel); err != nil {
		conn.Release()
		return nil, fmt.Errorf("listen: %w", err)
	}
	return &pgListener{conn: conn}, nil
}

func (l *pgListener) wait(ctx context.Context) (string, error) {
	n, err := l.conn.Conn().WaitForNotification(ctx)
	if err != nil {
		return "", err
	}
	return n.Payload, nil
}

// close drops the session instead of returning it to the pool with
// LISTEN still active. The pool discards closed connections.
func (l *pgListener) close() {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	_ = l.conn.Conn().Close(ctx)
	l.conn.Release()
}

// notifyHub holds one LISTEN session and fans collection change signals
// out to every watcher of that collection. A lost session is replaced with
// backoff, after which every watcher reloads once to pick up changes made
// while nobody was listening.
type notifyHub struct {
	listen   func(ctx context.Context) (listener, error)
	retryMin time.Duration
	retryMax time.Duration

	once    sync.Once
	err     error
	cancel  context.CancelFunc
	done    chan struct{}
	mu      sync.Mutex
	watches map[string]map[chan struct{}]struct{}
}

func newNotifyHub(listen func(ctx context.Context) (listener, error)) *notifyHub {
	return &notifyHub{
		listen:   listen,
		retryMin: listenRetryMin,
		retryMax: listenRetryMax,
		done:     make(chan struct{}),
		watches:  make(map[string]map[chan struct{}]struct{}),
	}
}

func (h *notifyHub) start() error {
	h.once.Do(func() {
		ctx, cancel := context.WithCancel(context.Background())
		h.cancel = cancel

		l, err := h.listen(ctx)
		if err != nil {
			h.err = err
			close(h.done)
			return
		}
		go h.run(ctx, l)
	})
	return h.err
}

func (h *notifyHub) run(ctx context.Context, l listener) {
	defer close(h.done)
	for {
		payload, err := l.wait(ctx)
		if err == nil {
			h.broadcast(payload)
			continue
		}
		l.close()
		if ctx.Err() != nil {
			return
		}
		slog.Error("document listener lost, reconnecting", "error", err)

		if l = h.reconnect(ctx); l == nil {
			return
		}
		slog.Info("document listener restored")
		h.broadcastAll()
	}
}

// reconnect retries listen until it succeeds or ctx ends, in which case
// it returns nil.
func (h *notifyHub) reconnect(ctx context.Context) listener {
	delay := h.retryMin
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-time.After(delay):
		}
		l, err := h.listen(ctx)
		if err == nil {
			return l
		}
		slog.Warn("document listener reconnect failed", "retry_in", delay, "error", err)
		delay = min(delay*2, h.retryMax)
	}
}

func (h *notifyHub) subscribe(collection string) chan struct{} {
	ch := make(chan struct{}, 1)
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.watches[collection] == nil {
		h.watches[collection] = make(map[chan struct{}]struct{})
	}
	h.watches[collection][ch] = struct{}{}
	return ch
}

func (h *notifyHub) unsubscribe(collection string, ch chan struct{}) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.watches[collection], ch)
}

// broadcast coalesces signals: a watcher that has not yet reloaded keeps
// a single pending signal.
func (h *notifyHub) broadcast(collection string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for ch := range h.watches[collection] {
		signal(ch)
	}
}

func (h *notifyHub) broadcastAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, set := range h.watches {
		for ch := range set {
			signal(ch)
		}
	}
}

func signal(ch chan struct{}) {
	select {
	case ch <- struct{}{}:
	default:
	}
}

// close stops the listener and waits for its session to be dropped.
func (h *notifyHub) close() {
	if h.cancel == nil {
		return
	}
	h.cancel()
	<-h.done
}

func logWatchError(ctx context.Context, q ports.Query, err error) {
	slog.WarnContext(ctx, "watch reload failed", "collection", q.Collection, "field", q.Field, "error", err)
}
