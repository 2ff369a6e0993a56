// Package memstore is an in-process ports.DocumentStore used by tests and
// local development.
package memstore

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/halalway/halalway/internal/core/domain"
	"github.com/halalway/halalway/internal/core/ports"
)

type collection struct {
	order []string
	docs  map[string]domain.Document
}

type watcher struct {
	q        ports.Query
	onChange func([]domain.Document)

	mu        sync.Mutex
	delivered bool
	version   uint64
}

// deliver passes docs to the callback unless a snapshot taken after it was
// already delivered. Callbacks run one at a time per watcher.
func (w *watcher) deliver(version uint64, docs []domain.Document) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.delivered && version <= w.version {
		return
	}
	w.delivered, w.version = true, version
	w.onChange(docs)
}

// Store keeps documents in memory. Writes to one document are serialized
// under a single mutex, so transforms resolve atomically.
type Store struct {
	mu          sync.RWMutex
	collections map[string]*collection
	watchers    map[string]map[int]*watcher
	nextWatch   int
	version     uint64 // bumped by every write
	now         func() time.Time
}

// Option configures a Store.
type Option func(*Store)

// WithClock overrides the time source used by ServerTimestamp.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// New creates an empty store.
func New(opts ...Option) *Store {
	s := &Store{
		collections: make(map[string]*collection),
		watchers:    make(map[string]map[int]*watcher),
		now:         time.Now,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

func (s *Store) coll(name string) *collection {
	c, ok := s.collections[name]
	if !ok {
		c = &collection{docs: make(map[string]domain.Document)}
		s.collections[name] = c
	}
	return c
}

func (s *Store) GetAll(_ context.Context, coll string) ([]domain.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.query(ports.Query{Collection: coll}), nil
}

func (s *Store) Get(_ context.Context, coll, id string) (domain.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.collections[coll]
	if !ok {
		return nil, fmt.Errorf("%s/%s: %w", coll, id, domain.ErrNotFound)
	}
	d, ok := c.docs[id]
	if !ok {
		return nil, fmt.Errorf("%s/%s: %w", coll, id, domain.ErrNotFound)
	}
	return d.Clone(), nil
}

func (s *Store) GetWhere(_ context.Context, coll, field string, op ports.Op, value any) ([]domain.Document, error) {
	if !validOp(op) {
		return nil, fmt.Errorf("unsupported operator %q", op)
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.query(ports.Query{Collection: coll, Field: field, Op: op, Value: value}), nil
}

func (s *Store) GetWhereIn(_ context.Context, coll, field string, values []string) ([]domain.Document, error) {
	if len(values) > ports.MaxInValues {
		return nil, fmt.Errorf("%d values: %w", len(values), domain.ErrTooManyValues)
	}
	if len(values) == 0 {
		return nil, nil
	}
	set := make(map[string]struct{}, len(values))
	for _, v := range values {
		set[v] = struct{}{}
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.collections[coll]
	if !ok {
		return nil, nil
	}
	var out []domain.Document
	for _, id := range c.order {
		d := c.docs[id]
		if _, ok := set[d.String(field)]; ok {
			out = append(out, d.Clone())
		}
	}
	return out, nil
}

func (s *Store) Add(_ context.Context, coll string, fields domain.Document) (string, error) {
	id := uuid.NewString()
	s.mu.Lock()
	c := s.coll(coll)
	doc := resolve(nil, fields, s.now())
	doc[domain.FieldID] = id
	c.docs[id] = doc
	c.order = append(c.order, id)
	notify := s.pending(coll)
	s.mu.Unlock()

	notify()
	return id, nil
}

func (s *Store) Update(_ context.Context, coll, id string, fields domain.Document) error {
	id = strings.Clone(id) // stored as a map key; the caller may reuse its bytes
	s.mu.Lock()
	c := s.coll(coll)
	existing, ok := c.docs[id]
	if !ok {
		s.mu.Unlock()
		return fmt.Errorf("%s/%s: %w", coll, id, domain.ErrNotFound)
	}
	c.docs[id] = resolve(existing, fields, s.now())
	notify := s.pending(coll)
	s.mu.Unlock()

	notify()
	return nil
}

func (s *Store) Merge(_ context.Context, coll, id string, fields domain.Document) error {
	id = strings.Clone(id) // stored as a map key; the caller may reuse its bytes
	s.mu.Lock()
	c := s.coll(coll)
	existing, ok := c.docs[id]
	doc := resolve(existing, fields, s.now())
	doc[domain.FieldID] = id
	c.docs[id] = doc
	if !ok {
		c.order = append(c.order, id)
	}
	notify := s.pending(coll)
	s.mu.Unlock()

	notify()
	return nil
}

func (s *Store) Delete(_ context.Context, coll, id string) error {
	s.mu.Lock()
	c, ok := s.collections[coll]
	if !ok {
		s.mu.Unlock()
		return nil
	}
	if _, ok := c.docs[id]; !ok {
		s.mu.Unlock()
		return nil
	}
	delete(c.docs, id)
	for i, v := range c.order {
		if v == id {
			c.order = append(c.order[:i], c.order[i+1:]...)
			break
		}
	}
	notify := s.pending(coll)
	s.mu.Unlock()

	notify()
	return nil
}

// Watch delivers the current result set, then a new one after every write to
// the collection. A result set older than one already delivered is dropped.
// onChange must not write to the watched collection synchronously.
func (s *Store) Watch(ctx context.Context, q ports.Query, onChange func([]domain.Document)) (func(), error) {
	if q.Field != "" && !validOp(q.Op) {
		return nil, fmt.Errorf("unsupported operator %q", q.Op)
	}

	s.mu.Lock()
	key := s.nextWatch
	s.nextWatch++
	if s.watchers[q.Collection] == nil {
		s.watchers[q.Collection] = make(map[int]*watcher)
	}
	w := &watcher{q: q, onChange: onChange}
	s.watchers[q.Collection][key] = w
	initial, version := s.query(q), s.version
	s.mu.Unlock()

	w.deliver(version, initial)

	var once sync.Once
	remove := func() {
		once.Do(func() {
			s.mu.Lock()
			delete(s.watchers[q.Collection], key)
			s.mu.Unlock()
		})
	}
	stop := context.AfterFunc(ctx, remove)
	return func() {
		stop()
		remove()
	}, nil
}

// pending snapshots the result sets of every watcher on coll while the lock
// is held and returns a func that delivers them after it is released.
func (s *Store) pending(coll string) func() {
	s.version++
	ws := s.watchers[coll]
	if len(ws) == 0 {
		return func() {}
	}
	type delivery struct {
		w    *watcher
		docs []domain.Document
	}
	version := s.version
	deliveries := make([]delivery, 0, len(ws))
	for _, w := range ws {
		deliveries = append(deliveries, delivery{w: w, docs: s.query(w.q)})
	}
	return func() {
		for _, d := range deliveries {
			d.w.deliver(version, d.docs)
		}
	}
}

// query must be called with s.mu held.
func (s *Store) query(q ports.Query) []domain.Document {
	c, ok := s.collections[q.Collection]
	if !ok {
		return []domain.Document{}
	}
	out := make([]domain.Document, 0, len(c.order))
	for _, id := range c.order {
		d := c.docs[id]
		if q.Field == "" || matches(d[q.Field], q.Op, q.Value) {
			out = append(out, d.Clone())
		}
	}
	return out
}

// resolve applies fields on top of existing (nil when creating) and returns
// a new document with every transform replaced by its concrete value.
func resolve(existing, fields domain.Document, now time.Time) domain.Document {
	creating := existing == nil
	doc := existing.Clone()
	for k, v := range fields {
		switch t := v.(type) {
		case ports.ServerTimestampValue:
			doc[k] = now
		case ports.IncrementValue:
			cur, _ := domain.Number(doc[k])
			doc[k] = int64(cur) + t.N
		case ports.SetOnInsertValue:
			if !creating {
				continue
			}
			if _, ok := t.Value.(ports.ServerTimestampValue); ok {
				doc[k] = now
			} else {
				doc[k] = t.Value
			}
		default:
			doc[k] = v
		}
	}
	return doc
}
