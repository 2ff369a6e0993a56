package mongodb

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/halalway/halalway/internal/core/domain"
	"github.com/halalway/halalway/internal/core/ports"
)

const (
	keyField     = "_id"
	createdField = "_createdAt"
)

// DocumentStore implements ports.DocumentStore on one MongoDB collection per
// document collection. Field transforms map onto $inc, $currentDate and
// $setOnInsert so a Merge is a single atomic upsert.
type DocumentStore struct {
	db           *mongo.Database
	now          func() time.Time
	pollInterval time.Duration
}

// Option configures a DocumentStore.
type Option func(*DocumentStore)

// WithPollInterval sets how often Watch reloads when change streams are
// unavailable (standalone servers).
func WithPollInterval(d time.Duration) Option {
	return func(s *DocumentStore) { s.pollInterval = d }
}

// NewDocumentStore creates a new DocumentStore.
func NewDocumentStore(db *DB, opts ...Option) *DocumentStore {
	s := &DocumentStore{db: db.Database, now: time.Now, pollInterval: 2 * time.Second}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *DocumentStore) GetAll(ctx context.Context, collection string) ([]domain.Document, error) {
	return s.find(ctx, collection, bson.M{})
}

func (s *DocumentStore) Get(ctx context.Context, collection, id string) (domain.Document, error) {
	var raw bson.M
	err := s.db.Collection(collection).FindOne(ctx, bson.M{keyField: id}).Decode(&raw)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, fmt.Errorf("%s/%s: %w", collection, id, domain.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get %s/%s: %w", collection, id, err)
	}
	return fromBSON(raw), nil
}

func (s *DocumentStore) GetWhere(ctx context.Context, collection, field string, op ports.Op, value any) ([]domain.Document, error) {
	filter, err := buildFilter(field, op, value)
	if err != nil {
		return nil, err
	}
	return s.find(ctx, collection, filter)
}

func (s *DocumentStore) GetWhereIn(ctx context.Context, collection, field string, values []string) ([]domain.Document, error) {
	if len(values) > ports.MaxInValues {
		return nil, fmt.Errorf("%d values: %w", len(values), domain.ErrTooManyValues)
	}
	if len(values) == 0 {
		return nil, nil
	}
	return s.find(ctx, collection, bson.M{fieldName(field): bson.M{"$in": values}})
}

func (s *DocumentStore) Add(ctx context.Context, collection string, fields domain.Document) (string, error) {
	id := uuid.NewString()
	now := s.now().UTC()
	doc := bson.M{keyField: id, createdField: now}
	for k, v := range fields {
		if k == domain.FieldID {
			continue
		}
		doc[k] = resolveOnCreate(v, now)
	}
	if _, err := s.db.Collection(collection).InsertOne(ctx, doc); err != nil {
		return "", fmt.Errorf("add to %s: %w", collection, err)
	}
	return id, nil
}

func (s *DocumentStore) Update(ctx context.Context, collection, id string, fields domain.Document) error {
	update := buildUpdate(fields, s.now().UTC())
	delete(update, "$setOnInsert")
	if len(update) == 0 {
		update = bson.M{"$set": bson.M{}}
	}
	res, err := s.db.Collection(collection).UpdateOne(ctx, bson.M{keyField: id}, update)
	if err != nil {
		return fmt.Errorf("update %s/%s: %w", collection, id, err)
	}
	if res.MatchedCount == 0 {
		return fmt.Errorf("%s/%s: %w", collection, id, domain.ErrNotFound)
	}
	return nil
}

func (s *DocumentStore) Merge(ctx context.Context, collection, id string, fields domain.Document) error {
	update := buildUpdate(fields, s.now().UTC())
	_, err := s.db.Collection(collection).UpdateOne(ctx, bson.M{keyField: id}, update, options.Update().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("merge %s/%s: %w", collection, id, err)
	}
	return nil
}

func (s *DocumentStore) Delete(ctx context.Context, collection, id string) error {
	if _, err := s.db.Collection(collection).DeleteOne(ctx, bson.M{keyField: id}); err != nil {
		return fmt.Errorf("delete %s/%s: %w", collection, id, err)
	}
	return nil
}

// Watch reloads q on every change event of q.Collection. Change streams need
// a replica set; against a standalone server it polls instead.
func (s *DocumentStore) Watch(ctx context.Context, q ports.Query, onChange func([]domain.Document)) (func(), error) {
	filter := bson.M{}
	if q.Field != "" {
		f, err := buildFilter(q.Field, q.Op, q.Value)
		if err != nil {
			return nil, err
		}
		filter = f
	}
	load := func(ctx context.Context) ([]domain.Document, error) {
		return s.find(ctx, q.Collection, filter)
	}

	initial, err := load(ctx)
	if err != nil {
		return nil, err
	}

	watchCtx, cancel := context.WithCancel(ctx)
	stream, err := s.db.Collection(q.Collection).Watch(watchCtx, mongo.Pipeline{})
	if err != nil {
		slog.InfoContext(ctx, "change streams unavailable, polling", "collection", q.Collection, "error", err)
		stream = nil
	}
	onChange(initial)

	reload := func() {
		docs, err := load(watchCtx)
		if err != nil {
			if watchCtx.Err() == nil {
				slog.WarnContext(watchCtx, "watch reload failed", "collection", q.Collection, "error", err)
			}
			return
		}
		onChange(docs)
	}

	if stream != nil {
		go func() {
			defer stream.Close(context.Background())
			for stream.Next(watchCtx) {
				reload()
			}
			if err := stream.Err(); err != nil && watchCtx.Err() == nil {
				slog.WarnContext(watchCtx, "change stream ended", "collection", q.Collection, "error", err)
			}
		}()
		return cancel, nil
	}

	go func() {
		ticker := time.NewTicker(s.pollInterval)
		defer ticker.Stop()
		for {
			select {
			case <-watchCtx.Done():
				return
			case <-ticker.C:
				reload()
			}
		}
	}()
	return cancel, nil
}

func (s *DocumentStore) find(ctx context.Context, collection string, filter bson.M) ([]domain.Document, error) {
	opts := options.Find().SetSort(bson.D{{Key: createdField, Value: 1}, {Key: keyField, Value: 1}})
	cur, err := s.db.Collection(collection).Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("find in %s: %w", collection, err)
	}
	var raw []bson.M
	if err := cur.All(ctx, &raw); err != nil {
		return nil, fmt.Errorf("decode %s: %w", collection, err)
	}
	docs := make([]domain.Document, 0, len(raw))
	for _, r := range raw {
		docs = append(docs, fromBSON(r))
	}
	return docs, nil
}

func fieldName(field string) string {
	if field == domain.FieldID {
		return keyField
	}
	return field
}

// buildFilter compiles a single-field filter. Documents missing the field
// never match, including for !=.
func buildFilter(field string, op ports.Op, value any) (bson.M, error) {
	name := fieldName(field)
	switch op {
	case ports.OpEqual:
		return bson.M{name: bson.M{"$eq": value}}, nil
	case ports.OpNotEqual:
		return bson.M{name: bson.M{"$exists": true, "$ne": value}}, nil
	case ports.OpLess:
		return bson.M{name: bson.M{"$lt": value}}, nil
	case ports.OpLessEqual:
		return bson.M{name: bson.M{"$lte": value}}, nil
	case ports.OpGreater:
		return bson.M{name: bson.M{"$gt": value}}, nil
	case ports.OpGreaterEqual:
		return bson.M{name: bson.M{"$gte": value}}, nil
	case ports.OpArrayContains:
		return bson.M{name: bson.M{"$elemMatch": bson.M{"$eq": value}}}, nil
	default:
		return nil, fmt.Errorf("unsupported operator %q: %w", op, domain.ErrInvalidInput)
	}
}

// buildUpdate translates fields into update operators for an upsert.
func buildUpdate(fields domain.Document, now time.Time) bson.M {
	var (
		set         = bson.M{}
		inc         = bson.M{}
		currentDate = bson.M{}
		onInsert    = bson.M{createdField: now}
	)
	for k, v := range fields {
		if k == domain.FieldID {
			continue
		}
		switch t := v.(type) {
		case ports.ServerTimestampValue:
			currentDate[k] = bson.M{"$type": "date"}
		case ports.IncrementValue:
			inc[k] = t.N
		case ports.SetOnInsertValue:
			onInsert[k] = resolveOnCreate(t.Value, now)
		default:
			set[k] = v
		}
	}

	update := bson.M{"$setOnInsert": onInsert}
	if len(set) > 0 {
		update["$set"] = set
	}
	if len(inc) > 0 {
		update["$inc"] = inc
	}
	if len(currentDate) > 0 {
		update["$currentDate"] = currentDate
	}
	return update
}

// resolveOnCreate evaluates a transform for a document being created.
func resolveOnCreate(v any, now time.Time) any {
	switch t := v.(type) {
	case ports.ServerTimestampValue:
		return now
	case ports.IncrementValue:
		return t.N
	case ports.SetOnInsertValue:
		return resolveOnCreate(t.Value, now)
	}
	return v
}

// fromBSON converts a decoded document into the shared document model:
// the key moves to domain.FieldID and internal fields are dropped.
func fromBSON(raw bson.M) domain.Document {
	doc := make(domain.Document, len(raw))
	for k, v := range raw {
		switch {
		case k == keyField:
			doc[domain.FieldID] = normalize(v)
		case strings.HasPrefix(k, "_"):
		default:
			doc[k] = normalize(v)
		}
	}
	return doc
}

func normalize(v any) any {
	switch t := v.(type) {
	case primitive.A:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = normalize(e)
		}
		return out
	case primitive.M:
		out := make(map[string]any, len(t))
		for k, e := range t {
			out[k] = normalize(e)
		}
		return out
	case primitive.D:
		out := make(map[string]any, len(t))
		for _, e := range t {
			out[e.Key] = normalize(e.Value)
		}
		return out
	case primitive.DateTime:
		return t.Time().UTC()
	case primitive.ObjectID:
		return t.Hex()
	case int32:
		return int64(t)
	}
	return v
}
