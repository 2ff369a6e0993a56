package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/halalway/halalway/internal/core/domain"
	"github.com/halalway/halalway/internal/core/ports"
)

// DocumentStore implements ports.DocumentStore on a single JSONB table.
// Field transforms compile into one INSERT ... ON CONFLICT statement, so
// counters never lose concurrent increments.
type DocumentStore struct {
	db  *DB
	hub *notifyHub
}

// NewDocumentStore creates a new DocumentStore.
func NewDocumentStore(db *DB) *DocumentStore {
	return &DocumentStore{db: db, hub: newNotifyHub(db.listen)}
}

// Close stops the change listener.
func (s *DocumentStore) Close() {
	s.hub.close()
}

func (s *DocumentStore) GetAll(ctx context.Context, collection string) ([]domain.Document, error) {
	return s.query(ctx, `
		SELECT id, data FROM documents
		WHERE collection = $1
		ORDER BY created_at, id
	`, collection)
}

func (s *DocumentStore) Get(ctx context.Context, collection, id string) (domain.Document, error) {
	var data map[string]any
	err := s.db.Pool.QueryRow(ctx,
		`SELECT data FROM documents WHERE collection = $1 AND id = $2`, collection, id,
	).Scan(&data)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%s/%s: %w", collection, id, domain.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get %s/%s: %w", collection, id, err)
	}
	return withID(data, id), nil
}

func (s *DocumentStore) GetWhere(ctx context.Context, collection, field string, op ports.Op, value any) ([]domain.Document, error) {
	cond, args, err := whereClause(field, op, value, 2)
	if err != nil {
		return nil, err
	}
	return s.query(ctx, `
		SELECT id, data FROM documents
		WHERE collection = $1 AND `+cond+`
		ORDER BY created_at, id
	`, append([]any{collection}, args...)...)
}

func (s *DocumentStore) GetWhereIn(ctx context.Context, collection, field string, values []string) ([]domain.Document, error) {
	if len(values) > ports.MaxInValues {
		return nil, fmt.Errorf("%d values: %w", len(values), domain.ErrTooManyValues)
	}
	if len(values) == 0 {
		return nil, nil
	}
	if field == domain.FieldID {
		return s.query(ctx, `
			SELECT id, data FROM documents
			WHERE collection = $1 AND id = ANY($2)
			ORDER BY created_at, id
		`, collection, values)
	}
	return s.query(ctx, `
		SELECT id, data FROM documents
		WHERE collection = $1 AND data->>$2::text = ANY($3)
		ORDER BY created_at, id
	`, collection, field, values)
}

func (s *DocumentStore) Add(ctx context.Context, collection string, fields domain.Document) (string, error) {
	id := uuid.NewString()
	p, err := compilePatch(fields, 3)
	if err != nil {
		return "", err
	}
	_, err = s.db.Pool.Exec(ctx,
		`INSERT INTO documents (collection, id, data) VALUES ($1, $2, `+p.insert+`)`,
		append([]any{collection, id}, p.args...)...,
	)
	if err != nil {
		return "", fmt.Errorf("add to %s: %w", collection, err)
	}
	return id, nil
}

func (s *DocumentStore) Update(ctx context.Context, collection, id string, fields domain.Document) error {
	// Create-only writes never apply to an existing row.
	existingOnly := make(domain.Document, len(fields))
	for k, v := range fields {
		if _, ok := v.(ports.SetOnInsertValue); !ok {
			existingOnly[k] = v
		}
	}
	p, err := compilePatch(existingOnly, 3)
	if err != nil {
		return err
	}
	tag, err := s.db.Pool.Exec(ctx, `
		UPDATE documents SET data = `+p.update+`, updated_at = now()
		WHERE collection = $1 AND id = $2
	`, append([]any{collection, id}, p.args...)...)
	if err != nil {
		return fmt.Errorf("update %s/%s: %w", collection, id, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%s/%s: %w", collection, id, domain.ErrNotFound)
	}
	return nil
}

func (s *DocumentStore) Merge(ctx context.Context, collection, id string, fields domain.Document) error {
	p, err := compilePatch(fields, 3)
	if err != nil {
		return err
	}
	_, err = s.db.Pool.Exec(ctx, `
		INSERT INTO documents (collection, id, data) VALUES ($1, $2, `+p.insert+`)
		ON CONFLICT (collection, id) DO UPDATE
		SET data = `+p.update+`, updated_at = now()
	`, append([]any{collection, id}, p.args...)...)
	if err != nil {
		return fmt.Errorf("merge %s/%s: %w", collection, id, err)
	}
	return nil
}

func (s *DocumentStore) Delete(ctx context.Context, collection, id string) error {
	_, err := s.db.Pool.Exec(ctx, `DELETE FROM documents WHERE collection = $1 AND id = $2`, collection, id)
	if err != nil {
		return fmt.Errorf("delete %s/%s: %w", collection, id, err)
	}
	return nil
}

// Watch re-runs q whenever a row of q.Collection changes, as signalled by
// the documents_notify trigger.
func (s *DocumentStore) Watch(ctx context.Context, q ports.Query, onChange func([]domain.Document)) (func(), error) {
	load := func(ctx context.Context) ([]domain.Document, error) {
		if q.Field == "" {
			return s.GetAll(ctx, q.Collection)
		}
		return s.GetWhere(ctx, q.Collection, q.Field, q.Op, q.Value)
	}

	initial, err := load(ctx)
	if err != nil {
		return nil, err
	}
	if err := s.hub.start(); err != nil {
		return nil, err
	}

	watchCtx, cancel := context.WithCancel(ctx)
	changes := s.hub.subscribe(q.Collection)
	onChange(initial)

	go func() {
		defer s.hub.unsubscribe(q.Collection, changes)
		for {
			select {
			case <-watchCtx.Done():
				return
			case <-changes:
				docs, err := load(watchCtx)
				if err != nil {
					if watchCtx.Err() == nil {
						logWatchError(watchCtx, q, err)
					}
					continue
				}
				onChange(docs)
			}
		}
	}()
	return cancel, nil
}

func (s *DocumentStore) query(ctx context.Context, sql string, args ...any) ([]domain.Document, error) {
	rows, err := s.db.Pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("query documents: %w", err)
	}
	defer rows.Close()

	docs := make([]domain.Document, 0)
	for rows.Next() {
		var (
			id   string
			data map[string]any
		)
		if err := rows.Scan(&id, &data); err != nil {
			return nil, fmt.Errorf("scan document: %w", err)
		}
		docs = append(docs, withID(data, id))
	}
	return docs, rows.Err()
}

func withID(data map[string]any, id string) domain.Document {
	doc := domain.Document(data)
	if doc == nil {
		doc = domain.Document{}
	}
	doc[domain.FieldID] = id
	return doc
}

// whereClause compiles a single-field filter. Parameters start at $first.
// Documents missing the field never match.
func whereClause(field string, op ports.Op, value any, first int) (string, []any, error) {
	f := fmt.Sprintf("$%d::text", first)
	v := fmt.Sprintf("$%d", first+1)

	if field == domain.FieldID && (op == ports.OpEqual || op == ports.OpNotEqual) {
		id, ok := value.(string)
		if !ok {
			return "", nil, fmt.Errorf("id filter needs a string: %w", domain.ErrInvalidInput)
		}
		cmp := "="
		if op == ports.OpNotEqual {
			cmp = "<>"
		}
		return fmt.Sprintf("id %s $%d", cmp, first), []any{id}, nil
	}

	switch op {
	case ports.OpArrayContains:
		elem, err := json.Marshal([]any{jsonValue(value)})
		if err != nil {
			return "", nil, err
		}
		return fmt.Sprintf("jsonb_typeof(data->%s) = 'array' AND data->%s @> %s::jsonb", f, f, v),
			[]any{field, string(elem)}, nil
	case ports.OpEqual, ports.OpNotEqual:
		raw, err := json.Marshal(jsonValue(value))
		if err != nil {
			return "", nil, err
		}
		cmp := "="
		if op == ports.OpNotEqual {
			cmp = "<>"
		}
		return fmt.Sprintf("data ? %s AND data->%s %s %s::jsonb", f, f, cmp, v),
			[]any{field, string(raw)}, nil
	case ports.OpLess, ports.OpLessEqual, ports.OpGreater, ports.OpGreaterEqual:
		if n, ok := numeric(value); ok {
			return fmt.Sprintf("(CASE WHEN jsonb_typeof(data->%s) = 'number' THEN (data->>%s)::numeric END) %s %s::numeric",
				f, f, string(op), v), []any{field, n}, nil
		}
		s, ok := jsonValue(value).(string)
		if !ok {
			return "", nil, fmt.Errorf("cannot order by %T: %w", value, domain.ErrInvalidInput)
		}
		return fmt.Sprintf("(CASE WHEN jsonb_typeof(data->%s) = 'string' THEN data->>%s END) %s %s::text",
			f, f, string(op), v), []any{field, s}, nil
	default:
		return "", nil, fmt.Errorf("unsupported operator %q: %w", op, domain.ErrInvalidInput)
	}
}

// jsonValue normalizes values to what encoding/json stores: times become
// RFC 3339 strings so they compare lexically.
func jsonValue(v any) any {
	if t, ok := v.(time.Time); ok {
		return t.UTC().Format(time.RFC3339Nano)
	}
	return v
}

func numeric(v any) (float64, bool) {
	switch v.(type) {
	case string, nil, bool:
		return 0, false
	}
	return domain.Number(v)
}

// patch is a compiled set of field writes.
type patch struct {
	insert string
	update string
	args   []any
}

// compilePatch turns fields (possibly holding transforms) into an insert
// expression and an update expression over documents.data. Parameters are
// numbered from $first.
func compilePatch(fields domain.Document, first int) (patch, error) {
	var (
		p          patch
		insert     []string
		update     []string
		plain      = map[string]any{}
		insertOnly = map[string]any{}
	)
	next := func(v any) string {
		p.args = append(p.args, v)
		return fmt.Sprintf("$%d", first+len(p.args)-1)
	}

	for k, v := range fields {
		if k == domain.FieldID {
			continue
		}
		switch t := v.(type) {
		case ports.ServerTimestampValue:
			expr := fmt.Sprintf("jsonb_build_object(%s::text, to_jsonb(now()))", next(k))
			insert = append(insert, expr)
			update = append(update, expr)
		case ports.IncrementValue:
			key := next(k)
			n := next(t.N)
			insert = append(insert, fmt.Sprintf("jsonb_build_object(%s::text, %s::bigint)", key, n))
			update = append(update, fmt.Sprintf(
				"jsonb_build_object(%[1]s::text, COALESCE(CASE WHEN jsonb_typeof(documents.data->%[1]s::text) = 'number' THEN (documents.data->>%[1]s::text)::numeric END, 0) + %[2]s::bigint)",
				key, n))
		case ports.SetOnInsertValue:
			if _, ok := t.Value.(ports.ServerTimestampValue); ok {
				insert = append(insert, fmt.Sprintf("jsonb_build_object(%s::text, to_jsonb(now()))", next(k)))
			} else {
				insertOnly[k] = jsonValue(t.Value)
			}
		default:
			plain[k] = jsonValue(v)
		}
	}

	if len(plain) > 0 {
		raw, err := json.Marshal(plain)
		if err != nil {
			return patch{}, fmt.Errorf("encode fields: %w", err)
		}
		ref := next(string(raw)) + "::jsonb"
		insert = append(insert, ref)
		update = append(update, ref)
	}
	if len(insertOnly) > 0 {
		raw, err := json.Marshal(insertOnly)
		if err != nil {
			return patch{}, fmt.Errorf("encode fields: %w", err)
		}
		insert = append(insert, next(string(raw))+"::jsonb")
	}

	p.insert = strings.Join(append([]string{"'{}'::jsonb"}, insert...), " || ")
	p.update = strings.Join(append([]string{"documents.data"}, update...), " || ")
	return p, nil
}
