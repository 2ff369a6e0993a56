package ports

import (
	"context"

	"github.com/halalway/halalway/internal/core/domain"
)

// Op is a comparison operator used in GetWhere and Watch queries.
type Op string

const (
	OpEqual         Op = "=="
	OpNotEqual      Op = "!="
	OpLess          Op = "<"
	OpLessEqual     Op = "<="
	OpGreater       Op = ">"
	OpGreaterEqual  Op = ">="
	OpArrayContains Op = "array-contains"
)

// MaxInValues is the platform limit on values accepted by a single IN query.
const MaxInValues = 10

// Query selects documents of one collection. An empty Field selects all.
type Query struct {
	Collection string
	Field      string
	Op         Op
	Value      any
}

// DocumentStore is the generic key-document database the application is built on.
// Every returned document carries its key under domain.FieldID.
type DocumentStore interface {
	GetAll(ctx context.Context, collection string) ([]domain.Document, error)
	// Get returns domain.ErrNotFound when the document does not exist.
	Get(ctx context.Context, collection, id string) (domain.Document, error)
	GetWhere(ctx context.Context, collection, field string, op Op, value any) ([]domain.Document, error)
	// GetWhereIn accepts at most MaxInValues values and returns
	// domain.ErrTooManyValues otherwise. field may be domain.FieldID.
	GetWhereIn(ctx context.Context, collection, field string, values []string) ([]domain.Document, error)
	Add(ctx context.Context, collection string, fields domain.Document) (string, error)
	// Update modifies an existing document; domain.ErrNotFound if missing.
	Update(ctx context.Context, collection, id string, fields domain.Document) error
	// Merge upserts: creates the document when missing, merges fields otherwise.
	Merge(ctx context.Context, collection, id string, fields domain.Document) error
	// Delete is a no-op for a missing document.
	Delete(ctx context.Context, collection, id string) error
	// Watch calls onChange with the full result set once immediately and
	// after every change, until the returned function is called or ctx ends.
	Watch(ctx context.Context, q Query, onChange func([]domain.Document)) (unsubscribe func(), err error)
}
