package catalog

import (
	"context"
	"fmt"

	"github.com/halalway/halalway/internal/core/domain"
	"github.com/halalway/halalway/internal/core/ports"
	"github.com/halalway/halalway/internal/pkg/metrics"
)

// MaxInQuery is the largest id batch the store accepts in one IN lookup.
const MaxInQuery = ports.MaxInValues

// InLookup is the subset of ports.DocumentStore needed to resolve references.
type InLookup interface {
	GetWhereIn(ctx context.Context, collection, field string, values []string) ([]domain.Document, error)
}

// UniqueIDs drops empty ids and duplicates, keeping first-seen order.
func UniqueIDs(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

// Chunk splits ids into consecutive groups of at most size elements.
func Chunk(ids []string, size int) [][]string {
	if size <= 0 {
		size = MaxInQuery
	}
	var chunks [][]string
	for start := 0; start < len(ids); start += size {
		end := start + size
		if end > len(ids) {
			end = len(ids)
		}
		chunks = append(chunks, ids[start:end])
	}
	return chunks
}

// ResolveReferences looks up the documents for ids in collection, issuing one
// IN query per chunk of at most MaxInQuery ids. Ids without a document are
// simply absent from the result; callers treat that as a broken reference.
func ResolveReferences(ctx context.Context, store InLookup, collection string, ids []string) (map[string]domain.Document, error) {
	unique := UniqueIDs(ids)
	refs := make(map[string]domain.Document, len(unique))

	for _, chunk := range Chunk(unique, MaxInQuery) {
		docs, err := store.GetWhereIn(ctx, collection, domain.FieldID, chunk)
		metrics.ReferenceLookups.WithLabelValues(collection).Inc()
		if err != nil {
			return nil, fmt.Errorf("resolve %s references: %w", collection, err)
		}
		for _, d := range docs {
			if id := d.ID(); id != "" {
				refs[id] = d
			}
		}
	}
	return refs, nil
}

// Values collects field from every record, in order.
func Values(records []domain.Document, field string) []string {
	out := make([]string, 0, len(records))
	for _, r := range records {
		out = append(out, r.String(field))
	}
	return out
}

// ReferenceFields names the display fields copied from a referenced entity.
type ReferenceFields struct {
	Prefix string
}

// ShopFields is the naming used when a record references a service.
var ShopFields = ReferenceFields{Prefix: "shop"}

func (f ReferenceFields) Name() string      { return f.Prefix + "Name" }
func (f ReferenceFields) Image() string     { return f.Prefix + "Image" }
func (f ReferenceFields) Latitude() string  { return f.Prefix + "Latitude" }
func (f ReferenceFields) Longitude() string { return f.Prefix + "Longitude" }

// MergeWithReferences returns copies of records with the referenced entity's
// name, image and coordinates merged under the prefixed field names.
// A broken reference yields empty strings for all four fields.
// The original records are not modified.
func MergeWithReferences(records []domain.Document, refField string, refs map[string]domain.Document, fields ReferenceFields) []domain.Document {
	out := make([]domain.Document, len(records))
	for i, r := range records {
		merged := r.Clone()
		merged[fields.Name()] = ""
		merged[fields.Image()] = ""
		merged[fields.Latitude()] = ""
		merged[fields.Longitude()] = ""

		if ref, ok := refs[r.String(refField)]; ok {
			merged[fields.Name()] = ref.String("name")
			merged[fields.Image()] = ref.String("image")
			if v, ok := ref["latitude"]; ok && v != nil {
				merged[fields.Latitude()] = v
			}
			if v, ok := ref["longitude"]; ok && v != nil {
				merged[fields.Longitude()] = v
			}
		}
		out[i] = merged
	}
	return out
}

// DedupeByReference keeps the first record for each distinct reference id,
// preserving order. Records with an empty reference are dropped.
func DedupeByReference(records []domain.Document, refField string) []domain.Document {
	seen := make(map[string]struct{}, len(records))
	out := make([]domain.Document, 0, len(records))
	for _, r := range records {
		ref := r.String(refField)
		if ref == "" {
			continue
		}
		if _, ok := seen[ref]; ok {
			continue
		}
		seen[ref] = struct{}{}
		out = append(out, r)
	}
	return out
}
