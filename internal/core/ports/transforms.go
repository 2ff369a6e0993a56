package ports

// Field transforms are values placed in Update/Merge field maps that the
// store resolves atomically on its side instead of writing them verbatim.

// ServerTimestampValue is replaced by the store's current time.
type ServerTimestampValue struct{}

// IncrementValue adds N to the existing numeric field (missing counts as 0).
type IncrementValue struct {
	N int64
}

// SetOnInsertValue writes Value only when the document is created by the
// write. Existing documents keep their current field value. Value may be
// ServerTimestamp().
type SetOnInsertValue struct {
	Value any
}

// ServerTimestamp returns the server-time transform.
func ServerTimestamp() ServerTimestampValue { return ServerTimestampValue{} }

// Increment returns an atomic increment transform.
func Increment(n int64) IncrementValue { return IncrementValue{N: n} }

// SetOnInsert returns a create-only transform.
func SetOnInsert(v any) SetOnInsertValue { return SetOnInsertValue{Value: v} }
