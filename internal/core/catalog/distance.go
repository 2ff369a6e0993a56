// Package catalog holds the shared, stateless pieces every listing screen
// needs: proximity annotation and foreign-key resolution.
package catalog

import (
	"fmt"
	"math"
	"sort"

	"github.com/halalway/halalway/internal/core/domain"
	"github.com/halalway/halalway/internal/pkg/geospatial"
)

// UnknownDistance is the label shown when a distance cannot be computed.
const UnknownDistance = "-"

// Annotated wraps an item with its distance from the viewer.
type Annotated[T any] struct {
	Item T `json:"item"`
	// DistanceValue is +Inf when unknown; kept out of JSON since Inf is not encodable.
	DistanceValue float64  `json:"-"`
	DistanceKm    *float64 `json:"distanceKm,omitempty"`
	Distance      string   `json:"distance"`
}

// Known reports whether a numeric distance was computed.
func (a Annotated[T]) Known() bool {
	return a.DistanceKm != nil
}

// FormatKm renders a distance the way the listing cards show it.
func FormatKm(km float64) string {
	return fmt.Sprintf("%.2f km", km)
}

// AnnotateAndSort computes each item's distance from origin and returns a new
// slice sorted nearest first. Items without a usable location get +Inf and
// the "-" label and keep their relative order at the end. With a nil origin
// the items come back in their original order, all labelled "-".
// The input slice is never modified.
func AnnotateAndSort[T any](items []T, origin *domain.GeoPoint, locate func(T) *domain.GeoPoint) []Annotated[T] {
	out := make([]Annotated[T], len(items))
	for i, it := range items {
		out[i] = Annotated[T]{Item: it, DistanceValue: math.Inf(1), Distance: UnknownDistance}
	}
	if origin == nil || !origin.Valid() {
		return out
	}

	for i := range out {
		loc := locate(out[i].Item)
		if loc == nil {
			continue
		}
		km, err := geospatial.DistanceKm(*origin, *loc)
		if err != nil {
			continue
		}
		v := km
		out[i].DistanceValue = km
		out[i].DistanceKm = &v
		out[i].Distance = FormatKm(km)
	}

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].DistanceValue < out[j].DistanceValue
	})
	return out
}

// Items unwraps the annotated slice.
func Items[T any](annotated []Annotated[T]) []T {
	out := make([]T, len(annotated))
	for i, a := range annotated {
		out[i] = a.Item
	}
	return out
}
