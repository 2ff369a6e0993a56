package domain

import (
	"fmt"
	"time"
)

// FieldID is the key under which every document carries its own id.
const FieldID = "id"

// Collection names shared by the adapters and use cases.
const (
	CollectionUsers                 = "users"
	CollectionServices              = "services"
	CollectionPromotions            = "promotions"
	CollectionBlogs                 = "blogs"
	CollectionCampaigns             = "campaigns"
	CollectionCampaignSubscriptions = "campaign_subscriptions"
	CollectionCampaignReports       = "campaign_reports"
	CollectionReviews               = "reviews"
	CollectionNotifications         = "notifications"
	CollectionRemovalSagas          = "removal_sagas"
)

// Document is a schemaless record as stored by the external document database.
type Document map[string]any

// ID returns the document key, or "" if it has none.
func (d Document) ID() string {
	return d.String(FieldID)
}

// String returns the field as a string. Non-string scalars are formatted;
// missing fields yield "".
func (d Document) String(field string) string {
	switch v := d[field].(type) {
	case nil:
		return ""
	case string:
		return v
	case fmt.Stringer:
		return v.String()
	case float64, float32, int, int32, int64, bool:
		return fmt.Sprint(v)
	default:
		return ""
	}
}

// Time returns the field as a time, accepting time.Time and RFC 3339 strings.
func (d Document) Time(field string) (time.Time, bool) {
	switch v := d[field].(type) {
	case time.Time:
		return v, true
	case string:
		t, err := time.Parse(time.RFC3339Nano, v)
		return t, err == nil
	default:
		return time.Time{}, false
	}
}

// Int returns the field as an int64, accepting any numeric kind.
func (d Document) Int(field string) int64 {
	f, ok := toFloat(d[field])
	if !ok {
		return 0
	}
	return int64(f)
}

// Coordinates reads a point from two fields. See ParseCoordinate.
func (d Document) Coordinates(latField, lonField string) *GeoPoint {
	return ParseCoordinate(d[latField], d[lonField])
}

// Clone returns a shallow copy.
func (d Document) Clone() Document {
	out := make(Document, len(d))
	for k, v := range d {
		out[k] = v
	}
	return out
}

// Number converts any numeric kind, json.Number or numeric string to float64.
func Number(v any) (float64, bool) {
	return toFloat(v)
}
