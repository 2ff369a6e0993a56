package domain

import "strings"

// EngagementType is the kind of interaction with a recommended listing.
type EngagementType string

const (
	EngagementImpression EngagementType = "impression"
	EngagementClick      EngagementType = "click"
	EngagementConversion EngagementType = "conversion"
)

// CounterField returns the report field incremented for this type,
// or "" for an unknown type.
func (t EngagementType) CounterField() string {
	switch t {
	case EngagementImpression:
		return "impressions"
	case EngagementClick:
		return "clicks"
	case EngagementConversion:
		return "conversions"
	default:
		return ""
	}
}

// EngagementEvent is emitted by the rendering layer when a recommendation
// card is shown, tapped or converted.
type EngagementEvent struct {
	CampaignID     string         `json:"campaignId" form:"campaignId"`
	ServiceID      string         `json:"serviceId" form:"serviceId"`
	EntrepreneurID string         `json:"entrepreneurId" form:"entrepreneurId"`
	Type           EngagementType `json:"type" form:"type"`
}

// Clone returns a copy of e that shares no bytes with it, for handing the
// event to a goroutine that outlives the request it was decoded from.
func (e EngagementEvent) Clone() EngagementEvent {
	return EngagementEvent{
		CampaignID:     strings.Clone(e.CampaignID),
		ServiceID:      strings.Clone(e.ServiceID),
		EntrepreneurID: strings.Clone(e.EntrepreneurID),
		Type:           EngagementType(strings.Clone(string(e.Type))),
	}
}

// Valid reports whether every attribution field is present and the type is known.
func (e EngagementEvent) Valid() bool {
	return e.CampaignID != "" && e.ServiceID != "" && e.EntrepreneurID != "" && e.Type.CounterField() != ""
}
