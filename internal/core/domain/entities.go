package domain

import (
	"time"
)

// User is an account record; Role drives which route tree the client mounts.
type User struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	Name      string    `json:"name"`
	Role      Role      `json:"role"`
	Image     string    `json:"image,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}

// Service is a catalog entry (restaurant, salon, hotel, mosque, prayer space...).
type Service struct {
	ID             string    `json:"id"`
	Name           string    `json:"name"`
	Category       string    `json:"category"`
	Description    string    `json:"description,omitempty"`
	Image          string    `json:"image"`
	Images         []string  `json:"images,omitempty"`
	Address        string    `json:"address,omitempty"`
	Phone          string    `json:"phone,omitempty"`
	OpeningHours   string    `json:"openingHours,omitempty"`
	EntrepreneurID string    `json:"entrepreneurId"`
	Status         string    `json:"status,omitempty"`
	Location       *GeoPoint `json:"location,omitempty"` // from latitude/longitude
	CreatedAt      time.Time `json:"createdAt"`
}

// Promotion is a discount offer, optionally linked to a Service.
type Promotion struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description,omitempty"`
	Discount    string    `json:"discount"`
	Image       string    `json:"image"`
	ServiceID   string    `json:"serviceId"`
	StartDate   time.Time `json:"startDate"`
	EndDate     time.Time `json:"endDate"`
	CreatedAt   time.Time `json:"createdAt"`
}

// PromotionView is a promotion merged with its shop's display fields.
type PromotionView struct {
	Promotion
	ShopName     string    `json:"shopName"`
	ShopImage    string    `json:"shopImage"`
	ShopLocation *GeoPoint `json:"shopLocation,omitempty"`
}

// BlogPost is an editorial article.
type BlogPost struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Content   string    `json:"content"`
	Image     string    `json:"image"`
	AuthorID  string    `json:"authorId"`
	CreatedAt time.Time `json:"createdAt"`
}

// Campaign is a paid visibility package defined by admins.
type Campaign struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	Description  string    `json:"description,omitempty"`
	Price        float64   `json:"price"`
	DurationDays int       `json:"durationDays"`
	CreatedAt    time.Time `json:"createdAt"`
}

// Subscription statuses.
const (
	SubscriptionPending  = "pending"
	SubscriptionApproved = "approved"
	SubscriptionRejected = "rejected"
)

// CampaignSubscription is an entrepreneur's purchase of a Campaign for one Service.
// Its ID is the campaign identity used for engagement reports.
type CampaignSubscription struct {
	ID             string     `json:"id"`
	CampaignID     string     `json:"campaignId"`
	ServiceID      string     `json:"serviceId"`
	EntrepreneurID string     `json:"entrepreneurId"`
	SlipURL        string     `json:"slipUrl,omitempty"`
	Status         string     `json:"status"`
	StartDate      *time.Time `json:"startDate,omitempty"`
	EndDate        *time.Time `json:"endDate,omitempty"`
	CreatedAt      time.Time  `json:"createdAt"`
}

// Recommendation is a boosted service shown in the Recommends section.
//
// SubscriptionID is the approved campaign subscription behind the boost. It
// is the key engagement events and campaign reports are recorded under.
type Recommendation struct {
	SubscriptionID string    `json:"subscriptionId"`
	ServiceID      string    `json:"serviceId"`
	EntrepreneurID string    `json:"entrepreneurId"`
	Name           string    `json:"name"`
	Image          string    `json:"image"`
	Location       *GeoPoint `json:"location,omitempty"`
}

// CampaignReport accumulates engagement counters for one campaign.
type CampaignReport struct {
	CampaignID     string    `json:"campaignId"`
	ServiceID      string    `json:"serviceId"`
	EntrepreneurID string    `json:"entrepreneurId"`
	Impressions    int64     `json:"impressions"`
	Clicks         int64     `json:"clicks"`
	Conversions    int64     `json:"conversions"`
	CreatedAt      time.Time `json:"createdAt"`
	UpdatedAt      time.Time `json:"updatedAt"`
}

// Review is a user's rating of a service.
type Review struct {
	ID        string    `json:"id"`
	ServiceID string    `json:"serviceId"`
	UserID    string    `json:"userId"`
	Rating    int       `json:"rating"`
	Comment   string    `json:"comment,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}

// Notification is an in-app message for a single user.
type Notification struct {
	ID        string    `json:"id"`
	UserID    string    `json:"userId"`
	Title     string    `json:"title"`
	Body      string    `json:"body"`
	Read      bool      `json:"read"`
	CreatedAt time.Time `json:"createdAt"`
}
