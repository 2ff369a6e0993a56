package usecases

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"path"
	"strings"
	"time"

	"github.com/halalway/halalway/internal/core/domain"
	"github.com/halalway/halalway/internal/core/ports"
)

// SubscriptionService handles the campaign purchase lifecycle: an
// entrepreneur subscribes a service, uploads a payment slip, and an admin
// approves or rejects it. Approved subscriptions appear in Recommends.
type SubscriptionService struct {
	store   ports.DocumentStore
	storage ports.ObjectStorage
	reports *EngagementRecorder
	now     func() time.Time
}

// NewSubscriptionService creates a new SubscriptionService. storage may be
// nil, in which case slip uploads are rejected.
func NewSubscriptionService(store ports.DocumentStore, storage ports.ObjectStorage, reports *EngagementRecorder) *SubscriptionService {
	return &SubscriptionService{store: store, storage: storage, reports: reports, now: time.Now}
}

// Subscribe creates a pending subscription of serviceID to campaignID.
// The service must belong to entrepreneurID.
func (s *SubscriptionService) Subscribe(ctx context.Context, entrepreneurID, campaignID, serviceID string) (*domain.CampaignSubscription, error) {
	if entrepreneurID == "" || campaignID == "" || serviceID == "" {
		return nil, fmt.Errorf("entrepreneurId, campaignId and serviceId are required: %w", domain.ErrInvalidInput)
	}
	if _, err := s.store.Get(ctx, domain.CollectionCampaigns, campaignID); err != nil {
		return nil, fmt.Errorf("campaign %s: %w", campaignID, err)
	}
	svc, err := s.store.Get(ctx, domain.CollectionServices, serviceID)
	if err != nil {
		return nil, fmt.Errorf("service %s: %w", serviceID, err)
	}
	if svc.String("entrepreneurId") != entrepreneurID {
		return nil, fmt.Errorf("service %s: %w", serviceID, domain.ErrForbidden)
	}

	now := s.now().UTC()
	id, err := s.store.Add(ctx, domain.CollectionCampaignSubscriptions, domain.Document{
		"campaignId":     campaignID,
		"serviceId":      serviceID,
		"entrepreneurId": entrepreneurID,
		"status":         domain.SubscriptionPending,
		"createdAt":      now,
	})
	if err != nil {
		return nil, fmt.Errorf("create subscription: %w", err)
	}
	return &domain.CampaignSubscription{
		ID:             id,
		CampaignID:     campaignID,
		ServiceID:      serviceID,
		EntrepreneurID: entrepreneurID,
		Status:         domain.SubscriptionPending,
		CreatedAt:      now,
	}, nil
}

// Get returns one subscription.
func (s *SubscriptionService) Get(ctx context.Context, id string) (*domain.CampaignSubscription, error) {
	doc, err := s.store.Get(ctx, domain.CollectionCampaignSubscriptions, id)
	if err != nil {
		return nil, fmt.Errorf("subscription %s: %w", id, err)
	}
	return subscriptionFromDocument(doc)
}

// ListByEntrepreneur returns every subscription an entrepreneur owns.
func (s *SubscriptionService) ListByEntrepreneur(ctx context.Context, entrepreneurID string) ([]domain.CampaignSubscription, error) {
	return s.list(ctx, "entrepreneurId", entrepreneurID)
}

// ListPending returns subscriptions waiting for an admin decision.
func (s *SubscriptionService) ListPending(ctx context.Context) ([]domain.CampaignSubscription, error) {
	return s.list(ctx, "status", domain.SubscriptionPending)
}

func (s *SubscriptionService) list(ctx context.Context, field, value string) ([]domain.CampaignSubscription, error) {
	docs, err := s.store.GetWhere(ctx, domain.CollectionCampaignSubscriptions, field, ports.OpEqual, value)
	if err != nil {
		return nil, fmt.Errorf("list subscriptions: %w", err)
	}
	out := make([]domain.CampaignSubscription, 0, len(docs))
	for _, d := range docs {
		sub, err := subscriptionFromDocument(d)
		if err != nil {
			slog.WarnContext(ctx, "skipping malformed subscription", "id", d.ID(), "error", err)
			continue
		}
		out = append(out, *sub)
	}
	return out, nil
}

// UploadSlip stores the payment slip and links it to the subscription.
func (s *SubscriptionService) UploadSlip(ctx context.Context, entrepreneurID, subscriptionID, filename, contentType string, body io.Reader) (string, error) {
	if s.storage == nil {
		return "", fmt.Errorf("object storage not configured")
	}
	sub, err := s.Get(ctx, subscriptionID)
	if err != nil {
		return "", err
	}
	if sub.EntrepreneurID != entrepreneurID {
		return "", fmt.Errorf("subscription %s: %w", subscriptionID, domain.ErrForbidden)
	}
	if sub.Status != domain.SubscriptionPending {
		return "", fmt.Errorf("subscription %s is %s: %w", subscriptionID, sub.Status, domain.ErrInvalidInput)
	}

	name := path.Base(strings.ReplaceAll(filename, "\\", "/"))
	if name == "." || name == "/" || name == "" {
		name = "slip"
	}
	key := path.Join("slips", subscriptionID, name)

	url, err := s.storage.Upload(ctx, key, contentType, body)
	if err != nil {
		return "", fmt.Errorf("upload slip: %w", err)
	}
	if err := s.store.Update(ctx, domain.CollectionCampaignSubscriptions, subscriptionID, domain.Document{
		"slipUrl":   url,
		"updatedAt": ports.ServerTimestamp(),
	}); err != nil {
		return "", fmt.Errorf("link slip: %w", err)
	}
	return url, nil
}

// Approve activates a pending subscription for the campaign's duration and
// notifies the entrepreneur.
func (s *SubscriptionService) Approve(ctx context.Context, subscriptionID string) (*domain.CampaignSubscription, error) {
	sub, err := s.Get(ctx, subscriptionID)
	if err != nil {
		return nil, err
	}
	if sub.Status != domain.SubscriptionPending {
		return nil, fmt.Errorf("subscription %s is %s: %w", subscriptionID, sub.Status, domain.ErrInvalidInput)
	}

	campDoc, err := s.store.Get(ctx, domain.CollectionCampaigns, sub.CampaignID)
	if err != nil {
		return nil, fmt.Errorf("campaign %s: %w", sub.CampaignID, err)
	}
	var camp domain.Campaign
	if err := domain.Decode(campDoc, &camp); err != nil {
		return nil, err
	}

	start := s.now().UTC()
	end := start.AddDate(0, 0, camp.DurationDays)
	if err := s.store.Update(ctx, domain.CollectionCampaignSubscriptions, subscriptionID, domain.Document{
		"status":    domain.SubscriptionApproved,
		"startDate": start,
		"endDate":   end,
		"updatedAt": ports.ServerTimestamp(),
	}); err != nil {
		return nil, fmt.Errorf("approve subscription: %w", err)
	}
	sub.Status = domain.SubscriptionApproved
	sub.StartDate = &start
	sub.EndDate = &end

	s.notify(ctx, sub.EntrepreneurID, "Campaign approved",
		fmt.Sprintf("Your %s campaign runs until %s.", camp.Name, end.Format("2 Jan 2006")))
	return sub, nil
}

// Reject declines a pending subscription.
func (s *SubscriptionService) Reject(ctx context.Context, subscriptionID, reason string) (*domain.CampaignSubscription, error) {
	sub, err := s.Get(ctx, subscriptionID)
	if err != nil {
		return nil, err
	}
	if sub.Status != domain.SubscriptionPending {
		return nil, fmt.Errorf("subscription %s is %s: %w", subscriptionID, sub.Status, domain.ErrInvalidInput)
	}
	if err := s.store.Update(ctx, domain.CollectionCampaignSubscriptions, subscriptionID, domain.Document{
		"status":       domain.SubscriptionRejected,
		"rejectReason": reason,
		"updatedAt":    ports.ServerTimestamp(),
	}); err != nil {
		return nil, fmt.Errorf("reject subscription: %w", err)
	}
	sub.Status = domain.SubscriptionRejected

	body := "Your campaign subscription was rejected."
	if reason != "" {
		body += " " + reason
	}
	s.notify(ctx, sub.EntrepreneurID, "Campaign rejected", body)
	return sub, nil
}

// Report returns the engagement counters of a subscription. Only its owner
// and admins may read it.
func (s *SubscriptionService) Report(ctx context.Context, requesterID string, role domain.Role, subscriptionID string) (*domain.CampaignReport, error) {
	sub, err := s.Get(ctx, subscriptionID)
	if err != nil {
		return nil, err
	}
	if role != domain.RoleAdmin && sub.EntrepreneurID != requesterID {
		return nil, fmt.Errorf("report %s: %w", subscriptionID, domain.ErrForbidden)
	}
	rep, err := s.reports.Report(ctx, subscriptionID)
	if err != nil {
		return nil, err
	}
	if rep.ServiceID == "" {
		rep.ServiceID = sub.ServiceID
		rep.EntrepreneurID = sub.EntrepreneurID
	}
	return rep, nil
}

func (s *SubscriptionService) notify(ctx context.Context, userID, title, body string) {
	if _, err := s.store.Add(ctx, domain.CollectionNotifications, domain.Document{
		"userId":    userID,
		"title":     title,
		"body":      body,
		"read":      false,
		"createdAt": s.now().UTC(),
	}); err != nil {
		slog.WarnContext(ctx, "notification not stored", "user_id", userID, "error", err)
	}
}

func subscriptionFromDocument(doc domain.Document) (*domain.CampaignSubscription, error) {
	var sub domain.CampaignSubscription
	if err := domain.Decode(doc, &sub); err != nil {
		return nil, err
	}
	sub.ID = doc.ID()
	return &sub, nil
}
