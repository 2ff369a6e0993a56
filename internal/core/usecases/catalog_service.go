package usecases

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/halalway/halalway/internal/core/catalog"
	"github.com/halalway/halalway/internal/core/domain"
	"github.com/halalway/halalway/internal/core/ports"
	"github.com/halalway/halalway/internal/pkg/geospatial"
	"github.com/halalway/halalway/internal/pkg/telemetry"
)

// CatalogService assembles the listing screens: services, promotions,
// recommendations and blogs, annotated with distance from the viewer.
type CatalogService struct {
	store ports.DocumentStore
	now   func() time.Time
}

// NewCatalogService creates a new CatalogService.
func NewCatalogService(store ports.DocumentStore) *CatalogService {
	return &CatalogService{store: store, now: time.Now}
}

// ServiceDetail is a service with its reviews.
type ServiceDetail struct {
	domain.Service
	Reviews       []domain.Review `json:"reviews"`
	AverageRating float64         `json:"averageRating"`
}

func serviceLocation(s domain.Service) *domain.GeoPoint         { return s.Location }
func promotionLocation(p domain.PromotionView) *domain.GeoPoint { return p.ShopLocation }
func recommendLocation(r domain.Recommendation) *domain.GeoPoint {
	return r.Location
}

// ListServices returns services, optionally of one category, nearest first.
// With an origin and a positive radiusKm, services farther than the radius or
// without a location are left out.
func (s *CatalogService) ListServices(ctx context.Context, category string, origin *domain.GeoPoint, radiusKm float64) ([]catalog.Annotated[domain.Service], error) {
	ctx, span := telemetry.StartSpan(ctx, "catalog.ListServices")
	defer span.End()

	var (
		docs []domain.Document
		err  error
	)
	if category != "" {
		docs, err = s.store.GetWhere(ctx, domain.CollectionServices, "category", ports.OpEqual, category)
	} else {
		docs, err = s.store.GetAll(ctx, domain.CollectionServices)
	}
	if err != nil {
		return nil, fmt.Errorf("list services: %w", err)
	}

	filterByRadius := origin != nil && radiusKm > 0
	var box domain.Bounds
	if filterByRadius {
		box = geospatial.BoundingBox(*origin, radiusKm)
	}

	services := make([]domain.Service, 0, len(docs))
	for _, d := range docs {
		svc, err := domain.ServiceFromDocument(d)
		if err != nil {
			slog.WarnContext(ctx, "skipping malformed service", "id", d.ID(), "error", err)
			continue
		}
		if filterByRadius && (svc.Location == nil || !box.Contains(*svc.Location)) {
			continue
		}
		services = append(services, svc)
	}

	annotated := catalog.AnnotateAndSort(services, origin, serviceLocation)
	if !filterByRadius {
		return annotated, nil
	}

	within := annotated[:0]
	for _, a := range annotated {
		if a.Known() && a.DistanceValue <= radiusKm {
			within = append(within, a)
		}
	}
	return within, nil
}

// GetService returns one service with its reviews, newest first.
func (s *CatalogService) GetService(ctx context.Context, id string) (*ServiceDetail, error) {
	doc, err := s.store.Get(ctx, domain.CollectionServices, id)
	if err != nil {
		return nil, fmt.Errorf("get service %s: %w", id, err)
	}
	svc, err := domain.ServiceFromDocument(doc)
	if err != nil {
		return nil, err
	}

	reviewDocs, err := s.store.GetWhere(ctx, domain.CollectionReviews, "serviceId", ports.OpEqual, id)
	if err != nil {
		return nil, fmt.Errorf("get reviews for %s: %w", id, err)
	}

	detail := &ServiceDetail{Service: svc, Reviews: make([]domain.Review, 0, len(reviewDocs))}
	var total int
	for _, d := range reviewDocs {
		var r domain.Review
		if err := domain.Decode(d, &r); err != nil {
			slog.WarnContext(ctx, "skipping malformed review", "id", d.ID(), "error", err)
			continue
		}
		r.ID = d.ID()
		detail.Reviews = append(detail.Reviews, r)
		total += r.Rating
	}
	sort.SliceStable(detail.Reviews, func(i, j int) bool {
		return detail.Reviews[i].CreatedAt.After(detail.Reviews[j].CreatedAt)
	})
	if n := len(detail.Reviews); n > 0 {
		detail.AverageRating = float64(total) / float64(n)
	}
	return detail, nil
}

// ListPromotions returns every promotion merged with its shop's display
// fields, nearest shop first.
func (s *CatalogService) ListPromotions(ctx context.Context, origin *domain.GeoPoint) ([]catalog.Annotated[domain.PromotionView], error) {
	ctx, span := telemetry.StartSpan(ctx, "catalog.ListPromotions")
	defer span.End()

	docs, err := s.store.GetAll(ctx, domain.CollectionPromotions)
	if err != nil {
		return nil, fmt.Errorf("list promotions: %w", err)
	}

	refs, err := catalog.ResolveReferences(ctx, s.store, domain.CollectionServices, catalog.Values(docs, "serviceId"))
	if err != nil {
		return nil, err
	}
	merged := catalog.MergeWithReferences(docs, "serviceId", refs, catalog.ShopFields)

	views := make([]domain.PromotionView, 0, len(merged))
	for _, d := range merged {
		var p domain.Promotion
		if err := domain.Decode(d, &p); err != nil {
			slog.WarnContext(ctx, "skipping malformed promotion", "id", d.ID(), "error", err)
			continue
		}
		p.ID = d.ID()
		views = append(views, domain.PromotionView{
			Promotion:    p,
			ShopName:     d.String(catalog.ShopFields.Name()),
			ShopImage:    d.String(catalog.ShopFields.Image()),
			ShopLocation: d.Coordinates(catalog.ShopFields.Latitude(), catalog.ShopFields.Longitude()),
		})
	}

	return catalog.AnnotateAndSort(views, origin, promotionLocation), nil
}

// ListRecommends returns one boosted entry per service with an approved,
// unexpired campaign subscription, nearest first.
func (s *CatalogService) ListRecommends(ctx context.Context, origin *domain.GeoPoint) ([]catalog.Annotated[domain.Recommendation], error) {
	ctx, span := telemetry.StartSpan(ctx, "catalog.ListRecommends")
	defer span.End()

	docs, err := s.store.GetWhere(ctx, domain.CollectionCampaignSubscriptions, "status", ports.OpEqual, domain.SubscriptionApproved)
	if err != nil {
		return nil, fmt.Errorf("list approved subscriptions: %w", err)
	}

	now := s.now()
	active := make([]domain.Document, 0, len(docs))
	for _, d := range docs {
		if end, ok := d.Time("endDate"); ok && end.Before(now) {
			continue
		}
		active = append(active, d)
	}
	active = catalog.DedupeByReference(active, "serviceId")

	refs, err := catalog.ResolveReferences(ctx, s.store, domain.CollectionServices, catalog.Values(active, "serviceId"))
	if err != nil {
		return nil, err
	}
	merged := catalog.MergeWithReferences(active, "serviceId", refs, catalog.ShopFields)

	recs := make([]domain.Recommendation, 0, len(merged))
	for _, d := range merged {
		recs = append(recs, domain.Recommendation{
			SubscriptionID: d.ID(),
			ServiceID:      d.String("serviceId"),
			EntrepreneurID: d.String("entrepreneurId"),
			Name:           d.String(catalog.ShopFields.Name()),
			Image:          d.String(catalog.ShopFields.Image()),
			Location:       d.Coordinates(catalog.ShopFields.Latitude(), catalog.ShopFields.Longitude()),
		})
	}

	return catalog.AnnotateAndSort(recs, origin, recommendLocation), nil
}

// ListBlogs returns blog posts, newest first.
func (s *CatalogService) ListBlogs(ctx context.Context) ([]domain.BlogPost, error) {
	docs, err := s.store.GetAll(ctx, domain.CollectionBlogs)
	if err != nil {
		return nil, fmt.Errorf("list blogs: %w", err)
	}
	posts := make([]domain.BlogPost, 0, len(docs))
	for _, d := range docs {
		var b domain.BlogPost
		if err := domain.Decode(d, &b); err != nil {
			slog.WarnContext(ctx, "skipping malformed blog", "id", d.ID(), "error", err)
			continue
		}
		b.ID = d.ID()
		posts = append(posts, b)
	}
	sort.SliceStable(posts, func(i, j int) bool {
		return posts[i].CreatedAt.After(posts[j].CreatedAt)
	})
	return posts, nil
}

// GetBlog returns a single blog post.
func (s *CatalogService) GetBlog(ctx context.Context, id string) (*domain.BlogPost, error) {
	doc, err := s.store.Get(ctx, domain.CollectionBlogs, id)
	if err != nil {
		return nil, fmt.Errorf("get blog %s: %w", id, err)
	}
	var b domain.BlogPost
	if err := domain.Decode(doc, &b); err != nil {
		return nil, err
	}
	b.ID = doc.ID()
	return &b, nil
}
