package http

import (
	"errors"
	"fmt"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/halalway/halalway/internal/core/domain"
)

const maxRadiusKm = 500

// originFromQuery reads the device location. Both params absent means the
// location is unavailable; anything else must be a valid coordinate pair.
func originFromQuery(c *fiber.Ctx) (*domain.GeoPoint, error) {
	lat, lon := c.Query("lat"), c.Query("lon")
	if lat == "" && lon == "" {
		return nil, nil
	}
	p := domain.ParseCoordinate(lat, lon)
	if p == nil {
		return nil, fmt.Errorf("lat and lon must be a valid coordinate pair: %w", domain.ErrInvalidInput)
	}
	return p, nil
}

// ListServicesHandler returns services nearest first.
func ListServicesHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		origin, err := originFromQuery(c)
		if err != nil {
			return errBadRequest(c, err.Error())
		}
		radius := c.QueryFloat("radius", 0)
		if radius < 0 || radius > maxRadiusKm {
			return errBadRequest(c, fmt.Sprintf("radius must be between 0 and %d km", maxRadiusKm))
		}
		if radius > 0 && origin == nil {
			return errBadRequest(c, "radius requires lat and lon")
		}

		services, err := deps.Catalog.ListServices(c.UserContext(), c.Query("category"), origin, radius)
		if err != nil {
			return errorFor(c, err, "services")
		}
		return paginate(c, services, 200)
	}
}

// GetServiceHandler returns one service with its reviews.
func GetServiceHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		svc, err := deps.Catalog.GetService(c.UserContext(), c.Params("id"))
		if err != nil {
			return errorFor(c, err, "service")
		}
		return c.JSON(svc)
	}
}

// ListPromotionsHandler returns promotions merged with their shop, nearest first.
func ListPromotionsHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		origin, err := originFromQuery(c)
		if err != nil {
			return errBadRequest(c, err.Error())
		}
		promos, err := deps.Catalog.ListPromotions(c.UserContext(), origin)
		if err != nil {
			return errorFor(c, err, "promotions")
		}
		return paginate(c, promos, 200)
	}
}

// ListRecommendsHandler returns boosted services, nearest first.
func ListRecommendsHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		origin, err := originFromQuery(c)
		if err != nil {
			return errBadRequest(c, err.Error())
		}
		recs, err := deps.Catalog.ListRecommends(c.UserContext(), origin)
		if err != nil {
			return errorFor(c, err, "recommends")
		}
		return c.JSON(recs)
	}
}

// ListBlogsHandler returns blog posts, newest first.
func ListBlogsHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		posts, err := deps.Catalog.ListBlogs(c.UserContext())
		if err != nil {
			return errorFor(c, err, "blogs")
		}
		return paginate(c, posts, 100)
	}
}

// GetBlogHandler returns one blog post.
func GetBlogHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		post, err := deps.Catalog.GetBlog(c.UserContext(), c.Params("id"))
		if err != nil {
			return errorFor(c, err, "blog")
		}
		return c.JSON(post)
	}
}

// RecordEngagementHandler accepts an impression, click or conversion and
// hands it to the engagement sink without waiting for it to be stored.
func RecordEngagementHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if deps.Engagement == nil {
			return errUnavailable(c, "engagement recording not configured")
		}
		var ev domain.EngagementEvent
		if err := c.BodyParser(&ev); err != nil {
			return errBadRequest(c, "invalid request body")
		}
		deps.Engagement.Emit(c.UserContext(), ev)
		return c.SendStatus(fiber.StatusAccepted)
	}
}

// NavigationHandler returns the route tree for the caller's role.
func NavigationHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		tree, err := deps.Roles.Resolve(c.UserContext(), currentUser(c))
		if err != nil {
			LoggerFromCtx(c.UserContext()).Warn("role lookup failed, using default routes", "error", err)
		}
		return c.JSON(tree)
	}
}

type reviewRequest struct {
	Rating  int    `json:"rating"`
	Comment string `json:"comment"`
}

// AddReviewHandler rates a service as the signed-in user.
func AddReviewHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var req reviewRequest
		if err := c.BodyParser(&req); err != nil {
			return errBadRequest(c, "invalid request body")
		}
		review, err := deps.Feeds.AddReview(c.UserContext(), currentUser(c).UID, c.Params("id"), req.Rating, req.Comment)
		if err != nil {
			return errorFor(c, err, "service")
		}
		return c.Status(fiber.StatusCreated).JSON(review)
	}
}

// ListNotificationsHandler returns the signed-in user's notifications.
func ListNotificationsHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		items, err := deps.Feeds.ListNotifications(c.UserContext(), currentUser(c).UID)
		if err != nil {
			return errorFor(c, err, "notifications")
		}
		return paginate(c, items, 200)
	}
}

// MarkNotificationReadHandler flags one notification as read.
func MarkNotificationReadHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if err := deps.Feeds.MarkRead(c.UserContext(), currentUser(c).UID, c.Params("id")); err != nil {
			return errorFor(c, err, "notification")
		}
		return c.SendStatus(fiber.StatusNoContent)
	}
}

type subscribeRequest struct {
	CampaignID string `json:"campaignId"`
	ServiceID  string `json:"serviceId"`
}

// CreateSubscriptionHandler subscribes one of the entrepreneur's services to a campaign.
func CreateSubscriptionHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var req subscribeRequest
		if err := c.BodyParser(&req); err != nil {
			return errBadRequest(c, "invalid request body")
		}
		sub, err := deps.Subscriptions.Subscribe(c.UserContext(), currentUser(c).UID, req.CampaignID, req.ServiceID)
		if err != nil {
			return errorFor(c, err, "campaign or service")
		}
		return c.Status(fiber.StatusCreated).JSON(sub)
	}
}

// ListSubscriptionsHandler lists the caller's own subscriptions. Admins get
// the pending queue, or one entrepreneur's subscriptions with entrepreneur_id.
func ListSubscriptionsHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		ctx := c.UserContext()
		owner := currentUser(c).UID
		if currentRole(c) == domain.RoleAdmin {
			owner = c.Query("entrepreneur_id")
			if owner == "" {
				subs, err := deps.Subscriptions.ListPending(ctx)
				if err != nil {
					return errorFor(c, err, "subscriptions")
				}
				return paginate(c, subs, 200)
			}
		}
		subs, err := deps.Subscriptions.ListByEntrepreneur(ctx, owner)
		if err != nil {
			return errorFor(c, err, "subscriptions")
		}
		return paginate(c, subs, 200)
	}
}

// UploadSlipHandler stores the payment slip sent as multipart field "slip".
func UploadSlipHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		fh, err := c.FormFile("slip")
		if err != nil {
			return errBadRequest(c, "multipart field slip is required")
		}
		contentType := fh.Header.Get(fiber.HeaderContentType)
		if !strings.HasPrefix(contentType, "image/") && contentType != "application/pdf" {
			return errBadRequest(c, "slip must be an image or a PDF")
		}
		f, err := fh.Open()
		if err != nil {
			return errBadRequest(c, "unreadable upload")
		}
		defer f.Close()

		url, err := deps.Subscriptions.UploadSlip(c.UserContext(), currentUser(c).UID, c.Params("id"), fh.Filename, contentType, f)
		if err != nil {
			return errorFor(c, err, "subscription")
		}
		return c.JSON(fiber.Map{"slipUrl": url})
	}
}

// ApproveSubscriptionHandler activates a pending subscription.
func ApproveSubscriptionHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		sub, err := deps.Subscriptions.Approve(c.UserContext(), c.Params("id"))
		if err != nil {
			return errorFor(c, err, "subscription")
		}
		return c.JSON(sub)
	}
}

type rejectRequest struct {
	Reason string `json:"reason"`
}

// RejectSubscriptionHandler declines a pending subscription.
func RejectSubscriptionHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var req rejectRequest
		if len(c.Body()) > 0 {
			if err := c.BodyParser(&req); err != nil {
				return errBadRequest(c, "invalid request body")
			}
		}
		sub, err := deps.Subscriptions.Reject(c.UserContext(), c.Params("id"), req.Reason)
		if err != nil {
			return errorFor(c, err, "subscription")
		}
		return c.JSON(sub)
	}
}

// CampaignReportHandler returns the engagement counters of a campaign.
func CampaignReportHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		rep, err := deps.Subscriptions.Report(c.UserContext(), currentUser(c).UID, currentRole(c), c.Params("id"))
		if err != nil {
			return errorFor(c, err, "campaign")
		}
		return c.JSON(rep)
	}
}

// RemoveEntrepreneurHandler deletes an entrepreneur and everything they own.
// A failed run answers 500 with the per-step result; repeating the request
// resumes it.
func RemoveEntrepreneurHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if deps.Removal == nil {
			return errUnavailable(c, "removal not configured")
		}
		res, err := deps.Removal.RemoveEntrepreneur(c.UserContext(), c.Params("id"))
		if err != nil {
			if res != nil && !errors.Is(err, domain.ErrInvalidInput) && !errors.Is(err, domain.ErrNotFound) {
				LoggerFromCtx(c.UserContext()).Error("entrepreneur removal failed", "id", c.Params("id"), "error", err)
				return c.Status(fiber.StatusInternalServerError).JSON(res)
			}
			return errorFor(c, err, "entrepreneur")
		}
		return c.JSON(res)
	}
}
