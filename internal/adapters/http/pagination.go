package http

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/gofiber/fiber/v2"
)

// PaginatedResponse wraps list results with pagination metadata.
type PaginatedResponse struct {
	Data       any        `json:"data"`
	Pagination Pagination `json:"pagination"`
}

// Pagination contains offset-based pagination info.
type Pagination struct {
	Offset int `json:"offset"`
	Limit  int `json:"limit"`
	Total  int `json:"total"`
}

// SetLinkHeaders adds RFC 8288 Link headers for paginated responses.
// Filters such as category or lat/lon are carried over into every link.
func SetLinkHeaders(c *fiber.Ctx, p Pagination) {
	base := c.Path()
	extra := carriedQuery(c)
	var links []string

	// first
	links = append(links, fmt.Sprintf(`<%s?offset=0&limit=%d%s>; rel="first"`, base, p.Limit, extra))

	// prev
	if p.Offset > 0 {
		prev := p.Offset - p.Limit
		if prev < 0 {
			prev = 0
		}
		links = append(links, fmt.Sprintf(`<%s?offset=%d&limit=%d%s>; rel="prev"`, base, prev, p.Limit, extra))
	}

	// next
	if p.Offset+p.Limit < p.Total {
		links = append(links, fmt.Sprintf(`<%s?offset=%d&limit=%d%s>; rel="next"`, base, p.Offset+p.Limit, p.Limit, extra))
	}

	// last
	lastOffset := p.Total - p.Limit
	if lastOffset < 0 {
		lastOffset = 0
	}
	links = append(links, fmt.Sprintf(`<%s?offset=%d&limit=%d%s>; rel="last"`, base, lastOffset, p.Limit, extra))

	c.Set("Link", strings.Join(links, ", "))
}

// carriedQuery returns the request's query without offset and limit, as a
// "&"-prefixed string sorted by key.
func carriedQuery(c *fiber.Ctx) string {
	q := url.Values{}
	for k, v := range c.Queries() {
		if k == "offset" || k == "limit" {
			continue
		}
		q.Set(k, v)
	}
	if len(q) == 0 {
		return ""
	}
	return "&" + q.Encode()
}

// paginate applies offset/limit to items and writes a PaginatedResponse.
func paginate[T any](c *fiber.Ctx, items []T, maxLimit int) error {
	offset := c.QueryInt("offset", 0)
	limit := c.QueryInt("limit", 50)
	if offset < 0 {
		offset = 0
	}
	if limit <= 0 || limit > maxLimit {
		limit = 50
	}

	total := len(items)
	page := []T{}
	if offset < total {
		end := offset + limit
		if end > total {
			end = total
		}
		page = items[offset:end]
	}

	pg := Pagination{Offset: offset, Limit: limit, Total: total}
	SetLinkHeaders(c, pg)
	return c.JSON(PaginatedResponse{Data: page, Pagination: pg})
}
