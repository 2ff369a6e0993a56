package http

import (
	"encoding/json"
	"fmt"

	"github.com/gofiber/fiber/v2"
	"github.com/graphql-go/graphql"

	"github.com/halalway/halalway/internal/core/domain"
)

// plain converts a result into maps and slices keyed by its JSON names so
// the default resolvers see the same field names as the REST API.
func plain(v any, err error) (any, error) {
	if err != nil {
		return nil, err
	}
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var out any
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func originArgs(args map[string]any) (*domain.GeoPoint, error) {
	lat, hasLat := args["lat"]
	lon, hasLon := args["lon"]
	if !hasLat && !hasLon {
		return nil, nil
	}
	p := domain.ParseCoordinate(lat, lon)
	if p == nil {
		return nil, fmt.Errorf("lat and lon must be a valid coordinate pair")
	}
	return p, nil
}

// buildSchema creates the GraphQL schema wired to our services.
func buildSchema(deps *Dependencies) (graphql.Schema, error) {
	geoPointType := graphql.NewObject(graphql.ObjectConfig{
		Name: "GeoPoint",
		Fields: graphql.Fields{
			"lat": &graphql.Field{Type: graphql.Float},
			"lon": &graphql.Field{Type: graphql.Float},
		},
	})

	serviceType := graphql.NewObject(graphql.ObjectConfig{
		Name: "Service",
		Fields: graphql.Fields{
			"id":             &graphql.Field{Type: graphql.String},
			"name":           &graphql.Field{Type: graphql.String},
			"category":       &graphql.Field{Type: graphql.String},
			"description":    &graphql.Field{Type: graphql.String},
			"image":          &graphql.Field{Type: graphql.String},
			"address":        &graphql.Field{Type: graphql.String},
			"phone":          &graphql.Field{Type: graphql.String},
			"openingHours":   &graphql.Field{Type: graphql.String},
			"entrepreneurId": &graphql.Field{Type: graphql.String},
			"location":       &graphql.Field{Type: geoPointType},
		},
	})

	reviewType := graphql.NewObject(graphql.ObjectConfig{
		Name: "Review",
		Fields: graphql.Fields{
			"id":        &graphql.Field{Type: graphql.String},
			"userId":    &graphql.Field{Type: graphql.String},
			"rating":    &graphql.Field{Type: graphql.Int},
			"comment":   &graphql.Field{Type: graphql.String},
			"createdAt": &graphql.Field{Type: graphql.String},
		},
	})

	serviceDetailType := graphql.NewObject(graphql.ObjectConfig{
		Name: "ServiceDetail",
		Fields: graphql.Fields{
			"id":            &graphql.Field{Type: graphql.String},
			"name":          &graphql.Field{Type: graphql.String},
			"category":      &graphql.Field{Type: graphql.String},
			"description":   &graphql.Field{Type: graphql.String},
			"image":         &graphql.Field{Type: graphql.String},
			"address":       &graphql.Field{Type: graphql.String},
			"location":      &graphql.Field{Type: geoPointType},
			"averageRating": &graphql.Field{Type: graphql.Float},
			"reviews":       &graphql.Field{Type: graphql.NewList(reviewType)},
		},
	})

	promotionType := graphql.NewObject(graphql.ObjectConfig{
		Name: "Promotion",
		Fields: graphql.Fields{
			"id":           &graphql.Field{Type: graphql.String},
			"title":        &graphql.Field{Type: graphql.String},
			"description":  &graphql.Field{Type: graphql.String},
			"discount":     &graphql.Field{Type: graphql.String},
			"image":        &graphql.Field{Type: graphql.String},
			"serviceId":    &graphql.Field{Type: graphql.String},
			"endDate":      &graphql.Field{Type: graphql.String},
			"shopName":     &graphql.Field{Type: graphql.String},
			"shopImage":    &graphql.Field{Type: graphql.String},
			"shopLocation": &graphql.Field{Type: geoPointType},
		},
	})

	recommendationType := graphql.NewObject(graphql.ObjectConfig{
		Name: "Recommendation",
		Fields: graphql.Fields{
			"subscriptionId": &graphql.Field{Type: graphql.String},
			"serviceId":      &graphql.Field{Type: graphql.String},
			"entrepreneurId": &graphql.Field{Type: graphql.String},
			"name":           &graphql.Field{Type: graphql.String},
			"image":          &graphql.Field{Type: graphql.String},
			"location":       &graphql.Field{Type: geoPointType},
		},
	})

	// located wraps an item with its distance annotation.
	located := func(name string, item *graphql.Object) *graphql.Object {
		return graphql.NewObject(graphql.ObjectConfig{
			Name: name,
			Fields: graphql.Fields{
				"item":       &graphql.Field{Type: item},
				"distanceKm": &graphql.Field{Type: graphql.Float},
				"distance":   &graphql.Field{Type: graphql.String},
			},
		})
	}

	blogType := graphql.NewObject(graphql.ObjectConfig{
		Name: "Blog",
		Fields: graphql.Fields{
			"id":        &graphql.Field{Type: graphql.String},
			"title":     &graphql.Field{Type: graphql.String},
			"content":   &graphql.Field{Type: graphql.String},
			"image":     &graphql.Field{Type: graphql.String},
			"authorId":  &graphql.Field{Type: graphql.String},
			"createdAt": &graphql.Field{Type: graphql.String},
		},
	})

	navigationType := graphql.NewObject(graphql.ObjectConfig{
		Name: "Navigation",
		Fields: graphql.Fields{
			"role":    &graphql.Field{Type: graphql.String},
			"initial": &graphql.Field{Type: graphql.String},
			"screens": &graphql.Field{Type: graphql.NewList(graphql.NewObject(graphql.ObjectConfig{
				Name: "Screen",
				Fields: graphql.Fields{
					"name":  &graphql.Field{Type: graphql.String},
					"title": &graphql.Field{Type: graphql.String},
					"tab":   &graphql.Field{Type: graphql.Boolean},
				},
			}))},
		},
	})

	locationArgs := graphql.FieldConfigArgument{
		"lat": &graphql.ArgumentConfig{Type: graphql.Float},
		"lon": &graphql.ArgumentConfig{Type: graphql.Float},
	}

	queryType := graphql.NewObject(graphql.ObjectConfig{
		Name: "Query",
		Fields: graphql.Fields{
			"services": &graphql.Field{
				Type:        graphql.NewList(located("LocatedService", serviceType)),
				Description: "Services nearest first, optionally of one category and within a radius",
				Args: graphql.FieldConfigArgument{
					"category": &graphql.ArgumentConfig{Type: graphql.String},
					"lat":      &graphql.ArgumentConfig{Type: graphql.Float},
					"lon":      &graphql.ArgumentConfig{Type: graphql.Float},
					"radiusKm": &graphql.ArgumentConfig{Type: graphql.Float, DefaultValue: 0.0},
				},
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					origin, err := originArgs(p.Args)
					if err != nil {
						return nil, err
					}
					category, _ := p.Args["category"].(string)
					radius, _ := p.Args["radiusKm"].(float64)
					return plain(deps.Catalog.ListServices(p.Context, category, origin, radius))
				},
			},
			"service": &graphql.Field{
				Type:        serviceDetailType,
				Description: "A service with its reviews",
				Args: graphql.FieldConfigArgument{
					"id": &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.String)},
				},
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					return plain(deps.Catalog.GetService(p.Context, p.Args["id"].(string)))
				},
			},
			"promotions": &graphql.Field{
				Type:        graphql.NewList(located("LocatedPromotion", promotionType)),
				Description: "Promotions with their shop, nearest first",
				Args:        locationArgs,
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					origin, err := originArgs(p.Args)
					if err != nil {
						return nil, err
					}
					return plain(deps.Catalog.ListPromotions(p.Context, origin))
				},
			},
			"recommends": &graphql.Field{
				Type:        graphql.NewList(located("LocatedRecommendation", recommendationType)),
				Description: "Boosted services, nearest first",
				Args:        locationArgs,
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					origin, err := originArgs(p.Args)
					if err != nil {
						return nil, err
					}
					return plain(deps.Catalog.ListRecommends(p.Context, origin))
				},
			},
			"blogs": &graphql.Field{
				Type:        graphql.NewList(blogType),
				Description: "Blog posts, newest first",
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					return plain(deps.Catalog.ListBlogs(p.Context))
				},
			},
			"blog": &graphql.Field{
				Type: blogType,
				Args: graphql.FieldConfigArgument{
					"id": &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.String)},
				},
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					return plain(deps.Catalog.GetBlog(p.Context, p.Args["id"].(string)))
				},
			},
			"navigation": &graphql.Field{
				Type:        navigationType,
				Description: "Route tree for the caller's role",
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					tree, err := deps.Roles.Resolve(p.Context, UserFromCtx(p.Context))
					if err != nil {
						LoggerFromCtx(p.Context).Warn("role lookup failed, using default routes", "error", err)
					}
					return plain(tree, nil)
				},
			},
		},
	})

	return graphql.NewSchema(graphql.SchemaConfig{
		Query: queryType,
	})
}

// GraphQLHandler serves the GraphQL endpoint.
func GraphQLHandler(deps *Dependencies) fiber.Handler {
	schema, err := buildSchema(deps)
	if err != nil {
		// This would be a programming error in the schema definition
		panic("graphql schema build: " + err.Error())
	}

	type gqlRequest struct {
		Query         string                 `json:"query"`
		OperationName string                 `json:"operationName"`
		Variables     map[string]interface{} `json:"variables"`
	}

	return func(c *fiber.Ctx) error {
		var req gqlRequest
		if err := c.BodyParser(&req); err != nil {
			return errBadRequest(c, "invalid request body")
		}
		if req.Query == "" {
			return errBadRequest(c, "query is required")
		}

		result := graphql.Do(graphql.Params{
			Schema:         schema,
			RequestString:  req.Query,
			VariableValues: req.Variables,
			OperationName:  req.OperationName,
			Context:        c.UserContext(),
		})

		return c.JSON(result)
	}
}
