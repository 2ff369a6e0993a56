package http_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/getkin/kin-openapi/openapi3"

	handler "github.com/halalway/halalway/internal/adapters/http"
)

// findOpenAPISpec locates the openapi.yaml file by walking up from the test directory.
func findOpenAPISpec(t *testing.T) string {
	// Start from the current working directory or test file location
	dir, _ := os.Getwd()

	// Look for api/openapi.yaml by going up directories
	for i := 0; i < 5; i++ {
		candidate := filepath.Join(dir, "api", "openapi.yaml")
		if info, err := os.Stat(candidate); err == nil && !info.IsDir() {
			return candidate
		}
		dir = filepath.Dir(dir)
	}

	t.Fatalf("could not find api/openapi.yaml")
	return ""
}

// TestOpenAPISpec validates the OpenAPI document.
func TestOpenAPISpec(t *testing.T) {
	specPath := findOpenAPISpec(t)
	data, err := os.ReadFile(specPath)
	if err != nil {
		t.Fatalf("failed to read openapi.yaml: %v", err)
	}

	loader := &openapi3.Loader{IsExternalRefsAllowed: false}
	spec, err := loader.LoadFromData(data)
	if err != nil {
		t.Fatalf("failed to parse OpenAPI spec: %v", err)
	}

	if err := spec.Validate(context.Background()); err != nil {
		t.Fatalf("OpenAPI spec validation failed: %v", err)
	}

	expectedPaths := []string{
		"/v1/health",
		"/v1/ready",
		"/v1/services",
		"/v1/services/{id}",
		"/v1/services/{id}/reviews",
		"/v1/promotions",
		"/v1/recommends",
		"/v1/blogs",
		"/v1/blogs/{id}",
		"/v1/navigation",
		"/v1/engagements",
		"/v1/notifications",
		"/v1/notifications/{id}/read",
		"/v1/campaign-subscriptions",
		"/v1/campaign-subscriptions/{id}/slip",
		"/v1/campaign-subscriptions/{id}/approve",
		"/v1/campaign-subscriptions/{id}/reject",
		"/v1/campaigns/{id}/report",
		"/v1/entrepreneurs/{id}",
		"/graphql",
	}

	for _, path := range expectedPaths {
		if item := spec.Paths.Find(path); item == nil {
			t.Errorf("expected path %s not found in spec", path)
		}
	}

	expectedSchemas := []string{
		"Service",
		"ServiceDetail",
		"LocatedService",
		"Promotion",
		"Recommendation",
		"BlogPost",
		"Review",
		"Notification",
		"EngagementEvent",
		"CampaignSubscription",
		"CampaignReport",
		"RouteTree",
		"RemovalResult",
		"APIError",
		"Pagination",
	}

	for _, schema := range expectedSchemas {
		if spec.Components.Schemas[schema] == nil {
			t.Errorf("expected schema %s not found", schema)
		}
	}

	t.Logf("OpenAPI spec valid: %d paths, %d schemas", len(spec.Paths.Map()), len(spec.Components.Schemas))
}

// TestOpenAPIInfo verifies document metadata.
func TestOpenAPIInfo(t *testing.T) {
	specPath := findOpenAPISpec(t)
	data, err := os.ReadFile(specPath)
	if err != nil {
		t.Fatalf("failed to read openapi.yaml: %v", err)
	}

	loader := &openapi3.Loader{IsExternalRefsAllowed: false}
	spec, err := loader.LoadFromData(data)
	if err != nil {
		t.Fatalf("failed to parse OpenAPI spec: %v", err)
	}

	if spec.Info.Title != "HalalWay API" {
		t.Errorf("expected title 'HalalWay API', got %q", spec.Info.Title)
	}

	if spec.Info.Version != "1.0.0" {
		t.Errorf("expected version 1.0.0, got %q", spec.Info.Version)
	}

	if spec.Info.Description == "" {
		t.Error("expected non-empty description")
	}

	if len(spec.Servers) == 0 {
		t.Error("expected at least one server")
	}

	t.Logf("OpenAPI Info: %s v%s @ %s", spec.Info.Title, spec.Info.Version, spec.Servers[0].URL)
}

// TestLoadSpec checks the document the server exposes under /docs.
func TestLoadSpec(t *testing.T) {
	spec, raw, err := handler.LoadSpec(findOpenAPISpec(t))
	if err != nil {
		t.Fatalf("LoadSpec: %v", err)
	}
	if len(raw) == 0 {
		t.Fatal("expected raw document bytes")
	}
	op := spec.Paths.Find("/v1/recommended")
	if op == nil || op.Get == nil || !op.Get.Deprecated {
		t.Error("legacy alias should be marked deprecated")
	}
}
