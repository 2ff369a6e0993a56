package http

import (
	"encoding/json"
	"log/slog"
	"os"

	"github.com/getkin/kin-openapi/openapi3"
	"github.com/gofiber/fiber/v2"
)

// DefaultSpecPath is where the OpenAPI document lives relative to the repo root.
const DefaultSpecPath = "api/openapi.yaml"

const swaggerUIHTML = `<!DOCTYPE html>
<html lang="en">
<head>
  <meta charset="UTF-8">
  <title>HalalWay API - Swagger UI</title>
  <link rel="stylesheet" href="https://cdn.jsdelivr.net/npm/swagger-ui-dist@5/swagger-ui.css">
  <style>html{box-sizing:border-box}*,*::before,*::after{box-sizing:inherit}body{margin:0;background:#fafafa}</style>
</head>
<body>
  <div id="swagger-ui"></div>
  <script src="https://cdn.jsdelivr.net/npm/swagger-ui-dist@5/swagger-ui-bundle.js"></script>
  <script>
    SwaggerUIBundle({
      url: '/docs/openapi.json',
      dom_id: '#swagger-ui',
      deepLinking: true,
      presets: [SwaggerUIBundle.presets.apis, SwaggerUIBundle.SwaggerUIStandalonePreset],
      layout: 'BaseLayout',
    });
  </script>
</body>
</html>`

// LoadSpec reads and validates the OpenAPI document at path.
func LoadSpec(path string) (*openapi3.T, []byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, err
	}
	loader := &openapi3.Loader{IsExternalRefsAllowed: false}
	spec, err := loader.LoadFromData(data)
	if err != nil {
		return nil, nil, err
	}
	return spec, data, nil
}

// SetupDocs registers Swagger UI at /docs and the OpenAPI document at
// /docs/openapi.yaml and /docs/openapi.json. The document is loaded once;
// when it is missing the document routes answer 404.
func SetupDocs(app *fiber.App) {
	spec, raw, err := LoadSpec(DefaultSpecPath)
	var asJSON []byte
	if err != nil {
		slog.Debug("openapi document not served", "path", DefaultSpecPath, "error", err)
	} else if asJSON, err = json.Marshal(spec); err != nil {
		slog.Warn("openapi document not encodable", "error", err)
		asJSON = nil
	}

	app.Get("/docs", func(c *fiber.Ctx) error {
		c.Set(fiber.HeaderContentType, "text/html; charset=utf-8")
		return c.SendString(swaggerUIHTML)
	})

	app.Get("/docs/openapi.yaml", func(c *fiber.Ctx) error {
		if raw == nil {
			return errNotFound(c, "openapi.yaml not found")
		}
		c.Set(fiber.HeaderContentType, "application/yaml")
		return c.Send(raw)
	})

	app.Get("/docs/openapi.json", func(c *fiber.Ctx) error {
		if asJSON == nil {
			return errNotFound(c, "openapi document not found")
		}
		c.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
		return c.Send(asJSON)
	})
}
