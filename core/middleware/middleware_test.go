package middleware_test

import (
	"io"
	"net/http/httptest"
	"testing"

	"moodle-sync/core/middleware/auth"
	"moodle-sync/core/middleware/rayid"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newApp() *fiber.App {
	app := fiber.New()
	app.Use(rayid.New())
	app.Use(auth.New(auth.Config{ApiKey: "s3cret", Skip: []string{"/health"}}))
	app.Get("/health", func(c *fiber.Ctx) error { return c.SendString("ok") })
	app.Get("/ray", func(c *fiber.Ctx) error { return c.SendString(c.Locals(rayid.LocalsKey).(string)) })
	return app
}

func TestAuth(t *testing.T) {
	app := newApp()

	tests := []struct {
		name string
		path string
		key  string
		want int
	}{
		{"SkippedPath", "/health", "", fiber.StatusOK},
		{"MissingKey", "/ray", "", fiber.StatusUnauthorized},
		{"WrongKey", "/ray", "guess", fiber.StatusUnauthorized},
		{"ValidKey", "/ray", "s3cret", fiber.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest("GET", tt.path, nil)
			if tt.key != "" {
				req.Header.Set(auth.HeaderName, tt.key)
			}
			resp, err := app.Test(req)
			require.NoError(t, err)
			assert.Equal(t, tt.want, resp.StatusCode)
		})
	}
}

func TestAuth_EmptyKeyRejectsEverything(t *testing.T) {
	app := fiber.New()
	app.Use(auth.New(auth.Config{}))
	app.Get("/", func(c *fiber.Ctx) error { return c.SendStatus(fiber.StatusOK) })

	req := httptest.NewRequest("GET", "/", nil)
	req.Header.Set(auth.HeaderName, "")
	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
}

func TestRayID(t *testing.T) {
	app := newApp()

	req := httptest.NewRequest("GET", "/ray", nil)
	req.Header.Set(auth.HeaderName, "s3cret")
	resp, err := app.Test(req)
	require.NoError(t, err)
	body, _ := io.ReadAll(resp.Body)
	assert.NotEmpty(t, resp.Header.Get(rayid.HeaderName))
	assert.Equal(t, resp.Header.Get(rayid.HeaderName), string(body))

	req = httptest.NewRequest("GET", "/ray", nil)
	req.Header.Set(auth.HeaderName, "s3cret")
	req.Header.Set(rayid.HeaderName, "upstream-1")
	resp, err = app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, "upstream-1", resp.Header.Get(rayid.HeaderName))
}
