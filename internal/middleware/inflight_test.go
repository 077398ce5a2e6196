package middleware

import (
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"

	"github.com/opsdesk/userconsole/internal/guard"
	"github.com/opsdesk/userconsole/internal/logging"
)

func setupTestApp(t *testing.T) (*fiber.App, guard.Guard, func()) {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("start miniredis: %v", err)
	}

	cache := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	g := guard.NewRedis(cache)
	app := fiber.New()
	logger := logging.Discard()
	app.Patch("/users/:phone", InFlight(g, time.Minute, PhoneParam("users"), logger), func(c *fiber.Ctx) error {
		return c.Status(fiber.StatusOK).JSON(fiber.Map{"ok": true})
	})
	app.Post("/users", InFlight(g, time.Minute, BodyPhone("users"), logger), func(c *fiber.Ctx) error {
		return c.Status(fiber.StatusCreated).JSON(fiber.Map{"ok": true})
	})

	cleanup := func() {
		cache.Close()
		mr.Close()
	}

	return app, g, cleanup
}

func TestInFlightRejectsDuplicate(t *testing.T) {
	app, g, cleanup := setupTestApp(t)
	defer cleanup()

	release, err := g.Acquire(t.Context(), "users:1234567890", time.Minute)
	if err != nil {
		t.Fatalf("acquire: %v", err)
	}

	req := httptest.NewRequest(fiber.MethodPatch, "/users/1234567890", strings.NewReader("{}"))
	req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	if resp.StatusCode != fiber.StatusConflict {
		t.Fatalf("expected %d got %d", fiber.StatusConflict, resp.StatusCode)
	}

	release()

	req = httptest.NewRequest(fiber.MethodPatch, "/users/1234567890", strings.NewReader("{}"))
	req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	resp, err = app.Test(req)
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	if resp.StatusCode != fiber.StatusOK {
		t.Fatalf("expected %d got %d", fiber.StatusOK, resp.StatusCode)
	}
}

func TestInFlightReleasesAfterRequest(t *testing.T) {
	app, _, cleanup := setupTestApp(t)
	defer cleanup()

	for i := 0; i < 2; i++ {
		req := httptest.NewRequest(fiber.MethodPost, "/users", strings.NewReader(`{"user_phone":"5551234567"}`))
		req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
		resp, err := app.Test(req)
		if err != nil {
			t.Fatalf("request %d: %v", i, err)
		}
		if resp.StatusCode != fiber.StatusCreated {
			t.Fatalf("request %d: expected %d got %d", i, fiber.StatusCreated, resp.StatusCode)
		}
	}
}

func TestInFlightKeyFromBody(t *testing.T) {
	app, g, cleanup := setupTestApp(t)
	defer cleanup()

	release, err := g.Acquire(t.Context(), "users:5551234567", time.Minute)
	if err != nil {
		t.Fatalf("acquire: %v", err)
	}
	defer release()

	req := httptest.NewRequest(fiber.MethodPost, "/users", strings.NewReader(`{"user_phone":"555-123-4567"}`))
	req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	if resp.StatusCode != fiber.StatusConflict {
		t.Fatalf("expected %d got %d", fiber.StatusConflict, resp.StatusCode)
	}
}
