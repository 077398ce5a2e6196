package middleware

import (
	"bytes"
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gofiber/fiber/v2"

	"github.com/opsdesk/userconsole/internal/logging"
)

type teapot struct{}

func (teapot) Error() string   { return "short and stout" }
func (teapot) HTTPStatus() int { return fiber.StatusTeapot }

func TestRequestIDReachesLogsAndHeader(t *testing.T) {
	var buf bytes.Buffer
	logger := logging.NewWithWriter(&buf, "info")

	app := fiber.New()
	app.Use(RequestID(), Audit(logger))
	app.Get("/", func(c *fiber.Ctx) error {
		logger.InfoContext(c.UserContext(), "handler ran")
		return c.SendString(RequestIDFrom(c))
	})

	req := httptest.NewRequest("GET", "/", nil)
	req.Header.Set(requestIDHeader, "req-42")
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	if got := resp.Header.Get(requestIDHeader); got != "req-42" {
		t.Fatalf("expected echoed request id, got %q", got)
	}

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected handler and audit lines, got %d: %s", len(lines), buf.String())
	}
	for _, line := range lines {
		var entry map[string]any
		if err := json.Unmarshal([]byte(line), &entry); err != nil {
			t.Fatalf("log line is not json: %v", err)
		}
		if entry["request_id"] != "req-42" {
			t.Fatalf("expected request_id on %q", line)
		}
	}
}

func TestRequestIDGeneratedWhenMissing(t *testing.T) {
	app := fiber.New()
	app.Use(RequestID())
	app.Get("/", func(c *fiber.Ctx) error { return c.SendStatus(fiber.StatusNoContent) })

	resp, err := app.Test(httptest.NewRequest("GET", "/", nil))
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	if resp.Header.Get(requestIDHeader) == "" {
		t.Fatal("expected a generated request id")
	}
}

func TestAuditUsesMappedStatus(t *testing.T) {
	var buf bytes.Buffer
	app := fiber.New(fiber.Config{
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			return c.SendStatus(statusOf(err))
		},
	})
	app.Use(Audit(logging.NewWithWriter(&buf, "info")))
	app.Get("/", func(c *fiber.Ctx) error { return teapot{} })

	if _, err := app.Test(httptest.NewRequest("GET", "/", nil)); err != nil {
		t.Fatalf("request failed: %v", err)
	}

	var entry map[string]any
	if err := json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &entry); err != nil {
		t.Fatalf("audit line is not json: %v", err)
	}
	if entry["level"] != "WARN" {
		t.Fatalf("expected a 4xx to log at warn, got %v", entry["level"])
	}
	if status, _ := entry["status"].(float64); int(status) != fiber.StatusTeapot {
		t.Fatalf("expected status 418, got %v", entry["status"])
	}
}
