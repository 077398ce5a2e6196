package routes

import (
	"context"
	"net/http"
	"time"

	"github.com/gofiber/fiber/v2"
)

// RegisterHealthRoutes adds liveness/readiness style endpoints.
func RegisterHealthRoutes(app *fiber.App, d Deps) {
	app.Get("/healthz", func(c *fiber.Ctx) error {
		checks := fiber.Map{}
		healthy := true

		ctx, cancel := context.WithTimeout(c.UserContext(), 2*time.Second)
		defer cancel()
		if d.DB != nil {
			checks["postgres"] = healthOf(d.DB.Ping(ctx), &healthy)
		}
		if d.SQLite != nil {
			checks["sqlite"] = healthOf(d.SQLite.PingContext(ctx), &healthy)
		}
		if d.Cache != nil {
			checks["redis"] = healthOf(d.Cache.Ping(ctx).Err(), &healthy)
		}
		if d.Creds != nil {
			if exp, ok := d.Creds.Expiry(); ok {
				state := "ok"
				if time.Now().After(exp) {
					state = "expired"
				}
				checks["credential"] = fiber.Map{"state": state, "expires_at": exp.UTC().Format(time.RFC3339)}
			}
		}

		status := http.StatusOK
		if !healthy {
			status = http.StatusServiceUnavailable
		}
		return c.Status(status).JSON(fiber.Map{
			"status":    checks,
			"timestamp": time.Now().UTC().Format(time.RFC3339Nano),
		})
	})
}

func healthOf(err error, healthy *bool) string {
	if err != nil {
		*healthy = false
		return err.Error()
	}
	return "ok"
}
