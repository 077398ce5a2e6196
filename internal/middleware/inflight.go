package middleware

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/opsdesk/userconsole/internal/guard"
	"github.com/opsdesk/userconsole/internal/validation"
)

// KeyFunc derives the guard key for a request. An empty key skips the guard.
type KeyFunc func(c *fiber.Ctx) string

// PhoneParam keys on the :phone route parameter.
func PhoneParam(prefix string) KeyFunc {
	return func(c *fiber.Ctx) string {
		phone := validation.Digits(c.Params("phone"), 0)
		if phone == "" {
			return ""
		}
		return prefix + ":" + phone
	}
}

// BodyPhone keys on the user_phone (or phone) field of a JSON body.
func BodyPhone(prefix string) KeyFunc {
	return func(c *fiber.Ctx) string {
		var req struct {
			UserPhone string `json:"user_phone"`
			Phone     string `json:"phone"`
		}
		_ = c.BodyParser(&req)
		phone := strings.TrimSpace(req.UserPhone)
		if phone == "" {
			phone = strings.TrimSpace(req.Phone)
		}
		phone = validation.Digits(phone, 0)
		if phone == "" {
			return ""
		}
		return prefix + ":" + phone
	}
}

// InFlight rejects an unsafe request with 409 while another request with the
// same key is still being processed.
func InFlight(g guard.Guard, ttl time.Duration, key KeyFunc, logger *slog.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		switch strings.ToUpper(c.Method()) {
		case fiber.MethodGet, fiber.MethodHead, fiber.MethodOptions:
			return c.Next()
		}

		k := key(c)
		if k == "" {
			return c.Next()
		}

		ctx, cancel := context.WithTimeout(c.UserContext(), 2*time.Second)
		defer cancel()

		release, err := g.Acquire(ctx, k, ttl)
		if errors.Is(err, guard.ErrHeld) {
			return fiber.NewError(fiber.StatusConflict, "duplicate request currently processing")
		}
		if err != nil {
			logger.Error("in-flight reservation failed", slog.String("key", k), slog.Any("error", err))
			return fiber.NewError(fiber.StatusInternalServerError, "in-flight guard failure")
		}
		defer release()

		return c.Next()
	}
}
