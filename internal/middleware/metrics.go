package middleware

import (
	"time"

	"github.com/gofiber/fiber/v2"
)

// RequestObserver records one served request.
type RequestObserver interface {
	ObserveRequest(method, route string, status int, d time.Duration)
}

// Metrics reports every request to obs, labelled by route pattern rather than
// raw path so phone numbers never become label values.
func Metrics(obs RequestObserver) fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()
		err := c.Next()

		status := c.Response().StatusCode()
		if err != nil {
			status = statusOf(err)
		}
		route := "unmatched"
		if r := c.Route(); r != nil && r.Path != "" && r.Path != "/" {
			route = r.Path
		}
		obs.ObserveRequest(c.Method(), route, status, time.Since(start))
		return err
	}
}
