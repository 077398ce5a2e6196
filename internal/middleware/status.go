package middleware

import (
	"errors"

	"github.com/gofiber/fiber/v2"
)

// StatusMapper lets an error report the HTTP status it should produce.
type StatusMapper interface {
	HTTPStatus() int
}

// statusOf is the status a handler error will be rendered with. Errors that are
// neither *fiber.Error nor StatusMapper become 500.
func statusOf(err error) int {
	var fe *fiber.Error
	if errors.As(err, &fe) {
		return fe.Code
	}
	var sm StatusMapper
	if errors.As(err, &sm) {
		return sm.HTTPStatus()
	}
	return fiber.StatusInternalServerError
}
