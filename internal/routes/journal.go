package routes

import (
	"github.com/gofiber/fiber/v2"
)

// RegisterJournalRoutes exposes the operator action journal.
func RegisterJournalRoutes(r fiber.Router, h *handler) {
	r.Get("/journal", func(c *fiber.Ctx) error {
		entries, err := h.journal.Recent(c.UserContext(), c.QueryInt("limit"))
		if err != nil {
			return translate(err, "Failed to read journal")
		}
		return c.JSON(fiber.Map{"entries": entries, "count": len(entries)})
	})
}
