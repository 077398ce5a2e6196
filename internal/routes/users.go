package routes

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/opsdesk/userconsole/internal/guard"
	"github.com/opsdesk/userconsole/internal/journal"
	"github.com/opsdesk/userconsole/internal/middleware"
	"github.com/opsdesk/userconsole/internal/notification"
	"github.com/opsdesk/userconsole/internal/users"
	"github.com/opsdesk/userconsole/internal/validation"
)

// RegisterUserRoutes wires the list/detail view and the user form. Mutations on
// one phone never overlap.
func RegisterUserRoutes(r fiber.Router, h *handler, g guard.Guard, ttl time.Duration, logger *slog.Logger) {
	byParam := middleware.InFlight(g, ttl, middleware.PhoneParam("users"), logger)
	byBody := middleware.InFlight(g, ttl, middleware.BodyPhone("users"), logger)

	group := r.Group("/users")
	group.Get("/", h.listUsers)
	group.Post("/", byBody, h.createUser)
	group.Get("/:phone", h.getUser)
	group.Patch("/:phone", byParam, h.updateUser)
	group.Delete("/:phone", byParam, h.deleteUser)
}

func (h *handler) listUsers(c *fiber.Ctx) error {
	filters := map[string]string{}
	c.Context().QueryArgs().VisitAll(func(k, v []byte) {
		if key := string(k); key != "q" {
			filters[key] = string(v)
		}
	})

	records, err := h.users.List(c.UserContext(), filters)
	if err != nil {
		return h.fail(c, "users.list", "", err, "Failed to fetch users")
	}
	records = users.Search(records, c.Query("q"))
	return c.JSON(fiber.Map{"users": records, "count": len(records)})
}

func (h *handler) getUser(c *fiber.Ctx) error {
	phone := c.Params("phone")
	if err := validation.Phone(phone); err != nil {
		return translate(err, "")
	}

	records, err := h.users.GetByPhone(c.UserContext(), phone)
	if err != nil {
		return h.fail(c, "users.get", phone, err, "Failed to fetch user")
	}
	if len(records) == 0 {
		return translate(users.ErrUserNotFound, "")
	}
	return c.JSON(fiber.Map{"user": records[0], "matches": len(records)})
}

func (h *handler) createUser(c *fiber.Ctx) error {
	var req users.CreateUserRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, "invalid request body")
	}
	req = req.WithDefaults()
	if err := validation.CreateUser(req); err != nil {
		return translate(err, "")
	}

	resp, err := h.users.Create(c.UserContext(), req)
	if err != nil {
		return h.fail(c, "users.create", req.Phone, err, "Failed to create user")
	}
	if !resp.Succeeded() {
		return h.reject(c, "users.create", req.Phone, resp.Message, "Failed to create user")
	}
	h.recordOutcome(c, "users.create", req.Phone, journal.OutcomeOK, resp.Message)
	n := h.notify(c, notification.Success("User created", "User "+req.Name+" was created"))

	body := fiber.Map{"notice": n}
	if records, err := h.users.List(c.UserContext(), nil); err != nil {
		h.logger.WarnContext(c.UserContext(), "refresh after create failed", slog.Any("error", err))
	} else {
		body["users"] = records
	}
	return c.Status(http.StatusCreated).JSON(body)
}

func (h *handler) updateUser(c *fiber.Ctx) error {
	phone := c.Params("phone")
	var req users.UpdateUserRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, "invalid request body")
	}
	if err := validation.UpdateUser(phone, req); err != nil {
		return translate(err, "")
	}

	resp, err := h.users.Update(c.UserContext(), phone, req)
	if err != nil {
		return h.fail(c, "users.update", phone, err, "Failed to update user")
	}
	if !resp.Succeeded() {
		return h.reject(c, "users.update", phone, resp.Message, "Failed to update user")
	}
	h.recordOutcome(c, "users.update", phone, journal.OutcomeOK, resp.Message)
	n := h.notify(c, notification.Success("User updated", "User "+phone+" was updated"))

	body := fiber.Map{"notice": n}
	if records, err := h.users.GetByPhone(c.UserContext(), phone); err != nil {
		h.logger.WarnContext(c.UserContext(), "refresh after update failed", slog.Any("error", err))
	} else if len(records) > 0 {
		body["user"] = records[0]
	}
	return c.JSON(body)
}

func (h *handler) deleteUser(c *fiber.Ctx) error {
	phone := c.Params("phone")
	if err := validation.Phone(phone); err != nil {
		return translate(err, "")
	}

	resp, err := h.users.Delete(c.UserContext(), phone)
	if err != nil {
		return h.fail(c, "users.delete", phone, err, "Failed to delete user")
	}
	if !resp.Succeeded() {
		return h.reject(c, "users.delete", phone, resp.Message, "Failed to delete user")
	}
	h.recordOutcome(c, "users.delete", phone, journal.OutcomeOK, resp.Message)
	n := h.notify(c, notification.Success("User deleted", "User "+phone+" was deleted"))

	body := fiber.Map{"notice": n}
	if records, err := h.users.List(c.UserContext(), nil); err != nil {
		h.logger.WarnContext(c.UserContext(), "refresh after delete failed", slog.Any("error", err))
	} else {
		body["users"] = records
	}
	return c.JSON(body)
}

// reject handles a 2xx reply whose status says the service refused the change.
func (h *handler) reject(c *fiber.Ctx, action, target, message, fallback string) error {
	if message == "" {
		message = fallback
	}
	return h.fail(c, action, target, &apiError{
		status: http.StatusUnprocessableEntity,
		notice: notification.Failure("Error", message),
	}, fallback)
}
