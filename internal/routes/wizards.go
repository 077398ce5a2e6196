package routes

import (
	"net/http"

	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"

	"github.com/opsdesk/userconsole/internal/journal"
	"github.com/opsdesk/userconsole/internal/middleware"
	"github.com/opsdesk/userconsole/internal/notification"
	"github.com/opsdesk/userconsole/internal/wizard"
)

// RegisterWizardRoutes wires the password and OTP wizards. Credential and code
// checks are rate limited per phone.
func RegisterWizardRoutes(r fiber.Router, h *handler, cache *redis.Client, attemptsPerMin int) {
	pw := r.Group("/wizards/password")
	pw.Post("/", h.openPassword)
	pw.Get("/:id", h.getPassword)
	pw.Post("/:id/validate", middleware.AttemptLimit(cache, "password", attemptsPerMin), h.validateCredentials)
	pw.Post("/:id/change", h.changePassword)
	pw.Delete("/:id", h.closePassword)

	o := r.Group("/wizards/otp")
	o.Post("/", h.openOTP)
	o.Get("/:id", h.getOTP)
	o.Post("/:id/generate", middleware.AttemptLimit(cache, "otp-generate", attemptsPerMin), h.generateOTP)
	o.Post("/:id/validate", middleware.AttemptLimit(cache, "otp", attemptsPerMin), h.validateOTP)
	o.Post("/:id/back", h.backOTP)
	o.Delete("/:id", h.closeOTP)
}

// stepResponse renders the outcome of a wizard step that reached the service.
func (h *handler) stepResponse(c *fiber.Ctx, action, target string, w any, res wizard.Result) error {
	outcome := journal.OutcomeOK
	n := notification.Success("Success", res.Message)
	if !res.OK {
		outcome = journal.OutcomeRejected
		n = notification.Failure("Error", res.Message)
	}
	h.recordOutcome(c, action, target, outcome, res.Message)
	return c.JSON(fiber.Map{
		"wizard": w,
		"result": res,
		"notice": h.notify(c, n),
	})
}

func (h *handler) openPassword(c *fiber.Ctx) error {
	var req struct {
		Phone string `json:"phone"`
	}
	_ = c.BodyParser(&req)

	w, err := h.wizards.OpenPassword(c.UserContext(), req.Phone)
	if err != nil {
		return translate(err, "Failed to open wizard")
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"wizard": w})
}

func (h *handler) getPassword(c *fiber.Ctx) error {
	w, err := h.wizards.Password(c.UserContext(), c.Params("id"))
	if err != nil {
		return translate(err, "Failed to load wizard")
	}
	return c.JSON(fiber.Map{"wizard": w})
}

func (h *handler) validateCredentials(c *fiber.Ctx) error {
	var req struct {
		Phone    string `json:"phone"`
		Password string `json:"password"`
	}
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, "invalid request body")
	}

	w, res, err := h.wizards.ValidateCredentials(c.UserContext(), c.Params("id"), req.Phone, req.Password)
	if err != nil {
		return h.fail(c, "password.validate", req.Phone, err, "Failed to validate credentials")
	}
	return h.stepResponse(c, "password.validate", w.Phone, w, res)
}

func (h *handler) changePassword(c *fiber.Ctx) error {
	var req struct {
		Password string `json:"password"`
		Confirm  string `json:"confirm_password"`
	}
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, "invalid request body")
	}

	id := c.Params("id")
	w, res, err := h.wizards.ChangePassword(c.UserContext(), id, req.Password, req.Confirm)
	if err != nil {
		return h.fail(c, "password.change", id, err, "Failed to change password")
	}
	return h.stepResponse(c, "password.change", id, w, res)
}

func (h *handler) closePassword(c *fiber.Ctx) error {
	if err := h.wizards.ClosePassword(c.UserContext(), c.Params("id")); err != nil {
		return translate(err, "Failed to close wizard")
	}
	return c.JSON(fiber.Map{"closed": true})
}

func (h *handler) openOTP(c *fiber.Ctx) error {
	w, err := h.wizards.OpenOTP(c.UserContext())
	if err != nil {
		return translate(err, "Failed to open wizard")
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"wizard": w})
}

func (h *handler) getOTP(c *fiber.Ctx) error {
	w, err := h.wizards.OTP(c.UserContext(), c.Params("id"))
	if err != nil {
		return translate(err, "Failed to load wizard")
	}
	return c.JSON(fiber.Map{"wizard": w})
}

func (h *handler) generateOTP(c *fiber.Ctx) error {
	var in wizard.GenerateInput
	if err := c.BodyParser(&in); err != nil {
		return fiber.NewError(http.StatusBadRequest, "invalid request body")
	}

	w, res, err := h.wizards.GenerateOTP(c.UserContext(), c.Params("id"), in)
	if err != nil {
		return h.fail(c, "otp.generate", in.Phone, err, "Failed to generate OTP")
	}
	return h.stepResponse(c, "otp.generate", w.Phone, w, res)
}

func (h *handler) validateOTP(c *fiber.Ctx) error {
	var in wizard.ValidateInput
	if err := c.BodyParser(&in); err != nil {
		return fiber.NewError(http.StatusBadRequest, "invalid request body")
	}

	w, res, err := h.wizards.ValidateOTP(c.UserContext(), c.Params("id"), in)
	if err != nil {
		return h.fail(c, "otp.validate", in.Phone, err, "Failed to validate OTP")
	}
	return h.stepResponse(c, "otp.validate", w.ValidatePhone, w, res)
}

func (h *handler) backOTP(c *fiber.Ctx) error {
	w, err := h.wizards.BackOTP(c.UserContext(), c.Params("id"))
	if err != nil {
		return translate(err, "")
	}
	return c.JSON(fiber.Map{"wizard": w})
}

func (h *handler) closeOTP(c *fiber.Ctx) error {
	if err := h.wizards.CloseOTP(c.UserContext(), c.Params("id")); err != nil {
		return translate(err, "Failed to close wizard")
	}
	return c.JSON(fiber.Map{"closed": true})
}
