package routes

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/opsdesk/userconsole/internal/guard"
	"github.com/opsdesk/userconsole/internal/middleware"
	"github.com/opsdesk/userconsole/internal/notification"
	"github.com/opsdesk/userconsole/internal/transport"
	"github.com/opsdesk/userconsole/internal/users"
	"github.com/opsdesk/userconsole/internal/validation"
	"github.com/opsdesk/userconsole/internal/wizard"
)

// apiError is a failure already translated for the operator.
type apiError struct {
	status int
	notice notification.Notice
	fields map[string]string
	err    error
}

func (e *apiError) Error() string {
	if e.err != nil {
		return e.notice.Description + ": " + e.err.Error()
	}
	return e.notice.Description
}

func (e *apiError) Unwrap() error { return e.err }

// HTTPStatus implements middleware.StatusMapper.
func (e *apiError) HTTPStatus() int { return e.status }

var _ middleware.StatusMapper = (*apiError)(nil)

// translate maps a domain error onto a status and notice. fallback is the
// description used when the error carries no operator-facing message.
func translate(err error, fallback string) *apiError {
	var (
		ae   *apiError
		verr *validation.Error
		te   *transport.Error
	)
	switch {
	case errors.As(err, &ae):
		return ae
	case errors.As(err, &verr):
		return &apiError{status: http.StatusBadRequest, notice: notification.Failure("Validation error", verr.First()), fields: verr.Fields, err: err}
	case errors.Is(err, users.ErrNoFieldsToUpdate):
		return &apiError{status: http.StatusBadRequest, notice: notification.Failure("No changes", "No fields to update"), err: err}
	case errors.Is(err, users.ErrUserNotFound):
		return &apiError{status: http.StatusNotFound, notice: notification.Failure("Not found", "User not found"), err: err}
	case errors.Is(err, users.ErrMissingIdentifier):
		return &apiError{status: http.StatusBadGateway, notice: notification.Failure("Error", "User record has no identifier"), err: err}
	case errors.Is(err, wizard.ErrSessionNotFound):
		return &apiError{status: http.StatusNotFound, notice: notification.Failure("Not found", "Wizard session not found or expired"), err: err}
	case errors.Is(err, wizard.ErrBusy), errors.Is(err, guard.ErrHeld):
		return &apiError{status: http.StatusConflict, notice: notification.Failure("Busy", "Another request is still in progress"), err: err}
	case errors.Is(err, wizard.ErrWrongStep):
		return &apiError{status: http.StatusConflict, notice: notification.Failure("Error", "Action not allowed at this step"), err: err}
	case errors.As(err, &te):
		return &apiError{status: te.HTTPStatus(), notice: notification.Failure("Error", te.Message(fallback)), err: err}
	default:
		return &apiError{status: http.StatusInternalServerError, notice: notification.Failure("Error", fallback), err: err}
	}
}

// ErrorHandler renders every handler error as a JSON body carrying a notice.
func ErrorHandler(logger *slog.Logger) fiber.ErrorHandler {
	return func(c *fiber.Ctx, err error) error {
		var fe *fiber.Error
		if errors.As(err, &fe) {
			title := "Error"
			if fe.Code == http.StatusUnauthorized {
				title = "Unauthorized"
			}
			return c.Status(fe.Code).JSON(fiber.Map{
				"error":  fe.Message,
				"notice": notification.Failure(title, fe.Message),
			})
		}

		ae := translate(err, "Something went wrong")
		if ae.status >= http.StatusInternalServerError && logger != nil {
			logger.ErrorContext(c.UserContext(), "request failed", slog.Any("error", err))
		}
		body := fiber.Map{
			"error":  ae.notice.Description,
			"notice": ae.notice,
		}
		if len(ae.fields) > 0 {
			body["fields"] = ae.fields
		}
		return c.Status(ae.status).JSON(body)
	}
}
