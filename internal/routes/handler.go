package routes

import (
	"context"
	"log/slog"

	"github.com/gofiber/fiber/v2"

	"github.com/opsdesk/userconsole/internal/journal"
	"github.com/opsdesk/userconsole/internal/middleware"
	"github.com/opsdesk/userconsole/internal/notification"
	"github.com/opsdesk/userconsole/internal/transport"
	"github.com/opsdesk/userconsole/internal/users"
	"github.com/opsdesk/userconsole/internal/wizard"
)

// UserGateway is the user-record surface the console drives.
type UserGateway interface {
	List(ctx context.Context, filters map[string]string) ([]users.UserRecord, error)
	GetByPhone(ctx context.Context, phone string) ([]users.UserRecord, error)
	Create(ctx context.Context, req users.CreateUserRequest) (transport.Response, error)
	Update(ctx context.Context, phone string, req users.UpdateUserRequest) (transport.Response, error)
	Delete(ctx context.Context, phone string) (transport.Response, error)
}

type handler struct {
	users    UserGateway
	wizards  *wizard.Manager
	journal  journal.Journal
	notifier notification.Notifier
	logger   *slog.Logger
}

// recordOutcome journals one operator action. Journal failures are logged,
// never surfaced to the operator.
func (h *handler) recordOutcome(c *fiber.Ctx, action, target, outcome, detail string) {
	e := journal.Entry{
		Operator:  middleware.OperatorFrom(c),
		RequestID: middleware.RequestIDFrom(c),
		Action:    action,
		Target:    target,
		Outcome:   outcome,
		Detail:    detail,
	}
	if err := h.journal.Record(c.UserContext(), e); err != nil {
		h.logger.WarnContext(c.UserContext(), "journal write failed", slog.String("action", action), slog.Any("error", err))
	}
}

// notify forwards n to the notifier and returns it for the response body.
func (h *handler) notify(c *fiber.Ctx, n notification.Notice) notification.Notice {
	if h.notifier != nil {
		_ = h.notifier.Send(c.UserContext(), n)
	}
	return n
}

// fail translates err, records it and notifies the operator.
func (h *handler) fail(c *fiber.Ctx, action, target string, err error, fallback string) error {
	ae := translate(err, fallback)
	outcome := journal.OutcomeFailed
	if ae.status < 500 {
		outcome = journal.OutcomeRejected
	}
	h.recordOutcome(c, action, target, outcome, ae.notice.Description)
	h.notify(c, ae.notice)
	return ae
}
