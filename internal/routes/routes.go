package routes

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/opsdesk/userconsole/internal/config"
	"github.com/opsdesk/userconsole/internal/credential"
	"github.com/opsdesk/userconsole/internal/guard"
	"github.com/opsdesk/userconsole/internal/journal"
	"github.com/opsdesk/userconsole/internal/logging"
	"github.com/opsdesk/userconsole/internal/metrics"
	"github.com/opsdesk/userconsole/internal/middleware"
	"github.com/opsdesk/userconsole/internal/notification"
	"github.com/opsdesk/userconsole/internal/otp"
	"github.com/opsdesk/userconsole/internal/transport"
	"github.com/opsdesk/userconsole/internal/users"
	"github.com/opsdesk/userconsole/internal/wizard"
)

// Deps aggregates shared dependencies required to wire routes.
type Deps struct {
	Cfg     config.Config
	Client  *transport.Client
	Creds   *credential.Store
	DB      *pgxpool.Pool
	SQLite  *sql.DB
	Cache   *redis.Client
	Metrics *metrics.Metrics
	Logger  *slog.Logger
}

// Setup configures middlewares and all application routes.
func Setup(app *fiber.App, d Deps) error {
	if d.Client == nil {
		return fmt.Errorf("user service client is required")
	}
	// Enforce Redis presence outside of dev, even though config also checks.
	if !d.Cfg.IsDev() && d.Cache == nil {
		return fmt.Errorf("redis is required when APP_ENV=%s", d.Cfg.AppEnv)
	}
	if d.Logger == nil {
		d.Logger = logging.Discard()
	}

	// Middlewares
	app.Use(recover.New())
	app.Use(middleware.RequestID())
	app.Use(middleware.Metrics(d.Metrics))
	app.Use(middleware.Audit(logging.Component(d.Logger, "http")))

	// Health and metrics
	RegisterHealthRoutes(app, d)
	app.Get("/metrics", adaptor.HTTPHandler(d.Metrics.Handler()))

	// Services
	journalBackend, err := newJournal(d)
	if err != nil {
		return err
	}

	var inflight guard.Guard
	var sessions wizard.Store
	if d.Cache != nil {
		inflight = guard.NewRedis(d.Cache)
		sessions = wizard.NewRedisStore(d.Cache)
	} else {
		inflight = guard.NewMemory()
		sessions = wizard.NewMemoryStore()
	}

	usersGW := users.NewGateway(d.Client, logging.Component(d.Logger, "users"))
	otpGW := otp.NewGateway(d.Client, logging.Component(d.Logger, "otp"))
	wizards := wizard.NewManager(wizard.Config{
		Store:      sessions,
		Guard:      inflight,
		Users:      usersGW,
		OTP:        otpGW,
		SessionTTL: d.Cfg.SessionTTL,
		GuardTTL:   d.Cfg.GuardTTL,
		Observer:   d.Metrics,
		Logger:     logging.Component(d.Logger, "wizard"),
	})

	h := &handler{
		users:    usersGW,
		wizards:  wizards,
		journal:  journalBackend,
		notifier: notification.NewLoggerNotifier(logging.Component(d.Logger, "notice")),
		logger:   d.Logger,
	}

	// API routes
	api := app.Group("/api/v1", middleware.OperatorAuth(d.Cfg.OperatorUser, d.Cfg.OperatorPasswordHash))
	api.Get("/ping", func(c *fiber.Ctx) error {
		return c.Status(http.StatusOK).JSON(fiber.Map{
			"status":     "ok",
			"request_id": middleware.RequestIDFrom(c),
			"operator":   middleware.OperatorFrom(c),
			"timestamp":  time.Now().UTC().Format(time.RFC3339Nano),
		})
	})

	RegisterUserRoutes(api, h, inflight, d.Cfg.GuardTTL, d.Logger)
	RegisterWizardRoutes(api, h, d.Cache, d.Cfg.AttemptLimit)
	RegisterJournalRoutes(api, h)

	return nil
}

func newJournal(d Deps) (journal.Journal, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	switch {
	case d.DB != nil:
		j := journal.NewPostgresJournal(d.DB)
		if err := j.EnsureSchema(ctx); err != nil {
			return nil, err
		}
		return j, nil
	case d.SQLite != nil:
		j := journal.NewSQLiteJournal(d.SQLite)
		if err := j.EnsureSchema(ctx); err != nil {
			return nil, err
		}
		return j, nil
	default:
		return journal.NewInMemory(journal.MaxLimit), nil
	}
}
