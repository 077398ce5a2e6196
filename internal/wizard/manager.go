package wizard

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/opsdesk/userconsole/internal/guard"
)

const (
	kindPassword = "password"
	kindOTP      = "otp"

	defaultSessionTTL = 15 * time.Minute
	defaultGuardTTL   = 30 * time.Second
)

// TransitionObserver is told about every step a wizard lands on.
type TransitionObserver interface {
	ObserveTransition(wizard, step string)
}

// Config wires a Manager.
type Config struct {
	Store      Store
	Guard      guard.Guard
	Users      PasswordService
	OTP        OTPService
	SessionTTL time.Duration
	GuardTTL   time.Duration
	Observer   TransitionObserver
	Logger     *slog.Logger
}

// Manager drives wizards stored as sessions so a browser can walk through the
// steps across separate requests. Steps on one session never overlap.
type Manager struct {
	store      Store
	guard      guard.Guard
	users      PasswordService
	otp        OTPService
	sessionTTL time.Duration
	guardTTL   time.Duration
	observer   TransitionObserver
	logger     *slog.Logger
}

// NewManager builds a Manager. Store and Guard default to in-memory
// implementations.
func NewManager(cfg Config) *Manager {
	m := &Manager{
		store:      cfg.Store,
		guard:      cfg.Guard,
		users:      cfg.Users,
		otp:        cfg.OTP,
		sessionTTL: cfg.SessionTTL,
		guardTTL:   cfg.GuardTTL,
		observer:   cfg.Observer,
		logger:     cfg.Logger,
	}
	if m.store == nil {
		m.store = NewMemoryStore()
	}
	if m.guard == nil {
		m.guard = guard.NewMemory()
	}
	if m.sessionTTL <= 0 {
		m.sessionTTL = defaultSessionTTL
	}
	if m.guardTTL <= 0 {
		m.guardTTL = defaultGuardTTL
	}
	if m.logger == nil {
		m.logger = slog.New(slog.DiscardHandler)
	}
	return m
}

func sessionKey(kind, id string) string { return kind + ":" + id }

func (m *Manager) load(ctx context.Context, kind, id string, into any) error {
	data, err := m.store.Get(ctx, sessionKey(kind, id))
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, into); err != nil {
		return fmt.Errorf("decode %s session: %w", kind, err)
	}
	return nil
}

func (m *Manager) save(ctx context.Context, kind, id string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s session: %w", kind, err)
	}
	return m.store.Set(ctx, sessionKey(kind, id), data, m.sessionTTL)
}

func (m *Manager) observe(kind, step string) {
	if m.observer != nil {
		m.observer.ObserveTransition(kind, step)
	}
}

// run loads the session under the guard, applies fn, and writes the session
// back (or drops it when fn closed the wizard).
func run[W any](ctx context.Context, m *Manager, kind, id string, stepOf func(*W) string, fn func(*W) (Result, error)) (*W, Result, error) {
	release, err := m.guard.Acquire(ctx, "wizard:"+id, m.guardTTL)
	if errors.Is(err, guard.ErrHeld) {
		return nil, Result{}, ErrBusy
	}
	if err != nil {
		return nil, Result{}, err
	}
	defer release()

	w := new(W)
	if err := m.load(ctx, kind, id, w); err != nil {
		return nil, Result{}, err
	}

	before := stepOf(w)
	res, stepErr := fn(w)
	after := stepOf(w)
	if after != before {
		m.observe(kind, after)
		m.logger.InfoContext(ctx, "wizard step",
			slog.String("wizard", kind),
			slog.String("id", id),
			slog.String("from", before),
			slog.String("to", after),
		)
	}

	if res.Closed {
		if err := m.store.Delete(ctx, sessionKey(kind, id)); err != nil {
			m.logger.WarnContext(ctx, "drop closed wizard", slog.String("id", id), slog.Any("error", err))
		}
		return w, res, stepErr
	}
	if err := m.save(ctx, kind, id, w); err != nil && stepErr == nil {
		stepErr = err
	}
	return w, res, stepErr
}

func passwordStep(w *PasswordWizard) string { return string(w.Step) }
func otpStep(w *OTPWizard) string           { return string(w.Step) }

// OpenPassword starts a password wizard, optionally pre-filled with phone.
func (m *Manager) OpenPassword(ctx context.Context, phone string) (*PasswordWizard, error) {
	w := NewPasswordWizard(phone)
	if err := m.save(ctx, kindPassword, w.ID, w); err != nil {
		return nil, err
	}
	m.observe(kindPassword, string(w.Step))
	return w, nil
}

// Password returns the stored state of a password wizard.
func (m *Manager) Password(ctx context.Context, id string) (*PasswordWizard, error) {
	w := new(PasswordWizard)
	if err := m.load(ctx, kindPassword, id, w); err != nil {
		return nil, err
	}
	return w, nil
}

// ValidateCredentials runs the first password step.
func (m *Manager) ValidateCredentials(ctx context.Context, id, phone, password string) (*PasswordWizard, Result, error) {
	return run(ctx, m, kindPassword, id, passwordStep, func(w *PasswordWizard) (Result, error) {
		return w.ValidateCredentials(ctx, m.users, phone, password)
	})
}

// ChangePassword runs the second password step.
func (m *Manager) ChangePassword(ctx context.Context, id, password, confirm string) (*PasswordWizard, Result, error) {
	return run(ctx, m, kindPassword, id, passwordStep, func(w *PasswordWizard) (Result, error) {
		return w.Change(ctx, m.users, password, confirm)
	})
}

// ClosePassword discards a password wizard.
func (m *Manager) ClosePassword(ctx context.Context, id string) error {
	_, _, err := run(ctx, m, kindPassword, id, passwordStep, func(w *PasswordWizard) (Result, error) {
		w.Close()
		return Result{OK: true, Closed: true}, nil
	})
	return err
}

// GenerateInput is the generate form. Blank type and role keep the defaults.
type GenerateInput struct {
	Phone string `json:"phone"`
	Type  string `json:"user_type"`
	Role  string `json:"user_role"`
}

// ValidateInput is the validate form. A blank phone keeps the pre-filled one.
type ValidateInput struct {
	Phone string `json:"phone"`
	OTP   string `json:"otp"`
}

// OpenOTP starts an OTP wizard.
func (m *Manager) OpenOTP(ctx context.Context) (*OTPWizard, error) {
	w := NewOTPWizard()
	if err := m.save(ctx, kindOTP, w.ID, w); err != nil {
		return nil, err
	}
	m.observe(kindOTP, string(w.Step))
	return w, nil
}

// OTP returns the stored state of an OTP wizard.
func (m *Manager) OTP(ctx context.Context, id string) (*OTPWizard, error) {
	w := new(OTPWizard)
	if err := m.load(ctx, kindOTP, id, w); err != nil {
		return nil, err
	}
	return w, nil
}

// GenerateOTP fills the generate form from in and submits it.
func (m *Manager) GenerateOTP(ctx context.Context, id string, in GenerateInput) (*OTPWizard, Result, error) {
	return run(ctx, m, kindOTP, id, otpStep, func(w *OTPWizard) (Result, error) {
		if w.Step == StepGenerate {
			w.SetPhone(in.Phone)
			w.SetType(in.Type)
			w.SetRole(in.Role)
		}
		return w.Generate(ctx, m.otp)
	})
}

// ValidateOTP fills the validate form from in and submits it.
func (m *Manager) ValidateOTP(ctx context.Context, id string, in ValidateInput) (*OTPWizard, Result, error) {
	return run(ctx, m, kindOTP, id, otpStep, func(w *OTPWizard) (Result, error) {
		if w.Step == StepValidate {
			if in.Phone != "" {
				w.SetValidatePhone(in.Phone)
			}
			w.SetOTP(in.OTP)
		}
		return w.Validate(ctx, m.otp)
	})
}

// BackOTP moves an OTP wizard one step back.
func (m *Manager) BackOTP(ctx context.Context, id string) (*OTPWizard, error) {
	w, _, err := run(ctx, m, kindOTP, id, otpStep, func(w *OTPWizard) (Result, error) {
		return Result{OK: true}, w.Back()
	})
	return w, err
}

// CloseOTP discards an OTP wizard.
func (m *Manager) CloseOTP(ctx context.Context, id string) error {
	_, _, err := run(ctx, m, kindOTP, id, otpStep, func(w *OTPWizard) (Result, error) {
		w.Close()
		return Result{OK: true, Closed: true}, nil
	})
	return err
}
