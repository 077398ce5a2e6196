package wizard

import (
	"context"
	"strings"
	"sync/atomic"

	"github.com/google/uuid"

	"github.com/opsdesk/userconsole/internal/transport"
	"github.com/opsdesk/userconsole/internal/validation"
)

// PasswordStep is a position in the password wizard.
type PasswordStep string

const (
	StepCredentials PasswordStep = "validate-credentials"
	StepChange      PasswordStep = "change-password"
)

// PasswordService is the slice of the user gateway the password wizard needs.
type PasswordService interface {
	ValidatePassword(ctx context.Context, phone, password string) (transport.Response, error)
	ChangePassword(ctx context.Context, phone, password string) (transport.Response, error)
}

// PasswordWizard confirms the current credentials of an account and then sets
// a new password. Passwords are never kept in the wizard state.
type PasswordWizard struct {
	ID      string       `json:"id"`
	Step    PasswordStep `json:"step"`
	Phone   string       `json:"phone"`
	Message string       `json:"message,omitempty"`

	busy atomic.Bool
}

// NewPasswordWizard opens a wizard, optionally pre-filled with phone.
func NewPasswordWizard(phone string) *PasswordWizard {
	w := &PasswordWizard{ID: uuid.NewString(), Step: StepCredentials}
	w.SetPhone(phone)
	return w
}

// SetPhone keeps at most ten digits of s.
func (w *PasswordWizard) SetPhone(s string) {
	w.Phone = validation.Digits(s, validation.PhoneLength)
}

// Busy reports whether a step is running.
func (w *PasswordWizard) Busy() bool { return w.busy.Load() }

// ValidateCredentials checks phone and password with the service and advances
// to the change step only when the service confirms them.
func (w *PasswordWizard) ValidateCredentials(ctx context.Context, svc PasswordService, phone, password string) (Result, error) {
	if !w.busy.CompareAndSwap(false, true) {
		return Result{}, ErrBusy
	}
	defer w.busy.Store(false)

	if w.Step != StepCredentials {
		return Result{}, ErrWrongStep
	}
	if strings.TrimSpace(phone) != "" {
		w.SetPhone(phone)
	}
	if err := validation.Credentials(w.Phone, password); err != nil {
		return Result{}, err
	}

	resp, err := svc.ValidatePassword(ctx, w.Phone, password)
	if err != nil {
		w.Message = transport.MessageOf(err, "Failed to validate credentials")
		return Result{Message: w.Message}, err
	}
	if !resp.Confirmed() {
		w.Message = fallback(resp.Message, "Invalid credentials")
		return Result{Message: w.Message}, nil
	}

	w.Step = StepChange
	w.Message = fallback(resp.Message, "Credentials verified")
	return Result{OK: true, Message: w.Message}, nil
}

// Change submits the new password. On success the wizard resets and reports
// itself closed.
func (w *PasswordWizard) Change(ctx context.Context, svc PasswordService, password, confirm string) (Result, error) {
	if !w.busy.CompareAndSwap(false, true) {
		return Result{}, ErrBusy
	}
	defer w.busy.Store(false)

	if w.Step != StepChange {
		return Result{}, ErrWrongStep
	}
	if err := validation.NewPassword(password, confirm); err != nil {
		return Result{}, err
	}

	resp, err := svc.ChangePassword(ctx, w.Phone, password)
	if err != nil {
		w.Message = transport.MessageOf(err, "Failed to change password")
		return Result{Message: w.Message}, err
	}
	if !resp.Succeeded() {
		w.Message = fallback(resp.Message, "Failed to change password")
		return Result{Message: w.Message}, nil
	}

	msg := fallback(resp.Message, "Password changed")
	w.Close()
	return Result{OK: true, Message: msg, Closed: true}, nil
}

// Close resets the wizard to its first step.
func (w *PasswordWizard) Close() {
	w.Step = StepCredentials
	w.Phone = ""
	w.Message = ""
}

func fallback(msg, def string) string {
	if strings.TrimSpace(msg) == "" {
		return def
	}
	return msg
}
