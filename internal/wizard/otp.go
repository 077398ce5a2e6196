package wizard

import (
	"context"
	"strings"
	"sync/atomic"

	"github.com/google/uuid"

	"github.com/opsdesk/userconsole/internal/otp"
	"github.com/opsdesk/userconsole/internal/transport"
	"github.com/opsdesk/userconsole/internal/validation"
)

// OTPStep is a position in the OTP wizard.
type OTPStep string

const (
	StepGenerate OTPStep = "generate"
	StepValidate OTPStep = "validate"
	StepResult   OTPStep = "result"
)

// OTPService is the OTP gateway as seen by the wizard.
type OTPService interface {
	Generate(ctx context.Context, req otp.GenerateRequest) (transport.Response, error)
	Validate(ctx context.Context, req otp.ValidateRequest) (otp.Validation, error)
}

// Outcome is the last validation shown on the result step.
type Outcome struct {
	Valid   bool   `json:"valid"`
	Message string `json:"message"`
	Status  string `json:"status,omitempty"`
	Token   string `json:"token,omitempty"`
}

// OTPWizard issues a code to a phone and checks a code typed back by the
// operator.
type OTPWizard struct {
	ID   string  `json:"id"`
	Step OTPStep `json:"step"`

	// generate form
	Phone string `json:"phone"`
	Type  string `json:"user_type"`
	Role  string `json:"user_role"`

	// validate form
	ValidatePhone string `json:"validate_phone"`
	OTP           string `json:"otp"`

	Outcome *Outcome `json:"outcome,omitempty"`
	Message string   `json:"message,omitempty"`

	busy atomic.Bool
}

// NewOTPWizard opens a wizard on the generate step with the default type and
// role.
func NewOTPWizard() *OTPWizard {
	w := &OTPWizard{ID: uuid.NewString()}
	w.reset()
	return w
}

func (w *OTPWizard) reset() {
	w.Step = StepGenerate
	w.Phone = ""
	w.Type = string(otp.DefaultType)
	w.Role = string(otp.DefaultRole)
	w.ValidatePhone = ""
	w.OTP = ""
	w.Outcome = nil
	w.Message = ""
}

// Busy reports whether a step is running.
func (w *OTPWizard) Busy() bool { return w.busy.Load() }

// SetPhone keeps at most ten digits of s for the generate form.
func (w *OTPWizard) SetPhone(s string) { w.Phone = validation.Digits(s, validation.PhoneLength) }

// SetValidatePhone keeps at most ten digits of s for the validate form.
func (w *OTPWizard) SetValidatePhone(s string) {
	w.ValidatePhone = validation.Digits(s, validation.PhoneLength)
}

// SetOTP keeps at most six digits of s.
func (w *OTPWizard) SetOTP(s string) { w.OTP = validation.Digits(s, validation.OTPLength) }

// SetType sets the account type sent with generate; blank keeps the current one.
func (w *OTPWizard) SetType(s string) {
	if s = strings.TrimSpace(s); s != "" {
		w.Type = s
	}
}

// SetRole sets the role sent with generate; blank keeps the current one.
func (w *OTPWizard) SetRole(s string) {
	if s = strings.TrimSpace(s); s != "" {
		w.Role = s
	}
}

// Generate asks the service to send a code to Phone. On success the validate
// step opens with the same phone.
func (w *OTPWizard) Generate(ctx context.Context, svc OTPService) (Result, error) {
	if !w.busy.CompareAndSwap(false, true) {
		return Result{}, ErrBusy
	}
	defer w.busy.Store(false)

	if w.Step != StepGenerate {
		return Result{}, ErrWrongStep
	}
	if err := validation.Phone(w.Phone); err != nil {
		return Result{}, err
	}

	resp, err := svc.Generate(ctx, otp.GenerateRequest{Type: w.Type, Phone: w.Phone, Role: w.Role})
	if err != nil {
		w.Message = transport.MessageOf(err, "Failed to generate OTP")
		return Result{Message: w.Message}, err
	}
	if !resp.Succeeded() {
		w.Message = fallback(resp.Message, "Failed to generate OTP")
		return Result{Message: w.Message}, nil
	}

	w.ValidatePhone = w.Phone
	w.OTP = ""
	w.Step = StepValidate
	w.Message = fallback(resp.Message, "OTP sent")
	return Result{OK: true, Message: w.Message}, nil
}

// Validate checks OTP for ValidatePhone and moves to the result step whatever
// the verdict. Transport failures keep the wizard on the validate step.
func (w *OTPWizard) Validate(ctx context.Context, svc OTPService) (Result, error) {
	if !w.busy.CompareAndSwap(false, true) {
		return Result{}, ErrBusy
	}
	defer w.busy.Store(false)

	if w.Step != StepValidate {
		return Result{}, ErrWrongStep
	}
	if err := validation.Phone(w.ValidatePhone); err != nil {
		return Result{}, err
	}
	if err := validation.OTP(w.OTP); err != nil {
		return Result{}, err
	}

	v, err := svc.Validate(ctx, otp.ValidateRequest{Phone: w.ValidatePhone, OTP: w.OTP})
	if err != nil {
		w.Message = transport.MessageOf(err, "Failed to validate OTP")
		return Result{Message: w.Message}, err
	}

	def := "Invalid OTP"
	if v.Valid() {
		def = "OTP is valid"
	}
	w.Outcome = &Outcome{
		Valid:   v.Valid(),
		Message: fallback(v.Message, def),
		Status:  v.Status,
		Token:   v.Token,
	}
	w.Step = StepResult
	w.Message = w.Outcome.Message
	return Result{OK: v.Valid(), Message: w.Message}, nil
}

// Back moves one step towards generate.
func (w *OTPWizard) Back() error {
	if w.Busy() {
		return ErrBusy
	}
	switch w.Step {
	case StepValidate:
		w.Step = StepGenerate
	case StepResult:
		w.Step = StepValidate
	default:
		return ErrWrongStep
	}
	w.Message = ""
	return nil
}

// Close resets every field.
func (w *OTPWizard) Close() { w.reset() }
