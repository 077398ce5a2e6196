// Package validation holds the input rules applied before any request reaches
// the remote service.
package validation

import (
	"errors"
	"fmt"
	"reflect"
	"regexp"
	"sort"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/go-playground/validator/v10/non-standard/validators"

	"github.com/opsdesk/userconsole/internal/users"
)

// Input length bounds.
const (
	PasswordMin = 6
	PasswordMax = 10
	PhoneLength = 10
	OTPLength   = 6
)

var (
	emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)
	digitsOnly   = regexp.MustCompile(`^[0-9]+$`)
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.Split(f.Tag.Get("json"), ",")[0]
		if name == "" || name == "-" {
			return f.Name
		}
		return name
	})

	must := func(tag string, fn validator.Func) {
		if err := v.RegisterValidation(tag, fn); err != nil {
			panic(fmt.Sprintf("register %s: %v", tag, err))
		}
	}
	must("notblank", validators.NotBlank)
	must("phone10", digitsOfLength(PhoneLength))
	must("otp6", digitsOfLength(OTPLength))
	must("simpleemail", func(fl validator.FieldLevel) bool {
		return emailPattern.MatchString(fl.Field().String())
	})
	must("role", func(fl validator.FieldLevel) bool {
		_, ok := users.ParseRole(fl.Field().String())
		return ok
	})
	must("usertype", func(fl validator.FieldLevel) bool {
		_, ok := users.ParseType(fl.Field().String())
		return ok
	})
	return v
}

func digitsOfLength(n int) validator.Func {
	return func(fl validator.FieldLevel) bool {
		s := fl.Field().String()
		return len(s) == n && digitsOnly.MatchString(s)
	}
}

var messages = map[string]string{
	"required":    "The field '%s' is required.",
	"notblank":    "The field '%s' is required.",
	"min":         "The field '%s' must be at least %s characters long.",
	"max":         "The field '%s' must be no longer than %s characters.",
	"simpleemail": "The field '%s' must be a valid email address.",
	"phone10":     "The field '%s' must be exactly 10 digits.",
	"otp6":        "The field '%s' must be exactly 6 digits.",
	"role":        "The field '%s' must be one of picking, in-bound, admin, all-ops.",
	"usertype":    "The field '%s' must be one of admin, read_only, read_write.",
	"eqfield":     "The field '%s' must match the new password.",
}

func message(e validator.FieldError) string {
	msg, ok := messages[e.Tag()]
	if !ok {
		return fmt.Sprintf("Field '%s' is invalid: %s", e.Field(), e.Tag())
	}
	if strings.Count(msg, "%s") == 2 {
		return fmt.Sprintf(msg, e.Field(), e.Param())
	}
	return fmt.Sprintf(msg, e.Field())
}

// Error lists the rejected fields, keyed by wire name.
type Error struct {
	Fields map[string]string
}

func (e *Error) Error() string {
	keys := e.keys()
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+": "+e.Fields[k])
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// First returns one message suitable for a single-line notice.
func (e *Error) First() string {
	keys := e.keys()
	if len(keys) == 0 {
		return ""
	}
	return e.Fields[keys[0]]
}

func (e *Error) keys() []string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func check(form any) error {
	err := validate.Struct(form)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return err
	}
	out := &Error{Fields: make(map[string]string, len(fieldErrs))}
	for _, fe := range fieldErrs {
		if _, seen := out.Fields[fe.Field()]; !seen {
			out.Fields[fe.Field()] = message(fe)
		}
	}
	return out
}

type createForm struct {
	Name     string `json:"user_name" validate:"notblank"`
	Email    string `json:"user_email" validate:"required,simpleemail"`
	Type     string `json:"user_type" validate:"required,usertype"`
	Phone    string `json:"user_phone" validate:"required,phone10"`
	Password string `json:"password" validate:"required,min=6,max=10"`
	Role     string `json:"user_role" validate:"required,role"`
}

// CreateUser checks every field of a new account.
func CreateUser(req users.CreateUserRequest) error {
	return check(&createForm{
		Name:     req.Name,
		Email:    strings.TrimSpace(req.Email),
		Type:     strings.TrimSpace(req.Type),
		Phone:    strings.TrimSpace(req.Phone),
		Password: req.Password,
		Role:     strings.TrimSpace(req.Role),
	})
}

type updateForm struct {
	Phone    string `json:"user_phone" validate:"required,phone10"`
	Email    string `json:"user_email" validate:"omitempty,simpleemail"`
	Type     string `json:"user_type" validate:"omitempty,usertype"`
	Password string `json:"password" validate:"omitempty,min=6,max=10"`
	Role     string `json:"user_role" validate:"omitempty,role"`
}

// UpdateUser checks the key phone and only the fields that will be sent.
func UpdateUser(phone string, req users.UpdateUserRequest) error {
	form := &updateForm{
		Phone: strings.TrimSpace(phone),
		Email: strings.TrimSpace(req.Email),
		Type:  strings.TrimSpace(req.Type),
		Role:  strings.TrimSpace(req.Role),
	}
	if strings.TrimSpace(req.Password) != "" {
		form.Password = req.Password
	}
	return check(form)
}

type phoneForm struct {
	Phone string `json:"user_phone" validate:"required,phone10"`
}

// Phone checks a lookup key.
func Phone(phone string) error {
	return check(&phoneForm{Phone: strings.TrimSpace(phone)})
}

type otpForm struct {
	OTP string `json:"user_otp" validate:"required,otp6"`
}

// OTP checks a one-time code.
func OTP(code string) error {
	return check(&otpForm{OTP: strings.TrimSpace(code)})
}

type credentialsForm struct {
	Phone    string `json:"user_phone" validate:"required,phone10"`
	Password string `json:"password" validate:"required"`
}

// Credentials checks the first step of the password wizard.
func Credentials(phone, password string) error {
	return check(&credentialsForm{Phone: strings.TrimSpace(phone), Password: password})
}

type newPasswordForm struct {
	Password string `json:"password" validate:"required,min=6,max=10"`
	Confirm  string `json:"confirm_password" validate:"required,eqfield=Password"`
}

// NewPassword checks the length of a replacement password and its
// confirmation.
func NewPassword(password, confirm string) error {
	return check(&newPasswordForm{Password: password, Confirm: confirm})
}

// Digits strips every non-digit from s and truncates the result to max
// characters. A max of zero or less keeps every digit.
func Digits(s string, max int) string {
	var b strings.Builder
	for _, r := range s {
		if r < '0' || r > '9' {
			continue
		}
		if max > 0 && b.Len() >= max {
			break
		}
		b.WriteRune(r)
	}
	return b.String()
}
