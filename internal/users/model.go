package users

import (
	"strings"

	"github.com/opsdesk/userconsole/internal/transport"
)

// DefaultStatus is shown for records the service returns without a status.
const DefaultStatus = "active"

// UserRecord is one account as returned by the remote service. Password and OTP
// secrets the service may echo back are deliberately not decoded.
type UserRecord struct {
	ID              transport.FlexString `json:"id"`
	RecordID        transport.FlexString `json:"record_id"`
	Name            string               `json:"user_name"`
	Phone           string               `json:"user_phone"`
	Email           string               `json:"user_email"`
	Type            string               `json:"user_type"`
	Role            string               `json:"user_role"`
	Status          string               `json:"status"`
	CreatedAt       transport.FlexString `json:"created_at"`
	UpdatedAt       transport.FlexString `json:"updated_at"`
	PasswordEnabled transport.FlexBool   `json:"user_password_enabled"`
	PasswordExpiry  transport.FlexString `json:"user_password_expiry"`
	OTPEnabled      transport.FlexBool   `json:"user_otp_enabled"`
}

// Identifier returns the durable service-side key used by delete: record_id when
// present, otherwise id. The id is numeric on most revisions of the service and
// an opaque string on some; zero means unset.
func (u UserRecord) Identifier() (string, bool) {
	if id := strings.TrimSpace(string(u.RecordID)); id != "" {
		return id, true
	}
	if id := strings.TrimSpace(string(u.ID)); id != "" && id != "0" {
		return id, true
	}
	return "", false
}

func (u *UserRecord) normalize() {
	if strings.TrimSpace(u.Status) == "" {
		u.Status = DefaultStatus
	}
}

// CreateUserRequest carries the six fields required to create an account.
type CreateUserRequest struct {
	Name     string `json:"user_name"`
	Email    string `json:"user_email"`
	Type     string `json:"user_type"`
	Phone    string `json:"user_phone"`
	Password string `json:"password"`
	Role     string `json:"user_role"`
}

// UpdateUserRequest is a partial edit. Empty fields are left untouched
// server-side; the phone is the key and cannot be changed.
type UpdateUserRequest struct {
	Name     string `json:"user_name,omitempty"`
	Email    string `json:"user_email,omitempty"`
	Type     string `json:"user_type,omitempty"`
	Password string `json:"password,omitempty"`
	Role     string `json:"user_role,omitempty"`
}

// Diff returns the wire fields that will be transmitted: only those supplied
// with a non-blank value, after case normalisation and role translation.
func (r UpdateUserRequest) Diff() map[string]string {
	diff := make(map[string]string)
	if v := strings.TrimSpace(r.Name); v != "" {
		diff["user_name"] = v
	}
	if v := strings.TrimSpace(r.Email); v != "" {
		diff["user_email"] = strings.ToLower(v)
	}
	if v := strings.TrimSpace(r.Type); v != "" {
		diff["user_type"] = WireType(v)
	}
	if v := strings.TrimSpace(r.Role); v != "" {
		diff["user_role"] = WireRole(v)
	}
	if strings.TrimSpace(r.Password) != "" {
		diff["password"] = r.Password
	}
	return diff
}

// createParams is the query string of POST /user/user.
type createParams struct {
	Name     string `url:"user_name"`
	Email    string `url:"user_email"`
	Type     string `url:"user_type"`
	Phone    string `url:"user_phone"`
	Password string `url:"password"`
	Role     string `url:"user_role"`
}

// params applies the create case policy: email, type and role are lower-cased,
// name is trimmed and password is sent as typed.
func (r CreateUserRequest) params() createParams {
	return createParams{
		Name:     strings.TrimSpace(r.Name),
		Email:    strings.ToLower(strings.TrimSpace(r.Email)),
		Type:     WireType(r.Type),
		Phone:    strings.TrimSpace(r.Phone),
		Password: r.Password,
		Role:     WireRole(r.Role),
	}
}

// WithDefaults fills an unset type or role with the form defaults.
func (r CreateUserRequest) WithDefaults() CreateUserRequest {
	if strings.TrimSpace(r.Type) == "" {
		r.Type = string(DefaultType)
	}
	if strings.TrimSpace(r.Role) == "" {
		r.Role = string(DefaultRole)
	}
	return r
}
