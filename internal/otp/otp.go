// Package otp wraps the one-time-password endpoints of the remote user service.
package otp

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/google/go-querystring/query"

	"github.com/opsdesk/userconsole/internal/transport"
	"github.com/opsdesk/userconsole/internal/users"
)

const (
	generatePath = "/user/generate_user_otp"
	validatePath = "/user/validate_with_otp"
)

// Defaults used by the generate form when the operator leaves type or role
// unset.
const (
	DefaultType = users.TypeAdmin
	DefaultRole = users.RoleAdmin
)

// GenerateRequest asks the service to issue a code for Phone.
type GenerateRequest struct {
	Type  string
	Phone string
	Role  string
}

type generateParams struct {
	Type  string `url:"user_type"`
	Phone string `url:"user_phone"`
	Role  string `url:"user_role"`
}

func (r GenerateRequest) params() generateParams {
	t := r.Type
	if strings.TrimSpace(t) == "" {
		t = string(DefaultType)
	}
	role := r.Role
	if strings.TrimSpace(role) == "" {
		role = string(DefaultRole)
	}
	return generateParams{
		Type:  users.WireType(t),
		Phone: strings.TrimSpace(r.Phone),
		Role:  users.WireRole(role),
	}
}

// ValidateRequest checks OTP against the code last issued for Phone.
type ValidateRequest struct {
	Phone string
	OTP   string
}

// Validation is the outcome of a code check.
type Validation struct {
	transport.Response
	Token string `json:"token,omitempty"`
}

// Valid reports whether the code was accepted. Only the boolean flag counts:
// a "success" status with statusbool false is a rejection.
func (v Validation) Valid() bool {
	return v.StatusBool != nil && *v.StatusBool
}

// UnmarshalJSON decodes the shared envelope and lifts the session token out of
// the extra keys.
func (v *Validation) UnmarshalJSON(data []byte) error {
	var resp transport.Response
	if err := json.Unmarshal(data, &resp); err != nil {
		return err
	}
	*v = Validation{Response: resp}
	if raw, ok := resp.Extra["token"]; ok {
		var token string
		if json.Unmarshal(raw, &token) == nil {
			v.Token = token
		}
	}
	return nil
}

// Doer performs one remote call. *transport.Client satisfies it.
type Doer interface {
	Do(ctx context.Context, req transport.Request, out any) error
}

// Gateway issues and checks one-time passwords.
type Gateway struct {
	client Doer
	logger *slog.Logger
}

// NewGateway builds a Gateway on top of client.
func NewGateway(client Doer, logger *slog.Logger) *Gateway {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Gateway{client: client, logger: logger}
}

// Generate asks the service to send a code to req.Phone.
func (g *Gateway) Generate(ctx context.Context, req GenerateRequest) (transport.Response, error) {
	q, err := query.Values(req.params())
	if err != nil {
		return transport.Response{}, fmt.Errorf("encode otp params: %w", err)
	}

	var resp transport.Response
	if err := g.client.Do(ctx, transport.Request{
		Operation: "otp.generate",
		Method:    http.MethodPost,
		Path:      generatePath,
		Query:     q,
	}, &resp); err != nil {
		return transport.Response{}, err
	}
	return resp, nil
}

// Validate checks req.OTP for req.Phone.
func (g *Gateway) Validate(ctx context.Context, req ValidateRequest) (Validation, error) {
	var v Validation
	if err := g.client.Do(ctx, transport.Request{
		Operation: "otp.validate",
		Method:    http.MethodGet,
		Path:      validatePath,
		Query: url.Values{
			"user_phone": {strings.TrimSpace(req.Phone)},
			"user_otp":   {strings.TrimSpace(req.OTP)},
		},
	}, &v); err != nil {
		return Validation{}, err
	}
	if !v.Valid() {
		g.logger.InfoContext(ctx, "otp rejected", slog.String("phone", req.Phone))
	}
	return v, nil
}
