package users

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/google/go-querystring/query"

	"github.com/opsdesk/userconsole/internal/transport"
)

var (
	// ErrNoFieldsToUpdate is returned by Update when the sparse diff is empty. No
	// request is sent.
	ErrNoFieldsToUpdate = errors.New("no fields to update")

	// ErrUserNotFound is returned when a phone lookup ahead of a dependent
	// operation yields no records.
	ErrUserNotFound = errors.New("user not found")

	// ErrMissingIdentifier is returned when the resolved record has neither a
	// record_id nor a numeric id.
	ErrMissingIdentifier = errors.New("user record has no identifier")
)

const (
	usersPath          = "/user/users"
	userPath           = "/user/user"
	validatePath       = "/user/validate"
	changePasswordPath = "/user/user/change_password"
)

// Doer performs one remote call. *transport.Client satisfies it.
type Doer interface {
	Do(ctx context.Context, req transport.Request, out any) error
}

// Gateway exposes the user-record operations of the remote service. It keeps no
// state between calls; callers re-fetch after mutations.
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

// List fetches every record matching filters.
func (g *Gateway) List(ctx context.Context, filters map[string]string) ([]UserRecord, error) {
	q := url.Values{}
	for k, v := range filters {
		if strings.TrimSpace(k) == "" {
			continue
		}
		q.Set(k, v)
	}

	var raw json.RawMessage
	if err := g.client.Do(ctx, transport.Request{
		Operation: "users.list",
		Method:    http.MethodGet,
		Path:      usersPath,
		Query:     q,
	}, &raw); err != nil {
		return nil, err
	}
	return g.decode(ctx, raw), nil
}

// decode unwraps a list response and logs records that could not be read.
func (g *Gateway) decode(ctx context.Context, raw json.RawMessage) []UserRecord {
	records, skipped := decodeRecords(raw)
	if skipped > 0 {
		g.logger.WarnContext(ctx, "skipped undecodable user records",
			slog.Int("skipped", skipped),
			slog.Int("kept", len(records)),
		)
	}
	return records
}

// GetByPhone returns the records stored under phone. The service does not
// enforce uniqueness, so callers treat index 0 as canonical.
func (g *Gateway) GetByPhone(ctx context.Context, phone string) ([]UserRecord, error) {
	phone = strings.TrimSpace(phone)
	var raw json.RawMessage
	if err := g.client.Do(ctx, transport.Request{
		Operation: "users.get_by_phone",
		Method:    http.MethodGet,
		Path:      usersPath,
		Query:     url.Values{"user_phone": {phone}},
	}, &raw); err != nil {
		return nil, err
	}

	records := g.decode(ctx, raw)
	if len(records) > 1 {
		g.logger.WarnContext(ctx, "phone resolves to more than one record",
			slog.String("phone", phone),
			slog.Int("count", len(records)),
		)
	}
	return records, nil
}

// Create submits a new account. All six fields travel in the query string.
func (g *Gateway) Create(ctx context.Context, req CreateUserRequest) (transport.Response, error) {
	q, err := query.Values(req.params())
	if err != nil {
		return transport.Response{}, fmt.Errorf("encode create params: %w", err)
	}

	var resp transport.Response
	if err := g.client.Do(ctx, transport.Request{
		Operation: "users.create",
		Method:    http.MethodPost,
		Path:      userPath,
		Query:     q,
	}, &resp); err != nil {
		return transport.Response{}, err
	}
	return resp, nil
}

// Update sends only the supplied fields of req for the account keyed by phone.
func (g *Gateway) Update(ctx context.Context, phone string, req UpdateUserRequest) (transport.Response, error) {
	diff := req.Diff()
	if len(diff) == 0 {
		return transport.Response{}, ErrNoFieldsToUpdate
	}

	var resp transport.Response
	if err := g.client.Do(ctx, transport.Request{
		Operation: "users.update",
		Method:    http.MethodPatch,
		Path:      userPath,
		Query:     url.Values{"user_phone": {strings.TrimSpace(phone)}},
		Body:      diff,
	}, &resp); err != nil {
		return transport.Response{}, err
	}
	return resp, nil
}

// Delete resolves phone to the durable identifier and deletes by it.
func (g *Gateway) Delete(ctx context.Context, phone string) (transport.Response, error) {
	records, err := g.GetByPhone(ctx, phone)
	if err != nil {
		return transport.Response{}, fmt.Errorf("resolve %s: %w", phone, err)
	}
	if len(records) == 0 {
		return transport.Response{}, ErrUserNotFound
	}

	id, ok := records[0].Identifier()
	if !ok {
		return transport.Response{}, ErrMissingIdentifier
	}

	var resp transport.Response
	if err := g.client.Do(ctx, transport.Request{
		Operation: "users.delete",
		Method:    http.MethodDelete,
		Path:      userPath,
		Query:     url.Values{"record_id": {id}},
	}, &resp); err != nil {
		return transport.Response{}, err
	}
	return resp, nil
}

// ValidatePassword checks phone/password against the service.
func (g *Gateway) ValidatePassword(ctx context.Context, phone, password string) (transport.Response, error) {
	var resp transport.Response
	if err := g.client.Do(ctx, transport.Request{
		Operation: "users.validate_password",
		Method:    http.MethodGet,
		Path:      validatePath,
		Query:     url.Values{"user_phone": {strings.TrimSpace(phone)}, "password": {password}},
	}, &resp); err != nil {
		return transport.Response{}, err
	}
	return resp, nil
}

// ChangePassword sets a new password for the account keyed by phone.
func (g *Gateway) ChangePassword(ctx context.Context, phone, password string) (transport.Response, error) {
	var resp transport.Response
	if err := g.client.Do(ctx, transport.Request{
		Operation: "users.change_password",
		Method:    http.MethodPatch,
		Path:      changePasswordPath,
		Query:     url.Values{"user_phone": {strings.TrimSpace(phone)}, "password": {password}},
	}, &resp); err != nil {
		return transport.Response{}, err
	}
	return resp, nil
}
