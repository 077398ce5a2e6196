package routes

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/opsdesk/userconsole/internal/config"
	"github.com/opsdesk/userconsole/internal/credential"
	"github.com/opsdesk/userconsole/internal/metrics"
	"github.com/opsdesk/userconsole/internal/remotetest"
	"github.com/opsdesk/userconsole/internal/transport"
)

type fixture struct {
	app *fiber.App
	srv *remotetest.Server
}

func newFixture(t *testing.T, mutate ...func(*config.Config)) *fixture {
	t.Helper()
	srv := remotetest.New(t)

	cfg := config.Config{
		AppName:      "test",
		AppEnv:       "test",
		SessionTTL:   time.Minute,
		GuardTTL:     time.Minute,
		AttemptLimit: 100,
		OperatorUser: "admin",
	}
	for _, m := range mutate {
		m(&cfg)
	}

	creds, err := credential.NewStore("test-token", nil)
	require.NoError(t, err)
	m := metrics.New()
	client, err := transport.New(srv.URL, creds, transport.WithObserver(m))
	require.NoError(t, err)

	app := fiber.New(fiber.Config{ErrorHandler: ErrorHandler(nil)})
	require.NoError(t, Setup(app, Deps{Cfg: cfg, Client: client, Creds: creds, Metrics: m}))
	return &fixture{app: app, srv: srv}
}

func (f *fixture) request(t *testing.T, req *http.Request) (int, map[string]any) {
	t.Helper()
	resp, err := f.app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	var body map[string]any
	if len(bytes.TrimSpace(raw)) > 0 && strings.HasPrefix(resp.Header.Get(fiber.HeaderContentType), fiber.MIMEApplicationJSON) {
		require.NoError(t, json.Unmarshal(raw, &body), string(raw))
	}
	return resp.StatusCode, body
}

func (f *fixture) do(t *testing.T, method, path string, payload any) (int, map[string]any) {
	t.Helper()
	var rd io.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		require.NoError(t, err)
		rd = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, rd)
	req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	return f.request(t, req)
}

func notice(t *testing.T, body map[string]any) map[string]any {
	t.Helper()
	n, ok := body["notice"].(map[string]any)
	require.True(t, ok, "response carries no notice: %v", body)
	return n
}

func TestCreateUserScenario(t *testing.T) {
	f := newFixture(t)

	status, body := f.do(t, http.MethodPost, "/api/v1/users", map[string]string{
		"user_name":  "Ann",
		"user_email": "a@b.com",
		"user_phone": "1234567890",
		"password":   "secret1",
		"user_role":  "picking",
		"user_type":  "read_only",
	})
	require.Equal(t, http.StatusCreated, status, body)
	assert.Equal(t, "default", notice(t, body)["variant"])

	calls := f.srv.CallsTo(http.MethodPost, "/user/user")
	require.Len(t, calls, 1)
	assert.Len(t, calls[0].Query, 6)
	assert.Equal(t, "picking", calls[0].Query.Get("user_role"))

	list, ok := body["users"].([]any)
	require.True(t, ok)
	assert.Len(t, list, 1)
}

func TestMutationsAcceptMessageOnlyReplies(t *testing.T) {
	f := newFixture(t)
	f.srv.Terse = true

	status, body := f.do(t, http.MethodPost, "/api/v1/users", map[string]string{
		"user_name":  "Ann",
		"user_email": "a@b.com",
		"user_phone": "1234567890",
		"password":   "secret1",
	})
	require.Equal(t, http.StatusCreated, status, body)
	assert.Equal(t, "default", notice(t, body)["variant"])
	list, ok := body["users"].([]any)
	require.True(t, ok, "list is re-fetched after create")
	assert.Len(t, list, 1)

	status, body = f.do(t, http.MethodPatch, "/api/v1/users/1234567890", map[string]string{"user_name": "Ann2"})
	require.Equal(t, http.StatusOK, status, body)
	assert.Equal(t, "Ann2", body["user"].(map[string]any)["user_name"])

	_, body = f.do(t, http.MethodPost, "/api/v1/wizards/otp", nil)
	id := body["wizard"].(map[string]any)["id"].(string)
	status, body = f.do(t, http.MethodPost, "/api/v1/wizards/otp/"+id+"/generate", map[string]string{"phone": "1234567890"})
	require.Equal(t, http.StatusOK, status, body)
	assert.Equal(t, "validate", body["wizard"].(map[string]any)["step"])

	status, body = f.do(t, http.MethodDelete, "/api/v1/users/1234567890", nil)
	require.Equal(t, http.StatusOK, status, body)
	assert.Empty(t, f.srv.Records())
}

func TestCreateUserDefaultsTypeAndRole(t *testing.T) {
	f := newFixture(t)

	status, _ := f.do(t, http.MethodPost, "/api/v1/users", map[string]string{
		"user_name":  "Ann",
		"user_email": "a@b.com",
		"user_phone": "1234567890",
		"password":   "secret1",
	})
	require.Equal(t, http.StatusCreated, status)

	q := f.srv.CallsTo(http.MethodPost, "/user/user")[0].Query
	assert.Equal(t, "read_only", q.Get("user_type"))
	assert.Equal(t, "picking", q.Get("user_role"))
}

func TestCreateUserRejectsShortPasswordLocally(t *testing.T) {
	f := newFixture(t)

	status, body := f.do(t, http.MethodPost, "/api/v1/users", map[string]string{
		"user_name":  "Ann",
		"user_email": "a@b.com",
		"user_phone": "1234567890",
		"password":   "12345",
	})
	assert.Equal(t, http.StatusBadRequest, status)
	fields, ok := body["fields"].(map[string]any)
	require.True(t, ok)
	assert.Contains(t, fields, "password")
	assert.Equal(t, "destructive", notice(t, body)["variant"])
	assert.Empty(t, f.srv.Calls())
}

func TestCreateUserSurfacesServerMessage(t *testing.T) {
	f := newFixture(t)
	f.srv.Seed(remotetest.Record{Name: "Old", Phone: "1234567890"})

	status, body := f.do(t, http.MethodPost, "/api/v1/users", map[string]string{
		"user_name":  "Ann",
		"user_email": "a@b.com",
		"user_phone": "1234567890",
		"password":   "secret1",
	})
	assert.Equal(t, http.StatusConflict, status)
	assert.Equal(t, "user already exists", notice(t, body)["description"])
}

func TestUpdateUserSendsOnlyChangedField(t *testing.T) {
	f := newFixture(t)
	f.srv.Seed(remotetest.Record{Name: "Ann", Phone: "1234567890", Email: "a@b.com"})

	status, body := f.do(t, http.MethodPatch, "/api/v1/users/1234567890", map[string]string{
		"user_name":  "Ann2",
		"user_email": "",
	})
	require.Equal(t, http.StatusOK, status, body)

	calls := f.srv.CallsTo(http.MethodPatch, "/user/user")
	require.Len(t, calls, 1)
	assert.Equal(t, map[string]string{"user_name": "Ann2"}, calls[0].Body)

	user, ok := body["user"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "Ann2", user["user_name"])
}

func TestUpdateUserWithoutChanges(t *testing.T) {
	f := newFixture(t)

	status, body := f.do(t, http.MethodPatch, "/api/v1/users/1234567890", map[string]string{})
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "No fields to update", notice(t, body)["description"])
	assert.Empty(t, f.srv.Calls())
}

func TestDeleteUnknownUser(t *testing.T) {
	f := newFixture(t)

	status, body := f.do(t, http.MethodDelete, "/api/v1/users/5551234567", nil)
	assert.Equal(t, http.StatusNotFound, status)
	assert.Equal(t, "User not found", notice(t, body)["description"])
	assert.Empty(t, f.srv.CallsTo(http.MethodDelete, "/user/user"))
}

func TestDeleteUserRefreshesList(t *testing.T) {
	f := newFixture(t)
	f.srv.Seed(
		remotetest.Record{Name: "Ann", Phone: "1234567890"},
		remotetest.Record{Name: "Bob", Phone: "5551234567"},
	)

	status, body := f.do(t, http.MethodDelete, "/api/v1/users/5551234567", nil)
	require.Equal(t, http.StatusOK, status, body)
	list, ok := body["users"].([]any)
	require.True(t, ok)
	assert.Len(t, list, 1)
}

func TestGetUser(t *testing.T) {
	f := newFixture(t)
	f.srv.Seed(remotetest.Record{Name: "Ann", Phone: "1234567890"})

	status, body := f.do(t, http.MethodGet, "/api/v1/users/1234567890", nil)
	require.Equal(t, http.StatusOK, status)
	user := body["user"].(map[string]any)
	assert.Equal(t, "active", user["status"])
	assert.NotContains(t, user, "password")

	status, _ = f.do(t, http.MethodGet, "/api/v1/users/9999999999", nil)
	assert.Equal(t, http.StatusNotFound, status)

	status, _ = f.do(t, http.MethodGet, "/api/v1/users/12", nil)
	assert.Equal(t, http.StatusBadRequest, status)
}

func TestListUsersSearchAndFilters(t *testing.T) {
	f := newFixture(t)
	f.srv.Seed(
		remotetest.Record{Name: "Ann Lee", Phone: "1234567890", Type: "admin"},
		remotetest.Record{Name: "Bob Stone", Phone: "5551234567", Type: "admin"},
	)

	status, body := f.do(t, http.MethodGet, "/api/v1/users?q=stone&user_type=admin", nil)
	require.Equal(t, http.StatusOK, status)
	assert.EqualValues(t, 1, body["count"])

	calls := f.srv.CallsTo(http.MethodGet, "/user/users")
	require.Len(t, calls, 1)
	assert.Equal(t, "admin", calls[0].Query.Get("user_type"))
	assert.Empty(t, calls[0].Query.Get("q"))
}

func TestUpstreamFailures(t *testing.T) {
	f := newFixture(t)
	f.srv.Fail("GET /user/users", remotetest.Failure{Status: http.StatusUnauthorized, Message: "token expired"})

	status, body := f.do(t, http.MethodGet, "/api/v1/users", nil)
	assert.Equal(t, http.StatusUnauthorized, status)
	assert.Equal(t, "token expired", notice(t, body)["description"])

	f.srv.Fail("GET /user/users", remotetest.Failure{Status: http.StatusInternalServerError})
	status, body = f.do(t, http.MethodGet, "/api/v1/users", nil)
	assert.Equal(t, http.StatusBadGateway, status)
	assert.Equal(t, "Failed to fetch users", notice(t, body)["description"])
}

func TestOTPWizardOverHTTP(t *testing.T) {
	f := newFixture(t)
	f.srv.Seed(remotetest.Record{Name: "Ann", Phone: "9998887777"})

	status, body := f.do(t, http.MethodPost, "/api/v1/wizards/otp", nil)
	require.Equal(t, http.StatusCreated, status)
	id := body["wizard"].(map[string]any)["id"].(string)

	status, body = f.do(t, http.MethodPost, "/api/v1/wizards/otp/"+id+"/generate", map[string]string{"phone": "9998887777"})
	require.Equal(t, http.StatusOK, status, body)
	w := body["wizard"].(map[string]any)
	assert.Equal(t, "validate", w["step"])
	assert.Equal(t, "9998887777", w["validate_phone"])

	status, body = f.do(t, http.MethodPost, "/api/v1/wizards/otp/"+id+"/validate", map[string]string{"otp": "123456"})
	require.Equal(t, http.StatusOK, status, body)
	w = body["wizard"].(map[string]any)
	assert.Equal(t, "result", w["step"])
	assert.Equal(t, true, w["outcome"].(map[string]any)["valid"])

	status, body = f.do(t, http.MethodPost, "/api/v1/wizards/otp/"+id+"/back", nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "validate", body["wizard"].(map[string]any)["step"])

	status, _ = f.do(t, http.MethodDelete, "/api/v1/wizards/otp/"+id, nil)
	require.Equal(t, http.StatusOK, status)
	status, _ = f.do(t, http.MethodGet, "/api/v1/wizards/otp/"+id, nil)
	assert.Equal(t, http.StatusNotFound, status)
}

func TestOTPWizardWrongStep(t *testing.T) {
	f := newFixture(t)

	_, body := f.do(t, http.MethodPost, "/api/v1/wizards/otp", nil)
	id := body["wizard"].(map[string]any)["id"].(string)

	status, _ := f.do(t, http.MethodPost, "/api/v1/wizards/otp/"+id+"/validate", map[string]string{"otp": "123456"})
	assert.Equal(t, http.StatusConflict, status)
	status, _ = f.do(t, http.MethodPost, "/api/v1/wizards/otp/"+id+"/back", nil)
	assert.Equal(t, http.StatusConflict, status)
}

func TestPasswordWizardOverHTTP(t *testing.T) {
	f := newFixture(t)
	f.srv.Seed(remotetest.Record{Name: "Ann", Phone: "1234567890", Password: "secret1"})

	status, body := f.do(t, http.MethodPost, "/api/v1/wizards/password", map[string]string{"phone": "1234567890"})
	require.Equal(t, http.StatusCreated, status)
	id := body["wizard"].(map[string]any)["id"].(string)

	status, body = f.do(t, http.MethodPost, "/api/v1/wizards/password/"+id+"/validate", map[string]string{"password": "wrong"})
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "destructive", notice(t, body)["variant"])
	assert.Equal(t, "validate-credentials", body["wizard"].(map[string]any)["step"])

	status, body = f.do(t, http.MethodPost, "/api/v1/wizards/password/"+id+"/validate", map[string]string{"password": "secret1"})
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "change-password", body["wizard"].(map[string]any)["step"])

	status, body = f.do(t, http.MethodPost, "/api/v1/wizards/password/"+id+"/change", map[string]string{
		"password":         "newpass1",
		"confirm_password": "newpass1",
	})
	require.Equal(t, http.StatusOK, status, body)
	assert.Equal(t, true, body["result"].(map[string]any)["closed"])
	assert.Equal(t, "newpass1", f.srv.Records()[0].Password)
}

func TestJournalRecordsActions(t *testing.T) {
	f := newFixture(t)
	f.srv.Seed(remotetest.Record{Name: "Ann", Phone: "1234567890"})

	_, _ = f.do(t, http.MethodDelete, "/api/v1/users/1234567890", nil)
	_, _ = f.do(t, http.MethodDelete, "/api/v1/users/1234567890", nil)

	status, body := f.do(t, http.MethodGet, "/api/v1/journal?limit=10", nil)
	require.Equal(t, http.StatusOK, status)
	entries := body["entries"].([]any)
	require.Len(t, entries, 2)
	latest := entries[0].(map[string]any)
	assert.Equal(t, "users.delete", latest["action"])
	assert.Equal(t, "rejected", latest["outcome"])
	assert.Equal(t, "admin", latest["operator"])
	assert.Equal(t, "ok", entries[1].(map[string]any)["outcome"])
}

func TestOperatorAuthGate(t *testing.T) {
	hash, err := bcrypt.GenerateFromPassword([]byte("s3cret"), bcrypt.MinCost)
	require.NoError(t, err)
	f := newFixture(t, func(c *config.Config) { c.OperatorPasswordHash = string(hash) })

	status, _ := f.do(t, http.MethodGet, "/api/v1/users", nil)
	assert.Equal(t, http.StatusUnauthorized, status)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/users", nil)
	req.SetBasicAuth("admin", "s3cret")
	status, _ = f.request(t, req)
	assert.Equal(t, http.StatusOK, status)

	status, _ = f.do(t, http.MethodGet, "/healthz", nil)
	assert.Equal(t, http.StatusOK, status)
}

func TestMetricsEndpoint(t *testing.T) {
	f := newFixture(t)
	_, _ = f.do(t, http.MethodGet, "/api/v1/users", nil)

	resp, err := f.app.Test(httptest.NewRequest(http.MethodGet, "/metrics", nil), -1)
	require.NoError(t, err)
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	text := string(raw)
	assert.Contains(t, text, `userconsole_gateway_calls_total{operation="users.list",outcome="ok"} 1`)
	assert.Contains(t, text, `route="/api/v1/users`)
}
