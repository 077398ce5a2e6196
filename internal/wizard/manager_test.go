package wizard

import (
	"context"
	"net/http"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opsdesk/userconsole/internal/guard"
	"github.com/opsdesk/userconsole/internal/remotetest"
)

type transitions []string

func (t *transitions) ObserveTransition(wizard, step string) {
	*t = append(*t, wizard+":"+step)
}

func newManager(t *testing.T, srv *remotetest.Server, store Store, g guard.Guard) (*Manager, *transitions) {
	t.Helper()
	usersGW, otpGW := gateways(t, srv)
	obs := &transitions{}
	return NewManager(Config{Store: store, Guard: g, Users: usersGW, OTP: otpGW, Observer: obs}), obs
}

func TestManagerOTPSessionAcrossCalls(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	srv := remotetest.New(t)
	srv.Seed(remotetest.Record{Name: "Ann", Phone: "9998887777"})
	m, obs := newManager(t, srv, NewRedisStore(client), guard.NewRedis(client))
	ctx := context.Background()

	opened, err := m.OpenOTP(ctx)
	require.NoError(t, err)
	assert.True(t, mr.Exists(redisPrefix+"otp:"+opened.ID))

	w, res, err := m.GenerateOTP(ctx, opened.ID, GenerateInput{Phone: "9998887777", Role: "in-bound"})
	require.NoError(t, err)
	assert.True(t, res.OK)
	assert.Equal(t, StepValidate, w.Step)

	gen := srv.CallsTo(http.MethodPost, "/user/generate_user_otp")
	require.Len(t, gen, 1)
	assert.Equal(t, "inbound", gen[0].Query.Get("user_role"))

	stored, err := m.OTP(ctx, opened.ID)
	require.NoError(t, err)
	assert.Equal(t, "9998887777", stored.ValidatePhone)

	w, _, err = m.ValidateOTP(ctx, opened.ID, ValidateInput{OTP: "123456"})
	require.NoError(t, err)
	assert.Equal(t, StepResult, w.Step)
	assert.True(t, w.Outcome.Valid)

	w, err = m.BackOTP(ctx, opened.ID)
	require.NoError(t, err)
	assert.Equal(t, StepValidate, w.Step)

	require.NoError(t, m.CloseOTP(ctx, opened.ID))
	_, err = m.OTP(ctx, opened.ID)
	assert.ErrorIs(t, err, ErrSessionNotFound)

	assert.Equal(t, transitions{"otp:generate", "otp:validate", "otp:result", "otp:validate", "otp:generate"}, *obs)
}

func TestManagerUnknownSession(t *testing.T) {
	m, _ := newManager(t, remotetest.New(t), nil, nil)
	_, _, err := m.ValidateCredentials(context.Background(), "missing", "1234567890", "x")
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

func TestManagerRejectsConcurrentStep(t *testing.T) {
	g := guard.NewMemory()
	m, _ := newManager(t, remotetest.New(t), nil, g)
	ctx := context.Background()

	w, err := m.OpenPassword(ctx, "1234567890")
	require.NoError(t, err)

	release, err := g.Acquire(ctx, "wizard:"+w.ID, time.Minute)
	require.NoError(t, err)
	_, _, err = m.ValidateCredentials(ctx, w.ID, "", "secret1")
	assert.ErrorIs(t, err, ErrBusy)
	release()
}

func TestManagerPasswordChangeDropsSession(t *testing.T) {
	srv := remotetest.New(t)
	srv.Seed(remotetest.Record{Name: "Ann", Phone: "1234567890", Password: "secret1"})
	m, _ := newManager(t, srv, nil, nil)
	ctx := context.Background()

	w, err := m.OpenPassword(ctx, "")
	require.NoError(t, err)

	_, res, err := m.ValidateCredentials(ctx, w.ID, "1234567890", "secret1")
	require.NoError(t, err)
	require.True(t, res.OK)

	_, res, err = m.ChangePassword(ctx, w.ID, "newpass1", "newpass1")
	require.NoError(t, err)
	assert.True(t, res.Closed)

	_, err = m.Password(ctx, w.ID)
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

func TestManagerKeepsStateOnRemoteFailure(t *testing.T) {
	srv := remotetest.New(t)
	srv.Fail("GET /user/validate", remotetest.Failure{Status: http.StatusServiceUnavailable, Message: "maintenance"})
	m, _ := newManager(t, srv, nil, nil)
	ctx := context.Background()

	w, err := m.OpenPassword(ctx, "1234567890")
	require.NoError(t, err)

	_, res, err := m.ValidateCredentials(ctx, w.ID, "", "secret1")
	require.Error(t, err)
	assert.Equal(t, "maintenance", res.Message)

	stored, err := m.Password(ctx, w.ID)
	require.NoError(t, err)
	assert.Equal(t, StepCredentials, stored.Step)
	assert.Equal(t, "maintenance", stored.Message)
}

func TestMemoryStoreExpires(t *testing.T) {
	s := NewMemoryStore()
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return now }
	ctx := context.Background()

	require.NoError(t, s.Set(ctx, "k", []byte("v"), time.Minute))
	data, err := s.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, "v", string(data))

	now = now.Add(time.Minute)
	_, err = s.Get(ctx, "k")
	assert.ErrorIs(t, err, ErrSessionNotFound)
}
