package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/dmitrijs2005/voiceauth/internal/clockx"
	"github.com/dmitrijs2005/voiceauth/internal/common"
	"github.com/dmitrijs2005/voiceauth/internal/logging"
	"github.com/dmitrijs2005/voiceauth/internal/server/models"
	"github.com/dmitrijs2005/voiceauth/internal/server/services"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var now = time.Date(2026, 5, 4, 12, 0, 0, 0, time.UTC)

type fakeAuth struct {
	msg   *services.MessageResult
	token *services.TokenResult
	user  *models.User
	err   error

	gotIP        string
	gotEmail     string
	gotToken     string
	gotRequestID string
}

func (f *fakeAuth) Register(ctx context.Context, ip, email, _ string) (*services.MessageResult, error) {
	f.gotIP, f.gotEmail = ip, email
	f.gotRequestID = logging.RequestID(ctx)
	return f.msg, f.err
}
func (f *fakeAuth) VerifyRegister(_ context.Context, email, _ string) (*services.TokenResult, error) {
	f.gotEmail = email
	return f.token, f.err
}
func (f *fakeAuth) Login(_ context.Context, ip, email, _ string) (*services.MessageResult, error) {
	f.gotIP, f.gotEmail = ip, email
	return f.msg, f.err
}
func (f *fakeAuth) VerifyLogin(_ context.Context, ip, email, _ string) (*services.TokenResult, error) {
	f.gotIP, f.gotEmail = ip, email
	return f.token, f.err
}
func (f *fakeAuth) ResendCode(_ context.Context, email, _ string) (*services.MessageResult, error) {
	f.gotEmail = email
	return f.msg, f.err
}
func (f *fakeAuth) CurrentUser(_ context.Context, token string) (*models.User, error) {
	f.gotToken = token
	return f.user, f.err
}

func newTestServer(t *testing.T, f *fakeAuth, proxies ...string) http.Handler {
	t.Helper()
	srv, err := NewHTTPServer(":0", logging.Nop{}, f, clockx.NewFake(now), proxies)
	require.NoError(t, err)
	return srv.Handler()
}

func do(h http.Handler, method, path string, body any, header map[string]string) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	for k, v := range header {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return out
}

var creds = map[string]string{"email": "a@x.com", "password": "password1"}

func TestHealth(t *testing.T) {
	rec := do(newTestServer(t, &fakeAuth{}), http.MethodGet, "/health", nil, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", decode(t, rec)["status"])
	assert.NotEmpty(t, rec.Header().Get(requestIDHeader))
}

func TestRequestID_ReusesValidIncoming(t *testing.T) {
	id := "0b6f8a52-3c51-4f0e-9d0c-6f1b3f0c9a11"
	rec := do(newTestServer(t, &fakeAuth{}), http.MethodGet, "/health", nil, map[string]string{requestIDHeader: id})
	assert.Equal(t, id, rec.Header().Get(requestIDHeader))

	rec = do(newTestServer(t, &fakeAuth{}), http.MethodGet, "/health", nil, map[string]string{requestIDHeader: "junk"})
	assert.NotEqual(t, "junk", rec.Header().Get(requestIDHeader))
}

func TestRegister_Success(t *testing.T) {
	n := 4
	f := &fakeAuth{msg: &services.MessageResult{Message: "sent", RemainingAttempts: &n}}
	rec := do(newTestServer(t, f), http.MethodPost, "/api/auth/register", creds, nil)

	require.Equal(t, http.StatusOK, rec.Code)
	body := decode(t, rec)
	assert.Equal(t, "sent", body["message"])
	assert.EqualValues(t, 4, body["remaining_attempts"])
	assert.Equal(t, "192.0.2.1", f.gotIP)
	assert.Equal(t, "a@x.com", f.gotEmail)
	assert.Equal(t, rec.Header().Get(requestIDHeader), f.gotRequestID, "service sees the request id")
}

func TestRegister_BadBody(t *testing.T) {
	h := newTestServer(t, &fakeAuth{})

	for name, body := range map[string]any{
		"missing password": map[string]string{"email": "a@x.com"},
		"invalid email":    map[string]string{"email": "nope", "password": "password1"},
		"empty":            nil,
	} {
		t.Run(name, func(t *testing.T) {
			rec := do(h, http.MethodPost, "/api/auth/register", body, nil)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
		})
	}
}

func TestVerifyRegister_Token(t *testing.T) {
	f := &fakeAuth{token: &services.TokenResult{AccessToken: "tok", TokenType: "bearer"}}
	rec := do(newTestServer(t, f), http.MethodPost, "/api/auth/verify-register",
		map[string]string{"email": "a@x.com", "code": "123456"}, nil)

	require.Equal(t, http.StatusOK, rec.Code)
	body := decode(t, rec)
	assert.Equal(t, "tok", body["access_token"])
	assert.Equal(t, "bearer", body["token_type"])
}

func TestErrorMapping(t *testing.T) {
	lockedUntil := now.Add(30 * time.Minute)

	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantHeader map[string]string
		wantDetail string
	}{
		{
			name:       "rate limited",
			err:        common.NewAuthError(common.ErrRateLimited, "too many").WithRetryAfter(90500 * time.Millisecond),
			wantStatus: http.StatusTooManyRequests,
			wantHeader: map[string]string{"Retry-After": "91"},
			wantDetail: "too many",
		},
		{
			name:       "bad credentials with remaining",
			err:        common.NewAuthError(common.ErrInvalidCredential, "email or password incorrect").WithRemaining(3),
			wantStatus: http.StatusUnauthorized,
			wantHeader: map[string]string{common.RemainingAttemptsHeaderName: "3"},
			wantDetail: "email or password incorrect",
		},
		{
			name:       "locked",
			err:        common.NewAuthError(common.ErrAccountLocked, "locked").WithLockedUntil(lockedUntil),
			wantStatus: http.StatusForbidden,
			wantHeader: map[string]string{"Retry-After": "1800"},
			wantDetail: "locked",
		},
		{
			name:       "not verified",
			err:        common.NewAuthError(common.ErrNotVerified, ""),
			wantStatus: http.StatusForbidden,
			wantDetail: "account not verified",
		},
		{
			name:       "not found",
			err:        common.NewAuthError(common.ErrorNotFound, "user not found"),
			wantStatus: http.StatusNotFound,
			wantDetail: "user not found",
		},
		{
			name:       "conflict",
			err:        common.NewAuthError(common.ErrConflict, "email already registered"),
			wantStatus: http.StatusBadRequest,
			wantDetail: "email already registered",
		},
		{
			name:       "validation",
			err:        common.NewAuthError(common.ErrorValidation, "password too short"),
			wantStatus: http.StatusBadRequest,
			wantDetail: "password too short",
		},
		{
			name:       "delivery failure",
			err:        common.NewAuthError(common.ErrDeliveryFailure, "could not send"),
			wantStatus: http.StatusInternalServerError,
			wantDetail: "could not send",
		},
		{
			name:       "internal is sanitized",
			err:        common.ErrorInternal,
			wantStatus: http.StatusInternalServerError,
			wantDetail: "internal error",
		},
		{
			name:       "unknown error is sanitized",
			err:        errors.New("pq: relation users does not exist"),
			wantStatus: http.StatusInternalServerError,
			wantDetail: "internal error",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(newTestServer(t, &fakeAuth{err: tt.err}), http.MethodPost, "/api/auth/login", creds, nil)

			assert.Equal(t, tt.wantStatus, rec.Code)
			assert.Equal(t, tt.wantDetail, decode(t, rec)["detail"])
			for k, v := range tt.wantHeader {
				assert.Equal(t, v, rec.Header().Get(k), k)
			}
		})
	}
}

func TestLocked_BodyCarriesExpiry(t *testing.T) {
	until := now.Add(time.Hour)
	f := &fakeAuth{err: common.NewAuthError(common.ErrAccountLocked, "locked").WithLockedUntil(until)}
	rec := do(newTestServer(t, f), http.MethodPost, "/api/auth/login", creds, nil)

	require.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, until.Format(time.RFC3339), decode(t, rec)["locked_until"])
}

func TestMe(t *testing.T) {
	user := &models.User{ID: "u1", Email: "a@x.com", IsVerified: true, CreatedAt: now}

	t.Run("missing header", func(t *testing.T) {
		rec := do(newTestServer(t, &fakeAuth{user: user}), http.MethodGet, "/api/auth/me", nil, nil)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		assert.Equal(t, "Bearer", rec.Header().Get("WWW-Authenticate"))
	})

	t.Run("wrong scheme", func(t *testing.T) {
		rec := do(newTestServer(t, &fakeAuth{user: user}), http.MethodGet, "/api/auth/me", nil,
			map[string]string{"Authorization": "Basic abc"})
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("invalid token", func(t *testing.T) {
		f := &fakeAuth{err: common.NewAuthError(common.ErrInvalidToken, "invalid token")}
		rec := do(newTestServer(t, f), http.MethodGet, "/api/auth/me", nil,
			map[string]string{"Authorization": "Bearer bad"})
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		assert.Equal(t, "Bearer", rec.Header().Get("WWW-Authenticate"))
		assert.Equal(t, "bad", f.gotToken)
	})

	t.Run("ok", func(t *testing.T) {
		f := &fakeAuth{user: user}
		rec := do(newTestServer(t, f), http.MethodGet, "/api/auth/me", nil,
			map[string]string{"Authorization": "Bearer good"})

		require.Equal(t, http.StatusOK, rec.Code)
		body := decode(t, rec)
		assert.Equal(t, "u1", body["id"])
		assert.Equal(t, "a@x.com", body["email"])
		assert.Equal(t, true, body["is_verified"])
		assert.NotContains(t, body, "password_hash")
		assert.NotContains(t, body, "PasswordHash")
		assert.Equal(t, "good", f.gotToken)
	})
}

func TestClientIP_TrustedProxy(t *testing.T) {
	header := map[string]string{"X-Forwarded-For": "203.0.113.7"}

	f := &fakeAuth{msg: &services.MessageResult{Message: "ok"}}
	do(newTestServer(t, f), http.MethodPost, "/api/auth/login", creds, header)
	assert.Equal(t, "192.0.2.1", f.gotIP, "untrusted peer must not set the client IP")

	f = &fakeAuth{msg: &services.MessageResult{Message: "ok"}}
	do(newTestServer(t, f, "192.0.2.0/24"), http.MethodPost, "/api/auth/login", creds, header)
	assert.Equal(t, "203.0.113.7", f.gotIP)
}
