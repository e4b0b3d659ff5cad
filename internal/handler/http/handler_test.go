package http

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/abhayc-main/next-starter/internal/auth"
	"github.com/abhayc-main/next-starter/internal/domain"
	"github.com/abhayc-main/next-starter/internal/oauth"
	"github.com/abhayc-main/next-starter/internal/service"
	"github.com/abhayc-main/next-starter/pkg/health"
	"github.com/abhayc-main/next-starter/pkg/httputil"
	"github.com/abhayc-main/next-starter/pkg/middleware"
)

// ============================================================================
// Mocks
// ============================================================================

type mockAccountService struct {
	mock.Mock
}

func (m *mockAccountService) Register(ctx context.Context, input service.CredentialInput) (*service.AuthResult, error) {
	args := m.Called(ctx, input)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.AuthResult), args.Error(1)
}

func (m *mockAccountService) Login(ctx context.Context, input service.LoginInput) (*service.AuthResult, error) {
	args := m.Called(ctx, input)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.AuthResult), args.Error(1)
}

func (m *mockAccountService) SignInWithIdentity(ctx context.Context, identity domain.Identity) (*service.AuthResult, error) {
	args := m.Called(ctx, identity)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.AuthResult), args.Error(1)
}

func (m *mockAccountService) RefreshSession(ctx context.Context, prev domain.Claims) (service.IssuedSession, error) {
	args := m.Called(ctx, prev)
	return args.Get(0).(service.IssuedSession), args.Error(1)
}

func (m *mockAccountService) Session(claims domain.Claims, expires time.Time) domain.Session {
	return service.NewClaimsBuilder(nil, nil).Session(claims, expires)
}

func (m *mockAccountService) Profile(ctx context.Context, accountID string) (*domain.Account, error) {
	args := m.Called(ctx, accountID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Account), args.Error(1)
}

func (m *mockAccountService) UpdateProfile(ctx context.Context, accountID string, input service.ProfileInput) (*domain.Account, error) {
	args := m.Called(ctx, accountID, input)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Account), args.Error(1)
}

type fakeFlow struct {
	consentURL string
	state      string
	callback   oauth.Callback
	err        error
	gotFrom    string
	completed  int
}

func (f *fakeFlow) Begin(_ context.Context, _, returnTo string) (oauth.Authorization, error) {
	f.gotFrom = returnTo
	return oauth.Authorization{URL: f.consentURL, State: f.state}, f.err
}

func (f *fakeFlow) Complete(context.Context, string, string, string) (oauth.Callback, error) {
	f.completed++
	return f.callback, f.err
}

// ============================================================================
// Helpers
// ============================================================================

type testServer struct {
	handler http.Handler
	svc     *mockAccountService
	jwt     *auth.JWTManager
	flow    *fakeFlow
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	svc := &mockAccountService{}
	jwtManager := auth.NewJWTManager("test-secret-that-is-at-least-32-characters-long", time.Hour)
	flow := &fakeFlow{}

	h := NewRouter(svc, jwtManager, jwtManager.Validator(), flow, health.NewHandler(), logger, RouterConfig{
		ServiceName:       "accounts-test",
		CORS:              middleware.DefaultCORSConfig(),
		PostLoginRedirect: "/dashboard",
	})
	return &testServer{handler: h, svc: svc, jwt: jwtManager, flow: flow}
}

func (s *testServer) do(method, path, body string, header map[string]string) *httptest.ResponseRecorder {
	var r io.Reader
	if body != "" {
		r = bytes.NewBufferString(body)
	}
	req := httptest.NewRequest(method, path, r)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range header {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)
	return rec
}

func (s *testServer) bearer(t *testing.T, claims domain.Claims) map[string]string {
	t.Helper()
	token, _, err := s.jwt.Issue(claims)
	require.NoError(t, err)
	return map[string]string{"Authorization": "Bearer " + token}
}

func decodeData(t *testing.T, rec *httptest.ResponseRecorder, dst any) {
	t.Helper()
	var env struct {
		Data json.RawMessage `json:"data"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&env))
	require.NoError(t, json.Unmarshal(env.Data, dst))
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) *httputil.ErrorResponse {
	t.Helper()
	var resp httputil.Response
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	require.NotNil(t, resp.Error)
	return resp.Error
}

func sessionCookie(rec *httptest.ResponseRecorder) *http.Cookie {
	return cookieNamed(rec, middleware.SessionCookie)
}

func cookieNamed(rec *httptest.ResponseRecorder, name string) *http.Cookie {
	for _, c := range rec.Result().Cookies() {
		if c.Name == name {
			return c
		}
	}
	return nil
}

// stateCookie is the header a browser sends back after a google login began
// with state.
func stateCookie(state string) map[string]string {
	return map[string]string{"Cookie": "oauth_state_google=" + state}
}

func sampleResult() *service.AuthResult {
	acct := &domain.Account{ID: "acct-1", Email: "new@test.com", Username: "new"}
	return &service.AuthResult{
		Account: acct,
		Session: service.IssuedSession{
			Token:   "signed-token",
			Expires: time.Now().Add(time.Hour),
			Claims:  domain.ClaimsFromAccount(acct),
		},
	}
}

func strPtr(s string) *string { return &s }
