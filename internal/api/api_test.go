package api_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	promtest "github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"

	"github.com/mystari/mystari-api/internal/api"
	"github.com/mystari/mystari-api/internal/api/apierr"
	"github.com/mystari/mystari-api/internal/api/handler"
	"github.com/mystari/mystari-api/internal/api/response"
	"github.com/mystari/mystari-api/internal/factory"
	"github.com/mystari/mystari-api/internal/model"
	"github.com/mystari/mystari-api/internal/services/oauth"
)

// testServer wires the full router over a test app
type testServer struct {
	handler http.Handler
	app     *factory.TestApp
}

func newTestServer(t *testing.T, opts ...factory.TestOption) *testServer {
	t.Helper()

	app := factory.NewTestApp(opts...)
	return &testServer{
		handler: app.Router(factory.HTTPConfig{RequestTimeout: 5 * time.Second}),
		app:     app,
	}
}

func (ts *testServer) request(method, path string, body any, token string) *httptest.ResponseRecorder {
	var reqBody *bytes.Buffer
	if body != nil {
		b, _ := json.Marshal(body)
		reqBody = bytes.NewBuffer(b)
	} else {
		reqBody = bytes.NewBuffer(nil)
	}

	req := httptest.NewRequest(method, path, reqBody)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	rr := httptest.NewRecorder()
	ts.handler.ServeHTTP(rr, req)
	return rr
}

func (ts *testServer) register(t *testing.T, email, password string) string {
	t.Helper()
	rr := ts.request(http.MethodPost, "/api/auth/register", map[string]string{
		"email":    email,
		"password": password,
		"username": "ann",
	}, "")
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())

	var resp response.TokenResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	require.NotEmpty(t, resp.Token)
	return resp.Token
}

func (ts *testServer) createPlayer(t *testing.T, username string) *model.Player {
	t.Helper()
	p, err := ts.app.PlayerService.Create(context.Background(), model.PlayerSeed{Username: username, Type: model.TypeFire})
	require.NoError(t, err)
	return p
}

func errorBody(t *testing.T, rr *httptest.ResponseRecorder) apierr.APIError {
	t.Helper()
	var resp apierr.ErrorResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp), rr.Body.String())
	return resp.Error
}

func cookieNamed(rr *httptest.ResponseRecorder, name string) *http.Cookie {
	for _, c := range rr.Result().Cookies() {
		if c.Name == name {
			return c
		}
	}
	return nil
}

func TestHealthCheck(t *testing.T) {
	ts := newTestServer(t)

	rr := ts.request(http.MethodGet, "/api/health", nil, "")
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rr.Body.String())
	assert.NotEmpty(t, rr.Header().Get("X-Request-ID"))
}

func TestRegisterReturnsTokenAndCookie(t *testing.T) {
	ts := newTestServer(t)

	rr := ts.request(http.MethodPost, "/api/auth/register", map[string]string{
		"email":    "a@x.io",
		"password": "pw123456",
	}, "")
	require.Equal(t, http.StatusCreated, rr.Code)

	var resp response.TokenResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))

	cookie := cookieNamed(rr, "token")
	require.NotNil(t, cookie)
	assert.Equal(t, resp.Token, cookie.Value)
	assert.True(t, cookie.HttpOnly)
	assert.Equal(t, "no-store", rr.Header().Get("Cache-Control"))

	claims, err := ts.app.Tokens.Verify(resp.Token)
	require.NoError(t, err)
	user, err := ts.app.MemoryStorage.GetUserByEmail(context.Background(), "a@x.io")
	require.NoError(t, err)
	assert.Equal(t, user.ID.Hex(), claims.UserID)
	assert.NotContains(t, rr.Body.String(), user.PasswordHash)
}

func TestRegisterDuplicateEmail(t *testing.T) {
	ts := newTestServer(t)
	ts.register(t, "a@x.io", "pw123456")

	rr := ts.request(http.MethodPost, "/api/auth/register", map[string]string{
		"email":    "a@x.io",
		"password": "other",
	}, "")

	assert.Equal(t, http.StatusBadRequest, rr.Code)
	body := errorBody(t, rr)
	assert.Equal(t, apierr.CodeEmailTaken, body.Code)
	assert.Equal(t, "Email already in use", body.Message)
}

func TestRegisterMissingFields(t *testing.T) {
	ts := newTestServer(t)

	rr := ts.request(http.MethodPost, "/api/auth/register", map[string]string{"email": "a@x.io"}, "")
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Equal(t, apierr.CodeValidationFailed, errorBody(t, rr).Code)

	rr = ts.request(http.MethodPost, "/api/auth/register", nil, "")
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Equal(t, apierr.CodeInvalidRequest, errorBody(t, rr).Code)
}

func TestOverlongPasswordsAreValidationErrors(t *testing.T) {
	ts := newTestServer(t)

	rr := ts.request(http.MethodPost, "/api/auth/register", map[string]string{
		"email":    "long@x.com",
		"password": strings.Repeat("p", 80),
	}, "")
	require.Equal(t, http.StatusBadRequest, rr.Code)
	body := errorBody(t, rr)
	assert.Equal(t, apierr.CodeValidationFailed, body.Code)
	assert.Equal(t, []model.FieldError{{Field: "password", Rule: "max"}}, body.Fields)

	token := ts.register(t, "a@x.io", "pw123456")
	rr = ts.request(http.MethodPut, "/api/auth/password", map[string]string{
		"current_password": "pw123456",
		"new_password":     strings.Repeat("n", 80),
	}, token)
	require.Equal(t, http.StatusBadRequest, rr.Code)
	body = errorBody(t, rr)
	assert.Equal(t, apierr.CodeValidationFailed, body.Code)
	assert.Equal(t, []model.FieldError{{Field: "new_password", Rule: "max"}}, body.Fields)
}

func TestLogin(t *testing.T) {
	ts := newTestServer(t)
	ts.register(t, "a@x.io", "pw123456")

	rr := ts.request(http.MethodPost, "/api/auth/login", map[string]string{
		"email":    "a@x.io",
		"password": "pw123456",
	}, "")
	require.Equal(t, http.StatusOK, rr.Code)

	var resp response.TokenResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	_, err := ts.app.Tokens.Verify(resp.Token)
	assert.NoError(t, err)
}

func TestLoginFailuresLookIdentical(t *testing.T) {
	ts := newTestServer(t)
	ts.register(t, "a@x.io", "pw123456")

	wrongPassword := ts.request(http.MethodPost, "/api/auth/login", map[string]string{
		"email":    "a@x.io",
		"password": "nope",
	}, "")
	unknownEmail := ts.request(http.MethodPost, "/api/auth/login", map[string]string{
		"email":    "ghost@x.io",
		"password": "pw123456",
	}, "")

	assert.Equal(t, http.StatusBadRequest, wrongPassword.Code)
	assert.Equal(t, wrongPassword.Code, unknownEmail.Code)
	assert.Equal(t, wrongPassword.Body.String(), unknownEmail.Body.String())
	assert.Equal(t, "Invalid credentials", errorBody(t, wrongPassword).Message)
}

func TestPlayersRequireToken(t *testing.T) {
	ts := newTestServer(t)

	rr := ts.request(http.MethodGet, "/api/players", nil, "")
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
	body := errorBody(t, rr)
	assert.Equal(t, apierr.CodeUnauthenticated, body.Code)
	assert.Equal(t, "No token, authorization denied", body.Message)

	rr = ts.request(http.MethodGet, "/api/players", nil, "garbage")
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
	assert.Equal(t, "Invalid token", errorBody(t, rr).Message)

	p := ts.createPlayer(t, "ember")
	rr = ts.request(http.MethodPut, "/api/players/"+p.ID.Hex(), map[string]int{"level": 5}, "")
	assert.Equal(t, http.StatusUnauthorized, rr.Code)

	stored, err := ts.app.PlayerService.Get(context.Background(), p.ID.Hex())
	require.NoError(t, err)
	assert.Equal(t, model.DefaultLevel, stored.Level)
}

func TestRegisterThenListPlayers(t *testing.T) {
	ts := newTestServer(t)
	token := ts.register(t, "a@x.io", "pw123456")

	rr := ts.request(http.MethodGet, "/api/players", nil, token)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `[]`, rr.Body.String())

	ts.createPlayer(t, "ember")
	ts.createPlayer(t, "frost")

	rr = ts.request(http.MethodGet, "/api/players", nil, token)
	require.Equal(t, http.StatusOK, rr.Code)

	var list []model.Player
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &list))
	require.Len(t, list, 2)
	assert.Equal(t, "ember", list[0].Username)
	assert.Equal(t, model.DefaultEnergy, list[0].Energy)
}

func TestCookieCarrier(t *testing.T) {
	ts := newTestServer(t)
	token := ts.register(t, "a@x.io", "pw123456")

	req := httptest.NewRequest(http.MethodGet, "/api/players", nil)
	req.AddCookie(&http.Cookie{Name: "token", Value: token})
	rr := httptest.NewRecorder()
	ts.handler.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusOK, rr.Code)
}

func TestExpiredTokenRejected(t *testing.T) {
	ts := newTestServer(t)
	token := ts.register(t, "a@x.io", "pw123456")

	ts.app.MockClock.Advance(time.Hour + time.Second)

	rr := ts.request(http.MethodGet, "/api/players", nil, token)
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
	assert.Equal(t, apierr.CodeInvalidToken, errorBody(t, rr).Code)
}

func TestUpdatePlayer(t *testing.T) {
	ts := newTestServer(t)
	token := ts.register(t, "a@x.io", "pw123456")
	p := ts.createPlayer(t, "ember")

	rr := ts.request(http.MethodPut, "/api/players/"+p.ID.Hex(), map[string]any{"level": 5, "faction": "North"}, token)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	var updated model.Player
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &updated))
	assert.Equal(t, p.ID, updated.ID)
	assert.Equal(t, 5, updated.Level)
	assert.Equal(t, "North", updated.Faction)
	assert.Equal(t, "ember", updated.Username)
	assert.Equal(t, p.XP, updated.XP)
	assert.Equal(t, p.Type, updated.Type)
}

func TestUpdatePlayerTrimsID(t *testing.T) {
	ts := newTestServer(t)
	token := ts.register(t, "a@x.io", "pw123456")
	p := ts.createPlayer(t, "ember")

	rr := ts.request(http.MethodPut, "/api/players/%20"+p.ID.Hex()+"%20", map[string]int{"xp": 10}, token)
	assert.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
}

func TestUpdatePlayerErrors(t *testing.T) {
	ts := newTestServer(t)
	token := ts.register(t, "a@x.io", "pw123456")
	p := ts.createPlayer(t, "ember")
	ts.createPlayer(t, "frost")

	tests := []struct {
		name   string
		id     string
		body   any
		status int
		code   string
	}{
		{"malformed id", "not-an-id", map[string]int{"level": 2}, http.StatusBadRequest, apierr.CodeInvalidID},
		{"unknown id", model.NewID().Hex(), map[string]int{"level": 2}, http.StatusNotFound, apierr.CodePlayerNotFound},
		{"invalid level", p.ID.Hex(), map[string]int{"level": 0}, http.StatusBadRequest, apierr.CodeValidationFailed},
		{"invalid type", p.ID.Hex(), map[string]string{"type": "Plasma"}, http.StatusBadRequest, apierr.CodeValidationFailed},
		{"taken username", p.ID.Hex(), map[string]string{"username": "frost"}, http.StatusBadRequest, apierr.CodeUsernameTaken},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := ts.request(http.MethodPut, "/api/players/"+tt.id, tt.body, token)
			assert.Equal(t, tt.status, rr.Code)
			assert.Equal(t, tt.code, errorBody(t, rr).Code)
		})
	}

	assert.Equal(t, "Invalid player ID", errorBody(t, ts.request(http.MethodPut, "/api/players/xyz", map[string]int{}, token)).Message)
}

func TestChangePassword(t *testing.T) {
	ts := newTestServer(t)
	token := ts.register(t, "a@x.io", "pw123456")

	rr := ts.request(http.MethodPut, "/api/auth/password", map[string]string{
		"current_password": "wrong",
		"new_password":     "newpass",
	}, token)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Equal(t, apierr.CodeInvalidCredentials, errorBody(t, rr).Code)

	rr = ts.request(http.MethodPut, "/api/auth/password", map[string]string{
		"current_password": "pw123456",
		"new_password":     "newpass",
	}, token)
	assert.Equal(t, http.StatusNoContent, rr.Code)

	rr = ts.request(http.MethodPost, "/api/auth/login", map[string]string{
		"email":    "a@x.io",
		"password": "newpass",
	}, "")
	assert.Equal(t, http.StatusOK, rr.Code)

	rr = ts.request(http.MethodPut, "/api/auth/password", map[string]string{
		"current_password": "newpass",
		"new_password":     "again",
	}, "")
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
}

func TestUnknownRoute(t *testing.T) {
	ts := newTestServer(t)

	rr := ts.request(http.MethodGet, "/api/nothing", nil, "")
	assert.Equal(t, http.StatusNotFound, rr.Code)
	assert.Equal(t, apierr.CodeNotFound, errorBody(t, rr).Code)
}

func TestGoogleDisabled(t *testing.T) {
	ts := newTestServer(t)

	rr := ts.request(http.MethodGet, "/api/auth/google", nil, "")
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestMetricsEndpoint(t *testing.T) {
	ts := newTestServer(t)
	ts.request(http.MethodGet, "/api/players", nil, "")

	rr := ts.request(http.MethodGet, "/metrics", nil, "")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), `mystari_http_requests_total{method="GET",route="/api/players",status="401"} 1`)
	assert.Contains(t, rr.Body.String(), `mystari_auth_total{operation="gate",outcome="rejected"} 1`)
}

func TestMetricsCountUnmatchedRequests(t *testing.T) {
	ts := newTestServer(t)

	rr := ts.request(http.MethodGet, "/api/nothing", nil, "")
	require.Equal(t, http.StatusNotFound, rr.Code)

	rr = ts.request(http.MethodDelete, "/api/auth/login", nil, "")
	require.Equal(t, http.StatusMethodNotAllowed, rr.Code)
	assert.Equal(t, apierr.CodeMethodNotAllowed, errorBody(t, rr).Code)

	requests := ts.app.Metrics.RequestsTotal
	assert.Equal(t, 1.0, promtest.ToFloat64(requests.WithLabelValues(http.MethodGet, "unmatched", "404")))
	assert.Equal(t, 1.0, promtest.ToFloat64(requests.WithLabelValues(http.MethodDelete, "unmatched", "405")))
}

func TestCORSPreflight(t *testing.T) {
	ts := newTestServer(t)

	req := httptest.NewRequest(http.MethodOptions, "/api/players", nil)
	req.Header.Set("Origin", "http://game.test")
	req.Header.Set("Access-Control-Request-Method", http.MethodGet)
	req.Header.Set("Access-Control-Request-Headers", "Authorization")
	rr := httptest.NewRecorder()
	ts.handler.ServeHTTP(rr, req)

	assert.NotEmpty(t, rr.Header().Get("Access-Control-Allow-Origin"))
	assert.Contains(t, rr.Header().Get("Access-Control-Allow-Methods"), http.MethodGet)
}

// fakeGoogle serves the token and userinfo endpoints
func fakeGoogle(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/token", func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil || r.PostForm.Get("code") != "good-code" {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusBadRequest)
			_, _ = w.Write([]byte(`{"error":"invalid_grant"}`))
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"access_token":"at-1","token_type":"Bearer","expires_in":3600}`))
	})
	mux.HandleFunc("/userinfo", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"sub":"g-1","email":"gina@x.io","email_verified":true,"name":"Gina"}`))
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func newGoogleServer(t *testing.T) *testServer {
	t.Helper()
	google := fakeGoogle(t)
	return newTestServer(t, factory.WithGoogle(oauth.Config{
		ClientID:     "id",
		ClientSecret: "secret",
		RedirectURL:  "http://localhost" + api.GoogleCallbackPath,
		Endpoint: oauth2.Endpoint{
			AuthURL:   google.URL + "/auth",
			TokenURL:  google.URL + "/token",
			AuthStyle: oauth2.AuthStyleInParams,
		},
		UserInfoURL: google.URL + "/userinfo",
	}))
}

func TestGoogleSignIn(t *testing.T) {
	ts := newGoogleServer(t)
	ts.app.MockRandom.QueueToken("state-1")

	// Start redirects to the consent page and sets the state cookie
	rr := ts.request(http.MethodGet, "/api/auth/google", nil, "")
	require.Equal(t, http.StatusFound, rr.Code)
	location, err := url.Parse(rr.Header().Get("Location"))
	require.NoError(t, err)
	assert.Equal(t, "state-1", location.Query().Get("state"))
	stateCookie := cookieNamed(rr, handler.StateCookie)
	require.NotNil(t, stateCookie)
	assert.Equal(t, "state-1", stateCookie.Value)

	// Callback exchanges the code and ends in a session cookie
	req := httptest.NewRequest(http.MethodGet, api.GoogleCallbackPath+"?state=state-1&code=good-code", nil)
	req.AddCookie(stateCookie)
	rr = httptest.NewRecorder()
	ts.handler.ServeHTTP(rr, req)

	require.Equal(t, http.StatusFound, rr.Code)
	assert.Equal(t, "/", rr.Header().Get("Location"))
	tokenCookie := cookieNamed(rr, "token")
	require.NotNil(t, tokenCookie)

	user, err := ts.app.MemoryStorage.GetUserByEmail(context.Background(), "gina@x.io")
	require.NoError(t, err)
	assert.Equal(t, "google", user.Provider)

	claims, err := ts.app.Tokens.Verify(tokenCookie.Value)
	require.NoError(t, err)
	assert.Equal(t, user.ID.Hex(), claims.UserID)

	// The cookie works against the gate
	rr = ts.request(http.MethodGet, "/api/players", nil, tokenCookie.Value)
	assert.Equal(t, http.StatusOK, rr.Code)
}

func TestGoogleCallbackFailures(t *testing.T) {
	ts := newGoogleServer(t)

	tests := []struct {
		name   string
		query  string
		cookie string
	}{
		{"state mismatch", "?state=other&code=good-code", "state-1"},
		{"missing cookie", "?state=state-1&code=good-code", ""},
		{"bad code", "?state=state-1&code=bad-code", "state-1"},
		{"provider error", "?error=access_denied&state=state-1", "state-1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, api.GoogleCallbackPath+tt.query, nil)
			if tt.cookie != "" {
				req.AddCookie(&http.Cookie{Name: handler.StateCookie, Value: tt.cookie})
			}
			rr := httptest.NewRecorder()
			ts.handler.ServeHTTP(rr, req)

			assert.Equal(t, http.StatusFound, rr.Code)
			assert.Equal(t, "/login", rr.Header().Get("Location"))
			assert.Nil(t, cookieNamed(rr, "token"))
		})
	}

	_, err := ts.app.MemoryStorage.GetUserByEmail(context.Background(), "gina@x.io")
	assert.ErrorIs(t, err, model.ErrUserNotFound)
	assert.False(t, strings.Contains(ts.request(http.MethodGet, "/metrics", nil, "").Body.String(), `operation="oauth",outcome="success"`))
}
