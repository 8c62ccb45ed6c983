package cli

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordedRequest struct {
	Method string
	Path   string
	Auth   string
	Body   map[string]any
}

// fakeAPI records requests and replies with canned responses keyed by "METHOD path"
type fakeAPI struct {
	t         *testing.T
	server    *httptest.Server
	requests  []recordedRequest
	responses map[string]fakeResponse
}

type fakeResponse struct {
	status int
	body   string
}

func newFakeAPI(t *testing.T) *fakeAPI {
	t.Helper()
	f := &fakeAPI{t: t, responses: map[string]fakeResponse{}}
	f.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rec := recordedRequest{Method: r.Method, Path: r.URL.EscapedPath(), Auth: r.Header.Get("Authorization")}
		data, _ := io.ReadAll(r.Body)
		if len(data) > 0 {
			require.NoError(t, json.Unmarshal(data, &rec.Body))
		}
		f.requests = append(f.requests, rec)

		resp, ok := f.responses[r.Method+" "+rec.Path]
		if !ok {
			resp = fakeResponse{http.StatusNotFound, `{"error":{"code":"NOT_FOUND","message":"Not found"}}`}
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(resp.status)
		_, _ = w.Write([]byte(resp.body))
	}))
	t.Cleanup(f.server.Close)
	return f
}

func (f *fakeAPI) on(method, path string, status int, body string) {
	f.responses[method+" "+path] = fakeResponse{status, body}
}

func (f *fakeAPI) last() recordedRequest {
	f.t.Helper()
	require.NotEmpty(f.t, f.requests)
	return f.requests[len(f.requests)-1]
}

// runCLI executes the root command against the fake API and returns stdout
func runCLI(t *testing.T, api *fakeAPI, tokenFile string, args ...string) (string, error) {
	t.Helper()
	t.Setenv("MYSTARI_TOKEN", "")
	t.Setenv("MYSTARI_SERVER", "")
	t.Setenv("MYSTARI_TOKEN_FILE", "")

	cmd := NewRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(io.Discard)
	cmd.SetArgs(append([]string{"--server", api.server.URL, "--token-file", tokenFile}, args...))
	err := cmd.Execute()
	return out.String(), err
}

func TestHealth(t *testing.T) {
	api := newFakeAPI(t)
	api.on(http.MethodGet, "/api/health", http.StatusOK, `{"status":"ok"}`)

	out, err := runCLI(t, api, filepath.Join(t.TempDir(), "token"), "health")
	require.NoError(t, err)
	assert.Equal(t, "Status: ok\nServer: "+api.server.URL+"\n", out)
}

func TestHealth_Unavailable(t *testing.T) {
	api := newFakeAPI(t)
	api.on(http.MethodGet, "/api/health", http.StatusServiceUnavailable,
		`{"error":{"code":"UNAVAILABLE","message":"Service unavailable"}}`)

	_, err := runCLI(t, api, filepath.Join(t.TempDir(), "token"), "health")
	require.Error(t, err)
	assert.Equal(t, "health check against "+api.server.URL+": Service unavailable (UNAVAILABLE)", err.Error())

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusServiceUnavailable, apiErr.Status)
}

func TestAuthRegister_SavesToken(t *testing.T) {
	api := newFakeAPI(t)
	api.on(http.MethodPost, "/api/auth/register", http.StatusCreated, `{"token":"abc.def.ghi"}`)
	tokenFile := filepath.Join(t.TempDir(), "nested", "token")

	out, err := runCLI(t, api, tokenFile, "auth", "register", "--email", "a@x.io", "--pass", "pw1", "--username", "alice")
	require.NoError(t, err)
	assert.Equal(t, "Token: abc.def.ghi\n", out)

	req := api.last()
	assert.Equal(t, map[string]any{"email": "a@x.io", "password": "pw1", "username": "alice"}, req.Body)

	saved, err := os.ReadFile(tokenFile)
	require.NoError(t, err)
	assert.Equal(t, "abc.def.ghi", string(saved))
}

func TestAuthLogin_ErrorResponse(t *testing.T) {
	api := newFakeAPI(t)
	api.on(http.MethodPost, "/api/auth/login", http.StatusBadRequest,
		`{"error":{"code":"INVALID_CREDENTIALS","message":"Invalid credentials"}}`)
	tokenFile := filepath.Join(t.TempDir(), "token")

	_, err := runCLI(t, api, tokenFile, "auth", "login", "--email", "a@x.io", "--pass", "nope")
	require.Error(t, err)
	assert.Equal(t, "Invalid credentials (INVALID_CREDENTIALS)", err.Error())

	_, statErr := os.Stat(tokenFile)
	assert.True(t, os.IsNotExist(statErr))
}

func TestPlayersList_UsesSavedToken(t *testing.T) {
	api := newFakeAPI(t)
	api.on(http.MethodGet, "/api/players", http.StatusOK,
		`[{"id":"65a000000000000000000001","username":"Emberfang","level":5,"xp":420,"energy":100,"health":100,"faction":"None","rarity":"Rare","type":"Fire"}]`)
	tokenFile := filepath.Join(t.TempDir(), "token")
	require.NoError(t, os.WriteFile(tokenFile, []byte("saved-token\n"), 0600))

	out, err := runCLI(t, api, tokenFile, "players", "list")
	require.NoError(t, err)
	assert.Contains(t, out, "Emberfang")
	assert.Contains(t, out, "65a000000000000000000001")
	assert.Equal(t, "Bearer saved-token", api.last().Auth)
}

func TestPlayersList_Empty(t *testing.T) {
	api := newFakeAPI(t)
	api.on(http.MethodGet, "/api/players", http.StatusOK, `[]`)

	out, err := runCLI(t, api, filepath.Join(t.TempDir(), "token"), "players", "list")
	require.NoError(t, err)
	assert.Equal(t, "No players\n", out)
}

func TestPlayersUpdate_SendsOnlyChangedFields(t *testing.T) {
	api := newFakeAPI(t)
	id := "65a000000000000000000001"
	api.on(http.MethodPut, "/api/players/"+id, http.StatusOK,
		`{"id":"65a000000000000000000001","username":"Emberfang","level":6,"xp":0,"energy":100,"health":100,"faction":"None","rarity":"Rare","type":"Fire"}`)

	out, err := runCLI(t, api, filepath.Join(t.TempDir(), "token"), "--output", "json", "players", "update", id, "--level", "6", "--xp", "0")
	require.NoError(t, err)

	assert.Equal(t, map[string]any{"level": float64(6), "xp": float64(0)}, api.last().Body)

	var p Player
	require.NoError(t, json.Unmarshal([]byte(out), &p))
	assert.Equal(t, 6, p.Level)
}

func TestPlayersUpdate_ValidationFields(t *testing.T) {
	api := newFakeAPI(t)
	id := "65a000000000000000000001"
	api.on(http.MethodPut, "/api/players/"+id, http.StatusBadRequest,
		`{"error":{"code":"VALIDATION_FAILED","message":"Invalid fields","fields":[{"field":"type","rule":"oneof"},{"field":"level","rule":"min"}]}}`)

	_, err := runCLI(t, api, filepath.Join(t.TempDir(), "token"), "players", "update", id, "--type", "Plasma")
	require.Error(t, err)
	assert.Equal(t, "Invalid fields (VALIDATION_FAILED): type must satisfy oneof, level must satisfy min", err.Error())

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusBadRequest, apiErr.Status)
	assert.Equal(t, []FieldError{{Field: "type", Rule: "oneof"}, {Field: "level", Rule: "min"}}, apiErr.Fields)
}

func TestPlayersUpdate_RequiresAField(t *testing.T) {
	api := newFakeAPI(t)

	_, err := runCLI(t, api, filepath.Join(t.TempDir(), "token"), "players", "update", "65a000000000000000000001")
	require.Error(t, err)
	assert.Empty(t, api.requests)
}

func TestAuthPassword(t *testing.T) {
	api := newFakeAPI(t)
	api.on(http.MethodPut, "/api/auth/password", http.StatusNoContent, ``)

	out, err := runCLI(t, api, filepath.Join(t.TempDir(), "token"), "--token", "tok", "auth", "password", "--current", "old", "--new", "new")
	require.NoError(t, err)
	assert.Equal(t, "Password changed\n", out)

	req := api.last()
	assert.Equal(t, "Bearer tok", req.Auth)
	assert.Equal(t, map[string]any{"current_password": "old", "new_password": "new"}, req.Body)
}

func TestClient_NonJSONError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "bad gateway", http.StatusBadGateway)
	}))
	defer srv.Close()

	err := NewClient(srv.URL+"/", "").Get("/api/health", nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "HTTP 502")
}

func TestConfig_LoadToken(t *testing.T) {
	dir := t.TempDir()

	c := &Config{TokenFile: filepath.Join(dir, "missing")}
	require.NoError(t, c.LoadToken())
	assert.Empty(t, c.Token)

	c = &Config{Token: "flag", TokenFile: filepath.Join(dir, "missing")}
	require.NoError(t, c.LoadToken())
	assert.Equal(t, "flag", c.Token)

	c = &Config{TokenFile: filepath.Join(dir, "sub", "token")}
	require.NoError(t, c.SaveToken("persisted"))
	c.Token = ""
	require.NoError(t, c.LoadToken())
	assert.Equal(t, "persisted", c.Token)
}

func TestConfig_Validate(t *testing.T) {
	valid := &Config{ServerURL: "https://api.example", Output: "json"}
	require.NoError(t, valid.Validate())

	for name, c := range map[string]*Config{
		"bad output": {ServerURL: "http://localhost:5000", Output: "yaml"},
		"no scheme":   {ServerURL: "localhost:5000", Output: "text"},
		"ftp scheme": {ServerURL: "ftp://localhost", Output: "text"},
		"empty host": {ServerURL: "http://", Output: "text"},
	} {
		assert.Error(t, c.Validate(), name)
	}
}

func TestRoot_RejectsUnknownOutput(t *testing.T) {
	api := newFakeAPI(t)

	_, err := runCLI(t, api, filepath.Join(t.TempDir(), "token"), "--output", "yaml", "health")
	require.ErrorContains(t, err, "unknown output format")
	assert.Empty(t, api.requests)
}

func TestDefaultConfig_Env(t *testing.T) {
	t.Setenv("MYSTARI_SERVER", "http://api.example:9000")
	t.Setenv("MYSTARI_TOKEN", "env-token")
	t.Setenv("MYSTARI_TOKEN_FILE", "/tmp/mystari-token")

	c := DefaultConfig()
	assert.Equal(t, "http://api.example:9000", c.ServerURL)
	assert.Equal(t, "env-token", c.Token)
	assert.Equal(t, "/tmp/mystari-token", c.TokenFile)
	assert.Equal(t, "text", c.Output)
}
