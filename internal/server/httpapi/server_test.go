package httpapi

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/avasiliev/accountkeeper/internal/cryptox"
	"github.com/avasiliev/accountkeeper/internal/logging"
	"github.com/avasiliev/accountkeeper/internal/server/auth"
	"github.com/avasiliev/accountkeeper/internal/server/repositories/users"
	"github.com/avasiliev/accountkeeper/internal/server/services"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixture struct {
	router http.Handler
	repo   *users.MemoryRepository
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	logger := logging.NewSlogLogger(slog.New(slog.NewTextHandler(io.Discard, nil)))
	codec, err := cryptox.NewCodec(bytes.Repeat([]byte{0x11}, cryptox.KeySize), logger)
	require.NoError(t, err)

	issuer := auth.NewIssuer([]byte("http-secret"), time.Hour)
	repo := users.NewMemoryRepository()
	gate := auth.NewGate(issuer, repo, time.Second)
	accounts := services.NewAccountService(repo, codec, issuer, time.Second, logger)
	srv := NewServer(":0", NewHandler(accounts, logger), gate, logger)

	return &fixture{router: srv.Router(), repo: repo}
}

func (f *fixture) do(t *testing.T, req *http.Request) *httptest.ResponseRecorder {
	t.Helper()
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)
	return w
}

func (f *fixture) register(t *testing.T, username, email, password string) *httptest.ResponseRecorder {
	t.Helper()
	body, _ := json.Marshal(map[string]string{
		"username": username,
		"email":    email,
		"password": password,
	})
	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/register", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	return f.do(t, req)
}

func (f *fixture) login(t *testing.T, username, password string) *httptest.ResponseRecorder {
	t.Helper()
	form := url.Values{"username": {username}, "password": {password}}
	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/login", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return f.do(t, req)
}

func (f *fixture) token(t *testing.T, username, password string) string {
	t.Helper()
	w := f.login(t, username, password)
	require.Equal(t, http.StatusOK, w.Code, "login failed: %s", w.Body.String())

	var resp TokenResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Equal(t, "bearer", resp.TokenType)
	return resp.AccessToken
}

func (f *fixture) authed(t *testing.T, method, path, token string, body io.Reader) *http.Request {
	t.Helper()
	req := httptest.NewRequest(method, path, body)
	req.Header.Set("Authorization", "Bearer "+token)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return req
}

func TestRegister_Success_NoSecretInBody(t *testing.T) {
	f := newFixture(t)

	w := f.register(t, "alice", "a@x.com", "longpassword1")
	require.Equal(t, http.StatusOK, w.Code)

	var resp map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "alice", resp["username"])
	assert.Equal(t, "a@x.com", resp["email"])
	assert.Equal(t, true, resp["is_active"])
	assert.NotContains(t, resp, "password")
	assert.NotContains(t, resp, "encrypted_secret")
	assert.NotContains(t, w.Body.String(), "longpassword1")
}

func TestRegister_DuplicateEmail(t *testing.T) {
	f := newFixture(t)

	require.Equal(t, http.StatusOK, f.register(t, "alice", "a@x.com", "longpassword1").Code)

	// username also collides, but the email conflict must be reported
	w := f.register(t, "alice", "a@x.com", "otherpassword")
	require.Equal(t, http.StatusConflict, w.Code)
	assert.Contains(t, w.Body.String(), "email")
}

func TestRegister_ValidationErrors(t *testing.T) {
	f := newFixture(t)

	tests := []struct {
		name     string
		username string
		email    string
		password string
	}{
		{"short username", "al", "a@x.com", "longpassword1"},
		{"bad email", "alice", "not-an-email", "longpassword1"},
		{"short password", "alice", "a@x.com", "short"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			w := f.register(t, tc.username, tc.email, tc.password)
			assert.Equal(t, http.StatusBadRequest, w.Code)
		})
	}
}

func TestLogin_Scenarios(t *testing.T) {
	f := newFixture(t)
	require.Equal(t, http.StatusOK, f.register(t, "alice", "a@x.com", "longpassword1").Code)

	t.Run("success", func(t *testing.T) {
		tok := f.token(t, "alice", "longpassword1")
		assert.NotEmpty(t, tok)
	})

	t.Run("wrong password", func(t *testing.T) {
		w := f.login(t, "alice", "wrong")
		assert.Equal(t, http.StatusUnauthorized, w.Code)
		assert.Contains(t, w.Body.String(), "incorrect username or password")
	})

	t.Run("unknown user reads the same", func(t *testing.T) {
		w := f.login(t, "nobody", "whatever")
		assert.Equal(t, http.StatusUnauthorized, w.Code)
		assert.Contains(t, w.Body.String(), "incorrect username or password")
	})
}

func TestProtectedRoutes_RequireBearer(t *testing.T) {
	f := newFixture(t)

	w := f.do(t, httptest.NewRequest(http.MethodGet, "/api/v1/users/me", nil))
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/users/me", nil)
	req.Header.Set("Authorization", "Bearer garbage")
	assert.Equal(t, http.StatusUnauthorized, f.do(t, req).Code)

	req = httptest.NewRequest(http.MethodGet, "/api/v1/users/me", nil)
	req.Header.Set("Authorization", "Basic dXNlcjpwYXNz")
	assert.Equal(t, http.StatusUnauthorized, f.do(t, req).Code)
}

func TestMe_RoundTrip(t *testing.T) {
	f := newFixture(t)
	require.Equal(t, http.StatusOK, f.register(t, "alice", "a@x.com", "longpassword1").Code)
	tok := f.token(t, "alice", "longpassword1")

	w := f.do(t, f.authed(t, http.MethodGet, "/api/v1/users/me", tok, nil))
	require.Equal(t, http.StatusOK, w.Code)

	var resp UserResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "alice", resp.Username)
}

func TestDeactivatedUser_TokenKeepsSignatureButIsRejected(t *testing.T) {
	f := newFixture(t)
	require.Equal(t, http.StatusOK, f.register(t, "alice", "a@x.com", "longpassword1").Code)
	tok := f.token(t, "alice", "longpassword1")

	// suspend through the API using the still-valid token
	body := strings.NewReader(`{"is_active": false}`)
	w := f.do(t, f.authed(t, http.MethodPut, "/api/v1/users/me", tok, body))
	require.Equal(t, http.StatusOK, w.Code)

	// the same token is now refused with the inactive code, not 401
	w = f.do(t, f.authed(t, http.MethodGet, "/api/v1/users/me", tok, nil))
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "inactive user")

	// and logging in again is refused the same way
	assert.Equal(t, http.StatusBadRequest, f.login(t, "alice", "longpassword1").Code)
}

func TestDeletedUser_TokenYields401(t *testing.T) {
	f := newFixture(t)

	require.Equal(t, http.StatusOK, f.register(t, "alice", "a@x.com", "longpassword1").Code)
	require.Equal(t, http.StatusOK, f.register(t, "bob", "b@x.com", "longpassword2").Code)

	aliceTok := f.token(t, "alice", "longpassword1")
	bobTok := f.token(t, "bob", "longpassword2")

	var bob UserResponse
	w := f.do(t, f.authed(t, http.MethodGet, "/api/v1/users/me", bobTok, nil))
	require.Equal(t, http.StatusOK, w.Code)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &bob))

	// alice deletes bob; bob's token no longer resolves
	w = f.do(t, f.authed(t, http.MethodDelete, fmt.Sprintf("/api/v1/users/%d", bob.ID), aliceTok, nil))
	require.Equal(t, http.StatusOK, w.Code)

	w = f.do(t, f.authed(t, http.MethodGet, "/api/v1/users/me", bobTok, nil))
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestUserCRUD(t *testing.T) {
	f := newFixture(t)
	require.Equal(t, http.StatusOK, f.register(t, "alice", "a@x.com", "longpassword1").Code)
	tok := f.token(t, "alice", "longpassword1")

	t.Run("create via admin route", func(t *testing.T) {
		body := strings.NewReader(`{"username":"bob","email":"b@x.com","password":"longpassword2"}`)
		w := f.do(t, f.authed(t, http.MethodPost, "/api/v1/users", tok, body))
		assert.Equal(t, http.StatusOK, w.Code)
	})

	t.Run("list with paging", func(t *testing.T) {
		w := f.do(t, f.authed(t, http.MethodGet, "/api/v1/users?offset=1&limit=1", tok, nil))
		require.Equal(t, http.StatusOK, w.Code)

		var list []UserResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &list))
		require.Len(t, list, 1)
		assert.Equal(t, "bob", list[0].Username)
	})

	t.Run("read by id", func(t *testing.T) {
		w := f.do(t, f.authed(t, http.MethodGet, "/api/v1/users/1", tok, nil))
		assert.Equal(t, http.StatusOK, w.Code)
	})

	t.Run("read unknown id is 404", func(t *testing.T) {
		w := f.do(t, f.authed(t, http.MethodGet, "/api/v1/users/999", tok, nil))
		assert.Equal(t, http.StatusNotFound, w.Code)
	})

	t.Run("invalid id is 400", func(t *testing.T) {
		w := f.do(t, f.authed(t, http.MethodGet, "/api/v1/users/abc", tok, nil))
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("update by id re-checks uniqueness", func(t *testing.T) {
		body := strings.NewReader(`{"email":"a@x.com"}`)
		w := f.do(t, f.authed(t, http.MethodPut, "/api/v1/users/2", tok, body))
		assert.Equal(t, http.StatusConflict, w.Code)
	})

	t.Run("delete returns the removed record", func(t *testing.T) {
		w := f.do(t, f.authed(t, http.MethodDelete, "/api/v1/users/2", tok, nil))
		require.Equal(t, http.StatusOK, w.Code)

		var resp UserResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.Equal(t, "bob", resp.Username)

		w = f.do(t, f.authed(t, http.MethodDelete, "/api/v1/users/2", tok, nil))
		assert.Equal(t, http.StatusNotFound, w.Code)
	})
}

func TestRequestID_GeneratedAndEchoed(t *testing.T) {
	f := newFixture(t)

	w := f.register(t, "alice", "a@x.com", "longpassword1")
	assert.NotEmpty(t, w.Header().Get("X-Request-ID"))

	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/login", nil)
	req.Header.Set("X-Request-ID", "fixed-id")
	w = f.do(t, req)
	assert.Equal(t, "fixed-id", w.Header().Get("X-Request-ID"))
}
