package server_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	fakeeventrepo "github.com/jrsteele09/go-calendar-sync/events/repofake"
	"github.com/jrsteele09/go-calendar-sync/internal/config"
	"github.com/jrsteele09/go-calendar-sync/server"
	fakeuserrepo "github.com/jrsteele09/go-calendar-sync/users/repofake"
	"github.com/stretchr/testify/require"
)

type testFixture struct {
	srv *httptest.Server
	now time.Time
}

func setupTestFixture(t *testing.T) *testFixture {
	t.Helper()
	t.Setenv("ALLOWED_ORIGINS", "http://localhost:3000")

	f := &testFixture{now: time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)}
	s, err := server.New(config.New(), server.Repos{
		Users:  fakeuserrepo.NewFakeUserRepo(),
		Events: fakeeventrepo.NewFakeEventRepo(),
	}, server.WithNowTime(func() time.Time { return f.now }))
	require.NoError(t, err)

	f.srv = httptest.NewServer(s)
	t.Cleanup(f.srv.Close)
	return f
}

type result struct {
	status int
	body   map[string]any
}

func (f *testFixture) call(t *testing.T, method, path, token string, body any) result {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequest(method, f.srv.URL+path, &buf)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := f.srv.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	out := result{status: resp.StatusCode, body: map[string]any{}}
	_ = json.NewDecoder(resp.Body).Decode(&out.body)
	return out
}

func (f *testFixture) register(t *testing.T, email string) string {
	t.Helper()
	res := f.call(t, http.MethodPost, "/api/auth/register", "", map[string]string{
		"name": "Ada", "email": email, "password": "secret1",
	})
	require.Equal(t, http.StatusCreated, res.status)
	token, _ := res.body["token"].(string)
	require.NotEmpty(t, token)
	user, _ := res.body["user"].(map[string]any)
	require.Equal(t, email, user["email"])
	require.NotEmpty(t, user["color"])
	return token
}

func TestHealth(t *testing.T) {
	f := setupTestFixture(t)
	res := f.call(t, http.MethodGet, "/api/health", "", nil)
	require.Equal(t, http.StatusOK, res.status)
	require.Equal(t, "OK", res.body["status"])
	require.Equal(t, "2024-05-01T09:00:00.000Z", res.body["timestamp"])
}

func TestEventLifecycle(t *testing.T) {
	f := setupTestFixture(t)
	token := f.register(t, "ada@example.com")

	created := f.call(t, http.MethodPost, "/api/events", token, map[string]string{
		"title": "  Standup ", "start": "2024-05-01T09:00:00.000Z", "end": "2024-05-01T09:15:00.000Z",
	})
	require.Equal(t, http.StatusCreated, created.status)
	event := created.body["event"].(map[string]any)
	id := event["id"].(string)
	require.Equal(t, "Standup", event["title"])
	require.NotEmpty(t, event["color"])

	list := f.call(t, http.MethodGet, "/api/events", token, nil)
	require.Equal(t, http.StatusOK, list.status)
	require.Len(t, list.body["events"], 1)

	updated := f.call(t, http.MethodPut, "/api/events/"+id, token, map[string]string{"title": "Retro"})
	require.Equal(t, http.StatusOK, updated.status)
	require.Equal(t, "Retro", updated.body["event"].(map[string]any)["title"])

	deleted := f.call(t, http.MethodDelete, "/api/events/"+id, token, nil)
	require.Equal(t, http.StatusOK, deleted.status)
	require.Equal(t, "Event deleted successfully", deleted.body["message"])

	again := f.call(t, http.MethodDelete, "/api/events/"+id, token, nil)
	require.Equal(t, http.StatusNotFound, again.status)
	require.Equal(t, "Event not found", again.body["message"])
}

func TestEventValidation(t *testing.T) {
	f := setupTestFixture(t)
	token := f.register(t, "ada@example.com")

	res := f.call(t, http.MethodPost, "/api/events", token, map[string]string{
		"title": "", "start": "2024-05-01T10:00:00Z", "end": "2024-05-01T09:00:00Z",
	})
	require.Equal(t, http.StatusBadRequest, res.status)
	issues := res.body["errors"].([]any)
	require.Len(t, issues, 2)
	require.Equal(t, "title", issues[0].(map[string]any)["path"])
	require.Equal(t, "Title is required", issues[0].(map[string]any)["msg"])

	created := f.call(t, http.MethodPost, "/api/events", token, map[string]string{
		"title": "ok", "start": "2024-05-01T09:00:00Z", "end": "2024-05-01T10:00:00Z",
	})
	id := created.body["event"].(map[string]any)["id"].(string)

	res = f.call(t, http.MethodPut, "/api/events/"+id, token, map[string]string{"end": "2024-05-01T08:00:00Z"})
	require.Equal(t, http.StatusBadRequest, res.status)
	require.Equal(t, "End date must be after start date", res.body["message"])
}

func TestEventsAreScopedToOwner(t *testing.T) {
	f := setupTestFixture(t)
	ada := f.register(t, "ada@example.com")
	bob := f.register(t, "bob@example.com")

	created := f.call(t, http.MethodPost, "/api/events", ada, map[string]string{
		"title": "private", "start": "2024-05-01T09:00:00Z", "end": "2024-05-01T10:00:00Z",
	})
	id := created.body["event"].(map[string]any)["id"].(string)

	require.Empty(t, f.call(t, http.MethodGet, "/api/events", bob, nil).body["events"])
	require.Equal(t, http.StatusNotFound, f.call(t, http.MethodDelete, "/api/events/"+id, bob, nil).status)
	require.Equal(t, http.StatusNotFound, f.call(t, http.MethodPut, "/api/events/"+id, bob, map[string]string{"title": "x"}).status)
}

func TestAuthRequired(t *testing.T) {
	f := setupTestFixture(t)
	require.Equal(t, http.StatusUnauthorized, f.call(t, http.MethodGet, "/api/events", "", nil).status)
	require.Equal(t, http.StatusUnauthorized, f.call(t, http.MethodGet, "/api/events", "garbage", nil).status)
}

func TestLogin(t *testing.T) {
	f := setupTestFixture(t)
	f.register(t, "ada@example.com")

	res := f.call(t, http.MethodPost, "/api/auth/login", "", map[string]string{"email": "ada@example.com", "password": "secret1"})
	require.Equal(t, http.StatusOK, res.status)
	require.NotEmpty(t, res.body["token"])

	res = f.call(t, http.MethodPost, "/api/auth/login", "", map[string]string{"email": "ada@example.com", "password": "wrong!"})
	require.Equal(t, http.StatusBadRequest, res.status)
	require.Equal(t, "Invalid credentials", res.body["message"])

	res = f.call(t, http.MethodPost, "/api/auth/login", "", map[string]string{})
	require.Equal(t, http.StatusBadRequest, res.status)
	require.Len(t, res.body["errors"], 2)
}

func TestRegisterDuplicate(t *testing.T) {
	f := setupTestFixture(t)
	f.register(t, "ada@example.com")
	res := f.call(t, http.MethodPost, "/api/auth/register", "", map[string]string{
		"name": "Ada", "email": "ada@example.com", "password": "secret1",
	})
	require.Equal(t, http.StatusBadRequest, res.status)
	require.Equal(t, "User already exists", res.body["message"])
}

func TestRenewRevokesPreviousToken(t *testing.T) {
	f := setupTestFixture(t)
	first := f.register(t, "ada@example.com")

	res := f.call(t, http.MethodPost, "/api/auth/renew", first, nil)
	require.Equal(t, http.StatusOK, res.status)
	renewed := res.body["token"].(string)
	require.NotEqual(t, first, renewed)

	require.Equal(t, http.StatusUnauthorized, f.call(t, http.MethodGet, "/api/events", first, nil).status)
	require.Equal(t, http.StatusOK, f.call(t, http.MethodGet, "/api/events", renewed, nil).status)
}

func TestCorsPreflight(t *testing.T) {
	f := setupTestFixture(t)
	req, err := http.NewRequest(http.MethodOptions, f.srv.URL+"/api/events", nil)
	require.NoError(t, err)
	req.Header.Set("Origin", "http://localhost:3000")
	resp, err := f.srv.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusNoContent, resp.StatusCode)
	require.Equal(t, "http://localhost:3000", resp.Header.Get("Access-Control-Allow-Origin"))
	require.Contains(t, resp.Header.Get("Access-Control-Allow-Headers"), "Authorization")
}
