package api

import (
	"bytes"
	"context"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/json"
	"encoding/pem"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/webcli/webcli/pkg/auth"
	"github.com/webcli/webcli/pkg/engine"
	"github.com/webcli/webcli/pkg/events"
	"github.com/webcli/webcli/pkg/handlers/system"
	"github.com/webcli/webcli/pkg/models"
	"github.com/webcli/webcli/pkg/queue"
	"github.com/webcli/webcli/pkg/store"
	testutil "github.com/webcli/webcli/test/util"
)

type testServer struct {
	http  *httptest.Server
	store *store.Store
	auth  *auth.Service
}

var apiUserSeq int

func setupTestServer(t *testing.T) *testServer {
	db := testutil.SetupTestDatabase(t)
	st := store.New(db)

	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	privatePEM := pem.EncodeToMemory(&pem.Block{
		Type:  "RSA PRIVATE KEY",
		Bytes: x509.MarshalPKCS1PrivateKey(key),
	})
	publicDER, err := x509.MarshalPKIXPublicKey(&key.PublicKey)
	require.NoError(t, err)
	publicPEM := pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: publicDER})

	tokens, err := auth.NewTokenService(privatePEM, publicPEM, time.Hour)
	require.NoError(t, err)
	authService := auth.NewService(st, tokens)

	bus := events.NewBus()
	pool := queue.NewWorkerPool(2, 16)
	require.NoError(t, pool.Start(context.Background()))
	t.Cleanup(pool.Stop)

	eng := engine.New(st, bus, pool, t.TempDir(), t.TempDir())
	eng.RegisterHandler(system.HandlerName, system.New())
	eng.Startup()
	t.Cleanup(eng.Shutdown)

	server := NewServer(st, authService, eng, bus, t.TempDir())
	httpServer := httptest.NewServer(server.echo)
	t.Cleanup(httpServer.Close)

	return &testServer{http: httpServer, store: st, auth: authService}
}

// createTestAccount registers a user and returns its access-token cookie.
func (ts *testServer) createTestAccount(t *testing.T) (*models.User, *http.Cookie) {
	apiUserSeq++
	email := fmt.Sprintf("api-user-%d@example.com", apiUserSeq)
	user, err := ts.auth.CreateUser(context.Background(), email, "secret")
	require.NoError(t, err)

	resp := ts.do(t, http.MethodPost, "/api/login", nil,
		map[string]string{"email": email, "password": "secret"})
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	for _, cookie := range resp.Cookies() {
		if cookie.Name == accessTokenCookie {
			return user, cookie
		}
	}
	t.Fatal("login response did not set the access-token cookie")
	return nil, nil
}

func (ts *testServer) do(t *testing.T, method, path string, cookie *http.Cookie, body any) *http.Response {
	var reqBody bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&reqBody).Encode(body))
	}
	req, err := http.NewRequest(method, ts.http.URL+path, &reqBody)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	if cookie != nil {
		req.AddCookie(cookie)
	}
	resp, err := ts.http.Client().Do(req)
	require.NoError(t, err)
	return resp
}

func decodeBody(t *testing.T, resp *http.Response, v any) {
	t.Helper()
	defer resp.Body.Close()
	require.NoError(t, json.NewDecoder(resp.Body).Decode(v))
}

func TestAPI_Login(t *testing.T) {
	ts := setupTestServer(t)

	_, err := ts.auth.CreateUser(context.Background(), "login@example.com", "secret")
	require.NoError(t, err)

	t.Run("valid credentials", func(t *testing.T) {
		resp := ts.do(t, http.MethodPost, "/api/login", nil,
			map[string]string{"email": "login@example.com", "password": "secret"})
		require.Equal(t, http.StatusOK, resp.StatusCode)

		var body map[string]string
		decodeBody(t, resp, &body)
		assert.NotEmpty(t, body["access_token"])
	})

	t.Run("wrong password", func(t *testing.T) {
		resp := ts.do(t, http.MethodPost, "/api/login", nil,
			map[string]string{"email": "login@example.com", "password": "nope"})
		defer resp.Body.Close()
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	})

	t.Run("unknown email", func(t *testing.T) {
		resp := ts.do(t, http.MethodPost, "/api/login", nil,
			map[string]string{"email": "ghost@example.com", "password": "secret"})
		defer resp.Body.Close()
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	})

	t.Run("missing fields", func(t *testing.T) {
		resp := ts.do(t, http.MethodPost, "/api/login", nil, map[string]string{})
		defer resp.Body.Close()
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})
}

func TestAPI_RequireUser(t *testing.T) {
	ts := setupTestServer(t)

	t.Run("no cookie", func(t *testing.T) {
		resp := ts.do(t, http.MethodGet, "/api/threads", nil, nil)
		defer resp.Body.Close()
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	})

	t.Run("garbage token", func(t *testing.T) {
		cookie := &http.Cookie{Name: accessTokenCookie, Value: "not-a-token"}
		resp := ts.do(t, http.MethodGet, "/api/threads", cookie, nil)
		defer resp.Body.Close()
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	})
}

func TestAPI_Threads(t *testing.T) {
	ts := setupTestServer(t)
	_, cookie := ts.createTestAccount(t)
	_, foreignCookie := ts.createTestAccount(t)

	resp := ts.do(t, http.MethodPost, "/api/threads", cookie,
		map[string]string{"title": "incidents", "description": "prod"})
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var thread models.Thread
	decodeBody(t, resp, &thread)
	assert.Equal(t, "incidents", thread.Title)
	assert.Empty(t, thread.ThreadActions)

	threadPath := fmt.Sprintf("/api/threads/%d", thread.ID)

	t.Run("get own thread", func(t *testing.T) {
		resp := ts.do(t, http.MethodGet, threadPath, cookie, nil)
		require.Equal(t, http.StatusOK, resp.StatusCode)

		var got models.Thread
		decodeBody(t, resp, &got)
		assert.Equal(t, thread.ID, got.ID)
	})

	t.Run("foreign thread looks missing", func(t *testing.T) {
		resp := ts.do(t, http.MethodGet, threadPath, foreignCookie, nil)
		defer resp.Body.Close()
		assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	})

	t.Run("list", func(t *testing.T) {
		resp := ts.do(t, http.MethodGet, "/api/threads", cookie, nil)
		require.Equal(t, http.StatusOK, resp.StatusCode)

		var threads []models.ThreadSummary
		decodeBody(t, resp, &threads)
		require.Len(t, threads, 1)
		assert.Equal(t, thread.ID, threads[0].ID)
	})

	t.Run("patch", func(t *testing.T) {
		resp := ts.do(t, http.MethodPatch, threadPath, cookie,
			map[string]string{"title": "renamed"})
		require.Equal(t, http.StatusOK, resp.StatusCode)

		var got models.Thread
		decodeBody(t, resp, &got)
		assert.Equal(t, "renamed", got.Title)
		assert.Equal(t, "prod", got.Description)
	})

	t.Run("invalid id", func(t *testing.T) {
		resp := ts.do(t, http.MethodGet, "/api/threads/zero", cookie, nil)
		defer resp.Body.Close()
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})

	t.Run("delete", func(t *testing.T) {
		resp := ts.do(t, http.MethodDelete, threadPath, cookie, nil)
		defer resp.Body.Close()
		require.Equal(t, http.StatusNoContent, resp.StatusCode)

		resp = ts.do(t, http.MethodGet, threadPath, cookie, nil)
		defer resp.Body.Close()
		assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	})
}

func TestAPI_CreateThreadAction(t *testing.T) {
	ts := setupTestServer(t)
	_, cookie := ts.createTestAccount(t)

	resp := ts.do(t, http.MethodPost, "/api/threads", cookie,
		map[string]string{"title": "work"})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var thread models.Thread
	decodeBody(t, resp, &thread)

	actionsPath := fmt.Sprintf("/api/threads/%d/actions", thread.ID)

	t.Run("dispatches to the system handler", func(t *testing.T) {
		resp := ts.do(t, http.MethodPost, actionsPath, cookie, models.CreateThreadActionRequest{
			Title:   "greeting",
			RawText: "%html%",
			Request: models.JSONMap{"type": "html", "command_text": "<h1>Hi</h1>", "args": ""},
		})
		require.Equal(t, http.StatusCreated, resp.StatusCode)

		var threadAction models.ThreadAction
		decodeBody(t, resp, &threadAction)
		require.NotNil(t, threadAction.Action)
		assert.Equal(t, 1, threadAction.DisplayOrder)

		// The handler runs asynchronously; wait for the chunk to land.
		require.Eventually(t, func() bool {
			got, err := ts.store.GetAction(context.Background(), threadAction.Action.ID, currentUserFromStore(t, ts, cookie))
			return err == nil && got.IsCompleted && len(got.ResponseChunks) == 1
		}, 5*time.Second, 50*time.Millisecond)
	})

	t.Run("no handler accepts the request", func(t *testing.T) {
		resp := ts.do(t, http.MethodPost, actionsPath, cookie, models.CreateThreadActionRequest{
			Request: models.JSONMap{"type": "unknown", "command_text": "", "args": ""},
		})
		defer resp.Body.Close()
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})
}

// currentUserFromStore resolves the cookie back to its user through the auth
// service, mirroring what the middleware does per request.
func currentUserFromStore(t *testing.T, ts *testServer, cookie *http.Cookie) *models.User {
	t.Helper()
	user, err := ts.auth.UserFromToken(context.Background(), cookie.Value)
	require.NoError(t, err)
	return user
}
