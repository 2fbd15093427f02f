package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/fathima-sithara/teamchat/internal/auth"
	"github.com/fathima-sithara/teamchat/internal/repository/repotest"
	"github.com/fathima-sithara/teamchat/internal/service"
	"github.com/fathima-sithara/teamchat/internal/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type tokenStore struct {
	mu sync.Mutex
	m  map[string]string
}

func (t *tokenStore) StoreRefreshToken(_ context.Context, userID, tokenID string, _ time.Duration) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.m["r:"+tokenID] = userID
	return nil
}

func (t *tokenStore) ConsumeRefreshToken(_ context.Context, userID, tokenID string) (bool, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	owner, ok := t.m["r:"+tokenID]
	delete(t.m, "r:"+tokenID)
	return ok && owner == userID, nil
}

func (t *tokenStore) RevokeRefreshToken(_ context.Context, tokenID string) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.m, "r:"+tokenID)
	return nil
}

func (t *tokenStore) StoreOAuthState(_ context.Context, state, provider string, _ time.Duration) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.m["s:"+state] = provider
	return nil
}

func (t *tokenStore) ConsumeOAuthState(_ context.Context, state string) (string, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	p := t.m["s:"+state]
	delete(t.m, "s:"+state)
	return p, nil
}

type fakeUploads struct{ got []byte }

func (f *fakeUploads) Upload(_ context.Context, userID, filename, contentType string, data []byte) (*storage.Image, error) {
	f.got = data
	return &storage.Image{Key: "images/" + userID + "/" + filename, ContentType: contentType, Size: int64(len(data))}, nil
}

type envelope struct {
	Status  string            `json:"status"`
	Message string            `json:"message"`
	Data    json.RawMessage   `json:"data"`
	Errors  []ValidationError `json:"errors"`
}

type harness struct {
	t       *testing.T
	srv     *Server
	uploads *fakeUploads
	health  error
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	deps := &service.Deps{Store: repotest.NewStore()}
	svc := service.New(deps)
	tm, err := auth.NewTokenManager(auth.TokenOptions{Alg: "HS256", HSSecret: "api-test", AccessTTL: time.Hour, RefreshTTL: time.Hour})
	require.NoError(t, err)
	h := &harness{t: t, uploads: &fakeUploads{}}
	h.srv = New(Options{
		Services: svc,
		Auth:     service.NewAuthService(deps, tm, &tokenStore{m: map[string]string{}}, nil),
		Uploads:  h.uploads,
		Health: map[string]HealthCheck{
			"mongo": func(context.Context) error { return h.health },
		},
	})
	return h
}

func (h *harness) do(method, path, token string, body any) (*http.Response, envelope) {
	h.t.Helper()
	var r io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(h.t, err)
		r = bytes.NewReader(b)
	}
	req := httptest.NewRequest(method, path, r)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	return h.send(req)
}

func (h *harness) send(req *http.Request) (*http.Response, envelope) {
	h.t.Helper()
	resp, err := h.srv.App().Test(req, -1)
	require.NoError(h.t, err)
	raw, err := io.ReadAll(resp.Body)
	require.NoError(h.t, err)
	var env envelope
	if len(raw) > 0 && raw[0] == '{' {
		require.NoError(h.t, json.Unmarshal(raw, &env), string(raw))
	}
	return resp, env
}

func (h *harness) signUp(name string) (token, userID string) {
	h.t.Helper()
	resp, env := h.do(http.MethodPost, "/api/auth/sign-up", "", map[string]string{
		"name": name, "email": name + "@example.com", "password": "secret",
	})
	require.Equal(h.t, http.StatusCreated, resp.StatusCode, env.Message)
	var sess struct {
		User   struct{ ID string } `json:"user"`
		Tokens struct {
			AccessToken string `json:"access_token"`
		} `json:"tokens"`
	}
	require.NoError(h.t, json.Unmarshal(env.Data, &sess))
	return sess.Tokens.AccessToken, sess.User.ID
}

func decode[T any](t *testing.T, raw json.RawMessage) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(raw, &v))
	return v
}

type idOnly struct {
	ID       string `json:"id"`
	JoinCode string `json:"join_code"`
}

func TestHealthz(t *testing.T) {
	h := newHarness(t)
	resp, _ := h.do(http.MethodGet, "/healthz", "", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	h.health = errors.New("no primary")
	resp, env := h.do(http.MethodGet, "/healthz", "", nil)
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
	assert.Contains(t, string(env.Data), "no primary")
}

func TestRequiresAuth(t *testing.T) {
	h := newHarness(t)
	resp, env := h.do(http.MethodGet, "/api/v1/workspaces", "", nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Equal(t, "error", env.Status)

	resp, _ = h.do(http.MethodGet, "/api/v1/workspaces", "not-a-jwt", nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestAuthEndpoints(t *testing.T) {
	h := newHarness(t)
	h.signUp("alice")

	resp, _ := h.do(http.MethodPost, "/api/auth/sign-up", "", map[string]string{
		"name": "alice", "email": "alice@example.com", "password": "secret",
	})
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	resp, env := h.do(http.MethodPost, "/api/auth/sign-up", "", map[string]string{"name": "x", "email": "bad", "password": "1"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Len(t, env.Errors, 2)

	resp, _ = h.do(http.MethodPost, "/api/auth/sign-in", "", map[string]string{"email": "alice@example.com", "password": "nope"})
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp, _ = h.do(http.MethodPost, "/api/auth/sign-in", "", map[string]string{"email": "alice@example.com", "password": "secret"})
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	var session bool
	for _, c := range resp.Cookies() {
		if c.Name == sessionCookie && c.Value != "" {
			session = true
		}
	}
	assert.True(t, session, "session cookie set")

	resp, env = h.do(http.MethodGet, "/api/auth/methods", "", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, []string{auth.ProviderPassword}, decode[[]string](t, env.Data))

	resp, _ = h.do(http.MethodGet, "/api/auth/oauth/github", "", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestWorkspaceAndJoinEndpoints(t *testing.T) {
	h := newHarness(t)
	alice, _ := h.signUp("alice")
	bob, _ := h.signUp("bob")

	resp, env := h.do(http.MethodPost, "/api/v1/workspaces", alice, map[string]string{"name": "Acme"})
	require.Equal(t, http.StatusCreated, resp.StatusCode, env.Message)
	w := decode[idOnly](t, env.Data)

	resp, env = h.do(http.MethodPost, "/api/v1/workspaces", alice, map[string]string{})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	require.Len(t, env.Errors, 1)
	assert.Equal(t, "required", env.Errors[0].Tag)

	resp, env = h.do(http.MethodGet, "/api/v1/workspaces/"+w.ID, bob, nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "null", string(env.Data))

	resp, env = h.do(http.MethodGet, "/api/v1/workspaces/"+w.ID+"/info", bob, nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `{"name":"Acme","is_member":false}`, string(env.Data))

	resp, env = h.do(http.MethodPost, "/api/v1/workspaces/"+w.ID+"/join", bob, map[string]string{"join_code": "zzzzzz"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "invalid join code", env.Message)

	resp, _ = h.do(http.MethodPost, "/api/v1/workspaces/"+w.ID+"/join-code", bob, nil)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	resp, _ = h.do(http.MethodPost, "/api/v1/workspaces/"+w.ID+"/join", bob, map[string]string{"join_code": w.JoinCode})
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, env = h.do(http.MethodPost, "/api/v1/workspaces/"+w.ID+"/join", bob, map[string]string{"join_code": w.JoinCode})
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	assert.Equal(t, "already a member of this workspace", env.Message)

	resp, env = h.do(http.MethodGet, "/api/v1/workspaces/"+w.ID+"/members", bob, nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Len(t, decode[[]json.RawMessage](t, env.Data), 2)

	resp, _ = h.do(http.MethodDelete, "/api/v1/workspaces/"+w.ID, bob, nil)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	resp, _ = h.do(http.MethodDelete, "/api/v1/workspaces/"+w.ID, alice, nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, env = h.do(http.MethodGet, "/api/v1/workspaces", bob, nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "[]", string(env.Data))
}

func TestMessageEndpoints(t *testing.T) {
	h := newHarness(t)
	alice, _ := h.signUp("alice")

	_, env := h.do(http.MethodPost, "/api/v1/workspaces", alice, map[string]string{"name": "Acme"})
	w := decode[idOnly](t, env.Data)
	_, env = h.do(http.MethodGet, "/api/v1/workspaces/"+w.ID+"/channels", alice, nil)
	chans := decode[[]idOnly](t, env.Data)
	require.Len(t, chans, 1)

	for i := 0; i < 3; i++ {
		resp, env := h.do(http.MethodPost, "/api/v1/messages", alice, map[string]string{
			"workspace_id": w.ID, "channel_id": chans[0].ID, "body": `{"ops":[{"insert":"hello\n"}]}`,
		})
		require.Equal(t, http.StatusCreated, resp.StatusCode, env.Message)
	}
	resp, _ := h.do(http.MethodPost, "/api/v1/messages", alice, map[string]string{
		"workspace_id": w.ID, "channel_id": chans[0].ID, "body": `{"ops":[{"insert":"\n"}]}`,
	})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, env = h.do(http.MethodGet, "/api/v1/messages?channel_id="+chans[0].ID+"&num_items=2", alice, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	page := decode[struct {
		Page []struct {
			ID        string `json:"id"`
			Reactions []any  `json:"reactions"`
		} `json:"page"`
		IsDone         bool   `json:"is_done"`
		ContinueCursor string `json:"continue_cursor"`
	}](t, env.Data)
	assert.Len(t, page.Page, 2)
	assert.False(t, page.IsDone)
	assert.NotEmpty(t, page.ContinueCursor)

	resp, env = h.do(http.MethodPost, "/api/v1/messages/"+page.Page[0].ID+"/reactions", alice, map[string]string{"value": "🎉"})
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `{"id":"`+page.Page[0].ID+`","reacted":true}`, string(env.Data))

	resp, _ = h.do(http.MethodGet, "/api/v1/messages", alice, nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, _ = h.do(http.MethodGet, "/api/v1/messages?channel_id="+chans[0].ID+"&cursor=bogus!", alice, nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestPageRoutes(t *testing.T) {
	h := newHarness(t)

	resp, _ := h.do(http.MethodGet, "/", "", nil)
	assert.Equal(t, http.StatusFound, resp.StatusCode)
	assert.Equal(t, "/sign-in", resp.Header.Get("Location"))

	resp, env := h.do(http.MethodGet, "/sign-in", "", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `{"page":"sign-in"}`, string(env.Data))

	alice, _ := h.signUp("alice")
	bob, _ := h.signUp("bob")

	resp, _ = h.do(http.MethodGet, "/sign-up", alice, nil)
	assert.Equal(t, http.StatusFound, resp.StatusCode)
	assert.Equal(t, "/", resp.Header.Get("Location"))

	resp, env = h.do(http.MethodGet, "/", alice, nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `{"page":"home","action":"create_workspace"}`, string(env.Data))

	_, env = h.do(http.MethodPost, "/api/v1/workspaces", alice, map[string]string{"name": "Acme"})
	w := decode[idOnly](t, env.Data)
	_, env = h.do(http.MethodGet, "/api/v1/workspaces/"+w.ID+"/channels", alice, nil)
	ch := decode[[]idOnly](t, env.Data)[0]

	resp, _ = h.do(http.MethodGet, "/", alice, nil)
	assert.Equal(t, http.StatusFound, resp.StatusCode)
	assert.Equal(t, "/workspace/"+w.ID, resp.Header.Get("Location"))

	resp, _ = h.do(http.MethodGet, "/workspace/"+w.ID, alice, nil)
	assert.Equal(t, http.StatusFound, resp.StatusCode)
	assert.Equal(t, "/workspace/"+w.ID+"/channel/"+ch.ID, resp.Header.Get("Location"))

	resp, _ = h.do(http.MethodGet, "/workspace/"+w.ID, bob, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp, env = h.do(http.MethodGet, "/join/"+w.ID, bob, nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `{"page":"join","name":"Acme"}`, string(env.Data))

	resp, _ = h.do(http.MethodGet, "/join/"+w.ID, alice, nil)
	assert.Equal(t, http.StatusFound, resp.StatusCode)
	assert.Equal(t, "/workspace/"+w.ID, resp.Header.Get("Location"))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(&http.Cookie{Name: sessionCookie, Value: alice})
	resp, _ = h.send(req)
	assert.Equal(t, http.StatusFound, resp.StatusCode)
	assert.Equal(t, "/workspace/"+w.ID, resp.Header.Get("Location"))
}

func TestUpload(t *testing.T) {
	h := newHarness(t)
	alice, aliceID := h.signUp("alice")

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("image", "cat.png")
	require.NoError(t, err)
	_, err = part.Write([]byte("fake-bytes"))
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/v1/upload", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+alice)
	resp, env := h.send(req)
	require.Equal(t, http.StatusCreated, resp.StatusCode, env.Message)
	img := decode[storage.Image](t, env.Data)
	assert.Equal(t, "images/"+aliceID+"/cat.png", img.Key)
	assert.Equal(t, []byte("fake-bytes"), h.uploads.got)

	resp, _ = h.do(http.MethodPost, "/api/v1/upload", alice, map[string]string{})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}
