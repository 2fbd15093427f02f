package service

import (
	"context"
	"errors"
	"net/url"
	"sync"
	"testing"
	"time"

	"github.com/fathima-sithara/teamchat/internal/apperr"
	"github.com/fathima-sithara/teamchat/internal/auth"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memTokens struct {
	mu      sync.Mutex
	refresh map[string]string
	states  map[string]string
}

func newMemTokens() *memTokens {
	return &memTokens{refresh: map[string]string{}, states: map[string]string{}}
}

func (m *memTokens) StoreRefreshToken(_ context.Context, userID, tokenID string, _ time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.refresh[tokenID] = userID
	return nil
}

func (m *memTokens) ConsumeRefreshToken(_ context.Context, userID, tokenID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	owner, ok := m.refresh[tokenID]
	delete(m.refresh, tokenID)
	return ok && owner == userID, nil
}

func (m *memTokens) RevokeRefreshToken(_ context.Context, tokenID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.refresh, tokenID)
	return nil
}

func (m *memTokens) StoreOAuthState(_ context.Context, state, provider string, _ time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.states[state] = provider
	return nil
}

func (m *memTokens) ConsumeOAuthState(_ context.Context, state string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p := m.states[state]
	delete(m.states, state)
	return p, nil
}

type stubProvider struct {
	name    string
	profile auth.Profile
}

func (p stubProvider) Name() string { return p.name }

func (p stubProvider) AuthCodeURL(state string) string {
	return "https://idp.test/authorize?state=" + url.QueryEscape(state)
}

func (p stubProvider) Exchange(_ context.Context, code string) (*auth.Profile, error) {
	if code != "good" {
		return nil, errors.New("bad code")
	}
	out := p.profile
	return &out, nil
}

func newAuth(t *testing.T, providers auth.Providers) (*fixture, *AuthService) {
	t.Helper()
	f := newFixture(t)
	tm, err := auth.NewTokenManager(auth.TokenOptions{
		Alg:        "HS256",
		HSSecret:   "test-secret",
		Issuer:     "teamchat-test",
		AccessTTL:  time.Minute,
		RefreshTTL: time.Hour,
	})
	require.NoError(t, err)
	return f, NewAuthService(f.deps, tm, newMemTokens(), providers)
}

func TestSignUpAndSignIn(t *testing.T) {
	_, a := newAuth(t, nil)
	ctx := context.Background()

	s, err := a.SignUp(ctx, "Alice", "Alice@Example.com", "secret")
	require.NoError(t, err)
	assert.Equal(t, "alice@example.com", s.User.Email)
	assert.NotEmpty(t, s.Tokens.AccessToken)

	userID, err := a.Authenticate(s.Tokens.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, s.User.ID, userID)

	_, err = a.SignUp(ctx, "Alice 2", "alice@example.com", "secret")
	assert.True(t, errors.Is(err, apperr.ErrConflict))

	_, err = a.SignUp(ctx, "Bob", "not-an-email", "secret")
	assert.True(t, errors.Is(err, apperr.ErrValidation))

	_, err = a.SignUp(ctx, "Bob", "bob@example.com", "ab")
	assert.True(t, errors.Is(err, apperr.ErrValidation))

	in, err := a.SignIn(ctx, "ALICE@example.com", "secret")
	require.NoError(t, err)
	assert.Equal(t, s.User.ID, in.User.ID)

	_, err = a.SignIn(ctx, "alice@example.com", "wrong")
	assert.True(t, errors.Is(err, apperr.ErrInvalidCredentials))
	_, err = a.SignIn(ctx, "nobody@example.com", "secret")
	assert.True(t, errors.Is(err, apperr.ErrInvalidCredentials))

	_, err = a.Authenticate(s.Tokens.RefreshToken)
	assert.True(t, errors.Is(err, apperr.ErrUnauthorized))
}

func TestRefreshIsSingleUse(t *testing.T) {
	_, a := newAuth(t, nil)
	ctx := context.Background()
	s, err := a.SignUp(ctx, "Alice", "alice@example.com", "secret")
	require.NoError(t, err)

	next, err := a.Refresh(ctx, s.Tokens.RefreshToken)
	require.NoError(t, err)
	assert.NotEqual(t, s.Tokens.RefreshToken, next.Tokens.RefreshToken)

	_, err = a.Refresh(ctx, s.Tokens.RefreshToken)
	assert.True(t, errors.Is(err, apperr.ErrUnauthorized))

	require.NoError(t, a.SignOut(ctx, next.Tokens.RefreshToken))
	_, err = a.Refresh(ctx, next.Tokens.RefreshToken)
	assert.True(t, errors.Is(err, apperr.ErrUnauthorized))

	assert.NoError(t, a.SignOut(ctx, "garbage"))
}

func TestOAuthFlow(t *testing.T) {
	gh := stubProvider{name: auth.ProviderGitHub, profile: auth.Profile{
		Provider: auth.ProviderGitHub, AccountID: "42", Name: "Octo", Email: "octo@example.com", Image: "https://avatars.test/42",
	}}
	f, a := newAuth(t, auth.Providers{auth.ProviderGitHub: gh})
	ctx := context.Background()
	assert.Equal(t, []string{auth.ProviderPassword, auth.ProviderGitHub}, a.Methods())

	_, err := a.BeginOAuth(ctx, auth.ProviderGoogle)
	assert.True(t, errors.Is(err, apperr.ErrNotFound))

	start := func() string {
		raw, err := a.BeginOAuth(ctx, auth.ProviderGitHub)
		require.NoError(t, err)
		u, err := url.Parse(raw)
		require.NoError(t, err)
		return u.Query().Get("state")
	}

	state := start()
	s, err := a.CompleteOAuth(ctx, auth.ProviderGitHub, state, "good")
	require.NoError(t, err)
	assert.Equal(t, "Octo", s.User.Name)

	_, err = a.CompleteOAuth(ctx, auth.ProviderGitHub, state, "good")
	assert.True(t, errors.Is(err, apperr.ErrUnauthorized), "state is single use")

	again, err := a.CompleteOAuth(ctx, auth.ProviderGitHub, start(), "good")
	require.NoError(t, err)
	assert.Equal(t, s.User.ID, again.User.ID)

	_, err = a.CompleteOAuth(ctx, auth.ProviderGitHub, start(), "bad")
	assert.True(t, errors.Is(err, apperr.ErrUnauthorized))

	u, err := f.store.Users.GetByID(ctx, s.User.ID)
	require.NoError(t, err)
	assert.Len(t, u.Providers, 1)
}

func TestOAuthLinksByEmail(t *testing.T) {
	google := stubProvider{name: auth.ProviderGoogle, profile: auth.Profile{
		Provider: auth.ProviderGoogle, AccountID: "g-1", Name: "Alice G", Email: "alice@example.com",
	}}
	f, a := newAuth(t, auth.Providers{auth.ProviderGoogle: google})
	ctx := context.Background()

	s, err := a.SignUp(ctx, "Alice", "alice@example.com", "secret")
	require.NoError(t, err)

	raw, err := a.BeginOAuth(ctx, auth.ProviderGoogle)
	require.NoError(t, err)
	u, err := url.Parse(raw)
	require.NoError(t, err)

	linked, err := a.CompleteOAuth(ctx, auth.ProviderGoogle, u.Query().Get("state"), "good")
	require.NoError(t, err)
	assert.Equal(t, s.User.ID, linked.User.ID)

	stored, err := f.store.Users.GetByProvider(ctx, auth.ProviderGoogle, "g-1")
	require.NoError(t, err)
	assert.Equal(t, s.User.ID, stored.ID)
}
