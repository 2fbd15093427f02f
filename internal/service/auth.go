package service

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"github.com/fathima-sithara/teamchat/internal/apperr"
	"github.com/fathima-sithara/teamchat/internal/auth"
	"github.com/fathima-sithara/teamchat/internal/domain"
	"github.com/fathima-sithara/teamchat/internal/repository"
	"github.com/google/uuid"
)

const oauthStateTTL = 10 * time.Minute

// TokenStore keeps single-use refresh token ids and OAuth states.
type TokenStore interface {
	StoreRefreshToken(ctx context.Context, userID, tokenID string, ttl time.Duration) error
	ConsumeRefreshToken(ctx context.Context, userID, tokenID string) (bool, error)
	RevokeRefreshToken(ctx context.Context, tokenID string) error
	StoreOAuthState(ctx context.Context, state, provider string, ttl time.Duration) error
	ConsumeOAuthState(ctx context.Context, state string) (string, error)
}

type AuthService struct {
	d         *Deps
	tokens    *auth.TokenManager
	store     TokenStore
	providers auth.Providers
}

func NewAuthService(d *Deps, tokens *auth.TokenManager, store TokenStore, providers auth.Providers) *AuthService {
	if providers == nil {
		providers = auth.Providers{}
	}
	return &AuthService{d: d, tokens: tokens, store: store, providers: providers}
}

type Session struct {
	User   *domain.User    `json:"user"`
	Tokens *auth.TokenPair `json:"tokens"`
}

func (s *AuthService) Methods() []string { return s.providers.Names() }

func (s *AuthService) SignUp(ctx context.Context, name, email, password string) (*Session, error) {
	name = strings.TrimSpace(name)
	email = strings.ToLower(strings.TrimSpace(email))
	if name == "" {
		return nil, fmt.Errorf("name is required: %w", apperr.ErrValidation)
	}
	if _, err := mail.ParseAddress(email); err != nil {
		return nil, fmt.Errorf("invalid email: %w", apperr.ErrValidation)
	}
	hash, err := auth.HashPassword(password)
	if errors.Is(err, auth.ErrPasswordTooShort) {
		return nil, fmt.Errorf("password must be at least %d characters: %w", auth.MinPasswordLen, apperr.ErrValidation)
	}
	if err != nil {
		return nil, err
	}
	u := &domain.User{
		ID:           uuid.NewString(),
		Name:         name,
		Email:        email,
		PasswordHash: hash,
		Providers:    []domain.ProviderAccount{{Provider: auth.ProviderPassword, AccountID: email}},
		CreatedAt:    s.d.now(),
	}
	if err := s.d.Store.Users.Create(ctx, u); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, fmt.Errorf("email already registered: %w", apperr.ErrConflict)
		}
		return nil, err
	}
	s.d.Log.Infow("user signed up", "user", u.ID)
	return s.session(ctx, u)
}

func (s *AuthService) SignIn(ctx context.Context, email, password string) (*Session, error) {
	u, err := s.d.Store.Users.GetByEmail(ctx, strings.ToLower(strings.TrimSpace(email)))
	if errors.Is(err, repository.ErrNotFound) {
		return nil, apperr.ErrInvalidCredentials
	}
	if err != nil {
		return nil, err
	}
	if !auth.CheckPassword(u.PasswordHash, password) {
		return nil, apperr.ErrInvalidCredentials
	}
	return s.session(ctx, u)
}

// Refresh trades a refresh token for a new pair. Each refresh token works once.
func (s *AuthService) Refresh(ctx context.Context, refreshToken string) (*Session, error) {
	userID, tokenID, err := s.tokens.ParseRefresh(refreshToken)
	if err != nil {
		return nil, fmt.Errorf("%v: %w", err, apperr.ErrUnauthorized)
	}
	ok, err := s.store.ConsumeRefreshToken(ctx, userID, tokenID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("refresh token already used: %w", apperr.ErrUnauthorized)
	}
	u, err := s.d.Store.Users.GetByID(ctx, userID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, apperr.ErrUnauthorized
	}
	if err != nil {
		return nil, err
	}
	return s.session(ctx, u)
}

// SignOut revokes the refresh token. Unparseable tokens are ignored.
func (s *AuthService) SignOut(ctx context.Context, refreshToken string) error {
	if refreshToken == "" {
		return nil
	}
	_, tokenID, err := s.tokens.ParseRefresh(refreshToken)
	if err != nil {
		return nil
	}
	return s.store.RevokeRefreshToken(ctx, tokenID)
}

// Authenticate resolves an access token to a user id.
func (s *AuthService) Authenticate(accessToken string) (string, error) {
	userID, err := s.tokens.ParseAccess(accessToken)
	if err != nil {
		return "", fmt.Errorf("%v: %w", err, apperr.ErrUnauthorized)
	}
	return userID, nil
}

// BeginOAuth returns the provider URL to send the browser to.
func (s *AuthService) BeginOAuth(ctx context.Context, provider string) (string, error) {
	p, err := s.providers.Get(provider)
	if err != nil {
		return "", fmt.Errorf("%v: %w", err, apperr.ErrNotFound)
	}
	state := uuid.NewString()
	if err := s.store.StoreOAuthState(ctx, state, provider, oauthStateTTL); err != nil {
		return "", err
	}
	return p.AuthCodeURL(state), nil
}

// CompleteOAuth finishes the provider callback. Accounts are matched by
// provider id, then by email; otherwise a new user is created.
func (s *AuthService) CompleteOAuth(ctx context.Context, provider, state, code string) (*Session, error) {
	p, err := s.providers.Get(provider)
	if err != nil {
		return nil, fmt.Errorf("%v: %w", err, apperr.ErrNotFound)
	}
	expected, err := s.store.ConsumeOAuthState(ctx, state)
	if err != nil {
		return nil, err
	}
	if expected != provider {
		return nil, fmt.Errorf("oauth state mismatch: %w", apperr.ErrUnauthorized)
	}
	profile, err := p.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("%v: %w", err, apperr.ErrUnauthorized)
	}

	u, err := s.d.Store.Users.GetByProvider(ctx, provider, profile.AccountID)
	if err == nil {
		return s.session(ctx, u)
	}
	if !errors.Is(err, repository.ErrNotFound) {
		return nil, err
	}

	acc := domain.ProviderAccount{Provider: provider, AccountID: profile.AccountID}
	email := strings.ToLower(profile.Email)
	if email != "" {
		u, err = s.d.Store.Users.GetByEmail(ctx, email)
		switch {
		case err == nil:
			if err := s.d.Store.Users.AddProvider(ctx, u.ID, acc); err != nil {
				return nil, err
			}
			s.d.Log.Infow("oauth account linked", "user", u.ID, "provider", provider)
			return s.session(ctx, u)
		case !errors.Is(err, repository.ErrNotFound):
			return nil, err
		}
	}

	name := profile.Name
	if name == "" {
		name = strings.SplitN(email, "@", 2)[0]
	}
	u = &domain.User{
		ID:        uuid.NewString(),
		Name:      name,
		Email:     email,
		Image:     profile.Image,
		Providers: []domain.ProviderAccount{acc},
		CreatedAt: s.d.now(),
	}
	if err := s.d.Store.Users.Create(ctx, u); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, fmt.Errorf("email already registered: %w", apperr.ErrConflict)
		}
		return nil, err
	}
	s.d.Log.Infow("user signed up", "user", u.ID, "provider", provider)
	return s.session(ctx, u)
}

func (s *AuthService) session(ctx context.Context, u *domain.User) (*Session, error) {
	pair, err := s.tokens.Issue(u.ID)
	if err != nil {
		return nil, fmt.Errorf("issue tokens: %w", err)
	}
	if err := s.store.StoreRefreshToken(ctx, u.ID, pair.RefreshID, s.tokens.RefreshTTL()); err != nil {
		return nil, fmt.Errorf("store refresh token: %w", err)
	}
	return &Session{User: u, Tokens: pair}, nil
}
