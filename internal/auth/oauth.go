package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/github"
	"golang.org/x/oauth2/google"
)

const (
	ProviderGitHub   = "github"
	ProviderGoogle   = "google"
	ProviderPassword = "password"
)

var ErrUnknownProvider = errors.New("unknown oauth provider")

// Profile is the identity an OAuth provider vouches for.
type Profile struct {
	Provider  string
	AccountID string
	Name      string
	Email     string
	Image     string
}

type Provider interface {
	Name() string
	AuthCodeURL(state string) string
	Exchange(ctx context.Context, code string) (*Profile, error)
}

type oauthProvider struct {
	name       string
	cfg        *oauth2.Config
	profileURL string
	emailsURL  string
	decode     func(ctx context.Context, p *oauthProvider, client *http.Client) (*Profile, error)
}

func (p *oauthProvider) Name() string { return p.name }

func (p *oauthProvider) AuthCodeURL(state string) string {
	return p.cfg.AuthCodeURL(state, oauth2.AccessTypeOnline)
}

func (p *oauthProvider) Exchange(ctx context.Context, code string) (*Profile, error) {
	tok, err := p.cfg.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("%s exchange: %w", p.name, err)
	}
	return p.decode(ctx, p, p.cfg.Client(ctx, tok))
}

func getJSON(ctx context.Context, client *http.Client, url string, v any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("GET %s: status %d", url, resp.StatusCode)
	}
	return json.NewDecoder(resp.Body).Decode(v)
}

// NewGitHub reads the user and, when the profile hides it, the primary
// verified email.
func NewGitHub(clientID, clientSecret, redirectURL string) Provider {
	return &oauthProvider{
		name: ProviderGitHub,
		cfg: &oauth2.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			RedirectURL:  redirectURL,
			Endpoint:     github.Endpoint,
			Scopes:       []string{"read:user", "user:email"},
		},
		profileURL: "https://api.github.com/user",
		emailsURL:  "https://api.github.com/user/emails",
		decode: func(ctx context.Context, p *oauthProvider, client *http.Client) (*Profile, error) {
			var u struct {
				ID        int64  `json:"id"`
				Login     string `json:"login"`
				Name      string `json:"name"`
				Email     string `json:"email"`
				AvatarURL string `json:"avatar_url"`
			}
			if err := getJSON(ctx, client, p.profileURL, &u); err != nil {
				return nil, err
			}
			email := u.Email
			if email == "" {
				var emails []struct {
					Email    string `json:"email"`
					Primary  bool   `json:"primary"`
					Verified bool   `json:"verified"`
				}
				if err := getJSON(ctx, client, p.emailsURL, &emails); err == nil {
					for _, e := range emails {
						if e.Primary && e.Verified {
							email = e.Email
						}
					}
				}
			}
			name := u.Name
			if name == "" {
				name = u.Login
			}
			return &Profile{
				Provider:  ProviderGitHub,
				AccountID: strconv.FormatInt(u.ID, 10),
				Name:      name,
				Email:     email,
				Image:     u.AvatarURL,
			}, nil
		},
	}
}

func NewGoogle(clientID, clientSecret, redirectURL string) Provider {
	return &oauthProvider{
		name: ProviderGoogle,
		cfg: &oauth2.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			RedirectURL:  redirectURL,
			Endpoint:     google.Endpoint,
			Scopes:       []string{"openid", "email", "profile"},
		},
		profileURL: "https://openidconnect.googleapis.com/v1/userinfo",
		decode: func(ctx context.Context, p *oauthProvider, client *http.Client) (*Profile, error) {
			var u struct {
				Sub     string `json:"sub"`
				Name    string `json:"name"`
				Email   string `json:"email"`
				Picture string `json:"picture"`
			}
			if err := getJSON(ctx, client, p.profileURL, &u); err != nil {
				return nil, err
			}
			return &Profile{
				Provider:  ProviderGoogle,
				AccountID: u.Sub,
				Name:      u.Name,
				Email:     u.Email,
				Image:     u.Picture,
			}, nil
		},
	}
}

// Providers indexes the configured OAuth providers by name.
type Providers map[string]Provider

func (ps Providers) Get(name string) (Provider, error) {
	p, ok := ps[name]
	if !ok {
		return nil, ErrUnknownProvider
	}
	return p, nil
}

// Names lists the sign-in methods offered, password first.
func (ps Providers) Names() []string {
	out := []string{ProviderPassword}
	for _, n := range []string{ProviderGitHub, ProviderGoogle} {
		if _, ok := ps[n]; ok {
			out = append(out, n)
		}
	}
	return out
}
