package auth

import (
	"crypto/rsa"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

var (
	ErrInvalidToken = errors.New("invalid token")
	ErrTokenExpired = errors.New("token expired")
)

const (
	audienceAccess  = "access"
	audienceRefresh = "refresh"
)

type Claims struct {
	UserID string `json:"user_id"`
	jwt.RegisteredClaims
}

type TokenPair struct {
	AccessToken      string    `json:"access_token"`
	AccessExpiresAt  time.Time `json:"access_expires_at"`
	RefreshToken     string    `json:"refresh_token"`
	RefreshExpiresAt time.Time `json:"refresh_expires_at"`
	RefreshID        string    `json:"-"`
}

// TokenManager signs and verifies access and refresh tokens with either an
// RSA key pair (RS256) or a shared secret (HS256).
type TokenManager struct {
	method     jwt.SigningMethod
	signKey    any
	verifyKey  any
	issuer     string
	accessTTL  time.Duration
	refreshTTL time.Duration
	now        func() time.Time
}

type TokenOptions struct {
	Alg            string
	HSSecret       string
	PrivateKeyPath string
	PublicKeyPath  string
	Issuer         string
	AccessTTL      time.Duration
	RefreshTTL     time.Duration
}

func NewTokenManager(o TokenOptions) (*TokenManager, error) {
	m := &TokenManager{
		issuer:     o.Issuer,
		accessTTL:  o.AccessTTL,
		refreshTTL: o.RefreshTTL,
		now:        time.Now,
	}
	switch strings.ToUpper(o.Alg) {
	case "HS256":
		if o.HSSecret == "" {
			return nil, errors.New("hs256 requires a secret")
		}
		m.method = jwt.SigningMethodHS256
		m.signKey = []byte(o.HSSecret)
		m.verifyKey = []byte(o.HSSecret)
	case "RS256":
		priv, err := LoadRSAPrivateKey(o.PrivateKeyPath)
		if err != nil {
			return nil, err
		}
		pub, err := LoadRSAPublicKey(o.PublicKeyPath)
		if err != nil {
			return nil, err
		}
		m.method = jwt.SigningMethodRS256
		m.signKey = priv
		m.verifyKey = pub
	default:
		return nil, fmt.Errorf("unsupported jwt alg %q", o.Alg)
	}
	return m, nil
}

func LoadRSAPrivateKey(path string) (*rsa.PrivateKey, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read private key: %w", err)
	}
	return jwt.ParseRSAPrivateKeyFromPEM(b)
}

func LoadRSAPublicKey(path string) (*rsa.PublicKey, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read public key: %w", err)
	}
	return jwt.ParseRSAPublicKeyFromPEM(b)
}

func (m *TokenManager) sign(userID, audience, id string, ttl time.Duration) (string, time.Time, error) {
	now := m.now()
	exp := now.Add(ttl)
	claims := &Claims{
		UserID: userID,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        id,
			Subject:   userID,
			Issuer:    m.issuer,
			Audience:  jwt.ClaimStrings{audience},
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
		},
	}
	signed, err := jwt.NewWithClaims(m.method, claims).SignedString(m.signKey)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign %s token: %w", audience, err)
	}
	return signed, exp, nil
}

// Issue mints a fresh access/refresh pair. The refresh token carries a
// unique id so it can be made single-use by the caller.
func (m *TokenManager) Issue(userID string) (*TokenPair, error) {
	access, accessExp, err := m.sign(userID, audienceAccess, uuid.NewString(), m.accessTTL)
	if err != nil {
		return nil, err
	}
	refreshID := uuid.NewString()
	refresh, refreshExp, err := m.sign(userID, audienceRefresh, refreshID, m.refreshTTL)
	if err != nil {
		return nil, err
	}
	return &TokenPair{
		AccessToken:      access,
		AccessExpiresAt:  accessExp,
		RefreshToken:     refresh,
		RefreshExpiresAt: refreshExp,
		RefreshID:        refreshID,
	}, nil
}

func (m *TokenManager) RefreshTTL() time.Duration { return m.refreshTTL }

func (m *TokenManager) verify(tokenStr, audience string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenStr, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		return m.verifyKey, nil
	},
		jwt.WithValidMethods([]string{m.method.Alg()}),
		jwt.WithAudience(audience),
		jwt.WithIssuer(m.issuer),
		jwt.WithTimeFunc(m.now),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
		return nil, ErrInvalidToken
	}
	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid || claims.UserID == "" {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

// ParseAccess validates an access token and returns its user id.
func (m *TokenManager) ParseAccess(tokenStr string) (string, error) {
	claims, err := m.verify(tokenStr, audienceAccess)
	if err != nil {
		return "", err
	}
	return claims.UserID, nil
}

// ParseRefresh validates a refresh token and returns its user and token id.
func (m *TokenManager) ParseRefresh(tokenStr string) (userID, tokenID string, err error) {
	claims, err := m.verify(tokenStr, audienceRefresh)
	if err != nil {
		return "", "", err
	}
	return claims.UserID, claims.ID, nil
}
