// Package auth verifies the bearer tokens presented to the API.
package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"slices"
	"strings"
	"time"

	"github.com/MicahParks/keyfunc/v3"
	"github.com/golang-jwt/jwt/v5"

	"github.com/estudioia/videos-api/internal/config"
)

const (
	discoveryTimeout = 10 * time.Second
	clockSkew        = 30 * time.Second
)

var (
	ErrInvalidToken  = errors.New("invalid token")
	ErrWrongAudience = errors.New("token not issued for this service")
)

// TokenVerifier checks an access token and returns who it belongs to
type TokenVerifier interface {
	Validate(tokenString string) (*Claims, error)
	Close() error
}

// Claims are the identity fields the render API reads from an OIDC access token.
type Claims struct {
	UserID            string `json:"sub"`
	Email             string `json:"email,omitempty"`
	Name              string `json:"name,omitempty"`
	PreferredUsername string `json:"preferred_username,omitempty"`
	jwt.RegisteredClaims
}

// DisplayName falls back to the login name when the token carries no full name.
func (c *Claims) DisplayName() string {
	if c.Name != "" {
		return c.Name
	}
	return c.PreferredUsername
}

// JWKSVerifier validates asymmetric tokens against the issuer's published
// key set. Keys are refreshed in the background until Close.
type JWKSVerifier struct {
	keys     keyfunc.Keyfunc
	issuer   string
	audience string
	stop     context.CancelFunc
}

// NewJWKSVerifier resolves the issuer's JWKS endpoint through OIDC discovery.
func NewJWKSVerifier(cfg *config.ZitadelConfig) (*JWKSVerifier, error) {
	if cfg.Issuer == "" {
		return nil, fmt.Errorf("zitadel issuer is required")
	}

	dctx, cancel := context.WithTimeout(context.Background(), discoveryTimeout)
	defer cancel()
	jwksURL, err := discoverJWKSURL(dctx, &http.Client{Timeout: discoveryTimeout}, cfg.Issuer)
	if err != nil {
		return nil, err
	}

	// the refresh goroutine lives on this context
	rctx, stop := context.WithCancel(context.Background())
	keys, err := keyfunc.NewDefaultCtx(rctx, []string{jwksURL})
	if err != nil {
		stop()
		return nil, fmt.Errorf("failed to load signing keys from %s: %w", jwksURL, err)
	}

	return &JWKSVerifier{
		keys:     keys,
		issuer:   cfg.Issuer,
		audience: cfg.ClientID,
		stop:     stop,
	}, nil
}

func discoverJWKSURL(ctx context.Context, hc *http.Client, issuer string) (string, error) {
	url := strings.TrimRight(issuer, "/") + "/.well-known/openid-configuration"
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", fmt.Errorf("failed to build discovery request: %w", err)
	}
	resp, err := hc.Do(req)
	if err != nil {
		return "", fmt.Errorf("oidc discovery failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("oidc discovery returned status %d", resp.StatusCode)
	}
	var doc struct {
		Issuer  string `json:"issuer"`
		JWKSURI string `json:"jwks_uri"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&doc); err != nil {
		return "", fmt.Errorf("failed to decode discovery document: %w", err)
	}
	if doc.JWKSURI == "" {
		return "", fmt.Errorf("discovery document at %s has no jwks_uri", url)
	}
	return doc.JWKSURI, nil
}

// Validate checks signature, issuer, expiry and, when a client id is
// configured, the audience.
func (v *JWKSVerifier) Validate(tokenString string) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, v.keys.Keyfunc,
		jwt.WithValidMethods([]string{"RS256", "ES256"}),
		jwt.WithIssuer(v.issuer),
		jwt.WithExpirationRequired(),
		jwt.WithLeeway(clockSkew),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidToken, err)
	}
	if !token.Valid || claims.UserID == "" {
		return nil, ErrInvalidToken
	}

	if v.audience != "" {
		aud, err := claims.GetAudience()
		if err != nil || !slices.Contains(aud, v.audience) {
			return nil, ErrWrongAudience
		}
	}
	return claims, nil
}

// Close stops the background key refresh.
func (v *JWKSVerifier) Close() error {
	if v.stop != nil {
		v.stop()
	}
	return nil
}

// BearerToken extracts the token from an Authorization header value.
func BearerToken(header string) (string, bool) {
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") || strings.TrimSpace(parts[1]) == "" {
		return "", false
	}
	return strings.TrimSpace(parts[1]), true
}
