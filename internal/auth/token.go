package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/longxianmian/goodpick-go-sub000/domain/repositories"
)

// ErrInvalidToken is returned whenever a token cannot be accepted:
// bad signature, wrong type tag, or a subject that no longer exists.
var ErrInvalidToken = errors.New("invalid token")

// tokenType tags access tokens so tokens minted for other purposes
// cannot be replayed against the realtime transport.
const tokenType = "goodpick-access"

// CookieName is the HttpOnly cookie carrying the bearer token.
const CookieName = "gp_token"

// QueryParam is the query-string fallback, enabled outside production
// only: URLs leak through logs and proxies.
const QueryParam = "token"

// placeholderSecrets are well-known defaults that must never reach a
// running process.
var placeholderSecrets = map[string]struct{}{
	"your-secret-key": {},
	"changeme":        {},
	"secret":          {},
	"dev-secret":      {},
}

// Claims are the JWT claims carried by goodpick access tokens.
type Claims struct {
	SessionID string `json:"session_id"`
	TokenType string `json:"token_type"`
	jwt.RegisteredClaims
}

// Identity is the verified result of a token check. It implies the
// caller legitimately holds the identity, never that the subject is
// online.
type Identity struct {
	UserID    string
	SessionID string
}

// Authenticator issues and verifies bearer tokens and extracts them
// from a transport handshake.
type Authenticator struct {
	secret          []byte
	ttl             time.Duration
	users           repositories.UserRepository
	allowQueryToken bool
}

// New fails when no signing secret is configured or a well-known
// placeholder is detected. Callers treat that as fatal at bootstrap.
func New(secret string, users repositories.UserRepository, allowQueryToken bool) (*Authenticator, error) {
	if secret == "" {
		return nil, errors.New("JWT_SECRET is not configured")
	}
	if _, ok := placeholderSecrets[secret]; ok {
		return nil, fmt.Errorf("JWT_SECRET is a well-known placeholder value")
	}
	return &Authenticator{
		secret:          []byte(secret),
		ttl:             7 * 24 * time.Hour,
		users:           users,
		allowQueryToken: allowQueryToken,
	}, nil
}

// TTL returns the lifetime of issued tokens.
func (a *Authenticator) TTL() time.Duration { return a.ttl }

// Issue mints a signed access token for the given user and session.
func (a *Authenticator) Issue(userID, sessionID string) (string, error) {
	now := time.Now()
	claims := &Claims{
		SessionID: sessionID,
		TokenType: tokenType,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			ExpiresAt: jwt.NewNumericDate(now.Add(a.ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(a.secret)
}

// Verify checks signature, type tag and that the subject still resolves
// to an existing user. Any failure maps to ErrInvalidToken.
func (a *Authenticator) Verify(ctx context.Context, tokenString string) (*Identity, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return a.secret, nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, ErrInvalidToken
	}
	if claims.TokenType != tokenType {
		return nil, fmt.Errorf("%w: wrong token type", ErrInvalidToken)
	}
	if claims.Subject == "" {
		return nil, fmt.Errorf("%w: missing subject", ErrInvalidToken)
	}

	if _, err := a.users.GetByID(ctx, claims.Subject); err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return nil, fmt.Errorf("%w: subject no longer exists", ErrInvalidToken)
		}
		return nil, fmt.Errorf("failed to resolve token subject: %w", err)
	}

	return &Identity{UserID: claims.Subject, SessionID: claims.SessionID}, nil
}

// ExtractFromHandshake pulls a bearer token out of an upgrade request.
// Precedence: Authorization header, cookie, then the query string when
// enabled. Returns "" when no token is present.
func (a *Authenticator) ExtractFromHandshake(r *http.Request) string {
	if h := r.Header.Get("Authorization"); strings.HasPrefix(h, "Bearer ") {
		if token := strings.TrimSpace(strings.TrimPrefix(h, "Bearer ")); token != "" {
			return token
		}
	}
	if cookie, err := r.Cookie(CookieName); err == nil && cookie.Value != "" {
		return cookie.Value
	}
	if a.allowQueryToken {
		if token := r.URL.Query().Get(QueryParam); token != "" {
			return token
		}
	}
	return ""
}
