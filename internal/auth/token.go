// AngelaMos | 2026
// token.go

package auth

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/lestrrat-go/jwx/v3/jwa"
	"github.com/lestrrat-go/jwx/v3/jwk"
	"github.com/lestrrat-go/jwx/v3/jwt"

	"github.com/carterperez-dev/course-portal/internal/config"
	"github.com/carterperez-dev/course-portal/internal/core"
	"github.com/carterperez-dev/course-portal/internal/middleware"
)

const tokenTypeSession = "session"

// TokenManager signs and verifies HS256 session tokens with the shared
// secret. The token is the only carrier of authorization state.
type TokenManager struct {
	key    jwk.Key
	config config.SessionConfig
	now    func() time.Time
}

func NewTokenManager(cfg config.SessionConfig) (*TokenManager, error) {
	if cfg.Secret == "" {
		return nil, fmt.Errorf("session secret is empty")
	}

	key, err := jwk.Import([]byte(cfg.Secret))
	if err != nil {
		return nil, fmt.Errorf("import session secret: %w", err)
	}

	if setErr := key.Set(jwk.AlgorithmKey, jwa.HS256()); setErr != nil {
		return nil, fmt.Errorf("set algorithm: %w", setErr)
	}

	return &TokenManager{
		key:    key,
		config: cfg,
		now:    time.Now,
	}, nil
}

type IssuedToken struct {
	Token     string
	TokenID   string
	ExpiresAt time.Time
}

func (m *TokenManager) Issue(user *UserInfo) (*IssuedToken, error) {
	now := m.now()
	expiresAt := now.Add(m.config.TTL)
	tokenID := uuid.New().String()

	token, err := jwt.NewBuilder().
		JwtID(tokenID).
		Issuer(m.config.Issuer).
		Audience([]string{m.config.Audience}).
		Subject(user.ID).
		IssuedAt(now).
		Expiration(expiresAt).
		NotBefore(now).
		Claim("email", user.Email).
		Claim("name", user.Name).
		Claim("role", RoleFor(user.IsAdmin)).
		Claim("is_premium", user.IsPremium).
		Claim("is_admin", user.IsAdmin).
		Claim("type", tokenTypeSession).
		Build()
	if err != nil {
		return nil, fmt.Errorf("build token: %w", err)
	}

	signed, err := jwt.Sign(token, jwt.WithKey(jwa.HS256(), m.key))
	if err != nil {
		return nil, fmt.Errorf("sign token: %w", err)
	}

	return &IssuedToken{
		Token:     string(signed),
		TokenID:   tokenID,
		ExpiresAt: expiresAt,
	}, nil
}

func (m *TokenManager) Verify(tokenString string) (*middleware.SessionClaims, error) {
	token, err := jwt.Parse(
		[]byte(tokenString),
		jwt.WithKey(jwa.HS256(), m.key),
		jwt.WithValidate(true),
		jwt.WithIssuer(m.config.Issuer),
		jwt.WithAudience(m.config.Audience),
		jwt.WithClock(jwt.ClockFunc(m.now)),
	)
	if err != nil {
		if isTokenExpiredError(err) {
			return nil, fmt.Errorf("verify token: %w", core.ErrTokenExpired)
		}
		return nil, fmt.Errorf("verify token: %w", core.ErrTokenInvalid)
	}

	var tokenType string
	if err := token.Get("type", &tokenType); err != nil ||
		tokenType != tokenTypeSession {
		return nil, fmt.Errorf(
			"verify token: invalid token type: %w",
			core.ErrTokenInvalid,
		)
	}

	subject, ok := token.Subject()
	if !ok || subject == "" {
		return nil, fmt.Errorf(
			"verify token: missing subject: %w",
			core.ErrTokenInvalid,
		)
	}

	claims := &middleware.SessionClaims{UserID: subject}

	if err := token.Get("role", &claims.Role); err != nil {
		return nil, fmt.Errorf(
			"verify token: missing role claim: %w",
			core.ErrTokenInvalid,
		)
	}

	if err := token.Get("is_admin", &claims.IsAdmin); err != nil {
		return nil, fmt.Errorf(
			"verify token: missing is_admin claim: %w",
			core.ErrTokenInvalid,
		)
	}

	if err := token.Get("is_premium", &claims.IsPremium); err != nil {
		return nil, fmt.Errorf(
			"verify token: missing is_premium claim: %w",
			core.ErrTokenInvalid,
		)
	}

	//nolint:errcheck // display claims are optional
	_ = token.Get("email", &claims.Email)
	//nolint:errcheck // display claims are optional
	_ = token.Get("name", &claims.Name)

	if jti, ok := token.JwtID(); ok {
		claims.TokenID = jti
	}
	if exp, ok := token.Expiration(); ok {
		claims.ExpiresAt = exp
	}

	return claims, nil
}

func (m *TokenManager) TTL() time.Duration {
	return m.config.TTL
}

// RoleFor derives the role claim from the stored admin flag.
func RoleFor(isAdmin bool) string {
	if isAdmin {
		return middleware.RoleAdmin
	}
	return middleware.RoleUser
}

func isTokenExpiredError(err error) bool {
	if err == nil {
		return false
	}
	errStr := err.Error()
	return strings.Contains(errStr, "exp") &&
		strings.Contains(errStr, "not satisfied")
}
