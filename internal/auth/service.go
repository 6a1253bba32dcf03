// AngelaMos | 2026
// service.go

package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/carterperez-dev/course-portal/internal/core"
	"github.com/carterperez-dev/course-portal/internal/middleware"
)

var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrEmailExists        = errors.New("email already exists")
)

type UserInfo struct {
	ID           string
	Email        string
	Name         string
	PasswordHash string
	IsPremium    bool
	IsAdmin      bool
}

type UserProvider interface {
	GetByEmail(ctx context.Context, email string) (*UserInfo, error)
	GetByID(ctx context.Context, id string) (*UserInfo, error)
	Create(
		ctx context.Context,
		name, email, passwordHash string,
	) (*UserInfo, error)
	UpdatePassword(ctx context.Context, userID, passwordHash string) error
}

type Service struct {
	tokens       *TokenManager
	userProvider UserProvider
	revocations  RevocationStore
	cookie       cookieSettings
}

type cookieSettings struct {
	name   string
	secure bool
}

func NewService(
	tokens *TokenManager,
	userProvider UserProvider,
	revocations RevocationStore,
) *Service {
	return &Service{
		tokens:       tokens,
		userProvider: userProvider,
		revocations:  revocations,
		cookie: cookieSettings{
			name:   tokens.config.CookieName,
			secure: tokens.config.CookieSecure,
		},
	}
}

// Login checks credentials and issues a session token. Unknown emails and
// wrong passwords are indistinguishable to the caller.
func (s *Service) Login(
	ctx context.Context,
	req LoginRequest,
) (*LoginResponse, error) {
	user, err := s.userProvider.GetByEmail(ctx, req.Email)
	if err != nil {
		if errors.Is(err, core.ErrNotFound) {
			//nolint:errcheck // timing attack prevention - always verify to prevent enumeration
			_, _ = core.VerifyPasswordTimingSafe(req.Password, "")
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("get user: %w", err)
	}

	valid, err := core.VerifyPasswordTimingSafe(req.Password, user.PasswordHash)
	if err != nil {
		return nil, fmt.Errorf("verify password: %w", err)
	}

	if !valid {
		return nil, ErrInvalidCredentials
	}

	if core.NeedsRehash(user.PasswordHash) {
		s.upgradeHash(ctx, user.ID, req.Password)
	}

	issued, err := s.tokens.Issue(user)
	if err != nil {
		return nil, fmt.Errorf("issue session: %w", err)
	}

	return &LoginResponse{
		User:      toSessionUser(user),
		Token:     issued.Token,
		ExpiresAt: issued.ExpiresAt,
	}, nil
}

func (s *Service) upgradeHash(ctx context.Context, userID, password string) {
	newHash, err := core.HashPassword(password)
	if err != nil {
		return
	}
	if err := s.userProvider.UpdatePassword(ctx, userID, newHash); err != nil {
		slog.Warn("password rehash failed", "user_id", userID, "error", err)
	}
}

func (s *Service) Register(
	ctx context.Context,
	req RegisterRequest,
) (*UserInfo, error) {
	passwordHash, err := core.HashPassword(req.Password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	user, err := s.userProvider.Create(ctx, req.Name, req.Email, passwordHash)
	if err != nil {
		if errors.Is(err, core.ErrDuplicateKey) {
			return nil, ErrEmailExists
		}
		return nil, fmt.Errorf("create user: %w", err)
	}

	return user, nil
}

// Logout revokes the presented token for the rest of its lifetime.
func (s *Service) Logout(
	ctx context.Context,
	claims *middleware.SessionClaims,
) error {
	if claims == nil || claims.TokenID == "" {
		return nil
	}

	ttl := time.Until(claims.ExpiresAt)
	if err := s.revocations.Revoke(ctx, claims.TokenID, ttl); err != nil {
		return fmt.Errorf("logout: %w", err)
	}

	return nil
}

func (s *Service) VerifySessionToken(
	ctx context.Context,
	token string,
) (*middleware.SessionClaims, error) {
	claims, err := s.tokens.Verify(token)
	if err != nil {
		return nil, err
	}

	if claims.TokenID != "" {
		revoked, err := s.revocations.IsRevoked(ctx, claims.TokenID)
		if err != nil {
			return nil, fmt.Errorf("verify session: %w", err)
		}
		if revoked {
			return nil, fmt.Errorf("verify session: %w", core.ErrTokenRevoked)
		}
	}

	return claims, nil
}

func (s *Service) CookieName() string {
	return s.cookie.name
}

// IssueSession signs a fresh token for user and sets it as the session
// cookie. Used after login and whenever the stored claims change.
func (s *Service) IssueSession(
	w http.ResponseWriter,
	user *UserInfo,
) (*IssuedToken, error) {
	issued, err := s.tokens.Issue(user)
	if err != nil {
		return nil, fmt.Errorf("issue session: %w", err)
	}

	s.setCookie(w, issued.Token, issued.ExpiresAt)
	return issued, nil
}

func (s *Service) setCookie(w http.ResponseWriter, token string, expires time.Time) {
	http.SetCookie(w, &http.Cookie{
		Name:     s.cookie.name,
		Value:    token,
		Path:     "/",
		Expires:  expires,
		MaxAge:   int(time.Until(expires).Seconds()),
		HttpOnly: true,
		Secure:   s.cookie.secure,
		SameSite: http.SameSiteLaxMode,
	})
}

func (s *Service) clearCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     s.cookie.name,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   s.cookie.secure,
		SameSite: http.SameSiteLaxMode,
	})
}

var _ middleware.TokenVerifier = (*Service)(nil)
