// AngelaMos | 2026
// dto.go

package auth

import (
	"time"
)

type LoginRequest struct {
	Email    string `json:"email"    validate:"required,email,max=255"`
	Password string `json:"password" validate:"required,max=128"`
}

type RegisterRequest struct {
	Name     string `json:"name"     validate:"required,notblank,max=100"`
	Email    string `json:"email"    validate:"required,email,max=255"`
	Password string `json:"password" validate:"required,min=6,max=128"`
}

type SessionUser struct {
	ID        string `json:"id"`
	Email     string `json:"email"`
	Name      string `json:"name"`
	Role      string `json:"role"`
	IsPremium bool   `json:"isPremium"`
	IsAdmin   bool   `json:"isAdmin"`
}

type LoginResponse struct {
	User      SessionUser `json:"user"`
	Token     string      `json:"token"`
	ExpiresAt time.Time   `json:"expiresAt"`
}

type RegisterResponse struct {
	Message string      `json:"message"`
	User    SessionUser `json:"user"`
}

type MessageResponse struct {
	Message string `json:"message"`
}

func toSessionUser(u *UserInfo) SessionUser {
	return SessionUser{
		ID:        u.ID,
		Email:     u.Email,
		Name:      u.Name,
		Role:      RoleFor(u.IsAdmin),
		IsPremium: u.IsPremium,
		IsAdmin:   u.IsAdmin,
	}
}
