// AngelaMos | 2026
// entity.go

package user

import (
	"errors"
	"time"

	"github.com/carterperez-dev/course-portal/internal/core"
)

type User struct {
	ID           string    `db:"id"`
	Name         string    `db:"name"`
	Email        string    `db:"email"`
	PasswordHash string    `db:"password_hash"`
	IsPremium    bool      `db:"is_premium"`
	IsAdmin      bool      `db:"is_admin"`
	CreatedAt    time.Time `db:"created_at"`
	UpdatedAt    time.Time `db:"updated_at"`
}

type Counts struct {
	Total   int `db:"total"   json:"total"`
	Premium int `db:"premium" json:"premium"`
	Admins  int `db:"admins"  json:"admins"`
}

var (
	ErrSelfDemotion = errors.New("cannot remove own admin status")
	ErrSelfDeletion = errors.New("cannot delete own account")
	ErrLastAdmin    = errors.New("at least one admin is required")

	ErrBlankName = core.ValidationError("name is required")
)
