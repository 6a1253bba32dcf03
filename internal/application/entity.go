// AngelaMos | 2026
// entity.go

package application

import (
	"time"
)

// PremiumApplication is a pending request for premium access. It is
// removed when an admin approves the applicant.
type PremiumApplication struct {
	ID        string    `db:"id"`
	Name      string    `db:"name"`
	Email     string    `db:"email"`
	Phone     string    `db:"phone"`
	Message   string    `db:"message"`
	CreatedAt time.Time `db:"created_at"`
	UpdatedAt time.Time `db:"updated_at"`
}

// Approval is the outcome of granting premium access to an email.
type Approval struct {
	Email   string
	UserID  string
	Removed int64
}
