// AngelaMos | 2026
// entity.go

package message

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/carterperez-dev/course-portal/internal/core"
)

// MaxContentLength bounds a single message, counted in runes.
const MaxContentLength = 4000

// Message is one entry in a user thread. Admin replies always carry the
// designated admin as sender; AuthorID names the admin who wrote them.
type Message struct {
	ID             string    `db:"id"`
	ConversationID string    `db:"conversation_id"`
	SenderID       string    `db:"sender_id"`
	ReceiverID     string    `db:"receiver_id"`
	AuthorID       string    `db:"author_id"`
	Content        string    `db:"content"`
	CreatedAt      time.Time `db:"created_at"`
}

// Conversation is the thread between one regular user and the designated
// admin. The pair is unique.
type Conversation struct {
	ID            string    `db:"id"`
	UserID        string    `db:"user_id"`
	AdminID       string    `db:"admin_id"`
	CreatedAt     time.Time `db:"created_at"`
	LastMessageAt time.Time `db:"last_message_at"`
}

type MessagedUser struct {
	ID             string    `db:"id"`
	Name           string    `db:"name"`
	Email          string    `db:"email"`
	ConversationID string    `db:"conversation_id"`
	LastMessageAt  time.Time `db:"last_message_at"`
}

// Participant is the view of an account the messaging rules need.
type Participant struct {
	ID      string
	Name    string
	Email   string
	IsAdmin bool
}

// Directory resolves accounts for the messaging rules. It is implemented
// by the user service.
type Directory interface {
	DesignatedAdmin(ctx context.Context) (*Participant, error)
	LookupParticipant(ctx context.Context, id string) (*Participant, error)
}

var (
	ErrEmptyContent     = errors.New("message content is required")
	ErrContentTooLong   = errors.New("message content is too long")
	ErrNoReceiver       = errors.New("receiver is required")
	ErrSelfMessage      = errors.New("cannot send a message to yourself")
	ErrReceiverNotAdmin = errors.New("messages can only be sent to an admin")
	ErrReceiverIsAdmin  = errors.New("receiver must be a regular user")
	ErrNotDesignated    = errors.New("messages go to the support admin")

	ErrNoAdmin = fmt.Errorf("no admin account: %w", core.ErrNotFound)
)
