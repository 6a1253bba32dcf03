// AngelaMos | 2026
// repository.go

package message

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/carterperez-dev/course-portal/internal/core"
)

type Repository interface {
	FindConversation(ctx context.Context, userID, adminID string) (*Conversation, error)
	OpenConversation(ctx context.Context, userID, adminID string) (*Conversation, error)
	Append(ctx context.Context, userID, adminID string, msg *Message) (*Conversation, error)
	ListByConversation(ctx context.Context, conv *Conversation) ([]Message, error)
	MessagedUsers(ctx context.Context, adminID string) ([]MessagedUser, error)
	CountConversations(ctx context.Context) (int, error)
}

type repository struct {
	db *sqlx.DB
}

func NewRepository(db *sqlx.DB) Repository {
	return &repository{db: db}
}

const conversationColumns = `id, user_id, admin_id, created_at, last_message_at`

func (r *repository) FindConversation(
	ctx context.Context,
	userID, adminID string,
) (*Conversation, error) {
	query := `
		SELECT ` + conversationColumns + `
		FROM conversations
		WHERE user_id = $1 AND admin_id = $2`

	var conv Conversation
	err := r.db.GetContext(ctx, &conv, query, userID, adminID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("find conversation: %w", core.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("find conversation: %w", err)
	}

	return &conv, nil
}

func (r *repository) OpenConversation(
	ctx context.Context,
	userID, adminID string,
) (*Conversation, error) {
	return openConversation(ctx, r.db, userID, adminID)
}

// openConversation returns the thread for the pair, creating it if needed.
// The no-op update makes RETURNING yield the existing row on conflict.
func openConversation(
	ctx context.Context,
	db core.DBTX,
	userID, adminID string,
) (*Conversation, error) {
	query := `
		INSERT INTO conversations (id, user_id, admin_id)
		VALUES ($1, $2, $3)
		ON CONFLICT (user_id, admin_id)
		DO UPDATE SET user_id = EXCLUDED.user_id
		RETURNING ` + conversationColumns

	var conv Conversation
	if err := db.GetContext(ctx, &conv, query, uuid.New().String(), userID, adminID); err != nil {
		return nil, fmt.Errorf("open conversation: %w", err)
	}

	return &conv, nil
}

// Append stores msg in the pair's thread, creating the thread on the first
// message, and moves the thread's activity timestamp forward.
func (r *repository) Append(
	ctx context.Context,
	userID, adminID string,
	msg *Message,
) (*Conversation, error) {
	var conv *Conversation

	err := core.InTx(ctx, r.db, func(tx *sqlx.Tx) error {
		var err error
		conv, err = openConversation(ctx, tx, userID, adminID)
		if err != nil {
			return err
		}

		msg.ConversationID = conv.ID

		insert := `
			INSERT INTO messages (id, conversation_id, sender_id, receiver_id, author_id, content)
			VALUES ($1, $2, $3, $4, $5, $6)
			RETURNING created_at`

		if err := tx.GetContext(ctx, &msg.CreatedAt, insert,
			msg.ID,
			msg.ConversationID,
			msg.SenderID,
			msg.ReceiverID,
			msg.AuthorID,
			msg.Content,
		); err != nil {
			return fmt.Errorf("insert message: %w", err)
		}

		bump := `
			UPDATE conversations
			SET last_message_at = GREATEST(last_message_at, $2)
			WHERE id = $1
			RETURNING last_message_at`

		if err := tx.GetContext(ctx, &conv.LastMessageAt, bump, conv.ID, msg.CreatedAt); err != nil {
			return fmt.Errorf("touch conversation: %w", err)
		}

		return nil
	})
	if err != nil {
		return nil, err
	}

	return conv, nil
}

// ListByConversation returns the thread's messages exchanged between its
// user and admin, oldest first.
func (r *repository) ListByConversation(
	ctx context.Context,
	conv *Conversation,
) ([]Message, error) {
	query := `
		SELECT id, conversation_id, sender_id, receiver_id,
		       COALESCE(author_id, sender_id) AS author_id, content, created_at
		FROM messages
		WHERE conversation_id = $1
		  AND ((sender_id = $2 AND receiver_id = $3)
		    OR (sender_id = $3 AND receiver_id = $2))
		ORDER BY created_at ASC, id ASC`

	msgs := []Message{}
	if err := r.db.SelectContext(ctx, &msgs, query, conv.ID, conv.UserID, conv.AdminID); err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}

	return msgs, nil
}

// MessagedUsers lists users whose thread with adminID holds at least one
// message, most recent activity first.
func (r *repository) MessagedUsers(
	ctx context.Context,
	adminID string,
) ([]MessagedUser, error) {
	query := `
		SELECT u.id, u.name, u.email,
		       c.id AS conversation_id, c.last_message_at
		FROM conversations c
		JOIN users u ON u.id = c.user_id
		WHERE c.admin_id = $1
		  AND EXISTS (SELECT 1 FROM messages m WHERE m.conversation_id = c.id)
		ORDER BY c.last_message_at DESC, u.id ASC`

	users := []MessagedUser{}
	if err := r.db.SelectContext(ctx, &users, query, adminID); err != nil {
		return nil, fmt.Errorf("messaged users: %w", err)
	}

	return users, nil
}

func (r *repository) CountConversations(ctx context.Context) (int, error) {
	var n int
	query := `
		SELECT COUNT(*) FROM conversations c
		WHERE EXISTS (SELECT 1 FROM messages m WHERE m.conversation_id = c.id)`

	if err := r.db.GetContext(ctx, &n, query); err != nil {
		return 0, fmt.Errorf("count conversations: %w", err)
	}
	return n, nil
}
