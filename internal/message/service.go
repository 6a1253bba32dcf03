// AngelaMos | 2026
// service.go

package message

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"unicode/utf8"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"

	"github.com/carterperez-dev/course-portal/internal/core"
	"github.com/carterperez-dev/course-portal/internal/middleware"
)

type Service struct {
	repo      Repository
	directory Directory
	broker    Broker
}

func NewService(repo Repository, directory Directory, broker Broker) *Service {
	return &Service{
		repo:      repo,
		directory: directory,
		broker:    broker,
	}
}

// Conversation returns every message between userID and the designated
// admin, oldest first. A user who never wrote gets an empty list.
func (s *Service) Conversation(ctx context.Context, userID string) ([]Message, error) {
	if _, err := uuid.Parse(userID); err != nil {
		return nil, fmt.Errorf("conversation: user id: %w", core.ErrInvalidInput)
	}

	admin, err := s.designatedAdmin(ctx)
	if err != nil {
		return nil, err
	}

	conv, err := s.repo.FindConversation(ctx, userID, admin.ID)
	if errors.Is(err, core.ErrNotFound) {
		return []Message{}, nil
	}
	if err != nil {
		return nil, err
	}

	return s.repo.ListByConversation(ctx, conv)
}

// Send validates and stores one message, then pushes it to open streams.
//
// A regular user always writes to the designated admin. An admin must name
// a regular user; the reply lands in that user's thread sent as the
// designated admin, with the writing admin kept as author. A thread never
// holds anyone but the user and the designated admin.
func (s *Service) Send(
	ctx context.Context,
	sender *middleware.SessionClaims,
	req SendRequest,
) (*Message, error) {
	if sender == nil || sender.UserID == "" {
		return nil, fmt.Errorf("send: %w", core.ErrUnauthorized)
	}

	content := core.SanitizeText(req.Content)
	if content == "" {
		return nil, ErrEmptyContent
	}
	if utf8.RuneCountInString(content) > MaxContentLength {
		return nil, ErrContentTooLong
	}

	admin, err := s.designatedAdmin(ctx)
	if err != nil {
		return nil, err
	}

	threadUserID, err := s.route(ctx, sender, req.ReceiverID, admin)
	if err != nil {
		return nil, err
	}

	msg := &Message{
		ID:         uuid.New().String(),
		SenderID:   threadUserID,
		ReceiverID: admin.ID,
		AuthorID:   sender.UserID,
		Content:    content,
	}
	if sender.IsAdmin {
		msg.SenderID, msg.ReceiverID = admin.ID, threadUserID
	}

	ctx, span := core.StartSpan(ctx, "message.send",
		attribute.String("message.sender_id", msg.SenderID),
		attribute.String("message.receiver_id", msg.ReceiverID),
		attribute.String("message.author_id", msg.AuthorID),
	)
	defer span.End()

	conv, err := s.repo.Append(ctx, threadUserID, admin.ID, msg)
	if err != nil {
		core.SetSpanError(ctx, err)
		return nil, err
	}

	s.publish(ctx, conv.ID, msg)

	return msg, nil
}

// route resolves the regular user whose thread the message belongs to.
func (s *Service) route(
	ctx context.Context,
	sender *middleware.SessionClaims,
	receiverID string,
	admin *Participant,
) (string, error) {
	if receiverID == sender.UserID {
		return "", ErrSelfMessage
	}

	if !sender.IsAdmin {
		if receiverID == "" || receiverID == admin.ID {
			return sender.UserID, nil
		}

		named, err := s.directory.LookupParticipant(ctx, receiverID)
		if err != nil {
			return "", err
		}
		if named.IsAdmin {
			return "", ErrNotDesignated
		}
		return "", ErrReceiverNotAdmin
	}

	if receiverID == "" {
		return "", ErrNoReceiver
	}

	named, err := s.directory.LookupParticipant(ctx, receiverID)
	if err != nil {
		return "", err
	}
	if named.IsAdmin {
		return "", ErrReceiverIsAdmin
	}

	return named.ID, nil
}

// publish is best effort: the message is already stored and clients that
// miss the push still see it on their next fetch.
func (s *Service) publish(ctx context.Context, conversationID string, msg *Message) {
	if s.broker == nil {
		return
	}

	if err := s.broker.Publish(ctx, conversationID, ToMessageResponse(msg)); err != nil {
		core.SetSpanError(ctx, err)
		slog.WarnContext(ctx, "publish message failed",
			"conversation_id", conversationID,
			"message_id", msg.ID,
			"error", err,
		)
		return
	}

	core.AddSpanEvent(ctx, "message.published",
		attribute.String("conversation.id", conversationID),
	)
}

// OpenThread resolves the conversation a stream should follow. Regular
// users always follow their own thread; admins name the user.
func (s *Service) OpenThread(
	ctx context.Context,
	viewer *middleware.SessionClaims,
	userID string,
) (*Conversation, error) {
	if viewer == nil {
		return nil, fmt.Errorf("open thread: %w", core.ErrUnauthorized)
	}

	if !viewer.IsAdmin {
		userID = viewer.UserID
	}

	if _, err := uuid.Parse(userID); err != nil {
		return nil, fmt.Errorf("open thread: user id: %w", core.ErrInvalidInput)
	}

	admin, err := s.designatedAdmin(ctx)
	if err != nil {
		return nil, err
	}

	if userID == admin.ID {
		return nil, ErrSelfMessage
	}

	if viewer.IsAdmin {
		if _, err := s.directory.LookupParticipant(ctx, userID); err != nil {
			return nil, err
		}
	}

	return s.repo.OpenConversation(ctx, userID, admin.ID)
}

func (s *Service) Subscribe(
	ctx context.Context,
	conversationID string,
) (<-chan MessageResponse, error) {
	return s.broker.Subscribe(ctx, conversationID)
}

func (s *Service) MessagedUsers(ctx context.Context) ([]MessagedUser, error) {
	admin, err := s.designatedAdmin(ctx)
	if err != nil {
		return nil, err
	}

	return s.repo.MessagedUsers(ctx, admin.ID)
}

func (s *Service) designatedAdmin(ctx context.Context) (*Participant, error) {
	admin, err := s.directory.DesignatedAdmin(ctx)
	if errors.Is(err, core.ErrNotFound) {
		return nil, ErrNoAdmin
	}
	return admin, err
}

func (s *Service) CountConversations(ctx context.Context) (int, error) {
	return s.repo.CountConversations(ctx)
}
