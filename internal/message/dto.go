// AngelaMos | 2026
// dto.go

package message

import (
	"time"
)

type SendRequest struct {
	Content    string `json:"content"              validate:"required"`
	ReceiverID string `json:"receiverId,omitempty" validate:"omitempty,max=64"`
}

// MessageResponse is both the HTTP representation and the payload pushed
// to stream subscribers.
type MessageResponse struct {
	ID             string    `json:"id"`
	ConversationID string    `json:"conversationId"`
	SenderID       string    `json:"senderId"`
	ReceiverID     string    `json:"receiverId"`
	AuthorID       string    `json:"authorId"`
	Content        string    `json:"content"`
	CreatedAt      time.Time `json:"createdAt"`
}

type MessagedUserResponse struct {
	ID             string    `json:"id"`
	Name           string    `json:"name"`
	Email          string    `json:"email"`
	ConversationID string    `json:"conversationId"`
	LastMessageAt  time.Time `json:"lastMessageAt"`
}

func ToMessageResponse(m *Message) MessageResponse {
	return MessageResponse{
		ID:             m.ID,
		ConversationID: m.ConversationID,
		SenderID:       m.SenderID,
		ReceiverID:     m.ReceiverID,
		AuthorID:       m.AuthorID,
		Content:        m.Content,
		CreatedAt:      m.CreatedAt,
	}
}

func ToMessageResponseList(msgs []Message) []MessageResponse {
	responses := make([]MessageResponse, 0, len(msgs))
	for i := range msgs {
		responses = append(responses, ToMessageResponse(&msgs[i]))
	}
	return responses
}

func ToMessagedUserResponseList(users []MessagedUser) []MessagedUserResponse {
	responses := make([]MessagedUserResponse, 0, len(users))
	for _, u := range users {
		responses = append(responses, MessagedUserResponse(u))
	}
	return responses
}
