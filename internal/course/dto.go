// AngelaMos | 2026
// dto.go

package course

import (
	"time"
)

type CreateClassRequest struct {
	Title       string    `json:"title"       validate:"required,max=200"`
	Description string    `json:"description" validate:"max=5000"`
	IsPremium   bool      `json:"isPremium"`
	Chapters    []Chapter `json:"chapters"    validate:"dive"`
}

// UpdateClassRequest replaces the whole class. Chapters must be present,
// even if empty.
type UpdateClassRequest struct {
	Title       string    `json:"title"       validate:"required,max=200"`
	Description string    `json:"description" validate:"required,max=5000"`
	IsPremium   bool      `json:"isPremium"`
	Chapters    []Chapter `json:"chapters"    validate:"required,dive"`
}

type ClassResponse struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	IsPremium   bool      `json:"isPremium"`
	Chapters    []Chapter `json:"chapters"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

type MessageResponse struct {
	Message string `json:"message"`
}

func ToClassResponse(c *Class) ClassResponse {
	chapters := []Chapter(c.Chapters)
	if chapters == nil {
		chapters = []Chapter{}
	}
	for i := range chapters {
		if chapters[i].Lessons == nil {
			chapters[i].Lessons = []Lesson{}
		}
	}

	return ClassResponse{
		ID:          c.ID,
		Title:       c.Title,
		Description: c.Description,
		IsPremium:   c.IsPremium,
		Chapters:    chapters,
		CreatedAt:   c.CreatedAt,
		UpdatedAt:   c.UpdatedAt,
	}
}

func ToClassResponseList(classes []Class) []ClassResponse {
	responses := make([]ClassResponse, 0, len(classes))
	for i := range classes {
		responses = append(responses, ToClassResponse(&classes[i]))
	}
	return responses
}
