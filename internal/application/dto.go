// AngelaMos | 2026
// dto.go

package application

import (
	"time"
)

type ApplyRequest struct {
	Name    string `json:"name"    validate:"required,max=100"`
	Phone   string `json:"phone"   validate:"required,max=40"`
	Message string `json:"message" validate:"required,max=2000"`
}

type ApproveRequest struct {
	Email string `json:"email" validate:"required,email,max=255"`
}

type ApplicationResponse struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	Phone     string    `json:"phone"`
	Message   string    `json:"message"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

type ApproveResponse struct {
	Success bool   `json:"success"`
	Email   string `json:"email"`
	Removed int64  `json:"removedApplications"`
}

func ToApplicationResponse(a *PremiumApplication) ApplicationResponse {
	return ApplicationResponse{
		ID:        a.ID,
		Name:      a.Name,
		Email:     a.Email,
		Phone:     a.Phone,
		Message:   a.Message,
		CreatedAt: a.CreatedAt,
		UpdatedAt: a.UpdatedAt,
	}
}

func ToApplicationResponseList(apps []PremiumApplication) []ApplicationResponse {
	responses := make([]ApplicationResponse, 0, len(apps))
	for i := range apps {
		responses = append(responses, ToApplicationResponse(&apps[i]))
	}
	return responses
}
