// AngelaMos | 2026
// service.go

package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"

	"github.com/carterperez-dev/course-portal/internal/core"
	"github.com/carterperez-dev/course-portal/internal/middleware"
)

var ErrForeignEmail = errors.New("cannot view applications of another user")

type Service struct {
	repo Repository
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// Apply files an application under the caller's own email.
func (s *Service) Apply(
	ctx context.Context,
	claims *middleware.SessionClaims,
	req ApplyRequest,
) (*PremiumApplication, error) {
	if claims == nil || claims.Email == "" {
		return nil, fmt.Errorf("apply: %w", core.ErrUnauthorized)
	}

	app := &PremiumApplication{
		ID:      uuid.New().String(),
		Name:    core.SanitizeText(req.Name),
		Email:   strings.ToLower(claims.Email),
		Phone:   core.SanitizeText(req.Phone),
		Message: core.SanitizeText(req.Message),
	}

	if app.Name == "" || app.Phone == "" || app.Message == "" {
		return nil, fmt.Errorf("apply: %w", core.ErrInvalidInput)
	}

	if err := s.repo.Create(ctx, app); err != nil {
		return nil, err
	}

	return app, nil
}

// List scopes the result by caller. Admins may see everything or filter by
// email; everybody else only sees applications filed under their own email.
func (s *Service) List(
	ctx context.Context,
	claims *middleware.SessionClaims,
	email string,
) ([]PremiumApplication, error) {
	if claims == nil {
		return nil, fmt.Errorf("list applications: %w", core.ErrUnauthorized)
	}

	email = strings.TrimSpace(email)

	if claims.Role != middleware.RoleAdmin {
		if email == "" {
			email = claims.Email
		}
		if !strings.EqualFold(email, claims.Email) {
			return nil, ErrForeignEmail
		}
	}

	return s.repo.List(ctx, email)
}

func (s *Service) Approve(ctx context.Context, email string) (*Approval, error) {
	email = strings.ToLower(strings.TrimSpace(email))

	ctx, span := core.StartSpan(ctx, "application.approve")
	defer span.End()

	approval := &Approval{Email: email}
	err := s.repo.WithApproval(ctx, func(tx ApprovalTx) error {
		userID, err := tx.GrantPremium(ctx, email)
		if err != nil {
			return err
		}
		approval.UserID = userID

		approval.Removed, err = tx.DeleteApplications(ctx, email)
		return err
	})
	if err != nil {
		core.SetSpanError(ctx, err)
		return nil, err
	}

	core.AddSpanEvent(ctx, "premium.granted",
		attribute.String("user.id", approval.UserID),
		attribute.Int64("applications.removed", approval.Removed),
	)
	slog.InfoContext(ctx, "premium access granted",
		"user_id", approval.UserID,
		"applications_removed", approval.Removed,
	)

	return approval, nil
}

func (s *Service) CountPending(ctx context.Context) (int, error) {
	return s.repo.CountPending(ctx)
}
