// AngelaMos | 2026
// service.go

package user

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/carterperez-dev/course-portal/internal/auth"
	"github.com/carterperez-dev/course-portal/internal/core"
	"github.com/carterperez-dev/course-portal/internal/message"
)

var ErrEmailTaken = errors.New("email already in use")

type Service struct {
	repo Repository
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

func (s *Service) GetByID(
	ctx context.Context,
	id string,
) (*auth.UserInfo, error) {
	user, err := s.GetUser(ctx, id)
	if err != nil {
		return nil, err
	}

	return toUserInfo(user), nil
}

func (s *Service) GetByEmail(
	ctx context.Context,
	email string,
) (*auth.UserInfo, error) {
	user, err := s.repo.GetByEmail(ctx, normalizeEmail(email))
	if err != nil {
		return nil, err
	}

	return toUserInfo(user), nil
}

func (s *Service) Create(
	ctx context.Context,
	name, email, passwordHash string,
) (*auth.UserInfo, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, ErrBlankName
	}

	user := &User{
		ID:           uuid.New().String(),
		Name:         name,
		Email:        normalizeEmail(email),
		PasswordHash: passwordHash,
	}

	if err := s.repo.Create(ctx, user); err != nil {
		return nil, err
	}

	return toUserInfo(user), nil
}

func (s *Service) UpdatePassword(
	ctx context.Context,
	userID, passwordHash string,
) error {
	return s.repo.UpdatePassword(ctx, userID, passwordHash)
}

// GetUser treats malformed ids as absent users.
func (s *Service) GetUser(ctx context.Context, id string) (*User, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, fmt.Errorf("get user: %w", core.ErrNotFound)
	}

	return s.repo.GetByID(ctx, id)
}

func (s *Service) UpdateProfile(
	ctx context.Context,
	userID string,
	req UpdateProfileRequest,
) (*User, error) {
	if userID == "" {
		return nil, fmt.Errorf("update profile: %w", core.ErrUnauthorized)
	}

	user, err := s.GetUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	if req.Name != nil {
		name := strings.TrimSpace(*req.Name)
		if name == "" {
			return nil, ErrBlankName
		}
		user.Name = name
	}

	if req.Email != nil {
		user.Email = normalizeEmail(*req.Email)
	}

	if req.Password != nil && *req.Password != "" {
		hash, err := core.HashPassword(*req.Password)
		if err != nil {
			return nil, fmt.Errorf("hash password: %w", err)
		}
		user.PasswordHash = hash
	}

	if err := s.repo.Update(ctx, user); err != nil {
		if errors.Is(err, core.ErrDuplicateKey) {
			return nil, ErrEmailTaken
		}
		return nil, err
	}

	return user, nil
}

func (s *Service) ListUsers(
	ctx context.Context,
	params ListUsersParams,
) ([]User, error) {
	return s.repo.List(ctx, params)
}

func (s *Service) Counts(ctx context.Context) (*Counts, error) {
	return s.repo.Counts(ctx)
}

// UpdateFlags lets an admin toggle premium and admin flags on any account
// except removing their own admin flag. The last admin cannot be demoted.
func (s *Service) UpdateFlags(
	ctx context.Context,
	actorID, targetID string,
	req UpdateFlagsRequest,
) (*User, error) {
	if _, err := uuid.Parse(targetID); err != nil {
		return nil, fmt.Errorf("update flags: %w", core.ErrNotFound)
	}

	if actorID == targetID && req.IsAdmin != nil && !*req.IsAdmin {
		return nil, ErrSelfDemotion
	}

	var updated *User
	err := s.repo.WithAccountLock(ctx, func(tx AccountTx) error {
		target, err := tx.LockUser(ctx, targetID)
		if err != nil {
			return err
		}

		if target.IsAdmin && req.IsAdmin != nil && !*req.IsAdmin {
			if err := requireOtherAdmin(ctx, tx, targetID); err != nil {
				return err
			}
		}

		if req.IsPremium != nil {
			target.IsPremium = *req.IsPremium
		}
		if req.IsAdmin != nil {
			target.IsAdmin = *req.IsAdmin
		}

		if err := tx.SaveFlags(ctx, target); err != nil {
			return err
		}

		updated = target
		return nil
	})
	if err != nil {
		return nil, err
	}

	return updated, nil
}

func (s *Service) DeleteUser(ctx context.Context, actorID, targetID string) error {
	if _, err := uuid.Parse(targetID); err != nil {
		return fmt.Errorf("delete user: %w", core.ErrNotFound)
	}

	if actorID == targetID {
		return ErrSelfDeletion
	}

	return s.repo.WithAccountLock(ctx, func(tx AccountTx) error {
		target, err := tx.LockUser(ctx, targetID)
		if err != nil {
			return err
		}

		if target.IsAdmin {
			if err := requireOtherAdmin(ctx, tx, targetID); err != nil {
				return err
			}
		}

		return tx.Delete(ctx, targetID)
	})
}

func requireOtherAdmin(ctx context.Context, tx AccountTx, targetID string) error {
	others, err := tx.CountOtherAdmins(ctx, targetID)
	if err != nil {
		return err
	}
	if others == 0 {
		return ErrLastAdmin
	}
	return nil
}

// DesignatedAdmin resolves the single counterparty of every user thread.
func (s *Service) DesignatedAdmin(
	ctx context.Context,
) (*message.Participant, error) {
	admin, err := s.repo.FirstAdmin(ctx)
	if err != nil {
		return nil, fmt.Errorf("designated admin: %w", err)
	}

	return toParticipant(admin), nil
}

func (s *Service) LookupParticipant(
	ctx context.Context,
	id string,
) (*message.Participant, error) {
	user, err := s.GetUser(ctx, id)
	if err != nil {
		return nil, err
	}

	return toParticipant(user), nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func toUserInfo(u *User) *auth.UserInfo {
	return &auth.UserInfo{
		ID:           u.ID,
		Email:        u.Email,
		Name:         u.Name,
		PasswordHash: u.PasswordHash,
		IsPremium:    u.IsPremium,
		IsAdmin:      u.IsAdmin,
	}
}

func toParticipant(u *User) *message.Participant {
	return &message.Participant{
		ID:      u.ID,
		Name:    u.Name,
		Email:   u.Email,
		IsAdmin: u.IsAdmin,
	}
}

var (
	_ auth.UserProvider = (*Service)(nil)
	_ message.Directory = (*Service)(nil)
)
