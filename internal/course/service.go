// AngelaMos | 2026
// service.go

package course

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/carterperez-dev/course-portal/internal/core"
)

var ErrPremiumRequired = errors.New("premium membership required")

type Service struct {
	repo Repository
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

func (s *Service) Create(
	ctx context.Context,
	req CreateClassRequest,
) (*Class, error) {
	class := &Class{
		ID:          uuid.New().String(),
		Title:       core.SanitizeText(req.Title),
		Description: core.SanitizeText(req.Description),
		IsPremium:   req.IsPremium,
		Chapters:    sanitizeChapters(req.Chapters),
	}

	if class.Title == "" {
		return nil, fmt.Errorf("create class: title: %w", core.ErrInvalidInput)
	}

	if err := s.repo.Create(ctx, class); err != nil {
		return nil, err
	}

	return class, nil
}

// Get returns a single class. Premium classes are refused to callers who
// are neither premium nor admin.
func (s *Service) Get(
	ctx context.Context,
	id string,
	entitled bool,
) (*Class, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, fmt.Errorf("get class: %w", core.ErrNotFound)
	}

	class, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if !class.VisibleTo(entitled) {
		return nil, ErrPremiumRequired
	}

	return class, nil
}

func (s *Service) List(ctx context.Context, entitled bool) ([]Class, error) {
	return s.repo.List(ctx, entitled)
}

// Update replaces title, description, premium flag and the full chapter
// list. There is no partial update of a single lesson.
func (s *Service) Update(
	ctx context.Context,
	id string,
	req UpdateClassRequest,
) (*Class, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, fmt.Errorf("update class: %w", core.ErrNotFound)
	}

	class := &Class{
		ID:          id,
		Title:       core.SanitizeText(req.Title),
		Description: core.SanitizeText(req.Description),
		IsPremium:   req.IsPremium,
		Chapters:    sanitizeChapters(req.Chapters),
	}

	if class.Title == "" || class.Description == "" {
		return nil, fmt.Errorf("update class: %w", core.ErrInvalidInput)
	}

	if err := s.repo.Replace(ctx, class); err != nil {
		return nil, err
	}

	return class, nil
}

func (s *Service) Delete(ctx context.Context, id string) error {
	if _, err := uuid.Parse(id); err != nil {
		return fmt.Errorf("delete class: %w", core.ErrNotFound)
	}

	return s.repo.Delete(ctx, id)
}

func (s *Service) Count(ctx context.Context) (int, error) {
	return s.repo.Count(ctx)
}

func sanitizeChapters(in []Chapter) Chapters {
	out := make(Chapters, 0, len(in))
	for _, ch := range in {
		lessons := make([]Lesson, 0, len(ch.Lessons))
		for _, l := range ch.Lessons {
			lessons = append(lessons, Lesson{
				Title:       core.SanitizeText(l.Title),
				Description: core.SanitizeText(l.Description),
				VideoURL:    l.VideoURL,
			})
		}
		out = append(out, Chapter{
			Title:   core.SanitizeText(ch.Title),
			Lessons: lessons,
		})
	}
	return out
}
