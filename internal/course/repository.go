// AngelaMos | 2026
// repository.go

package course

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/carterperez-dev/course-portal/internal/core"
)

type Repository interface {
	Create(ctx context.Context, class *Class) error
	GetByID(ctx context.Context, id string) (*Class, error)
	List(ctx context.Context, includePremium bool) ([]Class, error)
	Replace(ctx context.Context, class *Class) error
	Delete(ctx context.Context, id string) error
	Count(ctx context.Context) (int, error)
}

type repository struct {
	db core.DBTX
}

func NewRepository(db *sqlx.DB) Repository {
	return &repository{db: db}
}

const classColumns = `id, title, description, is_premium, chapters, created_at, updated_at`

func (r *repository) Create(ctx context.Context, class *Class) error {
	query := `
		INSERT INTO classes (id, title, description, is_premium, chapters)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING created_at, updated_at`

	err := r.db.GetContext(ctx, class, query,
		class.ID,
		class.Title,
		class.Description,
		class.IsPremium,
		class.Chapters,
	)
	if err != nil {
		return fmt.Errorf("create class: %w", err)
	}

	return nil
}

func (r *repository) GetByID(ctx context.Context, id string) (*Class, error) {
	query := `SELECT ` + classColumns + ` FROM classes WHERE id = $1`

	var class Class
	err := r.db.GetContext(ctx, &class, query, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("get class: %w", core.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get class: %w", err)
	}

	return &class, nil
}

// List returns classes newest first. Premium classes are filtered in SQL
// when the caller is not entitled to them.
func (r *repository) List(
	ctx context.Context,
	includePremium bool,
) ([]Class, error) {
	query := `
		SELECT ` + classColumns + `
		FROM classes
		WHERE $1 OR NOT is_premium
		ORDER BY created_at DESC, id DESC`

	classes := []Class{}
	if err := r.db.SelectContext(ctx, &classes, query, includePremium); err != nil {
		return nil, fmt.Errorf("list classes: %w", err)
	}

	return classes, nil
}

func (r *repository) Replace(ctx context.Context, class *Class) error {
	query := `
		UPDATE classes
		SET title = $2, description = $3, is_premium = $4, chapters = $5,
		    updated_at = NOW()
		WHERE id = $1
		RETURNING created_at, updated_at`

	err := r.db.GetContext(ctx, class, query,
		class.ID,
		class.Title,
		class.Description,
		class.IsPremium,
		class.Chapters,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("replace class: %w", core.ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("replace class: %w", err)
	}

	return nil
}

func (r *repository) Delete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM classes WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete class: %w", err)
	}

	return core.RequireAffected(result, "delete class")
}

func (r *repository) Count(ctx context.Context) (int, error) {
	var n int
	if err := r.db.GetContext(ctx, &n, `SELECT COUNT(*) FROM classes`); err != nil {
		return 0, fmt.Errorf("count classes: %w", err)
	}
	return n, nil
}
