// AngelaMos | 2026
// repository.go

package application

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/carterperez-dev/course-portal/internal/core"
)

type Repository interface {
	Create(ctx context.Context, app *PremiumApplication) error
	List(ctx context.Context, email string) ([]PremiumApplication, error)
	WithApproval(ctx context.Context, fn func(tx ApprovalTx) error) error
	CountPending(ctx context.Context) (int, error)
}

type repository struct {
	db *sqlx.DB
}

func NewRepository(db *sqlx.DB) Repository {
	return &repository{db: db}
}

func (r *repository) Create(ctx context.Context, app *PremiumApplication) error {
	query := `
		INSERT INTO premium_applications (id, name, email, phone, message)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING created_at, updated_at`

	err := r.db.GetContext(ctx, app, query,
		app.ID,
		app.Name,
		app.Email,
		app.Phone,
		app.Message,
	)
	if err != nil {
		return fmt.Errorf("create application: %w", err)
	}

	return nil
}

// List returns applications newest first. An empty email lists all of them.
func (r *repository) List(
	ctx context.Context,
	email string,
) ([]PremiumApplication, error) {
	query := `
		SELECT id, name, email, phone, message, created_at, updated_at
		FROM premium_applications
		WHERE $1 = '' OR LOWER(email) = LOWER($1)
		ORDER BY created_at DESC, id DESC`

	apps := []PremiumApplication{}
	if err := r.db.SelectContext(ctx, &apps, query, email); err != nil {
		return nil, fmt.Errorf("list applications: %w", err)
	}

	return apps, nil
}

// ApprovalTx is the set of writes an approval makes, all inside one
// transaction.
type ApprovalTx interface {
	GrantPremium(ctx context.Context, email string) (string, error)
	DeleteApplications(ctx context.Context, email string) (int64, error)
}

func (r *repository) WithApproval(
	ctx context.Context,
	fn func(tx ApprovalTx) error,
) error {
	return core.InTx(ctx, r.db, func(tx *sqlx.Tx) error {
		return fn(approvalTx{tx: tx})
	})
}

type approvalTx struct {
	tx *sqlx.Tx
}

// GrantPremium flags the account registered under email and returns its id.
func (a approvalTx) GrantPremium(ctx context.Context, email string) (string, error) {
	var userID string
	err := a.tx.GetContext(ctx, &userID, `
		UPDATE users
		SET is_premium = TRUE, updated_at = NOW()
		WHERE LOWER(email) = LOWER($1)
		RETURNING id`, email)
	if errors.Is(err, sql.ErrNoRows) {
		return "", fmt.Errorf("grant premium: %w", core.ErrNotFound)
	}
	if err != nil {
		return "", fmt.Errorf("grant premium: %w", err)
	}

	return userID, nil
}

func (a approvalTx) DeleteApplications(ctx context.Context, email string) (int64, error) {
	result, err := a.tx.ExecContext(ctx, `
		DELETE FROM premium_applications
		WHERE LOWER(email) = LOWER($1)`, email)
	if err != nil {
		return 0, fmt.Errorf("remove applications: %w", err)
	}

	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("remove applications: %w", err)
	}

	return n, nil
}

func (r *repository) CountPending(ctx context.Context) (int, error) {
	var n int
	if err := r.db.GetContext(ctx, &n, `SELECT COUNT(*) FROM premium_applications`); err != nil {
		return 0, fmt.Errorf("count applications: %w", err)
	}
	return n, nil
}
