// AngelaMos | 2026
// repository.go

package user

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"

	"github.com/carterperez-dev/course-portal/internal/core"
)

type Repository interface {
	Create(ctx context.Context, user *User) error
	GetByID(ctx context.Context, id string) (*User, error)
	GetByEmail(ctx context.Context, email string) (*User, error)
	FirstAdmin(ctx context.Context) (*User, error)
	Update(ctx context.Context, user *User) error
	UpdatePassword(ctx context.Context, id, passwordHash string) error
	WithAccountLock(ctx context.Context, fn func(tx AccountTx) error) error
	List(ctx context.Context, params ListUsersParams) ([]User, error)
	Counts(ctx context.Context) (*Counts, error)
}

// AccountTx is a unit of work over accounts whose admin flag matters. Rows
// read through it stay locked until the unit of work ends.
type AccountTx interface {
	LockUser(ctx context.Context, id string) (*User, error)
	CountOtherAdmins(ctx context.Context, excludeID string) (int, error)
	SaveFlags(ctx context.Context, user *User) error
	Delete(ctx context.Context, id string) error
}

type repository struct {
	db *sqlx.DB
}

func NewRepository(db *sqlx.DB) Repository {
	return &repository{db: db}
}

const userColumns = `id, name, email, password_hash, is_premium, is_admin,
		       created_at, updated_at`

func (r *repository) Create(ctx context.Context, user *User) error {
	query := `
		INSERT INTO users (id, name, email, password_hash, is_premium, is_admin)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING created_at, updated_at`

	err := r.db.GetContext(ctx, user, query,
		user.ID,
		user.Name,
		user.Email,
		user.PasswordHash,
		user.IsPremium,
		user.IsAdmin,
	)
	if err != nil {
		if core.IsDuplicateKeyError(err) {
			return fmt.Errorf("create user: %w", core.ErrDuplicateKey)
		}
		return fmt.Errorf("create user: %w", err)
	}

	return nil
}

func (r *repository) GetByID(ctx context.Context, id string) (*User, error) {
	return r.getOne(ctx, r.db, "get user", `WHERE id = $1`, id)
}

func (r *repository) GetByEmail(
	ctx context.Context,
	email string,
) (*User, error) {
	return r.getOne(ctx, r.db, "get user by email", `WHERE LOWER(email) = LOWER($1)`, email)
}

// FirstAdmin returns the earliest-created admin, which makes the
// "designated admin" stable when several admins exist.
func (r *repository) FirstAdmin(ctx context.Context) (*User, error) {
	return r.getOne(ctx, r.db, "get first admin",
		`WHERE is_admin ORDER BY created_at ASC, id ASC LIMIT 1`)
}

func (r *repository) getOne(
	ctx context.Context,
	db core.DBTX,
	op, where string,
	args ...any,
) (*User, error) {
	query := `SELECT ` + userColumns + ` FROM users ` + where

	var user User
	err := db.GetContext(ctx, &user, query, args...)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%s: %w", op, core.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return &user, nil
}

func (r *repository) Update(ctx context.Context, user *User) error {
	query := `
		UPDATE users
		SET name = $2, email = $3, password_hash = $4, updated_at = NOW()
		WHERE id = $1
		RETURNING updated_at`

	err := r.db.GetContext(ctx, &user.UpdatedAt, query,
		user.ID,
		user.Name,
		user.Email,
		user.PasswordHash,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("update user: %w", core.ErrNotFound)
	}
	if err != nil {
		if core.IsDuplicateKeyError(err) {
			return fmt.Errorf("update user: %w", core.ErrDuplicateKey)
		}
		return fmt.Errorf("update user: %w", err)
	}

	return nil
}

func (r *repository) UpdatePassword(
	ctx context.Context,
	id, passwordHash string,
) error {
	query := `
		UPDATE users
		SET password_hash = $2, updated_at = NOW()
		WHERE id = $1`

	result, err := r.db.ExecContext(ctx, query, id, passwordHash)
	if err != nil {
		return fmt.Errorf("update password: %w", err)
	}

	return core.RequireAffected(result, "update password")
}

func (r *repository) WithAccountLock(
	ctx context.Context,
	fn func(tx AccountTx) error,
) error {
	return core.InTx(ctx, r.db, func(tx *sqlx.Tx) error {
		return fn(&accountTx{repo: r, tx: tx})
	})
}

type accountTx struct {
	repo *repository
	tx   *sqlx.Tx
}

func (a *accountTx) LockUser(ctx context.Context, id string) (*User, error) {
	return a.repo.getOne(ctx, a.tx, "lock user", `WHERE id = $1 FOR UPDATE`, id)
}

// CountOtherAdmins locks the remaining admin rows so two concurrent
// demotions cannot both see the other as the surviving admin.
func (a *accountTx) CountOtherAdmins(ctx context.Context, excludeID string) (int, error) {
	query := `
		SELECT COUNT(*) FROM (
			SELECT id FROM users WHERE is_admin AND id <> $1 FOR UPDATE
		) others`

	var others int
	if err := a.tx.GetContext(ctx, &others, query, excludeID); err != nil {
		return 0, fmt.Errorf("count admins: %w", err)
	}

	return others, nil
}

func (a *accountTx) SaveFlags(ctx context.Context, user *User) error {
	query := `
		UPDATE users
		SET is_premium = $2, is_admin = $3, updated_at = NOW()
		WHERE id = $1
		RETURNING updated_at`

	err := a.tx.GetContext(ctx, &user.UpdatedAt, query,
		user.ID, user.IsPremium, user.IsAdmin)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("save flags: %w", core.ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("save flags: %w", err)
	}

	return nil
}

func (a *accountTx) Delete(ctx context.Context, id string) error {
	result, err := a.tx.ExecContext(ctx, `DELETE FROM users WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete user: %w", err)
	}

	return core.RequireAffected(result, "delete user")
}

func (r *repository) List(
	ctx context.Context,
	params ListUsersParams,
) ([]User, error) {
	var conditions []string
	var args []any

	if params.Search != "" {
		conditions = append(conditions, "(email ILIKE $1 OR name ILIKE $1)")
		args = append(args, "%"+escapeLike(params.Search)+"%")
	}

	where := ""
	if len(conditions) > 0 {
		where = "WHERE " + strings.Join(conditions, " AND ")
	}

	query := `SELECT ` + userColumns + ` FROM users ` + where +
		` ORDER BY created_at DESC`

	users := []User{}
	if err := r.db.SelectContext(ctx, &users, query, args...); err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}

	return users, nil
}

func (r *repository) Counts(ctx context.Context) (*Counts, error) {
	query := `
		SELECT COUNT(*) AS total,
		       COUNT(*) FILTER (WHERE is_premium) AS premium,
		       COUNT(*) FILTER (WHERE is_admin) AS admins
		FROM users`

	var counts Counts
	if err := r.db.GetContext(ctx, &counts, query); err != nil {
		return nil, fmt.Errorf("count users: %w", err)
	}

	return &counts, nil
}

func escapeLike(s string) string {
	s = strings.ReplaceAll(s, "\\", "\\\\")
	s = strings.ReplaceAll(s, "%", "\\%")
	s = strings.ReplaceAll(s, "_", "\\_")
	return s
}
