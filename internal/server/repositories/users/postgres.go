package users

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/usersvc/internal/common"
	"github.com/dmitrijs2005/usersvc/internal/dbx"
	"github.com/dmitrijs2005/usersvc/internal/server/models"
	"github.com/dmitrijs2005/usersvc/internal/timex"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
)

const (
	uniqueViolation = "23505"

	usernameConstraint = "users_username_key"
	emailConstraint    = "users_email_key"
)

type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) Create(ctx context.Context, user models.User) (models.User, error) {

	query :=
		`INSERT INTO users (id, username, email, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5)
		 `

	_, err := r.db.ExecContext(ctx, query,
		user.ID, user.UserName, user.Email, user.CreatedAt, user.UpdatedAt)

	if err != nil {
		return models.User{}, translateError(err)
	}

	return user, nil
}

func (r *PostgresRepository) Get(ctx context.Context, id uuid.UUID) (models.User, error) {
	query :=
		`SELECT id, username, email, created_at, updated_at FROM users
		 WHERE id = $1
		 `
	return r.getOne(ctx, query, id)
}

func (r *PostgresRepository) GetForUpdate(ctx context.Context, id uuid.UUID) (models.User, error) {
	query :=
		`SELECT id, username, email, created_at, updated_at FROM users
		 WHERE id = $1
		 FOR UPDATE
		 `
	return r.getOne(ctx, query, id)
}

func (r *PostgresRepository) getOne(ctx context.Context, query string, id uuid.UUID) (models.User, error) {
	var u models.User
	err := r.db.QueryRowContext(ctx, query, id).Scan(&u.ID, &u.UserName, &u.Email, &u.CreatedAt, &u.UpdatedAt)

	if err != nil {
		return models.User{}, translateError(err)
	}

	return normalize(u), nil
}

func (r *PostgresRepository) List(ctx context.Context, q models.ListQuery) ([]models.User, error) {
	query :=
		`SELECT id, username, email, created_at, updated_at FROM users
		 ORDER BY created_at DESC, id ASC
		 LIMIT $1 OFFSET $2
		 `

	rows, err := r.db.QueryContext(ctx, query, q.Limit, q.Offset)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	result := make([]models.User, 0, q.Limit)
	for rows.Next() {
		var u models.User
		if err := rows.Scan(&u.ID, &u.UserName, &u.Email, &u.CreatedAt, &u.UpdatedAt); err != nil {
			return nil, fmt.Errorf("db error: %w", err)
		}
		result = append(result, normalize(u))
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}

	return result, nil
}

func (r *PostgresRepository) Update(ctx context.Context, user models.User) (models.User, error) {
	query :=
		`UPDATE users SET username = $2, email = $3, updated_at = $4
		 WHERE id = $1
		 `

	res, err := r.db.ExecContext(ctx, query, user.ID, user.UserName, user.Email, user.UpdatedAt)
	if err != nil {
		return models.User{}, translateError(err)
	}
	if err := requireOneRow(res); err != nil {
		return models.User{}, err
	}

	return user, nil
}

func (r *PostgresRepository) Delete(ctx context.Context, id uuid.UUID) error {
	query := `DELETE FROM users WHERE id = $1`

	res, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return requireOneRow(res)
}

func requireOneRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	if n == 0 {
		return common.ErrorNotFound
	}
	return nil
}

// translateError maps driver errors onto the repository sentinels.
func translateError(err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return common.ErrorNotFound
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		switch pgErr.ConstraintName {
		case usernameConstraint:
			return duplicateError(FieldUserName)
		case emailConstraint:
			return duplicateError(FieldEmail)
		}
		return fmt.Errorf("%s: %w", pgErr.ConstraintName, common.ErrorDuplicate)
	}

	return fmt.Errorf("db error: %w", err)
}

func normalize(u models.User) models.User {
	u.CreatedAt = timex.Truncate(u.CreatedAt)
	u.UpdatedAt = timex.Truncate(u.UpdatedAt)
	return u
}
