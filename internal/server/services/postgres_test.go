package services

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/dmitrijs2005/usersvc/internal/server/envelope"
	"github.com/dmitrijs2005/usersvc/internal/server/models"
	"github.com/dmitrijs2005/usersvc/internal/server/repositories/repomanager"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var userColumns = []string{"id", "username", "email", "created_at", "updated_at"}

func newPostgresService(t *testing.T, clock func() time.Time) (*UserService, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewUserService(repomanager.NewPostgresRepositoryManager(db), WithClock(clock)), mock
}

func TestUserService_Postgres_UpdateInTransaction(t *testing.T) {
	created := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	now := created.Add(time.Hour)
	s, mock := newPostgresService(t, func() time.Time { return now })
	id := uuid.New()

	mock.ExpectBegin()
	mock.ExpectQuery(`(?s)SELECT id, username, email, created_at, updated_at FROM users.*FOR UPDATE`).
		WithArgs(id).
		WillReturnRows(sqlmock.NewRows(userColumns).AddRow(id.String(), "alice", "alice@x", created, created))
	mock.ExpectExec(`UPDATE users SET username = \$2, email = \$3, updated_at = \$4\s+WHERE id = \$1`).
		WithArgs(id, "alicia", "alice@x", now).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	name := "alicia"
	u, err := s.Update(context.Background(), id, models.UpdateUserRequest{UserName: &name})
	require.NoError(t, err)
	assert.Equal(t, "alicia", u.UserName)
	assert.Equal(t, created, u.CreatedAt)
	assert.Equal(t, now, u.UpdatedAt)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUserService_Postgres_UpdateDuplicateRollsBack(t *testing.T) {
	created := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	now := created.Add(time.Hour)
	s, mock := newPostgresService(t, func() time.Time { return now })
	id := uuid.New()

	mock.ExpectBegin()
	mock.ExpectQuery(`(?s)FROM users.*FOR UPDATE`).
		WithArgs(id).
		WillReturnRows(sqlmock.NewRows(userColumns).AddRow(id.String(), "alice", "alice@x", created, created))
	mock.ExpectExec(`UPDATE users`).
		WillReturnError(&pgconn.PgError{Code: "23505", ConstraintName: "users_email_key"})
	mock.ExpectRollback()

	email := "taken@x"
	_, err := s.Update(context.Background(), id, models.UpdateUserRequest{Email: &email})
	require.Error(t, err)
	assert.Equal(t, envelope.KindValidation, envelope.KindOf(err))
	assert.Equal(t, "email already exists", envelope.PublicMessage(err))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUserService_Postgres_CreateDuplicate(t *testing.T) {
	s, mock := newPostgresService(t, time.Now)

	mock.ExpectExec(`INSERT INTO users`).
		WillReturnError(&pgconn.PgError{Code: "23505", ConstraintName: "users_username_key"})

	_, err := s.Create(context.Background(), models.CreateUserRequest{UserName: "alice", Email: "a@x"})
	require.Error(t, err)
	assert.Equal(t, envelope.KindValidation, envelope.KindOf(err))
	assert.Equal(t, "username already exists", envelope.PublicMessage(err))
	require.NoError(t, mock.ExpectationsWereMet())
}
