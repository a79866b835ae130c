// Package services contains server-side business logic. UserService is the
// resource store contract: it validates, assigns identity and timestamps,
// runs writes in the store's write scope and classifies every failure into
// an envelope kind.
package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/usersvc/internal/common"
	"github.com/dmitrijs2005/usersvc/internal/server/envelope"
	"github.com/dmitrijs2005/usersvc/internal/server/models"
	"github.com/dmitrijs2005/usersvc/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/usersvc/internal/server/repositories/users"
	"github.com/dmitrijs2005/usersvc/internal/timex"
	"github.com/google/uuid"
)

type UserService struct {
	repomanager repomanager.RepositoryManager
	now         timex.Clock
	newID       func() uuid.UUID
}

type Option func(*UserService)

// WithClock replaces the wall clock. Times are normalized with
// timex.Truncate either way.
func WithClock(c timex.Clock) Option {
	return func(s *UserService) { s.now = c }
}

// WithIDGenerator replaces uuid.New.
func WithIDGenerator(f func() uuid.UUID) Option {
	return func(s *UserService) { s.newID = f }
}

func NewUserService(m repomanager.RepositoryManager, opts ...Option) *UserService {
	s := &UserService{repomanager: m, now: timex.UTCMicro, newID: uuid.New}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Create inserts one record with a fresh ID and CreatedAt == UpdatedAt.
// Uniqueness is enforced by the repository in the same write.
func (s *UserService) Create(ctx context.Context, req models.CreateUserRequest) (models.User, error) {
	if err := req.Validate(); err != nil {
		return models.User{}, envelope.ValidationErr(err)
	}

	now := timex.Truncate(s.now())
	user := models.User{
		ID:        s.newID(),
		UserName:  req.UserName,
		Email:     req.Email,
		CreatedAt: now,
		UpdatedAt: now,
	}

	created, err := s.repomanager.Users().Create(ctx, user)
	if err != nil {
		return models.User{}, classify("error creating user", err)
	}
	return created, nil
}

func (s *UserService) Get(ctx context.Context, id uuid.UUID) (models.User, error) {
	u, err := s.repomanager.Users().Get(ctx, id)
	if err != nil {
		return models.User{}, classify("error getting user", err)
	}
	return u, nil
}

// List never fails on an empty page; it returns an empty, non-nil slice.
// A zero Limit means the default page size.
func (s *UserService) List(ctx context.Context, q models.ListQuery) ([]models.User, error) {
	if q.Limit == 0 {
		q.Limit = models.DefaultListLimit
	}
	q = models.NewListQuery(&q.Limit, &q.Offset)

	list, err := s.repomanager.Users().List(ctx, q)
	if err != nil {
		return nil, classify("error listing users", err)
	}
	if list == nil {
		list = []models.User{}
	}
	return list, nil
}

// Update re-reads the record inside the write scope, merges the present
// fields and writes it back. UpdatedAt moves strictly forward; CreatedAt is
// kept. An update with no fields writes nothing and returns the record as
// stored.
func (s *UserService) Update(ctx context.Context, id uuid.UUID, req models.UpdateUserRequest) (models.User, error) {
	if err := req.Validate(); err != nil {
		return models.User{}, envelope.ValidationErr(err)
	}
	if req.Empty() {
		return s.Get(ctx, id)
	}

	var updated models.User
	err := s.repomanager.WithinTx(ctx, func(ctx context.Context, repo users.Repository) error {
		cur, err := repo.GetForUpdate(ctx, id)
		if err != nil {
			return err
		}

		merged := req.Apply(cur)
		if err := (models.CreateUserRequest{UserName: merged.UserName, Email: merged.Email}).Validate(); err != nil {
			return envelope.ValidationErr(err)
		}
		merged.UpdatedAt = s.advance(cur.UpdatedAt)

		updated, err = repo.Update(ctx, merged)
		return err
	})
	if err != nil {
		return models.User{}, classify("error updating user", err)
	}
	return updated, nil
}

func (s *UserService) Delete(ctx context.Context, id uuid.UUID) error {
	if err := s.repomanager.Users().Delete(ctx, id); err != nil {
		return classify("error deleting user", err)
	}
	return nil
}

// advance returns the current time, or prev plus one microsecond when the
// clock has not moved past prev.
func (s *UserService) advance(prev time.Time) time.Time {
	now := timex.Truncate(s.now())
	if !now.After(prev) {
		return prev.Add(time.Microsecond)
	}
	return now
}

// classify narrows repository errors into envelope kinds: duplicates become
// Validation, missing rows NotFound, already classified errors pass through
// and everything else is Storage.
func classify(op string, err error) error {
	var classified *envelope.Error
	switch {
	case errors.As(err, &classified):
		return err
	case errors.Is(err, common.ErrorDuplicate):
		return envelope.ValidationErr(err)
	case errors.Is(err, common.ErrorNotFound):
		return envelope.NotFound("user not found")
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return envelope.Internal(fmt.Errorf("%s: %w", op, err))
	}
	return envelope.Storage(fmt.Errorf("%s: %w", op, err))
}
