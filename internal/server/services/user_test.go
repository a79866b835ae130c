package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/dmitrijs2005/usersvc/internal/server/envelope"
	"github.com/dmitrijs2005/usersvc/internal/server/models"
	"github.com/dmitrijs2005/usersvc/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/usersvc/internal/server/repositories/users"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stepClock advances by one second on every call.
type stepClock struct {
	mu  sync.Mutex
	cur time.Time
}

func newStepClock() *stepClock {
	return &stepClock{cur: time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *stepClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cur = c.cur.Add(time.Second)
	return c.cur
}

func newService(opts ...Option) *UserService {
	return NewUserService(repomanager.NewMemoryRepositoryManager(), opts...)
}

func strPtr(s string) *string { return &s }

func requireKind(t *testing.T, err error, kind envelope.Kind) {
	t.Helper()
	require.Error(t, err)
	var e *envelope.Error
	require.True(t, errors.As(err, &e), "expected *envelope.Error, got %T", err)
	assert.Equal(t, kind, e.Kind)
}

func TestUserService_CreateGetRoundTrip(t *testing.T) {
	ctx := context.Background()
	s := newService()

	created, err := s.Create(ctx, models.CreateUserRequest{UserName: "alice", Email: "alice@example.com"})
	require.NoError(t, err)
	assert.NotEqual(t, uuid.Nil, created.ID)
	assert.Equal(t, created.CreatedAt, created.UpdatedAt)

	got, err := s.Get(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, created, got)
}

func TestUserService_CreateValidation(t *testing.T) {
	s := newService()
	tests := []struct {
		name string
		req  models.CreateUserRequest
		msg  string
	}{
		{"empty username", models.CreateUserRequest{Email: "a@b"}, models.ErrEmptyUserName.Error()},
		{"empty email", models.CreateUserRequest{UserName: "a"}, models.ErrEmptyEmail.Error()},
		{"no at sign", models.CreateUserRequest{UserName: "a", Email: "ab"}, models.ErrInvalidEmail.Error()},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := s.Create(context.Background(), tt.req)
			requireKind(t, err, envelope.KindValidation)
			assert.Equal(t, tt.msg, envelope.PublicMessage(err))
		})
	}
}

func TestUserService_CreateDuplicate(t *testing.T) {
	ctx := context.Background()
	s := newService()

	_, err := s.Create(ctx, models.CreateUserRequest{UserName: "alice", Email: "a@x"})
	require.NoError(t, err)

	_, err = s.Create(ctx, models.CreateUserRequest{UserName: "alice", Email: "b@x"})
	requireKind(t, err, envelope.KindValidation)
	assert.Equal(t, "username already exists", envelope.PublicMessage(err))

	_, err = s.Create(ctx, models.CreateUserRequest{UserName: "bob", Email: "a@x"})
	requireKind(t, err, envelope.KindValidation)
	assert.Equal(t, "email already exists", envelope.PublicMessage(err))
}

func TestUserService_CreateConcurrentUniqueness(t *testing.T) {
	s := newService()
	const n = 16

	var ok, dup atomic.Int32
	var wg sync.WaitGroup
	for i := range n {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := s.Create(context.Background(), models.CreateUserRequest{
				UserName: "same",
				Email:    fmt.Sprintf("u%d@x", i),
			})
			if err == nil {
				ok.Add(1)
				return
			}
			if envelope.KindOf(err) == envelope.KindValidation {
				dup.Add(1)
			}
		}()
	}
	wg.Wait()

	assert.EqualValues(t, 1, ok.Load())
	assert.EqualValues(t, n-1, dup.Load())

	list, err := s.List(context.Background(), models.ListQuery{Limit: 100})
	require.NoError(t, err)
	assert.Len(t, list, 1)
}

func TestUserService_GetNotFound(t *testing.T) {
	_, err := newService().Get(context.Background(), uuid.New())
	requireKind(t, err, envelope.KindNotFound)
	assert.Equal(t, envelope.MsgNotFound, envelope.PublicMessage(err))
}

func TestUserService_PartialUpdate(t *testing.T) {
	ctx := context.Background()
	clock := newStepClock()
	s := newService(WithClock(clock.Now))

	u, err := s.Create(ctx, models.CreateUserRequest{UserName: "alice", Email: "alice@example.com"})
	require.NoError(t, err)

	updated, err := s.Update(ctx, u.ID, models.UpdateUserRequest{UserName: strPtr("alicia")})
	require.NoError(t, err)
	assert.Equal(t, "alicia", updated.UserName)
	assert.Equal(t, "alice@example.com", updated.Email)
	assert.Equal(t, u.CreatedAt, updated.CreatedAt)
	assert.True(t, updated.UpdatedAt.After(u.UpdatedAt))

	got, err := s.Get(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, updated, got)

	// the old name is free again
	_, err = s.Create(ctx, models.CreateUserRequest{UserName: "alice", Email: "other@example.com"})
	require.NoError(t, err)
}

func TestUserService_UpdateAdvancesWithStoppedClock(t *testing.T) {
	ctx := context.Background()
	fixed := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	s := newService(WithClock(func() time.Time { return fixed }))

	u, err := s.Create(ctx, models.CreateUserRequest{UserName: "a", Email: "a@x"})
	require.NoError(t, err)

	first, err := s.Update(ctx, u.ID, models.UpdateUserRequest{Email: strPtr("b@x")})
	require.NoError(t, err)
	assert.Equal(t, fixed.Add(time.Microsecond), first.UpdatedAt)

	second, err := s.Update(ctx, u.ID, models.UpdateUserRequest{Email: strPtr("c@x")})
	require.NoError(t, err)
	assert.Equal(t, fixed.Add(2*time.Microsecond), second.UpdatedAt)
}

func TestUserService_NoOpUpdate(t *testing.T) {
	ctx := context.Background()
	s := newService(WithClock(newStepClock().Now))

	u, err := s.Create(ctx, models.CreateUserRequest{UserName: "a", Email: "a@x"})
	require.NoError(t, err)

	got, err := s.Update(ctx, u.ID, models.UpdateUserRequest{})
	require.NoError(t, err)
	assert.Equal(t, u, got)

	_, err = s.Update(ctx, uuid.New(), models.UpdateUserRequest{})
	requireKind(t, err, envelope.KindNotFound)
}

func TestUserService_UpdateErrors(t *testing.T) {
	ctx := context.Background()
	s := newService()

	a, err := s.Create(ctx, models.CreateUserRequest{UserName: "a", Email: "a@x"})
	require.NoError(t, err)
	_, err = s.Create(ctx, models.CreateUserRequest{UserName: "b", Email: "b@x"})
	require.NoError(t, err)

	_, err = s.Update(ctx, uuid.New(), models.UpdateUserRequest{UserName: strPtr("z")})
	requireKind(t, err, envelope.KindNotFound)

	_, err = s.Update(ctx, a.ID, models.UpdateUserRequest{Email: strPtr("nope")})
	requireKind(t, err, envelope.KindValidation)

	_, err = s.Update(ctx, a.ID, models.UpdateUserRequest{UserName: strPtr("b")})
	requireKind(t, err, envelope.KindValidation)
	assert.Equal(t, "username already exists", envelope.PublicMessage(err))

	got, err := s.Get(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, a, got)
}

func TestUserService_ListClampAndOrder(t *testing.T) {
	ctx := context.Background()
	s := newService(WithClock(newStepClock().Now))

	var ids []uuid.UUID
	for _, name := range []string{"a", "b", "c"} {
		u, err := s.Create(ctx, models.CreateUserRequest{UserName: name, Email: name + "@x"})
		require.NoError(t, err)
		ids = append(ids, u.ID)
	}

	list, err := s.List(ctx, models.NewListQuery(nil, nil))
	require.NoError(t, err)
	require.Len(t, list, 3)
	assert.Equal(t, []uuid.UUID{ids[2], ids[1], ids[0]}, []uuid.UUID{list[0].ID, list[1].ID, list[2].ID})

	clamped, err := s.List(ctx, models.ListQuery{Limit: 1000, Offset: -5})
	require.NoError(t, err)
	reference, err := s.List(ctx, models.ListQuery{Limit: 100, Offset: 0})
	require.NoError(t, err)
	assert.Equal(t, reference, clamped)

	empty, err := s.List(ctx, models.ListQuery{Limit: 10, Offset: 10})
	require.NoError(t, err)
	assert.NotNil(t, empty)
	assert.Empty(t, empty)
}

func TestUserService_ListZeroQueryUsesDefaultLimit(t *testing.T) {
	ctx := context.Background()
	s := newService(WithClock(newStepClock().Now))

	var last uuid.UUID
	for i := range models.DefaultListLimit + 5 {
		u, err := s.Create(ctx, models.CreateUserRequest{
			UserName: fmt.Sprintf("user%d", i),
			Email:    fmt.Sprintf("user%d@x", i),
		})
		require.NoError(t, err)
		last = u.ID
	}

	list, err := s.List(ctx, models.ListQuery{})
	require.NoError(t, err)
	require.Len(t, list, models.DefaultListLimit)
	assert.Equal(t, last, list[0].ID)
	for i := 1; i < len(list); i++ {
		assert.True(t, list[i-1].CreatedAt.After(list[i].CreatedAt))
	}
}

func TestUserService_Delete(t *testing.T) {
	ctx := context.Background()
	s := newService()

	u, err := s.Create(ctx, models.CreateUserRequest{UserName: "a", Email: "a@x"})
	require.NoError(t, err)

	require.NoError(t, s.Delete(ctx, u.ID))

	_, err = s.Get(ctx, u.ID)
	requireKind(t, err, envelope.KindNotFound)

	err = s.Delete(ctx, u.ID)
	requireKind(t, err, envelope.KindNotFound)
}

type brokenRepo struct {
	users.Repository
	err error
}

func (r brokenRepo) Create(context.Context, models.User) (models.User, error) {
	return models.User{}, r.err
}
func (r brokenRepo) Get(context.Context, uuid.UUID) (models.User, error) {
	return models.User{}, r.err
}
func (r brokenRepo) List(context.Context, models.ListQuery) ([]models.User, error) {
	return nil, r.err
}
func (r brokenRepo) Delete(context.Context, uuid.UUID) error { return r.err }

type brokenManager struct {
	repomanager.RepositoryManager
	err error
}

func (m brokenManager) Users() users.Repository { return brokenRepo{err: m.err} }
func (m brokenManager) WithinTx(ctx context.Context, fn func(context.Context, users.Repository) error) error {
	return fmt.Errorf("begin: %w", m.err)
}

func TestUserService_StorageFailures(t *testing.T) {
	ctx := context.Background()
	cause := errors.New("connection refused")
	s := NewUserService(brokenManager{err: cause})

	_, err := s.Create(ctx, models.CreateUserRequest{UserName: "a", Email: "a@x"})
	requireKind(t, err, envelope.KindStorage)
	assert.ErrorIs(t, err, cause)
	assert.Equal(t, envelope.MsgStorage, envelope.PublicMessage(err))

	_, err = s.Get(ctx, uuid.New())
	requireKind(t, err, envelope.KindStorage)

	_, err = s.List(ctx, models.ListQuery{Limit: 1})
	requireKind(t, err, envelope.KindStorage)

	_, err = s.Update(ctx, uuid.New(), models.UpdateUserRequest{Email: strPtr("x@y")})
	requireKind(t, err, envelope.KindStorage)

	err = s.Delete(ctx, uuid.New())
	requireKind(t, err, envelope.KindStorage)
}

func TestUserService_CanceledContextIsInternal(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := newService().Get(ctx, uuid.New())
	requireKind(t, err, envelope.KindInternal)
	assert.ErrorIs(t, err, context.Canceled)
}
