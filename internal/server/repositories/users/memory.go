package users

import (
	"bytes"
	"context"
	"slices"
	"sync"

	"github.com/dmitrijs2005/usersvc/internal/common"
	"github.com/dmitrijs2005/usersvc/internal/server/models"
	"github.com/google/uuid"
)

// MemoryRepository keeps records in process memory. Readers share an
// RWMutex; every write, including the uniqueness check, holds it exclusively.
type MemoryRepository struct {
	mu sync.RWMutex
	t  *memTable
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{t: newMemTable()}
}

func (m *MemoryRepository) Create(ctx context.Context, user models.User) (models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.t.Create(ctx, user)
}

func (m *MemoryRepository) Get(ctx context.Context, id uuid.UUID) (models.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.t.Get(ctx, id)
}

func (m *MemoryRepository) GetForUpdate(ctx context.Context, id uuid.UUID) (models.User, error) {
	return m.Get(ctx, id)
}

func (m *MemoryRepository) List(ctx context.Context, q models.ListQuery) ([]models.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.t.List(ctx, q)
}

func (m *MemoryRepository) Update(ctx context.Context, user models.User) (models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.t.Update(ctx, user)
}

func (m *MemoryRepository) Delete(ctx context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.t.Delete(ctx, id)
}

// Atomically runs fn with the writer lock held. The Repository passed to fn
// must not be used after fn returns.
func (m *MemoryRepository) Atomically(ctx context.Context, fn func(ctx context.Context, repo Repository) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return fn(ctx, m.t)
}

// memTable is the unlocked storage behind MemoryRepository.
type memTable struct {
	byID    map[uuid.UUID]models.User
	byName  map[string]uuid.UUID
	byEmail map[string]uuid.UUID
}

func newMemTable() *memTable {
	return &memTable{
		byID:    make(map[uuid.UUID]models.User),
		byName:  make(map[string]uuid.UUID),
		byEmail: make(map[string]uuid.UUID),
	}
}

func (t *memTable) Create(ctx context.Context, user models.User) (models.User, error) {
	if err := ctx.Err(); err != nil {
		return models.User{}, err
	}
	if _, ok := t.byID[user.ID]; ok {
		return models.User{}, duplicateError("id")
	}
	if err := t.checkUnique(user); err != nil {
		return models.User{}, err
	}
	t.put(user)
	return user, nil
}

func (t *memTable) Get(ctx context.Context, id uuid.UUID) (models.User, error) {
	if err := ctx.Err(); err != nil {
		return models.User{}, err
	}
	u, ok := t.byID[id]
	if !ok {
		return models.User{}, common.ErrorNotFound
	}
	return u, nil
}

func (t *memTable) GetForUpdate(ctx context.Context, id uuid.UUID) (models.User, error) {
	return t.Get(ctx, id)
}

func (t *memTable) List(ctx context.Context, q models.ListQuery) ([]models.User, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	all := make([]models.User, 0, len(t.byID))
	for _, u := range t.byID {
		all = append(all, u)
	}
	slices.SortFunc(all, func(a, b models.User) int {
		if c := b.CreatedAt.Compare(a.CreatedAt); c != 0 {
			return c
		}
		return bytes.Compare(a.ID[:], b.ID[:])
	})

	if q.Offset >= len(all) {
		return []models.User{}, nil
	}
	end := min(q.Offset+q.Limit, len(all))
	return slices.Clone(all[q.Offset:end]), nil
}

func (t *memTable) Update(ctx context.Context, user models.User) (models.User, error) {
	if err := ctx.Err(); err != nil {
		return models.User{}, err
	}
	prev, ok := t.byID[user.ID]
	if !ok {
		return models.User{}, common.ErrorNotFound
	}
	if err := t.checkUnique(user); err != nil {
		return models.User{}, err
	}
	user.CreatedAt = prev.CreatedAt
	delete(t.byName, prev.UserName)
	delete(t.byEmail, prev.Email)
	t.put(user)
	return user, nil
}

func (t *memTable) Delete(ctx context.Context, id uuid.UUID) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	u, ok := t.byID[id]
	if !ok {
		return common.ErrorNotFound
	}
	delete(t.byID, id)
	delete(t.byName, u.UserName)
	delete(t.byEmail, u.Email)
	return nil
}

// checkUnique fails when another record already holds user's username or
// email. The record itself (same ID) does not count.
func (t *memTable) checkUnique(user models.User) error {
	if id, ok := t.byName[user.UserName]; ok && id != user.ID {
		return duplicateError(FieldUserName)
	}
	if id, ok := t.byEmail[user.Email]; ok && id != user.ID {
		return duplicateError(FieldEmail)
	}
	return nil
}

func (t *memTable) put(user models.User) {
	t.byID[user.ID] = user
	t.byName[user.UserName] = user.ID
	t.byEmail[user.Email] = user.ID
}
