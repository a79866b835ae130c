package repomanager

import (
	"context"

	"github.com/dmitrijs2005/usersvc/internal/server/repositories/users"
)

type MemoryRepositoryManager struct {
	users *users.MemoryRepository
}

func NewMemoryRepositoryManager() *MemoryRepositoryManager {
	return &MemoryRepositoryManager{users: users.NewMemoryRepository()}
}

func (m *MemoryRepositoryManager) Users() users.Repository {
	return m.users
}

func (m *MemoryRepositoryManager) WithinTx(ctx context.Context, fn func(ctx context.Context, repo users.Repository) error) error {
	return m.users.Atomically(ctx, fn)
}

func (m *MemoryRepositoryManager) Backend() string { return BackendMemory }

func (m *MemoryRepositoryManager) Close() error { return nil }
