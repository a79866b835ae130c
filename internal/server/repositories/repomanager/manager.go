// Package repomanager selects the storage backend from the database DSN and
// hands out repositories plus the transaction scope writers run in.
package repomanager

import (
	"context"
	"fmt"
	"strings"

	"github.com/dmitrijs2005/usersvc/internal/server/repositories/users"
)

// RepositoryManager owns the store's shared resource (a connection pool or
// the in-memory tables) and is passed by reference to every request.
type RepositoryManager interface {
	// Users returns a repository outside any transaction.
	Users() users.Repository
	// WithinTx runs fn in the store's write scope: one database transaction,
	// or the memory store's writer lock. fn's error aborts the scope.
	WithinTx(ctx context.Context, fn func(ctx context.Context, repo users.Repository) error) error
	// Backend names the storage engine for logs.
	Backend() string
	Close() error
}

const (
	BackendMemory   = "memory"
	BackendPostgres = "postgres"
)

// Options tune the SQL connection pool.
type Options struct {
	PoolSize int
}

// Open picks the backend by DSN scheme: "memory" (or "memory://") keeps
// records in process, "postgres://" and "postgresql://" connect through pgx
// and run the embedded migrations.
func Open(ctx context.Context, dsn string, opts Options) (RepositoryManager, error) {
	switch {
	case dsn == BackendMemory || strings.HasPrefix(dsn, "memory://"):
		return NewMemoryRepositoryManager(), nil
	case strings.HasPrefix(dsn, "postgres://"), strings.HasPrefix(dsn, "postgresql://"):
		return OpenPostgres(ctx, dsn, opts)
	}
	return nil, fmt.Errorf("unsupported database dsn scheme: %q", redact(dsn))
}

// redact drops everything after the scheme so credentials never reach logs.
func redact(dsn string) string {
	if scheme, _, ok := strings.Cut(dsn, "://"); ok {
		return scheme + "://..."
	}
	return "..."
}
