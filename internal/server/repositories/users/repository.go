// Package users persists user records. Every implementation reports missing
// rows as common.ErrorNotFound and uniqueness violations as
// common.ErrorDuplicate wrapped with the offending field.
package users

import (
	"context"
	"fmt"

	"github.com/dmitrijs2005/usersvc/internal/common"
	"github.com/dmitrijs2005/usersvc/internal/server/models"
	"github.com/google/uuid"
)

type Repository interface {
	// Create inserts user as given, including ID and timestamps.
	Create(ctx context.Context, user models.User) (models.User, error)
	Get(ctx context.Context, id uuid.UUID) (models.User, error)
	// GetForUpdate reads a record and, inside a transaction, locks it until
	// the transaction ends.
	GetForUpdate(ctx context.Context, id uuid.UUID) (models.User, error)
	// List returns a page ordered by created_at descending, id ascending.
	List(ctx context.Context, q models.ListQuery) ([]models.User, error)
	// Update overwrites username, email and updated_at of an existing record.
	Update(ctx context.Context, user models.User) (models.User, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

const (
	FieldUserName = "username"
	FieldEmail    = "email"
)

// duplicateError yields errors such as "username already exists" that still
// match common.ErrorDuplicate.
func duplicateError(field string) error {
	return fmt.Errorf("%s %w", field, common.ErrorDuplicate)
}
