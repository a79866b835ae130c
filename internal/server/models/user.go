// Package models holds the user record and the request shapes that create,
// change and page through it.
package models

import (
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
)

const (
	DefaultListLimit = 50
	MaxListLimit     = 100
)

// User is the persisted record. Values of this type are snapshots: the store
// owns the authoritative copy.
type User struct {
	ID        uuid.UUID `json:"id"`
	UserName  string    `json:"username"`
	Email     string    `json:"email"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type CreateUserRequest struct {
	UserName string `json:"username"`
	Email    string `json:"email"`
}

// UpdateUserRequest is a partial update: nil fields keep the stored value.
type UpdateUserRequest struct {
	UserName *string `json:"username,omitempty"`
	Email    *string `json:"email,omitempty"`
}

// Empty reports whether the request changes nothing.
func (r UpdateUserRequest) Empty() bool {
	return r.UserName == nil && r.Email == nil
}

// Apply returns u with the present fields of r merged in.
func (r UpdateUserRequest) Apply(u User) User {
	if r.UserName != nil {
		u.UserName = *r.UserName
	}
	if r.Email != nil {
		u.Email = *r.Email
	}
	return u
}

var (
	ErrEmptyUserName = errors.New("username must not be empty")
	ErrEmptyEmail    = errors.New("email must not be empty")
	ErrInvalidEmail  = errors.New("email must contain '@'")
)

// ValidateUserName rejects blank names.
func ValidateUserName(name string) error {
	if strings.TrimSpace(name) == "" {
		return ErrEmptyUserName
	}
	return nil
}

// ValidateEmail rejects blank addresses and addresses without '@'.
func ValidateEmail(email string) error {
	if strings.TrimSpace(email) == "" {
		return ErrEmptyEmail
	}
	if !strings.Contains(email, "@") {
		return ErrInvalidEmail
	}
	return nil
}

func (r CreateUserRequest) Validate() error {
	if err := ValidateUserName(r.UserName); err != nil {
		return err
	}
	return ValidateEmail(r.Email)
}

// Validate checks only the fields that are present.
func (r UpdateUserRequest) Validate() error {
	if r.UserName != nil {
		if err := ValidateUserName(*r.UserName); err != nil {
			return err
		}
	}
	if r.Email != nil {
		return ValidateEmail(*r.Email)
	}
	return nil
}

// ListQuery is a normalized page request.
type ListQuery struct {
	Limit  int
	Offset int
}

// NewListQuery applies defaults to absent values and clamps the rest:
// limit to [1, MaxListLimit], offset to >= 0.
func NewListQuery(limit, offset *int) ListQuery {
	q := ListQuery{Limit: DefaultListLimit}
	if limit != nil {
		q.Limit = min(max(*limit, 1), MaxListLimit)
	}
	if offset != nil {
		q.Offset = max(*offset, 0)
	}
	return q
}
