// Package common defines sentinel errors shared by the storage and service
// layers. Callers should use errors.Is to match these values.
package common

import "errors"

var (
	// Repository-level errors. Drivers translate their native errors
	// (sql.ErrNoRows, unique violations) into these.
	ErrorNotFound  = errors.New("not found")
	ErrorDuplicate = errors.New("already exists")
)
