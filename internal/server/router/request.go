package router

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/url"

	"github.com/dmitrijs2005/usersvc/internal/server/envelope"
	"github.com/google/uuid"
)

// Request is the transport-neutral form of an incoming call.
type Request struct {
	Method string
	Path   string
	Query  url.Values
	Body   []byte

	params map[string]any
}

// Reply is a dispatch outcome. Body is always an envelope value.
type Reply struct {
	Status envelope.Status
	// Route is the matched pattern, or empty when no route matched.
	Route string
	Body  any
}

// Param returns the typed capture stored under name.
func (r *Request) Param(name string) (any, bool) {
	v, ok := r.params[name]
	return v, ok
}

// UUID returns a capture declared as {name:uuid}; uuid.Nil when absent.
func (r *Request) UUID(name string) uuid.UUID {
	v, _ := r.params[name].(uuid.UUID)
	return v
}

func (r *Request) Int(name string) int {
	v, _ := r.params[name].(int)
	return v
}

func (r *Request) String(name string) string {
	v, _ := r.params[name].(string)
	return v
}

var ErrEmptyBody = errors.New("request body is empty")

// DecodeBody unmarshals the JSON body into v. Unknown fields, trailing data
// and an empty body are validation errors.
func (r *Request) DecodeBody(v any) error {
	if len(bytes.TrimSpace(r.Body)) == 0 {
		return envelope.ValidationErr(ErrEmptyBody)
	}

	dec := json.NewDecoder(bytes.NewReader(r.Body))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return envelope.Validationf("invalid request body: %v", err)
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return envelope.Validation("invalid request body: unexpected data after JSON value")
	}
	return nil
}

// OK wraps data in a success envelope.
func OK[T any](data T) Reply {
	return Reply{Status: envelope.StatusOK, Body: envelope.Success(data)}
}

func Created[T any](data T) Reply {
	return Reply{Status: envelope.StatusCreated, Body: envelope.Success(data)}
}

// Fail converts err into a failure envelope and its status.
func Fail(err error) Reply {
	env, st := envelope.FromError(err)
	return Reply{Status: st, Body: env}
}

func methodNotAllowed(allowed []string) Reply {
	env, _ := envelope.Failure(fmt.Sprintf("method not allowed; allow: %s", joinMethods(allowed)), envelope.KindValidation)
	return Reply{Status: envelope.StatusMethodNotAllowed, Body: env}
}

func routeNotFound() Reply {
	env, st := envelope.Failure("route not found", envelope.KindNotFound)
	return Reply{Status: st, Body: env}
}
