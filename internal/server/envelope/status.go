package envelope

import (
	"net/http"

	"google.golang.org/grpc/codes"
)

// Status is the transport-neutral outcome of a request. Each transport binds
// it to its own numeric codes.
type Status int

const (
	StatusOK Status = iota
	StatusCreated
	StatusBadRequest
	StatusNotFound
	StatusMethodNotAllowed
	StatusInternalError
)

// StatusOf maps every Kind onto a Status.
func StatusOf(k Kind) Status {
	switch k {
	case KindValidation:
		return StatusBadRequest
	case KindNotFound:
		return StatusNotFound
	case KindStorage, KindInternal:
		return StatusInternalError
	}
	return StatusInternalError
}

func (s Status) IsSuccess() bool {
	return s == StatusOK || s == StatusCreated
}

func (s Status) IsClientError() bool {
	return s == StatusBadRequest || s == StatusNotFound || s == StatusMethodNotAllowed
}

func (s Status) IsServerError() bool {
	return s == StatusInternalError
}

func (s Status) HTTP() int {
	switch s {
	case StatusOK:
		return http.StatusOK
	case StatusCreated:
		return http.StatusCreated
	case StatusBadRequest:
		return http.StatusBadRequest
	case StatusNotFound:
		return http.StatusNotFound
	case StatusMethodNotAllowed:
		return http.StatusMethodNotAllowed
	}
	return http.StatusInternalServerError
}

func (s Status) GRPC() codes.Code {
	switch s {
	case StatusOK, StatusCreated:
		return codes.OK
	case StatusBadRequest:
		return codes.InvalidArgument
	case StatusNotFound:
		return codes.NotFound
	case StatusMethodNotAllowed:
		return codes.Unimplemented
	}
	return codes.Internal
}

func (s Status) String() string {
	switch s {
	case StatusOK:
		return "ok"
	case StatusCreated:
		return "created"
	case StatusBadRequest:
		return "bad_request"
	case StatusNotFound:
		return "not_found"
	case StatusMethodNotAllowed:
		return "method_not_allowed"
	}
	return "internal_error"
}
