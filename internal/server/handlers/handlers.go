// Package handlers translates dispatcher requests into UserService calls and
// service results into envelopes.
package handlers

import (
	"context"
	"strconv"

	"github.com/dmitrijs2005/usersvc/internal/logging"
	"github.com/dmitrijs2005/usersvc/internal/server/envelope"
	"github.com/dmitrijs2005/usersvc/internal/server/models"
	"github.com/dmitrijs2005/usersvc/internal/server/router"
	"github.com/google/uuid"
)

type UserService interface {
	Create(ctx context.Context, req models.CreateUserRequest) (models.User, error)
	Get(ctx context.Context, id uuid.UUID) (models.User, error)
	List(ctx context.Context, q models.ListQuery) ([]models.User, error)
	Update(ctx context.Context, id uuid.UUID, req models.UpdateUserRequest) (models.User, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

const (
	HealthMessage  = "Service is healthy"
	DeletedMessage = "user deleted"
)

type Handlers struct {
	users  UserService
	logger logging.Logger
}

func New(users UserService, logger logging.Logger) *Handlers {
	return &Handlers{users: users, logger: logger.With("module", "handlers")}
}

// Register binds every route on d.
func (h *Handlers) Register(d *router.Dispatcher) {
	d.Handle("GET", "/health", h.Health)
	d.Handle("POST", "/api/users", h.CreateUser)
	d.Handle("GET", "/api/users", h.ListUsers)
	d.Handle("GET", "/api/users/{id:uuid}", h.GetUser)
	d.Handle("PUT", "/api/users/{id:uuid}", h.UpdateUser)
	d.Handle("DELETE", "/api/users/{id:uuid}", h.DeleteUser)
}

func (h *Handlers) Health(ctx context.Context, req *router.Request) router.Reply {
	return router.OK(HealthMessage)
}

func (h *Handlers) CreateUser(ctx context.Context, req *router.Request) router.Reply {
	var in models.CreateUserRequest
	if err := req.DecodeBody(&in); err != nil {
		return h.fail(ctx, "create user", err)
	}
	if err := in.Validate(); err != nil {
		return h.fail(ctx, "create user", envelope.ValidationErr(err))
	}

	u, err := h.users.Create(ctx, in)
	if err != nil {
		return h.fail(ctx, "create user", err)
	}
	return router.Created(u)
}

func (h *Handlers) ListUsers(ctx context.Context, req *router.Request) router.Reply {
	limit, err := queryInt(req, "limit")
	if err != nil {
		return h.fail(ctx, "list users", err)
	}
	offset, err := queryInt(req, "offset")
	if err != nil {
		return h.fail(ctx, "list users", err)
	}

	list, err := h.users.List(ctx, models.NewListQuery(limit, offset))
	if err != nil {
		return h.fail(ctx, "list users", err)
	}
	return router.OK(list)
}

func (h *Handlers) GetUser(ctx context.Context, req *router.Request) router.Reply {
	u, err := h.users.Get(ctx, req.UUID("id"))
	if err != nil {
		return h.fail(ctx, "get user", err)
	}
	return router.OK(u)
}

func (h *Handlers) UpdateUser(ctx context.Context, req *router.Request) router.Reply {
	var in models.UpdateUserRequest
	if err := req.DecodeBody(&in); err != nil {
		return h.fail(ctx, "update user", err)
	}
	if err := in.Validate(); err != nil {
		return h.fail(ctx, "update user", envelope.ValidationErr(err))
	}

	u, err := h.users.Update(ctx, req.UUID("id"), in)
	if err != nil {
		return h.fail(ctx, "update user", err)
	}
	return router.OK(u)
}

func (h *Handlers) DeleteUser(ctx context.Context, req *router.Request) router.Reply {
	if err := h.users.Delete(ctx, req.UUID("id")); err != nil {
		return h.fail(ctx, "delete user", err)
	}
	return router.OK(DeletedMessage)
}

// fail logs causes the caller will not see and builds the failure reply.
func (h *Handlers) fail(ctx context.Context, op string, err error) router.Reply {
	switch envelope.KindOf(err) {
	case envelope.KindStorage, envelope.KindInternal:
		h.logger.Error(ctx, op+" failed", "error", err)
	default:
		h.logger.Debug(ctx, op+" rejected", "error", err)
	}
	return router.Fail(err)
}

// queryInt returns nil when the parameter is absent.
func queryInt(req *router.Request, name string) (*int, error) {
	raw := req.Query.Get(name)
	if raw == "" {
		return nil, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return nil, envelope.Validationf("invalid %s: must be an integer", name)
	}
	return &n, nil
}
