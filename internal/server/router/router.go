// Package router resolves transport-neutral requests to handlers. Routes are
// matched in registration order; typed path captures are parsed before the
// handler runs, and handler panics are turned into internal-error replies.
package router

import (
	"context"
	"fmt"
	"runtime/debug"
	"slices"
	"strings"
	"time"

	"github.com/dmitrijs2005/usersvc/internal/logging"
	"github.com/dmitrijs2005/usersvc/internal/server/envelope"
)

// HandlerFunc serves one matched request.
type HandlerFunc func(ctx context.Context, req *Request) Reply

// Observer is notified after every dispatch.
type Observer interface {
	ObserveDispatch(method, route string, status envelope.Status, elapsed time.Duration)
}

type route struct {
	method  string
	pattern string
	segs    []segment
	handler HandlerFunc
}

type Dispatcher struct {
	routes   []route
	types    map[string]ParseFunc
	logger   logging.Logger
	observer Observer
}

type Option func(*Dispatcher)

func WithObserver(o Observer) Option {
	return func(d *Dispatcher) { d.observer = o }
}

func NewDispatcher(logger logging.Logger, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		types:  builtinTypes(),
		logger: logger.With("module", "router"),
	}
	for _, o := range opts {
		o(d)
	}
	return d
}

// RegisterType makes {name:typ} captures available to later routes.
func (d *Dispatcher) RegisterType(typ string, parse ParseFunc) {
	d.types[typ] = parse
}

// Handle appends a route. It panics on a malformed pattern.
func (d *Dispatcher) Handle(method, pattern string, h HandlerFunc) {
	d.routes = append(d.routes, route{
		method:  strings.ToUpper(method),
		pattern: pattern,
		segs:    parsePattern(pattern, d.types),
		handler: h,
	})
}

// Dispatch resolves req and runs its handler. It never panics.
func (d *Dispatcher) Dispatch(ctx context.Context, req *Request) Reply {
	start := time.Now()
	reply := d.dispatch(ctx, req)
	if d.observer != nil {
		d.observer.ObserveDispatch(req.Method, reply.Route, reply.Status, time.Since(start))
	}
	return reply
}

func (d *Dispatcher) dispatch(ctx context.Context, req *Request) Reply {
	parts := splitPath(req.Path)
	method := strings.ToUpper(req.Method)

	var allowed []string
	for _, rt := range d.routes {
		raw, ok := match(rt.segs, parts)
		if !ok {
			continue
		}
		if rt.method != method {
			if !slices.Contains(allowed, rt.method) {
				allowed = append(allowed, rt.method)
			}
			continue
		}

		params, err := d.parseCaptures(rt.segs, raw)
		if err != nil {
			reply := Fail(err)
			reply.Route = rt.pattern
			return reply
		}
		req.params = params

		reply := d.invoke(ctx, rt, req)
		reply.Route = rt.pattern
		return reply
	}

	if len(allowed) > 0 {
		return methodNotAllowed(allowed)
	}
	return routeNotFound()
}

func (d *Dispatcher) parseCaptures(segs []segment, raw map[string]string) (map[string]any, error) {
	params := make(map[string]any, len(raw))
	for _, s := range segs {
		if !s.capture() {
			continue
		}
		v, err := d.types[s.typ](raw[s.name])
		if err != nil {
			return nil, envelope.Validationf("invalid %s: %v", s.name, err)
		}
		params[s.name] = v
	}
	return params, nil
}

func (d *Dispatcher) invoke(ctx context.Context, rt route, req *Request) (reply Reply) {
	defer func() {
		if r := recover(); r != nil {
			d.logger.Error(ctx, "handler panic",
				"method", rt.method,
				"route", rt.pattern,
				"panic", r,
				"stack", string(debug.Stack()),
			)
			reply = Fail(envelope.Internal(fmt.Errorf("panic: %v", r)))
		}
	}()
	return rt.handler(ctx, req)
}

func joinMethods(methods []string) string {
	return strings.Join(methods, ", ")
}
