// Package tcpserver exposes the dispatcher over a line-delimited JSON
// protocol: each request is one JSON object per line and each reply is one
// envelope per line, in order.
package tcpserver

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/url"
	"sync"
	"time"

	"github.com/dmitrijs2005/usersvc/internal/logging"
	"github.com/dmitrijs2005/usersvc/internal/server/envelope"
	"github.com/dmitrijs2005/usersvc/internal/server/router"
	"github.com/dmitrijs2005/usersvc/internal/server/transport"
)

const (
	// MaxLineBytes caps a single request line.
	MaxLineBytes = 1 << 20

	defaultIdleTimeout = 5 * time.Minute
)

// Request is the wire form of one call.
type Request struct {
	Method string            `json:"method"`
	Path   string            `json:"path"`
	Query  map[string]string `json:"query,omitempty"`
	Body   json.RawMessage   `json:"body,omitempty"`
}

type Server struct {
	address     string
	binder      *transport.Binder
	dispatcher  *router.Dispatcher
	idleTimeout time.Duration
	logger      logging.Logger

	connsMu sync.Mutex
	conns   map[net.Conn]struct{}
	closed  bool
	wg      sync.WaitGroup
}

type Option func(*Server)

// WithIdleTimeout closes connections that send nothing for d.
func WithIdleTimeout(d time.Duration) Option {
	return func(s *Server) { s.idleTimeout = d }
}

func New(address string, b *transport.Binder, d *router.Dispatcher, l logging.Logger, opts ...Option) *Server {
	s := &Server{
		address:     address,
		binder:      b,
		dispatcher:  d,
		idleTimeout: defaultIdleTimeout,
		logger:      l.With("module", "tcp_server"),
		conns:       make(map[net.Conn]struct{}),
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

func (s *Server) Run(ctx context.Context) error {
	bind, err := s.binder.Listen(ctx, "tcp", s.address)
	if err != nil {
		return err
	}
	return s.Serve(ctx, bind.Listener)
}

// Serve accepts connections on ln until ctx is done. Open connections are
// closed on return.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	defer ln.Close()

	stop := make(chan struct{})
	defer close(stop)
	go func() {
		select {
		case <-ctx.Done():
			s.logger.Info(ctx, "Stopping TCP server...")
		case <-stop:
		}
		_ = ln.Close()
		s.closeAllConns()
	}()

	s.logger.Info(ctx, "Starting TCP server", "address", ln.Addr().String())

	for {
		conn, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				s.wg.Wait()
				return nil
			}
			return fmt.Errorf("tcp accept: %w", err)
		}
		s.trackConn(conn)
		s.wg.Add(1)
		go s.handleConn(ctx, conn)
	}
}

func (s *Server) handleConn(ctx context.Context, conn net.Conn) {
	defer s.wg.Done()
	defer s.untrackConn(conn)
	defer conn.Close()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	remote := conn.RemoteAddr().String()
	s.logger.Debug(ctx, "tcp client connected", "remote", remote)
	defer s.logger.Debug(ctx, "tcp client disconnected", "remote", remote)

	scanner := bufio.NewScanner(conn)
	scanner.Buffer(make([]byte, 0, 64*1024), MaxLineBytes)
	enc := json.NewEncoder(conn)

	for {
		if s.idleTimeout > 0 {
			_ = conn.SetReadDeadline(time.Now().Add(s.idleTimeout))
		}
		if !scanner.Scan() {
			if errors.Is(scanner.Err(), bufio.ErrTooLong) {
				reply := router.Fail(envelope.Validationf("request line exceeds %d bytes", MaxLineBytes))
				_ = enc.Encode(reply.Body)
			}
			return
		}

		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}

		reply := s.serveLine(ctx, line)
		if err := enc.Encode(reply.Body); err != nil {
			s.logger.Warn(ctx, "write response failed", "remote", remote, "error", err)
			return
		}
	}
}

func (s *Server) serveLine(ctx context.Context, line []byte) router.Reply {
	var req Request
	if err := json.Unmarshal(line, &req); err != nil {
		return router.Fail(envelope.Validationf("malformed request: %v", err))
	}
	if req.Method == "" || req.Path == "" {
		return router.Fail(envelope.Validation("malformed request: method and path are required"))
	}

	q := make(url.Values, len(req.Query))
	for k, v := range req.Query {
		q.Set(k, v)
	}

	var body []byte
	if len(req.Body) > 0 && string(req.Body) != "null" {
		body = req.Body
	}

	return s.dispatcher.Dispatch(ctx, &router.Request{
		Method: req.Method,
		Path:   req.Path,
		Query:  q,
		Body:   body,
	})
}

// trackConn closes conn at once if the server is already shutting down.
func (s *Server) trackConn(conn net.Conn) {
	s.connsMu.Lock()
	defer s.connsMu.Unlock()
	if s.closed {
		_ = conn.Close()
		return
	}
	s.conns[conn] = struct{}{}
}

func (s *Server) untrackConn(conn net.Conn) {
	s.connsMu.Lock()
	defer s.connsMu.Unlock()
	delete(s.conns, conn)
}

func (s *Server) closeAllConns() {
	s.connsMu.Lock()
	defer s.connsMu.Unlock()
	s.closed = true
	for conn := range s.conns {
		_ = conn.Close()
		delete(s.conns, conn)
	}
}
