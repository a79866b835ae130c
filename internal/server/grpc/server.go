// Package grpc exposes the dispatcher as a single unary gRPC method. The
// request and response are structpb.Struct values so no generated code is
// needed; the envelope status travels in a response header.
package grpc

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/url"

	"github.com/dmitrijs2005/usersvc/internal/common"
	"github.com/dmitrijs2005/usersvc/internal/logging"
	"github.com/dmitrijs2005/usersvc/internal/server/envelope"
	"github.com/dmitrijs2005/usersvc/internal/server/router"
	"github.com/dmitrijs2005/usersvc/internal/server/transport"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials"
	"google.golang.org/grpc/metadata"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/structpb"
)

type GRPCServer struct {
	address    string
	binder     *transport.Binder
	dispatcher *router.Dispatcher
	logger     logging.Logger
}

func NewGRPCServer(address string, b *transport.Binder, d *router.Dispatcher, l logging.Logger) *GRPCServer {
	return &GRPCServer{
		address:    address,
		binder:     b,
		dispatcher: d,
		logger:     l.With("module", "grpc_server"),
	}
}

func (s *GRPCServer) Run(ctx context.Context) error {
	bind, err := s.binder.Listen(ctx, "grpc", s.address, "h2")
	if err != nil {
		return err
	}

	var opts []grpc.ServerOption
	if bind.Mode == transport.ModeSecured {
		opts = append(opts, grpc.Creds(credentials.NewTLS(bind.TLS)))
	}
	return s.Serve(ctx, bind.Raw, opts...)
}

// Serve serves on ln until ctx is done, then stops gracefully.
func (s *GRPCServer) Serve(ctx context.Context, ln net.Listener, opts ...grpc.ServerOption) error {
	opts = append(opts, grpc.ChainUnaryInterceptor(s.recoveryInterceptor, s.loggingInterceptor))
	srv := grpc.NewServer(opts...)

	RegisterDispatcherServer(srv, s)

	stop := make(chan struct{})
	defer close(stop)
	go func() {
		select {
		case <-ctx.Done():
			s.logger.Info(ctx, "Stopping gRPC server...")
			srv.GracefulStop()
		case <-stop:
		}
	}()

	s.logger.Info(ctx, "Starting gRPC server", "address", ln.Addr().String())

	if err := srv.Serve(ln); err != nil {
		return fmt.Errorf("grpc serve: %w", err)
	}
	return nil
}

// Call implements DispatcherServer.
func (s *GRPCServer) Call(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	reply := s.call(ctx, in)

	if err := grpc.SetHeader(ctx, metadata.Pairs(common.EnvelopeStatusHeader, reply.Status.String())); err != nil {
		s.logger.Warn(ctx, "set envelope header failed", "error", err)
	}

	out, err := toStruct(reply.Body)
	if err != nil {
		s.logger.Error(ctx, "encode envelope failed", "error", err)
		out, _ = toStruct(router.Fail(envelope.Internal(err)).Body)
	}
	return out, nil
}

func (s *GRPCServer) call(ctx context.Context, in *structpb.Struct) router.Reply {
	fields := in.GetFields()
	method := fields["method"].GetStringValue()
	path := fields["path"].GetStringValue()
	if method == "" || path == "" {
		return router.Fail(envelope.Validation("malformed request: method and path are required"))
	}

	q := url.Values{}
	for k, v := range fields["query"].GetStructValue().GetFields() {
		q.Set(k, scalarString(v))
	}

	var body []byte
	if v, ok := fields["body"]; ok {
		if _, isNull := v.GetKind().(*structpb.Value_NullValue); !isNull {
			b, err := protojson.Marshal(v)
			if err != nil {
				return router.Fail(envelope.Validationf("malformed request body: %v", err))
			}
			body = b
		}
	}

	return s.dispatcher.Dispatch(ctx, &router.Request{
		Method: method,
		Path:   path,
		Query:  q,
		Body:   body,
	})
}

// scalarString renders query values given as strings, numbers or bools.
func scalarString(v *structpb.Value) string {
	switch k := v.GetKind().(type) {
	case *structpb.Value_StringValue:
		return k.StringValue
	case *structpb.Value_NumberValue:
		return fmt.Sprintf("%v", k.NumberValue)
	case *structpb.Value_BoolValue:
		return fmt.Sprintf("%t", k.BoolValue)
	}
	return ""
}

func toStruct(body any) (*structpb.Struct, error) {
	b, err := json.Marshal(body)
	if err != nil {
		return nil, err
	}
	var m map[string]any
	if err := json.Unmarshal(b, &m); err != nil {
		return nil, err
	}
	return structpb.NewStruct(m)
}
