// Package server exposes sessions over gRPC. The service is described by
// an embedded .proto file and served with dynamic messages.
package server

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net"
	"sync"

	"github.com/google/uuid"
	"github.com/jhump/protoreflect/desc"
	"github.com/jhump/protoreflect/dynamic"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/funvibe/lispjit/internal/ast"
	"github.com/funvibe/lispjit/internal/backend"
	"github.com/funvibe/lispjit/internal/diagnostics"
	"github.com/funvibe/lispjit/internal/session"
)

// ErrNoSession is returned by a SessionFactory asked for an id it does not
// have when create is false.
var ErrNoSession = errors.New("no such session")

// SessionFactory returns the session for id. An empty id asks for a new
// session. With create false only existing sessions are returned.
type SessionFactory func(ctx context.Context, id string, create bool) (*session.Session, error)

// MemorySessions returns a factory of unpersisted sessions on backends made
// by newBackend. Nothing outlives the server, so it never finds existing ids.
func MemorySessions(newBackend func() backend.Backend) SessionFactory {
	return func(ctx context.Context, id string, create bool) (*session.Session, error) {
		if !create {
			return nil, fmt.Errorf("%w: %s", ErrNoSession, id)
		}
		if id == "" {
			id = uuid.NewString()
		}
		return session.New(id, newBackend()), nil
	}
}

// Server holds one session per session id.
type Server struct {
	Logger *log.Logger

	factory  SessionFactory
	sd       *desc.ServiceDescriptor
	grpc     *grpc.Server
	mu       sync.Mutex
	sessions map[string]*session.Session
}

type handler interface {
	handleUnary(ctx context.Context, md *desc.MethodDescriptor, dec func(interface{}) error) (interface{}, error)
}

func New(factory SessionFactory) (*Server, error) {
	sd, err := LoadService()
	if err != nil {
		return nil, err
	}
	s := &Server{
		Logger:   log.Default(),
		factory:  factory,
		sd:       sd,
		grpc:     grpc.NewServer(),
		sessions: make(map[string]*session.Session),
	}

	sdesc := &grpc.ServiceDesc{
		ServiceName: sd.GetFullyQualifiedName(),
		HandlerType: (*handler)(nil),
		Metadata:    sd.GetFile().GetName(),
	}
	for _, method := range sd.GetMethods() {
		md := method
		sdesc.Methods = append(sdesc.Methods, grpc.MethodDesc{
			MethodName: md.GetName(),
			Handler: func(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
				return srv.(handler).handleUnary(ctx, md, dec)
			},
		})
	}
	s.grpc.RegisterService(sdesc, s)
	return s, nil
}

// Serve accepts connections on lis until Stop.
func (s *Server) Serve(lis net.Listener) error {
	s.Logger.Printf("lispjit: serving %s on %s", ServiceName, lis.Addr())
	return s.grpc.Serve(lis)
}

func (s *Server) ListenAndServe(addr string) error {
	lis, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	return s.Serve(lis)
}

func (s *Server) Stop() {
	s.grpc.GracefulStop()
}

func (s *Server) handleUnary(ctx context.Context, md *desc.MethodDescriptor, dec func(interface{}) error) (interface{}, error) {
	in := dynamic.NewMessage(md.GetInputType())
	if err := dec(in); err != nil {
		return nil, err
	}
	out := dynamic.NewMessage(md.GetOutputType())

	var err error
	switch md.GetName() {
	case "Eval":
		err = s.eval(ctx, in, out)
	case "Records":
		err = s.records(ctx, in, out)
	default:
		err = fmt.Errorf("method %s not implemented", md.GetName())
	}
	if err != nil {
		return nil, err
	}
	return out, nil
}

// session returns the session for id. Unknown ids are created on first use
// when create is set.
func (s *Server) session(ctx context.Context, id string, create bool) (*session.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if sess, ok := s.sessions[id]; ok && id != "" {
		return sess, nil
	}
	sess, err := s.factory(ctx, id, create)
	if err != nil {
		return nil, err
	}
	sess.Logger = s.Logger
	s.sessions[sess.ID] = sess
	s.Logger.Printf("lispjit: session %s opened", sess.ID)
	return sess, nil
}

func (s *Server) eval(ctx context.Context, in, out *dynamic.Message) error {
	id, _ := in.GetFieldByName("session_id").(string)
	source, _ := in.GetFieldByName("source").(string)

	sess, err := s.session(ctx, id, true)
	if err != nil {
		return err
	}
	out.SetFieldByName("session_id", sess.ID)

	res, err := sess.Eval(ctx, source)
	if err != nil {
		var d *diagnostics.DiagnosticError
		if !errors.As(err, &d) {
			return err
		}
		s.Logger.Printf("lispjit: session %s: %v", sess.ID, d)
		out.SetFieldByName("kind", KindError)
		out.SetFieldByName("code", string(d.Code))
		out.SetFieldByName("message", d.Message)
		return nil
	}

	out.SetFieldByName("kind", kindOf(res.Form))
	out.SetFieldByName("name", res.Name)
	out.SetFieldByName("value", res.Value)
	out.SetFieldByName("arity", int32(res.Arity))
	return nil
}

func (s *Server) records(ctx context.Context, in, out *dynamic.Message) error {
	id, _ := in.GetFieldByName("session_id").(string)
	if id == "" {
		return status.Error(codes.InvalidArgument, "session_id is required")
	}
	sess, err := s.session(ctx, id, false)
	if errors.Is(err, ErrNoSession) {
		return status.Errorf(codes.NotFound, "session %s not found", id)
	}
	if err != nil {
		return err
	}
	for _, rec := range sess.Records() {
		out.AddRepeatedFieldByName("sources", rec.Source)
	}
	return nil
}

func kindOf(form ast.FormKind) string {
	switch form {
	case ast.FormVariable:
		return KindVariable
	case ast.FormFunction:
		return KindFunction
	}
	return KindExpression
}
