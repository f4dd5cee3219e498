package server

import (
	"context"
	"errors"
	"io"
	"log"
	"net"
	"testing"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/funvibe/lispjit/internal/backend"
	"github.com/funvibe/lispjit/internal/diagnostics"
	"github.com/funvibe/lispjit/internal/session"
)

func startServer(t *testing.T, factory SessionFactory) *Client {
	t.Helper()
	srv, err := New(factory)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	srv.Logger = log.New(io.Discard, "", 0)

	lis, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	go srv.Serve(lis)
	t.Cleanup(srv.Stop)

	client, err := Dial(lis.Addr().String())
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	t.Cleanup(func() { client.Close() })
	return client
}

func TestLoadService(t *testing.T) {
	sd, err := LoadService()
	if err != nil {
		t.Fatal(err)
	}
	if got := sd.GetFullyQualifiedName(); got != ServiceName {
		t.Errorf("service name = %s", got)
	}
	for _, m := range []string{"Eval", "Records"} {
		md := sd.FindMethodByName(m)
		if md == nil {
			t.Fatalf("method %s missing", m)
		}
		if p := methodPath(md); p != "/lispjit.Evaluator/"+m {
			t.Errorf("path = %s", p)
		}
	}
}

func TestEvalOverGRPC(t *testing.T) {
	client := startServer(t, MemorySessions(func() backend.Backend { return backend.NewVM(0) }))
	ctx := context.Background()

	r, err := client.Eval(ctx, "", "(define (square x) (* x x))")
	if err != nil {
		t.Fatal(err)
	}
	if r.SessionID == "" || r.Kind != KindFunction || r.String() != "defined square/1" {
		t.Fatalf("define reply = %+v", r)
	}
	id := r.SessionID

	tests := []struct {
		input string
		want  string
	}{
		{"(square 5)", "25"},
		{"(define k 2.5)", "k = 2.5"},
		{"(* k 2)", "5"},
		{"(+ 1 2 3)", "6"},
	}
	for _, tt := range tests {
		r, err := client.Eval(ctx, id, tt.input)
		if err != nil {
			t.Fatalf("Eval(%q): %v", tt.input, err)
		}
		if r.SessionID != id {
			t.Errorf("session changed to %s", r.SessionID)
		}
		if got := r.String(); got != tt.want {
			t.Errorf("Eval(%q) = %q, want %q", tt.input, got, tt.want)
		}
	}

	r, err = client.Eval(ctx, id, "(cube 3)")
	if err != nil {
		t.Fatal(err)
	}
	var d *diagnostics.DiagnosticError
	if !errors.As(r.Err(), &d) || d.Code != diagnostics.ErrC006 {
		t.Errorf("error reply = %+v", r)
	}

	sources, err := client.Records(ctx, id)
	if err != nil {
		t.Fatal(err)
	}
	if len(sources) != 2 || sources[0] != "(define (square x) (* x x))" || sources[1] != "(define k 2.5)" {
		t.Errorf("Records = %q", sources)
	}

	other, err := client.Eval(ctx, "", "(square 2)")
	if err != nil {
		t.Fatal(err)
	}
	if other.SessionID == id || other.Kind != KindError {
		t.Errorf("a new session must not see square: %+v", other)
	}
}

func TestRecordsRequiresKnownSession(t *testing.T) {
	client := startServer(t, MemorySessions(func() backend.Backend { return backend.NewClosure(0) }))
	ctx := context.Background()

	if _, err := client.Records(ctx, ""); status.Code(errors.Unwrap(err)) != codes.InvalidArgument {
		t.Errorf("Records without a session id = %v, want InvalidArgument", err)
	}
	if _, err := client.Records(ctx, "nobody"); status.Code(errors.Unwrap(err)) != codes.NotFound {
		t.Errorf("Records(nobody) = %v, want NotFound", err)
	}

	// Asking must not have opened the session.
	r, err := client.Eval(ctx, "nobody", "(define x 1)")
	if err != nil {
		t.Fatal(err)
	}
	sources, err := client.Records(ctx, r.SessionID)
	if err != nil {
		t.Fatal(err)
	}
	if len(sources) != 1 {
		t.Errorf("Records = %q", sources)
	}
}

func TestFactoryFailure(t *testing.T) {
	client := startServer(t, func(ctx context.Context, id string, create bool) (*session.Session, error) {
		return nil, errors.New("no sessions today")
	})
	if _, err := client.Eval(context.Background(), "", "1"); err == nil {
		t.Error("expected the factory error")
	}
}
