package repl

import (
	"context"
	"fmt"
	"io"

	"github.com/funvibe/lispjit/internal/ast"
	"github.com/funvibe/lispjit/internal/backend"
	"github.com/funvibe/lispjit/internal/ir"
	"github.com/funvibe/lispjit/internal/prettyprinter"
	"github.com/funvibe/lispjit/internal/server"
	"github.com/funvibe/lispjit/internal/session"
)

// Evaluator runs one input and returns the text to print.
type Evaluator interface {
	Eval(ctx context.Context, source string) (string, error)
}

// Local evaluates in an in-process session.
type Local struct {
	Session *session.Session
}

func (l *Local) Eval(ctx context.Context, source string) (string, error) {
	res, err := l.Session.Eval(ctx, source)
	if err != nil {
		return "", err
	}
	return res.String(), nil
}

// Remote evaluates through an Evaluator server. SessionID is filled in by
// the first reply when empty.
type Remote struct {
	Client    *server.Client
	SessionID string
}

func (r *Remote) Eval(ctx context.Context, source string) (string, error) {
	reply, err := r.Client.Eval(ctx, r.SessionID, source)
	if err != nil {
		return "", err
	}
	r.SessionID = reply.SessionID
	if err := reply.Err(); err != nil {
		return "", err
	}
	return reply.String(), nil
}

// Display installs the --dp/--dc printers on s. Compiled output shows the
// unit and, for backends that can print it, the loaded program.
func Display(s *session.Session, w io.Writer, parsed, compiled bool) {
	if parsed {
		printer := prettyprinter.NewCodePrinter()
		s.OnParsed = func(e ast.Expr) {
			fmt.Fprintf(w, "parsed: %s\n", printer.Print(e))
		}
	}
	if compiled {
		s.OnCompiled = func(u *ir.Unit) {
			fmt.Fprint(w, u.String())
		}
		s.OnLoaded = func(p backend.Program) {
			if st, ok := p.(fmt.Stringer); ok {
				fmt.Fprint(w, st.String())
			}
		}
	}
}
