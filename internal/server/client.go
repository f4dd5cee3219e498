package server

import (
	"context"
	"fmt"

	"github.com/jhump/protoreflect/desc"
	"github.com/jhump/protoreflect/dynamic"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/funvibe/lispjit/internal/diagnostics"
	"github.com/funvibe/lispjit/internal/session"
)

// Reply is the decoded EvalReply.
type Reply struct {
	SessionID string
	Kind      string
	Value     float64
	Name      string
	Arity     int
	Code      string
	Message   string
}

// Err returns the diagnostic carried by an error reply, nil otherwise.
func (r *Reply) Err() error {
	if r.Kind != KindError {
		return nil
	}
	return &diagnostics.DiagnosticError{Code: diagnostics.ErrorCode(r.Code), Message: r.Message}
}

func (r *Reply) String() string {
	switch r.Kind {
	case KindFunction:
		return fmt.Sprintf("defined %s/%d", r.Name, r.Arity)
	case KindVariable:
		return r.Name + " = " + session.FormatValue(r.Value)
	case KindError:
		return r.Err().Error()
	}
	return session.FormatValue(r.Value)
}

// Client talks to a remote Evaluator.
type Client struct {
	conn *grpc.ClientConn
	sd   *desc.ServiceDescriptor
}

func Dial(addr string) (*Client, error) {
	sd, err := LoadService()
	if err != nil {
		return nil, err
	}
	conn, err := grpc.NewClient(addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, fmt.Errorf("connect %s: %w", addr, err)
	}
	return &Client{conn: conn, sd: sd}, nil
}

func (c *Client) Close() error {
	return c.conn.Close()
}

func (c *Client) invoke(ctx context.Context, method string, fill func(*dynamic.Message)) (*dynamic.Message, error) {
	md := c.sd.FindMethodByName(method)
	if md == nil {
		return nil, fmt.Errorf("method %s not found in %s", method, ServiceName)
	}
	req := dynamic.NewMessage(md.GetInputType())
	fill(req)
	resp := dynamic.NewMessage(md.GetOutputType())
	if err := c.conn.Invoke(ctx, methodPath(md), req, resp); err != nil {
		return nil, fmt.Errorf("%s failed: %w", method, err)
	}
	return resp, nil
}

// Eval sends one input. An empty sessionID opens a new session; its id
// comes back in the reply.
func (c *Client) Eval(ctx context.Context, sessionID, source string) (*Reply, error) {
	resp, err := c.invoke(ctx, "Eval", func(m *dynamic.Message) {
		m.SetFieldByName("session_id", sessionID)
		m.SetFieldByName("source", source)
	})
	if err != nil {
		return nil, err
	}
	r := &Reply{}
	r.SessionID, _ = resp.GetFieldByName("session_id").(string)
	r.Kind, _ = resp.GetFieldByName("kind").(string)
	r.Value, _ = resp.GetFieldByName("value").(float64)
	r.Name, _ = resp.GetFieldByName("name").(string)
	arity, _ := resp.GetFieldByName("arity").(int32)
	r.Arity = int(arity)
	r.Code, _ = resp.GetFieldByName("code").(string)
	r.Message, _ = resp.GetFieldByName("message").(string)
	return r, nil
}

// Records returns the definitions accepted by a session.
func (c *Client) Records(ctx context.Context, sessionID string) ([]string, error) {
	resp, err := c.invoke(ctx, "Records", func(m *dynamic.Message) {
		m.SetFieldByName("session_id", sessionID)
	})
	if err != nil {
		return nil, err
	}
	var sources []string
	if list, ok := resp.GetFieldByName("sources").([]interface{}); ok {
		for _, v := range list {
			if s, ok := v.(string); ok {
				sources = append(sources, s)
			}
		}
	}
	return sources, nil
}
