package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/funvibe/lispjit/internal/backend"
	"github.com/funvibe/lispjit/internal/config"
	"github.com/funvibe/lispjit/internal/reader"
	"github.com/funvibe/lispjit/internal/repl"
	"github.com/funvibe/lispjit/internal/server"
	"github.com/funvibe/lispjit/internal/session"
	"github.com/funvibe/lispjit/internal/store"
	"github.com/funvibe/lispjit/internal/utils"
)

const usage = `Usage:
  lispjit [flags]               interactive session
  lispjit [flags] -e EXPR...    evaluate each EXPR in one session
  lispjit [flags] serve [ADDR]  serve sessions over gRPC
  lispjit [flags] connect [ADDR]
                                interactive session on a server
  lispjit help

Flags:
  --dp              print every parsed expression
  --dc              print every compiled unit
  --backend=NAME    vm (default) or closure
  --config=PATH     settings file (default: nearest lispjit.yaml)
  --db=PATH         keep definitions in an SQLite database
  --session=ID      resume a stored or remote session
`

type options struct {
	command    string
	exprs      []string
	addr       string
	parsed     bool
	compiled   bool
	backend    string
	configPath string
	database   string
	sessionID  string
}

func parseArgs(args []string) (*options, error) {
	opts := &options{command: "repl"}
	for i := 0; i < len(args); i++ {
		arg := args[i]
		switch {
		case arg == "--dp":
			opts.parsed = true
		case arg == "--dc":
			opts.compiled = true
		case strings.HasPrefix(arg, "--backend="):
			opts.backend = strings.TrimPrefix(arg, "--backend=")
		case strings.HasPrefix(arg, "--config="):
			opts.configPath = strings.TrimPrefix(arg, "--config=")
		case strings.HasPrefix(arg, "--db="):
			opts.database = strings.TrimPrefix(arg, "--db=")
		case strings.HasPrefix(arg, "--session="):
			opts.sessionID = strings.TrimPrefix(arg, "--session=")
		case arg == "-e" || arg == "--eval":
			opts.command = "eval"
			opts.exprs = append(opts.exprs, args[i+1:]...)
			if len(opts.exprs) == 0 {
				return nil, fmt.Errorf("%s needs at least one expression", arg)
			}
			return opts, nil
		case arg == "help" || arg == "-help" || arg == "--help" || arg == "-h":
			opts.command = "help"
			return opts, nil
		case (arg == "serve" || arg == "connect") && opts.command == "repl":
			opts.command = arg
			if i+1 < len(args) && !strings.HasPrefix(args[i+1], "-") {
				i++
				opts.addr = args[i]
			}
		default:
			return nil, fmt.Errorf("unknown argument %q", arg)
		}
	}
	return opts, nil
}

func loadSettings(opts *options) (*config.Settings, error) {
	path := opts.configPath
	if path == "" {
		found, err := config.FindSettings(".")
		if err != nil {
			return nil, err
		}
		path = found
	}
	settings := config.DefaultSettings()
	if path != "" {
		s, err := config.LoadSettings(path)
		if err != nil {
			return nil, err
		}
		dir := filepath.Dir(path)
		s.HistoryFile = utils.ResolvePath(dir, s.HistoryFile)
		s.Database = utils.ResolvePath(dir, s.Database)
		settings = s
	}

	if opts.backend != "" {
		settings.Backend = opts.backend
	}
	if opts.database != "" {
		settings.Database = opts.database
	}
	if opts.addr != "" {
		settings.Server.Address = opts.addr
	}
	settings.Display.Parsed = settings.Display.Parsed || opts.parsed
	settings.Display.Compiled = settings.Display.Compiled || opts.compiled
	return settings, nil
}

// sessions opens the session store named in settings, if any, and returns
// a factory for sessions on the configured backend.
func sessions(settings *config.Settings) (server.SessionFactory, func(), error) {
	newBackend := func() (backend.Backend, error) {
		return backend.New(settings.Backend, settings.MaxFrames)
	}
	if _, err := newBackend(); err != nil {
		return nil, nil, err
	}

	if settings.Database == "" {
		return server.MemorySessions(func() backend.Backend {
			b, _ := newBackend()
			return b
		}), func() {}, nil
	}

	st, err := store.Open(settings.Database)
	if err != nil {
		return nil, nil, err
	}
	factory := func(ctx context.Context, id string, create bool) (*session.Session, error) {
		switch {
		case id == "" && !create:
			return nil, server.ErrNoSession
		case id == "":
			created, err := st.CreateSession(ctx)
			if err != nil {
				return nil, err
			}
			id = created
		case !create:
			ok, err := st.HasSession(ctx, id)
			if err != nil {
				return nil, err
			}
			if !ok {
				return nil, fmt.Errorf("%w: %s", server.ErrNoSession, id)
			}
		}
		b, err := newBackend()
		if err != nil {
			return nil, err
		}
		s := session.New(id, b)
		if err := st.Attach(ctx, s); err != nil {
			return nil, err
		}
		return s, nil
	}
	return factory, func() { st.Close() }, nil
}

func run(opts *options) int {
	if opts.command == "help" {
		fmt.Print(usage)
		return 0
	}

	settings, err := loadSettings(opts)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		return 1
	}
	ctx := context.Background()
	color := repl.UseColor(os.Stdout, settings.Color)

	if opts.command == "connect" {
		client, err := server.Dial(settings.Server.Address)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %s\n", err)
			return 1
		}
		defer client.Close()
		r := repl.New(&repl.Remote{Client: client, SessionID: opts.sessionID})
		r.Color = color
		r.HistoryFile = settings.HistoryFile
		if err := r.Run(ctx); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %s\n", err)
			return 1
		}
		return 0
	}

	factory, closeStore, err := sessions(settings)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		return 1
	}
	defer closeStore()

	if opts.command == "serve" {
		srv, err := server.New(factory)
		if err != nil {
			log.Printf("lispjit: %v", err)
			return 1
		}
		if err := srv.ListenAndServe(settings.Server.Address); err != nil {
			log.Printf("lispjit: %v", err)
			return 1
		}
		return 0
	}

	sess, err := factory(ctx, opts.sessionID, true)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		return 1
	}
	sess.Logger = log.New(os.Stderr, "lispjit: ", 0)
	repl.Display(sess, os.Stdout, settings.Display.Parsed, settings.Display.Compiled)

	r := repl.New(&repl.Local{Session: sess})
	r.Color = color
	r.HistoryFile = settings.HistoryFile

	switch {
	case opts.command == "eval":
		return evalAll(ctx, r, opts.exprs)
	case !isInteractive(os.Stdin):
		return evalAll(ctx, r, splitInputs(os.Stdin))
	}
	if err := r.Run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		return 1
	}
	return 0
}

func evalAll(ctx context.Context, r *repl.REPL, inputs []string) int {
	status := 0
	for _, in := range inputs {
		if strings.TrimSpace(in) == "" {
			continue
		}
		if !r.Handle(ctx, in) {
			status = 1
		}
	}
	return status
}

func isInteractive(f *os.File) bool {
	stat, err := f.Stat()
	if err != nil {
		return true
	}
	return stat.Mode()&os.ModeCharDevice != 0
}

// splitInputs groups piped lines into complete inputs the way the
// interactive prompt does.
func splitInputs(in io.Reader) []string {
	var inputs []string
	var b strings.Builder
	sc := bufio.NewScanner(in)
	for sc.Scan() {
		if b.Len() > 0 {
			b.WriteByte('\n')
		}
		b.WriteString(sc.Text())
		if !reader.IsIncomplete(b.String()) {
			inputs = append(inputs, b.String())
			b.Reset()
		}
	}
	if b.Len() > 0 {
		inputs = append(inputs, b.String())
	}
	return inputs
}

func main() {
	defer func() {
		if r := recover(); r != nil {
			if os.Getenv("DEBUG") == "1" {
				panic(r)
			}
			fmt.Fprintf(os.Stderr, "Internal error: %v\n", r)
			fmt.Fprintln(os.Stderr, "This is a bug. Please report it.")
			os.Exit(1)
		}
	}()

	if os.Getenv("LISPJIT_TEST_MODE") == "1" {
		config.IsTestMode = true
	}

	opts, err := parseArgs(os.Args[1:])
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n\n%s", err, usage)
		os.Exit(2)
	}
	if code := run(opts); code != 0 {
		os.Exit(code)
	}
}
