// Package repl is the interactive line-editing front end.
package repl

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/peterh/liner"

	"github.com/funvibe/lispjit/internal/config"
	"github.com/funvibe/lispjit/internal/diagnostics"
	"github.com/funvibe/lispjit/internal/reader"
)

type REPL struct {
	Eval        Evaluator
	Out         io.Writer
	Err         io.Writer
	Color       bool
	HistoryFile string
}

func New(eval Evaluator) *REPL {
	return &REPL{
		Eval:        eval,
		Out:         os.Stdout,
		Err:         os.Stderr,
		HistoryFile: config.DefaultHistoryFile,
	}
}

// Run reads inputs until EOF or :quit. Ctrl-C drops the pending input.
func (r *REPL) Run(ctx context.Context) error {
	ln := liner.NewLiner()
	defer ln.Close()
	ln.SetCtrlCAborts(true)

	if r.HistoryFile != "" {
		if f, err := os.Open(r.HistoryFile); err == nil {
			_, _ = ln.ReadHistory(f)
			f.Close()
		}
		defer r.saveHistory(ln)
	}

	for {
		src, ok := readInput(ln.Prompt)
		if !ok {
			fmt.Fprintln(r.Out)
			return nil
		}
		line := strings.TrimSpace(src)
		if line == "" {
			continue
		}
		ln.AppendHistory(strings.ReplaceAll(src, "\n", " "))
		if strings.HasPrefix(line, ":") {
			if r.command(line) {
				return nil
			}
			continue
		}
		r.Handle(ctx, src)
	}
}

func (r *REPL) saveHistory(ln *liner.State) {
	f, err := os.Create(r.HistoryFile)
	if err != nil {
		fmt.Fprintf(r.Err, "cannot write history: %v\n", err)
		return
	}
	defer f.Close()
	_, _ = ln.WriteHistory(f)
}

// command runs a colon command and reports whether the loop should stop.
func (r *REPL) command(line string) bool {
	switch strings.ToLower(line) {
	case ":quit", ":q":
		return true
	case ":help":
		fmt.Fprintln(r.Out, "Enter an expression such as (+ 1 2) or a definition such as (define (square x) (* x x)).")
		fmt.Fprintln(r.Out, ":quit leaves.")
	default:
		fmt.Fprintln(r.Err, "unknown command. Type :quit to exit.")
	}
	return false
}

// Handle evaluates one complete input and prints the outcome.
func (r *REPL) Handle(ctx context.Context, src string) bool {
	p := palette(r.Color)
	out, err := r.Eval.Eval(ctx, src)
	if err != nil {
		fmt.Fprintln(r.Err, FormatError(err, r.Color))
		return false
	}
	fmt.Fprintln(r.Out, p.green(out))
	return true
}

// FormatError renders err for the terminal.
func FormatError(err error, color bool) string {
	p := palette(color)
	var d *diagnostics.DiagnosticError
	if errors.As(err, &d) {
		msg := p.red(fmt.Sprintf("error [%s]", d.Code)) + ": " + d.Message
		if d.Input != "" && strings.Contains(d.Input, "\n") {
			msg += "\n" + p.gray(d.Input)
		}
		return msg
	}
	return p.red("error") + ": " + err.Error()
}

// readInput prompts until the accumulated text is no longer an unfinished
// expression. It returns false at EOF.
func readInput(prompt func(string) (string, error)) (string, bool) {
	var b strings.Builder
	for {
		p := config.Prompt
		if b.Len() > 0 {
			p = config.ContinuationPrompt
		}
		line, err := prompt(p)
		if errors.Is(err, io.EOF) {
			if b.Len() > 0 {
				return b.String(), true
			}
			return "", false
		}
		if errors.Is(err, liner.ErrPromptAborted) {
			return "", true
		}
		if err != nil {
			return "", false
		}

		if b.Len() > 0 {
			b.WriteByte('\n')
		}
		b.WriteString(line)
		if !reader.IsIncomplete(b.String()) {
			return b.String(), true
		}
	}
}
