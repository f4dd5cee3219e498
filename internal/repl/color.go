package repl

import (
	"os"

	"github.com/mattn/go-isatty"

	"github.com/funvibe/lispjit/internal/config"
)

const (
	ansiRed   = "\033[31m"
	ansiGreen = "\033[32m"
	ansiGray  = "\033[90m"
	ansiReset = "\033[0m"
)

// UseColor decides whether output to f gets ANSI colors. NO_COLOR always
// wins, then the settings override, then terminal detection.
func UseColor(f *os.File, override *bool) bool {
	if config.IsTestMode {
		return false
	}
	if _, ok := os.LookupEnv("NO_COLOR"); ok {
		return false
	}
	if override != nil {
		return *override
	}
	if os.Getenv("TERM") == "dumb" {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

type palette bool

func (p palette) wrap(code, s string) string {
	if !p {
		return s
	}
	return code + s + ansiReset
}

func (p palette) red(s string) string   { return p.wrap(ansiRed, s) }
func (p palette) green(s string) string { return p.wrap(ansiGreen, s) }
func (p palette) gray(s string) string  { return p.wrap(ansiGray, s) }
