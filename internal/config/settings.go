package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Settings is the content of lispjit.yaml. Command-line flags override it.
type Settings struct {
	// HistoryFile is where the line editor keeps its history.
	HistoryFile string `yaml:"history_file,omitempty"`

	// Backend selects how units are executed: "vm" or "closure".
	Backend string `yaml:"backend,omitempty"`

	Display Display `yaml:"display,omitempty"`

	// Color forces colored diagnostics on or off. Unset means auto-detect.
	Color *bool `yaml:"color,omitempty"`

	// Database is an SQLite file that keeps session history across runs.
	// Empty disables persistence.
	Database string `yaml:"database,omitempty"`

	Server Server `yaml:"server,omitempty"`

	// MaxFrames bounds the call depth of generated code.
	MaxFrames int `yaml:"max_frames,omitempty"`
}

// Display toggles the debugging dumps of the REPL.
type Display struct {
	Parsed   bool `yaml:"parsed,omitempty"`
	Compiled bool `yaml:"compiled,omitempty"`
}

type Server struct {
	Address string `yaml:"address,omitempty"`
}

// DefaultSettings returns the settings used when no file is found.
func DefaultSettings() *Settings {
	s := &Settings{}
	s.setDefaults()
	return s
}

// LoadSettings reads a settings file. A missing file yields the defaults.
func LoadSettings(path string) (*Settings, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return DefaultSettings(), nil
		}
		return nil, fmt.Errorf("reading settings %s: %w", path, err)
	}
	return ParseSettings(data, path)
}

// ParseSettings parses lispjit.yaml content from bytes.
// The path argument is used only for error messages.
func ParseSettings(data []byte, path string) (*Settings, error) {
	var s Settings
	if err := yaml.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	if err := s.validate(path); err != nil {
		return nil, err
	}
	s.setDefaults()
	return &s, nil
}

// FindSettings looks for lispjit.yaml in dir and its parents.
// It returns an empty path and nil error if there is none.
func FindSettings(dir string) (string, error) {
	dir, err := filepath.Abs(dir)
	if err != nil {
		return "", fmt.Errorf("resolving directory: %w", err)
	}
	for {
		candidate := filepath.Join(dir, DefaultSettingsFile)
		if _, err := os.Stat(candidate); err == nil {
			return candidate, nil
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", nil
		}
		dir = parent
	}
}

func (s *Settings) validate(path string) error {
	switch s.Backend {
	case "", "vm", "closure":
	default:
		return fmt.Errorf("%s: unknown backend %q (expected vm or closure)", path, s.Backend)
	}
	if s.MaxFrames < 0 {
		return fmt.Errorf("%s: max_frames must not be negative", path)
	}
	return nil
}

func (s *Settings) setDefaults() {
	if s.HistoryFile == "" {
		s.HistoryFile = DefaultHistoryFile
	}
	if s.Backend == "" {
		s.Backend = DefaultBackend
	}
	if s.Server.Address == "" {
		s.Server.Address = DefaultServerAddress
	}
	if s.MaxFrames == 0 {
		s.MaxFrames = DefaultMaxFrames
	}
}
