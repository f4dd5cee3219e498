package config

// Routine names the compiler gives to generated code. The leading dot
// keeps them out of reach of user symbols.
const (
	AnonRoutineName       = ".anon_expr"
	InitializerNameFormat = ".init.%d"
)

// Special form and arithmetic operator names.
const (
	DefineFormName = "define"
	AddOpName      = "+"
	SubOpName      = "-"
	MulOpName      = "*"
	DivOpName      = "/"
	RemOpName      = "%"
)

// Front-end defaults.
const (
	DefaultHistoryFile   = "history.txt"
	DefaultSettingsFile  = "lispjit.yaml"
	DefaultServerAddress = "127.0.0.1:7411"
	DefaultBackend       = "vm"
	DefaultMaxFrames     = 4096

	Prompt             = "?> "
	ContinuationPrompt = ".. "
)

// UnitNameFormat names the compilation unit of the n-th input.
const UnitNameFormat = "repl_%d"

// IsTestMode is set by tests that must not touch the user's terminal.
var IsTestMode = false
