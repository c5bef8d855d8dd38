// Package loxlog wires up github.com/op/go-logging the way the teacher's
// corpus does (see DESIGN.md): a stderr backend with a leveled formatter,
// overridable by an environment variable, shared by every package that
// accepts a Logger interface instead of importing go-logging directly.
package loxlog

import (
	"os"

	"github.com/op/go-logging"
)

var stderrFormat = logging.MustStringFormatter(
	`%{color}lox ▶ %{level:.5s}%{color:reset} %{message}`,
)

// Setup configures the global go-logging backend for prefix and returns a
// ready-to-use *logging.Logger. LOX_LOG_LEVEL (CRITICAL..DEBUG) overrides
// defaultLevel, mirroring the teacher's KR_LOG_LEVEL convention.
func Setup(prefix string, defaultLevel logging.Level) *logging.Logger {
	backend := logging.NewLogBackend(os.Stderr, "", 0)
	logging.SetFormatter(stderrFormat)
	leveled := logging.AddModuleLevel(backend)

	level := defaultLevel
	switch os.Getenv("LOX_LOG_LEVEL") {
	case "CRITICAL":
		level = logging.CRITICAL
	case "ERROR":
		level = logging.ERROR
	case "WARNING":
		level = logging.WARNING
	case "NOTICE":
		level = logging.NOTICE
	case "INFO":
		level = logging.INFO
	case "DEBUG":
		level = logging.DEBUG
	}
	leveled.SetLevel(level, prefix)

	logging.SetBackend(leveled)
	return logging.MustGetLogger(prefix)
}
