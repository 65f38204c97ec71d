// Package util provides low-level helpers shared by all other packages.
package util

import (
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"golang.org/x/term"
)

// LogLevel controls output verbosity.
type LogLevel int

const (
	LogQuiet   LogLevel = 0
	LogNormal  LogLevel = 1
	LogVerbose LogLevel = 2
	LogDebug   LogLevel = 3
)

// stderrIsTerminal reports whether stderr is attached to an interactive
// terminal. Variable so tests can pin it.
var stderrIsTerminal = func() bool {
	return term.IsTerminal(int(os.Stderr.Fd()))
}

// Logger writes levelled messages to stderr with optional timestamps and
// level prefixes. Named returns per-subsystem children that share the
// parent's sink, level and mutex, so concurrent subsystems interleave
// whole lines instead of tearing them.
type Logger struct {
	name string
	sink *sink
}

type sink struct {
	level      LogLevel
	output     io.Writer
	mu         sync.Mutex
	timestamps bool
}

// NewLogger returns a Logger that prints messages at or below the given
// verbosity (0 = quiet, 1 = normal, 2 = verbose, 3 = debug). Timestamps
// are prepended automatically in debug mode and whenever stderr is not a
// terminal, since a service manager or log file needs them and a human
// at a terminal does not.
func NewLogger(verbosity int) *Logger {
	return &Logger{
		sink: &sink{
			level:      LogLevel(verbosity),
			output:     os.Stderr,
			timestamps: verbosity >= 3 || !stderrIsTerminal(),
		},
	}
}

// Named returns a child logger whose messages carry the given subsystem
// name. Children share the parent's sink; levels and output set on any
// of them apply to all.
func (l *Logger) Named(name string) *Logger {
	return &Logger{name: name, sink: l.sink}
}

// SetTimestamps enables or disables timestamp prefixes.
func (l *Logger) SetTimestamps(on bool) { l.sink.timestamps = on }

// SetOutput overrides the output writer (default: os.Stderr).
func (l *Logger) SetOutput(w io.Writer) { l.sink.output = w }

// Level returns the current log level.
func (l *Logger) Level() LogLevel { return l.sink.level }

// Info prints when verbosity ≥ 1.  Prefixed with [INF].
func (l *Logger) Info(format string, args ...interface{}) {
	if l.sink.level >= LogNormal {
		l.write("INF", format, args...)
	}
}

// Warn prints when verbosity ≥ 1.  Prefixed with [WRN].
func (l *Logger) Warn(format string, args ...interface{}) {
	if l.sink.level >= LogNormal {
		l.write("WRN", format, args...)
	}
}

// Verbose prints when verbosity ≥ 2.  Prefixed with [VRB].
func (l *Logger) Verbose(format string, args ...interface{}) {
	if l.sink.level >= LogVerbose {
		l.write("VRB", format, args...)
	}
}

// Debug prints when verbosity ≥ 3.  Prefixed with [DBG].
func (l *Logger) Debug(format string, args ...interface{}) {
	if l.sink.level >= LogDebug {
		l.write("DBG", format, args...)
	}
}

// Error always prints regardless of verbosity.  Prefixed with [ERR].
func (l *Logger) Error(format string, args ...interface{}) {
	l.write("ERR", format, args...)
}

func (l *Logger) write(level, format string, args ...interface{}) {
	s := l.sink
	s.mu.Lock()
	defer s.mu.Unlock()

	msg := fmt.Sprintf(format, args...)
	if l.name != "" {
		msg = l.name + ": " + msg
	}
	if s.timestamps {
		ts := time.Now().Format("15:04:05.000")
		fmt.Fprintf(s.output, "%s [%s] %s\n", ts, level, msg)
	} else {
		fmt.Fprintf(s.output, "[%s] %s\n", level, msg)
	}
}
