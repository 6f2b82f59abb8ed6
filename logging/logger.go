// Package logging provides the nil-safe, hierarchical logger used
// throughout this module. A *Logger that is nil behaves like a fully
// configured logger that discards everything; callers that never wire up
// logging pay no cost beyond a nil check.
package logging

import (
	"bytes"
	"fmt"
	"io"
	"log"

	"github.com/fatih/color"
)

// DebugEnabled gates Debugf output. It defaults to
// false; cmd/filebuildctl flips it on when invoked with --verbose.
var DebugEnabled = false

// writer is an io.Writer that splits its input stream into lines and hands
// each complete line to a logging callback.
type writer struct {
	callback func(string)
	buffer   []byte
}

func trimCarriageReturn(b []byte) []byte {
	if len(b) > 0 && b[len(b)-1] == '\r' {
		return b[:len(b)-1]
	}
	return b
}

// Write implements io.Writer.
func (w *writer) Write(buffer []byte) (int, error) {
	w.buffer = append(w.buffer, buffer...)

	var processed int
	remaining := w.buffer
	for {
		index := bytes.IndexByte(remaining, '\n')
		if index == -1 {
			break
		}
		w.callback(string(trimCarriageReturn(remaining[:index])))
		processed += index + 1
		remaining = remaining[index+1:]
	}

	if processed > 0 {
		leftover := len(w.buffer) - processed
		if leftover > 0 {
			copy(w.buffer[:leftover], w.buffer[processed:])
		}
		w.buffer = w.buffer[:leftover]
	}

	return len(buffer), nil
}

// Logger is the logger type used across this module's packages. The zero
// value is not meaningful; use Disabled or NewStandardLogger, or derive a
// Logger via Sublogger. A nil *Logger is valid and logs nothing.
type Logger struct {
	prefix   string
	output   *log.Logger
	colorize bool
}

// Disabled is a logger that discards everything. It is distinct from a nil
// *Logger only in that calling Sublogger on it still returns a non-nil,
// still-disabled Logger, which is convenient when a caller always expects a
// non-nil Logger back.
var Disabled = &Logger{output: log.New(io.Discard, "", 0)}

// NewStandardLogger creates a root Logger that writes prefixed lines to w,
// using the standard library's flags for timestamps. colorize enables ANSI
// color on Warn/Error output; callers typically gate this on whether w is a
// terminal (see github.com/mattn/go-isatty in cmd/filebuildctl).
func NewStandardLogger(w io.Writer, colorize bool) *Logger {
	return &Logger{
		output:   log.New(w, "", log.LstdFlags),
		colorize: colorize,
	}
}

// Sublogger creates a new logger with name appended to this logger's
// hierarchical prefix (dot-separated). A nil receiver yields a nil
// sublogger.
func (l *Logger) Sublogger(name string) *Logger {
	if l == nil {
		return nil
	}
	prefix := name
	if l.prefix != "" {
		prefix = l.prefix + "." + name
	}
	return &Logger{
		prefix:   prefix,
		output:   l.output,
		colorize: l.colorize,
	}
}

func (l *Logger) line(format string, args ...any) string {
	s := fmt.Sprintf(format, args...)
	if l.prefix != "" {
		return fmt.Sprintf("[%s] %s", l.prefix, s)
	}
	return s
}

// Printf logs with fmt.Sprintf semantics.
func (l *Logger) Printf(format string, args ...any) {
	if l == nil {
		return
	}
	l.output.Output(3, l.line(format, args...))
}

// Println logs a single already-formatted line.
func (l *Logger) Println(args ...any) {
	if l == nil {
		return
	}
	l.output.Output(3, l.line("%s", fmt.Sprintln(args...)))
}

// Debugf logs with fmt.Sprintf semantics, but only when DebugEnabled.
func (l *Logger) Debugf(format string, args ...any) {
	if l == nil || !DebugEnabled {
		return
	}
	l.output.Output(3, l.line(format, args...))
}

// Warnf logs a formatted warning, colorized yellow when this logger was
// constructed with colorize enabled.
func (l *Logger) Warnf(format string, args ...any) {
	if l == nil {
		return
	}
	msg := fmt.Sprintf(format, args...)
	if l.colorize {
		msg = color.YellowString("Warning: %s", msg)
	} else {
		msg = "Warning: " + msg
	}
	l.output.Output(3, l.line("%s", msg))
}

// Warn logs err as a warning.
func (l *Logger) Warn(err error) {
	if l == nil {
		return
	}
	l.Warnf("%s", err.Error())
}

// Errorf logs a formatted error, colorized red when this logger was
// constructed with colorize enabled.
func (l *Logger) Errorf(format string, args ...any) {
	if l == nil {
		return
	}
	msg := fmt.Sprintf(format, args...)
	if l.colorize {
		msg = color.RedString("Error: %s", msg)
	} else {
		msg = "Error: " + msg
	}
	l.output.Output(3, l.line("%s", msg))
}

// Error logs err as an error.
func (l *Logger) Error(err error) {
	if l == nil {
		return
	}
	l.Errorf("%s", err.Error())
}

// Writer returns an io.Writer that logs each line it receives via Printf. A
// nil Logger returns io.Discard so callers pay no scanning overhead.
func (l *Logger) Writer() io.Writer {
	if l == nil {
		return io.Discard
	}
	return &writer{callback: func(s string) { l.Printf("%s", s) }}
}
