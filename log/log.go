// Package log is a small leveled, colorized logger in the style used
// across the fetch pipeline: call sites pick a level explicitly
// (log.Std.W.F, log.Std.E.Ln, ...) instead of routing everything through a
// generic Printf.
package log

import (
	"fmt"
	"io"
	"os"
	"sync/atomic"

	"github.com/davecgh/go-spew/spew"
	"github.com/gookit/color"
)

// Level is one of the values a caller can pass as Options.MinLogLevel.
type Level int32

const (
	None Level = iota
	Error
	Warn
	Info
	Verbose
)

func (l Level) String() string {
	switch l {
	case None:
		return "none"
	case Error:
		return "error"
	case Warn:
		return "warn"
	case Info:
		return "info"
	case Verbose:
		return "verbose"
	default:
		return "unknown"
	}
}

// ParseLevel accepts the level names from spec: none, verbose, info,
// warn, error. Unknown strings fall back to Info.
func ParseLevel(s string) Level {
	switch s {
	case "none":
		return None
	case "error":
		return Error
	case "warn":
		return Warn
	case "info":
		return Info
	case "verbose":
		return Verbose
	default:
		return Info
	}
}

type (
	// Ln prints space-joined values plus a level tag.
	Ln func(a ...interface{})
	// F prints like fmt.Sprintf plus a level tag.
	F func(format string, a ...interface{})
	// S prints a spew.Sdump of its arguments; used at Verbose level for
	// events/filters that are painful to read as one-line JSON.
	S func(a ...interface{})

	LevelPrinter struct {
		Ln
		F
		S
	}

	// Log is the full set of per-level printers, one per Level except
	// None.
	Log struct {
		E, W, I, V LevelPrinter
	}
)

var currentLevel = func() *int32 { var v int32 = int32(Info); return &v }()

// SetLevel changes the process-wide minimum level. Fetchers created with
// different Options.MinLogLevel each call this, so the last one wins;
// callers that need per-fetcher isolation should not share a process.
func SetLevel(l Level) { atomic.StoreInt32(currentLevel, int32(l)) }

func GetLevel() Level { return Level(atomic.LoadInt32(currentLevel)) }

var levelTags = map[Level]func(a ...interface{}) string{
	Error:   color.Bit24(220, 50, 47, false).Sprint,
	Warn:    color.Bit24(181, 137, 0, false).Sprint,
	Info:    color.Bit24(38, 139, 210, false).Sprint,
	Verbose: color.Bit24(108, 113, 196, false).Sprint,
}

var levelNames = map[Level]string{
	Error:   "ERR",
	Warn:    "WRN",
	Info:    "INF",
	Verbose: "VRB",
}

func newPrinter(l Level, w io.Writer) LevelPrinter {
	enabled := func() bool { return GetLevel() >= l }
	tag := levelTags[l]
	name := levelNames[l]
	return LevelPrinter{
		Ln: func(a ...interface{}) {
			if !enabled() {
				return
			}
			fmt.Fprintln(w, append([]interface{}{tag(name)}, a...)...)
		},
		F: func(format string, a ...interface{}) {
			if !enabled() {
				return
			}
			fmt.Fprintf(w, "%s %s\n", tag(name), fmt.Sprintf(format, a...))
		},
		S: func(a ...interface{}) {
			if !enabled() {
				return
			}
			fmt.Fprintf(w, "%s %s\n", tag(name), spew.Sdump(a...))
		},
	}
}

// New builds a Log writing to w. The package-level Std logger writes to
// stderr and is what the rest of the fetch pipeline uses by default.
func New(w io.Writer) *Log {
	return &Log{
		E: newPrinter(Error, w),
		W: newPrinter(Warn, w),
		I: newPrinter(Info, w),
		V: newPrinter(Verbose, w),
	}
}

// Std is the process-wide default logger.
var Std = New(os.Stderr)
