// Package logger provides leveled logging for idsync.
//
// Messages below the current threshold are dropped. The default threshold
// is LevelError, so only errors are printed unless --verbose (LevelDebug)
// or --log-level lowers it. Output goes to stderr so command output on
// stdout stays clean.
package logger

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"
)

// Level is a logging threshold.
type Level int

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
)

// String returns the level tag printed before each message.
func (l Level) String() string {
	switch l {
	case LevelDebug:
		return "DEBUG"
	case LevelInfo:
		return "INFO"
	case LevelWarn:
		return "WARN"
	default:
		return "ERROR"
	}
}

// ParseLevel parses a level name, case-insensitively.
func ParseLevel(s string) (Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return LevelDebug, nil
	case "info":
		return LevelInfo, nil
	case "warn", "warning":
		return LevelWarn, nil
	case "error", "":
		return LevelError, nil
	default:
		return LevelError, fmt.Errorf("unknown log level %q", s)
	}
}

var (
	mu         sync.RWMutex
	threshold            = LevelError
	output     io.Writer = os.Stderr
	timestamps bool
	now        = time.Now
)

// SetVerbose switches between debug logging and errors only.
func SetVerbose(v bool) {
	if v {
		SetLevel(LevelDebug)
	} else {
		SetLevel(LevelError)
	}
}

// IsVerbose reports whether debug messages are printed.
func IsVerbose() bool {
	return Enabled(LevelDebug)
}

// SetLevel sets the threshold.
func SetLevel(l Level) {
	mu.Lock()
	defer mu.Unlock()
	threshold = l
}

// Enabled reports whether messages at l are printed.
func Enabled(l Level) bool {
	mu.RLock()
	defer mu.RUnlock()
	return l >= threshold
}

// SetOutput sets the output writer for logs.
func SetOutput(w io.Writer) {
	mu.Lock()
	defer mu.Unlock()
	output = w
}

// SetTimestamps prefixes every message with an RFC 3339 time when on.
// Long-running commands (schedule, sync --watch) turn this on.
func SetTimestamps(on bool) {
	mu.Lock()
	defer mu.Unlock()
	timestamps = on
}

func logf(l Level, format string, args ...any) {
	mu.RLock()
	defer mu.RUnlock()
	if l < threshold {
		return
	}
	prefix := "[" + l.String() + "] "
	if timestamps {
		prefix = now().Format(time.RFC3339) + " " + prefix
	}
	fmt.Fprintf(output, prefix+format+"\n", args...)
}

// Debug prints per-delta detail.
func Debug(format string, args ...any) {
	logf(LevelDebug, format, args...)
}

// Info prints run progress.
func Info(format string, args ...any) {
	logf(LevelInfo, format, args...)
}

// Warn prints recoverable problems such as skipped values.
func Warn(format string, args ...any) {
	logf(LevelWarn, format, args...)
}

// Error prints failures. Errors are printed at every threshold.
func Error(format string, args ...any) {
	logf(LevelError, format, args...)
}

// Section prints a header separating the log of one run from the next.
// It is shown whenever Info is.
func Section(name string) {
	mu.RLock()
	defer mu.RUnlock()
	if LevelInfo >= threshold {
		fmt.Fprintf(output, "\n=== %s ===\n", name)
	}
}
