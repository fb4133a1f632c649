// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

// Package logging wraps the standard library's log.Logger with the
// bracket-tagged, level-gated style used across the rest of the codebase.
// There is no separate structured-logging library in play here; everything
// downstream of this package writes through a single *log.Logger with an
// "[INTERCEPTOR] " prefix.
package logging

import (
	"io"
	"log"
	"os"
	"strings"

	ierrors "grimm.is/interceptor/internal/errors"
)

// Level is the minimum severity a Logger will emit.
type Level int

const (
	LevelTrace Level = iota
	LevelDebug
	LevelInfo
	LevelWarning
	LevelError
	levelOff // internal sentinel: nothing is ever emitted
)

func (l Level) String() string {
	switch l {
	case LevelTrace:
		return "trace"
	case LevelDebug:
		return "debug"
	case LevelInfo:
		return "info"
	case LevelWarning:
		return "warning"
	case LevelError:
		return "error"
	case levelOff:
		return "off"
	default:
		return "unknown"
	}
}

// ParseLevel parses the log-level config value. "off" disables logging
// entirely; anything else unrecognised is InvalidLogLevel.
func ParseLevel(s string) (Level, error) {
	switch strings.ToLower(s) {
	case "trace":
		return LevelTrace, nil
	case "debug":
		return LevelDebug, nil
	case "info":
		return LevelInfo, nil
	case "warning", "warn":
		return LevelWarning, nil
	case "error":
		return LevelError, nil
	case "off":
		return levelOff, nil
	default:
		err := ierrors.Errorf(ierrors.KindValidation, "unrecognised log level %q", s)
		return 0, ierrors.Attr(err, "code", "InvalidLogLevel")
	}
}

// Logger is the process-wide log sink. Zero value is not usable; build one
// with New.
type Logger struct {
	level Level
	std   *log.Logger
	file  *os.File // non-nil when backed by a log-file, closed by Close
}

// New builds a Logger at the given level, writing to file (when non-empty)
// or the terminal otherwise. The terminal sink is stdout, matching the
// "Stdout | File(path)" sink variants the config data model names -- absent
// a log-file, the config section means the named Stdout variant, not
// stderr. A level of "off" produces a Logger that discards everything;
// file is still opened (if set) so a subsequent config reload could raise
// the level, but in the current single-shot process model that never
// happens.
func New(level Level, file string) (*Logger, error) {
	var out io.Writer = os.Stdout
	var f *os.File
	if file != "" {
		var err error
		f, err = os.OpenFile(file, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, ierrors.Wrapf(err, ierrors.KindUnavailable, "failed to open log file %q", file)
		}
		out = f
	}
	if level == levelOff {
		out = io.Discard
	}
	return &Logger{
		level: level,
		std:   log.New(out, "[INTERCEPTOR] ", log.LstdFlags|log.Lmsgprefix),
		file:  f,
	}, nil
}

// Close releases the underlying log file, if any.
func (l *Logger) Close() error {
	if l.file == nil {
		return nil
	}
	return l.file.Close()
}

func (l *Logger) log(lvl Level, format string, args ...any) {
	if lvl < l.level {
		return
	}
	l.std.Printf("["+strings.ToUpper(lvl.String())+"] "+format, args...)
}

func (l *Logger) Trace(format string, args ...any)   { l.log(LevelTrace, format, args...) }
func (l *Logger) Debug(format string, args ...any)   { l.log(LevelDebug, format, args...) }
func (l *Logger) Info(format string, args ...any)    { l.log(LevelInfo, format, args...) }
func (l *Logger) Warning(format string, args ...any) { l.log(LevelWarning, format, args...) }
func (l *Logger) Error(format string, args ...any)   { l.log(LevelError, format, args...) }
