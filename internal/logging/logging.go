// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

// Package logging provides the leveled, component-tagged logger used across
// laddrd. It wraps charmbracelet/log so every package logs the same way
// instead of reaching for the standard library logger.
package logging

import (
	"io"
	"os"
	"sync"

	charmlog "github.com/charmbracelet/log"
)

// Logger is a thin wrapper around a charmbracelet/log logger that carries a
// component tag and can be safely shared across goroutines.
type Logger struct {
	inner *charmlog.Logger
}

var (
	defaultOnce sync.Once
	defaultLog  *Logger
)

// Default returns the process-wide default logger, writing to stderr at info
// level. It is created once and reused.
func Default() *Logger {
	defaultOnce.Do(func() {
		defaultLog = New(os.Stderr)
	})
	return defaultLog
}

// New builds a Logger writing to w with the daemon's standard report style.
func New(w io.Writer) *Logger {
	l := charmlog.NewWithOptions(w, charmlog.Options{
		ReportTimestamp: true,
		ReportCaller:    false,
		Level:           charmlog.InfoLevel,
	})
	return &Logger{inner: l}
}

// WithComponent returns a derived logger tagging every line with component.
func (l *Logger) WithComponent(component string) *Logger {
	return &Logger{inner: l.inner.With("component", component)}
}

// With returns a derived logger with the given key/value pairs attached.
func (l *Logger) With(kv ...any) *Logger {
	return &Logger{inner: l.inner.With(kv...)}
}

// SetLevel adjusts the minimum level this logger emits.
func (l *Logger) SetLevel(level string) {
	lvl, err := charmlog.ParseLevel(level)
	if err != nil {
		return
	}
	l.inner.SetLevel(lvl)
}

func (l *Logger) Debug(msg string, kv ...any) { l.inner.Debug(msg, kv...) }
func (l *Logger) Info(msg string, kv ...any)  { l.inner.Info(msg, kv...) }
func (l *Logger) Warn(msg string, kv ...any)  { l.inner.Warn(msg, kv...) }
func (l *Logger) Error(msg string, kv ...any) { l.inner.Error(msg, kv...) }
