// Package logging is LogCrafter's diagnostics log-sink, ported from the
// teacher's internal/logger package. spec.md explicitly scopes "logging
// of the server's own diagnostics" out of the core (§1 non-goals); this
// package is the ambient sink that internal/server writes its startup
// events through (replay finished, listeners up), and that the
// persistence writer and ingest sessions use to report failures
// (write/flush/rotate/prune errors, buffer push errors). The accept
// loops and the worker pool do not log. Per the design notes in §9, the
// original's Logger/ConsoleLogger inheritance collapses here into a
// single interface backed by logrus -- polymorphism here is incidental,
// not load-bearing.
package logging

import (
	"github.com/sirupsen/logrus"
)

// Logger is the single log-sink surface every component depends on.
type Logger interface {
	Info(msg string)
	Warn(msg string)
	Error(msg string, err error)
	WithField(key string, value interface{}) Logger
	WithFields(fields map[string]interface{}) Logger
}

type logrusLogger struct {
	entry *logrus.Entry
}

// New builds a Logger backed by logrus at the given level ("debug",
// "info", "warn", "error"). An unrecognized level falls back to "info".
func New(level string) Logger {
	base := logrus.New()
	parsed, err := logrus.ParseLevel(level)
	if err != nil {
		parsed = logrus.InfoLevel
	}
	base.SetLevel(parsed)
	return &logrusLogger{entry: logrus.NewEntry(base)}
}

// Noop returns a Logger that discards everything, used by tests.
func Noop() Logger {
	base := logrus.New()
	base.SetOutput(discard{})
	return &logrusLogger{entry: logrus.NewEntry(base)}
}

type discard struct{}

func (discard) Write(p []byte) (int, error) { return len(p), nil }

func (l *logrusLogger) Info(msg string)  { l.entry.Info(msg) }
func (l *logrusLogger) Warn(msg string)  { l.entry.Warn(msg) }
func (l *logrusLogger) Error(msg string, err error) {
	if err != nil {
		l.entry.WithError(err).Error(msg)
		return
	}
	l.entry.Error(msg)
}

func (l *logrusLogger) WithField(key string, value interface{}) Logger {
	return &logrusLogger{entry: l.entry.WithField(key, value)}
}

func (l *logrusLogger) WithFields(fields map[string]interface{}) Logger {
	return &logrusLogger{entry: l.entry.WithFields(fields)}
}
