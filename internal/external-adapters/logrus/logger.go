// Package logrus adapts sirupsen/logrus to the domain Logger interface.
package logrus

import (
	"fmt"
	"io"

	"github.com/sirupsen/logrus"

	"github.com/ochairo/specimen/internal/domain/interfaces"
)

// Logger implements interfaces.Logger on top of a logrus logger
type Logger struct {
	log *logrus.Logger
}

// NewLogger creates a logger writing to w. format is "text" or "json".
func NewLogger(w io.Writer, level, format string) (*Logger, error) {
	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", level, err)
	}

	l := logrus.New()
	l.SetOutput(w)
	l.SetLevel(lvl)
	switch format {
	case "", "text":
		l.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	case "json":
		l.SetFormatter(&logrus.JSONFormatter{})
	default:
		return nil, fmt.Errorf("invalid log format %q (want text or json)", format)
	}
	return &Logger{log: l}, nil
}

// Debug logs debug-level messages
func (l *Logger) Debug(msg string, fields ...interfaces.Field) {
	l.log.WithFields(toFields(fields)).Debug(msg)
}

// Info logs informational messages
func (l *Logger) Info(msg string, fields ...interfaces.Field) {
	l.log.WithFields(toFields(fields)).Info(msg)
}

// Warn logs warning messages
func (l *Logger) Warn(msg string, fields ...interfaces.Field) {
	l.log.WithFields(toFields(fields)).Warn(msg)
}

func (l *Logger) Error(msg string, fields ...interfaces.Field) {
	l.log.WithFields(toFields(fields)).Error(msg)
}

func toFields(fields []interfaces.Field) logrus.Fields {
	out := make(logrus.Fields, len(fields))
	for _, f := range fields {
		out[f.Key] = f.Value
	}
	return out
}
