package logger

import (
	"io"
	"strings"

	"github.com/sirupsen/logrus"
)

// New builds the process logger. JSON output is used unless format is "text";
// an unknown level falls back to info.
func New(output io.Writer, level string, format string) *logrus.Logger {
	l := logrus.New()
	l.SetOutput(output)
	l.SetFormatter(new(logrus.JSONFormatter))
	l.SetLevel(logrus.InfoLevel)

	if strings.EqualFold(strings.TrimSpace(format), "text") {
		l.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}
	if parsed, err := logrus.ParseLevel(strings.TrimSpace(level)); err == nil {
		l.SetLevel(parsed)
	}

	return l
}

// Discard is a logger for tests and tools that should stay quiet.
func Discard() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}
