package logging

import (
	"io"
	"os"
	"strings"

	"github.com/sirupsen/logrus"
)

var logger = newLogger(os.Stdout, "info", "json")

// Logger returns the process-wide logger.
func Logger() *logrus.Logger {
	return logger
}

// Configure replaces the process-wide logger. Unknown levels fall back to info.
func Configure(level string, format string) *logrus.Logger {
	logger = newLogger(os.Stdout, level, format)
	return logger
}

func newLogger(out io.Writer, level string, format string) *logrus.Logger {
	l := logrus.New()
	l.SetOutput(out)
	if strings.EqualFold(format, "text") {
		l.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	} else {
		l.SetFormatter(&logrus.JSONFormatter{})
	}
	parsed, err := logrus.ParseLevel(strings.TrimSpace(level))
	if err != nil {
		parsed = logrus.InfoLevel
	}
	l.SetLevel(parsed)
	return l
}

// LogError records err with the module and function it came from.
func LogError(module string, funcName string, context string, data any, err error) {
	fields := logrus.Fields{
		"module":   module,
		"funcName": funcName,
		"context":  context,
	}
	if data != nil {
		fields["data"] = data
	}
	logger.WithFields(fields).Error(err.Error())
}

// Warn logs a non-fatal failure that the caller recovered from.
func Warn(module string, msg string, fields logrus.Fields) {
	entry := logger.WithField("module", module)
	if len(fields) > 0 {
		entry = entry.WithFields(fields)
	}
	entry.Warn(msg)
}
