package utils

import (
	"os"

	"github.com/sirupsen/logrus"
)

// Logger is the application logger, a thin wrapper around logrus.
type Logger struct {
	log *logrus.Logger
}

// NewLogger creates a new logger
func NewLogger() *Logger {
	l := logrus.New()
	l.SetOutput(os.Stdout)
	l.SetFormatter(&logrus.TextFormatter{
		FullTimestamp: true,
	})
	return &Logger{log: l}
}

// Info logs an informational message
func (l *Logger) Info(format string, v ...interface{}) {
	l.log.Infof(format, v...)
}

// Warn logs a warning message
func (l *Logger) Warn(format string, v ...interface{}) {
	l.log.Warnf(format, v...)
}

// Error logs an error message
func (l *Logger) Error(format string, v ...interface{}) {
	l.log.Errorf(format, v...)
}

// WithField returns a logger entry carrying a structured field
func (l *Logger) WithField(key string, value interface{}) *logrus.Entry {
	return l.log.WithField(key, value)
}
