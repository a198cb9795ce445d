// Package logger builds the process-wide logrus logger and adapts it for asynq.
package logger

import (
	"io"
	"os"
	"strings"

	"github.com/hibiken/asynq"
	"github.com/sirupsen/logrus"
)

// New returns a logger writing to stdout. format is "json" or "text".
func New(level, format string) *logrus.Logger {
	log := logrus.New()
	log.SetOutput(os.Stdout)

	if strings.EqualFold(format, "json") {
		log.SetFormatter(&logrus.JSONFormatter{})
	} else {
		log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}

	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		lvl = logrus.InfoLevel
	}
	log.SetLevel(lvl)

	return log
}

// AsynqLevel maps a logrus level name to the asynq server log level.
func AsynqLevel(level string) asynq.LogLevel {
	switch strings.ToLower(level) {
	case "debug", "trace":
		return asynq.DebugLevel
	case "warn", "warning":
		return asynq.WarnLevel
	case "error":
		return asynq.ErrorLevel
	case "fatal", "panic":
		return asynq.FatalLevel
	default:
		return asynq.InfoLevel
	}
}

// AsynqLogger routes asynq's internal logs through logrus.
type AsynqLogger struct {
	entry *logrus.Entry
}

// NewAsynqLogger tags every asynq line with component=asynq.
func NewAsynqLogger(log logrus.FieldLogger) *AsynqLogger {
	return &AsynqLogger{entry: log.WithField("component", "asynq")}
}

func (l *AsynqLogger) Debug(args ...interface{}) { l.entry.Debug(args...) }
func (l *AsynqLogger) Info(args ...interface{})  { l.entry.Info(args...) }
func (l *AsynqLogger) Warn(args ...interface{})  { l.entry.Warn(args...) }
func (l *AsynqLogger) Error(args ...interface{}) { l.entry.Error(args...) }
func (l *AsynqLogger) Fatal(args ...interface{}) { l.entry.Fatal(args...) }

// Discard returns a logger that drops everything, for tests.
func Discard() *logrus.Logger {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return log
}
