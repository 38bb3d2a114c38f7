package logger

import (
	"io"
	"os"
	"strings"

	"github.com/sirupsen/logrus"
)

// New creates a JSON logrus logger tagged with the service name.
// An empty level falls back to LOG_LEVEL, then info.
func New(service, level string) *logrus.Entry {
	return newWithOutput(service, level, os.Stdout)
}

func newWithOutput(service, level string, out io.Writer) *logrus.Entry {
	log := logrus.New()
	log.SetFormatter(&logrus.JSONFormatter{
		FieldMap: logrus.FieldMap{
			logrus.FieldKeyTime:  "timestamp",
			logrus.FieldKeyLevel: "level",
			logrus.FieldKeyMsg:   "message",
		},
	})
	log.SetOutput(out)

	if level == "" {
		level = os.Getenv("LOG_LEVEL")
	}
	log.SetLevel(parseLevel(level))

	return log.WithField("service", service)
}

func parseLevel(raw string) logrus.Level {
	switch strings.ToLower(raw) {
	case "debug":
		return logrus.DebugLevel
	case "warn":
		return logrus.WarnLevel
	case "error":
		return logrus.ErrorLevel
	default:
		return logrus.InfoLevel
	}
}

// Discard returns a logger that drops everything; handy in tests.
func Discard() *logrus.Entry {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return logrus.NewEntry(log)
}
