// Package log holds the process-wide logrus logger.
package log

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/sirupsen/logrus"
)

var log = logrus.New()

func init() {
	log.Out = os.Stderr
	log.Formatter = &logrus.TextFormatter{FullTimestamp: true}
	log.Level = levelFromEnv(os.Getenv("ROLEBOOK_LOGLEVEL"))
}

func levelFromEnv(v string) logrus.Level {
	switch strings.ToLower(v) {
	case "error":
		return logrus.ErrorLevel
	case "warn":
		return logrus.WarnLevel
	case "debug":
		return logrus.DebugLevel
	default:
		return logrus.InfoLevel
	}
}

// Get returns the shared logger.
func Get() *logrus.Logger {
	return log
}

// Configure sets the level and output format. An empty level keeps the
// current one; format is "text" (default) or "json".
func Configure(level, format string) error {
	if level != "" {
		lvl, err := logrus.ParseLevel(level)
		if err != nil {
			return fmt.Errorf("log level: %w", err)
		}
		log.SetLevel(lvl)
	}
	switch strings.ToLower(format) {
	case "", "text":
		log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	case "json":
		log.SetFormatter(&logrus.JSONFormatter{})
	default:
		return fmt.Errorf("log format: unknown %q", format)
	}
	return nil
}

// SetOutput redirects the shared logger, typically to io.Discard in tests.
func SetOutput(w io.Writer) {
	log.SetOutput(w)
}
