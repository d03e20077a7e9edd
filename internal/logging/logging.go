// Package logging configures the process-wide logrus logger.
//
// Packages keep their own component entry, e.g.
//
//	var logger = log.WithField("component", "store")
//
// and Setup only has to run once, early in the command that needs logging.
package logging

import (
	"fmt"
	"io"
	"os"
	"strings"

	log "github.com/sirupsen/logrus"
)

// Options controls logger setup.
type Options struct {
	Level string // error, warn, info, debug or trace
	File  string // optional log file, appended to
	JSON  bool   // JSON lines instead of text
}

// Setup applies opts to the standard logrus logger. When opts.Level is empty
// the LOG_LEVEL environment variable is consulted, falling back to info. The
// returned closer releases the log file, if one was opened.
func Setup(opts Options) (io.Closer, error) {
	level := opts.Level
	if level == "" {
		level = os.Getenv("LOG_LEVEL")
	}
	if level == "" {
		level = "info"
	}
	lvl, err := log.ParseLevel(strings.ToLower(level))
	if err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", level, err)
	}
	log.SetLevel(lvl)

	if opts.JSON {
		log.SetFormatter(&log.JSONFormatter{})
	} else {
		log.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	}

	if opts.File == "" {
		log.SetOutput(os.Stderr)
		return io.NopCloser(nil), nil
	}
	f, err := os.OpenFile(opts.File, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("failed to open log file %s: %w", opts.File, err)
	}
	log.SetOutput(f)
	return f, nil
}
