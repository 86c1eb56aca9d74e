// Package logging provides the leveled logger shared by the framework.
package logging

import (
	"io"
	"log"
	"os"
	"strings"

	"github.com/pkg/errors"
)

// Level gates log output severity.
type Level int

const (
	Debug Level = iota
	Info
	Warning
	Error
)

func (l Level) String() string {
	switch l {
	case Debug:
		return "DEBUG"
	case Info:
		return "INFO"
	case Warning:
		return "WARNING"
	case Error:
		return "ERROR"
	default:
		return "Unknown"
	}
}

// ParseLevel converts a level name to a Level, ignoring case. Unknown
// names are a configuration error.
func ParseLevel(s string) (Level, error) {
	switch strings.ToUpper(s) {
	case "DEBUG":
		return Debug, nil
	case "INFO":
		return Info, nil
	case "WARNING":
		return Warning, nil
	case "ERROR":
		return Error, nil
	default:
		return 0, errors.Errorf("unknown logging level %q", s)
	}
}

// Logger writes leveled messages through the standard library logger.
type Logger struct {
	min Level
	out *log.Logger
}

// New creates a logger that drops messages below min.
func New(min Level, w io.Writer) *Logger {
	if w == nil {
		w = os.Stderr
	}
	return &Logger{min: min, out: log.New(w, "", log.LstdFlags)}
}

// Default returns an INFO-level logger on stderr.
func Default() *Logger {
	return New(Info, os.Stderr)
}

func (l *Logger) logf(level Level, format string, args ...interface{}) {
	if l == nil || level < l.min {
		return
	}
	l.out.Printf(level.String()+": "+format, args...)
}

func (l *Logger) Debugf(format string, args ...interface{})   { l.logf(Debug, format, args...) }
func (l *Logger) Infof(format string, args ...interface{})    { l.logf(Info, format, args...) }
func (l *Logger) Warningf(format string, args ...interface{}) { l.logf(Warning, format, args...) }
func (l *Logger) Errorf(format string, args ...interface{})   { l.logf(Error, format, args...) }
