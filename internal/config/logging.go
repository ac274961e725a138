package config

import (
	"io"
	"log"

	"gopkg.in/natefinch/lumberjack.v2"
)

// Logging hands out component loggers that share one output: the console
// and, when a log file is configured, a size-rotated file.
type Logging struct {
	out    io.Writer
	rotate *lumberjack.Logger
}

// NewLogging builds the log output. Console output goes to console unless
// quiet is set.
func NewLogging(c LogConfig, console io.Writer, quiet bool) *Logging {
	l := &Logging{}

	var writers []io.Writer
	if !quiet && console != nil {
		writers = append(writers, console)
	}
	if c.File != "" {
		l.rotate = &lumberjack.Logger{
			Filename:   c.File,
			MaxSize:    c.MaxSize, // megabytes
			MaxBackups: c.MaxBackups,
			MaxAge:     c.MaxAge, // days
		}
		writers = append(writers, l.rotate)
	}

	switch len(writers) {
	case 0:
		l.out = io.Discard
	case 1:
		l.out = writers[0]
	default:
		l.out = io.MultiWriter(writers...)
	}
	return l
}

// Logger returns a logger prefixed with the component name, e.g. "[sync] ".
func (l *Logging) Logger(component string) *log.Logger {
	return log.New(l.out, "["+component+"] ", log.LstdFlags)
}

// Close closes the log file, if any.
func (l *Logging) Close() error {
	if l.rotate == nil {
		return nil
	}
	return l.rotate.Close()
}
