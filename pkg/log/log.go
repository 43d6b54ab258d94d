// Package log wraps zerolog behind the handful of calls the rest of
// the tool needs, so packages do not depend on a logging library
// directly.
package log

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/natefinch/lumberjack"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
)

const (
	DefaultMaxSizeMB  = 10
	DefaultMaxBackups = 5
)

// Config controls where log lines go. The zero value logs to stderr in
// console format at info level.
type Config struct {
	// Path, when set, appends JSON lines to a rotated file instead of
	// stderr.
	Path       string
	MaxSizeMB  int
	MaxBackups int

	// Debug lowers the level so per-run diagnostics are emitted.
	Debug bool
}

type Logger struct {
	zl zerolog.Logger
}

func New(cfg Config) Logger {
	var out io.Writer = zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen}
	if cfg.Path != "" {
		maxSize := cfg.MaxSizeMB
		if maxSize <= 0 {
			maxSize = DefaultMaxSizeMB
		}
		maxBackups := cfg.MaxBackups
		if maxBackups <= 0 {
			maxBackups = DefaultMaxBackups
		}
		out = &lumberjack.Logger{
			Filename:   cfg.Path,
			MaxSize:    maxSize,
			MaxBackups: maxBackups,
		}
	}
	level := zerolog.InfoLevel
	if cfg.Debug {
		level = zerolog.DebugLevel
	}
	return Logger{zl: zerolog.New(out).Level(level).With().Timestamp().Logger()}
}

// Nop returns a logger that drops everything. Useful in tests.
func Nop() Logger {
	return Logger{zl: zerolog.Nop()}
}

func (l Logger) WithFields(fields map[string]interface{}) Logger {
	return Logger{zl: l.zl.With().Fields(fields).Logger()}
}

func (l Logger) Logf(format string, v ...interface{}) {
	l.zl.Info().Msgf(format, v...)
}

func (l Logger) Debugf(format string, v ...interface{}) {
	l.zl.Debug().Msgf(format, v...)
}

// Error logs err under msg. When the error carries a pkg/errors stack
// trace, the frames are attached as a field.
func (l Logger) Error(err error, msg string) {
	if err == nil {
		return
	}
	type stackTracer interface {
		StackTrace() errors.StackTrace
	}
	var tracer stackTracer
	if errors.As(err, &tracer) {
		frames := make([]string, 0, len(tracer.StackTrace()))
		for _, f := range tracer.StackTrace() {
			frames = append(frames, fmt.Sprintf("%+v", f))
		}
		l.zl.Error().Err(err).Strs("stacktrace", frames).Msg(msg)
		return
	}
	l.zl.Error().Err(err).Msg(msg)
}
