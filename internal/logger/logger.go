package logger

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
)

type Logger struct {
	level string
	zl    zerolog.Logger
}

func New(level string) *Logger {
	return NewWithWriter(os.Stderr, level)
}

// NewWithWriter is New with an explicit sink; tests pass io.Discard or a buffer.
func NewWithWriter(w io.Writer, level string) *Logger {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil || level == "" {
		lvl = zerolog.InfoLevel
	}
	zl := zerolog.New(w).Level(lvl).With().Timestamp().Logger()
	return &Logger{
		level: lvl.String(),
		zl:    zl,
	}
}

// Nop returns a logger that drops everything.
func Nop() *Logger {
	return &Logger{level: zerolog.Disabled.String(), zl: zerolog.Nop()}
}

// With returns a child logger that stamps key=value on every line.
func (l *Logger) With(key string, value interface{}) *Logger {
	return &Logger{
		level: l.level,
		zl:    l.zl.With().Interface(key, value).Logger(),
	}
}

func (l *Logger) Level() string {
	return l.level
}

func (l *Logger) Info(msg string, args ...interface{}) {
	l.zl.Info().Msg(format(msg, args))
}

func (l *Logger) Debug(msg string, args ...interface{}) {
	l.zl.Debug().Msg(format(msg, args))
}

func (l *Logger) Warn(msg string, args ...interface{}) {
	l.zl.Warn().Msg(format(msg, args))
}

func (l *Logger) Error(msg string, args ...interface{}) {
	l.zl.Error().Msg(format(msg, args))
}

func (l *Logger) Fatal(msg string, args ...interface{}) {
	l.zl.WithLevel(zerolog.FatalLevel).Msg(format(msg, args))
	os.Exit(1)
}

// Duration logs how long an operation took at debug level.
func (l *Logger) Duration(op string, start time.Time) {
	l.zl.Debug().Str("op", op).Dur("took", time.Since(start)).Msg("done")
}

func format(msg string, args []interface{}) string {
	if len(args) == 0 {
		return msg
	}
	return fmt.Sprintf(msg, args...)
}
