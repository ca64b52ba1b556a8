// Package logger wraps zerolog with component-scoped child loggers.
package logger

import (
	"context"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Logger embeds zerolog.Logger so call sites keep the zerolog API.
type Logger struct {
	zerolog.Logger
}

// Component is implemented by types that want their log lines tagged.
type Component interface {
	// LoggerComponent returns the component name for child loggers
	LoggerComponent() string
}

// New configures the global log level and output format and returns the
// root logger. Pretty output goes to stderr for console use; the default
// is structured JSON.
func New(verbose, pretty bool) Logger {
	level := zerolog.InfoLevel
	if verbose {
		level = zerolog.DebugLevel
	}
	zerolog.SetGlobalLevel(level)
	if pretty {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
	}
	return Logger{log.Logger}
}

// Global returns the current global logger.
func Global() *Logger {
	return &Logger{log.Logger}
}

// Ctx wraps the request-scoped logger stored in ctx (hlog puts it there).
func Ctx(ctx context.Context) Logger {
	return Logger{Logger: *zerolog.Ctx(ctx)}
}

// Get returns the context logger scoped to component c.
func Get(ctx context.Context, c interface{}) Logger {
	return Ctx(ctx).Component(c)
}

// Component returns a child logger tagged with c's component name. c may
// implement Component or be a plain string; anything else leaves the
// logger untagged.
func (l Logger) Component(c interface{}) Logger {
	switch v := c.(type) {
	case Component:
		return l.WithComponent(v.LoggerComponent())
	case string:
		return l.WithComponent(v)
	}
	return l
}

// WithComponent returns a child logger tagged with the given name.
func (l Logger) WithComponent(name string) Logger {
	return Logger{Logger: l.With().Str("component", name).Logger()}
}
