// Package logging provides structured logging using bolt.
//
// Call sites build events through the package-level level functions and
// attach typed fields:
//
//	logging.Info().
//		Add(logging.Toolchanger(name)).
//		Add(logging.ToolName("T1")).
//		Msg("tool selected")
package logging

import (
	"io"
	"os"
	"strings"
	"sync"

	"github.com/felixgeelhaar/bolt/v3"
)

var (
	mu      sync.RWMutex
	current *bolt.Logger
)

var levels = map[string]bolt.Level{
	"trace": bolt.TRACE,
	"debug": bolt.DEBUG,
	"info":  bolt.INFO,
	"warn":  bolt.WARN,
	"error": bolt.ERROR,
}

// Config configures the process logger.
type Config struct {
	// Level is one of trace, debug, info, warn or error.
	Level string

	// Format is "json" or "console".
	Format string

	// Output defaults to stderr; stdout carries command responses.
	Output io.Writer
}

// DefaultConfig logs info and above to stderr in console format.
func DefaultConfig() Config {
	return Config{Level: "info", Format: "console", Output: os.Stderr}
}

// ProductionConfig logs info and above to stderr as JSON.
func ProductionConfig() Config {
	return Config{Level: "info", Format: "json", Output: os.Stderr}
}

func parseLevel(s string) bolt.Level {
	if l, ok := levels[strings.ToLower(s)]; ok {
		return l
	}
	return bolt.INFO
}

func newLogger(config Config) *bolt.Logger {
	out := config.Output
	if out == nil {
		out = os.Stderr
	}

	var handler bolt.Handler = bolt.NewConsoleHandler(out)
	if config.Format == "json" {
		handler = bolt.NewJSONHandler(out)
	}
	return bolt.New(handler).SetLevel(parseLevel(config.Level))
}

// Init replaces the process logger. Each CLI command calls it with the
// logging section of its machine file.
func Init(config Config) {
	l := newLogger(config)
	mu.Lock()
	current = l
	mu.Unlock()
}

// Get returns the process logger, creating a default one on first use.
func Get() *bolt.Logger {
	mu.RLock()
	l := current
	mu.RUnlock()
	if l != nil {
		return l
	}

	mu.Lock()
	defer mu.Unlock()
	if current == nil {
		current = newLogger(DefaultConfig())
	}
	return current
}

// SetLevel changes the level of the process logger.
func SetLevel(level string) {
	Get().SetLevel(parseLevel(level))
}

// LogEvent collects fields for one record.
type LogEvent struct {
	event *bolt.Event
}

// NewEvent wraps a bolt.Event.
func NewEvent(e *bolt.Event) *LogEvent {
	return &LogEvent{event: e}
}

// Add applies f and returns the event for chaining.
func (l *LogEvent) Add(f Field) *LogEvent {
	l.event = f(l.event)
	return l
}

// Msg writes the record with a message.
func (l *LogEvent) Msg(msg string) {
	l.event.Msg(msg)
}

// Send writes the record without a message.
func (l *LogEvent) Send() {
	l.event.Send()
}

func Trace() *LogEvent { return NewEvent(Get().Trace()) }
func Debug() *LogEvent { return NewEvent(Get().Debug()) }
func Info() *LogEvent  { return NewEvent(Get().Info()) }
func Warn() *LogEvent  { return NewEvent(Get().Warn()) }
func Error() *LogEvent { return NewEvent(Get().Error()) }
func Fatal() *LogEvent { return NewEvent(Get().Fatal()) }
