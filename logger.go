package rawgkit

import (
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Logger receives debug output from the client. Key-value pairs alternate in
// keysAndValues: Debug("cache hit", "key", key).
type Logger interface {
	Debug(msg string, keysAndValues ...interface{})
	Info(msg string, keysAndValues ...interface{})
	Warn(msg string, keysAndValues ...interface{})
	Error(msg string, keysAndValues ...interface{})
}

// DebugConfig selects which client concerns emit log lines. Flags are
// per-concern so callers get insight without noise.
type DebugConfig struct {
	Enabled      bool
	LogRequests  bool
	LogCache     bool
	LogRetries   bool
	LogCoalesce  bool
	LogRateLimit bool
	LogPinning   bool
	RequestIDGen func() string
}

// DefaultDebugConfig enables all concerns with UUID request IDs; Enabled
// still gates everything.
func DefaultDebugConfig() *DebugConfig {
	return &DebugConfig{
		Enabled:      false,
		LogRequests:  true,
		LogCache:     true,
		LogRetries:   true,
		LogCoalesce:  true,
		LogRateLimit: true,
		LogPinning:   true,
		RequestIDGen: uuid.NewString,
	}
}

// SimpleLogger writes leveled lines to stderr via the standard log package.
// Intended for examples and tests; production callers should plug in
// NewZerologLogger.
type SimpleLogger struct {
	logger *log.Logger
}

// NewSimpleLogger creates a console logger.
func NewSimpleLogger() *SimpleLogger {
	return &SimpleLogger{
		logger: log.New(os.Stderr, "rawgkit ", log.LstdFlags),
	}
}

func (l *SimpleLogger) Debug(msg string, keysAndValues ...interface{}) {
	l.print("DEBUG", msg, keysAndValues)
}

func (l *SimpleLogger) Info(msg string, keysAndValues ...interface{}) {
	l.print("INFO", msg, keysAndValues)
}

func (l *SimpleLogger) Warn(msg string, keysAndValues ...interface{}) {
	l.print("WARN", msg, keysAndValues)
}

func (l *SimpleLogger) Error(msg string, keysAndValues ...interface{}) {
	l.print("ERROR", msg, keysAndValues)
}

func (l *SimpleLogger) print(level, msg string, keysAndValues []interface{}) {
	var b strings.Builder
	b.WriteString(level)
	b.WriteByte(' ')
	b.WriteString(msg)
	for i := 0; i+1 < len(keysAndValues); i += 2 {
		fmt.Fprintf(&b, " %v=%v", keysAndValues[i], keysAndValues[i+1])
	}
	l.logger.Print(b.String())
}

// ZerologLogger adapts a zerolog.Logger to the Logger interface.
type ZerologLogger struct {
	logger zerolog.Logger
}

// NewZerologLogger wraps an existing zerolog logger.
func NewZerologLogger(logger zerolog.Logger) *ZerologLogger {
	return &ZerologLogger{logger: logger}
}

func (l *ZerologLogger) Debug(msg string, keysAndValues ...interface{}) {
	l.emit(l.logger.Debug(), msg, keysAndValues)
}

func (l *ZerologLogger) Info(msg string, keysAndValues ...interface{}) {
	l.emit(l.logger.Info(), msg, keysAndValues)
}

func (l *ZerologLogger) Warn(msg string, keysAndValues ...interface{}) {
	l.emit(l.logger.Warn(), msg, keysAndValues)
}

func (l *ZerologLogger) Error(msg string, keysAndValues ...interface{}) {
	l.emit(l.logger.Error(), msg, keysAndValues)
}

func (l *ZerologLogger) emit(event *zerolog.Event, msg string, keysAndValues []interface{}) {
	for i := 0; i+1 < len(keysAndValues); i += 2 {
		key := fmt.Sprintf("%v", keysAndValues[i])
		event = event.Interface(key, keysAndValues[i+1])
	}
	event.Msg(msg)
}
