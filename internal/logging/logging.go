package logging

import (
	"fmt"
	"io"
	"log"
	"os"
	"strings"
	"sync"
	"sync/atomic"
)

// LogLevel represents the severity of a log message
type LogLevel int

const (
	// LevelDebug is the debug log level
	LevelDebug LogLevel = iota
	// LevelInfo is the info log level
	LevelInfo
	// LevelWarn is the warning log level
	LevelWarn
	// LevelError is the error log level
	LevelError
)

var (
	currentLevel atomic.Int32
	levelOnce    sync.Once
)

// initLevel initializes the log level from environment variables
func initLevel() {
	levelOnce.Do(func() {
		// DEBUG wins over LOG_LEVEL
		if debug := os.Getenv("DEBUG"); debug != "" {
			switch strings.ToLower(debug) {
			case "1", "true", "yes", "on":
				currentLevel.Store(int32(LevelDebug))
				return
			}
		}
		currentLevel.Store(int32(ParseLevel(os.Getenv("LOG_LEVEL"))))
	})
}

// ParseLevel converts a level name to a LogLevel. Unknown names map to info.
func ParseLevel(s string) LogLevel {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return LevelDebug
	case "info":
		return LevelInfo
	case "warn", "warning":
		return LevelWarn
	case "error":
		return LevelError
	default:
		return LevelInfo
	}
}

// GetLevel returns the current log level
func GetLevel() LogLevel {
	initLevel()
	return LogLevel(currentLevel.Load())
}

// SetLevel overrides the level read from the environment.
func SetLevel(level LogLevel) {
	initLevel()
	currentLevel.Store(int32(level))
}

// IsDebugEnabled returns true if debug logging is enabled
func IsDebugEnabled() bool {
	return GetLevel() <= LevelDebug
}

// Logger is a leveled logger bound to a component. Components receive one at
// construction instead of writing to a sink of their own. A nil *Logger logs
// through the standard logger without a component tag.
type Logger struct {
	component string
	fields    string
	out       *log.Logger
}

// New returns a Logger that tags every line with the component name.
func New(component string) *Logger {
	return &Logger{component: component}
}

// NewWithWriter returns a Logger writing to w, used by tests to capture output.
func NewWithWriter(component string, w io.Writer) *Logger {
	return &Logger{component: component, out: log.New(w, "", 0)}
}

// With returns a copy of the logger carrying an extra key=value field.
func (l *Logger) With(key string, value interface{}) *Logger {
	child := &Logger{}
	if l != nil {
		*child = *l
	}
	child.fields += fmt.Sprintf(" %s=%v", key, value)
	return child
}

// Component returns the component name the logger was created with.
func (l *Logger) Component() string {
	if l == nil {
		return ""
	}
	return l.component
}

func (l *Logger) printf(level LogLevel, tag, format string, args ...interface{}) {
	if GetLevel() > level {
		return
	}
	prefix := "[" + tag + "] "
	if l != nil && l.component != "" {
		prefix += "[" + l.component + "] "
	}
	msg := fmt.Sprintf(format, args...)
	if l != nil {
		msg += l.fields
	}
	if l != nil && l.out != nil {
		l.out.Print(prefix + msg)
		return
	}
	log.Print(prefix + msg)
}

// Debug logs a debug message
func (l *Logger) Debug(format string, args ...interface{}) {
	l.printf(LevelDebug, "DEBUG", format, args...)
}

// Info logs an info message
func (l *Logger) Info(format string, args ...interface{}) {
	l.printf(LevelInfo, "INFO", format, args...)
}

// Warn logs a warning message
func (l *Logger) Warn(format string, args ...interface{}) {
	l.printf(LevelWarn, "WARN", format, args...)
}

// Error logs an error message
func (l *Logger) Error(format string, args ...interface{}) {
	l.printf(LevelError, "ERROR", format, args...)
}

var std *Logger

// Debug logs a debug message (only if DEBUG=true or LOG_LEVEL=debug)
func Debug(format string, args ...interface{}) {
	std.Debug(format, args...)
}

// Info logs an info message
func Info(format string, args ...interface{}) {
	std.Info(format, args...)
}

// Warn logs a warning message
func Warn(format string, args ...interface{}) {
	std.Warn(format, args...)
}

// Error logs an error message
func Error(format string, args ...interface{}) {
	std.Error(format, args...)
}

// Fatal logs an error message and exits
func Fatal(format string, args ...interface{}) {
	log.Fatalf("[FATAL] "+format, args...)
}

// String returns the string representation of a log level
func (l LogLevel) String() string {
	switch l {
	case LevelDebug:
		return "debug"
	case LevelInfo:
		return "info"
	case LevelWarn:
		return "warn"
	case LevelError:
		return "error"
	default:
		return fmt.Sprintf("unknown(%d)", l)
	}
}
