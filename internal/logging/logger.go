package logging

import (
	"fmt"
	"log"
	"os"
	"strings"
	"sync"

	"golang.org/x/term"
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

const colorReset = "\033[0m"

var levelColors = map[LogLevel]string{
	LevelDebug: "\033[1;96m",
	LevelInfo:  "\033[1;94m",
	LevelWarn:  "\033[1;93m",
	LevelError: "\033[1;91m",
}

var (
	mu           sync.RWMutex
	currentLevel LogLevel
	useColor     bool
	levelOnce    sync.Once
)

// initLevel reads the level from the environment once.
func initLevel() {
	levelOnce.Do(func() {
		useColor = colorEnabled()

		if debug := os.Getenv("DEBUG"); debug != "" {
			switch strings.ToLower(debug) {
			case "1", "true", "yes", "on":
				currentLevel = LevelDebug
				return
			}
		}

		lvl, err := ParseLevel(os.Getenv("LOG_LEVEL"))
		if err != nil {
			lvl = LevelInfo
		}
		currentLevel = lvl
	})
}

func colorEnabled() bool {
	if os.Getenv("NO_COLOR") != "" || strings.ToLower(os.Getenv("TERM")) == "dumb" {
		return false
	}
	return term.IsTerminal(int(os.Stdout.Fd()))
}

// ParseLevel converts a level name into a LogLevel. Empty means info.
func ParseLevel(s string) (LogLevel, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return LevelDebug, nil
	case "", "info":
		return LevelInfo, nil
	case "warn", "warning":
		return LevelWarn, nil
	case "error":
		return LevelError, nil
	default:
		return LevelInfo, fmt.Errorf("unknown log level %q", s)
	}
}

// SetLevel overrides the level taken from the environment.
func SetLevel(l LogLevel) {
	initLevel()
	mu.Lock()
	currentLevel = l
	mu.Unlock()
}

// SetColor forces colored level tags on or off.
func SetColor(on bool) {
	initLevel()
	mu.Lock()
	useColor = on
	mu.Unlock()
}

// GetLevel returns the current log level
func GetLevel() LogLevel {
	initLevel()
	mu.RLock()
	defer mu.RUnlock()
	return currentLevel
}

// IsDebugEnabled returns true if debug logging is enabled
func IsDebugEnabled() bool {
	return GetLevel() <= LevelDebug
}

func tag(l LogLevel) string {
	mu.RLock()
	color := useColor
	mu.RUnlock()
	name := "[" + strings.ToUpper(l.String()) + "] "
	if color {
		return levelColors[l] + strings.TrimSpace(name) + colorReset + " "
	}
	return name
}

func logf(l LogLevel, format string, args ...interface{}) {
	if GetLevel() > l {
		return
	}
	log.Printf(tag(l)+format, args...)
}

// Debug logs a debug message (only if DEBUG=true or LOG_LEVEL=debug)
func Debug(format string, args ...interface{}) {
	logf(LevelDebug, format, args...)
}

// Info logs an info message
func Info(format string, args ...interface{}) {
	logf(LevelInfo, format, args...)
}

// Warn logs a warning message
func Warn(format string, args ...interface{}) {
	logf(LevelWarn, format, args...)
}

// Error logs an error message
func Error(format string, args ...interface{}) {
	logf(LevelError, format, args...)
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
