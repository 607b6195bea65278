package log

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"
)

type Level int

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
)

var levelNames = []string{"DEBUG", "INFO", "WARN", "ERROR"}

func (l Level) String() string {
	if l >= 0 && int(l) < len(levelNames) {
		return levelNames[l]
	}
	return fmt.Sprintf("LEVEL(%d)", int(l))
}

// ParseLevel maps a config string ("debug", "info", ...) to a Level.
func ParseLevel(s string) (Level, error) {
	for i, name := range levelNames {
		if strings.EqualFold(s, name) {
			return Level(i), nil
		}
	}
	if strings.EqualFold(s, "warning") {
		return LevelWarn, nil
	}
	return LevelInfo, fmt.Errorf("unknown log level %q", s)
}

type Logger struct {
	mu     sync.Mutex
	level  Level
	output io.Writer
}

var defaultLogger *Logger

func init() {
	defaultLogger = &Logger{
		level:  LevelInfo,
		output: os.Stderr,
	}
}

func SetLevel(level Level) {
	defaultLogger.mu.Lock()
	defer defaultLogger.mu.Unlock()
	defaultLogger.level = level
}

func GetLevel() Level {
	defaultLogger.mu.Lock()
	defer defaultLogger.mu.Unlock()
	return defaultLogger.level
}

// SetOutput redirects the default logger; tests use it to capture lines.
func SetOutput(w io.Writer) {
	defaultLogger.mu.Lock()
	defer defaultLogger.mu.Unlock()
	defaultLogger.output = w
}

func Debug(format string, args ...interface{}) {
	defaultLogger.log(LevelDebug, "", format, args...)
}

func Info(format string, args ...interface{}) {
	defaultLogger.log(LevelInfo, "", format, args...)
}

func Warn(format string, args ...interface{}) {
	defaultLogger.log(LevelWarn, "", format, args...)
}

func Error(format string, args ...interface{}) {
	defaultLogger.log(LevelError, "", format, args...)
}

// Entry is a logger bound to a component and a correlation id, so that
// every line of one statement's compilation can be grepped together.
type Entry struct {
	prefix string
}

// With returns an Entry tagging each line with "component id=<id>".
func With(component, id string) *Entry {
	if id == "" {
		return &Entry{prefix: component + ": "}
	}
	return &Entry{prefix: component + " id=" + id + ": "}
}

func (e *Entry) Debug(format string, args ...interface{}) {
	defaultLogger.log(LevelDebug, e.prefix, format, args...)
}

func (e *Entry) Info(format string, args ...interface{}) {
	defaultLogger.log(LevelInfo, e.prefix, format, args...)
}

func (e *Entry) Warn(format string, args ...interface{}) {
	defaultLogger.log(LevelWarn, e.prefix, format, args...)
}

func (e *Entry) Error(format string, args ...interface{}) {
	defaultLogger.log(LevelError, e.prefix, format, args...)
}

func (l *Logger) log(lvl Level, prefix, format string, args ...interface{}) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if lvl < l.level {
		return
	}

	msg := fmt.Sprintf(format, args...)
	timestamp := time.Now().Format("2006-01-02 15:04:05.000")
	fmt.Fprintf(l.output, "[%s] [%s] %s%s\n", timestamp, levelNames[lvl], prefix, msg)
}
