// Package logger provides levelled key/value logging for the ingestor.
// Each line carries a timestamp, a level tag, a message and optional
// key=value pairs so stage boundaries are easy to grep:
//
//	2026-01-02 15:04:05 [INFO] Download completed size_mb=12.5
package logger

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"
)

// Level is a logging severity.
type Level int

// Available levels, lowest first.
const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
)

var levelTags = map[Level]string{
	LevelDebug: "DEBUG",
	LevelInfo:  "INFO",
	LevelWarn:  "WARN",
	LevelError: "ERROR",
}

// String returns the level tag.
func (l Level) String() string {
	if tag, ok := levelTags[l]; ok {
		return tag
	}
	return "UNKNOWN"
}

var (
	mu     sync.Mutex
	level            = LevelInfo
	output io.Writer = os.Stderr
	now              = time.Now
)

// ParseLevel maps a level name to a Level.
// CRITICAL and FATAL map to error; NOTSET and unknown names log everything.
func ParseLevel(name string) Level {
	switch strings.ToUpper(strings.TrimSpace(name)) {
	case "CRITICAL", "FATAL", "ERROR":
		return LevelError
	case "WARN", "WARNING":
		return LevelWarn
	case "INFO":
		return LevelInfo
	default:
		return LevelDebug
	}
}

// SetLevel sets the minimum level that is written.
func SetLevel(l Level) {
	mu.Lock()
	defer mu.Unlock()
	level = l
}

// GetLevel returns the current minimum level.
func GetLevel() Level {
	mu.Lock()
	defer mu.Unlock()
	return level
}

// SetOutput sets the output writer for logs.
// Defaults to os.Stderr. Useful for testing.
func SetOutput(w io.Writer) {
	mu.Lock()
	defer mu.Unlock()
	output = w
}

// Debug logs a message at debug level.
func Debug(msg string, kv ...any) {
	write(LevelDebug, msg, kv)
}

// Info logs a message at info level.
func Info(msg string, kv ...any) {
	write(LevelInfo, msg, kv)
}

// Warn logs a message at warn level.
func Warn(msg string, kv ...any) {
	write(LevelWarn, msg, kv)
}

// Error logs a message at error level.
func Error(msg string, kv ...any) {
	write(LevelError, msg, kv)
}

func write(l Level, msg string, kv []any) {
	mu.Lock()
	defer mu.Unlock()
	if l < level {
		return
	}

	var b strings.Builder
	b.WriteString(now().Format("2006-01-02 15:04:05"))
	b.WriteString(" [")
	b.WriteString(l.String())
	b.WriteString("] ")
	b.WriteString(msg)
	for i := 0; i < len(kv); i += 2 {
		b.WriteByte(' ')
		if i+1 == len(kv) {
			// Odd trailing value
			fmt.Fprintf(&b, "!BADKEY=%s", formatValue(kv[i]))
			break
		}
		fmt.Fprintf(&b, "%v=%s", kv[i], formatValue(kv[i+1]))
	}
	b.WriteByte('\n')

	_, _ = io.WriteString(output, b.String())
}

func formatValue(v any) string {
	var s string
	switch val := v.(type) {
	case error:
		s = val.Error()
	case string:
		s = val
	case fmt.Stringer:
		s = val.String()
	default:
		return fmt.Sprint(v)
	}
	if s == "" || strings.ContainsAny(s, " \t\"=") {
		return fmt.Sprintf("%q", s)
	}
	return s
}
