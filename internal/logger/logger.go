// Package logger is the process-wide leveled logger. Messages carry
// key/value attributes and go to stderr unless redirected.
package logger

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"
)

var (
	mu     sync.RWMutex
	level            = new(slog.LevelVar)
	output io.Writer = os.Stderr
	log              = newLogger(os.Stderr)
)

func newLogger(w io.Writer) *slog.Logger {
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}

// SetLevel sets the minimum level: debug, info, warn or error.
func SetLevel(name string) error {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "debug":
		level.Set(slog.LevelDebug)
	case "info", "":
		level.Set(slog.LevelInfo)
	case "warn", "warning":
		level.Set(slog.LevelWarn)
	case "error":
		level.Set(slog.LevelError)
	default:
		return fmt.Errorf("unknown log level %q", name)
	}
	return nil
}

// SetVerbose switches to debug level.
func SetVerbose(v bool) {
	if v {
		level.Set(slog.LevelDebug)
	}
}

// IsVerbose reports whether debug messages are emitted.
func IsVerbose() bool {
	return level.Level() <= slog.LevelDebug
}

// SetOutput sets the writer for log lines. Defaults to os.Stderr. Useful for
// testing.
func SetOutput(w io.Writer) {
	mu.Lock()
	defer mu.Unlock()
	output = w
	log = newLogger(w)
}

// Output returns the current writer.
func Output() io.Writer {
	mu.RLock()
	defer mu.RUnlock()
	return output
}

func current() *slog.Logger {
	mu.RLock()
	defer mu.RUnlock()
	return log
}

// Debug logs pipeline detail shown with --verbose.
func Debug(msg string, args ...any) {
	current().Log(context.Background(), slog.LevelDebug, msg, args...)
}

func Info(msg string, args ...any) {
	current().Log(context.Background(), slog.LevelInfo, msg, args...)
}

func Warn(msg string, args ...any) {
	current().Log(context.Background(), slog.LevelWarn, msg, args...)
}

func Error(msg string, args ...any) {
	current().Log(context.Background(), slog.LevelError, msg, args...)
}
