package log

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"sync/atomic"
)

var (
	levelVar = new(slog.LevelVar)
	logger   atomic.Pointer[slog.Logger]
)

func init() {
	levelVar.Set(slog.LevelError)
	h := slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: levelVar})
	logger.Store(slog.New(h).With(slog.String("lib", "ratelimit")))
}

// Logger returns the logger used by the package level helpers.
func Logger() *slog.Logger {
	return logger.Load()
}

// SetLogger replaces the package logger. A nil logger is ignored.
func SetLogger(l *slog.Logger) {
	if l == nil {
		return
	}
	logger.Store(l.With(slog.String("lib", "ratelimit")))
}

// SetLogLevel sets the minimum level of the default handler.
func SetLogLevel(level string) error {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		levelVar.Set(slog.LevelDebug)
	case "info":
		levelVar.Set(slog.LevelInfo)
	case "warn", "warning":
		levelVar.Set(slog.LevelWarn)
	case "error", "err":
		levelVar.Set(slog.LevelError)
	default:
		return fmt.Errorf("invalid log level: %q", level)
	}
	return nil
}

func logAttrs(level slog.Level, msg string, args ...any) {
	l := Logger()
	ctx := context.Background()
	if !l.Enabled(ctx, level) {
		return
	}
	l.Log(ctx, level, msg, args...)
}

func Debug(msg string, args ...any) {
	logAttrs(slog.LevelDebug, msg, args...)
}

func Info(msg string, args ...any) {
	logAttrs(slog.LevelInfo, msg, args...)
}

func Warn(msg string, args ...any) {
	logAttrs(slog.LevelWarn, msg, args...)
}

func Error(msg string, args ...any) {
	logAttrs(slog.LevelError, msg, args...)
}
