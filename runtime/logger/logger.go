// Package logger provides structured logging with automatic secret redaction.
//
// This package wraps Go's standard log/slog with convenience functions for:
//   - Control-channel event logging (client and server events)
//   - Credential and negotiation request logging
//   - Automatic API key, ephemeral key and bearer token redaction
//   - Contextual logging keyed by session, agent and event
//   - Level-based verbosity control
//
// All exported functions use the global DefaultLogger which can be configured
// for different output formats and log levels.
package logger

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"os"
	"regexp"
	"runtime"
	"strings"
	"sync"
	"time"
)

var (
	// DefaultLogger is the global structured logger instance.
	// It is safe for concurrent use and initialized with slog.LevelInfo by default.
	DefaultLogger *slog.Logger

	// logOutput is where the built-in handlers write. Tests swap it with SetOutput.
	logOutput io.Writer = os.Stderr

	// customHandler is set by SetLogger; Configure leaves a custom logger alone.
	customHandler slog.Handler

	mu sync.Mutex
)

func init() {
	level := slog.LevelInfo
	if envLevel := os.Getenv("LOG_LEVEL"); envLevel != "" {
		level = ParseLevel(envLevel)
	}
	DefaultLogger = slog.New(NewContextHandler(slog.NewTextHandler(logOutput, &slog.HandlerOptions{
		Level: level,
	})))
}

// ParseLevel converts a level name into a slog.Level. Unknown names map to info.
// "trace" is accepted as an alias for debug.
func ParseLevel(name string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "trace", "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// SetLevel changes the logging level for all subsequent log operations.
// This is safe for concurrent use as it replaces the entire logger instance.
func SetLevel(level slog.Level) {
	mu.Lock()
	defer mu.Unlock()
	if customHandler != nil {
		return
	}
	DefaultLogger = slog.New(NewContextHandler(slog.NewTextHandler(logOutput, &slog.HandlerOptions{
		Level: level,
	})))
}

// SetVerbose enables debug-level logging when verbose is true, otherwise sets info-level.
// This is a convenience wrapper around SetLevel for command-line verbose flags.
func SetVerbose(verbose bool) {
	if verbose {
		SetLevel(slog.LevelDebug)
	} else {
		SetLevel(slog.LevelInfo)
	}
}

// SetOutput redirects the built-in handlers to w and resets the level to info.
func SetOutput(w io.Writer) {
	mu.Lock()
	logOutput = w
	mu.Unlock()
	SetLevel(slog.LevelInfo)
}

// SetLogger installs a caller-provided logger. Passing nil restores the default
// text handler.
func SetLogger(l *slog.Logger) {
	mu.Lock()
	if l == nil {
		customHandler = nil
		mu.Unlock()
		SetLevel(slog.LevelInfo)
		return
	}
	customHandler = l.Handler()
	DefaultLogger = l
	mu.Unlock()
}

// logAt emits a record whose PC points at the caller of the exported helper,
// so module-level filtering sees the real call site.
func logAt(ctx context.Context, level slog.Level, msg string, args []any) {
	l := DefaultLogger
	if !l.Enabled(ctx, level) {
		return
	}
	var pcs [1]uintptr
	runtime.Callers(3, pcs[:]) // runtime.Callers, logAt, exported helper
	r := slog.NewRecord(time.Now(), level, msg, pcs[0])
	r.Add(args...)
	_ = l.Handler().Handle(ctx, r)
}

// Info logs an informational message with structured key-value attributes.
// Args should be provided in key-value pairs: key1, value1, key2, value2, ...
func Info(msg string, args ...any) {
	logAt(context.Background(), slog.LevelInfo, msg, args)
}

// InfoContext logs an informational message with context and structured attributes.
func InfoContext(ctx context.Context, msg string, args ...any) {
	logAt(ctx, slog.LevelInfo, msg, args)
}

// Debug logs a debug-level message with structured attributes.
// Debug messages are only output when the log level is set to LevelDebug or lower.
func Debug(msg string, args ...any) {
	logAt(context.Background(), slog.LevelDebug, msg, args)
}

// DebugContext logs a debug message with context and structured attributes.
func DebugContext(ctx context.Context, msg string, args ...any) {
	logAt(ctx, slog.LevelDebug, msg, args)
}

// Warn logs a warning message with structured attributes.
// Use for recoverable errors or unexpected but non-critical situations.
func Warn(msg string, args ...any) {
	logAt(context.Background(), slog.LevelWarn, msg, args)
}

// WarnContext logs a warning message with context and structured attributes.
func WarnContext(ctx context.Context, msg string, args ...any) {
	logAt(ctx, slog.LevelWarn, msg, args)
}

// Error logs an error message with structured attributes.
// Use for errors that affect operation but don't cause complete failure.
func Error(msg string, args ...any) {
	logAt(context.Background(), slog.LevelError, msg, args)
}

// ErrorContext logs an error message with context and structured attributes.
func ErrorContext(ctx context.Context, msg string, args ...any) {
	logAt(ctx, slog.LevelError, msg, args)
}

// ClientEvent logs an outbound control-channel event at debug level.
// The note is the short human label the caller attaches (e.g. "(clear audio buffer)").
func ClientEvent(ctx context.Context, eventType, note string, attrs ...any) {
	allAttrs := make([]any, 0, 4+len(attrs))
	allAttrs = append(allAttrs, "event_type", eventType)
	if note != "" {
		allAttrs = append(allAttrs, "note", note)
	}
	allAttrs = append(allAttrs, attrs...)
	logAt(ctx, slog.LevelDebug, "⬆️ client event", allAttrs)
}

// ServerEvent logs an inbound control-channel event at debug level.
func ServerEvent(ctx context.Context, eventType string, attrs ...any) {
	allAttrs := make([]any, 0, 2+len(attrs))
	allAttrs = append(allAttrs, "event_type", eventType)
	allAttrs = append(allAttrs, attrs...)
	logAt(ctx, slog.LevelDebug, "⬇️ server event", allAttrs)
}

var (
	// secretPatterns contains compiled regular expressions for detecting sensitive data.
	secretPatterns = []*regexp.Regexp{
		regexp.MustCompile(`sk-[a-zA-Z0-9_-]{20,}`),       // OpenAI API keys (incl. sk-proj-)
		regexp.MustCompile(`ek_[a-zA-Z0-9]{16,}`),         // Realtime ephemeral keys
		regexp.MustCompile(`Bearer\s+[a-zA-Z0-9._~+/=-]+`), // Bearer tokens
	}
)

// RedactSensitiveData removes API keys and other sensitive information from strings.
// It replaces matched patterns with a redacted form that preserves the first few characters
// for debugging while hiding the sensitive portion.
//
// Supported patterns:
//   - OpenAI keys (sk-...): Shows first 4 chars
//   - Ephemeral client secrets (ek_...): Shows first 4 chars
//   - Bearer tokens: Shows only "Bearer [REDACTED]"
func RedactSensitiveData(input string) string {
	result := input

	for _, pattern := range secretPatterns {
		result = pattern.ReplaceAllStringFunc(result, func(match string) string {
			if strings.HasPrefix(match, "Bearer") {
				return "Bearer [REDACTED]"
			}
			if len(match) > 8 {
				return match[:4] + "...[REDACTED]"
			}
			return "[REDACTED]"
		})
	}

	return result
}

// APIRequest logs HTTP API request details at debug level with automatic redaction.
// This function is a no-op when debug logging is disabled.
func APIRequest(service, method, url string, headers map[string]string, body any) {
	if !DefaultLogger.Enabled(context.Background(), slog.LevelDebug) {
		return
	}

	attrs := make([]any, 0, 8)
	attrs = append(attrs,
		"service", service,
		"method", method,
		"url", RedactSensitiveData(url),
	)

	if len(headers) > 0 {
		redacted := make(map[string]string, len(headers))
		for key, value := range headers {
			redacted[key] = RedactSensitiveData(value)
		}
		attrs = append(attrs, "headers", redacted)
	}

	switch b := body.(type) {
	case nil:
	case string:
		attrs = append(attrs, "body", RedactSensitiveData(b))
	default:
		bodyJSON, err := json.Marshal(b)
		if err != nil {
			attrs = append(attrs, "body_error", err.Error())
		} else {
			attrs = append(attrs, "body", RedactSensitiveData(string(bodyJSON)))
		}
	}

	logAt(context.Background(), slog.LevelDebug, "🔵 API Request", attrs)
}

// APIResponse logs HTTP API response details at debug level with automatic redaction.
// Errors are logged at error level regardless of the debug setting.
func APIResponse(service string, statusCode int, body string, err error) {
	if err != nil {
		logAt(context.Background(), slog.LevelError, "🔴 API Response Error", []any{"service", service, "status_code", statusCode, "error", err.Error()})
		return
	}
	if !DefaultLogger.Enabled(context.Background(), slog.LevelDebug) {
		return
	}

	var emoji string
	switch {
	case statusCode >= 200 && statusCode < 300:
		emoji = "🟢"
	case statusCode >= 400:
		emoji = "🔴"
	default:
		emoji = "🟡"
	}

	attrs := []any{"service", service, "status_code", statusCode}
	if body != "" {
		attrs = append(attrs, "body", RedactSensitiveData(body))
	}
	logAt(context.Background(), slog.LevelDebug, emoji+" API Response", attrs)
}
