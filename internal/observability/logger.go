package observability

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"
)

type Fields map[string]any

// Logger writes one JSON object per line tagged with the service name.
type Logger struct {
	service string
	inner   *slog.Logger
}

func NewLogger(service string) *Logger {
	return NewLoggerTo(service, os.Stdout)
}

func NewLoggerTo(service string, out io.Writer) *Logger {
	handler := slog.NewJSONHandler(out, &slog.HandlerOptions{
		Level: slog.LevelDebug,
		ReplaceAttr: func(_ []string, attr slog.Attr) slog.Attr {
			switch attr.Key {
			case slog.TimeKey:
				attr.Key = "ts"
				attr.Value = slog.StringValue(attr.Value.Time().UTC().Format("2006-01-02T15:04:05.999999999Z07:00"))
			case slog.LevelKey:
				attr.Value = slog.StringValue(strings.ToLower(attr.Value.String()))
			}
			return attr
		},
	})
	clean := strings.TrimSpace(service)
	return &Logger{
		service: clean,
		inner:   slog.New(handler).With("service", clean),
	}
}

// Discard returns a logger that drops everything. Useful in tests.
func Discard() *Logger {
	return NewLoggerTo("discard", io.Discard)
}

func (l *Logger) Debug(msg string, fields Fields) {
	l.log(slog.LevelDebug, msg, fields)
}

func (l *Logger) Info(msg string, fields Fields) {
	l.log(slog.LevelInfo, msg, fields)
}

func (l *Logger) Warn(msg string, fields Fields) {
	l.log(slog.LevelWarn, msg, fields)
}

func (l *Logger) Error(msg string, fields Fields) {
	l.log(slog.LevelError, msg, fields)
}

// With returns a child logger that always carries the given fields.
func (l *Logger) With(fields Fields) *Logger {
	if l == nil {
		return nil
	}
	return &Logger{service: l.service, inner: l.inner.With(attrs(fields)...)}
}

func (l *Logger) log(level slog.Level, msg string, fields Fields) {
	if l == nil || l.inner == nil {
		return
	}
	l.inner.Log(context.Background(), level, strings.TrimSpace(msg), attrs(fields)...)
}

func attrs(fields Fields) []any {
	out := make([]any, 0, len(fields))
	for key, value := range fields {
		cleanKey := strings.TrimSpace(key)
		if cleanKey == "" || value == nil {
			continue
		}
		if stringValue, ok := value.(string); ok && strings.TrimSpace(stringValue) == "" {
			continue
		}
		if err, ok := value.(error); ok {
			value = err.Error()
		}
		out = append(out, slog.Any(cleanKey, value))
	}
	return out
}

// Preview shortens user or model text for log lines.
func Preview(text string) string {
	const limit = 80
	runes := []rune(strings.TrimSpace(text))
	if len(runes) <= limit {
		return string(runes)
	}
	return string(runes[:limit]) + "…"
}
