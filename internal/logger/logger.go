package logger

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	fmerrors "github.com/flowmech-labs/flowmech/pkg/flowmech/v1/errors"
	fmlog "github.com/flowmech-labs/flowmech/pkg/flowmech/v1/log"
	"go.opentelemetry.io/otel/trace"
)

const defaultLevel = slog.LevelInfo

// parseLogLevel converts level strings (case-insensitive) to slog levels.
func parseLogLevel(levelStr string) slog.Level {
	switch strings.ToUpper(levelStr) {
	case "DEBUG":
		return slog.LevelDebug
	case "INFO":
		return slog.LevelInfo
	case "WARN":
		return slog.LevelWarn
	case "ERROR":
		return slog.LevelError
	default:
		return defaultLevel
	}
}

// defaultLogger implements fmlog.Logger over the standard slog library.
type defaultLogger struct {
	*slog.Logger
}

var _ fmlog.Logger = (*defaultLogger)(nil)

// NewLogger creates a logger with the given level, format ("text" or "json"),
// and writer (defaults to os.Stderr). Log records carry trace and span IDs
// when a valid span context is present.
func NewLogger(levelStr string, formatStr string, writer io.Writer) fmlog.Logger {
	level := parseLogLevel(levelStr)
	if writer == nil {
		writer = os.Stderr
	}

	opts := &slog.HandlerOptions{
		Level:       level,
		ReplaceAttr: replaceLevelAttribute,
	}

	var baseHandler slog.Handler
	switch strings.ToLower(formatStr) {
	case "json":
		baseHandler = slog.NewJSONHandler(writer, opts)
	default:
		baseHandler = slog.NewTextHandler(writer, opts)
	}

	return &defaultLogger{
		Logger: slog.New(NewOtelHandler(baseHandler)),
	}
}

var levelStringMap = map[slog.Level]string{
	slog.LevelDebug: "DEBUG",
	slog.LevelInfo:  "INFO",
	slog.LevelWarn:  "WARN",
	slog.LevelError: "ERROR",
}

// replaceLevelAttribute renders the slog level attribute as an uppercase string.
func replaceLevelAttribute(groups []string, a slog.Attr) slog.Attr {
	if a.Key == slog.LevelKey {
		level, ok := a.Value.Any().(slog.Level)
		if !ok {
			return a
		}
		levelStr, exists := levelStringMap[level]
		if !exists {
			levelStr = level.String()
		}
		a.Value = slog.StringValue(levelStr)
	}
	return a
}

// NewDefaultLogger is a text logger on stderr for when no config is loaded yet.
func NewDefaultLogger(levelStr string) fmlog.Logger {
	return NewLogger(levelStr, "text", os.Stderr)
}

func (l *defaultLogger) Debugf(format string, args ...interface{}) {
	if l.Logger.Enabled(context.Background(), slog.LevelDebug) {
		msg := fmt.Sprintf(format, args...)
		l.Logger.Log(context.Background(), slog.LevelDebug, msg)
	}
}

func (l *defaultLogger) Infof(format string, args ...interface{}) {
	if l.Logger.Enabled(context.Background(), slog.LevelInfo) {
		msg := fmt.Sprintf(format, args...)
		l.Logger.Log(context.Background(), slog.LevelInfo, msg)
	}
}

func (l *defaultLogger) Warnf(format string, args ...interface{}) {
	if l.Logger.Enabled(context.Background(), slog.LevelWarn) {
		msg := fmt.Sprintf(format, args...)
		l.Logger.Log(context.Background(), slog.LevelWarn, msg)
	}
}

// Errorf logs at ERROR. When the last argument is a known typed error
// (notably InvalidTransitionError) its fields are attached as structured
// attributes instead of being flattened into the message.
func (l *defaultLogger) Errorf(format string, args ...interface{}) {
	if l.Logger.Enabled(context.Background(), slog.LevelError) {
		msg := fmt.Sprintf(format, args...)
		l.logHelper(context.Background(), slog.LevelError, msg, args...)
	}
}

func (l *defaultLogger) logHelper(ctx context.Context, level slog.Level, msg string, args ...interface{}) {
	logArgs := []any{}
	processedArgs := args

	if len(args) > 0 {
		lastArg := args[len(args)-1]
		if err, ok := lastArg.(error); ok {
			processedArgs = args[:len(args)-1]
			var ite *fmerrors.InvalidTransitionError
			if errors.As(err, &ite) {
				logArgs = append(logArgs,
					slog.String("error_type", "InvalidTransitionError"),
					slog.String("node_execution_id", ite.NodeExecutionID),
					slog.String("from_status", ite.From),
					slog.String("to_status", ite.To),
				)
			} else {
				logArgs = append(logArgs, slog.String("error", err.Error()))
			}
		}
	}
	finalArgs := append(processedArgs, logArgs...)
	l.Logger.Log(ctx, level, msg, finalArgs...)
}

func (l *defaultLogger) Log(level slog.Level, msg string, args ...interface{}) {
	l.Logger.Log(context.Background(), level, msg, args...)
}

// LogCtx logs with the given context so the OtelHandler can pick up span IDs.
func (l *defaultLogger) LogCtx(ctx context.Context, level slog.Level, msg string, args ...interface{}) {
	l.Logger.Log(ctx, level, msg, args...)
}

func (l *defaultLogger) With(args ...interface{}) fmlog.Logger {
	return &defaultLogger{Logger: l.Logger.With(args...)}
}

func (l *defaultLogger) IsEnabled(level slog.Level) bool {
	return l.Logger.Enabled(context.Background(), level)
}

// OtelHandler is slog middleware that stamps trace_id and span_id onto
// records whose context carries a valid span.
type OtelHandler struct {
	next slog.Handler
}

func NewOtelHandler(next slog.Handler) *OtelHandler {
	return &OtelHandler{next: next}
}

func (h *OtelHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.next.Enabled(ctx, level)
}

func (h *OtelHandler) Handle(ctx context.Context, record slog.Record) error {
	span := trace.SpanFromContext(ctx)
	if span.SpanContext().IsValid() {
		record.AddAttrs(
			slog.String("trace_id", span.SpanContext().TraceID().String()),
			slog.String("span_id", span.SpanContext().SpanID().String()),
		)
	}
	return h.next.Handle(ctx, record)
}

func (h *OtelHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return NewOtelHandler(h.next.WithAttrs(attrs))
}

func (h *OtelHandler) WithGroup(name string) slog.Handler {
	return NewOtelHandler(h.next.WithGroup(name))
}
