package barney

import (
	"context"
	"log/slog"
	"time"
)

// DispatchLogEvent describes one dispatch for logging.
type DispatchLogEvent struct {
	Reference string
	Identity  string
	Parent    string
	Source    Source
	Index     int
	Duration  time.Duration
	Err       error
}

// DispatchLogger records dispatch events.
type DispatchLogger interface {
	LogDispatch(DispatchLogEvent)
}

// DispatchLoggerFunc adapts a function to DispatchLogger.
type DispatchLoggerFunc func(DispatchLogEvent)

// LogDispatch implements DispatchLogger.
func (f DispatchLoggerFunc) LogDispatch(event DispatchLogEvent) {
	if f != nil {
		f(event)
	}
}

// EvaluatorLogEvent describes a rule evaluation attempt for logging.
type EvaluatorLogEvent struct {
	Engine    string
	Expr      string
	Reference string
	Duration  time.Duration
	Err       error
}

// EvaluatorLogger records evaluator events.
type EvaluatorLogger interface {
	LogEvaluation(EvaluatorLogEvent)
}

// EvaluatorLoggerFunc adapts a function to EvaluatorLogger.
type EvaluatorLoggerFunc func(EvaluatorLogEvent)

// LogEvaluation implements EvaluatorLogger.
func (f EvaluatorLoggerFunc) LogEvaluation(event EvaluatorLogEvent) {
	if f != nil {
		f(event)
	}
}

type noopLogger struct{}

func (noopLogger) LogDispatch(DispatchLogEvent)    {}
func (noopLogger) LogEvaluation(EvaluatorLogEvent) {}

// SlogLogger writes dispatch and evaluator events to a slog.Logger. Successful
// events log at debug, failures at warn.
type SlogLogger struct {
	logger *slog.Logger
}

// NewSlogLogger adapts logger. A nil logger falls back to slog.Default.
func NewSlogLogger(logger *slog.Logger) *SlogLogger {
	if logger == nil {
		logger = slog.Default()
	}
	return &SlogLogger{logger: logger.With("component", "barney")}
}

// LogDispatch implements DispatchLogger.
func (l *SlogLogger) LogDispatch(event DispatchLogEvent) {
	attrs := []slog.Attr{
		slog.String("reference", event.Reference),
		slog.String("identity", event.Identity),
		slog.String("source", string(event.Source)),
		slog.Int("index", event.Index),
		slog.Duration("duration", event.Duration),
	}
	if event.Parent != "" {
		attrs = append(attrs, slog.String("parent", event.Parent))
	}
	if event.Err != nil {
		attrs = append(attrs, slog.Any("error", event.Err))
		l.logger.LogAttrs(context.Background(), slog.LevelWarn, "dispatch failed", attrs...)
		return
	}
	l.logger.LogAttrs(context.Background(), slog.LevelDebug, "dispatch", attrs...)
}

// LogEvaluation implements EvaluatorLogger.
func (l *SlogLogger) LogEvaluation(event EvaluatorLogEvent) {
	attrs := []slog.Attr{
		slog.String("engine", event.Engine),
		slog.String("expr", event.Expr),
		slog.String("reference", event.Reference),
		slog.Duration("duration", event.Duration),
	}
	if event.Err != nil {
		attrs = append(attrs, slog.Any("error", event.Err))
		l.logger.LogAttrs(context.Background(), slog.LevelWarn, "rule evaluation failed", attrs...)
		return
	}
	l.logger.LogAttrs(context.Background(), slog.LevelDebug, "rule evaluated", attrs...)
}
