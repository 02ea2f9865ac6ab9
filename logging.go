package store

import (
	"context"
	"log/slog"
	"time"
)

// EvaluatorLogEvent describes an expression evaluation for logging.
type EvaluatorLogEvent struct {
	Engine   string
	Expr     string
	Duration time.Duration
	Err      error
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

type noopEvaluatorLogger struct{}

func (noopEvaluatorLogger) LogEvaluation(EvaluatorLogEvent) {}

// WithEvaluatorLogger attaches an evaluator logger to the store.
func WithEvaluatorLogger(logger EvaluatorLogger) Option {
	return func(cfg *storeConfig) {
		if logger == nil {
			cfg.evaluatorLogger = noopEvaluatorLogger{}
			return
		}
		cfg.evaluatorLogger = logger
	}
}

// ExecutionPhase names the step of a modifier execution being logged.
type ExecutionPhase string

const (
	PhaseRegistered ExecutionPhase = "registered"
	PhaseStarted    ExecutionPhase = "started"
	PhaseCompleted  ExecutionPhase = "completed"
	PhaseFailed     ExecutionPhase = "failed"
	// PhaseOverlay reports a selector that failed while computing the
	// loading overlay of a snapshot. The snapshot is still returned.
	PhaseOverlay ExecutionPhase = "overlay"
	// PhaseActivity reports activity hooks that failed to receive an event.
	PhaseActivity ExecutionPhase = "activity"
)

// ExecutionLogEvent describes one step of a modifier execution.
type ExecutionLogEvent struct {
	Phase      ExecutionPhase
	Modifier   string
	InstanceID string
	Args       int
	Duration   time.Duration
	Err        error
}

// ExecutionLogger records execution events.
type ExecutionLogger interface {
	LogExecution(ExecutionLogEvent)
}

// ExecutionLoggerFunc adapts a function to ExecutionLogger.
type ExecutionLoggerFunc func(ExecutionLogEvent)

// LogExecution implements ExecutionLogger.
func (f ExecutionLoggerFunc) LogExecution(event ExecutionLogEvent) {
	if f != nil {
		f(event)
	}
}

type noopExecutionLogger struct{}

func (noopExecutionLogger) LogExecution(ExecutionLogEvent) {}

// WithExecutionLogger attaches an execution logger to the store.
func WithExecutionLogger(logger ExecutionLogger) Option {
	return func(cfg *storeConfig) {
		if logger == nil {
			cfg.logger = noopExecutionLogger{}
			return
		}
		cfg.logger = logger
	}
}

// WithLogger routes execution and evaluator events to a slog logger.
func WithLogger(logger *slog.Logger) Option {
	return func(cfg *storeConfig) {
		if logger == nil {
			return
		}
		cfg.logger = NewSlogExecutionLogger(logger)
		cfg.evaluatorLogger = NewSlogEvaluatorLogger(logger)
	}
}

// NewSlogExecutionLogger adapts a slog logger. Starts are logged at debug,
// failures at warn, everything else at info.
func NewSlogExecutionLogger(logger *slog.Logger) ExecutionLogger {
	if logger == nil {
		return noopExecutionLogger{}
	}
	return ExecutionLoggerFunc(func(event ExecutionLogEvent) {
		level := slog.LevelInfo
		switch {
		case event.Err != nil:
			level = slog.LevelWarn
		case event.Phase == PhaseStarted:
			level = slog.LevelDebug
		}
		attrs := []slog.Attr{
			slog.String("phase", string(event.Phase)),
			slog.String("modifier", event.Modifier),
		}
		if event.InstanceID != "" {
			attrs = append(attrs, slog.String("instance", event.InstanceID))
		}
		if event.Args > 0 {
			attrs = append(attrs, slog.Int("args", event.Args))
		}
		if event.Duration > 0 {
			attrs = append(attrs, slog.Duration("duration", event.Duration))
		}
		if event.Err != nil {
			attrs = append(attrs, slog.Any("err", event.Err))
		}
		logger.LogAttrs(context.Background(), level, "store.modifier", attrs...)
	})
}

// NewSlogEvaluatorLogger adapts a slog logger for expression evaluations,
// which are logged at debug unless they fail.
func NewSlogEvaluatorLogger(logger *slog.Logger) EvaluatorLogger {
	if logger == nil {
		return noopEvaluatorLogger{}
	}
	return EvaluatorLoggerFunc(func(event EvaluatorLogEvent) {
		level := slog.LevelDebug
		attrs := []slog.Attr{
			slog.String("engine", event.Engine),
			slog.String("expr", event.Expr),
			slog.Duration("duration", event.Duration),
		}
		if event.Err != nil {
			level = slog.LevelWarn
			attrs = append(attrs, slog.Any("err", event.Err))
		}
		logger.LogAttrs(context.Background(), level, "store.evaluate", attrs...)
	})
}
