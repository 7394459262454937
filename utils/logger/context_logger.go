package logger

import (
	"context"
	"log/slog"
)

type contextKey string

// Context keys for business attributes carried through request handling.
const (
	UserIDKey    contextKey = "user_id"
	RequestIDKey contextKey = "request_id"
	SessionIDKey contextKey = "maba.session.id"
	ModuleIDKey  contextKey = "maba.module.id"
	AuthFlowKey  contextKey = "maba.auth.flow"
	CertStageKey contextKey = "maba.certification.stage"
)

// GlobalContext is the process-wide context logger, set by Init.
var GlobalContext *ContextLogger

// ContextLogger enriches log records with business attributes stored in the
// request context.
type ContextLogger struct {
	logger *slog.Logger
}

func NewContextLogger(logger *slog.Logger) *ContextLogger {
	return &ContextLogger{logger: logger}
}

func WithUserID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, UserIDKey, id)
}

func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, RequestIDKey, id)
}

func WithSessionID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, SessionIDKey, id)
}

func WithModuleID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, ModuleIDKey, id)
}

func WithAuthFlow(ctx context.Context, flow string) context.Context {
	return context.WithValue(ctx, AuthFlowKey, flow)
}

func WithCertStage(ctx context.Context, stage string) context.Context {
	return context.WithValue(ctx, CertStageKey, stage)
}

// WithContext returns a logger carrying every business attribute present in
// ctx.
func (cl *ContextLogger) WithContext(ctx context.Context) *slog.Logger {
	logger := cl.logger
	for _, key := range []contextKey{UserIDKey, RequestIDKey, SessionIDKey, ModuleIDKey, AuthFlowKey, CertStageKey} {
		if value, ok := ctx.Value(key).(string); ok && value != "" {
			logger = logger.With(string(key), value)
		}
	}
	return logger
}

// LogDuration records a completed operation with its elapsed milliseconds.
func (cl *ContextLogger) LogDuration(ctx context.Context, operation string, ms int64) {
	cl.WithContext(ctx).Info("operation completed", "operation", operation, "duration_ms", ms)
}

// LogError records a failed operation.
func (cl *ContextLogger) LogError(ctx context.Context, operation string, err error) {
	cl.WithContext(ctx).Error("operation failed", "operation", operation, "error", err)
}
