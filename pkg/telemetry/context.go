package telemetry

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/trace"
)

// Telemetry bundles the logger, tracer, and metrics collector for one
// nclavd process.
type Telemetry struct {
	Logger  *Logger
	Tracer  *Tracer
	Metrics *Metrics
	Config  *Config
}

type telemetryContextKey struct{}

// NewTelemetry builds a Telemetry bundle from cfg.
func NewTelemetry(cfg *Config) (*Telemetry, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	logger, err := NewLogger(cfg.Logging)
	if err != nil {
		return nil, err
	}
	tracer, err := NewTracer(cfg.Tracing, cfg.ServiceName, cfg.ServiceVersion, cfg.Environment)
	if err != nil {
		return nil, err
	}
	metrics, err := NewMetrics(cfg.Metrics)
	if err != nil {
		return nil, err
	}

	return &Telemetry{Logger: logger, Tracer: tracer, Metrics: metrics, Config: cfg}, nil
}

// WithContext attaches the telemetry bundle (and its logger) to ctx.
func (t *Telemetry) WithContext(ctx context.Context) context.Context {
	return t.Logger.WithContext(context.WithValue(ctx, telemetryContextKey{}, t))
}

// FromTelemetryContext retrieves the bundle attached by WithContext, or
// nil if none was attached.
func FromTelemetryContext(ctx context.Context) *Telemetry {
	if t, ok := ctx.Value(telemetryContextKey{}).(*Telemetry); ok {
		return t
	}
	return nil
}

func (t *Telemetry) Shutdown(ctx context.Context) error {
	return t.Tracer.Shutdown(ctx)
}

type reconcileSpanKey struct{}
type reconcileTimerKey struct{}

// WithReconcileContext starts a reconcile span, a run-scoped logger,
// and records the started metric, returning an enriched context.
func WithReconcileContext(ctx context.Context, runID string, dryRun bool) context.Context {
	tel := FromTelemetryContext(ctx)
	if tel == nil {
		return ctx
	}
	spanCtx, span := tel.Tracer.StartReconcileSpan(ctx, runID, dryRun)
	logger := tel.Logger.WithRunID(runID)
	spanCtx = logger.WithContext(spanCtx)
	tel.Metrics.RecordReconcileStarted(dryRun)
	spanCtx = context.WithValue(spanCtx, reconcileSpanKey{}, span)
	spanCtx = context.WithValue(spanCtx, reconcileTimerKey{}, NewTimer())
	return spanCtx
}

// EndReconcile ends the span and timer started by WithReconcileContext,
// recording the completed-pass metric. status should be "ok" or "error".
func EndReconcile(ctx context.Context, status string, err error) {
	tel := FromTelemetryContext(ctx)
	if tel == nil {
		return
	}
	if span, ok := ctx.Value(reconcileSpanKey{}).(trace.Span); ok {
		if err != nil {
			RecordError(span, err)
		} else {
			RecordSuccess(span)
		}
		span.End()
	}
	var elapsed time.Duration
	if timer, ok := ctx.Value(reconcileTimerKey{}).(*Timer); ok {
		elapsed = timer.Duration()
	}
	tel.Metrics.RecordReconcileCompleted(status, elapsed)
}

type resourceSpanKey struct{}

// WithResourceContext starts a span and logger scoped to one resource's
// provision/teardown step within a reconcile pass.
func WithResourceContext(ctx context.Context, resourceID, operation string) context.Context {
	tel := FromTelemetryContext(ctx)
	if tel == nil {
		return ctx
	}
	spanCtx, span := tel.Tracer.StartResourceSpan(ctx, resourceID, operation)
	logger := FromContext(ctx).WithField("resource_id", resourceID).WithField("operation", operation)
	spanCtx = logger.WithContext(spanCtx)
	spanCtx = context.WithValue(spanCtx, resourceSpanKey{}, span)
	return spanCtx
}

// EndResourceContext ends the span started by WithResourceContext,
// recording success or the given error.
func EndResourceContext(ctx context.Context, err error) {
	if span, ok := ctx.Value(resourceSpanKey{}).(trace.Span); ok {
		if err != nil {
			RecordError(span, err)
		} else {
			RecordSuccess(span)
		}
		span.End()
	}
}

// RecordDriverOperation wraps a driver call with a span, duration
// metric, and error metric.
func RecordDriverOperation(ctx context.Context, cloud, method string, fn func() error) error {
	tel := FromTelemetryContext(ctx)
	var span trace.Span
	if tel != nil {
		ctx, span = tel.Tracer.StartDriverSpan(ctx, cloud, method)
		defer span.End()
	}

	timer := NewTimer()
	err := fn()

	if tel != nil {
		tel.Metrics.RecordDriverCall(cloud, method, timer.Duration(), err)
		if err != nil {
			RecordError(span, err)
		} else {
			RecordSuccess(span)
		}
	}
	return err
}
