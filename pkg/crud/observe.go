package crud

import (
	"context"
	"errors"
	"time"

	"github.com/edgeflare/dbapi/pkg/metrics"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// observe wraps one engine operation in a span, records its outcome and duration, and logs
// store failures. Caller errors are not logged here; the HTTP layer reports them.
func (e *Engine) observe(ctx context.Context, op, table string, fn func(context.Context) error) error {
	start := time.Now()
	ctx, span := e.tracer.Start(ctx, "crud."+op,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("db.system", e.db.Dialect().Name()),
			attribute.String("db.operation", op),
			attribute.String("db.sql.table", table),
		),
	)
	defer span.End()

	err := fn(ctx)

	outcome := outcomeOf(err)
	metrics.DBOperations.WithLabelValues(op, outcome).Inc()
	metrics.DBOperationDuration.WithLabelValues(op).Observe(time.Since(start).Seconds())

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		if outcome == "error" {
			e.logger.Warn("store operation failed",
				zap.String("op", op),
				zap.String("table", table),
				zap.Duration("duration", time.Since(start)),
				zap.Error(err),
			)
		}
		return err
	}
	span.SetStatus(codes.Ok, "")
	return nil
}

func outcomeOf(err error) string {
	if err == nil {
		return "ok"
	}
	var ce *Error
	if !errors.As(err, &ce) {
		return "error"
	}
	switch ce.Kind {
	case KindInvalidInput:
		return "invalid_input"
	case KindNotFound:
		return "not_found"
	case KindUnresolvableIdentity:
		return "unresolvable_identity"
	default:
		return "error"
	}
}
