package crud

import (
	"cmp"
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/edgeflare/dbapi/pkg/metrics"
	"go.uber.org/zap"
)

// RetryPolicy bounds the exponential backoff applied when the store aborts a serializable
// transaction. A zero MaxElapsedTime keeps the default.
type RetryPolicy struct {
	InitialInterval time.Duration
	MaxInterval     time.Duration
	MaxElapsedTime  time.Duration
}

func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		InitialInterval: 10 * time.Millisecond,
		MaxInterval:     500 * time.Millisecond,
		MaxElapsedTime:  10 * time.Second,
	}
}

func (p RetryPolicy) backOff(ctx context.Context) backoff.BackOff {
	def := DefaultRetryPolicy()
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = cmp.Or(p.InitialInterval, def.InitialInterval)
	b.MaxInterval = cmp.Or(p.MaxInterval, def.MaxInterval)
	b.MaxElapsedTime = cmp.Or(p.MaxElapsedTime, def.MaxElapsedTime)
	return backoff.WithContext(b, ctx)
}

// retrying runs fn until it succeeds, fails with an error the dialect does not consider
// transient, or the policy gives up.
func (e *Engine) retrying(ctx context.Context, op, table string, fn func() error) error {
	dialect := e.db.Dialect()
	attempt := 0
	return backoff.Retry(func() error {
		attempt++
		err := fn()
		if err == nil {
			return nil
		}
		if !dialect.Retryable(err) {
			return backoff.Permanent(err)
		}
		metrics.InsertRetries.WithLabelValues(dialect.Name()).Inc()
		e.logger.Debug("retrying aborted transaction",
			zap.String("op", op),
			zap.String("table", table),
			zap.Int("attempt", attempt),
			zap.Error(err),
		)
		return err
	}, e.retry.backOff(ctx))
}
