package httputil

import (
	"cmp"
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"
)

// ProbeConfig configures Probe.
type ProbeConfig struct {
	Logger         *zap.Logger
	Timeout        time.Duration // per attempt
	InitialBackoff time.Duration
	MaxElapsed     time.Duration // zero tries once
}

// Probe issues GET requests to url until one answers 2xx or the backoff gives up.
// It backs the container health check of the serve command.
func Probe(ctx context.Context, url string, cfg ProbeConfig) error {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	client := &http.Client{Timeout: cmp.Or(cfg.Timeout, 2*time.Second)}

	attempt := 0
	operation := func() error {
		attempt++
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return backoff.Permanent(fmt.Errorf("failed to create request: %w", err))
		}
		resp, err := client.Do(req)
		if err != nil {
			logger.Debug("probe failed", zap.Int("attempt", attempt), zap.Error(err))
			return fmt.Errorf("request failed: %w", err)
		}
		defer resp.Body.Close()

		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<10))
		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			logger.Debug("probe unhealthy", zap.Int("attempt", attempt), zap.Int("status", resp.StatusCode))
			return fmt.Errorf("unexpected status code: %d, body: %s", resp.StatusCode, body)
		}
		return nil
	}

	if cfg.MaxElapsed <= 0 {
		return operation()
	}
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = cmp.Or(cfg.InitialBackoff, 100*time.Millisecond)
	b.MaxElapsedTime = cfg.MaxElapsed
	return backoff.Retry(operation, backoff.WithContext(b, ctx))
}
