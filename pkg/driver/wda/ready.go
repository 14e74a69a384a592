package wda

import (
	"context"
	"fmt"
	"time"

	"github.com/cenkalti/backoff"

	"github.com/devicelab-dev/comesee-snapshots/pkg/core"
	"github.com/devicelab-dev/comesee-snapshots/pkg/logger"
)

// WaitReady polls /status until WebDriverAgent answers or timeout elapses.
// WDA launched by xcodebuild takes a few seconds to bind its port. The
// timeout also bounds a hung /status request; a non-positive timeout fails
// without retrying.
func WaitReady(ctx context.Context, c *Client, timeout time.Duration) error {
	if timeout <= 0 {
		return core.ErrInvalidConfig.WithMessage(fmt.Sprintf("wda ready timeout must be positive, got %s", timeout))
	}
	parent := ctx
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 250 * time.Millisecond
	b.MaxInterval = 2 * time.Second
	b.MaxElapsedTime = timeout

	attempts := 0
	op := func() error {
		attempts++
		status, err := c.Status(ctx)
		if err != nil {
			logger.Debug("wda: not ready (attempt %d): %v", attempts, err)
			return err
		}
		if value, ok := status["value"].(map[string]interface{}); ok {
			if ready, ok := value["ready"].(bool); ok && !ready {
				return fmt.Errorf("wda reports not ready")
			}
		}
		return nil
	}

	if err := backoff.Retry(op, backoff.WithContext(b, ctx)); err != nil {
		if parent.Err() != nil {
			return parent.Err()
		}
		return core.ErrTimeout.
			WithMessage(fmt.Sprintf("WebDriverAgent not ready after %d attempts", attempts)).
			WithCause(err)
	}
	logger.Info("wda: ready at %s", c.baseURL)
	return nil
}
