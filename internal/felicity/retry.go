package felicity

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/sirupsen/logrus"
)

// RetryConfig controls transport-level retries of feedback calls. The zero
// value disables retries; searches are never retried.
type RetryConfig struct {
	MaxRetries int
	BaseDelay  time.Duration
	MaxDelay   time.Duration
}

func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxRetries: 0,
		BaseDelay:  500 * time.Millisecond,
		MaxDelay:   5 * time.Second,
	}
}

func (r RetryConfig) delay(attempt int) time.Duration {
	base := r.BaseDelay
	if base <= 0 {
		base = DefaultRetryConfig().BaseDelay
	}
	d := time.Duration(float64(base) * math.Pow(1.5, float64(attempt)))
	if r.MaxDelay > 0 && d > r.MaxDelay {
		d = r.MaxDelay
	}
	return d
}

// retryOperation retries operation while it fails with a TransportError.
// Service errors are returned immediately.
func (c *Client) retryOperation(ctx context.Context, op string, operation func() error) error {
	var err error
	for attempt := 0; attempt <= c.retry.MaxRetries; attempt++ {
		err = operation()
		if err == nil {
			return nil
		}

		var transportErr *TransportError
		if !errors.As(err, &transportErr) || attempt == c.retry.MaxRetries {
			break
		}

		delay := c.retry.delay(attempt)
		c.logger.WithFields(logrus.Fields{
			"op":      op,
			"attempt": attempt + 1,
			"delay":   delay,
			"error":   err.Error(),
		}).Warn("Retrying Felicity operation")

		select {
		case <-ctx.Done():
			return &TransportError{Op: op, Err: ctx.Err()}
		case <-time.After(delay):
		}
	}

	if c.retry.MaxRetries > 0 {
		var transportErr *TransportError
		if errors.As(err, &transportErr) {
			return fmt.Errorf("%s failed after %d retries: %w", op, c.retry.MaxRetries, err)
		}
	}
	return err
}
