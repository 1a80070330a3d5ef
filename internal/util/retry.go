package util

import (
	"context"
	"time"
)

// Retry calls fn up to max+1 times, doubling the wait after every failure.
// It returns the last error, or ctx's error if ctx ends first.
func Retry(ctx context.Context, max int, backoff time.Duration, fn func(attempt int) error) error {
	var err error
	for attempt := 0; attempt <= max; attempt++ {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		err = fn(attempt)
		if err == nil {
			return nil
		}
		if attempt == max {
			break
		}
		wait := backoff * time.Duration(1<<attempt)
		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
	return err
}
