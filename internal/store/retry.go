package store

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// Retry runs fn until it succeeds, fails with an error other than
// ErrRetryable, or ctx is done. Attempts back off exponentially for at most
// maxElapsed. Any other failure is returned at once.
func Retry(ctx context.Context, maxElapsed time.Duration, fn func() error) error {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = 50 * time.Millisecond
	bo.MaxInterval = time.Second
	bo.MaxElapsedTime = maxElapsed

	return backoff.Retry(func() error {
		err := fn()
		if err == nil || IsRetryable(err) {
			return err
		}
		return backoff.Permanent(err)
	}, backoff.WithContext(bo, ctx))
}
