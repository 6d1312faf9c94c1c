package youtube

import (
	"context"
	"fmt"
	"time"

	"github.com/forPelevin/reelcut/internal/types"
)

// Backoff bounds retries of transient upload failures. The n-th retry waits
// Base * 2^(n-1); the retry counter spans the whole upload.
type Backoff struct {
	MaxRetries int
	Base       time.Duration
	Sleep      func(ctx context.Context, d time.Duration) error
}

func DefaultBackoff() Backoff {
	return Backoff{MaxRetries: 5, Base: 2 * time.Second, Sleep: sleepCtx}
}

func (b Backoff) Delay(retry int) time.Duration {
	if retry < 1 {
		retry = 1
	}
	return b.Base << (retry - 1)
}

// next classifies err and either sleeps before the next attempt or returns
// the fatal error that ends the upload.
func (b Backoff) next(ctx context.Context, retries *int, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return fmt.Errorf("%w: %w", types.ErrUploadFatal, ctxErr)
	}
	if !types.IsTransientUpload(err) {
		return fmt.Errorf("%w: %w", types.ErrUploadFatal, err)
	}
	*retries++
	if *retries > b.MaxRetries {
		return fmt.Errorf("%w after %d retries: %w", types.ErrUploadFatal, b.MaxRetries, err)
	}
	sleep := b.Sleep
	if sleep == nil {
		sleep = sleepCtx
	}
	if err := sleep(ctx, b.Delay(*retries)); err != nil {
		return fmt.Errorf("%w: %w", types.ErrUploadFatal, err)
	}
	return nil
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
