package upstream

import (
	"context"
	"time"
)

// retry runs fn once with the given timeout and, on failure, once more with
// the timeout doubled. The retry budget is fixed at one; callers degrade to
// a default value when both attempts fail. Shared by the image and stock
// fetches so the policy stays in one place.
func retry[T any](ctx context.Context, timeout time.Duration, fn func(ctx context.Context, timeout time.Duration) (T, error)) (T, error) {
	v, err := fn(ctx, timeout)
	if err == nil {
		return v, nil
	}
	if ctx.Err() != nil {
		// The request itself is gone; a second attempt cannot succeed.
		return v, err
	}
	return fn(ctx, 2*timeout)
}
