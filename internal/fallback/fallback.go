package fallback

import (
	"context"
	"errors"
)

var ErrNoCandidates = errors.New("no candidates to try")

// TryInOrder calls fn for each candidate until one succeeds. It returns the
// first success and the index of the candidate that produced it. When every
// candidate fails it returns the last error. onFail, if set, sees every failed
// attempt.
func TryInOrder[C, T any](ctx context.Context, candidates []C, fn func(context.Context, C) (T, error), onFail func(int, error)) (T, int, error) {
	var zero T
	if len(candidates) == 0 {
		return zero, -1, ErrNoCandidates
	}

	var lastErr error
	for i, c := range candidates {
		if err := ctx.Err(); err != nil {
			return zero, -1, err
		}
		out, err := fn(ctx, c)
		if err == nil {
			return out, i, nil
		}
		lastErr = err
		if onFail != nil {
			onFail(i, err)
		}
	}
	return zero, -1, lastErr
}
