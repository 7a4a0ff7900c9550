// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package ingestion

import (
	"context"
	"errors"
	"time"
)

type permanentError struct {
	err error
}

func (e *permanentError) Error() string { return e.err.Error() }
func (e *permanentError) Unwrap() error { return e.err }

// Permanent marks err as not worth retrying. RetryPolicy.Do returns it
// immediately, unwrapped.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}

// RetryPolicy controls how a failed flush is attempted again.
type RetryPolicy struct {
	// MaxAttempts counts the first try. One means no retries.
	MaxAttempts int

	// BaseDelay is the wait after the first failure; it doubles after each
	// later one.
	BaseDelay time.Duration

	// OnRetry, if set, is called before each wait with the failed attempt
	// number, the upcoming delay and the failure.
	OnRetry func(attempt int, delay time.Duration, err error)
}

// NoRetry makes a single attempt.
var NoRetry = RetryPolicy{MaxAttempts: 1}

// Delay returns the wait that follows failed attempt n (1-based).
func (r RetryPolicy) Delay(n int) time.Duration {
	return r.BaseDelay << (n - 1)
}

// Do runs op until it succeeds, returns a Permanent error, uses up
// MaxAttempts or ctx is done. It reports how many attempts ran.
func (r RetryPolicy) Do(ctx context.Context, op func() error) (int, error) {
	if r.MaxAttempts <= 0 {
		return 0, ErrInvalidMaxAttempts
	}

	var err error
	for attempt := 1; attempt <= r.MaxAttempts; attempt++ {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return attempt - 1, ctxErr
		}

		err = op()
		if err == nil {
			return attempt, nil
		}
		var permanent *permanentError
		if errors.As(err, &permanent) {
			return attempt, permanent.err
		}
		if attempt == r.MaxAttempts {
			return attempt, err
		}

		delay := r.Delay(attempt)
		if r.OnRetry != nil {
			r.OnRetry(attempt, delay, err)
		}
		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return attempt, ctx.Err()
		case <-timer.C:
		}
	}
	return r.MaxAttempts, err
}
