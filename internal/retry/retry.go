package retry

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog"
)

// The two backoff scales. The source's rate limiter works on minute-scale
// windows, so a 429 waits much longer than a transient network blip;
// collapsing the two would either hammer the limiter or stall recovery.
const (
	rateLimitStep = 60 * time.Second
	transientStep = 2 * time.Second
)

// statusCoder matches errors that carry an upstream HTTP status
// (e.g. *mangadex.StatusError), without importing the client package.
type statusCoder interface {
	StatusCode() int
}

// ExhaustedError is returned after all attempts failed. Label identifies the
// external call so the orchestrator can log which one gave up.
type ExhaustedError struct {
	Label    string
	Attempts int
	Err      error
}

func (e *ExhaustedError) Error() string {
	return fmt.Sprintf("%s: retries exhausted after %d attempts: %v", e.Label, e.Attempts, e.Err)
}

func (e *ExhaustedError) Unwrap() error { return e.Err }

// Runner retries fallible operations with attempt-scaled backoff.
type Runner struct {
	MaxAttempts int
	Log         zerolog.Logger

	// Sleep is replaced in tests. Nil means a context-aware wait.
	Sleep func(ctx context.Context, d time.Duration) error
}

func NewRunner(maxAttempts int, log zerolog.Logger) *Runner {
	return &Runner{MaxAttempts: maxAttempts, Log: log}
}

// Do runs op up to MaxAttempts times. On the final attempt the failure is
// wrapped in *ExhaustedError immediately, with no trailing sleep. Between
// attempts it waits rateLimitStep×attempt after a 429 and
// transientStep×attempt after anything else.
func (r *Runner) Do(ctx context.Context, label string, op func(context.Context) error) error {
	var lastErr error
	for attempt := 1; attempt <= r.MaxAttempts; attempt++ {
		lastErr = op(ctx)
		if lastErr == nil {
			return nil
		}
		if attempt == r.MaxAttempts {
			break
		}

		delay := backoffFor(lastErr, attempt)
		r.Log.Warn().
			Str("op", label).
			Int("attempt", attempt).
			Dur("backoff", delay).
			Err(lastErr).
			Msg("retrying after failure")

		if err := r.sleep(ctx, delay); err != nil {
			return fmt.Errorf("%s: %w", label, err)
		}
	}
	return &ExhaustedError{Label: label, Attempts: r.MaxAttempts, Err: lastErr}
}

// RateLimited reports whether err is an upstream HTTP 429.
func RateLimited(err error) bool {
	var sc statusCoder
	return errors.As(err, &sc) && sc.StatusCode() == http.StatusTooManyRequests
}

func backoffFor(err error, attempt int) time.Duration {
	if RateLimited(err) {
		return time.Duration(attempt) * rateLimitStep
	}
	return time.Duration(attempt) * transientStep
}

func (r *Runner) sleep(ctx context.Context, d time.Duration) error {
	if r.Sleep != nil {
		return r.Sleep(ctx, d)
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
