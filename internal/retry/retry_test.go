package retry

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type httpErr struct{ code int }

func (e *httpErr) Error() string   { return fmt.Sprintf("status %d", e.code) }
func (e *httpErr) StatusCode() int { return e.code }

func newTestRunner(attempts int) (*Runner, *[]time.Duration) {
	var slept []time.Duration
	r := NewRunner(attempts, zerolog.Nop())
	r.Sleep = func(ctx context.Context, d time.Duration) error {
		slept = append(slept, d)
		return nil
	}
	return r, &slept
}

func TestDo_SucceedsFirstAttempt(t *testing.T) {
	r, slept := newTestRunner(3)
	calls := 0
	err := r.Do(context.Background(), "op", func(ctx context.Context) error {
		calls++
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 1, calls)
	assert.Empty(t, *slept)
}

func TestDo_RateLimitedBackoffScales(t *testing.T) {
	r, slept := newTestRunner(3)
	calls := 0
	err := r.Do(context.Background(), "op", func(ctx context.Context) error {
		calls++
		if calls < 3 {
			return &httpErr{code: 429}
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 3, calls)
	assert.Equal(t, []time.Duration{60 * time.Second, 120 * time.Second}, *slept)
}

func TestDo_TransientBackoffScales(t *testing.T) {
	r, slept := newTestRunner(3)
	calls := 0
	err := r.Do(context.Background(), "op", func(ctx context.Context) error {
		calls++
		if calls < 3 {
			return &httpErr{code: 503}
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, []time.Duration{2 * time.Second, 4 * time.Second}, *slept)
}

func TestDo_NetworkErrorUsesTransientBackoff(t *testing.T) {
	r, slept := newTestRunner(2)
	_ = r.Do(context.Background(), "op", func(ctx context.Context) error {
		return errors.New("connection refused")
	})
	assert.Equal(t, []time.Duration{2 * time.Second}, *slept)
}

func TestDo_ExhaustionAfterExactlyMaxAttempts(t *testing.T) {
	r, slept := newTestRunner(3)
	calls := 0
	err := r.Do(context.Background(), "chapter feed abc", func(ctx context.Context) error {
		calls++
		return &httpErr{code: 500}
	})
	require.Error(t, err)
	assert.Equal(t, 3, calls)
	// no sleep after the final attempt
	assert.Len(t, *slept, 2)

	var exhausted *ExhaustedError
	require.ErrorAs(t, err, &exhausted)
	assert.Equal(t, "chapter feed abc", exhausted.Label)
	assert.Equal(t, 3, exhausted.Attempts)

	var sc *httpErr
	require.ErrorAs(t, err, &sc)
	assert.Equal(t, 500, sc.code)
}

func TestDo_ContextCancelledDuringBackoff(t *testing.T) {
	r := NewRunner(3, zerolog.Nop())
	r.Sleep = func(ctx context.Context, d time.Duration) error {
		return context.Canceled
	}
	calls := 0
	err := r.Do(context.Background(), "op", func(ctx context.Context) error {
		calls++
		return errors.New("boom")
	})
	require.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, calls)
}

func TestRateLimited(t *testing.T) {
	assert.True(t, RateLimited(&httpErr{code: 429}))
	assert.True(t, RateLimited(fmt.Errorf("wrapped: %w", &httpErr{code: 429})))
	assert.False(t, RateLimited(&httpErr{code: 500}))
	assert.False(t, RateLimited(errors.New("connection reset")))
}
