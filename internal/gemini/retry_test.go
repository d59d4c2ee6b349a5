package gemini

import (
	"context"
	"errors"
	"testing"
	"time"

	"golang.org/x/time/rate"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nexobotics/nova/internal/log"
)

func TestRetryableError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"rate limit", errors.New("googleai: rate limit exceeded"), true},
		{"quota", errors.New("Quota Exceeded for project"), true},
		{"http 429", errors.New("googleapi: Error 429"), true},
		{"http 500", errors.New("server returned 500"), true},
		{"http 503", errors.New("503 Service Unavailable"), true},
		{"timeout", errors.New("context deadline exceeded: timeout"), true},
		{"connection reset", errors.New("read: connection reset by peer"), true},
		{"invalid argument", errors.New("invalid argument: bad request"), false},
		{"auth", errors.New("API key not valid"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, retryableError(tt.err))
		})
	}
}

// testClient returns a Client with fast retry timings for tests.
// Genkit and embedder are nil; only withRetry is exercised.
func testClient() *Client {
	return &Client{
		retryConfig: RetryConfig{
			MaxRetries:      2,
			InitialInterval: time.Millisecond,
			MaxInterval:     5 * time.Millisecond,
		},
		limiter: rate.NewLimiter(rate.Inf, 1),
		logger:  log.NewNop(),
	}
}

func TestWithRetry_SucceedsFirstAttempt(t *testing.T) {
	c := testClient()
	calls := 0

	err := c.withRetry(context.Background(), "op", func(context.Context) error {
		calls++
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, 1, calls)
}

func TestWithRetry_RetriesTransientError(t *testing.T) {
	c := testClient()
	calls := 0

	err := c.withRetry(context.Background(), "op", func(context.Context) error {
		calls++
		if calls < 3 {
			return errors.New("503 unavailable")
		}
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestWithRetry_FailsFastOnPermanentError(t *testing.T) {
	c := testClient()
	calls := 0
	permanent := errors.New("invalid argument")

	err := c.withRetry(context.Background(), "op", func(context.Context) error {
		calls++
		return permanent
	})

	require.Error(t, err)
	assert.ErrorIs(t, err, permanent)
	assert.Equal(t, 1, calls)
}

func TestWithRetry_ExhaustsRetries(t *testing.T) {
	c := testClient()
	calls := 0

	err := c.withRetry(context.Background(), "op", func(context.Context) error {
		calls++
		return errors.New("429 too many requests")
	})

	require.Error(t, err)
	assert.Equal(t, 3, calls) // initial + 2 retries
	assert.Contains(t, err.Error(), "after 2 retries")
}

func TestWithRetry_CallTimeoutUnblocksHungCall(t *testing.T) {
	c := testClient()
	c.callTimeout = 10 * time.Millisecond
	calls := 0

	start := time.Now()
	err := c.withRetry(context.Background(), "generate", func(ctx context.Context) error {
		calls++
		<-ctx.Done() // simulate a provider that never responds
		return ctx.Err()
	})

	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, 3, calls) // each hung attempt times out and retries
	assert.Less(t, time.Since(start), 2*time.Second)
}

func TestWithRetry_ContextCancellationAbortsBackoff(t *testing.T) {
	c := testClient()
	c.retryConfig.InitialInterval = time.Minute // force a long sleep

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)

	go func() {
		done <- c.withRetry(ctx, "op", func(context.Context) error {
			return errors.New("503 unavailable")
		})
	}()

	cancel()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("withRetry did not return after context cancellation")
	}
}
