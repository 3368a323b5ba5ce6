package gitapi

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fastPolicy(maxAttempts int) RetryPolicy {
	return RetryPolicy{Enabled: true, MaxAttempts: maxAttempts, InitialDelay: time.Millisecond}
}

func TestRetryDo_SucceedsAfterTransientFailures(t *testing.T) {
	attempts := 0
	val, err := retryDo(context.Background(), fastPolicy(3), func() (string, error) {
		attempts++
		if attempts < 3 {
			return "", &RemoteError{Status: 503, Op: "read tree"}
		}
		return "ok", nil
	})
	require.NoError(t, err)
	assert.Equal(t, "ok", val)
	assert.Equal(t, 3, attempts)
}

func TestRetryDo_SurfacesLastErrorAfterBudget(t *testing.T) {
	attempts := 0
	origErr := &RemoteError{Status: 503, Op: "create blob"}
	_, err := retryDo(context.Background(), fastPolicy(4), func() (int, error) {
		attempts++
		return 0, origErr
	})
	assert.Equal(t, 4, attempts)

	var re *RemoteError
	require.ErrorAs(t, err, &re)
	assert.Equal(t, 503, re.Status)
}

func TestRetryDo_NeverRetriesValidation(t *testing.T) {
	attempts := 0
	_, err := retryDo(context.Background(), fastPolicy(5), func() (int, error) {
		attempts++
		return 0, &RemoteError{Status: 422, Op: "create tree"}
	})
	assert.Equal(t, 1, attempts)
	assert.True(t, IsValidation(err))
}

func TestRetryDo_NeverRetriesAuth(t *testing.T) {
	for _, status := range []int{401, 403} {
		attempts := 0
		_, err := retryDo(context.Background(), fastPolicy(5), func() (int, error) {
			attempts++
			return 0, &RemoteError{Status: status, Op: "read ref"}
		})
		assert.Equal(t, 1, attempts, "status %d", status)
		assert.True(t, IsAuth(err), "status %d", status)
	}
}

func TestRetryDo_RetriesTransportErrors(t *testing.T) {
	attempts := 0
	_, err := retryDo(context.Background(), fastPolicy(2), func() (int, error) {
		attempts++
		return 0, errors.New("connection reset")
	})
	assert.Equal(t, 2, attempts)
	assert.ErrorContains(t, err, "connection reset")
}

func TestRetryDo_DisabledRunsOnce(t *testing.T) {
	attempts := 0
	_, err := retryDo(context.Background(), RetryPolicy{Enabled: false, MaxAttempts: 5}, func() (int, error) {
		attempts++
		return 0, &RemoteError{Status: 503}
	})
	assert.Equal(t, 1, attempts)
	assert.Error(t, err)
}

func TestRetryDo_ContextCancelStopsBackoff(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	policy := RetryPolicy{Enabled: true, MaxAttempts: 3, InitialDelay: time.Minute}
	done := make(chan error, 1)
	go func() {
		_, err := retryDo(ctx, policy, func() (int, error) {
			return 0, &RemoteError{Status: 500}
		})
		done <- err
	}()

	cancel()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(5 * time.Second):
		t.Fatal("retryDo did not observe cancellation")
	}
}
