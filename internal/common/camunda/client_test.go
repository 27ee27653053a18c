package camunda

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"shopping-assistant/internal/common/logger"
)

func fastRetry() RetryConfig {
	return RetryConfig{MaxRetries: 3, BaseDelay: time.Millisecond, MaxDelay: 4 * time.Millisecond}
}

// ==========================
// Retry
// ==========================

func TestRetry_SucceedsAfterTransientFailures(t *testing.T) {
	attempts := 0
	err := Retry(context.Background(), fastRetry(), logger.NewTestLogger(t), "probe", func(ctx context.Context) error {
		attempts++
		if attempts < 3 {
			return errors.New("rpc error: code = Unavailable desc = connection refused")
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 3, attempts)
}

func TestRetry_StopsOnPermanentError(t *testing.T) {
	attempts := 0
	err := Retry(context.Background(), fastRetry(), logger.NewNoOpLogger(), "probe", func(ctx context.Context) error {
		attempts++
		return errors.New("permission denied")
	})
	assert.ErrorContains(t, err, "probe failed: permission denied")
	assert.Equal(t, 1, attempts)
}

func TestRetry_GivesUpAfterMaxRetries(t *testing.T) {
	attempts := 0
	err := Retry(context.Background(), fastRetry(), logger.NewNoOpLogger(), "probe", func(ctx context.Context) error {
		attempts++
		return errors.New("i/o timeout")
	})
	assert.Error(t, err)
	assert.Equal(t, 4, attempts)
}

func TestRetry_HonoursContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cfg := RetryConfig{MaxRetries: 5, BaseDelay: time.Hour, MaxDelay: time.Hour}

	err := Retry(ctx, cfg, logger.NewNoOpLogger(), "probe", func(ctx context.Context) error {
		cancel()
		return errors.New("unavailable")
	})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestBackoff(t *testing.T) {
	cfg := RetryConfig{BaseDelay: time.Second, MaxDelay: 10 * time.Second}
	assert.Equal(t, time.Second, Backoff(cfg, 0))
	assert.Equal(t, 4*time.Second, Backoff(cfg, 2))
	assert.Equal(t, 10*time.Second, Backoff(cfg, 4))
	assert.Equal(t, 10*time.Second, Backoff(cfg, 70))
}

func TestIsRetryable(t *testing.T) {
	tests := []struct {
		msg  string
		want bool
	}{
		{"dial tcp 127.0.0.1:26500: connect: connection refused", true},
		{"context deadline exceeded", true},
		{"rpc error: code = Unavailable", true},
		{"rpc error: code = NotFound desc = no such job", false},
		{"permission denied", false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, IsRetryable(errors.New(tt.msg)), tt.msg)
	}
}
