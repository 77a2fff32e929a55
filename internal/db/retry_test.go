package db

import (
	"context"
	"testing"
	"time"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBackoff_Delay(t *testing.T) {
	b := Backoff{Initial: 100 * time.Millisecond, Max: 300 * time.Millisecond}.withDefaults()
	b.Jitter = 0

	tests := []struct {
		attempt int
		want    time.Duration
	}{
		{0, 100 * time.Millisecond},
		{1, 200 * time.Millisecond},
		{2, 300 * time.Millisecond},
		{5, 300 * time.Millisecond},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, b.delay(tt.attempt), "attempt %d", tt.attempt)
	}
}

func TestBackoff_JitterBounds(t *testing.T) {
	b := Backoff{Initial: 100 * time.Millisecond, Jitter: 0.5}.withDefaults()
	for range 100 {
		d := b.delay(0)
		assert.GreaterOrEqual(t, d, 50*time.Millisecond)
		assert.LessOrEqual(t, d, 150*time.Millisecond)
	}
}

func TestRetry_SucceedsAfterFailures(t *testing.T) {
	calls := 0
	v, err := retry(context.Background(), Backoff{Attempts: 3, Initial: time.Millisecond}, "test",
		func(context.Context) (int, error) {
			calls++
			if calls < 3 {
				return 0, eris.New("unreachable")
			}
			return 42, nil
		})
	require.NoError(t, err)
	assert.Equal(t, 42, v)
	assert.Equal(t, 3, calls)
}

func TestRetry_GivesUp(t *testing.T) {
	calls := 0
	_, err := retry(context.Background(), Backoff{Attempts: 2, Initial: time.Millisecond}, "test",
		func(context.Context) (int, error) {
			calls++
			return 0, eris.New("down")
		})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "down")
	assert.Equal(t, 2, calls)
}

func TestRetry_StopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	_, err := retry(ctx, Backoff{Attempts: 5, Initial: time.Hour}, "test",
		func(context.Context) (int, error) {
			calls++
			cancel()
			return 0, eris.New("down")
		})
	require.Error(t, err)
	assert.Equal(t, 1, calls)
}

func TestConnect_BadURL(t *testing.T) {
	_, err := Connect(context.Background(), "://not a url", 1)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "db: parse config")
}
