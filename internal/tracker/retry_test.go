package tracker

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"extrinsicScope/internal/chain"
)

type codeError struct {
	code int
}

func (e codeError) Error() string  { return fmt.Sprintf("rpc error %d", e.code) }
func (e codeError) ErrorCode() int { return e.code }

func TestReceiptRetryPollsUntilIncluded(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	retry := newReceiptRetry(5, time.Millisecond, zap.New(core))

	calls := 0
	err := retry.do(context.Background(), func(context.Context) error {
		calls++
		if calls < 3 {
			return fmt.Errorf("fetch: %w", chain.ErrReceiptNotFound)
		}
		return nil
	})
	require.NoError(t, err)
	require.Equal(t, 3, calls)
	require.Equal(t, 2, logs.FilterMessage("receipt not available, retrying").Len())
}

func TestReceiptRetryGivesUpAfterMaxRetries(t *testing.T) {
	retry := newReceiptRetry(2, time.Millisecond, nil)

	calls := 0
	err := retry.do(context.Background(), func(context.Context) error {
		calls++
		return chain.ErrReceiptNotFound
	})
	require.ErrorIs(t, err, chain.ErrReceiptNotFound)
	require.Equal(t, 3, calls)
}

func TestReceiptRetryStopsOnRejectedRequest(t *testing.T) {
	retry := newReceiptRetry(5, time.Millisecond, nil)

	calls := 0
	err := retry.do(context.Background(), func(context.Context) error {
		calls++
		return codeError{code: -32601}
	})
	require.Error(t, err)
	require.Equal(t, 1, calls)

	calls = 0
	err = retry.do(context.Background(), func(context.Context) error {
		calls++
		if calls == 1 {
			return codeError{code: -32000}
		}
		return nil
	})
	require.NoError(t, err)
	require.Equal(t, 2, calls)
}

func TestReceiptRetryHonorsCancel(t *testing.T) {
	retry := newReceiptRetry(10, time.Hour, nil)
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	err := retry.do(ctx, func(context.Context) error {
		return errors.New("connection refused")
	})
	require.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestReceiptRetryStopsWhenCancelledDuringAttempt(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	attempts := 0
	err := newReceiptRetry(5, time.Hour, nil).do(ctx, func(context.Context) error {
		attempts++
		cancel()
		return chain.ErrReceiptNotFound
	})
	require.ErrorIs(t, err, chain.ErrReceiptNotFound)
	require.Equal(t, 1, attempts)
}

func TestReceiptRetryDelayIsCapped(t *testing.T) {
	retry := newReceiptRetry(50, 100*time.Millisecond, nil)

	require.Equal(t, 100*time.Millisecond, retry.delay(0))
	require.Equal(t, 200*time.Millisecond, retry.delay(1))
	require.Equal(t, 3200*time.Millisecond, retry.delay(5))
	require.Equal(t, maxRetryDelay, retry.delay(6))
	require.Equal(t, maxRetryDelay, retry.delay(40))

	require.Equal(t, defaultRetryDelay, newReceiptRetry(0, 0, nil).delay(0))
}
