package tracker

import (
	"context"
	"errors"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/rpc"
	"go.uber.org/zap"
)

const (
	defaultRetryDelay = 100 * time.Millisecond
	maxRetryDelay     = 5 * time.Second
)

// JSON-RPC codes that will not change on a second attempt.
var permanentRPCCodes = map[int]struct{}{
	-32700: {}, // parse error
	-32600: {}, // invalid request
	-32601: {}, // method not found
	-32602: {}, // invalid params
}

// receiptRetry polls for the receipt of an extrinsic that may not be included
// yet. Missing receipts and transport failures are retried with a doubling,
// capped delay; anything the node rejects outright is returned at once.
type receiptRetry struct {
	maxRetries int
	baseDelay  time.Duration
	maxDelay   time.Duration
	logger     *zap.Logger
}

func newReceiptRetry(maxRetries int, baseDelay time.Duration, logger *zap.Logger) receiptRetry {
	if maxRetries < 0 {
		maxRetries = 0
	}
	if baseDelay <= 0 {
		baseDelay = defaultRetryDelay
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return receiptRetry{maxRetries: maxRetries, baseDelay: baseDelay, maxDelay: maxRetryDelay, logger: logger}
}

// delay returns the wait before retry number attempt, counted from zero.
func (r receiptRetry) delay(attempt int) time.Duration {
	d := r.baseDelay
	for i := 0; i < attempt && d < r.maxDelay; i++ {
		d *= 2
	}
	if d > r.maxDelay {
		return r.maxDelay
	}
	return d
}

func (r receiptRetry) do(ctx context.Context, fn func(context.Context) error) error {
	for attempt := 0; ; attempt++ {
		err := fn(ctx)
		if err == nil {
			return nil
		}
		if attempt >= r.maxRetries || ctx.Err() != nil || !retryable(err) {
			return err
		}

		delay := r.delay(attempt)
		r.logger.Debug("receipt not available, retrying",
			zap.Int("attempt", attempt+1),
			zap.Duration("delay", delay),
			zap.Error(err),
		)

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}

func retryable(err error) bool {
	if errors.Is(err, ethereum.NotFound) {
		return true
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var rpcErr rpc.Error
	if errors.As(err, &rpcErr) {
		_, permanent := permanentRPCCodes[rpcErr.ErrorCode()]
		return !permanent
	}
	return true
}
