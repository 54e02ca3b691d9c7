package watch

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"extrinsicScope/internal/events"
	"extrinsicScope/internal/model"
)

// State is the terminal state of a wait loop.
type State int

const (
	Waiting State = iota
	Matched
	Failed
	Closed
)

func (s State) String() string {
	switch s {
	case Waiting:
		return "waiting"
	case Matched:
		return "matched"
	case Failed:
		return "failed"
	case Closed:
		return "closed"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Subscription is a live, open-ended stream of block event batches.
// Err is closed when the subscription ends normally and carries a value when
// the transport fails.
type Subscription interface {
	Batches() <-chan *model.EventBatch
	Err() <-chan error
	Unsubscribe()
}

// Predicate selects the domain event a caller is waiting for.
type Predicate func(events.DomainEvent) bool

// WaitError reports a transport failure while pulling the next batch.
type WaitError struct {
	Err error
}

func (e *WaitError) Error() string {
	return fmt.Sprintf("event subscription: %v", e.Err)
}

func (e *WaitError) Unwrap() error {
	return e.Err
}

// WaitFor consumes sub until a domain event satisfies predicate, a system
// ExtrinsicFailed event is seen, or the subscription ends. The failure case
// ends the wait without an error; it is reported by the outcome resolver.
// A subscription closing without a match is not an error either; callers that
// need a deadline pass one through ctx. WaitFor owns sub and always
// unsubscribes before returning.
func WaitFor(ctx context.Context, sub Subscription, dec *events.Decoder, predicate Predicate, logger *zap.Logger) (State, error) {
	if sub == nil {
		return Waiting, fmt.Errorf("subscription is nil")
	}
	defer sub.Unsubscribe()

	if dec == nil {
		return Waiting, fmt.Errorf("decoder is nil")
	}
	if predicate == nil {
		return Waiting, fmt.Errorf("predicate is nil")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	for {
		select {
		case <-ctx.Done():
			return Waiting, ctx.Err()
		case err, ok := <-sub.Err():
			// Batches forwarded before the subscription ended may still be
			// buffered; they are scanned before the end is reported.
			if state, done, derr := drainBatches(sub, dec, predicate, logger); done || derr != nil {
				return state, derr
			}
			if !ok || err == nil {
				logger.Info("event subscription closed")
				return Closed, nil
			}
			return Waiting, &WaitError{Err: err}
		case raw, ok := <-sub.Batches():
			if !ok {
				logger.Info("event subscription closed")
				return Closed, nil
			}
			if state, done, err := scanBatch(dec, raw, predicate, logger); done || err != nil {
				return state, err
			}
		}
	}
}

func drainBatches(sub Subscription, dec *events.Decoder, predicate Predicate, logger *zap.Logger) (State, bool, error) {
	for {
		select {
		case raw, ok := <-sub.Batches():
			if !ok {
				return Waiting, false, nil
			}
			if state, done, err := scanBatch(dec, raw, predicate, logger); done || err != nil {
				return state, done, err
			}
		default:
			return Waiting, false, nil
		}
	}
}

// scanBatch decodes the batch record by record and stops at the first
// ExtrinsicFailed or matching domain event. Records after that point are
// never decoded.
func scanBatch(dec *events.Decoder, raw *model.EventBatch, predicate Predicate, logger *zap.Logger) (State, bool, error) {
	if raw == nil {
		return Waiting, false, nil
	}
	blockNumber := uint64(raw.BlockNumber)
	for i, data := range raw.Events {
		rec, err := dec.DecodeRecordAt(i, data)
		if err != nil {
			return Waiting, false, fmt.Errorf("block %d: %w", blockNumber, err)
		}

		if rec.Raw.IsExtrinsicFailed() {
			logger.Info("extrinsic failed while waiting",
				zap.Uint64("block_number", blockNumber),
				zap.Uint32("extrinsic_index", rec.Raw.ExtrinsicIndex),
			)
			return Failed, true, nil
		}

		domain, ok := rec.Event.(events.DomainEvent)
		if !ok {
			continue
		}
		logger.Info("domain event",
			zap.Uint64("block_number", blockNumber),
			zap.String("pallet", domain.PalletName),
			zap.String("event", domain.Name),
			zap.Any("fields", fieldMap(domain.Fields)),
		)
		if predicate(domain) {
			return Matched, true, nil
		}
	}
	return Waiting, false, nil
}

func fieldMap(fields []events.FieldValue) map[string]string {
	out := make(map[string]string, len(fields))
	for _, f := range fields {
		out[f.Name] = events.FormatValue(f.Value)
	}
	return out
}
