package tracker

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"go.uber.org/zap"

	"extrinsicScope/internal/events"
	"extrinsicScope/internal/model"
	"extrinsicScope/internal/outcome"
	"extrinsicScope/internal/storage"
	"extrinsicScope/internal/watch"
)

// Config holds the settings of one tracking run.
type Config struct {
	TxHash       common.Hash
	Extrinsic    hexutil.Bytes
	WaitEvent    string
	WaitFields   map[string]string
	MaxRetries   int
	RetryBackoff time.Duration
}

// Waiting reports whether the run ends with a wait loop.
func (c Config) Waiting() bool {
	return c.WaitEvent != "" || len(c.WaitFields) > 0
}

// ChainAPI is the node surface the tracker needs.
type ChainAPI interface {
	FetchReceipt(ctx context.Context, txHash common.Hash) (model.Receipt, error)
	SubmitExtrinsic(ctx context.Context, extrinsic hexutil.Bytes) (common.Hash, error)
}

// SubscribeFunc opens the node's event stream.
type SubscribeFunc func(ctx context.Context) (watch.Subscription, error)

// Versioner reports the spec version of the active metadata.
type Versioner interface {
	Version() uint32
}

// Recorder receives stored outcomes and wait results.
type Recorder interface {
	ObserveOutcome(record model.OutcomeRecord)
	ObserveWait(state string)
}

// Deps are the collaborators of a Tracker. Storage, Recorder and Subscribe
// are optional; Subscribe is required when the config waits for an event.
type Deps struct {
	Chain     ChainAPI
	Subscribe SubscribeFunc
	Decoder   *events.Decoder
	Resolver  *outcome.Resolver
	Versions  Versioner
	Storage   storage.Storage
	Recorder  Recorder
}

// Result summarizes a tracking run.
type Result struct {
	TxHash    common.Hash
	Outcome   outcome.Outcome
	Record    model.OutcomeRecord
	WaitState watch.State
}

// Tracker follows one extrinsic from submission to its resolved outcome.
type Tracker struct {
	cfg    Config
	deps   Deps
	logger *zap.Logger
}

func New(cfg Config, deps Deps, logger *zap.Logger) *Tracker {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Tracker{cfg: cfg, deps: deps, logger: logger}
}

// Run resolves the extrinsic and stores its outcome. A failed dispatch is
// returned as *outcome.ModuleError or *outcome.RuntimeError alongside the
// populated Result; the wait loop only runs after a successful dispatch.
func (t *Tracker) Run(ctx context.Context) (Result, error) {
	if t.deps.Chain == nil {
		return Result{}, fmt.Errorf("chain client is nil")
	}
	if t.deps.Decoder == nil || t.deps.Resolver == nil {
		return Result{}, fmt.Errorf("decoder and resolver are required")
	}
	if len(t.cfg.Extrinsic) == 0 && t.cfg.TxHash == (common.Hash{}) {
		return Result{}, fmt.Errorf("tx hash or extrinsic is required")
	}

	// The subscription is opened before submission so the extrinsic's own
	// block is not missed.
	var sub watch.Subscription
	if t.cfg.Waiting() {
		if t.deps.Subscribe == nil {
			return Result{}, fmt.Errorf("waiting requires an event subscription")
		}
		var err error
		sub, err = t.deps.Subscribe(ctx)
		if err != nil {
			return Result{}, fmt.Errorf("subscribe events: %w", err)
		}
	}
	release := func() {
		if sub != nil {
			sub.Unsubscribe()
			sub = nil
		}
	}
	defer release()

	txHash := t.cfg.TxHash
	if len(t.cfg.Extrinsic) > 0 {
		hash, err := t.deps.Chain.SubmitExtrinsic(ctx, t.cfg.Extrinsic)
		if err != nil {
			return Result{}, fmt.Errorf("submit extrinsic: %w", err)
		}
		txHash = hash
		t.logger.Info("extrinsic submitted", zap.String("tx_hash", txHash.Hex()))
	}
	result := Result{TxHash: txHash}

	receipt, err := t.fetchReceiptWithRetry(ctx, txHash)
	if err != nil {
		return result, fmt.Errorf("fetch receipt %s: %w", txHash.Hex(), err)
	}

	bundle, err := events.NewBundle(t.deps.Decoder, receipt)
	if err != nil {
		return result, fmt.Errorf("decode receipt %s: %w", txHash.Hex(), err)
	}

	out, dispatchErr := t.deps.Resolver.Outcome(bundle)
	if dispatchErr != nil && !isDispatchError(dispatchErr) {
		return result, fmt.Errorf("resolve %s: %w", txHash.Hex(), dispatchErr)
	}
	result.Outcome = out
	result.Record = outcome.Record(bundle, out, dispatchErr, t.version())

	if err := t.store(ctx, result.Record); err != nil {
		return result, err
	}
	t.logger.Info("outcome resolved",
		zap.String("tx_hash", txHash.Hex()),
		zap.Uint64("block_number", bundle.BlockNumber),
		zap.String("status", out.Status),
		zap.String("pallet", result.Record.Pallet),
		zap.String("error", result.Record.Error),
	)
	if dispatchErr != nil {
		return result, dispatchErr
	}

	if sub == nil {
		return result, nil
	}
	predicate := watch.MatchEvent(t.cfg.WaitEvent, t.cfg.WaitFields)
	waitSub := sub
	sub = nil
	state, err := watch.WaitFor(ctx, waitSub, t.deps.Decoder, predicate, t.logger)
	result.WaitState = state
	if t.deps.Recorder != nil && err == nil {
		t.deps.Recorder.ObserveWait(state.String())
	}
	if err != nil {
		return result, fmt.Errorf("wait for %s: %w", t.cfg.WaitEvent, err)
	}
	t.logger.Info("wait finished", zap.String("event", t.cfg.WaitEvent), zap.Stringer("state", state))
	return result, nil
}

func (t *Tracker) fetchReceiptWithRetry(ctx context.Context, txHash common.Hash) (model.Receipt, error) {
	var receipt model.Receipt
	retry := newReceiptRetry(t.cfg.MaxRetries, t.cfg.RetryBackoff, t.logger.With(zap.String("tx_hash", txHash.Hex())))
	err := retry.do(ctx, func(ctx context.Context) error {
		var err error
		receipt, err = t.deps.Chain.FetchReceipt(ctx, txHash)
		return err
	})
	return receipt, err
}

func (t *Tracker) store(ctx context.Context, record model.OutcomeRecord) error {
	if t.deps.Storage != nil {
		if err := t.deps.Storage.PutOutcomeBatch(ctx, []model.OutcomeRecord{record}); err != nil {
			return fmt.Errorf("store outcome: %w", err)
		}
	}
	if t.deps.Recorder != nil {
		t.deps.Recorder.ObserveOutcome(record)
	}
	return nil
}

func (t *Tracker) version() uint32 {
	if t.deps.Versions == nil {
		return 0
	}
	return t.deps.Versions.Version()
}

func isDispatchError(err error) bool {
	var moduleErr *outcome.ModuleError
	var runtimeErr *outcome.RuntimeError
	return errors.As(err, &moduleErr) || errors.As(err, &runtimeErr)
}
