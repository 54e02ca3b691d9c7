package outcome

import (
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"extrinsicScope/internal/events"
	"extrinsicScope/internal/metadata"
	"extrinsicScope/internal/model"
)

// ErrorLookup resolves module errors from the chain metadata.
type ErrorLookup interface {
	LookupError(palletIndex, errorIndex uint8) (metadata.ErrorDetails, bool)
}

// CostObserver receives the dispatch info of every terminal event.
type CostObserver interface {
	ObserveCost(status string, info events.DispatchInfo)
}

// Outcome is the terminal state found in a bundle.
type Outcome struct {
	Status       string
	DispatchInfo events.DispatchInfo
}

// Resolver correlates an extrinsic's events with its outcome.
type Resolver struct {
	errors   ErrorLookup
	observer CostObserver
	logger   *zap.Logger
}

func NewResolver(lookup ErrorLookup, observer CostObserver, logger *zap.Logger) *Resolver {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Resolver{errors: lookup, observer: observer, logger: logger}
}

// Resolve returns the bundle when the extrinsic succeeded or when the bundle
// carries no terminal event, and a *ModuleError or *RuntimeError when it failed.
func (r *Resolver) Resolve(bundle *events.Bundle) (*events.Bundle, error) {
	if _, err := r.Outcome(bundle); err != nil {
		return nil, err
	}
	return bundle, nil
}

// Outcome scans the bundle once and stops at the first terminal event.
// Records are resolved one at a time, so records after the terminal event are
// never decoded. A record the metadata does not know cannot be a terminal
// event and is passed over.
func (r *Resolver) Outcome(bundle *events.Bundle) (Outcome, error) {
	if bundle == nil {
		return Outcome{}, fmt.Errorf("bundle is nil")
	}

	for i := 0; i < bundle.Len(); i++ {
		raw, err := bundle.Raw(i)
		if errors.Is(err, events.ErrUnknownEvent) {
			r.logger.Debug("skip unknown event", zap.String("tx_hash", bundle.TxHash.Hex()), zap.Error(err))
			continue
		}
		if err != nil {
			return Outcome{}, err
		}
		if !raw.IsExtrinsicFailed() && !raw.IsExtrinsicSuccess() {
			continue
		}

		rec, err := bundle.Record(i)
		if err != nil {
			return Outcome{}, err
		}
		switch {
		case rec.Raw.IsExtrinsicFailed():
			failed, ok := rec.Event.(events.ExtrinsicFailed)
			if !ok {
				return Outcome{}, unexpectedEvent(rec)
			}
			out := Outcome{Status: model.StatusFailed, DispatchInfo: failed.DispatchInfo}
			r.captureDispatchInfo(bundle, out)

			// The typed view may not expose the raw module index, so the code
			// is read from the undecoded payload.
			code, err := events.DecodeDispatchError(rec.Raw.Data)
			if err != nil {
				return out, &events.DecodeError{Index: rec.Raw.Index, Pallet: rec.Raw.Pallet, Variant: rec.Raw.Variant, Err: err}
			}
			return out, r.dispatchError(code)

		default:
			success, ok := rec.Event.(events.ExtrinsicSuccess)
			if !ok {
				return Outcome{}, unexpectedEvent(rec)
			}
			out := Outcome{Status: model.StatusSuccess, DispatchInfo: success.DispatchInfo}
			r.captureDispatchInfo(bundle, out)
			return out, nil
		}
	}

	r.logger.Warn("no terminal event for extrinsic",
		zap.String("tx_hash", bundle.TxHash.Hex()),
		zap.Uint64("block_number", bundle.BlockNumber),
		zap.Int("events", bundle.Len()),
	)
	return Outcome{Status: model.StatusUnknown}, nil
}

func (r *Resolver) dispatchError(code events.DispatchError) error {
	module, ok := code.ModuleError()
	if !ok || r.errors == nil {
		return &RuntimeError{Code: code}
	}
	details, ok := r.errors.LookupError(module.PalletIndex, module.ErrorIndex())
	if !ok {
		return &RuntimeError{Code: code}
	}
	return &ModuleError{
		Pallet:      details.Pallet,
		Name:        details.Error,
		Description: details.Description,
		Data:        module,
	}
}

func (r *Resolver) captureDispatchInfo(bundle *events.Bundle, out Outcome) {
	r.logger.Info("weight cost",
		zap.String("tx_hash", bundle.TxHash.Hex()),
		zap.String("status", out.Status),
		zap.Uint64("ref_time", out.DispatchInfo.Weight.RefTime),
		zap.Uint64("proof_size", out.DispatchInfo.Weight.ProofSize),
		zap.Stringer("class", out.DispatchInfo.Class),
		zap.Bool("pays_fee", out.DispatchInfo.PaysFee),
	)
	if r.observer != nil {
		r.observer.ObserveCost(out.Status, out.DispatchInfo)
	}
}

func unexpectedEvent(rec events.EventRecord) error {
	return &events.DecodeError{
		Index:   rec.Raw.Index,
		Pallet:  rec.Raw.Pallet,
		Variant: rec.Raw.Variant,
		Err:     fmt.Errorf("unexpected typed event %T", rec.Event),
	}
}

// Record builds the stored form of a resolved outcome.
func Record(bundle *events.Bundle, out Outcome, err error, metadataVersion uint32) model.OutcomeRecord {
	record := model.OutcomeRecord{
		Status:          out.Status,
		RefTime:         out.DispatchInfo.Weight.RefTime,
		ProofSize:       out.DispatchInfo.Weight.ProofSize,
		MetadataVersion: metadataVersion,
		ResolvedAt:      time.Now().UTC().Format(time.RFC3339Nano),
	}
	if out.Status != model.StatusUnknown {
		record.DispatchClass = out.DispatchInfo.Class.String()
	}
	if bundle != nil {
		record.TxHash = bundle.TxHash.Hex()
		record.BlockHash = bundle.BlockHash.Hex()
		record.BlockNumber = bundle.BlockNumber
		record.ExtrinsicIndex = bundle.ExtrinsicIndex
	}

	var moduleErr *ModuleError
	var runtimeErr *RuntimeError
	switch {
	case errors.As(err, &moduleErr):
		record.Pallet = moduleErr.Pallet
		record.Error = moduleErr.Name
		record.Description = moduleErr.Description
		record.DispatchError = events.DispatchError{Kind: events.DispatchErrorModule, Module: moduleErr.Data}.String()
	case errors.As(err, &runtimeErr):
		record.DispatchError = runtimeErr.Code.String()
	case err != nil:
		record.Error = err.Error()
	}
	return record
}
