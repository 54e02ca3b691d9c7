package events

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"

	"extrinsicScope/internal/model"
)

// Bundle holds the events emitted by one extrinsic, in emission order.
// It is immutable once built. Records are resolved against the metadata only
// when they are read, so callers that stop early never decode the rest.
type Bundle struct {
	TxHash         common.Hash
	BlockHash      common.Hash
	BlockNumber    uint64
	ExtrinsicIndex uint32

	dec     *Decoder
	entries []bundleEntry
}

type bundleEntry struct {
	index int
	wire  wireRecord
	data  []byte
	rec   *EventRecord
}

// NewBundle keeps the receipt's records that were emitted while applying the
// receipt's extrinsic. Only record envelopes are read here; records of other
// phases or extrinsics never reach the metadata.
func NewBundle(dec *Decoder, receipt model.Receipt) (*Bundle, error) {
	bundle := &Bundle{
		TxHash:         receipt.TxHash,
		BlockHash:      receipt.BlockHash,
		BlockNumber:    uint64(receipt.BlockNumber),
		ExtrinsicIndex: receipt.ExtrinsicIndex,
		dec:            dec,
	}

	for i, data := range receipt.Events {
		w, err := splitRecord(data)
		if err != nil {
			return nil, withIndex(err, i)
		}
		if w.Phase != PhaseApplyExtrinsic || w.ExtrinsicIndex != receipt.ExtrinsicIndex {
			continue
		}
		bundle.entries = append(bundle.entries, bundleEntry{index: i, wire: w, data: data})
	}
	return bundle, nil
}

// NewBundleFromRecords wraps already decoded records.
func NewBundleFromRecords(txHash, blockHash common.Hash, blockNumber uint64, extrinsicIndex uint32, records []EventRecord) *Bundle {
	entries := make([]bundleEntry, 0, len(records))
	for i := range records {
		rec := records[i]
		entries = append(entries, bundleEntry{index: rec.Raw.Index, data: rec.Raw.Bytes, rec: &rec})
	}
	return &Bundle{
		TxHash:         txHash,
		BlockHash:      blockHash,
		BlockNumber:    blockNumber,
		ExtrinsicIndex: extrinsicIndex,
		entries:        entries,
	}
}

func (b *Bundle) Len() int {
	return len(b.entries)
}

// Raw resolves the i-th record's discriminants without decoding its fields.
func (b *Bundle) Raw(i int) (RawEvent, error) {
	e := b.entries[i]
	if e.rec != nil {
		return e.rec.Raw, nil
	}
	if b.dec == nil {
		return RawEvent{}, &DecodeError{Index: e.index, Err: fmt.Errorf("no decoder")}
	}
	raw, err := b.dec.resolve(e.wire, e.data)
	if err != nil {
		return RawEvent{}, withIndex(err, e.index)
	}
	raw.Index = e.index
	return raw, nil
}

// Record decodes both views of the i-th record.
func (b *Bundle) Record(i int) (EventRecord, error) {
	e := b.entries[i]
	if e.rec != nil {
		return *e.rec, nil
	}
	raw, err := b.Raw(i)
	if err != nil {
		return EventRecord{}, err
	}
	ev, err := b.dec.DecodeEvent(raw)
	if err != nil {
		return EventRecord{}, err
	}
	return EventRecord{Raw: raw, Event: ev}, nil
}

// Records decodes every record in emission order, stopping at the first
// failure.
func (b *Bundle) Records() ([]EventRecord, error) {
	out := make([]EventRecord, 0, len(b.entries))
	for i := range b.entries {
		rec, err := b.Record(i)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, nil
}
