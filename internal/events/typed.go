package events

import (
	"github.com/ethereum/go-ethereum/common/hexutil"

	"extrinsicScope/internal/model"
)

// TypedEvents decodes every record of a bundle into its stored form.
func TypedEvents(b *Bundle) ([]model.TypedEvent, error) {
	records, err := b.Records()
	if err != nil {
		return nil, err
	}
	out := make([]model.TypedEvent, 0, len(records))
	for _, rec := range records {
		out = append(out, model.TypedEvent{
			TxHash:         b.TxHash.Hex(),
			BlockHash:      b.BlockHash.Hex(),
			BlockNumber:    b.BlockNumber,
			ExtrinsicIndex: b.ExtrinsicIndex,
			EventIndex:     rec.Raw.Index,
			Pallet:         rec.Raw.Pallet,
			Variant:        rec.Raw.Variant,
			Decoded:        decodedFields(rec.Event),
			Raw: &model.RawEventRef{
				PalletIndex:  rec.Raw.PalletIndex,
				VariantIndex: rec.Raw.VariantIndex,
				Data:         hexutil.Encode(rec.Raw.Bytes),
			},
		})
	}
	return out, nil
}

func decodedFields(ev Event) map[string]string {
	values := ev.Values()
	out := make(map[string]string, len(values))
	for _, v := range values {
		out[v.Name] = FormatValue(v.Value)
	}
	return out
}

// DecodeErrorRecord converts a decode failure of a receipt into its stored form.
func DecodeErrorRecord(receipt model.Receipt, err error) model.DecodeError {
	record := model.DecodeError{
		TxHash:      receipt.TxHash.Hex(),
		BlockNumber: uint64(receipt.BlockNumber),
		EventIndex:  -1,
		Error:       err.Error(),
	}
	if de, ok := err.(*DecodeError); ok {
		record.EventIndex = de.Index
		record.Pallet = de.Pallet
		record.Variant = de.Variant
		record.Error = de.Err.Error()
	}
	return record
}
